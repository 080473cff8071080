package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gagliardetto/solana-go"
)

// LoadKeypair reads a solana-keygen JSON file. A leading "~/" is expanded.
func LoadKeypair(path string) (solana.PrivateKey, error) {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve home directory: %w", err)
		}
		path = filepath.Join(home, path[2:])
	}

	key, err := solana.PrivateKeyFromSolanaKeygenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load keypair %s: %w", path, err)
	}
	return key, nil
}

// NewReference returns a fresh public key with no retained private key.
// It can tag a transaction but can never sign one.
func NewReference() (solana.PublicKey, error) {
	key, err := solana.NewRandomPrivateKey()
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("failed to generate reference: %w", err)
	}
	return key.PublicKey(), nil
}

// PrivateKeyFromBase58 is a convenience for keys passed as base58 strings
// in configuration or environment variables.
func PrivateKeyFromBase58(s string) (solana.PrivateKey, error) {
	key, err := solana.PrivateKeyFromBase58(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	return key, nil
}
