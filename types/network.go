package types

import (
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go"
)

// Network represents supported Solana clusters.
type Network string

const (
	NetworkSolanaMainnet  Network = "solana-mainnet"
	NetworkSolanaDevnet   Network = "solana-devnet" // testnet
	NetworkSolanaLocalnet Network = "solana-localnet"

	// NetworkMemory is the in-process ledger used for tests and demos.
	NetworkMemory Network = "memory"
)

// NativeDecimals is the lamport exponent of SOL.
const NativeDecimals = 9

// CurrencyTag is the one-byte currency enum stored in a payment link account.
type CurrencyTag uint8

const (
	CurrencySOL CurrencyTag = iota
	CurrencyUSDC
)

var currencySymbols = map[CurrencyTag]string{
	CurrencySOL:  "SOL",
	CurrencyUSDC: "USDC",
}

// String returns the ticker symbol, or a placeholder for unknown tags.
func (c CurrencyTag) String() string {
	if s, ok := currencySymbols[c]; ok {
		return s
	}
	return fmt.Sprintf("currency(%d)", uint8(c))
}

// IsValid reports whether c is a known tag.
func (c CurrencyTag) IsValid() bool {
	_, ok := currencySymbols[c]
	return ok
}

func (c CurrencyTag) MarshalText() ([]byte, error) {
	if !c.IsValid() {
		return nil, NewError(ErrUnsupportedCurrency, "unsupported currency tag %d", uint8(c))
	}
	return []byte(strings.ToLower(c.String())), nil
}

func (c *CurrencyTag) UnmarshalText(text []byte) error {
	tag, err := ParseCurrency(string(text))
	if err != nil {
		return err
	}
	*c = tag
	return nil
}

// ParseCurrency accepts a case-insensitive ticker ("sol", "USDC").
func ParseCurrency(s string) (CurrencyTag, error) {
	for tag, sym := range currencySymbols {
		if strings.EqualFold(sym, strings.TrimSpace(s)) {
			return tag, nil
		}
	}
	return 0, NewError(ErrUnsupportedCurrency, "unsupported currency: %q", s)
}

// Currency is the resolved form of a tag on a given network.
// Native currencies have a zero Mint; tokenized ones carry their mint and
// learn their exponent from the ledger.
type Currency struct {
	Tag    CurrencyTag      `json:"tag"`
	Symbol string           `json:"symbol"`
	Native bool             `json:"native"`
	Mint   solana.PublicKey `json:"mint,omitempty"`
}

// Currencies resolves tags into Currency values for one network.
type Currencies struct {
	usdcMint solana.PublicKey
}

// NewCurrencies builds a registry with the given USDC mint.
func NewCurrencies(usdcMint solana.PublicKey) *Currencies {
	return &Currencies{usdcMint: usdcMint}
}

// Resolve returns the currency for tag.
func (c *Currencies) Resolve(tag CurrencyTag) (Currency, error) {
	switch tag {
	case CurrencySOL:
		return Currency{Tag: tag, Symbol: tag.String(), Native: true}, nil
	case CurrencyUSDC:
		if c.usdcMint.IsZero() {
			return Currency{}, NewError(ErrUnsupportedCurrency, "no USDC mint configured")
		}
		return Currency{Tag: tag, Symbol: tag.String(), Mint: c.usdcMint}, nil
	default:
		return Currency{}, NewError(ErrUnsupportedCurrency, "unsupported currency tag %d", uint8(tag))
	}
}

var (
	usdcMainnet = solana.MustPublicKeyFromBase58("EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v")
	usdcDevnet  = solana.MustPublicKeyFromBase58("Gh9ZwEmdLJ8DscKNTkTqPbNwLNNBjuSzaG9Vp2KGtKJr")
)

// DefaultUSDCMint returns the well known USDC mint of a cluster, or the zero
// key when the cluster has none (localnet and memory ledgers mint their own).
func (n Network) DefaultUSDCMint() solana.PublicKey {
	switch n {
	case NetworkSolanaMainnet:
		return usdcMainnet
	case NetworkSolanaDevnet:
		return usdcDevnet
	default:
		return solana.PublicKey{}
	}
}

// DefaultRPCUrl returns the public endpoint of a cluster.
func (n Network) DefaultRPCUrl() string {
	switch n {
	case NetworkSolanaMainnet:
		return "https://api.mainnet-beta.solana.com"
	case NetworkSolanaDevnet:
		return "https://api.devnet.solana.com"
	case NetworkSolanaLocalnet:
		return "http://127.0.0.1:8899"
	default:
		return ""
	}
}

func (n Network) IsSolana() bool {
	return n == NetworkSolanaMainnet || n == NetworkSolanaDevnet || n == NetworkSolanaLocalnet
}

func (n Network) IsTestnet() bool {
	return n == NetworkSolanaDevnet || n == NetworkSolanaLocalnet || n == NetworkMemory
}

func (n Network) IsValid() bool {
	return n.IsSolana() || n == NetworkMemory
}

func (n Network) String() string {
	return string(n)
}
