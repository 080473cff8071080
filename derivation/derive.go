// Package derivation computes program derived addresses for user profiles
// and payment links. Nothing here touches the network.
package derivation

import (
	"github.com/gagliardetto/solana-go"
	"github.com/vitwit/paylink/types"
)

// Seed tags separating the two address spaces of the program.
var (
	UserTag        = []byte("USER_STATE")
	PaymentLinkTag = []byte("PAYMENT_LINK_STATE")
)

// Address is a derived account address with the bump that proves it.
type Address struct {
	PublicKey solana.PublicKey
	Bump      uint8
}

// Derive hashes tag, owner and the optional one-byte index into a program
// address. Identical inputs always give identical outputs.
func Derive(programID solana.PublicKey, tag []byte, owner solana.PublicKey, index *uint8) (Address, error) {
	seeds := [][]byte{tag, owner.Bytes()}
	if index != nil {
		seeds = append(seeds, []byte{*index})
	}

	key, bump, err := solana.FindProgramAddress(seeds, programID)
	if err != nil {
		return Address{}, types.WrapError(
			types.ErrDerivationExhausted,
			err,
			"no valid bump for %s/%s",
			string(tag),
			owner,
		)
	}

	return Address{PublicKey: key, Bump: bump}, nil
}

// UserProfileAddress derives the profile account of owner.
func UserProfileAddress(programID, owner solana.PublicKey) (Address, error) {
	return Derive(programID, UserTag, owner, nil)
}

// PaymentLinkAddress derives the link account in owner's slot index.
func PaymentLinkAddress(programID, owner solana.PublicKey, index uint8) (Address, error) {
	return Derive(programID, PaymentLinkTag, owner, &index)
}
