// Package program speaks the wire format of the payment link program:
// Anchor account layouts, instruction encoding and error codes.
package program

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/vitwit/paylink/types"
)

// Discriminator is the 8-byte Anchor type prefix.
type Discriminator [8]byte

func sighash(namespace, name string) Discriminator {
	var d Discriminator
	sum := sha256.Sum256([]byte(namespace + ":" + name))
	copy(d[:], sum[:8])
	return d
}

var (
	UserProfileDiscriminator = sighash("account", "UserProfileAccount")
	PaymentLinkDiscriminator = sighash("account", "PaymentLinkAccount")
)

// Account sizes allocated by the program (8 + size_of::<T>()).
const (
	UserProfileSpace = 8 + 33
	PaymentLinkSpace = 8 + 80

	// OwnerOffset is where the authority key starts in both account types.
	OwnerOffset = 8
)

// UserProfileAccount is the on-chain profile record.
type UserProfileAccount struct {
	Authority       solana.PublicKey
	LastPaymentLink uint8
}

func (a *UserProfileAccount) MarshalWithEncoder(enc *bin.Encoder) error {
	if err := enc.WriteBytes(UserProfileDiscriminator[:], false); err != nil {
		return err
	}
	if err := enc.WriteBytes(a.Authority[:], false); err != nil {
		return err
	}
	return enc.WriteUint8(a.LastPaymentLink)
}

func (a *UserProfileAccount) UnmarshalWithDecoder(dec *bin.Decoder) error {
	if err := readDiscriminator(dec, UserProfileDiscriminator); err != nil {
		return err
	}
	if err := readPublicKey(dec, &a.Authority); err != nil {
		return err
	}
	idx, err := dec.ReadUint8()
	if err != nil {
		return err
	}
	a.LastPaymentLink = idx
	return nil
}

// PaymentLinkAccount is the on-chain payment link record.
type PaymentLinkAccount struct {
	Authority solana.PublicKey
	Amount    uint64
	Currency  types.CurrencyTag
	Reference solana.PublicKey
	Idx       uint8
}

func (a *PaymentLinkAccount) MarshalWithEncoder(enc *bin.Encoder) error {
	if err := enc.WriteBytes(PaymentLinkDiscriminator[:], false); err != nil {
		return err
	}
	if err := enc.WriteBytes(a.Authority[:], false); err != nil {
		return err
	}
	if err := enc.WriteUint64(a.Amount, binary.LittleEndian); err != nil {
		return err
	}
	if err := enc.WriteUint8(uint8(a.Currency)); err != nil {
		return err
	}
	if err := enc.WriteBytes(a.Reference[:], false); err != nil {
		return err
	}
	return enc.WriteUint8(a.Idx)
}

func (a *PaymentLinkAccount) UnmarshalWithDecoder(dec *bin.Decoder) error {
	if err := readDiscriminator(dec, PaymentLinkDiscriminator); err != nil {
		return err
	}
	if err := readPublicKey(dec, &a.Authority); err != nil {
		return err
	}
	amount, err := dec.ReadUint64(binary.LittleEndian)
	if err != nil {
		return err
	}
	a.Amount = amount

	currency, err := dec.ReadUint8()
	if err != nil {
		return err
	}
	a.Currency = types.CurrencyTag(currency)

	if err := readPublicKey(dec, &a.Reference); err != nil {
		return err
	}
	idx, err := dec.ReadUint8()
	if err != nil {
		return err
	}
	a.Idx = idx
	return nil
}

// ToPaymentLink converts the record into the domain type.
func (a *PaymentLinkAccount) ToPaymentLink(address solana.PublicKey) *types.PaymentLink {
	return &types.PaymentLink{
		Address:   address,
		Owner:     a.Authority,
		Amount:    a.Amount,
		Currency:  a.Currency,
		Reference: a.Reference,
		Index:     a.Idx,
	}
}

// ToUserProfile converts the record into the domain type.
func (a *UserProfileAccount) ToUserProfile(address solana.PublicKey) *types.UserProfile {
	return &types.UserProfile{
		Address:       address,
		Owner:         a.Authority,
		LastLinkIndex: a.LastPaymentLink,
	}
}

type marshaler interface {
	MarshalWithEncoder(enc *bin.Encoder) error
}

// EncodeAccount serializes an account record padded to its allocated space.
func EncodeAccount(acc marshaler, space int) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := acc.MarshalWithEncoder(bin.NewBorshEncoder(buf)); err != nil {
		return nil, err
	}
	if buf.Len() > space {
		return nil, fmt.Errorf("account data %d bytes exceeds space %d", buf.Len(), space)
	}
	out := make([]byte, space)
	copy(out, buf.Bytes())
	return out, nil
}

// DecodeUserProfile parses raw profile account data.
func DecodeUserProfile(data []byte) (*UserProfileAccount, error) {
	var acc UserProfileAccount
	if err := acc.UnmarshalWithDecoder(bin.NewBorshDecoder(data)); err != nil {
		return nil, fmt.Errorf("failed to decode user profile: %w", err)
	}
	return &acc, nil
}

// DecodePaymentLink parses raw payment link account data.
func DecodePaymentLink(data []byte) (*PaymentLinkAccount, error) {
	var acc PaymentLinkAccount
	if err := acc.UnmarshalWithDecoder(bin.NewBorshDecoder(data)); err != nil {
		return nil, fmt.Errorf("failed to decode payment link: %w", err)
	}
	return &acc, nil
}

// IsPaymentLink reports whether data starts with the payment link discriminator.
func IsPaymentLink(data []byte) bool {
	return len(data) >= 8 && bytes.Equal(data[:8], PaymentLinkDiscriminator[:])
}

func readDiscriminator(dec *bin.Decoder, want Discriminator) error {
	got, err := dec.ReadNBytes(8)
	if err != nil {
		return err
	}
	if !bytes.Equal(got, want[:]) {
		return fmt.Errorf("discriminator mismatch: got %x, want %x", got, want[:])
	}
	return nil
}

func readPublicKey(dec *bin.Decoder, out *solana.PublicKey) error {
	b, err := dec.ReadNBytes(solana.PublicKeyLength)
	if err != nil {
		return err
	}
	copy(out[:], b)
	return nil
}
