package program

import (
	"bytes"
	"encoding/binary"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/vitwit/paylink/types"
)

var (
	CreateUserProfileDiscriminator = sighash("global", "create_user_profile")
	CreatePaymentLinkDiscriminator = sighash("global", "create_payment_link")
	UpdatePaymentLinkDiscriminator = sighash("global", "update_payment_link")
	RemovePaymentLinkDiscriminator = sighash("global", "remove_payment_link")
)

// InstructionKind names the program entrypoints.
type InstructionKind string

const (
	KindCreateUserProfile InstructionKind = "create_user_profile"
	KindCreatePaymentLink InstructionKind = "create_payment_link"
	KindUpdatePaymentLink InstructionKind = "update_payment_link"
	KindRemovePaymentLink InstructionKind = "remove_payment_link"
)

// Instruction is a decoded program instruction.
type Instruction struct {
	Kind InstructionKind

	// create_payment_link
	Amount    uint64
	Currency  types.CurrencyTag
	Reference solana.PublicKey

	// update_payment_link and remove_payment_link
	Index uint8

	// update_payment_link
	NewAmount   *uint64
	NewCurrency *types.CurrencyTag
}

// NewCreateUserProfileInstruction initializes the profile of authority.
func NewCreateUserProfileInstruction(programID, profile, authority solana.PublicKey) solana.Instruction {
	accounts := solana.AccountMetaSlice{
		solana.Meta(authority).WRITE().SIGNER(),
		solana.Meta(profile).WRITE(),
		solana.Meta(solana.SystemProgramID),
	}
	return solana.NewInstruction(programID, accounts, CreateUserProfileDiscriminator[:])
}

// NewCreatePaymentLinkInstruction creates the link in the profile's next slot.
func NewCreatePaymentLinkInstruction(
	programID, profile, link, authority solana.PublicKey,
	amount uint64,
	currency types.CurrencyTag,
	reference solana.PublicKey,
) (solana.Instruction, error) {
	buf := new(bytes.Buffer)
	enc := bin.NewBorshEncoder(buf)

	if err := enc.WriteBytes(CreatePaymentLinkDiscriminator[:], false); err != nil {
		return nil, err
	}
	if err := enc.WriteUint64(amount, binary.LittleEndian); err != nil {
		return nil, err
	}
	if err := enc.WriteUint8(uint8(currency)); err != nil {
		return nil, err
	}
	if err := enc.WriteBytes(reference[:], false); err != nil {
		return nil, err
	}

	accounts := solana.AccountMetaSlice{
		solana.Meta(profile).WRITE(),
		solana.Meta(link).WRITE(),
		solana.Meta(authority).WRITE().SIGNER(),
		solana.Meta(solana.SystemProgramID),
	}
	return solana.NewInstruction(programID, accounts, buf.Bytes()), nil
}

// NewUpdatePaymentLinkInstruction patches amount and/or currency of a link.
func NewUpdatePaymentLinkInstruction(
	programID, link, authority solana.PublicKey,
	index uint8,
	amount *uint64,
	currency *types.CurrencyTag,
) (solana.Instruction, error) {
	buf := new(bytes.Buffer)
	enc := bin.NewBorshEncoder(buf)

	if err := enc.WriteBytes(UpdatePaymentLinkDiscriminator[:], false); err != nil {
		return nil, err
	}
	if err := enc.WriteUint8(index); err != nil {
		return nil, err
	}
	if err := enc.WriteBool(amount != nil); err != nil {
		return nil, err
	}
	if amount != nil {
		if err := enc.WriteUint64(*amount, binary.LittleEndian); err != nil {
			return nil, err
		}
	}
	if err := enc.WriteBool(currency != nil); err != nil {
		return nil, err
	}
	if currency != nil {
		if err := enc.WriteUint8(uint8(*currency)); err != nil {
			return nil, err
		}
	}

	accounts := solana.AccountMetaSlice{
		solana.Meta(link).WRITE(),
		solana.Meta(authority).WRITE().SIGNER(),
		solana.Meta(solana.SystemProgramID),
	}
	return solana.NewInstruction(programID, accounts, buf.Bytes()), nil
}

// NewRemovePaymentLinkInstruction closes a link and returns its rent.
func NewRemovePaymentLinkInstruction(programID, profile, link, authority solana.PublicKey, index uint8) solana.Instruction {
	data := append(append([]byte{}, RemovePaymentLinkDiscriminator[:]...), index)

	accounts := solana.AccountMetaSlice{
		solana.Meta(profile).WRITE(),
		solana.Meta(link).WRITE(),
		solana.Meta(authority).WRITE().SIGNER(),
		solana.Meta(solana.SystemProgramID),
	}
	return solana.NewInstruction(programID, accounts, data)
}

// DecodeInstruction parses instruction data sent to the program.
func DecodeInstruction(data []byte) (*Instruction, error) {
	if len(data) < 8 {
		return nil, fmt.Errorf("instruction data too short: %d bytes", len(data))
	}

	var disc Discriminator
	copy(disc[:], data[:8])
	dec := bin.NewBorshDecoder(data[8:])

	switch disc {
	case CreateUserProfileDiscriminator:
		return &Instruction{Kind: KindCreateUserProfile}, nil

	case CreatePaymentLinkDiscriminator:
		inst := &Instruction{Kind: KindCreatePaymentLink}
		amount, err := dec.ReadUint64(binary.LittleEndian)
		if err != nil {
			return nil, err
		}
		currency, err := dec.ReadUint8()
		if err != nil {
			return nil, err
		}
		if err := readPublicKey(dec, &inst.Reference); err != nil {
			return nil, err
		}
		inst.Amount = amount
		inst.Currency = types.CurrencyTag(currency)
		return inst, nil

	case UpdatePaymentLinkDiscriminator:
		inst := &Instruction{Kind: KindUpdatePaymentLink}
		idx, err := dec.ReadUint8()
		if err != nil {
			return nil, err
		}
		inst.Index = idx

		hasAmount, err := dec.ReadBool()
		if err != nil {
			return nil, err
		}
		if hasAmount {
			amount, err := dec.ReadUint64(binary.LittleEndian)
			if err != nil {
				return nil, err
			}
			inst.NewAmount = &amount
		}

		hasCurrency, err := dec.ReadBool()
		if err != nil {
			return nil, err
		}
		if hasCurrency {
			c, err := dec.ReadUint8()
			if err != nil {
				return nil, err
			}
			currency := types.CurrencyTag(c)
			inst.NewCurrency = &currency
		}
		return inst, nil

	case RemovePaymentLinkDiscriminator:
		idx, err := dec.ReadUint8()
		if err != nil {
			return nil, err
		}
		return &Instruction{Kind: KindRemovePaymentLink, Index: idx}, nil

	default:
		return nil, fmt.Errorf("unknown instruction discriminator %x", disc[:])
	}
}
