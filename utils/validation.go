package utils

import (
	"math"
	"math/big"
	"regexp"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
	"github.com/vitwit/paylink/types"
)

var maxUint64 = decimal.NewFromBigInt(new(big.Int).SetUint64(math.MaxUint64), 0)

// maxUint64Digits is the number of decimal digits in math.MaxUint64.
const maxUint64Digits = 20

// maxExponent bounds the exponent accepted in scientific notation. Rescaling
// a decimal costs time in |exponent|, so inputs like "1e50000000" are
// refused before any arithmetic. Mint decimals are a u8, so no valid amount
// needs more.
const maxExponent = math.MaxUint8 + maxUint64Digits

// ValidateAmount checks that an amount string is a positive decimal.
func ValidateAmount(amount string) (decimal.Decimal, error) {
	if amount == "" {
		return decimal.Zero, types.NewError(types.ErrInvalidAmount, "amount cannot be empty")
	}

	dec, err := decimal.NewFromString(amount)
	if err != nil {
		return decimal.Zero, types.WrapError(types.ErrInvalidAmount, err, "invalid amount format %q", amount)
	}

	if exp := dec.Exponent(); exp > maxExponent || exp < -maxExponent {
		return decimal.Zero, types.NewError(types.ErrInvalidAmount, "amount %q is out of range", amount)
	}

	if !dec.IsPositive() {
		return decimal.Zero, types.NewError(types.ErrInvalidAmount, "amount must be greater than zero, got %s", amount)
	}

	return dec, nil
}

// ParseAmountWithDecimals scales a decimal amount by 10^decimals into minor
// units. Amounts with more fractional digits than decimals are rejected
// rather than rounded.
func ParseAmountWithDecimals(amount string, decimals int32) (uint64, error) {
	dec, err := ValidateAmount(amount)
	if err != nil {
		return 0, err
	}

	// value is coefficient * 10^exp; settle range questions on the exponent
	// alone so Shift and Truncate only ever rescale by a few digits
	exp := int64(dec.Exponent()) + int64(decimals)
	if exp >= maxUint64Digits {
		return 0, types.NewError(types.ErrInvalidAmount, "amount %s overflows u64 minor units", amount)
	}
	if exp < 0 && -exp > int64(len(dec.Coefficient().String())) {
		return 0, types.NewError(types.ErrInvalidAmount, "amount %s has more than %d decimal places", amount, decimals)
	}

	scaled := dec.Shift(decimals)
	if !scaled.Equal(scaled.Truncate(0)) {
		return 0, types.NewError(types.ErrInvalidAmount, "amount %s has more than %d decimal places", amount, decimals)
	}

	if scaled.GreaterThan(maxUint64) {
		return 0, types.NewError(types.ErrInvalidAmount, "amount %s overflows u64 minor units", amount)
	}

	return scaled.BigInt().Uint64(), nil
}

// FormatAmount renders minor units as a canonical decimal string.
func FormatAmount(minor uint64, decimals int32) string {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(minor), -decimals).String()
}

// NormalizeAmount canonicalizes a decimal string (trailing zeros trimmed).
func NormalizeAmount(amount string) (string, error) {
	dec, err := ValidateAmount(amount)
	if err != nil {
		return "", err
	}
	return dec.String(), nil
}

// ValidateAddress parses a base58 public key.
func ValidateAddress(address string) (solana.PublicKey, error) {
	if address == "" {
		return solana.PublicKey{}, types.NewError(types.ErrInvalidAddress, "address cannot be empty")
	}

	if !isBase58String(address) {
		return solana.PublicKey{}, types.NewError(types.ErrInvalidAddress, "address %q must be valid base58", address)
	}

	pk, err := solana.PublicKeyFromBase58(address)
	if err != nil {
		return solana.PublicKey{}, types.WrapError(types.ErrInvalidAddress, err, "invalid address %q", address)
	}

	return pk, nil
}

// ValidateSignature checks that a transaction signature is well formed.
func ValidateSignature(sig string) (solana.Signature, error) {
	if len(sig) < 80 || len(sig) > 90 || !isBase58String(sig) {
		return solana.Signature{}, types.NewError(types.ErrInvalidAddress, "malformed transaction signature %q", sig)
	}

	s, err := solana.SignatureFromBase58(sig)
	if err != nil {
		return solana.Signature{}, types.WrapError(types.ErrInvalidAddress, err, "invalid transaction signature")
	}
	return s, nil
}

var base58Pattern = regexp.MustCompile("^[1-9A-HJ-NP-Za-km-z]+$")

// isBase58String reports whether s uses only the bitcoin base58 alphabet
// (no 0, O, I or l).
func isBase58String(s string) bool {
	return base58Pattern.MatchString(s)
}
