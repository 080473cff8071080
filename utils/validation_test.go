package utils

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitwit/paylink/types"
)

func TestParseAmountWithDecimals(t *testing.T) {
	tests := []struct {
		amount   string
		decimals int32
		want     uint64
	}{
		{"1.5", 9, 1_500_000_000},
		{"2.0", 9, 2_000_000_000},
		{"0.000000001", 9, 1},
		{"12.345678", 6, 12_345_678},
		{"18446744073709551615", 0, 18446744073709551615},
	}

	for _, tt := range tests {
		got, err := ParseAmountWithDecimals(tt.amount, tt.decimals)
		require.NoError(t, err, tt.amount)
		assert.Equal(t, tt.want, got, tt.amount)
	}
}

func TestParseAmountWithDecimalsRejects(t *testing.T) {
	for _, amount := range []string{"", "0", "0.0", "-1", "abc", "NaN", "Inf", "1.2.3", "0.0000000001", "18446744073709551616", "1e50000000", "1e-50000000", "1e300"} {
		_, err := ParseAmountWithDecimals(amount, 9)
		require.Error(t, err, amount)
		assert.True(t, errors.Is(err, types.ErrInvalidAmountError), amount)
		assert.Equal(t, types.KindValidation, types.KindOf(err), amount)
	}
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "1.5", FormatAmount(1_500_000_000, 9))
	assert.Equal(t, "2", FormatAmount(2_000_000_000, 9))
	assert.Equal(t, "0.000001", FormatAmount(1, 6))
}

func TestNormalizeAmount(t *testing.T) {
	got, err := NormalizeAmount("2.500")
	require.NoError(t, err)
	assert.Equal(t, "2.5", got)
}

func TestValidateAddress(t *testing.T) {
	pk, err := ValidateAddress("AejHuZdNpDUiAiwuV2NKXz8K6eLzChYGpTcxptinWbar")
	require.NoError(t, err)
	assert.Equal(t, "AejHuZdNpDUiAiwuV2NKXz8K6eLzChYGpTcxptinWbar", pk.String())

	for _, bad := range []string{"", "0xabc", "short"} {
		_, err := ValidateAddress(bad)
		assert.True(t, errors.Is(err, types.ErrInvalidAddressError), bad)
	}
}

func TestNewReference(t *testing.T) {
	a, err := NewReference()
	require.NoError(t, err)
	b, err := NewReference()
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
	assert.False(t, a.IsZero())
}
