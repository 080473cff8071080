package derivation

import (
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitwit/paylink/types"
)

var (
	testProgram = solana.MustPublicKeyFromBase58(types.DefaultProgramID)
	testOwner   = solana.MustPublicKeyFromBase58("AejHuZdNpDUiAiwuV2NKXz8K6eLzChYGpTcxptinWbar")
)

func TestDeriveIsDeterministic(t *testing.T) {
	first, err := PaymentLinkAddress(testProgram, testOwner, 7)
	require.NoError(t, err)

	second, err := PaymentLinkAddress(testProgram, testOwner, 7)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestDeriveMatchesFindProgramAddress(t *testing.T) {
	got, err := UserProfileAddress(testProgram, testOwner)
	require.NoError(t, err)

	want, bump, err := solana.FindProgramAddress(
		[][]byte{[]byte("USER_STATE"), testOwner.Bytes()},
		testProgram,
	)
	require.NoError(t, err)

	assert.Equal(t, want, got.PublicKey)
	assert.Equal(t, bump, got.Bump)
}

func TestDeriveSeparatesAddressSpaces(t *testing.T) {
	profile, err := UserProfileAddress(testProgram, testOwner)
	require.NoError(t, err)

	seen := map[solana.PublicKey]bool{profile.PublicKey: true}
	for i := 0; i < 4; i++ {
		link, err := PaymentLinkAddress(testProgram, testOwner, uint8(i))
		require.NoError(t, err)
		assert.False(t, seen[link.PublicKey], "index %d collides", i)
		seen[link.PublicKey] = true
	}
}

func TestDeriveDependsOnOwner(t *testing.T) {
	other := solana.MustPublicKeyFromBase58("EAx3oF6kmpAa6aR9G6LjhuWoqKJLpYsufSDoGp2dDWkh")

	a, err := PaymentLinkAddress(testProgram, testOwner, 0)
	require.NoError(t, err)
	b, err := PaymentLinkAddress(testProgram, other, 0)
	require.NoError(t, err)

	assert.NotEqual(t, a.PublicKey, b.PublicKey)
}
