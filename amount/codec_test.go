package amount

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitwit/paylink/cache"
	"github.com/vitwit/paylink/types"
)

var testMint = solana.MustPublicKeyFromBase58("Gh9ZwEmdLJ8DscKNTkTqPbNwLNNBjuSzaG9Vp2KGtKJr")

type fakeSource struct {
	decimals uint8
	err      error
	calls    int
}

func (f *fakeSource) GetCurrencyMetadata(_ context.Context, mint solana.PublicKey) (*types.CurrencyMetadata, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &types.CurrencyMetadata{Mint: mint, Decimals: f.decimals}, nil
}

func newTestCodec(src *fakeSource) *Codec {
	return NewCodec(types.NewCurrencies(testMint), src, cache.NewMemoryCache())
}

func TestToMinorUnitsNative(t *testing.T) {
	codec := newTestCodec(&fakeSource{})

	got, err := codec.ToMinorUnits(context.Background(), "1.5", types.CurrencySOL)
	require.NoError(t, err)
	assert.Equal(t, uint64(1_500_000_000), got)

	got, err = codec.ToMinorUnits(context.Background(), "2.0", types.CurrencySOL)
	require.NoError(t, err)
	assert.Equal(t, uint64(2_000_000_000), got)
}

func TestToMinorUnitsToken(t *testing.T) {
	src := &fakeSource{decimals: 6}
	codec := newTestCodec(src)

	got, err := codec.ToMinorUnits(context.Background(), "10.25", types.CurrencyUSDC)
	require.NoError(t, err)
	assert.Equal(t, uint64(10_250_000), got)

	_, err = codec.ToMinorUnits(context.Background(), "1", types.CurrencyUSDC)
	require.NoError(t, err)
	assert.Equal(t, 1, src.calls, "mint decimals should be cached")
}

func TestRoundTrip(t *testing.T) {
	ctx := context.Background()
	codec := newTestCodec(&fakeSource{decimals: 6})

	inputs := []string{"1", "1.5", "2.0", "0.000001", "123456.789", "10.100000", "1e2"}
	for _, tag := range []types.CurrencyTag{types.CurrencySOL, types.CurrencyUSDC} {
		for _, in := range inputs {
			minor, err := codec.ToMinorUnits(ctx, in, tag)
			require.NoError(t, err, "%s %s", in, tag)

			back, err := codec.ToDecimal(ctx, minor, tag)
			require.NoError(t, err)

			want, err := Normalize(in)
			require.NoError(t, err)
			assert.Equal(t, want, back, "%s %s", in, tag)
		}
	}
}

func TestToMinorUnitsRejectsInvalidInput(t *testing.T) {
	src := &fakeSource{decimals: 6}
	codec := newTestCodec(src)

	for _, tag := range []types.CurrencyTag{types.CurrencySOL, types.CurrencyUSDC} {
		for _, in := range []string{"0", "-1", "-0.5", "abc", "", "NaN", "Infinity"} {
			_, err := codec.ToMinorUnits(context.Background(), in, tag)
			require.Error(t, err, in)
			assert.Equal(t, types.KindValidation, types.KindOf(err), in)
		}
	}
	assert.Zero(t, src.calls, "validation must happen before metadata lookups")
}

func TestToMinorUnitsRejectsExcessPrecision(t *testing.T) {
	codec := newTestCodec(&fakeSource{decimals: 6})

	_, err := codec.ToMinorUnits(context.Background(), "0.0000001", types.CurrencyUSDC)
	assert.True(t, errors.Is(err, types.ErrInvalidAmountError))
}

func TestToMinorUnitsRejectsExtremeExponents(t *testing.T) {
	codec := newTestCodec(&fakeSource{decimals: 6})

	for _, in := range []string{"1e50000000", "1e-50000000", "1e21", "1e-10"} {
		for _, tag := range []types.CurrencyTag{types.CurrencySOL, types.CurrencyUSDC} {
			start := time.Now()
			_, err := codec.ToMinorUnits(context.Background(), in, tag)
			assert.True(t, errors.Is(err, types.ErrInvalidAmountError), "%s %s", in, tag)
			assert.Less(t, time.Since(start), 100*time.Millisecond, "%s %s", in, tag)
		}
	}

	got, err := codec.ToMinorUnits(context.Background(), "1.5e1", types.CurrencySOL)
	require.NoError(t, err)
	assert.Equal(t, uint64(15_000_000_000), got)
}

func TestUnsupportedCurrency(t *testing.T) {
	codec := newTestCodec(&fakeSource{})

	_, err := codec.ToMinorUnits(context.Background(), "1", types.CurrencyTag(9))
	assert.True(t, errors.Is(err, types.ErrUnsupportedCurrencyError))

	_, err = codec.ToDecimal(context.Background(), 1, types.CurrencyTag(9))
	assert.True(t, errors.Is(err, types.ErrUnsupportedCurrencyError))
}

func TestMetadataUnavailable(t *testing.T) {
	codec := newTestCodec(&fakeSource{err: errors.New("rpc down")})

	_, err := codec.ToMinorUnits(context.Background(), "1", types.CurrencyUSDC)
	assert.True(t, errors.Is(err, types.ErrMetadataUnavailableError))
	assert.Equal(t, types.KindNetwork, types.KindOf(err))

	// native needs no lookup
	_, err = codec.ToMinorUnits(context.Background(), "1", types.CurrencySOL)
	assert.NoError(t, err)
}
