// Package amount converts between human decimal amounts and the integer
// minor units stored on the ledger.
package amount

import (
	"context"

	"github.com/gagliardetto/solana-go"
	"github.com/vitwit/paylink/cache"
	"github.com/vitwit/paylink/types"
	"github.com/vitwit/paylink/utils"
)

// MetadataSource reads mint metadata from the ledger.
type MetadataSource interface {
	GetCurrencyMetadata(ctx context.Context, mint solana.PublicKey) (*types.CurrencyMetadata, error)
}

// Codec is safe for concurrent use.
type Codec struct {
	currencies *types.Currencies
	source     MetadataSource
	cache      cache.MetadataCache
}

// NewCodec returns a codec backed by source. A nil cache disables caching.
func NewCodec(currencies *types.Currencies, source MetadataSource, c cache.MetadataCache) *Codec {
	return &Codec{
		currencies: currencies,
		source:     source,
		cache:      c,
	}
}

// Currency resolves a tag, failing with UNSUPPORTED_CURRENCY for unknown tags.
func (c *Codec) Currency(tag types.CurrencyTag) (types.Currency, error) {
	return c.currencies.Resolve(tag)
}

// Exponent returns the number of decimal places of a currency's minor unit.
func (c *Codec) Exponent(ctx context.Context, tag types.CurrencyTag) (int32, error) {
	currency, err := c.currencies.Resolve(tag)
	if err != nil {
		return 0, err
	}

	switch currency.Tag {
	case types.CurrencySOL:
		return types.NativeDecimals, nil
	case types.CurrencyUSDC:
		meta, err := c.Metadata(ctx, currency.Mint)
		if err != nil {
			return 0, err
		}
		return int32(meta.Decimals), nil
	default:
		return 0, types.NewError(types.ErrUnsupportedCurrency, "unsupported currency %s", currency.Symbol)
	}
}

// Metadata returns the mint metadata, consulting the cache first.
func (c *Codec) Metadata(ctx context.Context, mint solana.PublicKey) (*types.CurrencyMetadata, error) {
	if c.cache != nil {
		if meta, ok := c.cache.Get(ctx, mint); ok {
			return meta, nil
		}
	}

	if c.source == nil {
		return nil, types.NewError(types.ErrMetadataUnavailable, "no metadata source for mint %s", mint)
	}

	meta, err := c.source.GetCurrencyMetadata(ctx, mint)
	if err != nil {
		return nil, types.WrapError(types.ErrMetadataUnavailable, err, "failed to read mint %s", mint)
	}

	if c.cache != nil {
		c.cache.Set(ctx, meta)
	}
	return meta, nil
}

// ToMinorUnits converts a positive decimal string into minor units.
// The input is validated before any metadata lookup.
func (c *Codec) ToMinorUnits(ctx context.Context, decimalAmount string, tag types.CurrencyTag) (uint64, error) {
	if _, err := utils.ValidateAmount(decimalAmount); err != nil {
		return 0, err
	}

	exp, err := c.Exponent(ctx, tag)
	if err != nil {
		return 0, err
	}

	return utils.ParseAmountWithDecimals(decimalAmount, exp)
}

// ToDecimal renders minor units as a canonical decimal string.
func (c *Codec) ToDecimal(ctx context.Context, minor uint64, tag types.CurrencyTag) (string, error) {
	exp, err := c.Exponent(ctx, tag)
	if err != nil {
		return "", err
	}
	return utils.FormatAmount(minor, exp), nil
}

// Normalize canonicalizes a decimal string the way ToDecimal prints it.
func Normalize(decimalAmount string) (string, error) {
	return utils.NormalizeAmount(decimalAmount)
}
