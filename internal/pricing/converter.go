package pricing

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/chainbook/chainbook/internal/domain"
)

var nativeUnit = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

// Converter translates amounts from arbitrary payment currencies into the
// chain's native unit via each side's USD quote. Conversion is fail-closed:
// when either quote is unavailable the caller gets an error, never a partial
// or guessed amount.
type Converter struct {
	currencies domain.CurrencyStore
	oracle     *Oracle
	wrapped    common.Address
}

// NewConverter creates a Converter. wrapped is the wrapped-native token,
// treated as already being in native units.
func NewConverter(currencies domain.CurrencyStore, oracle *Oracle, wrapped common.Address) *Converter {
	return &Converter{currencies: currencies, oracle: oracle, wrapped: wrapped}
}

// NeedsConversion reports whether amounts in the given currency differ from
// native units. The native currency (zero address) and its wrapper pass
// through 1:1.
func (c *Converter) NeedsConversion(currency common.Address) bool {
	return currency != (common.Address{}) && currency != c.wrapped
}

// ToNative converts amount from the given currency into native units at the
// day containing ts. Unknown currencies return an error wrapping
// domain.ErrNotFound; unpriceable days wrap domain.ErrNoPriceAvailable. Each
// amount of an order is converted independently so rounding never compounds.
func (c *Converter) ToNative(ctx context.Context, currency common.Address, amount *big.Int, ts int64) (*big.Int, error) {
	if amount == nil {
		return nil, nil
	}
	if !c.NeedsConversion(currency) {
		return new(big.Int).Set(amount), nil
	}

	meta, err := c.currencies.Get(ctx, currency)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("pricing: unsupported currency %s: %w", currency.Hex(), err)
		}
		return nil, err
	}

	currencyUSD, err := c.oracle.USDPrice(ctx, meta, ts)
	if err != nil {
		return nil, err
	}

	nativeMeta, err := c.currencies.Get(ctx, common.Address{})
	if err != nil {
		return nil, fmt.Errorf("pricing: native currency metadata: %w", err)
	}
	nativeUSD, err := c.oracle.USDPrice(ctx, nativeMeta, ts)
	if err != nil {
		return nil, err
	}
	if nativeUSD.Value.Sign() <= 0 {
		return nil, fmt.Errorf("pricing: zero native quote: %w", domain.ErrNoPriceAvailable)
	}

	// native = amount * usd(currency) * 1e18 / (usd(native) * 10^decimals)
	unit := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(meta.Decimals)), nil)
	num := new(big.Int).Mul(amount, currencyUSD.Value)
	num.Mul(num, nativeUnit)
	den := new(big.Int).Mul(nativeUSD.Value, unit)
	return num.Div(num, den), nil
}
