package market_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skoll/internal/market"
)

func TestPrice_CmpSameCurrency(t *testing.T) {
	a, err := market.PriceFromString(market.USD, "100.50")
	require.NoError(t, err)
	b, err := market.PriceFromString(market.USD, "101")
	require.NoError(t, err)

	cmp, err := a.Cmp(b)
	require.NoError(t, err)
	assert.Equal(t, -1, cmp)

	cmp, err = b.Cmp(a)
	require.NoError(t, err)
	assert.Equal(t, 1, cmp)

	same := market.NewPrice(market.USD, decimal.RequireFromString("100.5"))
	cmp, err = a.Cmp(same)
	require.NoError(t, err)
	assert.Equal(t, 0, cmp)
	assert.True(t, a.Equal(same), "trailing zeros must not matter")
}

func TestPrice_CmpAcrossCurrenciesFails(t *testing.T) {
	usd, err := market.PriceFromString(market.USD, "100")
	require.NoError(t, err)
	eur, err := market.PriceFromString(market.EUR, "100")
	require.NoError(t, err)

	_, err = usd.Cmp(eur)
	assert.ErrorIs(t, err, market.ErrCurrencyMismatch)
	assert.False(t, usd.Equal(eur))
}

func TestPriceFromString_RejectsGarbage(t *testing.T) {
	_, err := market.PriceFromString(market.USD, "not-a-number")
	assert.Error(t, err)
}

func TestPrice_IsPositive(t *testing.T) {
	for value, want := range map[string]bool{
		"0.01": true,
		"0":    false,
		"-5":   false,
	} {
		p, err := market.PriceFromString(market.USD, value)
		require.NoError(t, err)
		assert.Equal(t, want, p.IsPositive(), "value %s", value)
	}
}

func TestCurrencyFromCode(t *testing.T) {
	assert.Equal(t, market.USD, market.CurrencyFromCode("USD"))

	chf := market.CurrencyFromCode("CHF")
	assert.Equal(t, "CHF", chf.ISOCode)
	assert.True(t, chf.Equal(market.Currency{ISOCode: "CHF", Name: "Swiss Franc"}),
		"equality is by ISO code only")
}

func TestRegistry(t *testing.T) {
	reg := market.NewRegistry()
	inst := market.Instrument{Symbol: "AAPL", Name: "Apple Inc.", Class: market.Equity, Currency: market.USD}
	require.NoError(t, reg.Register(inst))
	assert.ErrorIs(t, reg.Register(inst), market.ErrDuplicateInstrument)

	got, ok := reg.Lookup("AAPL")
	require.True(t, ok)
	assert.Equal(t, inst, got)

	_, ok = reg.Lookup("MSFT")
	assert.False(t, ok)

	require.NoError(t, reg.Register(market.Instrument{Symbol: "MSFT", Currency: market.USD}))
	assert.Equal(t, []market.Symbol{"AAPL", "MSFT"}, reg.Symbols())
}

func TestRegistry_ReferencePrices(t *testing.T) {
	reg := market.NewRegistry()
	require.NoError(t, reg.Register(market.Instrument{Symbol: "AAPL", Currency: market.USD}))

	price, err := market.PriceFromString(market.USD, "187.33")
	require.NoError(t, err)

	err = reg.SetReferencePrice("MSFT", market.ReferencePrice{Price: price})
	assert.ErrorIs(t, err, market.ErrUnknownInstrument)

	require.NoError(t, reg.SetReferencePrice("AAPL", market.ReferencePrice{Price: price}))
	mark, ok := reg.ReferencePrice("AAPL")
	require.True(t, ok)
	assert.True(t, mark.Price.Equal(price))
}
