package market

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var ErrCurrencyMismatch = errors.New("prices are denominated in different currencies")

// Currency is reference data owned by the surrounding system. Two currencies
// are the same iff their ISO codes are equal.
type Currency struct {
	ISOCode string
	Name    string
}

var (
	USD = Currency{ISOCode: "USD", Name: "US Dollar"}
	EUR = Currency{ISOCode: "EUR", Name: "Euro"}
	GBP = Currency{ISOCode: "GBP", Name: "Pound Sterling"}
	JPY = Currency{ISOCode: "JPY", Name: "Japanese Yen"}
)

var wellKnownCurrencies = map[string]Currency{
	USD.ISOCode: USD,
	EUR.ISOCode: EUR,
	GBP.ISOCode: GBP,
	JPY.ISOCode: JPY,
}

// CurrencyFromCode resolves an ISO code to a well-known currency, falling back
// to a bare code-only value for currencies we carry no display name for.
func CurrencyFromCode(code string) Currency {
	if c, ok := wellKnownCurrencies[code]; ok {
		return c
	}
	return Currency{ISOCode: code, Name: code}
}

func (c Currency) Equal(other Currency) bool {
	return c.ISOCode == other.ISOCode
}

func (c Currency) String() string {
	return c.ISOCode
}

// Price is a currency-tagged exact decimal. It is immutable once constructed;
// all arithmetic and comparison is currency-checked.
type Price struct {
	currency Currency
	value    decimal.Decimal
}

func NewPrice(currency Currency, value decimal.Decimal) Price {
	return Price{currency: currency, value: value}
}

// PriceFromString parses a decimal literal such as "101.25".
func PriceFromString(currency Currency, value string) (Price, error) {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return Price{}, fmt.Errorf("invalid price %q: %w", value, err)
	}
	return Price{currency: currency, value: d}, nil
}

func (p Price) Currency() Currency      { return p.currency }
func (p Price) Value() decimal.Decimal  { return p.value }
func (p Price) IsPositive() bool        { return p.value.IsPositive() }
func (p Price) SameCurrency(o Price) bool {
	return p.currency.Equal(o.currency)
}

// Cmp compares two prices within the same currency. Comparing across
// currencies is an error, never a silent ordering.
func (p Price) Cmp(o Price) (int, error) {
	if !p.SameCurrency(o) {
		return 0, fmt.Errorf("%w: %s vs %s", ErrCurrencyMismatch, p.currency, o.currency)
	}
	return p.value.Cmp(o.value), nil
}

// Equal reports whether both the currency and the numeric value match.
func (p Price) Equal(o Price) bool {
	return p.SameCurrency(o) && p.value.Equal(o.value)
}

func (p Price) String() string {
	return fmt.Sprintf("%s %s", p.value.String(), p.currency.ISOCode)
}
