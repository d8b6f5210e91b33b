package market

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrUnknownInstrument   = errors.New("unknown instrument")
	ErrDuplicateInstrument = errors.New("instrument already registered")
)

// Symbol is the opaque identity key every order, book and execution refers to.
type Symbol string

type AssetClass int

const (
	Equity AssetClass = iota
	Bond
	Fund
	Crypto
)

var assetClassNames = map[AssetClass]string{
	Equity: "equity",
	Bond:   "bond",
	Fund:   "fund",
	Crypto: "crypto",
}

func (c AssetClass) String() string {
	if name, ok := assetClassNames[c]; ok {
		return name
	}
	return fmt.Sprintf("asset-class(%d)", int(c))
}

// AssetClassFromName is the inverse of AssetClass.String, used by config.
func AssetClassFromName(name string) (AssetClass, error) {
	for class, n := range assetClassNames {
		if n == name {
			return class, nil
		}
	}
	return 0, fmt.Errorf("unknown asset class %q", name)
}

// Instrument is the tradeable's identity plus the metadata the core consults
// but never owns. Read-only once registered.
type Instrument struct {
	Symbol    Symbol
	Name      string
	Class     AssetClass
	TradeUnit decimal.Decimal
	Currency  Currency
}

func (i Instrument) String() string {
	return string(i.Symbol)
}

// ReferencePrice is a dated market-data point for one instrument, supplied by
// an external feed. Immutable value.
type ReferencePrice struct {
	Date       time.Time
	Price      Price
	InsertedAt time.Time
}

func NewReferencePrice(date time.Time, price Price, insertedAt time.Time) ReferencePrice {
	if date.IsZero() {
		date = insertedAt
	}
	return ReferencePrice{Date: date, Price: price, InsertedAt: insertedAt}
}

// Registry is the instrument metadata lookup. It is populated at venue setup
// and consulted read-only by the matching core.
type Registry struct {
	mu          sync.RWMutex
	instruments map[Symbol]Instrument
	marks       map[Symbol]ReferencePrice
}

func NewRegistry() *Registry {
	return &Registry{
		instruments: make(map[Symbol]Instrument),
		marks:       make(map[Symbol]ReferencePrice),
	}
}

func (r *Registry) Register(inst Instrument) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.instruments[inst.Symbol]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateInstrument, inst.Symbol)
	}
	r.instruments[inst.Symbol] = inst
	return nil
}

func (r *Registry) Lookup(sym Symbol) (Instrument, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	inst, ok := r.instruments[sym]
	return inst, ok
}

func (r *Registry) SetReferencePrice(sym Symbol, mark ReferencePrice) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.instruments[sym]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownInstrument, sym)
	}
	r.marks[sym] = mark
	return nil
}

func (r *Registry) ReferencePrice(sym Symbol) (ReferencePrice, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	mark, ok := r.marks[sym]
	return mark, ok
}

// Symbols returns all registered symbols in lexical order.
func (r *Registry) Symbols() []Symbol {
	r.mu.RLock()
	defer r.mu.RUnlock()

	syms := make([]Symbol, 0, len(r.instruments))
	for sym := range r.instruments {
		syms = append(syms, sym)
	}
	sort.Slice(syms, func(i, j int) bool { return syms[i] < syms[j] })
	return syms
}
