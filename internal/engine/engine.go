package engine

// Engine routes submissions to per-instrument order books. Each instrument
// has at most one book; books share no mutable state and may be driven in
// parallel.

import (
	"fmt"
	"sync"

	"skoll/internal/market"
)

type Engine struct {
	registry *market.Registry

	mu    sync.RWMutex
	books map[market.Symbol]*OrderBook
}

func New(registry *market.Registry) *Engine {
	return &Engine{
		registry: registry,
		books:    make(map[market.Symbol]*OrderBook),
	}
}

func (e *Engine) Registry() *market.Registry {
	return e.registry
}

// RegisterBook creates the book for a registered instrument. At most one book
// per instrument ever exists.
func (e *Engine) RegisterBook(sym market.Symbol) (*OrderBook, error) {
	inst, ok := e.registry.Lookup(sym)
	if !ok {
		return nil, fmt.Errorf("%w: %s", market.ErrUnknownInstrument, sym)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if book, ok := e.books[sym]; ok {
		return book, nil
	}
	book := NewOrderBook(inst)
	e.books[sym] = book
	return book, nil
}

// Book resolves the order book for an instrument.
func (e *Engine) Book(sym market.Symbol) (*OrderBook, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	book, ok := e.books[sym]
	return book, ok
}
