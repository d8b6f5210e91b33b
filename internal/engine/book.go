package engine

import (
	"fmt"
	"sync"

	"github.com/tidwall/btree"

	"skoll/internal/market"
)

// OrderBook holds the resting orders of a single instrument and owns the
// matching algorithm. All mutation is serialized behind one mutex so the
// multi-step matching sequence is observed atomically (one writer at a time
// per book; books of different instruments share nothing).
type OrderBook struct {
	mu         sync.Mutex
	instrument market.Instrument

	// Levels sorted by price, ascending. Only limit buckets are ever
	// materialized: market orders must not rest.
	levels *btree.BTreeG[*level]

	// Resting order index for cancellation by identity.
	resting map[uint64]*level

	// Book-keeping for summaries.
	buyQuantity  uint64
	sellQuantity uint64
	nBuyOrders   uint64
	nSellOrders  uint64
}

func NewOrderBook(inst market.Instrument) *OrderBook {
	levels := btree.NewBTreeG(func(a, b *level) bool {
		ap, aok := a.key.Price()
		bp, bok := b.key.Price()
		if !aok || !bok {
			panic("market bucket materialized in book")
		}
		cmp, err := ap.Cmp(bp)
		if err != nil {
			panic(fmt.Sprintf("book %s: %v", a.key, err))
		}
		return cmp < 0
	})
	return &OrderBook{
		instrument: inst,
		levels:     levels,
		resting:    make(map[uint64]*level),
	}
}

func (b *OrderBook) Instrument() market.Instrument {
	return b.instrument
}

// Submit runs the incoming order through continuous price-time-priority
// matching, then rests any limit remainder. Exactly one response per call;
// executions already produced are never rolled back, only the remainder is
// rejected or rested.
func (b *OrderBook) Submit(o *Order) (Response, []Execution) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if limit, ok := o.typ.Limit(); ok && !limit.Currency().Equal(b.instrument.Currency) {
		return rejectionResponse(ErrCrossCurrency), nil
	}

	execs := b.match(o)

	if o.quantity > 0 {
		if o.typ.Kind() == AtMarket {
			// Market orders never rest; the unmatched remainder is discarded.
			if len(execs) == 0 {
				return rejectionResponse(ErrUnfillableMarketOrder), nil
			}
			return executionResponse(execs), execs
		}
		b.rest(o)
		if len(execs) == 0 {
			return placementResponse(o.id), nil
		}
	}
	return executionResponse(execs), execs
}

// match consumes eligible opposing liquidity while any remains. Time priority
// within a level is queue order; price priority across levels is btree order.
// No step reads the clock or iterates an unordered container.
func (b *OrderBook) match(o *Order) []Execution {
	var execs []Execution
	for o.quantity > 0 {
		lvl := b.bestOpposing(o)
		if lvl == nil {
			break
		}

		counter := lvl.head(o.side.Opposite())
		if counter.typ.Kind() == AtMarket {
			// Resting market orders are forbidden; finding one is a defect.
			panic(fmt.Sprintf("book %s: market order %d found resting", b.instrument, counter.id))
		}

		// The resting order's price was the one publicly committed, so the
		// trade prints there; price improvement goes to the incoming order.
		price, _ := counter.typ.Limit()
		qty := min(o.quantity, counter.quantity)

		if o.side == Buy {
			execs = append(execs, newExecution(counter, o, price, qty))
		} else {
			execs = append(execs, newExecution(o, counter, price, qty))
		}

		o.fill(qty)
		counter.fill(qty)
		b.trackRemoved(counter.side, qty, counter.quantity == 0)

		if counter.quantity == 0 {
			lvl.dropHead(counter.side)
			delete(b.resting, counter.id)
		}
		if lvl.empty() {
			b.levels.Delete(lvl)
		}
	}
	return execs
}

// bestOpposing returns the best-priced level with resting orders on the
// opposing side that the incoming order is eligible to trade with, or nil.
func (b *OrderBook) bestOpposing(o *Order) *level {
	opp := o.side.Opposite()

	var best *level
	scan := func(l *level) bool {
		if l.head(opp) == nil {
			return true
		}
		best = l
		return false
	}
	if o.side == Buy {
		// Lowest-priced resting sell first.
		b.levels.Scan(scan)
	} else {
		// Highest-priced resting buy first.
		b.levels.Reverse(scan)
	}
	if best == nil {
		return nil
	}

	// A market order takes the best available price unconditionally; a limit
	// order only trades when the opposing price satisfies its limit.
	if limit, ok := o.typ.Limit(); ok {
		cmp, err := limit.Cmp(best.key.price)
		if err != nil {
			panic(fmt.Sprintf("book %s: %v", b.instrument, err))
		}
		if o.side == Buy && cmp < 0 {
			return nil
		}
		if o.side == Sell && cmp > 0 {
			return nil
		}
	}
	return best
}

// rest inserts the remainder of a limit order at the tail of its own bucket.
func (b *OrderBook) rest(o *Order) {
	if o.typ.Kind() != Limit {
		panic(fmt.Sprintf("book %s: attempt to rest %s order %d", b.instrument, o.typ, o.id))
	}

	key := bucketFor(o)
	lvl, ok := b.levels.GetMut(&level{key: key})
	if !ok {
		lvl = newLevel(key)
		b.levels.Set(lvl)
	}
	lvl.enqueue(o)
	b.resting[o.id] = lvl

	if o.side == Buy {
		b.buyQuantity += o.quantity
		b.nBuyOrders++
	} else {
		b.sellQuantity += o.quantity
		b.nSellOrders++
	}
}

// Cancel removes a resting order by identity. The queue around it keeps its
// arrival order. The cancellation workflow itself lives outside the core.
func (b *OrderBook) Cancel(orderID uint64) Response {
	b.mu.Lock()
	defer b.mu.Unlock()

	lvl, ok := b.resting[orderID]
	if !ok {
		return rejectionResponse(ErrUnknownOrder)
	}
	o, ok := lvl.remove(orderID)
	if !ok {
		panic(fmt.Sprintf("book %s: resting index points at level without order %d", b.instrument, orderID))
	}
	delete(b.resting, orderID)
	b.trackRemoved(o.side, o.quantity, true)
	if lvl.empty() {
		b.levels.Delete(lvl)
	}
	return cancellationResponse(orderID)
}

func (b *OrderBook) trackRemoved(side Side, qty uint64, gone bool) {
	switch side {
	case Buy:
		b.buyQuantity -= qty
		if gone {
			b.nBuyOrders--
		}
	case Sell:
		b.sellQuantity -= qty
		if gone {
			b.nSellOrders--
		}
	}
}

// OrderView is a read-only copy of one resting order.
type OrderView struct {
	ID        uint64
	Remaining uint64
	Total     uint64
}

// LevelView is a read-only copy of one price level, ascending queue order.
type LevelView struct {
	Price market.Price
	Buys  []OrderView
	Sells []OrderView
}

// View snapshots the whole book, levels ascending by price. Used by tests,
// summaries and the determinism/replay property.
func (b *OrderBook) View() []LevelView {
	b.mu.Lock()
	defer b.mu.Unlock()

	views := make([]LevelView, 0, b.levels.Len())
	b.levels.Scan(func(l *level) bool {
		v := LevelView{Price: l.key.price}
		for _, o := range l.buys {
			v.Buys = append(v.Buys, OrderView{ID: o.id, Remaining: o.quantity, Total: o.total})
		}
		for _, o := range l.sells {
			v.Sells = append(v.Sells, OrderView{ID: o.id, Remaining: o.quantity, Total: o.total})
		}
		views = append(views, v)
		return true
	})
	return views
}

// BestBid returns the highest price with resting buy orders.
func (b *OrderBook) BestBid() (market.Price, bool) {
	return b.bestPrice(Buy)
}

// BestAsk returns the lowest price with resting sell orders.
func (b *OrderBook) BestAsk() (market.Price, bool) {
	return b.bestPrice(Sell)
}

func (b *OrderBook) bestPrice(side Side) (market.Price, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var found *level
	scan := func(l *level) bool {
		if l.head(side) == nil {
			return true
		}
		found = l
		return false
	}
	if side == Sell {
		b.levels.Scan(scan)
	} else {
		b.levels.Reverse(scan)
	}
	if found == nil {
		return market.Price{}, false
	}
	return found.key.price, true
}

// Depth reports resting order counts and quantities per side.
func (b *OrderBook) Depth() (nBuys, buyQty, nSells, sellQty uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.nBuyOrders, b.buyQuantity, b.nSellOrders, b.sellQuantity
}
