package engine

import (
	"fmt"

	"skoll/internal/market"
)

// BucketKey partitions the book into price levels. It is a closed tagged
// variant so a market bucket can never collide with a limit price and no
// sentinel price is needed for "at market".
type BucketKey struct {
	kind  OrderKind
	price market.Price
}

func MarketBucket() BucketKey {
	return BucketKey{kind: AtMarket}
}

func LimitBucket(price market.Price) BucketKey {
	return BucketKey{kind: Limit, price: price}
}

func (k BucketKey) Kind() OrderKind { return k.kind }

// Price returns the bucket's limit price; ok is false for the market bucket.
func (k BucketKey) Price() (market.Price, bool) {
	return k.price, k.kind == Limit
}

func (k BucketKey) String() string {
	if k.kind == AtMarket {
		return "market"
	}
	return k.price.String()
}

// bucketFor derives the resting bucket of an order from its type.
func bucketFor(o *Order) BucketKey {
	if limit, ok := o.typ.Limit(); ok {
		return LimitBucket(limit)
	}
	return MarketBucket()
}

// level holds the resting orders of one bucket, one FIFO per side. Arrival
// order within a side is time priority and is never disturbed except by
// removal.
type level struct {
	key   BucketKey
	buys  []*Order
	sells []*Order
}

func newLevel(key BucketKey) *level {
	return &level{key: key}
}

func (l *level) queue(side Side) *[]*Order {
	if side == Buy {
		return &l.buys
	}
	return &l.sells
}

// enqueue appends to the tail of the order's side.
func (l *level) enqueue(o *Order) {
	q := l.queue(o.side)
	*q = append(*q, o)
}

// head returns the oldest resting order on the given side, nil when empty.
func (l *level) head(side Side) *Order {
	q := *l.queue(side)
	if len(q) == 0 {
		return nil
	}
	return q[0]
}

// dropHead removes the oldest order on the given side.
func (l *level) dropHead(side Side) {
	q := l.queue(side)
	if len(*q) == 0 {
		panic(fmt.Sprintf("level %s: dropHead on empty %s queue", l.key, side))
	}
	(*q)[0] = nil
	*q = (*q)[1:]
}

// remove deletes an order by identity without reordering the survivors.
// Supports external cancellation flows.
func (l *level) remove(orderID uint64) (*Order, bool) {
	for _, side := range []Side{Buy, Sell} {
		q := l.queue(side)
		for i, o := range *q {
			if o.id == orderID {
				*q = append((*q)[:i:i], (*q)[i+1:]...)
				return o, true
			}
		}
	}
	return nil, false
}

// empty reports whether the level is reclaimable by the owning book.
func (l *level) empty() bool {
	return len(l.buys) == 0 && len(l.sells) == 0
}
