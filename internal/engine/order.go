package engine

import (
	"errors"
	"fmt"
	"time"

	"skoll/internal/market"
)

var (
	ErrInvalidQuantity = errors.New("quantity must be greater than zero")
	ErrInvalidLimit    = errors.New("limit price must be greater than zero")
)

type Side int

const (
	Buy Side = iota
	Sell
)

func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

func (s Side) String() string {
	if s == Buy {
		return "buy"
	}
	return "sell"
}

type OrderKind int

const (
	// AtMarket orders are instructions to buy or sell immediately against the
	// best available opposing price. They never rest: any unmatched remainder
	// is discarded and reported as a rejection.
	AtMarket OrderKind = iota
	// Limit orders execute at the stated price or better and may rest on the
	// book until filled or cancelled.
	Limit
)

// OrderType is a closed tagged variant: AtMarket carries no price, Limit
// carries exactly one. No sentinel price values exist anywhere in the core.
type OrderType struct {
	kind  OrderKind
	limit market.Price
}

func Market() OrderType {
	return OrderType{kind: AtMarket}
}

func LimitAt(price market.Price) OrderType {
	return OrderType{kind: Limit, limit: price}
}

func (t OrderType) Kind() OrderKind { return t.kind }

// Limit returns the limit price; ok is false for market orders.
func (t OrderType) Limit() (market.Price, bool) {
	return t.limit, t.kind == Limit
}

func (t OrderType) String() string {
	if t.kind == AtMarket {
		return "market"
	}
	return fmt.Sprintf("limit@%s", t.limit)
}

type ExecState int

const (
	Resting ExecState = iota
	PartiallyFilled
	FullyFilled
)

// Order is one trading intent. Side and type are fixed at construction;
// remaining quantity and execution state are mutated only by the matching
// algorithm, identity only by the placer at intake.
type Order struct {
	id         uint64
	instrument market.Instrument
	side       Side
	quantity   uint64 // remaining
	total      uint64
	typ        OrderType
	state      ExecState
	acceptedAt time.Time
}

// NewOrder validates and constructs an order. No side effects, no I/O.
func NewOrder(inst market.Instrument, side Side, quantity uint64, typ OrderType) (*Order, error) {
	if quantity == 0 {
		return nil, ErrInvalidQuantity
	}
	if limit, ok := typ.Limit(); ok && !limit.IsPositive() {
		return nil, ErrInvalidLimit
	}

	return &Order{
		instrument: inst,
		side:       side,
		quantity:   quantity,
		total:      quantity,
		typ:        typ,
		state:      Resting,
	}, nil
}

func (o *Order) ID() uint64                    { return o.id }
func (o *Order) Instrument() market.Instrument { return o.instrument }
func (o *Order) Side() Side                    { return o.side }
func (o *Order) Remaining() uint64             { return o.quantity }
func (o *Order) TotalQuantity() uint64         { return o.total }
func (o *Order) Type() OrderType               { return o.typ }
func (o *Order) State() ExecState              { return o.state }
func (o *Order) AcceptedAt() time.Time         { return o.acceptedAt }

// accept stamps the placer-issued identity and arrival time. Called exactly
// once per order, at intake.
func (o *Order) accept(id uint64, at time.Time) {
	o.id = id
	o.acceptedAt = at
}

// fill consumes matched quantity. A fill larger than the remainder is a
// programming defect in the matching loop, not a recoverable condition.
func (o *Order) fill(qty uint64) {
	if qty > o.quantity {
		panic(fmt.Sprintf("order %d: fill %d exceeds remaining %d", o.id, qty, o.quantity))
	}
	o.quantity -= qty
	if o.quantity == 0 {
		o.state = FullyFilled
	} else {
		o.state = PartiallyFilled
	}
}

func (o *Order) String() string {
	return fmt.Sprintf("order %d: %s %s %d/%d %s",
		o.id, o.side, o.instrument, o.quantity, o.total, o.typ)
}
