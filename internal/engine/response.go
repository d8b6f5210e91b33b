package engine

import (
	"errors"
	"fmt"

	"skoll/internal/market"
)

var (
	ErrCrossCurrency         = errors.New("order currency does not match book currency")
	ErrUnfillableMarketOrder = errors.New("market order cannot be filled")
	ErrBookNotFound          = errors.New("book not found")
	ErrUnknownOrder          = errors.New("unknown order")
	ErrIntakeFull            = errors.New("intake queue full")
)

// Execution is the fill record for one matched pair. Produced exactly once
// per match, returned to the caller, never retained or mutated by the book.
type Execution struct {
	SellOrderID uint64
	BuyOrderID  uint64
	Price       market.Price
	Quantity    uint64
}

func newExecution(sell, buy *Order, price market.Price, qty uint64) Execution {
	return Execution{
		SellOrderID: sell.id,
		BuyOrderID:  buy.id,
		Price:       price,
		Quantity:    qty,
	}
}

func (e Execution) String() string {
	return fmt.Sprintf("execution: sell %d x buy %d, %d @ %s",
		e.SellOrderID, e.BuyOrderID, e.Quantity, e.Price)
}

type ResponseKind int

const (
	// Placement: the order rested on the book without executing.
	Placement ResponseKind = iota
	// Executed: one or more fills occurred; any limit remainder rests.
	Executed
	// Cancelled: the order was removed from its queue by identity.
	Cancelled
	// Rejected: nothing executed and nothing rests.
	Rejected
	// NoOrder: the intake queue was empty. Normal, not a defect.
	NoOrder
)

var responseKindNames = map[ResponseKind]string{
	Placement: "placement",
	Executed:  "executed",
	Cancelled: "cancelled",
	Rejected:  "rejected",
	NoOrder:   "no-order",
}

func (k ResponseKind) String() string {
	if name, ok := responseKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("response-kind(%d)", int(k))
}

// Response is the single terminal outcome of one submission.
type Response struct {
	Kind       ResponseKind
	OrderID    uint64      // Placement and Cancelled
	Executions []Execution // Executed
	Reason     string      // Rejected
}

func placementResponse(orderID uint64) Response {
	return Response{Kind: Placement, OrderID: orderID}
}

func executionResponse(execs []Execution) Response {
	return Response{Kind: Executed, Executions: execs}
}

func cancellationResponse(orderID uint64) Response {
	return Response{Kind: Cancelled, OrderID: orderID}
}

func rejectionResponse(reason error) Response {
	return Response{Kind: Rejected, Reason: reason.Error()}
}

func noOrderResponse() Response {
	return Response{Kind: NoOrder}
}
