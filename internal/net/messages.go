package net

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"skoll/internal/engine"
	"skoll/internal/market"
)

var (
	ErrInvalidMessageType = errors.New("invalid message type")
	ErrMessageTooShort    = errors.New("message too short")
)

type MessageType int

const (
	Heartbeat MessageType = iota
	NewOrder
	CancelOrder
	BookSummary
)

type Message interface {
	GetType() MessageType
}

// Message format constants.
const (
	BaseMessageHeaderLen     = 2
	NewOrderMessageFixedLen  = 1 + 1 + 8 + 1 + 2
	CancelOrderMessageMinLen = 1 + 8
	SummaryMessageMinLen     = 1
)

// Generic message type.
type BaseMessage struct {
	TypeOf MessageType // 2 bytes
}

func (m BaseMessage) GetType() MessageType {
	return m.TypeOf
}

func parseMessage(msg []byte) (Message, error) {
	if len(msg) < BaseMessageHeaderLen {
		return BaseMessage{}, fmt.Errorf("%w: missing header", ErrMessageTooShort)
	}

	typeOf := MessageType(binary.BigEndian.Uint16(msg[0:2]))
	msg = msg[2:]
	switch typeOf {
	case Heartbeat:
		// Keepalive; carries no body.
		return BaseMessage{TypeOf: Heartbeat}, nil
	case NewOrder:
		return parseNewOrder(msg)
	case CancelOrder:
		return parseCancelOrder(msg)
	case BookSummary:
		return parseSummary(msg)
	default:
		return BaseMessage{}, ErrInvalidMessageType
	}
}

// NewOrderMessage carries one order intent. The limit price travels as its
// decimal literal; the denominating currency is resolved server-side from the
// instrument, so the wire never states one.
type NewOrderMessage struct {
	BaseMessage
	Side     engine.Side      // 1 byte
	Kind     engine.OrderKind // 1 byte
	Quantity uint64           // 8 bytes
	Symbol   string           // 1-byte length prefix
	Price    string           // 2-byte length prefix, empty for market orders
}

func parseNewOrder(msg []byte) (NewOrderMessage, error) {
	m := NewOrderMessage{BaseMessage: BaseMessage{TypeOf: NewOrder}}
	if len(msg) < NewOrderMessageFixedLen {
		return m, ErrMessageTooShort
	}

	m.Side = engine.Side(msg[0])
	m.Kind = engine.OrderKind(msg[1])
	m.Quantity = binary.BigEndian.Uint64(msg[2:10])

	symLen := int(msg[10])
	if len(msg) < 11+symLen+2 {
		return m, ErrMessageTooShort
	}
	m.Symbol = string(msg[11 : 11+symLen])

	rest := msg[11+symLen:]
	priceLen := int(binary.BigEndian.Uint16(rest[:2]))
	if len(rest) < 2+priceLen {
		return m, ErrMessageTooShort
	}
	m.Price = string(rest[2 : 2+priceLen])

	return m, nil
}

// EncodeHeartbeat builds the wire form of a keepalive. Used by clients.
func EncodeHeartbeat() []byte {
	return binary.BigEndian.AppendUint16(nil, uint16(Heartbeat))
}

// EncodeNewOrder builds the wire form of a new-order message. Used by clients.
func EncodeNewOrder(side engine.Side, kind engine.OrderKind, symbol string, price string, qty uint64) []byte {
	buf := make([]byte, 0, BaseMessageHeaderLen+NewOrderMessageFixedLen+len(symbol)+len(price))
	buf = binary.BigEndian.AppendUint16(buf, uint16(NewOrder))
	buf = append(buf, byte(side), byte(kind))
	buf = binary.BigEndian.AppendUint64(buf, qty)
	buf = append(buf, byte(len(symbol)))
	buf = append(buf, symbol...)
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(price)))
	buf = append(buf, price...)
	return buf
}

// Order materializes the engine order, consulting the instrument registry for
// identity and price currency.
func (m NewOrderMessage) Order(reg *market.Registry) (*engine.Order, error) {
	inst, ok := reg.Lookup(market.Symbol(m.Symbol))
	if !ok {
		return nil, fmt.Errorf("%w: %s", market.ErrUnknownInstrument, m.Symbol)
	}

	typ := engine.Market()
	if m.Kind == engine.Limit {
		price, err := market.PriceFromString(inst.Currency, m.Price)
		if err != nil {
			return nil, err
		}
		typ = engine.LimitAt(price)
	}
	return engine.NewOrder(inst, m.Side, m.Quantity, typ)
}

type CancelOrderMessage struct {
	BaseMessage
	Symbol  string // 1-byte length prefix
	OrderID uint64 // 8 bytes
}

func parseCancelOrder(msg []byte) (CancelOrderMessage, error) {
	m := CancelOrderMessage{BaseMessage: BaseMessage{TypeOf: CancelOrder}}
	if len(msg) < CancelOrderMessageMinLen {
		return m, ErrMessageTooShort
	}
	symLen := int(msg[0])
	if len(msg) < 1+symLen+8 {
		return m, ErrMessageTooShort
	}
	m.Symbol = string(msg[1 : 1+symLen])
	m.OrderID = binary.BigEndian.Uint64(msg[1+symLen : 1+symLen+8])
	return m, nil
}

// EncodeCancelOrder builds the wire form of a cancel request.
func EncodeCancelOrder(symbol string, orderID uint64) []byte {
	buf := make([]byte, 0, BaseMessageHeaderLen+1+len(symbol)+8)
	buf = binary.BigEndian.AppendUint16(buf, uint16(CancelOrder))
	buf = append(buf, byte(len(symbol)))
	buf = append(buf, symbol...)
	buf = binary.BigEndian.AppendUint64(buf, orderID)
	return buf
}

type SummaryMessage struct {
	BaseMessage
	Symbol string // 1-byte length prefix
}

func parseSummary(msg []byte) (SummaryMessage, error) {
	m := SummaryMessage{BaseMessage: BaseMessage{TypeOf: BookSummary}}
	if len(msg) < SummaryMessageMinLen {
		return m, ErrMessageTooShort
	}
	symLen := int(msg[0])
	if len(msg) < 1+symLen {
		return m, ErrMessageTooShort
	}
	m.Symbol = string(msg[1 : 1+symLen])
	return m, nil
}

// EncodeSummary builds the wire form of a book summary request.
func EncodeSummary(symbol string) []byte {
	buf := make([]byte, 0, BaseMessageHeaderLen+1+len(symbol))
	buf = binary.BigEndian.AppendUint16(buf, uint16(BookSummary))
	buf = append(buf, byte(len(symbol)))
	buf = append(buf, symbol...)
	return buf
}

type ReportKind int

const (
	PlacementReport ReportKind = iota
	ExecutionReport
	CancelReport
	RejectionReport
	SummaryReport
)

// Report is one server-to-client notification.
type Report struct {
	Kind           ReportKind // 1 byte
	Timestamp      uint64     // 8 bytes, unix nanos
	OrderID        uint64     // 8 bytes
	CounterOrderID uint64     // 8 bytes, execution counterparty
	Quantity       uint64     // 8 bytes
	Price          string     // 2-byte length prefix
	Text           string     // 2-byte length prefix; reason or summary
}

const reportFixedHeaderLen = 1 + 8 + 8 + 8 + 8 + 2 + 2

// Serialize converts the report to be sent on the wire.
func (r *Report) Serialize() []byte {
	buf := make([]byte, 0, reportFixedHeaderLen+len(r.Price)+len(r.Text))
	buf = append(buf, byte(r.Kind))
	buf = binary.BigEndian.AppendUint64(buf, r.Timestamp)
	buf = binary.BigEndian.AppendUint64(buf, r.OrderID)
	buf = binary.BigEndian.AppendUint64(buf, r.CounterOrderID)
	buf = binary.BigEndian.AppendUint64(buf, r.Quantity)
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(r.Price)))
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(r.Text)))
	buf = append(buf, r.Price...)
	buf = append(buf, r.Text...)
	return buf
}

// ReadReport reads one report off the wire. Used by clients.
func ReadReport(r io.Reader) (*Report, error) {
	header := make([]byte, reportFixedHeaderLen)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, err
	}

	rep := &Report{
		Kind:           ReportKind(header[0]),
		Timestamp:      binary.BigEndian.Uint64(header[1:9]),
		OrderID:        binary.BigEndian.Uint64(header[9:17]),
		CounterOrderID: binary.BigEndian.Uint64(header[17:25]),
		Quantity:       binary.BigEndian.Uint64(header[25:33]),
	}
	priceLen := int(binary.BigEndian.Uint16(header[33:35]))
	textLen := int(binary.BigEndian.Uint16(header[35:37]))

	varBuf := make([]byte, priceLen+textLen)
	if _, err := io.ReadFull(r, varBuf); err != nil {
		return nil, err
	}
	rep.Price = string(varBuf[:priceLen])
	rep.Text = string(varBuf[priceLen:])
	return rep, nil
}

// reportsFor translates one submission outcome into its wire reports: one per
// execution, or a single placement/rejection.
func reportsFor(o *engine.Order, resp engine.Response, now uint64) []*Report {
	switch resp.Kind {
	case engine.Executed:
		reports := make([]*Report, 0, len(resp.Executions))
		for _, exec := range resp.Executions {
			counter := exec.SellOrderID
			if o.Side() == engine.Sell {
				counter = exec.BuyOrderID
			}
			reports = append(reports, &Report{
				Kind:           ExecutionReport,
				Timestamp:      now,
				OrderID:        o.ID(),
				CounterOrderID: counter,
				Quantity:       exec.Quantity,
				Price:          exec.Price.String(),
			})
		}
		return reports
	case engine.Placement:
		return []*Report{{
			Kind:      PlacementReport,
			Timestamp: now,
			OrderID:   resp.OrderID,
			Quantity:  o.Remaining(),
		}}
	case engine.Rejected:
		return []*Report{{
			Kind:      RejectionReport,
			Timestamp: now,
			OrderID:   o.ID(),
			Text:      resp.Reason,
		}}
	default:
		return nil
	}
}
