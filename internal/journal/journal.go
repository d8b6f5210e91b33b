// Package journal persists accepted submissions so that book state can be
// rebuilt by replaying the submission sequence against fresh books.
package journal

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"

	"skoll/internal/engine"
	"skoll/internal/market"
)

var ErrCorruptRecord = errors.New("corrupt journal record")

// Journal is an append-only pebble store of submissions keyed by intake
// sequence, so iteration order is submission order.
type Journal struct {
	db *pebble.DB
}

// Open opens (or creates) a journal at dir.
func Open(dir string) (*Journal, error) {
	return open(dir, &pebble.Options{})
}

// OpenMem opens an in-memory journal, for tests.
func OpenMem() (*Journal, error) {
	return open("", &pebble.Options{FS: vfs.NewMem()})
}

func open(dir string, opts *pebble.Options) (*Journal, error) {
	db, err := pebble.Open(dir, opts)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	return &Journal{db: db}, nil
}

func (j *Journal) Close() error {
	return j.db.Close()
}

// Append records one accepted submission under its intake sequence.
// Implements engine.Journal.
func (j *Journal) Append(seq uint64, o *engine.Order) error {
	return j.db.Set(seqKey(seq), encodeOrder(o), pebble.Sync)
}

// LastSeq returns the highest journaled sequence, ok false when empty.
func (j *Journal) LastSeq() (uint64, bool, error) {
	iter, err := j.db.NewIter(nil)
	if err != nil {
		return 0, false, err
	}
	defer iter.Close()

	if !iter.Last() {
		return 0, false, iter.Error()
	}
	key := iter.Key()
	if len(key) != 8 {
		return 0, false, ErrCorruptRecord
	}
	return binary.BigEndian.Uint64(key), true, nil
}

// Replay walks the journal in sequence order, reconstructing each submission
// against the given instrument registry and handing it to fn.
func (j *Journal) Replay(reg *market.Registry, fn func(seq uint64, o *engine.Order) error) error {
	iter, err := j.db.NewIter(nil)
	if err != nil {
		return err
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		key := iter.Key()
		if len(key) != 8 {
			return ErrCorruptRecord
		}
		seq := binary.BigEndian.Uint64(key)

		o, err := decodeOrder(iter.Value(), reg)
		if err != nil {
			return fmt.Errorf("journal entry %d: %w", seq, err)
		}
		if err := fn(seq, o); err != nil {
			return err
		}
	}
	return iter.Error()
}

func seqKey(seq uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, seq)
	return key
}

// Record layout, big-endian:
// [side:1][kind:1][qty:8][symLen:1][sym][curLen:1][cur][priceLen:2][price]
// cur and price are empty for market orders; price is the decimal literal.
func encodeOrder(o *engine.Order) []byte {
	sym := []byte(o.Instrument().Symbol)
	var cur, price []byte
	if limit, ok := o.Type().Limit(); ok {
		cur = []byte(limit.Currency().ISOCode)
		price = []byte(limit.Value().String())
	}

	buf := make([]byte, 0, 1+1+8+1+len(sym)+1+len(cur)+2+len(price))
	buf = append(buf, byte(o.Side()), byte(o.Type().Kind()))
	buf = binary.BigEndian.AppendUint64(buf, o.TotalQuantity())
	buf = append(buf, byte(len(sym)))
	buf = append(buf, sym...)
	buf = append(buf, byte(len(cur)))
	buf = append(buf, cur...)
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(price)))
	buf = append(buf, price...)
	return buf
}

func decodeOrder(buf []byte, reg *market.Registry) (*engine.Order, error) {
	if len(buf) < 11 {
		return nil, ErrCorruptRecord
	}
	side := engine.Side(buf[0])
	kind := engine.OrderKind(buf[1])
	qty := binary.BigEndian.Uint64(buf[2:10])

	rest := buf[10:]
	sym, rest, err := takeString(rest, int(rest[0]), 1)
	if err != nil {
		return nil, err
	}
	if len(rest) < 1 {
		return nil, ErrCorruptRecord
	}
	cur, rest, err := takeString(rest, int(rest[0]), 1)
	if err != nil {
		return nil, err
	}
	if len(rest) < 2 {
		return nil, ErrCorruptRecord
	}
	priceStr, rest, err := takeString(rest, int(binary.BigEndian.Uint16(rest[:2])), 2)
	if err != nil {
		return nil, err
	}
	if len(rest) != 0 {
		return nil, ErrCorruptRecord
	}

	inst, ok := reg.Lookup(market.Symbol(sym))
	if !ok {
		return nil, fmt.Errorf("%w: %s", market.ErrUnknownInstrument, sym)
	}

	typ := engine.Market()
	if kind == engine.Limit {
		price, err := market.PriceFromString(market.CurrencyFromCode(cur), priceStr)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorruptRecord, err)
		}
		typ = engine.LimitAt(price)
	}

	return engine.NewOrder(inst, side, qty, typ)
}

// takeString consumes a length prefix of prefixLen bytes (already decoded as
// n) and the n bytes that follow.
func takeString(buf []byte, n, prefixLen int) (string, []byte, error) {
	if len(buf) < prefixLen+n {
		return "", nil, ErrCorruptRecord
	}
	return string(buf[prefixLen : prefixLen+n]), buf[prefixLen+n:], nil
}
