package journal_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skoll/internal/engine"
	"skoll/internal/journal"
	"skoll/internal/market"
	"skoll/internal/utils"
)

var tstInst = market.Instrument{Symbol: "AAPL", Name: "Apple Inc.", Class: market.Equity, Currency: market.USD}

func newVenue(t *testing.T) (*market.Registry, *engine.Engine, *engine.Placer) {
	t.Helper()
	reg := market.NewRegistry()
	require.NoError(t, reg.Register(tstInst))
	eng := engine.New(reg)
	_, err := eng.RegisterBook(tstInst.Symbol)
	require.NoError(t, err)
	return reg, eng, engine.NewPlacer(eng, utils.NewFakeClock(time.Unix(1700000000, 0)))
}

func limitOrder(t *testing.T, side engine.Side, qty uint64, price string) *engine.Order {
	t.Helper()
	p, err := market.PriceFromString(market.USD, price)
	require.NoError(t, err)
	o, err := engine.NewOrder(tstInst, side, qty, engine.LimitAt(p))
	require.NoError(t, err)
	return o
}

func TestJournal_ReplayRebuildsBookState(t *testing.T) {
	jnl, err := journal.OpenMem()
	require.NoError(t, err)
	defer jnl.Close()

	// Drive a mixed sequence through a journaling placer.
	_, eng, placer := newVenue(t)
	placer.SetJournal(jnl)

	orders := []*engine.Order{
		limitOrder(t, engine.Sell, 10, "100.50"),
		limitOrder(t, engine.Sell, 4, "100.25"),
		limitOrder(t, engine.Buy, 6, "100.50"),
		limitOrder(t, engine.Buy, 3, "99.75"),
	}
	var liveExecs []engine.Execution
	for _, o := range orders {
		require.NoError(t, placer.Enqueue(o))
		liveExecs = append(liveExecs, placer.ProcessNext().Executions...)
	}
	book, ok := eng.Book(tstInst.Symbol)
	require.True(t, ok)
	liveView := book.View()

	last, ok, err := jnl.LastSeq()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint64(4), last)

	// Replay into a fresh venue: identical executions and book state.
	freshReg, freshEng, freshPlacer := newVenue(t)
	var replayExecs []engine.Execution
	err = jnl.Replay(freshReg, func(seq uint64, o *engine.Order) error {
		replayExecs = append(replayExecs, freshPlacer.Restore(seq, o).Executions...)
		return nil
	})
	require.NoError(t, err)

	freshBook, ok := freshEng.Book(tstInst.Symbol)
	require.True(t, ok)
	assert.Equal(t, liveExecs, replayExecs)
	assert.Equal(t, liveView, freshBook.View())
}

func TestJournal_MarketOrdersRoundTrip(t *testing.T) {
	jnl, err := journal.OpenMem()
	require.NoError(t, err)
	defer jnl.Close()

	reg, _, placer := newVenue(t)
	placer.SetJournal(jnl)

	o, err := engine.NewOrder(tstInst, engine.Buy, 7, engine.Market())
	require.NoError(t, err)
	require.NoError(t, placer.Enqueue(o))

	var got *engine.Order
	require.NoError(t, jnl.Replay(reg, func(seq uint64, o *engine.Order) error {
		got = o
		return nil
	}))
	require.NotNil(t, got)
	assert.Equal(t, engine.AtMarket, got.Type().Kind())
	assert.Equal(t, engine.Buy, got.Side())
	assert.Equal(t, uint64(7), got.TotalQuantity())
}

func TestJournal_ReplayUnknownInstrumentFails(t *testing.T) {
	jnl, err := journal.OpenMem()
	require.NoError(t, err)
	defer jnl.Close()

	_, _, placer := newVenue(t)
	placer.SetJournal(jnl)
	require.NoError(t, placer.Enqueue(limitOrder(t, engine.Sell, 1, "10")))

	// A registry without the instrument cannot reconstruct the submission.
	err = jnl.Replay(market.NewRegistry(), func(uint64, *engine.Order) error { return nil })
	assert.ErrorIs(t, err, market.ErrUnknownInstrument)
}

func TestJournal_LastSeqEmpty(t *testing.T) {
	jnl, err := journal.OpenMem()
	require.NoError(t, err)
	defer jnl.Close()

	_, ok, err := jnl.LastSeq()
	require.NoError(t, err)
	assert.False(t, ok)
}
