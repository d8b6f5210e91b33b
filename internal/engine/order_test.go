package engine_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skoll/internal/engine"
	"skoll/internal/market"
)

func TestNewOrder_Validation(t *testing.T) {
	limit := mustPrice(t, market.USD, "100")
	zeroLimit := mustPrice(t, market.USD, "0")
	negativeLimit := mustPrice(t, market.USD, "-1")

	tests := []struct {
		name    string
		qty     uint64
		typ     engine.OrderType
		wantErr error
	}{
		{"zero quantity market", 0, engine.Market(), engine.ErrInvalidQuantity},
		{"zero quantity limit", 0, engine.LimitAt(limit), engine.ErrInvalidQuantity},
		{"zero limit price", 10, engine.LimitAt(zeroLimit), engine.ErrInvalidLimit},
		{"negative limit price", 10, engine.LimitAt(negativeLimit), engine.ErrInvalidLimit},
		{"valid limit", 10, engine.LimitAt(limit), nil},
		{"valid market", 10, engine.Market(), nil},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			o, err := engine.NewOrder(aapl, engine.Buy, tc.qty, tc.typ)
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				assert.Nil(t, o)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.qty, o.Remaining())
			assert.Equal(t, tc.qty, o.TotalQuantity())
			assert.Equal(t, engine.Resting, o.State())
		})
	}
}

func TestNewOrder_SideFixedAtConstruction(t *testing.T) {
	o, err := engine.NewOrder(aapl, engine.Sell, 5, engine.Market())
	require.NoError(t, err)
	assert.Equal(t, engine.Sell, o.Side())
	assert.Equal(t, engine.Buy, o.Side().Opposite())
}

func TestOrderType_Variant(t *testing.T) {
	m := engine.Market()
	assert.Equal(t, engine.AtMarket, m.Kind())
	_, ok := m.Limit()
	assert.False(t, ok)

	price := mustPrice(t, market.USD, "12.5")
	l := engine.LimitAt(price)
	assert.Equal(t, engine.Limit, l.Kind())
	got, ok := l.Limit()
	require.True(t, ok)
	assert.True(t, got.Equal(price))
}

func TestOrderStateTransitions(t *testing.T) {
	f := newFixture(t, aapl)

	resting := limitOrder(t, aapl, engine.Sell, 10, "100")
	require.Equal(t, engine.Placement, f.submit(resting).Kind)
	assert.Equal(t, engine.Resting, resting.State())

	incoming := limitOrder(t, aapl, engine.Buy, 4, "100")
	require.Equal(t, engine.Executed, f.submit(incoming).Kind)
	assert.Equal(t, engine.PartiallyFilled, resting.State())
	assert.Equal(t, engine.FullyFilled, incoming.State())

	finisher := limitOrder(t, aapl, engine.Buy, 6, "100")
	require.Equal(t, engine.Executed, f.submit(finisher).Kind)
	assert.Equal(t, engine.FullyFilled, resting.State())
	assert.Zero(t, resting.Remaining())
}
