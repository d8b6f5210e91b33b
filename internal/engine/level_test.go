package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skoll/internal/market"
)

func testLevelOrder(t *testing.T, id uint64, side Side) *Order {
	t.Helper()
	price, err := market.PriceFromString(market.USD, "100")
	require.NoError(t, err)
	o, err := NewOrder(market.Instrument{Symbol: "TEST", Currency: market.USD}, side, 10, LimitAt(price))
	require.NoError(t, err)
	o.id = id
	return o
}

func TestLevel_FIFOPerSide(t *testing.T) {
	price, err := market.PriceFromString(market.USD, "100")
	require.NoError(t, err)
	lvl := newLevel(LimitBucket(price))

	lvl.enqueue(testLevelOrder(t, 1, Buy))
	lvl.enqueue(testLevelOrder(t, 2, Buy))
	lvl.enqueue(testLevelOrder(t, 3, Sell))

	// Heads are the oldest arrival per side.
	assert.Equal(t, uint64(1), lvl.head(Buy).id)
	assert.Equal(t, uint64(3), lvl.head(Sell).id)

	lvl.dropHead(Buy)
	assert.Equal(t, uint64(2), lvl.head(Buy).id)
	lvl.dropHead(Buy)
	assert.Nil(t, lvl.head(Buy))
	assert.False(t, lvl.empty(), "sell side still populated")

	lvl.dropHead(Sell)
	assert.True(t, lvl.empty())
}

func TestLevel_RemoveByIdentityPreservesOrder(t *testing.T) {
	price, err := market.PriceFromString(market.USD, "100")
	require.NoError(t, err)
	lvl := newLevel(LimitBucket(price))

	for id := uint64(1); id <= 4; id++ {
		lvl.enqueue(testLevelOrder(t, id, Sell))
	}

	removed, ok := lvl.remove(2)
	require.True(t, ok)
	assert.Equal(t, uint64(2), removed.id)

	var remaining []uint64
	for _, o := range lvl.sells {
		remaining = append(remaining, o.id)
	}
	assert.Equal(t, []uint64{1, 3, 4}, remaining)

	_, ok = lvl.remove(99)
	assert.False(t, ok)
}

func TestBucketKey_Variant(t *testing.T) {
	mk := MarketBucket()
	assert.Equal(t, AtMarket, mk.Kind())
	_, ok := mk.Price()
	assert.False(t, ok)

	price, err := market.PriceFromString(market.USD, "55")
	require.NoError(t, err)
	lk := LimitBucket(price)
	assert.Equal(t, Limit, lk.Kind())
	got, ok := lk.Price()
	require.True(t, ok)
	assert.True(t, got.Equal(price))
}
