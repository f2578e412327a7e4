package book

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketsim/internal/tick"
	"marketsim/pkg/types"
)

// --- Setup & Helpers --------------------------------------------------------

func newTestBook(t *testing.T) *Book {
	t.Helper()
	return New(tick.MustConverter(0.01), true)
}

func limit(id int64, side types.Side, qty, priceTick int64) types.Order {
	return types.NewLimit(id, side, qty, priceTick, 0)
}

func market(id int64, side types.Side, qty int64) types.Order {
	return types.NewMarket(id, side, qty, 0)
}

func mustRest(t *testing.T, b *Book, o types.Order) {
	t.Helper()
	require.NoError(t, b.AddLimit(o))
}

func tradeTuples(trades []types.Trade) [][3]int64 {
	out := make([][3]int64, 0, len(trades))
	for _, tr := range trades {
		out = append(out, [3]int64{tr.MakerID, tr.PriceTick, tr.Quantity})
	}
	return out
}

// --- Resting and best prices ------------------------------------------------

func TestAddLimitAndBestPrices(t *testing.T) {
	b := newTestBook(t)
	mustRest(t, b, limit(1, types.BID, 5, 100))
	mustRest(t, b, limit(2, types.ASK, 7, 105))

	bid, ok := b.BestBid()
	require.True(t, ok)
	assert.Equal(t, Quote{Tick: 100, Quantity: 5}, bid)

	ask, ok := b.BestAsk()
	require.True(t, ok)
	assert.Equal(t, Quote{Tick: 105, Quantity: 7}, ask)
}

func TestAddLimitRejectsMarketOrder(t *testing.T) {
	b := newTestBook(t)
	assert.ErrorIs(t, b.AddLimit(market(1, types.BID, 5)), ErrWrongType)
	_, ok := b.BestBid()
	assert.False(t, ok)
}

func TestBestOnEmptyBook(t *testing.T) {
	b := newTestBook(t)
	_, ok := b.BestBid()
	assert.False(t, ok)
	_, ok = b.BestAsk()
	assert.False(t, ok)
}

// --- End-to-end matching scenarios ------------------------------------------

// Rest then hit: a market order fully consumes the single resting ask.
func TestRestThenHit(t *testing.T) {
	b := newTestBook(t)
	mustRest(t, b, limit(1, types.ASK, 5, 100))

	ask, ok := b.BestAsk()
	require.True(t, ok)
	assert.Equal(t, Quote{Tick: 100, Quantity: 5}, ask)

	trades, err := b.AddOrder(market(2, types.BID, 5))
	require.NoError(t, err)
	assert.Equal(t, [][3]int64{{1, 100, 5}}, tradeTuples(trades))

	_, ok = b.BestAsk()
	assert.False(t, ok)
}

// FIFO tie-break: earlier arrival at a level trades first.
func TestFIFOAtPriceLevel(t *testing.T) {
	b := newTestBook(t)
	mustRest(t, b, limit(1, types.ASK, 2, 100))
	mustRest(t, b, limit(2, types.ASK, 2, 100))

	trades, err := b.AddOrder(market(3, types.BID, 3))
	require.NoError(t, err)
	assert.Equal(t, [][3]int64{{1, 100, 2}, {2, 100, 1}}, tradeTuples(trades))

	ask, ok := b.BestAsk()
	require.True(t, ok)
	assert.Equal(t, Quote{Tick: 100, Quantity: 1}, ask)
}

// Multi-level sweep with remainder rest at the aggressor's own tick.
func TestLimitCrossesMultipleLevelsThenPostsRemainder(t *testing.T) {
	b := newTestBook(t)
	mustRest(t, b, limit(1, types.ASK, 2, 100))
	mustRest(t, b, limit(2, types.ASK, 2, 101))

	trades, err := b.AddOrder(limit(3, types.BID, 5, 102))
	require.NoError(t, err)
	assert.Equal(t, [][3]int64{{1, 100, 2}, {2, 101, 2}}, tradeTuples(trades))

	bid, ok := b.BestBid()
	require.True(t, ok)
	assert.Equal(t, Quote{Tick: 102, Quantity: 1}, bid)
	_, ok = b.BestAsk()
	assert.False(t, ok)
}

// A limit exactly at the best opposite tick consumes that tick only.
func TestLimitAtBestOppositeConsumesOneLevel(t *testing.T) {
	b := newTestBook(t)
	mustRest(t, b, limit(1, types.ASK, 4, 100))
	mustRest(t, b, limit(2, types.ASK, 4, 101))

	trades, err := b.AddOrder(limit(3, types.BID, 10, 100))
	require.NoError(t, err)
	assert.Equal(t, [][3]int64{{1, 100, 4}}, tradeTuples(trades))

	// Remainder rests as the new best bid; the 101 ask is untouched.
	bid, ok := b.BestBid()
	require.True(t, ok)
	assert.Equal(t, Quote{Tick: 100, Quantity: 6}, bid)
	ask, ok := b.BestAsk()
	require.True(t, ok)
	assert.Equal(t, Quote{Tick: 101, Quantity: 4}, ask)
}

func TestMarketTraversesMultipleLevelsWithPartialFill(t *testing.T) {
	b := newTestBook(t)
	mustRest(t, b, limit(1, types.ASK, 2, 100))
	mustRest(t, b, limit(2, types.ASK, 3, 101))

	trades, err := b.AddOrder(market(3, types.BID, 4))
	require.NoError(t, err)
	assert.Equal(t, [][3]int64{{1, 100, 2}, {2, 101, 2}}, tradeTuples(trades))

	ask, ok := b.BestAsk()
	require.True(t, ok)
	assert.Equal(t, Quote{Tick: 101, Quantity: 1}, ask)
}

// MARKET on an empty opposite side returns no trades and mutates nothing.
func TestMarketOnEmptyBook(t *testing.T) {
	b := newTestBook(t)
	trades, err := b.AddOrder(market(1, types.BID, 5))
	require.NoError(t, err)
	assert.Empty(t, trades)

	_, ok := b.BestBid()
	assert.False(t, ok)
	_, ok = b.BestAsk()
	assert.False(t, ok)
	assert.Zero(t, b.OrderCount(types.BID))
	assert.Zero(t, b.OrderCount(types.ASK))
}

// A market order's residual is dropped, never rested.
func TestMarketResidualDropped(t *testing.T) {
	b := newTestBook(t)
	mustRest(t, b, limit(1, types.ASK, 3, 100))

	trades, err := b.AddOrder(market(2, types.BID, 10))
	require.NoError(t, err)
	assert.Equal(t, [][3]int64{{1, 100, 3}}, tradeTuples(trades))

	_, ok := b.BestBid()
	assert.False(t, ok, "market residual must not rest")
	assert.False(t, b.Contains(2))
}

func TestVolumeConservationAfterTrades(t *testing.T) {
	b := newTestBook(t)
	mustRest(t, b, limit(1, types.ASK, 5, 100))
	mustRest(t, b, limit(2, types.ASK, 5, 101))

	trades, err := b.AddOrder(market(3, types.BID, 7))
	require.NoError(t, err)

	var traded int64
	for _, tr := range trades {
		traded += tr.Quantity
	}
	assert.EqualValues(t, 7, traded)
	assert.EqualValues(t, 3, b.Volume(types.ASK))
}

// --- Cancellation -----------------------------------------------------------

func TestCancelByIDUnknownIsFalse(t *testing.T) {
	b := newTestBook(t)
	mustRest(t, b, limit(1, types.BID, 5, 100))

	assert.False(t, b.CancelByID(12345))

	bid, ok := b.BestBid()
	require.True(t, ok)
	assert.Equal(t, Quote{Tick: 100, Quantity: 5}, bid)
}

func TestCancelByID(t *testing.T) {
	b := newTestBook(t)
	mustRest(t, b, limit(1, types.BID, 5, 100))
	mustRest(t, b, limit(2, types.BID, 5, 100))

	assert.True(t, b.CancelByID(1))
	assert.False(t, b.CancelByID(1), "second cancel of the same id")

	bid, ok := b.BestBid()
	require.True(t, ok)
	assert.Equal(t, Quote{Tick: 100, Quantity: 5}, bid)
	assert.False(t, b.Contains(1))
	assert.True(t, b.Contains(2))
}

// Cancelling the middle of a queue preserves FIFO order of the survivors.
func TestCancelMiddleOfPriceLevelKeepsFIFO(t *testing.T) {
	b := newTestBook(t)
	mustRest(t, b, limit(1, types.BID, 2, 100))
	mustRest(t, b, limit(2, types.BID, 2, 100))
	mustRest(t, b, limit(3, types.BID, 2, 100))

	require.True(t, b.CancelByID(2))
	assert.EqualValues(t, 4, b.LevelQuantity(types.BID, 100))

	// Drain the level with market orders: survivors must fill in arrival order.
	trades, err := b.AddOrder(market(4, types.ASK, 4))
	require.NoError(t, err)
	assert.Equal(t, [][3]int64{{1, 100, 2}, {3, 100, 2}}, tradeTuples(trades))
}

func TestCancelAtPriceReturnsFIFOHead(t *testing.T) {
	b := newTestBook(t)
	mustRest(t, b, limit(1, types.ASK, 3, 105))
	mustRest(t, b, limit(2, types.ASK, 3, 105))

	removed, ok := b.CancelAtPrice(types.ASK, 105)
	require.True(t, ok)
	assert.EqualValues(t, 1, removed.ID)

	ask, ok := b.BestAsk()
	require.True(t, ok)
	assert.Equal(t, Quote{Tick: 105, Quantity: 3}, ask)
}

func TestCancelAtPriceEmptyLevel(t *testing.T) {
	b := newTestBook(t)
	_, ok := b.CancelAtPrice(types.ASK, 999)
	assert.False(t, ok)

	mustRest(t, b, limit(1, types.BID, 5, 100))
	_, ok = b.CancelAtPrice(types.BID, 99)
	assert.False(t, ok)
	assert.EqualValues(t, 5, b.LevelQuantity(types.BID, 100))
}

func TestCancelLastOrderRemovesLevel(t *testing.T) {
	b := newTestBook(t)
	mustRest(t, b, limit(1, types.ASK, 3, 105))

	removed, ok := b.CancelAtPrice(types.ASK, 105)
	require.True(t, ok)
	assert.EqualValues(t, 3, removed.Quantity)

	_, ok = b.BestAsk()
	assert.False(t, ok)
	assert.Zero(t, b.LevelCount(types.ASK))
}

func TestOrderIndexConsistentAfterCancelAndTrade(t *testing.T) {
	b := newTestBook(t)
	mustRest(t, b, limit(1, types.ASK, 2, 100))
	mustRest(t, b, limit(2, types.ASK, 2, 101))
	mustRest(t, b, limit(3, types.ASK, 2, 102))

	assert.True(t, b.Contains(1))
	assert.True(t, b.Contains(2))
	assert.True(t, b.Contains(3))

	require.True(t, b.CancelByID(2))
	_, err := b.AddOrder(market(4, types.BID, 3))
	require.NoError(t, err)

	assert.False(t, b.Contains(1)) // fully filled
	assert.False(t, b.Contains(2)) // cancelled
	assert.True(t, b.Contains(3))  // partially filled, still resting

	qty, ok := b.RestingQuantity(3)
	require.True(t, ok)
	assert.EqualValues(t, 1, qty)
}

// --- Depth and clearing -----------------------------------------------------

func TestDepthOrderingAndCap(t *testing.T) {
	b := newTestBook(t)
	for i, tk := range []int64{98, 100, 99} {
		mustRest(t, b, limit(int64(i+1), types.BID, 1, tk))
	}
	for i, tk := range []int64{103, 101, 102} {
		mustRest(t, b, limit(int64(i+4), types.ASK, 1, tk))
	}

	bids, asks := b.Depth(0)
	assert.Equal(t, []Quote{{100, 1}, {99, 1}, {98, 1}}, bids, "bids descending")
	assert.Equal(t, []Quote{{101, 1}, {102, 1}, {103, 1}}, asks, "asks ascending")

	bids, asks = b.Depth(2)
	assert.Len(t, bids, 2)
	assert.Len(t, asks, 2)
	assert.Equal(t, []Quote{{100, 1}, {99, 1}}, bids)
	assert.Equal(t, []Quote{{101, 1}, {102, 1}}, asks)
}

func TestClearEmptiesEverything(t *testing.T) {
	b := newTestBook(t)
	for i := int64(1); i <= 10; i++ {
		mustRest(t, b, limit(i, types.BID, 5, 90+i))
		mustRest(t, b, limit(i+10, types.ASK, 5, 110+i))
	}

	b.Clear()

	_, ok := b.BestBid()
	assert.False(t, ok)
	_, ok = b.BestAsk()
	assert.False(t, ok)
	assert.Zero(t, b.LevelCount(types.BID))
	assert.Zero(t, b.LevelCount(types.ASK))
	assert.Zero(t, b.OrderCount(types.BID))
	assert.Zero(t, b.OrderCount(types.ASK))
	assert.False(t, b.Contains(1))
}

// --- Property-style random flow ---------------------------------------------

// Invariants are re-checked by the book itself after every operation (debug
// mode panics on violation); this test additionally asserts the externally
// visible ones after each step of a seeded random flow.
func TestInvariantsUnderRandomFlow(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	b := newTestBook(t)

	var id int64
	for step := 0; step < 5000; step++ {
		id++
		side := types.BID
		if rng.Intn(2) == 1 {
			side = types.ASK
		}
		qty := int64(rng.Intn(50) + 1)

		switch rng.Intn(10) {
		case 0, 1: // market order
			pre := b.Volume(side.Opposite())
			trades, err := b.AddOrder(market(id, side, qty))
			require.NoError(t, err)
			var traded int64
			for _, tr := range trades {
				traded += tr.Quantity
			}
			assert.Equal(t, min(qty, pre), traded,
				"market fill must equal min(order qty, opposite liquidity)")
			assert.False(t, b.Contains(id), "market orders never rest")
		case 2: // cancel a random recent id
			b.CancelByID(id - int64(rng.Intn(100)))
		default: // limit order
			tk := int64(950 + rng.Intn(100))
			_, err := b.AddOrder(limit(id, side, qty, tk))
			require.NoError(t, err)
		}

		if bid, ok := b.BestBid(); ok {
			if ask, ok := b.BestAsk(); ok {
				assert.Less(t, bid.Tick, ask.Tick, "crossed book at step %d", step)
			}
		}
	}
}
