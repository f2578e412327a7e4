package book

import "marketsim/pkg/types"

// Depth returns up to n levels per side: bids descending, asks ascending.
// n <= 0 means full depth. Read-only; never mutates the book.
func (b *Book) Depth(n int) (bids, asks []Quote) {
	collect := func(sb *sideBook) []Quote {
		var out []Quote
		sb.levels.Scan(func(lvl *priceLevel) bool {
			out = append(out, Quote{Tick: lvl.tick, Quantity: lvl.size})
			return n <= 0 || len(out) < n
		})
		return out
	}
	return collect(&b.bids), collect(&b.asks)
}

// Clear removes every resting order and empties all level, size, and index
// state (end-of-day clearing).
func (b *Book) Clear() {
	b.bids = newSideBook(types.BID)
	b.asks = newSideBook(types.ASK)
	b.index = make(map[int64]locator)
	b.checkInvariants()
}

// Contains reports whether an order id is currently resting in the book.
func (b *Book) Contains(orderID int64) bool {
	_, ok := b.index[orderID]
	return ok
}

// Locate returns the (side, tick) a resting order lives at.
func (b *Book) Locate(orderID int64) (types.Side, int64, bool) {
	loc, ok := b.index[orderID]
	if !ok {
		return "", 0, false
	}
	return loc.side, loc.tick, true
}

// RestingQuantity returns the current quantity of a resting order. Costs a
// scan of the order's level FIFO.
func (b *Book) RestingQuantity(orderID int64) (int64, bool) {
	loc, ok := b.index[orderID]
	if !ok {
		return 0, false
	}
	lvl, ok := b.side(loc.side).byTick[loc.tick]
	if !ok {
		return 0, false
	}
	for _, o := range lvl.orders {
		if o.ID == orderID {
			return o.Quantity, true
		}
	}
	return 0, false
}

// LevelQuantity returns the aggregate resting quantity at a tick, or 0 when
// the level does not exist.
func (b *Book) LevelQuantity(side types.Side, priceTick int64) int64 {
	if lvl, ok := b.side(side).byTick[priceTick]; ok {
		return lvl.size
	}
	return 0
}

// OrderCount returns the number of resting orders on one side.
func (b *Book) OrderCount(side types.Side) int64 { return b.side(side).orders }

// Volume returns the total resting quantity on one side.
func (b *Book) Volume(side types.Side) int64 { return b.side(side).volume }

// LevelCount returns the number of live price levels on one side.
func (b *Book) LevelCount(side types.Side) int { return b.side(side).levels.Len() }
