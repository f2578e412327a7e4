package book

import "marketsim/pkg/types"

// CancelAtPrice removes the FIFO head at the given level and returns it.
// Returns ok=false when no order rests at that level; the book is untouched
// in that case.
func (b *Book) CancelAtPrice(side types.Side, priceTick int64) (types.Order, bool) {
	sb := b.side(side)
	lvl, ok := sb.byTick[priceTick]
	if !ok {
		return types.Order{}, false
	}

	head := lvl.orders[0]
	lvl.orders = lvl.orders[1:]
	lvl.size -= head.Quantity
	sb.orders--
	sb.volume -= head.Quantity
	delete(b.index, head.ID)

	if len(lvl.orders) == 0 {
		sb.remove(lvl)
	}

	b.checkInvariants()
	return *head, true
}

// CancelByID removes a specific resting order. The level FIFO is rebuilt in
// a single pass, preserving the arrival order of the survivors; cost is
// O(depth of the level). Returns false when the id is unknown or already
// gone.
func (b *Book) CancelByID(orderID int64) bool {
	loc, ok := b.index[orderID]
	if !ok {
		return false
	}

	sb := b.side(loc.side)
	lvl, ok := sb.byTick[loc.tick]
	if !ok {
		delete(b.index, orderID)
		return false
	}

	kept := lvl.orders[:0]
	var removedQty int64
	removed := false
	for _, o := range lvl.orders {
		if o.ID == orderID && !removed {
			removed = true
			removedQty = o.Quantity
			continue
		}
		kept = append(kept, o)
	}
	lvl.orders = kept

	if removed {
		lvl.size -= removedQty
		sb.orders--
		sb.volume -= removedQty
		delete(b.index, orderID)
	}
	if len(lvl.orders) == 0 {
		sb.remove(lvl)
	}

	b.checkInvariants()
	return removed
}
