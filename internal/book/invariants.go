package book

import (
	"fmt"

	"marketsim/pkg/types"
)

// checkInvariants re-verifies the book's structural invariants. A no-op
// unless the book was built with debug enabled; violations panic.
//
// Checked after every mutating operation:
//  1. no crossed book: best bid tick < best ask tick when both sides rest
//  2. every level FIFO is non-empty and its aggregate equals the queue sum
//  3. every index entry points at a live order with matching (side, tick)
//  4. the tree and the tick map hold exactly the same levels
//  5. no resting order has quantity <= 0
func (b *Book) checkInvariants() {
	if !b.debug {
		return
	}

	if n := b.bids.orders + b.asks.orders; int64(len(b.index)) != n {
		panic(fmt.Sprintf("book: index holds %d entries for %d resting orders", len(b.index), n))
	}

	if bb, ok := b.BestBid(); ok {
		if ba, ok := b.BestAsk(); ok && bb.Tick >= ba.Tick {
			panic(fmt.Sprintf("book: crossed book: bid %d >= ask %d", bb.Tick, ba.Tick))
		}
	}

	for _, s := range []types.Side{types.BID, types.ASK} {
		sb := b.side(s)
		if sb.levels.Len() != len(sb.byTick) {
			panic(fmt.Sprintf("book: %s tree/map desync: %d vs %d", s, sb.levels.Len(), len(sb.byTick)))
		}
		var orders, volume int64
		sb.levels.Scan(func(lvl *priceLevel) bool {
			if len(lvl.orders) == 0 {
				panic(fmt.Sprintf("book: empty %s level %d in tree", s, lvl.tick))
			}
			if mapped, ok := sb.byTick[lvl.tick]; !ok || mapped != lvl {
				panic(fmt.Sprintf("book: %s level %d missing from tick map", s, lvl.tick))
			}
			var sum int64
			for _, o := range lvl.orders {
				if o.Quantity <= 0 {
					panic(fmt.Sprintf("book: order %d resting with quantity %d", o.ID, o.Quantity))
				}
				loc, ok := b.index[o.ID]
				if !ok || loc.side != s || loc.tick != lvl.tick {
					panic(fmt.Sprintf("book: order %d index desync", o.ID))
				}
				sum += o.Quantity
				orders++
			}
			if sum != lvl.size {
				panic(fmt.Sprintf("book: %s level %d size %d != sum %d", s, lvl.tick, lvl.size, sum))
			}
			volume += sum
			return true
		})
		if orders != sb.orders || volume != sb.volume {
			panic(fmt.Sprintf("book: %s counters desync: orders %d/%d volume %d/%d",
				s, orders, sb.orders, volume, sb.volume))
		}
	}
}
