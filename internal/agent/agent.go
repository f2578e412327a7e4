// Package agent implements the pluggable traders that drive synthetic order
// flow.
//
// An agent generates orders from a market-state snapshot and tracks the ids
// of the orders it has placed and not yet seen filled or cancelled. Agents
// hold only ids — never order references — and read the book without
// mutating it; all submissions go through the order-flow driver, which also
// owns the only RNG. Selection methods receive that RNG and iterate owned
// ids in sorted order so a replay with the same seed picks the same orders.
package agent

import (
	"math"
	"math/rand"
	"sort"

	"marketsim/internal/book"
	"marketsim/pkg/types"
)

// Context is the snapshot of market state passed to agents each tick.
type Context struct {
	T        int64
	MidPrice float64
	MidTick  int64
	BestBid  *book.Quote // nil when the bid side is empty
	BestAsk  *book.Quote // nil when the ask side is empty
	Momentum float64
}

// Agent is the closed capability set every trader implements.
type Agent interface {
	// Name identifies the agent in logs.
	Name() string
	// Generate produces this tick's orders and returns the next free id.
	Generate(b *book.Book, ctx Context, nextID int64) ([]types.Order, int64)
	// OnPlaced records ownership of an order that rested on the book.
	OnPlaced(id int64)
	// OnRemoved drops an order from the owned set (filled or cancelled).
	OnRemoved(id int64)
	// PickCancel selects one owned order to cancel, weighted by squared
	// distance from mid. ok=false when the agent owns nothing live.
	PickCancel(b *book.Book, midTick int64, rng *rand.Rand) (int64, bool)
	// PullStale returns the owned orders beyond maxDist ticks from mid
	// that the agent decides to pull this sweep.
	PullStale(b *book.Book, midTick, maxDist int64, rng *rand.Rand) []int64
	// LiveOrders reports the size of the owned set.
	LiveOrders() int
	// Clear empties the owned set (end-of-day).
	Clear()
}

// ownership is the bookkeeping shared by all concrete agents: the owned-id
// set and the cancellation policy applied to it.
type ownership struct {
	owned      map[int64]struct{}
	cancelAggr float64 // in [0,1]: how eagerly stale orders are pulled
}

func newOwnership(cancelAggr float64) ownership {
	return ownership{
		owned:      make(map[int64]struct{}),
		cancelAggr: cancelAggr,
	}
}

func (w *ownership) OnPlaced(id int64)  { w.owned[id] = struct{}{} }
func (w *ownership) OnRemoved(id int64) { delete(w.owned, id) }
func (w *ownership) LiveOrders() int    { return len(w.owned) }

func (w *ownership) Clear() {
	w.owned = make(map[int64]struct{})
}

// prune drops ids that left the book behind the agent's back (filled
// elsewhere) and returns the sorted survivors. Runs before any selection.
func (w *ownership) prune(b *book.Book) []int64 {
	ids := make([]int64, 0, len(w.owned))
	for id := range w.owned {
		if !b.Contains(id) {
			delete(w.owned, id)
			continue
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (w *ownership) PickCancel(b *book.Book, midTick int64, rng *rand.Rand) (int64, bool) {
	ids := w.prune(b)
	if len(ids) == 0 {
		return 0, false
	}

	// Weight by squared distance from mid: far orders are pulled first.
	weights := make([]float64, len(ids))
	var total float64
	for i, id := range ids {
		_, tick, _ := b.Locate(id)
		d := float64(tick - midTick)
		weights[i] = d*d + 1
		total += weights[i]
	}

	r := rng.Float64() * total
	for i, wgt := range weights {
		r -= wgt
		if r <= 0 {
			return ids[i], true
		}
	}
	return ids[len(ids)-1], true
}

func (w *ownership) PullStale(b *book.Book, midTick, maxDist int64, rng *rand.Rand) []int64 {
	var stale []int64
	for _, id := range w.prune(b) {
		_, tick, _ := b.Locate(id)
		dist := tick - midTick
		if dist < 0 {
			dist = -dist
		}
		if dist <= maxDist {
			continue
		}
		p := w.cancelAggr * math.Min(1, float64(dist)/float64(maxDist))
		if rng.Float64() < p {
			stale = append(stale, id)
		}
	}
	return stale
}
