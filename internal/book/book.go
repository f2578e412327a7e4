// Package book implements an in-memory limit order book with tick-based
// pricing and strict price-time priority matching.
//
// Each side keeps its price levels in a B-tree ordered best-first (bids
// descending, asks ascending), a tick-keyed map for O(1) level lookup, and a
// FIFO queue of resting orders per level. A global order index maps order id
// to (side, tick) for O(1) cancel-by-id routing. The tree stays strictly in
// sync with the level map: a level is inserted on its first order and
// removed the moment its queue empties, so the tree minimum is always a live
// level.
//
// The book is single-owner: no operation blocks, suspends, or retries, and a
// failed call leaves the book untouched. Callers that share it across
// goroutines must serialize access themselves.
package book

import (
	"errors"

	"github.com/tidwall/btree"

	"marketsim/internal/tick"
	"marketsim/pkg/types"
)

// ErrWrongType is returned when an operation receives the wrong order type,
// e.g. AddLimit given a MARKET order.
var ErrWrongType = errors.New("wrong order type")

// Quote is one price level seen from outside: the tick and the aggregate
// resting quantity at it.
type Quote struct {
	Tick     int64
	Quantity int64
}

// priceLevel holds the FIFO of resting orders at one tick and their
// aggregate quantity. size always equals the sum of order quantities in the
// queue.
type priceLevel struct {
	tick   int64
	orders []*types.Order
	size   int64
}

// sideBook is one side of the book: levels ordered best-first plus
// per-side bookkeeping counters.
type sideBook struct {
	levels *btree.BTreeG[*priceLevel]
	byTick map[int64]*priceLevel
	orders int64 // resting order count
	volume int64 // total resting quantity
}

func newSideBook(side types.Side) sideBook {
	var less func(a, b *priceLevel) bool
	if side == types.BID {
		// Sorted greatest tick first.
		less = func(a, b *priceLevel) bool { return a.tick > b.tick }
	} else {
		// Sorted least tick first.
		less = func(a, b *priceLevel) bool { return a.tick < b.tick }
	}
	return sideBook{
		levels: btree.NewBTreeG(less),
		byTick: make(map[int64]*priceLevel),
	}
}

// best returns the best-priced live level, or nil when the side is empty.
func (s *sideBook) best() *priceLevel {
	lvl, ok := s.levels.Min()
	if !ok {
		return nil
	}
	return lvl
}

// insert creates the level for a tick if absent and returns it.
func (s *sideBook) insert(t int64) *priceLevel {
	if lvl, ok := s.byTick[t]; ok {
		return lvl
	}
	lvl := &priceLevel{tick: t}
	s.byTick[t] = lvl
	s.levels.Set(lvl)
	return lvl
}

// remove deletes an emptied level from both the tree and the map.
func (s *sideBook) remove(lvl *priceLevel) {
	s.levels.Delete(lvl)
	delete(s.byTick, lvl.tick)
}

// locator records where a resting order lives.
type locator struct {
	side types.Side
	tick int64
}

// Book is the order book for a single symbol.
type Book struct {
	conv  tick.Converter
	debug bool

	bids sideBook
	asks sideBook

	// index maps every resting order id to its (side, tick) location.
	index map[int64]locator
}

// New creates an empty book on the given tick grid. With debug enabled the
// book re-checks its structural invariants after every mutating operation
// and panics on violation.
func New(conv tick.Converter, debug bool) *Book {
	return &Book{
		conv:  conv,
		debug: debug,
		bids:  newSideBook(types.BID),
		asks:  newSideBook(types.ASK),
		index: make(map[int64]locator),
	}
}

// Converter exposes the book's tick grid.
func (b *Book) Converter() tick.Converter { return b.conv }

func (b *Book) side(s types.Side) *sideBook {
	if s == types.BID {
		return &b.bids
	}
	return &b.asks
}

// AddLimit rests an already-non-matching LIMIT order on its side: appends to
// the level FIFO (creating the level if absent), bumps the level aggregate,
// and registers the order in the global index. Fails with ErrWrongType if
// the order is MARKET or carries no price tick.
func (b *Book) AddLimit(order types.Order) error {
	if order.Type != types.LIMIT || order.PriceTick <= 0 {
		return ErrWrongType
	}

	sb := b.side(order.Side)
	lvl := sb.insert(order.PriceTick)
	resting := order
	lvl.orders = append(lvl.orders, &resting)
	lvl.size += order.Quantity
	sb.orders++
	sb.volume += order.Quantity
	b.index[order.ID] = locator{side: order.Side, tick: order.PriceTick}

	b.checkInvariants()
	return nil
}

// AddOrder is the public submission entry point.
//
// LIMIT orders match aggressively against the opposite side up to and
// including their limit tick, then rest any remainder. MARKET orders match
// until filled or the opposite book is empty; any remainder is dropped.
// Returns the trades produced, in matching order.
func (b *Book) AddOrder(order types.Order) ([]types.Trade, error) {
	switch order.Type {
	case types.LIMIT:
		if order.PriceTick <= 0 {
			return nil, ErrWrongType
		}
		trades, remaining := b.match(order.Side, order.Quantity, order.PriceTick, true)
		if remaining > 0 {
			order.Quantity = remaining
			if err := b.AddLimit(order); err != nil {
				return trades, err
			}
		}
		return trades, nil
	case types.MARKET:
		trades, _ := b.match(order.Side, order.Quantity, 0, false)
		return trades, nil
	default:
		return nil, ErrWrongType
	}
}

// match consumes liquidity from the side opposite the aggressor while the
// price is compatible, producing one trade per maker touched. Fully
// consumed makers leave the FIFO and the index; emptied levels leave the
// tree. Returns the trades and the unfilled remainder.
func (b *Book) match(aggressor types.Side, remaining int64, limitTick int64, hasLimit bool) ([]types.Trade, int64) {
	var trades []types.Trade
	opp := b.side(aggressor.Opposite())

	for remaining > 0 {
		lvl := opp.best()
		if lvl == nil {
			break
		}
		if hasLimit {
			if aggressor == types.BID && lvl.tick > limitTick {
				break
			}
			if aggressor == types.ASK && lvl.tick < limitTick {
				break
			}
		}

		for len(lvl.orders) > 0 && remaining > 0 {
			head := lvl.orders[0]
			qty := min(remaining, head.Quantity)

			trades = append(trades, types.Trade{
				MakerID:   head.ID,
				PriceTick: lvl.tick,
				Quantity:  qty,
			})

			remaining -= qty
			head.Quantity -= qty
			lvl.size -= qty
			opp.volume -= qty

			if head.Quantity == 0 {
				lvl.orders = lvl.orders[1:]
				opp.orders--
				delete(b.index, head.ID)
			}
		}

		if len(lvl.orders) == 0 {
			opp.remove(lvl)
		}
	}

	b.checkInvariants()
	return trades, remaining
}

// BestBid returns the highest bid level, or ok=false when the bid side is
// empty.
func (b *Book) BestBid() (Quote, bool) {
	lvl := b.bids.best()
	if lvl == nil {
		return Quote{}, false
	}
	return Quote{Tick: lvl.tick, Quantity: lvl.size}, true
}

// BestAsk returns the lowest ask level, or ok=false when the ask side is
// empty.
func (b *Book) BestAsk() (Quote, bool) {
	lvl := b.asks.best()
	if lvl == nil {
		return Quote{}, false
	}
	return Quote{Tick: lvl.tick, Quantity: lvl.size}, true
}
