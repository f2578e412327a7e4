package agent

import (
	"marketsim/internal/book"
	"marketsim/pkg/types"
)

// MarketMaker places a bid and an ask around the mid every tick. It quotes
// tightest of all agents and pulls stale quotes aggressively.
type MarketMaker struct {
	ownership
	SpreadTicks int64
	Size        int64
}

// NewMarketMaker quotes at mid ± spreadTicks with the given size.
func NewMarketMaker(spreadTicks, size int64) *MarketMaker {
	return &MarketMaker{
		ownership:   newOwnership(0.95),
		SpreadTicks: spreadTicks,
		Size:        size,
	}
}

func (m *MarketMaker) Name() string { return "market_maker" }

func (m *MarketMaker) Generate(_ *book.Book, ctx Context, nextID int64) ([]types.Order, int64) {
	bidTick := max(int64(1), ctx.MidTick-m.SpreadTicks)
	askTick := ctx.MidTick + m.SpreadTicks
	orders := []types.Order{
		types.NewLimit(nextID, types.BID, m.Size, bidTick, ctx.T),
		types.NewLimit(nextID+1, types.ASK, m.Size, askTick, ctx.T),
	}
	return orders, nextID + 2
}

// MomentumTrader chases the momentum signal with market orders.
type MomentumTrader struct {
	ownership
	Threshold float64
	Size      int64
}

// NewMomentumTrader fires when |momentum| exceeds threshold.
func NewMomentumTrader(threshold float64, size int64) *MomentumTrader {
	return &MomentumTrader{
		ownership: newOwnership(0.5),
		Threshold: threshold,
		Size:      size,
	}
}

func (m *MomentumTrader) Name() string { return "momentum" }

func (m *MomentumTrader) Generate(_ *book.Book, ctx Context, nextID int64) ([]types.Order, int64) {
	var side types.Side
	switch {
	case ctx.Momentum > m.Threshold:
		side = types.BID
	case ctx.Momentum < -m.Threshold:
		side = types.ASK
	default:
		return nil, nextID
	}
	return []types.Order{types.NewMarket(nextID, side, m.Size, ctx.T)}, nextID + 1
}

// MeanReversionTrader fades large deviations from a reference price.
type MeanReversionTrader struct {
	ownership
	RefPrice  float64
	Threshold float64
	Size      int64
}

// NewMeanReversionTrader sells when mid runs threshold above ref, buys when
// it runs threshold below.
func NewMeanReversionTrader(refPrice, threshold float64, size int64) *MeanReversionTrader {
	return &MeanReversionTrader{
		ownership: newOwnership(0.5),
		RefPrice:  refPrice,
		Threshold: threshold,
		Size:      size,
	}
}

func (m *MeanReversionTrader) Name() string { return "mean_reversion" }

func (m *MeanReversionTrader) Generate(_ *book.Book, ctx Context, nextID int64) ([]types.Order, int64) {
	diff := (ctx.MidPrice - m.RefPrice) / m.RefPrice
	var side types.Side
	switch {
	case diff > m.Threshold:
		side = types.ASK
	case diff < -m.Threshold:
		side = types.BID
	default:
		return nil, nextID
	}
	return []types.Order{types.NewMarket(nextID, side, m.Size, ctx.T)}, nextID + 1
}

// NoiseTrader drops small limit orders around the mid, alternating side by
// id parity. It is lazy about pulling stale orders.
type NoiseTrader struct {
	ownership
	SpreadTicks int64
	Size        int64
}

// NewNoiseTrader posts size at mid ± spreadTicks.
func NewNoiseTrader(spreadTicks, size int64) *NoiseTrader {
	return &NoiseTrader{
		ownership:   newOwnership(0.25),
		SpreadTicks: spreadTicks,
		Size:        size,
	}
}

func (n *NoiseTrader) Name() string { return "noise" }

func (n *NoiseTrader) Generate(_ *book.Book, ctx Context, nextID int64) ([]types.Order, int64) {
	side := types.BID
	tick := ctx.MidTick - n.SpreadTicks
	if nextID%2 != 0 {
		side = types.ASK
		tick = ctx.MidTick + n.SpreadTicks
	}
	order := types.NewLimit(nextID, side, n.Size, max(int64(1), tick), ctx.T)
	return []types.Order{order}, nextID + 1
}

// DefaultSet returns the standard agent mix: one tight market maker, a
// momentum chaser, a mean-reverter anchored at refPrice, and a noise trader.
func DefaultSet(refPrice float64) []Agent {
	return []Agent{
		NewMarketMaker(2, 5),
		NewMomentumTrader(0.003, 5),
		NewMeanReversionTrader(refPrice, 0.02, 5),
		NewNoiseTrader(4, 3),
	}
}
