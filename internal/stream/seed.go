package stream

import (
	"math"

	"marketsim/pkg/types"
)

// seedBook builds the pre-market book: seed_levels price levels per side,
// marching one tick out per level from half the configured spread, with
// seed_orders_per_level log-normally sized orders each. Ownership of every
// seeded order goes to a random agent. Seeding emits no L3 messages.
func (s *Session) seedBook() {
	midTick := s.midTick()
	halfSpreadTicks, err := s.conv.PriceToTick(s.cfg.Spread / 2)
	if err != nil || halfSpreadTicks < 1 {
		halfSpreadTicks = 1
	}

	for i := 0; i < s.cfg.SeedLevels; i++ {
		bidTick := max(s.minTick, midTick-halfSpreadTicks-int64(i))
		askTick := midTick + halfSpreadTicks + int64(i)

		for j := 0; j < s.cfg.SeedOrdersPerLevel; j++ {
			s.seedOrder(types.BID, bidTick)
			s.seedOrder(types.ASK, askTick)
		}
	}

	s.logger.Debug("book seeded",
		"bid_levels", s.book.LevelCount(types.BID),
		"ask_levels", s.book.LevelCount(types.ASK),
		"mid_tick", midTick,
	)
}

func (s *Session) seedOrder(side types.Side, priceTick int64) {
	qty := int64(math.Max(1, math.Min(200, math.Exp(2.3+0.6*s.rng.NormFloat64()))))
	order := types.NewLimit(s.nextID, side, qty, priceTick, 0)
	if err := s.book.AddLimit(order); err != nil {
		s.logger.Debug("dropping seed order", "id", order.ID, "error", err)
		s.nextID++
		return
	}
	s.agents[s.rng.Intn(len(s.agents))].OnPlaced(order.ID)
	s.nextID++
}

// purgeStale runs the periodic agent-driven sweep: each agent reviews its
// own live orders against the pre-evolution mid and pulls the ones it
// considers stale. One CANCEL per pulled order.
func (s *Session) purgeStale(emit Emit) {
	midTick := s.midTick()
	for _, a := range s.agents {
		for _, orderID := range a.PullStale(s.book, midTick, s.cfg.StalePurgeDistance, s.rng) {
			s.cancelForAgent(a, orderID, emit)
		}
	}
}
