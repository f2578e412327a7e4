// Package stream is the order-flow driver: it owns the book, the agents,
// the single seeded RNG, and the stochastic mid-price process, and turns
// them into an ordered level-3 message stream.
//
// Everything runs on one goroutine inside Run; the only shared surface is
// Snapshot, which takes the session mutex and reads the book between ticks.
// Replay determinism (same seed + same config = byte-identical stream)
// rests on a fixed RNG draw order documented step by step in DESIGN.md: no
// code path may consume the RNG conditionally on anything but prior draws
// and book state.
package stream

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"marketsim/internal/agent"
	"marketsim/internal/book"
	"marketsim/internal/config"
	"marketsim/internal/metrics"
	"marketsim/internal/sim"
	"marketsim/internal/tick"
	"marketsim/pkg/types"
)

// Emit receives every L3 message in emission order. It is called on the
// session goroutine and must not block for long.
type Emit func(types.L3Message)

// Session generates the market-data stream for one symbol across one or
// more trading days.
type Session struct {
	mu sync.Mutex

	cfg    config.SimulationConfig
	logger *slog.Logger
	met    *metrics.Collector
	runID  uuid.UUID

	conv   tick.Converter
	book   *book.Book
	rng    *rand.Rand
	agents []agent.Agent
	proc   *sim.Process

	minPrice float64
	minTick  int64

	nextID int64 // next order id, monotonically increasing
	t      int64 // global message sequence counter
	day    int
}

// New wires a session from configuration. A nil or empty agent list gets
// the default mix; a nil metrics collector gets a private registry.
func New(cfg config.SimulationConfig, agents []agent.Agent, logger *slog.Logger, met *metrics.Collector) (*Session, error) {
	conv, err := tick.NewConverter(cfg.TickSize)
	if err != nil {
		return nil, fmt.Errorf("tick size: %w", err)
	}

	minPrice := math.Max(cfg.TickSize, cfg.MinPrice)
	minTick, err := conv.PriceToTick(minPrice)
	if err != nil {
		return nil, fmt.Errorf("min price: %w", err)
	}
	if minTick < 1 {
		minTick = 1
	}

	if len(agents) == 0 {
		agents = agent.DefaultSet(cfg.StartPrice)
	}
	if len(cfg.Regimes) == 0 {
		cfg.Regimes = sim.DefaultRegimes()
	}
	if logger == nil {
		logger = slog.Default()
	}
	if met == nil {
		met = metrics.New(prometheus.NewRegistry())
	}

	runID := uuid.New()
	return &Session{
		cfg:      cfg,
		logger:   logger.With("component", "stream", "run_id", runID.String()),
		met:      met,
		runID:    runID,
		conv:     conv,
		book:     book.New(conv, cfg.DebugChecks),
		rng:      rand.New(rand.NewSource(cfg.Seed)),
		agents:   agents,
		proc:     sim.NewProcess(cfg.StartPrice, minPrice, cfg.MeanReversion, cfg.RegimeSwitchProb, cfg.Regimes),
		minPrice: minPrice,
		minTick:  minTick,
		nextID:   1,
	}, nil
}

// RunID identifies this run in logs and snapshots.
func (s *Session) RunID() uuid.UUID { return s.runID }

// Seq returns the current global message counter.
func (s *Session) Seq() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.t
}

// Book exposes the underlying order book for read-only inspection. Callers
// outside the session goroutine must go through Snapshot instead.
func (s *Session) Book() *book.Book { return s.book }

// Run executes the day loop until num_days sessions complete (forever when
// zero) or ctx is cancelled. Every L3 message goes to emit in order.
func (s *Session) Run(ctx context.Context, emit Emit) error {
	s.logger.Info("session starting",
		"seed", s.cfg.Seed,
		"start_price", s.cfg.StartPrice,
		"session_seconds", s.cfg.SessionSeconds,
		"agents", len(s.agents),
	)

	for day := 0; s.cfg.NumDays == 0 || day < s.cfg.NumDays; day++ {
		s.mu.Lock()
		s.day = day
		s.met.SessionDay.Set(float64(day))
		s.seedBook()
		s.mu.Unlock()

		for sec := 0; sec < s.cfg.SessionSeconds; sec++ {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			s.mu.Lock()
			s.second(sec, emit)
			s.mu.Unlock()

			if s.cfg.SleepSec > 0 {
				time.Sleep(time.Duration(s.cfg.SleepSec * float64(time.Second)))
			}
		}

		s.logger.Info("session day complete", "day", day, "messages", s.t, "orders", s.nextID-1)

		// The final day's book survives; overnight adjustments only run
		// between sessions.
		if s.cfg.NumDays > 0 && day == s.cfg.NumDays-1 {
			break
		}
		s.mu.Lock()
		s.endOfDay()
		s.mu.Unlock()
	}
	return nil
}

// second executes one tick of the per-second loop.
func (s *Session) second(sec int, emit Emit) {
	activity := sim.ActivityFactor(sec, s.cfg.SessionSeconds)
	volScale := sim.VolatilityFactor(sec, s.cfg.SessionSeconds)

	// Periodic agent-driven stale purge, against the pre-evolution mid.
	if sec > 0 && sec%s.cfg.StalePurgeInterval == 0 {
		s.purgeStale(emit)
	}

	s.proc.Step(s.rng, volScale)
	s.met.MidPrice.Set(s.proc.Mid)

	// Agent orders.
	actx := s.agentContext()
	for _, a := range s.agents {
		orders, nid := a.Generate(s.book, actx, s.nextID)
		s.nextID = nid
		for _, o := range orders {
			s.submit(o, emit)
			if s.book.Contains(o.ID) {
				a.OnPlaced(o.ID)
			}
		}
	}

	// Random order flow.
	params := s.proc.Params()
	n := int(math.Round(float64(s.cfg.OrdersPerTick) * activity))
	if n < 1 {
		n = 1
	}
	for i := 0; i < n; i++ {
		side := s.drawSide(params)
		isMarket := s.drawIsMarket(params)

		if s.rng.Float64() < s.cfg.CancelRatio {
			s.tryCancelOwned(emit)
		}

		order := s.randomOrder(side, isMarket, params.SpreadMult)
		s.nextID++

		if !isMarket && s.cfg.Replenish {
			s.replenish(params.SpreadMult, emit)
		}

		s.submit(order, emit)
		if s.book.Contains(order.ID) {
			s.agents[s.rng.Intn(len(s.agents))].OnPlaced(order.ID)
		}
	}

	s.met.BookOrders.WithLabelValues(string(types.BID)).Set(float64(s.book.OrderCount(types.BID)))
	s.met.BookOrders.WithLabelValues(string(types.ASK)).Set(float64(s.book.OrderCount(types.ASK)))
	s.met.BookVolume.WithLabelValues(string(types.BID)).Set(float64(s.book.Volume(types.BID)))
	s.met.BookVolume.WithLabelValues(string(types.ASK)).Set(float64(s.book.Volume(types.ASK)))
}

// endOfDay clears the book and every agent's owned set, then applies the
// overnight gap and anchor drift.
func (s *Session) endOfDay() {
	s.book.Clear()
	for _, a := range s.agents {
		a.Clear()
	}
	s.proc.EndOfDay(s.rng, s.cfg.OvernightGapSigma, s.cfg.DailyDriftSigma)
	s.logger.Debug("overnight applied", "mid", s.proc.Mid, "anchor", s.proc.Anchor)
}

func (s *Session) agentContext() agent.Context {
	ctx := agent.Context{
		T:        s.t,
		MidPrice: s.proc.Mid,
		MidTick:  s.midTick(),
		Momentum: s.proc.Momentum,
	}
	if q, ok := s.book.BestBid(); ok {
		ctx.BestBid = &q
	}
	if q, ok := s.book.BestAsk(); ok {
		ctx.BestAsk = &q
	}
	return ctx
}

// midTick converts the current mid to the grid. The mid is clamped to
// minPrice by the process, so conversion cannot fail.
func (s *Session) midTick() int64 {
	t, err := s.conv.PriceToTick(s.proc.Mid)
	if err != nil {
		panic(fmt.Sprintf("stream: mid price %v off the grid: %v", s.proc.Mid, err))
	}
	return t
}

func (s *Session) drawSide(params sim.RegimeParams) types.Side {
	bias := 0.5 + params.Imbalance
	if s.proc.Momentum > 0 {
		bias += 0.05
	} else {
		bias -= 0.05
	}
	bias = math.Min(0.95, math.Max(0.05, bias))
	if s.rng.Float64() < bias {
		return types.BID
	}
	return types.ASK
}

func (s *Session) drawIsMarket(params sim.RegimeParams) bool {
	eff := math.Min(0.9, math.Max(0.01, s.cfg.MarketRatio*params.MarketRatio/0.15))
	return s.rng.Float64() < eff
}
