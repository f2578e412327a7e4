package stream

import (
	"math"

	"marketsim/pkg/types"
)

// submit runs an order through the book and emits its L3 messages: one
// EXECUTE per trade in matching order, then one ADD at the original
// submitted tick if a LIMIT remainder rested. The counter increments before
// every emission. Engine errors drop the order and never halt the stream.
func (s *Session) submit(order types.Order, emit Emit) {
	if s.cfg.ValidateOrders {
		if err := order.Validate(); err != nil {
			s.logger.Debug("dropping invalid order", "id", order.ID, "error", err)
			return
		}
	}

	originalTick := order.PriceTick

	trades, err := s.book.AddOrder(order)
	if err != nil {
		s.logger.Debug("dropping rejected order", "id", order.ID, "error", err)
		return
	}
	s.met.OrdersTotal.WithLabelValues(string(order.Side), string(order.Type)).Inc()

	var filled int64
	for _, tr := range trades {
		filled += tr.Quantity
		s.t++
		emit(types.NewExecute(s.t, tr.MakerID, tr.PriceTick, s.conv.TickToPrice(tr.PriceTick), tr.Quantity, order.Side))
		s.met.MessagesTotal.WithLabelValues(string(types.MsgExecute)).Inc()
		s.met.TradesTotal.Inc()
		s.met.TradeVolume.Add(float64(tr.Quantity))
	}

	if order.Type == types.LIMIT {
		if residual := order.Quantity - filled; residual > 0 {
			s.t++
			emit(types.NewAdd(s.t, order.ID, order.Side, originalTick, s.conv.TickToPrice(originalTick), residual))
			s.met.MessagesTotal.WithLabelValues(string(types.MsgAdd)).Inc()
		}
	}
}

// randomOrder builds one synthetic order. Draw order: quantity, then for
// limits the exponential offset, the 60% tightening draw (plus its uniform
// factor when hit), and the 50% grid-snap draw.
func (s *Session) randomOrder(side types.Side, isMarket bool, spreadMult float64) types.Order {
	qty := int64(math.Max(1, math.Min(500, math.Exp(2.2+0.8*s.rng.NormFloat64()))))

	if isMarket {
		return types.NewMarket(s.nextID, side, qty, s.t)
	}

	dynamicSpread := s.cfg.Spread * spreadMult
	offset := dynamicSpread/2 + s.rng.ExpFloat64()*math.Max(0.01, dynamicSpread*0.35)
	if s.rng.Float64() < 0.6 {
		offset *= 0.2 + 0.4*s.rng.Float64()
	}

	price := s.proc.Mid + offset
	if side == types.BID {
		price = s.proc.Mid - offset
	}
	if s.rng.Float64() < 0.5 {
		price = math.Round(price*20) / 20 // cluster to the 0.05 grid
	}

	priceTick, err := s.conv.PriceToTick(math.Max(s.minPrice, price))
	if err != nil || priceTick < s.minTick {
		priceTick = s.minTick
	}
	return types.NewLimit(s.nextID, side, qty, priceTick, s.t)
}

// tryCancelOwned lets one agent pull one of its own orders: the agent is
// picked weighted by live-order count, the order by squared distance from
// mid. Emits a CANCEL carrying the quantity read immediately before
// removal.
func (s *Session) tryCancelOwned(emit Emit) {
	var active []int
	var total float64
	for i, a := range s.agents {
		if n := a.LiveOrders(); n > 0 {
			active = append(active, i)
			total += float64(n)
		}
	}
	if len(active) == 0 {
		return
	}

	r := s.rng.Float64() * total
	picked := active[len(active)-1]
	for _, i := range active {
		r -= float64(s.agents[i].LiveOrders())
		if r <= 0 {
			picked = i
			break
		}
	}
	a := s.agents[picked]

	orderID, ok := a.PickCancel(s.book, s.midTick(), s.rng)
	if !ok {
		return
	}
	s.cancelForAgent(a, orderID, emit)
}

// cancelForAgent removes one owned order from the book and emits the CANCEL
// message on success. The victim's quantity is read before the removal
// mutation.
func (s *Session) cancelForAgent(a interface{ OnRemoved(int64) }, orderID int64, emit Emit) {
	side, priceTick, ok := s.book.Locate(orderID)
	if !ok {
		a.OnRemoved(orderID)
		return
	}
	qty, _ := s.book.RestingQuantity(orderID)

	if !s.book.CancelByID(orderID) {
		return
	}
	a.OnRemoved(orderID)

	s.t++
	emit(types.NewCancel(s.t, orderID, side, priceTick, s.conv.TickToPrice(priceTick), qty))
	s.met.MessagesTotal.WithLabelValues(string(types.MsgCancel)).Inc()
}

// replenish posts a resting order half a dynamic spread from mid on any
// side whose best has drifted more than 2.5 dynamic spreads away. A single
// agent, drawn up front, owns whatever rests.
func (s *Session) replenish(spreadMult float64, emit Emit) {
	owner := s.agents[s.rng.Intn(len(s.agents))]

	dynamicSpread := s.cfg.Spread * spreadMult
	midTick := s.midTick()
	maxGapTicks := max(int64(1), int64(math.Round(dynamicSpread*2.5/s.conv.Size())))
	halfSpreadTicks := max(int64(1), int64(math.Round(dynamicSpread/(2*s.conv.Size()))))
	qty := int64(math.Max(1, math.Min(200, math.Exp(2.0+0.7*s.rng.NormFloat64()))))

	if best, ok := s.book.BestBid(); ok && abs(midTick-best.Tick) > maxGapTicks {
		order := types.NewLimit(s.nextID, types.BID, max(int64(1), qty/2),
			max(s.minTick, midTick-halfSpreadTicks), s.t)
		s.nextID++
		s.submit(order, emit)
		if s.book.Contains(order.ID) {
			owner.OnPlaced(order.ID)
		}
	}

	if best, ok := s.book.BestAsk(); ok && abs(best.Tick-midTick) > maxGapTicks {
		order := types.NewLimit(s.nextID, types.ASK, max(int64(1), qty/2),
			midTick+halfSpreadTicks, s.t)
		s.nextID++
		s.submit(order, emit)
		if s.book.Contains(order.ID) {
			owner.OnPlaced(order.ID)
		}
	}
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
