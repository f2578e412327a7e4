package stream

import "time"

// BookLevel is one price level in a depth snapshot, prices already
// converted off the tick grid.
type BookLevel struct {
	Price float64 `json:"price"`
	Size  int64   `json:"size"`
}

// Snapshot is the read-only view external consumers poll: bids descending,
// asks ascending, capped at the requested depth. Seq equals the global
// message counter at capture time.
type Snapshot struct {
	Seq      int64       `json:"seq"`
	TS       int64       `json:"ts"` // wall clock, nanoseconds
	RunID    string      `json:"run_id"`
	Day      int         `json:"day"`
	MidPrice float64     `json:"mid_price"`
	Regime   string      `json:"regime"`
	Bids     []BookLevel `json:"bids"`
	Asks     []BookLevel `json:"asks"`
}

// Snapshot captures the book under the session mutex, so it always observes
// a tick boundary, never a half-applied operation. depth <= 0 means full
// depth.
func (s *Session) Snapshot(depth int) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	bids, asks := s.book.Depth(depth)
	snap := Snapshot{
		Seq:      s.t,
		TS:       time.Now().UnixNano(),
		RunID:    s.runID.String(),
		Day:      s.day,
		MidPrice: s.proc.Mid,
		Regime:   s.proc.Regime,
		Bids:     make([]BookLevel, 0, len(bids)),
		Asks:     make([]BookLevel, 0, len(asks)),
	}
	for _, q := range bids {
		snap.Bids = append(snap.Bids, BookLevel{Price: s.conv.TickToPrice(q.Tick), Size: q.Quantity})
	}
	for _, q := range asks {
		snap.Asks = append(snap.Asks, BookLevel{Price: s.conv.TickToPrice(q.Tick), Size: q.Quantity})
	}
	return snap
}
