package api

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"

	"marketsim/internal/config"
	"marketsim/internal/stream"
)

type fakeProvider struct {
	lastDepth int
}

func (f *fakeProvider) Snapshot(depth int) stream.Snapshot {
	f.lastDepth = depth
	return stream.Snapshot{
		Seq:   99,
		RunID: "test-run",
		Bids:  []stream.BookLevel{{Price: 9.99, Size: 10}},
		Asks:  []stream.BookLevel{{Price: 10.01, Size: 7}},
	}
}

func newTestHandlers(p SnapshotProvider) *Handlers {
	cfg := config.DashboardConfig{Port: 0, DepthLevels: 25}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewHandlers(cfg, p, NewHub(logger), logger)
}

func TestHandleHealth(t *testing.T) {
	t.Parallel()
	h := newTestHandlers(&fakeProvider{})

	rec := httptest.NewRecorder()
	h.HandleHealth(rec, httptest.NewRequest("GET", "/health", nil))

	if rec.Code != 200 {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["status"] != "ok" {
		t.Errorf("status field = %q, want ok", body["status"])
	}
}

func TestHandleSnapshot(t *testing.T) {
	t.Parallel()
	p := &fakeProvider{}
	h := newTestHandlers(p)

	rec := httptest.NewRecorder()
	h.HandleSnapshot(rec, httptest.NewRequest("GET", "/api/snapshot", nil))

	if rec.Code != 200 {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if p.lastDepth != 25 {
		t.Errorf("default depth = %d, want configured 25", p.lastDepth)
	}

	var snap stream.Snapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
		t.Fatal(err)
	}
	if snap.Seq != 99 || len(snap.Bids) != 1 || len(snap.Asks) != 1 {
		t.Errorf("unexpected snapshot: %+v", snap)
	}
}

func TestHandleSnapshotDepthOverride(t *testing.T) {
	t.Parallel()
	p := &fakeProvider{}
	h := newTestHandlers(p)

	rec := httptest.NewRecorder()
	h.HandleSnapshot(rec, httptest.NewRequest("GET", "/api/snapshot?depth=5", nil))
	if rec.Code != 200 {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if p.lastDepth != 5 {
		t.Errorf("depth = %d, want 5", p.lastDepth)
	}

	rec = httptest.NewRecorder()
	h.HandleSnapshot(rec, httptest.NewRequest("GET", "/api/snapshot?depth=bogus", nil))
	if rec.Code != 400 {
		t.Errorf("bad depth status = %d, want 400", rec.Code)
	}
}
