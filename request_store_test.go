package main

import (
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"
)

// testLogger returns a logger that discards everything. Shared by all tests
// in the package.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newStore creates a store with one pending request and returns both.
func newStore(t *testing.T) (*RequestStore, string) {
	t.Helper()
	s := NewRequestStore(testLogger())
	id := s.Create("aspirin", FormatJSON, false)
	return s, id
}

// ---------------------------------------------------------------------------
// Create / Get basics
// ---------------------------------------------------------------------------

func TestCreateAndGet(t *testing.T) {
	s, id := newStore(t)

	req, ok := s.Get(id)
	if !ok {
		t.Fatal("expected request, got not found")
	}
	if req.ID != id {
		t.Fatalf("expected ID %s, got %s", id, req.ID)
	}
	if req.Status != StatusPending {
		t.Fatalf("new request should be pending, got %s", req.Status)
	}
	if req.Query != "aspirin" || req.Format != FormatJSON || req.Include3D {
		t.Fatalf("inputs not captured: %+v", req)
	}
	if req.CreatedAt.IsZero() || !req.UpdatedAt.Equal(req.CreatedAt) {
		t.Fatalf("expected created_at == updated_at, got %v / %v", req.CreatedAt, req.UpdatedAt)
	}
}

func TestGetNotFound(t *testing.T) {
	s := NewRequestStore(testLogger())
	if _, ok := s.Get("nope"); ok {
		t.Fatal("expected not found for missing request")
	}
}

func TestCreateGeneratesUniqueIDs(t *testing.T) {
	s := NewRequestStore(testLogger())
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := s.Create("q", FormatJSON, false)
		if seen[id] {
			t.Fatalf("duplicate ID %s", id)
		}
		seen[id] = true
	}
}

// Get must return a snapshot; mutating it must not touch the store.
func TestGetReturnsCopy(t *testing.T) {
	s, id := newStore(t)

	req, _ := s.Get(id)
	req.Status = StatusCompleted
	req.Result = "tampered"

	again, _ := s.Get(id)
	if again.Status != StatusPending || again.Result != "" {
		t.Fatalf("store was mutated through a snapshot: %+v", again)
	}
}

// ---------------------------------------------------------------------------
// Status transition guards
// ---------------------------------------------------------------------------

func TestSetProcessingOnlyFromPending(t *testing.T) {
	s, id := newStore(t)

	if !s.SetProcessing(id) {
		t.Fatal("SetProcessing should succeed from pending")
	}
	if req, _ := s.Get(id); req.Status != StatusProcessing {
		t.Fatalf("status should be processing, got %s", req.Status)
	}
	// second call should fail (already processing)
	if s.SetProcessing(id) {
		t.Fatal("SetProcessing should fail from processing")
	}
}

func TestSetProcessingFailsFromTerminal(t *testing.T) {
	s, id := newStore(t)
	s.SetProcessing(id)
	s.SetCompleted(id, "done")

	if s.SetProcessing(id) {
		t.Fatal("SetProcessing should fail from completed")
	}
}

func TestSetCompletedOnlyFromProcessing(t *testing.T) {
	s, id := newStore(t)

	// cannot complete a pending request
	s.SetCompleted(id, "result")
	if req, _ := s.Get(id); req.Status != StatusPending {
		t.Fatal("SetCompleted should not affect pending request")
	}

	s.SetProcessing(id)
	s.SetCompleted(id, "result")
	req, _ := s.Get(id)
	if req.Status != StatusCompleted {
		t.Fatalf("status should be completed, got %s", req.Status)
	}
	if req.Result != "result" {
		t.Fatalf("expected result to be stored, got %q", req.Result)
	}
	if req.Error != "" {
		t.Fatalf("error should stay empty on completion, got %q", req.Error)
	}
}

func TestSetFailedOnlyFromProcessing(t *testing.T) {
	s, id := newStore(t)

	s.SetFailed(id, "err")
	if req, _ := s.Get(id); req.Status != StatusPending {
		t.Fatal("SetFailed should not affect pending request")
	}

	s.SetProcessing(id)
	s.SetFailed(id, "err")
	req, _ := s.Get(id)
	if req.Status != StatusFailed {
		t.Fatalf("status should be failed, got %s", req.Status)
	}
	if req.Error != "err" {
		t.Fatalf("expected error to be stored, got %q", req.Error)
	}
	if req.Result != "" {
		t.Fatalf("result should stay empty on failure, got %q", req.Result)
	}
}

func TestTerminalStatesAreFinal(t *testing.T) {
	s, id := newStore(t)
	s.SetProcessing(id)
	s.SetCompleted(id, "first")

	s.SetFailed(id, "late error")
	s.SetCompleted(id, "second")

	req, _ := s.Get(id)
	if req.Status != StatusCompleted || req.Result != "first" || req.Error != "" {
		t.Fatalf("terminal state was overwritten: %+v", req)
	}
}

// Repeated polls of a terminal request must return identical state.
func TestTerminalPollIsStable(t *testing.T) {
	s, id := newStore(t)
	s.SetProcessing(id)
	s.SetFailed(id, "upstream timeout")

	first, _ := s.Get(id)
	time.Sleep(5 * time.Millisecond)
	second, _ := s.Get(id)

	if first.Error != second.Error || !first.UpdatedAt.Equal(second.UpdatedAt) {
		t.Fatalf("terminal poll not stable: %+v vs %+v", first, second)
	}
}

// ---------------------------------------------------------------------------
// Timestamps
// ---------------------------------------------------------------------------

func TestUpdatedAtAdvancesOnTransitions(t *testing.T) {
	s, id := newStore(t)
	created, _ := s.Get(id)

	time.Sleep(2 * time.Millisecond)
	s.SetProcessing(id)
	processing, _ := s.Get(id)
	if !processing.UpdatedAt.After(created.UpdatedAt) {
		t.Fatal("updated_at should advance on pending -> processing")
	}

	time.Sleep(2 * time.Millisecond)
	s.SetCompleted(id, "ok")
	completed, _ := s.Get(id)
	if !completed.UpdatedAt.After(processing.UpdatedAt) {
		t.Fatal("updated_at should advance on processing -> completed")
	}
	if completed.CreatedAt.After(completed.UpdatedAt) {
		t.Fatal("created_at should never exceed updated_at")
	}
	if !completed.CreatedAt.Equal(created.CreatedAt) {
		t.Fatal("created_at should never change")
	}
}

// ---------------------------------------------------------------------------
// Transitions on non-existent request IDs
// ---------------------------------------------------------------------------

func TestSetProcessingNonExistent(t *testing.T) {
	s := NewRequestStore(testLogger())
	if s.SetProcessing("nope") {
		t.Fatal("SetProcessing should return false for non-existent ID")
	}
}

func TestSetCompletedNonExistent(t *testing.T) {
	s := NewRequestStore(testLogger())
	// Should not panic; the record may have been swept mid-flight.
	s.SetCompleted("nope", "result")
}

func TestSetFailedNonExistent(t *testing.T) {
	s := NewRequestStore(testLogger())
	// Should not panic
	s.SetFailed("nope", "err")
}

// ---------------------------------------------------------------------------
// SweepExpired
// ---------------------------------------------------------------------------

func TestSweepRemovesOldTerminal(t *testing.T) {
	s, id := newStore(t)
	s.SetProcessing(id)
	s.SetCompleted(id, "done")

	removed := s.SweepExpired(time.Now().Add(2*time.Hour), time.Hour)
	if removed != 1 {
		t.Fatalf("expected 1 removed, got %d", removed)
	}
	if _, ok := s.Get(id); ok {
		t.Fatal("swept request should be gone")
	}
}

func TestSweepKeepsFreshRecords(t *testing.T) {
	s, id := newStore(t)
	s.SetProcessing(id)
	s.SetCompleted(id, "done")

	removed := s.SweepExpired(time.Now(), time.Hour)
	if removed != 0 {
		t.Fatalf("expected 0 removed, got %d", removed)
	}
	if _, ok := s.Get(id); !ok {
		t.Fatal("fresh request should survive the sweep")
	}
}

// A recently completed request must not be evicted just because it was
// created long ago; retention is measured from the terminal transition.
func TestSweepAnchorsTerminalToUpdatedAt(t *testing.T) {
	s, id := newStore(t)
	s.SetProcessing(id)
	time.Sleep(2 * time.Millisecond)
	s.SetCompleted(id, "done")

	req, _ := s.Get(id)
	// A "now" past created_at + retention but before updated_at + retention.
	now := req.CreatedAt.Add(time.Hour + time.Millisecond)
	if removed := s.SweepExpired(now, time.Hour); removed != 0 {
		t.Fatalf("freshly completed request evicted, removed=%d", removed)
	}
}

// A request stuck in pending forever is still reclaimed.
func TestSweepEvictsStuckPending(t *testing.T) {
	s, id := newStore(t)

	removed := s.SweepExpired(time.Now().Add(2*time.Hour), time.Hour)
	if removed != 1 {
		t.Fatalf("expected stuck pending request to be removed, got %d", removed)
	}
	if _, ok := s.Get(id); ok {
		t.Fatal("stuck pending request should be gone")
	}
}

func TestSweepEmpty(t *testing.T) {
	s := NewRequestStore(testLogger())
	if removed := s.SweepExpired(time.Now(), time.Hour); removed != 0 {
		t.Fatalf("expected 0 removed on empty store, got %d", removed)
	}
}

func TestSweepCountsMultiple(t *testing.T) {
	s := NewRequestStore(testLogger())
	for i := 0; i < 5; i++ {
		id := s.Create("q", FormatJSON, false)
		s.SetProcessing(id)
		s.SetFailed(id, "err")
	}
	fresh := s.Create("fresh", FormatJSON, false)

	// Backdate the terminal records past the retention window.
	s.mu.Lock()
	for id, req := range s.requests {
		if id != fresh {
			req.UpdatedAt = time.Now().Add(-2 * time.Hour)
			req.CreatedAt = req.UpdatedAt
		}
	}
	s.mu.Unlock()

	if removed := s.SweepExpired(time.Now(), time.Hour); removed != 5 {
		t.Fatalf("expected 5 removed, got %d", removed)
	}
	if s.Len() != 1 {
		t.Fatalf("expected 1 survivor, got %d", s.Len())
	}
}

// ---------------------------------------------------------------------------
// View
// ---------------------------------------------------------------------------

func TestViewTerminalFields(t *testing.T) {
	s, id := newStore(t)
	s.SetProcessing(id)
	s.SetCompleted(id, "rendered")

	req, _ := s.Get(id)
	v := req.View()
	if v.Result != "rendered" || v.Error != "" {
		t.Fatalf("completed view should carry result only: %+v", v)
	}
	if v.Status != StatusCompleted || v.RequestID != id {
		t.Fatalf("unexpected view: %+v", v)
	}
	if v.CreatedAt <= 0 || v.UpdatedAt < v.CreatedAt {
		t.Fatalf("bad epoch timestamps: created=%f updated=%f", v.CreatedAt, v.UpdatedAt)
	}
}

func TestViewNonTerminalOmitsPayload(t *testing.T) {
	s := NewRequestStore(testLogger())
	id := s.Create("q", FormatXYZ, true)
	s.mu.Lock()
	s.requests[id].Result = "should not leak"
	s.requests[id].Error = "should not leak"
	s.mu.Unlock()

	req, _ := s.Get(id)
	v := req.View()
	if v.Result != "" || v.Error != "" {
		t.Fatalf("non-terminal view must omit result and error: %+v", v)
	}
	if !v.Include3D || v.Format != FormatXYZ {
		t.Fatalf("inputs missing from view: %+v", v)
	}
}

// ---------------------------------------------------------------------------
// Concurrent access (designed to catch races with -race flag)
// ---------------------------------------------------------------------------

func TestConcurrentAccess(t *testing.T) {
	s := NewRequestStore(testLogger())
	const n = 100
	ids := make([]string, n)
	for i := range ids {
		ids[i] = s.Create("q", FormatJSON, false)
	}

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(4)
		id := id
		go func() {
			defer wg.Done()
			s.SetProcessing(id)
		}()
		go func() {
			defer wg.Done()
			s.SetCompleted(id, "done")
		}()
		go func() {
			defer wg.Done()
			s.SetFailed(id, "err")
		}()
		go func() {
			defer wg.Done()
			s.Get(id)
		}()
	}
	wg.Wait()

	// Every request must still be in a valid state, with no torn writes.
	for _, id := range ids {
		req, ok := s.Get(id)
		if !ok {
			t.Fatalf("request %s disappeared", id)
		}
		switch req.Status {
		case StatusPending, StatusProcessing, StatusCompleted, StatusFailed:
			// all valid
		default:
			t.Fatalf("unexpected status %q for request %s", req.Status, id)
		}
		if req.Result != "" && req.Error != "" {
			t.Fatalf("result and error both set for %s", id)
		}
	}
}
