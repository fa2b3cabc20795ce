package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Robertsaedal/RS-Audiobook-sub001/internal/server"
)

type recordingSyncAPI struct {
	mu     sync.Mutex
	syncs  []server.SyncPayload
	closes []server.SyncPayload
}

func (r *recordingSyncAPI) SyncSession(_ context.Context, _ string, p server.SyncPayload) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.syncs = append(r.syncs, p)
	return nil
}

func (r *recordingSyncAPI) CloseSession(_ context.Context, _ string, p server.SyncPayload) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closes = append(r.closes, p)
	return nil
}

func (r *recordingSyncAPI) snapshot() (syncs, closes []server.SyncPayload) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]server.SyncPayload(nil), r.syncs...), append([]server.SyncPayload(nil), r.closes...)
}

func TestSynchronizerConservesListenedTime(t *testing.T) {
	api := &recordingSyncAPI{}
	results := make(chan syncResult, 8)
	s := newSynchronizer(api, "sess", 10, results)

	t0 := time.Now()
	s.tick(t0, true, 0)
	for i := 1; i <= 25; i++ {
		s.tick(t0.Add(time.Duration(i)*time.Second), true, float64(i))
	}
	// Two flushes should have left the accrued remainder behind.
	deadline := time.Now().Add(2 * time.Second)
	for {
		syncs, _ := api.snapshot()
		if len(syncs) == 2 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("got %d flushes, want 2", len(syncs))
		}
		time.Sleep(5 * time.Millisecond)
	}

	s.close(25)

	syncs, closes := api.snapshot()
	if len(closes) != 1 {
		t.Fatalf("got %d closes, want 1", len(closes))
	}
	total := closes[0].TimeListened
	for _, p := range syncs {
		total += p.TimeListened
	}
	if total < 24.999 || total > 25.001 {
		t.Errorf("flushed %f seconds total, want 25", total)
	}
}

func TestSynchronizerIgnoresPausedGaps(t *testing.T) {
	api := &recordingSyncAPI{}
	s := newSynchronizer(api, "sess", 10, make(chan syncResult, 8))

	t0 := time.Now()
	s.tick(t0, true, 0)
	s.tick(t0.Add(3*time.Second), true, 3)
	s.tick(t0.Add(2*time.Minute), false, 3)
	s.tick(t0.Add(3*time.Minute), true, 3)

	if got := s.accruedSeconds(); got != 3 {
		t.Errorf("accrued %f seconds, want 3", got)
	}
	if syncs, _ := api.snapshot(); len(syncs) != 0 {
		t.Errorf("got %d flushes, want none: the pause gap must not cross the threshold", len(syncs))
	}
}

func TestSynchronizerResumeTickMovesOriginOnly(t *testing.T) {
	api := &recordingSyncAPI{}
	s := newSynchronizer(api, "sess", 10, make(chan syncResult, 8))

	// The interval between the last paused tick and the first playing
	// tick is pause time; only the tick after that starts counting.
	t0 := time.Now()
	s.tick(t0, false, 0)
	s.tick(t0.Add(30*time.Second), true, 0)
	s.tick(t0.Add(32*time.Second), true, 2)

	if got := s.accruedSeconds(); got != 2 {
		t.Errorf("accrued %f seconds, want 2", got)
	}
}

func TestSynchronizerCloseIsFirstCallerWins(t *testing.T) {
	api := &recordingSyncAPI{}
	s := newSynchronizer(api, "sess", 10, make(chan syncResult, 8))
	s.tick(time.Now(), true, 0)

	s.close(7)
	s.close(7)

	_, closes := api.snapshot()
	if len(closes) != 1 {
		t.Fatalf("got %d closes, want 1", len(closes))
	}
	if closes[0].CurrentTime != 7 {
		t.Errorf("closed at position %f, want 7", closes[0].CurrentTime)
	}
}

func TestSynchronizerTicksAfterCloseAreDropped(t *testing.T) {
	api := &recordingSyncAPI{}
	s := newSynchronizer(api, "sess", 1, make(chan syncResult, 8))
	s.close(0)

	t0 := time.Now()
	s.tick(t0, true, 0)
	s.tick(t0.Add(time.Minute), true, 60)

	if got := s.accruedSeconds(); got != 0 {
		t.Errorf("accrued %f seconds after close, want 0", got)
	}
}
