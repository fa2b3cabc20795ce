package engine

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Robertsaedal/RS-Audiobook-sub001/internal/server"
)

// syncAPI is the slice of the remote protocol the synchronizer needs.
type syncAPI interface {
	SyncSession(ctx context.Context, sessionID string, p server.SyncPayload) error
	CloseSession(ctx context.Context, sessionID string, p server.SyncPayload) error
}

// syncResult reports the outcome of a background flush so failures are
// observable without ever blocking the playback path.
type syncResult struct {
	sessionID string
	listened  float64
	err       error
}

// synchronizer owns one open remote session: heartbeat accrual, flush
// and close-once teardown. Accrual counts wall-clock seconds between
// ticks while playback is audible; audio time is useless here because
// seeks and rate changes jump it.
type synchronizer struct {
	api       syncAPI
	sessionID string
	threshold float64 // flush when accrued listening reaches this
	results   chan<- syncResult
	log       *logrus.Entry

	mu       sync.Mutex
	accrued  float64
	lastTick time.Time
	playing  bool
	closed   bool
}

func newSynchronizer(api syncAPI, sessionID string, threshold float64, results chan<- syncResult) *synchronizer {
	return &synchronizer{
		api:       api,
		sessionID: sessionID,
		threshold: threshold,
		results:   results,
		log:       logrus.WithFields(logrus.Fields{"component": "session-sync", "session": sessionID}),
	}
}

// tick accrues elapsed wall-clock time while playing and flushes when
// the accumulated listening reaches the threshold. Accrual needs two
// consecutive playing ticks: the interval ending at the first playing
// tick after a pause is pause time, so it only moves the delta origin.
func (s *synchronizer) tick(now time.Time, playing bool, position float64) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	wasPlaying := s.playing
	s.playing = playing
	if !playing || !wasPlaying || s.lastTick.IsZero() {
		s.lastTick = now
		s.mu.Unlock()
		return
	}
	s.accrued += now.Sub(s.lastTick).Seconds()
	s.lastTick = now

	if s.accrued < s.threshold {
		s.mu.Unlock()
		return
	}
	// Read-and-reset under the lock: time accrued while the network
	// call is in flight lands in the next cycle, never dropped, never
	// double-counted.
	delta := s.accrued
	s.accrued = 0
	s.mu.Unlock()

	s.flushAsync(delta, position)
}

func (s *synchronizer) flushAsync(delta, position float64) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err := s.api.SyncSession(ctx, s.sessionID, server.SyncPayload{
			TimeListened: delta,
			CurrentTime:  position,
		})
		select {
		case s.results <- syncResult{sessionID: s.sessionID, listened: delta, err: err}:
		default:
			if err != nil {
				s.log.WithError(err).Warn("heartbeat flush failed")
			}
		}
	}()
}

// accruedSeconds returns the unflushed listening time.
func (s *synchronizer) accruedSeconds() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accrued
}

// close flushes any unflushed time and closes the remote session in one
// call. The first caller wins; later calls are no-ops, so a Destroy
// racing a superseding Load can never double-close.
func (s *synchronizer) close(position float64) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	delta := s.accrued
	s.accrued = 0
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := s.api.CloseSession(ctx, s.sessionID, server.SyncPayload{
		TimeListened: delta,
		CurrentTime:  position,
	})
	if err != nil {
		// Best-effort by contract; the attempt is what matters.
		s.log.WithError(err).Warn("session close failed")
	}
}
