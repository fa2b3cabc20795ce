package output

import (
	"sync"
	"time"
)

// Mock is a test double for the audio output.
type Mock struct {
	mu sync.Mutex

	state    State
	position time.Duration
	duration time.Duration
	buffered time.Duration
	rate     float64
	seekable bool

	loadErr    error
	loadCalls  []LoadCall
	seekCalls  []time.Duration
	stopCalls  int
	finishedCh chan struct{}
	errCh      chan error
}

// LoadCall records one Load invocation.
type LoadCall struct {
	Src     Source
	StartAt time.Duration
}

// NewMock creates a stopped mock output whose sources are seekable.
func NewMock() *Mock {
	return &Mock{
		state:      Stopped,
		rate:       1.0,
		seekable:   true,
		finishedCh: make(chan struct{}, 1),
		errCh:      make(chan error, 1),
	}
}

func (m *Mock) Load(src Source, startAt time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loadCalls = append(m.loadCalls, LoadCall{Src: src, StartAt: startAt})
	if m.loadErr != nil {
		return m.loadErr
	}
	m.state = Paused
	m.position = startAt
	return nil
}

func (m *Mock) Play() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == Paused {
		m.state = Playing
	}
}

func (m *Mock) Pause() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == Playing {
		m.state = Paused
	}
}

func (m *Mock) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopCalls++
	m.state = Stopped
	m.position = 0
}

func (m *Mock) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Mock) Position() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.position
}

func (m *Mock) Duration() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.duration
}

func (m *Mock) Buffered() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.buffered
}

func (m *Mock) SeekTo(pos time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seekCalls = append(m.seekCalls, pos)
	if !m.seekable {
		return ErrNotSeekable
	}
	m.position = pos
	return nil
}

func (m *Mock) SetRate(r float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rate = r
}

func (m *Mock) FinishedChan() <-chan struct{} { return m.finishedCh }

func (m *Mock) ErrChan() <-chan error { return m.errCh }

// Test helpers

func (m *Mock) SetPosition(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.position = d
}

func (m *Mock) SetDuration(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.duration = d
}

func (m *Mock) SetBuffered(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.buffered = d
}

func (m *Mock) SetLoadError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loadErr = err
}

func (m *Mock) SetSeekable(v bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seekable = v
}

func (m *Mock) Rate() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rate
}

func (m *Mock) LoadCalls() []LoadCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]LoadCall(nil), m.loadCalls...)
}

func (m *Mock) SeekCalls() []time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]time.Duration(nil), m.seekCalls...)
}

func (m *Mock) StopCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopCalls
}

// SimulateFinished signals natural end of the loaded source.
func (m *Mock) SimulateFinished() {
	select {
	case m.finishedCh <- struct{}{}:
	default:
	}
}

// SimulateError signals a decode failure during playback.
func (m *Mock) SimulateError(err error) {
	select {
	case m.errCh <- err:
	default:
	}
}

// Advance moves the mock position forward as if audio played.
func (m *Mock) Advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.position += d
}

// Verify Mock implements Interface at compile time.
var _ Interface = (*Mock)(nil)
