package engine

const eventBufferSize = 16

// Subscription provides event channels for one subscriber. Sends are
// non-blocking: a subscriber that stops draining loses events rather
// than stalling the engine.
type Subscription struct {
	StateChanged    <-chan StateChange
	PositionChanged <-chan PositionChange
	BufferChanged   <-chan BufferChange
	TrackChanged    <-chan TrackChange
	SessionChanged  <-chan SessionChange
	SleepChanged    <-chan SleepChange
	EndedChan       <-chan Ended
	Error           <-chan ErrorEvent
	Done            <-chan struct{}

	// Internal write channels
	stateCh    chan StateChange
	positionCh chan PositionChange
	bufferCh   chan BufferChange
	trackCh    chan TrackChange
	sessionCh  chan SessionChange
	sleepCh    chan SleepChange
	endedCh    chan Ended
	errorCh    chan ErrorEvent
	doneCh     chan struct{}
}

func newSubscription() *Subscription {
	s := &Subscription{
		stateCh:    make(chan StateChange, eventBufferSize),
		positionCh: make(chan PositionChange, eventBufferSize),
		bufferCh:   make(chan BufferChange, eventBufferSize),
		trackCh:    make(chan TrackChange, eventBufferSize),
		sessionCh:  make(chan SessionChange, eventBufferSize),
		sleepCh:    make(chan SleepChange, eventBufferSize),
		endedCh:    make(chan Ended, 1),
		errorCh:    make(chan ErrorEvent, eventBufferSize),
		doneCh:     make(chan struct{}),
	}
	s.StateChanged = s.stateCh
	s.PositionChanged = s.positionCh
	s.BufferChanged = s.bufferCh
	s.TrackChanged = s.trackCh
	s.SessionChanged = s.sessionCh
	s.SleepChanged = s.sleepCh
	s.EndedChan = s.endedCh
	s.Error = s.errorCh
	s.Done = s.doneCh
	return s
}

// close signals subscribers to stop by closing doneCh.
func (s *Subscription) close() {
	close(s.doneCh)
}

func (s *Subscription) sendState(e StateChange) {
	select {
	case s.stateCh <- e:
	default:
		// Drop if buffer full
	}
}

func (s *Subscription) sendPosition(e PositionChange) {
	select {
	case s.positionCh <- e:
	default:
	}
}

func (s *Subscription) sendBuffer(e BufferChange) {
	select {
	case s.bufferCh <- e:
	default:
	}
}

func (s *Subscription) sendTrack(e TrackChange) {
	select {
	case s.trackCh <- e:
	default:
	}
}

func (s *Subscription) sendSession(e SessionChange) {
	select {
	case s.sessionCh <- e:
	default:
	}
}

func (s *Subscription) sendSleep(e SleepChange) {
	select {
	case s.sleepCh <- e:
	default:
	}
}

func (s *Subscription) sendEnded() {
	select {
	case s.endedCh <- Ended{}:
	default:
	}
}

func (s *Subscription) sendError(e ErrorEvent) {
	select {
	case s.errorCh <- e:
	default:
	}
}
