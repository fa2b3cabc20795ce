// Package engine is the playback core: it turns a library item into
// continuous, seekable, resumable audio while keeping a remote progress
// session and the sleep-stop condition consistent with what is audible.
//
// One Engine instance owns one audio output and at most one open remote
// session. All state lives on the instance; there are no package-level
// globals.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Robertsaedal/RS-Audiobook-sub001/internal/media"
	"github.com/Robertsaedal/RS-Audiobook-sub001/internal/output"
	"github.com/Robertsaedal/RS-Audiobook-sub001/internal/server"
)

// seekSettleWindow is how close the published position must come to a
// seek target before the Seeking sub-state resolves.
const seekSettleWindow = 1.0

// feedApplyWindow is the minimum divergence (seconds) between the local
// position and a pushed remote progress update before the paused player
// is repositioned to match the other device.
const feedApplyWindow = 1.0

// Config tunes the engine. Zero values get conservative defaults.
type Config struct {
	Device    server.DeviceInfo
	Decodable []string // mime types the platform plays directly

	// GuardWindow is how many seconds before a chapter boundary the
	// chapters-mode sleep timer may stop. Stopping at-or-before the
	// boundary is the contract; never raise this past the tick grain.
	GuardWindow float64
	// FlushThreshold is the accrued listening (seconds) that triggers a
	// heartbeat flush. Flushing at-or-after the threshold is the
	// contract; never flush early.
	FlushThreshold float64
	TickInterval   time.Duration
}

func (c Config) withDefaults() Config {
	if len(c.Decodable) == 0 {
		c.Decodable = output.SupportedMimeTypes()
	}
	if c.GuardWindow <= 0 {
		c.GuardWindow = 0.5
	}
	if c.FlushThreshold <= 0 {
		c.FlushThreshold = 10
	}
	if c.TickInterval <= 0 {
		c.TickInterval = 250 * time.Millisecond
	}
	return c
}

// Engine is the playback driver, player state and session owner.
type Engine struct {
	cfg Config
	api SessionAPI
	out output.Interface
	log *logrus.Entry

	fileSource   fileSourceFunc
	streamSource streamSourceFunc

	// attachMu serializes the output attach-and-commit phase across
	// competing loads and repositions.
	attachMu sync.Mutex

	mu         sync.Mutex
	state      State
	err        error
	rate       float64
	item       *media.LibraryItem
	plan       *plan
	strat      strategy
	activeSeg  int
	lastGlobal float64
	lastBuffer float64
	loadGen    uint64
	seekTarget float64
	seekReturn State
	sleep      sleepTimer
	sess       *synchronizer
	progress   map[string]media.Progress
	destroyed  bool

	// repositioning marks an off-lock segment or stream attach in
	// flight: the output is stopped and its position is meaningless.
	// Guarded by mu.
	repositioning bool

	subsMu sync.RWMutex
	subs   []*Subscription

	feedCh      <-chan []media.Progress
	syncResults chan syncResult
	done        chan struct{}
	noLoop      bool // tests drive ticks by hand
}

// Option configures an Engine at construction time.
type Option func(*Engine)

// WithProgressFeed attaches a push channel of remote progress updates.
func WithProgressFeed(ch <-chan []media.Progress) Option {
	return func(e *Engine) { e.feedCh = ch }
}

// withoutRunLoop keeps the background loop off so tests can drive the
// engine tick by tick.
func withoutRunLoop() Option {
	return func(e *Engine) { e.noLoop = true }
}

// New creates an engine bound to one remote API and one audio output.
func New(api SessionAPI, out output.Interface, cfg Config, opts ...Option) *Engine {
	e := &Engine{
		cfg:          cfg.withDefaults(),
		api:          api,
		out:          out,
		log:          logrus.WithField("component", "engine"),
		fileSource:   defaultFileSource,
		streamSource: defaultStreamSource,
		state:        StateIdle,
		rate:         1.0,
		progress:     make(map[string]media.Progress),
		syncResults:  make(chan syncResult, 8),
		done:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	if !e.noLoop {
		go e.run()
	}
	return e
}

// Subscribe creates a new event subscription.
func (e *Engine) Subscribe() *Subscription {
	e.subsMu.Lock()
	defer e.subsMu.Unlock()
	sub := newSubscription()
	e.subs = append(e.subs, sub)
	return sub
}

// Status returns a snapshot of the observable player state.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.statusLocked()
}

func (e *Engine) statusLocked() Status {
	st := Status{
		State:          e.state,
		IsPlaying:      e.state == StatePlaying,
		IsLoading:      e.state == StateLoading,
		CurrentTime:    e.lastGlobal,
		Buffered:       e.lastBuffer,
		Rate:           e.rate,
		TrackIndex:     e.activeSeg,
		SleepMode:      e.sleep.mode,
		SleepRemaining: e.sleep.remaining,
		SleepDeadline:  e.sleep.deadline,
		Err:            e.err,
	}
	if e.item != nil {
		st.ItemID = e.item.ID
		st.Duration = e.item.Duration
		if n, ok := e.item.Chapters.Locate(e.lastGlobal); ok {
			st.CurrentChapter = e.item.Chapters[n].Title
		}
	}
	if e.plan != nil {
		st.Streaming = e.plan.streaming
		st.DisplayTitle = e.plan.displayTitle
		st.DisplayAuthor = e.plan.displayAuthor
	}
	if e.sess != nil {
		st.SessionID = e.plan.sessionID
	}
	return st
}

// Progress returns the last known remote progress for an item.
func (e *Engine) Progress(itemID string) (media.Progress, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, ok := e.progress[itemID]
	return p, ok
}

// Load resolves an item, opens a remote session and attaches playback
// at the resume position (or startOverride when given). Errors never
// escape: they land on Status.Err as a retryable stall. A Load issued
// while another is in flight supersedes it; the superseded session is
// closed and its late callbacks are ignored.
func (e *Engine) Load(ctx context.Context, itemID string, startOverride *float64) {
	e.mu.Lock()
	if e.destroyed {
		e.mu.Unlock()
		return
	}
	e.loadGen++
	gen := e.loadGen
	prev := e.state
	e.state = StateLoading
	e.err = nil
	e.repositioning = false
	e.sleep.clear()
	oldSess := e.sess
	e.sess = nil
	oldSessID := ""
	if e.plan != nil {
		oldSessID = e.plan.sessionID
	}
	oldPos := e.lastGlobal
	e.publishStateLocked(prev, StateLoading)
	e.publishSleepLocked()
	e.mu.Unlock()

	e.out.Stop()
	if oldSess != nil {
		oldSess.close(oldPos)
		e.publish(func(s *Subscription) {
			s.sendSession(SessionChange{SessionID: oldSessID, Opened: false})
		})
	}

	item, err := e.api.GetItem(ctx, itemID)
	if err != nil {
		kind := ErrResolution
		if errors.Is(err, server.ErrNotFound) || errors.Is(err, server.ErrUnauthorized) {
			kind = ErrSession
		}
		e.failLoad(gen, fmt.Errorf("%w: %v", kind, err))
		return
	}
	if err := item.Chapters.Validate(item.Duration); err != nil {
		e.failLoad(gen, fmt.Errorf("%w: %v", ErrResolution, err))
		return
	}

	p, err := resolve(ctx, e.api, item, e.cfg.Device, e.cfg.Decodable)
	if err != nil {
		e.failLoad(gen, err)
		return
	}
	if !e.stillCurrent(gen) {
		e.closeOrphan(p)
		return
	}

	start := p.resumeTime
	if startOverride != nil {
		start = clamp(*startOverride, 0, item.Duration)
	}

	var strat strategy
	var src output.Source
	var seg int
	var local time.Duration
	if p.streaming {
		s, base, err := e.streamSource(ctx, e.api, p.tracks[0], start)
		if err != nil {
			e.failLoad(gen, fmt.Errorf("%w: %v", ErrResolution, err))
			e.closeOrphan(p)
			return
		}
		strat = newContinuous(p.tracks[0], base)
		src = s
		local = secondsDur(start - base)
	} else {
		st := newSegmented(p.tracks)
		seg, local = st.locate(start)
		strat = st
		src = e.fileSource(e.api, st.track(seg))
	}

	attachErr := e.attach(gen, src, local, func() {
		e.item = item
		e.plan = p
		e.strat = strat
		e.activeSeg = seg
		e.lastGlobal = start
		e.lastBuffer = start
		e.state = StateReady
		e.sess = newSynchronizer(e.api, p.sessionID, e.cfg.FlushThreshold, e.syncResults)
		e.publishStateLocked(StateLoading, StateReady)
		e.publish(func(s *Subscription) {
			s.sendSession(SessionChange{SessionID: p.sessionID, Opened: true})
		})
	})
	if attachErr != nil {
		if !errors.Is(attachErr, errSuperseded) {
			e.failLoad(gen, fmt.Errorf("%w: %v", ErrPlayback, attachErr))
		}
		e.closeOrphan(p)
		return
	}

	// Autoplay; if the platform blocks it we simply stay Ready.
	e.Play()
}

// errSuperseded marks an attach abandoned because a newer load or
// Destroy took the generation while it was in flight.
var errSuperseded = errors.New("superseded by a newer load")

// attach is the shared attach-and-commit phase of loads and
// repositions. attachMu makes the generation check, the output load and
// the commit one critical section, so a stale attach can never replace
// or stop a source a winning load has committed.
func (e *Engine) attach(gen uint64, src output.Source, at time.Duration, commit func()) error {
	e.attachMu.Lock()
	defer e.attachMu.Unlock()
	if !e.stillCurrent(gen) {
		return errSuperseded
	}
	if err := e.out.Load(src, at); err != nil {
		return err
	}
	e.mu.Lock()
	if gen != e.loadGen || e.destroyed {
		// Lost the race after attaching; release the source before the
		// winner can reach the output.
		e.mu.Unlock()
		e.out.Stop()
		return errSuperseded
	}
	commit() // runs under e.mu
	e.mu.Unlock()
	return nil
}

// failLoad records a load failure unless the load was superseded, in
// which case the late failure is dropped on the floor.
func (e *Engine) failLoad(gen uint64, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if gen != e.loadGen || e.destroyed {
		return
	}
	prev := e.state
	e.state = StateIdle
	e.err = err
	e.log.WithError(err).Warn("load failed")
	e.publish(func(s *Subscription) {
		s.sendError(ErrorEvent{Op: "load", Err: err, Fatal: true})
	})
	e.publishStateLocked(prev, StateIdle)
}

func (e *Engine) stillCurrent(gen uint64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return gen == e.loadGen && !e.destroyed
}

// closeOrphan closes a session that was opened but never became the
// active one.
func (e *Engine) closeOrphan(p *plan) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.api.CloseSession(ctx, p.sessionID, server.SyncPayload{}); err != nil {
		e.log.WithError(err).Warn("closing superseded session failed")
	}
}

// Play starts or resumes playback. Callable from any non-terminal
// state; a no-op where it makes no sense.
func (e *Engine) Play() {
	e.mu.Lock()
	defer e.mu.Unlock()
	switch e.state {
	case StateReady, StatePaused:
		e.out.Play()
		if e.out.State() != output.Playing {
			return // platform refused autoplay; stay where we are
		}
		prev := e.state
		e.state = StatePlaying
		e.publishStateLocked(prev, StatePlaying)
	case StateSeeking:
		e.out.Play()
		e.seekReturn = StatePlaying
	default:
	}
}

// Pause pauses playback.
func (e *Engine) Pause() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pauseLocked()
}

func (e *Engine) pauseLocked() {
	switch e.state {
	case StatePlaying:
		e.out.Pause()
		e.state = StatePaused
		e.publishStateLocked(StatePlaying, StatePaused)
	case StateSeeking:
		e.out.Pause()
		e.seekReturn = StatePaused
	default:
	}
}

// Toggle flips between playing and paused.
func (e *Engine) Toggle() {
	e.mu.Lock()
	playing := e.state == StatePlaying
	e.mu.Unlock()
	if playing {
		e.Pause()
	} else {
		e.Play()
	}
}

// SeekTo moves playback to a book-global position, clamped into the
// item. Inside the active segment this is a local output seek; across
// segments it is a sequential teardown and reload, because segments are
// materially different resources, not slices of one.
func (e *Engine) SeekTo(global float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.state.IsActive() || e.item == nil {
		return
	}
	global = clamp(global, 0, e.item.Duration)
	seg, local := e.strat.locate(global)
	if e.repositioning {
		// The output is detached while an earlier reposition attaches;
		// fold the new target into a fresh reposition instead of
		// seeking a stopped output.
		if e.plan != nil && e.plan.streaming {
			e.reloadStreamLocked(global)
		} else {
			e.switchSegmentLocked(seg, local, global)
		}
		return
	}
	if seg == e.activeSeg {
		err := e.out.SeekTo(local)
		switch {
		case err == nil:
			e.enterSeekingLocked(global)
		case errors.Is(err, output.ErrNotSeekable):
			e.reloadStreamLocked(global)
		default:
			e.stallLocked("seek", fmt.Errorf("%w: %v", ErrPlayback, err))
		}
		return
	}
	e.switchSegmentLocked(seg, local, global)
}

// Seek moves playback by a relative number of book-global seconds.
func (e *Engine) Seek(delta float64) {
	e.mu.Lock()
	target := e.lastGlobal + delta
	e.mu.Unlock()
	e.SeekTo(target)
}

func (e *Engine) enterSeekingLocked(target float64) {
	e.seekTarget = target
	e.lastGlobal = target
	e.publishPositionLocked()
	if e.state == StatePlaying || e.state == StatePaused {
		prev := e.state
		e.seekReturn = prev
		e.state = StateSeeking
		e.publishStateLocked(prev, StateSeeking)
	}
}

// switchSegmentLocked starts a reposition onto another segment: stop
// the current source, then attach the target off-lock, since opening a
// segment is network I/O and the engine must stay responsive while it
// runs. The generation counter invalidates the attach if a Load or
// Destroy lands first.
func (e *Engine) switchSegmentLocked(seg int, local time.Duration, global float64) {
	gen := e.loadGen
	track := e.strat.track(seg)

	e.out.Stop()
	e.repositioning = true
	e.enterSeekingLocked(global)
	go func() {
		src := e.fileSource(e.api, track)
		err := e.attach(gen, src, local, func() {
			e.repositioning = false
			e.activeSeg = seg
			e.lastGlobal = global
			e.publish(func(s *Subscription) { s.sendTrack(TrackChange{Index: seg}) })
			e.publishPositionLocked()
			e.settleRepositionLocked()
		})
		e.failReposition(gen, err)
	}()
}

// reloadStreamLocked starts a reposition of the continuous stream near
// the target; used when the attached stream cannot seek. Same shape as
// switchSegmentLocked: the manifest fetch and attach run off-lock under
// the generation guard.
func (e *Engine) reloadStreamLocked(global float64) {
	gen := e.loadGen
	track := e.strat.track(0)

	e.out.Stop()
	e.repositioning = true
	e.enterSeekingLocked(global)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		src, base, err := e.streamSource(ctx, e.api, track, global)
		if err != nil {
			e.failReposition(gen, err)
			return
		}
		err = e.attach(gen, src, secondsDur(global-base), func() {
			e.repositioning = false
			e.strat = newContinuous(track, base)
			e.lastGlobal = base
			e.publishPositionLocked()
			e.settleRepositionLocked()
		})
		e.failReposition(gen, err)
	}()
}

// settleRepositionLocked leaves the Seeking sub-state for whatever
// Play/Pause selected while the attach was in flight.
func (e *Engine) settleRepositionLocked() {
	prev := e.state
	if e.state == StateSeeking {
		e.state = e.seekReturn
	}
	if e.state == StatePlaying {
		e.out.Play()
	}
	e.publishStateLocked(prev, e.state)
}

// failReposition surfaces a reposition failure unless a newer load owns
// the output by now.
func (e *Engine) failReposition(gen uint64, err error) {
	if err == nil || errors.Is(err, errSuperseded) {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if gen != e.loadGen || e.destroyed {
		return
	}
	e.repositioning = false
	e.stallLocked("seek", fmt.Errorf("%w: %v", ErrPlayback, err))
}

// chapterRestartWindow is how far into a chapter "previous chapter"
// still means the one before rather than restarting the current one.
const chapterRestartWindow = 3.0

// NextChapter seeks to the start of the following chapter. No-op in
// the last chapter or when the item has no chapter map.
func (e *Engine) NextChapter() {
	e.mu.Lock()
	target, ok := 0.0, false
	if e.item != nil {
		if n, found := e.item.Chapters.Locate(e.lastGlobal); found && n+1 < len(e.item.Chapters) {
			target, ok = e.item.Chapters[n+1].Start, true
		}
	}
	e.mu.Unlock()
	if ok {
		e.SeekTo(target)
	}
}

// PreviousChapter seeks to the start of the current chapter, or of the
// one before when playback is still within the restart window.
func (e *Engine) PreviousChapter() {
	e.mu.Lock()
	target, ok := 0.0, false
	if e.item != nil {
		if n, found := e.item.Chapters.Locate(e.lastGlobal); found {
			target, ok = e.item.Chapters[n].Start, true
			if n > 0 && e.lastGlobal-target < chapterRestartWindow {
				target = e.item.Chapters[n-1].Start
			}
		}
	}
	e.mu.Unlock()
	if ok {
		e.SeekTo(target)
	}
}

// SetRate changes playback speed, clamped to [0.5, 3.0].
func (e *Engine) SetRate(r float64) {
	r = clamp(r, 0.5, 3.0)
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rate = r
	e.out.SetRate(r)
}

// SetSleepMinutes arms the wall-clock sleep timer.
func (e *Engine) SetSleepMinutes(d time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sleep.setMinutes(d, time.Now())
	e.publishSleepLocked()
}

// SetSleepChapters arms the chapter-boundary sleep timer: stop after n
// further chapter boundaries, measured from wherever playback is.
func (e *Engine) SetSleepChapters(n int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.item == nil || len(e.item.Chapters) == 0 {
		return
	}
	e.sleep.setChapters(n, e.lastGlobal, e.item.Chapters)
	e.publishSleepLocked()
}

// ClearSleep disarms the sleep timer.
func (e *Engine) ClearSleep() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sleep.clear()
	e.publishSleepLocked()
}

// Destroy flushes final progress, closes the remote session and
// releases the output. Safe from any state, idempotent: a second call
// does nothing.
func (e *Engine) Destroy() {
	e.mu.Lock()
	if e.destroyed {
		e.mu.Unlock()
		return
	}
	e.destroyed = true
	e.loadGen++ // invalidates any in-flight load
	sess := e.sess
	e.sess = nil
	sessID := ""
	if e.plan != nil {
		sessID = e.plan.sessionID
	}
	pos := e.lastGlobal
	prev := e.state
	e.state = StateIdle
	close(e.done)
	e.mu.Unlock()

	e.out.Stop()
	if sess != nil {
		sess.close(pos)
		e.publish(func(s *Subscription) {
			s.sendSession(SessionChange{SessionID: sessID, Opened: false})
		})
	}
	e.publish(func(s *Subscription) { s.sendState(StateChange{Previous: prev, Current: StateIdle}) })

	e.subsMu.Lock()
	for _, sub := range e.subs {
		sub.close()
	}
	e.subs = nil
	e.subsMu.Unlock()
}

// run is the engine's event loop: two cooperative timers plus the
// output's media events. Every case completes without blocking I/O;
// network flushes run on their own goroutines and report back through
// syncResults.
func (e *Engine) run() {
	fast := time.NewTicker(e.cfg.TickInterval)
	defer fast.Stop()
	slow := time.NewTicker(time.Second)
	defer slow.Stop()

	for {
		select {
		case <-e.done:
			return
		case now := <-fast.C:
			e.tick(now)
		case now := <-slow.C:
			e.slowTick(now)
		case <-e.out.FinishedChan():
			e.handleFinished()
		case err := <-e.out.ErrChan():
			e.handleOutputError(err)
		case res := <-e.syncResults:
			e.handleSyncResult(res)
		case batch, ok := <-e.feedCh:
			if !ok {
				e.feedCh = nil
				continue
			}
			e.applyProgress(batch)
		}
	}
}

// tick is the audio-time tick: republish book-global position and
// buffer, resolve a settled seek, feed the sleep timer and accrue the
// heartbeat.
func (e *Engine) tick(now time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.state.IsActive() {
		return
	}
	if e.repositioning {
		// The output is detached; its position belongs to no segment.
		return
	}

	local := e.out.Position()
	global := e.strat.global(e.activeSeg, local)
	if e.item != nil {
		global = clamp(global, 0, e.item.Duration)
	}
	e.lastGlobal = global
	e.lastBuffer = e.strat.global(e.activeSeg, e.out.Buffered())
	e.publishPositionLocked()

	if e.state == StateSeeking && absf(global-e.seekTarget) <= seekSettleWindow {
		ret := e.seekReturn
		e.state = ret
		e.publishStateLocked(StateSeeking, ret)
	}

	if e.state == StatePlaying &&
		e.sleep.chapterDue(global, e.cfg.GuardWindow) {
		e.pauseLocked()
		e.sleep.clear()
		e.publishSleepLocked()
	}

	if e.sess != nil {
		e.sess.tick(now, e.state == StatePlaying, global)
	}
}

// slowTick is the 1 Hz tick: the minutes-mode sleep deadline, which is
// wall-clock and fires whether or not playback is running.
func (e *Engine) slowTick(now time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.sleep.minutesDue(now) {
		e.pauseLocked()
		e.sleep.clear()
		e.publishSleepLocked()
	}
}

// handleFinished reacts to the natural end of the loaded source:
// advance to the next segment gaplessly, or end the book.
func (e *Engine) handleFinished() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.state.IsActive() || e.repositioning {
		return // stale signal from a torn-down source
	}

	next, ok := e.strat.advance(e.activeSeg)
	if !ok {
		prev := e.state
		e.state = StateEnded
		e.out.Stop()
		if e.item != nil {
			e.lastGlobal = e.item.Duration
		}
		e.publishPositionLocked()
		e.publishStateLocked(prev, StateEnded)
		e.publish(func(s *Subscription) { s.sendEnded() })
		e.closeSessionLocked()
		return
	}

	wasPlaying := e.state == StatePlaying ||
		(e.state == StateSeeking && e.seekReturn == StatePlaying) ||
		e.state == StateReady
	src := e.fileSource(e.api, e.strat.track(next))
	if err := e.out.Load(src, 0); err != nil {
		// A failed advance stalls rather than skips: skipping would
		// silently hide missing content.
		e.stallLocked("advance", fmt.Errorf("%w: %v", ErrPlayback, err))
		return
	}
	prev := e.state
	e.activeSeg = next
	e.lastGlobal = e.strat.global(next, 0)
	e.publish(func(s *Subscription) { s.sendTrack(TrackChange{Index: next}) })
	e.publishPositionLocked()
	if wasPlaying {
		e.out.Play()
		e.state = StatePlaying
	} else {
		e.state = StatePaused
	}
	if prev != e.state {
		e.publishStateLocked(prev, e.state)
	}
}

// handleOutputError reacts to a decoder/stream failure: terminal for
// the current load, cleared only by a fresh Load.
func (e *Engine) handleOutputError(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.state.IsActive() {
		return
	}
	e.stallLocked("playback", fmt.Errorf("%w: %v", ErrPlayback, err))
}

func (e *Engine) stallLocked(op string, err error) {
	e.loadGen++ // a stall invalidates any in-flight attach
	e.out.Stop()
	prev := e.state
	e.state = StateIdle
	e.err = err
	e.log.WithError(err).WithField("op", op).Warn("playback stalled")
	e.publish(func(s *Subscription) {
		s.sendError(ErrorEvent{Op: op, Err: err, Fatal: true})
	})
	e.publishStateLocked(prev, StateIdle)
}

// handleSyncResult logs heartbeat outcomes. Sync failures are always
// non-fatal: audio continuity is the primary contract.
func (e *Engine) handleSyncResult(res syncResult) {
	if res.err == nil {
		return
	}
	e.log.WithError(res.err).WithField("session", res.sessionID).Warn("heartbeat flush failed")
	e.publish(func(s *Subscription) {
		s.sendError(ErrorEvent{Op: "sync", Err: res.err, Fatal: false})
	})
}

// applyProgress merges a remote progress batch. Updates for the active
// item adjust the paused player; anything else only lands in the shared
// map so another device's progress never yanks audible playback.
func (e *Engine) applyProgress(batch []media.Progress) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, p := range batch {
		e.progress[p.ItemID] = p
		if e.item == nil || p.ItemID != e.item.ID {
			continue
		}
		e.item = e.item.WithProgress(p)
		// Only reposition while nothing is audible, and only for a
		// meaningful divergence.
		if e.state != StateReady && e.state != StatePaused {
			continue
		}
		if absf(p.CurrentTime-e.lastGlobal) <= feedApplyWindow {
			continue
		}
		global := clamp(p.CurrentTime, 0, e.item.Duration)
		seg, local := e.strat.locate(global)
		if seg == e.activeSeg {
			if err := e.out.SeekTo(local); err == nil {
				e.lastGlobal = global
				e.publishPositionLocked()
			}
			continue
		}
		e.switchSegmentLocked(seg, local, global)
	}
}

// closeSessionLocked closes the open session at the current position.
func (e *Engine) closeSessionLocked() {
	if e.sess == nil {
		return
	}
	sess := e.sess
	sessID := e.plan.sessionID
	e.sess = nil
	pos := e.lastGlobal
	// The close call is network I/O; run it off the event loop.
	go func() {
		sess.close(pos)
		e.publish(func(s *Subscription) {
			s.sendSession(SessionChange{SessionID: sessID, Opened: false})
		})
	}()
}

// Publishing helpers. Sends are non-blocking, so publishing under the
// engine lock cannot deadlock.

func (e *Engine) publish(fn func(*Subscription)) {
	e.subsMu.RLock()
	defer e.subsMu.RUnlock()
	for _, sub := range e.subs {
		fn(sub)
	}
}

func (e *Engine) publishStateLocked(prev, cur State) {
	if prev == cur {
		return
	}
	e.publish(func(s *Subscription) { s.sendState(StateChange{Previous: prev, Current: cur}) })
}

func (e *Engine) publishPositionLocked() {
	dur := 0.0
	if e.item != nil {
		dur = e.item.Duration
	}
	t, b := e.lastGlobal, e.lastBuffer
	e.publish(func(s *Subscription) {
		s.sendPosition(PositionChange{Time: t, Duration: dur})
		s.sendBuffer(BufferChange{Buffered: b})
	})
}

func (e *Engine) publishSleepLocked() {
	ev := SleepChange{Mode: e.sleep.mode, Remaining: e.sleep.remaining, Deadline: e.sleep.deadline}
	e.publish(func(s *Subscription) { s.sendSleep(ev) })
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func absf(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func secondsDur(s float64) time.Duration {
	if s < 0 {
		s = 0
	}
	return time.Duration(s * float64(time.Second))
}
