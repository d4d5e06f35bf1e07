package ivr

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"voice-auth-ivr/internal/audit"
	"voice-auth-ivr/internal/calls"
	"voice-auth-ivr/internal/telephony"
)

// task is work for the loop goroutine, tagged with the scope that issued it.
type task struct {
	scope uint64
	fn    func()
}

// scope is everything a phase owns: its event handlers, its timers and the
// context of its in-flight requests. Closing a scope releases all of it, so
// handlers never stack across phases and late results are dropped.
type scope struct {
	id       uint64
	ctx      context.Context
	cancel   context.CancelFunc
	handlers map[telephony.EventKind]func(telephony.Event)
	timers   []Timer
}

func (sc *scope) on(kind telephony.EventKind, fn func(telephony.Event)) {
	if sc.handlers == nil {
		return
	}
	sc.handlers[kind] = fn
}

func (sc *scope) close() {
	sc.cancel()
	for _, t := range sc.timers {
		t.Stop()
	}
	sc.timers = nil
	sc.handlers = nil
}

// recording is the one capture a call may have open.
type recording struct {
	handle telephony.Recorder
	url    string
	armed  bool
}

type call struct {
	f   *Flow
	s   telephony.Session
	log *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	tasks  chan task

	state   State
	scope   *scope
	scopeID uint64
	ended   bool

	rejected bool
	rec      *recording

	record   calls.Call
	failures int
	verified bool
}

func newCall(ctx context.Context, f *Flow, s telephony.Session, log *slog.Logger) *call {
	cctx, cancel := context.WithCancel(ctx)
	return &call{
		f:      f,
		s:      s,
		log:    log,
		ctx:    cctx,
		cancel: cancel,
		tasks:  make(chan task, 16),
		record: calls.Call{
			CallID:    s.CallID(),
			CallerID:  s.CallerID(),
			StartedAt: f.clock.Now().UTC(),
		},
	}
}

// run executes the event loop until the call terminates.
func (c *call) run() calls.Call {
	defer c.cancel()

	c.journal(audit.EventTypeCallStarted, "", nil)
	c.start()

	events := c.s.Events()
	for !c.ended {
		select {
		case <-c.ctx.Done():
			c.log.Info("call interrupted", "state", c.state, "err", c.ctx.Err())
			c.finish(calls.OutcomeInterrupted, true)
		case ev, ok := <-events:
			if !ok {
				c.remoteEnd(telephony.Event{Kind: telephony.EventDisconnected, Reason: "event stream closed"})
				continue
			}
			c.dispatch(ev)
		case t := <-c.tasks:
			if c.scope != nil && t.scope == c.scope.id {
				t.fn()
			}
		}
	}

	c.journal(audit.EventTypeCallEnded, string(c.record.Outcome), map[string]any{
		"enroll_count":    c.record.EnrollCount,
		"enroll_attempts": c.record.EnrollAttempts,
		"verify_attempts": c.record.VerifyAttempts,
		"duration":        c.record.DurationSeconds,
	})
	c.log.Info("call ended", "outcome", c.record.Outcome, "duration_s", c.record.DurationSeconds)
	return c.record
}

func (c *call) dispatch(ev telephony.Event) {
	if ev.Terminal() {
		c.remoteEnd(ev)
		return
	}
	if c.scope != nil {
		if h := c.scope.handlers[ev.Kind]; h != nil {
			h(ev)
			return
		}
	}
	c.log.Debug("event ignored", "state", c.state, "event", ev.Kind)
}

// enter closes the current phase and opens a fresh scope for state.
func (c *call) enter(state State) *scope {
	if c.scope != nil {
		c.scope.close()
	}
	c.scopeID++
	ctx, cancel := context.WithCancel(c.ctx)
	c.scope = &scope{
		id:       c.scopeID,
		ctx:      ctx,
		cancel:   cancel,
		handlers: map[telephony.EventKind]func(telephony.Event){},
	}
	if c.state != state {
		c.log.Debug("state", "from", c.state, "to", state)
	}
	c.state = state
	return c.scope
}

// post hands fn to the loop. It is dropped if sc is no longer current.
func (c *call) post(sc *scope, fn func()) {
	select {
	case c.tasks <- task{scope: sc.id, fn: fn}:
	case <-c.ctx.Done():
	}
}

// after runs fn on the loop once d has elapsed, unless sc closed first.
func (c *call) after(sc *scope, d time.Duration, fn func()) {
	if sc.ctx.Err() != nil {
		return
	}
	t := c.f.clock.AfterFunc(d, func() { c.post(sc, fn) })
	sc.timers = append(sc.timers, t)
}

// async runs work off the loop with the scope's context; the continuation it
// returns runs back on the loop.
func (c *call) async(sc *scope, work func(ctx context.Context) func()) {
	go func() {
		next := work(sc.ctx)
		c.post(sc, next)
	}()
}

// say plays text in sc and calls next once that playback finished.
func (c *call) say(sc *scope, text string, next func()) bool {
	id, err := c.s.Say(text, c.f.settings.Voice)
	if err != nil {
		c.sessionError("say", err)
		return false
	}
	done := false
	sc.on(telephony.EventPlaybackFinished, func(ev telephony.Event) {
		if ev.PlaybackID != id || done {
			return
		}
		done = true
		next()
	})
	return true
}

// announce enters state, plays text and continues with next.
func (c *call) announce(state State, text string, next func()) {
	sc := c.enter(state)
	c.say(sc, text, next)
}

// finish ends the call. hangup is false when the remote side is already gone.
func (c *call) finish(outcome calls.Outcome, hangup bool) {
	if c.ended {
		return
	}
	if c.scope != nil {
		c.scope.close()
		c.scope = nil
	}
	c.log.Debug("state", "from", c.state, "to", StateTerminated)
	c.state = StateTerminated

	if hangup {
		if c.rec != nil {
			if err := c.rec.handle.Stop(); err != nil {
				c.log.Warn("recorder stop failed", "err", err)
			}
		}
		if err := c.s.Hangup(); err != nil {
			c.log.Warn("hangup failed", "err", err)
		}
	}
	c.rec = nil

	c.record.Finish(outcome, c.f.clock.Now().UTC())
	c.ended = true
	c.cancel()
}

// remoteEnd is the hard teardown for Disconnected and Failed: no announcement
// and no hangup command.
func (c *call) remoteEnd(ev telephony.Event) {
	outcome := calls.OutcomeHangup
	switch {
	case ev.Kind == telephony.EventFailed:
		outcome = calls.OutcomeFailed
	case c.verified:
		outcome = calls.OutcomeVerified
	case c.record.Outcome != "":
		outcome = c.record.Outcome
	case c.state.enrolling():
		outcome = calls.OutcomeEnrollmentAbandoned
	case c.state.authenticating():
		outcome = calls.OutcomeVerificationAbandoned
	}
	c.log.Info("call leg ended remotely", "state", c.state, "event", ev.Kind, "reason", ev.Reason)
	c.finish(outcome, false)
}

// sessionError ends the call after a media command could not be sent.
func (c *call) sessionError(op string, err error) {
	c.log.Error("session command failed", "op", op, "state", c.state, "err", err)
	c.finish(calls.OutcomeFailed, true)
}

func (c *call) journal(t audit.EventType, msg string, meta map[string]any) {
	if c.f.journal == nil {
		return
	}
	e := audit.Event{
		CallID:   c.record.CallID,
		Type:     t,
		CallerID: c.record.CallerID,
		UserID:   c.record.UserID,
		State:    string(c.state),
		Message:  msg,
	}
	if len(meta) > 0 {
		if b, err := json.Marshal(meta); err == nil {
			e.Metadata = string(b)
		}
	}
	c.f.journal.Record(c.ctx, e)
}
