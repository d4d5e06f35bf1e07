package ivr

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"voice-auth-ivr/internal/audit"
	"voice-auth-ivr/internal/calls"
	"voice-auth-ivr/internal/telephony"
	"voice-auth-ivr/internal/voiceit"
	"voice-auth-ivr/pkg/logger"
)

const waitFor = 2 * time.Second

// manualClock fires timers only when advanced.
type manualClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*manualTimer
	armed  chan time.Duration
}

type manualTimer struct {
	c       *manualClock
	at      time.Time
	f       func()
	stopped bool
	fired   bool
}

func newManualClock() *manualClock {
	return &manualClock{
		now:   time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC),
		armed: make(chan time.Duration, 64),
	}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	t := &manualTimer{c: c, at: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	c.mu.Unlock()
	select {
	case c.armed <- d:
	default:
	}
	return t
}

func (t *manualTimer) Stop() bool {
	t.c.mu.Lock()
	defer t.c.mu.Unlock()
	active := !t.stopped && !t.fired
	t.stopped = true
	return active
}

// Advance moves time forward and runs every timer that became due.
func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	var due []*manualTimer
	for _, t := range c.timers {
		if !t.stopped && !t.fired && !t.at.After(c.now) {
			t.fired = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()
	for _, t := range due {
		t.f()
	}
}

// waitArmed blocks until a timer of duration d has been scheduled.
func (c *manualClock) waitArmed(t *testing.T, d time.Duration) {
	t.Helper()
	deadline := time.After(waitFor)
	for {
		select {
		case got := <-c.armed:
			if got == d {
				return
			}
		case <-deadline:
			t.Fatalf("timer of %s was never armed", d)
		}
	}
}

type fakeBio struct {
	mu sync.Mutex

	createUser func(ctx context.Context) (voiceit.CreateUserResponse, error)
	enroll     func(ctx context.Context, in voiceit.VoiceRequest) (voiceit.EnrollmentResponse, error)
	verify     func(ctx context.Context, in voiceit.VoiceRequest) (voiceit.VerificationResponse, error)

	creates    int
	enrollReqs []voiceit.VoiceRequest
	verifyReqs []voiceit.VoiceRequest
}

func succ() voiceit.Result { return voiceit.Result{ResponseCode: voiceit.ResponseSuccess} }

func newFakeBio() *fakeBio {
	return &fakeBio{
		createUser: func(context.Context) (voiceit.CreateUserResponse, error) {
			return voiceit.CreateUserResponse{Result: succ(), UserID: "usr_1"}, nil
		},
		enroll: func(context.Context, voiceit.VoiceRequest) (voiceit.EnrollmentResponse, error) {
			return voiceit.EnrollmentResponse{Result: succ()}, nil
		},
		verify: func(context.Context, voiceit.VoiceRequest) (voiceit.VerificationResponse, error) {
			return voiceit.VerificationResponse{Result: succ(), Confidence: 87}, nil
		},
	}
}

func (b *fakeBio) CreateUser(ctx context.Context) (voiceit.CreateUserResponse, error) {
	b.mu.Lock()
	b.creates++
	fn := b.createUser
	b.mu.Unlock()
	return fn(ctx)
}

func (b *fakeBio) EnrollVoiceByURL(ctx context.Context, in voiceit.VoiceRequest) (voiceit.EnrollmentResponse, error) {
	b.mu.Lock()
	b.enrollReqs = append(b.enrollReqs, in)
	fn := b.enroll
	b.mu.Unlock()
	return fn(ctx, in)
}

func (b *fakeBio) VerifyVoiceByURL(ctx context.Context, in voiceit.VoiceRequest) (voiceit.VerificationResponse, error) {
	b.mu.Lock()
	b.verifyReqs = append(b.verifyReqs, in)
	fn := b.verify
	b.mu.Unlock()
	return fn(ctx, in)
}

func (b *fakeBio) counts() (creates, enrolls, verifies int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.creates, len(b.enrollReqs), len(b.verifyReqs)
}

type putCall struct {
	callerID string
	userID   string
	ttl      time.Duration
}

// stubStore is a mapping store with scripted results.
type stubStore struct {
	mu      sync.Mutex
	userID  string
	found   bool
	getErr  error
	putErr  error
	gets    int
	putsLog []putCall
	puts    chan putCall
}

func newStubStore() *stubStore { return &stubStore{puts: make(chan putCall, 8)} }

func (s *stubStore) Get(ctx context.Context, callerID string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gets++
	return s.userID, s.found, s.getErr
}

func (s *stubStore) Put(ctx context.Context, callerID, userID string, ttl time.Duration) error {
	s.mu.Lock()
	p := putCall{callerID: callerID, userID: userID, ttl: ttl}
	s.putsLog = append(s.putsLog, p)
	err := s.putErr
	s.mu.Unlock()
	s.puts <- p
	return err
}

func (s *stubStore) putCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.putsLog)
}

type journalRecorder struct {
	mu     sync.Mutex
	events []audit.Event
}

func (j *journalRecorder) Record(ctx context.Context, e audit.Event) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.events = append(j.events, e)
}

func (j *journalRecorder) types() []audit.EventType {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]audit.EventType, 0, len(j.events))
	for _, e := range j.events {
		out = append(out, e.Type)
	}
	return out
}

type fakeGate struct {
	mu       sync.Mutex
	admit    bool
	err      error
	acquired int
	released int
}

func (g *fakeGate) Acquire(ctx context.Context, callID string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.acquired++
	return g.admit, g.err
}

func (g *fakeGate) Release(ctx context.Context, callID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.released++
	return nil
}

// harness drives one call through a MemorySession.
type harness struct {
	t       *testing.T
	sess    *telephony.MemorySession
	bio     *fakeBio
	store   *stubStore
	journal *journalRecorder
	records *calls.MemoryRepo
	clock   *manualClock

	settings Settings
	opts     []Option
	result   chan calls.Call
}

func newHarness(t *testing.T) *harness {
	return &harness{
		t:       t,
		sess:    telephony.NewMemorySession("call-1", "+15550001111"),
		bio:     newFakeBio(),
		store:   newStubStore(),
		journal: &journalRecorder{},
		records: calls.NewMemoryRepo(),
		clock:   newManualClock(),
		result:  make(chan calls.Call, 1),
	}
}

func (h *harness) knownCaller(userID string) *harness {
	h.store.userID = userID
	h.store.found = true
	return h
}

func (h *harness) start(ctx context.Context) {
	opts := append([]Option{
		WithJournal(h.journal),
		WithCallRecords(h.records),
		WithClock(h.clock),
		WithLogger(logger.Discard()),
	}, h.opts...)
	flow := NewFlow(h.bio, h.store, h.settings, opts...)
	go func() { h.result <- flow.Run(ctx, h.sess) }()
}

// connect starts the call and walks it through answer and connect.
func (h *harness) connect() {
	h.t.Helper()
	h.start(context.Background())
	h.expect(telephony.CommandAnswer)
	h.sess.Emit(telephony.Event{Kind: telephony.EventConnected})
}

func (h *harness) expect(name string) telephony.Command {
	h.t.Helper()
	select {
	case cmd := <-h.sess.Sent():
		if cmd.Name != name {
			h.t.Fatalf("expected command %q, got %+v", name, cmd)
		}
		return cmd
	case <-time.After(waitFor):
		h.t.Fatalf("timed out waiting for command %q", name)
	}
	return telephony.Command{}
}

// expectSay waits for a say command whose text contains want.
func (h *harness) expectSay(want string) telephony.Command {
	h.t.Helper()
	cmd := h.expect(telephony.CommandSay)
	if !strings.Contains(cmd.Text, want) {
		h.t.Fatalf("expected prompt containing %q, got %q", want, cmd.Text)
	}
	return cmd
}

func (h *harness) expectNothing(d time.Duration) {
	h.t.Helper()
	select {
	case cmd := <-h.sess.Sent():
		h.t.Fatalf("unexpected command %+v", cmd)
	case <-time.After(d):
	}
}

func (h *harness) played(cmd telephony.Command) {
	h.sess.Emit(telephony.Event{Kind: telephony.EventPlaybackFinished, PlaybackID: cmd.PlaybackID})
}

// utter records one utterance that the runtime stops on its own.
func (h *harness) utter(url string) telephony.Command {
	h.t.Helper()
	rec := h.expect(telephony.CommandCreateRecorder)
	if !rec.Lossless {
		h.t.Fatalf("expected lossless recorder")
	}
	h.expect(telephony.CommandSendMedia)
	h.sess.Emit(telephony.Event{Kind: telephony.EventRecorderStarted, RecorderID: rec.RecorderID, URL: url})
	h.clock.waitArmed(h.t, DefaultRecordingMax)
	h.sess.Emit(telephony.Event{Kind: telephony.EventRecorderStopped, RecorderID: rec.RecorderID})
	return rec
}

func (h *harness) wait() calls.Call {
	h.t.Helper()
	select {
	case c := <-h.result:
		return c
	case <-time.After(waitFor):
		h.t.Fatalf("flow did not terminate")
	}
	return calls.Call{}
}

func (h *harness) sent(name string) int {
	n := 0
	for _, c := range h.sess.Commands() {
		if c.Name == name {
			n++
		}
	}
	return n
}
