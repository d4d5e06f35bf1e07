// Package ivr runs the voice authentication call flow: identify the caller by
// phone number, enroll new callers with a spoken phrase, then verify them.
//
// Each call is driven by one event loop goroutine. Session events, timer
// firings and the results of asynchronous work are all serialized through it,
// so flow state is never shared between goroutines.
package ivr

import (
	"context"
	"log/slog"
	"time"

	"voice-auth-ivr/internal/audit"
	"voice-auth-ivr/internal/calls"
	"voice-auth-ivr/internal/mapping"
	"voice-auth-ivr/internal/telephony"
	"voice-auth-ivr/internal/voiceit"
	"voice-auth-ivr/pkg/logger"
)

// Biometrics is the subset of the voice biometrics API the flow needs.
type Biometrics interface {
	CreateUser(ctx context.Context) (voiceit.CreateUserResponse, error)
	EnrollVoiceByURL(ctx context.Context, in voiceit.VoiceRequest) (voiceit.EnrollmentResponse, error)
	VerifyVoiceByURL(ctx context.Context, in voiceit.VoiceRequest) (voiceit.VerificationResponse, error)
}

// Journal receives call journal events. Record must not block.
type Journal interface {
	Record(ctx context.Context, e audit.Event)
}

// CallRecords stores the final record of each call.
type CallRecords interface {
	Save(ctx context.Context, c calls.Call) error
}

type Flow struct {
	bio      Biometrics
	store    mapping.Store
	settings Settings

	journal Journal
	records CallRecords
	gate    Gate
	clock   Clock
	log     *slog.Logger

	// writeTimeout bounds work that outlives the call: mapping puts and the
	// final call record.
	writeTimeout time.Duration
}

type Option func(*Flow)

func WithJournal(j Journal) Option { return func(f *Flow) { f.journal = j } }

func WithCallRecords(r CallRecords) Option { return func(f *Flow) { f.records = r } }

// WithGate makes every call acquire a slot from g before the flow starts.
func WithGate(g Gate) Option { return func(f *Flow) { f.gate = g } }

func WithClock(c Clock) Option { return func(f *Flow) { f.clock = c } }

func WithLogger(l *slog.Logger) Option { return func(f *Flow) { f.log = l } }

func NewFlow(bio Biometrics, store mapping.Store, settings Settings, opts ...Option) *Flow {
	f := &Flow{
		bio:          bio,
		store:        store,
		settings:     settings.withDefaults(),
		clock:        realClock{},
		log:          slog.Default(),
		writeTimeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *Flow) Settings() Settings { return f.settings }

// Run drives the call on s until it terminates, then journals and stores the
// call record. It blocks for the lifetime of the call. Cancelling ctx hangs
// the call up.
func (f *Flow) Run(ctx context.Context, s telephony.Session) calls.Call {
	log := logger.ForCall(f.log, s.CallID(), s.CallerID())
	c := newCall(ctx, f, s, log)

	if f.gate != nil {
		ok, err := f.gate.Acquire(ctx, s.CallID())
		switch {
		case err != nil:
			log.Warn("capacity check failed, admitting call", "err", err)
		case !ok:
			log.Warn("active call limit reached, rejecting call")
			c.rejected = true
		default:
			defer func() {
				rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), f.writeTimeout)
				defer cancel()
				if err := f.gate.Release(rctx, s.CallID()); err != nil {
					log.Error("capacity release failed", "err", err)
				}
			}()
		}
	}

	rec := c.run()

	if f.records != nil {
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), f.writeTimeout)
		defer cancel()
		if err := f.records.Save(sctx, rec); err != nil {
			log.Error("call record save failed", "err", err)
		}
	}
	return rec
}
