package ivr

import (
	"context"
	"errors"
	"fmt"

	"voice-auth-ivr/internal/audit"
	"voice-auth-ivr/internal/calls"
	"voice-auth-ivr/internal/telephony"
	"voice-auth-ivr/internal/voiceit"
)

var errNoRecordingURL = errors.New("ivr: recorder stopped without a recording url")

// start answers the call and waits for it to connect.
func (c *call) start() {
	sc := c.enter(StateRinging)
	sc.on(telephony.EventConnected, func(telephony.Event) {
		c.enter(StateConnected)
		if c.rejected {
			c.unavailable()
			return
		}
		c.identify()
	})
	if err := c.s.Answer(); err != nil {
		c.sessionError("answer", err)
	}
}

// identify looks the caller up. A lookup failure is treated as an unknown
// caller.
func (c *call) identify() {
	sc := c.enter(StateIdentifyingCaller)
	callerID := c.s.CallerID()
	c.async(sc, func(ctx context.Context) func() {
		userID, found, err := c.f.store.Get(ctx, callerID)
		return func() {
			if err != nil {
				c.log.Warn("caller lookup failed, treating caller as new", "err", err)
				found = false
			}
			if !found {
				c.createUser()
				return
			}
			c.record.UserID = userID
			c.log.Info("caller recognized", "user_id", userID)
			c.journal(audit.EventTypeCallerIdentified, "", nil)
			c.authChoice()
		}
	})
}

func (c *call) createUser() {
	sc := c.enter(StateCreatingUser)
	c.async(sc, func(ctx context.Context) func() {
		res, err := c.f.bio.CreateUser(ctx)
		return func() {
			if err == nil && (!res.Succeeded() || res.UserID == "") {
				err = fmt.Errorf("ivr: create user: %s %q", res.ResponseCode, res.Message)
			}
			if err != nil {
				c.log.Error("biometric user creation failed", "err", err)
				c.journal(audit.EventTypeUserCreateFailed, err.Error(), nil)
				c.unavailable()
				return
			}

			c.record.UserID = res.UserID
			c.record.NewUser = true
			c.log.Info("biometric user created", "user_id", res.UserID)
			c.journal(audit.EventTypeUserCreated, "", nil)
			c.saveMapping(res.UserID)
			c.enrollIntro()
		}
	})
}

// saveMapping stores caller → user in the background. The call does not
// wait for it and a failure only costs the caller a re-enrollment later.
func (c *call) saveMapping(userID string) {
	callerID := c.s.CallerID()
	ttl := c.f.settings.MappingTTL
	ctx, cancel := context.WithTimeout(context.WithoutCancel(c.ctx), c.f.writeTimeout)
	go func() {
		defer cancel()
		if err := c.f.store.Put(ctx, callerID, userID, ttl); err != nil {
			c.log.Error("caller mapping save failed", "user_id", userID, "err", err)
		}
	}()
}

// authChoice offers a known caller to press 1 to enroll. Without a tone the
// call moves on to authentication once the window after the prompt closes.
func (c *call) authChoice() {
	sc := c.enter(StateAuthChoice)
	if err := c.s.HandleTones(true); err != nil {
		c.sessionError("handle_tones", err)
		return
	}

	leave := func(next func()) {
		if err := c.s.HandleTones(false); err != nil {
			c.sessionError("handle_tones", err)
			return
		}
		next()
	}

	sc.on(telephony.EventToneReceived, func(ev telephony.Event) {
		if ev.Tone != enrollTone {
			c.log.Debug("tone ignored", "tone", ev.Tone)
			return
		}
		leave(func() {
			if err := c.s.StopPlayback(); err != nil {
				c.sessionError("stop_playback", err)
				return
			}
			c.enrollIntro()
		})
	})

	c.say(sc, c.f.settings.knownCallerPrompt(), func() {
		c.after(sc, c.f.settings.ToneWindow, func() {
			leave(c.authPrompt)
		})
	})
}

func (c *call) enrollIntro() {
	c.announce(StateEnrollIntro, c.f.settings.enrollIntroPrompt(), c.enroll)
}

func (c *call) enroll() {
	sc := c.enter(StateEnrolling)
	c.capture(sc, func(url string) {
		c.record.EnrollAttempts++
		sub := c.enter(StateEnrolling)
		if url == "" {
			c.enrollResult(voiceit.EnrollmentResponse{}, errNoRecordingURL)
			return
		}
		req := c.voiceRequest(url)
		c.async(sub, func(ctx context.Context) func() {
			res, err := c.f.bio.EnrollVoiceByURL(ctx, req)
			return func() { c.enrollResult(res, err) }
		})
	})
}

func (c *call) enrollResult(res voiceit.EnrollmentResponse, err error) {
	if err == nil && !res.Succeeded() {
		err = fmt.Errorf("ivr: enrollment: %s %q", res.ResponseCode, res.Message)
	}
	if err != nil {
		c.log.Warn("enrollment rejected", "attempt", c.record.EnrollAttempts, "err", err)
		c.journal(audit.EventTypeEnrollmentRejected, err.Error(), nil)
		if c.attemptFailed() {
			return
		}
		c.announce(StateEnrollPrompt, c.f.settings.enrollRetryPrompt(), c.enroll)
		return
	}

	c.failures = 0
	c.record.EnrollCount++
	c.log.Info("enrollment accepted", "enroll_count", c.record.EnrollCount)
	c.journal(audit.EventTypeEnrollmentAccepted, "", map[string]any{"enroll_count": c.record.EnrollCount})

	if c.record.EnrollCount >= c.f.settings.EnrollmentsRequired {
		c.announce(StateEnrollPrompt, c.f.settings.enrolledPrompt(), c.authPrompt)
		return
	}
	c.announce(StateEnrollPrompt, c.f.settings.enrollAgainPrompt(), c.enroll)
}

func (c *call) authPrompt() {
	c.announce(StateAuthPrompt, c.f.settings.authPrompt(), c.authenticate)
}

func (c *call) authenticate() {
	sc := c.enter(StateAuthenticating)
	c.capture(sc, func(url string) {
		c.record.VerifyAttempts++
		sub := c.enter(StateAuthenticating)
		if url == "" {
			c.verifyResult(voiceit.VerificationResponse{}, errNoRecordingURL)
			return
		}
		req := c.voiceRequest(url)
		c.async(sub, func(ctx context.Context) func() {
			res, err := c.f.bio.VerifyVoiceByURL(ctx, req)
			return func() { c.verifyResult(res, err) }
		})
	})
}

func (c *call) verifyResult(res voiceit.VerificationResponse, err error) {
	if err == nil && !res.Succeeded() {
		err = fmt.Errorf("ivr: verification: %s %q", res.ResponseCode, res.Message)
	}
	if err != nil {
		c.log.Warn("verification failed", "attempt", c.record.VerifyAttempts, "err", err)
		c.journal(audit.EventTypeVerificationFailed, err.Error(), nil)
		if c.attemptFailed() {
			return
		}
		c.announce(StateAuthResult, c.f.settings.authFailedPrompt(), c.authPrompt)
		return
	}

	c.failures = 0
	c.verified = true
	c.record.Confidence = res.Confidence
	c.log.Info("verification passed", "confidence", res.Confidence)
	c.journal(audit.EventTypeVerificationPassed, "", map[string]any{"confidence": res.Confidence})
	c.announce(StateAuthResult, c.f.settings.authSucceededPrompt(res.Confidence), func() {
		c.finish(calls.OutcomeVerified, true)
	})
}

// attemptFailed counts a failed attempt. It reports true when the attempt
// limit was reached and the call is being ended.
func (c *call) attemptFailed() bool {
	c.failures++
	limit := c.f.settings.MaxAttempts
	if limit <= 0 || c.failures < limit {
		return false
	}
	c.log.Warn("attempt limit reached", "failures", c.failures)
	c.unavailable()
	return true
}

// unavailable apologizes and hangs up once the message has played.
func (c *call) unavailable() {
	c.record.Outcome = calls.OutcomeUnavailable
	c.announce(StateTerminating, c.f.settings.unavailablePrompt(), func() {
		c.finish(calls.OutcomeUnavailable, true)
	})
}

// capture records one utterance. The recording is stopped after
// RecordingMax counted from RecorderStarted, or earlier by the runtime.
// done runs on RecorderStopped with the recording url, empty if the recorder
// never reported one.
func (c *call) capture(sc *scope, done func(url string)) {
	if c.rec != nil {
		c.log.Error("recorder still open, stopping it", "recorder_id", c.rec.handle.ID())
		_ = c.rec.handle.Stop()
		c.rec = nil
	}

	r, err := c.s.CreateRecorder(telephony.RecorderOptions{Lossless: true})
	if err != nil {
		c.sessionError("create_recorder", err)
		return
	}
	rec := &recording{handle: r}
	c.rec = rec

	sc.on(telephony.EventRecorderStarted, func(ev telephony.Event) {
		if ev.RecorderID != r.ID() || rec.armed {
			return
		}
		rec.armed = true
		rec.url = ev.URL
		c.after(sc, c.f.settings.RecordingMax, func() {
			if err := r.Stop(); err != nil {
				c.log.Warn("recorder stop failed", "recorder_id", r.ID(), "err", err)
			}
		})
	})
	sc.on(telephony.EventRecorderStopped, func(ev telephony.Event) {
		if ev.RecorderID != r.ID() {
			return
		}
		c.rec = nil
		done(rec.url)
	})

	if err := c.s.SendMediaTo(r); err != nil {
		c.sessionError("send_media", err)
	}
}

func (c *call) voiceRequest(url string) voiceit.VoiceRequest {
	return voiceit.VoiceRequest{
		UserID:          c.record.UserID,
		ContentLanguage: c.f.settings.ContentLanguage,
		Phrase:          c.f.settings.Phrase,
		FileURL:         url,
	}
}
