package ivr

import (
	"fmt"
	"strconv"
	"time"

	"voice-auth-ivr/internal/mapping"
)

const (
	// DefaultRecordingMax is the hard cap on one recording, counted from the
	// moment the recorder reports it started.
	DefaultRecordingMax = 3500 * time.Millisecond
	// DefaultToneWindow is how long a known caller may press 1 after the
	// welcome prompt finished.
	DefaultToneWindow = 3000 * time.Millisecond
	// DefaultEnrollmentsRequired accepted enrollments complete enrollment.
	DefaultEnrollmentsRequired = 3

	DefaultPhrase          = "my face and voice identify me"
	DefaultContentLanguage = "en-US"
	DefaultVoice           = "en-US-Wavenet-C"

	// enrollTone is the DTMF digit that switches a known caller to enrollment.
	enrollTone = "1"
)

// Settings tunes a Flow. Zero values take the defaults above.
type Settings struct {
	Phrase          string
	ContentLanguage string
	Voice           string

	RecordingMax        time.Duration
	ToneWindow          time.Duration
	MappingTTL          time.Duration
	EnrollmentsRequired int

	// MaxAttempts caps consecutive failed enrollment or verification
	// attempts. 0 means unlimited.
	MaxAttempts int
}

func DefaultSettings() Settings {
	return Settings{}.withDefaults()
}

func (s Settings) withDefaults() Settings {
	if s.Phrase == "" {
		s.Phrase = DefaultPhrase
	}
	if s.ContentLanguage == "" {
		s.ContentLanguage = DefaultContentLanguage
	}
	if s.Voice == "" {
		s.Voice = DefaultVoice
	}
	if s.RecordingMax <= 0 {
		s.RecordingMax = DefaultRecordingMax
	}
	if s.ToneWindow <= 0 {
		s.ToneWindow = DefaultToneWindow
	}
	if s.MappingTTL <= 0 {
		s.MappingTTL = mapping.DefaultTTL
	}
	if s.EnrollmentsRequired <= 0 {
		s.EnrollmentsRequired = DefaultEnrollmentsRequired
	}
	if s.MaxAttempts < 0 {
		s.MaxAttempts = 0
	}
	return s
}

// Prompts. SSML is passed through to the media runtime untouched.

func (s Settings) enrollIntroPrompt() string {
	return fmt.Sprintf(`<speak>Welcome to the Voice Authentication system. You are a new user, you will now be enrolled. `+
		`You will be asked to say a phrase %d times, then you will be able to log in with that phrase. `+
		`Please say the following phrase. <break time="1s"/>%s.</speak>`, s.EnrollmentsRequired, s.Phrase)
}

func (s Settings) knownCallerPrompt() string {
	return "You have called Voice Authentication. Your phone number has been recognized. " +
		"You can now log in, or press 1 now to enroll for the first time."
}

func (s Settings) enrollAgainPrompt() string {
	return "Thank you, recording received. Please say the phrase again."
}

func (s Settings) enrolledPrompt() string {
	return "Thank you, recording received. You are now enrolled and can log in."
}

func (s Settings) enrollRetryPrompt() string {
	return "Sorry, your recording did not stick. Please try again."
}

func (s Settings) authPrompt() string {
	return fmt.Sprintf(`<speak>Please say the following phrase to authenticate.<break time="1s"/> %s.</speak>`, s.Phrase)
}

func (s Settings) authSucceededPrompt(confidence float64) string {
	return "The authentication is successful. Confidence level is " + strconv.FormatFloat(confidence, 'f', -1, 64) + "%"
}

func (s Settings) authFailedPrompt() string {
	return "Your authentication did not pass. Please try again."
}

func (s Settings) unavailablePrompt() string {
	return "We are sorry, but the service is temporarily unavailable. Please try again later."
}
