package telephony

import "errors"

// Session is the provider-agnostic view of one live call leg.
//
// Rules:
//   - No provider protocol details outside telephony adapters.
//   - Commands are fire-and-forget; their outcome arrives later on Events().
//   - Events() is closed once the leg is gone. A closed channel means the same
//     as EventDisconnected.
type Session interface {
	CallID() string
	CallerID() string

	Events() <-chan Event

	Answer() error
	// Say starts text-to-speech playback (plain text or SSML) and returns the
	// playback id that the matching EventPlaybackFinished will carry.
	Say(text, voice string) (string, error)
	HandleTones(enabled bool) error
	CreateRecorder(opts RecorderOptions) (Recorder, error)
	// SendMediaTo routes the caller's audio into r; recording starts once the
	// runtime reports EventRecorderStarted.
	SendMediaTo(r Recorder) error
	StopPlayback() error
	Hangup() error
}

// Recorder is a handle on one audio capture created by a Session.
type Recorder interface {
	ID() string
	Stop() error
}

type RecorderOptions struct {
	// Lossless asks the runtime for FLAC rather than a compressed format.
	Lossless bool `json:"lossless"`
}

type EventKind string

const (
	EventConnected        EventKind = "call.connected"
	EventDisconnected     EventKind = "call.disconnected"
	EventFailed           EventKind = "call.failed"
	EventPlaybackFinished EventKind = "playback.finished"
	EventToneReceived     EventKind = "tone.received"
	EventRecorderStarted  EventKind = "recorder.started"
	EventRecorderStopped  EventKind = "recorder.stopped"
)

// Event is a call or recorder event reported by the media runtime.
type Event struct {
	Kind EventKind `json:"event"`

	PlaybackID string `json:"playbackId,omitempty"`
	Tone       string `json:"tone,omitempty"`

	RecorderID string `json:"recorderId,omitempty"`
	// URL is where the finished recording can be fetched (RecorderStarted).
	URL string `json:"url,omitempty"`

	// Reason is optional detail for Failed/Disconnected.
	Reason string `json:"reason,omitempty"`
}

// Terminal reports whether the event ends the call leg.
func (e Event) Terminal() bool {
	return e.Kind == EventDisconnected || e.Kind == EventFailed
}

var ErrSessionClosed = errors.New("telephony: session closed")
