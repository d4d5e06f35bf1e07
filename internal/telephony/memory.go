package telephony

import (
	"fmt"
	"sync"
)

// Command is one instruction a Session sent to its media runtime.
type Command struct {
	Name string

	PlaybackID string
	Text       string
	Voice      string

	Enabled bool

	RecorderID string
	Lossless   bool
}

const (
	CommandAnswer         = "answer"
	CommandSay            = "say"
	CommandHandleTones    = "handle_tones"
	CommandCreateRecorder = "recorder.create"
	CommandSendMedia      = "send_media"
	CommandStopRecorder   = "recorder.stop"
	CommandStopPlayback   = "stop_playback"
	CommandHangup         = "hangup"
)

// MemorySession is an in-process Session. It records every command and lets
// the owner inject events. Ids are deterministic (pb-1, rec-1, ...).
// It is meant for tests and local tooling, not for production calls.
type MemorySession struct {
	callID   string
	callerID string

	sent chan Command

	// evMu guards events and closed only, so a blocked Emit never holds up
	// the commands the flow sends while draining the buffer.
	evMu   sync.Mutex
	events chan Event
	closed bool

	mu        sync.Mutex
	commands  []Command
	playbacks int
	recorders int
	// failOn maps a command name to the error it returns.
	failOn map[string]error
}

func NewMemorySession(callID, callerID string) *MemorySession {
	return &MemorySession{
		callID:   callID,
		callerID: callerID,
		events:   make(chan Event, 64),
		sent:     make(chan Command, 256),
		failOn:   map[string]error{},
	}
}

func (s *MemorySession) CallID() string       { return s.callID }
func (s *MemorySession) CallerID() string     { return s.callerID }
func (s *MemorySession) Events() <-chan Event { return s.events }
func (s *MemorySession) Sent() <-chan Command { return s.sent }

// Emit delivers ev as if the media runtime had reported it.
func (s *MemorySession) Emit(ev Event) {
	s.evMu.Lock()
	defer s.evMu.Unlock()
	if s.closed {
		return
	}
	s.events <- ev
}

// Close ends the event stream, which the flow reads as a remote hangup.
func (s *MemorySession) Close() {
	s.evMu.Lock()
	defer s.evMu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.events)
}

// FailOn makes every later command called name fail with err.
func (s *MemorySession) FailOn(name string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failOn[name] = err
}

// Commands returns a copy of everything sent so far.
func (s *MemorySession) Commands() []Command {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Command, len(s.commands))
	copy(out, s.commands)
	return out
}

func (s *MemorySession) record(cmd Command) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failOn[cmd.Name]; err != nil {
		return err
	}
	s.commands = append(s.commands, cmd)
	select {
	case s.sent <- cmd:
	default:
	}
	return nil
}

func (s *MemorySession) Answer() error {
	return s.record(Command{Name: CommandAnswer})
}

func (s *MemorySession) Say(text, voice string) (string, error) {
	s.mu.Lock()
	s.playbacks++
	id := fmt.Sprintf("pb-%d", s.playbacks)
	s.mu.Unlock()
	if err := s.record(Command{Name: CommandSay, PlaybackID: id, Text: text, Voice: voice}); err != nil {
		return "", err
	}
	return id, nil
}

func (s *MemorySession) HandleTones(enabled bool) error {
	return s.record(Command{Name: CommandHandleTones, Enabled: enabled})
}

func (s *MemorySession) CreateRecorder(opts RecorderOptions) (Recorder, error) {
	s.mu.Lock()
	s.recorders++
	id := fmt.Sprintf("rec-%d", s.recorders)
	s.mu.Unlock()
	if err := s.record(Command{Name: CommandCreateRecorder, RecorderID: id, Lossless: opts.Lossless}); err != nil {
		return nil, err
	}
	return memoryRecorder{id: id, s: s}, nil
}

func (s *MemorySession) SendMediaTo(r Recorder) error {
	return s.record(Command{Name: CommandSendMedia, RecorderID: r.ID()})
}

func (s *MemorySession) StopPlayback() error {
	return s.record(Command{Name: CommandStopPlayback})
}

func (s *MemorySession) Hangup() error {
	return s.record(Command{Name: CommandHangup})
}

type memoryRecorder struct {
	id string
	s  *MemorySession
}

func (r memoryRecorder) ID() string { return r.id }

func (r memoryRecorder) Stop() error {
	return r.s.record(Command{Name: CommandStopRecorder, RecorderID: r.id})
}
