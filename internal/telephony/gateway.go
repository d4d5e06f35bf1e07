package telephony

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Media gateway wire protocol.
//
// One WebSocket carries exactly one call leg. The gateway opens with
// call.alerting, then streams call/recorder events as JSON text frames. The
// service answers with command frames. Audio never crosses this socket; the
// gateway stores recordings itself and reports their URL.
const (
	messageAlerting = "call.alerting"

	DefaultAlertingTimeout = 10 * time.Second
	defaultWriteTimeout    = 5 * time.Second
	defaultPongWait        = 60 * time.Second
)

var (
	ErrAlertingExpected = errors.New("telephony: first gateway message must be call.alerting")
	ErrMissingCallID    = errors.New("telephony: call.alerting without callId")
)

type GatewayOptions struct {
	// AlertingTimeout bounds the wait for the opening call.alerting frame.
	AlertingTimeout time.Duration
	WriteTimeout    time.Duration
	// PongWait is how long the socket may stay silent before it is declared
	// dead. Pings go out at 9/10 of this.
	PongWait time.Duration
}

func (o GatewayOptions) withDefaults() GatewayOptions {
	if o.AlertingTimeout <= 0 {
		o.AlertingTimeout = DefaultAlertingTimeout
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = defaultWriteTimeout
	}
	if o.PongWait <= 0 {
		o.PongWait = defaultPongWait
	}
	return o
}

type gatewayMessage struct {
	Event string `json:"event"`

	CallID   string `json:"callId,omitempty"`
	CallerID string `json:"callerId,omitempty"`
	CalledID string `json:"calledId,omitempty"`

	PlaybackID string `json:"playbackId,omitempty"`
	Tone       string `json:"tone,omitempty"`
	RecorderID string `json:"recorderId,omitempty"`
	URL        string `json:"url,omitempty"`
	Reason     string `json:"reason,omitempty"`
}

type gatewayCommand struct {
	Command string `json:"command"`
	CallID  string `json:"callId"`

	PlaybackID string `json:"playbackId,omitempty"`
	Text       string `json:"text,omitempty"`
	Voice      string `json:"voice,omitempty"`
	Enabled    *bool  `json:"enabled,omitempty"`
	RecorderID string `json:"recorderId,omitempty"`
	Lossless   *bool  `json:"lossless,omitempty"`
}

// GatewaySession is a Session backed by a media gateway WebSocket.
type GatewaySession struct {
	conn *websocket.Conn
	opts GatewayOptions
	log  *slog.Logger

	callID   string
	callerID string
	calledID string

	events chan Event
	done   chan struct{}

	writeMu   sync.Mutex
	closeOnce sync.Once
}

// AcceptGateway waits for call.alerting on conn and starts the read and
// keep-alive loops. On error the caller still owns conn.
func AcceptGateway(conn *websocket.Conn, opts GatewayOptions, log *slog.Logger) (*GatewaySession, error) {
	opts = opts.withDefaults()
	if log == nil {
		log = slog.Default()
	}

	if err := conn.SetReadDeadline(time.Now().Add(opts.AlertingTimeout)); err != nil {
		return nil, err
	}
	var first gatewayMessage
	if err := conn.ReadJSON(&first); err != nil {
		return nil, fmt.Errorf("telephony: read call.alerting: %w", err)
	}
	if first.Event != messageAlerting {
		return nil, ErrAlertingExpected
	}
	if first.CallID == "" {
		return nil, ErrMissingCallID
	}

	s := &GatewaySession{
		conn:     conn,
		opts:     opts,
		log:      log.With("call_id", first.CallID, "caller_id", first.CallerID),
		callID:   first.CallID,
		callerID: first.CallerID,
		calledID: first.CalledID,
		events:   make(chan Event, 64),
		done:     make(chan struct{}),
	}

	_ = conn.SetReadDeadline(time.Now().Add(opts.PongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(opts.PongWait))
	})

	go s.readLoop()
	go s.pingLoop()
	return s, nil
}

func (s *GatewaySession) CallID() string       { return s.callID }
func (s *GatewaySession) CallerID() string     { return s.callerID }
func (s *GatewaySession) CalledID() string     { return s.calledID }
func (s *GatewaySession) Events() <-chan Event { return s.events }

// Close tears down the socket. Safe to call more than once.
func (s *GatewaySession) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		s.writeMu.Lock()
		_ = s.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "call ended"),
			time.Now().Add(s.opts.WriteTimeout),
		)
		s.writeMu.Unlock()
		err = s.conn.Close()
	})
	return err
}

func (s *GatewaySession) readLoop() {
	defer close(s.events)

	for {
		_, frame, err := s.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				select {
				case <-s.done:
				default:
					s.log.Info("gateway socket closed", "err", err)
				}
			}
			s.deliver(Event{Kind: EventDisconnected, Reason: "socket closed"})
			return
		}

		// A frame that does not decode is dropped on its own; only a read
		// error ends the leg.
		var msg gatewayMessage
		if err := json.Unmarshal(frame, &msg); err != nil {
			s.log.Warn("gateway sent malformed frame", "err", err)
			continue
		}

		ev, ok := toEvent(msg)
		if !ok {
			s.log.Debug("ignoring gateway message", "event", msg.Event)
			continue
		}
		if !s.deliver(ev) {
			return
		}
	}
}

func (s *GatewaySession) deliver(ev Event) bool {
	select {
	case s.events <- ev:
		return true
	case <-s.done:
		return false
	}
}

func toEvent(m gatewayMessage) (Event, bool) {
	ev := Event{
		Kind:       EventKind(m.Event),
		PlaybackID: m.PlaybackID,
		Tone:       m.Tone,
		RecorderID: m.RecorderID,
		URL:        m.URL,
		Reason:     m.Reason,
	}
	switch ev.Kind {
	case EventConnected, EventDisconnected, EventFailed,
		EventPlaybackFinished, EventToneReceived,
		EventRecorderStarted, EventRecorderStopped:
		return ev, true
	default:
		return Event{}, false
	}
}

func (s *GatewaySession) pingLoop() {
	t := time.NewTicker(s.opts.PongWait * 9 / 10)
	defer t.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-t.C:
			s.writeMu.Lock()
			err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(s.opts.WriteTimeout))
			s.writeMu.Unlock()
			if err != nil {
				s.log.Warn("gateway ping failed", "err", err)
				return
			}
		}
	}
}

func (s *GatewaySession) send(cmd gatewayCommand) error {
	select {
	case <-s.done:
		return ErrSessionClosed
	default:
	}
	cmd.CallID = s.callID

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.conn.SetWriteDeadline(time.Now().Add(s.opts.WriteTimeout)); err != nil {
		return err
	}
	if err := s.conn.WriteJSON(cmd); err != nil {
		return fmt.Errorf("telephony: send %s: %w", cmd.Command, err)
	}
	return nil
}

func (s *GatewaySession) Answer() error {
	return s.send(gatewayCommand{Command: CommandAnswer})
}

func (s *GatewaySession) Say(text, voice string) (string, error) {
	id := uuid.NewString()
	if err := s.send(gatewayCommand{Command: CommandSay, PlaybackID: id, Text: text, Voice: voice}); err != nil {
		return "", err
	}
	return id, nil
}

func (s *GatewaySession) HandleTones(enabled bool) error {
	return s.send(gatewayCommand{Command: CommandHandleTones, Enabled: &enabled})
}

func (s *GatewaySession) CreateRecorder(opts RecorderOptions) (Recorder, error) {
	id := uuid.NewString()
	lossless := opts.Lossless
	if err := s.send(gatewayCommand{Command: CommandCreateRecorder, RecorderID: id, Lossless: &lossless}); err != nil {
		return nil, err
	}
	return gatewayRecorder{id: id, s: s}, nil
}

func (s *GatewaySession) SendMediaTo(r Recorder) error {
	return s.send(gatewayCommand{Command: CommandSendMedia, RecorderID: r.ID()})
}

func (s *GatewaySession) StopPlayback() error {
	return s.send(gatewayCommand{Command: CommandStopPlayback})
}

func (s *GatewaySession) Hangup() error {
	return s.send(gatewayCommand{Command: CommandHangup})
}

type gatewayRecorder struct {
	id string
	s  *GatewaySession
}

func (r gatewayRecorder) ID() string { return r.id }

func (r gatewayRecorder) Stop() error {
	return r.s.send(gatewayCommand{Command: CommandStopRecorder, RecorderID: r.id})
}
