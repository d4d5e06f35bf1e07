package telephony

import (
	"context"
	"errors"
	"net/http"

	"voice-auth-ivr/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// CallRunner drives one call until it is over. Run must return once the call
// has terminated or ctx is done.
type CallRunner interface {
	Run(ctx context.Context, s Session)
}

type CallRunnerFunc func(ctx context.Context, s Session)

func (f CallRunnerFunc) Run(ctx context.Context, s Session) { f(ctx, s) }

// GatewayHandler upgrades a media gateway connection and hands the call leg
// to Runner. The request blocks for the lifetime of the call.
//
// No business logic here. Authentication happens in middleware before the
// upgrade.
type GatewayHandler struct {
	Runner   CallRunner
	Upgrader websocket.Upgrader
	Options  GatewayOptions
}

func (h GatewayHandler) HandleCall(c *gin.Context) {
	log := logger.FromGin(c)

	if h.Runner == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "call runner not configured"})
		return
	}
	if !websocket.IsWebSocketUpgrade(c.Request) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "websocket upgrade required"})
		return
	}

	conn, err := h.Upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already written an HTTP error.
		log.Warn("gateway upgrade failed", "err", err)
		return
	}

	sess, err := AcceptGateway(conn, h.Options, log)
	if err != nil {
		log.Warn("gateway handshake failed", "err", err)
		code := websocket.ClosePolicyViolation
		if !errors.Is(err, ErrAlertingExpected) && !errors.Is(err, ErrMissingCallID) {
			code = websocket.CloseProtocolError
		}
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(code, "call.alerting required"))
		_ = conn.Close()
		return
	}
	defer sess.Close()

	log.Info("call alerting", "call_id", sess.CallID(), "caller_id", sess.CallerID(), "called_id", sess.CalledID())
	h.Runner.Run(c.Request.Context(), sess)
}
