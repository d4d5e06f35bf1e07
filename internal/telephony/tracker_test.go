package telephony

import (
	"context"
	"net"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// slowHangup blocks until ctx is cancelled, then takes a while to wind down
// the way a flow does when it hangs up and saves its record.
func slowHangup(started chan<- struct{}, finished *atomic.Bool) CallRunner {
	return CallRunnerFunc(func(ctx context.Context, s Session) {
		close(started)
		<-ctx.Done()
		time.Sleep(100 * time.Millisecond)
		finished.Store(true)
	})
}

func TestCallTracker_DrainWaitsForRunningCalls(t *testing.T) {
	var tr CallTracker
	var finished atomic.Bool
	started := make(chan struct{})
	runner := tr.Track(slowHangup(started, &finished))

	ctx, cancel := context.WithCancel(context.Background())
	returned := make(chan struct{})
	go func() {
		runner.Run(ctx, NewMemorySession("call-1", "+1"))
		close(returned)
	}()
	<-started

	cancel()
	dctx, dcancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer dcancel()
	require.NoError(t, tr.Drain(dctx))
	assert.True(t, finished.Load(), "drain returned before the call finished")
	<-returned
}

func TestCallTracker_DrainIsBoundedByContext(t *testing.T) {
	var tr CallTracker
	var finished atomic.Bool
	started := make(chan struct{})
	runner := tr.Track(slowHangup(started, &finished))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go runner.Run(ctx, NewMemorySession("call-1", "+1"))
	<-started

	dctx, dcancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer dcancel()
	assert.ErrorIs(t, tr.Drain(dctx), context.DeadlineExceeded)
}

func TestCallTracker_RefusesCallsWhileDraining(t *testing.T) {
	var tr CallTracker
	require.NoError(t, tr.Drain(context.Background()))

	ran := false
	tr.Track(CallRunnerFunc(func(context.Context, Session) { ran = true })).
		Run(context.Background(), NewMemorySession("call-1", "+1"))
	assert.False(t, ran)
}

func TestCallTracker_ServerShutdownThenDrain(t *testing.T) {
	var tr CallTracker
	var finished atomic.Bool
	started := make(chan struct{})

	rootCtx, stop := context.WithCancel(context.Background())
	defer stop()

	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := GatewayHandler{Runner: tr.Track(slowHangup(started, &finished))}
	r.GET("/v1/gateway/calls", h.HandleCall)
	srv := httptest.NewUnstartedServer(r)
	srv.Config.BaseContext = func(net.Listener) context.Context { return rootCtx }
	srv.Start()
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/gateway/calls"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.WriteJSON(gatewayMessage{Event: "call.alerting", CallID: "call-1", CallerID: "+1"}))
	<-started

	stop()
	sctx, scancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer scancel()
	require.NoError(t, srv.Config.Shutdown(sctx))
	require.NoError(t, tr.Drain(sctx))
	assert.True(t, finished.Load())
}
