package wsserver

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udisondev/rtgateway/internal/admission"
	"github.com/udisondev/rtgateway/internal/broadcast"
	"github.com/udisondev/rtgateway/internal/dispatch"
	"github.com/udisondev/rtgateway/internal/engine"
	"github.com/udisondev/rtgateway/internal/presence"
	"github.com/udisondev/rtgateway/internal/session"
	"github.com/udisondev/rtgateway/internal/signer"
)

func testLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	client := engine.NewClient("http://127.0.0.1:0", time.Second)
	srvr := &Server{
		Origins:         admission.NewOriginPolicy(nil, true),
		Connections:     admission.NewConnectionLimiter(100, 1000),
		SessionCreation: admission.NewSessionCreationLimiter(1000),
		Sessions:        session.NewManager(),
		Broadcast:       broadcast.NewManager(testLogger()),
		Presence:        presence.NewTracker(),
		Dispatch: &dispatch.Deps{
			Sessions:  session.NewManager(),
			Nonces:    signer.NewNonceManager(),
			Forwarder: engine.NewForwarder(client, time.Minute, engine.DefaultRetryPolicy()),
			Engine:    client,
			Broadcast: broadcast.NewManager(testLogger()),
			Presence:  presence.NewTracker(),
			Waiter:    dispatch.NewWaiter(),
			Buckets:   admission.NewMessageBucket(1000, time.Minute, time.Minute),
			Log:       testLogger(),
			EventWait: 200 * time.Millisecond,
		},
		Log: testLogger(),
	}
	srvr.upgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

	httpSrv := httptest.NewServer(http.HandlerFunc(srvr.ServeHTTP))
	return srvr, httpSrv
}

func dialWS(t *testing.T, httpSrv *httptest.Server) *websocket.Conn {
	t.Helper()
	u, err := url.Parse(httpSrv.URL)
	require.NoError(t, err)
	u.Scheme = "ws"
	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	require.NoError(t, err)
	return conn
}

func TestHandshakeSendsSessionReadyClockSyncPresenceInOrder(t *testing.T) {
	_, httpSrv := newTestServer(t)
	defer httpSrv.Close()
	conn := dialWS(t, httpSrv)
	defer conn.Close()

	var gotTypes []string
	for i := 0; i < 3; i++ {
		_, msg, err := conn.ReadMessage()
		require.NoError(t, err)
		gotTypes = append(gotTypes, msgType(t, msg))
	}
	assert.Equal(t, []string{"session_ready", "clock_sync", "presence"}, gotTypes)
}

func TestPingPong(t *testing.T) {
	_, httpSrv := newTestServer(t)
	defer httpSrv.Close()
	conn := dialWS(t, httpSrv)
	defer conn.Close()

	drainInitial(t, conn)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"ping"}`)))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, "pong", msgType(t, msg))
}

func drainInitial(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	for i := 0; i < 3; i++ {
		_, _, err := conn.ReadMessage()
		require.NoError(t, err)
	}
}

func msgType(t *testing.T, msg []byte) string {
	t.Helper()
	s := string(msg)
	const key = `"type":"`
	idx := strings.Index(s, key)
	require.GreaterOrEqual(t, idx, 0, "no type field in %s", s)
	rest := s[idx+len(key):]
	end := strings.Index(rest, `"`)
	require.GreaterOrEqual(t, end, 0)
	return rest[:end]
}
