package realtime

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/mycocore/internal/client/events"
	"github.com/dmitrijs2005/mycocore/internal/client/session"
	"github.com/dmitrijs2005/mycocore/internal/logging"
)

func wsServer(t *testing.T, handler func(*websocket.Conn)) string {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("token") != "a.b.c" {
			http.Error(w, "bad token", http.StatusUnauthorized)
			return
		}
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close()
		handler(c)
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/ws/logs"
}

func TestWebsocketDialer_ReadsFrames(t *testing.T) {
	base := wsServer(t, func(c *websocket.Conn) {
		_ = c.WriteMessage(websocket.TextMessage, []byte(`{"type":"log","message":"hi"}`))
		_, _, _ = c.ReadMessage()
	})

	url, err := SocketURL(base, "a.b.c")
	require.NoError(t, err)

	conn, err := NewWebsocketDialer(time.Second).Dial(context.Background(), url)
	require.NoError(t, err)
	defer conn.Close()

	data, err := conn.ReadMessage()
	require.NoError(t, err)
	require.JSONEq(t, `{"type":"log","message":"hi"}`, string(data))

	require.NoError(t, conn.Close())
	require.NoError(t, conn.Close())
	_, err = conn.ReadMessage()
	require.Error(t, err)
}

func TestWebsocketDialer_RejectedHandshake(t *testing.T) {
	base := wsServer(t, func(*websocket.Conn) {})
	url, err := SocketURL(base, "wrong.token.here")
	require.NoError(t, err)

	_, err = NewWebsocketDialer(time.Second).Dial(context.Background(), url)
	require.ErrorIs(t, err, ErrHandshakeRejected)
}

func TestWebsocketDialer_Keepalive(t *testing.T) {
	pings := make(chan struct{}, 4)
	base := wsServer(t, func(c *websocket.Conn) {
		c.SetPingHandler(func(data string) error {
			pings <- struct{}{}
			return c.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(time.Second))
		})
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	})
	url, _ := SocketURL(base, "a.b.c")

	d := NewWebsocketDialer(time.Second)
	d.pingInterval = 10 * time.Millisecond
	conn, err := d.Dial(context.Background(), url)
	require.NoError(t, err)
	defer conn.Close()

	select {
	case <-pings:
	case <-time.After(2 * time.Second):
		t.Fatal("no ping received")
	}
}

func TestSupervisor_OverRealSocket(t *testing.T) {
	closeServer := make(chan struct{})
	base := wsServer(t, func(c *websocket.Conn) {
		_ = c.WriteMessage(websocket.TextMessage, []byte(`{"type":"alert","message":"disk full"}`))
		<-closeServer
	})

	bus := events.NewMemoryBus()
	ch, err := events.NewChannel(context.Background(), "tab", bus, logging.Nop())
	require.NoError(t, err)
	defer ch.Close()

	got := make(chan events.Event, 8)
	ch.Subscribe(func(e events.Event) { got <- e })

	sessions := &fakeSessions{sess: &session.Session{UserID: "u1", AccessToken: "a.b.c"}}
	sched := &fakeScheduler{}
	sup := NewSupervisor(Config{URL: base}, NewWebsocketDialer(time.Second), sched, sessions, ch, logging.Nop())

	require.NoError(t, sup.Start(context.Background(), "u1"))
	require.True(t, sup.Connected())

	kinds := map[events.Kind]bool{}
	deadline := time.After(2 * time.Second)
	for !kinds[events.KindAlert] {
		select {
		case e := <-got:
			kinds[e.Kind] = true
			if e.Kind == events.KindAlert {
				require.Equal(t, "disk full", e.Message)
				require.Equal(t, "tab", e.OriginTab)
				require.NotEmpty(t, e.Timestamp)
			}
		case <-deadline:
			t.Fatal("alert not relayed")
		}
	}
	require.True(t, kinds[events.KindConnect])

	close(closeServer)
	require.Eventually(t, func() bool {
		return sup.State() == State{Phase: Reconnecting, Attempt: 1}
	}, 2*time.Second, 10*time.Millisecond)

	sup.Stop()
	require.Equal(t, State{Phase: Idle}, sup.State())
}
