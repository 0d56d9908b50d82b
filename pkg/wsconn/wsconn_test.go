package wsconn

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func queued(t *testing.T, c *Conn) []string {
	t.Helper()
	out := []string{}
	for {
		select {
		case data := <-c.queue:
			var s string
			require.NoError(t, json.Unmarshal(data, &s))
			out = append(out, s)
		default:
			return out
		}
	}
}

func TestSendDropOldest(t *testing.T) {
	drops := 0
	opts := Options{QueueSize: 2, OnDrop: func() { drops++ }}
	opts.setDefaults()
	c := newConn(nil, opts)

	require.NoError(t, c.Send("a"))
	require.NoError(t, c.Send("b"))
	require.NoError(t, c.Send("c"))

	assert.Equal(t, 1, drops)
	assert.Equal(t, []string{"b", "c"}, queued(t, c))
}

func TestSendDisconnectPolicy(t *testing.T) {
	opts := Options{QueueSize: 1, Policy: Disconnect}
	opts.setDefaults()
	c := newConn(nil, opts)

	require.NoError(t, c.Send("a"))
	assert.ErrorIs(t, c.Send("b"), ErrQueueFull)

	select {
	case <-c.Done():
	default:
		t.Fatal("conn must be closed after overflow")
	}
	assert.Equal(t, CloseSlowConsumer, c.closeCode)
	assert.ErrorIs(t, c.Send("c"), ErrClosed)
}

func TestWritePumpPreservesOrder(t *testing.T) {
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		c := New(ws, Options{QueueSize: 16})
		for i := 0; i < 5; i++ {
			c.Send(i)
		}
		c.Close(websocket.CloseNormalClosure, "bye")
	}))
	defer server.Close()

	ws, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http"), nil)
	require.NoError(t, err)
	defer ws.Close()

	ws.SetReadDeadline(time.Now().Add(5 * time.Second))
	for i := 0; i < 5; i++ {
		var got int
		require.NoError(t, ws.ReadJSON(&got))
		assert.Equal(t, i, got)
	}

	_, _, err = ws.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "unexpected error: %v", err)
}
