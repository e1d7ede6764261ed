package app

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func hubServer(hub *resultsHub) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		if err := hub.add(conn); err != nil {
			return
		}
	}))
}

func TestResultsHubReplayOnConnect(t *testing.T) {
	hub := newResultsHub()
	hub.update([]byte(`{"dataset":"sweep.csv"}`))

	srv := hubServer(hub)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv), nil)
	require.NoError(t, err)
	defer conn.Close()

	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, `{"dataset":"sweep.csv"}`, string(msg))
}

func TestResultsHubBroadcastReachesClients(t *testing.T) {
	hub := newResultsHub()

	srv := hubServer(hub)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv), nil)
	require.NoError(t, err)
	defer conn.Close()

	// The server registers the client after the handshake completes.
	require.Eventually(t, func() bool {
		hub.mu.RLock()
		defer hub.mu.RUnlock()
		return len(hub.clients) == 1
	}, time.Second, 5*time.Millisecond)

	hub.update([]byte(`{"seq":1}`))

	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, `{"seq":1}`, string(msg))
}

// Reports arriving while clients connect must not race the replay write:
// gorilla connections allow only one concurrent writer, so an unserialized
// replay panics the server under broadcast load.
func TestResultsHubConcurrentReplayAndBroadcast(t *testing.T) {
	hub := newResultsHub()
	hub.update([]byte(`{"seq":0}`))

	srv := hubServer(hub)
	defer srv.Close()

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 1; ; i++ {
			select {
			case <-stop:
				return
			default:
				hub.update([]byte(fmt.Sprintf(`{"seq":%d}`, i)))
			}
		}
	}()

	for i := 0; i < 25; i++ {
		conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv), nil)
		require.NoError(t, err)

		// First frame is always the replay snapshot, never interleaved with
		// a broadcast frame.
		_, msg, err := conn.ReadMessage()
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(string(msg), `{"seq":`))
		conn.Close()
	}

	close(stop)
	wg.Wait()
}

func TestResultsHubRemovesClosedClients(t *testing.T) {
	hub := newResultsHub()

	srv := hubServer(hub)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv), nil)
	require.NoError(t, err)
	conn.Close()

	// Broadcasting to the closed connection eventually fails and drops it
	// from the set.
	assert.Eventually(t, func() bool {
		hub.update([]byte(`{"seq":1}`))
		hub.mu.RLock()
		defer hub.mu.RUnlock()
		return len(hub.clients) == 0
	}, time.Second, 10*time.Millisecond)
}
