package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAPI serves login, ticket issuance and a socket that pushes n events.
func fakeAPI(t *testing.T, events int) string {
	t.Helper()
	upgrader := websocket.Upgrader{}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var req map[string]string
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req["password"] != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"token": "tok"})
	})
	mux.HandleFunc("/api/ws/ticket", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"ticket": "t-1"})
	})
	mux.HandleFunc("/api/ws", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("ticket") != "t-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer func() { _ = conn.Close() }()
		for i := 0; i < events; i++ {
			msg, _ := json.Marshal(Event{Type: "approval.approved", Payload: json.RawMessage(`{"id":1}`)})
			_ = conn.WriteMessage(websocket.TextMessage, msg)
		}
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return strings.TrimPrefix(srv.URL, "http://")
}

func TestLogin(t *testing.T) {
	host := fakeAPI(t, 0)

	token, err := login(host, "a@example.test", "secret")
	require.NoError(t, err)
	assert.Equal(t, "tok", token)

	_, err = login(host, "a@example.test", "wrong")
	assert.ErrorContains(t, err, "401")
}

func TestGetTicket_RequiresToken(t *testing.T) {
	host := fakeAPI(t, 0)

	ticket, err := getTicket(host, "tok")
	require.NoError(t, err)
	assert.Equal(t, "t-1", ticket)

	_, err = getTicket(host, "other")
	assert.Error(t, err)
}

func TestRunClient_CountsEvents(t *testing.T) {
	host := fakeAPI(t, 3)

	var m Metrics
	stop := make(chan struct{})
	finished := make(chan struct{})
	go func() {
		runClient(host, "tok", 0, true, &m, stop)
		close(finished)
	}()

	select {
	case <-finished:
	case <-time.After(5 * time.Second):
		close(stop)
		t.Fatal("client did not finish after the server closed the socket")
	}

	assert.Equal(t, int64(1), atomic.LoadInt64(&m.ConnectionsSuccess))
	assert.Equal(t, int64(3), atomic.LoadInt64(&m.EventsReceived))
	assert.Zero(t, atomic.LoadInt64(&m.Errors))
}

func TestRunClient_BadTokenFails(t *testing.T) {
	host := fakeAPI(t, 0)

	var m Metrics
	runClient(host, "nope", 0, false, &m, make(chan struct{}))

	assert.Equal(t, int64(1), m.ConnectionsFailed)
	assert.Zero(t, m.ConnectionsSuccess)
}
