// Package main connects one or more clients to the notification websocket and
// reports the approval events they receive. With a single client every event
// is printed; with more it doubles as a connection soak test.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
)

// Metrics tracks connection and delivery counts across clients.
type Metrics struct {
	ConnectionsAttempted int64
	ConnectionsSuccess   int64
	ConnectionsFailed    int64
	EventsReceived       int64
	Errors               int64
}

// Event mirrors the envelope the server writes to each socket.
type Event struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

var httpClient = &http.Client{Timeout: 5 * time.Second}

func main() {
	host := flag.String("host", "localhost:8080", "API server host")
	email := flag.String("email", "reviewer@example.test", "Account email")
	password := flag.String("password", "Demo-Password-1", "Account password")
	clients := flag.Int("clients", 1, "Number of concurrent sockets")
	duration := flag.Duration("duration", 0, "Stop after this long (0 runs until interrupted)")
	flag.Parse()

	log.Printf("📡 Watching notifications on %s as %s (%d client(s))", *host, *email, *clients)

	token, err := login(*host, *email, *password)
	if err != nil {
		log.Fatalf("❌ Login failed: %v", err)
	}

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)

	var (
		metrics Metrics
		wg      sync.WaitGroup
	)
	stop := make(chan struct{})
	verbose := *clients == 1

	for i := 0; i < *clients; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			runClient(*host, token, id, verbose, &metrics, stop)
		}(i)
		// Stagger ticket issuance so the rate limiter is not tripped.
		time.Sleep(50 * time.Millisecond)
	}

	var deadline <-chan time.Time
	if *duration > 0 {
		deadline = time.After(*duration)
	}
	select {
	case <-deadline:
		log.Println("⏱️  Duration reached")
	case <-interrupt:
		log.Println("🛑 Interrupted")
	}

	close(stop)
	wg.Wait()
	printMetrics(&metrics)
}

func login(host, email, password string) (string, error) {
	body, _ := json.Marshal(map[string]string{"email": email, "password": password})
	resp, err := httpClient.Post(fmt.Sprintf("http://%s/api/auth/login", host), "application/json", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("login failed with status %d", resp.StatusCode)
	}

	var result struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}
	if result.Token == "" {
		return "", fmt.Errorf("login response carried no token")
	}
	return result.Token, nil
}

// getTicket exchanges the bearer token for a single-use socket ticket.
func getTicket(host, token string) (string, error) {
	req, err := http.NewRequest(http.MethodPost, fmt.Sprintf("http://%s/api/ws/ticket", host), nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ticket issuance failed with status %d", resp.StatusCode)
	}

	var result struct {
		Ticket string `json:"ticket"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}
	return result.Ticket, nil
}

func runClient(host, token string, id int, verbose bool, m *Metrics, stop <-chan struct{}) {
	atomic.AddInt64(&m.ConnectionsAttempted, 1)

	ticket, err := getTicket(host, token)
	if err != nil {
		log.Printf("client %d: %v", id, err)
		atomic.AddInt64(&m.ConnectionsFailed, 1)
		atomic.AddInt64(&m.Errors, 1)
		return
	}

	u := url.URL{Scheme: "ws", Host: host, Path: "/api/ws", RawQuery: url.Values{"ticket": {ticket}}.Encode()}
	conn, resp, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if resp != nil && resp.Body != nil {
		defer func() { _ = resp.Body.Close() }()
	}
	if err != nil {
		log.Printf("client %d: dial: %v", id, err)
		atomic.AddInt64(&m.ConnectionsFailed, 1)
		atomic.AddInt64(&m.Errors, 1)
		return
	}
	defer func() { _ = conn.Close() }()
	atomic.AddInt64(&m.ConnectionsSuccess, 1)

	done := make(chan struct{})
	go func() {
		defer close(done)
		readEvents(conn, id, verbose, m)
	}()

	select {
	case <-stop:
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		select {
		case <-done:
		case <-time.After(time.Second):
		}
	case <-done:
	}
}

func readEvents(conn *websocket.Conn, id int, verbose bool, m *Metrics) {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				atomic.AddInt64(&m.Errors, 1)
			}
			return
		}
		atomic.AddInt64(&m.EventsReceived, 1)
		if !verbose {
			continue
		}
		var ev Event
		if err := json.Unmarshal(raw, &ev); err != nil {
			log.Printf("client %d: unreadable frame: %s", id, raw)
			continue
		}
		log.Printf("🔔 %s %s", ev.Type, ev.Payload)
	}
}

func printMetrics(m *Metrics) {
	log.Println("📊 Results")
	log.Println("==========")
	log.Printf("Connections Attempted: %d", atomic.LoadInt64(&m.ConnectionsAttempted))
	log.Printf("Connections Successful: %d", atomic.LoadInt64(&m.ConnectionsSuccess))
	log.Printf("Connections Failed: %d", atomic.LoadInt64(&m.ConnectionsFailed))
	log.Printf("Events Received: %d", atomic.LoadInt64(&m.EventsReceived))
	log.Printf("Total Errors: %d", atomic.LoadInt64(&m.Errors))
}
