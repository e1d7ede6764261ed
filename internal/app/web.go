package app

import (
	"fmt"
	"log"
	"net/http"
	"sync"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/gorilla/websocket"

	"github.com/relabs-tech/range_analyzer/internal/config"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

// resultsHub caches the latest analysis report and fans it out to websocket
// clients. Gorilla connections support at most one concurrent writer, so
// every WriteMessage happens under h.mu: the broadcast and the
// replay-on-connect can never hit the same connection at the same time.
type resultsHub struct {
	mu      sync.RWMutex
	latest  []byte
	clients map[*websocket.Conn]bool
}

func newResultsHub() *resultsHub {
	return &resultsHub{clients: make(map[*websocket.Conn]bool)}
}

func (h *resultsHub) update(payload []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.latest = append([]byte(nil), payload...)
	for c := range h.clients {
		if err := c.WriteMessage(websocket.TextMessage, h.latest); err != nil {
			log.Printf("web: websocket write error: %v", err)
			delete(h.clients, c)
			c.Close()
		}
	}
}

// add replays the latest report to the new connection and registers it for
// broadcasts, all in one critical section so no broadcast interleaves with
// the replay write.
func (h *resultsHub) add(c *websocket.Conn) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.latest != nil {
		if err := c.WriteMessage(websocket.TextMessage, h.latest); err != nil {
			c.Close()
			return err
		}
	}
	h.clients[c] = true
	return nil
}

// Close is a write method too, so it stays under the same mutex.
func (h *resultsHub) remove(c *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, c)
	c.Close()
}

// RunWeb serves the latest analysis report: it subscribes to the results
// topic, exposes a JSON API, and pushes updates to websocket clients.
func RunWeb() error {
	cfg := config.Get()
	hub := newResultsHub()

	// 1) Connect to MQTT broker
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDWeb)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	log.Printf("web: connected to MQTT broker at %s", cfg.MQTTBroker)

	// 2) Subscribe to the results topic; cmd/analyze publishes there
	token := client.Subscribe(cfg.TopicResults, 0, func(_ mqtt.Client, msg mqtt.Message) {
		log.Printf("web: received report (%d bytes)", len(msg.Payload()))
		hub.update(msg.Payload())
	})
	token.Wait()
	if token.Error() != nil {
		return token.Error()
	}
	log.Printf("web: subscribed to %s", cfg.TopicResults)

	// 3) JSON API endpoint: latest report
	http.HandleFunc("/api/results", func(w http.ResponseWriter, r *http.Request) {
		hub.mu.RLock()
		latest := hub.latest
		hub.mu.RUnlock()

		if latest == nil {
			http.Error(w, "no report yet", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(latest)
	})

	// 4) Websocket push: replay the latest report on connect, then push
	// every update
	http.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("web: websocket upgrade error: %v", err)
			return
		}
		if err := hub.add(conn); err != nil {
			log.Printf("web: websocket replay error: %v", err)
			return
		}
		// Read loop only to observe the close; clients do not send data.
		go func() {
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					hub.remove(conn)
					return
				}
			}
		}()
	})

	// 5) Static files from ./web as the root
	fs := http.FileServer(http.Dir("web"))
	http.Handle("/", fs)

	addr := fmt.Sprintf(":%d", cfg.WebServerPort)
	log.Printf("web: server listening on %s", addr)
	return http.ListenAndServe(addr, nil)
}
