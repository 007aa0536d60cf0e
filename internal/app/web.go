package app

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/gorilla/websocket"

	"github.com/relabs-tech/swerve_computer/internal/config"
	"github.com/relabs-tech/swerve_computer/internal/odometry"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

// telemetryCache holds the latest telemetry for the HTTP handlers and fans
// new messages out to connected websockets.
type telemetryCache struct {
	mu            sync.RWMutex
	lastPose      odometry.Pose
	havePose      bool
	lastTelemetry Telemetry
	haveTelemetry bool

	subscribers map[*websocket.Conn]chan []byte
}

func newTelemetryCache() *telemetryCache {
	return &telemetryCache{subscribers: make(map[*websocket.Conn]chan []byte)}
}

func (c *telemetryCache) setPose(p odometry.Pose) {
	c.mu.Lock()
	c.lastPose = p
	c.havePose = true
	c.mu.Unlock()
}

func (c *telemetryCache) setTelemetry(t Telemetry, raw []byte) {
	c.mu.Lock()
	c.lastTelemetry = t
	c.haveTelemetry = true
	for _, ch := range c.subscribers {
		select {
		case ch <- raw:
		default: // slow client, drop the frame
		}
	}
	c.mu.Unlock()
}

func (c *telemetryCache) addSubscriber(conn *websocket.Conn) chan []byte {
	ch := make(chan []byte, 8)
	c.mu.Lock()
	c.subscribers[conn] = ch
	c.mu.Unlock()
	return ch
}

func (c *telemetryCache) removeSubscriber(conn *websocket.Conn) {
	c.mu.Lock()
	if ch, ok := c.subscribers[conn]; ok {
		delete(c.subscribers, conn)
		close(ch)
	}
	c.mu.Unlock()
}

// RunWeb serves the drive dashboard: REST endpoints with the latest pose and
// wheel states, a websocket pushing telemetry as it arrives, and static files
// from ./web.
func RunWeb() error {
	cfg := config.Get()
	cache := newTelemetryCache()

	// 1) Connect to MQTT broker
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDWeb)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	log.Printf("web: connected to MQTT broker at %s", cfg.MQTTBroker)

	// 2) Subscribe to pose and telemetry topics
	poseToken := client.Subscribe(cfg.TopicPose, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var p odometry.Pose
		if err := json.Unmarshal(msg.Payload(), &p); err != nil {
			log.Printf("web: pose unmarshal error: %v", err)
			return
		}
		cache.setPose(p)
	})
	poseToken.Wait()
	if poseToken.Error() != nil {
		return poseToken.Error()
	}
	log.Printf("web: subscribed to %s", cfg.TopicPose)

	telToken := client.Subscribe(cfg.TopicWheelStates, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var t Telemetry
		if err := json.Unmarshal(msg.Payload(), &t); err != nil {
			log.Printf("web: telemetry unmarshal error: %v", err)
			return
		}
		cache.setTelemetry(t, msg.Payload())
	})
	telToken.Wait()
	if telToken.Error() != nil {
		return telToken.Error()
	}
	log.Printf("web: subscribed to %s", cfg.TopicWheelStates)

	// 3) JSON API endpoints
	http.HandleFunc("/api/pose", func(w http.ResponseWriter, r *http.Request) {
		cache.mu.RLock()
		defer cache.mu.RUnlock()

		if !cache.havePose {
			http.Error(w, "no data yet", http.StatusServiceUnavailable)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(cache.lastPose); err != nil {
			log.Printf("web: json encode error: %v", err)
		}
	})

	http.HandleFunc("/api/wheels", func(w http.ResponseWriter, r *http.Request) {
		cache.mu.RLock()
		defer cache.mu.RUnlock()

		if !cache.haveTelemetry {
			http.Error(w, "no data yet", http.StatusServiceUnavailable)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(cache.lastTelemetry); err != nil {
			log.Printf("web: json encode error: %v", err)
		}
	})

	// 4) Websocket push of raw telemetry frames
	http.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("web: websocket upgrade error: %v", err)
			return
		}
		defer conn.Close()
		defer cache.removeSubscriber(conn)

		ch := cache.addSubscriber(conn)
		for payload := range ch {
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				log.Printf("web: websocket write error: %v", err)
				return
			}
		}
	})

	// 5) Static files from ./web as the root
	fs := http.FileServer(http.Dir("web"))
	http.Handle("/", fs)

	addr := fmt.Sprintf(":%d", cfg.WebServerPort)
	log.Printf("web server listening on %s", addr)
	return http.ListenAndServe(addr, nil)
}
