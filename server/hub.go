package server

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"queue-twin/metrics"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const writeWait = 5 * time.Second

// wsHub fans snapshot frames out to websocket clients. All writes happen on
// the run goroutine, so each connection has a single writer.
type wsHub struct {
	upgrader  websocket.Upgrader
	clients   map[*websocket.Conn]bool
	register  chan *websocket.Conn
	remove    chan *websocket.Conn
	broadcast chan []byte
	latest    []byte
	log       zerolog.Logger

	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

func newHub(logger zerolog.Logger) *wsHub {
	hub := &wsHub{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients:   make(map[*websocket.Conn]bool),
		register:  make(chan *websocket.Conn),
		remove:    make(chan *websocket.Conn),
		broadcast: make(chan []byte, 16),
		log:       logger,
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	go hub.run()
	return hub
}

func (h *wsHub) run() {
	defer close(h.done)
	defer func() {
		for conn := range h.clients {
			conn.Close()
			delete(h.clients, conn)
		}
		metrics.WebsocketClients.Set(0)
	}()

	for {
		select {
		case <-h.stop:
			return
		case conn := <-h.register:
			h.clients[conn] = true
			metrics.WebsocketClients.Set(float64(len(h.clients)))
			h.log.Debug().Str("remote", conn.RemoteAddr().String()).Int("clients", len(h.clients)).Msg("websocket client connected")
			if h.latest != nil {
				h.send(conn, h.latest)
			}
		case conn := <-h.remove:
			if _, ok := h.clients[conn]; ok {
				delete(h.clients, conn)
				conn.Close()
				metrics.WebsocketClients.Set(float64(len(h.clients)))
				h.log.Debug().Int("clients", len(h.clients)).Msg("websocket client disconnected")
			}
		case msg := <-h.broadcast:
			h.latest = msg
			for conn := range h.clients {
				h.send(conn, msg)
			}
		}
	}
}

func (h *wsHub) send(conn *websocket.Conn, msg []byte) {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
		h.log.Warn().Err(err).Msg("failed to send frame to websocket client")
		delete(h.clients, conn)
		conn.Close()
		metrics.WebsocketClients.Set(float64(len(h.clients)))
	}
}

// controlRequest is the only inbound websocket message.
type controlRequest struct {
	AgentCount *int `json:"agentCount"`
}

// close disconnects all clients and stops the hub.
func (h *wsHub) close() {
	h.stopOnce.Do(func() { close(h.stop) })
	<-h.done
}

func (h *wsHub) handle(sim Simulation, w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("websocket upgrade failed")
		return
	}

	select {
	case h.register <- conn:
	case <-h.done:
		conn.Close()
		return
	}

	go func() {
		defer func() {
			select {
			case h.remove <- conn:
			case <-h.done:
			}
		}()
		for {
			_, message, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					h.log.Warn().Err(err).Msg("websocket error")
				}
				break
			}

			var req controlRequest
			if err := json.Unmarshal(message, &req); err != nil || req.AgentCount == nil {
				continue
			}
			if err := sim.SetAgentCount(*req.AgentCount); err != nil {
				h.log.Debug().Err(err).Msg("websocket control rejected")
			}
		}
	}()
}

// publish queues a frame for all clients. A full queue drops the frame.
func (h *wsHub) publish(data []byte) {
	select {
	case h.broadcast <- data:
	default:
		metrics.SnapshotsDroppedTotal.WithLabelValues("websocket").Inc()
	}
}
