// Package relay is the synchronizator: a WebSocket hub that rebroadcasts
// snapshot updates to every connected session and hands out the controller
// role.
package relay

import (
	"context"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/fastygo/algorithm/domain"
)

const writeWait = 10 * time.Second

// Broadcaster shares rebroadcasts between relay instances.
type Broadcaster interface {
	Publish(ctx context.Context, payload []byte) error
	Subscribe(ctx context.Context, handle func(payload []byte)) error
}

type client struct {
	id   string
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) write(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, payload)
}

type Hub struct {
	mu         sync.Mutex
	clients    []*client
	controller *client

	bus      Broadcaster
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewHub creates a hub. A nil bus keeps rebroadcasts local.
func NewHub(bus Broadcaster, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		bus:    bus,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(*http.Request) bool {
				return true
			},
		},
	}
}

// Handler serves the health check on / and the socket on /socket.
func (h *Hub) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	mux.HandleFunc("/socket", h.serveSocket)
	return mux
}

// Run relays bus messages to local clients until ctx is done. Without a
// bus it only waits.
func (h *Hub) Run(ctx context.Context) error {
	if h.bus == nil {
		<-ctx.Done()
		return nil
	}
	return h.bus.Subscribe(ctx, h.broadcast)
}

// Clients returns the number of connected sockets.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) serveSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("upgrade failed", zap.Error(err))
		return
	}
	c := &client{id: uuid.NewString(), conn: conn}
	h.join(c)
	defer h.leave(c)

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return
		}
		h.handle(r.Context(), c, payload)
	}
}

func (h *Hub) join(c *client) {
	h.mu.Lock()
	h.clients = append(h.clients, c)
	if h.controller == nil {
		h.controller = c
	}
	h.mu.Unlock()
	h.logger.Info("client connected", zap.String("client", c.id))
	h.announceController()
}

func (h *Hub) leave(c *client) {
	h.mu.Lock()
	h.clients = slices.DeleteFunc(h.clients, func(other *client) bool { return other == c })
	handOver := h.controller == c
	if handOver {
		h.controller = nil
		if len(h.clients) > 0 {
			h.controller = h.clients[0]
		}
	}
	h.mu.Unlock()
	_ = c.conn.Close()

	h.logger.Info("client disconnected", zap.String("client", c.id))
	if handOver {
		h.announceController()
	}
}

func (h *Hub) handle(ctx context.Context, from *client, payload []byte) {
	ev, err := domain.DecodeEvent(payload)
	if err != nil {
		h.logger.Warn("discarding malformed message", zap.String("client", from.id), zap.Error(err))
		return
	}

	switch e := ev.(type) {
	case domain.UpdateDataEvent:
		out, err := domain.EncodeEvent(domain.GameUpdateEvent{Game: e.Game})
		if err != nil {
			h.logger.Error("failed to encode update", zap.Error(err))
			return
		}
		if h.bus != nil {
			if err := h.bus.Publish(ctx, out); err == nil {
				return
			} else {
				h.logger.Warn("bus publish failed, broadcasting locally", zap.Error(err))
			}
		}
		h.broadcast(out)
	case domain.RequestControlEvent:
		h.mu.Lock()
		h.controller = from
		h.mu.Unlock()
		h.logger.Info("controller transferred", zap.String("client", from.id))
		h.announceController()
	case domain.MessageEvent:
		h.logger.Info("client message", zap.String("client", from.id), zap.String("text", e.Text))
	default:
		h.logger.Debug("ignoring event", zap.String("type", string(ev.Type())))
	}
}

func (h *Hub) snapshotClients() ([]*client, *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return slices.Clone(h.clients), h.controller
}

func (h *Hub) broadcast(payload []byte) {
	clients, _ := h.snapshotClients()
	for _, c := range clients {
		if err := c.write(payload); err != nil {
			h.logger.Warn("failed to send update", zap.String("client", c.id), zap.Error(err))
			_ = c.conn.Close()
		}
	}
}

// announceController tells every client whether it holds the role.
func (h *Hub) announceController() {
	clients, controller := h.snapshotClients()
	for _, c := range clients {
		payload, err := domain.EncodeEvent(domain.ControllerEvent{Controller: c == controller})
		if err != nil {
			continue
		}
		if err := c.write(payload); err != nil {
			h.logger.Warn("failed to announce controller", zap.String("client", c.id), zap.Error(err))
			_ = c.conn.Close()
		}
	}
}
