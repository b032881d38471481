package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/aescanero/nodecomp/pkg/domain"
	"github.com/aescanero/nodecomp/pkg/ports"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const clientBuffer = 16

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Handler streams chain lifecycle events over WebSocket. It holds one
// subscription on the event bus and fans events out to connected clients.
type Handler struct {
	eventBus ports.EventBus
	logger   *zap.Logger

	mu      sync.Mutex
	clients map[*client]struct{}
}

type client struct {
	resourceID string
	caller     domain.Caller
	events     chan domain.Event
}

// NewHandler creates a new WebSocket handler
func NewHandler(eventBus ports.EventBus, logger *zap.Logger) *Handler {
	return &Handler{
		eventBus: eventBus,
		logger:   logger,
		clients:  make(map[*client]struct{}),
	}
}

// Start subscribes to chain events until ctx is cancelled
func (h *Handler) Start(ctx context.Context) error {
	return h.eventBus.Subscribe(ctx, domain.TopicChainEvents, h.dispatch)
}

// dispatch hands an event to every client watching its resource. Slow
// clients drop events instead of blocking the bus.
func (h *Handler) dispatch(ctx context.Context, event domain.Event) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.clients {
		if c.resourceID != event.ResourceID || !c.caller.CanSee(event.TenantID, false) {
			continue
		}
		select {
		case c.events <- event:
		default:
			h.logger.Warn("client buffer full, dropping event",
				zap.String("event_id", event.ID),
				zap.String("event_type", string(event.Type)),
				zap.String("resource_id", event.ResourceID))
		}
	}
	return nil
}

func (h *Handler) register(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
}

func (h *Handler) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, c)
}

// Clients returns the number of connected clients
func (h *Handler) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// HandleInstanceStream streams the events of one instance to the client
func (h *Handler) HandleInstanceStream(c *gin.Context) {
	instanceID := c.Param("id")

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("failed to upgrade connection", zap.Error(err))
		return
	}
	defer func() { _ = conn.Close() }()

	h.logger.Info("WebSocket connection established",
		zap.String("instance_id", instanceID),
		zap.String("client", c.ClientIP()))

	cl := &client{
		resourceID: instanceID,
		caller:     domain.CallerFrom(c.Request.Context()),
		events:     make(chan domain.Event, clientBuffer),
	}
	h.register(cl)
	defer h.unregister(cl)

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	// The read loop only notices the peer closing the connection.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case event := <-cl.events:
			data, err := json.Marshal(event)
			if err != nil {
				h.logger.Error("failed to marshal event", zap.Error(err))
				continue
			}

			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				h.logger.Error("failed to write message",
					zap.String("instance_id", instanceID),
					zap.Error(err))
				return
			}
		}
	}
}
