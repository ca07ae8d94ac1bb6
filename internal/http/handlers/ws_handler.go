package handlers

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/freelance-escrow/backend/internal/auth"
	"github.com/freelance-escrow/backend/internal/config"
	"github.com/freelance-escrow/backend/internal/events"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// WSHub fans escrow events out to connected wallets. Connections are
// keyed by address; lifecycle events are broadcast, except refund
// eligibility, which is delivered only to the escrow's client.
type WSHub struct {
	cfg         *config.Config
	subscriber  events.Subscriber
	log         *zap.Logger
	mu          sync.RWMutex
	connections map[string][]*websocket.Conn
}

func NewWSHub(cfg *config.Config, subscriber events.Subscriber, log *zap.Logger) *WSHub {
	return &WSHub{
		cfg:         cfg,
		subscriber:  subscriber,
		log:         log,
		connections: make(map[string][]*websocket.Conn),
	}
}

func (h *WSHub) Start(ctx context.Context) {
	_ = h.subscriber.Subscribe(ctx, events.StreamEscrow, func(event events.Event) {
		if addr, ok := eventTarget(event); ok {
			h.SendToAddress(addr, event)
			return
		}
		h.broadcast(event)
	})
}

// eventTarget returns the single recipient for events that concern one
// wallet only. Everything else is broadcast.
func eventTarget(event events.Event) (string, bool) {
	if event.Type != events.EventRefundEligible {
		return "", false
	}
	addr, ok := event.Payload["client"].(string)
	return addr, ok && addr != ""
}

func (h *WSHub) broadcast(event events.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, conns := range h.connections {
		for _, conn := range conns {
			_ = conn.WriteMessage(websocket.TextMessage, data)
		}
	}
}

func (h *WSHub) SendToAddress(address string, event events.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, conn := range h.connections[address] {
		_ = conn.WriteMessage(websocket.TextMessage, data)
	}
}

// WSUpgradeMiddleware checks for websocket upgrade
func WSUpgradeMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	}
}

func (h *WSHub) HandleWS(conn *websocket.Conn) {
	tokenStr := conn.Query("token")
	if tokenStr == "" {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"missing token"}`))
		conn.Close()
		return
	}

	claims, err := auth.ParseJWT(h.cfg.JWTSecret, tokenStr)
	if err != nil {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"invalid token"}`))
		conn.Close()
		return
	}

	address := claims.Address

	h.mu.Lock()
	h.connections[address] = append(h.connections[address], conn)
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		conns := h.connections[address]
		for i, c := range conns {
			if c == conn {
				h.connections[address] = append(conns[:i], conns[i+1:]...)
				break
			}
		}
		if len(h.connections[address]) == 0 {
			delete(h.connections, address)
		}
		h.mu.Unlock()
		conn.Close()
	}()

	// Read loop (keep alive / pings)
	for {
		_, _, err := conn.ReadMessage()
		if err != nil {
			break
		}
	}
}
