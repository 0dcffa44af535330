package signaling

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/aircast/signaling-relay/internal/config"
	"github.com/aircast/signaling-relay/internal/metrics"
	"github.com/aircast/signaling-relay/internal/ratelimit"
)

// Handler upgrades HTTP requests to signaling WebSocket connections and
// pumps inbound frames into the Router. On disconnect it triggers the same
// departure logic as an explicit leave-room.
type Handler struct {
	router *Router
	log    *slog.Logger
	m      *metrics.Metrics

	maxMessageBytes   int64
	messagesPerSecond int
	pingInterval      time.Duration
	idleTimeout       time.Duration

	upgrader websocket.Upgrader
}

func NewHandler(router *Router, log *slog.Logger, m *metrics.Metrics, cfg config.Config) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{
		router: router,
		log:    log,
		m:      m,

		maxMessageBytes:   cfg.MaxSignalingMessageBytes,
		messagesPerSecond: cfg.MaxSignalingMessagesPerSecond,
		pingInterval:      cfg.SignalingWSPingInterval,
		idleTimeout:       cfg.SignalingWSIdleTimeout,

		upgrader: websocket.Upgrader{
			// Room codes are the only admission control; origin policy is left
			// to the deployment's reverse proxy.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	peer := newWSPeer(conn)
	h.log.Debug("connection opened", "conn", peer.ID(), "remote_addr", r.RemoteAddr)

	done := make(chan struct{})
	go h.keepalive(peer, done)

	defer func() {
		close(done)
		h.router.HandleDisconnect(peer)
		_ = conn.Close()
		h.log.Debug("connection closed", "conn", peer.ID())
	}()

	conn.SetReadLimit(h.maxMessageBytes)
	_ = conn.SetReadDeadline(time.Now().Add(h.idleTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(h.idleTimeout))
	})

	limiter := ratelimit.NewTokenBucket(nil, h.messagesPerSecond, h.messagesPerSecond)

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		// Rate limit after reading so bytes already buffered by the OS are
		// consumed before we close; closing with unread data can turn into an
		// abortive close that hides the close frame from the client.
		if !limiter.Allow() {
			h.m.Inc(metrics.RateLimited)
			peer.closeWith(websocket.ClosePolicyViolation, "rate limit exceeded")
			return
		}
		if msgType != websocket.TextMessage {
			peer.closeWith(websocket.CloseUnsupportedData, "expected text message")
			return
		}

		h.router.Handle(peer, data)
	}
}

func (h *Handler) keepalive(peer *wsPeer, done <-chan struct{}) {
	ticker := time.NewTicker(h.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := peer.ping(); err != nil {
				return
			}
		}
	}
}
