package httpserver

import (
	"net/http"
	"strings"

	"paperprop/internal/auth"
	"paperprop/internal/engine"
	"paperprop/internal/stream"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// WSHandler streams market ticks and the client's own account events over
// one socket. Ticks carry no account and go to everyone; account events are
// delivered only to their owner.
type WSHandler struct {
	log      *zap.Logger
	bus      *stream.Bus
	authSvc  *auth.Service
	hub      *engine.Hub
	origin   string
	upgrader websocket.Upgrader
}

func NewWSHandler(bus *stream.Bus, authSvc *auth.Service, hub *engine.Hub, origin string, log *zap.Logger) *WSHandler {
	return &WSHandler{
		log:     log,
		bus:     bus,
		authSvc: authSvc,
		hub:     hub,
		origin:  origin,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return allowOrigin(r, origin) },
		},
	}
}

func allowOrigin(r *http.Request, origin string) bool {
	if origin == "*" {
		return true
	}
	reqOrigin := r.Header.Get("Origin")
	if strings.Contains(origin, "localhost") || strings.Contains(origin, "127.0.0.1") {
		if strings.Contains(reqOrigin, "localhost") || strings.Contains(reqOrigin, "127.0.0.1") {
			return true
		}
	}
	return strings.EqualFold(reqOrigin, origin)
}

func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Browsers cannot set headers on WS handshakes, so the token rides a
	// query param.
	token := r.URL.Query().Get("token")
	if token == "" {
		http.Error(w, "missing token", http.StatusUnauthorized)
		return
	}
	userID, err := h.authSvc.ParseToken(token)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()
	sub := h.bus.Subscribe()
	defer h.bus.Unsubscribe(sub)

	// Full account picture up front so the client renders without waiting
	// for the next tick.
	if eng, err := h.hub.Get(r.Context(), userID); err == nil {
		if snap, err := eng.Snapshot(r.Context()); err == nil {
			if err := conn.WriteJSON(stream.Event{Type: "snapshot", Data: snap}); err != nil {
				return
			}
		}
	} else {
		h.log.Warn("ws snapshot unavailable", zap.String("user", userID), zap.Error(err))
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
	for {
		select {
		case evt := <-sub:
			if evt.Account != "" && evt.Account != userID {
				continue
			}
			if err := conn.WriteJSON(evt); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
