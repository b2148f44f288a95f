package handlers

import (
	"net/http"
	"time"

	"github.com/shrimpsizemoose/trekker/logger"
	"golang.org/x/net/websocket"

	"github.com/shrimpsizemoose/housecup/internal/notify"
)

const writeTimeout = 10 * time.Second

// LeaderboardSocket streams leaderboard updates, starting with the current
// standings.
func (h *Handler) LeaderboardSocket() http.Handler {
	return websocket.Handler(func(conn *websocket.Conn) {
		defer conn.Close()

		sub, err := h.service.Hub.SubscribeLeaderboard(conn.Request().Context())
		if err != nil {
			logger.Error.Printf("Failed to subscribe to leaderboard: %v", err)
			return
		}
		h.pump(conn, sub)
	})
}

// HandleNotificationSocket streams messages addressed to the caller.
// Identity is resolved before the upgrade so anonymous callers get a 401.
func (h *Handler) HandleNotificationSocket(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identity(w, r)
	if !ok {
		return
	}

	websocket.Handler(func(conn *websocket.Conn) {
		defer conn.Close()
		h.pump(conn, h.service.Hub.SubscribeUser(id.StudentID))
	}).ServeHTTP(w, r)
}

// pump writes queued messages until the hub drops the subscriber or the
// peer disconnects. Either way the subscriber is deregistered on return.
func (h *Handler) pump(conn *websocket.Conn, sub *notify.Subscriber) {
	defer h.service.Hub.Unsubscribe(sub)

	gone := make(chan struct{})
	go func() {
		defer close(gone)
		var discard string
		for {
			if err := websocket.Message.Receive(conn, &discard); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case msg, ok := <-sub.Messages():
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := websocket.JSON.Send(conn, msg); err != nil {
				logger.Debug.Printf("Websocket write failed: %v", err)
				return
			}
		case <-gone:
			return
		}
	}
}
