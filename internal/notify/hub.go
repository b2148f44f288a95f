// Package notify fans leaderboard updates and personal messages out to
// connected clients, the notification inbox and web push.
package notify

import (
	"context"
	"sync"

	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/shrimpsizemoose/housecup/internal/metrics"
	"github.com/shrimpsizemoose/housecup/internal/scoring"
)

const (
	ChannelLeaderboard = "leaderboard"
	ChannelUser        = "user"

	DefaultBuffer = 16
)

type LeaderboardSource interface {
	ComputeLeaderboard(ctx context.Context) ([]scoring.Standing, error)
	RefreshLeaderboard(ctx context.Context) ([]scoring.Standing, error)
}

type LeaderboardEntry struct {
	HouseID  int64  `json:"houseId"`
	Name     string `json:"name"`
	Points   int    `json:"points"`
	CrestURL string `json:"crestUrl"`
}

type LeaderboardUpdate struct {
	Type string             `json:"type"`
	Data []LeaderboardEntry `json:"data"`
}

type UserMessage struct {
	Message string `json:"message"`
}

func NewLeaderboardUpdate(standings []scoring.Standing) LeaderboardUpdate {
	data := make([]LeaderboardEntry, 0, len(standings))
	for _, s := range standings {
		data = append(data, LeaderboardEntry{
			HouseID:  s.House.ID,
			Name:     s.House.Name,
			Points:   s.Points,
			CrestURL: s.House.CrestURL,
		})
	}
	return LeaderboardUpdate{Type: "leaderboard_update", Data: data}
}

// Subscriber receives messages on a bounded buffer. The buffer is closed
// when the subscriber unsubscribes or falls too far behind.
type Subscriber struct {
	channel string
	userID  int64
	ch      chan any
}

func (s *Subscriber) Messages() <-chan any {
	return s.ch
}

type Hub struct {
	source LeaderboardSource
	buffer int

	// publish holds snapshot+register and compute+broadcast together so a
	// new subscriber never sees a snapshot older than a later update.
	publish sync.Mutex

	mu          sync.Mutex
	leaderboard map[*Subscriber]struct{}
	users       map[int64]map[*Subscriber]struct{}
}

func NewHub(source LeaderboardSource, buffer int) *Hub {
	if buffer < 1 {
		buffer = DefaultBuffer
	}
	return &Hub{
		source:      source,
		buffer:      buffer,
		leaderboard: make(map[*Subscriber]struct{}),
		users:       make(map[int64]map[*Subscriber]struct{}),
	}
}

// SubscribeLeaderboard registers a broadcast subscriber whose buffer
// already holds the current standings.
func (h *Hub) SubscribeLeaderboard(ctx context.Context) (*Subscriber, error) {
	h.publish.Lock()
	defer h.publish.Unlock()

	standings, err := h.source.ComputeLeaderboard(ctx)
	if err != nil {
		return nil, err
	}

	sub := &Subscriber{channel: ChannelLeaderboard, ch: make(chan any, h.buffer)}
	sub.ch <- NewLeaderboardUpdate(standings)

	h.mu.Lock()
	h.leaderboard[sub] = struct{}{}
	h.mu.Unlock()

	metrics.WebsocketSubscribers.WithLabelValues(ChannelLeaderboard).Inc()
	return sub, nil
}

// SubscribeUser registers a subscriber for messages addressed to userID.
func (h *Hub) SubscribeUser(userID int64) *Subscriber {
	sub := &Subscriber{channel: ChannelUser, userID: userID, ch: make(chan any, h.buffer)}

	h.mu.Lock()
	if h.users[userID] == nil {
		h.users[userID] = make(map[*Subscriber]struct{})
	}
	h.users[userID][sub] = struct{}{}
	h.mu.Unlock()

	metrics.WebsocketSubscribers.WithLabelValues(ChannelUser).Inc()
	return sub
}

// Unsubscribe deregisters sub and closes its buffer. It is safe to call
// more than once.
func (h *Hub) Unsubscribe(sub *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(sub)
}

func (h *Hub) removeLocked(sub *Subscriber) {
	switch sub.channel {
	case ChannelLeaderboard:
		if _, ok := h.leaderboard[sub]; !ok {
			return
		}
		delete(h.leaderboard, sub)
	case ChannelUser:
		subs := h.users[sub.userID]
		if _, ok := subs[sub]; !ok {
			return
		}
		delete(subs, sub)
		if len(subs) == 0 {
			delete(h.users, sub.userID)
		}
	default:
		return
	}
	close(sub.ch)
	metrics.WebsocketSubscribers.WithLabelValues(sub.channel).Dec()
}

// PublishLeaderboard computes one fresh snapshot and offers it to every
// broadcast subscriber.
func (h *Hub) PublishLeaderboard(ctx context.Context) error {
	h.publish.Lock()
	defer h.publish.Unlock()

	h.mu.Lock()
	empty := len(h.leaderboard) == 0
	h.mu.Unlock()
	if empty {
		return nil
	}

	standings, err := h.source.RefreshLeaderboard(ctx)
	if err != nil {
		return err
	}
	msg := NewLeaderboardUpdate(standings)

	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.leaderboard {
		h.offerLocked(sub, msg)
	}
	return nil
}

// SendToUser offers message to every subscriber of userID and reports how
// many accepted it.
func (h *Hub) SendToUser(userID int64, message string) int {
	msg := UserMessage{Message: message}

	h.mu.Lock()
	defer h.mu.Unlock()
	delivered := 0
	for sub := range h.users[userID] {
		if h.offerLocked(sub, msg) {
			delivered++
		}
	}
	return delivered
}

// offerLocked never blocks: a subscriber with a full buffer is dropped.
func (h *Hub) offerLocked(sub *Subscriber, msg any) bool {
	select {
	case sub.ch <- msg:
		metrics.NotificationDeliveriesTotal.WithLabelValues("websocket", "ok").Inc()
		return true
	default:
		logger.Debug.Printf("Dropping slow %s subscriber", sub.channel)
		metrics.NotificationDeliveriesTotal.WithLabelValues("websocket", "dropped").Inc()
		h.removeLocked(sub)
		return false
	}
}

// Subscribers reports the number of live subscribers per channel.
func (h *Hub) Subscribers() (leaderboard, users int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, subs := range h.users {
		users += len(subs)
	}
	return len(h.leaderboard), users
}
