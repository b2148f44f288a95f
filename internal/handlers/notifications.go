package handlers

import (
	"net/http"
	"time"

	"github.com/shrimpsizemoose/housecup/internal/models"
)

func (h *Handler) HandleListNotifications(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identity(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	notifications, err := h.service.Store.ListNotifications(ctx, id.StudentID, h.service.Config.API.NotificationsLimit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	unread, err := h.service.Store.CountUnreadNotifications(ctx, id.StudentID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"notifications": notifications,
		"unread_count":  unread,
	})
}

func (h *Handler) HandleMarkRead(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identity(w, r)
	if !ok {
		return
	}
	notificationID, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := h.service.Store.MarkNotificationRead(r.Context(), notificationID, id.StudentID); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// pushSubscriptionRequest mirrors the browser's PushSubscription.toJSON().
type pushSubscriptionRequest struct {
	Endpoint string `json:"endpoint"`
	Keys     struct {
		P256dh string `json:"p256dh"`
		Auth   string `json:"auth"`
	} `json:"keys"`
}

func (h *Handler) HandleSubscribePush(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identity(w, r)
	if !ok {
		return
	}

	var req pushSubscriptionRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	sub := models.PushSubscription{
		StudentID: id.StudentID,
		Endpoint:  req.Endpoint,
		P256dh:    req.Keys.P256dh,
		Auth:      req.Keys.Auth,
		CreatedAt: time.Now().Unix(),
	}
	if err := sub.Validate(); err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.service.Store.SavePushSubscription(r.Context(), &sub); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sub)
}

type broadcastRequest struct {
	Message string `json:"message"`
	URL     string `json:"url"`
}

func (h *Handler) HandleBroadcast(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.admin(w, r); !ok {
		return
	}

	var req broadcastRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	recipients, err := h.service.Notifier.Broadcast(r.Context(), req.Message, req.URL)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"recipients": recipients})
}
