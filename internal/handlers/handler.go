package handlers

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/shrimpsizemoose/housecup/internal/app"
	"github.com/shrimpsizemoose/housecup/internal/metrics"
	"github.com/shrimpsizemoose/housecup/internal/models"
)

type Handler struct {
	service *app.Service
}

func NewHandler(service *app.Service) *Handler {
	return &Handler{service: service}
}

// Register mounts every route on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	api := func(pattern string, fn http.HandlerFunc) {
		mux.Handle(pattern, h.instrument(fn))
	}

	api("POST /api/v1/register", h.HandleRegister)
	api("POST /api/v1/login", h.HandleLogin)
	api("POST /api/v1/logout", h.HandleLogout)
	api("GET /api/v1/me", h.HandleMe)

	api("GET /api/v1/houses", h.HandleListHouses)
	api("GET /api/v1/houses/{id}", h.HandleGetHouse)
	api("GET /api/v1/houses/{id}/members", h.HandleHouseMembers)
	api("PATCH /api/v1/admin/houses/{id}", h.HandleUpdateHouse)

	api("GET /api/v1/events", h.HandleListEvents)
	api("GET /api/v1/events/{id}", h.HandleGetEvent)
	api("POST /api/v1/events", h.HandleCreateEvent)

	api("POST /api/v1/scores", h.HandleRecordScore)
	api("PUT /api/v1/scores", h.HandleAmendScore)
	api("GET /api/v1/admin/scores/{id}/amendments", h.HandleScoreHistory)

	api("GET /api/v1/leaderboard", h.HandleLeaderboard)
	api("GET /api/v1/leaderboard/breakdown", h.HandleBreakdown)

	api("GET /api/v1/notifications", h.HandleListNotifications)
	api("POST /api/v1/notifications/{id}/read", h.HandleMarkRead)
	api("POST /api/v1/push/subscriptions", h.HandleSubscribePush)
	api("POST /api/v1/admin/notifications", h.HandleBroadcast)

	api("GET /api/v1/gallery", h.HandleGallery)
	api("POST /api/v1/gallery", h.HandleSubmitImage)
	api("POST /api/v1/gallery/{id}/like", h.HandleLikeImage)
	api("GET /api/v1/admin/gallery/pending", h.HandlePendingImages)
	api("POST /api/v1/admin/gallery/{id}/approve", h.HandleApproveImage)
	api("DELETE /api/v1/admin/gallery/{id}", h.HandleRejectImage)

	api("POST /api/v1/treasure/scan", h.HandleScan)
	api("GET /api/v1/treasure/progress", h.HandleTreasureProgress)
	api("GET /api/v1/treasure/leaderboard", h.HandleTreasureLeaderboard)
	api("POST /api/v1/admin/treasure/codes", h.HandleCreateCode)

	api("GET /ws/leaderboard", h.LeaderboardSocket().ServeHTTP)
	api("GET /ws/notifications", h.HandleNotificationSocket)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

// Hijack hands the connection to websocket handlers.
func (s *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	conn, rw, err := http.NewResponseController(s.ResponseWriter).Hijack()
	if err == nil {
		s.status = http.StatusSwitchingProtocols
	}
	return conn, rw, err
}

// instrument checks the required headers and records request duration
// per route pattern. For websocket routes the duration covers the whole
// connection.
func (h *Handler) instrument(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		defer func() {
			metrics.APIRequestDuration.WithLabelValues(
				r.Pattern,
				r.Method,
				strconv.Itoa(rec.status),
			).Observe(time.Since(start).Seconds())
		}()

		if !h.service.ValidateHeaders(r.Header) {
			writeError(rec, r, fmt.Errorf("these are not the droids you are looking for: %w", models.ErrForbidden))
			return
		}
		next(rec, r)
	})
}

// identity resolves the caller and writes 401 when there is none.
func (h *Handler) identity(w http.ResponseWriter, r *http.Request) (app.Identity, bool) {
	id, err := h.service.Auth.Resolve(r)
	if err != nil {
		writeError(w, r, err)
		return id, false
	}
	if !id.Authenticated() {
		writeError(w, r, fmt.Errorf("login required: %w", models.ErrUnauthenticated))
		return id, false
	}
	return id, true
}

func (h *Handler) admin(w http.ResponseWriter, r *http.Request) (app.Identity, bool) {
	id, ok := h.identity(w, r)
	if !ok {
		return id, false
	}
	if !id.IsAdmin() {
		writeError(w, r, fmt.Errorf("admin access required: %w", models.ErrForbidden))
		return id, false
	}
	return id, true
}
