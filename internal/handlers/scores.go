package handlers

import (
	"fmt"
	"net/http"

	"github.com/shrimpsizemoose/housecup/internal/app"
	"github.com/shrimpsizemoose/housecup/internal/models"
)

const recentScoresLimit = 10

func (h *Handler) HandleListHouses(w http.ResponseWriter, r *http.Request) {
	houses, err := h.service.Store.ListHouses(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"houses": houses})
}

func (h *Handler) HandleGetHouse(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	detail, err := h.service.HouseDetail(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (h *Handler) HandleHouseMembers(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.identity(w, r); !ok {
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	members, err := h.service.HouseMembers(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"members": members, "count": len(members)})
}

func (h *Handler) HandleUpdateHouse(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.admin(w, r); !ok {
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	var update app.HouseUpdate
	if err := decode(r, &update); err != nil {
		writeError(w, r, err)
		return
	}
	house, err := h.service.UpdateHouse(r.Context(), id, update)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, house)
}

func (h *Handler) HandleListEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.service.Store.ListEvents(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"events": events})
}

func (h *Handler) HandleGetEvent(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	detail, err := h.service.EventDetail(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (h *Handler) HandleCreateEvent(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.admin(w, r); !ok {
		return
	}

	var event models.Event
	if err := decode(r, &event); err != nil {
		writeError(w, r, err)
		return
	}
	event.ID = 0
	if err := event.Validate(); err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.service.Store.CreateEvent(r.Context(), &event); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, event)
}

type scoreRequest struct {
	EventID int64  `json:"event_id"`
	HouseID int64  `json:"house_id"`
	Points  *int   `json:"points"`
	Reason  string `json:"reason"`
}

func (req scoreRequest) points() (int, error) {
	if req.Points == nil {
		return 0, models.NewValidationError("points", "is required")
	}
	return *req.Points, nil
}

func (h *Handler) HandleRecordScore(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.admin(w, r); !ok {
		return
	}

	var req scoreRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	points, err := req.points()
	if err != nil {
		writeError(w, r, err)
		return
	}

	entry, err := h.service.Ledger.RecordScore(r.Context(), req.EventID, req.HouseID, points)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

func (h *Handler) HandleAmendScore(w http.ResponseWriter, r *http.Request) {
	id, ok := h.admin(w, r)
	if !ok {
		return
	}

	var req scoreRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	points, err := req.points()
	if err != nil {
		writeError(w, r, err)
		return
	}

	actor := fmt.Sprintf("admin:%d", id.StudentID)
	entry, err := h.service.Ledger.AmendScore(r.Context(), req.EventID, req.HouseID, points, req.Reason, actor)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (h *Handler) HandleLeaderboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	standings, err := h.service.Leaderboard.ComputeLeaderboard(ctx)
	if err != nil {
		writeError(w, r, err)
		return
	}
	recent, err := h.service.Store.RecentScores(ctx, recentScoresLimit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"standings":     standings,
		"recent_scores": recent,
	})
}

func (h *Handler) HandleBreakdown(w http.ResponseWriter, r *http.Request) {
	breakdown, err := h.service.Leaderboard.ComputeEventTypeBreakdown(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"categories": breakdown})
}

func (h *Handler) HandleScoreHistory(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.admin(w, r); !ok {
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	amendments, err := h.service.Ledger.History(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"amendments": amendments})
}
