package handlers

import (
	"fmt"
	"net/http"

	"github.com/shrimpsizemoose/housecup/internal/models"
)

func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var reg models.Registration
	if err := decode(r, &reg); err != nil {
		writeError(w, r, err)
		return
	}

	result, err := h.service.Register(r.Context(), reg)
	if err != nil {
		writeError(w, r, err)
		return
	}

	status := http.StatusCreated
	if result.Existing {
		status = http.StatusOK
	}
	writeJSON(w, status, result)
}

type loginRequest struct {
	Matric   string `json:"matric"`
	HouseID  int64  `json:"house_id"`
	Password string `json:"password"`
}

func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	result, err := h.service.Auth.Login(r.Context(), req.Matric, req.HouseID, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Auth.Logout(r.Context(), r); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type meResponse struct {
	Student     *models.Student `json:"student"`
	House       *models.House   `json:"house,omitempty"`
	UnreadCount int             `json:"unread_count"`
}

func (h *Handler) HandleMe(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identity(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	student, err := h.service.Store.GetStudent(ctx, id.StudentID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if student == nil {
		writeError(w, r, fmt.Errorf("student %d: %w", id.StudentID, models.ErrNotFound))
		return
	}

	resp := meResponse{Student: student}
	if student.HouseID != nil {
		if resp.House, err = h.service.Store.GetHouse(ctx, *student.HouseID); err != nil {
			writeError(w, r, err)
			return
		}
	}
	if resp.UnreadCount, err = h.service.Store.CountUnreadNotifications(ctx, student.ID); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
