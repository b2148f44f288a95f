package handlers

import (
	"net/http"

	"github.com/shrimpsizemoose/housecup/internal/models"
)

func (h *Handler) HandleScan(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identity(w, r)
	if !ok {
		return
	}

	var req struct {
		Code string `json:"code"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	result, err := h.service.Hunt.Scan(r.Context(), id.StudentID, req.Code)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) HandleTreasureProgress(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identity(w, r)
	if !ok {
		return
	}

	progress, err := h.service.Hunt.Progress(r.Context(), id.StudentID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, progress)
}

func (h *Handler) HandleTreasureLeaderboard(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identity(w, r)
	if !ok {
		return
	}

	board, err := h.service.Hunt.Leaderboard(r.Context(), id.StudentID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, board)
}

func (h *Handler) HandleCreateCode(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.admin(w, r); !ok {
		return
	}

	var code models.QRCode
	if err := decode(r, &code); err != nil {
		writeError(w, r, err)
		return
	}
	code.ID = 0
	if err := h.service.Hunt.CreateCode(r.Context(), &code); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, code)
}
