package handlers

import (
	"net/http"
	"strconv"

	"github.com/shrimpsizemoose/housecup/internal/models"
)

type imageRequest struct {
	FileURL     string `json:"file_url"`
	Description string `json:"description"`
	Tags        string `json:"tags"`
}

func (h *Handler) HandleSubmitImage(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identity(w, r)
	if !ok {
		return
	}

	var req imageRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	image := &models.Image{FileURL: req.FileURL, Description: req.Description, Tags: req.Tags}
	if err := h.service.Gallery.Submit(r.Context(), id.StudentID, image); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, image)
}

func (h *Handler) HandlePendingImages(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.admin(w, r); !ok {
		return
	}

	images, err := h.service.Gallery.Pending(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"images": images})
}

func (h *Handler) HandleApproveImage(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.admin(w, r); !ok {
		return
	}
	imageID, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	image, err := h.service.Gallery.Approve(r.Context(), imageID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, image)
}

func (h *Handler) HandleRejectImage(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.admin(w, r); !ok {
		return
	}
	imageID, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := h.service.Gallery.Reject(r.Context(), imageID); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleGallery lists approved images, optionally for one house via ?house=<id>.
func (h *Handler) HandleGallery(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identity(w, r)
	if !ok {
		return
	}

	var houseID int64
	if raw := r.URL.Query().Get("house"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed <= 0 {
			writeError(w, r, models.NewValidationError("house", "must be a positive integer"))
			return
		}
		houseID = parsed
	}

	images, err := h.service.Gallery.Approved(r.Context(), houseID, id.StudentID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"images": images, "total_images": len(images)})
}

func (h *Handler) HandleLikeImage(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identity(w, r)
	if !ok {
		return
	}
	imageID, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	result, err := h.service.Gallery.ToggleLike(r.Context(), imageID, id.StudentID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
