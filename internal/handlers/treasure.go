package handlers

import (
	"net/http"

	"realmkeeper-backend/internal/middleware"
	"realmkeeper-backend/internal/models"
	"realmkeeper-backend/internal/services"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

// TreasureHandler handles treasure-related HTTP requests
type TreasureHandler struct {
	treasureService *services.TreasureService
	tagService      *services.TagService
	mediaService    *services.MediaService
}

// NewTreasureHandler creates a new treasure handler
func NewTreasureHandler(
	treasureService *services.TreasureService,
	tagService *services.TagService,
	mediaService *services.MediaService,
) *TreasureHandler {
	return &TreasureHandler{
		treasureService: treasureService,
		tagService:      tagService,
		mediaService:    mediaService,
	}
}

// ListAllTreasures handles GET /api/v1/treasures?limit=&offset=
func (h *TreasureHandler) ListAllTreasures(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	limit := queryInt(r, "limit", services.DefaultTreasureLimit)
	offset := queryInt(r, "offset", 0)

	treasures, total, err := h.treasureService.ListByUser(ctx, userID, limit, offset)
	if err != nil {
		respondServiceError(w, err, userID, "list treasures")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"treasures": treasures,
		"total":     total,
	})
}

// ListTreasures handles GET /api/v1/nooks/{id}/treasures
func (h *TreasureHandler) ListTreasures(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	treasures, err := h.treasureService.List(ctx, userID, chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, err, userID, "list nook treasures")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"treasures": treasures})
}

// GetTreasure handles GET /api/v1/treasures/{id}
func (h *TreasureHandler) GetTreasure(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	treasure, err := h.treasureService.Get(ctx, userID, chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, err, userID, "get treasure")
		return
	}
	respondJSON(w, http.StatusOK, treasure)
}

// CreateTreasure handles POST /api/v1/nooks/{id}/treasures (JSON or multipart with an image)
func (h *TreasureHandler) CreateTreasure(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	var req services.TreasureInput
	image, ok := readCreateRequest(w, r, h.mediaService.MaxUploadBytes(), &req)
	if !ok {
		return
	}

	treasure, err := h.treasureService.Create(ctx, userID, chi.URLParam(r, "id"), req)
	if err != nil {
		respondServiceError(w, err, userID, "create treasure")
		return
	}

	log.Info().
		Str("user_id", userID).
		Str("treasure_id", treasure.ID).
		Msg("Treasure created")

	m, warning := attachImage(ctx, h.mediaService, userID, models.EntityTreasure, treasure.ID, image, "Treasure")
	respondJSON(w, http.StatusCreated, createdResponse("treasure", treasure, m, warning))
}

// UpdateTreasure handles PUT /api/v1/treasures/{id}
func (h *TreasureHandler) UpdateTreasure(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	var req services.TreasureInput
	if !decodeJSON(w, r, &req) {
		return
	}

	treasure, err := h.treasureService.Update(ctx, userID, chi.URLParam(r, "id"), req)
	if err != nil {
		respondServiceError(w, err, userID, "update treasure")
		return
	}
	respondJSON(w, http.StatusOK, treasure)
}

// DeleteTreasure handles DELETE /api/v1/treasures/{id}
func (h *TreasureHandler) DeleteTreasure(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)
	treasureID := chi.URLParam(r, "id")

	if err := h.treasureService.Delete(ctx, userID, treasureID); err != nil {
		respondServiceError(w, err, userID, "delete treasure")
		return
	}

	log.Info().
		Str("user_id", userID).
		Str("treasure_id", treasureID).
		Msg("Treasure deleted")

	w.WriteHeader(http.StatusNoContent)
}

// SetTreasureTags handles PUT /api/v1/treasures/{id}/tags
func (h *TreasureHandler) SetTreasureTags(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	tagIDs, ok := decodeTags(w, r)
	if !ok {
		return
	}
	tags, err := h.tagService.SetTreasureTags(ctx, userID, chi.URLParam(r, "id"), tagIDs)
	if err != nil {
		respondServiceError(w, err, userID, "set treasure tags")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"tags": tags})
}
