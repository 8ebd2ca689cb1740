package handlers

import (
	"net/http"

	"realmkeeper-backend/internal/middleware"
	"realmkeeper-backend/internal/models"
	"realmkeeper-backend/internal/services"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

// NookHandler handles nook-related HTTP requests
type NookHandler struct {
	nookService  *services.NookService
	tagService   *services.TagService
	mediaService *services.MediaService
}

// NewNookHandler creates a new nook handler
func NewNookHandler(nookService *services.NookService, tagService *services.TagService, mediaService *services.MediaService) *NookHandler {
	return &NookHandler{
		nookService:  nookService,
		tagService:   tagService,
		mediaService: mediaService,
	}
}

// ListNooks handles GET /api/v1/realms/{id}/nooks
func (h *NookHandler) ListNooks(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	nooks, err := h.nookService.List(ctx, userID, chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, err, userID, "list nooks")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"nooks": nooks})
}

// GetNook handles GET /api/v1/nooks/{id}
func (h *NookHandler) GetNook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	nook, err := h.nookService.Get(ctx, userID, chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, err, userID, "get nook")
		return
	}
	respondJSON(w, http.StatusOK, nook)
}

// CreateNook handles POST /api/v1/realms/{id}/nooks (JSON or multipart with an image)
func (h *NookHandler) CreateNook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	var req services.NookInput
	image, ok := readCreateRequest(w, r, h.mediaService.MaxUploadBytes(), &req)
	if !ok {
		return
	}

	nook, err := h.nookService.Create(ctx, userID, chi.URLParam(r, "id"), req)
	if err != nil {
		respondServiceError(w, err, userID, "create nook")
		return
	}

	log.Info().
		Str("user_id", userID).
		Str("nook_id", nook.ID).
		Msg("Nook created")

	m, warning := attachImage(ctx, h.mediaService, userID, models.EntityLocation, nook.ID, image, "Nook")
	respondJSON(w, http.StatusCreated, createdResponse("nook", nook, m, warning))
}

// UpdateNook handles PUT /api/v1/nooks/{id}
func (h *NookHandler) UpdateNook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	var req services.NookInput
	if !decodeJSON(w, r, &req) {
		return
	}

	nook, err := h.nookService.Update(ctx, userID, chi.URLParam(r, "id"), req)
	if err != nil {
		respondServiceError(w, err, userID, "update nook")
		return
	}
	respondJSON(w, http.StatusOK, nook)
}

// DeleteNook handles DELETE /api/v1/nooks/{id}
func (h *NookHandler) DeleteNook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)
	nookID := chi.URLParam(r, "id")

	if err := h.nookService.Delete(ctx, userID, nookID); err != nil {
		respondServiceError(w, err, userID, "delete nook")
		return
	}

	log.Info().
		Str("user_id", userID).
		Str("nook_id", nookID).
		Msg("Nook deleted")

	w.WriteHeader(http.StatusNoContent)
}

// SetNookTags handles PUT /api/v1/nooks/{id}/tags
func (h *NookHandler) SetNookTags(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)
	nookID := chi.URLParam(r, "id")

	if _, err := h.nookService.Get(ctx, userID, nookID); err != nil {
		respondServiceError(w, err, userID, "set nook tags")
		return
	}

	tagIDs, ok := decodeTags(w, r)
	if !ok {
		return
	}
	tags, err := h.tagService.SetLocationTags(ctx, userID, nookID, tagIDs)
	if err != nil {
		respondServiceError(w, err, userID, "set nook tags")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"tags": tags})
}
