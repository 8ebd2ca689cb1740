package handlers

import (
	"net/http"
	"strconv"

	"realmkeeper-backend/internal/apperr"
	"realmkeeper-backend/internal/middleware"
	"realmkeeper-backend/internal/models"
	"realmkeeper-backend/internal/services"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

// MediaHandler handles entity image HTTP requests
type MediaHandler struct {
	mediaService *services.MediaService
}

// NewMediaHandler creates a new media handler
func NewMediaHandler(mediaService *services.MediaService) *MediaHandler {
	return &MediaHandler{mediaService: mediaService}
}

// ListMedia handles GET /api/v1/media?entity_type=&entity_id=
func (h *MediaHandler) ListMedia(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	entityType := models.EntityType(r.URL.Query().Get("entity_type"))
	entityID := r.URL.Query().Get("entity_id")
	if entityID == "" {
		respondError(w, "entity_id is required", http.StatusBadRequest, apperr.KindValidation)
		return
	}

	media, err := h.mediaService.List(ctx, userID, entityType, entityID)
	if err != nil {
		respondServiceError(w, err, userID, "list media")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"media": media})
}

// UploadMedia handles POST /api/v1/media (multipart: entity_type, entity_id,
// is_primary, image)
func (h *MediaHandler) UploadMedia(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	r.Body = http.MaxBytesReader(w, r.Body, h.mediaService.MaxUploadBytes()+maxJSONBody)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		respondError(w, "Invalid multipart body", http.StatusBadRequest, apperr.KindValidation)
		return
	}

	image, err := readImagePart(r)
	if err != nil {
		respondError(w, "Invalid image part", http.StatusBadRequest, apperr.KindValidation)
		return
	}
	if len(image) == 0 {
		respondError(w, "image is required", http.StatusBadRequest, apperr.KindValidation)
		return
	}
	primary, _ := strconv.ParseBool(r.FormValue("is_primary"))

	entityType := models.EntityType(r.FormValue("entity_type"))
	entityID := r.FormValue("entity_id")
	m, err := h.mediaService.Upload(ctx, userID, entityType, entityID, image, primary)
	if err != nil {
		respondServiceError(w, err, userID, "upload media")
		return
	}

	log.Info().
		Str("user_id", userID).
		Str("media_id", m.ID).
		Str("entity_id", entityID).
		Msg("Media uploaded")

	respondJSON(w, http.StatusCreated, m)
}

// PresignUpload handles POST /api/v1/media/presign
func (h *MediaHandler) PresignUpload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	var req services.PresignRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	upload, err := h.mediaService.PresignUpload(ctx, userID, req)
	if err != nil {
		respondServiceError(w, err, userID, "presign upload")
		return
	}

	log.Info().
		Str("user_id", userID).
		Str("key", upload.Key).
		Msg("Pre-signed URL generated")

	respondJSON(w, http.StatusOK, upload)
}

// RegisterMedia handles POST /api/v1/media/register
func (h *MediaHandler) RegisterMedia(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	var req services.RegisterRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	m, err := h.mediaService.Register(ctx, userID, req)
	if err != nil {
		respondServiceError(w, err, userID, "register media")
		return
	}
	respondJSON(w, http.StatusCreated, m)
}

// SetPrimary handles PUT /api/v1/media/{id}/primary
func (h *MediaHandler) SetPrimary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	if err := h.mediaService.SetPrimary(ctx, userID, chi.URLParam(r, "id")); err != nil {
		respondServiceError(w, err, userID, "set primary media")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteMedia handles DELETE /api/v1/media/{id}
func (h *MediaHandler) DeleteMedia(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)
	mediaID := chi.URLParam(r, "id")

	if err := h.mediaService.Delete(ctx, userID, mediaID); err != nil {
		respondServiceError(w, err, userID, "delete media")
		return
	}

	log.Info().
		Str("user_id", userID).
		Str("media_id", mediaID).
		Msg("Media deleted")

	w.WriteHeader(http.StatusNoContent)
}
