package handlers

import (
	"context"
	"net/http"

	"realmkeeper-backend/internal/middleware"
	"realmkeeper-backend/internal/services"

	"github.com/go-chi/chi/v5"
)

// TagHandler handles tag CRUD and single tag associations
type TagHandler struct {
	tagService *services.TagService
}

// NewTagHandler creates a new tag handler
func NewTagHandler(tagService *services.TagService) *TagHandler {
	return &TagHandler{tagService: tagService}
}

// ListTags handles GET /api/v1/tags
func (h *TagHandler) ListTags(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	tags, err := h.tagService.List(ctx, userID)
	if err != nil {
		respondServiceError(w, err, userID, "list tags")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"tags": tags})
}

// CreateTag handles POST /api/v1/tags
func (h *TagHandler) CreateTag(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	var req services.TagInput
	if !decodeJSON(w, r, &req) {
		return
	}
	tag, err := h.tagService.Create(ctx, userID, req)
	if err != nil {
		respondServiceError(w, err, userID, "create tag")
		return
	}
	respondJSON(w, http.StatusCreated, tag)
}

// UpdateTag handles PUT /api/v1/tags/{id}
func (h *TagHandler) UpdateTag(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	var req services.TagInput
	if !decodeJSON(w, r, &req) {
		return
	}
	tag, err := h.tagService.Update(ctx, userID, chi.URLParam(r, "id"), req)
	if err != nil {
		respondServiceError(w, err, userID, "update tag")
		return
	}
	respondJSON(w, http.StatusOK, tag)
}

// DeleteTag handles DELETE /api/v1/tags/{id}
func (h *TagHandler) DeleteTag(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	if err := h.tagService.Delete(ctx, userID, chi.URLParam(r, "id")); err != nil {
		respondServiceError(w, err, userID, "delete tag")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AddLocationTag handles POST /api/v1/locations/{id}/tags/{tag_id}
func (h *TagHandler) AddLocationTag(w http.ResponseWriter, r *http.Request) {
	h.link(w, r, "add location tag", h.tagService.AddToLocation)
}

// RemoveLocationTag handles DELETE /api/v1/locations/{id}/tags/{tag_id}
func (h *TagHandler) RemoveLocationTag(w http.ResponseWriter, r *http.Request) {
	h.link(w, r, "remove location tag", h.tagService.RemoveFromLocation)
}

// AddTreasureTag handles POST /api/v1/treasures/{id}/tags/{tag_id}
func (h *TagHandler) AddTreasureTag(w http.ResponseWriter, r *http.Request) {
	h.link(w, r, "add treasure tag", h.tagService.AddToTreasure)
}

// RemoveTreasureTag handles DELETE /api/v1/treasures/{id}/tags/{tag_id}
func (h *TagHandler) RemoveTreasureTag(w http.ResponseWriter, r *http.Request) {
	h.link(w, r, "remove treasure tag", h.tagService.RemoveFromTreasure)
}

func (h *TagHandler) link(
	w http.ResponseWriter,
	r *http.Request,
	action string,
	apply func(ctx context.Context, userID, entityID, tagID string) error,
) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	if err := apply(ctx, userID, chi.URLParam(r, "id"), chi.URLParam(r, "tag_id")); err != nil {
		respondServiceError(w, err, userID, action)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
