package handlers

import (
	"net/http"

	"realmkeeper-backend/internal/apperr"
	"realmkeeper-backend/internal/geo"
	"realmkeeper-backend/internal/location"
	"realmkeeper-backend/internal/metrics"
	"realmkeeper-backend/internal/middleware"
	"realmkeeper-backend/internal/models"
	"realmkeeper-backend/internal/picker"
	"realmkeeper-backend/internal/services"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

// RealmHandler handles realm-related HTTP requests
type RealmHandler struct {
	realmService *services.RealmService
	tagService   *services.TagService
	mediaService *services.MediaService
	metrics      *metrics.Metrics
}

// NewRealmHandler creates a new realm handler
func NewRealmHandler(
	realmService *services.RealmService,
	tagService *services.TagService,
	mediaService *services.MediaService,
	m *metrics.Metrics,
) *RealmHandler {
	return &RealmHandler{
		realmService: realmService,
		tagService:   tagService,
		mediaService: mediaService,
		metrics:      m,
	}
}

// PickRequest is a tapped map point
type PickRequest struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

// RadiusRequest is a requested realm radius
type RadiusRequest struct {
	Radius float64 `json:"radius"`
}

// PickResponse is the picker state after a pick
type PickResponse struct {
	Value    picker.Value   `json:"value"`
	Viewport *geo.Point     `json:"viewport,omitempty"`
	State    location.State `json:"state,omitempty"`
}

// RadiusResponse is a clamped radius with its bounds
type RadiusResponse struct {
	Radius    float64 `json:"radius"`
	MinRadius float64 `json:"min_radius"`
	MaxRadius float64 `json:"max_radius"`
}

// ListRealms handles GET /api/v1/realms
func (h *RealmHandler) ListRealms(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	realms, err := h.realmService.List(ctx, userID)
	if err != nil {
		respondServiceError(w, err, userID, "list realms")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"realms": realms})
}

// NearbyRealms handles GET /api/v1/realms/nearby?latitude=&longitude=&radius=
func (h *RealmHandler) NearbyRealms(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	lat, okLat := queryFloat(r, "latitude")
	lng, okLng := queryFloat(r, "longitude")
	radius, okRadius := queryFloat(r, "radius")
	if !okLat || !okLng || !okRadius {
		respondError(w, "latitude, longitude and radius are required", http.StatusBadRequest, apperr.KindValidation)
		return
	}

	realms, err := h.realmService.Nearby(ctx, userID, geo.Point{Latitude: lat, Longitude: lng}, radius)
	if err != nil {
		respondServiceError(w, err, userID, "find nearby realms")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"realms": realms})
}

// GetRealm handles GET /api/v1/realms/{id}
func (h *RealmHandler) GetRealm(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	realm, err := h.realmService.Get(ctx, userID, chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, err, userID, "get realm")
		return
	}
	respondJSON(w, http.StatusOK, realm)
}

// CreateRealm handles POST /api/v1/realms (JSON or multipart with an image)
func (h *RealmHandler) CreateRealm(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	var req services.RealmInput
	image, ok := readCreateRequest(w, r, h.mediaService.MaxUploadBytes(), &req)
	if !ok {
		return
	}

	realm, err := h.realmService.Create(ctx, userID, req)
	if err != nil {
		respondServiceError(w, err, userID, "create realm")
		return
	}

	log.Info().
		Str("user_id", userID).
		Str("realm_id", realm.ID).
		Msg("Realm created")

	m, warning := attachImage(ctx, h.mediaService, userID, models.EntityLocation, realm.ID, image, "Realm")
	respondJSON(w, http.StatusCreated, createdResponse("realm", realm, m, warning))
}

// UpdateRealm handles PUT /api/v1/realms/{id}
func (h *RealmHandler) UpdateRealm(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	var req services.RealmInput
	if !decodeJSON(w, r, &req) {
		return
	}

	realm, err := h.realmService.Update(ctx, userID, chi.URLParam(r, "id"), req)
	if err != nil {
		respondServiceError(w, err, userID, "update realm")
		return
	}
	respondJSON(w, http.StatusOK, realm)
}

// DeleteRealm handles DELETE /api/v1/realms/{id}
func (h *RealmHandler) DeleteRealm(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)
	realmID := chi.URLParam(r, "id")

	if err := h.realmService.Delete(ctx, userID, realmID); err != nil {
		respondServiceError(w, err, userID, "delete realm")
		return
	}

	log.Info().
		Str("user_id", userID).
		Str("realm_id", realmID).
		Msg("Realm deleted")

	w.WriteHeader(http.StatusNoContent)
}

// SetRealmTags handles PUT /api/v1/realms/{id}/tags
func (h *RealmHandler) SetRealmTags(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)
	realmID := chi.URLParam(r, "id")

	if _, err := h.realmService.Get(ctx, userID, realmID); err != nil {
		respondServiceError(w, err, userID, "set realm tags")
		return
	}

	tagIDs, ok := decodeTags(w, r)
	if !ok {
		return
	}
	tags, err := h.tagService.SetLocationTags(ctx, userID, realmID, tagIDs)
	if err != nil {
		respondServiceError(w, err, userID, "set realm tags")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"tags": tags})
}

// PickPoint handles POST /api/v1/realms/{id}/pick: binds a tapped point for a
// nook, accepted only inside the realm's circle
func (h *RealmHandler) PickPoint(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	p, ok := h.realmPicker(w, r, nil)
	if !ok {
		return
	}

	var req PickRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Latitude == nil || req.Longitude == nil {
		respondError(w, "latitude and longitude are required", http.StatusBadRequest, apperr.KindValidation)
		return
	}
	if err := p.Pick(geo.Point{Latitude: *req.Latitude, Longitude: *req.Longitude}); err != nil {
		respondServiceError(w, err, userID, "pick point")
		return
	}
	respondJSON(w, http.StatusOK, PickResponse{Value: p.Value(), Viewport: p.Viewport()})
}

// PickCurrentLocation handles POST /api/v1/realms/{id}/pick/current: binds the
// device fix the client reports, accepted only inside the realm's circle
func (h *RealmHandler) PickCurrentLocation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	var fix location.ReportedFix
	if !decodeJSON(w, r, &fix) {
		return
	}

	locator := location.NewService(&fix, location.Config{
		OutsideAreaMessage: services.OutsideRealmMessage,
		OnError: func(err error) {
			log.Warn().Err(err).Str("user_id", userID).Msg("Reported location rejected")
		},
	})
	p, ok := h.realmPicker(w, r, locator)
	if !ok {
		return
	}

	if err := p.UseCurrentLocation(ctx); err != nil {
		respondServiceError(w, err, userID, "use current location")
		return
	}
	respondJSON(w, http.StatusOK, PickResponse{Value: p.Value(), Viewport: p.Viewport(), State: locator.State()})
}

// PickRadius handles POST /api/v1/realms/pick/radius: clamps a realm radius
// to the configured bounds
func (h *RealmHandler) PickRadius(w http.ResponseWriter, r *http.Request) {
	var req RadiusRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	lo, hi := h.realmService.RadiusBounds()
	p := picker.New(picker.Options{MinRadius: lo, MaxRadius: hi})
	radius := p.SetRadius(req.Radius)

	respondJSON(w, http.StatusOK, RadiusResponse{Radius: radius, MinRadius: lo, MaxRadius: hi})
}

// realmPicker builds a picker bounded by the realm named in the URL
func (h *RealmHandler) realmPicker(w http.ResponseWriter, r *http.Request, locator picker.Locator) (*picker.Picker, bool) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	realm, err := h.realmService.Get(ctx, userID, chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, err, userID, "get realm")
		return nil, false
	}

	opts := picker.Options{
		Locator:        locator,
		OutsideMessage: services.OutsideRealmMessage,
		OnCheck:        h.metrics.IncGeofenceCheck,
	}
	if circle, ok := realm.Circle(); ok {
		opts.Parent = &circle
	}
	return picker.New(opts), true
}
