package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"realmkeeper-backend/internal/apperr"

	"github.com/rs/zerolog/log"
)

// maxJSONBody caps a JSON request body
const maxJSONBody = 1 << 20

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// respondJSON encodes body with the given status
func respondJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if body == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

// respondError sends an error response
func respondError(w http.ResponseWriter, message string, statusCode int, kind apperr.Kind) {
	respondJSON(w, statusCode, ErrorResponse{Error: message, Code: string(kind)})
}

// respondServiceError maps a service error to its status code. Internal
// errors are logged and never leak their cause.
func respondServiceError(w http.ResponseWriter, err error, userID, action string) {
	kind := apperr.KindOf(err)
	status := statusFor(kind)

	event := log.Warn()
	if status >= http.StatusInternalServerError {
		event = log.Error()
	}
	event.Err(err).Str("user_id", userID).Str("code", string(kind)).Msg("Failed to " + action)

	message := apperr.Message(err, "Internal server error")
	if kind == apperr.KindInternal {
		message = "Internal server error"
	}
	respondError(w, message, status, kind)
}

// statusFor maps an error kind to an HTTP status code
func statusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindUnauthenticated:
		return http.StatusUnauthorized
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindPermissionDenied:
		return http.StatusForbidden
	case apperr.KindOutOfBounds, apperr.KindInvalidData:
		return http.StatusUnprocessableEntity
	case apperr.KindConflict:
		return http.StatusConflict
	case apperr.KindDeviceError, apperr.KindTransient:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// decodeJSON reads a JSON body into dst, rejecting unknown fields and empty bodies
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		message := "Invalid request body"
		if errors.Is(err, io.EOF) {
			message = "Request body is required"
		}
		respondError(w, message, http.StatusBadRequest, apperr.KindValidation)
		return false
	}
	return true
}

// decodeTags reads a TagsRequest. tag_ids must be present; an empty list
// clears every tag.
func decodeTags(w http.ResponseWriter, r *http.Request) ([]string, bool) {
	var req TagsRequest
	if !decodeJSON(w, r, &req) {
		return nil, false
	}
	if req.TagIDs == nil {
		respondError(w, "tag_ids is required", http.StatusBadRequest, apperr.KindValidation)
		return nil, false
	}
	return req.TagIDs, true
}

// queryInt parses an integer query parameter, falling back to def
func queryInt(r *http.Request, name string, def int) int {
	if raw := r.URL.Query().Get(name); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			return v
		}
	}
	return def
}

// queryFloat parses a required float query parameter
func queryFloat(r *http.Request, name string) (float64, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(raw, 64)
	return v, err == nil
}

// TagsRequest replaces the full tag set of an entity
type TagsRequest struct {
	TagIDs []string `json:"tag_ids"`
}
