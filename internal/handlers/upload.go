package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"

	"realmkeeper-backend/internal/apperr"
	"realmkeeper-backend/internal/models"
	"realmkeeper-backend/internal/services"

	"github.com/rs/zerolog/log"
)

const multipartMemory = 8 << 20

// readCreateRequest decodes a create body that is either plain JSON or
// multipart/form-data with a JSON "payload" part and an optional "image" part.
func readCreateRequest(w http.ResponseWriter, r *http.Request, maxImage int64, dst any) (image []byte, ok bool) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		return nil, decodeJSON(w, r, dst)
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxImage+maxJSONBody)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		respondError(w, "Invalid multipart body", http.StatusBadRequest, apperr.KindValidation)
		return nil, false
	}

	decoder := json.NewDecoder(bytes.NewReader([]byte(r.FormValue("payload"))))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		respondError(w, "Invalid payload part", http.StatusBadRequest, apperr.KindValidation)
		return nil, false
	}

	image, err := readImagePart(r)
	if err != nil {
		respondError(w, "Invalid image part", http.StatusBadRequest, apperr.KindValidation)
		return nil, false
	}
	return image, true
}

// readImagePart returns the "image" file of a parsed multipart form, or nil
// when the request has none
func readImagePart(r *http.Request) ([]byte, error) {
	file, _, err := r.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	return data, nil
}

// createdResponse is the body of a create endpoint. Warning is set when the
// entity was stored but its image was not.
func createdResponse(key string, entity any, m *models.Media, warning string) map[string]any {
	body := map[string]any{key: entity}
	if m != nil {
		body["media"] = m
	}
	if warning != "" {
		body["warning"] = warning
	}
	return body
}

// attachImage uploads the image sent with a create request as the entity's
// primary image. A failure is reported as a warning; the entity stays.
func attachImage(
	ctx context.Context,
	mediaService *services.MediaService,
	userID string,
	entityType models.EntityType,
	entityID string,
	image []byte,
	label string,
) (*models.Media, string) {
	if len(image) == 0 {
		return nil, ""
	}

	m, err := mediaService.Upload(ctx, userID, entityType, entityID, image, true)
	if err != nil {
		log.Error().
			Err(err).
			Str("user_id", userID).
			Str("entity_id", entityID).
			Msg("Failed to upload image for new entity")
		return nil, label + " created, but image upload failed"
	}
	return m, ""
}
