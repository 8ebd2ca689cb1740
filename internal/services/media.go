package services

import (
	"context"
	"fmt"
	"strings"

	"realmkeeper-backend/internal/apperr"
	"realmkeeper-backend/internal/cache"
	"realmkeeper-backend/internal/media"
	"realmkeeper-backend/internal/models"

	"github.com/rs/zerolog/log"
)

// DefaultMaxUploadBytes caps an image accepted by the API
const DefaultMaxUploadBytes = 15 * 1024 * 1024

// allowedImageTypes maps accepted upload MIME types to their file extensions
var allowedImageTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
}

// PresignRequest asks for a direct-to-bucket upload URL
type PresignRequest struct {
	EntityType  models.EntityType `json:"entity_type"`
	EntityID    string            `json:"entity_id"`
	ContentType string            `json:"content_type"`
	SizeBytes   int64             `json:"size_bytes"`
}

// RegisterRequest records an object uploaded through a presigned URL
type RegisterRequest struct {
	EntityType  models.EntityType `json:"entity_type"`
	EntityID    string            `json:"entity_id"`
	StoragePath string            `json:"storage_path"`
	MimeType    string            `json:"mime_type"`
	FileSize    int64             `json:"file_size"`
	IsPrimary   bool              `json:"is_primary"`
}

// MediaService handles entity images
type MediaService struct {
	base
	rows      MediaStore
	objects   media.ObjectStore
	uploader  *media.Uploader
	locations LocationStore
	treasures TreasureStore
	maxBytes  int64
}

// NewMediaService creates a new media service. maxBytes <= 0 uses DefaultMaxUploadBytes.
func NewMediaService(
	rows MediaStore,
	objects media.ObjectStore,
	uploader *media.Uploader,
	locations LocationStore,
	treasures TreasureStore,
	maxBytes int64,
	opts Options,
) *MediaService {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxUploadBytes
	}
	return &MediaService{
		base:      newBase(opts),
		rows:      rows,
		objects:   objects,
		uploader:  uploader,
		locations: locations,
		treasures: treasures,
		maxBytes:  maxBytes,
	}
}

// MaxUploadBytes returns the largest accepted image
func (s *MediaService) MaxUploadBytes() int64 {
	return s.maxBytes
}

// List retrieves an entity's images, primary first, with public URLs
func (s *MediaService) List(ctx context.Context, userID string, entityType models.EntityType, entityID string) ([]*models.Media, error) {
	if err := s.checkEntity(ctx, userID, entityType, entityID); err != nil {
		return nil, err
	}
	rows, err := cache.Fetch(ctx, s.opts.Cache, s.opts.Metrics, mediaKey(entityType, entityID), func() ([]*models.Media, error) {
		return s.rows.ListByEntity(ctx, entityType, entityID)
	})
	if err != nil {
		return nil, err
	}
	for _, m := range rows {
		m.URL = s.objects.PublicURL(m.StoragePath)
	}
	return rows, nil
}

// Upload compresses and stores an image for an entity, retrying with
// escalating compression. A failure leaves the entity untouched.
func (s *MediaService) Upload(ctx context.Context, userID string, entityType models.EntityType, entityID string, data []byte, primary bool) (*models.Media, error) {
	if err := s.checkEntity(ctx, userID, entityType, entityID); err != nil {
		return nil, err
	}
	if int64(len(data)) > s.maxBytes {
		return nil, apperr.Newf(apperr.KindValidation, "Image exceeds %d MB", s.maxBytes/(1024*1024))
	}

	m, err := s.uploader.Upload(ctx, media.Input{
		UserID:      userID,
		EntityType:  entityType,
		EntityID:    entityID,
		Data:        data,
		MakePrimary: primary,
	})
	if err != nil {
		return nil, err
	}

	s.changed(ctx, userID, Change{Resource: ResourceMedia, ID: m.ID, Action: ActionCreated}, mediaKey(entityType, entityID))
	return m, nil
}

// PresignUpload returns a URL the client can PUT an image to directly
func (s *MediaService) PresignUpload(ctx context.Context, userID string, req PresignRequest) (*media.PresignedUpload, error) {
	if err := s.checkEntity(ctx, userID, req.EntityType, req.EntityID); err != nil {
		return nil, err
	}
	ext, ok := allowedImageTypes[req.ContentType]
	if !ok {
		return nil, apperr.Validation("Unsupported content type")
	}
	if req.SizeBytes <= 0 || req.SizeBytes > s.maxBytes {
		return nil, apperr.Newf(apperr.KindValidation, "Image size must be between 1 byte and %d MB", s.maxBytes/(1024*1024))
	}

	key := media.ObjectKey(userID, req.EntityType, req.EntityID, s.newID()+ext)
	upload, err := s.objects.PresignPut(ctx, key, req.ContentType, req.SizeBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to presign upload: %w", err)
	}
	return upload, nil
}

// Register records the metadata row of an image uploaded with PresignUpload
func (s *MediaService) Register(ctx context.Context, userID string, req RegisterRequest) (*models.Media, error) {
	if err := s.checkEntity(ctx, userID, req.EntityType, req.EntityID); err != nil {
		return nil, err
	}
	prefix := media.KeyPrefix(userID, req.EntityType, req.EntityID)
	filename := strings.TrimPrefix(req.StoragePath, prefix)
	if !strings.HasPrefix(req.StoragePath, prefix) || filename == "" || strings.Contains(filename, "/") {
		return nil, apperr.Validation("Storage path does not belong to this entity")
	}
	if _, ok := allowedImageTypes[req.MimeType]; !ok {
		return nil, apperr.Validation("Unsupported content type")
	}

	m := &models.Media{
		ID:          s.newID(),
		EntityType:  req.EntityType,
		EntityID:    req.EntityID,
		StoragePath: req.StoragePath,
		MimeType:    req.MimeType,
		FileSize:    req.FileSize,
		UserID:      userID,
		CreatedAt:   s.now(),
	}
	if err := s.rows.Create(ctx, m); err != nil {
		return nil, fmt.Errorf("failed to record media: %w", err)
	}
	if req.IsPrimary {
		if err := s.rows.SetPrimary(ctx, req.EntityType, req.EntityID, m.ID); err != nil {
			return nil, fmt.Errorf("failed to set primary media: %w", err)
		}
		m.IsPrimary = true
	}
	m.URL = s.objects.PublicURL(m.StoragePath)

	s.changed(ctx, userID, Change{Resource: ResourceMedia, ID: m.ID, Action: ActionCreated}, mediaKey(req.EntityType, req.EntityID))
	return m, nil
}

// SetPrimary makes an image its entity's single primary image
func (s *MediaService) SetPrimary(ctx context.Context, userID, mediaID string) error {
	m, err := s.owned(ctx, userID, mediaID)
	if err != nil {
		return err
	}
	if err := s.rows.SetPrimary(ctx, m.EntityType, m.EntityID, m.ID); err != nil {
		return fmt.Errorf("failed to set primary media: %w", err)
	}

	s.changed(ctx, userID, Change{Resource: ResourceMedia, ID: m.ID, Action: ActionUpdated}, mediaKey(m.EntityType, m.EntityID))
	return nil
}

// Delete removes an image from the bucket and then its row
func (s *MediaService) Delete(ctx context.Context, userID, mediaID string) error {
	m, err := s.owned(ctx, userID, mediaID)
	if err != nil {
		return err
	}
	if err := s.delete(ctx, m); err != nil {
		return err
	}

	s.changed(ctx, userID, Change{Resource: ResourceMedia, ID: m.ID, Action: ActionDeleted}, mediaKey(m.EntityType, m.EntityID))
	return nil
}

// RemoveForEntity deletes every image attached to an entity
func (s *MediaService) RemoveForEntity(ctx context.Context, userID string, entityType models.EntityType, entityID string) error {
	rows, err := s.rows.ListByEntity(ctx, entityType, entityID)
	if err != nil {
		return fmt.Errorf("failed to list media: %w", err)
	}
	for _, m := range rows {
		if err := s.delete(ctx, m); err != nil {
			return err
		}
	}
	if len(rows) > 0 {
		s.changed(ctx, userID, Change{Resource: ResourceMedia, ID: entityID, Action: ActionDeleted}, mediaKey(entityType, entityID))
	}
	return nil
}

func (s *MediaService) delete(ctx context.Context, m *models.Media) error {
	if err := s.objects.Delete(ctx, m.StoragePath); err != nil {
		return apperr.Wrap(apperr.KindTransient, "Failed to delete image", err)
	}
	if err := s.rows.Delete(ctx, m.ID); err != nil {
		return fmt.Errorf("failed to delete media: %w", err)
	}
	log.Info().Str("media_id", m.ID).Str("entity_id", m.EntityID).Msg("Media deleted")
	return nil
}

func (s *MediaService) owned(ctx context.Context, userID, mediaID string) (*models.Media, error) {
	m, err := s.rows.GetByID(ctx, mediaID)
	if err != nil {
		return nil, err
	}
	if m.UserID != userID {
		return nil, apperr.NotFound("media not found")
	}
	return m, nil
}

// checkEntity verifies the user owns the entity images are attached to
func (s *MediaService) checkEntity(ctx context.Context, userID string, entityType models.EntityType, entityID string) error {
	switch entityType {
	case models.EntityLocation:
		_, err := ownedLocation(ctx, s.locations, userID, entityID)
		return err
	case models.EntityTreasure:
		_, err := ownedTreasure(ctx, s.treasures, userID, entityID)
		return err
	default:
		return apperr.Validation("Unknown entity type")
	}
}
