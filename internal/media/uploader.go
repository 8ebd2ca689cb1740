package media

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"realmkeeper-backend/internal/apperr"
	"realmkeeper-backend/internal/metrics"
	"realmkeeper-backend/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// ContentType of every compressed upload
const ContentType = "image/jpeg"

// NetworkErrorMessage replaces the cause of uploads that failed on the network
const NetworkErrorMessage = "Network error. Please check your connection and try again."

// Upload defaults
const (
	DefaultMaxAttempts = 3
	DefaultBackoffBase = time.Second
	DefaultBackoffMax  = 8 * time.Second
)

// MetadataStore records uploaded media rows
type MetadataStore interface {
	Create(ctx context.Context, m *models.Media) error
	SetPrimary(ctx context.Context, entityType models.EntityType, entityID, mediaID string) error
}

// Input describes one image to attach to an entity
type Input struct {
	UserID      string
	EntityType  models.EntityType
	EntityID    string
	Data        []byte
	MakePrimary bool
}

// UploaderConfig holds retry configuration
type UploaderConfig struct {
	MaxAttempts int
	Steps       []Step
	BackoffBase time.Duration
	BackoffMax  time.Duration
	Metrics     *metrics.Metrics
}

// Uploader compresses, uploads and registers images
type Uploader struct {
	compressor Compressor
	store      ObjectStore
	rows       MetadataStore
	cfg        UploaderConfig

	sleep   func(ctx context.Context, d time.Duration) error
	timeNow func() time.Time
	newID   func() string
}

// NewUploader creates an uploader. Zero config values take the defaults.
func NewUploader(compressor Compressor, store ObjectStore, rows MetadataStore, cfg UploaderConfig) *Uploader {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if len(cfg.Steps) == 0 {
		cfg.Steps = DefaultSteps
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = DefaultBackoffBase
	}
	if cfg.BackoffMax <= 0 {
		cfg.BackoffMax = DefaultBackoffMax
	}
	return &Uploader{
		compressor: compressor,
		store:      store,
		rows:       rows,
		cfg:        cfg,
		sleep:      sleepContext,
		timeNow:    time.Now,
		newID:      func() string { return uuid.New().String() },
	}
}

// Upload stores in.Data under {userId}/{entityType}/{entityId}/{filename} and
// records its metadata row. Attempt n compresses with Steps[n-1] and waits
// Backoff(n) before the next attempt. The owning entity is never touched.
func (u *Uploader) Upload(ctx context.Context, in Input) (*models.Media, error) {
	if !in.EntityType.Valid() {
		return nil, apperr.Validation("Unknown entity type")
	}
	if in.EntityID == "" || in.UserID == "" {
		return nil, apperr.Validation("Entity is required")
	}
	if len(in.Data) == 0 {
		return nil, apperr.Validation("Image is empty")
	}

	started := u.timeNow()
	defer func() {
		u.cfg.Metrics.ObserveUploadDuration(u.timeNow().Sub(started).Seconds())
	}()

	id := u.newID()
	key := ObjectKey(in.UserID, in.EntityType, in.EntityID, id+".jpg")

	var (
		size    int
		lastErr error
	)
	for attempt := 1; attempt <= u.cfg.MaxAttempts; attempt++ {
		size, lastErr = u.attempt(ctx, key, in.Data, u.step(attempt))
		if lastErr == nil {
			u.cfg.Metrics.IncUploadAttempt(metrics.ResultSuccess)
			break
		}

		u.cfg.Metrics.IncUploadAttempt(metrics.ResultFailure)
		log.Warn().Err(lastErr).
			Str("entity_id", in.EntityID).
			Int("attempt", attempt).
			Msg("Media upload attempt failed")

		if attempt == u.cfg.MaxAttempts {
			break
		}
		if err := u.sleep(ctx, Backoff(attempt, u.cfg.BackoffBase, u.cfg.BackoffMax)); err != nil {
			return nil, apperr.Wrap(apperr.KindTransient, "upload cancelled", err)
		}
	}
	if lastErr != nil {
		return nil, apperr.Wrap(apperr.KindTransient,
			fmt.Sprintf("upload failed after %d attempts: %s", u.cfg.MaxAttempts, failureMessage(lastErr)),
			lastErr)
	}

	m := &models.Media{
		ID:          id,
		EntityType:  in.EntityType,
		EntityID:    in.EntityID,
		StoragePath: key,
		MimeType:    ContentType,
		FileSize:    int64(size),
		UserID:      in.UserID,
		CreatedAt:   u.timeNow(),
	}
	if err := u.rows.Create(ctx, m); err != nil {
		if delErr := u.store.Delete(ctx, key); delErr != nil {
			log.Error().Err(delErr).Str("key", key).Msg("Failed to remove orphaned media object")
		}
		return nil, fmt.Errorf("failed to record media: %w", err)
	}

	if in.MakePrimary {
		if err := u.rows.SetPrimary(ctx, in.EntityType, in.EntityID, id); err != nil {
			return nil, fmt.Errorf("failed to set primary media: %w", err)
		}
		m.IsPrimary = true
	}

	m.URL = u.store.PublicURL(key)
	return m, nil
}

func (u *Uploader) attempt(ctx context.Context, key string, data []byte, step Step) (int, error) {
	compressed, err := u.compressor.Compress(data, step)
	if err != nil {
		return 0, err
	}
	if err := u.store.Put(ctx, key, compressed, ContentType); err != nil {
		return 0, err
	}
	return len(compressed), nil
}

// step returns the settings for a 1-based attempt; extra attempts reuse the last step
func (u *Uploader) step(attempt int) Step {
	if attempt > len(u.cfg.Steps) {
		return u.cfg.Steps[len(u.cfg.Steps)-1]
	}
	return u.cfg.Steps[attempt-1]
}

// Backoff returns the wait after failed attempt n: base·2^(n-1), capped at ceiling.
func Backoff(attempt int, base, ceiling time.Duration) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := base
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= ceiling {
			return ceiling
		}
	}
	return min(d, ceiling)
}

// ObjectKey builds the bucket path of an entity image
func ObjectKey(userID string, entityType models.EntityType, entityID, filename string) string {
	return strings.Join([]string{userID, string(entityType), entityID, filename}, "/")
}

// KeyPrefix is the bucket folder holding one entity's images
func KeyPrefix(userID string, entityType models.EntityType, entityID string) string {
	return ObjectKey(userID, entityType, entityID, "")
}

// IsNetworkError reports whether err came from the network rather than the service
func IsNetworkError(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr)
}

func failureMessage(err error) string {
	if IsNetworkError(err) {
		return NetworkErrorMessage
	}
	return err.Error()
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
