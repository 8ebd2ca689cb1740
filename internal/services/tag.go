package services

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"realmkeeper-backend/internal/apperr"
	"realmkeeper-backend/internal/cache"
	"realmkeeper-backend/internal/models"
)

var hexColorPattern = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

// TagInput is the create/update payload of a tag
type TagInput struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

// TagDiff is the set of associations to insert and delete
type TagDiff struct {
	Add    []string `json:"add"`
	Remove []string `json:"remove"`
}

// Empty reports whether the diff changes nothing
func (d TagDiff) Empty() bool {
	return len(d.Add) == 0 && len(d.Remove) == 0
}

// DiffTags returns the tags in next but not current (Add) and in current but
// not next (Remove). Input order and duplicates do not matter; both outputs
// are sorted.
func DiffTags(current, next []string) TagDiff {
	have := make(map[string]struct{}, len(current))
	for _, id := range current {
		have[id] = struct{}{}
	}
	want := make(map[string]struct{}, len(next))
	for _, id := range next {
		want[id] = struct{}{}
	}

	diff := TagDiff{Add: []string{}, Remove: []string{}}
	for id := range want {
		if _, ok := have[id]; !ok {
			diff.Add = append(diff.Add, id)
		}
	}
	for id := range have {
		if _, ok := want[id]; !ok {
			diff.Remove = append(diff.Remove, id)
		}
	}
	sort.Strings(diff.Add)
	sort.Strings(diff.Remove)
	return diff
}

// TagService handles tags and their associations with locations and treasures
type TagService struct {
	base
	tags      TagStore
	locations LocationStore
	treasures TreasureStore
}

// NewTagService creates a new tag service
func NewTagService(tags TagStore, locations LocationStore, treasures TreasureStore, opts Options) *TagService {
	return &TagService{base: newBase(opts), tags: tags, locations: locations, treasures: treasures}
}

// List retrieves the user's tags
func (s *TagService) List(ctx context.Context, userID string) ([]*models.Tag, error) {
	return cache.Fetch(ctx, s.opts.Cache, s.opts.Metrics, tagsKey(userID), func() ([]*models.Tag, error) {
		return s.tags.ListByUser(ctx, userID)
	})
}

// Create creates a new tag
func (s *TagService) Create(ctx context.Context, userID string, in TagInput) (*models.Tag, error) {
	name, color, err := validateTag(in)
	if err != nil {
		return nil, err
	}

	tag := &models.Tag{ID: s.newID(), Name: name, Color: color, UserID: userID}
	if err := s.tags.Create(ctx, tag); err != nil {
		return nil, fmt.Errorf("failed to create tag: %w", err)
	}

	s.changed(ctx, userID, Change{Resource: ResourceTag, ID: tag.ID, Action: ActionCreated}, tagsKey(userID))
	return tag, nil
}

// Update renames or recolors a tag
func (s *TagService) Update(ctx context.Context, userID, id string, in TagInput) (*models.Tag, error) {
	tag, err := s.ownedTag(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	name, color, err := validateTag(in)
	if err != nil {
		return nil, err
	}

	tag.Name = name
	tag.Color = color
	if err := s.tags.Update(ctx, tag); err != nil {
		return nil, fmt.Errorf("failed to update tag: %w", err)
	}

	s.changed(ctx, userID, Change{Resource: ResourceTag, ID: tag.ID, Action: ActionUpdated}, tagsKey(userID))
	return tag, nil
}

// Delete removes a tag and detaches it everywhere
func (s *TagService) Delete(ctx context.Context, userID, id string) error {
	if _, err := s.ownedTag(ctx, userID, id); err != nil {
		return err
	}
	if err := s.tags.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete tag: %w", err)
	}

	s.changed(ctx, userID, Change{Resource: ResourceTag, ID: id, Action: ActionDeleted}, tagsKey(userID))
	return nil
}

// LocationTags retrieves the tags of one of the user's realms or nooks
func (s *TagService) LocationTags(ctx context.Context, userID, locationID string) ([]*models.Tag, error) {
	if _, err := ownedLocation(ctx, s.locations, userID, locationID); err != nil {
		return nil, err
	}
	return s.tags.LocationTags(ctx, locationID)
}

// TreasureTags retrieves the tags of one of the user's treasures
func (s *TagService) TreasureTags(ctx context.Context, userID, treasureID string) ([]*models.Tag, error) {
	if _, err := ownedTreasure(ctx, s.treasures, userID, treasureID); err != nil {
		return nil, err
	}
	return s.tags.TreasureTags(ctx, treasureID)
}

// AddToLocation attaches a tag to a location
func (s *TagService) AddToLocation(ctx context.Context, userID, locationID, tagID string) error {
	if err := s.checkLocation(ctx, userID, locationID, tagID); err != nil {
		return err
	}
	if err := s.tags.AddLocationTag(ctx, locationID, tagID); err != nil {
		return fmt.Errorf("failed to add tag: %w", err)
	}
	s.changed(ctx, userID, Change{Resource: ResourceTag, ID: locationID, Action: ActionUpdated})
	return nil
}

// RemoveFromLocation detaches a tag from a location
func (s *TagService) RemoveFromLocation(ctx context.Context, userID, locationID, tagID string) error {
	if err := s.checkLocation(ctx, userID, locationID, tagID); err != nil {
		return err
	}
	if err := s.tags.RemoveLocationTag(ctx, locationID, tagID); err != nil {
		return fmt.Errorf("failed to remove tag: %w", err)
	}
	s.changed(ctx, userID, Change{Resource: ResourceTag, ID: locationID, Action: ActionUpdated})
	return nil
}

// AddToTreasure attaches a tag to a treasure
func (s *TagService) AddToTreasure(ctx context.Context, userID, treasureID, tagID string) error {
	if err := s.checkTreasure(ctx, userID, treasureID, tagID); err != nil {
		return err
	}
	if err := s.tags.AddTreasureTag(ctx, treasureID, tagID); err != nil {
		return fmt.Errorf("failed to add tag: %w", err)
	}
	s.changed(ctx, userID, Change{Resource: ResourceTag, ID: treasureID, Action: ActionUpdated})
	return nil
}

// RemoveFromTreasure detaches a tag from a treasure
func (s *TagService) RemoveFromTreasure(ctx context.Context, userID, treasureID, tagID string) error {
	if err := s.checkTreasure(ctx, userID, treasureID, tagID); err != nil {
		return err
	}
	if err := s.tags.RemoveTreasureTag(ctx, treasureID, tagID); err != nil {
		return fmt.Errorf("failed to remove tag: %w", err)
	}
	s.changed(ctx, userID, Change{Resource: ResourceTag, ID: treasureID, Action: ActionUpdated})
	return nil
}

// SetLocationTags makes tagIDs the exact tag set of a location. The diff
// against the current set is applied in one transaction; repeating the call
// changes nothing.
func (s *TagService) SetLocationTags(ctx context.Context, userID, locationID string, tagIDs []string) ([]*models.Tag, error) {
	if _, err := ownedLocation(ctx, s.locations, userID, locationID); err != nil {
		return nil, err
	}
	if err := s.checkTags(ctx, userID, tagIDs); err != nil {
		return nil, err
	}

	current, err := s.tags.LocationTags(ctx, locationID)
	if err != nil {
		return nil, fmt.Errorf("failed to get location tags: %w", err)
	}
	diff := DiffTags(tagIDsOf(current), tagIDs)
	if diff.Empty() {
		return current, nil
	}
	if err := s.tags.ApplyLocationTagDiff(ctx, locationID, diff.Add, diff.Remove); err != nil {
		return nil, fmt.Errorf("failed to update location tags: %w", err)
	}

	s.changed(ctx, userID, Change{Resource: ResourceTag, ID: locationID, Action: ActionUpdated})
	return s.tags.LocationTags(ctx, locationID)
}

// SetTreasureTags makes tagIDs the exact tag set of a treasure
func (s *TagService) SetTreasureTags(ctx context.Context, userID, treasureID string, tagIDs []string) ([]*models.Tag, error) {
	if _, err := ownedTreasure(ctx, s.treasures, userID, treasureID); err != nil {
		return nil, err
	}
	if err := s.checkTags(ctx, userID, tagIDs); err != nil {
		return nil, err
	}

	current, err := s.tags.TreasureTags(ctx, treasureID)
	if err != nil {
		return nil, fmt.Errorf("failed to get treasure tags: %w", err)
	}
	diff := DiffTags(tagIDsOf(current), tagIDs)
	if diff.Empty() {
		return current, nil
	}
	if err := s.tags.ApplyTreasureTagDiff(ctx, treasureID, diff.Add, diff.Remove); err != nil {
		return nil, fmt.Errorf("failed to update treasure tags: %w", err)
	}

	s.changed(ctx, userID, Change{Resource: ResourceTag, ID: treasureID, Action: ActionUpdated})
	return s.tags.TreasureTags(ctx, treasureID)
}

func (s *TagService) ownedTag(ctx context.Context, userID, id string) (*models.Tag, error) {
	tag, err := s.tags.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if tag.UserID != userID {
		return nil, apperr.NotFound("tag not found")
	}
	return tag, nil
}

func (s *TagService) checkTags(ctx context.Context, userID string, ids []string) error {
	for _, id := range ids {
		if _, err := s.ownedTag(ctx, userID, id); err != nil {
			return err
		}
	}
	return nil
}

func (s *TagService) checkLocation(ctx context.Context, userID, locationID, tagID string) error {
	if _, err := ownedLocation(ctx, s.locations, userID, locationID); err != nil {
		return err
	}
	_, err := s.ownedTag(ctx, userID, tagID)
	return err
}

func (s *TagService) checkTreasure(ctx context.Context, userID, treasureID, tagID string) error {
	if _, err := ownedTreasure(ctx, s.treasures, userID, treasureID); err != nil {
		return err
	}
	_, err := s.ownedTag(ctx, userID, tagID)
	return err
}

func validateTag(in TagInput) (name, color string, err error) {
	name, err = cleanName(in.Name)
	if err != nil {
		return "", "", err
	}
	color = strings.ToUpper(strings.TrimSpace(in.Color))
	if !hexColorPattern.MatchString(color) {
		return "", "", apperr.Validation("Color must be a hex value like #1A2B3C")
	}
	return name, color, nil
}

func tagIDsOf(tags []*models.Tag) []string {
	ids := make([]string, len(tags))
	for i, t := range tags {
		ids[i] = t.ID
	}
	return ids
}
