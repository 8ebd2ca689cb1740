package models

import (
	"time"

	"realmkeeper-backend/internal/geo"
)

// EntityType names the owner of a media row
type EntityType string

const (
	EntityLocation EntityType = "location"
	EntityTreasure EntityType = "treasure"
)

// Valid reports whether t is a known entity type
func (t EntityType) Valid() bool {
	return t == EntityLocation || t == EntityTreasure
}

// Location is a Realm when ParentLocationID is nil and a Nook otherwise
type Location struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	Description      *string   `json:"description,omitempty"`
	Latitude         float64   `json:"latitude"`
	Longitude        float64   `json:"longitude"`
	Radius           *float64  `json:"radius,omitempty"`
	IsPublic         bool      `json:"is_public"`
	ParentLocationID *string   `json:"parent_location_id,omitempty"`
	UserID           string    `json:"user_id"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// IsRealm reports whether the location has no parent
func (l *Location) IsRealm() bool {
	return l.ParentLocationID == nil
}

// Point returns the location's coordinate
func (l *Location) Point() geo.Point {
	return geo.Point{Latitude: l.Latitude, Longitude: l.Longitude}
}

// Circle returns the containment circle of a Realm; ok is false without a radius
func (l *Location) Circle() (c geo.Circle, ok bool) {
	if l.Radius == nil {
		return geo.Circle{}, false
	}
	return geo.Circle{Center: l.Point(), Radius: *l.Radius}, true
}

// Treasure is an item cataloged under a Nook
type Treasure struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	Description    *string    `json:"description,omitempty"`
	NookLocationID string     `json:"nook_location_id"`
	UserID         string     `json:"user_id"`
	StoredAt       *time.Time `json:"stored_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Tag is a user-defined colored label
type Tag struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Color  string `json:"color"`
	UserID string `json:"user_id"`
}

// Media is an image stored in the media bucket and attached to an entity
type Media struct {
	ID          string     `json:"id"`
	EntityType  EntityType `json:"entity_type"`
	EntityID    string     `json:"entity_id"`
	StoragePath string     `json:"storage_path"`
	IsPrimary   bool       `json:"is_primary"`
	MimeType    string     `json:"mime_type"`
	FileSize    int64      `json:"file_size"`
	UserID      string     `json:"user_id"`
	CreatedAt   time.Time  `json:"created_at"`
	URL         string     `json:"url,omitempty"`
}
