package location

import (
	"context"
	"errors"
	"math"

	"realmkeeper-backend/internal/geo"
)

// ReportedFix is a Provider backed by a fix the client read from its own
// device and sent to the API.
type ReportedFix struct {
	PermissionGranted bool     `json:"permission_granted"`
	Latitude          *float64 `json:"latitude,omitempty"`
	Longitude         *float64 `json:"longitude,omitempty"`
	DeviceError       string   `json:"device_error,omitempty"`
}

// RequestPermission returns the permission state the client reported.
func (f *ReportedFix) RequestPermission(ctx context.Context) (bool, error) {
	return f.PermissionGranted, nil
}

// CurrentPosition returns the reported coordinates. Missing coordinates come
// back as NaN so the service classifies them as invalid data.
func (f *ReportedFix) CurrentPosition(ctx context.Context, accuracy Accuracy) (geo.Point, error) {
	if f.DeviceError != "" {
		return geo.Point{}, errors.New(f.DeviceError)
	}

	p := geo.Point{Latitude: math.NaN(), Longitude: math.NaN()}
	if f.Latitude != nil {
		p.Latitude = *f.Latitude
	}
	if f.Longitude != nil {
		p.Longitude = *f.Longitude
	}
	return p, nil
}
