// Package geo provides great-circle distance and circular containment checks
// used to keep Nooks inside their parent Realm.
package geo

import (
	"errors"
	"fmt"
	"math"
)

// EarthRadiusMeters is the mean Earth radius of the spherical approximation.
const EarthRadiusMeters = 6371000.0

// Validation errors
var (
	ErrNonFinite      = errors.New("coordinates must be finite numbers")
	ErrLatitudeRange  = errors.New("latitude must be between -90 and 90")
	ErrLongitudeRange = errors.New("longitude must be between -180 and 180")
	ErrNegativeRadius = errors.New("radius must be a non-negative finite number")
)

// Point is a geographic coordinate in degrees.
type Point struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Predicate reports whether a point is acceptable.
type Predicate func(Point) bool

// IsFinite reports whether both coordinates are finite.
func (p Point) IsFinite() bool {
	return isFinite(p.Latitude) && isFinite(p.Longitude)
}

// Validate checks that the point is finite and within the WGS84 ranges.
func (p Point) Validate() error {
	if !p.IsFinite() {
		return ErrNonFinite
	}
	if p.Latitude < -90 || p.Latitude > 90 {
		return fmt.Errorf("%w: got %v", ErrLatitudeRange, p.Latitude)
	}
	if p.Longitude < -180 || p.Longitude > 180 {
		return fmt.Errorf("%w: got %v", ErrLongitudeRange, p.Longitude)
	}
	return nil
}

// Circle is a containment circle: a center and a radius in meters.
type Circle struct {
	Center Point   `json:"center"`
	Radius float64 `json:"radius"`
}

// Contains reports whether p lies inside or on the boundary of the circle.
func (c Circle) Contains(p Point) bool {
	return Contains(c.Center, c.Radius, p)
}

// Validate checks the center and the radius.
func (c Circle) Validate() error {
	if err := c.Center.Validate(); err != nil {
		return err
	}
	if !isFinite(c.Radius) || c.Radius < 0 {
		return ErrNegativeRadius
	}
	return nil
}

// Distance returns the haversine distance between a and b in meters.
// Non-finite input propagates as NaN.
func Distance(a, b Point) float64 {
	return DistanceDegrees(a.Latitude, a.Longitude, b.Latitude, b.Longitude)
}

// DistanceDegrees is Distance over four degree values.
func DistanceDegrees(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := toRadians(lat1)
	phi2 := toRadians(lat2)
	dPhi := toRadians(lat2 - lat1)
	dLambda := toRadians(lon2 - lon1)

	sinPhi := math.Sin(dPhi / 2)
	sinLambda := math.Sin(dLambda / 2)

	a := sinPhi*sinPhi + math.Cos(phi1)*math.Cos(phi2)*sinLambda*sinLambda
	// rounding can push a past 1 near antipodes
	a = math.Min(1, math.Max(0, a))
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadiusMeters * c
}

// Contains reports whether p is within radius meters of center (boundary inclusive).
// Any non-finite input, or a negative radius, yields false.
func Contains(center Point, radius float64, p Point) bool {
	if !center.IsFinite() || !p.IsFinite() || !isFinite(radius) || radius < 0 {
		return false
	}
	return Distance(center, p) <= radius
}

// Within returns a Predicate bound to the circle.
func Within(c Circle) Predicate {
	return c.Contains
}

// BoundingBox returns the degree box enclosing the circle around center.
// It is a coarse prefilter; callers still run Contains on candidates.
func BoundingBox(center Point, radius float64) (minLat, minLng, maxLat, maxLng float64) {
	dLat := radius / EarthRadiusMeters * 180 / math.Pi
	minLat = math.Max(center.Latitude-dLat, -90)
	maxLat = math.Min(center.Latitude+dLat, 90)

	cosLat := math.Cos(toRadians(center.Latitude))
	if cosLat < 1e-12 || minLat == -90 || maxLat == 90 {
		return minLat, -180, maxLat, 180
	}

	dLng := dLat / cosLat
	if dLng >= 180 {
		return minLat, -180, maxLat, 180
	}
	return minLat, center.Longitude - dLng, maxLat, center.Longitude + dLng
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
