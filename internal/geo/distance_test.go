package geo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var samplePoints = []Point{
	{Latitude: 40.0, Longitude: -3.0},
	{Latitude: 40.001, Longitude: -3.0},
	{Latitude: 51.5074, Longitude: -0.1278},
	{Latitude: -33.8688, Longitude: 151.2093},
	{Latitude: 0, Longitude: 179.9999},
	{Latitude: 0, Longitude: -179.9999},
	{Latitude: 89.9, Longitude: 10},
}

func TestDistance_Symmetric(t *testing.T) {
	for _, a := range samplePoints {
		for _, b := range samplePoints {
			assert.InDelta(t, Distance(a, b), Distance(b, a), 1e-9, "distance(%v, %v)", a, b)
		}
	}
}

func TestDistance_ZeroForSamePoint(t *testing.T) {
	for _, p := range samplePoints {
		assert.Equal(t, 0.0, Distance(p, p))
	}
}

func TestDistance_KnownValues(t *testing.T) {
	tests := []struct {
		name  string
		a, b  Point
		want  float64
		delta float64
	}{
		{
			name:  "one thousandth of a degree of latitude",
			a:     Point{Latitude: 40.0, Longitude: -3.0},
			b:     Point{Latitude: 40.001, Longitude: -3.0},
			want:  111.19,
			delta: 0.01,
		},
		{
			name:  "london to paris",
			a:     Point{Latitude: 51.5074, Longitude: -0.1278},
			b:     Point{Latitude: 48.8566, Longitude: 2.3522},
			want:  343_556,
			delta: 500,
		},
		{
			name:  "across the antimeridian",
			a:     Point{Latitude: 0, Longitude: 179.9999},
			b:     Point{Latitude: 0, Longitude: -179.9999},
			want:  22.24,
			delta: 0.01,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Distance(tt.a, tt.b), tt.delta)
			assert.InDelta(t, tt.want, DistanceDegrees(tt.a.Latitude, tt.a.Longitude, tt.b.Latitude, tt.b.Longitude), tt.delta)
		})
	}
}

func TestDistance_Antipodal(t *testing.T) {
	half := math.Pi * EarthRadiusMeters

	tests := []struct {
		name     string
		lat, lon float64
	}{
		{name: "equator", lat: 0, lon: 0},
		{name: "near south pole", lat: -88.5, lon: -179.5},
		{name: "mid latitude", lat: 40, lon: -3},
		{name: "poles", lat: 90, lon: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := DistanceDegrees(tt.lat, tt.lon, -tt.lat, tt.lon+180)
			require.False(t, math.IsNaN(d))
			assert.InDelta(t, half, d, 1)
		})
	}
}

func TestDistance_AntipodalSweepNeverNaN(t *testing.T) {
	for lat := -89.0; lat <= 89; lat += 0.5 {
		for lon := -179.5; lon <= 0; lon += 0.5 {
			d := DistanceDegrees(lat, lon, -lat, lon+180)
			if math.IsNaN(d) || d < 0 {
				t.Fatalf("distance (%v,%v)-(%v,%v) = %v", lat, lon, -lat, lon+180, d)
			}
		}
	}
}

func TestContains_AntipodeInsideHemisphereRadius(t *testing.T) {
	center := Point{Latitude: -88.5, Longitude: -179.5}
	antipode := Point{Latitude: 88.5, Longitude: 0.5}

	assert.True(t, Contains(center, math.Pi*EarthRadiusMeters+1, antipode))
}

func TestDistance_NonFinitePropagatesNaN(t *testing.T) {
	d := Distance(Point{Latitude: math.NaN(), Longitude: 0}, Point{})
	assert.True(t, math.IsNaN(d))
}

func TestContains_Boundary(t *testing.T) {
	center := Point{Latitude: 40.0, Longitude: -3.0}
	edge := Point{Latitude: 40.0005, Longitude: -3.0004}
	r := Distance(center, edge)

	assert.True(t, Contains(center, r, edge), "point exactly on the boundary must be contained")
	assert.False(t, Contains(center, math.Nextafter(r, 0), edge), "point just beyond the radius must not be contained")
}

func TestContains_Monotonic(t *testing.T) {
	center := Point{Latitude: 40.0, Longitude: -3.0}
	for _, p := range samplePoints {
		for _, r1 := range []float64{0, 10, 150, 10_000, 5_000_000} {
			if !Contains(center, r1, p) {
				continue
			}
			for _, r2 := range []float64{r1 + 0.001, r1 * 2, r1 + 1_000_000} {
				assert.True(t, Contains(center, r2, p), "contained in %v but not in %v", r1, r2)
			}
		}
	}
}

func TestContains_RealmScenario(t *testing.T) {
	realm := Circle{Center: Point{Latitude: 40.0, Longitude: -3.0}, Radius: 100}

	assert.True(t, realm.Contains(Point{Latitude: 40.0, Longitude: -3.0}))
	assert.False(t, realm.Contains(Point{Latitude: 40.001, Longitude: -3.0}))
	assert.True(t, Within(realm)(Point{Latitude: 40.0005, Longitude: -3.0}))
}

func TestContains_RejectsNonFinite(t *testing.T) {
	center := Point{Latitude: 40.0, Longitude: -3.0}
	tests := []struct {
		name   string
		center Point
		radius float64
		p      Point
	}{
		{name: "NaN latitude", center: center, radius: 100, p: Point{Latitude: math.NaN(), Longitude: -3}},
		{name: "infinite longitude", center: center, radius: 100, p: Point{Latitude: 40, Longitude: math.Inf(1)}},
		{name: "NaN center", center: Point{Latitude: math.NaN()}, radius: 100, p: center},
		{name: "infinite radius", center: center, radius: math.Inf(1), p: center},
		{name: "negative radius", center: center, radius: -1, p: center},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.False(t, Contains(tt.center, tt.radius, tt.p))
		})
	}
}

func TestPoint_Validate(t *testing.T) {
	tests := []struct {
		name    string
		p       Point
		wantErr error
	}{
		{name: "valid", p: Point{Latitude: 40, Longitude: -3}},
		{name: "poles and antimeridian", p: Point{Latitude: -90, Longitude: 180}},
		{name: "NaN", p: Point{Latitude: math.NaN()}, wantErr: ErrNonFinite},
		{name: "latitude too large", p: Point{Latitude: 91}, wantErr: ErrLatitudeRange},
		{name: "longitude too small", p: Point{Longitude: -181}, wantErr: ErrLongitudeRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.p.Validate()
			if tt.wantErr == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestCircle_Validate(t *testing.T) {
	require.NoError(t, Circle{Center: Point{Latitude: 1, Longitude: 1}, Radius: 0}.Validate())
	require.ErrorIs(t, Circle{Radius: -5}.Validate(), ErrNegativeRadius)
	require.ErrorIs(t, Circle{Radius: math.NaN()}.Validate(), ErrNegativeRadius)
}

func TestBoundingBox_EnclosesCircle(t *testing.T) {
	center := Point{Latitude: 40.0, Longitude: -3.0}
	radius := 1000.0
	minLat, minLng, maxLat, maxLng := BoundingBox(center, radius)

	assert.Less(t, minLat, center.Latitude)
	assert.Greater(t, maxLat, center.Latitude)
	assert.Less(t, minLng, center.Longitude)
	assert.Greater(t, maxLng, center.Longitude)

	north := Point{Latitude: maxLat, Longitude: center.Longitude}
	assert.InDelta(t, radius, Distance(center, north), 0.5)
}

func TestBoundingBox_NearPoleSpansAllLongitudes(t *testing.T) {
	_, minLng, _, maxLng := BoundingBox(Point{Latitude: 89.999, Longitude: 0}, 5000)
	assert.Equal(t, -180.0, minLng)
	assert.Equal(t, 180.0, maxLng)
}
