package location

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"

	"realmkeeper-backend/internal/apperr"
	"realmkeeper-backend/internal/geo"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	mu              sync.Mutex
	granted         bool
	permissionErr   error
	point           geo.Point
	positionErr     error
	permissionCalls int
	positionCalls   int
	lastAccuracy    Accuracy
	block           chan struct{}
	started         chan struct{}
}

func (f *fakeProvider) RequestPermission(ctx context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.permissionCalls++
	return f.granted, f.permissionErr
}

func (f *fakeProvider) CurrentPosition(ctx context.Context, accuracy Accuracy) (geo.Point, error) {
	f.mu.Lock()
	f.positionCalls++
	f.lastAccuracy = accuracy
	block, started := f.block, f.started
	f.mu.Unlock()

	if started != nil {
		close(started)
	}
	if block != nil {
		<-block
	}
	return f.point, f.positionErr
}

type recorder struct {
	successes []geo.Point
	errs      []error
}

func (r *recorder) config() Config {
	return Config{
		OnSuccess: func(p geo.Point) { r.successes = append(r.successes, p) },
		OnError:   func(err error) { r.errs = append(r.errs, err) },
	}
}

func TestService_CurrentLocation_Success(t *testing.T) {
	provider := &fakeProvider{granted: true, point: geo.Point{Latitude: 40, Longitude: -3}}
	rec := &recorder{}
	svc := NewService(provider, rec.config())

	p, err := svc.CurrentLocation(context.Background(), nil)
	require.NoError(t, err)
	require.NotNil(t, p)

	assert.Equal(t, geo.Point{Latitude: 40, Longitude: -3}, *p)
	assert.Equal(t, StateLocated, svc.State())
	assert.Equal(t, PermissionGranted, svc.Permission())
	assert.Equal(t, AccuracyBalanced, provider.lastAccuracy)
	assert.Equal(t, []geo.Point{*p}, rec.successes)
	assert.Empty(t, rec.errs)
	assert.Equal(t, p, svc.LastLocation())
}

func TestService_PermissionIsCached(t *testing.T) {
	provider := &fakeProvider{granted: true, point: geo.Point{Latitude: 1, Longitude: 1}}
	svc := NewService(provider, Config{})

	for i := 0; i < 3; i++ {
		_, err := svc.CurrentLocation(context.Background(), nil)
		require.NoError(t, err)
	}
	assert.Equal(t, 1, provider.permissionCalls)
	assert.Equal(t, 3, provider.positionCalls)
}

func TestService_RequestPermission(t *testing.T) {
	provider := &fakeProvider{granted: false}
	svc := NewService(provider, Config{})

	granted, err := svc.RequestPermission(context.Background())
	require.NoError(t, err)
	assert.False(t, granted)
	assert.Equal(t, PermissionDenied, svc.Permission())
	assert.Equal(t, StatePermissionDenied, svc.State())
}

func TestService_CurrentLocation_Failures(t *testing.T) {
	realm := geo.Circle{Center: geo.Point{Latitude: 40, Longitude: -3}, Radius: 100}

	tests := []struct {
		name      string
		provider  *fakeProvider
		within    geo.Predicate
		wantKind  apperr.Kind
		wantMsg   string
		wantState State
	}{
		{
			name:      "permission denied",
			provider:  &fakeProvider{granted: false},
			wantKind:  apperr.KindPermissionDenied,
			wantMsg:   MsgPermissionDenied,
			wantState: StatePermissionDenied,
		},
		{
			name:      "permission request fails",
			provider:  &fakeProvider{permissionErr: errors.New("os refused")},
			wantKind:  apperr.KindDeviceError,
			wantMsg:   MsgPermissionRequest,
			wantState: StateLocationError,
		},
		{
			name:      "device error",
			provider:  &fakeProvider{granted: true, positionErr: errors.New("gps timeout")},
			wantKind:  apperr.KindDeviceError,
			wantMsg:   MsgDeviceError,
			wantState: StateLocationError,
		},
		{
			name:      "non-finite fix",
			provider:  &fakeProvider{granted: true, point: geo.Point{Latitude: math.NaN(), Longitude: 1}},
			wantKind:  apperr.KindInvalidData,
			wantMsg:   MsgInvalidData,
			wantState: StateLocationError,
		},
		{
			name:      "outside area",
			provider:  &fakeProvider{granted: true, point: geo.Point{Latitude: 40.001, Longitude: -3}},
			within:    realm.Contains,
			wantKind:  apperr.KindOutOfBounds,
			wantMsg:   DefaultOutsideAreaMessage,
			wantState: StateLocationError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recorder{}
			svc := NewService(tt.provider, rec.config())

			p, err := svc.CurrentLocation(context.Background(), tt.within)
			require.Error(t, err)
			assert.Nil(t, p)
			assert.Equal(t, tt.wantKind, apperr.KindOf(err))
			assert.Equal(t, tt.wantMsg, apperr.Message(err, ""))
			assert.Equal(t, tt.wantState, svc.State())
			assert.Empty(t, rec.successes, "success callback must be withheld")
			require.Len(t, rec.errs, 1)
			assert.Same(t, err, rec.errs[0])
		})
	}
}

func TestService_OutsideAreaMessageConfigurable(t *testing.T) {
	provider := &fakeProvider{granted: true, point: geo.Point{Latitude: 10, Longitude: 10}}
	svc := NewService(provider, Config{OutsideAreaMessage: "Nooks must be inside the realm"})

	_, err := svc.CurrentLocation(context.Background(), func(geo.Point) bool { return false })
	assert.Equal(t, "Nooks must be inside the realm", apperr.Message(err, ""))
}

func TestService_SecondCallWhileInFlightIsNoop(t *testing.T) {
	provider := &fakeProvider{
		granted: true,
		point:   geo.Point{Latitude: 1, Longitude: 2},
		block:   make(chan struct{}),
		started: make(chan struct{}),
	}
	rec := &recorder{}
	svc := NewService(provider, rec.config())

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = svc.CurrentLocation(context.Background(), nil)
	}()
	<-provider.started
	assert.True(t, svc.InFlight())

	p, err := svc.CurrentLocation(context.Background(), nil)
	assert.NoError(t, err)
	assert.Nil(t, p)

	close(provider.block)
	<-done

	assert.False(t, svc.InFlight())
	assert.Equal(t, 1, provider.positionCalls)
	assert.Len(t, rec.successes, 1)
	assert.Empty(t, rec.errs)
}

func TestReportedFix(t *testing.T) {
	lat, lng := 40.0, -3.0

	t.Run("coordinates", func(t *testing.T) {
		fix := &ReportedFix{PermissionGranted: true, Latitude: &lat, Longitude: &lng}
		svc := NewService(fix, Config{})

		p, err := svc.CurrentLocation(context.Background(), nil)
		require.NoError(t, err)
		assert.Equal(t, geo.Point{Latitude: 40, Longitude: -3}, *p)
	})

	t.Run("missing coordinates are invalid data", func(t *testing.T) {
		fix := &ReportedFix{PermissionGranted: true, Latitude: &lat}
		_, err := NewService(fix, Config{}).CurrentLocation(context.Background(), nil)
		assert.Equal(t, apperr.KindInvalidData, apperr.KindOf(err))
	})

	t.Run("device error", func(t *testing.T) {
		fix := &ReportedFix{PermissionGranted: true, DeviceError: "location services disabled"}
		_, err := NewService(fix, Config{}).CurrentLocation(context.Background(), nil)
		assert.Equal(t, apperr.KindDeviceError, apperr.KindOf(err))
		assert.Contains(t, err.Error(), "location services disabled")
	})

	t.Run("permission denied", func(t *testing.T) {
		fix := &ReportedFix{PermissionGranted: false, Latitude: &lat, Longitude: &lng}
		_, err := NewService(fix, Config{}).CurrentLocation(context.Background(), nil)
		assert.Equal(t, apperr.KindPermissionDenied, apperr.KindOf(err))
	})
}
