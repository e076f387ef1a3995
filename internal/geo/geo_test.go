package geo

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raumwerk/standort-cli/internal/resilience"
	"github.com/raumwerk/standort-cli/pkg/overpass"
)

type fakeOSM struct {
	ramp        *overpass.Ramp
	rampErr     error
	facility    *overpass.Facility
	facilityErr error

	rampRadius    int
	parkingRadius int
	rampCalls     int
}

func (f *fakeOSM) NearestMotorwayRamp(_ context.Context, _, _ float64, radiusM int) (*overpass.Ramp, error) {
	f.rampRadius = radiusM
	f.rampCalls++
	return f.ramp, f.rampErr
}

func (f *fakeOSM) NearestParking(_ context.Context, _, _ float64, radiusM int) (*overpass.Facility, error) {
	f.parkingRadius = radiusM
	return f.facility, f.facilityErr
}

func TestSources_NearestMotorwayAccess(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name     string
		ramp     *overpass.Ramp
		wantName string
		wantDist float64
	}{
		{
			name:     "named entry passes through",
			ramp:     &overpass.Ramp{Name: "Zug West", WayID: 4071, Distance: 1520},
			wantName: "Zug West",
			wantDist: 1520,
		},
		{
			name:     "unnamed entry gets way placeholder",
			ramp:     &overpass.Ramp{WayID: 4071, Distance: 830},
			wantName: "Auffahrt 4071",
			wantDist: 830,
		},
		{
			name:     "no entry in radius",
			ramp:     nil,
			wantName: "Keine gefunden",
			wantDist: 10000,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := NewSources(nil, nil, &fakeOSM{ramp: tt.ramp}, 0, 0)
			name, dist, err := src.NearestMotorwayAccess(ctx, 47.17, 8.51)
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, name)
			assert.InDelta(t, tt.wantDist, dist, 1e-9)
		})
	}

	t.Run("lookup failure surfaces", func(t *testing.T) {
		src := NewSources(nil, nil, &fakeOSM{rampErr: assert.AnError}, 0, 0)
		_, _, err := src.NearestMotorwayAccess(ctx, 47.17, 8.51)
		require.Error(t, err)
	})
}

func TestSources_NearestParking(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name     string
		facility *overpass.Facility
		wantName string
		wantDist float64
	}{
		{
			name:     "named facility passes through",
			facility: &overpass.Facility{Name: "Parkhaus Altstadt", Distance: 240},
			wantName: "Parkhaus Altstadt",
			wantDist: 240,
		},
		{
			name:     "unnamed facility gets placeholder",
			facility: &overpass.Facility{Distance: 95},
			wantName: "Parkplatz ohne Namen",
			wantDist: 95,
		},
		{
			name:     "no facility in radius",
			facility: nil,
			wantName: "Kein Parkplatz gefunden",
			wantDist: 1000,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := NewSources(nil, nil, &fakeOSM{facility: tt.facility}, 0, 0)
			name, dist, err := src.NearestParking(ctx, 47.17, 8.51)
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, name)
			assert.InDelta(t, tt.wantDist, dist, 1e-9)
		})
	}

	t.Run("lookup failure surfaces", func(t *testing.T) {
		src := NewSources(nil, nil, &fakeOSM{facilityErr: assert.AnError}, 0, 0)
		_, _, err := src.NearestParking(ctx, 47.17, 8.51)
		require.Error(t, err)
	})
}

func TestSources_SearchRadii(t *testing.T) {
	ctx := context.Background()

	t.Run("defaults", func(t *testing.T) {
		osm := &fakeOSM{}
		src := NewSources(nil, nil, osm, 0, 0)
		_, _, _ = src.NearestMotorwayAccess(ctx, 47.17, 8.51)
		_, _, _ = src.NearestParking(ctx, 47.17, 8.51)
		assert.Equal(t, DefaultMotorwayRadiusM, osm.rampRadius)
		assert.Equal(t, DefaultParkingRadiusM, osm.parkingRadius)
	})

	t.Run("configured", func(t *testing.T) {
		osm := &fakeOSM{}
		src := NewSources(nil, nil, osm, 5000, 400)
		_, _, _ = src.NearestMotorwayAccess(ctx, 47.17, 8.51)
		_, _, _ = src.NearestParking(ctx, 47.17, 8.51)
		assert.Equal(t, 5000, osm.rampRadius)
		assert.Equal(t, 400, osm.parkingRadius)
	})
}

func TestSources_CircuitBreaker(t *testing.T) {
	ctx := context.Background()

	osm := &fakeOSM{rampErr: resilience.NewTransientError(assert.AnError, 503)}
	src := NewSources(nil, nil, osm, 0, 0, WithBreaker(resilience.CircuitBreakerConfig{
		FailureThreshold: 2,
		ResetTimeout:     time.Hour,
	}))

	for i := 0; i < 2; i++ {
		_, _, err := src.NearestMotorwayAccess(ctx, 47.17, 8.51)
		require.Error(t, err)
	}
	assert.Equal(t, 2, osm.rampCalls)

	// Circuit is open now. Both Overpass lookups get rejected without
	// another call reaching the client.
	_, _, err := src.NearestMotorwayAccess(ctx, 47.17, 8.51)
	require.ErrorIs(t, err, resilience.ErrCircuitOpen)
	assert.Equal(t, 2, osm.rampCalls)

	_, _, err = src.NearestParking(ctx, 47.17, 8.51)
	require.ErrorIs(t, err, resilience.ErrCircuitOpen)
}

func TestSources_BreakerIgnoresPermanentErrors(t *testing.T) {
	ctx := context.Background()

	osm := &fakeOSM{rampErr: assert.AnError}
	src := NewSources(nil, nil, osm, 0, 0, WithBreaker(resilience.CircuitBreakerConfig{
		FailureThreshold: 2,
		ResetTimeout:     time.Hour,
	}))

	for i := 0; i < 5; i++ {
		_, _, err := src.NearestMotorwayAccess(ctx, 47.17, 8.51)
		require.Error(t, err)
		require.NotErrorIs(t, err, resilience.ErrCircuitOpen)
	}
	assert.Equal(t, 5, osm.rampCalls)
}

func TestSources_Delegation(t *testing.T) {
	ctx := context.Background()

	transit, err := ParseTransitTable(strings.NewReader(transitCSV), "")
	require.NoError(t, err)
	stops, err := ParseStopsCSV(strings.NewReader(stopsCSV), "")
	require.NoError(t, err)

	src := NewSources(transit, stops, nil, 0, 0)

	class, score, err := src.TransitQuality(ctx, "Zug")
	require.NoError(t, err)
	assert.Equal(t, "B", class)
	assert.InDelta(t, 4.3, score, 1e-9)

	name, dist, err := src.NearestStop(ctx, 46.951082, 7.438637)
	require.NoError(t, err)
	assert.Equal(t, "Bern", name)
	assert.Less(t, dist, 3.0)
}

func TestSources_MissingSources(t *testing.T) {
	ctx := context.Background()
	src := NewSources(nil, nil, nil, 0, 0)

	_, _, err := src.TransitQuality(ctx, "Zug")
	require.Error(t, err)

	_, _, err = src.NearestStop(ctx, 47.17, 8.51)
	require.Error(t, err)

	_, _, err = src.NearestMotorwayAccess(ctx, 47.17, 8.51)
	require.Error(t, err)

	_, _, err = src.NearestParking(ctx, 47.17, 8.51)
	require.Error(t, err)
}
