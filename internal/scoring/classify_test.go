package scoring

import (
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify_EmploymentDensity(t *testing.T) {
	tests := []struct {
		name       string
		value      float64
		wantLabel  string
		wantPoints int
	}{
		{"well below first bound", 150, "< 300", 5},
		{"just below first bound", 299.99, "< 300", 5},
		{"exactly first bound falls into second bucket", 300, "300–500", 4},
		{"interior bound is inclusive", 500, "300–500", 4},
		{"just past interior bound", 500.01, "501–700", 3},
		{"third bucket", 650, "501–700", 3},
		{"last bound is inclusive", 900, "701–900", 2},
		{"past last bound", 900.01, "> 900", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := Classify(tt.value, MetricEmploymentDensity)
			require.NoError(t, err)
			assert.Equal(t, tt.wantLabel, b.Label)
			assert.Equal(t, tt.wantPoints, b.Points)
		})
	}
}

func TestClassify_InvertedDistanceMetrics(t *testing.T) {
	tests := []struct {
		name       string
		metric     Metric
		value      float64
		wantLabel  string
		wantPoints int
	}{
		{"motorway close scores low", MetricMotorwayDistance, 500, "< 1000 m", 1},
		{"motorway first bound", MetricMotorwayDistance, 1000, "1000–2000 m", 2},
		{"motorway mid", MetricMotorwayDistance, 2500, "2001–3000 m", 3},
		{"motorway last bound", MetricMotorwayDistance, 5000, "3001–5000 m", 4},
		{"motorway far scores high", MetricMotorwayDistance, 8000, "> 5000 m", 5},
		{"parking close scores low", MetricParkingDistance, 50, "< 100 m", 1},
		{"parking first bound", MetricParkingDistance, 100, "100–200 m", 2},
		{"parking mid", MetricParkingDistance, 250, "201–300 m", 3},
		{"parking last bound", MetricParkingDistance, 500, "301–500 m", 4},
		{"parking far scores high", MetricParkingDistance, 800, "> 500 m", 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := Classify(tt.value, tt.metric)
			require.NoError(t, err)
			assert.Equal(t, tt.wantLabel, b.Label)
			assert.Equal(t, tt.wantPoints, b.Points)
		})
	}
}

func TestClassify_RemainingMetrics(t *testing.T) {
	tests := []struct {
		name       string
		metric     Metric
		value      float64
		wantLabel  string
		wantPoints int
	}{
		{"commuter share low", MetricCommuterShare, 30, "< 40 %", 5},
		{"commuter share bound", MetricCommuterShare, 40, "40–50 %", 4},
		{"commuter share high", MetricCommuterShare, 75, "> 70 %", 1},
		{"motorization low", MetricMotorizationRate, 480, "< 500", 5},
		{"motorization bound", MetricMotorizationRate, 600, "500–600", 4},
		{"motorization high", MetricMotorizationRate, 820, "> 800", 1},
		{"modal split low", MetricCarModalSplit, 35, "< 40%", 5},
		{"modal split mid", MetricCarModalSplit, 55, "51–60%", 3},
		{"headcount small", MetricHeadcount, 20, "< 50", 5},
		{"headcount bound", MetricHeadcount, 50, "50–100", 4},
		{"headcount mid", MetricHeadcount, 120, "101–250", 3},
		{"headcount large", MetricHeadcount, 900, "> 500", 1},
		{"stop close", MetricStopDistance, 250, "< 300 m", 5},
		{"stop bound", MetricStopDistance, 500, "300–500 m", 4},
		{"stop far", MetricStopDistance, 1200, "> 1000 m", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := Classify(tt.value, tt.metric)
			require.NoError(t, err)
			assert.Equal(t, tt.wantLabel, b.Label)
			assert.Equal(t, tt.wantPoints, b.Points)
		})
	}
}

func TestClassify_UnknownMetric(t *testing.T) {
	_, err := Classify(42, Metric("commute_joy"))
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrUnknownMetric))
}

func TestTransitClassPoints(t *testing.T) {
	for class, want := range map[string]int{"A": 5, "B": 4, "C": 3, "D": 2, "E": 1} {
		pts, err := TransitClassPoints(class)
		require.NoError(t, err)
		assert.Equal(t, want, pts)
	}

	_, err := TransitClassPoints("F")
	assert.Error(t, err)
	_, err = TransitClassPoints("")
	assert.Error(t, err)
}

func TestSectorPoints(t *testing.T) {
	tests := []struct {
		sector string
		want   int
	}{
		{"IT & Software", 5},
		{"Finanzen, Versicherungen, Beratung", 4},
		{"Verwaltung, Bildung, Gesundheitswesen, Dienstleisungen", 3},
		{"Industrie, Produktion & Handel", 2},
		{"Logistik & Transport", 1},
	}
	for _, tt := range tests {
		pts, ok := SectorPoints(tt.sector)
		assert.True(t, ok, tt.sector)
		assert.Equal(t, tt.want, pts, tt.sector)
	}

	_, ok := SectorPoints("Raumfahrt")
	assert.False(t, ok)
}
