package analytics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMean(t *testing.T) {
	assert.Equal(t, 0.0, mean(nil))
	assert.InDelta(t, 29.012, mean([]float64{28.50, 28.63, 29.10, 30.20, 28.63}), 1e-9)
}

func TestStddev(t *testing.T) {
	assert.Equal(t, 0.0, stddev(nil))
	assert.Equal(t, 0.0, stddev([]float64{28.50}))

	// Sample standard deviation, n-1 divisor.
	assert.InDelta(t, 0.70233, stddev([]float64{28.50, 28.63, 29.10, 30.20, 28.63}), 1e-4)
	assert.InDelta(t, 0.13204, stddev([]float64{1.95, 2.03, 2.15, 2.25}), 1e-4)
}

func TestCoefficientOfVariation(t *testing.T) {
	tests := []struct {
		want   *float64
		name   string
		values []float64
	}{
		{name: "empty series", values: nil, want: nil},
		{name: "zero mean", values: []float64{0, 0, 0}, want: nil},
		{name: "stable series", values: []float64{28.50, 28.63, 29.10, 30.20, 28.63}, want: ptr(2.4208)},
		{name: "moving series", values: []float64{1.95, 2.03, 2.15, 2.25}, want: ptr(6.3024)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := coefficientOfVariation(tt.values)
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.InDelta(t, *tt.want, *got, 1e-3)
		})
	}
}

func TestCoefficientOfVariationScaleInvariance(t *testing.T) {
	small := []float64{1.95, 2.03, 2.15, 2.25}
	large := make([]float64, len(small))
	for i, v := range small {
		large[i] = v * 1000
	}

	cvSmall := coefficientOfVariation(small)
	cvLarge := coefficientOfVariation(large)
	require.NotNil(t, cvSmall)
	require.NotNil(t, cvLarge)
	assert.InDelta(t, *cvSmall, *cvLarge, 1e-9)
}

func TestVolatilityLevel(t *testing.T) {
	e := New(DefaultConfig(), nil)

	tests := []struct {
		cv   *float64
		name string
		want string
	}{
		{name: "nil cv", cv: nil, want: VolatilityLow},
		{name: "low", cv: ptr(4.2), want: VolatilityLow},
		{name: "boundary stays low", cv: ptr(10.0), want: VolatilityLow},
		{name: "medium", cv: ptr(12.5), want: VolatilityMedium},
		{name: "boundary stays medium", cv: ptr(20.0), want: VolatilityMedium},
		{name: "high", cv: ptr(27.0), want: VolatilityHigh},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, e.volatilityLevel(tt.cv))
		})
	}
}

func ptr(v float64) *float64 {
	return &v
}
