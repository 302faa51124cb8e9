package numeric

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPercentileInterpolates(t *testing.T) {
	s := []float64{1, 2, 3, 4}
	require.InDelta(t, 1.75, Percentile(s, 0.25), 1e-12)
	require.InDelta(t, 3.25, Percentile(s, 0.75), 1e-12)
	require.InDelta(t, 2.5, Percentile(s, 0.5), 1e-12)
	require.Equal(t, 1.0, Percentile(s, 0))
	require.Equal(t, 4.0, Percentile(s, 1))
}

func TestPercentileEdgeCases(t *testing.T) {
	require.Equal(t, 0.0, Percentile(nil, 0.5))
	require.Equal(t, 7.0, Percentile([]float64{7}, 0.25))
}

func TestMedian(t *testing.T) {
	require.Equal(t, 0.0, Median(nil))
	require.Equal(t, 105.0, Median([]float64{110, 100, 105}))
	require.Equal(t, 102.5, Median([]float64{105, 100}))
}

func TestMedianDoesNotReorderInput(t *testing.T) {
	in := []float64{3, 1, 2}
	_ = Median(in)
	require.Equal(t, []float64{3, 1, 2}, in)
}
