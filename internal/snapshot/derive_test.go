package snapshot

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReturn(t *testing.T) {
	closes := []float64{10, 12, 8, 20, 25, 30}

	got := Return(closes, 2)
	require.NotNil(t, got)
	assert.InDelta(t, 0.5, *got, 1e-12) // (30-20)/20

	got = Return(closes, 5)
	require.NotNil(t, got)
	assert.InDelta(t, 2.0, *got, 1e-12) // (30-10)/10
}

func TestReturnShortSeries(t *testing.T) {
	assert.Nil(t, Return(nil, 1))
	assert.Nil(t, Return([]float64{10}, 1))
	assert.Nil(t, Return([]float64{10, 12, 8}, 3)) // needs 4 points
	assert.Nil(t, Return([]float64{10, 12}, 0))
}

func TestReturnBadDivisor(t *testing.T) {
	assert.Nil(t, Return([]float64{0, 10}, 1))
	assert.Nil(t, Return([]float64{math.NaN(), 10}, 1))
	assert.Nil(t, Return([]float64{10, math.Inf(1)}, 1))
}

func TestHighLow(t *testing.T) {
	hi, lo := HighLow([]float64{100, 110, 90, 120})
	require.NotNil(t, hi)
	require.NotNil(t, lo)
	assert.Equal(t, 120.0, *hi)
	assert.Equal(t, 90.0, *lo)
}

func TestHighLowSkipsNonFinite(t *testing.T) {
	hi, lo := HighLow([]float64{math.NaN(), 50, math.Inf(-1), 70})
	require.NotNil(t, hi)
	require.NotNil(t, lo)
	assert.Equal(t, 70.0, *hi)
	assert.Equal(t, 50.0, *lo)
}

func TestHighLowEmpty(t *testing.T) {
	hi, lo := HighLow(nil)
	assert.Nil(t, hi)
	assert.Nil(t, lo)

	hi, lo = HighLow([]float64{math.NaN(), math.Inf(1)})
	assert.Nil(t, hi)
	assert.Nil(t, lo)
}

func TestFracFromPercent(t *testing.T) {
	assert.Nil(t, fracFromPercent(nil))
	p := 1.23
	got := fracFromPercent(&p)
	require.NotNil(t, got)
	assert.InDelta(t, 0.0123, *got, 1e-12)
}
