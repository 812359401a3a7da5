package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseThreadtime(t *testing.T) {
	anchor := YearAnchor{StartYear: 2026, StartMonth: time.January}
	line := "01-01 10:00:00.000 1234 1256 I LimeLog: Launched new game session"

	parsed, ok := ParseThreadtime(line, anchor, time.UTC)
	require.True(t, ok)
	assert.Equal(t, 2026, parsed.Time.Year())
	assert.Equal(t, 1234, parsed.PID)
	assert.Equal(t, 1256, parsed.TID)
	assert.Equal(t, byte('I'), parsed.Level)
	assert.Equal(t, "LimeLog", parsed.Tag)
	assert.Equal(t, "Launched new game session", parsed.Message)
}

func TestParseThreadtimeYearRollover(t *testing.T) {
	anchor := YearAnchor{StartYear: 2025, StartMonth: time.December}
	line := "01-02 00:10:00.500 1 2 D Tag: after midnight rollover"
	parsed, ok := ParseThreadtime(line, anchor, time.UTC)
	require.True(t, ok)
	assert.Equal(t, 2026, parsed.Time.Year())
}

func TestParseThreadtimeRejectsNonMatching(t *testing.T) {
	_, ok := ParseThreadtime("not a threadtime line at all", YearAnchor{}, time.UTC)
	assert.False(t, ok)
}

func TestClampToCaptureWindow(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(20 * time.Minute)

	inRange, out := ClampToCaptureWindow(start.Add(5*time.Minute), start, end)
	assert.False(t, out)
	assert.Equal(t, start.Add(5*time.Minute), inRange)

	tooEarly, out := ClampToCaptureWindow(start.Add(-48*time.Hour), start, end)
	assert.True(t, out)
	assert.Equal(t, start.Add(-24*time.Hour), tooEarly)

	tooLate, out := ClampToCaptureWindow(end.Add(48*time.Hour), start, end)
	assert.True(t, out)
	assert.Equal(t, end.Add(24*time.Hour), tooLate)
}

func TestQuantile(t *testing.T) {
	sorted := SortedFloat64s([]float64{9.4, 11.2, 22.5})
	assert.InDelta(t, 11.2, Median(sorted), 0.001)
}

func TestLowerBoundAndRangeCounting(t *testing.T) {
	xs := []int64{100, 200, 300, 400, 500}
	assert.Equal(t, 2, LowerBound(xs, 300))
	assert.Equal(t, 5, LowerBound(xs, 1000))
	assert.Equal(t, 0, LowerBound(xs, 0))

	assert.Equal(t, 3, CountInRange(xs, 200, 400))
	assert.True(t, HasInRange(xs, 250, 260+50))
	assert.False(t, HasInRange(xs, 210, 290))
}

func TestBinHistogramAndTopBins(t *testing.T) {
	values := []float64{1, 2, 31, 32, 61, 62, 63}
	bins := BinHistogram(values, 30)
	require.Len(t, bins, 3)
	top := TopBins(bins, 1)
	require.Len(t, top, 1)
	assert.Equal(t, 3, top[0].Count)
}

func TestScorePeriodicity(t *testing.T) {
	gaps := []float64{59.5, 60.2, 60.8, 60.1}
	result := ScorePeriodicity(gaps)
	assert.Equal(t, 60.0, result.BestPeriodSec)
	assert.Equal(t, 1.0, result.BestRatio)
	assert.Greater(t, result.Score, 0.0)
}

func TestClamp01AndNorm(t *testing.T) {
	assert.Equal(t, 0.0, Clamp01(-1))
	assert.Equal(t, 1.0, Clamp01(2))
	assert.InDelta(t, 0.5, Norm(6, 2, 10), 0.001)
	assert.Equal(t, 0.0, Norm(1, 2, 10))
	assert.Equal(t, 1.0, Norm(11, 2, 10))
}
