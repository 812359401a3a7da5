package pinglog

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestDeviceLogThreeTimestampSources exercises three device-ping lines, one
// per timestamp-resolution tier, all three recorded as successful samples
// with the expected ts/source pairs.
func TestDeviceLogThreeTimestampSources(t *testing.T) {
	captureStart := time.UnixMilli(1700000000000).UTC()
	log := strings.Join([]string{
		`[ts_local=2026-01-01T00:00:00+08:00][epoch_ms=1700000000000][source=device_side_ping] 64 bytes from 1.1.1.1: icmp_seq=1 ttl=55 time=11.2 ms`,
		`[1700000000.900] 64 bytes from 1.1.1.1: icmp_seq=2 ttl=55 time=9.4 ms`,
		`64 bytes from 1.1.1.1: icmp_seq=3 ttl=55 time=22.5 ms`,
	}, "\n")

	res := ParseDeviceLog(strings.NewReader(log), DeviceParseOptions{
		CaptureStartTS: captureStart,
		IntervalSec:    0.2,
	})

	require.Len(t, res.Samples, 3)
	assert.Equal(t, 0, res.SkippedNoTsCount)

	s1, s2, s3 := res.Samples[0], res.Samples[1], res.Samples[2]

	assert.Equal(t, LogPrefixEpoch, s1.TSSource)
	assert.Equal(t, int64(1700000000000), s1.TS.UnixMilli())
	assert.True(t, s1.Success)
	require.NotNil(t, s1.LatencyMs)
	assert.InDelta(t, 11.2, *s1.LatencyMs, 0.001)

	assert.Equal(t, PingD, s2.TSSource)
	assert.Equal(t, int64(1700000000900), s2.TS.UnixMilli())
	assert.True(t, s2.Success)

	assert.Equal(t, SeqEstimated, s3.TSSource)
	assert.Equal(t, int64(1700000000400), s3.TS.UnixMilli())
	assert.True(t, s3.Success)

	var lat []float64
	for _, s := range res.Samples {
		lat = append(lat, *s.LatencyMs)
	}
	threshold := ComputeThreshold(lat)
	assert.InDelta(t, 19.2, threshold, 0.01)

	bursts := HighLatencyBursts(res.Samples, threshold)
	require.Len(t, bursts, 1)
	assert.Equal(t, 1, bursts[0].Count)
	assert.InDelta(t, 22.5, bursts[0].MaxLatencyMs, 0.001)
}

// TestHostLogSentRcvdPairing verifies that host-side SENT/RCVD lines pair
// by sequence, that the summary counters are synthesized from the pairing,
// and that an unanswered SENT survives as a no_reply sample at EOF.
func TestHostLogSentRcvdPairing(t *testing.T) {
	log := strings.Join([]string{
		`[ts_local=2026-01-01T00:00:00Z][epoch_ms=1700000000000][source=host_side_ping] SENT (0.000s) ICMP 1.1.1.1 seq=1`,
		`[ts_local=2026-01-01T00:00:00.020Z][epoch_ms=1700000000020][source=host_side_ping] RCVD (0.020s) ICMP 1.1.1.1 seq=1`,
		`[ts_local=2026-01-01T00:00:01Z][epoch_ms=1700000001000][source=host_side_ping] SENT (1.000s) ICMP 1.1.1.1 seq=2`,
		`[ts_local=2026-01-01T00:00:02Z][epoch_ms=1700000002000][source=host_side_ping] SENT (2.000s) ICMP 1.1.1.1 seq=3`,
		`[ts_local=2026-01-01T00:00:02.030Z][epoch_ms=1700000002030][source=host_side_ping] RCVD (2.030s) ICMP 1.1.1.1 seq=3`,
	}, "\n")

	res := ParseHostLog(strings.NewReader(log), HostParseOptions{IntervalSec: 1})

	require.Len(t, res.Samples, 3)
	assert.Equal(t, 3, res.Summary.Transmitted)
	assert.Equal(t, 2, res.Summary.Received)
	assert.InDelta(t, 33.33, res.Summary.PacketLossPct, 0.1)

	byTs := map[int64]Sample{}
	for _, s := range res.Samples {
		byTs[s.TS.UnixMilli()] = s
	}

	seq1 := byTs[1700000000020]
	require.NotNil(t, seq1.Seq)
	assert.Equal(t, 1, *seq1.Seq)
	assert.True(t, seq1.Success)
	require.NotNil(t, seq1.LatencyMs)
	assert.InDelta(t, 20, *seq1.LatencyMs, 0.01)

	seq3 := byTs[1700000002030]
	require.NotNil(t, seq3.Seq)
	assert.Equal(t, 3, *seq3.Seq)
	assert.True(t, seq3.Success)
	require.NotNil(t, seq3.LatencyMs)
	assert.InDelta(t, 30, *seq3.LatencyMs, 0.01)

	seq2 := byTs[1700000001000]
	require.NotNil(t, seq2.Seq)
	assert.Equal(t, 2, *seq2.Seq)
	assert.False(t, seq2.Success)
	assert.Equal(t, "no_reply", seq2.Status)
}

func TestJitterEventsOnAbsoluteDelta(t *testing.T) {
	mk := func(seq int, t0 int64, lat float64) Sample {
		s := seq
		l := lat
		return Sample{TS: time.UnixMilli(t0).UTC(), Seq: &s, Success: true, LatencyMs: &l, Status: "reply"}
	}
	samples := []Sample{
		mk(1, 0, 10),
		mk(2, 1000, 11),
		mk(3, 2000, 25),
		mk(4, 3000, 10), // 25 -> 10 is a >=8ms drop, must also be emitted
	}
	jit := JitterEvents(samples)
	require.Len(t, jit, 2)
	assert.Equal(t, 3, jit[0].Seq)
	assert.InDelta(t, 14, jit[0].DeltaMs, 0.001)
	assert.Equal(t, 4, jit[1].Seq)
	assert.InDelta(t, -15, jit[1].DeltaMs, 0.001)
}

func TestHighLatencyBurstsMergeWithinGap(t *testing.T) {
	mk := func(seq int, t0 int64, lat float64) Sample {
		s := seq
		l := lat
		return Sample{TS: time.UnixMilli(t0).UTC(), Seq: &s, Success: true, LatencyMs: &l, Status: "reply"}
	}
	samples := []Sample{
		mk(1, 0, 20),
		mk(2, 1000, 20),
		mk(3, 3000, 20), // 2000ms gap from prior high sample -> new run
		mk(4, 4000, 20),
	}
	bursts := HighLatencyBursts(samples, 15)
	require.Len(t, bursts, 2)
	assert.Equal(t, 2, bursts[0].Count)
	assert.Equal(t, 2, bursts[1].Count)
}
