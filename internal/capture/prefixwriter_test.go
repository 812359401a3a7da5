package capture

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedNow() func() time.Time {
	t := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	return func() time.Time { return t }
}

func TestPrefixWriterEmitsUniformPrefix(t *testing.T) {
	var buf bytes.Buffer
	pw := NewPrefixWriter(&buf, SourceDevicePing, fixedNow())

	n, err := pw.Write([]byte("64 bytes from 1.1.1.1: icmp_seq=1 ttl=55 time=11.2 ms\n"))
	require.NoError(t, err)
	assert.Greater(t, n, 0)

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "[ts_local="))
	assert.Contains(t, out, "[epoch_ms=")
	assert.Contains(t, out, "[source=device_side_ping]")
	assert.Contains(t, out, "icmp_seq=1")
}

func TestPrefixWriterBuffersPartialLineAcrossChunks(t *testing.T) {
	var buf bytes.Buffer
	pw := NewPrefixWriter(&buf, SourceHostPing, fixedNow())

	_, err := pw.Write([]byte("SENT (0.00"))
	require.NoError(t, err)
	assert.Empty(t, buf.String(), "no newline yet, nothing should be emitted")

	_, err = pw.Write([]byte("00s) ICMP [seq=1]\n"))
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "SENT (0.0000s) ICMP [seq=1]")
}

func TestPrefixWriterCloseFlushesTrailingPartialLine(t *testing.T) {
	var buf bytes.Buffer
	pw := NewPrefixWriter(&buf, SourceHostPing, fixedNow())

	_, err := pw.Write([]byte("no trailing newline"))
	require.NoError(t, err)
	assert.Empty(t, buf.String())

	require.NoError(t, pw.Close())
	assert.Contains(t, buf.String(), "no trailing newline")
}

func TestPrefixWriterMultipleLinesInOneChunk(t *testing.T) {
	var buf bytes.Buffer
	pw := NewPrefixWriter(&buf, SourceDevicePing, fixedNow())

	_, err := pw.Write([]byte("line one\nline two\n"))
	require.NoError(t, err)
	out := buf.String()
	assert.Equal(t, 2, strings.Count(out, "[source=device_side_ping]"))
	assert.Contains(t, out, "line one")
	assert.Contains(t, out, "line two")
}
