package snapshot

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteReadRoundTrip(t *testing.T) {
	ts1 := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	ts2 := ts1.Add(5 * time.Second)

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, Snapshot{
		HostTS: ts1, Task: "wifi", Status: OK, DurationMs: 42,
		Body: "Wi-Fi is enabled\nmIsDriverStarted true",
	}))
	require.NoError(t, Write(&buf, Snapshot{
		HostTS: ts2, Task: "alarm", Status: Timeout, DurationMs: 20000, Detail: "timed   out",
	}))

	got, err := ReadAll(&buf)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.True(t, got[0].HostTS.Equal(ts1))
	assert.Equal(t, "wifi", got[0].Task)
	assert.Equal(t, OK, got[0].Status)
	assert.Equal(t, 42, got[0].DurationMs)
	assert.Equal(t, "Wi-Fi is enabled\nmIsDriverStarted true", got[0].Body)

	assert.True(t, got[1].HostTS.Equal(ts2))
	assert.Equal(t, Timeout, got[1].Status)
	assert.Equal(t, 20000, got[1].DurationMs)
	assert.Equal(t, "timed_out", got[1].Detail)
	assert.Equal(t, noOutput, got[1].Body)
}

func TestSanitizeTruncates(t *testing.T) {
	long := ""
	for i := 0; i < 300; i++ {
		long += "a"
	}
	got := Sanitize("a\tb   c\n" + long)
	assert.Len(t, got, 240)
	assert.NotContains(t, got, "\t")
	assert.NotContains(t, got, "\n")
}
