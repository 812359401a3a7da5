package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func at(ms int64) time.Time { return time.UnixMilli(ms).UTC() }

func TestStoreSortedAndDeduped(t *testing.T) {
	s := NewStore()
	require.True(t, s.Add(Event{Type: Roam, TS: at(0)}))
	// within 3000ms tolerance -> suppressed
	require.False(t, s.Add(Event{Type: Roam, TS: at(2000)}))
	// past tolerance -> accepted
	require.True(t, s.Add(Event{Type: Roam, TS: at(5000)}))
	// later insert, accepted since outside tolerance of its earlier neighbor
	require.True(t, s.Add(Event{Type: Roam, TS: at(20000)}))

	list := s.ByType(Roam)
	require.Len(t, list, 3)
	for i := 1; i < len(list); i++ {
		assert.False(t, list[i].TS.Before(list[i-1].TS))
	}
}

func TestStoreZeroToleranceOnlyDropsExactDuplicate(t *testing.T) {
	s := NewStore()
	require.True(t, s.Add(Event{Type: Connect, TS: at(1000)}))
	require.False(t, s.Add(Event{Type: Connect, TS: at(1000)}))
	require.True(t, s.Add(Event{Type: Connect, TS: at(1001)}))
	assert.Len(t, s.ByType(Connect), 2)
}

func TestStoreAllSortedAcrossTypes(t *testing.T) {
	s := NewStore()
	s.Add(Event{Type: Connect, TS: at(3000)})
	s.Add(Event{Type: Disconnect, TS: at(1000)})
	s.Add(Event{Type: DHCP, TS: at(2000)})

	all := s.All()
	require.Len(t, all, 3)
	assert.Equal(t, Disconnect, all[0].Type)
	assert.Equal(t, DHCP, all[1].Type)
	assert.Equal(t, Connect, all[2].Type)
}

func TestTimestampsMsSorted(t *testing.T) {
	s := NewStore()
	s.Add(Event{Type: DHCP, TS: at(500)})
	s.Add(Event{Type: DHCP, TS: at(100)})
	ts := s.TimestampsMs(DHCP)
	require.Len(t, ts, 2)
	assert.Equal(t, int64(100), ts[0])
	assert.Equal(t, int64(500), ts[1])
}

func TestRingBufferWrapsAndCounts(t *testing.T) {
	rb := NewRingBuffer(2)
	rb.Push(Event{Type: Connect})
	rb.Push(Event{Type: Disconnect})
	rb.Push(Event{Type: DHCP})

	all := rb.GetAll()
	require.Len(t, all, 2)
	assert.Equal(t, Disconnect, all[0].Type)
	assert.Equal(t, DHCP, all[1].Type)
	assert.Equal(t, 2, rb.Count())
}
