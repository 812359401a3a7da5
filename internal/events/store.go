package events

import "sort"

// Store is the append-only typed event buffer. Each type's events are kept
// sorted by timestamp, and near-duplicate suppression is applied at
// insertion time using the type's tolerance window.
//
// The report phase is single-threaded, so Store carries no
// internal locking; callers needing concurrent access (none in this repo)
// would wrap it.
type Store struct {
	byType map[Type][]Event
}

// NewStore creates an empty event store.
func NewStore() *Store {
	return &Store{byType: make(map[Type][]Event)}
}

// Add inserts ev in sorted position for its type, dropping it if a prior
// event of the same type already exists within the type's tolerance window.
// Returns true if the event was kept.
func (s *Store) Add(ev Event) bool {
	tol := dedupeToleranceMs(ev.Type)
	evMs := ev.TS.UnixMilli()

	list := s.byType[ev.Type]
	idx := sort.Search(len(list), func(i int) bool { return !list[i].TS.Before(ev.TS) })

	if tol > 0 {
		// Check neighbors on both sides of the insertion point: the
		// nearest earlier and the nearest later event of this type.
		if idx > 0 && evMs-list[idx-1].TS.UnixMilli() <= tol {
			return false
		}
		if idx < len(list) && list[idx].TS.UnixMilli()-evMs <= tol {
			return false
		}
	} else if idx < len(list) && list[idx].TS.Equal(ev.TS) {
		// tol==0 still suppresses an exact-duplicate timestamp only.
		return false
	}

	list = append(list, Event{})
	copy(list[idx+1:], list[idx:])
	list[idx] = ev
	s.byType[ev.Type] = list
	return true
}

// AddAll inserts a batch, preserving the Add semantics per event.
func (s *Store) AddAll(evs []Event) {
	for _, ev := range evs {
		s.Add(ev)
	}
}

// ByType returns the sorted event slice for a type (nil if none).
func (s *Store) ByType(t Type) []Event { return s.byType[t] }

// All returns every stored event across all types, sorted by timestamp.
// Ties are broken by type name for determinism.
func (s *Store) All() []Event {
	var total int
	for _, l := range s.byType {
		total += len(l)
	}
	out := make([]Event, 0, total)
	for _, l := range s.byType {
		out = append(out, l...)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].TS.Equal(out[j].TS) {
			return out[i].TS.Before(out[j].TS)
		}
		return out[i].Type < out[j].Type
	})
	return out
}

// Count returns the number of events stored for a type.
func (s *Store) Count(t Type) int { return len(s.byType[t]) }

// TimestampsMs returns the sorted unix-millisecond timestamps for a type,
// suitable for timeutil.LowerBound-based near-point queries.
func (s *Store) TimestampsMs(t Type) []int64 {
	list := s.byType[t]
	out := make([]int64, len(list))
	for i, e := range list {
		out[i] = e.TS.UnixMilli()
	}
	return out
}
