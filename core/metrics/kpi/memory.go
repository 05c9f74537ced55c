package kpi

import (
	"sort"
	"sync"
	"time"
)

// MemoryStore stores records in memory for testing or lightweight usage.
type MemoryStore struct {
	mu   sync.Mutex
	data map[string]map[time.Time]*Record
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: map[string]map[time.Time]*Record{}}
}

// Add accumulates r into the record of its building and day.
func (s *MemoryStore) Add(r Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data[r.Building] == nil {
		s.data[r.Building] = map[time.Time]*Record{}
	}
	d := Day(r.Date)
	rec := s.data[r.Building][d]
	if rec == nil {
		rec = &Record{Building: r.Building, Date: d}
		s.data[r.Building][d] = rec
	}
	rec.Demand += r.Demand
	rec.Supplied += r.Supplied
	rec.Imported += r.Imported
	rec.Excess += r.Excess
	return nil
}

// Query returns records between start and end inclusive.
func (s *MemoryStore) Query(building string, start, end time.Time) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	start = Day(start)
	end = Day(end)
	var res []Record
	for d, r := range s.data[building] {
		if d.Before(start) || d.After(end) {
			continue
		}
		res = append(res, *r)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Date.Before(res[j].Date) })
	return res, nil
}
