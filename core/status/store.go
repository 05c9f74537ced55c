package status

import (
	"sort"
	"sync"
	"time"
)

// Settlement summarises the last period an actor took part in.
type Settlement struct {
	Period   int       `json:"period"`
	Demand   float64   `json:"demand"`
	Supplied float64   `json:"supplied"`
	Unmet    float64   `json:"unmet"`
	Excess   float64   `json:"excess,omitempty"`
	Imported float64   `json:"imported,omitempty"`
	Time     time.Time `json:"time"`
}

// Status captures the last known state of an actor.
type Status struct {
	Name     string `json:"name"`
	Kind     string `json:"kind"`
	Building string `json:"building,omitempty"`
	// Local is false for actors hosted by another process.
	Local bool `json:"local"`

	Capacity     float64 `json:"capacity,omitempty"`
	Stored       float64 `json:"stored,omitempty"`
	BatteryState string  `json:"battery_state,omitempty"`

	LastSettlement *Settlement `json:"last_settlement,omitempty"`
	LastShortage   string      `json:"last_shortage_source,omitempty"`
	Updated        time.Time   `json:"updated"`
}

type Filter struct {
	Kind     string
	Building string
}

type Store interface {
	Set(Status)
	Get(name string) (Status, bool)
	List(Filter) []Status
	Update(name string, fn func(*Status))
}

type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]Status
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: map[string]Status{}}
}

func (s *MemoryStore) Set(st Status) {
	s.mu.Lock()
	s.data[st.Name] = st
	s.mu.Unlock()
}

func (s *MemoryStore) Get(name string) (Status, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.data[name]
	return st, ok
}

// Update applies fn to the named entry, creating it when missing.
func (s *MemoryStore) Update(name string, fn func(*Status)) {
	s.mu.Lock()
	st := s.data[name]
	if st.Name == "" {
		st.Name = name
	}
	fn(&st)
	s.data[name] = st
	s.mu.Unlock()
}

func (s *MemoryStore) List(f Filter) []Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res := make([]Status, 0, len(s.data))
	for _, st := range s.data {
		if f.Kind != "" && st.Kind != f.Kind {
			continue
		}
		if f.Building != "" && st.Building != f.Building {
			continue
		}
		res = append(res, st)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Name < res[j].Name })
	return res
}
