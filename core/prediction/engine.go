package prediction

import (
	"math/rand"
	"sync"

	"github.com/kilianp07/wsd/core/factory"
)

// Predictor forecasts the next period's amount from a baseline.
type Predictor interface {
	Predict(baseline float64) float64
}

// Fixed predicts the baseline unchanged.
type Fixed struct{}

func (Fixed) Predict(baseline float64) float64 { return baseline }

// Jitter predicts the baseline scaled by a uniform factor in [1-Spread, 1+Spread).
type Jitter struct {
	Spread float64
	Rand   *rand.Rand
}

func (j *Jitter) Predict(baseline float64) float64 {
	if j.Rand == nil || j.Spread <= 0 {
		return baseline
	}
	v := baseline * (1 + (j.Rand.Float64()*2-1)*j.Spread)
	if v < 0 {
		return 0
	}
	return v
}

// Scripted returns Values in order and the baseline once they run out.
type Scripted struct {
	mu     sync.Mutex
	Values []float64
	next   int
}

func (s *Scripted) Predict(baseline float64) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.next >= len(s.Values) {
		return baseline
	}
	v := s.Values[s.next]
	s.next++
	return v
}

var registry = factory.NewRegistry[Predictor]()

// rngAware is implemented by policies that draw random numbers.
type rngAware interface {
	setRand(*rand.Rand)
}

func (j *Jitter) setRand(r *rand.Rand) { j.Rand = r }

func init() {
	_ = registry.Register("fixed", func(map[string]any) (Predictor, error) { return Fixed{}, nil })
	_ = registry.Register("jitter", func(conf map[string]any) (Predictor, error) {
		var c struct {
			Spread float64 `json:"spread"`
		}
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		if c.Spread == 0 {
			c.Spread = 0.05
		}
		return &Jitter{Spread: c.Spread}, nil
	})
	_ = registry.Register("scripted", func(conf map[string]any) (Predictor, error) {
		var c struct {
			Values []float64 `json:"values"`
		}
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		return &Scripted{Values: c.Values}, nil
	})
}

// Register adds a predictor factory identified by name.
func Register(name string, f factory.Factory[Predictor]) error {
	return registry.Register(name, f)
}

// New creates the predictor described by cfg. An empty type yields Fixed.
// rng is handed to policies that need randomness.
func New(cfg factory.ModuleConfig, rng *rand.Rand) (Predictor, error) {
	if cfg.Type == "" {
		return Fixed{}, nil
	}
	p, err := registry.Create(cfg)
	if err != nil {
		return nil, err
	}
	if ra, ok := p.(rngAware); ok && rng != nil {
		ra.setRand(rng)
	}
	return p, nil
}
