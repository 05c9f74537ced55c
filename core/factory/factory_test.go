package factory

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capacity struct{ Total float64 }

func newRegistry(t *testing.T) *Registry[*capacity] {
	t.Helper()
	reg := NewRegistry[*capacity]()
	require.NoError(t, reg.Register("fixed", func(conf map[string]any) (*capacity, error) {
		var c struct {
			Total float64 `json:"total"`
		}
		if err := Decode(conf, &c); err != nil {
			return nil, err
		}
		if c.Total < 0 {
			return nil, errors.New("negative total")
		}
		return &capacity{Total: c.Total}, nil
	}))
	return reg
}

func TestRegistryCreate(t *testing.T) {
	reg := newRegistry(t)
	v, err := reg.Create(ModuleConfig{Type: "fixed", Conf: map[string]any{"total": 120}})
	require.NoError(t, err)
	assert.InDelta(t, 120.0, v.Total, 1e-9)

	v, err = reg.Create(ModuleConfig{Type: "fixed", Conf: map[string]any{"total": "42.5"}})
	require.NoError(t, err, "string scalars from env overrides decode")
	assert.InDelta(t, 42.5, v.Total, 1e-9)
}

func TestRegistryErrors(t *testing.T) {
	reg := newRegistry(t)
	assert.Error(t, reg.Register("fixed", func(map[string]any) (*capacity, error) { return nil, nil }))
	assert.Error(t, reg.Register("other", nil))

	_, err := reg.Create(ModuleConfig{Type: "oracle"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "known: fixed")

	_, err = reg.Create(ModuleConfig{Type: "fixed", Conf: map[string]any{"totl": 1}})
	assert.Error(t, err, "unknown keys are rejected")

	_, err = reg.Create(ModuleConfig{Type: "fixed", Conf: map[string]any{"total": -1}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fixed: negative total")
}

func TestRegistryTypes(t *testing.T) {
	reg := newRegistry(t)
	require.NoError(t, reg.Register("auto", func(map[string]any) (*capacity, error) { return &capacity{}, nil }))
	assert.Equal(t, []string{"auto", "fixed"}, reg.Types())
}
