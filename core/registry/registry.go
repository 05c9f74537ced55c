// Package registry maps service kinds and names to actor references.
package registry

import (
	"errors"
	"fmt"
	"sync"

	"github.com/kilianp07/wsd/core/model"
)

// ErrNotFound is returned when no actor is registered under a name.
var ErrNotFound = errors.New("actor not found")

// Registry is the directory service used for discovery.
type Registry interface {
	// Register records ref under kind for every given name.
	Register(ref model.ActorRef, kind model.ServiceKind, names ...string) error
	// Lookup returns the actors registered under kind and name in
	// registration order, or ErrNotFound.
	Lookup(kind model.ServiceKind, name string) ([]model.ActorRef, error)
	// Deregister removes every entry of ref.
	Deregister(ref model.ActorRef)
}

type key struct {
	kind model.ServiceKind
	name string
}

// MemoryRegistry is a Registry guarded by a RWMutex.
type MemoryRegistry struct {
	mu      sync.RWMutex
	entries map[key][]model.ActorRef
}

// NewMemoryRegistry returns an empty registry.
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{entries: make(map[key][]model.ActorRef)}
}

func (r *MemoryRegistry) Register(ref model.ActorRef, kind model.ServiceKind, names ...string) error {
	if ref.IsZero() {
		return fmt.Errorf("register %s: empty actor ref", kind)
	}
	if len(names) == 0 {
		return fmt.Errorf("register %s %s: no service name", kind, ref)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, n := range names {
		k := key{kind: kind, name: n}
		if contains(r.entries[k], ref) {
			continue
		}
		r.entries[k] = append(r.entries[k], ref)
	}
	return nil
}

func (r *MemoryRegistry) Lookup(kind model.ServiceKind, name string) ([]model.ActorRef, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	refs := r.entries[key{kind: kind, name: name}]
	if len(refs) == 0 {
		return nil, fmt.Errorf("%s %q: %w", kind, name, ErrNotFound)
	}
	out := make([]model.ActorRef, len(refs))
	copy(out, refs)
	return out, nil
}

func (r *MemoryRegistry) Deregister(ref model.ActorRef) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for k, refs := range r.entries {
		out := refs[:0]
		for _, x := range refs {
			if x != ref {
				out = append(out, x)
			}
		}
		if len(out) == 0 {
			delete(r.entries, k)
		} else {
			r.entries[k] = out
		}
	}
}

// Entry is one (kind, name, ref) binding.
type Entry struct {
	Kind model.ServiceKind
	Name string
	Ref  model.ActorRef
}

// Entries lists every binding. Order is unspecified.
func (r *MemoryRegistry) Entries() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Entry
	for k, refs := range r.entries {
		for _, ref := range refs {
			out = append(out, Entry{Kind: k.kind, Name: k.name, Ref: ref})
		}
	}
	return out
}

// First returns the first actor registered under kind and name.
func First(r Registry, kind model.ServiceKind, name string) (model.ActorRef, error) {
	refs, err := r.Lookup(kind, name)
	if err != nil {
		return model.ActorRef{}, err
	}
	return refs[0], nil
}

func contains(refs []model.ActorRef, ref model.ActorRef) bool {
	for _, r := range refs {
		if r == ref {
			return true
		}
	}
	return false
}
