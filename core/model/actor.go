package model

import (
	"fmt"

	"github.com/google/uuid"
)

// refNamespace scopes name-derived actor ids so that independent processes
// agree on the identity of a configured actor.
var refNamespace = uuid.MustParse("6b3c8f9e-2f55-4c1a-9d2b-8a1e6a7f0c11")

// ActorRef is an opaque, comparable handle to an actor.
type ActorRef struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

// NewRef returns the reference of the actor called name. The id is derived
// from the name so the same configuration yields the same refs everywhere.
func NewRef(name string) ActorRef {
	return ActorRef{ID: uuid.NewSHA1(refNamespace, []byte(name)), Name: name}
}

// IsZero reports whether the reference is unset.
func (r ActorRef) IsZero() bool { return r.ID == uuid.Nil }

func (r ActorRef) String() string {
	if r.IsZero() {
		return "<nil>"
	}
	return r.Name
}

// ServiceKind identifies the role under which an actor is registered.
type ServiceKind int

const (
	ServiceBuilding ServiceKind = iota
	ServiceBattery
	ServiceConsumer
)

// String returns the registry name of the kind.
func (k ServiceKind) String() string {
	switch k {
	case ServiceBuilding:
		return "BUILDING"
	case ServiceBattery:
		return "BATTERY"
	case ServiceConsumer:
		return "CONSUMER"
	default:
		return "unknown"
	}
}

// ParseServiceKind is the inverse of ServiceKind.String. It is case sensitive.
func ParseServiceKind(s string) (ServiceKind, error) {
	switch s {
	case "BUILDING":
		return ServiceBuilding, nil
	case "BATTERY":
		return ServiceBattery, nil
	case "CONSUMER":
		return ServiceConsumer, nil
	default:
		return 0, fmt.Errorf("unknown service kind %q", s)
	}
}
