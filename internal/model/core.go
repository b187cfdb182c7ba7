package model

import "fmt"

// Type discriminates entity collections in the model store
type Type string

const (
	TypeScenario         Type = "scenario"
	TypeMeterGroup       Type = "meterGroup"
	TypeRatePlan         Type = "rateplan"
	TypeDERConfiguration Type = "derConfiguration"
	TypeDERStrategy      Type = "derStrategy"
)

// KnownTypes lists every entity type the dashboard understands
var KnownTypes = []Type{
	TypeScenario,
	TypeMeterGroup,
	TypeRatePlan,
	TypeDERConfiguration,
	TypeDERStrategy,
}

// ParseType validates a type tag coming from a URL or config
func ParseType(s string) (Type, error) {
	for _, t := range KnownTypes {
		if string(t) == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: unknown entity type %q", ErrInvalidArgument, s)
}

// Entity is any uniquely identified, typed domain object held in the model store.
// Two entities of different types may share an id.
type Entity interface {
	EntityID() string
	EntityType() Type
}

// Key identifies one entity across all collections
type Key struct {
	Type Type   `json:"type"`
	ID   string `json:"id"`
}

func (k Key) String() string {
	return string(k.Type) + "/" + k.ID
}

// KeyOf returns the store key of an entity
func KeyOf(e Entity) Key {
	return Key{Type: e.EntityType(), ID: e.EntityID()}
}

// Progress reports how far a long-running server job has come
type Progress struct {
	IsComplete      bool    `json:"isComplete"`
	PercentComplete float64 `json:"percentComplete"` // 0..100
}

// Pollable is an entity backed by a server-side job whose progress can be polled
type Pollable interface {
	Entity
	ProgressState() Progress
}

// ProgressUpdater is a pollable entity whose progress can be replaced in place
type ProgressUpdater interface {
	Pollable
	SetProgress(Progress)
}
