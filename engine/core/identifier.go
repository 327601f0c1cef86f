package core

import "github.com/google/uuid"

// Identifier is a comparable identity usable as an event listener.
type Identifier struct {
	uuid.UUID
}

func NewIdentifier() Identifier {
	return Identifier{UUID: uuid.New()}
}

func (id Identifier) IsZero() bool {
	return id.UUID == uuid.Nil
}
