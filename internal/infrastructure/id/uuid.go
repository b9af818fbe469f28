package id

import "github.com/google/uuid"

// UUIDGenerator issues time-ordered UUIDv7 identifiers, so order ids sort by creation.
type UUIDGenerator struct{}

func NewUUIDGenerator() UUIDGenerator { return UUIDGenerator{} }

func (UUIDGenerator) NewID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
