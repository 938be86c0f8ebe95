package ext

import (
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
)

// IDGenerator defines contract for generating request identifiers.
type IDGenerator interface {
	// GenerateID generates a new identifier.
	GenerateID() string
}

// NewGoogleUUIDGenerator constructs a new IDGenerator implemented with Google's UUID module.
func NewGoogleUUIDGenerator() IDGenerator {
	return &googleUUIDGenerator{}
}

type googleUUIDGenerator struct{}

func (g *googleUUIDGenerator) GenerateID() string {
	return uuid.NewString()
}

// NewSequentialIDGenerator constructs an IDGenerator that yields predictable
// identifiers with the given prefix, e.g. req-000001. Intended for tests.
func NewSequentialIDGenerator(prefix string) IDGenerator {
	return &sequentialIDGenerator{prefix: prefix}
}

type sequentialIDGenerator struct {
	prefix  string
	counter uint64
}

func (g *sequentialIDGenerator) GenerateID() string {
	return fmt.Sprintf("%s-%06d", g.prefix, atomic.AddUint64(&g.counter, 1))
}
