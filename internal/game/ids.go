package game

import (
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
)

// IDProvider hands out item and character identities.
type IDProvider interface {
	NewID() string
}

// UUIDs is the production provider.
type UUIDs struct{}

func (UUIDs) NewID() string { return uuid.NewString() }

// Sequence is a deterministic provider: prefix-1, prefix-2, ...
type Sequence struct {
	Prefix string
	n      atomic.Int64
}

func (s *Sequence) NewID() string {
	return fmt.Sprintf("%s-%d", s.Prefix, s.n.Add(1))
}
