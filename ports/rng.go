package ports

import (
	"math/rand"
)

// RNG provides seeded random number generation for deterministic operations.
// Monte-Carlo simulation and any stochastic draw must obtain randomness
// through named streams so identical (name, seed) pairs reproduce exactly
// across runs and across worker partitions.
type RNG interface {
	// Stream creates a deterministic generator for a named operation.
	// The same (name, seed) always yields the same sequence.
	Stream(name string, seed int64) *rand.Rand
}
