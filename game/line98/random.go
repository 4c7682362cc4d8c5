package line98

import (
	"math/rand/v2"
	"sync"
)

// Random picks spawn cells, colours and fallback hints.
type Random interface {
	// IntN returns a uniform value in [0, n).
	IntN(n int) int
}

type lockedRand struct {
	mu sync.Mutex
	r  *rand.Rand
}

func (l *lockedRand) IntN(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.IntN(n)
}

// NewRandom returns a goroutine-safe Random with a random seed.
func NewRandom() Random {
	return NewSeededRandom(rand.Uint64())
}

// NewSeededRandom returns a goroutine-safe Random with a fixed seed.
func NewSeededRandom(seed uint64) Random {
	return &lockedRand{r: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}
