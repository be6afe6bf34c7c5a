// Package rng provides the seeded random engine shared by story selection
// and the UI. Every primitive consumes a fixed number of draws so a session
// can be replayed from its seed and draw count.
package rng

import (
	"math/bits"
	"math/rand/v2"
	"sync"
	"time"
)

// seedMix decorrelates the two PCG state words derived from one seed.
const seedMix = 0x9e3779b97f4a7c15

// Status is the replay handle of an engine.
type Status struct {
	Seed      int64  `json:"seed" yaml:"seed"`
	UsedCount uint64 `json:"usedCount" yaml:"used_count"`
}

type Option func(*Rng)

// WithSeed sets an explicit seed. Zero means "derive from the clock".
func WithSeed(seed int64) Option {
	return func(r *Rng) { r.seed = seed }
}

// WithDiscard fast-forwards the engine by n draws after seeding.
func WithDiscard(n uint64) Option {
	return func(r *Rng) { r.discard = n }
}

// Rng is a counting wrapper around a PCG source.
type Rng struct {
	mu      sync.Mutex
	seed    int64
	discard uint64
	src     *rand.PCG
	used    uint64
}

func New(opts ...Option) *Rng {
	r := &Rng{}
	for _, opt := range opts {
		opt(r)
	}
	if r.seed == 0 {
		r.seed = time.Now().UnixMilli()
	}
	r.src = rand.NewPCG(uint64(r.seed), uint64(r.seed)^seedMix)
	r.Discard(r.discard)
	return r
}

// Status returns the seed and the number of draws consumed so far.
func (r *Rng) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Status{Seed: r.seed, UsedCount: r.used}
}

// Discard consumes n draws and ignores them.
func (r *Rng) Discard(n uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := uint64(0); i < n; i++ {
		r.next()
	}
}

// next must be called with r.mu held.
func (r *Rng) next() uint64 {
	r.used++
	return r.src.Uint64()
}

func (r *Rng) draw() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.next()
}

// Int returns an integer anywhere in the int64 range.
func (r *Rng) Int() int64 {
	return int64(r.draw())
}

// Upto returns an integer in [0, max].
func (r *Rng) Upto(max int64) int64 {
	return r.Between(0, max)
}

// Between returns an integer in [min, max]. It panics if min > max.
func (r *Rng) Between(min, max int64) int64 {
	if min > max {
		panic("rng: Between called with min > max")
	}
	return scale(r.draw(), min, max)
}

// scale maps one 64-bit draw onto [min, max] with a multiply-shift so the
// draw count stays exact.
func scale(v uint64, min, max int64) int64 {
	span := uint64(max-min) + 1
	if span == 0 {
		return int64(v)
	}
	hi, _ := bits.Mul64(v, span)
	return min + int64(hi)
}

// Bool is a fair coin.
func (r *Rng) Bool() bool {
	return r.Chance(50, 100)
}

// Chance returns true with probability chances/total.
func (r *Rng) Chance(chances, total int64) bool {
	if total <= 0 {
		panic("rng: Chance called with a non-positive total")
	}
	return r.Between(1, total) <= chances
}

// Pick returns one element of values chosen uniformly.
// It panics on an empty slice.
func Pick[T any](r *Rng, values []T) T {
	if len(values) == 0 {
		panic("rng: Pick called with no values")
	}
	return values[r.Between(0, int64(len(values)-1))]
}

// Weighted is one candidate of WeightedPick.
type Weighted[T any] struct {
	Value  T
	Weight int64
}

// WeightedPick draws one integer in [1, sum of weights] and returns the first
// entry whose cumulative weight reaches it. Zero-weight entries are never
// returned, except that the last entry wins when every weight is zero.
func WeightedPick[T any](r *Rng, values []Weighted[T]) T {
	if len(values) == 0 {
		panic("rng: WeightedPick called with no values")
	}
	var total int64
	for _, v := range values {
		if v.Weight < 0 {
			panic("rng: WeightedPick called with a negative weight")
		}
		total += v.Weight
	}
	if total == 0 {
		r.draw()
		return values[len(values)-1].Value
	}
	return values[weightedIndex(values, r.Between(1, total))].Value
}

func weightedIndex[T any](values []Weighted[T], drawn int64) int {
	var acc int64
	for i, v := range values {
		acc += v.Weight
		if v.Weight > 0 && acc >= drawn {
			return i
		}
	}
	return len(values) - 1
}

// Shuffle returns a shuffled copy of values using Fisher-Yates, consuming
// len(values)-1 draws. It panics on an empty slice.
func Shuffle[T any](r *Rng, values []T) []T {
	if len(values) == 0 {
		panic("rng: Shuffle called with no values")
	}
	out := make([]T, len(values))
	copy(out, values)
	for i := len(out) - 1; i > 0; i-- {
		j := r.Between(0, int64(i))
		out[i], out[j] = out[j], out[i]
	}
	return out
}
