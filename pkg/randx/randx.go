package randx

import (
	"math/rand"
	"sync"
	"time"
)

// Source draws uniform integers in [0, n). *math/rand.Rand satisfies it.
type Source interface {
	Intn(n int) int
}

// New returns a Source seeded with seed. A zero seed uses the current time.
func New(seed int64) Source {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return rand.New(rand.NewSource(seed))
}

// IntRange draws uniformly from the closed range [lo, hi].
// It returns lo when hi <= lo.
func IntRange(r Source, lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + r.Intn(hi-lo+1)
}

// Locked wraps a Source with a mutex. The posting loop is single-threaded,
// but the CLI preview and the loop may share one source in tests.
func Locked(r Source) Source {
	if r == nil {
		r = New(0)
	}
	return &locked{r: r}
}

type locked struct {
	mu sync.Mutex
	r  Source
}

func (l *locked) Intn(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Intn(n)
}

// Sequence replays fixed draws. Each value is reduced modulo n, so a
// scripted value always stays in range. After the last value it wraps.
type Sequence struct {
	mu     sync.Mutex
	values []int
	next   int
}

func NewSequence(values ...int) *Sequence {
	return &Sequence{values: values}
}

func (s *Sequence) Intn(n int) int {
	if n <= 0 {
		panic("randx: invalid argument to Intn")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.values) == 0 {
		return 0
	}
	v := s.values[s.next%len(s.values)]
	s.next++
	v %= n
	if v < 0 {
		v += n
	}
	return v
}

// Calls reports how many draws were made.
func (s *Sequence) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.next
}
