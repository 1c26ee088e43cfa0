package ads

import (
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
)

const (
	screenMinCapacity = 1_000
	screenFPR         = 0.001
)

// CodeScreen is an in-memory bloom pre-screen over active tracking
// codes. It keeps orders without a known code off the selections table.
// False positives only cost one extra lookup; a definite miss is
// authoritative.
type CodeScreen struct {
	mu     sync.RWMutex
	filter *bloom.BloomFilter
}

// NewCodeScreen creates an empty screen. An empty screen fails open:
// every code passes until Reload is called.
func NewCodeScreen() *CodeScreen {
	return &CodeScreen{}
}

// Reload replaces the filter with one built from the given codes.
func (s *CodeScreen) Reload(codes []string) {
	capacity := uint(len(codes))
	if capacity < screenMinCapacity {
		capacity = screenMinCapacity
	}

	filter := bloom.NewWithEstimates(capacity, screenFPR)
	for _, code := range codes {
		filter.AddString(code)
	}

	s.mu.Lock()
	s.filter = filter
	s.mu.Unlock()
}

// Add inserts a single code, for selections created after the last
// Reload.
func (s *CodeScreen) Add(code string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.filter != nil {
		s.filter.AddString(code)
	}
}

// Test reports whether code may have an active selection. It returns
// true when the screen has not been loaded yet.
func (s *CodeScreen) Test(code string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.filter == nil {
		return true
	}
	return s.filter.TestString(code)
}
