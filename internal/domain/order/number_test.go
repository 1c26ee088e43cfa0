package order

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memCounter is a mutex-guarded in-memory counter standing in for the
// transactional repository.
type memCounter struct {
	mu sync.Mutex
	c  Counter
}

func (m *memCounter) Next(_ context.Context) (Counter, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.c = m.c.Advance()
	return m.c, nil
}

type failingCounter struct{}

func (failingCounter) Next(_ context.Context) (Counter, error) {
	return Counter{}, errors.New("contention")
}

func TestCounterAdvance(t *testing.T) {
	c := Counter{Letter: 'A', Number: 0}.Advance()
	assert.Equal(t, byte('A'), c.Letter)
	assert.Equal(t, int64(1), c.Number)

	c = Counter{Letter: 'A', Number: MaxCounterNumber}.Advance()
	assert.Equal(t, byte('B'), c.Letter)
	assert.Equal(t, int64(1), c.Number)

	c = Counter{Letter: 'Z', Number: MaxCounterNumber}.Advance()
	assert.Equal(t, byte('A'), c.Letter)
	assert.Equal(t, int64(1), c.Number)
}

func TestFormatNumber(t *testing.T) {
	ts := time.Date(2026, 8, 31, 14, 5, 0, 0, time.UTC)
	got := FormatNumber(ts, Counter{Letter: 'A', Number: 42})
	assert.Equal(t, "ORD-WELL-2608311405-A0000042", got)
}

func TestGenerate_ConcurrentUniqueness(t *testing.T) {
	gen := NewNumberGenerator(&memCounter{c: Counter{Letter: 'A'}})

	const n = 500
	results := make(chan string, n)
	var wg sync.WaitGroup
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- gen.Generate(context.Background())
		}()
	}
	wg.Wait()
	close(results)

	seen := make(map[string]bool, n)
	for num := range results {
		require.False(t, seen[num], "duplicate order number %s", num)
		seen[num] = true
	}
	assert.Len(t, seen, n)
}

func TestGenerate_Fallback(t *testing.T) {
	gen := NewNumberGenerator(failingCounter{})
	gen.now = func() time.Time {
		return time.Date(2026, 8, 31, 9, 30, 0, 12345, time.UTC)
	}

	got := gen.Generate(context.Background())
	assert.Regexp(t, `^ORD-WELL-2608310930-X\d{7}$`, got)
}
