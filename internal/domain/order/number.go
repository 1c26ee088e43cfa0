package order

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

// MaxCounterNumber is the highest sequence number within one letter
// band; exceeding it advances the letter and resets the number to 1.
const MaxCounterNumber = 9_999_999

// Counter is the singleton order-number counter state.
type Counter struct {
	Letter byte
	Number int64
}

// Advance returns the counter state after one increment, applying the
// letter rollover (Z wraps to A).
func (c Counter) Advance() Counter {
	c.Number++
	if c.Number > MaxCounterNumber {
		c.Number = 1
		if c.Letter == 'Z' {
			c.Letter = 'A'
		} else {
			c.Letter++
		}
	}
	return c
}

// CounterRepository advances the order counter. Next must perform the
// read-modify-write as a serializable transaction so no two callers
// ever observe the same state.
type CounterRepository interface {
	Next(ctx context.Context) (Counter, error)
}

// NumberGenerator produces globally unique order numbers in the format
// ORD-WELL-YYMMDDHHmm-<Letter><7-digit>.
type NumberGenerator struct {
	counter CounterRepository
	now     func() time.Time
}

// NewNumberGenerator creates a NumberGenerator over the given counter
// repository.
func NewNumberGenerator(counter CounterRepository) *NumberGenerator {
	return &NumberGenerator{counter: counter, now: time.Now}
}

// Generate returns the next order number. The timestamp portion is
// captured before the counter transaction. When the counter cannot be
// advanced, a timestamp-derived pseudo-unique fallback with letter X is
// returned instead of failing the order; the degradation is logged so
// operators can spot it.
func (g *NumberGenerator) Generate(ctx context.Context) string {
	now := g.now()

	c, err := g.counter.Next(ctx)
	if err != nil {
		zctx.From(ctx).Warn("order counter unavailable, using fallback number",
			zap.Error(err),
		)
		return FormatNumber(now, Counter{Letter: 'X', Number: now.UnixNano() % (MaxCounterNumber + 1)})
	}

	return FormatNumber(now, c)
}

// FormatNumber renders the order number for the given timestamp and
// counter state.
func FormatNumber(ts time.Time, c Counter) string {
	return fmt.Sprintf("ORD-WELL-%s-%c%07d", ts.Format("0601021504"), c.Letter, c.Number)
}
