package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wellnesstree/marketplace-api/internal/domain/order"
)

const (
	selectCounterSQL = `SELECT letter, number FROM order_counters WHERE id = 1 FOR UPDATE`
	updateCounterSQL = `UPDATE order_counters SET letter = $1, number = $2 WHERE id = 1`
)

var _ order.CounterRepository = (*CounterRepository)(nil)

// CounterRepository advances the singleton order counter. Correctness
// rests on the row lock: FOR UPDATE serializes concurrent callers on
// the single counter row, so each transaction sees the previous
// committed state.
type CounterRepository struct {
	pool *pgxpool.Pool
}

// NewCounterRepository returns a CounterRepository that uses the given pool.
func NewCounterRepository(pool *pgxpool.Pool) *CounterRepository {
	return &CounterRepository{pool: pool}
}

// Next increments the counter inside one transaction and returns the
// new state.
func (r *CounterRepository) Next(ctx context.Context) (order.Counter, error) {
	var next order.Counter
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var letter string
		var number int64
		if err := tx.QueryRow(ctx, selectCounterSQL).Scan(&letter, &number); err != nil {
			return fmt.Errorf("read counter: %w", err)
		}

		c := order.Counter{Letter: 'A', Number: number}
		if letter != "" {
			c.Letter = letter[0]
		}
		next = c.Advance()

		if _, err := tx.Exec(ctx, updateCounterSQL, string(next.Letter), next.Number); err != nil {
			return fmt.Errorf("write counter: %w", err)
		}
		return nil
	})
	if err != nil {
		return order.Counter{}, fmt.Errorf("advance order counter: %w", err)
	}
	return next, nil
}
