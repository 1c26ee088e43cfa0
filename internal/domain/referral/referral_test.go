package referral

import (
	"context"
	"testing"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockReferralRepo struct {
	codes map[string]bool
	err   error
}

func (m *mockReferralRepo) Exists(_ context.Context, code string) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	return m.codes[code], nil
}

func TestValidator_Validate(t *testing.T) {
	repo := &mockReferralRepo{codes: map[string]bool{"FRIEND2025": true}}
	v := NewValidator(repo)

	t.Run("known code", func(t *testing.T) {
		require.NoError(t, v.Validate(context.Background(), "FRIEND2025"))
	})

	t.Run("empty code is optional", func(t *testing.T) {
		require.NoError(t, v.Validate(context.Background(), ""))
	})

	t.Run("unknown code", func(t *testing.T) {
		err := v.Validate(context.Background(), "NOPE")
		assert.ErrorIs(t, err, ErrInvalidCode)
	})

	t.Run("lookup failure wrapped", func(t *testing.T) {
		broken := NewValidator(&mockReferralRepo{err: errors.New("db down")})
		err := broken.Validate(context.Background(), "FRIEND2025")
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrInvalidCode)
	})
}
