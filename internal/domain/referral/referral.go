// Package referral validates customer referral codes against the
// bulk-ingested code set.
package referral

import (
	"context"

	"github.com/go-faster/errors"
)

// ErrInvalidCode is returned when a referral code is not in the
// ingested code set.
var ErrInvalidCode = errors.New("invalid referral code")

// Repository provides membership lookup of ingested referral codes.
type Repository interface {
	Exists(ctx context.Context, code string) (bool, error)
}

// Validator checks referral codes attached to orders. An empty code is
// valid: referrals are optional.
type Validator struct {
	repo Repository
}

// NewValidator creates a Validator backed by the given Repository.
func NewValidator(repo Repository) *Validator {
	return &Validator{repo: repo}
}

// Validate returns ErrInvalidCode when a non-empty code is unknown.
func (v *Validator) Validate(ctx context.Context, code string) error {
	if code == "" {
		return nil
	}

	ok, err := v.repo.Exists(ctx, code)
	if err != nil {
		return errors.Wrap(err, "lookup referral code")
	}
	if !ok {
		return ErrInvalidCode
	}
	return nil
}
