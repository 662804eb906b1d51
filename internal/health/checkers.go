package health

import (
	"context"
	"errors"

	"github.com/clarivox/clarivox/internal/learn"
)

// StoreChecker probes the learning snapshot store by attempting a load.
// A store with no snapshot yet is healthy; only real backend failures fail
// the check.
func StoreChecker(s learn.Store) Checker {
	return Checker{
		Name: "store",
		Check: func(ctx context.Context) error {
			_, err := s.LoadSnapshot(ctx)
			if err != nil && !errors.Is(err, learn.ErrNoSnapshot) {
				return err
			}
			return nil
		},
	}
}
