package store

import (
	"context"
	"errors"

	"github.com/dunamismax/pixelpost/internal/domain"
)

var ErrRunNotFound = errors.New("run not found")

// RunStore keeps the audit trail of pipeline runs.
type RunStore interface {
	Create(ctx context.Context, run domain.Run) error
	Get(ctx context.Context, id string) (domain.Run, bool, error)
	List(ctx context.Context, limit int) ([]domain.Run, error)
	Close() error
}
