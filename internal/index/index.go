package index

import (
	"context"

	"github.com/starford/modlib/internal/models"
)

// Store defines the persisted module operations.
// Consumers should depend on this interface rather than the concrete *DB type
// to facilitate testing with fakes.
type Store interface {
	Insert(ctx context.Context, m models.Module) error
	Update(ctx context.Context, m models.Module) error
	Get(ctx context.Context, filename string) (*models.Module, error)
	GetHash(ctx context.Context, filename string) (string, bool, error)
	Delete(ctx context.Context, filename string) error
	AllFilenames(ctx context.Context) ([]string, error)
	SetPersonalComment(ctx context.Context, filename, text string) error
	SetFingerprint(ctx context.Context, filename, text string) error
	Duplicates(ctx context.Context) ([]models.DuplicateGroup, error)
	Search(ctx context.Context, f Filter) ([]models.Module, error)
	Count(ctx context.Context) (int, error)
	Close() error
}

// Verify *DB satisfies Store at compile time.
var _ Store = (*DB)(nil)
