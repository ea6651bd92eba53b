package api

import (
	"context"

	"github.com/starford/modlib/internal/library"
	"github.com/starford/modlib/internal/models"
	"github.com/starford/modlib/internal/sse"
)

// Library is the part of *library.Library the handlers use.
type Library interface {
	Search(ctx context.Context, q library.SearchQuery) ([]library.Hit, error)
	Get(ctx context.Context, filename string) (*models.Module, error)
	SetPersonalComment(ctx context.Context, filename, text string) error
	SetFingerprint(ctx context.Context, filename, text string) error
	Remove(ctx context.Context, filename string) error
	FindDuplicates(ctx context.Context) ([]models.DuplicateGroup, error)
	AddFiles(ctx context.Context, paths []string) (library.ScanSummary, error)
	MaintenanceSweep(ctx context.Context) (library.SweepSummary, error)
	Count(ctx context.Context) (int, error)
}

// Verify *library.Library satisfies Library at compile time.
var _ Library = (*library.Library)(nil)

// Publisher receives change notifications. *sse.Broker implements it.
type Publisher interface {
	Publish(event sse.Event)
	PublishModuleEvent(kind, filename string)
}

// nopPublisher drops every event.
type nopPublisher struct{}

func (nopPublisher) Publish(sse.Event) {}
func (nopPublisher) PublishModuleEvent(string, string) {}
