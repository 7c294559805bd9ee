// Package store persists stories and their steps.
package store

import (
	"context"

	"github.com/johnazariah/aura-sub015/internal/story"
)

// Filter narrows List results. Zero values match everything.
type Filter struct {
	Status         story.Status
	RepositoryPath string
}

// Store is the persistence boundary for stories. Updates are atomic at
// story granularity: a story row and its step rows change in one
// transaction or not at all.
type Store interface {
	// Create persists a new story, assigning an ID when it has none.
	Create(ctx context.Context, s *story.Story) error

	// Get returns the story without its steps.
	Get(ctx context.Context, id string) (*story.Story, error)

	// GetWithSteps returns the story with steps ordered by step order.
	GetWithSteps(ctx context.Context, id string) (*story.Story, error)

	// List returns stories matching the filter, newest first.
	List(ctx context.Context, f Filter) ([]*story.Story, error)

	// Update writes the story and any attached steps, bumping the
	// story version. Fails with a concurrent_update error when the
	// persisted version differs from s.Version.
	Update(ctx context.Context, s *story.Story) error

	// UpdateStep writes a single step's mutable columns, bumping the
	// step version. Wave and order never change after planning.
	UpdateStep(ctx context.Context, st *story.Step) error

	// Delete removes the story and cascades to its steps.
	Delete(ctx context.Context, id string) error

	Close() error
}
