// Package storage defines the repository content abstraction and its
// GitHub and local-disk implementations.
package storage

import (
	"context"

	"github.com/starford/postdesk/internal/models"
)

// Provider is the interface for path-addressed repository content.
// Every write is guarded by the content sha of the version it replaces.
type Provider interface {
	// List returns the entries of dir. A missing dir yields an empty slice.
	List(ctx context.Context, dir string) ([]models.Entry, error)
	// Get returns the decoded content and sha of the file at path.
	Get(ctx context.Context, path string) (*models.File, error)
	// Put creates (empty SHA) or replaces (matching SHA) a file.
	Put(ctx context.Context, req models.WriteRequest) (*models.CommitResult, error)
	// Delete removes the file at path if its sha still matches.
	Delete(ctx context.Context, path, message, sha string) (*models.CommitResult, error)
}
