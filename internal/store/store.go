// Package store persists playground file trees. The collaboration core never
// calls it; the HTTP layer does, on behalf of the editor.
package store

import (
	"context"
	"errors"

	"github.com/codesync/collab/internal/domain"
)

var ErrNotFound = errors.New("playground not found")

// DocumentStore reads a folder/file tree by id and writes one file's content.
type DocumentStore interface {
	GetPlayground(ctx context.Context, id string) (*domain.Playground, error)
	UpdateFileContent(ctx context.Context, playgroundID, fileID, content string) error
}
