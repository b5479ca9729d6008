package storage

import (
	"context"
	"io"
)

// DocumentStore is the external blob storage collaborator. Uploads happen
// outside database transactions; a blob orphaned by a later transaction
// failure is accepted and not cleaned up here.
type DocumentStore interface {
	// Upload stores the document and returns its public URL.
	Upload(ctx context.Context, key string, contentType string, body io.Reader) (string, error)
}
