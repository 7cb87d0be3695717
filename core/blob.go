package core

import (
	"context"

	"github.com/pkg/errors"
)

// ErrUnknownBlob is returned by BlobStore.Resolve for malformed or unknown references.
var ErrUnknownBlob = errors.New("invalid signature reference")

// BlobStore keeps uploaded artifacts (signature images) out of the database.
type BlobStore interface {
	// Store saves data and returns an opaque reference to it.
	Store(ctx context.Context, data []byte) (string, error)
	// Resolve turns a reference into a retrievable URL. It fails for references this store never issued.
	Resolve(ref string) (string, error)
}
