// Package snapshot stores the single accuracy document behind an optimistic-concurrency
// revision token.
package snapshot

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
)

// ErrConflict is returned by Write when the stored revision no longer matches.
var ErrConflict = errors.New("snapshot revision conflict")

// Document is the stored content and its revision. A zero Document means nothing is stored.
type Document struct {
	Data     []byte
	Revision string
}

// Exists reports whether the document was found.
func (d Document) Exists() bool {
	return d.Revision != ""
}

// Store reads and conditionally writes one named document.
// Write with an empty revision creates the document and fails with ErrConflict if it
// already exists; otherwise it replaces the document only if revision is still current.
type Store interface {
	Read(ctx context.Context) (Document, error)
	Write(ctx context.Context, data []byte, revision string) (string, error)
}

func contentRevision(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
