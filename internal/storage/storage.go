// Package storage provides the document store and blob storage that the
// rewrite engine runs against, plus a filesystem vault implementing both.
//
// All paths crossing these interfaces are vault-relative and use forward
// slashes, regardless of the host operating system.
package storage

import "context"

// Document identifies one text document in a store
type Document struct {
	Path string // vault-relative
}

// DocumentStore lists, reads and writes text documents
type DocumentStore interface {
	ListDocuments(ctx context.Context) ([]Document, error)
	Read(ctx context.Context, doc Document) (string, error)
	Write(ctx context.Context, doc Document, text string) error
}

// BlobStorage stores binary assets.
// Exists followed by WriteBytes is not atomic; concurrent writers of the same
// path race and the last write wins.
type BlobStorage interface {
	Exists(ctx context.Context, p string) (bool, error)
	ReadBytes(ctx context.Context, p string) ([]byte, error)
	WriteBytes(ctx context.Context, p string, data []byte) error
	EnsureDirectory(ctx context.Context, p string) error
}
