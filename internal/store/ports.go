// Package store defines the persistence ports of the recipe box: the
// transactional image store holding binary blobs and the document store
// holding the singleton metadata document. Adapter packages (sqlite,
// docfile, memory) provide concrete implementations; callers outside this
// package interact through these interfaces so a test double can replace
// the real stores.
package store

import (
	"context"

	"github.com/halvars/receptbox/internal/domain"
)

// ImageRecord is a full image store record including the binary payload.
type ImageRecord struct {
	ID        string
	Blob      []byte
	MimeType  string
	ByteSize  int64
	Width     int
	Height    int
	CreatedAt int64 // epoch milliseconds
}

// Info returns the metadata-only view of the record.
func (r ImageRecord) Info() ImageInfo {
	return ImageInfo{
		ID:        r.ID,
		MimeType:  r.MimeType,
		ByteSize:  r.ByteSize,
		Width:     r.Width,
		Height:    r.Height,
		CreatedAt: r.CreatedAt,
	}
}

// ImageInfo is an ImageRecord without its blob, for usage accounting.
type ImageInfo struct {
	ID        string
	MimeType  string
	ByteSize  int64
	Width     int
	Height    int
	CreatedAt int64
}

// PutOptions carries optional metadata for ImageStore.Put. A zero ID
// makes the store generate one; a zero CreatedAt stamps the current time.
type PutOptions struct {
	ID        string
	MimeType  string
	Width     int
	Height    int
	CreatedAt int64
}

// ImageStore is the transactional blob storage port, keyed by opaque id.
// Large binary payloads live here so they never inflate the metadata
// document's save/load cycle. Every operation is a single transaction:
// a concurrent reader sees either the old or the new complete record,
// never a partial write.
type ImageStore interface {
	// Put writes a record, overwriting any existing record with the same
	// id (the optimizer replaces content in place this way). It returns
	// the id actually used.
	Put(ctx context.Context, blob []byte, opts PutOptions) (string, error)

	// Get returns the full record, or (nil, nil) when absent. It never
	// fails for a missing id.
	Get(ctx context.Context, id string) (*ImageRecord, error)

	// Delete removes a record. Deleting a non-existent id is a no-op.
	Delete(ctx context.Context, id string) error

	// ListInfo enumerates all records without blob payloads.
	ListInfo(ctx context.Context) ([]ImageInfo, error)

	// ListAll enumerates all records including blobs, for full-backup
	// export. Callers converting blobs should process one record at a
	// time and let each go before the next.
	ListAll(ctx context.Context) ([]ImageRecord, error)

	// Clear atomically removes every record. Used only as the first step
	// of a full restore.
	Clear(ctx context.Context) error
}

// DocumentStore is the metadata persistence port: one current document,
// last-write-wins. Load must return a usable document (never fail) even
// when nothing valid is stored, after merging any legacy-key documents.
// Save reports domain.ErrQuotaExceeded when the serialized document does
// not fit the storage limit.
type DocumentStore interface {
	Load(ctx context.Context) (*domain.Document, error)
	Save(ctx context.Context, doc *domain.Document) error
}

// EmergencyExporter produces a best-effort downloadable export of the
// document when persistence fails on quota. The composing Store is its
// only caller.
type EmergencyExporter interface {
	ExportEmergency(doc *domain.Document) error
}
