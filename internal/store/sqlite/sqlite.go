// Package sqlite provides a SQLite-backed implementation of the
// store.ImageStore port for persisting binary image records.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/halvars/receptbox/internal/domain"
	"github.com/halvars/receptbox/internal/store"

	// database/sql SQLite driver
	_ "github.com/mattn/go-sqlite3"
)

var _ store.ImageStore = (*Images)(nil)

// Images implements store.ImageStore using SQLite (via database/sql).
// database/sql serializes access; each statement runs in its own implicit
// transaction, so a reader sees either the old or the new complete row.
type Images struct {
	db *sql.DB
	// now stamps CreatedAt when PutOptions omits it; overridable in tests.
	now func() int64
}

// New constructs an Images store, initializing the schema if absent.
func New(db *sql.DB) (*Images, error) {
	s := &Images{db: db, now: func() int64 { return time.Now().UnixMilli() }}
	if err := s.init(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Images) init() error {
	schema := `CREATE TABLE IF NOT EXISTS images (
id TEXT PRIMARY KEY,
blob BLOB NOT NULL,
mime TEXT NOT NULL,
size INTEGER NOT NULL,
width INTEGER NOT NULL,
height INTEGER NOT NULL,
created_at INTEGER NOT NULL
);`
	_, err := s.db.Exec(schema)
	return err
}

// Put writes a record, replacing any existing row with the same id.
func (s *Images) Put(ctx context.Context, blob []byte, opts store.PutOptions) (string, error) {
	id := opts.ID
	if id == "" {
		id = domain.NewID()
	}
	if !domain.ValidID(id) {
		return "", domain.ErrInvalidID
	}
	mime := opts.MimeType
	if mime == "" {
		mime = "application/octet-stream"
	}
	createdAt := opts.CreatedAt
	if createdAt == 0 {
		createdAt = s.now()
	}
	const q = `INSERT INTO images (id, blob, mime, size, width, height, created_at) VALUES (?,?,?,?,?,?,?)
ON CONFLICT(id) DO UPDATE SET blob=excluded.blob, mime=excluded.mime, size=excluded.size,
width=excluded.width, height=excluded.height, created_at=excluded.created_at`
	_, err := s.db.ExecContext(ctx, q, id, blob, mime, int64(len(blob)), opts.Width, opts.Height, createdAt)
	if err != nil {
		return "", err
	}
	return id, nil
}

// Get returns the full record, or (nil, nil) when the id is absent.
func (s *Images) Get(ctx context.Context, id string) (*store.ImageRecord, error) {
	const q = `SELECT id, blob, mime, size, width, height, created_at FROM images WHERE id=?`
	var rec store.ImageRecord
	row := s.db.QueryRowContext(ctx, q, id)
	if err := row.Scan(&rec.ID, &rec.Blob, &rec.MimeType, &rec.ByteSize, &rec.Width, &rec.Height, &rec.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}

// Delete removes the row if present. Missing ids are a no-op.
func (s *Images) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM images WHERE id=?`, id)
	return err
}

// ListInfo enumerates record metadata without transferring blobs.
func (s *Images) ListInfo(ctx context.Context) ([]store.ImageInfo, error) {
	const q = `SELECT id, mime, size, width, height, created_at FROM images ORDER BY created_at, id`
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var infos []store.ImageInfo
	for rows.Next() {
		var in store.ImageInfo
		if err = rows.Scan(&in.ID, &in.MimeType, &in.ByteSize, &in.Width, &in.Height, &in.CreatedAt); err != nil {
			return nil, err
		}
		infos = append(infos, in)
	}
	return infos, rows.Err()
}

// ListAll enumerates full records including blobs.
func (s *Images) ListAll(ctx context.Context) ([]store.ImageRecord, error) {
	const q = `SELECT id, blob, mime, size, width, height, created_at FROM images ORDER BY created_at, id`
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var recs []store.ImageRecord
	for rows.Next() {
		var rec store.ImageRecord
		if err = rows.Scan(&rec.ID, &rec.Blob, &rec.MimeType, &rec.ByteSize, &rec.Width, &rec.Height, &rec.CreatedAt); err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// Clear removes every record in one statement.
func (s *Images) Clear(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM images`)
	return err
}
