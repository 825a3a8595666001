package sqlite

import (
	"bytes"
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/halvars/receptbox/internal/store"
)

// openTestDB opens a transient SQLite database file in a temp dir.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dir := t.TempDir()
	db, err := sql.Open("sqlite3", filepath.Join(dir, "test.db?_busy_timeout=5000"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func newTestStore(t *testing.T) *Images {
	t.Helper()
	s, err := New(openTestDB(t))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	s.now = func() int64 { return 1700000000000 }
	return s
}

func TestPutGetRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	blob := []byte{0x89, 0x50, 0x4e, 0x47, 0, 1, 2, 3}
	id, err := s.Put(ctx, blob, store.PutOptions{MimeType: "image/png", Width: 10, Height: 20})
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if id == "" {
		t.Fatal("Put did not generate an id")
	}
	rec, err := s.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if rec == nil {
		t.Fatal("record missing after Put")
	}
	if !bytes.Equal(rec.Blob, blob) {
		t.Fatalf("blob mismatch: %v", rec.Blob)
	}
	if rec.MimeType != "image/png" || rec.Width != 10 || rec.Height != 20 {
		t.Fatalf("metadata mismatch: %+v", rec)
	}
	if rec.ByteSize != int64(len(blob)) {
		t.Fatalf("size = %d, want %d", rec.ByteSize, len(blob))
	}
	if rec.CreatedAt != 1700000000000 {
		t.Fatalf("createdAt = %d", rec.CreatedAt)
	}
}

func TestPutOverwritesSameID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	if _, err := s.Put(ctx, []byte("gammal"), store.PutOptions{ID: "bild-1", MimeType: "image/jpeg"}); err != nil {
		t.Fatalf("first Put: %v", err)
	}
	if _, err := s.Put(ctx, []byte("ny"), store.PutOptions{ID: "bild-1", MimeType: "image/png"}); err != nil {
		t.Fatalf("second Put: %v", err)
	}
	rec, err := s.Get(ctx, "bild-1")
	if err != nil || rec == nil {
		t.Fatalf("Get: rec=%v err=%v", rec, err)
	}
	if string(rec.Blob) != "ny" || rec.MimeType != "image/png" {
		t.Fatalf("old record survived overwrite: %+v", rec)
	}
	recs, err := s.ListAll(ctx)
	if err != nil {
		t.Fatalf("ListAll: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("duplicate rows after overwrite: %d", len(recs))
	}
}

func TestGetMissingIsNilNotError(t *testing.T) {
	s := newTestStore(t)
	rec, err := s.Get(context.Background(), "finns-inte")
	if err != nil {
		t.Fatalf("Get returned error for missing id: %v", err)
	}
	if rec != nil {
		t.Fatalf("phantom record: %+v", rec)
	}
}

func TestDeleteIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	id, err := s.Put(ctx, []byte("x"), store.PutOptions{})
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := s.Delete(ctx, id); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := s.Delete(ctx, id); err != nil {
		t.Fatalf("second Delete errored: %v", err)
	}
	if err := s.Delete(ctx, "aldrig-funnits"); err != nil {
		t.Fatalf("Delete of unknown id errored: %v", err)
	}
}

func TestListInfoOmitsBlobs(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	for i, blob := range [][]byte{[]byte("aa"), []byte("bbbb")} {
		if _, err := s.Put(ctx, blob, store.PutOptions{ID: string(rune('a' + i))}); err != nil {
			t.Fatalf("Put: %v", err)
		}
	}
	infos, err := s.ListInfo(ctx)
	if err != nil {
		t.Fatalf("ListInfo: %v", err)
	}
	if len(infos) != 2 {
		t.Fatalf("len = %d", len(infos))
	}
	var total int64
	for _, in := range infos {
		total += in.ByteSize
	}
	if total != 6 {
		t.Fatalf("total bytes = %d, want 6", total)
	}
}

func TestClearRemovesEverything(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := s.Put(ctx, []byte{byte(i)}, store.PutOptions{}); err != nil {
			t.Fatalf("Put: %v", err)
		}
	}
	if err := s.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	recs, err := s.ListAll(ctx)
	if err != nil {
		t.Fatalf("ListAll: %v", err)
	}
	if len(recs) != 0 {
		t.Fatalf("records after Clear: %d", len(recs))
	}
}
