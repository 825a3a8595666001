// Package docfile provides a filesystem-backed implementation of the
// store.DocumentStore port. The metadata document is one JSON file under
// the canonical storage key; documents left behind by earlier revisions
// under older keys are merged in on load and then removed.
package docfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/halvars/receptbox/internal/domain"
	"github.com/halvars/receptbox/internal/store"
)

// CanonicalKey is the storage key of the current document.
const CanonicalKey = "baste-recepten.v4"

// legacyPrefix matches every historical storage key.
const legacyPrefix = "baste-recepten"

var _ store.DocumentStore = (*Docs)(nil)

// Docs implements store.DocumentStore on the local filesystem. Each
// storage key maps to a <key>.json file under a fixed root directory.
type Docs struct {
	root string
	// maxBytes caps the serialized document size; 0 disables the limit.
	maxBytes int64
}

// New returns a document store rooted at dir. The directory must exist.
func New(root string, maxBytes int64) (*Docs, error) {
	fi, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !fi.IsDir() {
		return nil, errors.New("document root is not a directory")
	}
	return &Docs{root: root, maxBytes: maxBytes}, nil
}

func (d *Docs) path(key string) string { return filepath.Join(d.root, key+".json") }

// Load reads the document under the canonical key, falling back to a
// fresh empty document when the file is absent or does not parse. It then
// merges any legacy-key documents (first-seen recipe id wins, theme
// adopted only when unset), persists the merged result, and removes the
// legacy files. Running the migration twice produces no further changes.
func (d *Docs) Load(ctx context.Context) (*domain.Document, error) {
	doc := d.readKey(CanonicalKey)
	legacy, err := d.legacyKeys()
	if err != nil {
		return nil, err
	}
	migrated := false
	for _, key := range legacy {
		doc.Merge(d.readKey(key))
		migrated = true
	}
	if doc.Theme == "" {
		doc.Theme = domain.DefaultTheme
	}
	if migrated {
		if err := d.Save(ctx, doc); err != nil {
			return nil, fmt.Errorf("persist migrated document: %w", err)
		}
		for _, key := range legacy {
			if err := os.Remove(d.path(key)); err != nil && !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("remove legacy key %s: %w", key, err)
			}
		}
	}
	return doc, nil
}

// Save serializes the document and writes it under the canonical key via
// a temp file rename. Documents over the size limit are rejected with
// domain.ErrQuotaExceeded before anything is written.
func (d *Docs) Save(ctx context.Context, doc *domain.Document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	if d.maxBytes > 0 && int64(len(data)) > d.maxBytes {
		return fmt.Errorf("%w: document is %d bytes, limit %d", domain.ErrQuotaExceeded, len(data), d.maxBytes)
	}
	p := d.path(CanonicalKey)
	tmp := p + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	if _, err = f.Write(data); err != nil {
		f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err = f.Sync(); err != nil {
		f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err = f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, p)
}

// readKey parses the document stored under key. Absent or corrupt files
// yield a fresh empty document (with the theme left unset so migration
// can adopt one), never an error.
func (d *Docs) readKey(key string) *domain.Document {
	doc := &domain.Document{Recipes: []domain.Recipe{}}
	data, err := os.ReadFile(d.path(key))
	if err != nil {
		return doc
	}
	var parsed domain.Document
	if err := json.Unmarshal(data, &parsed); err != nil {
		return doc
	}
	if parsed.Recipes == nil {
		parsed.Recipes = []domain.Recipe{}
	}
	return &parsed
}

// legacyKeys lists storage keys from older revisions still present on
// disk, newest naming first so later revisions win the id merge.
func (d *Docs) legacyKeys() ([]string, error) {
	entries, err := os.ReadDir(d.root)
	if err != nil {
		return nil, err
	}
	var keys []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		key := strings.TrimSuffix(name, ".json")
		if key == CanonicalKey || !strings.HasPrefix(key, legacyPrefix) {
			continue
		}
		keys = append(keys, key)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(keys)))
	return keys, nil
}
