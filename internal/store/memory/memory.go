// Package memory provides in-memory implementations of both persistence
// ports. They back unit tests of the protocol and service layers so the
// real SQLite and filesystem adapters can stay out of those tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/halvars/receptbox/internal/domain"
	"github.com/halvars/receptbox/internal/store"
)

var _ store.ImageStore = (*Images)(nil)

// Images is a mutex-guarded map-backed image store.
type Images struct {
	mu   sync.RWMutex
	recs map[string]store.ImageRecord
	// Now stamps CreatedAt when omitted; tests may pin it.
	Now func() int64
	// FailPut, when set, is returned by Put to exercise fail-soft paths.
	FailPut error
}

// NewImages returns an empty in-memory image store.
func NewImages() *Images {
	return &Images{
		recs: make(map[string]store.ImageRecord),
		Now:  func() int64 { return time.Now().UnixMilli() },
	}
}

func (m *Images) Put(_ context.Context, blob []byte, opts store.PutOptions) (string, error) {
	if m.FailPut != nil {
		return "", m.FailPut
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	id := opts.ID
	if id == "" {
		id = domain.NewID()
	}
	mime := opts.MimeType
	if mime == "" {
		mime = "application/octet-stream"
	}
	createdAt := opts.CreatedAt
	if createdAt == 0 {
		createdAt = m.Now()
	}
	b := make([]byte, len(blob))
	copy(b, blob)
	m.recs[id] = store.ImageRecord{
		ID:        id,
		Blob:      b,
		MimeType:  mime,
		ByteSize:  int64(len(b)),
		Width:     opts.Width,
		Height:    opts.Height,
		CreatedAt: createdAt,
	}
	return id, nil
}

func (m *Images) Get(_ context.Context, id string) (*store.ImageRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.recs[id]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (m *Images) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.recs, id)
	return nil
}

func (m *Images) ListInfo(_ context.Context) ([]store.ImageInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	infos := make([]store.ImageInfo, 0, len(m.recs))
	for _, rec := range m.recs {
		infos = append(infos, rec.Info())
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })
	return infos, nil
}

func (m *Images) ListAll(_ context.Context) ([]store.ImageRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	recs := make([]store.ImageRecord, 0, len(m.recs))
	for _, rec := range m.recs {
		recs = append(recs, rec)
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].ID < recs[j].ID })
	return recs, nil
}

func (m *Images) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recs = make(map[string]store.ImageRecord)
	return nil
}

// Len reports the number of stored records.
func (m *Images) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.recs)
}

var _ store.DocumentStore = (*Docs)(nil)

// Docs is a map-free in-memory document store holding one document.
type Docs struct {
	mu  sync.Mutex
	doc *domain.Document
	// FailSave, when set, is returned by Save (e.g. domain.ErrQuotaExceeded
	// to exercise the emergency-export path).
	FailSave error
	// Saves counts successful Save calls.
	Saves int
}

// NewDocs returns an empty in-memory document store.
func NewDocs() *Docs { return &Docs{} }

func (m *Docs) Load(_ context.Context) (*domain.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.doc == nil {
		return domain.NewDocument(), nil
	}
	cp := *m.doc
	cp.Recipes = append([]domain.Recipe(nil), m.doc.Recipes...)
	return &cp, nil
}

func (m *Docs) Save(_ context.Context, doc *domain.Document) error {
	if m.FailSave != nil {
		return m.FailSave
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *doc
	cp.Recipes = append([]domain.Recipe(nil), doc.Recipes...)
	m.doc = &cp
	m.Saves++
	return nil
}
