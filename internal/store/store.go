// Package store provides the composing metadata Store that layers the
// quota-exceeded degradation path over a raw DocumentStore. Construct it
// via New; callers then never see domain.ErrQuotaExceeded from Save.
package store

import (
	"context"
	"errors"
	"log/slog"

	"github.com/halvars/receptbox/internal/domain"
)

// Store wraps a DocumentStore with the emergency-export fallback. When
// the underlying Save fails on quota, data is not silently dropped: a
// best-effort export of the document is handed to the EmergencyExporter,
// a warning is logged, and Save returns nil so the in-memory document
// remains the session's source of truth.
type Store struct {
	docs      DocumentStore
	emergency EmergencyExporter
	log       *slog.Logger
}

var _ DocumentStore = (*Store)(nil)

// New returns a composed Store. emergency may be nil, in which case a
// quota failure is only logged.
func New(docs DocumentStore, emergency EmergencyExporter, log *slog.Logger) *Store {
	if log == nil {
		log = slog.Default()
	}
	return &Store{docs: docs, emergency: emergency, log: log}
}

// Load delegates to the underlying document store.
func (s *Store) Load(ctx context.Context) (*domain.Document, error) {
	return s.docs.Load(ctx)
}

// Save persists the document. On quota exhaustion it degrades to an
// emergency export instead of failing; all other errors propagate.
func (s *Store) Save(ctx context.Context, doc *domain.Document) error {
	err := s.docs.Save(ctx, doc)
	if err == nil {
		return nil
	}
	if !errors.Is(err, domain.ErrQuotaExceeded) {
		return err
	}
	log := s.log.With("domain", "store")
	log.Warn("document save exceeded storage quota, keeping in-memory state", "recipes", len(doc.Recipes))
	if s.emergency == nil {
		return nil
	}
	if eerr := s.emergency.ExportEmergency(doc); eerr != nil {
		log.Error("emergency export failed", "error", eerr)
	} else {
		log.Warn("emergency export written, free up space and save again")
	}
	return nil
}
