package store

import (
	"context"
	"errors"
	"testing"

	"github.com/halvars/receptbox/internal/domain"
)

// fakeDocs lets tests script Save failures.
type fakeDocs struct {
	doc     *domain.Document
	saveErr error
	saves   int
}

func (f *fakeDocs) Load(context.Context) (*domain.Document, error) {
	if f.doc == nil {
		return domain.NewDocument(), nil
	}
	return f.doc, nil
}

func (f *fakeDocs) Save(_ context.Context, doc *domain.Document) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.doc = doc
	f.saves++
	return nil
}

// fakeEmergency records export invocations.
type fakeEmergency struct {
	calls int
	doc   *domain.Document
	err   error
}

func (f *fakeEmergency) ExportEmergency(doc *domain.Document) error {
	f.calls++
	f.doc = doc
	return f.err
}

func TestSavePassesThrough(t *testing.T) {
	docs := &fakeDocs{}
	em := &fakeEmergency{}
	s := New(docs, em, nil)
	doc := domain.NewDocument()
	if err := s.Save(context.Background(), doc); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if docs.saves != 1 {
		t.Fatalf("saves = %d", docs.saves)
	}
	if em.calls != 0 {
		t.Fatal("emergency export fired without quota failure")
	}
}

func TestSaveQuotaTriggersEmergencyExport(t *testing.T) {
	docs := &fakeDocs{saveErr: domain.ErrQuotaExceeded}
	em := &fakeEmergency{}
	s := New(docs, em, nil)
	doc := domain.NewDocument()
	doc.Recipes = append(doc.Recipes, domain.Recipe{ID: "r", Title: "Test"})

	// Quota failure degrades: no error surfaces, the export fires.
	if err := s.Save(context.Background(), doc); err != nil {
		t.Fatalf("quota failure surfaced as error: %v", err)
	}
	if em.calls != 1 {
		t.Fatalf("emergency calls = %d, want 1", em.calls)
	}
	if em.doc == nil || len(em.doc.Recipes) != 1 || em.doc.Recipes[0].ID != "r" {
		t.Fatalf("emergency export got wrong document: %+v", em.doc)
	}
	// The in-memory document is unchanged and still usable.
	if doc.Recipes[0].Title != "Test" {
		t.Fatalf("document mutated: %+v", doc)
	}
}

func TestSaveQuotaWithFailingEmergencyStillReturnsNil(t *testing.T) {
	docs := &fakeDocs{saveErr: domain.ErrQuotaExceeded}
	em := &fakeEmergency{err: errors.New("disk borta")}
	s := New(docs, em, nil)
	if err := s.Save(context.Background(), domain.NewDocument()); err != nil {
		t.Fatalf("Save: %v", err)
	}
}

func TestSaveOtherErrorsPropagate(t *testing.T) {
	boom := errors.New("io trasigt")
	docs := &fakeDocs{saveErr: boom}
	s := New(docs, &fakeEmergency{}, nil)
	if err := s.Save(context.Background(), domain.NewDocument()); !errors.Is(err, boom) {
		t.Fatalf("expected underlying error, got %v", err)
	}
}

func TestSaveQuotaWithoutExporterOnlyLogs(t *testing.T) {
	docs := &fakeDocs{saveErr: domain.ErrQuotaExceeded}
	s := New(docs, nil, nil)
	if err := s.Save(context.Background(), domain.NewDocument()); err != nil {
		t.Fatalf("Save: %v", err)
	}
}
