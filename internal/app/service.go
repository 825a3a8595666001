// Package app contains the orchestration layer of the recipe box. The
// Service owns the in-memory metadata document and wires domain
// validation with the persistence ports. Every logical mutation follows
// the mutate-then-Persist contract: nothing is persisted implicitly.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/halvars/receptbox/internal/backup"
	"github.com/halvars/receptbox/internal/codec"
	"github.com/halvars/receptbox/internal/domain"
	"github.com/halvars/receptbox/internal/optimize"
	"github.com/halvars/receptbox/internal/store"
)

// Counter names recorded through the Recorder port.
const (
	CounterRecipesSaved    = "recipes_saved_total"
	CounterRecipesDeleted  = "recipes_deleted_total"
	CounterImagesStored    = "images_stored_total"
	CounterBackupsExported = "backups_exported_total"
	CounterBackupsRestored = "backups_restored_total"
	CounterOptimizeRuns    = "optimize_runs_total"
)

// Service orchestrates the recipe-box use-cases over the injected ports.
type Service struct {
	Docs     store.DocumentStore
	Images   store.ImageStore
	Delivery Delivery
	Clock    Clock
	Codec    codec.Codec
	Optimize optimize.Config
	Metrics  Recorder
	Logger   *slog.Logger

	doc *domain.Document

	mu         sync.Mutex
	restoring  bool
	optimizing bool
}

// Load reads (and migrates) the persisted document into memory. It must
// be called once before any other operation.
func (s *Service) Load(ctx context.Context) error {
	doc, err := s.Docs.Load(ctx)
	if err != nil {
		return err
	}
	s.doc = doc
	return nil
}

// Document exposes the in-memory document. Mutating callers must invoke
// Persist afterwards or lose the change on reload.
func (s *Service) Document() *domain.Document { return s.doc }

// Persist writes the in-memory document through the document store.
func (s *Service) Persist(ctx context.Context) error {
	return s.Docs.Save(ctx, s.doc)
}

// SaveRecipeInput carries the raw form fields of a new recipe.
type SaveRecipeInput struct {
	Title        string
	Category     string
	Favorite     bool
	Ingredients  string // free text, one ingredient per line
	Instructions string
	Tags         string // comma separated
	Uploads      [][]byte
}

// SaveRecipe encodes the uploaded images, stores them, appends the new
// recipe and persists the document. Uploads that cannot be decoded are
// skipped and counted; a recipe saved without images gets an empty
// reference list and creates no image records.
func (s *Service) SaveRecipe(ctx context.Context, in SaveRecipeInput) (*domain.Recipe, int, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, 0, fmt.Errorf("%w: title must not be empty", domain.ErrValidation)
	}
	if !domain.ValidCategory(in.Category) {
		return nil, 0, fmt.Errorf("%w: unknown category %q", domain.ErrValidation, in.Category)
	}
	refs := []domain.ImageRef{}
	skipped := 0
	for _, raw := range in.Uploads {
		enc, err := s.Codec.EncodeUpload(raw)
		if err != nil {
			skipped++
			s.log().Warn("skipping undecodable upload", "error", err)
			continue
		}
		id, err := s.Images.Put(ctx, enc.Blob, store.PutOptions{
			MimeType: enc.MimeType,
			Width:    enc.Width,
			Height:   enc.Height,
		})
		if err != nil {
			return nil, skipped, err
		}
		refs = append(refs, domain.StoredRef(id))
		s.count(CounterImagesStored, 1)
	}
	rec := domain.Recipe{
		ID:           domain.NewID(),
		Title:        title,
		Category:     in.Category,
		Favorite:     in.Favorite,
		Images:       refs,
		Ingredients:  domain.ParseLines(in.Ingredients),
		Instructions: strings.TrimSpace(in.Instructions),
		Tags:         domain.ParseTags(in.Tags),
		CreatedAt:    s.Clock.Now().UnixMilli(),
	}
	s.doc.Recipes = append(s.doc.Recipes, rec)
	if err := s.Persist(ctx); err != nil {
		return nil, skipped, err
	}
	s.count(CounterRecipesSaved, 1)
	return &s.doc.Recipes[len(s.doc.Recipes)-1], skipped, nil
}

// DeleteRecipe removes a recipe and the stored image records it owns.
// Records still referenced by another recipe are left in place.
func (s *Service) DeleteRecipe(ctx context.Context, id string) error {
	rec := s.doc.Find(id)
	if rec == nil {
		return domain.ErrNotFound
	}
	owned := rec.Images
	s.doc.Remove(id)
	for _, ref := range owned {
		if ref.IsInline() || ref.ID() == "" || s.referenced(ref.ID()) {
			continue
		}
		if err := s.Images.Delete(ctx, ref.ID()); err != nil {
			s.log().Warn("delete image record", "id", ref.ID(), "error", err)
		}
	}
	if err := s.Persist(ctx); err != nil {
		return err
	}
	s.count(CounterRecipesDeleted, 1)
	return nil
}

// ToggleFavorite flips a recipe's favorite flag and persists.
func (s *Service) ToggleFavorite(ctx context.Context, id string) (bool, error) {
	rec := s.doc.Find(id)
	if rec == nil {
		return false, domain.ErrNotFound
	}
	rec.Favorite = !rec.Favorite
	return rec.Favorite, s.Persist(ctx)
}

// SetTheme switches the document theme and persists.
func (s *Service) SetTheme(ctx context.Context, theme string) error {
	ok := false
	for _, t := range domain.Themes {
		if t == theme {
			ok = true
		}
	}
	if !ok {
		return fmt.Errorf("%w: unknown theme %q", domain.ErrValidation, theme)
	}
	s.doc.Theme = theme
	return s.Persist(ctx)
}

// ResolveImage returns the binary content and MIME type for an image
// reference. A reference that cannot be resolved (missing record,
// malformed inline data) yields the fixed placeholder image, never an
// error; only a failing store read propagates.
func (s *Service) ResolveImage(ctx context.Context, ref domain.ImageRef) ([]byte, string, error) {
	if ref.IsInline() {
		if blob, mime, ok := codec.ParseDataURI(ref.DataURI()); ok {
			return blob, mime, nil
		}
		return domain.PlaceholderSVG(), domain.PlaceholderMime, nil
	}
	if ref.ID() == "" {
		return domain.PlaceholderSVG(), domain.PlaceholderMime, nil
	}
	rec, err := s.Images.Get(ctx, ref.ID())
	if err != nil {
		return nil, "", err
	}
	if rec == nil {
		return domain.PlaceholderSVG(), domain.PlaceholderMime, nil
	}
	return rec.Blob, rec.MimeType, nil
}

// Search matches q case-insensitively against titles, ingredient lines
// and tags, preserving document order.
func (s *Service) Search(q string) []domain.Recipe {
	q = strings.ToLower(strings.TrimSpace(q))
	var out []domain.Recipe
	for _, r := range s.doc.Recipes {
		if matches(r, q) {
			out = append(out, r)
		}
	}
	return out
}

func matches(r domain.Recipe, q string) bool {
	if strings.Contains(strings.ToLower(r.Title), q) {
		return true
	}
	for _, i := range r.Ingredients {
		if strings.Contains(strings.ToLower(i), q) {
			return true
		}
	}
	for _, t := range r.Tags {
		if strings.Contains(t, q) {
			return true
		}
	}
	return false
}

// ListByCategory returns the recipes of one category sorted by title
// using Swedish collation, as the category views display them.
func (s *Service) ListByCategory(cat string) []domain.Recipe {
	var out []domain.Recipe
	for _, r := range s.doc.Recipes {
		if r.Category == cat {
			out = append(out, r)
		}
	}
	coll := collate.New(language.Swedish, collate.Loose)
	sort.SliceStable(out, func(i, j int) bool {
		return coll.CompareString(out[i].Title, out[j].Title) < 0
	})
	return out
}

// Favorites returns all favorited recipes in document order.
func (s *Service) Favorites() []domain.Recipe {
	var out []domain.Recipe
	for _, r := range s.doc.Recipes {
		if r.Favorite {
			out = append(out, r)
		}
	}
	return out
}

// Recent returns the n most recently created recipes, newest first.
func (s *Service) Recent(n int) []domain.Recipe {
	out := append([]domain.Recipe(nil), s.doc.Recipes...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt > out[j].CreatedAt })
	if len(out) > n {
		out = out[:n]
	}
	return out
}

// ExportAll produces the full backup envelope and hands it to the
// delivery collaborator. Returns the delivered filename.
func (s *Service) ExportAll(ctx context.Context, progress backup.Progress) (string, error) {
	now := s.Clock.Now()
	data, err := backup.Export(ctx, s.doc, s.Images, now, progress)
	if err != nil {
		return "", err
	}
	name := backup.Filename(now)
	if err := s.Delivery.Deliver(name, "application/json", data); err != nil {
		return "", err
	}
	s.count(CounterBackupsExported, 1)
	return name, nil
}

// ExportMetadataOnly produces the lightweight recipes-only export.
func (s *Service) ExportMetadataOnly(ctx context.Context) (string, error) {
	data, err := backup.ExportMetadata(s.doc, "")
	if err != nil {
		return "", err
	}
	name := backup.MetaFilename(s.Clock.Now())
	if err := s.Delivery.Deliver(name, "application/json", data); err != nil {
		return "", err
	}
	s.count(CounterBackupsExported, 1)
	return name, nil
}

// ImportFile dispatches an imported backup file: a valid version-1
// envelope triggers the destructive full restore, anything else is
// treated as a legacy metadata-only document and merged additively.
func (s *Service) ImportFile(ctx context.Context, data []byte) (backup.RestoreResult, error) {
	if _, err := backup.Validate(data); err == nil {
		return s.Restore(ctx, data)
	}
	added, err := s.ImportMetadata(ctx, data)
	if err != nil {
		return backup.RestoreResult{}, err
	}
	return backup.RestoreResult{Recipes: added}, nil
}

// Restore replaces all local state from a version-1 backup envelope.
// Concurrent restores are rejected with domain.ErrBusy.
func (s *Service) Restore(ctx context.Context, data []byte) (backup.RestoreResult, error) {
	if !s.acquire(&s.restoring) {
		return backup.RestoreResult{}, domain.ErrBusy
	}
	defer s.release(&s.restoring)
	res, err := backup.Import(ctx, data, s.doc, s.Docs, s.Images, s.log())
	if err == nil {
		s.count(CounterBackupsRestored, 1)
	}
	return res, err
}

// ImportMetadata additively merges a metadata-only export and persists.
func (s *Service) ImportMetadata(ctx context.Context, data []byte) (int, error) {
	added, err := backup.ImportMetadata(data, s.doc)
	if err != nil {
		return 0, err
	}
	if err := s.Persist(ctx); err != nil {
		return added, err
	}
	return added, nil
}

// RunOptimize performs the storage optimization pass. Concurrent runs
// are rejected with domain.ErrBusy.
func (s *Service) RunOptimize(ctx context.Context) (optimize.Report, error) {
	if !s.acquire(&s.optimizing) {
		return optimize.Report{}, domain.ErrBusy
	}
	defer s.release(&s.optimizing)
	cfg := s.Optimize
	if cfg.Logger == nil {
		cfg.Logger = s.log()
	}
	rep, err := optimize.Run(ctx, s.doc, s.Docs, s.Images, cfg)
	if err == nil {
		s.count(CounterOptimizeRuns, 1)
	}
	return rep, err
}

// Usage summarizes image store consumption without loading blobs.
type Usage struct {
	Recipes    int
	Images     int
	ImageBytes int64
}

// Stats reports current storage usage.
func (s *Service) Stats(ctx context.Context) (Usage, error) {
	infos, err := s.Images.ListInfo(ctx)
	if err != nil {
		return Usage{}, err
	}
	u := Usage{Recipes: len(s.doc.Recipes), Images: len(infos)}
	for _, in := range infos {
		u.ImageBytes += in.ByteSize
	}
	return u, nil
}

func (s *Service) acquire(flag *bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if *flag {
		return false
	}
	*flag = true
	return true
}

func (s *Service) release(flag *bool) {
	s.mu.Lock()
	*flag = false
	s.mu.Unlock()
}

// referenced reports whether any recipe still references the stored id.
func (s *Service) referenced(id string) bool {
	for _, r := range s.doc.Recipes {
		for _, ref := range r.Images {
			if ref.ID() == id {
				return true
			}
		}
	}
	return false
}

func (s *Service) count(name string, delta int64) {
	if s.Metrics != nil {
		s.Metrics.Inc(name, delta)
	}
}

func (s *Service) log() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}
