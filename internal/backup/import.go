package backup

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/halvars/receptbox/internal/codec"
	"github.com/halvars/receptbox/internal/domain"
	"github.com/halvars/receptbox/internal/store"
)

// RestoreResult summarizes a completed restore.
type RestoreResult struct {
	Recipes int // recipes now in the document
	Images  int // image records restored
	Skipped int // envelope images dropped (undecodable data-URI)
}

// envelopeIn mirrors Envelope with pointers so absent fields can be told
// apart from empty ones during validation.
type envelopeIn struct {
	Version *int `json:"version"`
	Meta    *struct {
		Recipes []domain.Recipe `json:"recipes"`
		Theme   string          `json:"theme"`
	} `json:"meta"`
	Images []Image `json:"images"`
}

// Validate parses data as a version-1 envelope without touching any
// store. It fails with domain.ErrValidation on a missing version, a
// missing metadata recipe array, or a missing images array.
func Validate(data []byte) (*Envelope, error) {
	var in envelopeIn
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	if in.Version == nil || *in.Version != EnvelopeVersion {
		return nil, fmt.Errorf("%w: unsupported or missing version", domain.ErrValidation)
	}
	if in.Meta == nil || in.Meta.Recipes == nil {
		return nil, fmt.Errorf("%w: missing recipe metadata", domain.ErrValidation)
	}
	if in.Images == nil {
		return nil, fmt.Errorf("%w: missing images array", domain.ErrValidation)
	}
	return &Envelope{
		Version: *in.Version,
		Meta:    Meta{Recipes: in.Meta.Recipes, Theme: in.Meta.Theme},
		Images:  in.Images,
	}, nil
}

// Import destructively replaces all local state from an envelope:
// validate, clear the image store, repopulate it under the envelope's own
// ids (reference stability), then overwrite and persist the document.
// Undecodable images are skipped; a failing store write aborts the
// restore, leaving the document untouched. Retrying from the same file
// is safe because Clear is unconditional and Put overwrites by id.
func Import(ctx context.Context, data []byte, doc *domain.Document, docs store.DocumentStore, images store.ImageStore, log *slog.Logger) (RestoreResult, error) {
	if log == nil {
		log = slog.Default()
	}
	log = log.With("domain", "restore")
	env, err := Validate(data)
	if err != nil {
		return RestoreResult{}, err
	}
	if err := images.Clear(ctx); err != nil {
		return RestoreResult{}, err
	}
	var res RestoreResult
	for i := range env.Images {
		img := &env.Images[i]
		blob, mime, ok := codec.ParseDataURI(img.DataURL)
		if !ok {
			res.Skipped++
			log.Warn("skipping undecodable backup image", "id", img.ID)
			continue
		}
		if mime == "application/octet-stream" && img.Type != "" {
			mime = img.Type
		}
		if _, err := images.Put(ctx, blob, store.PutOptions{
			ID:        img.ID,
			MimeType:  mime,
			Width:     img.W,
			Height:    img.H,
			CreatedAt: img.CreatedAt,
		}); err != nil {
			return res, fmt.Errorf("restore image %s: %w", img.ID, err)
		}
		res.Images++
	}
	doc.Recipes = env.Meta.Recipes
	if doc.Recipes == nil {
		doc.Recipes = []domain.Recipe{}
	}
	if env.Meta.Theme != "" {
		doc.Theme = env.Meta.Theme
	}
	if err := docs.Save(ctx, doc); err != nil {
		return res, err
	}
	res.Recipes = len(doc.Recipes)
	log.Info("restore complete", "recipes", res.Recipes, "images", res.Images, "skipped", res.Skipped)
	return res, nil
}

// ImportMetadata merges a metadata-only export (or any legacy file
// lacking version/images) into the document: recipes whose id is already
// present are rejected, new ones are appended, the theme is adopted when
// the file carries one. The caller persists the document afterwards.
func ImportMetadata(data []byte, doc *domain.Document) (added int, err error) {
	var in struct {
		Recipes []domain.Recipe `json:"recipes"`
		Theme   string          `json:"theme"`
	}
	if err := json.Unmarshal(data, &in); err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	if in.Recipes == nil {
		return 0, fmt.Errorf("%w: missing recipe array", domain.ErrValidation)
	}
	src := domain.Document{Recipes: in.Recipes}
	added = doc.Merge(&src)
	if in.Theme != "" {
		doc.Theme = in.Theme
	}
	return added, nil
}
