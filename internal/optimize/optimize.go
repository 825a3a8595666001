// Package optimize implements the on-demand maintenance pass that
// re-encodes stored images at a smaller target size and migrates legacy
// inline image references into the image store. It never enlarges a
// stored image and never aborts the whole pass for one bad image.
package optimize

import (
	"context"
	"log/slog"

	"github.com/halvars/receptbox/internal/codec"
	"github.com/halvars/receptbox/internal/domain"
	"github.com/halvars/receptbox/internal/store"
)

// Config holds the optimizer's target encoding parameters.
type Config struct {
	MaxSide int
	Quality int
	Logger  *slog.Logger
}

// Report aggregates the outcome of one pass for user feedback.
type Report struct {
	BytesBefore int64
	BytesAfter  int64
	Migrated    int // legacy inline refs moved into the image store
	Reencoded   int // stored records replaced by a strictly smaller encoding
	Skipped     int // refs left untouched (undecodable, missing, or store error)
}

// Saved reports the total byte reduction of the pass.
func (r Report) Saved() int64 { return r.BytesBefore - r.BytesAfter }

// Run walks every image reference of every recipe. Legacy inline
// data-URIs are re-encoded and moved into the image store under a new id,
// with the recipe's reference rewritten in place and the document
// persisted immediately after each rewrite. References that are already
// store ids get their record re-encoded in place, kept only when strictly
// smaller. Each stored id is processed once even when shared.
func Run(ctx context.Context, doc *domain.Document, docs store.DocumentStore, images store.ImageStore, cfg Config) (Report, error) {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	log = log.With("domain", "optimize")
	var rep Report
	seen := make(map[string]struct{})
	for ri := range doc.Recipes {
		rec := &doc.Recipes[ri]
		rewritten := false
		for ii := range rec.Images {
			ref := rec.Images[ii]
			switch {
			case ref.IsInline():
				newRef, before, after, ok := migrateInline(ctx, ref, images, cfg)
				if !ok {
					rep.Skipped++
					log.Warn("inline image not migrated", "recipe", rec.ID)
					continue
				}
				rec.Images[ii] = newRef
				rewritten = true
				rep.Migrated++
				rep.BytesBefore += before
				rep.BytesAfter += after
			case ref.ID() != "":
				if _, done := seen[ref.ID()]; done {
					continue
				}
				seen[ref.ID()] = struct{}{}
				before, after, shrunk, ok := shrinkStored(ctx, ref.ID(), images, cfg)
				if !ok {
					rep.Skipped++
					continue
				}
				if shrunk {
					rep.Reencoded++
				}
				rep.BytesBefore += before
				rep.BytesAfter += after
			}
		}
		if rewritten {
			// Persist now: deferring would lose the rewritten ids on a
			// crash while the new blobs already occupy storage.
			if err := docs.Save(ctx, doc); err != nil {
				return rep, err
			}
		}
	}
	log.Info("optimize pass complete",
		"migrated", rep.Migrated, "reencoded", rep.Reencoded, "skipped", rep.Skipped,
		"bytes_before", rep.BytesBefore, "bytes_after", rep.BytesAfter)
	return rep, nil
}

// migrateInline moves a legacy inline data-URI into the image store under
// a newly generated id.
func migrateInline(ctx context.Context, ref domain.ImageRef, images store.ImageStore, cfg Config) (domain.ImageRef, int64, int64, bool) {
	blob, _, ok := codec.ParseDataURI(ref.DataURI())
	if !ok {
		return domain.ImageRef{}, 0, 0, false
	}
	enc, ok := codec.Reencode(blob, cfg.MaxSide, cfg.Quality)
	if !ok {
		return domain.ImageRef{}, 0, 0, false
	}
	id, err := images.Put(ctx, enc.Blob, store.PutOptions{
		MimeType: enc.MimeType,
		Width:    enc.Width,
		Height:   enc.Height,
	})
	if err != nil {
		return domain.ImageRef{}, 0, 0, false
	}
	return domain.StoredRef(id), int64(len(blob)), int64(len(enc.Blob)), true
}

// shrinkStored re-encodes a stored record in place, keeping the result
// only when strictly smaller than the original.
func shrinkStored(ctx context.Context, id string, images store.ImageStore, cfg Config) (before, after int64, shrunk, ok bool) {
	rec, err := images.Get(ctx, id)
	if err != nil || rec == nil {
		return 0, 0, false, false
	}
	enc, decOK := codec.Reencode(rec.Blob, cfg.MaxSide, cfg.Quality)
	if !decOK {
		return 0, 0, false, false
	}
	if int64(len(enc.Blob)) >= rec.ByteSize {
		return rec.ByteSize, rec.ByteSize, false, true
	}
	if _, err := images.Put(ctx, enc.Blob, store.PutOptions{
		ID:        id, // same id, no reference rewrite needed
		MimeType:  enc.MimeType,
		Width:     enc.Width,
		Height:    enc.Height,
		CreatedAt: rec.CreatedAt,
	}); err != nil {
		return 0, 0, false, false
	}
	return rec.ByteSize, int64(len(enc.Blob)), true, true
}
