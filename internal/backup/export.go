package backup

import (
	"context"
	"encoding/json"
	"time"

	"github.com/halvars/receptbox/internal/codec"
	"github.com/halvars/receptbox/internal/domain"
	"github.com/halvars/receptbox/internal/store"
)

// Progress reports per-image export progress for UI feedback. It carries
// no correctness weight; only sequencing does.
type Progress func(done, total int)

// Export snapshots the document and every image record into a version-1
// envelope and serializes it to JSON. Blobs are converted to data-URIs
// one record at a time; progress, when non-nil, is called after each.
func Export(ctx context.Context, doc *domain.Document, images store.ImageStore, now time.Time, progress Progress) ([]byte, error) {
	recs, err := images.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	env := Envelope{
		Version:   EnvelopeVersion,
		CreatedAt: now.UnixMilli(),
		Note:      "Fullständig säkerhetskopia med bilder.",
		Meta:      Meta{Recipes: doc.Recipes, Theme: doc.Theme},
		Images:    make([]Image, 0, len(recs)),
	}
	for i := range recs {
		rec := &recs[i]
		env.Images = append(env.Images, Image{
			ID:        rec.ID,
			Type:      rec.MimeType,
			Size:      rec.ByteSize,
			W:         rec.Width,
			H:         rec.Height,
			CreatedAt: rec.CreatedAt,
			DataURL:   codec.ToDataURI(rec.Blob, rec.MimeType),
		})
		rec.Blob = nil // release the raw blob before converting the next
		if progress != nil {
			progress(i+1, len(recs))
		}
	}
	return json.MarshalIndent(env, "", "  ")
}

// ExportMetadata serializes only the metadata document with an
// explanatory note that images are not included.
func ExportMetadata(doc *domain.Document, note string) ([]byte, error) {
	if note == "" {
		note = "Endast receptdata; bilder ingår ej."
	}
	return json.MarshalIndent(MetaExport{Recipes: doc.Recipes, Theme: doc.Theme, Note: note}, "", "  ")
}

// Emergency implements store.EmergencyExporter by delivering a
// metadata-only export under the NÖD filename.
type Emergency struct {
	Delivery Delivery
	Now      func() time.Time
}

var _ store.EmergencyExporter = Emergency{}

// ExportEmergency writes the best-effort metadata-only export.
func (e Emergency) ExportEmergency(doc *domain.Document) error {
	now := time.Now
	if e.Now != nil {
		now = e.Now
	}
	data, err := ExportMetadata(doc, "NÖD-export: lagringsgränsen nåddes vid sparning. Bilder ingår ej.")
	if err != nil {
		return err
	}
	return e.Delivery.Deliver(EmergencyFilename(now()), "application/json", data)
}
