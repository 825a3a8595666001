// Package backup implements the single-file backup/restore protocol: a
// versioned JSON envelope embedding the metadata document and every image
// record decoded to a data-URI, plus the lightweight metadata-only export
// used for quick sharing and emergency saves.
package backup

import (
	"time"

	"github.com/halvars/receptbox/internal/domain"
)

// EnvelopeVersion is the only envelope version this revision reads and writes.
const EnvelopeVersion = 1

// Meta is the embedded metadata document of an envelope.
type Meta struct {
	Recipes []domain.Recipe `json:"recipes"`
	Theme   string          `json:"theme"`
}

// Image is one image record of an envelope, blob decoded to a data-URI.
type Image struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	Size      int64  `json:"size"`
	W         int    `json:"w"`
	H         int    `json:"h"`
	CreatedAt int64  `json:"createdAt"`
	DataURL   string `json:"dataURL"`
}

// Envelope is the full-backup wire format. It is the only format that
// round-trips images and metadata together.
type Envelope struct {
	Version   int     `json:"version"`
	CreatedAt int64   `json:"createdAt"`
	Note      string  `json:"note,omitempty"`
	Meta      Meta    `json:"meta"`
	Images    []Image `json:"images"`
}

// MetaExport is the metadata-only export format: no images array, usable
// for quick text-only sharing, not disaster recovery.
type MetaExport struct {
	Recipes []domain.Recipe `json:"recipes"`
	Theme   string          `json:"theme"`
	Note    string          `json:"note,omitempty"`
}

// Delivery hands a finished file to the outside world, typically by
// writing it into a downloads directory.
type Delivery interface {
	Deliver(filename, mime string, data []byte) error
}

const stampLayout = "20060102-1504"

// Filename names a full backup file for the given day.
func Filename(t time.Time) string {
	return "baste-recepten-" + t.Format("2006-01-02") + ".json"
}

// MetaFilename names a metadata-only export file.
func MetaFilename(t time.Time) string {
	return "baste-recepten-recept-" + t.Format("2006-01-02") + ".json"
}

// AutoFilename names a periodic auto-backup file.
func AutoFilename(t time.Time) string {
	return "baste-recepten-autobackup-" + t.Format(stampLayout) + ".json"
}

// EmergencyFilename names an emergency export written when persistence
// fails on quota.
func EmergencyFilename(t time.Time) string {
	return "baste-recepten-NOD-export-" + t.Format(stampLayout) + ".json"
}
