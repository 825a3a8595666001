package domain

import (
	"encoding/json"
	"strings"
)

// ImageRef is a recipe-held pointer to image content. It is a tagged
// variant: either an inline data-URI (the legacy self-contained form) or
// an opaque identifier resolving to a record in the image store. Both
// forms must be accepted everywhere a reference appears; this is a
// migration-compatibility invariant.
type ImageRef struct {
	inline string
	id     string
}

// InlineRef returns a reference embedding the given data-URI.
func InlineRef(dataURI string) ImageRef { return ImageRef{inline: dataURI} }

// StoredRef returns a reference pointing at an image store record.
func StoredRef(id string) ImageRef { return ImageRef{id: id} }

// IsInline reports whether the reference embeds its content.
func (r ImageRef) IsInline() bool { return r.inline != "" }

// IsZero reports whether the reference is empty.
func (r ImageRef) IsZero() bool { return r.inline == "" && r.id == "" }

// DataURI returns the embedded data-URI, or "" for stored references.
func (r ImageRef) DataURI() string { return r.inline }

// ID returns the image store identifier, or "" for inline references.
func (r ImageRef) ID() string { return r.id }

// String returns the canonical wire form: the data-URI for inline
// references, the bare id otherwise.
func (r ImageRef) String() string {
	if r.inline != "" {
		return r.inline
	}
	return r.id
}

// MarshalJSON always emits the canonical bare-string form.
func (r ImageRef) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.String())
}

// UnmarshalJSON accepts every reference form that has existed on disk:
// a bare string (inline when it carries the data: prefix, a store id
// otherwise) and the intermediate object form {"type":"idb","id":...}
// written by earlier exports.
func (r *ImageRef) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*r = ParseRef(s)
		return nil
	}
	var obj struct {
		Type string `json:"type"`
		ID   string `json:"id"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return err
	}
	*r = StoredRef(obj.ID)
	return nil
}

// ParseRef classifies a raw reference string by its prefix.
func ParseRef(s string) ImageRef {
	if strings.HasPrefix(s, "data:") {
		return InlineRef(s)
	}
	return StoredRef(s)
}
