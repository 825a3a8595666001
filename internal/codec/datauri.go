package codec

import (
	"encoding/base64"
	"strings"
)

// ToDataURI encodes binary content as a data:<mime>;base64,<payload>
// string for JSON embedding. It always succeeds for valid blobs.
func ToDataURI(blob []byte, mime string) string {
	if mime == "" {
		mime = "application/octet-stream"
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(blob)
}

// ParseDataURI parses the MIME type from the URI header and decodes the
// base64 payload. The third return is false on malformed input; callers
// must check it, no error is ever returned.
func ParseDataURI(uri string) (blob []byte, mime string, ok bool) {
	if !strings.HasPrefix(uri, "data:") {
		return nil, "", false
	}
	header, payload, found := strings.Cut(uri, ",")
	if !found {
		return nil, "", false
	}
	meta := strings.TrimPrefix(header, "data:")
	if !strings.HasSuffix(meta, ";base64") {
		return nil, "", false
	}
	mime = strings.TrimSuffix(meta, ";base64")
	if mime == "" {
		mime = "application/octet-stream"
	}
	blob, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", false
	}
	return blob, mime, true
}
