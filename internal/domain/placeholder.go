package domain

import "net/url"

// placeholderSVG is the fixed "Ingen bild" fallback image shown whenever
// an image reference cannot be resolved.
const placeholderSVG = `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 800 600"><rect width="100%" height="100%" fill="#203228"/><text x="400" y="300" fill="#cfe9dd" font-family="Segoe UI, Arial" text-anchor="middle" font-size="42" dy=".35em">Ingen bild</text></svg>`

// PlaceholderMime is the MIME type of the placeholder image.
const PlaceholderMime = "image/svg+xml"

// PlaceholderSVG returns the raw placeholder image bytes.
func PlaceholderSVG() []byte { return []byte(placeholderSVG) }

// PlaceholderDataURI returns the placeholder as a self-contained data-URI,
// directly usable as an inline image reference.
func PlaceholderDataURI() string {
	return "data:image/svg+xml;utf8," + url.PathEscape(placeholderSVG)
}
