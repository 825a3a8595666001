// Package codec converts between raw image data, a compact re-encoded
// binary form bounded in size, and the textual data-URI form used for
// JSON embedding. It is the only package that touches pixel data.
package codec

import (
	"bytes"
	"fmt"
	"image"
	"math"

	"image/jpeg"
	"image/png"

	_ "image/gif" // gif decode support

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // webp decode support

	"github.com/halvars/receptbox/internal/domain"
)

// Encoded is the result of an encode or re-encode pass.
type Encoded struct {
	Blob     []byte
	Width    int
	Height   int
	MimeType string
}

// Codec applies a fixed resize/recompress policy to uploaded images.
type Codec struct {
	// MaxSide bounds both output dimensions; aspect ratio is preserved.
	MaxSide int
	// Quality is the JPEG output quality (1-100). PNG output ignores it.
	Quality int
	// HugeSide triggers coarse halving passes before the final resize to
	// reduce resampling artifacts on extremely large sources.
	HugeSide int
}

// EncodeUpload decodes an arbitrary uploaded image, scales it so neither
// dimension exceeds MaxSide, and re-encodes it. Sources in formats that
// can carry an alpha channel (png, gif, webp) come out as PNG, everything
// else as JPEG at the configured quality. Returns domain.ErrCodec when
// the input cannot be decoded as an image.
func (c Codec) EncodeUpload(raw []byte) (*Encoded, error) {
	img, format, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrCodec, err)
	}
	img = c.fit(img)
	return encode(img, alphaFormat(format), c.Quality)
}

// Reencode applies the same proportional resize to an already-stored blob
// for optimization passes. The second return is false when the blob
// cannot be decoded; the caller must then leave the original untouched.
func Reencode(blob []byte, maxSide, quality int) (*Encoded, bool) {
	img, format, err := image.Decode(bytes.NewReader(blob))
	if err != nil {
		return nil, false
	}
	img = Codec{MaxSide: maxSide}.fit(img)
	enc, err := encode(img, alphaFormat(format), quality)
	if err != nil {
		return nil, false
	}
	return enc, true
}

// alphaFormat reports whether the decoded format plausibly carries an
// alpha channel and should stay in a lossless/alpha-capable encoding.
func alphaFormat(format string) bool {
	switch format {
	case "png", "gif", "webp":
		return true
	}
	return false
}

func encode(img image.Image, alpha bool, quality int) (*Encoded, error) {
	b := img.Bounds()
	var buf bytes.Buffer
	var mime string
	if alpha {
		mime = "image/png"
		if err := png.Encode(&buf, img); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrCodec, err)
		}
	} else {
		mime = "image/jpeg"
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrCodec, err)
		}
	}
	return &Encoded{Blob: buf.Bytes(), Width: b.Dx(), Height: b.Dy(), MimeType: mime}, nil
}

// fit scales img so that neither dimension exceeds MaxSide, preserving
// aspect ratio. Images at or under the bound are returned unchanged.
// Sources whose longest side exceeds HugeSide are first halved coarsely.
func (c Codec) fit(img image.Image) image.Image {
	if c.HugeSide > 0 {
		for longest(img) > c.HugeSide {
			img = scaleTo(img, halfDims(img), draw.ApproxBiLinear)
		}
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	scale := math.Min(1, math.Min(float64(c.MaxSide)/float64(w), float64(c.MaxSide)/float64(h)))
	tw := int(math.Round(float64(w) * scale))
	th := int(math.Round(float64(h) * scale))
	if tw < 1 {
		tw = 1
	}
	if th < 1 {
		th = 1
	}
	if tw == w && th == h {
		return img
	}
	return scaleTo(img, image.Rect(0, 0, tw, th), draw.CatmullRom)
}

func longest(img image.Image) int {
	b := img.Bounds()
	if b.Dx() > b.Dy() {
		return b.Dx()
	}
	return b.Dy()
}

func halfDims(img image.Image) image.Rectangle {
	b := img.Bounds()
	w, h := b.Dx()/2, b.Dy()/2
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	return image.Rect(0, 0, w, h)
}

func scaleTo(img image.Image, r image.Rectangle, k draw.Scaler) image.Image {
	dst := image.NewRGBA(r)
	k.Scale(dst, r, img, img.Bounds(), draw.Over, nil)
	return dst
}
