// pkg/picture/fit.go

package picture

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/disintegration/imaging"
)

// A4 portrait geometry in millimetres.
const (
	PageWidthMM    = 210.0
	PageMarginMM   = 15.0
	ContentWidthMM = PageWidthMM - 2*PageMarginMM

	mmPerInch = 25.4
)

var ErrEmptyImage = errors.New("picture: image has zero area")

// Fitted is an image ready to be placed on a page.
type Fitted struct {
	WidthMM  float64
	HeightMM float64
	PNG      []byte
}

// Fit sizes b to at most maxWidthMM wide and, when maxHeightMM > 0, at most
// maxHeightMM high, keeping the aspect ratio. Images are only ever scaled
// down, and never wider than the page content area.
func Fit(b *Bitmap, maxWidthMM, maxHeightMM float64) (*Fitted, error) {
	if b.Empty() {
		return nil, ErrEmptyImage
	}
	flat := Flatten(b.Image, White)

	dpi := b.EffectiveDPI()
	size := flat.Bounds().Size()
	w := float64(size.X) * mmPerInch / dpi
	h := float64(size.Y) * mmPerInch / dpi
	ratio := h / w

	if maxWidthMM > 0 && w > maxWidthMM {
		w = maxWidthMM
		h = w * ratio
	}
	if maxHeightMM > 0 && h > maxHeightMM {
		h = maxHeightMM
		w = h / ratio
	}
	if w > ContentWidthMM {
		w = ContentWidthMM
		h = w * ratio
	}
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("picture: degenerate target size %.2fx%.2f mm", w, h)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, flat, imaging.PNG); err != nil {
		return nil, fmt.Errorf("picture: encode: %w", err)
	}
	return &Fitted{WidthMM: w, HeightMM: h, PNG: buf.Bytes()}, nil
}

// Downscale shrinks b to at most maxWidthPx pixels wide, keeping the
// declared density.
func Downscale(b *Bitmap, maxWidthPx int) *Bitmap {
	if b.Empty() || b.Image.Bounds().Dx() <= maxWidthPx {
		return b
	}
	return &Bitmap{Image: imaging.Resize(b.Image, maxWidthPx, 0, imaging.Lanczos), DPI: b.DPI}
}
