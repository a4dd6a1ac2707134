// pkg/picture/trim.go

package picture

import (
	"image"
	"image/color"

	"github.com/disintegration/imaging"
)

// White is the background used for invoice pages.
var White = color.NRGBA{R: 255, G: 255, B: 255, A: 255}

// Flatten returns an opaque copy of img. Images that may carry transparency
// are composited onto bg first.
func Flatten(img image.Image, bg color.Color) *image.NRGBA {
	if opaque(img) {
		return imaging.Clone(img)
	}
	b := img.Bounds()
	canvas := imaging.New(b.Dx(), b.Dy(), bg)
	return imaging.Overlay(canvas, img, image.Pt(0, 0), 1.0)
}

func opaque(img image.Image) bool {
	if o, ok := img.(interface{ Opaque() bool }); ok {
		return o.Opaque()
	}
	return false
}

// Trim flattens img onto bg and crops away the uniform bg-coloured margins.
// An image made only of background comes back flattened but uncropped.
// Trim does not fail: if processing breaks down it returns img unchanged.
func Trim(img image.Image, bg color.Color) (out image.Image) {
	if img == nil || img.Bounds().Empty() {
		return img
	}
	defer func() {
		if recover() != nil {
			out = img
		}
	}()

	flat := Flatten(img, bg)
	box := contentBounds(flat, bg)
	if box.Empty() {
		return flat
	}
	return imaging.Crop(flat, box)
}

// contentBounds is the smallest rectangle holding every pixel that differs
// from bg.
func contentBounds(img *image.NRGBA, bg color.Color) image.Rectangle {
	c := color.NRGBAModel.Convert(bg).(color.NRGBA)
	b := img.Bounds()
	minX, minY, maxX, maxY := b.Max.X, b.Max.Y, b.Min.X-1, b.Min.Y-1
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := img.Pix[(y-b.Min.Y)*img.Stride:]
		for x := b.Min.X; x < b.Max.X; x++ {
			p := row[(x-b.Min.X)*4:]
			if p[0] == c.R && p[1] == c.G && p[2] == c.B {
				continue
			}
			if x < minX {
				minX = x
			}
			if x > maxX {
				maxX = x
			}
			if y < minY {
				minY = y
			}
			if y > maxY {
				maxY = y
			}
		}
	}
	if maxX < minX {
		return image.Rectangle{}
	}
	return image.Rect(minX, minY, maxX+1, maxY+1)
}
