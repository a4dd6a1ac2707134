// pkg/picture/picture.go

// Package picture prepares logo and signature bitmaps for embedding in
// invoice documents.
package picture

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"image"
	"os"

	"github.com/disintegration/imaging"
)

// DefaultDPI applies when an image does not declare a usable density.
const DefaultDPI = 72.0

// Bitmap is a decoded image together with its declared pixel density.
// DPI is zero when the file did not declare one.
type Bitmap struct {
	Image image.Image
	DPI   float64
}

// Empty reports whether there is nothing to draw.
func (b *Bitmap) Empty() bool {
	return b == nil || b.Image == nil || b.Image.Bounds().Empty()
}

// EffectiveDPI returns the declared density or DefaultDPI.
func (b *Bitmap) EffectiveDPI() float64 {
	if b.DPI > 0 {
		return b.DPI
	}
	return DefaultDPI
}

// Decode reads a PNG, JPEG or GIF image, honouring EXIF orientation.
func Decode(data []byte) (*Bitmap, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("picture: decode: %w", err)
	}
	return &Bitmap{Image: img, DPI: density(data)}, nil
}

// Load decodes the image file at path.
func Load(path string) (*Bitmap, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("picture: %w", err)
	}
	return Decode(data)
}

var pngSignature = []byte("\x89PNG\r\n\x1a\n")

// density extracts the horizontal DPI from PNG pHYs or JPEG JFIF headers.
func density(data []byte) float64 {
	switch {
	case bytes.HasPrefix(data, pngSignature):
		return pngDensity(data[len(pngSignature):])
	case len(data) > 2 && data[0] == 0xFF && data[1] == 0xD8:
		return jfifDensity(data[2:])
	}
	return 0
}

func pngDensity(b []byte) float64 {
	for len(b) >= 12 {
		n := int(binary.BigEndian.Uint32(b[:4]))
		typ := string(b[4:8])
		if n < 0 || len(b) < 12+n {
			return 0
		}
		chunk := b[8 : 8+n]
		switch typ {
		case "pHYs":
			if n < 9 || chunk[8] != 1 {
				return 0
			}
			// pixels per metre
			return float64(binary.BigEndian.Uint32(chunk[:4])) * 0.0254
		case "IDAT", "IEND":
			return 0
		}
		b = b[12+n:]
	}
	return 0
}

func jfifDensity(b []byte) float64 {
	for len(b) >= 4 && b[0] == 0xFF {
		marker := b[1]
		if marker == 0xDA || marker == 0xD9 {
			return 0
		}
		n := int(binary.BigEndian.Uint16(b[2:4]))
		if n < 2 || len(b) < 2+n {
			return 0
		}
		seg := b[4 : 2+n]
		if marker == 0xE0 && len(seg) >= 12 && string(seg[:5]) == "JFIF\x00" {
			units := seg[7]
			x := float64(binary.BigEndian.Uint16(seg[8:10]))
			switch units {
			case 1:
				return x
			case 2:
				return x * 2.54
			}
			return 0
		}
		b = b[2+n:]
	}
	return 0
}
