// Package watermark renders the locked preview of a staged photo: the image
// is downscaled and tiled with a semi-transparent label so the clean artifact
// stays behind the unlock.
package watermark

import (
	"bytes"
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const (
	// DefaultLabel is tiled across locked previews.
	DefaultLabel = "AI HOME STAGING"

	previewMaxWidth = 1024
	tileSpacingX    = 220
	tileSpacingY    = 140
	overlayOpacity  = 0.45
)

// Apply decodes an encoded image, stamps the label across it and re-encodes
// it as JPEG. The input bytes are never modified.
func Apply(encoded []byte, label string) ([]byte, error) {
	if label == "" {
		label = DefaultLabel
	}

	src, err := imaging.Decode(bytes.NewReader(encoded))
	if err != nil {
		return nil, fmt.Errorf("watermark: decode image: %w", err)
	}

	bounds := src.Bounds()
	if bounds.Dx() > previewMaxWidth {
		src = imaging.Resize(src, previewMaxWidth, 0, imaging.Lanczos)
		bounds = src.Bounds()
	}

	overlay := renderLabelTiles(bounds.Dx(), bounds.Dy(), label)
	stamped := imaging.Overlay(src, overlay, image.Pt(0, 0), overlayOpacity)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, stamped, imaging.JPEG, imaging.JPEGQuality(82)); err != nil {
		return nil, fmt.Errorf("watermark: encode preview: %w", err)
	}
	return buf.Bytes(), nil
}

// renderLabelTiles draws the label repeatedly on a transparent canvas,
// offsetting every second row for a diagonal-looking pattern.
func renderLabelTiles(width, height int, label string) *image.NRGBA {
	canvas := image.NewNRGBA(image.Rect(0, 0, width, height))
	drawer := &font.Drawer{
		Dst:  canvas,
		Src:  image.NewUniform(color.NRGBA{R: 255, G: 255, B: 255, A: 255}),
		Face: basicfont.Face7x13,
	}

	row := 0
	for y := tileSpacingY / 2; y < height+tileSpacingY; y += tileSpacingY {
		offset := 0
		if row%2 == 1 {
			offset = tileSpacingX / 2
		}
		for x := -offset; x < width; x += tileSpacingX {
			drawer.Dot = fixed.P(x, y)
			drawer.DrawString(label)
		}
		row++
	}
	return canvas
}
