package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"strings"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// bandColor is the translucent backdrop drawn behind watermark text.
var bandColor = color.NRGBA{R: 0, G: 0, B: 0, A: 110}

// Watermark stamps text in the bottom-right corner of the image on a
// translucent band and returns the result as PNG. The text is scaled
// with the image so it stays readable on large outputs.
func Watermark(data []byte, text string) ([]byte, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return data, nil
	}

	src, err := decode(data)
	if err != nil {
		return nil, err
	}
	b := src.Bounds()

	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)

	label := renderText(text)
	lw, lh := label.Bounds().Dx(), label.Bounds().Dy()

	// Text height is about 3% of the image height.
	scale := max(1, b.Dy()*3/100/lh)
	for scale > 1 && lw*scale > b.Dx()*9/10 {
		scale--
	}
	tw, th := lw*scale, lh*scale
	pad := max(4, th/3)

	band := image.Rect(b.Dx()-tw-2*pad, b.Dy()-th-2*pad, b.Dx(), b.Dy()).Intersect(dst.Bounds())
	draw.Draw(dst, band, image.NewUniform(bandColor), image.Point{}, draw.Over)

	textRect := image.Rect(band.Max.X-pad-tw, band.Max.Y-pad-th, band.Max.X-pad, band.Max.Y-pad)
	draw.NearestNeighbor.Scale(dst, textRect, label, label.Bounds(), draw.Over, nil)

	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return nil, fmt.Errorf("imaging: encode watermark: %w", err)
	}
	return buf.Bytes(), nil
}

// renderText draws text in white on a transparent image sized to fit it.
func renderText(text string) *image.RGBA {
	face := basicfont.Face7x13
	width := font.MeasureString(face, text).Ceil()
	metrics := face.Metrics()
	height := (metrics.Ascent + metrics.Descent).Ceil()

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(color.White),
		Face: face,
		Dot:  fixed.Point26_6{X: 0, Y: metrics.Ascent},
	}
	d.DrawString(text)
	return img
}
