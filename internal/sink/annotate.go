package sink

import (
	"image"
	"image/color"

	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const labelPadding = 2

// Annotate returns a copy of img with label printed in white on a black band centered
// along the bottom edge.
func Annotate(img image.Image, label string) *image.NRGBA {
	dst := imaging.Clone(img)
	face := basicfont.Face7x13

	textW := font.MeasureString(face, label).Ceil()
	band := imaging.New(textW+2*labelPadding, face.Height+2*labelPadding, color.Black)
	d := &font.Drawer{
		Dst:  band,
		Src:  image.NewUniform(color.White),
		Face: face,
		Dot:  fixed.P(labelPadding, labelPadding+face.Ascent),
	}
	d.DrawString(label)

	width, height := dst.Bounds().Dx(), dst.Bounds().Dy()

	// Grow the band to roughly a third of the image width, never past the edges.
	if scale := width / (3 * band.Bounds().Dx()); scale > 1 {
		band = imaging.Resize(band, band.Bounds().Dx()*scale, 0, imaging.NearestNeighbor)
	}
	if band.Bounds().Dx() > width {
		band = imaging.Resize(band, width, 0, imaging.Box)
	}
	if band.Bounds().Dy() > height {
		band = imaging.Resize(band, 0, height, imaging.Box)
	}

	x := (width - band.Bounds().Dx()) / 2
	y := height - band.Bounds().Dy()
	return imaging.Paste(dst, band, image.Pt(x, y))
}
