package classifier

import (
	"fmt"
	"image"
	"image/color"
	"math/rand/v2"

	"github.com/disintegration/imaging"
)

const (
	// CanvasSize is the side length of every synthetic training image.
	CanvasSize = 64

	rectInset    = 8
	accentX      = 22
	accentY      = 18
	accentRadius = 10
)

var (
	backgroundColor = color.NRGBA{R: 255, G: 255, B: 255, A: 255}
	accentColor     = color.NRGBA{R: 255, G: 255, B: 0, A: 255}
)

// Sample is a labeled feature vector produced during training-set generation.
type Sample struct {
	Features FeatureVector
	Label    Category
}

// SyntheticImage draws the reference image for a category: a white canvas, a centered
// rectangle in the category color and a yellow circle that is the same for every category.
func SyntheticImage(c Category) *image.NRGBA {
	canvas := imaging.New(CanvasSize, CanvasSize, backgroundColor)
	side := CanvasSize - 2*rectInset
	canvas = imaging.Paste(canvas, imaging.New(side, side, c.Color()), image.Pt(rectInset, rectInset))

	cx := float64(accentX) + accentRadius
	cy := float64(accentY) + accentRadius
	for y := accentY; y < accentY+2*accentRadius; y++ {
		for x := accentX; x < accentX+2*accentRadius; x++ {
			dx := float64(x) + 0.5 - cx
			dy := float64(y) + 0.5 - cy
			if dx*dx+dy*dy <= accentRadius*accentRadius {
				canvas.SetNRGBA(x, y, accentColor)
			}
		}
	}

	return canvas
}

// GenerateSamples draws n categories uniformly with a PRNG seeded by seed and returns the
// extracted features of each category's synthetic image. The same seed yields the same set.
func GenerateSamples(n int, seed int64) ([]Sample, error) {
	if n <= 0 {
		return nil, &InvalidParameterError{Param: "samples", Reason: fmt.Sprintf("count must be positive, got %d", n)}
	}

	rng := rand.New(rand.NewPCG(uint64(seed), uint64(seed)))
	categories := Categories()

	samples := make([]Sample, 0, n)
	for i := 0; i < n; i++ {
		label := categories[rng.IntN(len(categories))]
		features, err := Extract(SyntheticImage(label))
		if err != nil {
			return nil, fmt.Errorf("error extracting features for %s: %w", label, err)
		}
		samples = append(samples, Sample{Features: features, Label: label})
	}

	return samples, nil
}

// Train generates n synthetic samples from seed and builds a model over them.
func Train(n int, seed int64, k int) (*Model, error) {
	samples, err := GenerateSamples(n, seed)
	if err != nil {
		return nil, err
	}
	return Build(samples, k)
}
