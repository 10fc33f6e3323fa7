package classifier

import (
	"errors"
	"image"

	"github.com/disintegration/imaging"
)

// FeatureDim is the length of every vector produced by Extract.
const FeatureDim = 4

const ratioEpsilon = 1e-9

// ErrEmptyImage is returned when an image has no pixels.
var ErrEmptyImage = errors.New("image has no pixels")

// FeatureVector holds {redRatio, greenRatio, blueRatio, avgBrightness}.
type FeatureVector []float64

func (v FeatureVector) RedRatio() float64      { return v[0] }
func (v FeatureVector) GreenRatio() float64    { return v[1] }
func (v FeatureVector) BlueRatio() float64     { return v[2] }
func (v FeatureVector) AvgBrightness() float64 { return v[3] }

// Extract computes the global color distribution of img. Spatial layout is discarded.
func Extract(img image.Image) (FeatureVector, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, ErrEmptyImage
	}

	src := imaging.Clone(img)
	w, h := src.Rect.Dx(), src.Rect.Dy()

	var sumR, sumG, sumB float64
	for y := 0; y < h; y++ {
		row := src.Pix[y*src.Stride : y*src.Stride+w*4]
		for i := 0; i < len(row); i += 4 {
			sumR += float64(row[i])
			sumG += float64(row[i+1])
			sumB += float64(row[i+2])
		}
	}

	sum := sumR + sumG + sumB
	brightness := sum / (3 * float64(w*h)) / 255

	// A black image has no color distribution; treat it as neutral.
	if sum == 0 {
		return FeatureVector{1.0 / 3, 1.0 / 3, 1.0 / 3, 0}, nil
	}

	total := sum + ratioEpsilon
	return FeatureVector{sumR / total, sumG / total, sumB / total, brightness}, nil
}
