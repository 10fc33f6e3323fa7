package image

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/not-nullexception/team-classifier/internal/logger"
	"github.com/rs/zerolog"
)

// ErrEmptyPayload is returned for an image field with no content.
var ErrEmptyPayload = errors.New("image payload is empty")

type Processor struct {
	logger zerolog.Logger
}

// Decoded is a payload image together with the metadata logged for it.
type Decoded struct {
	Image  image.Image
	Format string
	Width  int
	Height int
	Size   int
}

func New() *Processor {
	return &Processor{
		logger: logger.GetLogger("image-processor"),
	}
}

// DecodeBase64 decodes a base64 string (standard alphabet, optional data URI prefix) into an image
func (p *Processor) DecodeBase64(payload string) (*Decoded, error) {
	payload = strings.TrimSpace(payload)
	if i := strings.Index(payload, ";base64,"); strings.HasPrefix(payload, "data:") && i >= 0 {
		payload = payload[i+len(";base64,"):]
	}
	if payload == "" {
		return nil, ErrEmptyPayload
	}

	imgData, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("error decoding base64 payload: %w", err)
	}

	return p.Decode(imgData)
}

// Decode decodes raw image bytes and rejects images without pixels
func (p *Processor) Decode(imgData []byte) (*Decoded, error) {
	if len(imgData) == 0 {
		return nil, ErrEmptyPayload
	}

	_, format, err := image.DecodeConfig(bytes.NewReader(imgData))
	if err != nil {
		return nil, fmt.Errorf("error decoding image: %w", err)
	}

	img, err := imaging.Decode(bytes.NewReader(imgData), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("error decoding image: %w", err)
	}

	bounds := img.Bounds()
	if bounds.Empty() {
		return nil, fmt.Errorf("image has no pixels (%dx%d)", bounds.Dx(), bounds.Dy())
	}

	p.logger.Debug().
		Str("format", format).
		Int("width", bounds.Dx()).
		Int("height", bounds.Dy()).
		Int("size", len(imgData)).
		Msg("Image details")

	return &Decoded{
		Image:  img,
		Format: format,
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
		Size:   len(imgData),
	}, nil
}

// ValidateImage checks that an uploaded image is a supported format and returns it decoded
func (p *Processor) ValidateImage(reader io.Reader) (*Decoded, []byte, error) {
	imgData, err := io.ReadAll(reader)
	if err != nil {
		return nil, nil, fmt.Errorf("error reading image data: %w", err)
	}

	decoded, err := p.Decode(imgData)
	if err != nil {
		return nil, nil, err
	}

	if decoded.Format != "jpeg" && decoded.Format != "png" {
		return nil, nil, fmt.Errorf("unsupported image format: %s", decoded.Format)
	}

	return decoded, imgData, nil
}

// EncodeBase64 renders an image as a base64 PNG, the form published on the wire
func EncodeBase64(img image.Image) (string, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return "", fmt.Errorf("error encoding image: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
