package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
)

// Filesystem writes <id>.png and <timestamp>_<id>.json into a results directory.
type Filesystem struct {
	dir string
}

func NewFilesystem(dir string) (*Filesystem, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("error creating results directory: %w", err)
	}
	return &Filesystem{dir: dir}, nil
}

func (f *Filesystem) Name() string { return "filesystem" }

func (f *Filesystem) Store(ctx context.Context, a Artifact) error {
	if a.Image != nil {
		annotated := Annotate(a.Image, a.Prediction.Category.String())
		if err := imaging.Save(annotated, filepath.Join(f.dir, a.imageName())); err != nil {
			return fmt.Errorf("error saving annotated image: %w", err)
		}
	}

	body, err := json.MarshalIndent(a.Record(), "", "  ")
	if err != nil {
		return fmt.Errorf("error marshaling record: %w", err)
	}
	if err := os.WriteFile(filepath.Join(f.dir, a.recordName()), body, 0o644); err != nil {
		return fmt.Errorf("error writing record: %w", err)
	}
	return nil
}
