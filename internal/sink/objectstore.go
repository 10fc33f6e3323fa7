package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"

	"github.com/disintegration/imaging"
	"github.com/not-nullexception/team-classifier/internal/minio"
)

// ObjectStore uploads the same artifacts as Filesystem under a key prefix.
type ObjectStore struct {
	client minio.Client
	prefix string
}

func NewObjectStore(client minio.Client, prefix string) *ObjectStore {
	return &ObjectStore{client: client, prefix: prefix}
}

func (o *ObjectStore) Name() string { return "objectstore" }

func (o *ObjectStore) Store(ctx context.Context, a Artifact) error {
	if a.Image != nil {
		var buf bytes.Buffer
		annotated := Annotate(a.Image, a.Prediction.Category.String())
		if err := imaging.Encode(&buf, annotated, imaging.PNG); err != nil {
			return fmt.Errorf("error encoding annotated image: %w", err)
		}
		err := o.client.UploadObject(ctx, &buf, int64(buf.Len()), path.Join(o.prefix, a.imageName()), "image/png")
		if err != nil {
			return err
		}
	}

	body, err := json.Marshal(a.Record())
	if err != nil {
		return fmt.Errorf("error marshaling record: %w", err)
	}
	return o.client.UploadObject(ctx, bytes.NewReader(body), int64(len(body)), path.Join(o.prefix, a.recordName()), "application/json")
}
