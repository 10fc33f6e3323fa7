package sink

import (
	"context"

	"github.com/not-nullexception/team-classifier/internal/db"
	"github.com/not-nullexception/team-classifier/internal/db/models"
)

// Repository stores one classification row per message id.
type Repository struct {
	repo db.Repository
}

func NewRepository(repo db.Repository) *Repository {
	return &Repository{repo: repo}
}

func (r *Repository) Name() string { return "database" }

func (r *Repository) Store(ctx context.Context, a Artifact) error {
	c := models.NewClassification(a.MessageID, a.MessageType, a.Prediction.Category.String(), a.Prediction.Votes, a.Prediction.K)
	c.SentAt = a.SentAt
	c.ImageFormat = a.Format
	c.ClassifiedAt = a.ClassifiedAt
	if a.Image != nil {
		c.ImageWidth = a.Image.Bounds().Dx()
		c.ImageHeight = a.Image.Bounds().Dy()
	}
	return r.repo.SaveClassification(ctx, c)
}
