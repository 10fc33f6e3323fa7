package db

import (
	"context"
	"errors"

	"github.com/not-nullexception/team-classifier/internal/db/models"
)

// ErrNotFound is returned when no classification exists for a message id
var ErrNotFound = errors.New("classification not found")

// Repository defines the interface for database operations
type Repository interface {
	// SaveClassification upserts by message id so redelivered messages update one row
	SaveClassification(ctx context.Context, c *models.Classification) error
	GetClassification(ctx context.Context, messageID string) (*models.Classification, error)
	ListClassifications(ctx context.Context, limit, offset int) ([]*models.Classification, int, error)
	CountByCategory(ctx context.Context) (map[string]int, error)

	// Health check
	Ping(ctx context.Context) error

	// Close the repository
	Close() error
}
