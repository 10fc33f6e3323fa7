package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/not-nullexception/team-classifier/config"
	"github.com/not-nullexception/team-classifier/internal/db"
	"github.com/not-nullexception/team-classifier/internal/db/models"
	"github.com/not-nullexception/team-classifier/internal/logger"
)

const schema = `
	CREATE TABLE IF NOT EXISTS classifications (
		id            UUID PRIMARY KEY,
		message_id    TEXT NOT NULL UNIQUE,
		message_type  TEXT NOT NULL DEFAULT '',
		category      TEXT NOT NULL,
		votes         INTEGER NOT NULL,
		neighbors     INTEGER NOT NULL,
		confidence    DOUBLE PRECISION NOT NULL,
		image_width   INTEGER NOT NULL DEFAULT 0,
		image_height  INTEGER NOT NULL DEFAULT 0,
		image_format  TEXT NOT NULL DEFAULT '',
		sent_at       TEXT NOT NULL DEFAULT '',
		deliveries    INTEGER NOT NULL DEFAULT 1,
		classified_at TIMESTAMPTZ NOT NULL,
		created_at    TIMESTAMPTZ NOT NULL,
		updated_at    TIMESTAMPTZ NOT NULL
	)
`

const selectColumns = `
	id, message_id, message_type, category, votes, neighbors, confidence,
	image_width, image_height, image_format, sent_at, deliveries,
	classified_at, created_at, updated_at
`

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(ctx context.Context, cfg *config.DatabaseConfig) (db.Repository, error) {
	initLogger := logger.GetLogger("postgres-repository")

	// Create a connection pool configuration
	poolConfig, err := pgxpool.ParseConfig(cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("unable to parse connection string: %w", err)
	}

	// Set pool configuration
	poolConfig.MaxConns = int32(cfg.MaxConnections)
	poolConfig.MinConns = int32(cfg.MinConnections)

	// Create connection pool
	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	// Test connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}

	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to create classifications table: %w", err)
	}

	initLogger.Info().Msg("Connected to Postgres database")
	return &Repository{pool: pool}, nil
}

// SaveClassification inserts a classification or, for a message seen before, refreshes it
// and bumps its delivery count
func (r *Repository) SaveClassification(ctx context.Context, c *models.Classification) error {
	reqLogger := logger.FromContext(ctx)

	query := `
		INSERT INTO classifications (
			id, message_id, message_type, category, votes, neighbors, confidence,
			image_width, image_height, image_format, sent_at, deliveries,
			classified_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (message_id) DO UPDATE SET
			category = EXCLUDED.category,
			votes = EXCLUDED.votes,
			neighbors = EXCLUDED.neighbors,
			confidence = EXCLUDED.confidence,
			classified_at = EXCLUDED.classified_at,
			deliveries = classifications.deliveries + 1,
			updated_at = EXCLUDED.updated_at
	`

	now := time.Now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now

	_, err := r.pool.Exec(ctx, query,
		c.ID, c.MessageID, c.MessageType, c.Category, c.Votes, c.Neighbors, c.Confidence,
		c.ImageWidth, c.ImageHeight, c.ImageFormat, c.SentAt, c.Deliveries,
		c.ClassifiedAt, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		reqLogger.Error().Err(err).Str("message_id", c.MessageID).Msg("Error saving classification")
		return fmt.Errorf("error saving classification: %w", err)
	}

	reqLogger.Debug().Str("message_id", c.MessageID).Str("category", c.Category).Msg("Classification saved")
	return nil
}

// GetClassification retrieves the classification for a message id
func (r *Repository) GetClassification(ctx context.Context, messageID string) (*models.Classification, error) {
	reqLogger := logger.FromContext(ctx)

	query := `SELECT ` + selectColumns + ` FROM classifications WHERE message_id = $1`

	reqLogger.Debug().Str("message_id", messageID).Msg("Executing GetClassification query")

	c, err := scanClassification(r.pool.QueryRow(ctx, query, messageID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", db.ErrNotFound, messageID)
		}
		reqLogger.Error().Err(err).Str("message_id", messageID).Msg("Error querying classification")
		return nil, fmt.Errorf("error querying classification: %w", err)
	}

	return c, nil
}

// ListClassifications retrieves classifications with pagination, newest first
func (r *Repository) ListClassifications(ctx context.Context, limit, offset int) ([]*models.Classification, int, error) {
	reqLogger := logger.FromContext(ctx)

	query := `SELECT ` + selectColumns + ` FROM classifications ORDER BY classified_at DESC LIMIT $1 OFFSET $2`
	countQuery := `SELECT COUNT(*) FROM classifications`

	reqLogger.Debug().Int("limit", limit).Int("offset", offset).Msg("Executing ListClassifications query")

	var total int
	if err := r.pool.QueryRow(ctx, countQuery).Scan(&total); err != nil {
		reqLogger.Error().Err(err).Msg("Error counting classifications")
		return nil, 0, fmt.Errorf("error counting classifications: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, limit, offset)
	if err != nil {
		reqLogger.Error().Err(err).Msg("Error querying classifications")
		return nil, 0, fmt.Errorf("error querying classifications: %w", err)
	}
	defer rows.Close()

	results := make([]*models.Classification, 0)
	for rows.Next() {
		c, err := scanClassification(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("error scanning classification: %w", err)
		}
		results = append(results, c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating classifications: %w", err)
	}

	return results, total, nil
}

// CountByCategory returns how many messages were classified into each category
func (r *Repository) CountByCategory(ctx context.Context) (map[string]int, error) {
	rows, err := r.pool.Query(ctx, `SELECT category, COUNT(*) FROM classifications GROUP BY category`)
	if err != nil {
		return nil, fmt.Errorf("error counting categories: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var category string
		var n int
		if err := rows.Scan(&category, &n); err != nil {
			return nil, fmt.Errorf("error scanning category count: %w", err)
		}
		counts[category] = n
	}
	return counts, rows.Err()
}

func scanClassification(row pgx.Row) (*models.Classification, error) {
	var c models.Classification
	err := row.Scan(
		&c.ID, &c.MessageID, &c.MessageType, &c.Category, &c.Votes, &c.Neighbors, &c.Confidence,
		&c.ImageWidth, &c.ImageHeight, &c.ImageFormat, &c.SentAt, &c.Deliveries,
		&c.ClassifiedAt, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// Ping checks the database connection
func (r *Repository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// Close closes the connection pool
func (r *Repository) Close() error {
	r.pool.Close()
	return nil
}
