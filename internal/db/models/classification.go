package models

import (
	"time"

	"github.com/google/uuid"
)

// Classification is the stored result of classifying one inbound message
type Classification struct {
	ID           uuid.UUID `json:"id" db:"id"`
	MessageID    string    `json:"message_id" db:"message_id"`
	MessageType  string    `json:"message_type" db:"message_type"`
	Category     string    `json:"category" db:"category"`
	Votes        int       `json:"votes" db:"votes"`
	Neighbors    int       `json:"neighbors" db:"neighbors"`
	Confidence   float64   `json:"confidence" db:"confidence"`
	ImageWidth   int       `json:"image_width" db:"image_width"`
	ImageHeight  int       `json:"image_height" db:"image_height"`
	ImageFormat  string    `json:"image_format" db:"image_format"`
	SentAt       string    `json:"sent_at,omitempty" db:"sent_at"`
	Deliveries   int       `json:"deliveries" db:"deliveries"`
	ClassifiedAt time.Time `json:"classified_at" db:"classified_at"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// NewClassification creates a Classification with default values
func NewClassification(messageID, messageType, category string, votes, neighbors int) *Classification {
	now := time.Now().UTC()
	c := &Classification{
		ID:           uuid.New(),
		MessageID:    messageID,
		MessageType:  messageType,
		Category:     category,
		Votes:        votes,
		Neighbors:    neighbors,
		Deliveries:   1,
		ClassifiedAt: now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if neighbors > 0 {
		c.Confidence = float64(votes) / float64(neighbors)
	}
	return c
}

// ClassificationListResponse represents the response for classification listing
type ClassificationListResponse struct {
	Classifications []*Classification `json:"classifications"`
	Total           int               `json:"total"`
}

// SubmissionResponse is returned when an image is accepted for classification
type SubmissionResponse struct {
	MessageID string `json:"message_id"`
	Status    string `json:"status"`
}

// PredictionResponse is returned by synchronous classification
type PredictionResponse struct {
	Category   string    `json:"category"`
	Votes      int       `json:"votes"`
	Neighbors  int       `json:"neighbors"`
	Confidence float64   `json:"confidence"`
	Features   []float64 `json:"features"`
}
