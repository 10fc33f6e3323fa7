package sink

import (
	"context"
	"errors"
	"fmt"
	"image"
	"strings"
	"time"

	"github.com/not-nullexception/team-classifier/internal/classifier"
	"github.com/not-nullexception/team-classifier/internal/logger"
	"github.com/not-nullexception/team-classifier/internal/metrics"
)

// TimestampLayout formats record timestamps and the prefix of record file names.
const TimestampLayout = "20060102_150405"

// Artifact is everything a sink may persist about one classified message.
type Artifact struct {
	MessageID    string
	MessageType  string
	SentAt       string
	Image        image.Image
	Format       string
	Prediction   classifier.Prediction
	ClassifiedAt time.Time
}

// Record is the JSON document written next to each annotated image.
type Record struct {
	ID        string `json:"id"`
	Team      string `json:"team"`
	Timestamp string `json:"timestamp"`
}

func (a Artifact) Record() Record {
	return Record{
		ID:        a.MessageID,
		Team:      a.Prediction.Category.String(),
		Timestamp: a.ClassifiedAt.Format(TimestampLayout),
	}
}

func (a Artifact) imageName() string {
	return sanitizeFileName(a.MessageID) + ".png"
}

func (a Artifact) recordName() string {
	return fmt.Sprintf("%s_%s.json", a.ClassifiedAt.Format(TimestampLayout), sanitizeFileName(a.MessageID))
}

// Sink persists classification artifacts. Failures never affect message acknowledgment.
type Sink interface {
	Name() string
	Store(ctx context.Context, a Artifact) error
}

// Multi stores an artifact in every sink, continuing past failures.
type Multi []Sink

func (m Multi) Name() string {
	names := make([]string, len(m))
	for i, s := range m {
		names[i] = s.Name()
	}
	return strings.Join(names, ",")
}

func (m Multi) Store(ctx context.Context, a Artifact) error {
	reqLogger := logger.FromContext(ctx)

	var errs error
	for _, s := range m {
		if err := s.Store(ctx, a); err != nil {
			metrics.RecordSinkError(s.Name())
			reqLogger.Warn().
				Err(err).
				Str("sink", s.Name()).
				Str("message_id", a.MessageID).
				Msg("Failed to store artifact")
			errs = errors.Join(errs, fmt.Errorf("%s: %w", s.Name(), err))
		}
	}
	return errs
}

// sanitizeFileName keeps message ids safe to use as file and object names
func sanitizeFileName(fileName string) string {
	fileName = strings.ReplaceAll(fileName, " ", "_")

	fileName = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' || r == '-' || r == '.' {
			return r
		}
		return -1
	}, fileName)

	fileName = strings.TrimLeft(fileName, ".")
	if fileName == "" {
		return "unnamed"
	}
	return fileName
}
