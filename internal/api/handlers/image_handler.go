package handlers

import (
	"encoding/base64"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/not-nullexception/team-classifier/internal/classifier"
	"github.com/not-nullexception/team-classifier/internal/db/models"
	"github.com/not-nullexception/team-classifier/internal/logger"
	imageprocessor "github.com/not-nullexception/team-classifier/internal/processor/image"
	"github.com/not-nullexception/team-classifier/internal/queue"
)

// MaxUploadSize bounds accepted image uploads
const MaxUploadSize = 10 * 1024 * 1024

// MessageTypeTeam is the type stamped on every published image message
const MessageTypeTeam = "team"

type ImageHandler struct {
	queueClient queue.Client
	model       *classifier.Model
	processor   *imageprocessor.Processor
}

func NewImageHandler(queueClient queue.Client, model *classifier.Model) *ImageHandler {
	return &ImageHandler{
		queueClient: queueClient,
		model:       model,
		processor:   imageprocessor.New(),
	}
}

// SubmitImage accepts an uploaded image and publishes it for asynchronous classification
func (h *ImageHandler) SubmitImage(c *gin.Context) {
	reqLogger := logger.FromContext(c.Request.Context())
	reqLogger.Info().Msg("Received image submission")

	decoded, raw, ok := h.readUpload(c)
	if !ok {
		return
	}

	msg := queue.Message{
		ID:        uuid.NewString(),
		Type:      MessageTypeTeam,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Image:     base64.StdEncoding.EncodeToString(raw),
	}

	if err := h.queueClient.Publish(c.Request.Context(), msg); err != nil {
		reqLogger.Error().Err(err).Str("message_id", msg.ID).Msg("Failed to queue image for classification")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Failed to queue image for classification"})
		return
	}

	reqLogger.Info().
		Str("message_id", msg.ID).
		Int("width", decoded.Width).
		Int("height", decoded.Height).
		Msg("Image accepted and queued for classification")

	c.JSON(http.StatusAccepted, &models.SubmissionResponse{
		MessageID: msg.ID,
		Status:    "queued",
	})
}

// ClassifyImage classifies an uploaded image synchronously with the in-process model
func (h *ImageHandler) ClassifyImage(c *gin.Context) {
	reqLogger := logger.FromContext(c.Request.Context())

	decoded, _, ok := h.readUpload(c)
	if !ok {
		return
	}

	features, err := classifier.Extract(decoded.Image)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid image: " + err.Error()})
		return
	}

	prediction, err := h.model.Classify(features)
	if err != nil {
		reqLogger.Error().Err(err).Msg("Failed to classify image")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to classify image"})
		return
	}

	reqLogger.Info().Str("category", prediction.Category.String()).Int("votes", prediction.Votes).Msg("Image classified")

	c.JSON(http.StatusOK, &models.PredictionResponse{
		Category:   prediction.Category.String(),
		Votes:      prediction.Votes,
		Neighbors:  prediction.K,
		Confidence: prediction.Confidence(),
		Features:   features,
	})
}

// readUpload validates the multipart "image" field and writes the error response itself
func (h *ImageHandler) readUpload(c *gin.Context) (*imageprocessor.Decoded, []byte, bool) {
	reqLogger := logger.FromContext(c.Request.Context())

	file, header, err := c.Request.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to get image from request"})
		return nil, nil, false
	}
	defer file.Close()

	if header.Size > MaxUploadSize {
		reqLogger.Error().Str("filename", header.Filename).Int64("size", header.Size).Msg("File too large")
		c.JSON(http.StatusBadRequest, gin.H{"error": "File too large, max 10MB"})
		return nil, nil, false
	}

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if ext != ".jpg" && ext != ".jpeg" && ext != ".png" {
		reqLogger.Error().Str("filename", header.Filename).Str("extension", ext).Msg("Unsupported file format")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unsupported file format, only JPG and PNG are supported"})
		return nil, nil, false
	}

	decoded, raw, err := h.processor.ValidateImage(file)
	if err != nil {
		reqLogger.Error().Err(err).Str("filename", header.Filename).Msg("Invalid image")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid image: " + err.Error()})
		return nil, nil, false
	}

	return decoded, raw, true
}
