package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/not-nullexception/team-classifier/internal/db"
	"github.com/not-nullexception/team-classifier/internal/db/models"
	"github.com/not-nullexception/team-classifier/internal/logger"
)

type ClassificationHandler struct {
	repo db.Repository
}

func NewClassificationHandler(repo db.Repository) *ClassificationHandler {
	return &ClassificationHandler{repo: repo}
}

// GetClassification returns the stored result for a message id
func (h *ClassificationHandler) GetClassification(c *gin.Context) {
	reqLogger := logger.FromContext(c.Request.Context())

	messageID := c.Param("id")
	if messageID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing message ID"})
		return
	}

	classification, err := h.repo.GetClassification(c.Request.Context(), messageID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Classification not found"})
			return
		}
		reqLogger.Error().Err(err).Str("message_id", messageID).Msg("Failed to get classification")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get classification"})
		return
	}

	c.JSON(http.StatusOK, classification)
}

// ListClassifications returns a page of stored results, newest first
func (h *ClassificationHandler) ListClassifications(c *gin.Context) {
	reqLogger := logger.FromContext(c.Request.Context())

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "10"))
	if err != nil || limit < 1 || limit > 100 {
		limit = 10
	}

	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}

	offset := (page - 1) * limit

	classifications, total, err := h.repo.ListClassifications(c.Request.Context(), limit, offset)
	if err != nil {
		reqLogger.Error().Err(err).Int("limit", limit).Int("offset", offset).Msg("Failed to list classifications")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list classifications"})
		return
	}

	if classifications == nil {
		classifications = []*models.Classification{}
	}

	c.JSON(http.StatusOK, &models.ClassificationListResponse{
		Classifications: classifications,
		Total:           total,
	})
}

// Stats returns the number of stored results per category
func (h *ClassificationHandler) Stats(c *gin.Context) {
	reqLogger := logger.FromContext(c.Request.Context())

	counts, err := h.repo.CountByCategory(c.Request.Context())
	if err != nil {
		reqLogger.Error().Err(err).Msg("Failed to count classifications")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to count classifications"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"categories": counts})
}
