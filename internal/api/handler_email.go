package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"mailclassifier/internal/model"
	"mailclassifier/internal/repository"
	"mailclassifier/internal/service"
	"mailclassifier/pkg/logger"
)

// EmailService is the part of service.EmailService the HTTP layer uses.
type EmailService interface {
	Classify(ctx context.Context, in model.EmailInput) (model.Verdict, error)
	AddEmail(ctx context.Context, in model.EmailInput) (*service.AddResult, error)
	ChangeCategory(ctx context.Context, id string, category model.Category) error
	DeleteEmail(ctx context.Context, id string) error
	ListEmails(ctx context.Context, category *model.Category) ([]model.EmailRecord, error)
	Stats(ctx context.Context) (*model.EmailStats, error)
}

type EmailHandler struct {
	emails EmailService
	logger *zap.Logger
}

func NewEmailHandler(emails EmailService, logger *zap.Logger) *EmailHandler {
	return &EmailHandler{
		emails: emails,
		logger: logger,
	}
}

// ClassifyEmail handles POST /classify-email
func (h *EmailHandler) ClassifyEmail(c *gin.Context) {
	var in model.EmailInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, classificationErrorBody("invalid request body"))
		return
	}

	verdict, err := h.emails.Classify(c.Request.Context(), in)
	if err != nil {
		if errors.Is(err, model.ErrInvalidInput) {
			c.JSON(http.StatusBadRequest, classificationErrorBody("Missing required fields: sender and subject"))
			return
		}
		logger.WithTrace(c.Request.Context(), h.logger).Error("Classification failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, classificationErrorBody(err.Error()))
		return
	}

	c.JSON(http.StatusOK, verdict)
}

// CreateEmail handles POST /emails
func (h *EmailHandler) CreateEmail(c *gin.Context) {
	var in model.EmailInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	res, err := h.emails.AddEmail(c.Request.Context(), in)
	if err != nil {
		h.writeError(c, "add email", err)
		return
	}

	c.JSON(http.StatusCreated, res)
}

// ListEmails handles GET /emails?category=
func (h *EmailHandler) ListEmails(c *gin.Context) {
	var filter *model.Category
	if raw, ok := c.GetQuery("category"); ok && raw != "" && raw != "all" {
		category, err := model.ParseCategory(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		filter = &category
	}

	emails, err := h.emails.ListEmails(c.Request.Context(), filter)
	if err != nil {
		h.writeError(c, "list emails", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"emails": emails,
		"count":  len(emails),
	})
}

// UpdateCategory handles PATCH /emails/:id
func (h *EmailHandler) UpdateCategory(c *gin.Context) {
	var req struct {
		Category string `json:"category" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "category is required"})
		return
	}
	category, err := model.ParseCategory(req.Category)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	id := c.Param("id")
	if err := h.emails.ChangeCategory(c.Request.Context(), id, category); err != nil {
		h.writeError(c, "update category", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"id": id, "category": category})
}

// DeleteEmail handles DELETE /emails/:id
func (h *EmailHandler) DeleteEmail(c *gin.Context) {
	if err := h.emails.DeleteEmail(c.Request.Context(), c.Param("id")); err != nil {
		h.writeError(c, "delete email", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Stats handles GET /emails/stats
func (h *EmailHandler) Stats(c *gin.Context) {
	stats, err := h.emails.Stats(c.Request.Context())
	if err != nil {
		h.writeError(c, "stats", err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *EmailHandler) writeError(c *gin.Context, op string, err error) {
	switch {
	case errors.Is(err, model.ErrInvalidInput), errors.Is(err, model.ErrInvalidCategory):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case repository.IsNotFound(err):
		c.JSON(http.StatusNotFound, gin.H{"error": "email not found"})
	default:
		logger.WithTrace(c.Request.Context(), h.logger).Error("Request failed",
			zap.String("op", op),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
