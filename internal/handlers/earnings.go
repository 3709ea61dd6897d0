package handlers

import (
	"net/http"

	apperrors "fanpass/internal/errors"
	"fanpass/internal/logger"

	"github.com/gin-gonic/gin"
)

// GetEarnings - GET /api/users/:id/earnings
func (h *Handlers) GetEarnings(c *gin.Context) {
	userID := c.Param("id")
	if userID == "" {
		errorJSON(c, http.StatusBadRequest, "user id is required")
		return
	}

	ctx := c.Request.Context()
	summary, err := h.earnings.Summary(ctx, userID)
	if err != nil {
		if apperrors.Is(err, apperrors.ErrNotFound) {
			errorJSON(c, http.StatusNotFound, "User not found")
			return
		}
		logger.WithContext(ctx).Error("Failed to load earnings", "error", err, "user_id", userID)
		errorJSON(c, http.StatusInternalServerError, "Failed to load earnings")
		return
	}

	c.JSON(http.StatusOK, summary)
}
