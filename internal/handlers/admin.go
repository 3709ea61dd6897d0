package handlers

import (
	"net/http"
	"strconv"

	"fanpass/internal/logger"
	"fanpass/internal/models"

	"github.com/gin-gonic/gin"
)

const maxPageSize = 50

// SearchPayments - GET /api/admin/payments
// Поиск завершенных платежей по индексу Elasticsearch
func (h *Handlers) SearchPayments(c *gin.Context) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		errorJSON(c, http.StatusBadRequest, "page must be >= 1")
		return
	}

	pageSize, err := strconv.Atoi(c.DefaultQuery("pageSize", "20"))
	if err != nil || pageSize < 1 || pageSize > maxPageSize {
		errorJSON(c, http.StatusBadRequest, "pageSize must be between 1 and 50")
		return
	}

	// Поиск отключен, отдаем пустой результат
	if h.search == nil {
		c.JSON(http.StatusOK, models.PaymentSearchResponse{Items: []models.PaymentSearchResponseItem{}})
		return
	}

	ctx := c.Request.Context()
	response, err := h.search.SearchPayments(ctx, c.Query("query"), c.Query("status"), page, pageSize)
	if err != nil {
		logger.WithContext(ctx).Error("Failed to search payments", "error", err)
		errorJSON(c, http.StatusInternalServerError, "Failed to search payments")
		return
	}

	c.JSON(http.StatusOK, response)
}
