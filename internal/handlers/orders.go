package handlers

import (
	"net/http"

	"fanpass/internal/logger"
	"fanpass/internal/models"

	"github.com/gin-gonic/gin"
)

// CreateOrder - POST /api/orders
// Создать заказ у платежного провайдера и привязать его к локальному платежу
func (h *Handlers) CreateOrder(c *gin.Context) {
	var req models.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorJSON(c, http.StatusBadRequest, err.Error())
		return
	}

	ctx := c.Request.Context()
	response, err := h.orders.CreateOrder(ctx, req.Normalize())
	if err != nil {
		logger.WithContext(ctx).Warn("Failed to create order", "error", err)
		errorJSON(c, http.StatusBadRequest, err.Error())
		return
	}

	c.JSON(http.StatusOK, response)
}
