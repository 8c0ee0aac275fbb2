package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/appwright/pageforge/internal/metrics"
	"github.com/appwright/pageforge/internal/services"
	"github.com/appwright/pageforge/pkg/domain"
)

type generateController struct {
	svc    services.TaskService
	secret string
}

func NewGenerateController(svc services.TaskService, secret string) *generateController {
	return &generateController{svc: svc, secret: secret}
}

func (h *generateController) Handle(c *gin.Context) {
	var req domain.GenerationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		metrics.TasksRejectedTotal.WithLabelValues("invalid_body").Inc()
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}

	// An unset shared secret rejects everything; the startup warning covers it.
	if h.secret == "" || req.Secret != h.secret {
		metrics.TasksRejectedTotal.WithLabelValues("invalid_secret").Inc()
		c.JSON(http.StatusForbidden, gin.H{"error": "Invalid secret"})
		return
	}

	// Acknowledge before any generation/publish/notify work begins.
	c.JSON(http.StatusOK, gin.H{"message": "Request received and is being processed."})
	h.svc.Submit(req)
}
