package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	service "bank-reconciliation-backend/internal/services/reconciliation"
	"bank-reconciliation-backend/internal/worker"
)

// respondError maps service errors onto HTTP status codes.
func respondError(c *gin.Context, logger *slog.Logger, err error) {
	var (
		transition *service.InvalidTransitionError
		candidate  *service.CandidateNotFoundError
		validation *service.ValidationError
		fatal      *service.FatalImportError
	)
	switch {
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.As(err, &transition):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "status": transition.From, "action": transition.Action})
	case errors.Is(err, service.ErrImportNotReady), errors.Is(err, service.ErrImportNotCancellable):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.As(err, &candidate):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error(), "counterpart_id": candidate.CounterpartID})
	case errors.As(err, &fatal):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.As(err, &validation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "field": validation.Field})
	case errors.Is(err, worker.ErrQueueFull), errors.Is(err, worker.ErrQueueClosed):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	default:
		logger.Error("request failed", "method", c.Request.Method, "path", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func uuidParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return uuid.Nil, false
	}
	return id, true
}
