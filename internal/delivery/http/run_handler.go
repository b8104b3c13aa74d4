package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/arbiter-oj/arbiter/internal/domain"
	"github.com/arbiter-oj/arbiter/internal/usecase"
)

// RunHandler handles ad-hoc run requests. The response is synchronous:
// the handler blocks until the judge worker replies through the queue.
type RunHandler struct {
	runUC  *usecase.RunRequestUsecase
	logger *zap.Logger
}

// NewRunHandler creates a new RunHandler.
func NewRunHandler(runUC *usecase.RunRequestUsecase, logger *zap.Logger) *RunHandler {
	return &RunHandler{
		runUC:  runUC,
		logger: logger,
	}
}

// Run handles POST /api/v1/run
func (h *RunHandler) Run(c *gin.Context) {
	var req domain.RunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body: " + err.Error(),
		})
		return
	}

	result, err := h.runUC.Execute(c.Request.Context(), &req)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrUnsupportedLanguage),
			errors.Is(err, domain.ErrEmptySourceCode):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, domain.ErrPayloadTooLarge):
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": err.Error()})
		case errors.Is(err, domain.ErrRunFailed):
			c.JSON(http.StatusBadGateway, gin.H{"error": domain.ErrRunFailed.Error()})
		default:
			h.logger.Error("Run request failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		}
		return
	}

	c.JSON(http.StatusOK, result)
}
