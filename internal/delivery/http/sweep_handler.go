package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Harsh-BH/qsweep/internal/domain"
	"github.com/Harsh-BH/qsweep/internal/usecase"
)

// SweepHandler handles HTTP requests for parameter sweeps.
type SweepHandler struct {
	submitUC *usecase.SubmitSweepUsecase
	getUC    *usecase.GetSweepUsecase
	logger   *zap.Logger
}

// NewSweepHandler creates a new SweepHandler.
func NewSweepHandler(submitUC *usecase.SubmitSweepUsecase, getUC *usecase.GetSweepUsecase, logger *zap.Logger) *SweepHandler {
	return &SweepHandler{
		submitUC: submitUC,
		getUC:    getUC,
		logger:   logger,
	}
}

// Submit handles POST /api/v1/sweeps
func (h *SweepHandler) Submit(c *gin.Context) {
	var req domain.SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body: " + err.Error(),
		})
		return
	}

	resp, err := h.submitUC.Execute(c.Request.Context(), &req)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidCircuit),
			errors.Is(err, domain.ErrInvalidSweep),
			errors.Is(err, domain.ErrInvalidRepetitions),
			errors.Is(err, domain.ErrInvalidTarget):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, domain.ErrSweepTooLarge):
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": err.Error()})
		case errors.Is(err, domain.ErrPublishFailed):
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Service temporarily unavailable"})
		default:
			h.logger.Error("Submit sweep failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		}
		return
	}

	c.JSON(http.StatusAccepted, resp)
}

// GetByID handles GET /api/v1/sweeps/:id
func (h *SweepHandler) GetByID(c *gin.Context) {
	idStr := c.Param("id")
	id, err := uuid.Parse(idStr)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid sweep ID format"})
		return
	}

	run, err := h.getUC.Execute(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrSweepNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Sweep not found"})
			return
		}
		h.logger.Error("Get sweep failed", zap.Error(err), zap.String("sweep_id", idStr))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, run)
}
