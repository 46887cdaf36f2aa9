package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Harsh-BH/qsweep/internal/domain"
)

// TargetHandler lists the execution targets sweeps can run on.
type TargetHandler struct {
	defaultTarget string
}

// NewTargetHandler creates a new TargetHandler.
func NewTargetHandler(defaultTarget string) *TargetHandler {
	return &TargetHandler{defaultTarget: defaultTarget}
}

// List handles GET /api/v1/targets
func (h *TargetHandler) List(c *gin.Context) {
	targets := []domain.TargetInfo{
		{
			Name:        domain.TargetSimulator,
			Simulator:   true,
			Description: "Ideal simulator; samples are drawn from the output distribution (seedable)",
		},
		{
			Name:        domain.TargetQPU,
			Description: "Trapped-ion hardware; samples are the measured counts",
		},
		{
			Name:        domain.TargetQPU + ".<device>",
			Description: "A named hardware device",
		},
	}

	c.JSON(http.StatusOK, gin.H{
		"targets": targets,
		"default": h.defaultTarget,
	})
}
