package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Harsh-BH/qsweep/internal/domain"
	"github.com/Harsh-BH/qsweep/internal/usecase"
)

const (
	streamInterval = 500 * time.Millisecond
	// writeWait bounds each frame write. It replaces the server's
	// WriteTimeout, which would otherwise cut long streams.
	writeWait = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WebSocketHandler streams sweep status updates over WebSocket.
type WebSocketHandler struct {
	getUC  *usecase.GetSweepUsecase
	logger *zap.Logger
}

// NewWebSocketHandler creates a new WebSocketHandler.
func NewWebSocketHandler(getUC *usecase.GetSweepUsecase, logger *zap.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		getUC:  getUC,
		logger: logger,
	}
}

// Stream handles GET /api/v1/sweeps/:id/stream (WebSocket upgrade). The
// sweep record is pushed every 500ms until it reaches a terminal state.
func (h *WebSocketHandler) Stream(c *gin.Context) {
	idStr := c.Param("id")
	id, err := uuid.Parse(idStr)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid sweep ID format"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("WebSocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	h.logger.Debug("WebSocket connection opened", zap.String("sweep_id", idStr))

	ctx := c.Request.Context()
	ticker := time.NewTicker(streamInterval)
	defer ticker.Stop()

	for {
		run, err := h.getUC.Execute(ctx, id)
		if err != nil {
			msg := "Sweep not found"
			if !errors.Is(err, domain.ErrSweepNotFound) {
				h.logger.Error("Failed to load sweep for stream", zap.Error(err), zap.String("sweep_id", idStr))
				msg = "Failed to load sweep"
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = conn.WriteJSON(gin.H{"error": msg})
			return
		}

		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(run); err != nil {
			h.logger.Debug("WebSocket write failed (client disconnected)", zap.Error(err))
			return
		}

		if run.Status.IsTerminal() {
			h.logger.Debug("Sweep reached terminal state, closing WebSocket", zap.String("sweep_id", idStr))
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "sweep finished"))
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
