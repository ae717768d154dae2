// Package ws streams calibration status to browser clients over WebSocket,
// replacing HTTP polling for display updates.
package ws

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/nicolas-rabault/lelab/internal/calibration"
	"github.com/nicolas-rabault/lelab/internal/infrastructure/logging"
	"github.com/nicolas-rabault/lelab/internal/infrastructure/monitoring"
)

// DefaultPushInterval is how often a status frame is sent to each client.
const DefaultPushInterval = 100 * time.Millisecond

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Handler serves the status stream.
type Handler struct {
	calibration *calibration.Manager
	log         *logging.Logger
	metrics     *monitoring.Metrics
	interval    time.Duration
}

// NewHandler creates a WebSocket status handler.
func NewHandler(manager *calibration.Manager, log *logging.Logger, metrics *monitoring.Metrics) *Handler {
	if log == nil {
		log = logging.NewDefault()
	}
	return &Handler{
		calibration: manager,
		log:         log,
		metrics:     metrics,
		interval:    DefaultPushInterval,
	}
}

// Status handles one WebSocket connection, pushing the calibration status
// snapshot at a fixed interval until the client disconnects.
func (h *Handler) Status(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	if h.metrics != nil {
		h.metrics.WSConnections.Inc()
		defer h.metrics.WSConnections.Dec()
	}
	h.log.Debug("status stream connected", zap.String("remote", conn.RemoteAddr().String()))

	// Drain incoming frames so pings are answered and closes are noticed.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if err := conn.WriteJSON(h.calibration.Status()); err != nil {
		return
	}

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-closed:
			h.log.Debug("status stream disconnected", zap.String("remote", conn.RemoteAddr().String()))
			return
		case <-ticker.C:
			if err := conn.WriteJSON(h.calibration.Status()); err != nil {
				return
			}
		}
	}
}
