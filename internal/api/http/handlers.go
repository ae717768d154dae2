// Package http contains the Gin handlers for the web API. Rejected domain
// operations (start while active, stop/input with nothing active) are part
// of the API contract and answered with success:false rather than an HTTP
// error; only malformed requests get a 4xx.
package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nicolas-rabault/lelab/internal/calibration"
	"github.com/nicolas-rabault/lelab/internal/configstore"
	"github.com/nicolas-rabault/lelab/internal/infrastructure/logging"
	"github.com/nicolas-rabault/lelab/internal/ports"
	"github.com/nicolas-rabault/lelab/internal/training"
)

// Handlers contains all HTTP handlers.
type Handlers struct {
	calibration *calibration.Manager
	training    *training.Manager
	configs     *configstore.Store
	log         *logging.Logger
}

// NewHandlers creates a new handler set.
func NewHandlers(
	calibrationManager *calibration.Manager,
	trainingManager *training.Manager,
	configs *configstore.Store,
	log *logging.Logger,
) *Handlers {
	if log == nil {
		log = logging.NewDefault()
	}
	return &Handlers{
		calibration: calibrationManager,
		training:    trainingManager,
		configs:     configs,
		log:         log,
	}
}

// Root handles the service banner.
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "online",
		"service": "leLab backend",
	})
}

// Health handles the health check.
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":      "ok",
		"message":     "backend server is running",
		"calibration": h.calibration.Status().State,
		"training":    h.training.Status().Active,
	})
}

// StartCalibration starts a calibration session.
func (h *Handlers) StartCalibration(c *gin.Context) {
	var req calibration.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": err.Error()})
		return
	}

	if err := h.calibration.Start(req); err != nil {
		h.reply(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Calibration started"})
}

// StopCalibration requests cancellation of the active session.
func (h *Handlers) StopCalibration(c *gin.Context) {
	if err := h.calibration.Stop(); err != nil {
		h.reply(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Calibration stopped"})
}

// CalibrationStatus returns the session snapshot.
func (h *Handlers) CalibrationStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.calibration.Status())
}

// CalibrationInput submits one line of input to the session.
func (h *Handlers) CalibrationInput(c *gin.Context) {
	var body struct {
		Input string `json:"input"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": err.Error()})
		return
	}

	if err := h.calibration.SubmitInput(body.Input); err != nil {
		h.reply(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Input sent"})
}

// GetConfigs lists leader and follower calibration config filenames.
func (h *Handlers) GetConfigs(c *gin.Context) {
	leader, follower := h.configs.ListAll()
	c.JSON(http.StatusOK, gin.H{
		"leader_configs":   leader,
		"follower_configs": follower,
	})
}

// ListCalibrationConfigs lists the config entries for one device kind.
func (h *Handlers) ListCalibrationConfigs(c *gin.Context) {
	deviceKind := c.Param("device_type")
	entries, err := h.configs.List(deviceKind)
	if err != nil {
		h.reply(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"configs":     entries,
		"device_type": deviceKind,
	})
}

// DeleteCalibrationConfig deletes one named config file.
func (h *Handlers) DeleteCalibrationConfig(c *gin.Context) {
	deviceKind := c.Param("device_type")
	name := c.Param("config_name")

	if err := h.configs.Delete(deviceKind, name); err != nil {
		h.reply(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Configuration '" + name + "' deleted successfully",
	})
}

// AvailablePorts lists candidate serial ports.
func (h *Handlers) AvailablePorts(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ports": ports.List()})
}

// StartTraining starts a training job.
func (h *Handlers) StartTraining(c *gin.Context) {
	var req training.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": err.Error()})
		return
	}

	if err := h.training.Start(req); err != nil {
		h.reply(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Training started successfully"})
}

// StopTraining stops the training job.
func (h *Handlers) StopTraining(c *gin.Context) {
	if err := h.training.Stop(); err != nil {
		h.reply(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Training stopped successfully"})
}

// TrainingStatus returns the training snapshot.
func (h *Handlers) TrainingStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.training.Status())
}

// TrainingLogs drains and returns recent trainer output.
func (h *Handlers) TrainingLogs(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"logs": h.training.Logs()})
}

// reply maps domain errors onto the API contract: expected rejections stay
// HTTP 200 with success:false, anything else is a 500.
func (h *Handlers) reply(c *gin.Context, err error) {
	switch {
	case errors.Is(err, calibration.ErrAlreadyActive),
		errors.Is(err, calibration.ErrNoActiveSession),
		errors.Is(err, training.ErrAlreadyRunning),
		errors.Is(err, training.ErrNotRunning),
		errors.Is(err, configstore.ErrUnknownDeviceKind),
		errors.Is(err, configstore.ErrNotFound):
		c.JSON(http.StatusOK, gin.H{"success": false, "message": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": err.Error()})
	}
}
