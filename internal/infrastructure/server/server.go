package server

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/nicolas-rabault/lelab/internal/api/http"
	"github.com/nicolas-rabault/lelab/internal/api/middleware"
	"github.com/nicolas-rabault/lelab/internal/api/ws"
	"github.com/nicolas-rabault/lelab/internal/calibration"
	"github.com/nicolas-rabault/lelab/internal/configstore"
	"github.com/nicolas-rabault/lelab/internal/driver"
	"github.com/nicolas-rabault/lelab/internal/infrastructure/config"
	"github.com/nicolas-rabault/lelab/internal/infrastructure/logging"
	"github.com/nicolas-rabault/lelab/internal/infrastructure/monitoring"
	"github.com/nicolas-rabault/lelab/internal/training"
)

// Server wraps the HTTP server and dependencies
type Server struct {
	router      *gin.Engine
	calibration *calibration.Manager
	training    *training.Manager
	configs     *configstore.Store
	logger      *logging.Logger
	config      *config.Config
	metrics     *monitoring.Metrics
}

// NewServer creates a new server instance
func NewServer(cfg *config.Config) (*Server, error) {
	// Initialize logger
	var logger *logging.Logger
	if cfg.Logging.Development {
		logger = logging.NewDevelopment()
	} else {
		logger = logging.NewDefault()
	}

	logger.Info("Initializing leLab backend",
		zap.String("port", cfg.Server.Port),
		zap.String("calibration_command", cfg.Calibration.Command),
		zap.String("training_command", cfg.Training.Command),
	)

	// Initialize metrics first (needed by other components)
	metrics := monitoring.NewMetrics()

	// Calibration session manager driving the vendor CLI under a PTY
	factory := driver.NewFactory(cfg.Calibration, logger)
	calibrationManager := calibration.NewManager(factory, logger, calibration.Options{
		MailboxCapacity: cfg.Calibration.InputQueueSize,
		StopGrace:       cfg.Calibration.StopGrace,
	}).WithMetrics(metrics)

	// Training job supervisor
	trainingManager := training.NewManager(cfg.Training, logger).WithMetrics(metrics)

	// Calibration config file store
	configs := configstore.New(cfg.Calibration.LeaderConfigDir, cfg.Calibration.FollowerConfigDir, logger)

	// Create router
	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	// Add middleware
	router.Use(gin.Recovery())
	router.Use(monitoring.Middleware(metrics))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	if cfg.RateLimit.Enabled {
		logger.Info("Rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
		)
		router.Use(middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
		}))
	}

	// Create handlers
	handlers := http.NewHandlers(calibrationManager, trainingManager, configs, logger)
	wsHandler := ws.NewHandler(calibrationManager, logger, metrics)

	// Register routes
	router.GET("/", handlers.Root)
	router.GET("/health", handlers.Health)

	// Calibration
	router.POST("/start-calibration", handlers.StartCalibration)
	router.POST("/stop-calibration", handlers.StopCalibration)
	router.POST("/calibration-input", handlers.CalibrationInput)
	router.GET("/calibration-status", handlers.CalibrationStatus)
	router.GET("/calibration-configs/:device_type", handlers.ListCalibrationConfigs)
	router.DELETE("/calibration-configs/:device_type/:config_name", handlers.DeleteCalibrationConfig)
	router.GET("/get-configs", handlers.GetConfigs)
	router.GET("/available-ports", handlers.AvailablePorts)

	// Training
	router.POST("/start-training", handlers.StartTraining)
	router.POST("/stop-training", handlers.StopTraining)
	router.GET("/training-status", handlers.TrainingStatus)
	router.GET("/training-logs", handlers.TrainingLogs)

	// WebSocket
	router.GET("/ws/status", wsHandler.Status)

	// Metrics endpoint
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	logger.Info("Server initialized successfully")

	return &Server{
		router:      router,
		calibration: calibrationManager,
		training:    trainingManager,
		configs:     configs,
		logger:      logger,
		config:      cfg,
		metrics:     metrics,
	}, nil
}

// Run starts the HTTP server
func (s *Server) Run() error {
	addr := s.config.Server.Host + ":" + s.config.Server.Port
	s.logger.Info("Starting HTTP server", zap.String("addr", addr))
	return s.router.Run(addr)
}

// Close gracefully shuts down the server
func (s *Server) Close() error {
	s.logger.Info("Shutting down server...")

	// Cancel the active calibration session, if any
	if err := s.calibration.Stop(); err != nil && err != calibration.ErrNoActiveSession {
		s.logger.Warn("Failed to stop calibration session", zap.Error(err))
	}

	// Stop any running training job
	if err := s.training.Stop(); err != nil && err != training.ErrNotRunning {
		s.logger.Warn("Failed to stop training job", zap.Error(err))
	}

	// Sync logger before exit
	s.logger.Sync()

	return nil
}
