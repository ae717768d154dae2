// Package main is the entry point for the leLab backend server.
//
// This application exposes the LeRobot SO-101 calibration and training
// workflows to a web frontend, bridging blocking terminal-driven CLI tools
// into an async HTTP/WebSocket API.
//
// Architecture:
//
//	Frontend (React) → Go Backend → lerobot-calibrate (PTY session)
//	                             → lerobot-train (supervised process)
//
// The server provides:
//   - REST API for calibration session control and input
//   - WebSocket streaming of live calibration status
//   - Calibration config file management
//   - Training job supervision with log capture
//   - Rate limiting and CORS
//
// Configuration:
//   - Environment variables (12-factor)
//   - Optional TOML file via LELAB_CONFIG
//   - CLI flags (override env vars)
//
// Usage:
//
//	# Production mode
//	./server -port 8000
//
//	# Development mode (colored logs, debug level)
//	./server -dev
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown
package main
