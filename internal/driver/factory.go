package driver

import (
	"fmt"

	"github.com/nicolas-rabault/lelab/internal/calibration"
	"github.com/nicolas-rabault/lelab/internal/infrastructure/config"
	"github.com/nicolas-rabault/lelab/internal/infrastructure/logging"
)

// Device kinds accepted by the factory.
const (
	KindRobot  = "robot"
	KindTeleop = "teleop"
)

// NewFactory returns a calibration.Factory building the driver variant for a
// start request. Device selection is a configuration input: the bridge never
// inspects the kind beyond routing it here.
func NewFactory(cfg config.CalibrationConfig, log *logging.Logger) calibration.Factory {
	return func(req calibration.Request) (calibration.Device, error) {
		switch req.DeviceKind {
		case KindRobot:
			return newProcDevice(cfg.Command, []string{
				"--robot.type=so101_follower",
				"--robot.port=" + req.Port,
				"--robot.id=" + req.ConfigID,
			}, req.Port, log), nil
		case KindTeleop:
			return newProcDevice(cfg.Command, []string{
				"--teleop.type=so101_leader",
				"--teleop.port=" + req.Port,
				"--teleop.id=" + req.ConfigID,
			}, req.Port, log), nil
		default:
			return nil, fmt.Errorf("unknown device type: %q", req.DeviceKind)
		}
	}
}
