package capture

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/jwulff/evening/internal/config"
	"github.com/jwulff/evening/internal/recorder"
)

// New builds the capture device selected by cfg.Mode.
func New(cfg config.CaptureConfig, logger *zap.Logger) (recorder.CaptureDevice, error) {
	switch cfg.Mode {
	case "mock", "":
		return NewMock(cfg.SampleRate, cfg.ToneHz, cfg.DenyPermission), nil
	case "exec":
		dev, err := NewExec(cfg.Command, logger)
		if err != nil {
			return nil, err
		}
		return dev, nil
	case "daemon":
		return NewDaemon(cfg.Socket, cfg.SampleRate, logger), nil
	default:
		return nil, fmt.Errorf("unknown capture mode %q", cfg.Mode)
	}
}
