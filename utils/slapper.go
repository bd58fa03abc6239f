package utils

import (
	"fmt"

	"go.bug.st/serial"
	"go.uber.org/zap"
)

// Slapper drives the physical haptic actuator over a serial link. A single
// 'F' byte fires one pulse. All operations are best-effort: the device being
// unplugged mid-session must never affect control flow.
type Slapper struct {
	port   serial.Port
	logger *zap.Logger
}

func NewSlapper(portName string, baud int, logger *zap.Logger) (*Slapper, error) {
	mode := &serial.Mode{BaudRate: baud}
	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open slapper port %s: %w", portName, err)
	}
	return &Slapper{port: port, logger: logger}, nil
}

// Pulse fires the actuator once, fire-and-forget.
func (s *Slapper) Pulse() {
	if _, err := s.port.Write([]byte("F")); err != nil {
		s.logger.Warn("Slapper pulse failed", zap.Error(err))
	}
}

func (s *Slapper) Close() {
	if err := s.port.Close(); err != nil {
		s.logger.Warn("Failed to close slapper port", zap.Error(err))
	}
}

// NopSlapper is the null actuator used when no serial port is configured or
// the device cannot be opened.
type NopSlapper struct{}

func (NopSlapper) Pulse() {}
