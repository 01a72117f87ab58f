package logging

import (
	"go.uber.org/zap"
)

// New builds the process-wide logger. Development mode switches to the
// human-readable console encoder.
func New(dev bool) (*zap.Logger, error) {
	if dev {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// NewNop returns a logger that discards everything. Used in tests.
func NewNop() *zap.Logger { return zap.NewNop() }
