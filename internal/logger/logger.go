package logger

import "go.uber.org/zap"

// New returns the process logger. Dev environments get the human-readable
// development config; everything else gets production JSON at info level.
func New(env string) (*zap.Logger, error) {
	if env == "dev" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
