// Package obs wires the service's structured logger. Every long-running
// component (pipeline worker, reaper, ingress handlers) takes a
// *zap.SugaredLogger explicitly rather than reaching for a package global,
// mirroring the single-Pipeline-value, no-singletons policy the rest of the
// service follows.
package obs

import (
	"go.uber.org/zap"
)

// New builds the process-wide logger. dev selects the human-readable console
// encoder; production deployments get JSON so log aggregation can parse
// fields like processing_id and duration without regexing strings.
func New(dev bool) (*zap.SugaredLogger, error) {
	var cfg zap.Config
	if dev {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}

	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return logger.Sugar(), nil
}
