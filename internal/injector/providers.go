// Package injector wires the server from a config file path.
package injector

import (
	"github.com/google/wire"

	"github.com/zeusync/arena/internal/config"
	"github.com/zeusync/arena/internal/core/observability/log"
	"github.com/zeusync/arena/internal/server"
)

var ProviderSet = wire.NewSet(
	config.Load,
	ProvideLogger,
	server.NewServer,
)

// ProvideLogger builds the process logger from the log section.
func ProvideLogger(cfg config.Config) (log.Log, error) {
	level, err := log.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	logger, err := log.NewWithFormat(level, log.Format(cfg.Log.Format))
	if err != nil {
		return nil, err
	}
	return logger, nil
}
