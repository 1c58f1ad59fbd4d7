package events

import (
	"fmt"
	"strings"

	"github.com/openclaw/openclaw/internal/common/config"
	"github.com/openclaw/openclaw/internal/common/logger"
	"github.com/openclaw/openclaw/internal/events/bus"
)

// Provide builds the configured event bus implementation. An empty NATS URL
// (or provider "memory") selects the in-memory bus, which only spans a
// single process; the fallback poller covers cross-process gaps.
func Provide(cfg config.BusConfig, log *logger.Logger) (bus.EventBus, func() error, error) {
	if cfg.Provider == "nats" || strings.TrimSpace(cfg.NATSURL) != "" {
		natsBus, err := bus.NewNATSEventBus(cfg, log)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize NATS event bus: %w", err)
		}
		cleanup := func() error {
			natsBus.Close()
			return nil
		}
		return natsBus, cleanup, nil
	}

	memBus := bus.NewMemoryEventBus(log)
	return memBus, func() error { return nil }, nil
}
