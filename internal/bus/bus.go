package bus

import (
	"fmt"

	"github.com/opensource-delivery/kite/internal/domain"
)

// New creates a new event bus based on configuration.
// "channel" is the in-process default; "nats" and "kafka" are for
// multi-node deployments.
func New(cfg domain.EventBusConfig) (domain.EventBus, error) {
	switch cfg.Type {
	case "channel":
		return NewChannelBus(cfg.ChannelBufferSize), nil

	case "nats":
		return NewNATSBus(cfg)

	case "kafka":
		return NewKafkaBus(cfg)

	default:
		return nil, fmt.Errorf("unsupported event bus type: %s", cfg.Type)
	}
}
