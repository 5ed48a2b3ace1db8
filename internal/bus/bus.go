package bus

import (
	"fmt"

	"github.com/lucylow/coral-rush-sub001/internal/domain"
)

// New creates an event bus from configuration: in-process channels for
// single-node deployments, NATS for distributed ones.
func New(cfg domain.EventBusConfig) (domain.EventBus, error) {
	switch cfg.Type {
	case "channel":
		return NewChannelBus(cfg.ChannelBufferSize), nil

	case "nats":
		return NewNATSBus(cfg)

	default:
		return nil, fmt.Errorf("unsupported event bus type: %s", cfg.Type)
	}
}
