package domain

import (
	"context"
)

// EventBus is the interface for event-driven communication with the
// surrounding payment and audit components. Implemented over Go channels
// (in-process) or NATS (distributed).
type EventBus interface {
	// Publish sends a message to a topic.
	Publish(ctx context.Context, topic string, payload []byte) error

	// Subscribe registers a handler for a topic.
	// Returns a subscription that can be used to unsubscribe.
	Subscribe(ctx context.Context, topic string, handler MessageHandler) (Subscription, error)

	// Request sends a message and waits for a response (request-reply pattern).
	Request(ctx context.Context, topic string, payload []byte) ([]byte, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// MessageHandler processes incoming messages.
type MessageHandler func(ctx context.Context, msg *Message) error

// Message represents an event message.
type Message struct {
	ID        string            `json:"id"`
	Topic     string            `json:"topic"`
	Payload   []byte            `json:"payload"`
	Metadata  map[string]string `json:"metadata"`
	Timestamp int64             `json:"timestamp"`
}

// Subscription represents an active subscription.
type Subscription interface {
	// Unsubscribe stops receiving messages.
	Unsubscribe() error

	// Topic returns the subscribed topic.
	Topic() string
}

// EventBusConfig holds configuration for event bus initialization.
type EventBusConfig struct {
	// Type is the bus type: "channel" or "nats"
	Type string

	// Channel settings (in-process)
	ChannelBufferSize int

	// NATS settings (distributed)
	NATSUrl           string
	NATSToken         string
	NATSMaxReconnects int
	NATSReconnectWait int // seconds
}

// Topics of the fraud evaluation pipeline.
const (
	// TopicTransactionIngested carries transactions from the upstream
	// payment/voice pipeline for asynchronous evaluation.
	TopicTransactionIngested = "coral.transaction.ingested"

	// TopicAnalysis carries every completed FraudAnalysis for
	// audit/observability consumers.
	TopicAnalysis = "coral.fraud.analysis"

	// TopicAlert carries high and critical analyses for the
	// payment-execution gate.
	TopicAlert = "coral.fraud.alert"

	// TopicRetrain requests an asynchronous model retrain.
	TopicRetrain = "coral.model.retrain"

	// TopicModelTrained announces a completed training run.
	TopicModelTrained = "coral.model.trained"
)
