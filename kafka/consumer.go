package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/IBM/sarama"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/mobix/storefront/pkg/logger"
)

// SessionCountHandler processes authoritative session counts from the
// session server.
type SessionCountHandler func(ctx context.Context, event SessionCountEvent) error

// Consumer subscribes to session count events and feeds them into cart
// reconciliation.
type Consumer struct {
	consumer sarama.ConsumerGroup
	groupID  string
	handler  SessionCountHandler
}

// NewConsumer creates a consumer group over the session counts topic
func NewConsumer(brokers []string, groupID string, handler SessionCountHandler) (*Consumer, error) {
	config := sarama.NewConfig()
	config.Version = sarama.V2_6_0_0
	config.Consumer.Group.Rebalance.Strategy = sarama.NewBalanceStrategyRoundRobin()
	config.Consumer.Offsets.Initial = sarama.OffsetNewest
	config.Consumer.Return.Errors = true

	consumer, err := sarama.NewConsumerGroup(brokers, groupID, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka consumer: %w", err)
	}

	logger.Logger.Info().
		Strs("brokers", brokers).
		Str("group_id", groupID).
		Str("topic", TopicSessionCounts).
		Msg("Kafka consumer initialized")

	return &Consumer{
		consumer: consumer,
		groupID:  groupID,
		handler:  handler,
	}, nil
}

// Start begins consuming in the background until ctx is canceled
func (c *Consumer) Start(ctx context.Context) {
	handler := &sessionCountGroupHandler{handler: c.handler}

	go func() {
		for {
			select {
			case <-ctx.Done():
				logger.Logger.Info().Msg("Consumer context cancelled, stopping")
				return
			default:
				if err := c.consumer.Consume(ctx, []string{TopicSessionCounts}, handler); err != nil {
					logger.Logger.Error().Err(err).Msg("Error from consumer")
				}
			}
		}
	}()

	go func() {
		for err := range c.consumer.Errors() {
			logger.Logger.Error().Err(err).Msg("Consumer error")
		}
	}()
}

// Close closes the Kafka consumer
func (c *Consumer) Close() error {
	if c.consumer != nil {
		return c.consumer.Close()
	}
	return nil
}

// sessionCountGroupHandler implements sarama.ConsumerGroupHandler
type sessionCountGroupHandler struct {
	handler SessionCountHandler
}

func (h *sessionCountGroupHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h *sessionCountGroupHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (h *sessionCountGroupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for message := range claim.Messages() {
		h.handleMessage(session.Context(), message)
		session.MarkMessage(message, "")
	}
	return nil
}

func (h *sessionCountGroupHandler) handleMessage(ctx context.Context, message *sarama.ConsumerMessage) {
	// Extract trace context from Kafka headers
	carrier := propagation.MapCarrier{}
	for _, header := range message.Headers {
		key := string(header.Key)
		if key == "traceparent" || key == "tracestate" {
			carrier[key] = string(header.Value)
		}
	}
	ctx = otel.GetTextMapPropagator().Extract(ctx, carrier)

	tracer := otel.Tracer("kafka-consumer")
	ctx, span := tracer.Start(ctx, "kafka.consume.session_count",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("messaging.system", "kafka"),
			attribute.String("messaging.source", message.Topic),
			attribute.Int("messaging.kafka.partition", int(message.Partition)),
			attribute.Int64("messaging.kafka.offset", message.Offset),
		),
	)
	defer span.End()

	var event SessionCountEvent
	if err := json.Unmarshal(message.Value, &event); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to decode event")
		logger.Error(ctx).Err(err).Msg("Failed to decode session count event")
		return
	}

	span.SetAttributes(
		attribute.String("event.id", event.EventID),
		attribute.Int("session.count", event.Count),
	)

	if err := h.handler(ctx, event); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Handler failed")
		logger.Error(ctx).Err(err).Str("event_id", event.EventID).Msg("Session count handler failed")
		return
	}

	span.SetStatus(codes.Ok, "Event processed")
}
