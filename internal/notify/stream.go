package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/ticketflow/internal/events"
)

// StreamPublisher appends events to an external stream for other consumers.
type StreamPublisher interface {
	Publish(ctx context.Context, event events.Event) error
}

type redisStream struct {
	client *redis.Client
	stream string
	logger *zap.Logger
}

// NewRedisStream returns a publisher that XADDs to stream.
func NewRedisStream(client *redis.Client, stream string, logger *zap.Logger) StreamPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &redisStream{client: client, stream: stream, logger: logger}
}

func (p *redisStream) Publish(ctx context.Context, event events.Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	fields := map[string]any{
		"event_id":   event.ID,
		"event_type": string(event.Type),
		"ticket_id":  event.TicketID,
		"actor_id":   event.ActorID,
		"body":       string(body),
	}

	if err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		Values: fields,
	}).Err(); err != nil {
		return fmt.Errorf("xadd %s: %w", p.stream, err)
	}

	p.logger.Debug("event appended to stream",
		zap.String("stream", p.stream),
		zap.String("event_id", event.ID),
		zap.String("event_type", string(event.Type)))
	return nil
}
