package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"
)

// Inline runs job handlers in the publishing goroutine. It stands in for the
// broker when RabbitMQ is disabled, so jobs still go through the same JSON
// encoding and handlers.
type Inline struct {
	handlers map[string]Handler
	logger   *zap.Logger
}

func NewInline(logger *zap.Logger) *Inline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Inline{handlers: make(map[string]Handler), logger: logger}
}

// Handle registers h for queue. It is not safe to call after the dispatcher
// is in use.
func (i *Inline) Handle(queue string, h Handler) {
	i.handlers[queue] = h
}

func (i *Inline) PublishJSON(ctx context.Context, queue string, v any) error {
	h, ok := i.handlers[queue]
	if !ok {
		return fmt.Errorf("no handler for queue %q", queue)
	}
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal job payload failed: %w", err)
	}
	if err := h(ctx, body); err != nil {
		i.logger.Warn("inline job failed", zap.String("queue", queue), zap.Error(err))
		return err
	}
	return nil
}
