package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"quill/internal/api"
	"quill/internal/content"
	"quill/internal/logging"
)

const topicPrefix = api.EventWorkflowUpdated + "."

// EventBus publishes workflow.updated events on an in-process watermill
// channel. Each workflow has its own topic so subscribers only see the
// workflow they asked for.
type EventBus struct {
	pubSub *gochannel.GoChannel
	buffer int
	logger *slog.Logger
	now    func() time.Time
}

// NewEventBus creates a bus whose subscriber channels hold up to buffer events.
func NewEventBus(buffer int, logger *slog.Logger) *EventBus {
	if buffer <= 0 {
		buffer = 64
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{
			OutputChannelBuffer:            int64(buffer),
			Persistent:                     false,
			BlockPublishUntilSubscriberAck: true,
		},
		watermill.NewSlogLogger(logger),
	)
	return &EventBus{
		pubSub: pubSub,
		buffer: buffer,
		logger: logger,
		now:    time.Now,
	}
}

// NotifyUpdated implements Notifier by publishing a workflow.updated event.
// Publishing waits for subscribers to take the message, which keeps events for
// one workflow in order.
func (b *EventBus) NotifyUpdated(_ context.Context, wf *content.Workflow) error {
	if b == nil || wf == nil {
		return nil
	}
	body, err := json.Marshal(api.NewEvent(wf, b.now()))
	if err != nil {
		return fmt.Errorf("encode workflow event: %w", err)
	}
	msg := message.NewMessage(watermill.NewULID(), body)
	msg.Metadata.Set(logging.FieldWorkflowID, wf.ID)
	msg.Metadata.Set(logging.FieldState, string(wf.State))
	if err := b.pubSub.Publish(topicPrefix+wf.ID, msg); err != nil {
		return fmt.Errorf("publish workflow event: %w", err)
	}
	return nil
}

// Subscribe streams events for one workflow until ctx is cancelled or the bus
// closes. A subscriber that falls behind by more than the buffer loses the
// oldest undelivered events; each event carries the full workflow, so the
// next one brings it up to date.
func (b *EventBus) Subscribe(ctx context.Context, workflowID string) (<-chan api.Event, error) {
	messages, err := b.pubSub.Subscribe(ctx, topicPrefix+workflowID)
	if err != nil {
		return nil, fmt.Errorf("subscribe to workflow events: %w", err)
	}
	out := make(chan api.Event, b.buffer)
	go func() {
		defer close(out)
		for msg := range messages {
			var evt api.Event
			if err := json.Unmarshal(msg.Payload, &evt); err != nil {
				b.logger.Warn("discarding malformed workflow event",
					logging.Error(err),
					logging.String(logging.FieldWorkflowID, workflowID),
				)
				msg.Ack()
				continue
			}
			msg.Ack()
			select {
			case out <- evt:
			default:
				select {
				case <-out:
				default:
				}
				select {
				case out <- evt:
				default:
				}
			}
		}
	}()
	return out, nil
}

// Close shuts the bus down and closes every subscriber channel.
func (b *EventBus) Close() error {
	if b == nil {
		return nil
	}
	return b.pubSub.Close()
}
