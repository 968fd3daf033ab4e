package xroute

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/trickstertwo/xroute/message"
)

// Publish encodes msgs and sends them to topic in one transport call. It is
// how external producers feed a route's source.
func (r *Router) Publish(ctx context.Context, topic string, msgs ...message.Message) error {
	if r.closed.Load() {
		return ErrRouterClosed
	}
	if topic == "" {
		return ErrInvalidTopic
	}
	if len(msgs) == 0 {
		return nil
	}

	envs := make([]*Envelope, len(msgs))
	for i, m := range msgs {
		if m == nil {
			return fmt.Errorf("%w: message %d is nil", ErrCodec, i)
		}
		data, err := r.codec.Encode(m)
		if err != nil {
			r.stats.errorCount.Add(1)
			return err
		}
		envs[i] = &Envelope{
			ID:         uuid.NewString(),
			Name:       EnvelopeName,
			Payload:    data,
			Metadata:   map[string]string{MetaCodec: r.codec.Name()},
			ProducedAt: r.clock.Now(),
		}
	}

	start := r.clock.Now()
	err := r.transport.Publish(ctx, topic, envs...)
	r.events.notify(Event{Type: EventPublishDone, Topic: topic, Duration: r.clock.Since(start), Err: err})
	if err != nil {
		r.stats.errorCount.Add(1)
		return err
	}
	r.stats.published.Add(uint64(len(envs)))
	return nil
}
