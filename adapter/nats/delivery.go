package nats

import (
	"context"
	"fmt"
	"sync"

	"github.com/nats-io/nats.go"
	"github.com/trickstertwo/xroute"
)

type delivery struct {
	t     *Transport
	topic string
	msg   *nats.Msg
	env   *xroute.Envelope

	once sync.Once
	err  error
}

func (d *delivery) Envelope() *xroute.Envelope { return d.env }

// Ack answers a request-style message. Plain publishes need no acknowledgement.
func (d *delivery) Ack(_ context.Context) error {
	d.once.Do(func() {
		d.t.stats.acked.Add(1)
		if d.msg.Reply != "" {
			d.err = d.msg.Respond(nil)
		}
	})
	return d.err
}

// Nack forwards the envelope to the dead-letter subject, tagged with its
// origin and reason. Without one the envelope is dropped. Routers always ack,
// so only direct subscribers of the transport reach this path.
func (d *delivery) Nack(_ context.Context, reason error) error {
	d.once.Do(func() {
		d.t.stats.nacked.Add(1)
		dl := d.t.cfg.DeadLetter
		if dl == "" {
			return
		}
		out := encodeEnvelope(dl, d.env)
		out.Header.Set(headerOrigTopic, d.topic)
		out.Header.Set(headerError, fmt.Sprint(reason))
		if d.err = d.t.conn.PublishMsg(out); d.err == nil {
			d.t.stats.deadLettered.Add(1)
		}
	})
	return d.err
}
