package redisstream

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/trickstertwo/xroute"
)

type delivery struct {
	t     *Transport
	topic string
	group string
	id    string
	env   *xroute.Envelope

	once sync.Once
	err  error
}

func (d *delivery) Envelope() *xroute.Envelope { return d.env }

// Ack acknowledges the entry, deleting it when AutoDeleteOnAck is set.
func (d *delivery) Ack(ctx context.Context) error {
	d.once.Do(func() { d.err = d.ack(ctx) })
	return d.err
}

func (d *delivery) ack(ctx context.Context) error {
	if err := d.t.client.XAck(ctx, d.topic, d.group, d.id).Err(); err != nil {
		return err
	}
	d.t.stats.acked.Add(1)
	if d.t.cfg.AutoDeleteOnAck {
		return d.t.client.XDel(ctx, d.topic, d.id).Err()
	}
	return nil
}

// Nack copies the entry to the dead-letter stream and acknowledges it. Without
// a dead-letter stream the entry stays pending for claim recovery.
func (d *delivery) Nack(ctx context.Context, reason error) error {
	d.once.Do(func() {
		d.t.stats.nacked.Add(1)
		dl := d.t.cfg.DeadLetter
		if dl == "" {
			return
		}
		values := encodeEnvelope(d.env)
		values[fieldOrigTopic] = d.topic
		values[fieldOrigID] = d.id
		values[fieldError] = fmt.Sprint(reason)
		if d.err = d.t.client.XAdd(ctx, &redis.XAddArgs{Stream: dl, ID: "*", Values: values}).Err(); d.err != nil {
			return
		}
		d.err = d.ack(ctx)
	})
	return d.err
}

func encodeEnvelope(e *xroute.Envelope) map[string]any {
	vals := make(map[string]any, 4+len(e.Metadata))
	if e.ID != "" {
		vals[fieldID] = e.ID
	}
	vals[fieldName] = e.Name
	vals[fieldPayload] = e.Payload
	vals[fieldProducedAt] = e.ProducedAt.UnixNano()
	for k, v := range e.Metadata {
		vals[fieldMetaPrefix+k] = v
	}
	return vals
}

// decodeEnvelope rebuilds an envelope from stream entry values. The
// producer's ID wins over the stream entry ID.
func decodeEnvelope(entryID string, vals map[string]any) *xroute.Envelope {
	e := &xroute.Envelope{ID: entryID, Metadata: map[string]string{}}
	if v, ok := vals[fieldID]; ok {
		if s := asString(v); s != "" {
			e.ID = s
		}
	}
	if v, ok := vals[fieldName]; ok {
		e.Name = asString(v)
	}
	switch p := vals[fieldPayload].(type) {
	case []byte:
		e.Payload = p
	case string:
		e.Payload = []byte(p)
	}
	if ns, ok := toInt64(vals[fieldProducedAt]); ok && ns > 0 {
		e.ProducedAt = time.Unix(0, ns)
	}
	for k, v := range vals {
		if name, ok := strings.CutPrefix(k, fieldMetaPrefix); ok {
			e.Metadata[name] = asString(v)
		}
	}
	return e
}

func asString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case []byte:
		return string(s)
	default:
		return fmt.Sprint(s)
	}
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case float64:
		return int64(n), true
	case string:
		i, err := strconv.ParseInt(n, 10, 64)
		return i, err == nil
	case []byte:
		return toInt64(string(n))
	}
	return 0, false
}
