package nats

import (
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/trickstertwo/xroute"
)

const (
	headerName       = "Xroute-Name"
	headerProducedAt = "Xroute-Produced-At"
	headerMetaPrefix = "Xroute-Meta-"
	headerOrigTopic  = "Xroute-Orig-Topic"
	headerError      = "Xroute-Error"
)

func encodeEnvelope(subject string, env *xroute.Envelope) *nats.Msg {
	msg := nats.NewMsg(subject)
	msg.Data = env.Payload
	if env.ID != "" {
		msg.Header.Set(nats.MsgIdHdr, env.ID)
	}
	if env.Name != "" {
		msg.Header.Set(headerName, env.Name)
	}
	if !env.ProducedAt.IsZero() {
		msg.Header.Set(headerProducedAt, env.ProducedAt.UTC().Format(time.RFC3339Nano))
	}
	for k, v := range env.Metadata {
		msg.Header.Set(headerMetaPrefix+k, v)
	}
	return msg
}

func decodeEnvelope(msg *nats.Msg) *xroute.Envelope {
	env := &xroute.Envelope{Payload: msg.Data}
	if msg.Header == nil {
		return env
	}
	env.ID = msg.Header.Get(nats.MsgIdHdr)
	env.Name = msg.Header.Get(headerName)
	if ts := msg.Header.Get(headerProducedAt); ts != "" {
		if t, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			env.ProducedAt = t
		}
	}
	for k, vs := range msg.Header {
		key, ok := strings.CutPrefix(k, headerMetaPrefix)
		if !ok || len(vs) == 0 {
			continue
		}
		if env.Metadata == nil {
			env.Metadata = make(map[string]string)
		}
		env.Metadata[key] = vs[0]
	}
	return env
}
