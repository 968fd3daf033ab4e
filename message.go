package xroute

import "time"

// Envelope is what a transport carries. Payload holds a message encoded by a
// Codec named in Metadata.
type Envelope struct {
	// ID is the envelope identifier; transports may assign one if empty.
	ID string
	// Name is the logical name of the payload, used for routing and metrics.
	Name string
	// Payload is the encoded message.
	Payload []byte
	// Metadata carries the codec name and the route that produced the envelope.
	Metadata map[string]string
	// ProducedAt is the production timestamp from the injected clock.
	ProducedAt time.Time
}

// Metadata keys set by the router.
const (
	MetaCodec = "xroute-codec"
	MetaRoute = "xroute-route"
)

// EnvelopeName is the Name of envelopes produced by the router.
const EnvelopeName = "xroute.message"

func (e *Envelope) codecName() string {
	if e == nil || e.Metadata == nil {
		return ""
	}
	return e.Metadata[MetaCodec]
}
