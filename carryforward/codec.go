package carryforward

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrCorrupt reports a carried context that cannot be decoded.
var ErrCorrupt = errors.New("carryforward: corrupt context")

// wireContext is version 1 of the carried context JSON. Field names are fixed
// by the services already exchanging it.
type wireContext struct {
	Hops       []wireHop         `json:"vecOfContextsCarriedFwd"`
	Props      map[string]string `json:"hashCarryFwdProps"`
	AppContext *string           `json:"appContext"`
}

type wireHop struct {
	AppInstName    string `json:"appInstName"`
	AppInstVersion string `json:"appInstVersion"`
	SrvInstName    string `json:"srvInstName"`
	NodeName       string `json:"nodeName,omitempty"`
}

// MarshalJSON encodes the context in its wire form. Empty hop and property
// collections are written as [] and {}; an unset application context is null.
func (c *Context) MarshalJSON() ([]byte, error) {
	w := wireContext{
		Hops:       make([]wireHop, 0, len(c.hops)),
		Props:      c.Properties(),
		AppContext: c.appContext,
	}
	for _, h := range c.hops {
		w.Hops = append(w.Hops, wireHop{
			AppInstName:    h.AppInstanceName,
			AppInstVersion: h.AppInstanceVersion,
			SrvInstName:    h.ServiceInstanceName,
			NodeName:       h.NodeName,
		})
	}
	return json.Marshal(w)
}

// UnmarshalJSON decodes the wire form. Unknown fields are ignored and missing
// ones take their zero value, so older and newer writers interoperate.
func (c *Context) UnmarshalJSON(data []byte) error {
	var w wireContext
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	c.hops = make([]SourceContext, 0, len(w.Hops))
	for _, h := range w.Hops {
		c.hops = append(c.hops, SourceContext{
			AppInstanceName:     h.AppInstName,
			AppInstanceVersion:  h.AppInstVersion,
			ServiceInstanceName: h.SrvInstName,
			NodeName:            h.NodeName,
		})
	}
	c.props = w.Props
	if c.props == nil {
		c.props = make(map[string]string)
	}
	c.appContext = w.AppContext
	return nil
}

// Encode returns the wire string stored on a message.
func Encode(c *Context) (string, error) {
	b, err := json.Marshal(c)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Decode parses a wire string. Errors wrap ErrCorrupt.
func Decode(s string) (*Context, error) {
	c := &Context{}
	if err := json.Unmarshal([]byte(s), c); err != nil {
		if errors.Is(err, ErrCorrupt) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return c, nil
}
