package carryforward

import (
	"github.com/trickstertwo/xroute/message"
)

// FromMessage reads the context carried by m. found is false when m carries
// none. A context that fails to decode is reported with an error wrapping
// ErrCorrupt; message access failures are returned as is.
func FromMessage(m message.Message) (c *Context, found bool, err error) {
	v, ok, err := m.Property(message.CarryForwardContext.Name)
	if err != nil || !ok {
		return nil, false, err
	}
	s, isStr := v.(string)
	if !isStr {
		return nil, true, ErrCorrupt
	}
	c, err = Decode(s)
	if err != nil {
		return nil, true, err
	}
	return c, true, nil
}

// Attach serializes c onto m, replacing any context already carried.
func Attach(m message.Message, c *Context) error {
	s, err := Encode(c)
	if err != nil {
		return err
	}
	return message.CarryForwardContext.Set(m, s)
}

// Detach reads the context carried by m and removes it from the message.
func Detach(m message.Message) (*Context, error) {
	c, found, err := FromMessage(m)
	if !found {
		return nil, err
	}
	if rmErr := m.RemoveProperty(message.CarryForwardContext.Name); rmErr != nil && err == nil {
		err = rmErr
	}
	return c, err
}
