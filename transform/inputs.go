package transform

import (
	"encoding/base64"

	"github.com/trickstertwo/xroute/carryforward"
	"github.com/trickstertwo/xroute/message"
)

// EmptyDocument stands in for an empty body or application context.
const EmptyDocument = "<Empty/>"

// Inputs are the values bound to a program for one invocation.
type Inputs struct {
	// Message is a read-only view of the live message.
	Message message.Message
	// Properties holds every property of the message.
	Properties map[string]any
	// Body is the text body, or EmptyDocument.
	Body string
	// BytesBase64 is the bytes body, base64 encoded.
	BytesBase64 string
	// Attachments maps attachment names to their base64 encoded content.
	Attachments map[string]string
	// Root is the effective application context, the root input document.
	Root string
}

// Prop returns the property name rendered as text, or "" when absent.
func (in *Inputs) Prop(name string) string {
	return message.FormatValue(in.Properties[name])
}

// BindInputs captures the state of m. The application context falls back to
// defaultAppContext and then to EmptyDocument. Read failures leave the
// affected input empty and are returned so the caller can log them.
func BindInputs(m message.Message, defaultAppContext string) (*Inputs, []error) {
	var errs []error
	in := &Inputs{
		Message:     readOnly{m},
		Properties:  make(map[string]any),
		Body:        EmptyDocument,
		Attachments: make(map[string]string),
		Root:        EmptyDocument,
	}

	names, err := m.PropertyNames()
	if err != nil {
		errs = append(errs, err)
	}
	for _, n := range names {
		v, ok, err := m.Property(n)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if ok {
			in.Properties[n] = v
		}
	}

	switch m.Kind() {
	case message.KindText:
		s, err := m.Text()
		if err != nil {
			errs = append(errs, err)
		} else if s != "" {
			in.Body = s
		}
	case message.KindBytes:
		b, err := m.Bytes()
		if err != nil {
			errs = append(errs, err)
		} else {
			in.BytesBase64 = base64.StdEncoding.EncodeToString(b)
		}
	}

	att, err := m.AttachmentNames()
	if err != nil {
		errs = append(errs, err)
	}
	for _, n := range att {
		data, err := m.Attachment(n)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		in.Attachments[n] = base64.StdEncoding.EncodeToString(data)
	}

	root := defaultAppContext
	if c, found, err := carryforward.FromMessage(m); err != nil {
		errs = append(errs, err)
	} else if found {
		if app, ok := c.AppContext(); ok && app != "" {
			root = app
		}
	}
	if root != "" {
		in.Root = root
	}
	return in, errs
}

// readOnly exposes a message to programs without write access.
type readOnly struct {
	message.Message
}

func (r readOnly) deny(op, key string) error {
	return &message.AccessError{Op: op, Key: key, Err: message.ErrReadOnly}
}

func (r readOnly) SetText(string) error  { return r.deny("set text", "") }
func (r readOnly) SetBytes([]byte) error { return r.deny("set bytes", "") }
func (r readOnly) SetObject(any) error   { return r.deny("set object", "") }
func (r readOnly) SetStream([]any) error { return r.deny("set stream", "") }
func (r readOnly) SetAttachment(n string, _ []byte) error {
	return r.deny("set attachment", n)
}
func (r readOnly) SetProperty(n string, _ any) error { return r.deny("set property", n) }
func (r readOnly) RemoveProperty(n string) error     { return r.deny("remove property", n) }
func (r readOnly) SetHeader(f message.HeaderField, _ any) error {
	return r.deny("set header", f.String())
}
