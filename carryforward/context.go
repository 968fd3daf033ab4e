package carryforward

import (
	"maps"
	"slices"
	"strings"
)

// DefaultNodeName labels hops recorded by an instance without a node name.
const DefaultNodeName = "DEFAULT_NODE"

// SourceContext identifies one hop: the service instance a message passed
// through. It is a comparable value; two hops are the same hop iff == holds.
type SourceContext struct {
	AppInstanceName     string
	AppInstanceVersion  string
	ServiceInstanceName string
	NodeName            string
}

// String renders the hop as app:version.service@node.
func (s SourceContext) String() string {
	var b strings.Builder
	b.WriteString(s.AppInstanceName)
	b.WriteByte(':')
	b.WriteString(s.AppInstanceVersion)
	b.WriteByte('.')
	b.WriteString(s.ServiceInstanceName)
	if s.NodeName != "" {
		b.WriteByte('@')
		b.WriteString(s.NodeName)
	}
	return b.String()
}

// Context is the provenance and cross-cutting state carried by a message
// across hops. A Context read from a message is a detached value: changes
// reach the message only through Attach.
//
// A Context is not safe for concurrent mutation; it belongs to the message
// being processed.
type Context struct {
	hops       []SourceContext
	props      map[string]string
	appContext *string
}

// New returns a context holding the given hops, duplicates removed.
func New(hops ...SourceContext) *Context {
	c := &Context{props: make(map[string]string)}
	for _, h := range hops {
		c.AddHop(h)
	}
	return c
}

// AddHop appends h unless an equal hop is already recorded. It reports
// whether the hop was appended.
func (c *Context) AddHop(h SourceContext) bool {
	if slices.Contains(c.hops, h) {
		return false
	}
	c.hops = append(c.hops, h)
	return true
}

// Hops returns a copy of the recorded hops in traversal order.
func (c *Context) Hops() []SourceContext {
	return slices.Clone(c.hops)
}

// Len is the number of recorded hops.
func (c *Context) Len() int { return len(c.hops) }

func (c *Context) Property(key string) (string, bool) {
	v, ok := c.props[key]
	return v, ok
}

func (c *Context) SetProperty(key, value string) {
	if c.props == nil {
		c.props = make(map[string]string)
	}
	c.props[key] = value
}

// Properties returns a copy of the carried properties.
func (c *Context) Properties() map[string]string {
	out := make(map[string]string, len(c.props))
	maps.Copy(out, c.props)
	return out
}

// AppContext returns the application context and whether one is set. An
// empty string that was explicitly set is reported as present.
func (c *Context) AppContext() (string, bool) {
	if c.appContext == nil {
		return "", false
	}
	return *c.appContext, true
}

func (c *Context) SetAppContext(s string) {
	c.appContext = &s
}

func (c *Context) ClearAppContext() {
	c.appContext = nil
}

// Clone returns a deep copy.
func (c *Context) Clone() *Context {
	out := &Context{
		hops:  slices.Clone(c.hops),
		props: c.Properties(),
	}
	if c.appContext != nil {
		s := *c.appContext
		out.appContext = &s
	}
	return out
}

// Equal reports whether both contexts hold the same hops in the same order,
// the same properties and the same application context, including whether
// one is set.
func (c *Context) Equal(o *Context) bool {
	if c == nil || o == nil {
		return c == o
	}
	if !slices.Equal(c.hops, o.hops) || !maps.Equal(c.props, o.props) {
		return false
	}
	if (c.appContext == nil) != (o.appContext == nil) {
		return false
	}
	return c.appContext == nil || *c.appContext == *o.appContext
}
