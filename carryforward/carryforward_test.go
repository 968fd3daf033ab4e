package carryforward

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trickstertwo/xroute/message"
)

var (
	hopA = SourceContext{AppInstanceName: "orders", AppInstanceVersion: "1.0", ServiceInstanceName: "svcA", NodeName: "n1"}
	hopB = SourceContext{AppInstanceName: "billing", AppInstanceVersion: "2.1", ServiceInstanceName: "svcB"}
	hopC = SourceContext{AppInstanceName: "ship", AppInstanceVersion: "3", ServiceInstanceName: "svcC", NodeName: DefaultNodeName}
)

// TestAddHop_Dedup verifies an equal hop is not appended twice.
func TestAddHop_Dedup(t *testing.T) {
	c := New(hopA)
	assert.False(t, c.AddHop(hopA))
	assert.Equal(t, 1, c.Len())

	dup := hopA
	assert.False(t, c.AddHop(dup))
	assert.Equal(t, 1, c.Len())

	other := hopA
	other.NodeName = "n2"
	assert.True(t, c.AddHop(other))
	assert.Equal(t, []SourceContext{hopA, other}, c.Hops())
}

// TestHops_ReturnsCopy verifies callers cannot mutate the recorded hops.
func TestHops_ReturnsCopy(t *testing.T) {
	c := New(hopA)
	hops := c.Hops()
	hops[0].ServiceInstanceName = "changed"
	assert.Equal(t, "svcA", c.Hops()[0].ServiceInstanceName)
}

// TestRoundTrip verifies decode(encode(c)) equals c for several shapes.
func TestRoundTrip(t *testing.T) {
	withApp := func(c *Context, s string) *Context { c.SetAppContext(s); return c }
	withProp := func(c *Context) *Context { c.SetProperty("tenant", "acme"); return c }

	tests := []struct {
		name string
		ctx  *Context
	}{
		{"no hops", New()},
		{"one hop", New(hopA)},
		{"n hops", New(hopA, hopB, hopC)},
		{"app context", withApp(New(hopA, hopB), "<ctx><id>1</id></ctx>")},
		{"empty app context", withApp(New(hopA), "")},
		{"properties", withProp(New(hopB))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := Encode(tt.ctx)
			require.NoError(t, err)

			got, err := Decode(s)
			require.NoError(t, err)
			assert.True(t, tt.ctx.Equal(got), "round trip mismatch: %s", s)
		})
	}
}

// TestWireFormat verifies the exact field names on the wire.
func TestWireFormat(t *testing.T) {
	c := New(hopA, hopB)
	c.SetProperty("k", "v")

	s, err := Encode(c)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal([]byte(s), &raw))
	assert.Contains(t, raw, "vecOfContextsCarriedFwd")
	assert.Contains(t, raw, "hashCarryFwdProps")
	assert.Contains(t, raw, "appContext")
	assert.Nil(t, raw["appContext"])

	hops := raw["vecOfContextsCarriedFwd"].([]any)
	require.Len(t, hops, 2)
	first := hops[0].(map[string]any)
	assert.Equal(t, "orders", first["appInstName"])
	assert.Equal(t, "1.0", first["appInstVersion"])
	assert.Equal(t, "svcA", first["srvInstName"])
	assert.Equal(t, "n1", first["nodeName"])
	assert.NotContains(t, hops[1].(map[string]any), "nodeName")

	empty, err := Encode(New())
	require.NoError(t, err)
	assert.JSONEq(t, `{"vecOfContextsCarriedFwd":[],"hashCarryFwdProps":{},"appContext":null}`, empty)
}

// TestDecode_Compatibility verifies unknown fields are ignored and missing or
// null fields decode to empty values.
func TestDecode_Compatibility(t *testing.T) {
	c, err := Decode(`{"vecOfContextsCarriedFwd":[{"appInstName":"a","appInstVersion":"1","srvInstName":"s","future":true}],"schema":2}`)
	require.NoError(t, err)
	assert.Equal(t, []SourceContext{{AppInstanceName: "a", AppInstanceVersion: "1", ServiceInstanceName: "s"}}, c.Hops())
	assert.Empty(t, c.Properties())
	_, ok := c.AppContext()
	assert.False(t, ok)

	c, err = Decode(`{"vecOfContextsCarriedFwd":null,"hashCarryFwdProps":null,"appContext":"x"}`)
	require.NoError(t, err)
	assert.Equal(t, 0, c.Len())
	assert.NotNil(t, c.Properties())
	app, ok := c.AppContext()
	assert.True(t, ok)
	assert.Equal(t, "x", app)

	_, err = Decode(`{not json`)
	assert.ErrorIs(t, err, ErrCorrupt)
}

// TestClone_Independent verifies Clone is a deep copy.
func TestClone_Independent(t *testing.T) {
	c := New(hopA)
	c.SetAppContext("a")
	c.SetProperty("k", "v")

	cp := c.Clone()
	require.True(t, c.Equal(cp))

	cp.AddHop(hopB)
	cp.SetAppContext("b")
	cp.SetProperty("k", "w")

	assert.Equal(t, 1, c.Len())
	app, _ := c.AppContext()
	assert.Equal(t, "a", app)
	v, _ := c.Property("k")
	assert.Equal(t, "v", v)
	assert.False(t, c.Equal(cp))
}

// TestAttachDetach verifies the context travels on the message property.
func TestAttachDetach(t *testing.T) {
	m := message.NewText("<a/>")

	_, found, err := FromMessage(m)
	require.NoError(t, err)
	assert.False(t, found)

	c := New(hopA)
	c.SetAppContext("<ctx/>")
	require.NoError(t, Attach(m, c))

	raw, ok, err := m.Property(message.CarryForwardContext.Name)
	require.NoError(t, err)
	require.True(t, ok)
	assert.IsType(t, "", raw)

	got, found, err := FromMessage(m)
	require.NoError(t, err)
	require.True(t, found)
	assert.True(t, c.Equal(got))

	// A read context is detached from the message until re-attached.
	got.AddHop(hopB)
	again, _, _ := FromMessage(m)
	assert.Equal(t, 1, again.Len())

	detached, err := Detach(m)
	require.NoError(t, err)
	assert.True(t, c.Equal(detached))
	_, found, _ = FromMessage(m)
	assert.False(t, found)
}

// TestFromMessage_Corrupt verifies a corrupt property is reported, not hidden.
func TestFromMessage_Corrupt(t *testing.T) {
	m := message.NewText("")
	require.NoError(t, message.SetString(m, message.CarryForwardContext.Name, "{broken"))

	_, found, err := FromMessage(m)
	assert.True(t, found)
	assert.ErrorIs(t, err, ErrCorrupt)

	require.NoError(t, message.SetInt(m, message.CarryForwardContext.Name, 1))
	_, _, err = FromMessage(m)
	assert.ErrorIs(t, err, ErrCorrupt)
}

// TestSourceContext_String verifies the rendered hop.
func TestSourceContext_String(t *testing.T) {
	assert.Equal(t, "orders:1.0.svcA@n1", hopA.String())
	assert.Equal(t, "billing:2.1.svcB", hopB.String())
}
