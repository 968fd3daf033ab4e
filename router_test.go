package xroute_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trickstertwo/xroute"
	"github.com/trickstertwo/xroute/adapter/memory"
	"github.com/trickstertwo/xroute/carryforward"
	"github.com/trickstertwo/xroute/message"
)

// sink subscribes to topic and collects what arrives.
type sink struct {
	mu   sync.Mutex
	envs []*xroute.Envelope
}

func newSink(t *testing.T, tr xroute.Transport, topic string) *sink {
	t.Helper()
	s := &sink{}
	sub, err := tr.Subscribe(context.Background(), topic, "sink", func(d xroute.Delivery) {
		s.mu.Lock()
		s.envs = append(s.envs, d.Envelope())
		s.mu.Unlock()
		_ = d.Ack(context.Background())
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = sub.Close() })
	return s
}

func (s *sink) received() []*xroute.Envelope {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*xroute.Envelope(nil), s.envs...)
}

var ordersRoute = xroute.Route{
	Name:        "orders",
	Source:      "orders.in",
	Destination: "orders.out",
	Operations: []xroute.OperationConfig{
		xroute.CarryForwardConfig{
			Application:         xroute.Application{GUID: "shop", Version: "1.0", DeploymentLabel: "test"},
			ServiceInstanceName: "router",
			Port:                xroute.Port{Name: "out", Direction: xroute.Output},
		},
		xroute.XMLSelectorConfig{XPath: "/order[@priority='high']"},
		xroute.MessageCreationConfig{},
	},
}

func newRouter(t *testing.T, mutate func(rb *xroute.RouterBuilder)) (*xroute.Router, *memory.Transport) {
	t.Helper()
	tr := memory.NewTransport(memory.Config{Concurrency: 2})
	r, closeFn, err := xroute.New(func(rb *xroute.RouterBuilder) {
		rb.WithTransportInstance(tr).WithObserverPool(0, 0)
		if mutate != nil {
			mutate(rb)
		}
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = closeFn() })
	return r, tr
}

// TestRouter_EndToEnd verifies selected messages are forwarded with routing
// stamps and filtered ones are not published.
func TestRouter_EndToEnd(t *testing.T) {
	r, tr := newRouter(t, nil)
	out := newSink(t, tr, ordersRoute.Destination)
	require.NoError(t, r.AddRoute(context.Background(), ordersRoute))

	require.NoError(t, r.Publish(context.Background(), ordersRoute.Source,
		message.NewText(`<order priority="high"/>`),
		message.NewText(`<order priority="low"/>`),
	))

	require.Eventually(t, func() bool {
		s := r.Stats()
		return s.Delivered == 1 && s.Dropped == 1
	}, 2*time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return len(out.received()) == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	envs := out.received()
	require.Len(t, envs, 1)

	env := envs[0]
	assert.Equal(t, xroute.EnvelopeName, env.Name)
	assert.Equal(t, "orders", env.Metadata[xroute.MetaRoute])
	assert.Equal(t, "json", env.Metadata[xroute.MetaCodec])

	m, err := r.Codec().Decode(env.Payload)
	require.NoError(t, err)
	body, err := m.Text()
	require.NoError(t, err)
	assert.Equal(t, `<order priority="high"/>`, body)

	in, err := message.InTime.Get(m)
	require.NoError(t, err)
	outTime, err := message.OutTime.Get(m)
	require.NoError(t, err)
	total, err := message.TotalTime.Get(m)
	require.NoError(t, err)
	assert.Positive(t, in)
	assert.GreaterOrEqual(t, outTime, in)
	assert.GreaterOrEqual(t, total, int64(0))

	label, _ := message.DeploymentLabel.Get(m)
	assert.Equal(t, "test", label)
	c, found, err := carryforward.FromMessage(m)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, 1, c.Len())
	assert.Equal(t, "router", c.Hops()[0].ServiceInstanceName)

	routes := r.Routes()
	require.Len(t, routes, 1)
	assert.Equal(t, "orders", routes[0].Group)
	assert.Equal(t, uint64(2), routes[0].Received)
	assert.Equal(t, uint64(1), routes[0].Delivered)
	assert.Equal(t, uint64(1), routes[0].Dropped)
	assert.Equal(t, []xroute.OperationType{
		xroute.MessageCreation,
		xroute.BodySelector,
		xroute.CarryForwardContext,
	}, routes[0].Operations)
	require.Eventually(t, func() bool { return tr.Stats().Acked == 3 }, time.Second, 5*time.Millisecond)
}

// TestRouter_UndecodablePayloadIsAcked verifies a bad envelope is dropped
// and counted as an error.
func TestRouter_UndecodablePayloadIsAcked(t *testing.T) {
	r, tr := newRouter(t, nil)
	newSink(t, tr, ordersRoute.Destination)
	require.NoError(t, r.AddRoute(context.Background(), ordersRoute))

	require.NoError(t, tr.Publish(context.Background(), ordersRoute.Source, &xroute.Envelope{Payload: []byte("{")}))
	require.Eventually(t, func() bool { return r.Stats().Errors == 1 }, time.Second, 5*time.Millisecond)
	assert.Zero(t, r.Stats().Delivered)
	assert.Equal(t, "degraded", r.Health(context.Background()).Status)
}

// TestRouter_AddRouteErrors verifies invalid routes are rejected and nothing
// is subscribed.
func TestRouter_AddRouteErrors(t *testing.T) {
	r, _ := newRouter(t, nil)
	ctx := context.Background()

	assert.ErrorIs(t, r.AddRoute(ctx, xroute.Route{Source: "a", Destination: "b"}), xroute.ErrInvalidRoute)
	assert.ErrorIs(t, r.AddRoute(ctx, xroute.Route{Name: "n", Destination: "b"}), xroute.ErrInvalidTopic)
	assert.ErrorIs(t, r.AddRoute(ctx, xroute.Route{Name: "n", Source: "a", Destination: "a"}), xroute.ErrInvalidRoute)

	err := r.AddRoute(ctx, xroute.Route{
		Name: "bad", Source: "a", Destination: "b",
		Operations: []xroute.OperationConfig{xroute.XMLSelectorConfig{}},
	})
	assert.True(t, xroute.IsConfigError(err))
	assert.Empty(t, r.Routes())

	require.NoError(t, r.AddRoute(ctx, ordersRoute))
	assert.ErrorIs(t, r.AddRoute(ctx, ordersRoute), xroute.ErrRouteExists)
}

// TestRouter_AdminEdits verifies operations can be changed on a live route.
func TestRouter_AdminEdits(t *testing.T) {
	r, tr := newRouter(t, nil)
	out := newSink(t, tr, ordersRoute.Destination)
	require.NoError(t, r.AddRoute(context.Background(), ordersRoute))

	require.NoError(t, r.ModifyOperation("orders", xroute.XMLSelectorConfig{XPath: "/order[@priority='low']"}))
	removed, err := r.RemoveOperation("orders", xroute.CarryForwardContext)
	require.NoError(t, err)
	assert.True(t, removed)

	require.NoError(t, r.Publish(context.Background(), ordersRoute.Source, message.NewText(`<order priority="low"/>`)))
	require.Eventually(t, func() bool { return len(out.received()) == 1 }, time.Second, 5*time.Millisecond)

	m, err := r.Codec().Decode(out.received()[0].Payload)
	require.NoError(t, err)
	_, found, err := carryforward.FromMessage(m)
	require.NoError(t, err)
	assert.False(t, found)

	assert.ErrorIs(t, r.ModifyOperation("missing", xroute.MessageCreationConfig{}), xroute.ErrUnknownRoute)
	_, err = r.RemoveOperation("missing", xroute.MessageCreation)
	assert.ErrorIs(t, err, xroute.ErrUnknownRoute)

	require.NoError(t, r.RemoveRoute("orders"))
	assert.ErrorIs(t, r.RemoveRoute("orders"), xroute.ErrUnknownRoute)
}

// TestRouter_ObserversAndMetrics verifies router events and transport
// counters.
func TestRouter_ObserversAndMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	var mu sync.Mutex
	seen := map[xroute.EventType]int{}
	obs := xroute.ObserverFunc(func(e xroute.Event) {
		mu.Lock()
		seen[e.Type]++
		mu.Unlock()
	})

	r, tr := newRouter(t, func(rb *xroute.RouterBuilder) {
		rb.WithMetrics(reg).WithObserver(obs).WithRoute(ordersRoute)
	})
	newSink(t, tr, ordersRoute.Destination)

	require.NoError(t, r.Publish(context.Background(), ordersRoute.Source, message.NewText(`<order priority="high"/>`)))
	require.Eventually(t, func() bool { return r.Stats().Delivered == 1 }, time.Second, 5*time.Millisecond)

	mu.Lock()
	assert.Equal(t, 1, seen[xroute.EventReceived])
	assert.Equal(t, 1, seen[xroute.EventDelivered])
	assert.Equal(t, 2, seen[xroute.EventPublishDone])
	assert.Equal(t, 3, seen[xroute.EventStageDone])
	mu.Unlock()

	families, err := reg.Gather()
	require.NoError(t, err)
	names := map[string]bool{}
	for _, mf := range families {
		names[mf.GetName()] = true
	}
	assert.True(t, names["xroute_router_transport_events_total"])
	assert.True(t, names["xroute_pipeline_stage_duration_seconds"])
}

// TestRouter_Close verifies a closed router rejects work and reports
// unhealthy.
func TestRouter_Close(t *testing.T) {
	r, _ := newRouter(t, func(rb *xroute.RouterBuilder) { rb.WithRoute(ordersRoute) })
	assert.Equal(t, "healthy", r.Health(context.Background()).Status)

	require.NoError(t, r.Close(context.Background()))
	require.NoError(t, r.Close(context.Background()))

	assert.Equal(t, "unhealthy", r.Health(context.Background()).Status)
	assert.ErrorIs(t, r.Publish(context.Background(), "x", message.NewText("x")), xroute.ErrRouterClosed)
	assert.ErrorIs(t, r.AddRoute(context.Background(), ordersRoute), xroute.ErrRouterClosed)
	assert.Empty(t, r.Routes())
}

// TestBuilder_Errors verifies Build fails without a transport or with an
// unknown codec.
func TestBuilder_Errors(t *testing.T) {
	_, err := xroute.NewRouterBuilder().Build()
	assert.ErrorIs(t, err, xroute.ErrNoTransportConfigured)

	_, err = xroute.NewRouterBuilder().WithTransport(memory.TransportName, nil).WithCodec("xml").Build()
	assert.Error(t, err)

	_, err = xroute.NewRouterBuilder().
		WithTransport(memory.TransportName, nil).
		WithRoute(xroute.Route{Name: "r", Source: "a", Destination: "a"}).
		Build()
	assert.ErrorIs(t, err, xroute.ErrInvalidRoute)
}

// TestDefaultFacade verifies the process-wide router installed by Use.
func TestDefaultFacade(t *testing.T) {
	_, err := xroute.Default()
	require.ErrorIs(t, err, xroute.ErrNoTransportConfigured)
	assert.ErrorIs(t, xroute.Publish(context.Background(), "x", message.NewText("x")), xroute.ErrNoTransportConfigured)

	r := memory.Use(memory.Config{}, memory.WithObserverPool(0, 0))
	t.Cleanup(func() { _ = r.Close(context.Background()) })

	got, err := xroute.Default()
	require.NoError(t, err)
	assert.Same(t, r, got)

	require.NoError(t, xroute.AddRoute(context.Background(), ordersRoute))
	require.NoError(t, xroute.Publish(context.Background(), ordersRoute.Source, message.NewText(`<order priority="low"/>`)))
	require.Eventually(t, func() bool { return r.Stats().Dropped == 1 }, time.Second, 5*time.Millisecond)

	assert.Panics(t, func() { xroute.SetDefault(nil) })
}
