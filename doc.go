// Package xroute routes messages between transport topics through a fixed
// pipeline of operations.
//
// A Route subscribes to a source topic and runs each message through its
// Pipeline. The pipeline executes the configured operations in one canonical
// order, whatever order they were configured in:
//
//	MessageCreation, SenderSelector, BodySelector, ContextSelector,
//	BodyTransform, ContextTransform, CarryForwardContext
//
// A selector may filter the message, which stops the pipeline and drops it.
// Messages that pass every stage are published to the route's destination.
//
// Build a Router with New or NewRouterBuilder, or install one process-wide
// through an adapter's Use:
//
//	r := memory.Use(memory.Config{}, memory.WithRoute(xroute.Route{
//		Name:        "orders",
//		Source:      "orders.in",
//		Destination: "orders.out",
//		Operations: []xroute.OperationConfig{
//			xroute.XMLSelectorConfig{XPath: "/order[@priority='high']"},
//		},
//	}))
package xroute
