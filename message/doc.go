// Package message defines the message contract routes operate on: a body of
// one Kind, named attachments, a typed property bag and the transport headers.
//
// Memory is the in-process implementation used by the transports and tests.
// Clone produces an independent copy for snapshotting, and the vocabulary
// keys (IN_TIME, EVENT_ID, CARRY_FORWARD_CONTEXT, ...) give typed access with
// fixed defaults to the properties every service instance understands.
package message
