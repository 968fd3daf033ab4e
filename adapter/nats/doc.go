// Package nats is the NATS transport for xroute.
//
// Topics map to subjects and consumer groups map to queue groups, so every
// route instance sharing a group receives each envelope once. Core NATS has no
// redelivery: a Nack forwards the envelope to DeadLetter when one is
// configured and otherwise drops it.
//
// Envelope fields travel as message headers:
//
//	Nats-Msg-Id          envelope ID (JetStream de-duplication key)
//	Xroute-Name          envelope name
//	Xroute-Produced-At   RFC 3339 production time
//	Xroute-Meta-<key>    one header per metadata entry
package nats
