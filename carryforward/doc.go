// Package carryforward implements the carry-forward context: the ordered hops
// a message has traversed, a string property map and an optional application
// context, carried as one JSON string property (CARRY_FORWARD_CONTEXT).
//
// Wire form, version 1:
//
//	{
//	  "vecOfContextsCarriedFwd": [
//	    {"appInstName": "orders", "appInstVersion": "1.0", "srvInstName": "svcA", "nodeName": "n1"}
//	  ],
//	  "hashCarryFwdProps": {"k": "v"},
//	  "appContext": "<ctx/>"
//	}
//
// appContext is null when unset. Decoders ignore unknown fields.
package carryforward
