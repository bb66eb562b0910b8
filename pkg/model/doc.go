// Package model defines the data structures exchanged with a satellite
// broadcast-ordering API.
//
// # Node Descriptor
//
// NodeDescriptor is the JSON document served at {api}/info. It identifies
// the lightning node that issues invoices for the API:
//
//	type NodeDescriptor struct {
//		ID          string        // node public key, hex
//		Addresses   []NodeAddress // advertised addresses, may be empty
//		Version     string
//		BlockHeight uint64
//		Network     Network       // main, test or regtest
//	}
//
// # Payment Demands
//
// Placing an order yields a Demand, decoded with DecodeDemand. The API does
// not tag its responses, so the shape decides:
//
//	*Accepted  {auth_token, uuid, lightning_invoice.payreq}
//	*Rejected  {message, errors}
//
// # Orders
//
// Order is the {uuid, auth_token} pair a caller keeps to cancel a bid. The
// auth token is a credential; Order.String never prints it.
//
// # Amounts
//
// Bids are expressed in Msat, channel capacities in Sat. Both print their
// bitcoin equivalent using exact decimal arithmetic.
package model
