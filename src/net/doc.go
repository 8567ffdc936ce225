// Package net implements the transport collaborator of the membership
// protocol.
//
// The protocol core only decides what to send to whom; this package moves
// the bytes. Two implementations of the Transport interface are provided:
// InmemTransport, which routes messages between transports in the same
// process and is used throughout the test suites, and NetworkTransport,
// which frames canonical-JSON encoded messages over a pluggable stream
// layer (plain TCP by default) with per-target connection pooling.
//
// Sends are fire-and-forget. A send error is the transport's failure
// report: the node feeds it back to the protocol engine, which treats the
// unreachable peer as disconnected and repairs its active view. Nothing is
// ever retransmitted verbatim.
package net
