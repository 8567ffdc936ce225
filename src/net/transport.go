package net

import (
	"github.com/mosaicnetworks/mingle/src/hyparview"
)

// Transport provides an interface for network transports to allow a node to
// exchange membership messages with other nodes. All sends are
// fire-and-forget: no HyParView message has a synchronous reply, so a send
// either reaches the wire or returns an error, which the node reports back
// to the protocol engine as a peer failure.
type Transport interface {

	// Listen starts the transport listening. It blocks, and is meant to be
	// run in its own goroutine.
	Listen()

	// Consumer returns a channel on which inbound messages are delivered.
	Consumer() <-chan *hyparview.Message

	// LocalAddr is used to return our local address.
	LocalAddr() string

	// AdvertiseAddr is used to return our advertise address where other
	// peers can reach us.
	AdvertiseAddr() string

	// Send delivers a message to the target address, best effort.
	Send(target string, msg *hyparview.Message) error

	// Close permanently closes a transport, stopping any associated
	// goroutines and freeing other resources.
	Close() error
}
