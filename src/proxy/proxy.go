package proxy

import (
	"github.com/mosaicnetworks/mingle/src/peers"
)

// BroadcastProxy is the interface between mingle and the application layer.
// Mingle notifies the application whenever the set of reliable broadcast
// targets changes, so the application always gossips over live links.
type BroadcastProxy interface {
	NeighborUp(peer *peers.Peer)
	NeighborDown(peer *peers.Peer)
}
