package hyparview

import (
	"math/rand"

	"github.com/mosaicnetworks/mingle/src/peers"
)

// View is a bounded, order-agnostic set of peers. Two instances are held by
// the engine: the active view and the passive view. A View performs no I/O;
// all side effects of membership changes (Disconnect handshakes,
// notifications) are orchestrated by the engine.
//
// Views are not safe for concurrent use. The engine owns them exclusively
// and serializes access.
type View struct {
	capacity int
	rng      *rand.Rand

	peers  []*peers.Peer
	byAddr map[string]int
}

// NewView creates an empty view with the given capacity. The random source
// drives eviction and sampling; seed it for deterministic tests.
func NewView(capacity int, rng *rand.Rand) *View {
	return &View{
		capacity: capacity,
		rng:      rng,
		peers:    []*peers.Peer{},
		byAddr:   map[string]int{},
	}
}

// Size returns the number of peers currently in the view.
func (v *View) Size() int {
	return len(v.peers)
}

// Capacity returns the maximum number of peers the view can hold.
func (v *View) Capacity() int {
	return v.capacity
}

// IsFull reports whether the view is at capacity.
func (v *View) IsFull() bool {
	return len(v.peers) >= v.capacity
}

// Contains reports whether the view holds a peer with the same address.
func (v *View) Contains(peer *peers.Peer) bool {
	if peer == nil {
		return false
	}
	_, ok := v.byAddr[peer.NetAddr]
	return ok
}

// Add inserts the peer if not already present. If the insertion would push
// the view over capacity, a uniformly random existing entry is evicted
// first and returned.
func (v *View) Add(peer *peers.Peer) *peers.Peer {
	if v.Contains(peer) {
		return nil
	}

	var evicted *peers.Peer
	if v.IsFull() {
		evicted = v.RemoveRandom()
	}

	v.byAddr[peer.NetAddr] = len(v.peers)
	v.peers = append(v.peers, peer)

	return evicted
}

// Remove deletes the peer from the view if present and reports whether it
// was there.
func (v *View) Remove(peer *peers.Peer) bool {
	if peer == nil {
		return false
	}

	i, ok := v.byAddr[peer.NetAddr]
	if !ok {
		return false
	}

	v.removeIndex(i)

	return true
}

// RemoveRandom evicts a uniformly random entry and returns it, or nil if
// the view is empty.
func (v *View) RemoveRandom() *peers.Peer {
	if len(v.peers) == 0 {
		return nil
	}

	i := v.rng.Intn(len(v.peers))
	peer := v.peers[i]
	v.removeIndex(i)

	return peer
}

// swap-remove; keeps byAddr indices consistent
func (v *View) removeIndex(i int) {
	last := len(v.peers) - 1
	delete(v.byAddr, v.peers[i].NetAddr)

	if i != last {
		v.peers[i] = v.peers[last]
		v.byAddr[v.peers[i].NetAddr] = i
	}

	v.peers[last] = nil
	v.peers = v.peers[:last]
}

// RandomPeer returns a uniformly random entry that is not in the excluded
// set, or nil if no eligible entry exists.
func (v *View) RandomPeer(excluding ...*peers.Peer) *peers.Peer {
	candidates := peers.ExcludePeers(v.peers, excluding...)

	if len(candidates) == 0 {
		return nil
	}

	return candidates[v.rng.Intn(len(candidates))]
}

// Sample returns up to n distinct peers chosen uniformly at random without
// replacement, excluding the given set. If fewer than n eligible entries
// exist, all of them are returned.
func (v *View) Sample(n int, excluding ...*peers.Peer) []*peers.Peer {
	candidates := peers.ExcludePeers(v.peers, excluding...)

	v.rng.Shuffle(len(candidates), func(i, j int) {
		candidates[i], candidates[j] = candidates[j], candidates[i]
	})

	if n > len(candidates) {
		n = len(candidates)
	}

	return candidates[:n]
}

// Peers returns a copy of the view's contents.
func (v *View) Peers() []*peers.Peer {
	res := make([]*peers.Peer, len(v.peers))
	copy(res, v.peers)
	return res
}
