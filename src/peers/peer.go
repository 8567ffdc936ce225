package peers

import (
	"github.com/mosaicnetworks/mingle/src/common"
)

// Peer identifies a participant in the membership overlay. Peers are
// identified by their network address; the Moniker is a friendly name with
// no bearing on identity.
type Peer struct {
	NetAddr string
	Moniker string

	id uint32
}

// NewPeer instantiates a Peer from a network address and an optional
// moniker.
func NewPeer(netAddr, moniker string) *Peer {
	peer := &Peer{
		NetAddr: netAddr,
		Moniker: moniker,
	}

	peer.computeID()

	return peer
}

// ID returns the numeric ID of the peer, a 32-bit hash of its network
// address.
func (p *Peer) ID() uint32 {
	if p.id == 0 {
		p.computeID()
	}

	return p.id
}

// Equals reports whether two peers designate the same participant. Identity
// is carried by the network address alone.
func (p *Peer) Equals(other *Peer) bool {
	if other == nil {
		return false
	}

	return p.NetAddr == other.NetAddr
}

func (p *Peer) computeID() {
	p.id = common.Hash32([]byte(p.NetAddr))
}

// ExcludePeers filters a peer slice, dropping every peer whose address
// appears in the excluded set. It is used to build forwarding candidate
// lists and shuffle payloads.
func ExcludePeers(peers []*Peer, excluded ...*Peer) []*Peer {
	res := make([]*Peer, 0, len(peers))

	for _, p := range peers {
		skip := false
		for _, x := range excluded {
			if x != nil && p.NetAddr == x.NetAddr {
				skip = true
				break
			}
		}
		if !skip {
			res = append(res, p)
		}
	}

	return res
}
