package peers

import (
	"fmt"
	"testing"
)

func TestPeerID(t *testing.T) {
	peer := NewPeer("127.0.0.1:1337", "node0")

	if peer.ID() == 0 {
		t.Fatal("peer ID should not be 0")
	}

	same := NewPeer("127.0.0.1:1337", "othername")
	if peer.ID() != same.ID() {
		t.Fatalf("peers with the same address should have the same ID")
	}

	if !peer.Equals(same) {
		t.Fatalf("peers with the same address should be equal")
	}

	other := NewPeer("127.0.0.1:1338", "node0")
	if peer.Equals(other) {
		t.Fatalf("peers with different addresses should not be equal")
	}
}

func TestExcludePeers(t *testing.T) {
	peers := []*Peer{}
	for i := 0; i < 5; i++ {
		peers = append(peers, NewPeer(fmt.Sprintf("127.0.0.1:%d", 9000+i), ""))
	}

	filtered := ExcludePeers(peers, peers[1], peers[3])

	if len(filtered) != 3 {
		t.Fatalf("filtered length should be 3, not %d", len(filtered))
	}

	for _, p := range filtered {
		if p.Equals(peers[1]) || p.Equals(peers[3]) {
			t.Fatalf("excluded peer %s is still present", p.NetAddr)
		}
	}
}
