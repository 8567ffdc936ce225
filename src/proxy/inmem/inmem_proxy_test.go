package inmem

import (
	"testing"
	"time"

	"github.com/mosaicnetworks/mingle/src/common"
	"github.com/mosaicnetworks/mingle/src/peers"
)

func TestInmemProxyNeighborUp(t *testing.T) {
	proxy := NewInmemProxy(common.NewTestLogger(t))

	peer := peers.NewPeer("127.0.0.1:1337", "node0")

	proxy.NeighborUp(peer)

	select {
	case up := <-proxy.NeighborUpCh():
		if !up.Equals(peer) {
			t.Fatalf("up peer should be %s, not %s", peer.NetAddr, up.NetAddr)
		}
	case <-time.After(200 * time.Millisecond):
		t.Fatal("timeout")
	}
}

func TestInmemProxyNeighborDown(t *testing.T) {
	proxy := NewInmemProxy(common.NewTestLogger(t))

	peer := peers.NewPeer("127.0.0.1:1337", "node0")

	proxy.NeighborDown(peer)

	select {
	case down := <-proxy.NeighborDownCh():
		if !down.Equals(peer) {
			t.Fatalf("down peer should be %s, not %s", peer.NetAddr, down.NetAddr)
		}
	case <-time.After(200 * time.Millisecond):
		t.Fatal("timeout")
	}
}
