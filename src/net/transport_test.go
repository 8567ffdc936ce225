package net

import (
	"reflect"
	"testing"
	"time"

	"github.com/mosaicnetworks/mingle/src/common"
	"github.com/mosaicnetworks/mingle/src/hyparview"
	"github.com/mosaicnetworks/mingle/src/peers"
)

const (
	INMEM = iota
	TCP
	numTestTransports // NOTE: must be last
)

func NewTestTransport(ttype int, addr string, t *testing.T) Transport {
	switch ttype {
	case INMEM:
		_, it := NewInmemTransport(addr)
		return it
	case TCP:
		tt, err := NewTCPTransport(addr, "", 2, time.Second, common.NewTestEntry(t))
		if err != nil {
			t.Fatal(err)
		}
		go tt.Listen()
		return tt
	default:
		panic("Unknown transport type")
	}
}

func TestTransport_StartStop(t *testing.T) {
	for ttype := 0; ttype < numTestTransports; ttype++ {
		trans := NewTestTransport(ttype, "127.0.0.1:0", t)
		if err := trans.Close(); err != nil {
			t.Fatalf("err: %v", err)
		}
	}
}

func TestTransport_Send(t *testing.T) {
	addrs := [numTestTransports][2]string{
		{"", ""},
		{"127.0.0.1:11234", "127.0.0.1:11235"},
	}

	for ttype := 0; ttype < numTestTransports; ttype++ {
		trans1 := NewTestTransport(ttype, addrs[ttype][0], t)
		defer trans1.Close()

		trans2 := NewTestTransport(ttype, addrs[ttype][1], t)
		defer trans2.Close()

		if ttype == INMEM {
			trans1.(*InmemTransport).Connect(trans2.LocalAddr(), trans2)
		}

		sender := peers.NewPeer(trans1.LocalAddr(), "node1")
		newPeer := peers.NewPeer("127.0.0.1:5555", "fresh")

		sent := hyparview.NewForwardJoin(sender, newPeer, 3)

		if err := trans1.Send(trans2.LocalAddr(), sent); err != nil {
			t.Fatalf("err: %v", err)
		}

		select {
		case received := <-trans2.Consumer():
			if received.Type != hyparview.ForwardJoinType {
				t.Fatalf("type should be ForwardJoin, not %s", received.Type)
			}
			if received.Sender.NetAddr != sent.Sender.NetAddr {
				t.Fatalf("sender should be %s, not %s",
					sent.Sender.NetAddr, received.Sender.NetAddr)
			}
			if !reflect.DeepEqual(received.NewPeer, sent.NewPeer) {
				t.Fatalf("new peer mismatch: %#v / %#v", received.NewPeer, sent.NewPeer)
			}
			if received.TTL != sent.TTL {
				t.Fatalf("ttl should be %d, not %d", sent.TTL, received.TTL)
			}
		case <-time.After(500 * time.Millisecond):
			t.Fatalf("timeout waiting for message (transport %d)", ttype)
		}
	}
}

func TestTransport_SendToUnreachable(t *testing.T) {
	_, trans := NewInmemTransport("")
	defer trans.Close()

	msg := hyparview.NewJoin(peers.NewPeer(trans.LocalAddr(), ""))

	if err := trans.Send("nowhere", msg); err == nil {
		t.Fatal("sending to an unknown peer should fail")
	}
}

func TestTransport_PooledSends(t *testing.T) {
	trans1 := NewTestTransport(TCP, "127.0.0.1:11236", t)
	defer trans1.Close()

	trans2 := NewTestTransport(TCP, "127.0.0.1:11237", t)
	defer trans2.Close()

	sender := peers.NewPeer(trans1.LocalAddr(), "")

	// successive sends over the same pooled connection
	for i := 0; i < 5; i++ {
		msg := hyparview.NewShuffleReply(sender, []*peers.Peer{
			peers.NewPeer("127.0.0.1:6000", ""),
			peers.NewPeer("127.0.0.1:6001", ""),
		})

		if err := trans1.Send(trans2.LocalAddr(), msg); err != nil {
			t.Fatalf("send %d: %v", i, err)
		}

		select {
		case received := <-trans2.Consumer():
			if len(received.Peers) != 2 {
				t.Fatalf("send %d: reply should carry 2 peers, not %d", i, len(received.Peers))
			}
		case <-time.After(500 * time.Millisecond):
			t.Fatalf("send %d: timeout waiting for message", i)
		}
	}
}

func TestMessageMarshalling(t *testing.T) {
	sender := peers.NewPeer("127.0.0.1:7000", "node0")
	origin := peers.NewPeer("127.0.0.1:7001", "node1")
	sample := []*peers.Peer{
		peers.NewPeer("127.0.0.1:7002", ""),
		peers.NewPeer("127.0.0.1:7003", ""),
	}

	msg := hyparview.NewShuffle(sender, origin, sample, 4)

	raw, err := msg.Marshal()
	if err != nil {
		t.Fatalf("err: %v", err)
	}

	decoded := new(hyparview.Message)
	if err := decoded.Unmarshal(raw); err != nil {
		t.Fatalf("err: %v", err)
	}

	if decoded.Type != hyparview.ShuffleType {
		t.Fatalf("type should be Shuffle, not %s", decoded.Type)
	}
	if decoded.Origin.NetAddr != origin.NetAddr {
		t.Fatalf("origin should be %s, not %s", origin.NetAddr, decoded.Origin.NetAddr)
	}
	if decoded.TTL != 4 {
		t.Fatalf("ttl should be 4, not %d", decoded.TTL)
	}
	if len(decoded.Peers) != 2 {
		t.Fatalf("sample should carry 2 peers, not %d", len(decoded.Peers))
	}
	if decoded.Peers[0].ID() != sample[0].ID() {
		t.Fatal("peer IDs should survive the round trip")
	}
}
