package hyparview

import (
	"bytes"

	"github.com/mosaicnetworks/mingle/src/peers"
	"github.com/ugorji/go/codec"
)

// MessageType tags the protocol messages exchanged between nodes.
type MessageType uint8

const (
	// JoinType is sent by a new node to a contact node to enter the
	// overlay.
	JoinType MessageType = iota
	// ForwardJoinType disseminates a new node's identity through the
	// overlay on a bounded random walk.
	ForwardJoinType
	// DisconnectType informs a peer that the sender is severing the active
	// link.
	DisconnectType
	// ShuffleType carries a sample of the sender's views on a bounded
	// random walk.
	ShuffleType
	// ShuffleReplyType answers a terminal Shuffle directly to its origin.
	ShuffleReplyType
	// NeighborRequestType asks a peer for an active-view slot.
	NeighborRequestType
	// NeighborAcceptType grants an active-view slot. It is also the
	// symmetric-add notification: every node that adds a peer to its
	// active view sends one, so the peer adds back.
	NeighborAcceptType
	// NeighborRejectType denies an active-view slot.
	NeighborRejectType
)

// String implements the Stringer interface.
func (t MessageType) String() string {
	switch t {
	case JoinType:
		return "Join"
	case ForwardJoinType:
		return "ForwardJoin"
	case DisconnectType:
		return "Disconnect"
	case ShuffleType:
		return "Shuffle"
	case ShuffleReplyType:
		return "ShuffleReply"
	case NeighborRequestType:
		return "NeighborRequest"
	case NeighborAcceptType:
		return "NeighborAccept"
	case NeighborRejectType:
		return "NeighborReject"
	default:
		return "Unknown"
	}
}

// Message is the tagged variant exchanged between protocol engines. Only the
// fields relevant to the Type are set. Messages are ephemeral; they are
// constructed, sent, and discarded, never persisted.
type Message struct {
	Type   MessageType
	Sender *peers.Peer

	// NewPeer is the joining node carried by a ForwardJoin walk.
	NewPeer *peers.Peer `json:",omitempty"`

	// Origin is the node that initiated a Shuffle walk. The terminal hop
	// replies to it directly, bypassing the forwarding chain.
	Origin *peers.Peer `json:",omitempty"`

	// Peers is the view sample carried by Shuffle and ShuffleReply.
	Peers []*peers.Peer `json:",omitempty"`

	// TTL is the remaining hop budget of ForwardJoin and Shuffle walks.
	TTL TimeToLive `json:",omitempty"`

	// HighPriority marks a NeighborRequest from a node whose active view
	// is empty. High-priority requests are always accepted.
	HighPriority bool `json:",omitempty"`
}

// NewJoin creates a Join message.
func NewJoin(sender *peers.Peer) *Message {
	return &Message{Type: JoinType, Sender: sender}
}

// NewForwardJoin creates a ForwardJoin message.
func NewForwardJoin(sender, newPeer *peers.Peer, ttl TimeToLive) *Message {
	return &Message{Type: ForwardJoinType, Sender: sender, NewPeer: newPeer, TTL: ttl}
}

// NewDisconnect creates a Disconnect message.
func NewDisconnect(sender *peers.Peer) *Message {
	return &Message{Type: DisconnectType, Sender: sender}
}

// NewShuffle creates a Shuffle message.
func NewShuffle(sender, origin *peers.Peer, sample []*peers.Peer, ttl TimeToLive) *Message {
	return &Message{Type: ShuffleType, Sender: sender, Origin: origin, Peers: sample, TTL: ttl}
}

// NewShuffleReply creates a ShuffleReply message.
func NewShuffleReply(sender *peers.Peer, sample []*peers.Peer) *Message {
	return &Message{Type: ShuffleReplyType, Sender: sender, Peers: sample}
}

// NewNeighborRequest creates a NeighborRequest message.
func NewNeighborRequest(sender *peers.Peer, highPriority bool) *Message {
	return &Message{Type: NeighborRequestType, Sender: sender, HighPriority: highPriority}
}

// NewNeighborAccept creates a NeighborAccept message.
func NewNeighborAccept(sender *peers.Peer) *Message {
	return &Message{Type: NeighborAcceptType, Sender: sender}
}

// NewNeighborReject creates a NeighborReject message.
func NewNeighborReject(sender *peers.Peer) *Message {
	return &Message{Type: NeighborRejectType, Sender: sender}
}

// Marshal returns the canonical JSON encoding of the message.
func (m *Message) Marshal() ([]byte, error) {
	b := new(bytes.Buffer)

	jh := new(codec.JsonHandle)
	jh.Canonical = true
	enc := codec.NewEncoder(b, jh)

	if err := enc.Encode(m); err != nil {
		return nil, err
	}

	return b.Bytes(), nil
}

// Unmarshal parses a canonical JSON encoded message.
func (m *Message) Unmarshal(data []byte) error {
	b := bytes.NewBuffer(data)

	jh := new(codec.JsonHandle)
	jh.Canonical = true
	dec := codec.NewDecoder(b, jh)

	return dec.Decode(m)
}
