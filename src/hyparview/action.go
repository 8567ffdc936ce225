package hyparview

import "github.com/mosaicnetworks/mingle/src/peers"

// ActionKind tags the instructions emitted by the engine.
type ActionKind uint8

const (
	// SendAction instructs the runtime to send Message to Peer. Sending is
	// fire-and-forget; delivery failures are reported back through
	// Engine.SendFailure.
	SendAction ActionKind = iota

	// NeighborUpAction notifies the broadcast layer that Peer entered the
	// active view. It is emitted exactly once per transition.
	NeighborUpAction

	// NeighborDownAction notifies the broadcast layer that Peer left the
	// active view, whether by disconnect, eviction, or failure.
	NeighborDownAction
)

// String implements the Stringer interface.
func (k ActionKind) String() string {
	switch k {
	case SendAction:
		return "Send"
	case NeighborUpAction:
		return "NeighborUp"
	case NeighborDownAction:
		return "NeighborDown"
	default:
		return "Unknown"
	}
}

// Action is an instruction produced by the engine for the surrounding
// runtime to execute. The engine never performs I/O itself; it queues
// actions, and the runtime drains them after every event. This keeps the
// state machine deterministic and directly testable.
type Action struct {
	Kind    ActionKind
	Peer    *peers.Peer
	Message *Message
}

func sendTo(peer *peers.Peer, msg *Message) Action {
	return Action{Kind: SendAction, Peer: peer, Message: msg}
}

func notifyUp(peer *peers.Peer) Action {
	return Action{Kind: NeighborUpAction, Peer: peer}
}

func notifyDown(peer *peers.Peer) Action {
	return Action{Kind: NeighborDownAction, Peer: peer}
}
