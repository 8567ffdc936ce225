package hyparview

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/mosaicnetworks/mingle/src/peers"
	"github.com/sirupsen/logrus"
)

// Engine is the HyParView protocol state machine. It owns the node's active
// and passive views and reacts to inbound messages, timer ticks, and
// transport failure reports by mutating the views and queueing Actions for
// the runtime to execute.
//
// The engine performs no I/O and is not safe for concurrent use; the
// caller must serialize access so that no two events interleave. In mingle
// that caller is node.Node, which guards the engine with a mutex.
type Engine struct {
	self *peers.Peer
	conf *Config
	rng  *rand.Rand

	active  *View
	passive *View

	// outstanding NeighborRequest target, nil when none. At most one
	// promotion attempt is in flight at a time; the runtime resolves it
	// with an accept, a reject, a send failure, or a timeout.
	pendingNeighbor *peers.Peer

	actions []Action

	logger *logrus.Entry
}

// NewEngine instantiates a protocol engine for self with the given
// parameters. The random source drives every peer selection; pass a seeded
// source for deterministic behaviour, or nil to seed from the clock.
func NewEngine(self *peers.Peer, conf *Config, rng *rand.Rand, logger *logrus.Logger) (*Engine, error) {
	if self == nil || self.NetAddr == "" {
		return nil, fmt.Errorf("self peer is not set")
	}

	if err := conf.Validate(); err != nil {
		return nil, err
	}

	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	if logger == nil {
		logger = logrus.New()
		logger.Level = logrus.DebugLevel
	}

	engine := &Engine{
		self:    self,
		conf:    conf,
		rng:     rng,
		active:  NewView(conf.ActiveViewSize, rng),
		passive: NewView(conf.PassiveViewSize, rng),
		actions: []Action{},
		logger:  logger.WithField("this_node", self.NetAddr),
	}

	return engine, nil
}

// Self returns the engine's own peer.
func (e *Engine) Self() *peers.Peer {
	return e.self
}

// ActivePeers returns a copy of the active view.
func (e *Engine) ActivePeers() []*peers.Peer {
	return e.active.Peers()
}

// PassivePeers returns a copy of the passive view.
func (e *Engine) PassivePeers() []*peers.Peer {
	return e.passive.Peers()
}

// PendingNeighbor returns the target of the outstanding NeighborRequest, or
// nil.
func (e *Engine) PendingNeighbor() *peers.Peer {
	return e.pendingNeighbor
}

// PollAction dequeues the next action the runtime must execute. It returns
// false when the queue is empty.
func (e *Engine) PollAction() (Action, bool) {
	if len(e.actions) == 0 {
		return Action{}, false
	}

	action := e.actions[0]
	e.actions = e.actions[1:]

	return action, true
}

// PollActions drains the whole action queue.
func (e *Engine) PollActions() []Action {
	actions := e.actions
	e.actions = []Action{}
	return actions
}

func (e *Engine) queue(a Action) {
	e.actions = append(e.actions, a)
}

// Join starts joining the overlay through the given contact node. It may be
// called again at any time, for instance when an upper layer detects that
// the overlay has partitioned.
func (e *Engine) Join(contact *peers.Peer) {
	if contact == nil || contact.Equals(e.self) {
		e.logger.Warn("Ignoring join with no usable contact")
		return
	}

	e.logger.WithField("contact", contact.NetAddr).Debug("Joining")

	e.queue(sendTo(contact, NewJoin(e.self)))
}

// HandleMessage dispatches an inbound message by kind. Malformed messages
// are logged and dropped without mutating state.
func (e *Engine) HandleMessage(msg *Message) {
	if err := e.checkMessage(msg); err != nil {
		e.logger.WithError(err).Warn("Dropping invalid message")
		return
	}

	e.logger.WithFields(logrus.Fields{
		"type": msg.Type.String(),
		"from": msg.Sender.NetAddr,
	}).Debug("HandleMessage")

	switch msg.Type {
	case JoinType:
		e.handleJoin(msg.Sender)
	case ForwardJoinType:
		e.handleForwardJoin(msg.Sender, msg.NewPeer, msg.TTL)
	case DisconnectType:
		e.handleDisconnect(msg.Sender)
	case ShuffleType:
		e.handleShuffle(msg.Sender, msg.Origin, msg.Peers, msg.TTL)
	case ShuffleReplyType:
		e.mergeIntoPassive(msg.Peers)
	case NeighborRequestType:
		e.handleNeighborRequest(msg.Sender, msg.HighPriority)
	case NeighborAcceptType:
		e.handleNeighborAccept(msg.Sender)
	case NeighborRejectType:
		e.handleNeighborReject(msg.Sender)
	}
}

func (e *Engine) checkMessage(msg *Message) error {
	if msg == nil {
		return fmt.Errorf("nil message")
	}

	if msg.Sender == nil || msg.Sender.NetAddr == "" {
		return fmt.Errorf("%s message without sender", msg.Type.String())
	}

	if msg.Sender.Equals(e.self) {
		return fmt.Errorf("%s message from self", msg.Type.String())
	}

	if msg.Type == ForwardJoinType && msg.NewPeer == nil {
		return fmt.Errorf("ForwardJoin without new peer")
	}

	if msg.Type == ShuffleType && msg.Origin == nil {
		return fmt.Errorf("Shuffle without origin")
	}

	return nil
}

// Shuffle initiates a periodic shuffle: a payload made of self plus random
// samples of both views is sent on a random walk through the active view.
// It is a no-op when the active view is empty; the node has nobody to
// shuffle with until it rejoins.
func (e *Engine) Shuffle() {
	target := e.active.RandomPeer()
	if target == nil {
		return
	}

	sample := []*peers.Peer{e.self}
	sample = append(sample, e.active.Sample(e.conf.ShuffleActiveSize)...)
	sample = append(sample, e.passive.Sample(e.conf.ShufflePassiveSize)...)

	ttl := TimeToLive(e.conf.ActiveRandomWalkLength)

	e.logger.WithFields(logrus.Fields{
		"target": target.NetAddr,
		"sample": len(sample),
	}).Debug("Shuffle")

	e.queue(sendTo(target, NewShuffle(e.self, e.self, sample, ttl)))
}

// SendFailure reports that a message to peer could not be delivered. The
// peer is treated as crashed: it is purged from both views, a NeighborDown
// is emitted if it held an active slot, and active-view repair starts
// immediately. No message is ever retried verbatim.
func (e *Engine) SendFailure(peer *peers.Peer) {
	if peer == nil {
		return
	}

	e.logger.WithField("peer", peer.NetAddr).Debug("SendFailure")

	if e.pendingNeighbor != nil && e.pendingNeighbor.Equals(peer) {
		e.pendingNeighbor = nil
	}

	e.passive.Remove(peer)

	if e.active.Remove(peer) {
		e.queue(notifyDown(peer))
	}

	e.fillActiveView()
}

// NeighborTimeout reports that an outstanding NeighborRequest to peer went
// unanswered. If the request is still pending, the next passive-view
// candidate is tried.
func (e *Engine) NeighborTimeout(peer *peers.Peer) {
	if e.pendingNeighbor == nil || !e.pendingNeighbor.Equals(peer) {
		return
	}

	e.logger.WithField("peer", peer.NetAddr).Debug("NeighborTimeout")

	e.pendingNeighbor = nil
	e.fillActiveView()
}

// Leave severs all active links. A Disconnect is sent to every active peer
// and a NeighborDown emitted for each, leaving the engine disconnected but
// reusable (a later Join re-enters the overlay).
func (e *Engine) Leave() {
	for _, peer := range e.active.Peers() {
		e.queue(sendTo(peer, NewDisconnect(e.self)))
		e.active.Remove(peer)
		e.queue(notifyDown(peer))
	}
}

/*******************************************************************************
Message handlers
*******************************************************************************/

// handleJoin admits a new node: it takes an active slot (evicting if
// necessary) and its identity is propagated to every other active peer on a
// ForwardJoin random walk.
func (e *Engine) handleJoin(newPeer *peers.Peer) {
	e.addToActive(newPeer)

	ttl := TimeToLive(e.conf.ActiveRandomWalkLength)

	for _, peer := range e.active.Peers() {
		if peer.Equals(newPeer) {
			continue
		}
		e.queue(sendTo(peer, NewForwardJoin(e.self, newPeer, ttl)))
	}
}

func (e *Engine) handleForwardJoin(sender, newPeer *peers.Peer, ttl TimeToLive) {
	if newPeer.Equals(e.self) {
		// the walk found its way back to the joiner
		return
	}

	if ttl.Expired() || e.active.Size() == 0 {
		e.addToActive(newPeer)
		return
	}

	if int(ttl) == e.conf.PassiveRandomWalkLength {
		e.addToPassive(newPeer)
	}

	next := e.active.RandomPeer(sender, newPeer)
	if next == nil {
		// no forwarding candidate: terminal handling, as if the walk
		// had expired here
		e.addToActive(newPeer)
		return
	}

	e.queue(sendTo(next, NewForwardJoin(e.self, newPeer, ttl.Decrement())))
}

// handleDisconnect severs the link with a peer that evicted us or is
// leaving. The peer is kept in the passive view for later re-acquaintance,
// and repair of the freed slot starts immediately.
func (e *Engine) handleDisconnect(peer *peers.Peer) {
	if e.pendingNeighbor != nil && e.pendingNeighbor.Equals(peer) {
		e.pendingNeighbor = nil
	}

	if e.active.Remove(peer) {
		e.queue(notifyDown(peer))
		e.addToPassive(peer)
	}

	e.fillActiveView()
}

func (e *Engine) handleShuffle(sender, origin *peers.Peer, sample []*peers.Peer, ttl TimeToLive) {
	if origin.Equals(e.self) {
		// the walk looped back to its initiator
		return
	}

	if !ttl.Expired() {
		if next := e.active.RandomPeer(sender, origin); next != nil {
			e.queue(sendTo(next, NewShuffle(e.self, origin, sample, ttl.Decrement())))
			return
		}
	}

	// Terminal hop: answer the origin directly with a passive sample of
	// equal size, then absorb the received sample.
	reply := e.passive.Sample(len(sample), origin)
	e.queue(sendTo(origin, NewShuffleReply(e.self, reply)))

	e.mergeIntoPassive(sample)
}

// handleNeighborRequest grants an active slot if the sender is desperate
// (high priority means its active view is empty) or if there is room. A
// high-priority request may evict, like any other active-view insertion.
func (e *Engine) handleNeighborRequest(sender *peers.Peer, highPriority bool) {
	if e.active.Contains(sender) {
		// the link already exists on this side; re-affirm it so the
		// requester completes its promotion
		e.queue(sendTo(sender, NewNeighborAccept(e.self)))
		return
	}

	if highPriority || !e.active.IsFull() {
		e.addToActive(sender)
		return
	}

	e.queue(sendTo(sender, NewNeighborReject(e.self)))
}

func (e *Engine) handleNeighborAccept(sender *peers.Peer) {
	if e.pendingNeighbor != nil && e.pendingNeighbor.Equals(sender) {
		e.pendingNeighbor = nil
	}

	e.addToActive(sender)
}

func (e *Engine) handleNeighborReject(sender *peers.Peer) {
	if e.pendingNeighbor == nil || !e.pendingNeighbor.Equals(sender) {
		return
	}

	// The candidate was already removed from the passive view when we
	// contacted it, so retries are bounded by the remaining passive peers.
	e.pendingNeighbor = nil
	e.fillActiveView()
}

/*******************************************************************************
View mutations
*******************************************************************************/

// addToActive inserts a peer into the active view, running the Disconnect
// handshake against a random current member if the view is full. Every
// insertion sends a NeighborAccept so the peer adds us back; active links
// are symmetric by contract.
func (e *Engine) addToActive(peer *peers.Peer) {
	if peer.Equals(e.self) || e.active.Contains(peer) {
		return
	}

	if e.pendingNeighbor != nil && e.pendingNeighbor.Equals(peer) {
		e.pendingNeighbor = nil
	}

	if e.active.IsFull() {
		e.dropRandomActive()
	}

	e.passive.Remove(peer)
	e.active.Add(peer)

	e.logger.WithField("peer", peer.NetAddr).Debug("Added to active view")

	e.queue(sendTo(peer, NewNeighborAccept(e.self)))
	e.queue(notifyUp(peer))
}

// dropRandomActive evicts a uniformly random active member: Disconnect
// handshake first, then local removal, NeighborDown, and demotion to the
// passive view.
func (e *Engine) dropRandomActive() {
	victim := e.active.RemoveRandom()
	if victim == nil {
		return
	}

	e.logger.WithField("peer", victim.NetAddr).Debug("Evicting from active view")

	e.queue(sendTo(victim, NewDisconnect(e.self)))
	e.queue(notifyDown(victim))
	e.addToPassive(victim)
}

func (e *Engine) addToPassive(peer *peers.Peer) {
	if peer.Equals(e.self) || e.active.Contains(peer) || e.passive.Contains(peer) {
		return
	}

	e.passive.Add(peer)
}

// mergeIntoPassive absorbs a shuffle sample into the passive view. When
// room must be made, eviction prefers entries that were not part of the
// incoming sample, so freshly learned peers are not immediately lost.
func (e *Engine) mergeIntoPassive(sample []*peers.Peer) {
	for _, peer := range sample {
		if peer == nil || peer.Equals(e.self) ||
			e.active.Contains(peer) || e.passive.Contains(peer) {
			continue
		}

		if e.passive.IsFull() {
			victim := e.passive.RandomPeer(sample...)
			if victim == nil {
				victim = e.passive.RandomPeer()
			}
			e.passive.Remove(victim)
		}

		e.passive.Add(peer)
	}
}

// fillActiveView starts a promotion attempt when the active view has room:
// a random passive peer is removed from the passive view and asked for a
// slot. The request is high priority when the active view is empty. If the
// passive view is exhausted, the node stays under-provisioned until the
// next shuffle brings in new candidates.
func (e *Engine) fillActiveView() {
	if e.active.IsFull() || e.pendingNeighbor != nil {
		return
	}

	candidate := e.passive.RemoveRandom()
	if candidate == nil {
		e.logger.Debug("No passive peers left to promote")
		return
	}

	highPriority := e.active.Size() == 0

	e.logger.WithFields(logrus.Fields{
		"candidate":     candidate.NetAddr,
		"high_priority": highPriority,
	}).Debug("Requesting neighbor promotion")

	e.pendingNeighbor = candidate
	e.queue(sendTo(candidate, NewNeighborRequest(e.self, highPriority)))
}
