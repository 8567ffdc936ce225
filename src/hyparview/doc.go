// Package hyparview implements the HyParView partial-membership protocol.
//
// HyParView is a peer-sampling service: every node maintains a small active
// view of peers it keeps symmetric links with, and a larger passive view of
// backup peers used to repair the active view when links fail. A
// gossip-based broadcast layer built on top of the active views reaches all
// live nodes with high probability, despite continuous joins, leaves, and
// crashes.
//
// Views
//
// The active view is small (on the order of the broadcast fanout) and its
// links are monitored: any transport failure on an active link triggers
// repair. The passive view is several times larger and is refreshed by a
// periodic shuffle, in which two nodes exchange random samples of their
// views along a bounded random walk.
//
// Joining
//
// A new node sends Join to a contact node, which admits it into its active
// view and propagates its identity to each of its own active peers with a
// ForwardJoin random walk of length ARWL. Each relay decrements the TTL;
// when it expires (or a relay has no other active peer) the walk ends with
// the new node taking an active slot there. Relays seeing the TTL cross
// PRWL also record the new node in their passive views, seeding the overlay
// with backup knowledge of the newcomer.
//
// Symmetry
//
// Active links are symmetric by contract. Every code path that adds a peer
// to the active view sends a NeighborAccept so the peer adds back; every
// eviction runs a Disconnect handshake so the peer drops the link and keeps
// the evictor as a passive candidate. Peer-up and peer-down events are
// emitted to the broadcast layer exactly once per transition.
//
// The Engine is a pure state machine: it consumes messages, timer ticks,
// and failure reports, and queues Actions (sends and notifications) for the
// surrounding runtime to execute. It performs no I/O and holds no locks;
// serialization is the caller's responsibility. See the node package for
// the runtime that drives it.
package hyparview
