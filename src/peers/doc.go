// Package peers defines the identity of participants in the membership
// overlay.
//
// A Peer is identified by its network address. The numeric ID, used for
// logging and map keys, is a 32-bit hash of the address. Monikers are
// friendly names that do not participate in identity.
//
// The package also provides JSONPeerSet, which reads the bootstrap peer
// list (peers.json) from the data directory. This is the only peer
// persistence in mingle: the active and passive views maintained by the
// protocol live in memory only.
package peers
