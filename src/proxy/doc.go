// Package proxy defines and implements BroadcastProxy: the interface between
// mingle and an application.
//
// Mingle maintains the set of peers an application should gossip with, and
// notifies the application through a BroadcastProxy whenever that set changes.
// The InmemProxy implementation exposes the notifications as channels, to
// integrate mingle as a regular Go dependency.
package proxy
