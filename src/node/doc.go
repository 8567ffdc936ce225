// Package node implements the reactive runtime around the membership engine.
//
// A Node owns a protocol engine, a transport, and an application proxy. It
// reacts to three kinds of events: messages arriving on the transport's
// consumer channel, ticks from the shuffle ControlTimer, and SIGINT. Every
// event is applied to the engine under a lock, and the actions the engine
// emits in response are carried out outside of it: protocol messages are sent
// over the transport, and neighbor changes are relayed to the proxy.
//
// Transport send failures are the node's failure detector. A failed send is
// fed back into the engine, which evicts the unreachable peer and promotes a
// replacement from the passive view.
package node
