package inmem

import (
	"github.com/mosaicnetworks/mingle/src/peers"
	"github.com/sirupsen/logrus"
)

//InmemProxy implements the BroadcastProxy interface natively
type InmemProxy struct {
	neighborUpCh   chan *peers.Peer
	neighborDownCh chan *peers.Peer
	logger         *logrus.Logger
}

// NewInmemProxy instantiates an InmemProxy. If no logger, a new one is
// created.
func NewInmemProxy(logger *logrus.Logger) *InmemProxy {
	if logger == nil {
		logger = logrus.New()

		logger.Level = logrus.DebugLevel
	}

	return &InmemProxy{
		neighborUpCh:   make(chan *peers.Peer, 16),
		neighborDownCh: make(chan *peers.Peer, 16),
		logger:         logger,
	}
}

/*******************************************************************************
* Implement BroadcastProxy Interface                                           *
*******************************************************************************/

//NeighborUp pushes the new broadcast target to the application
func (p *InmemProxy) NeighborUp(peer *peers.Peer) {
	p.logger.WithFields(logrus.Fields{
		"peer": peer.NetAddr,
	}).Debug("InmemProxy.NeighborUp")

	p.neighborUpCh <- peer
}

//NeighborDown tells the application to stop broadcasting to the peer
func (p *InmemProxy) NeighborDown(peer *peers.Peer) {
	p.logger.WithFields(logrus.Fields{
		"peer": peer.NetAddr,
	}).Debug("InmemProxy.NeighborDown")

	p.neighborDownCh <- peer
}

/*******************************************************************************
* Channels                                                                     *
*******************************************************************************/

//NeighborUpCh returns the channel of peers that became broadcast targets
func (p *InmemProxy) NeighborUpCh() chan *peers.Peer {
	return p.neighborUpCh
}

//NeighborDownCh returns the channel of peers that stopped being targets
func (p *InmemProxy) NeighborDownCh() chan *peers.Peer {
	return p.neighborDownCh
}
