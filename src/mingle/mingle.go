package mingle

import (
	"os"

	"github.com/mosaicnetworks/mingle/src/config"
	"github.com/mosaicnetworks/mingle/src/net"
	"github.com/mosaicnetworks/mingle/src/node"
	"github.com/mosaicnetworks/mingle/src/peers"
	"github.com/mosaicnetworks/mingle/src/proxy"
	"github.com/mosaicnetworks/mingle/src/service"
)

// Mingle is a wrapper around the node that assembles all the components
// from a config object: transport, bootstrap peers, node, and HTTP service.
type Mingle struct {
	Config    *config.Config
	Node      *node.Node
	Transport net.Transport
	Peers     []*peers.Peer
	Proxy     proxy.BroadcastProxy
	Service   *service.Service
}

// NewMingle ...
func NewMingle(config *config.Config, proxy proxy.BroadcastProxy) *Mingle {
	engine := &Mingle{
		Config: config,
		Proxy:  proxy,
	}

	return engine
}

func (m *Mingle) initTransport() error {
	transport, err := net.NewTCPTransport(
		m.Config.BindAddr,
		m.Config.AdvertiseAddr,
		m.Config.MaxPool,
		m.Config.TCPTimeout,
		m.Config.Logger(),
	)

	if err != nil {
		return err
	}

	m.Transport = transport

	return nil
}

// initPeers assembles the bootstrap peer list. A join address given on the
// command line takes precedence; otherwise the peers.json file in the data
// directory is consulted. Neither being present is not an error: the node
// simply starts a new overlay.
func (m *Mingle) initPeers() error {
	if m.Config.JoinAddr != "" {
		m.Peers = []*peers.Peer{peers.NewPeer(m.Config.JoinAddr, "")}
		return nil
	}

	peerStore := peers.NewJSONPeerSet(m.Config.DataDir)

	bootstrap, err := peerStore.Peers()
	if err != nil {
		if os.IsNotExist(err) {
			m.Config.Logger().Debug("No peers.json, starting a new overlay")
			return nil
		}
		return err
	}

	m.Peers = bootstrap

	return nil
}

func (m *Mingle) initNode() error {
	self := peers.NewPeer(m.Transport.AdvertiseAddr(), m.Config.Moniker)

	n, err := node.NewNode(
		m.Config.NodeConfig(),
		self,
		m.Peers,
		m.Transport,
		m.Proxy,
	)
	if err != nil {
		return err
	}

	m.Node = n

	return nil
}

func (m *Mingle) initService() error {
	if !m.Config.NoService {
		m.Service = service.NewService(m.Config.ServiceAddr, m.Node, m.Config.Logger())
	}
	return nil
}

// Init assembles the components. The node is not started; call Run.
func (m *Mingle) Init() error {
	if err := m.initPeers(); err != nil {
		return err
	}

	if err := m.initTransport(); err != nil {
		return err
	}

	if err := m.initNode(); err != nil {
		return err
	}

	if err := m.initService(); err != nil {
		return err
	}

	return nil
}

// Run starts the HTTP service and the node's main loop. It blocks until the
// node shuts down.
func (m *Mingle) Run() error {
	if m.Service != nil {
		go m.Service.Serve()
	}

	if err := m.Node.Init(); err != nil {
		return err
	}

	m.Node.Run(true)

	return nil
}
