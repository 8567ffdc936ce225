package node

import (
	"math/rand"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/mosaicnetworks/mingle/src/hyparview"
	"github.com/mosaicnetworks/mingle/src/net"
	"github.com/mosaicnetworks/mingle/src/peers"
	"github.com/mosaicnetworks/mingle/src/proxy"
	"github.com/sirupsen/logrus"
)

//Node defines a mingle node
type Node struct {
	state

	conf   *Config
	logger *logrus.Entry

	self *peers.Peer

	engine     *hyparview.Engine
	engineLock sync.Mutex

	trans net.Transport
	netCh <-chan *hyparview.Message

	proxy proxy.BroadcastProxy

	bootstrapPeers []*peers.Peer

	sigintCh   chan os.Signal
	shutdownCh chan struct{}

	controlTimer *ControlTimer

	start           time.Time
	messagesIn      int32
	sendErrors      int32
	shufflesStarted int32
}

//NewNode is a factory method that returns a Node instance
func NewNode(conf *Config,
	self *peers.Peer,
	bootstrapPeers []*peers.Peer,
	trans net.Transport,
	proxy proxy.BroadcastProxy,
) (*Node, error) {

	engine, err := hyparview.NewEngine(self,
		conf.Protocol,
		rand.New(rand.NewSource(time.Now().UnixNano())),
		conf.Logger)
	if err != nil {
		return nil, err
	}

	//Prepare sigintCh to relay SIGINT system calls
	sigintCh := make(chan os.Signal, 1)
	signal.Notify(sigintCh, os.Interrupt, syscall.SIGINT)

	node := Node{
		conf:           conf,
		logger:         conf.Logger.WithField("this_node", self.NetAddr),
		self:           self,
		engine:         engine,
		trans:          trans,
		netCh:          trans.Consumer(),
		proxy:          proxy,
		bootstrapPeers: peers.ExcludePeers(bootstrapPeers, self),
		sigintCh:       sigintCh,
		shutdownCh:     make(chan struct{}),
		controlTimer:   NewRandomControlTimer(),
	}

	return &node, nil
}

//Init initialises the node. If bootstrap peers were provided, the node sends
//a Join to one of them and enters the Joining state; otherwise it starts as
//the overlay's first node, in the Running state.
func (n *Node) Init() error {
	n.start = time.Now()

	if len(n.bootstrapPeers) > 0 {
		contact := n.bootstrapPeers[rand.Intn(len(n.bootstrapPeers))]

		n.logger.WithField("contact", contact.NetAddr).Debug("Join")

		n.setState(Joining)

		n.engineLock.Lock()
		n.engine.Join(contact)
		actions := n.engine.PollActions()
		n.engineLock.Unlock()

		n.executeActions(actions)
	} else {
		n.logger.Debug("No bootstrap peers => first node of the overlay")
		n.setState(Running)
	}

	return nil
}

//RunAsync calls Run as a separate thread
func (n *Node) RunAsync(shuffle bool) {
	n.logger.WithField("shuffle", shuffle).Debug("runasync")

	go n.Run(shuffle)
}

//Run invokes the main loop of the node
func (n *Node) Run(shuffle bool) {
	//The ControlTimer drives the periodic shuffle walks that keep the passive
	//view fresh.
	go n.controlTimer.Run(n.conf.ShuffleInterval)

	go n.trans.Listen()

	n.doBackgroundWork(shuffle)
}

func (n *Node) doBackgroundWork(shuffle bool) {
	for {
		select {
		case msg := <-n.netCh:
			n.goFunc(func() {
				n.processMessage(msg)
			})
		case <-n.controlTimer.tickCh:
			if shuffle {
				n.shuffle()
			}
			n.resetTimer()
		case <-n.shutdownCh:
			return
		case <-n.sigintCh:
			n.logger.Debug("Reacting to SIGINT - LEAVE")
			n.Leave()
			os.Exit(0)
		}
	}
}

//resetTimer rearms the shuffle timer if it is not already set
func (n *Node) resetTimer() {
	if !n.controlTimer.set {
		n.controlTimer.resetCh <- n.conf.ShuffleInterval
	}
}

//processMessage applies a protocol message to the engine and carries out the
//actions it produces
func (n *Node) processMessage(msg *hyparview.Message) {
	atomic.AddInt32(&n.messagesIn, 1)

	n.logger.WithFields(logrus.Fields{
		"type":   msg.Type.String(),
		"sender": senderAddr(msg),
	}).Debug("Processing message")

	n.engineLock.Lock()
	n.engine.HandleMessage(msg)
	actions := n.engine.PollActions()
	n.engineLock.Unlock()

	n.executeActions(actions)

	if n.getState() == Joining && n.activeCount() > 0 {
		n.logger.Debug("First overlay link established => Running")
		n.setState(Running)
	}
}

//shuffle initiates a shuffle walk towards a random active peer
func (n *Node) shuffle() {
	atomic.AddInt32(&n.shufflesStarted, 1)

	n.engineLock.Lock()
	n.engine.Shuffle()
	actions := n.engine.PollActions()
	n.engineLock.Unlock()

	n.executeActions(actions)

	n.logStats()
}

//executeActions drains the engine's action queue: it sends protocol messages
//over the transport and relays view changes to the application proxy. Send
//failures are fed back into the engine, which may produce further actions.
func (n *Node) executeActions(actions []hyparview.Action) {
	for _, a := range actions {
		switch a.Kind {
		case hyparview.SendAction:
			n.send(a.Peer, a.Message)
		case hyparview.NeighborUpAction:
			n.logger.WithField("peer", a.Peer.NetAddr).Debug("NeighborUp")
			n.proxy.NeighborUp(a.Peer)
		case hyparview.NeighborDownAction:
			n.logger.WithField("peer", a.Peer.NetAddr).Debug("NeighborDown")
			n.proxy.NeighborDown(a.Peer)
		}
	}
}

func (n *Node) send(peer *peers.Peer, msg *hyparview.Message) {
	err := n.trans.Send(peer.NetAddr, msg)
	if err != nil {
		atomic.AddInt32(&n.sendErrors, 1)

		n.logger.WithFields(logrus.Fields{
			"target": peer.NetAddr,
			"type":   msg.Type.String(),
			"error":  err,
		}).Warning("Failed to send")

		n.engineLock.Lock()
		n.engine.SendFailure(peer)
		actions := n.engine.PollActions()
		n.engineLock.Unlock()

		n.executeActions(actions)

		n.maybeRejoin()

		return
	}

	//A NeighborRequest that gets neither an Accept nor a Reject would leave
	//the engine waiting for a promotion forever, so time it out.
	if msg.Type == hyparview.NeighborRequestType {
		n.scheduleNeighborTimeout(peer)
	}
}

func (n *Node) scheduleNeighborTimeout(peer *peers.Peer) {
	time.AfterFunc(n.conf.NeighborTimeout, func() {
		if n.getState() == Shutdown {
			return
		}

		n.engineLock.Lock()
		n.engine.NeighborTimeout(peer)
		actions := n.engine.PollActions()
		n.engineLock.Unlock()

		n.executeActions(actions)
	})
}

//maybeRejoin restarts the Join procedure when repeated failures have left the
//node with no peers at all in either view
func (n *Node) maybeRejoin() {
	if n.getState() != Running && n.getState() != Joining {
		return
	}

	if len(n.bootstrapPeers) == 0 {
		return
	}

	n.engineLock.Lock()
	isolated := len(n.engine.ActivePeers()) == 0 &&
		len(n.engine.PassivePeers()) == 0 &&
		n.engine.PendingNeighbor() == nil
	var actions []hyparview.Action
	if isolated {
		contact := n.bootstrapPeers[rand.Intn(len(n.bootstrapPeers))]
		n.logger.WithField("contact", contact.NetAddr).Debug("Isolated => re-joining")
		n.engine.Join(contact)
		actions = n.engine.PollActions()
	}
	n.engineLock.Unlock()

	n.executeActions(actions)
}

//Leave causes the node to leave the overlay gracefully, sending a Disconnect
//to every active peer before shutting down
func (n *Node) Leave() error {
	n.logger.Debug("LEAVING")

	defer n.Shutdown()

	n.setState(Leaving)

	n.engineLock.Lock()
	n.engine.Leave()
	actions := n.engine.PollActions()
	n.engineLock.Unlock()

	n.executeActions(actions)

	return nil
}

//Shutdown shuts down the node
func (n *Node) Shutdown() {
	if n.getState() != Shutdown {
		n.logger.Debug("Shutdown")

		//Exit any non-shutdown state immediately
		n.setState(Shutdown)

		//Stop and wait for concurrent operations
		close(n.shutdownCh)

		n.waitRoutines()

		n.controlTimer.Shutdown()

		//transport should only be closed once all concurrent operations are
		//finished otherwise they will panic trying to use closed objects
		n.trans.Close()
	}
}

func (n *Node) activeCount() int {
	n.engineLock.Lock()
	defer n.engineLock.Unlock()

	return len(n.engine.ActivePeers())
}

//GetActivePeers returns the peers in the active view
func (n *Node) GetActivePeers() []*peers.Peer {
	n.engineLock.Lock()
	defer n.engineLock.Unlock()

	return n.engine.ActivePeers()
}

//GetPassivePeers returns the peers in the passive view
func (n *Node) GetPassivePeers() []*peers.Peer {
	n.engineLock.Lock()
	defer n.engineLock.Unlock()

	return n.engine.PassivePeers()
}

//ID returns the node's ID, derived from its network address
func (n *Node) ID() uint32 {
	return n.self.ID()
}

//Moniker returns the node's moniker
func (n *Node) Moniker() string {
	return n.self.Moniker
}

//GetStats returns stats
func (n *Node) GetStats() map[string]string {
	timeElapsed := time.Since(n.start)

	n.engineLock.Lock()
	numActive := len(n.engine.ActivePeers())
	numPassive := len(n.engine.PassivePeers())
	pending := n.engine.PendingNeighbor()
	n.engineLock.Unlock()

	pendingAddr := ""
	if pending != nil {
		pendingAddr = pending.NetAddr
	}

	s := map[string]string{
		"uptime":           timeElapsed.String(),
		"num_active":       strconv.Itoa(numActive),
		"num_passive":      strconv.Itoa(numPassive),
		"pending_neighbor": pendingAddr,
		"messages_in":      strconv.Itoa(int(atomic.LoadInt32(&n.messagesIn))),
		"send_errors":      strconv.Itoa(int(atomic.LoadInt32(&n.sendErrors))),
		"shuffles":         strconv.Itoa(int(atomic.LoadInt32(&n.shufflesStarted))),
		"id":               strconv.FormatUint(uint64(n.self.ID()), 10),
		"state":            n.getState().String(),
		"moniker":          n.self.Moniker,
	}
	return s
}

func (n *Node) logStats() {
	stats := n.GetStats()

	n.logger.WithFields(logrus.Fields{
		"num_active":  stats["num_active"],
		"num_passive": stats["num_passive"],
		"messages_in": stats["messages_in"],
		"send_errors": stats["send_errors"],
		"shuffles":    stats["shuffles"],
		"state":       stats["state"],
		"moniker":     stats["moniker"],
	}).Debug("Stats")
}

func senderAddr(msg *hyparview.Message) string {
	if msg == nil || msg.Sender == nil {
		return ""
	}
	return msg.Sender.NetAddr
}
