package hyparview

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/mosaicnetworks/mingle/src/common"
	"github.com/mosaicnetworks/mingle/src/peers"
)

/*
testOverlay wires engines together with a synchronous message bus: draining
an engine's action queue routes sends to the destination engines and records
up/down notifications. It exercises the exact send/receive contract used in
production, just without a transport.
*/
type testOverlay struct {
	t       *testing.T
	engines map[string]*Engine
	ups     map[string][]string
	downs   map[string][]string
}

func newTestOverlay(t *testing.T, conf *Config, n int) *testOverlay {
	o := &testOverlay{
		t:       t,
		engines: map[string]*Engine{},
		ups:     map[string][]string{},
		downs:   map[string][]string{},
	}

	for i := 0; i < n; i++ {
		self := peers.NewPeer(fmt.Sprintf("127.0.0.1:%d", 9000+i), fmt.Sprintf("node%d", i))
		engine, err := NewEngine(self, conf, rand.New(rand.NewSource(int64(i+1))), common.NewTestLogger(t))
		if err != nil {
			t.Fatalf("err: %v", err)
		}
		o.engines[self.NetAddr] = engine
	}

	return o
}

func (o *testOverlay) engine(i int) *Engine {
	return o.engines[fmt.Sprintf("127.0.0.1:%d", 9000+i)]
}

// drain executes one engine's pending actions, delivering sends to the
// other engines. It returns the number of actions executed.
func (o *testOverlay) drain(e *Engine) int {
	count := 0
	for _, action := range e.PollActions() {
		count++
		switch action.Kind {
		case SendAction:
			if dest, ok := o.engines[action.Peer.NetAddr]; ok {
				dest.HandleMessage(action.Message)
			}
		case NeighborUpAction:
			o.ups[e.Self().NetAddr] = append(o.ups[e.Self().NetAddr], action.Peer.NetAddr)
		case NeighborDownAction:
			o.downs[e.Self().NetAddr] = append(o.downs[e.Self().NetAddr], action.Peer.NetAddr)
		}
	}
	return count
}

// settle drains all engines until quiescence, within a step bound.
func (o *testOverlay) settle() {
	for i := 0; i < 1000; i++ {
		total := 0
		for _, e := range o.engines {
			total += o.drain(e)
		}
		if total == 0 {
			return
		}
	}
	o.t.Fatal("overlay did not quiesce within 1000 rounds")
}

func (o *testOverlay) checkInvariants() {
	for addr, e := range o.engines {
		if got, max := len(e.ActivePeers()), e.conf.ActiveViewSize; got > max {
			o.t.Fatalf("%s active view size %d exceeds %d", addr, got, max)
		}
		if got, max := len(e.PassivePeers()), e.conf.PassiveViewSize; got > max {
			o.t.Fatalf("%s passive view size %d exceeds %d", addr, got, max)
		}
		for _, p := range e.ActivePeers() {
			if p.Equals(e.Self()) {
				o.t.Fatalf("%s holds itself in its active view", addr)
			}
			if e.passive.Contains(p) {
				o.t.Fatalf("%s holds %s in both views", addr, p.NetAddr)
			}
		}
		for _, p := range e.PassivePeers() {
			if p.Equals(e.Self()) {
				o.t.Fatalf("%s holds itself in its passive view", addr)
			}
		}
	}
}

func containsAddr(peers []*peers.Peer, addr string) bool {
	for _, p := range peers {
		if p.NetAddr == addr {
			return true
		}
	}
	return false
}

func countOf(events []string, addr string) int {
	count := 0
	for _, a := range events {
		if a == addr {
			count++
		}
	}
	return count
}

func TestJoinTwoNodes(t *testing.T) {
	o := newTestOverlay(t, NewDefaultConfig(), 2)
	a, b := o.engine(0), o.engine(1)

	b.Join(a.Self())
	o.settle()

	if !containsAddr(a.ActivePeers(), b.Self().NetAddr) {
		t.Fatal("A's active view should contain B")
	}
	if !containsAddr(b.ActivePeers(), a.Self().NetAddr) {
		t.Fatal("B's active view should contain A")
	}

	if countOf(o.ups[a.Self().NetAddr], b.Self().NetAddr) != 1 {
		t.Fatal("A should emit exactly one NeighborUp for B")
	}
	if countOf(o.ups[b.Self().NetAddr], a.Self().NetAddr) != 1 {
		t.Fatal("B should emit exactly one NeighborUp for A")
	}

	o.checkInvariants()
}

func TestJoinEvictsWhenActiveFull(t *testing.T) {
	conf := NewDefaultConfig()
	conf.ActiveViewSize = 1
	conf.PassiveViewSize = 6

	o := newTestOverlay(t, conf, 3)
	a, b, c := o.engine(0), o.engine(1), o.engine(2)

	// establish A <-> B
	b.Join(a.Self())
	o.settle()

	// C joins A, which must evict B. Deliver step by step: with a 1-slot
	// active view the repair traffic is endless churn by design, so the
	// test asserts the first-order effects only.
	a.HandleMessage(NewJoin(c.Self()))

	var disconnected, accepted *peers.Peer
	for _, action := range a.PollActions() {
		switch action.Kind {
		case SendAction:
			switch action.Message.Type {
			case DisconnectType:
				disconnected = action.Peer
			case NeighborAcceptType:
				accepted = action.Peer
			}
		case NeighborDownAction:
			if !action.Peer.Equals(b.Self()) {
				t.Fatalf("NeighborDown should be for B, not %s", action.Peer.NetAddr)
			}
		}
	}

	if disconnected == nil || !disconnected.Equals(b.Self()) {
		t.Fatal("A should send Disconnect to B")
	}
	if accepted == nil || !accepted.Equals(c.Self()) {
		t.Fatal("A should send NeighborAccept to C")
	}
	if !containsAddr(a.ActivePeers(), c.Self().NetAddr) {
		t.Fatal("A's active view should contain C")
	}
	if containsAddr(a.ActivePeers(), b.Self().NetAddr) {
		t.Fatal("A's active view should no longer contain B")
	}

	// B processes the Disconnect: it drops A, keeps it as a passive
	// candidate, and immediately starts repair.
	b.HandleMessage(NewDisconnect(a.Self()))

	if containsAddr(b.ActivePeers(), a.Self().NetAddr) {
		t.Fatal("B's active view should no longer contain A")
	}
	if !containsAddr(b.PassivePeers(), a.Self().NetAddr) &&
		(b.PendingNeighbor() == nil || !b.PendingNeighbor().Equals(a.Self())) {
		t.Fatal("B should keep A as a repair candidate")
	}

	foundDown := false
	for _, action := range b.PollActions() {
		if action.Kind == NeighborDownAction && action.Peer.Equals(a.Self()) {
			foundDown = true
		}
	}
	if !foundDown {
		t.Fatal("B should emit NeighborDown for A")
	}

	o.checkInvariants()
}

func TestForwardJoinTerminatesOnExpiredTTL(t *testing.T) {
	o := newTestOverlay(t, NewDefaultConfig(), 3)
	r, s, n := o.engine(0), o.engine(1), o.engine(2)

	r.HandleMessage(NewForwardJoin(s.Self(), n.Self(), 0))

	if !containsAddr(r.ActivePeers(), n.Self().NetAddr) {
		t.Fatal("expired walk should admit the new peer into the active view")
	}

	// the insertion must come with a symmetric-add notification
	foundAccept := false
	for _, action := range r.PollActions() {
		if action.Kind == SendAction &&
			action.Message.Type == NeighborAcceptType &&
			action.Peer.Equals(n.Self()) {
			foundAccept = true
		}
	}
	if !foundAccept {
		t.Fatal("R should send NeighborAccept to the admitted peer")
	}
}

func TestForwardJoinRelaysWithDecrementedTTL(t *testing.T) {
	o := newTestOverlay(t, NewDefaultConfig(), 4)
	r, s, n, next := o.engine(0), o.engine(1), o.engine(2), o.engine(3)

	// R's only forwarding candidate is 'next'; 'S' must be excluded.
	r.active.Add(s.Self())
	r.active.Add(next.Self())

	ttl := TimeToLive(3)
	r.HandleMessage(NewForwardJoin(s.Self(), n.Self(), ttl))

	var relayed *Message
	for _, action := range r.PollActions() {
		if action.Kind == SendAction && action.Message.Type == ForwardJoinType {
			if !action.Peer.Equals(next.Self()) {
				t.Fatalf("walk must not return to the sender, went to %s", action.Peer.NetAddr)
			}
			relayed = action.Message
		}
	}

	if relayed == nil {
		t.Fatal("R should relay the ForwardJoin")
	}
	if relayed.TTL != ttl-1 {
		t.Fatalf("relayed TTL should be %d, not %d", ttl-1, relayed.TTL)
	}
	if !relayed.NewPeer.Equals(n.Self()) {
		t.Fatal("relayed walk should carry the same new peer")
	}
}

func TestForwardJoinRecordsPassiveAtPRWL(t *testing.T) {
	conf := NewDefaultConfig()

	o := newTestOverlay(t, conf, 4)
	r, s, n := o.engine(0), o.engine(1), o.engine(2)

	r.active.Add(s.Self())
	r.active.Add(o.engine(3).Self())

	r.HandleMessage(NewForwardJoin(s.Self(), n.Self(), TimeToLive(conf.PassiveRandomWalkLength)))

	if !containsAddr(r.PassivePeers(), n.Self().NetAddr) {
		t.Fatal("relay at TTL == PRWL should record the new peer in its passive view")
	}
	if containsAddr(r.ActivePeers(), n.Self().NetAddr) {
		t.Fatal("relay at TTL == PRWL should not admit the new peer into its active view")
	}
}

func TestForwardJoinFallsBackWithoutCandidate(t *testing.T) {
	o := newTestOverlay(t, NewDefaultConfig(), 3)
	r, s, n := o.engine(0), o.engine(1), o.engine(2)

	// sender is R's only active peer: no forwarding candidate
	r.active.Add(s.Self())

	r.HandleMessage(NewForwardJoin(s.Self(), n.Self(), TimeToLive(4)))

	if !containsAddr(r.ActivePeers(), n.Self().NetAddr) {
		t.Fatal("walk with no forwarding candidate should terminate here")
	}
}

func TestDisconnectCompleteness(t *testing.T) {
	o := newTestOverlay(t, NewDefaultConfig(), 2)
	a, b := o.engine(0), o.engine(1)

	b.Join(a.Self())
	o.settle()

	a.HandleMessage(NewDisconnect(b.Self()))
	o.drain(a)

	if countOf(o.downs[a.Self().NetAddr], b.Self().NetAddr) != 1 {
		t.Fatal("exactly one NeighborDown should fire for B")
	}

	// B had capacity in A's passive view, so it must appear there (unless
	// repair already promoted it back)
	if !containsAddr(a.PassivePeers(), b.Self().NetAddr) &&
		(a.PendingNeighbor() == nil || !a.PendingNeighbor().Equals(b.Self())) {
		t.Fatal("disconnected peer should land in the passive view")
	}

	o.checkInvariants()
}

func TestSendFailureTriggersRepair(t *testing.T) {
	o := newTestOverlay(t, NewDefaultConfig(), 3)
	a, b, d := o.engine(0), o.engine(1), o.engine(2)

	a.active.Add(b.Self())
	a.passive.Add(d.Self())

	a.SendFailure(b.Self())

	if containsAddr(a.ActivePeers(), b.Self().NetAddr) {
		t.Fatal("failed peer should leave the active view")
	}
	if containsAddr(a.PassivePeers(), b.Self().NetAddr) {
		t.Fatal("a crashed peer is not a repair candidate")
	}

	var request *Message
	var requestDest *peers.Peer
	for _, action := range a.PollActions() {
		switch action.Kind {
		case NeighborDownAction:
			if !action.Peer.Equals(b.Self()) {
				t.Fatalf("NeighborDown should be for B, not %s", action.Peer.NetAddr)
			}
		case SendAction:
			if action.Message.Type == NeighborRequestType {
				request = action.Message
				requestDest = action.Peer
			}
		}
	}

	if request == nil {
		t.Fatal("repair should issue a NeighborRequest")
	}
	if !requestDest.Equals(d.Self()) {
		t.Fatalf("NeighborRequest should target the passive peer, not %s", requestDest.NetAddr)
	}
	if !request.HighPriority {
		t.Fatal("request from an empty active view should be high priority")
	}

	// the accept completes the promotion
	a.HandleMessage(NewNeighborAccept(d.Self()))

	if !containsAddr(a.ActivePeers(), d.Self().NetAddr) {
		t.Fatal("accepted candidate should enter the active view")
	}
	if a.PendingNeighbor() != nil {
		t.Fatal("promotion bookkeeping should be cleared")
	}

	o.checkInvariants()
}

func TestNeighborRequestHighPriorityEvicts(t *testing.T) {
	conf := NewDefaultConfig()
	conf.ActiveViewSize = 2
	conf.PassiveViewSize = 6

	o := newTestOverlay(t, conf, 4)
	r := o.engine(0)

	r.active.Add(o.engine(1).Self())
	r.active.Add(o.engine(2).Self())

	// low priority on a full view: reject
	r.HandleMessage(NewNeighborRequest(o.engine(3).Self(), false))

	rejected := false
	for _, action := range r.PollActions() {
		if action.Kind == SendAction && action.Message.Type == NeighborRejectType {
			rejected = true
		}
	}
	if !rejected {
		t.Fatal("low-priority request on a full view should be rejected")
	}

	// high priority on a full view: evict and accept
	r.HandleMessage(NewNeighborRequest(o.engine(3).Self(), true))

	if !containsAddr(r.ActivePeers(), o.engine(3).Self().NetAddr) {
		t.Fatal("high-priority request should be accepted")
	}
	if len(r.ActivePeers()) != conf.ActiveViewSize {
		t.Fatalf("active view should stay at capacity %d, not %d",
			conf.ActiveViewSize, len(r.ActivePeers()))
	}

	disconnectSent := false
	for _, action := range r.PollActions() {
		if action.Kind == SendAction && action.Message.Type == DisconnectType {
			disconnectSent = true
		}
	}
	if !disconnectSent {
		t.Fatal("the eviction must run the Disconnect handshake")
	}

	o.checkInvariants()
}

func TestNeighborRejectRetriesUntilExhaustion(t *testing.T) {
	o := newTestOverlay(t, NewDefaultConfig(), 4)
	a := o.engine(0)

	a.passive.Add(o.engine(1).Self())
	a.passive.Add(o.engine(2).Self())
	a.passive.Add(o.engine(3).Self())

	// kick off repair
	a.fillActiveView()

	tried := map[string]bool{}

	for i := 0; i < 3; i++ {
		candidate := a.PendingNeighbor()
		if candidate == nil {
			t.Fatalf("attempt %d: expected a pending NeighborRequest", i)
		}
		if tried[candidate.NetAddr] {
			t.Fatalf("candidate %s tried twice", candidate.NetAddr)
		}
		tried[candidate.NetAddr] = true

		a.HandleMessage(NewNeighborReject(candidate))
	}

	// passive view exhausted: remain under-provisioned, no further requests
	if a.PendingNeighbor() != nil {
		t.Fatal("no candidates should remain after exhaustion")
	}
	if len(a.PassivePeers()) != 0 {
		t.Fatalf("passive view should be exhausted, has %d peers", len(a.PassivePeers()))
	}
}

func TestShuffleRoundTrip(t *testing.T) {
	conf := NewDefaultConfig()
	conf.ShufflePassiveSize = 3

	o := newTestOverlay(t, conf, 8)
	a, b := o.engine(0), o.engine(1)

	// A and B are neighbors with disjoint passive views
	a.active.Add(b.Self())
	b.active.Add(a.Self())

	for i := 2; i < 5; i++ {
		a.passive.Add(o.engine(i).Self())
	}
	for i := 5; i < 8; i++ {
		b.passive.Add(o.engine(i).Self())
	}

	a.Shuffle()
	o.settle()

	learnedByB := 0
	for i := 2; i < 5; i++ {
		if containsAddr(b.PassivePeers(), o.engine(i).Self().NetAddr) {
			learnedByB++
		}
	}
	if learnedByB == 0 {
		t.Fatal("B should learn at least one of A's passive peers")
	}

	learnedByA := 0
	for i := 5; i < 8; i++ {
		if containsAddr(a.PassivePeers(), o.engine(i).Self().NetAddr) {
			learnedByA++
		}
	}
	if learnedByA == 0 {
		t.Fatal("A should learn at least one of B's passive peers")
	}

	o.checkInvariants()
}

func TestShuffleForwardsWithDecrementedTTL(t *testing.T) {
	o := newTestOverlay(t, NewDefaultConfig(), 4)
	b := o.engine(1)

	origin := o.engine(0)
	next := o.engine(2)

	b.active.Add(origin.Self())
	b.active.Add(next.Self())

	sample := []*peers.Peer{origin.Self(), o.engine(3).Self()}
	b.HandleMessage(NewShuffle(origin.Self(), origin.Self(), sample, TimeToLive(2)))

	var relayed *Message
	for _, action := range b.PollActions() {
		if action.Kind == SendAction && action.Message.Type == ShuffleType {
			if !action.Peer.Equals(next.Self()) {
				t.Fatalf("walk must not return to sender or origin, went to %s", action.Peer.NetAddr)
			}
			relayed = action.Message
		}
	}

	if relayed == nil {
		t.Fatal("B should relay the shuffle")
	}
	if relayed.TTL != 1 {
		t.Fatalf("relayed TTL should be 1, not %d", relayed.TTL)
	}
	if !relayed.Origin.Equals(origin.Self()) {
		t.Fatal("relayed shuffle should preserve the origin")
	}
}

func TestShuffleMergeRespectsCapacity(t *testing.T) {
	conf := NewDefaultConfig()
	conf.ActiveViewSize = 2
	conf.PassiveViewSize = 4

	o := newTestOverlay(t, conf, 8)
	r := o.engine(0)

	for i := 1; i < 5; i++ {
		r.passive.Add(o.engine(i).Self())
	}

	incoming := []*peers.Peer{}
	for i := 5; i < 8; i++ {
		incoming = append(incoming, o.engine(i).Self())
	}

	r.mergeIntoPassive(incoming)

	if len(r.PassivePeers()) != conf.PassiveViewSize {
		t.Fatalf("passive view should stay at capacity %d, not %d",
			conf.PassiveViewSize, len(r.PassivePeers()))
	}

	// eviction must prefer old entries over the incoming sample
	for _, p := range incoming {
		if !containsAddr(r.PassivePeers(), p.NetAddr) {
			t.Fatalf("freshly merged peer %s was evicted", p.NetAddr)
		}
	}
}

func TestInvalidMessagesAreDropped(t *testing.T) {
	o := newTestOverlay(t, NewDefaultConfig(), 2)
	a, b := o.engine(0), o.engine(1)

	cases := []*Message{
		nil,
		{Type: JoinType},                  // no sender
		NewJoin(a.Self()),                 // from self
		{Type: ForwardJoinType, Sender: b.Self()}, // no new peer
		{Type: ShuffleType, Sender: b.Self()},     // no origin
	}

	for i, msg := range cases {
		a.HandleMessage(msg)

		if len(a.ActivePeers()) != 0 || len(a.PassivePeers()) != 0 {
			t.Fatalf("case %d: invalid message mutated state", i)
		}
		if actions := a.PollActions(); len(actions) != 0 {
			t.Fatalf("case %d: invalid message produced %d actions", i, len(actions))
		}
	}
}

func TestLeaveDisconnectsAllActivePeers(t *testing.T) {
	o := newTestOverlay(t, NewDefaultConfig(), 4)
	a := o.engine(0)

	for i := 1; i < 4; i++ {
		a.active.Add(o.engine(i).Self())
	}

	a.Leave()

	disconnects := 0
	downs := 0
	for _, action := range a.PollActions() {
		switch {
		case action.Kind == SendAction && action.Message.Type == DisconnectType:
			disconnects++
		case action.Kind == NeighborDownAction:
			downs++
		}
	}

	if disconnects != 3 || downs != 3 {
		t.Fatalf("leave should disconnect 3 peers and emit 3 downs, got %d/%d",
			disconnects, downs)
	}
	if len(a.ActivePeers()) != 0 {
		t.Fatal("active view should be empty after leave")
	}
}
