package service

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/mux"
	"github.com/mosaicnetworks/mingle/src/node"
	"github.com/mosaicnetworks/mingle/src/peers"
	"github.com/sirupsen/logrus"
)

// Service exposes a read-only HTTP API over a node's membership state. It is
// meant for monitoring and debugging; applications integrate through the
// proxy, not through this API.
type Service struct {
	sync.Mutex

	bindAddress string
	node        *node.Node
	router      *mux.Router
	logger      *logrus.Entry
}

// NewService ...
func NewService(bindAddress string, n *node.Node, logger *logrus.Entry) *Service {
	service := Service{
		bindAddress: bindAddress,
		node:        n,
		router:      mux.NewRouter(),
		logger:      logger,
	}

	service.registerHandlers()

	return &service
}

func (s *Service) registerHandlers() {
	s.logger.Debug("Registering Mingle API handlers")
	s.router.HandleFunc("/stats", s.makeHandler(s.GetStats)).Methods("GET")
	s.router.HandleFunc("/peers/active", s.makeHandler(s.GetActivePeers)).Methods("GET")
	s.router.HandleFunc("/peers/passive", s.makeHandler(s.GetPassivePeers)).Methods("GET")
}

func (s *Service) makeHandler(fn func(http.ResponseWriter, *http.Request)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.Lock()
		defer s.Unlock()

		// enable CORS
		w.Header().Set("Access-Control-Allow-Origin", "*")

		fn(w, r)
	}
}

// Serve calls ListenAndServe. This is a blocking call.
func (s *Service) Serve() {
	s.logger.WithField("bind_address", s.bindAddress).Debug("Serving Mingle API")

	err := http.ListenAndServe(s.bindAddress, s.router)
	if err != nil {
		s.logger.Error(err)
	}
}

// GetStats ...
func (s *Service) GetStats(w http.ResponseWriter, r *http.Request) {
	stats := s.node.GetStats()

	w.Header().Set("Content-Type", "application/json")

	json.NewEncoder(w).Encode(stats)
}

// GetActivePeers ...
func (s *Service) GetActivePeers(w http.ResponseWriter, r *http.Request) {
	returnPeerSet(w, r, s.node.GetActivePeers())
}

// GetPassivePeers ...
func (s *Service) GetPassivePeers(w http.ResponseWriter, r *http.Request) {
	returnPeerSet(w, r, s.node.GetPassivePeers())
}

func returnPeerSet(w http.ResponseWriter, r *http.Request, peers []*peers.Peer) {
	w.Header().Set("Content-Type", "application/json")

	encoder := json.NewEncoder(w)

	encoder.Encode(peers)
}
