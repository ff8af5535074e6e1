package crawler

import (
	"sync"

	"github.com/nao1215/discvscan/internal/model"
)

// State is the crawl bookkeeping shared by the scheduler and its samplers.
// A node is in at most one of queued, in flight and measured.
type State struct {
	mu sync.Mutex

	self     model.NodeID
	queued   map[model.NodeID]model.Node
	inflight map[model.NodeID]model.Node
	measured map[model.NodeID]model.Node
	cycle    int
}

// Snapshot is a point-in-time copy of the state's node sets.
type Snapshot struct {
	Queued   []model.NodeID
	InFlight []model.NodeID
	Measured []model.NodeID
	Cycle    int
}

// NewState creates an empty state for the local node self.
func NewState(self model.NodeID) *State {
	return &State{
		self:     self,
		queued:   make(map[model.NodeID]model.Node),
		inflight: make(map[model.NodeID]model.Node),
		measured: make(map[model.NodeID]model.Node),
	}
}

// Self returns the local node ID.
func (s *State) Self() model.NodeID {
	return s.self
}

// Seed queues nodes that are not yet known. It returns the number added.
func (s *State) Seed(nodes []model.Node) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addLocked(nodes)
}

func (s *State) addLocked(nodes []model.Node) int {
	added := 0
	for _, n := range nodes {
		if n.ID == s.self {
			continue
		}
		if _, ok := s.queued[n.ID]; ok {
			continue
		}
		if _, ok := s.inflight[n.ID]; ok {
			continue
		}
		if _, ok := s.measured[n.ID]; ok {
			continue
		}
		s.queued[n.ID] = n
		added++
	}
	return added
}

// TakeNext removes one node from the queue and marks it in flight.
// It returns the cycle the node is dispatched in, or ErrEmptyQueue.
func (s *State) TakeNext() (model.Node, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, n := range s.queued {
		delete(s.queued, id)
		s.inflight[id] = n
		return n, s.cycle, nil
	}
	return model.Node{}, s.cycle, ErrEmptyQueue
}

// Complete records a successful query of node: the node moves from in flight
// to measured and every unknown peer is queued. It returns the number of
// peers added.
func (s *State) Complete(node model.Node, peers []model.Node) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.inflight[node.ID]; !ok {
		return 0, ErrNotInFlight
	}
	delete(s.inflight, node.ID)
	delete(s.queued, node.ID)
	s.measured[node.ID] = node

	return s.addLocked(peers), nil
}

// Fail drops a node whose query failed. It ends up in no set.
func (s *State) Fail(id model.NodeID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inflight, id)
}

// Rotate starts a new cycle when nothing is queued or in flight: the
// measured nodes become the queue and the cycle counter advances by one.
// It returns the number of nodes carried over and whether it rotated.
func (s *State) Rotate() (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.queued) > 0 || len(s.inflight) > 0 {
		return 0, false
	}

	s.queued = s.measured
	s.measured = make(map[model.NodeID]model.Node)
	s.cycle++
	return len(s.queued), true
}

// Pending returns the number of queries in flight.
func (s *State) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.inflight)
}

// Cycle returns the current cycle.
func (s *State) Cycle() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cycle
}

// Counts returns the sizes of the queued, in-flight and measured sets.
func (s *State) Counts() (queued, inflight, measured int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queued), len(s.inflight), len(s.measured)
}

// Snapshot copies the current node sets.
func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Snapshot{
		Queued:   keys(s.queued),
		InFlight: keys(s.inflight),
		Measured: keys(s.measured),
		Cycle:    s.cycle,
	}
}

func keys(m map[model.NodeID]model.Node) []model.NodeID {
	out := make([]model.NodeID, 0, len(m))
	for id := range m {
		out = append(out, id)
	}
	return out
}
