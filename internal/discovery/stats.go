package discovery

import (
	"sync"
	"time"

	"github.com/nao1215/discvscan/internal/model"
)

// StatsTracker accumulates per-node transport statistics from completed
// exchanges: round-trip time and effective reply bandwidth.
type StatsTracker struct {
	mu    sync.Mutex
	nodes map[model.NodeID]*nodeSamples
}

type nodeSamples struct {
	count    int
	rttMin   time.Duration
	rttTotal time.Duration
	bwMax    float64
	bwTotal  float64
}

// NewStatsTracker creates an empty tracker.
func NewStatsTracker() *StatsTracker {
	return &StatsTracker{nodes: make(map[model.NodeID]*nodeSamples)}
}

// Observe records one exchange with id that took rtt and returned
// replyBytes bytes. Non-positive durations are ignored.
func (s *StatsTracker) Observe(id model.NodeID, rtt time.Duration, replyBytes int) {
	if rtt <= 0 {
		return
	}
	bw := float64(replyBytes) / rtt.Seconds()

	s.mu.Lock()
	defer s.mu.Unlock()

	ns, ok := s.nodes[id]
	if !ok {
		ns = &nodeSamples{rttMin: rtt}
		s.nodes[id] = ns
	}
	ns.count++
	ns.rttTotal += rtt
	if rtt < ns.rttMin {
		ns.rttMin = rtt
	}
	ns.bwTotal += bw
	if bw > ns.bwMax {
		ns.bwMax = bw
	}
}

// Stats returns the statistics of id. Unknown nodes yield zero values.
func (s *StatsTracker) Stats(id model.NodeID) model.NodeStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	ns, ok := s.nodes[id]
	if !ok || ns.count == 0 {
		return model.NodeStats{}
	}
	return model.NodeStats{
		RTTMin: ns.rttMin,
		RTTAvg: ns.rttTotal / time.Duration(ns.count),
		BWMax:  ns.bwMax,
		BWAvg:  ns.bwTotal / float64(ns.count),
	}
}
