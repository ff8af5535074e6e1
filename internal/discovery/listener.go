package discovery

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	gethlog "github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/p2p/discover"
	"github.com/ethereum/go-ethereum/p2p/enode"

	"github.com/nao1215/discvscan/internal/model"
)

// Listener runs a discovery v5 node used as the crawler's protocol client.
// Call Start before issuing queries and Stop when done.
type Listener struct {
	listenAddr   string
	key          *ecdsa.PrivateKey
	bootnodes    []*enode.Node
	queryTimeout time.Duration
	logger       *slog.Logger

	stats *StatsTracker

	mu   sync.RWMutex
	udp  *discover.UDPv5
	db   *enode.DB
	self model.NodeID
}

// ListenerOption configures a Listener.
type ListenerOption func(*Listener)

// WithListenAddress sets the local UDP address. Defaults to "0.0.0.0:0".
func WithListenAddress(addr string) ListenerOption {
	return func(l *Listener) {
		l.listenAddr = addr
	}
}

// WithBootnodes sets the nodes used to bootstrap the routing table.
func WithBootnodes(nodes []*enode.Node) ListenerOption {
	return func(l *Listener) {
		l.bootnodes = nodes
	}
}

// WithQueryTimeout bounds every FINDNODE issued through the listener.
func WithQueryTimeout(d time.Duration) ListenerOption {
	return func(l *Listener) {
		l.queryTimeout = d
	}
}

// WithLogger sets the logger. go-ethereum's own log output is routed to the
// same handler.
func WithLogger(logger *slog.Logger) ListenerOption {
	return func(l *Listener) {
		l.logger = logger
	}
}

// NewListener creates a listener for the given node key.
func NewListener(key *ecdsa.PrivateKey, opts ...ListenerOption) *Listener {
	l := &Listener{
		listenAddr:   "0.0.0.0:0",
		key:          key,
		queryTimeout: 10 * time.Second,
		logger:       slog.Default(),
		stats:        NewStatsTracker(),
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// Start opens the UDP socket and starts the discv5 protocol.
func (l *Listener) Start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.udp != nil {
		return ErrListenerRunning
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	addr, err := net.ResolveUDPAddr("udp", l.listenAddr)
	if err != nil {
		return fmt.Errorf("invalid listen address %q: %w", l.listenAddr, err)
	}

	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return fmt.Errorf("failed to open UDP socket: %w", err)
	}

	db, err := enode.OpenDB("")
	if err != nil {
		_ = conn.Close() //nolint:errcheck // already failing
		return fmt.Errorf("failed to open node database: %w", err)
	}

	local := enode.NewLocalNode(db, l.key)
	laddr, ok := conn.LocalAddr().(*net.UDPAddr)
	if ok {
		local.SetFallbackUDP(laddr.Port)
		if !laddr.IP.IsUnspecified() {
			local.SetFallbackIP(laddr.IP)
		}
	}

	udp, err := discover.ListenV5(conn, local, discover.Config{
		PrivateKey: l.key,
		Bootnodes:  l.bootnodes,
		Log:        gethlog.NewLogger(l.logger.Handler()),
	})
	if err != nil {
		_ = conn.Close() //nolint:errcheck // already failing
		db.Close()
		return fmt.Errorf("failed to start discovery v5: %w", err)
	}

	l.udp = udp
	l.db = db
	l.self = model.NodeID(local.ID())

	l.logger.Info("discovery listener started",
		"node_id", l.self.String(),
		"addr", conn.LocalAddr().String(),
		"bootnodes", len(l.bootnodes),
	)
	return nil
}

// Stop shuts the protocol down and closes the socket.
// It is safe to call Stop more than once or on an unstarted listener.
func (l *Listener) Stop() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.udp == nil {
		return nil
	}

	l.udp.Close()
	l.db.Close()
	l.udp = nil
	l.db = nil
	return nil
}

// Self returns the local node ID. It is the zero ID before Start.
func (l *Listener) Self() model.NodeID {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.self
}

func (l *Listener) protocol() (*discover.UDPv5, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.udp == nil {
		return nil, ErrListenerNotRunning
	}
	return l.udp, nil
}

// FindNode sends a FINDNODE request for distances to target and returns the
// nodes it replied with. The exchange is timed and recorded in the node's
// statistics.
func (l *Listener) FindNode(ctx context.Context, target model.Node, distances []uint) ([]model.Node, error) {
	udp, err := l.protocol()
	if err != nil {
		return nil, err
	}

	n, err := fromModel(target)
	if err != nil {
		return nil, err
	}
	if n.UDP() == 0 {
		return nil, ErrNoEndpoint
	}

	ctx, cancel := context.WithTimeout(ctx, l.queryTimeout)
	defer cancel()

	type reply struct {
		nodes []*enode.Node
		err   error
	}
	done := make(chan reply, 1)

	start := time.Now()
	go func() {
		nodes, err := udp.Findnode(n, distances)
		done <- reply{nodes: nodes, err: err}
	}()

	select {
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, ErrQueryTimeout
		}
		return nil, ctx.Err()
	case r := <-done:
		if r.err != nil {
			return nil, fmt.Errorf("findnode %s: %w", target.ID.TerminalString(), r.err)
		}

		size := 0
		out := make([]model.Node, 0, len(r.nodes))
		for _, peer := range r.nodes {
			size += encodedSize(peer)
			out = append(out, ToModel(peer))
		}
		l.stats.Observe(target.ID, time.Since(start), size)
		return out, nil
	}
}

// Stats returns the transport statistics gathered for id.
func (l *Listener) Stats(id model.NodeID) model.NodeStats {
	return l.stats.Stats(id)
}

// RandomNodes returns up to n locally known nodes: the bootnodes first, then
// nodes from the routing table.
func (l *Listener) RandomNodes(n int) []model.Node {
	out := make([]model.Node, 0, n)
	seen := make(map[enode.ID]bool)

	add := func(nodes []*enode.Node) {
		for _, node := range nodes {
			if len(out) >= n {
				return
			}
			if seen[node.ID()] {
				continue
			}
			seen[node.ID()] = true
			out = append(out, ToModel(node))
		}
	}

	add(l.bootnodes)
	if udp, err := l.protocol(); err == nil {
		add(udp.AllNodes())
	}
	return out
}

// Local returns the local node as advertised in its record.
func (l *Listener) Local() (model.Node, error) {
	udp, err := l.protocol()
	if err != nil {
		return model.Node{}, err
	}
	return ToModel(udp.Self()), nil
}
