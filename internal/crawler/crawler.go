package crawler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/discvscan/internal/log"
	"github.com/nao1215/discvscan/internal/model"
	"github.com/nao1215/discvscan/internal/sink"
)

// Client is the discovery protocol capability the crawler consumes.
type Client interface {
	// Self returns the local node ID.
	Self() model.NodeID

	// FindNode asks target for the nodes it knows at the given log distances.
	FindNode(ctx context.Context, target model.Node, distances []uint) ([]model.Node, error)

	// Stats returns the live transport statistics of a node.
	Stats(id model.NodeID) model.NodeStats

	// RandomNodes returns up to n locally known nodes.
	RandomNodes(n int) []model.Node
}

// Crawler schedules measurements across the discovery network.
type Crawler struct {
	client Client
	sink   sink.Sink
	state  *State
	logger *slog.Logger

	dispatchInterval time.Duration
	retryInterval    time.Duration
	maxPending       int
	seedCount        int

	distances func(self, target model.NodeID) []uint
	now       func() time.Time

	// slotFreed is signalled whenever a query finishes.
	slotFreed chan struct{}
}

// Option configures a Crawler.
type Option func(*Crawler)

// WithDispatchInterval sets the pause between two dispatched queries.
func WithDispatchInterval(d time.Duration) Option {
	return func(c *Crawler) {
		c.dispatchInterval = d
	}
}

// WithRetryInterval sets the wait used while the queue is empty but queries
// are in flight.
func WithRetryInterval(d time.Duration) Option {
	return func(c *Crawler) {
		c.retryInterval = d
	}
}

// WithMaxPending caps the number of queries in flight. Zero disables the cap.
func WithMaxPending(n int) Option {
	return func(c *Crawler) {
		c.maxPending = n
	}
}

// WithSeedCount sets how many locally known nodes seed the crawl.
func WithSeedCount(n int) Option {
	return func(c *Crawler) {
		c.seedCount = n
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Crawler) {
		c.logger = logger
	}
}

// WithDistances replaces the FINDNODE distance selection.
func WithDistances(fn func(self, target model.NodeID) []uint) Option {
	return func(c *Crawler) {
		c.distances = fn
	}
}

// New creates a crawler that queries client and writes rows to s.
func New(client Client, s sink.Sink, opts ...Option) *Crawler {
	c := &Crawler{
		client:           client,
		sink:             s,
		logger:           slog.Default(),
		dispatchInterval: 100 * time.Millisecond,
		retryInterval:    1 * time.Second,
		maxPending:       64,
		seedCount:        16,
		distances:        nearestDistances,
		now:              time.Now,
		slotFreed:        make(chan struct{}, 1),
	}

	for _, opt := range opts {
		opt(c)
	}

	c.state = NewState(client.Self())
	return c
}

// State returns the crawl state.
func (c *Crawler) State() *State {
	return c.state
}

// Run crawls until ctx is cancelled or a row cannot be persisted.
// Cancellation is a clean shutdown and returns nil; Run waits for every
// in-flight query before returning.
func (c *Crawler) Run(ctx context.Context) error {
	seeded := c.state.Seed(c.client.RandomNodes(c.seedCount))
	c.logger.Info("crawl started",
		"node_id", c.state.Self().String(),
		"seeds", seeded,
		"max_pending", c.maxPending,
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return c.schedule(gctx, g)
	})

	err := g.Wait()
	if err != nil && errors.Is(err, context.Canceled) && ctx.Err() != nil {
		err = nil
	}

	queued, _, measured := c.state.Counts()
	c.logger.Info("crawl stopped",
		"cycle", c.state.Cycle(),
		"measured", measured,
		"queued", queued,
	)
	return err
}

// schedule is the dispatch loop. It returns when ctx is done.
func (c *Crawler) schedule(ctx context.Context, g *errgroup.Group) error {
	cycleStart := c.now()

	for ctx.Err() == nil {
		if c.maxPending > 0 && c.state.Pending() >= c.maxPending {
			c.logger.Debug("in-flight cap reached", "pending", c.maxPending)
			select {
			case <-ctx.Done():
				return nil
			case <-c.slotFreed:
			}
			continue
		}

		node, cycle, err := c.state.TakeNext()
		if errors.Is(err, ErrEmptyQueue) {
			if c.state.Pending() > 0 {
				if !sleep(ctx, c.retryInterval) {
					return nil
				}
				continue
			}

			finished := c.state.Cycle()
			carried, ok := c.state.Rotate()
			if !ok {
				continue
			}
			c.logger.Info("cycle complete",
				"cycle", finished,
				"measured", carried,
				"elapsed", c.now().Sub(cycleStart).Round(time.Millisecond),
			)
			if err := c.completeCycle(ctx, finished, carried); err != nil {
				return err
			}
			cycleStart = c.now()

			if carried == 0 {
				added := c.state.Seed(c.client.RandomNodes(c.seedCount))
				c.logger.Warn("no node measured in cycle, reseeding", "cycle", finished, "seeds", added)
				if !sleep(ctx, c.retryInterval) {
					return nil
				}
			}
			continue
		}

		g.Go(func() error {
			defer c.releaseSlot()
			return c.measure(ctx, node, cycle)
		})

		if !sleep(ctx, c.dispatchInterval) {
			return nil
		}
	}
	return nil
}

// releaseSlot wakes the scheduler if it is waiting at the in-flight cap.
func (c *Crawler) releaseSlot() {
	select {
	case c.slotFreed <- struct{}{}:
	default:
	}
}

// completeCycle records the end of cycle in sinks that track cycles.
// A failure is fatal like a failed row.
func (c *Crawler) completeCycle(ctx context.Context, cycle, measured int) error {
	rec, ok := c.sink.(sink.CycleRecorder)
	if !ok {
		return nil
	}
	if err := rec.CompleteCycle(context.WithoutCancel(ctx), cycle, measured, c.now()); err != nil {
		log.Fatal(ctx, c.logger, "failed to record cycle completion",
			"cycle", cycle,
			"error", err,
		)
		return fmt.Errorf("failed to record completion of cycle %d: %w", cycle, err)
	}
	return nil
}

// sleep waits for d or until ctx is done. It reports whether the full
// duration elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
