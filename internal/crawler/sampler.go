package crawler

import (
	"context"
	"fmt"

	"github.com/nao1215/discvscan/internal/discovery"
	"github.com/nao1215/discvscan/internal/log"
	"github.com/nao1215/discvscan/internal/model"
)

// nearestDistances is the default FINDNODE distance selection.
func nearestDistances(self, target model.NodeID) []uint {
	return discovery.Distances(self, target)
}

// measure issues one query against node and records the outcome.
// Query failures are absorbed; only a sink failure is returned.
func (c *Crawler) measure(ctx context.Context, node model.Node, cycle int) error {
	start := c.now()
	peers, err := c.client.FindNode(ctx, node, c.distances(c.state.Self(), node.ID))
	if err != nil {
		c.state.Fail(node.ID)
		if ctx.Err() == nil {
			c.logger.Debug("query failed",
				"node_id", node.ID.TerminalString(),
				"endpoint", node.Endpoint(),
				"error", err,
			)
		}
		return nil
	}
	finished := c.now()

	stats := c.client.Stats(node.ID)
	added, err := c.state.Complete(node, peers)
	if err != nil {
		c.logger.Error("inconsistent crawl state", "node_id", node.ID.String(), "error", err)
		return nil
	}

	row := model.NewMeasurementRow(cycle, node, stats, finished.Sub(start), finished)
	if err := c.sink.Append(context.WithoutCancel(ctx), row); err != nil {
		log.Fatal(ctx, c.logger, "failed to persist measurement",
			"node_id", node.ID.String(),
			"error", err,
		)
		return fmt.Errorf("failed to persist measurement of %s: %w", node.ID.TerminalString(), err)
	}

	c.logger.Debug("node measured",
		"cycle", cycle,
		"node_id", node.ID.TerminalString(),
		"endpoint", node.Endpoint(),
		"peers", len(peers),
		"new", added,
		"rtt_min_ms", row.RTTMinMillis(),
		"client", row.Attributes.Client,
	)
	return nil
}
