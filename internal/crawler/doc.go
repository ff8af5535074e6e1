// Package crawler implements the discovery network crawl.
//
// # Architecture
//
// The Crawler drains a queue of known nodes at a paced rate. Every popped
// node is measured by its own goroutine: one FINDNODE query, the node's
// transport statistics and its declared attributes become one measurement
// row, and the peers in the reply are folded back into the queue.
//
// When the queue is empty and no query is in flight, a cycle is complete:
// every node measured in it becomes the queue of the next cycle.
//
// # Components
//
//   - Crawler: the scheduler; owns the State and the join-set of samplers
//   - State: queued, in-flight and measured node sets plus the cycle counter
//   - Client: the protocol capability the crawler consumes
//
// # Failure handling
//
// A failed query drops the node for this attempt. It is neither persisted
// nor marked measured, and it re-enters the queue only when another peer
// reports it again. A failed write to the sink stops the crawl.
//
// # Usage
//
//	c := crawler.New(listener, csvSink, crawler.WithMaxPending(32))
//	err := c.Run(ctx)
package crawler
