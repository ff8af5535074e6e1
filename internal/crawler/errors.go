package crawler

import "errors"

var (
	// ErrEmptyQueue is returned by State.TakeNext when no node is queued.
	// It drives cycle rotation and never leaves the package.
	ErrEmptyQueue = errors.New("crawl queue is empty")

	// ErrNotInFlight is returned when a query completes for a node the state
	// does not consider in flight.
	ErrNotInFlight = errors.New("node is not in flight")
)
