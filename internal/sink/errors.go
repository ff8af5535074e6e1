package sink

import "errors"

var (
	// ErrPersistence is wrapped by every error that means a row could not be
	// stored. The crawl must stop when it sees one.
	ErrPersistence = errors.New("persistence failure")

	// ErrClosed is returned by Append after Close.
	ErrClosed = errors.New("sink is closed")
)
