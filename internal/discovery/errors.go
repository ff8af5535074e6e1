package discovery

import "errors"

var (
	// ErrListenerNotRunning is returned by queries issued before Start or
	// after Stop.
	ErrListenerNotRunning = errors.New("discovery listener is not running")

	// ErrListenerRunning is returned when Start is called twice.
	ErrListenerRunning = errors.New("discovery listener is already running")

	// ErrQueryTimeout is returned when a FINDNODE exchange does not complete
	// within the query timeout.
	ErrQueryTimeout = errors.New("discovery query timed out")

	// ErrUnknownNode is returned when a query target carries no discv5 record.
	ErrUnknownNode = errors.New("node has no discovery v5 record")

	// ErrInvalidBootnode is returned when a bootnode URL cannot be parsed.
	ErrInvalidBootnode = errors.New("invalid bootnode")

	// ErrNoEndpoint is returned when a node record has no UDP endpoint.
	ErrNoEndpoint = errors.New("node record has no UDP endpoint")
)
