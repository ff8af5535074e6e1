package config

import "errors"

// Configuration validation errors.
// These errors are returned by Config.Validate() and describe what is wrong
// with the configuration. Callers can match them with errors.Is().
var (
	// ErrNoBootnodes is returned when no bootstrap node is configured.
	// Without a bootnode the first cycle has nothing to query.
	ErrNoBootnodes = errors.New("no bootnodes specified: pass --bootnode or list them in the config file")

	// ErrNoOutputFile is returned when the CSV output path is empty.
	ErrNoOutputFile = errors.New("no output file specified")

	// ErrInvalidDispatchInterval is returned when the dispatch interval is negative.
	ErrInvalidDispatchInterval = errors.New("invalid dispatch interval: must be non-negative")

	// ErrInvalidRetryInterval is returned when the retry interval is not positive.
	// A zero interval would busy-loop while queries are in flight.
	ErrInvalidRetryInterval = errors.New("invalid retry interval: must be positive")

	// ErrInvalidQueryTimeout is returned when the query timeout is not positive.
	ErrInvalidQueryTimeout = errors.New("invalid query timeout: must be positive")

	// ErrInvalidMaxPending is returned when the in-flight cap is negative.
	// Zero disables the cap.
	ErrInvalidMaxPending = errors.New("invalid max pending: must be non-negative")

	// ErrInvalidSeedCount is returned when the seed sample size is not positive.
	ErrInvalidSeedCount = errors.New("invalid seed count: must be positive")

	// ErrInvalidLogLevel is returned when the log level is not one of
	// debug, info, warn, error or fatal.
	ErrInvalidLogLevel = errors.New("invalid log level: expected debug, info, warn, error or fatal")

	// ErrInvalidListenAddress is returned when the UDP listen address is empty.
	ErrInvalidListenAddress = errors.New("invalid listen address: expected host:port")

	// ErrConflictingReportFormats is returned when both --json and --markdown
	// are specified. Only one output format can be used at a time.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --json and --markdown cannot be used together")
)
