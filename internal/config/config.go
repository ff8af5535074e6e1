package config

import (
	"path/filepath"
	"time"

	"github.com/adrg/xdg"

	"github.com/nao1215/discvscan/internal/log"
)

// Default configuration values.
const (
	// DefaultListenAddress binds the discovery socket to a random UDP port on
	// all interfaces.
	DefaultListenAddress = "0.0.0.0:0"

	// DefaultOutputFile is the CSV file measurements are written to.
	DefaultOutputFile = "crawl.csv"

	// DefaultDispatchInterval is the pacing delay between two dispatched
	// queries.
	DefaultDispatchInterval = 100 * time.Millisecond

	// DefaultRetryInterval is how long the scheduler waits when the queue is
	// empty but queries are still in flight.
	DefaultRetryInterval = 1 * time.Second

	// DefaultQueryTimeout bounds a single FINDNODE exchange. The protocol has
	// its own per-packet timeouts; this is the outer limit.
	DefaultQueryTimeout = 10 * time.Second

	// DefaultMaxPending caps the number of in-flight queries.
	DefaultMaxPending = 64

	// DefaultSeedCount is the number of locally known nodes used to seed the
	// first cycle.
	DefaultSeedCount = 16

	// DefaultLogLevel is the minimum log severity.
	DefaultLogLevel = "info"

	// AppName is the application name used for XDG directory paths.
	AppName = "discvscan"
)

// Config holds all configuration options for discvscan.
// It is populated from CLI flags and the optional config file and passed
// through the application explicitly.
type Config struct {
	// ListenAddress is the local UDP address of the discovery socket.
	ListenAddress string

	// Bootnodes are the enr: or enode:// URLs seeding the crawl.
	Bootnodes []string

	// NodeKeyFile is a file holding a hex secp256k1 private key.
	// When empty, an ephemeral key is generated for the run.
	NodeKeyFile string

	// OutputFile is the CSV file measurements are written to.
	// It is truncated when the crawl starts.
	OutputFile string

	// DBDir is the directory holding the SQLite crawl database.
	DBDir string

	// SaveToDB enables the SQLite sink in addition to the CSV file.
	SaveToDB bool

	// DispatchInterval is the pacing delay between dispatched queries.
	DispatchInterval time.Duration

	// RetryInterval is the wait used while the queue is empty but queries are
	// in flight.
	RetryInterval time.Duration

	// QueryTimeout bounds one discovery query.
	QueryTimeout time.Duration

	// MaxPending caps in-flight queries. Zero means no cap.
	MaxPending int

	// SeedCount is the number of locally known nodes seeding the first cycle.
	SeedCount int

	// LogLevel is the minimum log severity (debug, info, warn, error).
	LogLevel string

	// Verbose forces debug logging.
	Verbose bool

	// LogJSON writes logs as JSON instead of text.
	LogJSON bool

	// ConfigFilePath is the path to the configuration file.
	// If empty, the tool searches for .discvscan in the current directory
	// and then in the user's home directory.
	ConfigFilePath string
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		ListenAddress:    DefaultListenAddress,
		OutputFile:       DefaultOutputFile,
		DBDir:            XDGDataDir(),
		SaveToDB:         true,
		DispatchInterval: DefaultDispatchInterval,
		RetryInterval:    DefaultRetryInterval,
		QueryTimeout:     DefaultQueryTimeout,
		MaxPending:       DefaultMaxPending,
		SeedCount:        DefaultSeedCount,
		LogLevel:         DefaultLogLevel,
	}
}

// XDGDataDir returns the XDG data directory for discvscan.
// On Linux: ~/.local/share/discvscan
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// Validate checks if the configuration is valid.
// It returns the first problem found as one of the sentinel errors.
func (c *Config) Validate() error {
	if len(c.Bootnodes) == 0 {
		return ErrNoBootnodes
	}

	if c.OutputFile == "" {
		return ErrNoOutputFile
	}

	if c.ListenAddress == "" {
		return ErrInvalidListenAddress
	}

	if c.DispatchInterval < 0 {
		return ErrInvalidDispatchInterval
	}

	if c.RetryInterval <= 0 {
		return ErrInvalidRetryInterval
	}

	if c.QueryTimeout <= 0 {
		return ErrInvalidQueryTimeout
	}

	if c.MaxPending < 0 {
		return ErrInvalidMaxPending
	}

	if c.SeedCount <= 0 {
		return ErrInvalidSeedCount
	}

	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return ErrInvalidLogLevel
	}

	return nil
}

// Apply copies the values set in the config file onto c.
// Fields whose flag was set explicitly on the command line are listed in
// explicit and keep their flag value.
func (c *Config) Apply(f *File, explicit map[string]bool) {
	if f == nil {
		return
	}

	if len(f.Bootnodes) > 0 && !explicit["bootnode"] {
		c.Bootnodes = append([]string(nil), f.Bootnodes...)
	}
	if f.Listen != "" && !explicit["listen"] {
		c.ListenAddress = f.Listen
	}
	if f.NodeKey != "" && !explicit["nodekey"] {
		c.NodeKeyFile = f.NodeKey
	}
	if f.Output != "" && !explicit["output"] {
		c.OutputFile = f.Output
	}
	if f.LogLevel != "" && !explicit["log-level"] {
		c.LogLevel = f.LogLevel
	}

	crawl := f.Crawl
	if crawl.DispatchInterval != nil && !explicit["dispatch-interval"] {
		c.DispatchInterval = *crawl.DispatchInterval
	}
	if crawl.RetryInterval != nil && !explicit["retry-interval"] {
		c.RetryInterval = *crawl.RetryInterval
	}
	if crawl.QueryTimeout != nil && !explicit["query-timeout"] {
		c.QueryTimeout = *crawl.QueryTimeout
	}
	if crawl.MaxPending != nil && !explicit["max-pending"] {
		c.MaxPending = *crawl.MaxPending
	}
	if crawl.SeedCount != nil && !explicit["seed-count"] {
		c.SeedCount = *crawl.SeedCount
	}
}
