package config

import (
	"errors"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the default configuration file name.
const DefaultConfigFile = ".discvscan"

// ErrConfigNotFound is returned when the configuration file does not exist.
var ErrConfigNotFound = errors.New("configuration file not found")

// File represents the structure of the .discvscan configuration file.
// Every field is optional; unset fields keep the flag defaults.
type File struct {
	// Bootnodes are enr: or enode:// URLs seeding the crawl.
	Bootnodes []string `yaml:"bootnodes,omitempty"`

	// Listen is the local UDP address of the discovery socket.
	Listen string `yaml:"listen,omitempty"`

	// NodeKey is the path to a hex private key file.
	NodeKey string `yaml:"nodekey,omitempty"`

	// Output is the CSV output path.
	Output string `yaml:"output,omitempty"`

	// LogLevel is the minimum log severity.
	LogLevel string `yaml:"log-level,omitempty"`

	// Crawl holds the scheduler tunables.
	Crawl CrawlSettings `yaml:"crawl,omitempty"`
}

// CrawlSettings are the scheduler tunables of the configuration file.
// Pointers distinguish "not set" from zero values.
type CrawlSettings struct {
	DispatchInterval *time.Duration `yaml:"dispatchInterval,omitempty"`
	RetryInterval    *time.Duration `yaml:"retryInterval,omitempty"`
	QueryTimeout     *time.Duration `yaml:"queryTimeout,omitempty"`
	MaxPending       *int           `yaml:"maxPending,omitempty"`
	SeedCount        *int           `yaml:"seedCount,omitempty"`
}

// LoadConfigFile loads the configuration file at path.
// If the file does not exist, it returns ErrConfigNotFound.
func LoadConfigFile(path string) (*File, error) {
	data, err := os.ReadFile(path) //nolint:gosec // User-provided config path is intentional
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}

	var cf File
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return nil, err
	}

	return &cf, nil
}

// FindConfigFile searches for the configuration file in the following order:
// 1. If configPath is specified, use it directly
// 2. Look for .discvscan in the current directory
// 3. Look for .discvscan in the user's home directory
//
// Returns the path to the configuration file if found, or empty string if not found.
func FindConfigFile(configPath string) string {
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
		return ""
	}

	cwd, err := os.Getwd()
	if err == nil {
		cwdConfig := filepath.Join(cwd, DefaultConfigFile)
		if _, err := os.Stat(cwdConfig); err == nil {
			return cwdConfig
		}
	}

	home, err := os.UserHomeDir()
	if err == nil {
		homeConfig := filepath.Join(home, DefaultConfigFile)
		if _, err := os.Stat(homeConfig); err == nil {
			return homeConfig
		}
	}

	return ""
}
