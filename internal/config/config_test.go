package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// TestNewConfig verifies that NewConfig returns a Config with all expected default values.
func TestNewConfig(t *testing.T) {
	t.Parallel()

	cfg := NewConfig()

	t.Run("default DispatchInterval is 100ms", func(t *testing.T) {
		t.Parallel()
		if cfg.DispatchInterval != 100*time.Millisecond {
			t.Errorf("expected DispatchInterval to be 100ms, got %v", cfg.DispatchInterval)
		}
	})

	t.Run("default MaxPending is 64", func(t *testing.T) {
		t.Parallel()
		if cfg.MaxPending != 64 {
			t.Errorf("expected MaxPending to be 64, got %d", cfg.MaxPending)
		}
	})

	t.Run("default OutputFile is crawl.csv", func(t *testing.T) {
		t.Parallel()
		if cfg.OutputFile != "crawl.csv" {
			t.Errorf("expected OutputFile to be crawl.csv, got %q", cfg.OutputFile)
		}
	})

	t.Run("database is enabled in the XDG data dir", func(t *testing.T) {
		t.Parallel()
		if !cfg.SaveToDB {
			t.Error("expected SaveToDB to be true")
		}
		if cfg.DBDir != XDGDataDir() {
			t.Errorf("expected DBDir %q, got %q", XDGDataDir(), cfg.DBDir)
		}
	})

	t.Run("no bootnodes by default", func(t *testing.T) {
		t.Parallel()
		if len(cfg.Bootnodes) != 0 {
			t.Errorf("expected no bootnodes, got %v", cfg.Bootnodes)
		}
	})
}

// TestConfigValidate tests the Validate method with various configurations.
// Each test case is designed to test one specific validation rule.
func TestConfigValidate(t *testing.T) {
	t.Parallel()

	validConfig := func() *Config {
		cfg := NewConfig()
		cfg.Bootnodes = []string{"enr:-example"}
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{name: "valid config returns nil", mutate: func(*Config) {}},
		{name: "zero dispatch interval is valid", mutate: func(c *Config) { c.DispatchInterval = 0 }},
		{name: "zero max pending disables the cap", mutate: func(c *Config) { c.MaxPending = 0 }},
		{name: "no bootnodes", mutate: func(c *Config) { c.Bootnodes = nil }, wantErr: ErrNoBootnodes},
		{name: "empty output file", mutate: func(c *Config) { c.OutputFile = "" }, wantErr: ErrNoOutputFile},
		{name: "empty listen address", mutate: func(c *Config) { c.ListenAddress = "" }, wantErr: ErrInvalidListenAddress},
		{name: "negative dispatch interval", mutate: func(c *Config) { c.DispatchInterval = -time.Second }, wantErr: ErrInvalidDispatchInterval},
		{name: "zero retry interval", mutate: func(c *Config) { c.RetryInterval = 0 }, wantErr: ErrInvalidRetryInterval},
		{name: "zero query timeout", mutate: func(c *Config) { c.QueryTimeout = 0 }, wantErr: ErrInvalidQueryTimeout},
		{name: "negative max pending", mutate: func(c *Config) { c.MaxPending = -1 }, wantErr: ErrInvalidMaxPending},
		{name: "zero seed count", mutate: func(c *Config) { c.SeedCount = 0 }, wantErr: ErrInvalidSeedCount},
		{name: "upper-case log level is accepted", mutate: func(c *Config) { c.LogLevel = "WARN" }},
		{name: "unknown log level", mutate: func(c *Config) { c.LogLevel = "loud" }, wantErr: ErrInvalidLogLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("expected no error, got %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

// TestLoadConfigFile tests YAML loading and merging into Config.
func TestLoadConfigFile(t *testing.T) {
	t.Parallel()

	t.Run("missing file returns ErrConfigNotFound", func(t *testing.T) {
		t.Parallel()

		_, err := LoadConfigFile(filepath.Join(t.TempDir(), "missing.yaml"))
		if !errors.Is(err, ErrConfigNotFound) {
			t.Errorf("expected ErrConfigNotFound, got %v", err)
		}
	})

	t.Run("invalid YAML returns error", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), DefaultConfigFile)
		if err := os.WriteFile(path, []byte("bootnodes: [unterminated"), 0600); err != nil {
			t.Fatal(err)
		}
		if _, err := LoadConfigFile(path); err == nil {
			t.Error("expected parse error")
		}
	})

	t.Run("file values apply unless set by flag", func(t *testing.T) {
		t.Parallel()

		content := `bootnodes:
  - enr:-one
  - enr:-two
output: out/nodes.csv
log-level: debug
crawl:
  dispatchInterval: 250ms
  maxPending: 8
  seedCount: 4
`
		path := filepath.Join(t.TempDir(), DefaultConfigFile)
		if err := os.WriteFile(path, []byte(content), 0600); err != nil {
			t.Fatal(err)
		}

		f, err := LoadConfigFile(path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		cfg := NewConfig()
		cfg.MaxPending = 100
		cfg.Apply(f, map[string]bool{"max-pending": true})

		if len(cfg.Bootnodes) != 2 || cfg.Bootnodes[1] != "enr:-two" {
			t.Errorf("unexpected bootnodes %v", cfg.Bootnodes)
		}
		if cfg.OutputFile != "out/nodes.csv" {
			t.Errorf("expected output from file, got %q", cfg.OutputFile)
		}
		if cfg.DispatchInterval != 250*time.Millisecond {
			t.Errorf("expected 250ms dispatch interval, got %v", cfg.DispatchInterval)
		}
		if cfg.MaxPending != 100 {
			t.Errorf("explicit flag should win, got %d", cfg.MaxPending)
		}
		if cfg.SeedCount != 4 {
			t.Errorf("expected seed count 4, got %d", cfg.SeedCount)
		}
		if cfg.RetryInterval != DefaultRetryInterval {
			t.Errorf("unset field should keep default, got %v", cfg.RetryInterval)
		}
		if cfg.LogLevel != "debug" {
			t.Errorf("expected log level from file, got %q", cfg.LogLevel)
		}
	})

	t.Run("explicit log level flag wins over the file", func(t *testing.T) {
		t.Parallel()

		cfg := NewConfig()
		cfg.LogLevel = "error"
		cfg.Apply(&File{LogLevel: "debug"}, map[string]bool{"log-level": true})
		if cfg.LogLevel != "error" {
			t.Errorf("expected flag log level, got %q", cfg.LogLevel)
		}
	})

	t.Run("nil file is ignored", func(t *testing.T) {
		t.Parallel()

		cfg := NewConfig()
		cfg.Apply(nil, nil)
		if cfg.OutputFile != DefaultOutputFile {
			t.Errorf("expected default output, got %q", cfg.OutputFile)
		}
	})
}

// TestFindConfigFile tests explicit-path lookup.
func TestFindConfigFile(t *testing.T) {
	t.Parallel()

	t.Run("explicit existing path is returned", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "custom.yaml")
		if err := os.WriteFile(path, []byte("{}"), 0600); err != nil {
			t.Fatal(err)
		}
		if got := FindConfigFile(path); got != path {
			t.Errorf("expected %q, got %q", path, got)
		}
	})

	t.Run("explicit missing path returns empty string", func(t *testing.T) {
		t.Parallel()

		if got := FindConfigFile(filepath.Join(t.TempDir(), "nope.yaml")); got != "" {
			t.Errorf("expected empty string, got %q", got)
		}
	})
}
