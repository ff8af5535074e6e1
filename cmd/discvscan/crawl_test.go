package main

import (
	"context"
	"encoding/csv"
	"errors"
	"io"
	"log/slog"
	"net/netip"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/sha3"

	"github.com/nao1215/discvscan/internal/config"
	"github.com/nao1215/discvscan/internal/crawler"
	"github.com/nao1215/discvscan/internal/database"
	"github.com/nao1215/discvscan/internal/model"
	"github.com/nao1215/discvscan/internal/sink"
)

func testNodeID(name string) model.NodeID {
	var id model.NodeID
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(name))
	copy(id[:], h.Sum(nil))
	return id
}

func testNode(name string, port uint16) model.Node {
	return model.Node{
		ID:     testNodeID(name),
		Addr:   netip.AddrPortFrom(netip.MustParseAddr("192.0.2.1"), port),
		Record: model.AttributeMap{model.KeyClient: []byte("teku")},
	}
}

// ringClient answers every query with the next node of a fixed ring.
// It cancels the crawl once stopAfter queries have been answered.
type ringClient struct {
	nodes     []model.Node
	stopAfter int
	cancel    context.CancelFunc

	mu    sync.Mutex
	calls int
}

func (r *ringClient) Self() model.NodeID { return testNodeID("local") }

func (r *ringClient) FindNode(_ context.Context, target model.Node, _ []uint) ([]model.Node, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.calls++
	if r.calls == r.stopAfter {
		r.cancel()
	}
	for i, n := range r.nodes {
		if n.ID == target.ID {
			return []model.Node{r.nodes[(i+1)%len(r.nodes)]}, nil
		}
	}
	return nil, errors.New("unknown node")
}

func (r *ringClient) Stats(model.NodeID) model.NodeStats {
	return model.NodeStats{RTTMin: time.Millisecond, RTTAvg: time.Millisecond, BWMax: 1e6, BWAvg: 1e6}
}

func (r *ringClient) RandomNodes(int) []model.Node { return r.nodes[:1] }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testCrawlConfig(t *testing.T) *config.Config {
	t.Helper()

	dir := t.TempDir()
	cfg := config.NewConfig()
	cfg.Bootnodes = []string{"enr:-unused"}
	cfg.OutputFile = filepath.Join(dir, "out", "crawl.csv")
	cfg.DBDir = filepath.Join(dir, "db")
	cfg.DispatchInterval = time.Millisecond
	cfg.RetryInterval = 5 * time.Millisecond
	return cfg
}

// TestNewCrawlCmd tests the crawl command flags.
func TestNewCrawlCmd(t *testing.T) {
	t.Parallel()

	cmd := NewCrawlCmd()

	tests := []struct {
		name      string
		shorthand string
		defValue  string
	}{
		{name: "bootnode", shorthand: "b", defValue: "[]"},
		{name: "listen", shorthand: "l", defValue: config.DefaultListenAddress},
		{name: "nodekey", shorthand: "k", defValue: ""},
		{name: "output", shorthand: "o", defValue: config.DefaultOutputFile},
		{name: "config", shorthand: "c", defValue: ""},
		{name: "max-pending", defValue: "64"},
		{name: "dispatch-interval", defValue: "100ms"},
		{name: "no-db", defValue: "false"},
	}

	for _, tt := range tests {
		t.Run("has "+tt.name+" flag", func(t *testing.T) {
			t.Parallel()

			flag := cmd.Flags().Lookup(tt.name)
			if flag == nil {
				t.Fatalf("expected %s flag", tt.name)
			}
			if flag.Shorthand != tt.shorthand {
				t.Errorf("expected shorthand %q, got %q", tt.shorthand, flag.Shorthand)
			}
			if flag.DefValue != tt.defValue {
				t.Errorf("expected default %q, got %q", tt.defValue, flag.DefValue)
			}
		})
	}
}

// TestBuildConfig tests merging of flags and the configuration file.
func TestBuildConfig(t *testing.T) {
	t.Parallel()

	t.Run("flags populate the config", func(t *testing.T) {
		t.Parallel()

		cmd := NewCrawlCmd()
		missing := filepath.Join(t.TempDir(), "none")
		for name, value := range map[string]string{
			"bootnode":    "enr:-a",
			"max-pending": "0",
			"no-db":       "true",
			"db-dir":      missing,
		} {
			if err := cmd.Flags().Set(name, value); err != nil {
				t.Fatal(err)
			}
		}

		cfg, err := buildConfig(cmd)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(cfg.Bootnodes) != 1 || cfg.Bootnodes[0] != "enr:-a" {
			t.Errorf("unexpected bootnodes %v", cfg.Bootnodes)
		}
		if cfg.MaxPending != 0 {
			t.Errorf("expected max pending 0, got %d", cfg.MaxPending)
		}
		if cfg.SaveToDB {
			t.Error("expected --no-db to disable the database")
		}
	})

	t.Run("explicit flags override the config file", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "crawl.yaml")
		content := "bootnodes:\n  - enr:-file\noutput: file.csv\ncrawl:\n  maxPending: 8\n  seedCount: 2\n"
		if err := os.WriteFile(path, []byte(content), 0600); err != nil {
			t.Fatal(err)
		}

		cmd := NewCrawlCmd()
		for name, value := range map[string]string{
			"config":     path,
			"output":     "flag.csv",
			"seed-count": "5",
		} {
			if err := cmd.Flags().Set(name, value); err != nil {
				t.Fatal(err)
			}
		}

		cfg, err := buildConfig(cmd)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(cfg.Bootnodes) != 1 || cfg.Bootnodes[0] != "enr:-file" {
			t.Errorf("expected bootnodes from file, got %v", cfg.Bootnodes)
		}
		if cfg.OutputFile != "flag.csv" {
			t.Errorf("expected output from flag, got %q", cfg.OutputFile)
		}
		if cfg.MaxPending != 8 {
			t.Errorf("expected max pending from file, got %d", cfg.MaxPending)
		}
		if cfg.SeedCount != 5 {
			t.Errorf("expected seed count from flag, got %d", cfg.SeedCount)
		}
	})

	t.Run("log level comes from the file unless the flag is set", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "crawl.yaml")
		if err := os.WriteFile(path, []byte("bootnodes:\n  - enr:-file\nlog-level: warn\n"), 0600); err != nil {
			t.Fatal(err)
		}

		crawlCmd := func(t *testing.T) (*cobra.Command, *cobra.Command) {
			t.Helper()
			root := NewRootCmd()
			cmd, _, err := root.Find([]string{"crawl"})
			if err != nil {
				t.Fatal(err)
			}
			if err := cmd.Flags().Set("config", path); err != nil {
				t.Fatal(err)
			}
			return root, cmd
		}

		_, cmd := crawlCmd(t)
		cfg, err := buildConfig(cmd)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.LogLevel != "warn" {
			t.Errorf("expected log level from file, got %q", cfg.LogLevel)
		}

		root, cmd := crawlCmd(t)
		if err := root.PersistentFlags().Set("log-level", "error"); err != nil {
			t.Fatal(err)
		}
		cfg, err = buildConfig(cmd)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.LogLevel != "error" {
			t.Errorf("expected log level from flag, got %q", cfg.LogLevel)
		}
	})

	t.Run("missing explicit config file is an error", func(t *testing.T) {
		t.Parallel()

		cmd := NewCrawlCmd()
		if err := cmd.Flags().Set("config", filepath.Join(t.TempDir(), "nope.yaml")); err != nil {
			t.Fatal(err)
		}
		if _, err := buildConfig(cmd); !errors.Is(err, config.ErrConfigNotFound) {
			t.Errorf("expected ErrConfigNotFound, got %v", err)
		}
	})
}

// TestRunCrawl tests the wiring of sinks, client and scheduler.
func TestRunCrawl(t *testing.T) {
	t.Parallel()

	t.Run("unwritable output aborts before the listener starts", func(t *testing.T) {
		t.Parallel()

		cfg := testCrawlConfig(t)
		blocker := filepath.Join(t.TempDir(), "file")
		if err := os.WriteFile(blocker, nil, 0600); err != nil {
			t.Fatal(err)
		}
		cfg.OutputFile = filepath.Join(blocker, "crawl.csv")

		started := false
		factory := func(context.Context, *config.Config, *slog.Logger) (crawler.Client, func() error, error) {
			started = true
			return nil, nil, errors.New("must not be called")
		}

		err := runCrawl(t.Context(), cfg, discardLogger(), factory)
		if !errors.Is(err, sink.ErrPersistence) {
			t.Errorf("expected ErrPersistence, got %v", err)
		}
		if started {
			t.Error("listener should not start when the output cannot be opened")
		}
	})

	t.Run("listener start failure is returned", func(t *testing.T) {
		t.Parallel()

		cfg := testCrawlConfig(t)
		startErr := errors.New("bind failed")
		factory := func(context.Context, *config.Config, *slog.Logger) (crawler.Client, func() error, error) {
			return nil, nil, startErr
		}

		if err := runCrawl(t.Context(), cfg, discardLogger(), factory); !errors.Is(err, startErr) {
			t.Errorf("expected start error, got %v", err)
		}
	})

	t.Run("measurements reach the CSV file and the database", func(t *testing.T) {
		t.Parallel()

		cfg := testCrawlConfig(t)
		ctx, cancel := context.WithCancel(t.Context())
		defer cancel()

		client := &ringClient{
			nodes:     []model.Node{testNode("a", 9000), testNode("b", 9001), testNode("c", 9002)},
			stopAfter: 4,
			cancel:    cancel,
		}
		stopped := false
		factory := func(context.Context, *config.Config, *slog.Logger) (crawler.Client, func() error, error) {
			return client, func() error { stopped = true; return nil }, nil
		}

		if err := runCrawl(ctx, cfg, discardLogger(), factory); err != nil {
			t.Fatalf("expected clean shutdown, got %v", err)
		}
		if !stopped {
			t.Error("expected listener to be stopped")
		}

		f, err := os.Open(cfg.OutputFile)
		if err != nil {
			t.Fatal(err)
		}
		defer f.Close()

		records, err := csv.NewReader(f).ReadAll()
		if err != nil {
			t.Fatalf("invalid CSV: %v", err)
		}
		if len(records) < 4 {
			t.Fatalf("expected header and at least 3 rows, got %d records", len(records))
		}
		if records[0][0] != sink.Header[0] {
			t.Errorf("expected header first, got %v", records[0])
		}
		seen := make(map[string]bool)
		for _, rec := range records[1:4] {
			if rec[0] != "0" {
				t.Errorf("expected first cycle rows, got cycle %s", rec[0])
			}
			seen[rec[1]] = true
		}
		if len(seen) != 3 {
			t.Errorf("expected three distinct nodes in cycle 0, got %v", seen)
		}

		db, err := database.Open(cfg.DBDir, database.ReadOnlyOptions())
		if err != nil {
			t.Fatal(err)
		}
		defer db.Close()

		sessions, err := db.ListSessions(t.Context())
		if err != nil {
			t.Fatal(err)
		}
		if len(sessions) != 1 {
			t.Fatalf("expected one session, got %d", len(sessions))
		}
		if sessions[0].Measurements != len(records)-1 {
			t.Errorf("database has %d measurements, CSV has %d rows", sessions[0].Measurements, len(records)-1)
		}
		if sessions[0].LocalNode != testNodeID("local").String() {
			t.Errorf("unexpected local node %s", sessions[0].LocalNode)
		}

		summary, err := db.Summary(t.Context(), sessions[0].ID)
		if err != nil {
			t.Fatal(err)
		}
		if len(summary.Cycles) < 2 {
			t.Fatalf("expected the crawl to reach a second cycle, got %+v", summary.Cycles)
		}
		if !summary.Cycles[0].Complete {
			t.Error("expected cycle 0 to be recorded as complete")
		}
		if last := summary.Cycles[len(summary.Cycles)-1]; last.Complete {
			t.Errorf("expected stopped cycle %d to be incomplete", last.Cycle)
		}
	})
}
