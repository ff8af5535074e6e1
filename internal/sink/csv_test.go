package sink

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"net/netip"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/discvscan/internal/model"
)

// failingWriter fails every write.
type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

// countingSink records appended rows and optionally fails.
type countingSink struct {
	rows   []model.MeasurementRow
	err    error
	closed int
}

func (c *countingSink) Append(_ context.Context, row model.MeasurementRow) error {
	if c.err != nil {
		return c.err
	}
	c.rows = append(c.rows, row)
	return nil
}

// cycleSink is a countingSink that also records cycle completions.
type cycleSink struct {
	countingSink
	cycles []int
}

func (c *cycleSink) CompleteCycle(_ context.Context, cycle, _ int, _ time.Time) error {
	if c.err != nil {
		return c.err
	}
	c.cycles = append(c.cycles, cycle)
	return nil
}

func (c *countingSink) Close() error {
	c.closed++
	return nil
}

func testRow() model.MeasurementRow {
	id, _ := model.ParseNodeID("a448f24c6d18e575453db13171562b71999873db5b286df957af199ec94617f7") //nolint:errcheck // constant
	node := model.Node{
		ID:   id,
		Addr: netip.MustParseAddrPort("192.0.2.7:9000"),
		Record: model.AttributeMap{
			model.KeyPublicKey: {0x02, 0xab},
			model.KeyEth2:      {0x6a, 0x95, 0xa1, 0xa9, 0xff},
			model.KeyAttnets:   {0xb0, 0x01},
			model.KeyClient:    []byte("lighthouse"),
		},
	}
	stats := model.NodeStats{
		RTTMin: 12345 * time.Microsecond,
		RTTAvg: 20 * time.Millisecond,
		BWMax:  250000,
		BWAvg:  125000,
	}
	return model.NewMeasurementRow(2, node, stats, 30*time.Millisecond, time.Unix(0, 0))
}

// TestCSV tests the CSV sink output format.
func TestCSV(t *testing.T) {
	t.Parallel()

	t.Run("writes header and formatted rows", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		s, err := NewCSV(&buf)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if err := s.Append(context.Background(), testRow()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		records, err := csv.NewReader(strings.NewReader(buf.String())).ReadAll()
		if err != nil {
			t.Fatalf("output is not valid CSV: %v", err)
		}
		if len(records) != 2 {
			t.Fatalf("expected 2 records, got %d", len(records))
		}
		if !reflect.DeepEqual(records[0], Header) {
			t.Errorf("unexpected header: %v", records[0])
		}

		want := []string{
			"2",
			"a448f24c6d18e575453db13171562b71999873db5b286df957af199ec94617f7",
			"192.0.2.7:9000",
			"12.345",
			"20.000",
			"2.000",
			"1.000",
			"02ab",
			"6a95a1a9",
			"b001",
			"4",
			"lighthouse",
		}
		if !reflect.DeepEqual(records[1], want) {
			t.Errorf("unexpected row:\n got %v\nwant %v", records[1], want)
		}
	})

	t.Run("rows are flushed immediately", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		s, err := NewCSV(&buf)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		before := buf.Len()
		if err := s.Append(context.Background(), testRow()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if buf.Len() == before {
			t.Error("expected row to be flushed without Close")
		}
	})

	t.Run("write failure wraps ErrPersistence", func(t *testing.T) {
		t.Parallel()

		_, err := NewCSV(failingWriter{})
		if !errors.Is(err, ErrPersistence) {
			t.Errorf("expected ErrPersistence, got %v", err)
		}
	})

	t.Run("append after close fails", func(t *testing.T) {
		t.Parallel()

		s, err := NewCSV(&bytes.Buffer{})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if err := s.Close(); err != nil {
			t.Fatalf("unexpected close error: %v", err)
		}
		if err := s.Close(); err != nil {
			t.Errorf("second close should be a no-op, got %v", err)
		}
		err = s.Append(context.Background(), testRow())
		if !errors.Is(err, ErrClosed) || !errors.Is(err, ErrPersistence) {
			t.Errorf("expected ErrClosed wrapped in ErrPersistence, got %v", err)
		}
	})
}

// TestCreateCSV tests file creation.
func TestCreateCSV(t *testing.T) {
	t.Parallel()

	t.Run("creates parent directories and truncates", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "out", "crawl.csv")
		if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte("stale data\n"), 0600); err != nil {
			t.Fatal(err)
		}

		s, err := CreateCSV(path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if err := s.Close(); err != nil {
			t.Fatalf("unexpected close error: %v", err)
		}

		data, err := os.ReadFile(path) //nolint:gosec // test file
		if err != nil {
			t.Fatal(err)
		}
		if strings.Contains(string(data), "stale") {
			t.Error("expected file to be truncated")
		}
		if !strings.HasPrefix(string(data), "cycle,node_id,ip:port,") {
			t.Errorf("unexpected content: %q", data)
		}
	})

	t.Run("unwritable path returns ErrPersistence", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		blocker := filepath.Join(dir, "file")
		if err := os.WriteFile(blocker, nil, 0600); err != nil {
			t.Fatal(err)
		}

		_, err := CreateCSV(filepath.Join(blocker, "crawl.csv"))
		if !errors.Is(err, ErrPersistence) {
			t.Errorf("expected ErrPersistence, got %v", err)
		}
	})
}

// TestMulti tests fan-out to several sinks.
func TestMulti(t *testing.T) {
	t.Parallel()

	t.Run("appends to every sink", func(t *testing.T) {
		t.Parallel()

		a, b := &countingSink{}, &countingSink{}
		m := Multi{a, b}
		if err := m.Append(context.Background(), testRow()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(a.rows) != 1 || len(b.rows) != 1 {
			t.Errorf("expected one row per sink, got %d and %d", len(a.rows), len(b.rows))
		}
		if err := m.Close(); err != nil {
			t.Fatalf("unexpected close error: %v", err)
		}
		if a.closed != 1 || b.closed != 1 {
			t.Error("expected every sink to be closed once")
		}
	})

	t.Run("stops at the first failure", func(t *testing.T) {
		t.Parallel()

		boom := errors.New("boom")
		a, b := &countingSink{err: boom}, &countingSink{}
		err := Multi{a, b}.Append(context.Background(), testRow())
		if !errors.Is(err, boom) {
			t.Errorf("expected boom, got %v", err)
		}
		if len(b.rows) != 0 {
			t.Error("second sink should not receive the row")
		}
	})

	t.Run("cycle completion reaches only cycle recorders", func(t *testing.T) {
		t.Parallel()

		plain, rec := &countingSink{}, &cycleSink{}
		if err := (Multi{plain, rec}).CompleteCycle(context.Background(), 4, 10, time.Unix(0, 0)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(rec.cycles) != 1 || rec.cycles[0] != 4 {
			t.Errorf("expected cycle 4 recorded, got %v", rec.cycles)
		}
	})

	t.Run("cycle completion failure is returned", func(t *testing.T) {
		t.Parallel()

		boom := errors.New("boom")
		rec := &cycleSink{countingSink: countingSink{err: boom}}
		if err := (Multi{rec}).CompleteCycle(context.Background(), 0, 1, time.Unix(0, 0)); !errors.Is(err, boom) {
			t.Errorf("expected boom, got %v", err)
		}
	})
}
