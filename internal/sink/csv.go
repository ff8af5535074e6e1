package sink

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/nao1215/discvscan/internal/model"
)

// Header is the fixed column order of the CSV output.
var Header = []string{
	"cycle",
	"node_id",
	"ip:port",
	"rttMin",
	"rttAvg",
	"bwMaxMbps",
	"bwAvgMbps",
	"pubkey",
	"forkDigest",
	"attnets",
	"attnets_number",
	"client",
}

// CSV writes measurement rows to a CSV stream.
// Every row is flushed as soon as it is written. The first write error is
// kept and returned by every later call.
type CSV struct {
	mu     sync.Mutex
	w      *csv.Writer
	closer io.Closer
	err    error
	closed bool
}

// CreateCSV creates (or truncates) the file at path, creating parent
// directories as needed, and writes the header row.
func CreateCSV(path string) (*CSV, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("%w: failed to create output directory: %v", ErrPersistence, err)
		}
	}

	f, err := os.Create(path) //nolint:gosec // User-provided output path is intentional
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open output file: %v", ErrPersistence, err)
	}

	s, err := NewCSV(f)
	if err != nil {
		_ = f.Close() //nolint:errcheck // already failing
		return nil, err
	}
	return s, nil
}

// NewCSV wraps w and writes the header row. If w is an io.Closer, Close
// closes it.
func NewCSV(w io.Writer) (*CSV, error) {
	s := &CSV{w: csv.NewWriter(w)}
	if c, ok := w.(io.Closer); ok {
		s.closer = c
	}

	if err := s.write(Header); err != nil {
		return nil, err
	}
	return s, nil
}

// Append implements Sink.
func (s *CSV) Append(_ context.Context, row model.MeasurementRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("%w: %w", ErrPersistence, ErrClosed)
	}
	if s.err != nil {
		return s.err
	}
	return s.write(Record(row))
}

// write must be called with mu held, or before s is shared.
func (s *CSV) write(record []string) error {
	if err := s.w.Write(record); err != nil {
		s.err = fmt.Errorf("%w: failed to write row: %v", ErrPersistence, err)
		return s.err
	}
	s.w.Flush()
	if err := s.w.Error(); err != nil {
		s.err = fmt.Errorf("%w: failed to flush row: %v", ErrPersistence, err)
		return s.err
	}
	return nil
}

// Close flushes pending output and closes the underlying file once.
func (s *CSV) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	s.w.Flush()
	err := s.w.Error()
	if s.closer != nil {
		if cerr := s.closer.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	if err != nil {
		return fmt.Errorf("%w: failed to close output: %v", ErrPersistence, err)
	}
	return nil
}

// Record formats a row in Header order.
func Record(row model.MeasurementRow) []string {
	return []string{
		strconv.Itoa(row.Cycle),
		row.NodeID.String(),
		row.Endpoint,
		strconv.FormatFloat(row.RTTMinMillis(), 'f', 3, 64),
		strconv.FormatFloat(row.RTTAvgMillis(), 'f', 3, 64),
		strconv.FormatFloat(row.Stats.BWMaxMbps(), 'f', 3, 64),
		strconv.FormatFloat(row.Stats.BWAvgMbps(), 'f', 3, 64),
		row.PublicKeyHex(),
		row.ForkDigestHex(),
		row.AttnetsHex(),
		strconv.Itoa(row.Attributes.AttnetsCount),
		row.Attributes.Client,
	}
}
