package sink

import (
	"context"
	"errors"
	"time"

	"github.com/nao1215/discvscan/internal/model"
)

// Sink is an append-only destination for measurement rows.
type Sink interface {
	// Append stores one row. A non-nil error is fatal.
	Append(ctx context.Context, row model.MeasurementRow) error

	// Close releases the underlying resource. It is safe to call more than once.
	Close() error
}

// CycleRecorder is implemented by sinks that record when a crawl cycle
// finished. A cycle without a completion record was interrupted.
type CycleRecorder interface {
	// CompleteCycle records that cycle finished with measured nodes at at.
	// A non-nil error is fatal.
	CompleteCycle(ctx context.Context, cycle, measured int, at time.Time) error
}

// Multi writes every row to all sinks in order.
// Append stops at the first failing sink.
type Multi []Sink

// Append implements Sink.
func (m Multi) Append(ctx context.Context, row model.MeasurementRow) error {
	for _, s := range m {
		if err := s.Append(ctx, row); err != nil {
			return err
		}
	}
	return nil
}

// CompleteCycle forwards the completion to every sink that implements
// CycleRecorder, stopping at the first failure.
func (m Multi) CompleteCycle(ctx context.Context, cycle, measured int, at time.Time) error {
	for _, s := range m {
		rec, ok := s.(CycleRecorder)
		if !ok {
			continue
		}
		if err := rec.CompleteCycle(ctx, cycle, measured, at); err != nil {
			return err
		}
	}
	return nil
}

// Close closes every sink and joins their errors.
func (m Multi) Close() error {
	var errs []error
	for _, s := range m {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
