// Package recorder persists classification events and keeps the per-day
// rollup consistent with them.
package recorder

import (
	"context"
	"errors"
	"fmt"

	"ecosort/internal/store"
)

// EventStore is the persistence the recorder needs.
type EventStore interface {
	RecordEvent(ctx context.Context, e store.Event) (store.DailyAggregate, error)
}

var ErrInvalidEvent = errors.New("invalid classification event")

type Recorder struct {
	store EventStore
}

func New(s EventStore) *Recorder {
	return &Recorder{store: s}
}

// Store appends e and recounts its day. The returned aggregate reflects the
// event log after the write.
func (r *Recorder) Store(ctx context.Context, e store.Event) (store.DailyAggregate, error) {
	if err := validate(e); err != nil {
		return store.DailyAggregate{}, err
	}
	agg, err := r.store.RecordEvent(ctx, e)
	if err != nil {
		return store.DailyAggregate{}, fmt.Errorf("record event %s: %w", e.ID, err)
	}
	return agg, nil
}

func validate(e store.Event) error {
	switch {
	case e.ID == "":
		return fmt.Errorf("%w: missing id", ErrInvalidEvent)
	case e.Timestamp.IsZero():
		return fmt.Errorf("%w: missing timestamp", ErrInvalidEvent)
	case !e.Category.Valid():
		return fmt.Errorf("%w: category %q", ErrInvalidEvent, e.Category)
	case e.Confidence < 0 || e.Confidence > 1:
		return fmt.Errorf("%w: confidence %v", ErrInvalidEvent, e.Confidence)
	}
	return nil
}
