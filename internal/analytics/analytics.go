// Package analytics answers date-range questions over recorded
// classifications and keeps the daily rollups reconciled with the event log.
package analytics

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ecosort/internal/logger"
	"ecosort/internal/store"
	"ecosort/internal/waste"
)

// ErrInvalidRange is returned for malformed dates, end before start, or a
// range longer than MaxRangeDays.
var ErrInvalidRange = errors.New("invalid date range")

const MaxRangeDays = 3660

// Source is the read side of the store plus the per-day recompute.
type Source interface {
	DailyAggregates(ctx context.Context, start, end string) ([]store.DailyAggregate, error)
	CategoryCounts(ctx context.Context, f store.EventFilter) (map[waste.Category]int, error)
	EventDates(ctx context.Context) ([]string, error)
	RecomputeDay(ctx context.Context, date string) (store.DailyAggregate, error)
}

type DateRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

type Report struct {
	DailyStatistics      []store.DailyAggregate `json:"daily_statistics"`
	CategoryDistribution map[waste.Category]int `json:"category_distribution"`
	TotalClassifications int                    `json:"total_classifications"`
	DateRange            DateRange              `json:"date_range"`
}

type Reporter struct {
	src Source
	loc *time.Location
	log *logger.Logger
}

func New(src Source, loc *time.Location, log *logger.Logger) *Reporter {
	if loc == nil {
		loc = time.UTC
	}
	return &Reporter{src: src, loc: loc, log: logger.OrNop(log).With("component", "analytics")}
}

// ParseRange validates two YYYY-MM-DD dates.
func (r *Reporter) ParseRange(start, end string) (time.Time, time.Time, error) {
	from, err := time.ParseInLocation(store.DateLayout, start, r.loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: start %q", ErrInvalidRange, start)
	}
	to, err := time.ParseInLocation(store.DateLayout, end, r.loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: end %q", ErrInvalidRange, end)
	}
	if to.Before(from) {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: %s is before %s", ErrInvalidRange, end, start)
	}
	if from.AddDate(0, 0, MaxRangeDays).Before(to) {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: longer than %d days", ErrInvalidRange, MaxRangeDays)
	}
	return from, to, nil
}

// Query reports on every day from start to end inclusive. Days without a
// stored rollup appear with zero counts. The distribution only lists
// categories that occurred.
func (r *Reporter) Query(ctx context.Context, start, end string) (Report, error) {
	from, to, err := r.ParseRange(start, end)
	if err != nil {
		return Report{}, err
	}

	first, last := from.Format(store.DateLayout), to.Format(store.DateLayout)
	stored, err := r.src.DailyAggregates(ctx, first, last)
	if err != nil {
		return Report{}, fmt.Errorf("daily aggregates: %w", err)
	}
	byDate := make(map[string]store.DailyAggregate, len(stored))
	for _, a := range stored {
		byDate[a.Date] = a
	}
	var daily []store.DailyAggregate
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		key := d.Format(store.DateLayout)
		if a, ok := byDate[key]; ok {
			daily = append(daily, a)
		} else {
			daily = append(daily, store.DailyAggregate{Date: key})
		}
	}

	dist, err := r.src.CategoryCounts(ctx, store.EventFilter{FromDate: first, ToDate: last})
	if err != nil {
		return Report{}, fmt.Errorf("category distribution: %w", err)
	}
	total := 0
	for _, n := range dist {
		total += n
	}

	return Report{
		DailyStatistics:      daily,
		CategoryDistribution: dist,
		TotalClassifications: total,
		DateRange:            DateRange{Start: start, End: end},
	}, nil
}

type ReconcileResult struct {
	Days   int `json:"days"`
	Events int `json:"events"`
}

// Reconcile recomputes the rollup of every day that has events.
func (r *Reporter) Reconcile(ctx context.Context) (ReconcileResult, error) {
	dates, err := r.src.EventDates(ctx)
	if err != nil {
		return ReconcileResult{}, fmt.Errorf("list event dates: %w", err)
	}
	var res ReconcileResult
	for _, d := range dates {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		agg, err := r.src.RecomputeDay(ctx, d)
		if err != nil {
			return res, fmt.Errorf("recompute %s: %w", d, err)
		}
		res.Days++
		res.Events += agg.Total
	}
	r.log.Info("aggregates reconciled", "days", res.Days, "events", res.Events)
	return res, nil
}
