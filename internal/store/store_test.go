package store

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ecosort/internal/waste"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "ecosort.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func event(id string, ts time.Time, c waste.Category) Event {
	return Event{
		ID:                  id,
		Timestamp:           ts,
		InputKind:           waste.InputText,
		Input:               "item " + id,
		Category:            c,
		Confidence:          0.9,
		SustainabilityScore: 6.3,
		Tips:                []string{"tip"},
	}
}

func TestRecordEventAggregatesAcrossDates(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	cats := waste.Categories()

	const n, days = 30, 4
	for i := 0; i < n; i++ {
		ts := base.AddDate(0, 0, i%days).Add(time.Duration(i) * time.Minute)
		_, err := s.RecordEvent(ctx, event(fmt.Sprintf("e%02d", i), ts, cats[i%len(cats)]))
		require.NoError(t, err)
	}

	aggs, err := s.DailyAggregates(ctx, "2024-03-01", "2024-03-31")
	require.NoError(t, err)
	require.Len(t, aggs, days)

	sum := 0
	for _, a := range aggs {
		assert.Equal(t, a.Biodegradable+a.Recyclable+a.Hazardous, a.Total, a.Date)
		count, err := s.CountEvents(ctx, EventFilter{Date: a.Date})
		require.NoError(t, err)
		assert.Equal(t, count, a.Total, a.Date)
		sum += a.Total
	}
	assert.Equal(t, n, sum)
}

func TestRecordEventRejectsDuplicateID(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()
	ts := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	_, err := s.RecordEvent(ctx, event("dup", ts, waste.Hazardous))
	require.NoError(t, err)
	_, err = s.RecordEvent(ctx, event("dup", ts, waste.Hazardous))
	require.Error(t, err)

	aggs, err := s.DailyAggregates(ctx, "2024-03-01", "2024-03-01")
	require.NoError(t, err)
	require.Len(t, aggs, 1)
	assert.Equal(t, 1, aggs[0].Total)
}

func TestConcurrentRecordsConverge(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()
	ts := time.Date(2024, 5, 5, 12, 0, 0, 0, time.UTC)

	const writers, perWriter = 8, 10
	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				c := waste.Categories()[(w+i)%3]
				_, err := s.RecordEvent(ctx, event(fmt.Sprintf("w%d-%d", w, i), ts.Add(time.Duration(i)*time.Second), c))
				assert.NoError(t, err)
			}
		}(w)
	}
	wg.Wait()

	aggs, err := s.DailyAggregates(ctx, "2024-05-05", "2024-05-05")
	require.NoError(t, err)
	require.Len(t, aggs, 1)
	assert.Equal(t, writers*perWriter, aggs[0].Total)
	assert.Equal(t, aggs[0].Total, aggs[0].Biodegradable+aggs[0].Recyclable+aggs[0].Hazardous)
}

func TestCategoryCountsWithinRange(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()
	day := time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)

	for i, c := range []waste.Category{waste.Recyclable, waste.Recyclable, waste.Hazardous} {
		_, err := s.RecordEvent(ctx, event(fmt.Sprint(i), day.Add(time.Duration(i+1)*time.Hour), c))
		require.NoError(t, err)
	}
	_, err := s.RecordEvent(ctx, event("late", day.AddDate(0, 0, 1), waste.Biodegradable))
	require.NoError(t, err)

	counts, err := s.CategoryCounts(ctx, EventFilter{From: day, To: day.Add(24*time.Hour - time.Second)})
	require.NoError(t, err)
	assert.Equal(t, map[waste.Category]int{waste.Recyclable: 2, waste.Hazardous: 1}, counts)

	byDate, err := s.CategoryCounts(ctx, EventFilter{FromDate: "2024-06-11", ToDate: "2024-06-11"})
	require.NoError(t, err)
	assert.Equal(t, map[waste.Category]int{waste.Biodegradable: 1}, byDate)

	n, err := s.CountEvents(ctx, EventFilter{Category: waste.Recyclable})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	dates, err := s.EventDates(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-06-10", "2024-06-11"}, dates)
}

func TestListEventsRoundTrip(t *testing.T) {
	loc := time.FixedZone("test", 2*60*60)
	s, err := Open(filepath.Join(t.TempDir(), "ecosort.db"), WithLocation(loc))
	require.NoError(t, err)
	defer s.Close()
	ctx := context.Background()

	ts := time.Date(2024, 1, 2, 23, 30, 0, 0, loc)
	want := event("a", ts, waste.Biodegradable)
	_, err = s.RecordEvent(ctx, want)
	require.NoError(t, err)

	got, err := s.ListEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, want.Timestamp.Equal(got[0].Timestamp))
	assert.Equal(t, want.Tips, got[0].Tips)
	assert.Equal(t, "2024-01-02", got[0].Date())
	assert.NoError(t, s.Health(ctx))
}

func TestListEventsCorruptTips(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()
	_, err := s.RecordEvent(ctx, event("bad", time.Date(2024, 3, 3, 9, 0, 0, 0, time.UTC), waste.Hazardous))
	require.NoError(t, err)

	_, err = s.db.ExecContext(ctx, `UPDATE classifications SET disposal_tips = ? WHERE id = ?`, "{broken", "bad")
	require.NoError(t, err)

	_, err = s.ListEvents(ctx, 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "event bad tips")
}

func TestRecomputeDayRepairsAggregate(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()
	ts := time.Date(2024, 2, 2, 8, 0, 0, 0, time.UTC)
	_, err := s.RecordEvent(ctx, event("x", ts, waste.Recyclable))
	require.NoError(t, err)

	_, err = s.db.Exec(`UPDATE daily_aggregates SET total = 99`)
	require.NoError(t, err)

	agg, err := s.RecomputeDay(ctx, "2024-02-02")
	require.NoError(t, err)
	assert.Equal(t, DailyAggregate{Date: "2024-02-02", Recyclable: 1, Total: 1}, agg)

	empty, err := s.RecomputeDay(ctx, "2030-01-01")
	require.NoError(t, err)
	assert.Zero(t, empty.Total)
}
