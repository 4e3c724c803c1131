package metrics

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"ecosort/internal/events"
)

func TestObserveCounts(t *testing.T) {
	c := New()
	c.Observe(events.Event{Kind: events.KindClassified, Category: "recyclable", Method: "model", InputKind: "text"})
	c.Observe(events.Event{Kind: events.KindClassified, Category: "recyclable", Method: "heuristic", InputKind: "image"})
	c.Observe(events.Event{Kind: events.KindDegraded, Method: "model"})
	c.Observe(events.Event{Kind: events.KindStorageFailed})
	c.IncJobFailed()

	snap := c.Snapshot()
	assert.EqualValues(t, 2, snap["classifications"])
	assert.EqualValues(t, 2, snap["category_recyclable"])
	assert.EqualValues(t, 1, snap["method_heuristic"])
	assert.EqualValues(t, 1, snap["degraded_model"])
	assert.EqualValues(t, 1, snap["storage_failures"])
	assert.EqualValues(t, 1, snap["jobs_failed"])
	assert.Contains(t, c.Labels(), "input_image")
}

func TestRunStopsWhenBusCloses(t *testing.T) {
	bus := events.NewBus()
	c := New()
	ch := bus.Subscribe()
	bus.Publish(events.Event{Kind: events.KindReconciled})
	bus.Close()

	c.Run(context.Background(), ch)
	assert.EqualValues(t, 1, c.Snapshot()["reconciles"])
}
