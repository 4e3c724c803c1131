package metrics

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"

	"ecosort/internal/events"
)

// Collector counts pipeline events. The zero value is not usable; call New.
type Collector struct {
	classified    atomic.Int64
	degraded      atomic.Int64
	storageFailed atomic.Int64
	keywordsAdded atomic.Int64
	reconciles    atomic.Int64
	jobsSucceeded atomic.Int64
	jobsFailed    atomic.Int64

	mu      sync.Mutex
	byLabel map[string]int64
}

func New() *Collector {
	return &Collector{byLabel: map[string]int64{}}
}

func (c *Collector) IncJobSucceeded() { c.jobsSucceeded.Add(1) }
func (c *Collector) IncJobFailed()    { c.jobsFailed.Add(1) }

// Observe folds one bus event into the counters.
func (c *Collector) Observe(ev events.Event) {
	switch ev.Kind {
	case events.KindClassified:
		c.classified.Add(1)
		c.incLabel("category_" + ev.Category)
		c.incLabel("method_" + ev.Method)
		c.incLabel("input_" + ev.InputKind)
	case events.KindDegraded:
		c.degraded.Add(1)
		c.incLabel("degraded_" + ev.Method)
	case events.KindStorageFailed:
		c.storageFailed.Add(1)
	case events.KindKeywordsAdded:
		c.keywordsAdded.Add(1)
	case events.KindReconciled:
		c.reconciles.Add(1)
	}
}

func (c *Collector) incLabel(label string) {
	c.mu.Lock()
	c.byLabel[label]++
	c.mu.Unlock()
}

// Run observes events from ch until ctx is done or ch is closed.
func (c *Collector) Run(ctx context.Context, ch <-chan events.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			c.Observe(ev)
		}
	}
}

func (c *Collector) Snapshot() map[string]int64 {
	out := map[string]int64{
		"classifications":  c.classified.Load(),
		"degraded":         c.degraded.Load(),
		"storage_failures": c.storageFailed.Load(),
		"keyword_updates":  c.keywordsAdded.Load(),
		"reconciles":       c.reconciles.Load(),
		"jobs_succeeded":   c.jobsSucceeded.Load(),
		"jobs_failed":      c.jobsFailed.Load(),
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, v := range c.byLabel {
		out[k] = v
	}
	return out
}

// Labels returns the dynamic counter names in sorted order.
func (c *Collector) Labels() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.byLabel))
	for k := range c.byLabel {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
