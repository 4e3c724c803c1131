package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"ecosort/internal/events"
	"ecosort/internal/logger"
)

// Message represents outbound alert.
type Message struct {
	Text  string       `json:"text"`
	Event events.Event `json:"event"`
}

// Webhook posts storage failures to a URL. A Webhook with an empty URL
// drops everything.
type Webhook struct {
	URL    string
	Client *http.Client
	log    *logger.Logger
}

func NewWebhook(url string, log *logger.Logger) *Webhook {
	return &Webhook{
		URL:    url,
		Client: &http.Client{Timeout: 10 * time.Second},
		log:    logger.OrNop(log).With("component", "notify"),
	}
}

func (w *Webhook) Send(ctx context.Context, msg Message) error {
	if w.URL == "" {
		return nil
	}
	buf, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.URL, bytes.NewReader(buf))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := w.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook status %d", resp.StatusCode)
	}
	return nil
}

// Run forwards storage failures from ch until ctx is done or ch closes.
func (w *Webhook) Run(ctx context.Context, ch <-chan events.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			if ev.Kind != events.KindStorageFailed {
				continue
			}
			msg := Message{Text: fmt.Sprintf("ecosort: failed to record classification %s: %s", ev.ID, ev.Error), Event: ev}
			if err := w.Send(ctx, msg); err != nil {
				w.log.Warn("alert webhook failed", "error", err)
			}
		}
	}
}
