// Package notify delivers alerts over the tenant's configured channels.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/rikouu/serdo-v2-sub001/internal/domain"
	"github.com/rikouu/serdo-v2-sub001/pkg/metrics"
)

// DefaultTimeout bounds one dispatch across all channels.
const DefaultTimeout = 15 * time.Second

var (
	// ErrNotConfigured indicates no channel is enabled and complete.
	ErrNotConfigured = errors.New("no notification channel configured")
	// ErrAllFailed indicates every enabled channel failed.
	ErrAllFailed = errors.New("all notification channels failed")
)

// Message is a rendered alert.
type Message struct {
	Title string
	Body  string
}

// Channel is one delivery mechanism.
type Channel interface {
	Name() string
	// Configured reports whether the channel is enabled and has enough
	// settings to attempt a send.
	Configured(cfg domain.NotificationSettings) bool
	Send(ctx context.Context, cfg domain.NotificationSettings, msg Message) error
}

// ChannelResult is the outcome of one channel.
type ChannelResult struct {
	Channel string `json:"channel"`
	Sent    bool   `json:"sent"`
	Error   string `json:"error,omitempty"`
}

// Dispatcher fans a message out to every configured channel independently.
type Dispatcher struct {
	channels []Channel
	timeout  time.Duration
	logger   *slog.Logger
	sent     *prometheus.CounterVec
}

// New constructs a Dispatcher over channels.
func New(timeout time.Duration, logger *slog.Logger, channels ...Channel) *Dispatcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Dispatcher{
		channels: channels,
		timeout:  timeout,
		logger:   logger,
		sent: metrics.CounterVec(prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metrics.Namespace,
			Subsystem: "notify",
			Name:      "deliveries_total",
			Help:      "Notification attempts by channel and outcome",
		}, []string{"channel", "outcome"})),
	}
}

// Send delivers msg and reports whether at least one channel confirmed.
// Failures are logged and never returned.
func (d *Dispatcher) Send(ctx context.Context, cfg domain.NotificationSettings, title, body string) bool {
	results := d.Deliver(ctx, cfg, Message{Title: title, Body: body})
	for _, r := range results {
		if r.Sent {
			return true
		}
	}
	return false
}

// Test delivers a fixed message and returns per-channel results.
func (d *Dispatcher) Test(ctx context.Context, cfg domain.NotificationSettings) ([]ChannelResult, error) {
	results := d.Deliver(ctx, cfg, Message{
		Title: "Serdo test notification",
		Body:  "Notifications are configured correctly. " + time.Now().UTC().Format(time.RFC3339),
	})
	if len(results) == 0 {
		return nil, ErrNotConfigured
	}
	for _, r := range results {
		if r.Sent {
			return results, nil
		}
	}
	return results, ErrAllFailed
}

// Deliver runs every configured channel concurrently under one timeout.
func (d *Dispatcher) Deliver(ctx context.Context, cfg domain.NotificationSettings, msg Message) []ChannelResult {
	active := make([]Channel, 0, len(d.channels))
	for _, ch := range d.channels {
		if ch.Configured(cfg) {
			active = append(active, ch)
		}
	}
	if len(active) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	results := make([]ChannelResult, len(active))
	var eg errgroup.Group
	for i, ch := range active {
		eg.Go(func() error {
			err := d.sendOne(ctx, ch, cfg, msg)
			results[i] = ChannelResult{Channel: ch.Name(), Sent: err == nil}
			outcome := "sent"
			if err != nil {
				outcome = "failed"
				results[i].Error = err.Error()
				d.logger.Warn("notification failed", "channel", ch.Name(), "error", err)
			}
			d.sent.WithLabelValues(ch.Name(), outcome).Inc()
			return nil
		})
	}
	_ = eg.Wait()
	return results
}

func (d *Dispatcher) sendOne(ctx context.Context, ch Channel, cfg domain.NotificationSettings, msg Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("channel panicked: %v", r)
		}
	}()
	return ch.Send(ctx, cfg, msg)
}
