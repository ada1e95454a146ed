package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/rikouu/serdo-v2-sub001/internal/domain"
)

const defaultBarkGroup = "serdo"

// Bark pushes to a Bark server with a GET request whose path embeds the
// device key.
type Bark struct {
	Client *http.Client
}

// Name implements Channel.
func (Bark) Name() string { return "bark" }

// Configured implements Channel.
func (Bark) Configured(cfg domain.NotificationSettings) bool {
	b := cfg.Bark
	return b.Enabled && strings.TrimSpace(b.Server) != "" && strings.TrimSpace(b.Key) != ""
}

// BarkURL renders the push URL for msg.
func BarkURL(cfg domain.BarkSettings, msg Message) string {
	group := strings.TrimSpace(cfg.Group)
	if group == "" {
		group = defaultBarkGroup
	}
	q := url.Values{"group": {group}}
	if s := strings.TrimSpace(cfg.Sound); s != "" {
		q.Set("sound", s)
	}
	return strings.TrimRight(strings.TrimSpace(cfg.Server), "/") + "/" +
		url.PathEscape(strings.TrimSpace(cfg.Key)) + "/" +
		url.PathEscape(msg.Title) + "/" +
		url.PathEscape(msg.Body) + "?" + q.Encode()
}

// Send implements Channel.
func (b Bark) Send(ctx context.Context, cfg domain.NotificationSettings, msg Message) error {
	client := b.Client
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, BarkURL(cfg.Bark, msg), nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		// The URL embeds the device key; keep it out of logs.
		var uerr *url.Error
		if errors.As(err, &uerr) {
			return fmt.Errorf("bark request: %w", uerr.Err)
		}
		return fmt.Errorf("bark request: %w", err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("bark returned http %d", resp.StatusCode)
	}
	var payload struct {
		Code    *int   `json:"code"`
		Message string `json:"message"`
	}
	if json.Unmarshal(raw, &payload) == nil && payload.Code != nil && *payload.Code != http.StatusOK {
		return fmt.Errorf("bark returned code %d: %s", *payload.Code, payload.Message)
	}
	return nil
}
