package notifications

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"beatshop/internal/config"
)

const userAgent = "Beatshop-Go/0.1.0"

// Event identifies a notification type.
type Event string

const (
	// EventBeatUploaded fires after a beat has been stored.
	EventBeatUploaded Event = "beat_uploaded"
	// EventError reports a server-side failure worth an operator's attention.
	EventError Event = "error"
	// EventTest is sent by `beatshop test-notify`.
	EventTest Event = "test"
)

// Payload carries event-specific values.
type Payload map[string]any

// Service publishes events to the configured transports.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds a notification service from config. When no transport is
// configured a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	n := cfg.Notifications
	timeout := time.Duration(n.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	var senders []sender
	if topic := strings.TrimSpace(n.NtfyTopic); topic != "" {
		senders = append(senders, &ntfySender{
			endpoint: topic,
			client:   &http.Client{Timeout: timeout},
		})
	}
	if n.Email.Enabled {
		senders = append(senders, newEmailSender(n.Email, timeout))
	}
	if len(senders) == 0 {
		return noopService{}
	}
	return &fanoutService{
		senders: senders,
		uploads: n.Uploads,
		errors:  n.Errors,
	}
}

type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

type sender interface {
	name() string
	send(ctx context.Context, msg message) error
}

type fanoutService struct {
	senders []sender
	uploads bool
	errors  bool
}

func (s *fanoutService) Publish(ctx context.Context, event Event, payload Payload) error {
	if !s.enabled(event) {
		return nil
	}
	msg, ok := buildMessage(event, payload)
	if !ok {
		return nil
	}
	var errs []error
	for _, snd := range s.senders {
		if err := snd.send(ctx, msg); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", snd.name(), err))
		}
	}
	return errors.Join(errs...)
}

func (s *fanoutService) enabled(event Event) bool {
	switch event {
	case EventBeatUploaded:
		return s.uploads
	case EventError:
		return s.errors
	default:
		return true
	}
}

func buildMessage(event Event, payload Payload) (message, bool) {
	switch event {
	case EventBeatUploaded:
		name := payloadString(payload, "name")
		category := payloadString(payload, "category")
		body := fmt.Sprintf("🎵 New beat in %s: %s", category, name)
		if size, ok := payload["size"].(int64); ok && size > 0 {
			body = fmt.Sprintf("%s (%s)", body, formatBytes(size))
		}
		return message{
			title: "Beatshop - Beat Uploaded",
			body:  body,
			tags:  []string{"beatshop", "upload", category},
		}, true
	case EventError:
		var builder strings.Builder
		builder.WriteString("❌ Error")
		if label := payloadString(payload, "context"); label != "" {
			builder.WriteString(" with ")
			builder.WriteString(label)
		}
		builder.WriteString(": ")
		if detail := payloadString(payload, "error"); detail != "" {
			builder.WriteString(detail)
		} else {
			builder.WriteString("unknown")
		}
		return message{
			title:    "Beatshop - Error",
			body:     builder.String(),
			tags:     []string{"beatshop", "error", "alert"},
			priority: "high",
		}, true
	case EventTest:
		return message{
			title:    "Beatshop - Test",
			body:     "🧪 Notification system test",
			tags:     []string{"beatshop", "test"},
			priority: "low",
		}, true
	default:
		return message{}, false
	}
}

func payloadString(payload Payload, key string) string {
	if payload == nil {
		return ""
	}
	switch v := payload[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case error:
		return strings.TrimSpace(v.Error())
	case fmt.Stringer:
		return strings.TrimSpace(v.String())
	case nil:
		return ""
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

type ntfySender struct {
	endpoint string
	client   *http.Client
}

func (n *ntfySender) name() string { return "ntfy" }

func (n *ntfySender) send(ctx context.Context, data message) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.body))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
