package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"erpfetch/internal/config"
)

const (
	userAgent   = "erpfetch/0.1.0"
	defaultHost = "https://ntfy.sh/"
)

// RunStats summarises a finished run for the completion message.
type RunStats struct {
	Orders    int
	Succeeded int
	Failed    int
	Skipped   int
	Duration  time.Duration
}

// Service defines the notification surface exposed to the orchestrator.
type Service interface {
	NotifyRunStarted(ctx context.Context, orders, items int) error
	NotifyRunCompleted(ctx context.Context, stats RunStats) error
	NotifyError(ctx context.Context, err error, context string) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint:    Endpoint(topic),
		client:      &http.Client{Timeout: timeout},
		runStart:    cfg.Notifications.RunStart,
		runComplete: cfg.Notifications.RunComplete,
		errors:      cfg.Notifications.Errors,
	}
}

// Endpoint expands a bare topic name to a public ntfy URL.
func Endpoint(topic string) string {
	topic = strings.TrimSpace(topic)
	if strings.HasPrefix(topic, "http://") || strings.HasPrefix(topic, "https://") {
		return topic
	}
	return defaultHost + strings.TrimPrefix(topic, "/")
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint    string
	client      *http.Client
	runStart    bool
	runComplete bool
	errors      bool
}

func (n *ntfyService) NotifyRunStarted(ctx context.Context, orders, items int) error {
	if !n.runStart {
		return nil
	}
	data := payload{
		title:   "erpfetch - Run Started",
		message: fmt.Sprintf("Downloading %d reports across %d orders", items, orders),
		tags:    []string{"erpfetch", "run", "started"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyRunCompleted(ctx context.Context, stats RunStats) error {
	if !n.runComplete {
		return nil
	}
	duration := stats.Duration.Round(time.Second)
	if duration < 0 {
		duration = 0
	}

	title := "erpfetch - Run Complete"
	message := fmt.Sprintf("%d reports downloaded across %d orders in %s", stats.Succeeded, stats.Orders, duration)
	if stats.Failed > 0 {
		title = "erpfetch - Run Complete (with failures)"
		message = fmt.Sprintf("%d downloaded, %d failed across %d orders in %s", stats.Succeeded, stats.Failed, stats.Orders, duration)
	}
	if stats.Skipped > 0 {
		message += fmt.Sprintf("\n%d skipped", stats.Skipped)
	}
	data := payload{
		title:   title,
		message: message,
		tags:    []string{"erpfetch", "run", "completed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyError(ctx context.Context, err error, contextLabel string) error {
	if !n.errors {
		return nil
	}
	var builder strings.Builder
	builder.WriteString("Error")
	if contextLabel = strings.TrimSpace(contextLabel); contextLabel != "" {
		builder.WriteString(" during ")
		builder.WriteString(contextLabel)
	}
	builder.WriteString(": ")
	if err != nil {
		builder.WriteString(strings.TrimSpace(err.Error()))
	} else {
		builder.WriteString("unknown")
	}

	data := payload{
		title:    "erpfetch - Run Failed",
		message:  builder.String(),
		tags:     []string{"erpfetch", "error", "alert"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "erpfetch - Test",
		message:  "Notification system test",
		tags:     []string{"erpfetch", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
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

func (noopService) NotifyRunStarted(context.Context, int, int) error   { return nil }
func (noopService) NotifyRunCompleted(context.Context, RunStats) error { return nil }
func (noopService) NotifyError(context.Context, error, string) error   { return nil }
func (noopService) TestNotification(context.Context) error             { return nil }
