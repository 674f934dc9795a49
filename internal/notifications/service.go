package notifications

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os/exec"
	"strings"
	"time"

	"github.com/xconstruct/go-pushbullet"

	"torrentrss/internal/config"
	"torrentrss/internal/logging"
	"torrentrss/internal/version"
)

const desktopBinary = "notify-send"

// Notification is one message for the configured backends.
type Notification struct {
	Title    string
	Body     string
	Tags     []string
	Priority string
}

// RunFailed describes a fatal run failure.
func RunFailed(err error) Notification {
	return Notification{
		Title:    "torrentrss - Run Failed",
		Body:     errorText(err),
		Tags:     []string{"torrentrss", "error"},
		Priority: "high",
	}
}

// FeedFailed describes a fetch failure for one feed.
func FeedFailed(feed string, err error) Notification {
	return Notification{
		Title: "torrentrss - Feed Error",
		Body:  fmt.Sprintf("feed %q: %s", feed, errorText(err)),
		Tags:  []string{"torrentrss", "feed", "error"},
	}
}

// ConfigurationInvalid describes a configuration file rejected at reload.
func ConfigurationInvalid(path string, err error) Notification {
	return Notification{
		Title:    "torrentrss - Configuration Error",
		Body:     fmt.Sprintf("%s: %s", path, errorText(err)),
		Tags:     []string{"torrentrss", "config", "error"},
		Priority: "high",
	}
}

func errorText(err error) string {
	if err == nil {
		return "unknown"
	}
	return strings.TrimSpace(err.Error())
}

// Service delivers notifications to the configured backends.
type Service interface {
	// Publish sends one notification to every backend. The returned error
	// joins per-backend failures; delivery is best-effort and callers
	// usually log it at warn and move on.
	Publish(ctx context.Context, n Notification) error
}

// NewService builds the notification fan-out for the enabled backends. When
// nothing is configured a noop implementation is returned. A desktop backend
// whose notify-send binary is missing is dropped with a warning.
func NewService(cfg *config.Config, logger *slog.Logger) Service {
	if logger == nil {
		logger = logging.NewNop()
	}

	var backends []backend
	if cfg.Notifications.DesktopEnabled {
		if path, err := exec.LookPath(desktopBinary); err == nil {
			backends = append(backends, &desktopBackend{binary: path})
		} else {
			logger.Warn("notify-send not found on PATH, desktop notifications disabled")
		}
	}
	if endpoint := cfg.Notifications.NtfyEndpoint(); endpoint != "" {
		timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		backends = append(backends, &ntfyBackend{
			endpoint: endpoint,
			client:   &http.Client{Timeout: timeout},
		})
	}
	if token := cfg.Notifications.PushbulletToken; token != "" {
		backends = append(backends, &pushbulletBackend{client: pushbullet.New(token)})
	}

	if len(backends) == 0 {
		return noopService{}
	}
	return &fanoutService{backends: backends}
}

// NewNoop returns a Service that drops every notification.
func NewNoop() Service {
	return noopService{}
}

type backend interface {
	name() string
	publish(ctx context.Context, n Notification) error
}

type fanoutService struct {
	backends []backend
}

func (s *fanoutService) Publish(ctx context.Context, n Notification) error {
	var failures []error
	for _, b := range s.backends {
		if err := b.publish(ctx, n); err != nil {
			failures = append(failures, fmt.Errorf("%s: %w", b.name(), err))
		}
	}
	return errors.Join(failures...)
}

type desktopBackend struct {
	binary string
}

func (b *desktopBackend) name() string { return "desktop" }

func (b *desktopBackend) publish(ctx context.Context, n Notification) error {
	cmd := exec.CommandContext(ctx, b.binary, "--app-name", "torrentrss", n.Title, n.Body)
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("notify-send: %w: %s", err, strings.TrimSpace(string(output)))
	}
	return nil
}

type ntfyBackend struct {
	endpoint string
	client   *http.Client
}

func (b *ntfyBackend) name() string { return "ntfy" }

func (b *ntfyBackend) publish(ctx context.Context, n Notification) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.endpoint, strings.NewReader(n.Body))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", "torrentrss/"+version.Version)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if n.Title != "" {
		req.Header.Set("Title", n.Title)
	}
	if len(n.Tags) > 0 {
		req.Header.Set("Tags", strings.Join(n.Tags, ","))
	}
	if n.Priority != "" && n.Priority != "default" {
		req.Header.Set("Priority", n.Priority)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	detail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
}

type pushbulletBackend struct {
	client *pushbullet.Client
}

func (b *pushbulletBackend) name() string { return "pushbullet" }

func (b *pushbulletBackend) publish(_ context.Context, n Notification) error {
	// go-pushbullet is not context aware; its client applies its own HTTP
	// timeouts. An empty device iden pushes to every registered device.
	if err := b.client.PushNote("", n.Title, n.Body); err != nil {
		return fmt.Errorf("pushbullet push: %w", err)
	}
	return nil
}

type noopService struct{}

func (noopService) Publish(context.Context, Notification) error { return nil }
