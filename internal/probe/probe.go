// Package probe keeps an idle-suspended host process warm by periodically
// pinging the process's own health endpoint.
package probe

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// Config controls the probe schedule. The per-request timeout must be much
// smaller than the tick interval; a timed-out ping counts as a failed one.
type Config struct {
	Target   string
	Warmup   time.Duration
	Interval time.Duration
	Timeout  time.Duration
}

// Start launches the repeating self-ping in the background. It stops when
// ctx is cancelled. Ping failures are logged and swallowed; they never
// affect session state or terminate the process.
func Start(ctx context.Context, cfg Config) {
	go run(ctx, cfg)
}

func run(ctx context.Context, cfg Config) {
	client := &http.Client{Timeout: cfg.Timeout}
	url := strings.TrimSuffix(cfg.Target, "/") + "/health"

	select {
	case <-ctx.Done():
		return
	case <-time.After(cfg.Warmup):
	}
	ping(ctx, client, url)

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			slog.Info("Liveness probe stopped")
			return
		case <-ticker.C:
			ping(ctx, client, url)
		}
	}
}

func ping(ctx context.Context, client *http.Client, url string) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		slog.Warn("Liveness probe request build failed", "url", url, "error", err)
		return
	}

	resp, err := client.Do(req)
	if err != nil {
		if ctx.Err() == nil {
			slog.Warn("Liveness probe failed", "url", url, "error", err)
		}
		return
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		slog.Warn("Liveness probe returned unexpected status", "url", url, "status", resp.StatusCode)
		return
	}
	slog.Debug("Liveness probe ok", "url", url)
}

// Validate checks the schedule for obvious misconfiguration.
func (c Config) Validate() error {
	if c.Target == "" {
		return fmt.Errorf("probe target cannot be empty")
	}
	if c.Interval <= 0 {
		return fmt.Errorf("probe interval must be > 0")
	}
	if c.Timeout <= 0 || c.Timeout >= c.Interval {
		return fmt.Errorf("probe timeout must be > 0 and smaller than the interval")
	}
	return nil
}
