// Command watchdog restarts the zap listener when its activity goes stale.
// It polls the listener's health endpoint; an unreachable endpoint or a
// last-activity timestamp older than the threshold triggers a restart of the
// configured systemd unit. Intended to run from a timer, not as a daemon.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"time"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		url       string
		service   string
		threshold time.Duration
	)
	flag.StringVar(&url, "url", "http://127.0.0.1:8990/health", "listener health endpoint")
	flag.StringVar(&service, "service", "zap-listener.service", "systemd unit to restart")
	flag.DurationVar(&threshold, "threshold", 90*time.Second, "maximum tolerated activity staleness")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	last, err := lastActivity(url)
	if err != nil {
		logger.Warn("health endpoint unreachable, restarting as precaution", "url", url, "error", err)
		return restart(service, logger)
	}

	age := time.Since(time.Unix(last, 0))
	if age > threshold {
		logger.Warn("listener stale, restarting",
			"last_activity", last, "age", age.Round(time.Second), "threshold", threshold)
		return restart(service, logger)
	}
	return nil
}

func lastActivity(url string) (int64, error) {
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(url)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("health endpoint returned status %d", resp.StatusCode)
	}

	var body struct {
		LastActivityUnix int64 `json:"last_activity_unix"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, fmt.Errorf("decode health response: %w", err)
	}
	return body.LastActivityUnix, nil
}

func restart(service string, logger *slog.Logger) error {
	out, err := exec.Command("systemctl", "restart", service).CombinedOutput()
	if err != nil {
		return fmt.Errorf("restart %s: %w: %s", service, err, out)
	}
	logger.Info("service restarted", "service", service)
	return nil
}
