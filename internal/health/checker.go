// Package health probes an application URL and classifies it as up or
// down. Pointedly simple: one GET with a timeout, status class and
// round-trip latency, nothing else.
package health

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"time"
)

// Status is the result of one probe.
type Status struct {
	Timestamp      time.Time `json:"timestamp"`
	URL            string    `json:"url"`
	StatusCode     int       `json:"status_code,omitempty"`
	ResponseTimeMS float64   `json:"response_time_ms,omitempty"`
	Status         string    `json:"status"` // "up" or "down"
	Reason         string    `json:"reason"`
}

// Up reports whether the probe found the application reachable.
func (s Status) Up() bool { return s.Status == "up" }

// Checker probes one URL.
type Checker struct {
	url     string
	client  *http.Client
	logger  *slog.Logger
	records *json.Encoder
}

// New creates a Checker with the given per-request timeout.
func New(rawURL string, timeout time.Duration, logger *slog.Logger) *Checker {
	return &Checker{
		url:    rawURL,
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

// Check issues a single GET. 2xx and 3xx count as up; 4xx, 5xx,
// timeouts, and connection failures count as down. Never returns an
// error: unreachability is a classified result, not a failure of the
// checker.
func (c *Checker) Check(ctx context.Context) Status {
	status := Status{Timestamp: time.Now(), URL: c.url, Status: "down"}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		status.Reason = "Error: " + err.Error()
		return status
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		status.Reason = "Connection error"
		var ue *url.Error
		if errors.As(err, &ue) && ue.Timeout() {
			status.Reason = "Request timeout"
		}
		return status
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	status.StatusCode = resp.StatusCode
	status.ResponseTimeMS = math.Round(float64(time.Since(start).Microseconds())/10) / 100
	status.Reason = StatusReason(resp.StatusCode)
	if resp.StatusCode >= 200 && resp.StatusCode < 400 {
		status.Status = "up"
	}
	return status
}

// StatusReason maps an HTTP status code to its class description.
func StatusReason(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "Success"
	case code >= 300 && code < 400:
		return "Redirection"
	case code >= 400 && code < 500:
		return "Client Error"
	case code >= 500 && code < 600:
		return "Server Error"
	default:
		return "Unknown Status"
	}
}

// RecordTo additionally appends every logged probe result to w as one
// JSON object per line.
func (c *Checker) RecordTo(w io.Writer) {
	c.records = json.NewEncoder(w)
}

// Log writes the probe result at a level matching its verdict.
func (c *Checker) Log(s Status) {
	if c.records != nil {
		if err := c.records.Encode(s); err != nil {
			c.logger.Error("writing probe record", "error", err)
		}
	}
	if s.Up() {
		c.logger.Info("app up", "url", s.URL, "status_code", s.StatusCode, "response_time_ms", s.ResponseTimeMS)
		return
	}
	c.logger.Error("app down", "url", s.URL, "reason", s.Reason)
}

// Loop probes repeatedly at the given interval until the context is
// cancelled. The in-flight probe always completes before the loop
// exits.
func (c *Checker) Loop(ctx context.Context, interval time.Duration) {
	c.logger.Info("starting continuous monitoring", "url", c.url, "interval", interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if ctx.Err() != nil {
			c.logger.Info("monitoring stopped by user")
			return
		}
		c.Log(c.Check(context.WithoutCancel(ctx)))

		select {
		case <-ctx.Done():
			c.logger.Info("monitoring stopped by user")
			return
		case <-ticker.C:
		}
	}
}
