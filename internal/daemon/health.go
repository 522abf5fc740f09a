package daemon

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/SUN-SZY/joplin-plugin-pages-publisher/internal/metrics"
	"github.com/SUN-SZY/joplin-plugin-pages-publisher/internal/version"
)

// HealthStatus represents the overall health of the daemon
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusDegraded  HealthStatus = "degraded"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

// HealthCheck represents a single health check
type HealthCheck struct {
	Name    string       `json:"name"`
	Status  HealthStatus `json:"status"`
	Message string       `json:"message,omitempty"`
}

// HealthResponse represents the complete health check response
type HealthResponse struct {
	Status    HealthStatus  `json:"status"`
	Timestamp time.Time     `json:"timestamp"`
	Uptime    string        `json:"uptime"`
	Version   string        `json:"version"`
	Runs      int64         `json:"runs"`
	Failures  int64         `json:"failures"`
	LastRun   *RunInfo      `json:"last_run,omitempty"`
	Checks    []HealthCheck `json:"checks"`
}

// PerformHealthChecks executes all health checks and returns the overall status.
func (d *Daemon) PerformHealthChecks() *HealthResponse {
	checks := []HealthCheck{d.checkDaemonHealth(), d.checkLastRun()}
	overall := HealthStatusHealthy
	for _, c := range checks {
		switch {
		case c.Status == HealthStatusUnhealthy:
			overall = HealthStatusUnhealthy
		case c.Status == HealthStatusDegraded && overall == HealthStatusHealthy:
			overall = HealthStatusDegraded
		}
	}

	uptime := time.Duration(0)
	if !d.startTime.IsZero() {
		uptime = time.Since(d.startTime).Round(time.Second)
	}
	return &HealthResponse{
		Status:    overall,
		Timestamp: time.Now(),
		Uptime:    uptime.String(),
		Version:   version.Version,
		Runs:      d.runs.Load(),
		Failures:  d.failures.Load(),
		LastRun:   d.LastRun(),
		Checks:    checks,
	}
}

func (d *Daemon) checkDaemonHealth() HealthCheck {
	check := HealthCheck{Name: "daemon_status"}
	switch d.GetStatus() {
	case StatusRunning:
		check.Status = HealthStatusHealthy
		check.Message = "Daemon is running normally"
	case StatusStarting, StatusStopping:
		check.Status = HealthStatusDegraded
		check.Message = "Daemon is " + string(d.GetStatus())
	case StatusStopped:
		check.Status = HealthStatusUnhealthy
		check.Message = "Daemon is stopped"
	default:
		check.Status = HealthStatusUnhealthy
		check.Message = "Daemon is in error state"
	}
	return check
}

func (d *Daemon) checkLastRun() HealthCheck {
	check := HealthCheck{Name: "last_publish", Status: HealthStatusHealthy}
	last := d.LastRun()
	switch {
	case last == nil:
		check.Message = "No publish has run yet"
	case last.Error != "":
		check.Status = HealthStatusDegraded
		check.Message = last.Error
	default:
		check.Message = "Last publish succeeded"
	}
	return check
}

// Handler serves /healthz and /metrics.
func (d *Daemon) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", d.handleHealth)
	mux.Handle("GET /metrics", metrics.HTTPHandler(d.opts.Gatherer))
	return mux
}

func (d *Daemon) handleHealth(w http.ResponseWriter, _ *http.Request) {
	resp := d.PerformHealthChecks()
	code := http.StatusOK
	if resp.Status == HealthStatusUnhealthy {
		code = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(resp)
}
