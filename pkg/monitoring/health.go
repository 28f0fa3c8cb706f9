package monitoring

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"
)

// HealthStatus represents the health status of a component
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
	HealthStatusDegraded  HealthStatus = "degraded"
)

// queueDegradedRatio is the fill level at which a queue reports degraded
const queueDegradedRatio = 0.9

// HealthCheck is the result of one component check
type HealthCheck struct {
	Name     string                 `json:"name"`
	Status   HealthStatus           `json:"status"`
	Message  string                 `json:"message,omitempty"`
	Duration string                 `json:"duration"`
	Details  map[string]interface{} `json:"details,omitempty"`
}

// HealthReport is the body served on the health endpoint
type HealthReport struct {
	Status    HealthStatus  `json:"status"`
	Service   string        `json:"service"`
	Version   string        `json:"version"`
	Timestamp time.Time     `json:"timestamp"`
	Checks    []HealthCheck `json:"checks"`
}

// HealthChecker checks one component
type HealthChecker interface {
	Check(ctx context.Context) HealthCheck
}

// HealthCheckerFunc adapts a function to HealthChecker
type HealthCheckerFunc func(ctx context.Context) HealthCheck

// Check implements HealthChecker
func (f HealthCheckerFunc) Check(ctx context.Context) HealthCheck {
	return f(ctx)
}

// HealthManager runs the registered checkers and aggregates their status.
// Any unhealthy check makes the report unhealthy; degraded checks only
// degrade it.
type HealthManager struct {
	serviceName    string
	serviceVersion string
	timeout        time.Duration

	mu       sync.RWMutex
	checkers map[string]HealthChecker
}

// NewHealthManager creates a new health manager
func NewHealthManager(serviceName, serviceVersion string) *HealthManager {
	return &HealthManager{
		serviceName:    serviceName,
		serviceVersion: serviceVersion,
		timeout:        5 * time.Second,
		checkers:       make(map[string]HealthChecker),
	}
}

// RegisterChecker registers a health checker under name
func (hm *HealthManager) RegisterChecker(name string, checker HealthChecker) {
	hm.mu.Lock()
	defer hm.mu.Unlock()
	hm.checkers[name] = checker
}

// CheckHealth runs all checks concurrently, each under its own timeout
func (hm *HealthManager) CheckHealth(ctx context.Context) *HealthReport {
	hm.mu.RLock()
	names := make([]string, 0, len(hm.checkers))
	for name := range hm.checkers {
		names = append(names, name)
	}
	sort.Strings(names)
	checkers := make([]HealthChecker, len(names))
	for i, name := range names {
		checkers[i] = hm.checkers[name]
	}
	hm.mu.RUnlock()

	checks := make([]HealthCheck, len(checkers))
	var wg sync.WaitGroup
	for i := range checkers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()

			checkCtx, cancel := context.WithTimeout(ctx, hm.timeout)
			defer cancel()

			start := time.Now()
			check := checkers[i].Check(checkCtx)
			check.Name = names[i]
			check.Duration = time.Since(start).String()
			checks[i] = check
		}(i)
	}
	wg.Wait()

	return &HealthReport{
		Status:    aggregate(checks),
		Service:   hm.serviceName,
		Version:   hm.serviceVersion,
		Timestamp: time.Now().UTC(),
		Checks:    checks,
	}
}

func aggregate(checks []HealthCheck) HealthStatus {
	status := HealthStatusHealthy
	for _, check := range checks {
		switch check.Status {
		case HealthStatusUnhealthy:
			return HealthStatusUnhealthy
		case HealthStatusDegraded:
			status = HealthStatusDegraded
		}
	}
	return status
}

// HTTPHandler serves the report; 503 when unhealthy
func (hm *HealthManager) HTTPHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report := hm.CheckHealth(r.Context())

		status := http.StatusOK
		if report.Status == HealthStatusUnhealthy {
			status = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(report)
	}
}

// DatabaseHealthChecker pings the pool and reports its usage
type DatabaseHealthChecker struct {
	db *sql.DB
}

// NewDatabaseHealthChecker creates a new database health checker
func NewDatabaseHealthChecker(db *sql.DB) *DatabaseHealthChecker {
	return &DatabaseHealthChecker{db: db}
}

// Check implements HealthChecker. An exhausted pool is degraded, a failed
// ping unhealthy.
func (dhc *DatabaseHealthChecker) Check(ctx context.Context) HealthCheck {
	if err := dhc.db.PingContext(ctx); err != nil {
		return HealthCheck{
			Status:  HealthStatusUnhealthy,
			Message: fmt.Sprintf("Database connection failed: %v", err),
		}
	}

	stats := dhc.db.Stats()
	check := HealthCheck{
		Status:  HealthStatusHealthy,
		Message: "Database connection healthy",
		Details: map[string]interface{}{
			"open_connections": stats.OpenConnections,
			"in_use":           stats.InUse,
			"idle":             stats.Idle,
		},
	}
	if stats.MaxOpenConnections > 0 && stats.InUse >= stats.MaxOpenConnections {
		check.Status = HealthStatusDegraded
		check.Message = "Database connection pool exhausted"
	}
	return check
}

// QueueHealthChecker reports a bounded queue as degraded once it is nearly
// full. depth returns the queued item count and the capacity.
type QueueHealthChecker struct {
	depth func() (int, int)
}

// NewQueueHealthChecker creates a queue checker
func NewQueueHealthChecker(depth func() (int, int)) *QueueHealthChecker {
	return &QueueHealthChecker{depth: depth}
}

// Check implements HealthChecker
func (q *QueueHealthChecker) Check(ctx context.Context) HealthCheck {
	queued, capacity := q.depth()
	check := HealthCheck{
		Status:  HealthStatusHealthy,
		Details: map[string]interface{}{"queued": queued, "capacity": capacity},
	}
	if capacity > 0 && float64(queued) >= queueDegradedRatio*float64(capacity) {
		check.Status = HealthStatusDegraded
		check.Message = "Queue nearly full, entries may be dropped"
	}
	return check
}
