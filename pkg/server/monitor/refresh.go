package monitor

import (
	"sync"
	"time"
)

// MaxConsecutiveFailures is how many refresh failures in a row are tolerated
// before the service reports itself degraded
const MaxConsecutiveFailures = 3

// RefreshMonitor tracks the health of the periodic dataset refresh.
type RefreshMonitor struct {
	interval time.Duration

	mu                sync.RWMutex
	lastSuccess       time.Time
	lastAttempt       time.Time
	consecutiveErrors int
	lastError         string
}

// NewRefreshMonitor creates a monitor for refreshes scheduled every interval
func NewRefreshMonitor(interval time.Duration) *RefreshMonitor {
	return &RefreshMonitor{interval: interval}
}

// RecordSuccess records a successful refresh.
func (rm *RefreshMonitor) RecordSuccess() {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	rm.lastSuccess = time.Now()
	rm.lastAttempt = rm.lastSuccess
	rm.consecutiveErrors = 0
	rm.lastError = ""
}

// RecordFailure records a failed refresh.
func (rm *RefreshMonitor) RecordFailure(err error) {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	rm.lastAttempt = time.Now()
	rm.consecutiveErrors++
	if err != nil {
		rm.lastError = err.Error()
	}
}

// IsHealthy reports whether refreshes are keeping up.
// Unhealthy conditions:
//   - Never succeeded
//   - No success within two intervals
//   - More than MaxConsecutiveFailures consecutive failures
func (rm *RefreshMonitor) IsHealthy() bool {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	return rm.healthy()
}

func (rm *RefreshMonitor) healthy() bool {
	if rm.lastSuccess.IsZero() {
		return false
	}
	if time.Since(rm.lastSuccess) > 2*rm.interval {
		return false
	}
	return rm.consecutiveErrors <= MaxConsecutiveFailures
}

// RefreshStatus is the refresh section of the health response.
type RefreshStatus struct {
	Healthy           bool   `json:"healthy"`
	LastSuccess       string `json:"last_success,omitempty"`
	TimeSinceSuccess  string `json:"time_since_success,omitempty"`
	LastAttempt       string `json:"last_attempt,omitempty"`
	ConsecutiveErrors int    `json:"consecutive_errors,omitempty"`
	LastError         string `json:"last_error,omitempty"`
}

// Status returns current refresh status for health checks.
func (rm *RefreshMonitor) Status() RefreshStatus {
	rm.mu.RLock()
	defer rm.mu.RUnlock()

	status := RefreshStatus{
		Healthy: rm.healthy(),
	}

	if !rm.lastSuccess.IsZero() {
		status.LastSuccess = rm.lastSuccess.Format(time.RFC3339)
		status.TimeSinceSuccess = time.Since(rm.lastSuccess).Round(time.Second).String()
	}
	if !rm.lastAttempt.IsZero() {
		status.LastAttempt = rm.lastAttempt.Format(time.RFC3339)
	}
	if rm.consecutiveErrors > 0 {
		status.ConsecutiveErrors = rm.consecutiveErrors
		status.LastError = rm.lastError
	}

	return status
}
