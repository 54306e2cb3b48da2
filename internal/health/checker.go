// Package health runs periodic checks on the battery device, the history
// store and the MQTT broker connection.
package health

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// DefaultInterval is how often checks run.
const DefaultInterval = 30 * time.Second

// Check defines a single health check with optional recovery action.
type Check struct {
	Name      string
	CheckFn   func(ctx context.Context) error
	RecoverFn func(ctx context.Context) error
}

// Status represents the result of a health check.
type Status struct {
	Name      string    `json:"name"`
	Healthy   bool      `json:"healthy"`
	Error     string    `json:"error,omitempty"`
	CheckedAt time.Time `json:"checked_at"`
}

// Checker runs periodic health checks with auto-recovery.
type Checker struct {
	mu       sync.RWMutex
	Checks   []Check
	statuses []Status
	interval time.Duration
}

// NewChecker creates a checker over the given checks.
func NewChecker(checks ...Check) *Checker {
	return &Checker{
		interval: DefaultInterval,
		Checks:   checks,
	}
}

// SetInterval overrides the check period. Non-positive values are ignored.
func (c *Checker) SetInterval(d time.Duration) {
	if d > 0 {
		c.interval = d
	}
}

// Add appends a check. Call before Run.
func (c *Checker) Add(check Check) {
	c.Checks = append(c.Checks, check)
}

// Run starts the health check loop. Call in a goroutine.
func (c *Checker) Run(ctx context.Context) {
	c.runAll(ctx)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.runAll(ctx)
		}
	}
}

func (c *Checker) runAll(ctx context.Context) {
	statuses := make([]Status, len(c.Checks))
	for i, check := range c.Checks {
		s := Status{
			Name:      check.Name,
			CheckedAt: time.Now(),
		}
		if err := check.CheckFn(ctx); err != nil {
			s.Healthy = false
			s.Error = err.Error()
			if check.RecoverFn != nil {
				_ = check.RecoverFn(ctx)
			}
		} else {
			s.Healthy = true
		}
		statuses[i] = s
	}

	c.mu.Lock()
	c.statuses = statuses
	c.mu.Unlock()
}

// Statuses returns the latest health check results.
func (c *Checker) Statuses() []Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	result := make([]Status, len(c.statuses))
	copy(result, c.statuses)
	return result
}

// IsHealthy returns true if all checks pass.
func (c *Checker) IsHealthy() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, s := range c.statuses {
		if !s.Healthy {
			return false
		}
	}
	return true
}

// ─── Check Implementations ──────────────────────────────────────────────────

// Pinger is satisfied by the SQLite store.
type Pinger interface {
	Ping() error
}

// BatteryCheck fails while the battery device directory is missing.
func BatteryCheck(name string, present func() bool) Check {
	return Check{
		Name: "battery",
		CheckFn: func(ctx context.Context) error {
			if !present() {
				return fmt.Errorf("battery %s not present", name)
			}
			return nil
		},
	}
}

// StoreCheck pings the history database.
func StoreCheck(db Pinger) Check {
	return Check{
		Name: "store",
		CheckFn: func(ctx context.Context) error {
			if err := db.Ping(); err != nil {
				return fmt.Errorf("ping store: %w", err)
			}
			return nil
		},
	}
}

// BrokerCheck fails while the MQTT client is disconnected. Paho reconnects
// on its own, so there is no recovery action.
func BrokerCheck(broker string, connected func() bool) Check {
	return Check{
		Name: "mqtt",
		CheckFn: func(ctx context.Context) error {
			if !connected() {
				return fmt.Errorf("not connected to %s", broker)
			}
			return nil
		},
	}
}
