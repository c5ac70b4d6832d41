// Package health runs periodic dependency checks and keeps the latest result.
package health

import (
	"context"
	"sort"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// Status values of a check or snapshot
const (
	StatusOK       = "ok"
	StatusDegraded = "degraded"
	StatusUnknown  = "unknown"
)

// CheckFunc verifies one dependency
type CheckFunc func(ctx context.Context) error

// CheckResult is the outcome of one check
type CheckResult struct {
	Name      string    `json:"name"`
	Status    string    `json:"status"`
	Error     string    `json:"error,omitempty"`
	LatencyMS int64     `json:"latency_ms"`
	CheckedAt time.Time `json:"checked_at"`
}

// Snapshot is the latest result of every check
type Snapshot struct {
	Status    string        `json:"status"`
	Checks    []CheckResult `json:"checks"`
	CheckedAt time.Time     `json:"checked_at"`
}

type check struct {
	name string
	fn   CheckFunc
}

// Monitor runs registered checks on an interval
type Monitor struct {
	interval time.Duration
	timeout  time.Duration

	mu     sync.RWMutex
	checks []check
	last   Snapshot

	cancel context.CancelFunc
	done   chan struct{}
}

// NewMonitor creates a monitor. Checks run every interval once started.
func NewMonitor(interval time.Duration) *Monitor {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Monitor{
		interval: interval,
		timeout:  5 * time.Second,
		last:     Snapshot{Status: StatusUnknown, Checks: []CheckResult{}},
	}
}

// Register adds a named check
func (m *Monitor) Register(name string, fn CheckFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checks = append(m.checks, check{name: name, fn: fn})
}

// Start runs the checks once, then on every tick until ctx ends or Stop is called
func (m *Monitor) Start(ctx context.Context) {
	m.mu.Lock()
	if m.cancel != nil {
		m.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan struct{})
	done := m.done
	m.mu.Unlock()

	m.RunOnce(ctx)
	go func() {
		defer close(done)
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.RunOnce(ctx)
			}
		}
	}()
	log.WithField("interval", m.interval.String()).Info("Health monitor started")
}

// Stop ends the check loop and waits for it to exit
func (m *Monitor) Stop() {
	m.mu.Lock()
	cancel, done := m.cancel, m.done
	m.cancel, m.done = nil, nil
	m.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
	log.Info("Health monitor stopped")
}

// RunOnce runs every check concurrently and stores the snapshot
func (m *Monitor) RunOnce(ctx context.Context) Snapshot {
	m.mu.RLock()
	checks := append([]check(nil), m.checks...)
	m.mu.RUnlock()

	results := make([]CheckResult, len(checks))
	var wg sync.WaitGroup
	for i, c := range checks {
		wg.Add(1)
		go func(i int, c check) {
			defer wg.Done()
			results[i] = m.run(ctx, c)
		}(i, c)
	}
	wg.Wait()
	sort.Slice(results, func(a, b int) bool { return results[a].Name < results[b].Name })

	snap := Snapshot{Status: StatusOK, Checks: results, CheckedAt: time.Now().UTC()}
	for _, r := range results {
		if r.Status != StatusOK {
			snap.Status = StatusDegraded
			log.WithFields(log.Fields{"check": r.Name, "error": r.Error}).Warn("Health check failed")
		}
	}

	m.mu.Lock()
	m.last = snap
	m.mu.Unlock()
	return snap
}

func (m *Monitor) run(ctx context.Context, c check) CheckResult {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()
	start := time.Now()
	err := c.fn(ctx)
	res := CheckResult{
		Name:      c.name,
		Status:    StatusOK,
		LatencyMS: time.Since(start).Milliseconds(),
		CheckedAt: time.Now().UTC(),
	}
	if err != nil {
		res.Status = StatusDegraded
		res.Error = err.Error()
	}
	return res
}

// Snapshot returns the last stored result
func (m *Monitor) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.last
}
