package middleware

import (
	"context"
	"sort"
	"sync"
	"time"
)

// HealthCheck probes one backing service.
type HealthCheck func(ctx context.Context) error

// HealthStatus is the outcome of one probe.
type HealthStatus struct {
	Status    string        `json:"status"` // healthy, unhealthy
	Latency   time.Duration `json:"latency"`
	Message   string        `json:"message,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}

// MiddlewareManager tracks the optional backing services (cache, object
// storage, broker) and probes them on demand.
type MiddlewareManager struct {
	mu     sync.RWMutex
	checks map[string]HealthCheck
}

func NewMiddlewareManager() *MiddlewareManager {
	return &MiddlewareManager{checks: make(map[string]HealthCheck)}
}

// Register adds or replaces the probe for name.
func (m *MiddlewareManager) Register(name string, check HealthCheck) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checks[name] = check
}

// Names lists the registered services in order.
func (m *MiddlewareManager) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.checks))
	for name := range m.checks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CheckHealth runs every probe concurrently under ctx.
func (m *MiddlewareManager) CheckHealth(ctx context.Context) map[string]HealthStatus {
	m.mu.RLock()
	checks := make(map[string]HealthCheck, len(m.checks))
	for name, check := range m.checks {
		checks[name] = check
	}
	m.mu.RUnlock()

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		health = make(map[string]HealthStatus, len(checks))
	)
	for name, check := range checks {
		wg.Add(1)
		go func(name string, check HealthCheck) {
			defer wg.Done()
			start := time.Now()
			err := check(ctx)
			status := HealthStatus{Status: "healthy", Latency: time.Since(start), Timestamp: time.Now()}
			if err != nil {
				status.Status = "unhealthy"
				status.Message = err.Error()
			}
			mu.Lock()
			health[name] = status
			mu.Unlock()
		}(name, check)
	}
	wg.Wait()
	return health
}
