package health

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/vietddude/taskwatcher/internal/core/cursor"
	"github.com/vietddude/taskwatcher/internal/indexing/indexer"
	"github.com/vietddude/taskwatcher/internal/infra/rpc/provider"
)

const (
	degradedLag = 10
	criticalLag = 100

	// Cached reports avoid hitting the ledger on every request.
	defaultCacheTTL = 10 * time.Second
)

// StatusSource exposes the scheduler snapshot.
type StatusSource interface {
	Status() indexer.Status
}

// ProviderSource exposes RPC provider health.
type ProviderSource interface {
	GetHealth() provider.HealthStatus
}

// CreditCounter counts stored credits.
type CreditCounter interface {
	Count(ctx context.Context) (int64, error)
}

// Monitor aggregates health status from various system components.
type Monitor struct {
	scheduler StatusSource
	provider  ProviderSource
	ledger    CreditCounter
	cacheTTL  time.Duration

	mu         sync.Mutex
	lastCheck  time.Time
	lastReport *HealthReport
}

// NewMonitor creates a new health monitor. rpc and ledger may be nil.
func NewMonitor(scheduler StatusSource, rpc ProviderSource, ledger CreditCounter) *Monitor {
	return &Monitor{
		scheduler: scheduler,
		provider:  rpc,
		ledger:    ledger,
		cacheTTL:  defaultCacheTTL,
	}
}

// CheckHealth builds a report, reusing the previous one within the cache TTL.
func (m *Monitor) CheckHealth(ctx context.Context) HealthReport {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.lastReport != nil && time.Since(m.lastCheck) < m.cacheTTL {
		return *m.lastReport
	}

	report := HealthReport{
		SystemStatus: StatusHealthy,
		Scheduler:    m.scheduler.Status(),
	}

	if m.provider != nil {
		h := m.provider.GetHealth()
		report.Provider = &h
		if !h.Available {
			report.degrade(StatusCritical, "rpc provider unavailable")
		} else if h.MonitorStats != nil && h.MonitorStats.Status != provider.StatusHealthy.String() {
			report.degrade(StatusDegraded, "rpc provider "+h.MonitorStats.Status)
		}
	}

	if m.ledger != nil {
		count, err := m.ledger.Count(ctx)
		if err != nil {
			report.degrade(StatusDegraded, fmt.Sprintf("ledger count: %v", err))
		} else {
			report.Credits = count
		}
	}

	st := report.Scheduler
	if st.LastError != "" {
		report.degrade(StatusDegraded, "last cycle failed: "+st.LastError)
	}
	// Lag only matters while the window is being scanned.
	if st.State == cursor.StateActive {
		switch {
		case st.Lag > criticalLag:
			report.degrade(StatusCritical, fmt.Sprintf("checkpoint %d blocks behind head", st.Lag))
		case st.Lag > degradedLag:
			report.degrade(StatusDegraded, fmt.Sprintf("checkpoint %d blocks behind head", st.Lag))
		}
	}

	m.lastCheck = time.Now()
	m.lastReport = &report
	return report
}

// degrade records a problem and lowers the status, worst case wins.
func (r *HealthReport) degrade(status SystemStatus, problem string) {
	r.Problems = append(r.Problems, problem)
	if status == StatusCritical || r.SystemStatus == StatusHealthy {
		r.SystemStatus = status
	}
}
