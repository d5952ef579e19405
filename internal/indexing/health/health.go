// Package health provides system health monitoring and status reporting.
package health

import (
	"github.com/vietddude/taskwatcher/internal/indexing/indexer"
	"github.com/vietddude/taskwatcher/internal/infra/rpc/provider"
)

// SystemStatus represents the overall health state of the system or a component.
type SystemStatus string

const (
	StatusHealthy  SystemStatus = "healthy"
	StatusDegraded SystemStatus = "degraded"
	StatusCritical SystemStatus = "critical"
)

// HealthReport contains the full system health report.
type HealthReport struct {
	SystemStatus SystemStatus           `json:"system_status"`
	Scheduler    indexer.Status         `json:"scheduler"`
	Provider     *provider.HealthStatus `json:"provider,omitempty"`
	Credits      int64                  `json:"credits"`
	Problems     []string               `json:"problems,omitempty"`
}
