// Package provider implements the JSON-RPC transport used by the chain
// client.
//
// This package contains:
//   - HTTPProvider: JSON-RPC 2.0 over HTTP
//   - ProviderMonitor: health and rate tracking
package provider

import (
	"context"
	"encoding/json"
	"strconv"
	"time"
)

// Caller is the minimal JSON-RPC surface the chain client depends on.
type Caller interface {
	// Call makes a single RPC request and returns the raw "result" member.
	Call(ctx context.Context, method string, params []any) (any, error)

	// CallRaw is Call without decoding the result, for typed unmarshalling.
	CallRaw(ctx context.Context, method string, params []any) (json.RawMessage, error)

	// GetName returns provider identifier (e.g., "bsc", "alchemy")
	GetName() string

	// GetHealth returns current health metrics
	GetHealth() HealthStatus
}

// HealthStatus represents the health state of a provider.
type HealthStatus struct {
	Available     bool          `json:"available"`
	Latency       time.Duration `json:"latency"`
	ErrorRate     float64       `json:"error_rate"`
	LastSuccessAt time.Time     `json:"last_success_at"`
	LastFailureAt time.Time     `json:"last_failure_at"`
	MonitorStats  *MonitorStats `json:"monitor_stats,omitempty"`
}

// RPCError is a JSON-RPC error object returned by the node.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return "rpc error " + strconv.Itoa(e.Code) + ": " + e.Message
}
