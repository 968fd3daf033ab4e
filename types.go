package xroute

import "time"

// PoolStats returns telemetry about the observer pool.
type PoolStats struct {
	Dropped      uint64 // Events dropped due to full buffer
	Processed    uint64 // Events successfully processed
	ActiveEvents int    // Current queue depth
	Workers      int    // Number of dispatch goroutines
	BufferSize   int    // Channel capacity
}

// Stats aggregates router counters across all routes.
type Stats struct {
	Routes              int
	Received            uint64
	Delivered           uint64
	Dropped             uint64
	Published           uint64
	Errors              uint64
	EventsDropped       uint64
	AvgProcessingTimeMs float64
}

// RouteStats describes one active route.
type RouteStats struct {
	Name        string
	Source      string
	Destination string
	Group       string
	Operations  []OperationType
	Received    uint64
	Delivered   uint64
	Dropped     uint64
	Errors      uint64
}

// HealthStatus indicates router health for Kubernetes probes.
type HealthStatus struct {
	Status    string // "healthy", "degraded", "unhealthy"
	Stats     Stats
	Timestamp time.Time
	Message   string
}
