package signal

import (
	"context"
	"time"
)

type HealthStatus struct {
	Status     string
	LastPollAt *time.Time
	LastError  *string
	Details    map[string]any
}

type SourceInfo struct {
	SourceType   string
	Endpoint     string
	PollInterval time.Duration
}

type SourceInfoProvider interface {
	SourceInfo() SourceInfo
}

// Collector is a pull source polled by the collection cycle.
type Collector interface {
	Name() string
	Collect(ctx context.Context) ([]Event, error)
}

// StreamCollector pushes events into the hub as they arrive.
type StreamCollector interface {
	Name() string
	Start(ctx context.Context, out chan<- Event) error
	Stop() error
	Health() HealthStatus
}
