package health

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// CheckFunc probes one backing store.
type CheckFunc func(ctx context.Context) error

// Monitor pings the service's dependencies on a ticker and publishes the result through the
// gRPC health service. Each dependency is reported under its own name; the service name is
// SERVING only while every dependency answers.
type Monitor struct {
	service  string
	server   *grpchealth.Server
	checks   map[string]CheckFunc
	interval time.Duration
	timeout  time.Duration

	mu   sync.Mutex
	last map[string]healthpb.HealthCheckResponse_ServingStatus
}

func NewMonitor(service string, server *grpchealth.Server, checks map[string]CheckFunc) *Monitor {
	return &Monitor{
		service:  service,
		server:   server,
		checks:   checks,
		interval: 10 * time.Second,
		timeout:  2 * time.Second,
		last:     make(map[string]healthpb.HealthCheckResponse_ServingStatus),
	}
}

func (m *Monitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.probe(ctx)
	for {
		select {
		case <-ticker.C:
			m.probe(ctx)
		case <-ctx.Done():
			m.server.Shutdown()
			return nil
		}
	}
}

// probe runs every check once and returns the overall status.
func (m *Monitor) probe(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	overall := healthpb.HealthCheckResponse_SERVING
	for name, check := range m.checks {
		checkCtx, cancel := context.WithTimeout(ctx, m.timeout)
		err := check(checkCtx)
		cancel()

		status := healthpb.HealthCheckResponse_SERVING
		if err != nil {
			status = healthpb.HealthCheckResponse_NOT_SERVING
			overall = healthpb.HealthCheckResponse_NOT_SERVING
		}
		m.set(name, status, err)
	}
	m.set(m.service, overall, nil)
	return overall
}

func (m *Monitor) set(name string, status healthpb.HealthCheckResponse_ServingStatus, err error) {
	m.mu.Lock()
	prev, seen := m.last[name]
	m.last[name] = status
	m.mu.Unlock()

	if seen && prev == status {
		return
	}
	m.server.SetServingStatus(name, status)
	if status == healthpb.HealthCheckResponse_SERVING {
		log.Info().Str("component", name).Msg("health: serving")
	} else {
		log.Error().Err(err).Str("component", name).Msg("health: not serving")
	}
}
