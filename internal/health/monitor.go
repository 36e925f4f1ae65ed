package health

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/birabittoh/pr-manager/internal/api"
	"github.com/birabittoh/pr-manager/internal/logging"
)

// Liveness states reported by Snapshot.State.
const (
	StateUnknown = "unknown"
	StateOnline  = "online"
	StateOffline = "offline"
)

// Source fetches backend health and worker threads.
type Source interface {
	Health(ctx context.Context) (api.HealthSnapshot, error)
	Threads(ctx context.Context) ([]api.Thread, error)
}

// Snapshot is the outcome of the last poll.
type Snapshot struct {
	Polled       bool
	Live         bool
	Status       string
	PolledAt     time.Time
	ServerTime   time.Time
	ClockSkew    time.Duration
	HasCountdown bool
	NextCheck    time.Time
	Threads      []api.Thread
	Err          error
}

// State summarises liveness as unknown, online or offline.
func (s Snapshot) State() string {
	switch {
	case !s.Polled:
		return StateUnknown
	case s.Live:
		return StateOnline
	default:
		return StateOffline
	}
}

// Remaining returns the time left until the backend's next scheduled check, never negative.
func (s Snapshot) Remaining(now time.Time) time.Duration {
	if !s.HasCountdown {
		return 0
	}
	left := s.NextCheck.Sub(now)
	if left < 0 {
		return 0
	}
	return left
}

// Option customizes a Monitor.
type Option func(*Monitor)

// WithClock replaces the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Monitor) {
		if now != nil {
			m.now = now
		}
	}
}

// Monitor polls the backend's health endpoint and keeps the last snapshot.
type Monitor struct {
	source Source
	logger *slog.Logger
	now    func() time.Time

	mu   sync.RWMutex
	last Snapshot
}

// New builds a monitor that reads from source.
func New(source Source, logger *slog.Logger, opts ...Option) *Monitor {
	m := &Monitor{
		source: source,
		logger: logging.NewComponentLogger(logger, "health"),
		now:    time.Now,
		last:   Snapshot{Status: StateUnknown},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Poll fetches one health snapshot. It never fails: an unreachable backend
// yields an offline snapshot with the countdown cleared.
func (m *Monitor) Poll(ctx context.Context) Snapshot {
	report, err := m.source.Health(ctx)
	now := m.now()

	snap := Snapshot{Polled: true, PolledAt: now}
	if err != nil {
		snap.Status = StateOffline
		snap.Err = err
		m.logger.Warn("health poll failed", logging.Error(err))
		m.store(snap)
		return snap
	}

	snap.Status = report.Status
	snap.Live = report.Status == api.HealthStatusOK
	if serverTime, ok := report.ServerTime(); ok {
		snap.ServerTime = serverTime
		snap.ClockSkew = serverTime.Sub(now)
	}
	seconds := report.NextCheckInSeconds
	if seconds < 0 {
		seconds = 0
	}
	snap.HasCountdown = true
	snap.NextCheck = now.Add(time.Duration(seconds) * time.Second)

	threads, err := m.source.Threads(ctx)
	if err != nil {
		m.logger.Debug("thread listing failed", logging.Error(err))
	} else {
		snap.Threads = threads
	}

	m.store(snap)
	return snap
}

// Snapshot returns the last poll result.
func (m *Monitor) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := m.last
	out.Threads = append([]api.Thread(nil), m.last.Threads...)
	return out
}

// Remaining returns the countdown to the next backend check at now.
func (m *Monitor) Remaining(now time.Time) time.Duration {
	return m.Snapshot().Remaining(now)
}

func (m *Monitor) store(snap Snapshot) {
	m.mu.Lock()
	m.last = snap
	m.mu.Unlock()
}
