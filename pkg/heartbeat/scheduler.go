package heartbeat

import (
	"context"
	"sync"
	"time"

	echoerrors "github.com/echohq/echo/pkg/errors"
	"github.com/echohq/echo/pkg/logging"
)

// FindingPublisher receives attention-worthy findings; the notify package
// provides adapters onto its channels.
type FindingPublisher interface {
	PublishFinding(ctx context.Context, finding Finding) error
}

// Status is a point-in-time snapshot for the monitoring endpoint.
type Status struct {
	Enabled    bool      `json:"enabled"`
	LastCycle  time.Time `json:"last_cycle,omitempty"`
	CycleCount int       `json:"cycle_count"`
	Checks     []Check   `json:"checks"`
	LastReport string    `json:"last_report,omitempty"`
}

// Scheduler drives heartbeat cycles on a timer. A single goroutine owns
// the cycle loop, so cycles never overlap even when one overruns the
// interval; ticks that land mid-cycle are dropped.
type Scheduler struct {
	query     QueryFunc
	publisher FindingPublisher
	logger    *logging.Logger

	mu         sync.RWMutex
	cfg        Config
	lastCycle  time.Time
	cycleCount int
	lastReport string
}

// NewScheduler creates a scheduler; publisher and logger may be nil.
func NewScheduler(cfg Config, query QueryFunc, publisher FindingPublisher, logger *logging.Logger) *Scheduler {
	return &Scheduler{
		cfg:       cfg,
		query:     query,
		publisher: publisher,
		logger:    logger,
	}
}

// Run blocks, executing one cycle per interval tick until ctx is done.
func (s *Scheduler) Run(ctx context.Context) {
	interval := s.config().Interval
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce executes a single cycle, updates the check registry, and
// escalates findings to the publisher.
func (s *Scheduler) RunOnce(ctx context.Context) []Result {
	cfg := s.config()
	results, updated := RunCycle(ctx, cfg, s.query)

	report := FormatSummary(results)

	s.mu.Lock()
	s.cfg.Checks = updated
	if len(results) > 0 {
		s.lastCycle = time.Now()
		s.cycleCount++
		s.lastReport = report
	}
	s.mu.Unlock()

	for _, result := range results {
		for _, finding := range result.Findings {
			s.escalate(ctx, finding)
		}
	}

	if s.logger != nil && len(results) > 0 {
		s.logger.Info(logging.CategoryHeartbeat, "cycle_complete", report, map[string]any{
			"checks": len(results),
		})
	}
	return results
}

func (s *Scheduler) escalate(ctx context.Context, finding Finding) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishFinding(ctx, finding); err != nil && s.logger != nil {
		wrapped := echoerrors.Wrap(err, echoerrors.ErrCodeNotifyPublish, "failed to escalate finding")
		// A notification failure degrades to log noise; it must never
		// interrupt the user's session.
		s.logger.Warn(logging.CategoryNotify, "publish_failed", wrapped.Error(), map[string]any{
			"source": finding.Source,
		})
	}
}

// Status returns a snapshot safe to serve concurrently with a running
// cycle.
func (s *Scheduler) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	checks := append([]Check(nil), s.cfg.Checks...)
	return Status{
		Enabled:    s.cfg.Enabled,
		LastCycle:  s.lastCycle,
		CycleCount: s.cycleCount,
		Checks:     checks,
		LastReport: s.lastReport,
	}
}

func (s *Scheduler) config() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cfg := s.cfg
	cfg.Checks = append([]Check(nil), s.cfg.Checks...)
	return cfg
}
