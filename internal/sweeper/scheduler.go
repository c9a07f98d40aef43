package sweeper

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"sim-portal/project-portal/project-portal-backend/internal/projects"
)

const jobTimeout = 10 * time.Minute

// Scheduler runs the deadline sweep and the ledger audit on cron schedules.
type Scheduler struct {
	cron    *cron.Cron
	sweeper *Sweeper
	auditor *projects.LedgerAuditor
	logger  *zap.Logger
	mu      sync.Mutex
	running bool
	sink    AuditSink
	ctx     context.Context
	now     func() time.Time
}

// AuditSink stores audit reports after each scheduled reconciliation.
type AuditSink interface {
	Archive(ctx context.Context, report *projects.AuditReport) (string, error)
}

// SchedulerConfig holds the cron expressions. An empty expression disables
// that job.
type SchedulerConfig struct {
	SweepSchedule string
	AuditSchedule string
	Location      *time.Location
	AuditSink     AuditSink
}

// NewScheduler validates the schedules and registers the jobs.
func NewScheduler(sweeper *Sweeper, auditor *projects.LedgerAuditor, logger *zap.Logger, cfg SchedulerConfig) (*Scheduler, error) {
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	cl := cronLogger{logger.Sugar()}
	s := &Scheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		sweeper: sweeper,
		auditor: auditor,
		logger:  logger,
		sink:    cfg.AuditSink,
		ctx:     context.Background(),
		now:     time.Now,
	}

	if cfg.SweepSchedule != "" {
		if _, err := s.cron.AddFunc(cfg.SweepSchedule, func() { s.RunSweep(s.jobContext()) }); err != nil {
			return nil, fmt.Errorf("invalid sweep schedule %q: %w", cfg.SweepSchedule, err)
		}
	}
	if cfg.AuditSchedule != "" && auditor != nil {
		if _, err := s.cron.AddFunc(cfg.AuditSchedule, func() { s.RunAudit(s.jobContext()) }); err != nil {
			return nil, fmt.Errorf("invalid audit schedule %q: %w", cfg.AuditSchedule, err)
		}
	}
	return s, nil
}

// Start starts the cron loop. Jobs inherit ctx.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return fmt.Errorf("scheduler already running")
	}
	s.running = true
	s.ctx = ctx

	s.logger.Info("Starting scheduler", zap.Int("jobs", len(s.cron.Entries())))
	s.cron.Start()
	return nil
}

// Stop waits for running jobs to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	s.logger.Info("Stopping scheduler")
	<-s.cron.Stop().Done()
}

// RunSweep runs one deadline sweep now.
func (s *Scheduler) RunSweep(ctx context.Context) (*SweepResult, error) {
	ctx, cancel := context.WithTimeout(ctx, jobTimeout)
	defer cancel()

	result, err := s.sweeper.SweepExpiredProjects(ctx, s.now())
	if err != nil {
		s.logger.Error("Deadline sweep failed", zap.Error(err))
		return result, err
	}
	return result, nil
}

// RunAudit runs one ledger reconciliation now and hands the report to the
// sink. A sink failure is logged; the report is still returned.
func (s *Scheduler) RunAudit(ctx context.Context) (*projects.AuditReport, error) {
	if s.auditor == nil {
		return nil, fmt.Errorf("no ledger auditor configured")
	}
	ctx, cancel := context.WithTimeout(ctx, jobTimeout)
	defer cancel()

	report, err := s.auditor.Reconcile(ctx)
	if err != nil {
		s.logger.Error("Ledger audit failed", zap.Error(err))
		return nil, err
	}
	if s.sink != nil {
		key, err := s.sink.Archive(ctx, report)
		if err != nil {
			s.logger.Error("Failed to archive audit report", zap.Error(err))
		} else {
			s.logger.Info("Audit report archived", zap.String("key", key))
		}
	}
	return report, nil
}

func (s *Scheduler) jobContext() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctx
}

// cronLogger adapts zap to cron's logger interface.
type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}
