package sweeper

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"sim-portal/project-portal/project-portal-backend/internal/auth"
	"sim-portal/project-portal/project-portal-backend/internal/notifications"
	"sim-portal/project-portal/project-portal-backend/internal/projects"
	"sim-portal/project-portal/project-portal-backend/pkg/workflows"
)

// SweepFailure is one project the sweep could not expire.
type SweepFailure struct {
	ProjectID uuid.UUID `json:"project_id"`
	Code      string    `json:"code"`
	Error     string    `json:"error"`
}

// SweepResult summarizes one pass.
type SweepResult struct {
	ExpiredCount int            `json:"expired_count"`
	ProjectCodes []string       `json:"project_codes"`
	Failures     []SweepFailure `json:"failures"`
	Cutoff       time.Time      `json:"cutoff"`
}

// Sweeper expires projects whose deadline has passed. Each project goes
// through the transition engine in its own transaction, so one failure
// never aborts the rest of the pass.
type Sweeper struct {
	repo     projects.Repository
	engine   *projects.Engine
	events   *notifications.Dispatcher
	location *time.Location
	logger   *zap.Logger
}

// New creates a sweeper that computes "today" in loc.
func New(repo projects.Repository, engine *projects.Engine, events *notifications.Dispatcher, loc *time.Location, logger *zap.Logger) *Sweeper {
	if loc == nil {
		loc = time.UTC
	}
	return &Sweeper{
		repo:     repo,
		engine:   engine,
		events:   events,
		location: loc,
		logger:   logger,
	}
}

// SweepExpiredProjects expires every Active, Approved or On Hold project
// whose deadline is before the start of now's day. Projects already
// Expired are not scanned, so repeating a sweep is a no-op.
func (s *Sweeper) SweepExpiredProjects(ctx context.Context, now time.Time) (*SweepResult, error) {
	local := now.In(s.location)
	cutoff := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, s.location)
	result := &SweepResult{
		ProjectCodes: []string{},
		Failures:     []SweepFailure{},
		Cutoff:       cutoff,
	}

	candidates, err := s.repo.ListExpirable(ctx, cutoff.UTC())
	if err != nil {
		return nil, err
	}

	for _, p := range candidates {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		deadline := p.Deadline.In(s.location).Format("2006-01-02")
		expired, err := s.engine.TransitionProjectStatus(ctx, projects.TransitionInput{
			ProjectID: p.ID,
			ToStatus:  workflows.ProjectExpired,
			Reason:    fmt.Sprintf("Deadline %s passed", deadline),
			Actor:     auth.SystemActor(),
			Metadata: map[string]any{
				"deadline": deadline,
				"sweep":    cutoff.Format(time.RFC3339),
			},
		})
		if err != nil {
			// A concurrent transition may have moved the project out of an
			// expirable status after the scan; the engine rejects it.
			result.Failures = append(result.Failures, SweepFailure{ProjectID: p.ID, Code: p.Code, Error: err.Error()})
			continue
		}

		result.ExpiredCount++
		result.ProjectCodes = append(result.ProjectCodes, expired.Code)

		projectID := expired.ID
		s.events.Dispatch(notifications.Event{
			Type:      notifications.EventProjectExpired,
			EntityID:  expired.ID,
			ProjectID: &projectID,
			ActorID:   uuid.Nil,
			ActorName: auth.SystemName,
			Payload: map[string]any{
				"code":     expired.Code,
				"deadline": deadline,
			},
		})
	}

	fields := []zap.Field{
		zap.Time("cutoff", cutoff),
		zap.Int("scanned", len(candidates)),
		zap.Int("expired", result.ExpiredCount),
		zap.Strings("codes", result.ProjectCodes),
	}
	if len(result.Failures) > 0 {
		s.logger.Warn("Deadline sweep finished with failures", append(fields, zap.Int("failures", len(result.Failures)))...)
	} else {
		s.logger.Info("Deadline sweep finished", fields...)
	}
	return result, nil
}
