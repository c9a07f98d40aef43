package projects

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"sim-portal/project-portal/project-portal-backend/internal/auth"
	"sim-portal/project-portal/project-portal-backend/internal/notifications"
	"sim-portal/project-portal/project-portal-backend/pkg/workflows"
)

// TransitionInput describes a requested project status change.
type TransitionInput struct {
	ProjectID          uuid.UUID
	ToStatus           workflows.ProjectStatus
	Reason             string
	Actor              auth.Actor
	CompletionNotes    string
	CancellationReason string
	Metadata           map[string]any
}

// Engine applies project status transitions. Every transition runs under an
// exclusive lock on the project row, so transitions on one project are
// linearized and each one is validated against the committed status left
// by the previous one.
type Engine struct {
	db     *gorm.DB
	repo   Repository
	events *notifications.Dispatcher
	logger *zap.Logger
	now    func() time.Time
}

// NewEngine creates a transition engine.
func NewEngine(db *gorm.DB, repo Repository, events *notifications.Dispatcher, logger *zap.Logger) *Engine {
	return &Engine{
		db:     db,
		repo:   repo,
		events: events,
		logger: logger,
		now:    time.Now,
	}
}

// SetClock overrides the time source.
func (e *Engine) SetClock(now func() time.Time) {
	e.now = now
}

// TransitionProjectStatus opens its own transaction, applies the transition
// and commits. Business failures roll back and come back as *workflows.Error.
func (e *Engine) TransitionProjectStatus(ctx context.Context, in TransitionInput) (*Project, error) {
	var (
		project *Project
		from    workflows.ProjectStatus
	)
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		project, from, err = e.transition(ctx, tx, in)
		return err
	})
	if err != nil {
		e.logFailure(in, err)
		return nil, err
	}

	e.logger.Info("Project status changed",
		zap.String("project_id", project.ID.String()),
		zap.String("code", project.Code),
		zap.String("from", string(from)),
		zap.String("to", string(project.Status)),
		zap.String("actor", in.Actor.Name))

	projectID := project.ID
	e.events.Dispatch(notifications.Event{
		Type:      notifications.EventProjectStatusChanged,
		EntityID:  project.ID,
		ProjectID: &projectID,
		ActorID:   in.Actor.ID,
		ActorName: in.Actor.Name,
		Payload: map[string]any{
			"code":   project.Code,
			"from":   from,
			"to":     project.Status,
			"reason": in.Reason,
		},
	})
	return project, nil
}

// TransitionProjectStatusTx applies the transition inside a transaction
// owned by the caller. It never commits or rolls back tx; on error nothing
// has been written and the caller decides what to do with tx.
func (e *Engine) TransitionProjectStatusTx(ctx context.Context, tx *gorm.DB, in TransitionInput) (*Project, error) {
	project, _, err := e.transition(ctx, tx, in)
	return project, err
}

func (e *Engine) transition(ctx context.Context, tx *gorm.DB, in TransitionInput) (*Project, workflows.ProjectStatus, error) {
	if in.Actor.Name == "" {
		return nil, "", workflows.NewError(workflows.KindValidation, workflows.CodeInvalidInput, "actor is required")
	}

	repo := e.repo.WithTx(tx)
	project, err := repo.LockByID(ctx, in.ProjectID)
	if err != nil {
		return nil, "", err
	}

	// Validate against the status read under the lock, not one the caller
	// may have observed before a sibling transition committed.
	from := project.Status
	to := in.ToStatus
	if !workflows.IsValidTransition(from, to) {
		return nil, "", workflows.InvalidProjectTransition(from, to)
	}

	reason := strings.TrimSpace(in.Reason)
	cancellationReason := strings.TrimSpace(in.CancellationReason)
	if to == workflows.ProjectCancelled && reason == "" {
		reason = cancellationReason
	}
	if workflows.RequiresReason(to) && reason == "" {
		return nil, "", workflows.NewError(workflows.KindValidation, workflows.CodeReasonRequired,
			"a reason is required to move a project to "+string(to))
	}

	now := e.now().UTC()
	switch to {
	case workflows.ProjectCompleted:
		project.CompletedAt = &now
		if notes := strings.TrimSpace(in.CompletionNotes); notes != "" {
			project.CompletionNotes = &notes
		}
	case workflows.ProjectCancelled:
		if cancellationReason == "" {
			cancellationReason = reason
		}
		project.CancelledAt = &now
		project.CancellationReason = &cancellationReason
	}
	project.Status = to
	project.UpdatedAt = now

	if err := repo.Update(ctx, project); err != nil {
		return nil, "", err
	}

	history := &ProjectStatusHistory{
		ProjectID:  project.ID,
		FromStatus: &from,
		ToStatus:   to,
		ActorID:    in.Actor.ID,
		ActorName:  in.Actor.Name,
		Reason:     optionalString(reason),
		Metadata:   encodeMetadata(in.Metadata),
		CreatedAt:  now,
	}
	if err := repo.CreateHistory(ctx, history); err != nil {
		return nil, "", err
	}

	return project, from, nil
}

func (e *Engine) logFailure(in TransitionInput, err error) {
	fields := []zap.Field{
		zap.String("project_id", in.ProjectID.String()),
		zap.String("to", string(in.ToStatus)),
		zap.String("actor", in.Actor.Name),
		zap.Error(err),
	}
	if workflows.IsBusinessError(err) {
		e.logger.Info("Project transition rejected", fields...)
		return
	}
	e.logger.Error("Project transition failed", fields...)
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func encodeMetadata(m map[string]any) datatypes.JSON {
	if len(m) == 0 {
		return datatypes.JSON("{}")
	}
	b, err := json.Marshal(m)
	if err != nil {
		return datatypes.JSON("{}")
	}
	return datatypes.JSON(b)
}
