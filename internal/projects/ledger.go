package projects

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"sim-portal/project-portal/project-portal-backend/internal/auth"
	"sim-portal/project-portal/project-portal-backend/internal/notifications"
	"sim-portal/project-portal/project-portal-backend/pkg/workflows"
)

// HourChange is a ledger mutation against one project.
type HourChange struct {
	ProjectID uuid.UUID
	RequestID *uuid.UUID
	Hours     float64
	Notes     string
	Actor     auth.Actor
	Metadata  map[string]any
}

// CompletionInput reconciles a finished request's booked hours.
type CompletionInput struct {
	ProjectID  uuid.UUID
	RequestID  uuid.UUID
	FinalHours float64
	Notes      string
	Actor      auth.Actor
}

// RolloverInput moves unused budget between projects.
type RolloverInput struct {
	FromProjectID uuid.UUID
	ToProjectID   uuid.UUID
	Hours         float64
	Notes         string
	Actor         auth.Actor
}

// Ledger is the append-only hour ledger. Each entry is written in the same
// transaction as the project's UsedHours update and under the project row
// lock, so UsedHours always equals the sum of the project's entries.
type Ledger struct {
	db     *gorm.DB
	repo   Repository
	events *notifications.Dispatcher
	logger *zap.Logger
	now    func() time.Time
}

// NewLedger creates an hour ledger.
func NewLedger(db *gorm.DB, repo Repository, events *notifications.Dispatcher, logger *zap.Logger) *Ledger {
	return &Ledger{
		db:     db,
		repo:   repo,
		events: events,
		logger: logger,
		now:    time.Now,
	}
}

// SetClock overrides the time source.
func (l *Ledger) SetClock(now func() time.Time) {
	l.now = now
}

// Allocate draws hours from an active project's budget.
func (l *Ledger) Allocate(ctx context.Context, c HourChange) (*Project, error) {
	return l.own(ctx, TxAllocation, c, func(tx *gorm.DB) (*Project, error) {
		return l.AllocateTx(ctx, tx, c)
	})
}

// AllocateTx is Allocate inside a caller-owned transaction.
func (l *Ledger) AllocateTx(ctx context.Context, tx *gorm.DB, c HourChange) (*Project, error) {
	hours, err := positiveHours(c.Hours)
	if err != nil {
		return nil, err
	}
	repo := l.repo.WithTx(tx)
	project, err := repo.LockByID(ctx, c.ProjectID)
	if err != nil {
		return nil, err
	}
	if err := l.checkDraw(project, hours); err != nil {
		return nil, err
	}
	return l.append(ctx, repo, project, TxAllocation, hours, 0, c)
}

// Deallocate returns hours to a project's budget.
func (l *Ledger) Deallocate(ctx context.Context, c HourChange) (*Project, error) {
	return l.own(ctx, TxDeallocation, c, func(tx *gorm.DB) (*Project, error) {
		return l.DeallocateTx(ctx, tx, c)
	})
}

// DeallocateTx is Deallocate inside a caller-owned transaction.
func (l *Ledger) DeallocateTx(ctx context.Context, tx *gorm.DB, c HourChange) (*Project, error) {
	hours, err := positiveHours(c.Hours)
	if err != nil {
		return nil, err
	}
	repo := l.repo.WithTx(tx)
	project, err := repo.LockByID(ctx, c.ProjectID)
	if err != nil {
		return nil, err
	}
	if err := checkMutable(project); err != nil {
		return nil, err
	}
	if err := l.checkRelease(ctx, repo, project, c.RequestID, hours); err != nil {
		return nil, err
	}
	return l.append(ctx, repo, project, TxDeallocation, -hours, 0, c)
}

// Adjust applies a signed correction to used hours. Positive corrections
// draw budget and follow the allocation rules; negative ones follow the
// deallocation rules. A zero correction writes nothing.
func (l *Ledger) Adjust(ctx context.Context, c HourChange) (*Project, error) {
	return l.own(ctx, TxAdjustment, c, func(tx *gorm.DB) (*Project, error) {
		return l.AdjustTx(ctx, tx, c)
	})
}

// AdjustTx is Adjust inside a caller-owned transaction.
func (l *Ledger) AdjustTx(ctx context.Context, tx *gorm.DB, c HourChange) (*Project, error) {
	delta, err := finiteHours(c.Hours)
	if err != nil {
		return nil, err
	}
	repo := l.repo.WithTx(tx)
	project, err := repo.LockByID(ctx, c.ProjectID)
	if err != nil {
		return nil, err
	}
	switch {
	case delta > 0:
		if err := l.checkDraw(project, delta); err != nil {
			return nil, err
		}
	case delta < 0:
		if err := checkMutable(project); err != nil {
			return nil, err
		}
		if err := l.checkRelease(ctx, repo, project, c.RequestID, -delta); err != nil {
			return nil, err
		}
	default:
		return project, nil
	}
	return l.append(ctx, repo, project, TxAdjustment, delta, 0, c)
}

// RebookTx moves the hours booked against c.RequestID to the target figure
// in c.Hours, writing the difference from the ledger's own booking as an
// adjustment. Nothing is written when the booking already matches.
func (l *Ledger) RebookTx(ctx context.Context, tx *gorm.DB, c HourChange) (*Project, error) {
	if c.RequestID == nil {
		return nil, workflows.NewError(workflows.KindValidation, workflows.CodeInvalidInput, "rebooking needs a request")
	}
	target, err := finiteHours(c.Hours)
	if err != nil {
		return nil, err
	}
	if target < 0 {
		return nil, workflows.NewError(workflows.KindValidation, workflows.CodeInvalidAmount, "hours cannot be negative")
	}
	repo := l.repo.WithTx(tx)
	project, err := repo.LockByID(ctx, c.ProjectID)
	if err != nil {
		return nil, err
	}
	booked, err := repo.SumRequestHours(ctx, project.ID, *c.RequestID)
	if err != nil {
		return nil, err
	}
	c.Hours = roundHours(target - booked)
	return l.AdjustTx(ctx, tx, c)
}

// Extend grows a project's total budget.
func (l *Ledger) Extend(ctx context.Context, c HourChange) (*Project, error) {
	return l.own(ctx, TxExtension, c, func(tx *gorm.DB) (*Project, error) {
		return l.ExtendTx(ctx, tx, c)
	})
}

// ExtendTx is Extend inside a caller-owned transaction.
func (l *Ledger) ExtendTx(ctx context.Context, tx *gorm.DB, c HourChange) (*Project, error) {
	hours, err := positiveHours(c.Hours)
	if err != nil {
		return nil, err
	}
	repo := l.repo.WithTx(tx)
	project, err := repo.LockByID(ctx, c.ProjectID)
	if err != nil {
		return nil, err
	}
	if workflows.IsTerminalStatus(project.Status) {
		return nil, workflows.NewError(workflows.KindResource, workflows.CodeProjectNotActive,
			fmt.Sprintf("cannot extend a %s project", project.Status))
	}
	return l.append(ctx, repo, project, TxExtension, 0, hours, c)
}

// Complete reconciles a finished request: the difference between its final
// hours and the hours currently booked against it is written as a
// completion entry, even when that difference is zero.
func (l *Ledger) Complete(ctx context.Context, in CompletionInput) (*Project, error) {
	c := in.change()
	return l.own(ctx, TxCompletion, c, func(tx *gorm.DB) (*Project, error) {
		return l.CompleteTx(ctx, tx, in)
	})
}

// CompleteTx is Complete inside a caller-owned transaction.
func (l *Ledger) CompleteTx(ctx context.Context, tx *gorm.DB, in CompletionInput) (*Project, error) {
	final, err := finiteHours(in.FinalHours)
	if err != nil {
		return nil, err
	}
	if final < 0 {
		return nil, workflows.NewError(workflows.KindValidation, workflows.CodeInvalidAmount, "final hours cannot be negative")
	}
	repo := l.repo.WithTx(tx)
	project, err := repo.LockByID(ctx, in.ProjectID)
	if err != nil {
		return nil, err
	}
	if err := checkMutable(project); err != nil {
		return nil, err
	}
	booked, err := repo.SumRequestHours(ctx, project.ID, in.RequestID)
	if err != nil {
		return nil, err
	}
	delta := roundHours(final - booked)
	if delta > 0 && delta > project.AvailableHours() {
		return nil, workflows.InsufficientBudget(delta, project.AvailableHours())
	}
	return l.append(ctx, repo, project, TxCompletion, delta, 0, in.change())
}

// Rollover moves unused budget from one project to another.
func (l *Ledger) Rollover(ctx context.Context, in RolloverInput) (from, to *Project, err error) {
	err = l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		from, to, err = l.RolloverTx(ctx, tx, in)
		return err
	})
	if err != nil {
		l.logFailure(TxRollover, in.FromProjectID, err)
		return nil, nil, err
	}
	for _, p := range []*Project{from, to} {
		l.dispatch(TxRollover, p, HourChange{Actor: in.Actor, Hours: in.Hours})
	}
	return from, to, nil
}

// RolloverTx is Rollover inside a caller-owned transaction. Both rows are
// locked in ascending id order so two opposite rollovers cannot deadlock.
func (l *Ledger) RolloverTx(ctx context.Context, tx *gorm.DB, in RolloverInput) (*Project, *Project, error) {
	hours, err := positiveHours(in.Hours)
	if err != nil {
		return nil, nil, err
	}
	if in.FromProjectID == in.ToProjectID {
		return nil, nil, workflows.NewError(workflows.KindValidation, workflows.CodeInvalidInput, "cannot roll hours over into the same project")
	}

	repo := l.repo.WithTx(tx)
	first, second := in.FromProjectID, in.ToProjectID
	if bytes.Compare(first[:], second[:]) > 0 {
		first, second = second, first
	}
	locked := make(map[uuid.UUID]*Project, 2)
	for _, id := range []uuid.UUID{first, second} {
		p, err := repo.LockByID(ctx, id)
		if err != nil {
			return nil, nil, err
		}
		locked[id] = p
	}
	source, target := locked[in.FromProjectID], locked[in.ToProjectID]

	if err := checkMutable(source); err != nil {
		return nil, nil, err
	}
	if workflows.IsTerminalStatus(target.Status) {
		return nil, nil, workflows.NewError(workflows.KindResource, workflows.CodeProjectNotActive,
			fmt.Sprintf("cannot roll hours into a %s project", target.Status))
	}
	if hours > source.AvailableHours() {
		return nil, nil, workflows.InsufficientBudget(hours, source.AvailableHours())
	}

	notes := strings.TrimSpace(in.Notes)
	out := HourChange{Actor: in.Actor, Notes: notes, Metadata: map[string]any{"to_project_id": target.ID.String(), "to_project_code": target.Code}}
	if _, err := l.append(ctx, repo, source, TxRollover, 0, -hours, out); err != nil {
		return nil, nil, err
	}
	into := HourChange{Actor: in.Actor, Notes: notes, Metadata: map[string]any{"from_project_id": source.ID.String(), "from_project_code": source.Code}}
	if _, err := l.append(ctx, repo, target, TxRollover, 0, hours, into); err != nil {
		return nil, nil, err
	}
	return source, target, nil
}

// History returns a project's ledger in sequence order.
func (l *Ledger) History(ctx context.Context, projectID uuid.UUID) ([]ProjectHourTransaction, error) {
	if _, err := l.repo.GetByID(ctx, projectID); err != nil {
		return nil, err
	}
	return l.repo.ListTransactions(ctx, projectID)
}

func (l *Ledger) own(ctx context.Context, txType TransactionType, c HourChange, fn func(tx *gorm.DB) (*Project, error)) (*Project, error) {
	var project *Project
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		project, err = fn(tx)
		return err
	})
	if err != nil {
		l.logFailure(txType, c.ProjectID, err)
		return nil, err
	}
	l.dispatch(txType, project, c)
	return project, nil
}

func (l *Ledger) checkDraw(project *Project, hours float64) error {
	if !workflows.CanAllocateHours(project.Status) {
		return workflows.NewError(workflows.KindResource, workflows.CodeProjectNotActive,
			fmt.Sprintf("project %s is %s; hours can only be allocated on Active or Approved projects", project.Code, project.Status))
	}
	if hours > project.AvailableHours() {
		return workflows.InsufficientBudget(hours, project.AvailableHours())
	}
	return nil
}

func (l *Ledger) checkRelease(ctx context.Context, repo Repository, project *Project, requestID *uuid.UUID, hours float64) error {
	if hours > roundHours(project.UsedHours) {
		return workflows.NewError(workflows.KindValidation, workflows.CodeInvalidAmount,
			fmt.Sprintf("cannot release %.2f hours; only %.2f are in use", hours, project.UsedHours))
	}
	if requestID == nil {
		return nil
	}
	booked, err := repo.SumRequestHours(ctx, project.ID, *requestID)
	if err != nil {
		return err
	}
	if hours > booked {
		return workflows.NewError(workflows.KindValidation, workflows.CodeInvalidAmount,
			fmt.Sprintf("cannot release %.2f hours; request has %.2f booked", hours, booked))
	}
	return nil
}

func (l *Ledger) append(ctx context.Context, repo Repository, project *Project, txType TransactionType, delta, totalDelta float64, c HourChange) (*Project, error) {
	now := l.now().UTC()
	before := project.UsedHours
	after := roundHours(before + delta)

	project.UsedHours = after
	project.TotalHours = roundHours(project.TotalHours + totalDelta)
	project.LedgerSequence++
	project.UpdatedAt = now

	entry := &ProjectHourTransaction{
		ProjectID:       project.ID,
		Sequence:        project.LedgerSequence,
		RequestID:       c.RequestID,
		TransactionType: txType,
		Hours:           delta,
		TotalHoursDelta: totalDelta,
		BalanceBefore:   before,
		BalanceAfter:    after,
		ActorID:         c.Actor.ID,
		ActorName:       c.Actor.Name,
		Notes:           strings.TrimSpace(c.Notes),
		Metadata:        encodeMetadata(c.Metadata),
		CreatedAt:       now,
	}
	if err := repo.AppendTransaction(ctx, entry); err != nil {
		return nil, err
	}
	if err := repo.Update(ctx, project); err != nil {
		return nil, err
	}
	return project, nil
}

func (l *Ledger) dispatch(txType TransactionType, project *Project, c HourChange) {
	projectID := project.ID
	l.events.Dispatch(notifications.Event{
		Type:      notifications.EventProjectHoursChanged,
		EntityID:  project.ID,
		ProjectID: &projectID,
		ActorID:   c.Actor.ID,
		ActorName: c.Actor.Name,
		Payload: map[string]any{
			"code":             project.Code,
			"transaction_type": txType,
			"hours":            c.Hours,
			"used_hours":       project.UsedHours,
			"total_hours":      project.TotalHours,
		},
	})
}

func (l *Ledger) logFailure(txType TransactionType, projectID uuid.UUID, err error) {
	fields := []zap.Field{
		zap.String("project_id", projectID.String()),
		zap.String("transaction_type", string(txType)),
		zap.Error(err),
	}
	if workflows.IsBusinessError(err) {
		l.logger.Info("Hour ledger change rejected", fields...)
		return
	}
	l.logger.Error("Hour ledger change failed", fields...)
}

func (in CompletionInput) change() HourChange {
	requestID := in.RequestID
	return HourChange{
		ProjectID: in.ProjectID,
		RequestID: &requestID,
		Hours:     in.FinalHours,
		Notes:     in.Notes,
		Actor:     in.Actor,
	}
}

func checkMutable(project *Project) error {
	if project.Status == workflows.ProjectArchived {
		return workflows.NewError(workflows.KindResource, workflows.CodeProjectNotActive,
			fmt.Sprintf("project %s is archived", project.Code))
	}
	return nil
}

func finiteHours(h float64) (float64, error) {
	if math.IsNaN(h) || math.IsInf(h, 0) {
		return 0, workflows.NewError(workflows.KindValidation, workflows.CodeInvalidAmount, "hours must be a finite number")
	}
	return roundHours(h), nil
}

func positiveHours(h float64) (float64, error) {
	h, err := finiteHours(h)
	if err != nil {
		return 0, err
	}
	if h <= 0 {
		return 0, workflows.NewError(workflows.KindValidation, workflows.CodeInvalidAmount, "hours must be greater than zero")
	}
	return h, nil
}

// roundHours keeps ledger arithmetic at hundredth-hour precision.
func roundHours(h float64) float64 {
	return math.Round(h*100) / 100
}
