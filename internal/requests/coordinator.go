package requests

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"sim-portal/project-portal/project-portal-backend/internal/auth"
	"sim-portal/project-portal/project-portal-backend/internal/notifications"
	"sim-portal/project-portal/project-portal-backend/internal/projects"
	"sim-portal/project-portal/project-portal-backend/pkg/workflows"
)

type CreateRequestInput struct {
	ProjectID      *uuid.UUID        `json:"project_id"`
	Title          string            `json:"title" binding:"required"`
	Description    string            `json:"description"`
	Vendor         string            `json:"vendor"`
	Priority       projects.Priority `json:"priority"`
	EstimatedHours float64           `json:"estimated_hours"`
}

type AssignInput struct {
	RequestID      uuid.UUID `json:"-"`
	EngineerID     uuid.UUID `json:"engineer_id" binding:"required"`
	EngineerName   string    `json:"engineer_name" binding:"required"`
	EstimatedHours float64   `json:"estimated_hours"`
}

type TransitionInput struct {
	RequestID  uuid.UUID               `json:"-"`
	ToStatus   workflows.RequestStatus `json:"to_status" binding:"required"`
	Reason     string                  `json:"reason"`
	FinalHours *float64                `json:"final_hours"`
}

type OpenDiscussionInput struct {
	RequestID      uuid.UUID `json:"-"`
	Reason         string    `json:"reason" binding:"required"`
	SuggestedHours *float64  `json:"suggested_hours"`
}

type ReviewInput struct {
	DiscussionID   uuid.UUID `json:"-"`
	Decision       Decision  `json:"decision" binding:"required"`
	Response       string    `json:"response"`
	AllocatedHours *float64  `json:"allocated_hours"`
}

// Coordinator drives the request workflow and books the hours it draws
// against project budgets. Every ledger call joins the coordinator's
// transaction, so a request change and its budget change commit together.
type Coordinator struct {
	db       *gorm.DB
	repo     Repository
	projects projects.Repository
	ledger   *projects.Ledger
	events   *notifications.Dispatcher
	logger   *zap.Logger
	now      func() time.Time
}

func NewCoordinator(db *gorm.DB, repo Repository, projectRepo projects.Repository, ledger *projects.Ledger, events *notifications.Dispatcher, logger *zap.Logger) *Coordinator {
	return &Coordinator{
		db:       db,
		repo:     repo,
		projects: projectRepo,
		ledger:   ledger,
		events:   events,
		logger:   logger,
		now:      time.Now,
	}
}

// SetClock overrides the time source.
func (c *Coordinator) SetClock(now func() time.Time) {
	c.now = now
}

// CreateRequest submits a request, optionally against a project that must
// be accepting requests.
func (c *Coordinator) CreateRequest(ctx context.Context, in CreateRequestInput, actor auth.Actor) (*SimRequest, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, invalidInput("title is required")
	}
	if err := checkHours(in.EstimatedHours, true); err != nil {
		return nil, err
	}
	estimate := roundHours(in.EstimatedHours)
	priority := in.Priority
	if priority == "" {
		priority = projects.PriorityMedium
	}

	now := c.now().UTC()
	req := &SimRequest{
		Title:          title,
		Description:    in.Description,
		Vendor:         strings.TrimSpace(in.Vendor),
		Status:         workflows.RequestSubmitted,
		Priority:       priority,
		ProjectID:      in.ProjectID,
		CreatedByID:    actor.ID,
		CreatedByName:  actor.Name,
		EstimatedHours: estimate,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if in.ProjectID != nil {
			// Lock so the project cannot leave an accepting status while
			// the request is being filed against it.
			project, err := c.projects.WithTx(tx).LockByID(ctx, *in.ProjectID)
			if err != nil {
				return err
			}
			if !workflows.CanCreateRequests(project.Status) {
				return workflows.NewError(workflows.KindValidation, workflows.CodeProjectNotAcceptingRequests,
					fmt.Sprintf("project %s is %s and not accepting requests", project.Code, project.Status))
			}
		}
		repo := c.repo.WithTx(tx)
		if err := repo.Create(ctx, req); err != nil {
			return err
		}
		return repo.CreateHistory(ctx, c.history(req.ID, nil, req.Status, actor, ""))
	})
	if err != nil {
		c.logFailure("create", uuid.Nil, actor, err)
		return nil, err
	}

	c.logger.Info("Request created",
		zap.String("request_id", req.ID.String()),
		zap.String("actor", actor.Name))
	c.dispatch(notifications.EventRequestCreated, req, actor, map[string]any{"title": req.Title})
	return req, nil
}

// AssignEngineer assigns a request in Resource Allocation and allocates its
// estimated hours from the project in the same transaction. If the budget
// cannot cover the estimate, the assignment does not happen either.
func (c *Coordinator) AssignEngineer(ctx context.Context, in AssignInput, actor auth.Actor) (*SimRequest, error) {
	if !actor.IsManager() {
		return nil, forbidden("only managers can assign engineers")
	}
	if in.EngineerID == uuid.Nil || strings.TrimSpace(in.EngineerName) == "" {
		return nil, invalidInput("engineer is required")
	}
	estimate := roundHours(in.EstimatedHours)
	if err := checkHours(estimate, false); err != nil {
		return nil, err
	}

	var req *SimRequest
	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := c.repo.WithTx(tx)
		var err error
		req, err = repo.LockByID(ctx, in.RequestID)
		if err != nil {
			return err
		}
		from := req.Status
		if from != workflows.RequestResourceAllocation {
			return workflows.InvalidRequestTransition(from, workflows.RequestEngineeringReview)
		}
		if req.ProjectID == nil {
			return invalidInput("request has no project to allocate hours from")
		}

		requestID := req.ID
		if _, err := c.ledger.AllocateTx(ctx, tx, projects.HourChange{
			ProjectID: *req.ProjectID,
			RequestID: &requestID,
			Hours:     estimate,
			Notes:     "assigned to " + in.EngineerName,
			Actor:     actor,
		}); err != nil {
			return err
		}

		engineerID := in.EngineerID
		req.AssigneeID = &engineerID
		req.AssigneeName = strings.TrimSpace(in.EngineerName)
		req.EstimatedHours = estimate
		req.AllocatedHours = estimate
		req.Status = workflows.RequestEngineeringReview
		req.UpdatedAt = c.now().UTC()
		if err := repo.Save(ctx, req); err != nil {
			return err
		}
		return repo.CreateHistory(ctx, c.history(req.ID, &from, req.Status, actor, ""))
	})
	if err != nil {
		c.logFailure("assign", in.RequestID, actor, err)
		return nil, err
	}

	c.logger.Info("Engineer assigned",
		zap.String("request_id", req.ID.String()),
		zap.String("engineer", req.AssigneeName),
		zap.Float64("hours", req.AllocatedHours))
	c.dispatch(notifications.EventRequestAssigned, req, actor, map[string]any{
		"engineer_id": in.EngineerID,
		"hours":       req.AllocatedHours,
	})
	return req, nil
}

// TransitionRequest moves a request along a plain workflow edge. The request
// row is locked before the pending-discussion check so a discussion cannot
// be opened between the check and the write. The write is still conditional
// on the status the decision was made against.
func (c *Coordinator) TransitionRequest(ctx context.Context, in TransitionInput, actor auth.Actor) (*SimRequest, error) {
	var (
		req  *SimRequest
		from workflows.RequestStatus
	)
	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := c.repo.WithTx(tx)
		var err error
		req, err = repo.LockByID(ctx, in.RequestID)
		if err != nil {
			return err
		}
		from = req.Status
		to := in.ToStatus

		if !workflows.CanTransitionRequest(from, to) {
			return workflows.InvalidRequestTransition(from, to)
		}
		if err := checkReserved(from, to); err != nil {
			return err
		}
		if !canDrive(req, actor, to) {
			return forbidden("not allowed to move this request to " + string(to))
		}
		reason := strings.TrimSpace(in.Reason)
		if to == workflows.RequestDenied && reason == "" {
			return workflows.NewError(workflows.KindValidation, workflows.CodeReasonRequired, "a reason is required to deny a request")
		}
		if from == workflows.RequestDiscussion || workflows.CanOpenDiscussion(from) {
			pending, err := repo.CountPendingDiscussions(ctx, req.ID)
			if err != nil {
				return err
			}
			if pending > 0 {
				return workflows.NewError(workflows.KindConflict, workflows.CodeDiscussionPending, "resolve the pending discussion first")
			}
		}

		now := c.now().UTC()
		updates := map[string]any{"status": to, "updated_at": now}
		switch to {
		case workflows.RequestCompleted:
			final := req.AllocatedHours
			if in.FinalHours != nil {
				if err := checkHours(*in.FinalHours, true); err != nil {
					return err
				}
				final = roundHours(*in.FinalHours)
			}
			if req.ProjectID != nil && req.AssigneeID != nil {
				if _, err := c.ledger.CompleteTx(ctx, tx, projects.CompletionInput{
					ProjectID:  *req.ProjectID,
					RequestID:  req.ID,
					FinalHours: final,
					Notes:      "request completed",
					Actor:      actor,
				}); err != nil {
					return err
				}
			}
			updates["final_hours"] = final
			updates["completed_at"] = now
			req.FinalHours = &final
			req.CompletedAt = &now
		case workflows.RequestDenied:
			updates["denial_reason"] = reason
			req.DenialReason = &reason
		}

		n, err := repo.UpdateIfStatus(ctx, req.ID, from, updates)
		if err != nil {
			return err
		}
		if n == 0 {
			return workflows.NewError(workflows.KindConflict, workflows.CodeStaleStatus,
				fmt.Sprintf("request is no longer %s", from))
		}
		req.Status = to
		req.UpdatedAt = now
		return repo.CreateHistory(ctx, c.history(req.ID, &from, to, actor, reason))
	})
	if err != nil {
		c.logFailure("transition", in.RequestID, actor, err)
		return nil, err
	}

	c.logger.Info("Request status changed",
		zap.String("request_id", req.ID.String()),
		zap.String("from", string(from)),
		zap.String("to", string(req.Status)),
		zap.String("actor", actor.Name))
	c.dispatch(notifications.EventRequestStatusChanged, req, actor, map[string]any{
		"from":   from,
		"to":     req.Status,
		"reason": in.Reason,
	})
	return req, nil
}

// CreateDiscussionRequest lets the assigned engineer dispute the allocated
// hours. Only one discussion per request may be pending at a time.
func (c *Coordinator) CreateDiscussionRequest(ctx context.Context, in OpenDiscussionInput, actor auth.Actor) (*DiscussionRequest, error) {
	reason := strings.TrimSpace(in.Reason)
	if reason == "" {
		return nil, workflows.NewError(workflows.KindValidation, workflows.CodeReasonRequired, "a reason is required to open a discussion")
	}
	if in.SuggestedHours != nil {
		if err := checkHours(*in.SuggestedHours, true); err != nil {
			return nil, err
		}
	}

	var (
		d   *DiscussionRequest
		req *SimRequest
	)
	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := c.repo.WithTx(tx)
		var err error
		req, err = repo.LockByID(ctx, in.RequestID)
		if err != nil {
			return err
		}
		if !req.IsAssignee(actor.ID) {
			return forbidden("only the assigned engineer can open a discussion")
		}
		if !workflows.CanOpenDiscussion(req.Status) {
			return workflows.InvalidRequestTransition(req.Status, workflows.RequestDiscussion)
		}
		pending, err := repo.CountPendingDiscussions(ctx, req.ID)
		if err != nil {
			return err
		}
		if pending > 0 {
			return workflows.NewError(workflows.KindConflict, workflows.CodeDiscussionPending, "a discussion is already pending for this request")
		}

		now := c.now().UTC()
		d = &DiscussionRequest{
			RequestID:      req.ID,
			EngineerID:     actor.ID,
			EngineerName:   actor.Name,
			Reason:         reason,
			SuggestedHours: roundedPtr(in.SuggestedHours),
			Status:         DiscussionPending,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if err := repo.CreateDiscussion(ctx, d); err != nil {
			return err
		}

		if req.Status == workflows.RequestEngineeringReview {
			from := req.Status
			req.Status = workflows.RequestDiscussion
			req.UpdatedAt = now
			if err := repo.Save(ctx, req); err != nil {
				return err
			}
			return repo.CreateHistory(ctx, c.history(req.ID, &from, req.Status, actor, reason))
		}
		return nil
	})
	if err != nil {
		c.logFailure("open_discussion", in.RequestID, actor, err)
		return nil, err
	}

	c.logger.Info("Discussion opened",
		zap.String("discussion_id", d.ID.String()),
		zap.String("request_id", req.ID.String()),
		zap.String("engineer", actor.Name))
	c.dispatch(notifications.EventDiscussionOpened, req, actor, map[string]any{
		"discussion_id":   d.ID,
		"suggested_hours": d.SuggestedHours,
	})
	return d, nil
}

// ReviewDiscussionRequest resolves a pending discussion exactly once. The
// resolution is a conditional update on the discussion row; a reviewer who
// loses the race gets AlreadyReviewed. Approve and override re-book the
// request's hours to the finalized figure.
func (c *Coordinator) ReviewDiscussionRequest(ctx context.Context, in ReviewInput, actor auth.Actor) (*DiscussionRequest, error) {
	if !actor.IsManager() {
		return nil, forbidden("only managers can review discussions")
	}
	outcome, ok := in.Decision.outcome()
	if !ok {
		return nil, invalidInput("decision must be approve, deny or override")
	}
	if in.AllocatedHours != nil {
		if err := checkHours(*in.AllocatedHours, true); err != nil {
			return nil, err
		}
	}

	var (
		d   *DiscussionRequest
		req *SimRequest
	)
	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := c.repo.WithTx(tx)
		var err error
		d, err = repo.GetDiscussion(ctx, in.DiscussionID)
		if err != nil {
			return err
		}
		if d.Status != DiscussionPending {
			return alreadyReviewed(d)
		}
		req, err = repo.LockByID(ctx, d.RequestID)
		if err != nil {
			return err
		}
		if !workflows.CanOpenDiscussion(req.Status) && req.Status != workflows.RequestDiscussion {
			return workflows.NewError(workflows.KindConflict, workflows.CodeStaleStatus,
				fmt.Sprintf("request is %s; its discussion can no longer be reviewed", req.Status))
		}

		var final *float64
		switch outcome {
		case DiscussionApproved:
			final = in.AllocatedHours
			if final == nil {
				final = d.SuggestedHours
			}
			if final == nil {
				return invalidInput("approval needs allocated hours or a suggestion to accept")
			}
		case DiscussionOverride:
			if in.AllocatedHours == nil {
				return invalidInput("override requires allocated hours")
			}
			final = in.AllocatedHours
		}
		final = roundedPtr(final)

		now := c.now().UTC()
		reviewerID := actor.ID
		reviewerName := actor.Name
		d.Status = outcome
		d.ReviewerID = &reviewerID
		d.ReviewerName = &reviewerName
		if resp := strings.TrimSpace(in.Response); resp != "" {
			d.ManagerResponse = &resp
		}
		d.AllocatedHours = final
		d.ReviewedAt = &now
		d.UpdatedAt = now

		n, err := repo.ResolveDiscussion(ctx, d)
		if err != nil {
			return err
		}
		if n == 0 {
			return alreadyReviewed(d)
		}

		if final != nil {
			if err := c.rebook(ctx, tx, req, *final, actor); err != nil {
				return err
			}
		}
		if req.Status == workflows.RequestDiscussion {
			from := req.Status
			req.Status = workflows.RequestEngineeringReview
			if err := repo.CreateHistory(ctx, c.history(req.ID, &from, req.Status, actor, "discussion "+strings.ToLower(string(outcome)))); err != nil {
				return err
			}
		}
		req.UpdatedAt = now
		return repo.Save(ctx, req)
	})
	if err != nil {
		c.logFailure("review_discussion", in.DiscussionID, actor, err)
		return nil, err
	}

	c.logger.Info("Discussion reviewed",
		zap.String("discussion_id", d.ID.String()),
		zap.String("outcome", string(d.Status)),
		zap.String("reviewer", actor.Name))
	c.dispatch(notifications.EventDiscussionReviewed, req, actor, map[string]any{
		"discussion_id":   d.ID,
		"outcome":         d.Status,
		"allocated_hours": d.AllocatedHours,
	})
	return d, nil
}

// rebook settles the request's booking on final. The ledger works out the
// difference from what it has booked, which manual releases against the
// request may have moved away from AllocatedHours.
func (c *Coordinator) rebook(ctx context.Context, tx *gorm.DB, req *SimRequest, final float64, actor auth.Actor) error {
	if req.ProjectID != nil {
		requestID := req.ID
		if _, err := c.ledger.RebookTx(ctx, tx, projects.HourChange{
			ProjectID: *req.ProjectID,
			RequestID: &requestID,
			Hours:     final,
			Notes:     "discussion review",
			Actor:     actor,
		}); err != nil {
			return err
		}
	}
	req.AllocatedHours = final
	return nil
}

// GetRequest returns one request.
func (c *Coordinator) GetRequest(ctx context.Context, id uuid.UUID) (*SimRequest, error) {
	return c.repo.GetByID(ctx, id)
}

// ListRequests returns requests matching filter, newest first.
func (c *Coordinator) ListRequests(ctx context.Context, filter RequestFilter) ([]*SimRequest, error) {
	if filter.Status != nil {
		if _, err := workflows.ParseRequestStatus(string(*filter.Status)); err != nil {
			return nil, err
		}
	}
	return c.repo.List(ctx, filter)
}

// GetHistory returns a request's status history.
func (c *Coordinator) GetHistory(ctx context.Context, id uuid.UUID) ([]RequestStatusHistory, error) {
	if _, err := c.repo.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return c.repo.ListHistory(ctx, id)
}

// ListDiscussions returns a request's discussions in the order they were opened.
func (c *Coordinator) ListDiscussions(ctx context.Context, requestID uuid.UUID) ([]DiscussionRequest, error) {
	if _, err := c.repo.GetByID(ctx, requestID); err != nil {
		return nil, err
	}
	return c.repo.ListDiscussions(ctx, requestID)
}

func (c *Coordinator) history(requestID uuid.UUID, from *workflows.RequestStatus, to workflows.RequestStatus, actor auth.Actor, reason string) *RequestStatusHistory {
	var r *string
	if reason != "" {
		r = &reason
	}
	return &RequestStatusHistory{
		RequestID:  requestID,
		FromStatus: from,
		ToStatus:   to,
		ActorID:    actor.ID,
		ActorName:  actor.Name,
		Reason:     r,
		Metadata:   datatypes.JSON("{}"),
		CreatedAt:  c.now().UTC(),
	}
}

func (c *Coordinator) dispatch(t notifications.EventType, req *SimRequest, actor auth.Actor, payload map[string]any) {
	c.events.Dispatch(notifications.Event{
		Type:      t,
		EntityID:  req.ID,
		ProjectID: req.ProjectID,
		ActorID:   actor.ID,
		ActorName: actor.Name,
		Payload:   payload,
	})
}

func (c *Coordinator) logFailure(op string, id uuid.UUID, actor auth.Actor, err error) {
	fields := []zap.Field{
		zap.String("op", op),
		zap.String("id", id.String()),
		zap.String("actor", actor.Name),
		zap.Error(err),
	}
	if workflows.IsBusinessError(err) {
		c.logger.Info("Request workflow change rejected", fields...)
		return
	}
	c.logger.Error("Request workflow change failed", fields...)
}

// checkReserved keeps edges that carry side effects behind their own
// operations.
func checkReserved(from, to workflows.RequestStatus) error {
	switch {
	case to == workflows.RequestEngineeringReview && from == workflows.RequestResourceAllocation:
		return invalidInput("assign an engineer to move a request into Engineering Review")
	case to == workflows.RequestDiscussion:
		return invalidInput("open a discussion request to move a request into Discussion")
	case to == workflows.RequestEngineeringReview && from == workflows.RequestDiscussion:
		return invalidInput("review the pending discussion to return a request to Engineering Review")
	}
	return nil
}

// canDrive: the assignee may start and finish work; everything else is a
// manager decision.
func canDrive(req *SimRequest, actor auth.Actor, to workflows.RequestStatus) bool {
	if actor.IsManager() {
		return true
	}
	switch to {
	case workflows.RequestInProgress, workflows.RequestCompleted, workflows.RequestRevisionApproval:
		return req.IsAssignee(actor.ID)
	}
	return false
}

func checkHours(h float64, allowZero bool) error {
	if math.IsNaN(h) || math.IsInf(h, 0) || h < 0 || (!allowZero && h == 0) {
		return workflows.NewError(workflows.KindValidation, workflows.CodeInvalidAmount, fmt.Sprintf("invalid hours %v", h))
	}
	return nil
}

func roundedPtr(h *float64) *float64 {
	if h == nil {
		return nil
	}
	v := roundHours(*h)
	return &v
}

// roundHours matches the ledger's hundredth-hour precision.
func roundHours(h float64) float64 {
	return math.Round(h*100) / 100
}

func alreadyReviewed(d *DiscussionRequest) error {
	return workflows.NewError(workflows.KindConflict, workflows.CodeAlreadyReviewed,
		fmt.Sprintf("discussion %s was already reviewed", d.ID))
}

func forbidden(msg string) error {
	return workflows.NewError(workflows.KindValidation, workflows.CodeForbidden, msg)
}

func invalidInput(msg string) error {
	return workflows.NewError(workflows.KindValidation, workflows.CodeInvalidInput, msg)
}
