package requests

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"sim-portal/project-portal/project-portal-backend/internal/auth"
	"sim-portal/project-portal/project-portal-backend/internal/database"
	"sim-portal/project-portal/project-portal-backend/internal/projects"
	"sim-portal/project-portal/project-portal-backend/pkg/workflows"
)

var (
	manager   = auth.Actor{ID: uuid.New(), Name: "Mia Manager", Role: auth.RoleManager}
	reviewer  = auth.Actor{ID: uuid.New(), Name: "Rob Reviewer", Role: auth.RoleAdmin}
	engineer  = auth.Actor{ID: uuid.New(), Name: "Ed Engineer", Role: auth.RoleEngineer}
	bystander = auth.Actor{ID: uuid.New(), Name: "Bo User", Role: auth.RoleUser}
)

type fixture struct {
	db          *database.DB
	projectRepo projects.Repository
	repo        Repository
	ledger      *projects.Ledger
	coordinator *Coordinator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "portal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.Migrate(db.Gorm, append(projects.Models(), Models()...)...))

	logger := zap.NewNop()
	projectRepo := projects.NewRepository(db.Gorm)
	ledger := projects.NewLedger(db.Gorm, projectRepo, nil, logger)
	repo := NewRepository(db.Gorm)
	return &fixture{
		db:          db,
		projectRepo: projectRepo,
		repo:        repo,
		ledger:      ledger,
		coordinator: NewCoordinator(db.Gorm, repo, projectRepo, ledger, nil, logger),
	}
}

func (f *fixture) project(t *testing.T, status workflows.ProjectStatus, total float64) *projects.Project {
	t.Helper()
	now := time.Now().UTC()
	p := &projects.Project{
		Name:          "Fatigue campaign",
		Code:          "F-" + uuid.NewString()[:8],
		Status:        status,
		TotalHours:    total,
		Priority:      projects.PriorityHigh,
		CreatedByID:   manager.ID,
		CreatedByName: manager.Name,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	require.NoError(t, f.projectRepo.Create(context.Background(), p))
	return p
}

// toResourceAllocation files a request against p and walks it to Resource Allocation.
func (f *fixture) toResourceAllocation(t *testing.T, p *projects.Project) *SimRequest {
	t.Helper()
	ctx := context.Background()
	projectID := p.ID
	req, err := f.coordinator.CreateRequest(ctx, CreateRequestInput{ProjectID: &projectID, Title: "Bracket FEA", EstimatedHours: 10}, bystander)
	require.NoError(t, err)
	for _, to := range []workflows.RequestStatus{workflows.RequestFeasibilityReview, workflows.RequestResourceAllocation} {
		req, err = f.coordinator.TransitionRequest(ctx, TransitionInput{RequestID: req.ID, ToStatus: to}, manager)
		require.NoError(t, err)
	}
	return req
}

func (f *fixture) assigned(t *testing.T, p *projects.Project, hours float64) *SimRequest {
	t.Helper()
	req := f.toResourceAllocation(t, p)
	req, err := f.coordinator.AssignEngineer(context.Background(), AssignInput{
		RequestID: req.ID, EngineerID: engineer.ID, EngineerName: engineer.Name, EstimatedHours: hours,
	}, manager)
	require.NoError(t, err)
	return req
}

func (f *fixture) usedHours(t *testing.T, projectID uuid.UUID) float64 {
	t.Helper()
	p, err := f.projectRepo.GetByID(context.Background(), projectID)
	require.NoError(t, err)
	entries, err := f.projectRepo.ListTransactions(context.Background(), projectID)
	require.NoError(t, err)
	var sum float64
	for _, e := range entries {
		sum += e.Hours
	}
	require.InDelta(t, sum, p.UsedHours, 1e-9)
	return p.UsedHours
}

func ptr(v float64) *float64 { return &v }

func TestCreateRequest_ProjectMustAcceptRequests(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	pending := f.project(t, workflows.ProjectPending, 100)
	pendingID := pending.ID
	_, err := f.coordinator.CreateRequest(ctx, CreateRequestInput{ProjectID: &pendingID, Title: "Mesh study"}, bystander)
	assert.True(t, errors.Is(err, workflows.ErrProjectNotAcceptingRequests))

	missing := uuid.New()
	_, err = f.coordinator.CreateRequest(ctx, CreateRequestInput{ProjectID: &missing, Title: "Mesh study"}, bystander)
	assert.True(t, errors.Is(err, workflows.ErrNotFound))

	active := f.project(t, workflows.ProjectApproved, 100)
	activeID := active.ID
	req, err := f.coordinator.CreateRequest(ctx, CreateRequestInput{ProjectID: &activeID, Title: "Mesh study"}, bystander)
	require.NoError(t, err)
	assert.Equal(t, workflows.RequestSubmitted, req.Status)

	history, err := f.coordinator.GetHistory(ctx, req.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Nil(t, history[0].FromStatus)
}

func TestTransitionRequest_Rules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.project(t, workflows.ProjectActive, 100)
	req := f.toResourceAllocation(t, p)

	_, err := f.coordinator.TransitionRequest(ctx, TransitionInput{RequestID: req.ID, ToStatus: workflows.RequestEngineeringReview}, manager)
	assert.True(t, errors.Is(err, workflows.ErrInvalidInput), "assignment edge is reserved")

	_, err = f.coordinator.TransitionRequest(ctx, TransitionInput{RequestID: req.ID, ToStatus: workflows.RequestCompleted}, manager)
	be, ok := workflows.AsError(err)
	require.True(t, ok)
	assert.Equal(t, workflows.CodeInvalidTransition, be.Code)
	assert.Equal(t, []string{"Engineering Review", "Denied"}, be.ValidNextStates)

	_, err = f.coordinator.TransitionRequest(ctx, TransitionInput{RequestID: req.ID, ToStatus: workflows.RequestDenied}, manager)
	assert.True(t, errors.Is(err, workflows.ErrReasonRequired))

	_, err = f.coordinator.TransitionRequest(ctx, TransitionInput{RequestID: req.ID, ToStatus: workflows.RequestDenied, Reason: "no"}, bystander)
	assert.True(t, errors.Is(err, workflows.ErrForbidden))

	got, err := f.coordinator.TransitionRequest(ctx, TransitionInput{RequestID: req.ID, ToStatus: workflows.RequestDenied, Reason: "out of scope"}, manager)
	require.NoError(t, err)
	assert.Equal(t, workflows.RequestDenied, got.Status)
	require.NotNil(t, got.DenialReason)
	assert.Equal(t, "out of scope", *got.DenialReason)
}

func TestUpdateIfStatus_StaleWriteIsRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.project(t, workflows.ProjectActive, 100)
	req := f.toResourceAllocation(t, p)

	n, err := f.repo.UpdateIfStatus(ctx, req.ID, workflows.RequestSubmitted, map[string]any{"status": workflows.RequestDenied})
	require.NoError(t, err)
	assert.Zero(t, n)

	got, err := f.repo.GetByID(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, workflows.RequestResourceAllocation, got.Status)
}

func TestAssignEngineer_AllocatesAtomically(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.project(t, workflows.ProjectActive, 20)
	req := f.toResourceAllocation(t, p)

	_, err := f.coordinator.AssignEngineer(ctx, AssignInput{
		RequestID: req.ID, EngineerID: engineer.ID, EngineerName: engineer.Name, EstimatedHours: 25,
	}, manager)
	assert.True(t, errors.Is(err, workflows.ErrInsufficientBudget))

	unchanged, err := f.repo.GetByID(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, workflows.RequestResourceAllocation, unchanged.Status)
	assert.Nil(t, unchanged.AssigneeID)
	assert.Zero(t, f.usedHours(t, p.ID))

	got, err := f.coordinator.AssignEngineer(ctx, AssignInput{
		RequestID: req.ID, EngineerID: engineer.ID, EngineerName: engineer.Name, EstimatedHours: 15,
	}, manager)
	require.NoError(t, err)
	assert.Equal(t, workflows.RequestEngineeringReview, got.Status)
	assert.True(t, got.IsAssignee(engineer.ID))
	assert.Equal(t, 15.0, got.AllocatedHours)
	assert.Equal(t, 15.0, f.usedHours(t, p.ID))

	entries, err := f.projectRepo.ListTransactions(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.NotNil(t, entries[0].RequestID)
	assert.Equal(t, req.ID, *entries[0].RequestID)

	_, err = f.coordinator.AssignEngineer(ctx, AssignInput{
		RequestID: req.ID, EngineerID: engineer.ID, EngineerName: engineer.Name, EstimatedHours: 1,
	}, manager)
	assert.True(t, errors.Is(err, workflows.ErrInvalidTransition))
}

func TestAssignEngineer_Guards(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req, err := f.coordinator.CreateRequest(ctx, CreateRequestInput{Title: "Unbudgeted"}, bystander)
	require.NoError(t, err)
	for _, to := range []workflows.RequestStatus{workflows.RequestFeasibilityReview, workflows.RequestResourceAllocation} {
		_, err = f.coordinator.TransitionRequest(ctx, TransitionInput{RequestID: req.ID, ToStatus: to}, manager)
		require.NoError(t, err)
	}

	in := AssignInput{RequestID: req.ID, EngineerID: engineer.ID, EngineerName: engineer.Name, EstimatedHours: 5}
	_, err = f.coordinator.AssignEngineer(ctx, in, engineer)
	assert.True(t, errors.Is(err, workflows.ErrForbidden))

	_, err = f.coordinator.AssignEngineer(ctx, in, manager)
	assert.True(t, errors.Is(err, workflows.ErrInvalidInput))
}

func TestDiscussion_OpenRules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.project(t, workflows.ProjectActive, 100)
	req := f.assigned(t, p, 10)

	_, err := f.coordinator.CreateDiscussionRequest(ctx, OpenDiscussionInput{RequestID: req.ID, Reason: "mesh too fine"}, bystander)
	assert.True(t, errors.Is(err, workflows.ErrForbidden))

	d, err := f.coordinator.CreateDiscussionRequest(ctx, OpenDiscussionInput{RequestID: req.ID, Reason: "mesh too fine", SuggestedHours: ptr(14)}, engineer)
	require.NoError(t, err)
	assert.Equal(t, DiscussionPending, d.Status)

	got, err := f.coordinator.GetRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, workflows.RequestDiscussion, got.Status)

	_, err = f.coordinator.CreateDiscussionRequest(ctx, OpenDiscussionInput{RequestID: req.ID, Reason: "again"}, engineer)
	assert.True(t, errors.Is(err, workflows.ErrDiscussionPending))

	_, err = f.coordinator.TransitionRequest(ctx, TransitionInput{RequestID: req.ID, ToStatus: workflows.RequestInProgress}, engineer)
	assert.True(t, errors.Is(err, workflows.ErrDiscussionPending))
}

func TestReviewDiscussion_ApproveRebooksHours(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.project(t, workflows.ProjectActive, 100)
	req := f.assigned(t, p, 10)

	d, err := f.coordinator.CreateDiscussionRequest(ctx, OpenDiscussionInput{RequestID: req.ID, Reason: "extra load cases", SuggestedHours: ptr(14)}, engineer)
	require.NoError(t, err)

	_, err = f.coordinator.ReviewDiscussionRequest(ctx, ReviewInput{DiscussionID: d.ID, Decision: DecisionApprove}, engineer)
	assert.True(t, errors.Is(err, workflows.ErrForbidden))

	reviewed, err := f.coordinator.ReviewDiscussionRequest(ctx, ReviewInput{DiscussionID: d.ID, Decision: DecisionApprove, Response: "ok"}, manager)
	require.NoError(t, err)
	assert.Equal(t, DiscussionApproved, reviewed.Status)
	require.NotNil(t, reviewed.AllocatedHours)
	assert.Equal(t, 14.0, *reviewed.AllocatedHours)

	got, err := f.coordinator.GetRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, workflows.RequestEngineeringReview, got.Status)
	assert.Equal(t, 14.0, got.AllocatedHours)
	assert.Equal(t, 14.0, f.usedHours(t, p.ID))
}

func TestReviewDiscussion_OverrideAndDeny(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.project(t, workflows.ProjectActive, 100)
	req := f.assigned(t, p, 10)

	d, err := f.coordinator.CreateDiscussionRequest(ctx, OpenDiscussionInput{RequestID: req.ID, Reason: "scope"}, engineer)
	require.NoError(t, err)

	_, err = f.coordinator.ReviewDiscussionRequest(ctx, ReviewInput{DiscussionID: d.ID, Decision: DecisionOverride}, manager)
	assert.True(t, errors.Is(err, workflows.ErrInvalidInput))
	_, err = f.coordinator.ReviewDiscussionRequest(ctx, ReviewInput{DiscussionID: d.ID, Decision: DecisionApprove}, manager)
	assert.True(t, errors.Is(err, workflows.ErrInvalidInput), "nothing to approve without a suggestion")

	_, err = f.coordinator.ReviewDiscussionRequest(ctx, ReviewInput{DiscussionID: d.ID, Decision: DecisionOverride, AllocatedHours: ptr(6)}, manager)
	require.NoError(t, err)
	assert.Equal(t, 6.0, f.usedHours(t, p.ID))

	d2, err := f.coordinator.CreateDiscussionRequest(ctx, OpenDiscussionInput{RequestID: req.ID, Reason: "still short", SuggestedHours: ptr(20)}, engineer)
	require.NoError(t, err)
	denied, err := f.coordinator.ReviewDiscussionRequest(ctx, ReviewInput{DiscussionID: d2.ID, Decision: DecisionDeny}, manager)
	require.NoError(t, err)
	assert.Equal(t, DiscussionDenied, denied.Status)
	assert.Nil(t, denied.AllocatedHours)
	assert.Equal(t, 6.0, f.usedHours(t, p.ID))

	_, err = f.coordinator.ReviewDiscussionRequest(ctx, ReviewInput{DiscussionID: d2.ID, Decision: DecisionApprove}, manager)
	assert.True(t, errors.Is(err, workflows.ErrAlreadyReviewed))
}

func TestReviewDiscussion_ConcurrentReviewersExactlyOneWins(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.project(t, workflows.ProjectActive, 100)
	req := f.assigned(t, p, 10)

	d, err := f.coordinator.CreateDiscussionRequest(ctx, OpenDiscussionInput{RequestID: req.ID, Reason: "tight", SuggestedHours: ptr(12)}, engineer)
	require.NoError(t, err)

	inputs := []struct {
		in    ReviewInput
		actor auth.Actor
	}{
		{ReviewInput{DiscussionID: d.ID, Decision: DecisionApprove}, manager},
		{ReviewInput{DiscussionID: d.ID, Decision: DecisionDeny}, reviewer},
	}
	errs := make([]error, len(inputs))
	var wg sync.WaitGroup
	for i, call := range inputs {
		wg.Add(1)
		go func(i int, in ReviewInput, actor auth.Actor) {
			defer wg.Done()
			_, errs[i] = f.coordinator.ReviewDiscussionRequest(ctx, in, actor)
		}(i, call.in, call.actor)
	}
	wg.Wait()

	var wins, conflicts int
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, workflows.ErrAlreadyReviewed):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, 1, conflicts)

	ds, err := f.coordinator.ListDiscussions(ctx, req.ID)
	require.NoError(t, err)
	require.Len(t, ds, 1)
	assert.NotEqual(t, DiscussionPending, ds[0].Status)
}

func TestCompleteRequest_BooksCompletion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.project(t, workflows.ProjectActive, 100)
	req := f.assigned(t, p, 10)

	_, err := f.coordinator.TransitionRequest(ctx, TransitionInput{RequestID: req.ID, ToStatus: workflows.RequestInProgress}, engineer)
	require.NoError(t, err)

	got, err := f.coordinator.TransitionRequest(ctx, TransitionInput{RequestID: req.ID, ToStatus: workflows.RequestCompleted, FinalHours: ptr(12.5)}, engineer)
	require.NoError(t, err)
	assert.Equal(t, workflows.RequestCompleted, got.Status)
	require.NotNil(t, got.FinalHours)
	assert.Equal(t, 12.5, *got.FinalHours)
	assert.Equal(t, 12.5, f.usedHours(t, p.ID))

	entries, err := f.projectRepo.ListTransactions(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, projects.TxCompletion, entries[1].TransactionType)
	assert.Equal(t, 2.5, entries[1].Hours)

	accepted, err := f.coordinator.TransitionRequest(ctx, TransitionInput{RequestID: req.ID, ToStatus: workflows.RequestAccepted}, manager)
	require.NoError(t, err)
	assert.Equal(t, workflows.RequestAccepted, accepted.Status)

	history, err := f.coordinator.GetHistory(ctx, req.ID)
	require.NoError(t, err)
	assert.Len(t, history, 7)
}

func TestReviewDiscussion_RebooksAgainstLedgerBooking(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.project(t, workflows.ProjectActive, 100)
	req := f.assigned(t, p, 10)

	requestID := req.ID
	_, err := f.ledger.Deallocate(ctx, projects.HourChange{ProjectID: p.ID, RequestID: &requestID, Hours: 4, Notes: "returned early", Actor: manager})
	require.NoError(t, err)
	assert.Equal(t, 6.0, f.usedHours(t, p.ID))

	d, err := f.coordinator.CreateDiscussionRequest(ctx, OpenDiscussionInput{RequestID: req.ID, Reason: "needs a second pass", SuggestedHours: ptr(8)}, engineer)
	require.NoError(t, err)
	_, err = f.coordinator.ReviewDiscussionRequest(ctx, ReviewInput{DiscussionID: d.ID, Decision: DecisionApprove}, manager)
	require.NoError(t, err)

	got, err := f.coordinator.GetRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, 8.0, got.AllocatedHours)
	booked, err := f.projectRepo.SumRequestHours(ctx, p.ID, req.ID)
	require.NoError(t, err)
	assert.Equal(t, 8.0, booked)
	assert.Equal(t, 8.0, f.usedHours(t, p.ID))
}

func TestReviewDiscussion_RejectedOnceRequestIsFinal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.project(t, workflows.ProjectActive, 100)
	req := f.assigned(t, p, 10)

	_, err := f.coordinator.TransitionRequest(ctx, TransitionInput{RequestID: req.ID, ToStatus: workflows.RequestInProgress}, engineer)
	require.NoError(t, err)
	d, err := f.coordinator.CreateDiscussionRequest(ctx, OpenDiscussionInput{RequestID: req.ID, Reason: "solver diverges", SuggestedHours: ptr(16)}, engineer)
	require.NoError(t, err)

	// completing while the discussion is open is refused
	_, err = f.coordinator.TransitionRequest(ctx, TransitionInput{RequestID: req.ID, ToStatus: workflows.RequestCompleted}, engineer)
	assert.True(t, errors.Is(err, workflows.ErrDiscussionPending))

	// a request that reached a final status anyway keeps its reconciled hours
	n, err := f.repo.UpdateIfStatus(ctx, req.ID, workflows.RequestInProgress, map[string]any{"status": workflows.RequestCompleted})
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	_, err = f.coordinator.ReviewDiscussionRequest(ctx, ReviewInput{DiscussionID: d.ID, Decision: DecisionApprove}, manager)
	assert.True(t, errors.Is(err, workflows.ErrStaleStatus))
	assert.Equal(t, 10.0, f.usedHours(t, p.ID))

	ds, err := f.coordinator.ListDiscussions(ctx, req.ID)
	require.NoError(t, err)
	require.Len(t, ds, 1)
	assert.Equal(t, DiscussionPending, ds[0].Status)
}

func TestRequestHours_RoundedToLedgerPrecision(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.project(t, workflows.ProjectActive, 100)
	projectID := p.ID

	req, err := f.coordinator.CreateRequest(ctx, CreateRequestInput{ProjectID: &projectID, Title: "Modal survey", EstimatedHours: 12.3456}, bystander)
	require.NoError(t, err)
	assert.Equal(t, 12.35, req.EstimatedHours)

	for _, to := range []workflows.RequestStatus{workflows.RequestFeasibilityReview, workflows.RequestResourceAllocation} {
		_, err = f.coordinator.TransitionRequest(ctx, TransitionInput{RequestID: req.ID, ToStatus: to}, manager)
		require.NoError(t, err)
	}
	got, err := f.coordinator.AssignEngineer(ctx, AssignInput{
		RequestID: req.ID, EngineerID: engineer.ID, EngineerName: engineer.Name, EstimatedHours: 7.891,
	}, manager)
	require.NoError(t, err)
	assert.Equal(t, 7.89, got.EstimatedHours)
	assert.Equal(t, 7.89, got.AllocatedHours)

	booked, err := f.projectRepo.SumRequestHours(ctx, p.ID, req.ID)
	require.NoError(t, err)
	assert.Equal(t, got.AllocatedHours, booked)

	_, err = f.coordinator.AssignEngineer(ctx, AssignInput{
		RequestID: req.ID, EngineerID: engineer.ID, EngineerName: engineer.Name, EstimatedHours: 0.004,
	}, manager)
	assert.True(t, errors.Is(err, workflows.ErrInvalidAmount))

	_, err = f.coordinator.TransitionRequest(ctx, TransitionInput{RequestID: req.ID, ToStatus: workflows.RequestInProgress}, engineer)
	require.NoError(t, err)
	done, err := f.coordinator.TransitionRequest(ctx, TransitionInput{RequestID: req.ID, ToStatus: workflows.RequestCompleted, FinalHours: ptr(8.004)}, engineer)
	require.NoError(t, err)
	require.NotNil(t, done.FinalHours)
	assert.Equal(t, 8.0, *done.FinalHours)
	assert.Equal(t, 8.0, f.usedHours(t, p.ID))
}

func TestGetHistory_OrderWithFrozenClock(t *testing.T) {
	f := newFixture(t)
	frozen := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	f.coordinator.SetClock(func() time.Time { return frozen })
	p := f.project(t, workflows.ProjectActive, 100)
	req := f.assigned(t, p, 10)

	history, err := f.coordinator.GetHistory(context.Background(), req.ID)
	require.NoError(t, err)
	want := []workflows.RequestStatus{
		workflows.RequestSubmitted,
		workflows.RequestFeasibilityReview,
		workflows.RequestResourceAllocation,
		workflows.RequestEngineeringReview,
	}
	require.Len(t, history, len(want))
	for i, h := range history {
		assert.Equal(t, int64(i+1), h.Sequence)
		assert.True(t, frozen.Equal(h.CreatedAt))
		assert.Equal(t, want[i], h.ToStatus)
	}
}
