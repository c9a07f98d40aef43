package projects

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"sim-portal/project-portal/project-portal-backend/pkg/workflows"
)

func TestTransition_PendingToActive(t *testing.T) {
	f := newFixture(t)
	p := f.seed(t, workflows.ProjectPending, 100)

	got, err := f.engine.TransitionProjectStatus(context.Background(), TransitionInput{
		ProjectID: p.ID,
		ToStatus:  workflows.ProjectActive,
		Actor:     manager,
	})
	require.NoError(t, err)
	assert.Equal(t, workflows.ProjectActive, got.Status)

	history := f.history(t, p.ID)
	require.Len(t, history, 1)
	require.NotNil(t, history[0].FromStatus)
	assert.Equal(t, workflows.ProjectPending, *history[0].FromStatus)
	assert.Equal(t, workflows.ProjectActive, history[0].ToStatus)
	assert.Nil(t, history[0].Reason)
	assert.Equal(t, manager.Name, history[0].ActorName)
}

func TestTransition_CancelWithoutReason(t *testing.T) {
	f := newFixture(t)
	p := f.seed(t, workflows.ProjectActive, 100)

	_, err := f.engine.TransitionProjectStatus(context.Background(), TransitionInput{
		ProjectID: p.ID,
		ToStatus:  workflows.ProjectCancelled,
		Actor:     manager,
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, workflows.ErrReasonRequired))

	assert.Empty(t, f.history(t, p.ID))
	assert.Equal(t, workflows.ProjectActive, f.reload(t, p.ID).Status)
}

func TestTransition_FromArchived(t *testing.T) {
	f := newFixture(t)
	p := f.seed(t, workflows.ProjectArchived, 100)

	_, err := f.engine.TransitionProjectStatus(context.Background(), TransitionInput{
		ProjectID: p.ID,
		ToStatus:  workflows.ProjectActive,
		Actor:     manager,
	})
	require.Error(t, err)
	be, ok := workflows.AsError(err)
	require.True(t, ok)
	assert.Equal(t, workflows.CodeInvalidTransition, be.Code)
	assert.Equal(t, []string{}, be.ValidNextStates)

	raw, err := json.Marshal(be)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"valid_next_states":[]`)
	assert.Empty(t, f.history(t, p.ID))
}

func TestTransition_InvalidEdgeListsCurrentNextStates(t *testing.T) {
	f := newFixture(t)
	p := f.seed(t, workflows.ProjectCompleted, 100)

	_, err := f.engine.TransitionProjectStatus(context.Background(), TransitionInput{
		ProjectID: p.ID,
		ToStatus:  workflows.ProjectActive,
		Actor:     manager,
	})
	be, ok := workflows.AsError(err)
	require.True(t, ok)
	assert.Equal(t, []string{"Archived"}, be.ValidNextStates)
}

func TestTransition_UnknownProject(t *testing.T) {
	f := newFixture(t)

	_, err := f.engine.TransitionProjectStatus(context.Background(), TransitionInput{
		ProjectID: uuid.New(),
		ToStatus:  workflows.ProjectActive,
		Actor:     manager,
	})
	assert.True(t, errors.Is(err, workflows.ErrNotFound))
}

func TestTransition_SideEffects(t *testing.T) {
	f := newFixture(t)

	t.Run("completed", func(t *testing.T) {
		p := f.seed(t, workflows.ProjectActive, 100)
		got, err := f.engine.TransitionProjectStatus(context.Background(), TransitionInput{
			ProjectID:       p.ID,
			ToStatus:        workflows.ProjectCompleted,
			Actor:           manager,
			CompletionNotes: "all load cases run",
		})
		require.NoError(t, err)
		require.NotNil(t, got.CompletedAt)
		require.NotNil(t, got.CompletionNotes)
		assert.Equal(t, "all load cases run", *got.CompletionNotes)
	})

	t.Run("cancelled with specific reason only", func(t *testing.T) {
		p := f.seed(t, workflows.ProjectActive, 100)
		got, err := f.engine.TransitionProjectStatus(context.Background(), TransitionInput{
			ProjectID:          p.ID,
			ToStatus:           workflows.ProjectCancelled,
			Actor:              manager,
			CancellationReason: "customer withdrew",
		})
		require.NoError(t, err)
		require.NotNil(t, got.CancelledAt)
		assert.Equal(t, "customer withdrew", *got.CancellationReason)

		history := f.history(t, p.ID)
		require.Len(t, history, 1)
		assert.Equal(t, "customer withdrew", *history[0].Reason)
	})

	t.Run("cancelled falls back to reason", func(t *testing.T) {
		p := f.seed(t, workflows.ProjectOnHold, 100)
		got, err := f.engine.TransitionProjectStatus(context.Background(), TransitionInput{
			ProjectID: p.ID,
			ToStatus:  workflows.ProjectCancelled,
			Actor:     manager,
			Reason:    "budget cut",
		})
		require.NoError(t, err)
		assert.Equal(t, "budget cut", *got.CancellationReason)
	})
}

func TestTransitionTx_CallerOwnsRollback(t *testing.T) {
	f := newFixture(t)
	p := f.seed(t, workflows.ProjectActive, 100)
	errAbort := errors.New("caller aborted")

	err := f.db.Gorm.Transaction(func(tx *gorm.DB) error {
		got, err := f.engine.TransitionProjectStatusTx(context.Background(), tx, TransitionInput{
			ProjectID: p.ID,
			ToStatus:  workflows.ProjectOnHold,
			Reason:    "waiting on CAD",
			Actor:     manager,
		})
		require.NoError(t, err)
		assert.Equal(t, workflows.ProjectOnHold, got.Status)
		return errAbort
	})
	require.ErrorIs(t, err, errAbort)

	assert.Equal(t, workflows.ProjectActive, f.reload(t, p.ID).Status)
	assert.Empty(t, f.history(t, p.ID))
}

func TestTransition_ConcurrentCallsAreLinearized(t *testing.T) {
	f := newFixture(t)
	p := f.seed(t, workflows.ProjectActive, 100)

	targets := []workflows.ProjectStatus{workflows.ProjectOnHold, workflows.ProjectSuspended}
	var wg sync.WaitGroup
	errs := make([]error, len(targets))
	for i, to := range targets {
		wg.Add(1)
		go func(i int, to workflows.ProjectStatus) {
			defer wg.Done()
			_, errs[i] = f.engine.TransitionProjectStatus(context.Background(), TransitionInput{
				ProjectID: p.ID,
				ToStatus:  to,
				Reason:    "concurrent review",
				Actor:     manager,
			})
		}(i, to)
	}
	wg.Wait()

	history := f.history(t, p.ID)
	committed := 0
	for _, err := range errs {
		if err == nil {
			committed++
		}
	}
	require.Len(t, history, committed)
	require.GreaterOrEqual(t, committed, 1)

	assert.Equal(t, workflows.ProjectActive, *history[0].FromStatus)
	for i := 1; i < len(history); i++ {
		assert.Equal(t, history[i-1].ToStatus, *history[i].FromStatus)
	}
	assert.Equal(t, history[len(history)-1].ToStatus, f.reload(t, p.ID).Status)
}

func TestTransition_RequiresActor(t *testing.T) {
	f := newFixture(t)
	p := f.seed(t, workflows.ProjectPending, 10)

	_, err := f.engine.TransitionProjectStatus(context.Background(), TransitionInput{
		ProjectID: p.ID,
		ToStatus:  workflows.ProjectActive,
	})
	assert.True(t, errors.Is(err, workflows.ErrInvalidInput))
}

func TestTransition_HistoryOrderWithFrozenClock(t *testing.T) {
	f := newFixture(t)
	frozen := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	f.engine.SetClock(func() time.Time { return frozen })
	p := f.seed(t, workflows.ProjectPending, 10)

	path := []workflows.ProjectStatus{
		workflows.ProjectActive,
		workflows.ProjectOnHold,
		workflows.ProjectActive,
		workflows.ProjectSuspended,
		workflows.ProjectOnHold,
		workflows.ProjectActive,
	}
	for _, to := range path {
		_, err := f.engine.TransitionProjectStatus(context.Background(), TransitionInput{
			ProjectID: p.ID,
			ToStatus:  to,
			Reason:    "schedule change",
			Actor:     manager,
		})
		require.NoError(t, err)
	}

	history := f.history(t, p.ID)
	require.Len(t, history, len(path))
	from := workflows.ProjectPending
	for i, h := range history {
		assert.Equal(t, int64(i+1), h.Sequence)
		assert.True(t, frozen.Equal(h.CreatedAt))
		require.NotNil(t, h.FromStatus)
		assert.Equal(t, from, *h.FromStatus)
		assert.Equal(t, path[i], h.ToStatus)
		from = h.ToStatus
	}
}
