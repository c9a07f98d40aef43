package workflows

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidNextStatesDefinedForEveryStatus(t *testing.T) {
	for _, s := range AllProjectStatuses {
		next := ValidNextStates(s)
		assert.NotNil(t, next, "status %s", s)
		for _, to := range next {
			assert.True(t, IsValidTransition(s, to))
		}
	}
	assert.Empty(t, ValidNextStates(ProjectArchived))
}

func TestArchivedIsAbsorbing(t *testing.T) {
	for _, to := range AllProjectStatuses {
		assert.False(t, IsValidTransition(ProjectArchived, to), "Archived -> %s", to)
	}
}

func TestValidNextStatesReturnsCopy(t *testing.T) {
	next := ValidNextStates(ProjectActive)
	next[0] = ProjectArchived
	assert.False(t, IsValidTransition(ProjectActive, ProjectArchived))
}

func TestRequiresReason(t *testing.T) {
	want := map[ProjectStatus]bool{
		ProjectOnHold:    true,
		ProjectSuspended: true,
		ProjectCancelled: true,
		ProjectExpired:   true,
	}
	for _, s := range AllProjectStatuses {
		assert.Equal(t, want[s], RequiresReason(s), "status %s", s)
	}
}

func TestCanAllocateAndCreate(t *testing.T) {
	for _, s := range AllProjectStatuses {
		expected := s == ProjectActive || s == ProjectApproved
		assert.Equal(t, expected, CanAllocateHours(s), "allocate %s", s)
		assert.Equal(t, expected, CanCreateRequests(s), "create %s", s)
	}
}

func TestIsTerminalStatus(t *testing.T) {
	terminal := []ProjectStatus{ProjectCompleted, ProjectCancelled, ProjectExpired, ProjectArchived}
	for _, s := range AllProjectStatuses {
		assert.Equal(t, contains(terminal, s), IsTerminalStatus(s), "status %s", s)
	}
}

func TestUnknownStatusHasNoEdges(t *testing.T) {
	assert.Empty(t, ValidNextStates("Bogus"))
	assert.False(t, IsValidTransition("Bogus", ProjectActive))

	_, err := ParseProjectStatus("Bogus")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidInput))

	s, err := ParseProjectStatus("On Hold")
	require.NoError(t, err)
	assert.Equal(t, ProjectOnHold, s)
}

func TestInvalidProjectTransitionListsCurrentEdges(t *testing.T) {
	err := InvalidProjectTransition(ProjectArchived, ProjectActive)
	assert.Equal(t, []string{}, err.ValidNextStates)
	assert.Contains(t, err.Message, "[]")
	assert.True(t, errors.Is(err, ErrInvalidTransition))

	err = InvalidProjectTransition(ProjectCompleted, ProjectActive)
	assert.Equal(t, []string{"Archived"}, err.ValidNextStates)
}

func TestErrorMatchingByCode(t *testing.T) {
	wrapped := fmt.Errorf("allocate: %w", InsufficientBudget(50, 20))
	assert.True(t, errors.Is(wrapped, ErrInsufficientBudget))
	assert.False(t, errors.Is(wrapped, ErrNotFound))
	assert.True(t, IsBusinessError(wrapped))
	assert.False(t, IsBusinessError(errors.New("connection reset")))

	e, ok := AsError(wrapped)
	require.True(t, ok)
	assert.Equal(t, KindResource, e.Kind)
}

func TestRequestStateMachine(t *testing.T) {
	chain := []RequestStatus{
		RequestSubmitted,
		RequestFeasibilityReview,
		RequestResourceAllocation,
		RequestEngineeringReview,
		RequestDiscussion,
		RequestEngineeringReview,
		RequestInProgress,
		RequestCompleted,
		RequestRevisionRequested,
		RequestRevisionApproval,
		RequestCompleted,
		RequestAccepted,
	}
	for i := 0; i+1 < len(chain); i++ {
		assert.True(t, CanTransitionRequest(chain[i], chain[i+1]), "%s -> %s", chain[i], chain[i+1])
	}

	assert.False(t, CanTransitionRequest(RequestSubmitted, RequestInProgress))
	assert.True(t, IsFinalRequestStatus(RequestAccepted))
	assert.True(t, IsFinalRequestStatus(RequestDenied))
	assert.False(t, IsFinalRequestStatus(RequestCompleted))

	assert.True(t, CanOpenDiscussion(RequestEngineeringReview))
	assert.True(t, CanOpenDiscussion(RequestInProgress))
	assert.False(t, CanOpenDiscussion(RequestDiscussion))
}

func contains(list []ProjectStatus, s ProjectStatus) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
