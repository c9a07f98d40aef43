package workflows

import "fmt"

// ProjectStatus is the lifecycle state of a project budget.
type ProjectStatus string

const (
	ProjectPending   ProjectStatus = "Pending"
	ProjectApproved  ProjectStatus = "Approved" // legacy alias of Active
	ProjectActive    ProjectStatus = "Active"
	ProjectOnHold    ProjectStatus = "On Hold"
	ProjectSuspended ProjectStatus = "Suspended"
	ProjectCompleted ProjectStatus = "Completed"
	ProjectCancelled ProjectStatus = "Cancelled"
	ProjectExpired   ProjectStatus = "Expired"
	ProjectArchived  ProjectStatus = "Archived"
)

// AllProjectStatuses lists every member of the project status enum.
var AllProjectStatuses = []ProjectStatus{
	ProjectPending,
	ProjectApproved,
	ProjectActive,
	ProjectOnHold,
	ProjectSuspended,
	ProjectCompleted,
	ProjectCancelled,
	ProjectExpired,
	ProjectArchived,
}

// allowedProjectTransitions is the only place project edges are defined.
var allowedProjectTransitions = map[ProjectStatus][]ProjectStatus{
	ProjectPending:   {ProjectActive, ProjectApproved, ProjectCancelled},
	ProjectApproved:  {ProjectActive, ProjectOnHold, ProjectSuspended, ProjectCompleted, ProjectCancelled, ProjectExpired},
	ProjectActive:    {ProjectOnHold, ProjectSuspended, ProjectCompleted, ProjectCancelled, ProjectExpired},
	ProjectOnHold:    {ProjectActive, ProjectSuspended, ProjectCancelled, ProjectExpired},
	ProjectSuspended: {ProjectActive, ProjectOnHold, ProjectCancelled},
	ProjectCompleted: {ProjectArchived},
	ProjectCancelled: {ProjectArchived},
	ProjectExpired:   {ProjectActive, ProjectArchived},
	ProjectArchived:  {},
}

var reasonRequiredStatuses = map[ProjectStatus]bool{
	ProjectOnHold:    true,
	ProjectSuspended: true,
	ProjectCancelled: true,
	ProjectExpired:   true,
}

var terminalStatuses = map[ProjectStatus]bool{
	ProjectCompleted: true,
	ProjectCancelled: true,
	ProjectExpired:   true,
	ProjectArchived:  true,
}

// ExpirableStatuses are the statuses the deadline sweeper scans.
var ExpirableStatuses = []ProjectStatus{ProjectActive, ProjectApproved, ProjectOnHold}

// ParseProjectStatus validates a raw status string.
func ParseProjectStatus(s string) (ProjectStatus, error) {
	status := ProjectStatus(s)
	if _, ok := allowedProjectTransitions[status]; !ok {
		return "", NewError(KindValidation, CodeInvalidInput, fmt.Sprintf("unknown project status %q", s))
	}
	return status, nil
}

// ValidNextStates returns the statuses reachable from status. The result is
// a fresh slice and never nil, so Archived yields an empty list.
func ValidNextStates(status ProjectStatus) []ProjectStatus {
	next := allowedProjectTransitions[status]
	out := make([]ProjectStatus, len(next))
	copy(out, next)
	return out
}

// IsValidTransition checks if a status transition is allowed
func IsValidTransition(from, to ProjectStatus) bool {
	for _, allowed := range allowedProjectTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// RequiresReason reports whether moving into status needs a justification.
func RequiresReason(to ProjectStatus) bool {
	return reasonRequiredStatuses[to]
}

// CanAllocateHours reports whether hours may be drawn from a project.
func CanAllocateHours(status ProjectStatus) bool {
	return status == ProjectActive || status == ProjectApproved
}

// CanCreateRequests reports whether new requests may target a project.
func CanCreateRequests(status ProjectStatus) bool {
	return status == ProjectActive || status == ProjectApproved
}

// IsTerminalStatus reports whether status is workflow-final.
func IsTerminalStatus(status ProjectStatus) bool {
	return terminalStatuses[status]
}

// StatusStrings converts statuses for error payloads and logs.
func StatusStrings(statuses []ProjectStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}
