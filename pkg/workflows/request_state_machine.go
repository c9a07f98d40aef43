package workflows

import "fmt"

// RequestStatus is the state of a simulation request.
type RequestStatus string

const (
	RequestSubmitted          RequestStatus = "Submitted"
	RequestFeasibilityReview  RequestStatus = "Feasibility Review"
	RequestResourceAllocation RequestStatus = "Resource Allocation"
	RequestEngineeringReview  RequestStatus = "Engineering Review"
	RequestDiscussion         RequestStatus = "Discussion"
	RequestInProgress         RequestStatus = "In Progress"
	RequestCompleted          RequestStatus = "Completed"
	RequestRevisionRequested  RequestStatus = "Revision Requested"
	RequestRevisionApproval   RequestStatus = "Revision Approval"
	RequestAccepted           RequestStatus = "Accepted"
	RequestDenied             RequestStatus = "Denied"
)

var allowedRequestTransitions = map[RequestStatus][]RequestStatus{
	RequestSubmitted:          {RequestFeasibilityReview, RequestDenied},
	RequestFeasibilityReview:  {RequestResourceAllocation, RequestDenied},
	RequestResourceAllocation: {RequestEngineeringReview, RequestDenied},
	RequestEngineeringReview:  {RequestDiscussion, RequestInProgress, RequestDenied},
	RequestDiscussion:         {RequestEngineeringReview, RequestInProgress},
	RequestInProgress:         {RequestCompleted},
	RequestCompleted:          {RequestRevisionRequested, RequestAccepted, RequestDenied},
	RequestRevisionRequested:  {RequestRevisionApproval},
	RequestRevisionApproval:   {RequestInProgress, RequestCompleted},
	RequestAccepted:           {},
	RequestDenied:             {},
}

// ParseRequestStatus validates a raw request status string.
func ParseRequestStatus(s string) (RequestStatus, error) {
	status := RequestStatus(s)
	if _, ok := allowedRequestTransitions[status]; !ok {
		return "", NewError(KindValidation, CodeInvalidInput, fmt.Sprintf("unknown request status %q", s))
	}
	return status, nil
}

// ValidNextRequestStates returns the request statuses reachable from status.
func ValidNextRequestStates(status RequestStatus) []RequestStatus {
	next := allowedRequestTransitions[status]
	out := make([]RequestStatus, len(next))
	copy(out, next)
	return out
}

// CanTransitionRequest checks a request edge.
func CanTransitionRequest(from, to RequestStatus) bool {
	for _, allowed := range allowedRequestTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// CanOpenDiscussion reports whether an assignee may dispute hours while the
// request is in status.
func CanOpenDiscussion(status RequestStatus) bool {
	return status == RequestEngineeringReview || status == RequestInProgress
}

// IsFinalRequestStatus reports whether no further request edges exist.
func IsFinalRequestStatus(status RequestStatus) bool {
	return len(allowedRequestTransitions[status]) == 0
}

func requestStatusStrings(statuses []RequestStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}
