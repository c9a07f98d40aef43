package requests

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"sim-portal/project-portal/project-portal-backend/internal/projects"
	"sim-portal/project-portal/project-portal-backend/pkg/workflows"
)

// DiscussionStatus is the review outcome of a discussion request.
type DiscussionStatus string

const (
	DiscussionPending  DiscussionStatus = "Pending"
	DiscussionApproved DiscussionStatus = "Approved"
	DiscussionDenied   DiscussionStatus = "Denied"
	DiscussionOverride DiscussionStatus = "Override"
)

// Decision is what a reviewer chooses for a pending discussion.
type Decision string

const (
	DecisionApprove  Decision = "approve"
	DecisionDeny     Decision = "deny"
	DecisionOverride Decision = "override"
)

func (d Decision) outcome() (DiscussionStatus, bool) {
	switch d {
	case DecisionApprove:
		return DiscussionApproved, true
	case DecisionDeny:
		return DiscussionDenied, true
	case DecisionOverride:
		return DiscussionOverride, true
	}
	return "", false
}

// SimRequest is a unit of simulation work drawn against a project budget.
type SimRequest struct {
	ID             uuid.UUID               `gorm:"type:uuid;primaryKey" json:"id"`
	Title          string                  `gorm:"size:200;not null" json:"title"`
	Description    string                  `gorm:"type:text" json:"description"`
	Vendor         string                  `gorm:"size:128" json:"vendor"`
	Status         workflows.RequestStatus `gorm:"size:32;not null;index" json:"status"`
	Priority       projects.Priority       `gorm:"size:16;not null;default:'Medium'" json:"priority"`
	ProjectID      *uuid.UUID              `gorm:"type:uuid;index" json:"project_id,omitempty"`
	CreatedByID    uuid.UUID               `gorm:"type:uuid;not null" json:"created_by_id"`
	CreatedByName  string                  `gorm:"size:128" json:"created_by_name"`
	AssigneeID     *uuid.UUID              `gorm:"type:uuid;index" json:"assignee_id,omitempty"`
	AssigneeName   string                  `gorm:"size:128" json:"assignee_name,omitempty"`
	EstimatedHours float64                 `gorm:"not null;default:0" json:"estimated_hours"`
	AllocatedHours float64                 `gorm:"not null;default:0" json:"allocated_hours"`
	FinalHours     *float64                `json:"final_hours,omitempty"`
	DenialReason   *string                 `gorm:"type:text" json:"denial_reason,omitempty"`
	CompletedAt    *time.Time              `json:"completed_at,omitempty"`
	CreatedAt      time.Time               `json:"created_at"`
	UpdatedAt      time.Time               `json:"updated_at"`
}

// TableName overrides the table name
func (SimRequest) TableName() string {
	return "requests"
}

func (r *SimRequest) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// IsAssignee reports whether id is the assigned engineer.
func (r *SimRequest) IsAssignee(id uuid.UUID) bool {
	return r.AssigneeID != nil && *r.AssigneeID == id
}

// RequestStatusHistory records request status changes. Rows are never updated.
type RequestStatusHistory struct {
	ID         uuid.UUID                `gorm:"type:uuid;primaryKey" json:"id"`
	RequestID  uuid.UUID                `gorm:"type:uuid;not null;uniqueIndex:idx_request_history_seq,priority:1" json:"request_id"`
	Sequence   int64                    `gorm:"not null;uniqueIndex:idx_request_history_seq,priority:2" json:"sequence"`
	FromStatus *workflows.RequestStatus `gorm:"size:32" json:"from_status"`
	ToStatus   workflows.RequestStatus  `gorm:"size:32;not null" json:"to_status"`
	ActorID    uuid.UUID                `gorm:"type:uuid;not null" json:"actor_id"`
	ActorName  string                   `gorm:"size:128;not null" json:"actor_name"`
	Reason     *string                  `gorm:"type:text" json:"reason"`
	Metadata   datatypes.JSON           `json:"metadata,omitempty"`
	CreatedAt  time.Time                `gorm:"not null;index" json:"created_at"`
}

// TableName overrides the table name
func (RequestStatusHistory) TableName() string {
	return "request_status_history"
}

func (h *RequestStatusHistory) BeforeCreate(tx *gorm.DB) error {
	if h.ID == uuid.Nil {
		h.ID = uuid.New()
	}
	return nil
}

// DiscussionRequest is an assigned engineer's dispute of allocated hours.
// At most one per request may be Pending; the partial unique index backs
// the check the coordinator makes under the request lock.
type DiscussionRequest struct {
	ID              uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	RequestID       uuid.UUID        `gorm:"type:uuid;not null;index;uniqueIndex:idx_discussion_one_pending,where:status = 'Pending'" json:"request_id"`
	EngineerID      uuid.UUID        `gorm:"type:uuid;not null" json:"engineer_id"`
	EngineerName    string           `gorm:"size:128" json:"engineer_name"`
	Reason          string           `gorm:"type:text;not null" json:"reason"`
	SuggestedHours  *float64         `json:"suggested_hours,omitempty"`
	Status          DiscussionStatus `gorm:"size:16;not null;index" json:"status"`
	ReviewerID      *uuid.UUID       `gorm:"type:uuid" json:"reviewer_id,omitempty"`
	ReviewerName    *string          `gorm:"size:128" json:"reviewer_name,omitempty"`
	ManagerResponse *string          `gorm:"type:text" json:"manager_response,omitempty"`
	AllocatedHours  *float64         `json:"allocated_hours,omitempty"`
	ReviewedAt      *time.Time       `json:"reviewed_at,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

// TableName overrides the table name
func (DiscussionRequest) TableName() string {
	return "discussion_requests"
}

func (d *DiscussionRequest) BeforeCreate(tx *gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}

// RequestFilter narrows ListRequests.
type RequestFilter struct {
	Status     *workflows.RequestStatus
	ProjectID  *uuid.UUID
	AssigneeID *uuid.UUID
	Limit      int
	Offset     int
}

// Models lists the tables this package owns, for migrations.
func Models() []any {
	return []any{&SimRequest{}, &RequestStatusHistory{}, &DiscussionRequest{}}
}
