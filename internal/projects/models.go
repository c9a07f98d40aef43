package projects

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"sim-portal/project-portal/project-portal-backend/pkg/workflows"
)

// Priority of a project budget
type Priority string

const (
	PriorityLow      Priority = "Low"
	PriorityMedium   Priority = "Medium"
	PriorityHigh     Priority = "High"
	PriorityCritical Priority = "Critical"
)

// TransactionType classifies a ledger entry.
type TransactionType string

const (
	TxAllocation   TransactionType = "allocation"
	TxDeallocation TransactionType = "deallocation"
	TxAdjustment   TransactionType = "adjustment"
	TxCompletion   TransactionType = "completion"
	TxRollover     TransactionType = "rollover"
	TxExtension    TransactionType = "extension"
)

// Project is a budget container for simulation work.
type Project struct {
	ID                 uuid.UUID               `gorm:"type:uuid;primaryKey" json:"id"`
	Name               string                  `gorm:"size:200;not null" json:"name"`
	Code               string                  `gorm:"size:64;not null;uniqueIndex" json:"code"`
	Description        string                  `gorm:"type:text" json:"description"`
	Status             workflows.ProjectStatus `gorm:"size:32;not null;index" json:"status"`
	TotalHours         float64                 `gorm:"not null;default:0" json:"total_hours"`
	UsedHours          float64                 `gorm:"not null;default:0" json:"used_hours"`
	LedgerSequence     int64                   `gorm:"not null;default:0" json:"ledger_sequence"`
	Priority           Priority                `gorm:"size:16;not null;default:'Medium'" json:"priority"`
	Category           string                  `gorm:"size:64" json:"category"`
	Deadline           *time.Time              `gorm:"index" json:"deadline,omitempty"`
	CompletedAt        *time.Time              `json:"completed_at,omitempty"`
	CompletionNotes    *string                 `gorm:"type:text" json:"completion_notes,omitempty"`
	CancelledAt        *time.Time              `json:"cancelled_at,omitempty"`
	CancellationReason *string                 `gorm:"type:text" json:"cancellation_reason,omitempty"`
	CreatedByID        uuid.UUID               `gorm:"type:uuid;not null" json:"created_by_id"`
	CreatedByName      string                  `gorm:"size:128" json:"created_by_name"`
	CreatedAt          time.Time               `json:"created_at"`
	UpdatedAt          time.Time               `json:"updated_at"`
}

// TableName overrides the table name
func (Project) TableName() string {
	return "projects"
}

// AvailableHours is the unallocated budget, at ledger precision.
func (p *Project) AvailableHours() float64 {
	return roundHours(p.TotalHours - p.UsedHours)
}

func (p *Project) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// ProjectStatusHistory tracks status changes. Rows are never updated.
type ProjectStatusHistory struct {
	ID         uuid.UUID                `gorm:"type:uuid;primaryKey" json:"id"`
	ProjectID  uuid.UUID                `gorm:"type:uuid;not null;uniqueIndex:idx_project_history_seq,priority:1" json:"project_id"`
	Sequence   int64                    `gorm:"not null;uniqueIndex:idx_project_history_seq,priority:2" json:"sequence"`
	FromStatus *workflows.ProjectStatus `gorm:"size:32" json:"from_status"`
	ToStatus   workflows.ProjectStatus  `gorm:"size:32;not null" json:"to_status"`
	ActorID    uuid.UUID                `gorm:"type:uuid;not null" json:"actor_id"`
	ActorName  string                   `gorm:"size:128;not null" json:"actor_name"`
	Reason     *string                  `gorm:"type:text" json:"reason"`
	Metadata   datatypes.JSON           `json:"metadata,omitempty"`
	CreatedAt  time.Time                `gorm:"not null;index" json:"created_at"`
}

// TableName overrides the table name
func (ProjectStatusHistory) TableName() string {
	return "project_status_history"
}

func (h *ProjectStatusHistory) BeforeCreate(tx *gorm.DB) error {
	if h.ID == uuid.Nil {
		h.ID = uuid.New()
	}
	return nil
}

// ProjectHourTransaction is one append-only ledger entry. Hours is the
// signed delta applied to the project's used hours; TotalHoursDelta is the
// signed delta applied to its total budget.
type ProjectHourTransaction struct {
	ID              uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	ProjectID       uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_hour_tx_project_seq,priority:1" json:"project_id"`
	Sequence        int64           `gorm:"not null;uniqueIndex:idx_hour_tx_project_seq,priority:2" json:"sequence"`
	RequestID       *uuid.UUID      `gorm:"type:uuid;index" json:"request_id,omitempty"`
	TransactionType TransactionType `gorm:"size:16;not null" json:"transaction_type"`
	Hours           float64         `gorm:"not null" json:"hours"`
	TotalHoursDelta float64         `gorm:"not null;default:0" json:"total_hours_delta"`
	BalanceBefore   float64         `gorm:"not null" json:"balance_before"`
	BalanceAfter    float64         `gorm:"not null" json:"balance_after"`
	ActorID         uuid.UUID       `gorm:"type:uuid;not null" json:"actor_id"`
	ActorName       string          `gorm:"size:128;not null" json:"actor_name"`
	Notes           string          `gorm:"type:text" json:"notes"`
	Metadata        datatypes.JSON  `json:"metadata,omitempty"`
	CreatedAt       time.Time       `gorm:"not null" json:"created_at"`
}

// TableName overrides the table name
func (ProjectHourTransaction) TableName() string {
	return "project_hour_transactions"
}

func (t *ProjectHourTransaction) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

// ProjectFilter narrows ListProjects.
type ProjectFilter struct {
	Status   *workflows.ProjectStatus
	Category *string
	Limit    int
	Offset   int
}

// Models lists the tables this package owns, for migrations.
func Models() []any {
	return []any{&Project{}, &ProjectStatusHistory{}, &ProjectHourTransaction{}}
}
