package requests

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"sim-portal/project-portal/project-portal-backend/internal/projects"
	"sim-portal/project-portal/project-portal-backend/pkg/workflows"
)

// Repository persists requests, their history and their discussions.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	Create(ctx context.Context, req *SimRequest) error
	GetByID(ctx context.Context, id uuid.UUID) (*SimRequest, error)
	LockByID(ctx context.Context, id uuid.UUID) (*SimRequest, error)
	Save(ctx context.Context, req *SimRequest) error
	// UpdateIfStatus applies updates only while the request is still in
	// from, returning the number of rows changed.
	UpdateIfStatus(ctx context.Context, id uuid.UUID, from workflows.RequestStatus, updates map[string]any) (int64, error)
	List(ctx context.Context, filter RequestFilter) ([]*SimRequest, error)

	CreateHistory(ctx context.Context, history *RequestStatusHistory) error
	ListHistory(ctx context.Context, requestID uuid.UUID) ([]RequestStatusHistory, error)

	CreateDiscussion(ctx context.Context, d *DiscussionRequest) error
	GetDiscussion(ctx context.Context, id uuid.UUID) (*DiscussionRequest, error)
	CountPendingDiscussions(ctx context.Context, requestID uuid.UUID) (int64, error)
	ListDiscussions(ctx context.Context, requestID uuid.UUID) ([]DiscussionRequest, error)
	// ResolveDiscussion moves a Pending discussion to its outcome. Zero rows
	// means someone else resolved it first.
	ResolveDiscussion(ctx context.Context, d *DiscussionRequest) (int64, error)
}

type gormRepository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) WithTx(tx *gorm.DB) Repository {
	return &gormRepository{db: tx}
}

func (r *gormRepository) Create(ctx context.Context, req *SimRequest) error {
	if err := r.db.WithContext(ctx).Create(req).Error; err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	return nil
}

func (r *gormRepository) GetByID(ctx context.Context, id uuid.UUID) (*SimRequest, error) {
	return r.get(r.db.WithContext(ctx), id)
}

func (r *gormRepository) LockByID(ctx context.Context, id uuid.UUID) (*SimRequest, error) {
	return r.get(projects.ForUpdate(r.db.WithContext(ctx)), id)
}

func (r *gormRepository) get(q *gorm.DB, id uuid.UUID) (*SimRequest, error) {
	var req SimRequest
	err := q.First(&req, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, workflows.NotFound("request", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get request: %w", err)
	}
	return &req, nil
}

func (r *gormRepository) Save(ctx context.Context, req *SimRequest) error {
	if err := r.db.WithContext(ctx).Save(req).Error; err != nil {
		return fmt.Errorf("failed to save request: %w", err)
	}
	return nil
}

func (r *gormRepository) UpdateIfStatus(ctx context.Context, id uuid.UUID, from workflows.RequestStatus, updates map[string]any) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&SimRequest{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return 0, fmt.Errorf("failed to update request: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func (r *gormRepository) List(ctx context.Context, filter RequestFilter) ([]*SimRequest, error) {
	q := r.db.WithContext(ctx).Model(&SimRequest{})
	if filter.Status != nil {
		q = q.Where("status = ?", *filter.Status)
	}
	if filter.ProjectID != nil {
		q = q.Where("project_id = ?", *filter.ProjectID)
	}
	if filter.AssigneeID != nil {
		q = q.Where("assignee_id = ?", *filter.AssigneeID)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		q = q.Offset(filter.Offset)
	}

	var reqs []*SimRequest
	if err := q.Order("created_at DESC").Find(&reqs).Error; err != nil {
		return nil, fmt.Errorf("failed to list requests: %w", err)
	}
	return reqs, nil
}

// CreateHistory numbers the entry after the request's last one. Callers
// hold the request row lock, which serializes the numbering.
func (r *gormRepository) CreateHistory(ctx context.Context, history *RequestStatusHistory) error {
	var last int64
	err := r.db.WithContext(ctx).
		Model(&RequestStatusHistory{}).
		Select("COALESCE(MAX(sequence), 0)").
		Where("request_id = ?", history.RequestID).
		Scan(&last).Error
	if err != nil {
		return fmt.Errorf("failed to number request history: %w", err)
	}
	history.Sequence = last + 1
	if err := r.db.WithContext(ctx).Create(history).Error; err != nil {
		return fmt.Errorf("failed to create request history: %w", err)
	}
	return nil
}

func (r *gormRepository) ListHistory(ctx context.Context, requestID uuid.UUID) ([]RequestStatusHistory, error) {
	var history []RequestStatusHistory
	err := r.db.WithContext(ctx).
		Where("request_id = ?", requestID).
		Order("sequence ASC").
		Find(&history).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list request history: %w", err)
	}
	return history, nil
}

func (r *gormRepository) CreateDiscussion(ctx context.Context, d *DiscussionRequest) error {
	if err := r.db.WithContext(ctx).Create(d).Error; err != nil {
		return fmt.Errorf("failed to create discussion: %w", err)
	}
	return nil
}

func (r *gormRepository) GetDiscussion(ctx context.Context, id uuid.UUID) (*DiscussionRequest, error) {
	var d DiscussionRequest
	err := r.db.WithContext(ctx).First(&d, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, workflows.NotFound("discussion", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get discussion: %w", err)
	}
	return &d, nil
}

func (r *gormRepository) CountPendingDiscussions(ctx context.Context, requestID uuid.UUID) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&DiscussionRequest{}).
		Where("request_id = ? AND status = ?", requestID, DiscussionPending).
		Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count pending discussions: %w", err)
	}
	return n, nil
}

func (r *gormRepository) ListDiscussions(ctx context.Context, requestID uuid.UUID) ([]DiscussionRequest, error) {
	var ds []DiscussionRequest
	err := r.db.WithContext(ctx).
		Where("request_id = ?", requestID).
		Order("created_at ASC").
		Find(&ds).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list discussions: %w", err)
	}
	return ds, nil
}

func (r *gormRepository) ResolveDiscussion(ctx context.Context, d *DiscussionRequest) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&DiscussionRequest{}).
		Where("id = ? AND status = ?", d.ID, DiscussionPending).
		Updates(map[string]any{
			"status":           d.Status,
			"reviewer_id":      d.ReviewerID,
			"reviewer_name":    d.ReviewerName,
			"manager_response": d.ManagerResponse,
			"allocated_hours":  d.AllocatedHours,
			"reviewed_at":      d.ReviewedAt,
			"updated_at":       d.UpdatedAt,
		})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to resolve discussion: %w", res.Error)
	}
	return res.RowsAffected, nil
}
