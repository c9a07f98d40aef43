package projects

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"sim-portal/project-portal/project-portal-backend/pkg/workflows"
)

// Repository is the persistence boundary for projects, their status history
// and their hour ledger.
type Repository interface {
	// WithTx returns a repository bound to tx.
	WithTx(tx *gorm.DB) Repository

	Create(ctx context.Context, project *Project) error
	GetByID(ctx context.Context, id uuid.UUID) (*Project, error)
	GetByCode(ctx context.Context, code string) (*Project, error)
	// LockByID reads the project under an exclusive row lock. It must be
	// called on a repository bound to a transaction.
	LockByID(ctx context.Context, id uuid.UUID) (*Project, error)
	Update(ctx context.Context, project *Project) error
	List(ctx context.Context, filter ProjectFilter) ([]*Project, error)
	ListExpirable(ctx context.Context, before time.Time) ([]*Project, error)

	CreateHistory(ctx context.Context, history *ProjectStatusHistory) error
	ListHistory(ctx context.Context, projectID uuid.UUID) ([]ProjectStatusHistory, error)

	AppendTransaction(ctx context.Context, entry *ProjectHourTransaction) error
	ListTransactions(ctx context.Context, projectID uuid.UUID) ([]ProjectHourTransaction, error)
	SumRequestHours(ctx context.Context, projectID, requestID uuid.UUID) (float64, error)
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a gorm-backed repository.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) WithTx(tx *gorm.DB) Repository {
	return &gormRepository{db: tx}
}

func (r *gormRepository) Create(ctx context.Context, project *Project) error {
	if err := r.db.WithContext(ctx).Create(project).Error; err != nil {
		return fmt.Errorf("failed to create project: %w", err)
	}
	return nil
}

func (r *gormRepository) GetByID(ctx context.Context, id uuid.UUID) (*Project, error) {
	var project Project
	err := r.db.WithContext(ctx).First(&project, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, workflows.NotFound("project", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	return &project, nil
}

func (r *gormRepository) GetByCode(ctx context.Context, code string) (*Project, error) {
	var project Project
	err := r.db.WithContext(ctx).First(&project, "code = ?", code).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get project by code: %w", err)
	}
	return &project, nil
}

func (r *gormRepository) LockByID(ctx context.Context, id uuid.UUID) (*Project, error) {
	var project Project
	err := ForUpdate(r.db.WithContext(ctx)).First(&project, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, workflows.NotFound("project", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock project: %w", err)
	}
	return &project, nil
}

func (r *gormRepository) Update(ctx context.Context, project *Project) error {
	if err := r.db.WithContext(ctx).Save(project).Error; err != nil {
		return fmt.Errorf("failed to update project: %w", err)
	}
	return nil
}

func (r *gormRepository) List(ctx context.Context, filter ProjectFilter) ([]*Project, error) {
	q := r.db.WithContext(ctx).Model(&Project{})
	if filter.Status != nil {
		q = q.Where("status = ?", *filter.Status)
	}
	if filter.Category != nil {
		q = q.Where("category = ?", *filter.Category)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		q = q.Offset(filter.Offset)
	}

	var projects []*Project
	if err := q.Order("created_at DESC").Find(&projects).Error; err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	return projects, nil
}

func (r *gormRepository) ListExpirable(ctx context.Context, before time.Time) ([]*Project, error) {
	var projects []*Project
	err := r.db.WithContext(ctx).
		Where("status IN ? AND deadline IS NOT NULL AND deadline < ?", workflows.ExpirableStatuses, before).
		Order("deadline ASC").
		Find(&projects).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list expirable projects: %w", err)
	}
	return projects, nil
}

// CreateHistory numbers the entry after the project's last one. Callers
// hold the project row lock, which serializes the numbering.
func (r *gormRepository) CreateHistory(ctx context.Context, history *ProjectStatusHistory) error {
	var last int64
	err := r.db.WithContext(ctx).
		Model(&ProjectStatusHistory{}).
		Select("COALESCE(MAX(sequence), 0)").
		Where("project_id = ?", history.ProjectID).
		Scan(&last).Error
	if err != nil {
		return fmt.Errorf("failed to number status history: %w", err)
	}
	history.Sequence = last + 1
	if err := r.db.WithContext(ctx).Create(history).Error; err != nil {
		return fmt.Errorf("failed to create status history: %w", err)
	}
	return nil
}

func (r *gormRepository) ListHistory(ctx context.Context, projectID uuid.UUID) ([]ProjectStatusHistory, error) {
	var history []ProjectStatusHistory
	err := r.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("sequence ASC").
		Find(&history).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list status history: %w", err)
	}
	return history, nil
}

func (r *gormRepository) AppendTransaction(ctx context.Context, entry *ProjectHourTransaction) error {
	if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("failed to append hour transaction: %w", err)
	}
	return nil
}

func (r *gormRepository) ListTransactions(ctx context.Context, projectID uuid.UUID) ([]ProjectHourTransaction, error) {
	var entries []ProjectHourTransaction
	err := r.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("sequence ASC").
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list hour transactions: %w", err)
	}
	return entries, nil
}

func (r *gormRepository) SumRequestHours(ctx context.Context, projectID, requestID uuid.UUID) (float64, error) {
	var total float64
	err := r.db.WithContext(ctx).
		Model(&ProjectHourTransaction{}).
		Select("COALESCE(SUM(hours), 0)").
		Where("project_id = ? AND request_id = ?", projectID, requestID).
		Scan(&total).Error
	if err != nil {
		return 0, fmt.Errorf("failed to sum request hours: %w", err)
	}
	return roundHours(total), nil
}

// ForUpdate adds an exclusive row lock to q. SQLite has no row locks; it
// serializes writers on the whole database instead, so the clause is
// skipped there.
func ForUpdate(q *gorm.DB) *gorm.DB {
	if q.Dialector != nil && q.Dialector.Name() == "sqlite" {
		return q
	}
	return q.Clauses(clause.Locking{Strength: "UPDATE"})
}
