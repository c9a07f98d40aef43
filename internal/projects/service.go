package projects

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"sim-portal/project-portal/project-portal-backend/internal/auth"
	"sim-portal/project-portal/project-portal-backend/pkg/workflows"
)

// Requests

type CreateProjectRequest struct {
	Name        string     `json:"name" binding:"required"`
	Code        string     `json:"code" binding:"required"`
	Description string     `json:"description"`
	TotalHours  float64    `json:"total_hours"`
	Priority    Priority   `json:"priority"`
	Category    string     `json:"category"`
	Deadline    *time.Time `json:"deadline"`
}

type UpdateProjectRequest struct {
	Name        *string    `json:"name"`
	Description *string    `json:"description"`
	Priority    *Priority  `json:"priority"`
	Category    *string    `json:"category"`
	Deadline    *time.Time `json:"deadline"`
}

// ProjectService covers project reads and the edits that do not go through
// the transition engine or the ledger.
type ProjectService interface {
	CreateProject(ctx context.Context, req CreateProjectRequest, actor auth.Actor) (*Project, error)
	GetProject(ctx context.Context, id uuid.UUID) (*Project, error)
	UpdateProject(ctx context.Context, id uuid.UUID, req UpdateProjectRequest, actor auth.Actor) (*Project, error)
	ListProjects(ctx context.Context, filter ProjectFilter) ([]*Project, error)
	GetStatusHistory(ctx context.Context, id uuid.UUID) ([]ProjectStatusHistory, error)
}

type projectService struct {
	db     *gorm.DB
	repo   Repository
	logger *zap.Logger
	now    func() time.Time
}

func NewProjectService(db *gorm.DB, repo Repository, logger *zap.Logger) ProjectService {
	return &projectService{
		db:     db,
		repo:   repo,
		logger: logger,
		now:    time.Now,
	}
}

func (s *projectService) CreateProject(ctx context.Context, req CreateProjectRequest, actor auth.Actor) (*Project, error) {
	name := strings.TrimSpace(req.Name)
	code := strings.ToUpper(strings.TrimSpace(req.Code))
	if name == "" || code == "" {
		return nil, workflows.NewError(workflows.KindValidation, workflows.CodeInvalidInput, "name and code are required")
	}
	total, err := finiteHours(req.TotalHours)
	if err != nil {
		return nil, err
	}
	if total < 0 {
		return nil, workflows.NewError(workflows.KindValidation, workflows.CodeInvalidAmount, "total hours cannot be negative")
	}
	priority := req.Priority
	if priority == "" {
		priority = PriorityMedium
	}
	if !validPriority(priority) {
		return nil, workflows.NewError(workflows.KindValidation, workflows.CodeInvalidInput, "unknown priority "+string(priority))
	}

	// Managers open projects directly; everyone else proposes them.
	status := workflows.ProjectPending
	if actor.IsManager() {
		status = workflows.ProjectActive
	}

	now := s.now().UTC()
	project := &Project{
		Name:          name,
		Code:          code,
		Description:   req.Description,
		Status:        status,
		TotalHours:    total,
		Priority:      priority,
		Category:      strings.TrimSpace(req.Category),
		Deadline:      utcPtr(req.Deadline),
		CreatedByID:   actor.ID,
		CreatedByName: actor.Name,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		existing, err := repo.GetByCode(ctx, code)
		if err != nil {
			return err
		}
		if existing != nil {
			return workflows.NewError(workflows.KindConflict, workflows.CodeDuplicateCode, "project code "+code+" already exists")
		}
		if err := repo.Create(ctx, project); err != nil {
			return err
		}
		return repo.CreateHistory(ctx, &ProjectStatusHistory{
			ProjectID: project.ID,
			ToStatus:  status,
			ActorID:   actor.ID,
			ActorName: actor.Name,
			Metadata:  encodeMetadata(nil),
			CreatedAt: now,
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Project created",
		zap.String("project_id", project.ID.String()),
		zap.String("code", project.Code),
		zap.String("status", string(project.Status)),
		zap.String("actor", actor.Name))
	return project, nil
}

func (s *projectService) GetProject(ctx context.Context, id uuid.UUID) (*Project, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *projectService) UpdateProject(ctx context.Context, id uuid.UUID, req UpdateProjectRequest, actor auth.Actor) (*Project, error) {
	var project *Project
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		var err error
		project, err = repo.LockByID(ctx, id)
		if err != nil {
			return err
		}
		if project.Status == workflows.ProjectArchived {
			return workflows.NewError(workflows.KindResource, workflows.CodeProjectNotActive, "archived projects cannot be edited")
		}

		if req.Name != nil {
			name := strings.TrimSpace(*req.Name)
			if name == "" {
				return workflows.NewError(workflows.KindValidation, workflows.CodeInvalidInput, "name cannot be empty")
			}
			project.Name = name
		}
		if req.Description != nil {
			project.Description = *req.Description
		}
		if req.Priority != nil {
			if !validPriority(*req.Priority) {
				return workflows.NewError(workflows.KindValidation, workflows.CodeInvalidInput, "unknown priority "+string(*req.Priority))
			}
			project.Priority = *req.Priority
		}
		if req.Category != nil {
			project.Category = strings.TrimSpace(*req.Category)
		}
		if req.Deadline != nil {
			project.Deadline = utcPtr(req.Deadline)
		}
		project.UpdatedAt = s.now().UTC()

		return repo.Update(ctx, project)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Project updated",
		zap.String("project_id", project.ID.String()),
		zap.String("actor", actor.Name))
	return project, nil
}

func (s *projectService) ListProjects(ctx context.Context, filter ProjectFilter) ([]*Project, error) {
	if filter.Status != nil {
		if _, err := workflows.ParseProjectStatus(string(*filter.Status)); err != nil {
			return nil, err
		}
	}
	return s.repo.List(ctx, filter)
}

func (s *projectService) GetStatusHistory(ctx context.Context, id uuid.UUID) ([]ProjectStatusHistory, error) {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return s.repo.ListHistory(ctx, id)
}

func validPriority(p Priority) bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	}
	return false
}

// deadlines are stored in UTC so range scans compare like with like
func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
