package reports

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"sim-portal/project-portal/project-portal-backend/internal/projects"
	"sim-portal/project-portal/project-portal-backend/internal/reports/export"
)

// Statement is a project's ledger as of GeneratedAt.
type Statement struct {
	Project     *projects.Project                 `json:"project"`
	Entries     []projects.ProjectHourTransaction `json:"entries"`
	GeneratedAt time.Time                         `json:"generated_at"`
}

var statementColumns = []export.Column{
	{Key: "sequence", Label: "Seq"},
	{Key: "created_at", Label: "Recorded"},
	{Key: "transaction_type", Label: "Type"},
	{Key: "hours", Label: "Hours"},
	{Key: "total_hours_delta", Label: "Budget Change"},
	{Key: "balance_before", Label: "Used Before"},
	{Key: "balance_after", Label: "Used After"},
	{Key: "request_id", Label: "Request"},
	{Key: "actor_name", Label: "Actor"},
	{Key: "notes", Label: "Notes"},
}

// Table flattens the statement for the exporters.
func (s *Statement) Table() export.Table {
	p := s.Project
	rows := make([]map[string]interface{}, 0, len(s.Entries))
	for _, e := range s.Entries {
		requestID := ""
		if e.RequestID != nil {
			requestID = e.RequestID.String()
		}
		rows = append(rows, map[string]interface{}{
			"sequence":          e.Sequence,
			"created_at":        e.CreatedAt,
			"transaction_type":  string(e.TransactionType),
			"hours":             e.Hours,
			"total_hours_delta": e.TotalHoursDelta,
			"balance_before":    e.BalanceBefore,
			"balance_after":     e.BalanceAfter,
			"request_id":        requestID,
			"actor_name":        e.ActorName,
			"notes":             e.Notes,
		})
	}

	return export.Table{
		Title:    fmt.Sprintf("Hour Ledger %s", p.Code),
		Subtitle: p.Name,
		Summary: []export.SummaryItem{
			{Label: "Status", Value: string(p.Status)},
			{Label: "Total Hours", Value: p.TotalHours},
			{Label: "Used Hours", Value: p.UsedHours},
			{Label: "Available Hours", Value: p.AvailableHours()},
			{Label: "Entries", Value: len(s.Entries)},
			{Label: "Generated At", Value: s.GeneratedAt},
		},
		Columns: statementColumns,
		Rows:    rows,
	}
}

// StatementService builds ledger statements from the project store.
type StatementService struct {
	repo   projects.Repository
	logger *zap.Logger
	now    func() time.Time
}

// NewStatementService creates a statement service.
func NewStatementService(repo projects.Repository, logger *zap.Logger) *StatementService {
	return &StatementService{repo: repo, logger: logger, now: time.Now}
}

// Build loads the project and its ledger entries in sequence order.
func (s *StatementService) Build(ctx context.Context, projectID uuid.UUID) (*Statement, error) {
	project, err := s.repo.GetByID(ctx, projectID)
	if err != nil {
		return nil, err
	}
	entries, err := s.repo.ListTransactions(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return &Statement{
		Project:     project,
		Entries:     entries,
		GeneratedAt: s.now().UTC(),
	}, nil
}

// Filename is the suggested download name for a statement.
func (s *Statement) Filename(ext string) string {
	return fmt.Sprintf("ledger-%s-%s.%s", s.Project.Code, s.GeneratedAt.Format("20060102"), ext)
}
