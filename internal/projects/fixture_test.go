package projects

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"sim-portal/project-portal/project-portal-backend/internal/auth"
	"sim-portal/project-portal/project-portal-backend/internal/database"
	"sim-portal/project-portal/project-portal-backend/pkg/workflows"
)

var (
	manager  = auth.Actor{ID: uuid.New(), Name: "Mia Manager", Role: auth.RoleManager}
	engineer = auth.Actor{ID: uuid.New(), Name: "Ed Engineer", Role: auth.RoleEngineer}
)

type fixture struct {
	db      *database.DB
	repo    Repository
	engine  *Engine
	ledger  *Ledger
	service ProjectService
	auditor *LedgerAuditor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "portal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.Migrate(db.Gorm, Models()...))

	logger := zap.NewNop()
	repo := NewRepository(db.Gorm)
	return &fixture{
		db:      db,
		repo:    repo,
		engine:  NewEngine(db.Gorm, repo, nil, logger),
		ledger:  NewLedger(db.Gorm, repo, nil, logger),
		service: NewProjectService(db.Gorm, repo, logger),
		auditor: NewLedgerAuditor(db.SQL, logger),
	}
}

// seed inserts a project directly in the given status with no history.
func (f *fixture) seed(t *testing.T, status workflows.ProjectStatus, totalHours float64) *Project {
	t.Helper()
	now := time.Now().UTC()
	p := &Project{
		Name:          "Wing load study",
		Code:          "P-" + uuid.NewString()[:8],
		Status:        status,
		TotalHours:    totalHours,
		Priority:      PriorityMedium,
		CreatedByID:   manager.ID,
		CreatedByName: manager.Name,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	require.NoError(t, f.repo.Create(context.Background(), p))
	return p
}

func (f *fixture) reload(t *testing.T, id uuid.UUID) *Project {
	t.Helper()
	p, err := f.repo.GetByID(context.Background(), id)
	require.NoError(t, err)
	return p
}

func (f *fixture) history(t *testing.T, id uuid.UUID) []ProjectStatusHistory {
	t.Helper()
	h, err := f.repo.ListHistory(context.Background(), id)
	require.NoError(t, err)
	return h
}

func (f *fixture) entries(t *testing.T, id uuid.UUID) []ProjectHourTransaction {
	t.Helper()
	e, err := f.repo.ListTransactions(context.Background(), id)
	require.NoError(t, err)
	return e
}

// requireLedgerConsistent checks the cached balance against the ledger.
func (f *fixture) requireLedgerConsistent(t *testing.T, id uuid.UUID) {
	t.Helper()
	p := f.reload(t, id)
	entries := f.entries(t, id)

	var sum, prevAfter float64
	for i, e := range entries {
		require.Equal(t, int64(i+1), e.Sequence)
		require.InDelta(t, prevAfter, e.BalanceBefore, 1e-9, "entry %d does not chain", e.Sequence)
		require.InDelta(t, e.BalanceBefore+e.Hours, e.BalanceAfter, 1e-9)
		sum += e.Hours
		prevAfter = e.BalanceAfter
	}
	require.InDelta(t, sum, p.UsedHours, 1e-9)
	require.Equal(t, int64(len(entries)), p.LedgerSequence)
}
