package projects

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// tolerance for float comparisons on hour columns
const auditEpsilon = 0.005

// BalanceDrift is a project whose cached used hours disagree with its ledger.
type BalanceDrift struct {
	ProjectID   uuid.UUID `db:"id" json:"project_id"`
	Code        string    `db:"code" json:"code"`
	UsedHours   float64   `db:"used_hours" json:"used_hours"`
	LedgerHours float64   `db:"ledger_hours" json:"ledger_hours"`
}

// ChainBreak is a ledger entry whose balances do not chain from the
// previous entry or do not match its own delta.
type ChainBreak struct {
	EntryID       uuid.UUID       `db:"id" json:"entry_id"`
	ProjectID     uuid.UUID       `db:"project_id" json:"project_id"`
	Sequence      int64           `db:"sequence" json:"sequence"`
	Hours         float64         `db:"hours" json:"hours"`
	BalanceBefore float64         `db:"balance_before" json:"balance_before"`
	BalanceAfter  float64         `db:"balance_after" json:"balance_after"`
	PreviousAfter sql.NullFloat64 `db:"prev_after" json:"-"`
}

// AuditReport is the result of one reconciliation pass.
type AuditReport struct {
	CheckedAt   time.Time      `json:"checked_at"`
	Drift       []BalanceDrift `json:"drift"`
	ChainBreaks []ChainBreak   `json:"chain_breaks"`
}

// Clean reports whether the pass found nothing.
func (r *AuditReport) Clean() bool {
	return len(r.Drift) == 0 && len(r.ChainBreaks) == 0
}

// LedgerAuditor cross-checks the ledger against cached project balances
// with plain SQL, outside the ORM that writes them.
type LedgerAuditor struct {
	db     *sqlx.DB
	logger *zap.Logger
}

func NewLedgerAuditor(db *sqlx.DB, logger *zap.Logger) *LedgerAuditor {
	return &LedgerAuditor{db: db, logger: logger}
}

const driftQuery = `
	SELECT p.id, p.code, p.used_hours, COALESCE(SUM(t.hours), 0) AS ledger_hours
	FROM projects p
	LEFT JOIN project_hour_transactions t ON t.project_id = p.id
	GROUP BY p.id, p.code, p.used_hours
	HAVING ABS(p.used_hours - COALESCE(SUM(t.hours), 0)) > ?
	ORDER BY p.code
`

const chainQuery = `
	SELECT id, project_id, sequence, hours, balance_before, balance_after, prev_after
	FROM (
		SELECT id, project_id, sequence, hours, balance_before, balance_after,
			LAG(balance_after) OVER (PARTITION BY project_id ORDER BY sequence) AS prev_after
		FROM project_hour_transactions
	) chain
	WHERE (prev_after IS NULL AND ABS(balance_before) > ?)
		OR (prev_after IS NOT NULL AND ABS(balance_before - prev_after) > ?)
		OR ABS(balance_after - balance_before - hours) > ?
	ORDER BY project_id, sequence
`

// Reconcile runs both checks.
func (a *LedgerAuditor) Reconcile(ctx context.Context) (*AuditReport, error) {
	report := &AuditReport{
		CheckedAt:   time.Now().UTC(),
		Drift:       []BalanceDrift{},
		ChainBreaks: []ChainBreak{},
	}

	if err := a.db.SelectContext(ctx, &report.Drift, a.db.Rebind(driftQuery), auditEpsilon); err != nil {
		return nil, fmt.Errorf("failed to check balance drift: %w", err)
	}
	if err := a.db.SelectContext(ctx, &report.ChainBreaks, a.db.Rebind(chainQuery), auditEpsilon, auditEpsilon, auditEpsilon); err != nil {
		return nil, fmt.Errorf("failed to check ledger chain: %w", err)
	}

	if report.Clean() {
		a.logger.Debug("Ledger audit clean")
	} else {
		a.logger.Warn("Ledger audit found inconsistencies",
			zap.Int("drifted_projects", len(report.Drift)),
			zap.Int("chain_breaks", len(report.ChainBreaks)))
	}
	return report, nil
}
