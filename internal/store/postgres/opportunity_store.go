package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/triarb/internal/domain"
)

// OpportunityStore implements domain.OpportunityStore using PostgreSQL.
type OpportunityStore struct {
	pool *pgxpool.Pool
}

// NewOpportunityStore creates a new OpportunityStore backed by the given
// connection pool.
func NewOpportunityStore(pool *pgxpool.Pool) *OpportunityStore {
	return &OpportunityStore{pool: pool}
}

const oppSelectCols = `id, leg1, leg2, leg3, trade_amount,
	amount1, amount2, amount3, ask1, bid2, bid3,
	profit, profit_pct, simulated, executed, exec_error, detected_at`

// Insert stores a detected opportunity.
func (s *OpportunityStore) Insert(ctx context.Context, opp domain.Opportunity) error {
	const query = `
		INSERT INTO opportunities (
			id, leg1, leg2, leg3, stable, trade_amount,
			amount1, amount2, amount3, ask1, bid2, bid3,
			profit, profit_pct, simulated, executed, exec_error, detected_at
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9, $10, $11, $12,
			$13, $14, $15, $16, $17, $18
		)`

	_, err := s.pool.Exec(ctx, query,
		opp.ID, opp.Cycle[0], opp.Cycle[1], opp.Cycle[2], opp.Cycle.Stable(), opp.TradeAmount,
		opp.Amounts[0], opp.Amounts[1], opp.Amounts[2], opp.Ask1, opp.Bid2, opp.Bid3,
		opp.Profit, opp.ProfitPct, opp.Simulated, opp.Executed, opp.ExecError, opp.DetectedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert opportunity %s: %w", opp.ID, err)
	}
	return nil
}

// ListRecent returns the most recent opportunities ordered by detection time.
func (s *OpportunityStore) ListRecent(ctx context.Context, limit int) ([]domain.Opportunity, error) {
	query := `SELECT ` + oppSelectCols + ` FROM opportunities ORDER BY detected_at DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT $1"
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list recent opportunities: %w", err)
	}
	return collectOpportunities(rows)
}

// ListBefore returns every opportunity detected strictly before the cutoff,
// oldest first.
func (s *OpportunityStore) ListBefore(ctx context.Context, before time.Time) ([]domain.Opportunity, error) {
	query := `SELECT ` + oppSelectCols + ` FROM opportunities WHERE detected_at < $1 ORDER BY detected_at ASC`

	rows, err := s.pool.Query(ctx, query, before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list opportunities before %s: %w", before.Format(time.RFC3339), err)
	}
	return collectOpportunities(rows)
}

func collectOpportunities(rows pgx.Rows) ([]domain.Opportunity, error) {
	defer rows.Close()

	var opps []domain.Opportunity
	for rows.Next() {
		var o domain.Opportunity
		if err := rows.Scan(
			&o.ID, &o.Cycle[0], &o.Cycle[1], &o.Cycle[2], &o.TradeAmount,
			&o.Amounts[0], &o.Amounts[1], &o.Amounts[2], &o.Ask1, &o.Bid2, &o.Bid3,
			&o.Profit, &o.ProfitPct, &o.Simulated, &o.Executed, &o.ExecError, &o.DetectedAt,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan opportunity: %w", err)
		}
		opps = append(opps, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list opportunities rows: %w", err)
	}
	return opps, nil
}

// Compile-time interface check.
var _ domain.OpportunityStore = (*OpportunityStore)(nil)
