package sqlxrepos

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/sajili/core"
	"github.com/trezcool/sajili/core/ledger"
)

type ledgerRepository struct {
	db *sqlx.DB
}

var _ ledger.Repository = (*ledgerRepository)(nil) // interface compliance check

func NewLedgerRepository(db *sqlx.DB) *ledgerRepository {
	return &ledgerRepository{db: db}
}

const txColumns = `t.id, t.transaction_hash, t.transaction_type, t.initiated_by, t.status,
	t.submitted_at, t.confirmed_at, t.created_at, t.updated_at`

// trapNoRowsErr maps psql "no rows" err to ledger.ErrNotFound
func (repo ledgerRepository) trapNoRowsErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return ledger.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo ledgerRepository) CreateTransaction(ctx context.Context, tx ledger.Transaction) (ledger.Transaction, error) {
	q := `
		INSERT INTO blockchain_transactions
			(transaction_hash, transaction_type, initiated_by, status, submitted_at, confirmed_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`
	err := repo.db.QueryRowContext(
		ctx, q,
		tx.Hash, tx.Kind, tx.InitiatedBy, tx.Status, tx.SubmittedAt, tx.ConfirmedAt, tx.CreatedAt, tx.UpdatedAt,
	).Scan(&tx.ID)
	if err != nil {
		return ledger.Transaction{}, errors.Wrap(err, "inserting transaction")
	}
	return tx, nil
}

func (repo ledgerRepository) GetTransactionByID(ctx context.Context, id int) (ledger.Transaction, error) {
	var tx ledger.Transaction
	q := `SELECT ` + txColumns + ` FROM blockchain_transactions t WHERE t.id = $1`
	if err := repo.db.GetContext(ctx, &tx, q, id); err != nil {
		return ledger.Transaction{}, repo.trapNoRowsErr(err, "finding transaction")
	}
	return tx, nil
}

// filterClauses builds the WHERE conditions and args shared by the page
// and count queries. The initiator join only matters for search.
func (repo ledgerRepository) filterClauses(filter ledger.QueryFilter) ([]string, []interface{}) {
	var conds []string
	var args []interface{}

	arg := func(val interface{}) string {
		args = append(args, val)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.Search != "" {
		p := arg("%" + filter.Search + "%")
		conds = append(conds, fmt.Sprintf(
			"(t.transaction_hash ILIKE %[1]s OR t.transaction_type ILIKE %[1]s OR u.name ILIKE %[1]s OR u.email ILIKE %[1]s)", p))
	}
	if filter.Status != "" {
		conds = append(conds, "t.status = "+arg(filter.Status))
	}
	if filter.Kind != "" {
		conds = append(conds, "t.transaction_type = "+arg(filter.Kind))
	}
	if filter.UserID != 0 {
		conds = append(conds, "t.initiated_by = "+arg(filter.UserID))
	}
	if since := filter.Since(); !since.IsZero() {
		conds = append(conds, "t.submitted_at >= "+arg(since))
	}
	return conds, args
}

func (repo ledgerRepository) FilterTransactions(
	ctx context.Context,
	filter ledger.QueryFilter,
	ordering []core.DBOrdering,
	page core.Page,
) ([]ledger.Transaction, int, error) {
	conds, args := repo.filterClauses(filter)

	from := ` FROM blockchain_transactions t LEFT JOIN users u ON u.id = t.initiated_by`
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := repo.db.GetContext(ctx, &total, "SELECT COUNT(*)"+from+where, args...); err != nil {
		return nil, 0, errors.Wrap(err, "counting transactions")
	}

	orderBy := " ORDER BY t.submitted_at DESC"
	if len(ordering) > 0 {
		orderList := make([]string, 0, len(ordering))
		for _, ord := range ordering {
			orderList = append(orderList, "t."+ord.String())
		}
		orderBy = " ORDER BY " + strings.Join(orderList, ", ")
	}

	q := "SELECT " + txColumns + from + where + orderBy +
		fmt.Sprintf(" LIMIT %d OFFSET %d", page.Limit(), page.Offset())

	txs := make([]ledger.Transaction, 0, page.Limit())
	if err := repo.db.SelectContext(ctx, &txs, q, args...); err != nil {
		return nil, 0, errors.Wrap(err, "querying transactions")
	}
	return txs, total, nil
}

func (repo ledgerRepository) ConfirmTransaction(ctx context.Context, id int, confirmedAt time.Time) (ledger.Transaction, bool, error) {
	// compare-and-swap on status: only one concurrent caller flips the row
	q := `
		UPDATE blockchain_transactions
		SET status = $2, confirmed_at = $3, updated_at = $4
		WHERE id = $1 AND status <> $2`
	res, err := repo.db.ExecContext(ctx, q, id, ledger.StatusConfirmed, confirmedAt, time.Now().UTC())
	if err != nil {
		return ledger.Transaction{}, false, errors.Wrap(err, "confirming transaction")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return ledger.Transaction{}, false, errors.Wrap(err, "confirming transaction")
	}

	tx, err := repo.GetTransactionByID(ctx, id)
	if err != nil {
		return ledger.Transaction{}, false, err
	}
	return tx, n > 0, nil
}

func (repo ledgerRepository) MarkTransactionFailed(ctx context.Context, id int) (ledger.Transaction, error) {
	q := `
		UPDATE blockchain_transactions
		SET status = $2, updated_at = $3
		WHERE id = $1 AND status <> $4`
	_, err := repo.db.ExecContext(ctx, q, id, ledger.StatusFailed, time.Now().UTC(), ledger.StatusConfirmed)
	if err != nil {
		return ledger.Transaction{}, errors.Wrap(err, "failing transaction")
	}
	return repo.GetTransactionByID(ctx, id)
}

func (repo ledgerRepository) QueryNonTerminal(ctx context.Context, limit int) ([]ledger.Transaction, error) {
	q := `SELECT ` + txColumns + ` FROM blockchain_transactions t
		WHERE t.status <> $1 ORDER BY t.submitted_at LIMIT $2`
	txs := make([]ledger.Transaction, 0, limit)
	if err := repo.db.SelectContext(ctx, &txs, q, ledger.StatusConfirmed, limit); err != nil {
		return nil, errors.Wrap(err, "querying non-terminal transactions")
	}
	return txs, nil
}

func (repo ledgerRepository) DeleteTransactionByID(ctx context.Context, id int) error {
	res, err := repo.db.ExecContext(ctx, `DELETE FROM blockchain_transactions WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "deleting transaction")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ledger.ErrNotFound
	}
	return nil
}

func (repo ledgerRepository) TransactionStats(ctx context.Context) (ledger.Stats, error) {
	var row struct {
		Total         int             `db:"total"`
		Pending       int             `db:"pending"`
		Confirmed     int             `db:"confirmed"`
		Failed        int             `db:"failed"`
		AvgProcessing sql.NullFloat64 `db:"avg_processing"`
	}
	q := `
		SELECT COUNT(*) AS total,
			COUNT(*) FILTER (WHERE status = 'pending') AS pending,
			COUNT(*) FILTER (WHERE status = 'confirmed') AS confirmed,
			COUNT(*) FILTER (WHERE status = 'failed') AS failed,
			AVG(EXTRACT(EPOCH FROM confirmed_at - submitted_at)) FILTER (WHERE confirmed_at IS NOT NULL) AS avg_processing
		FROM blockchain_transactions`
	if err := repo.db.GetContext(ctx, &row, q); err != nil {
		return ledger.Stats{}, errors.Wrap(err, "aggregating transaction stats")
	}

	stats := ledger.Stats{
		TotalTransactions:     row.Total,
		PendingCount:          row.Pending,
		ConfirmedCount:        row.Confirmed,
		FailedCount:           row.Failed,
		AverageProcessingTime: null.NewFloat64(row.AvgProcessing.Float64, row.AvgProcessing.Valid),
	}
	if row.Total > 0 {
		stats.SuccessRate = math.Round(float64(row.Confirmed)/float64(row.Total)*10000) / 100
	}
	return stats, nil
}
