package dummydb

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/sajili/core"
	"github.com/trezcool/sajili/core/ledger"
)

type ledgerRepository struct {
	db    *transactionTable
	users *userTable
}

var _ ledger.Repository = (*ledgerRepository)(nil) // interface compliance check

func NewLedgerRepository(db *DB) *ledgerRepository {
	return &ledgerRepository{db: db.transaction, users: db.user}
}

func (repo *ledgerRepository) query() []ledger.Transaction {
	txs := make([]ledger.Transaction, 0, len(repo.db.table))
	for _, tx := range repo.db.table {
		txs = append(txs, *tx)
	}
	sort.Slice(txs, func(i, j int) bool { return txs[i].SubmittedAt.After(txs[j].SubmittedAt) })
	return txs
}

func (repo *ledgerRepository) CreateTransaction(_ context.Context, tx ledger.Transaction) (ledger.Transaction, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	repo.db.seq++
	tx.ID = repo.db.seq
	repo.db.table[tx.ID] = &tx
	return tx, nil
}

func (repo *ledgerRepository) GetTransactionByID(_ context.Context, id int) (ledger.Transaction, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if tx, ok := repo.db.table[id]; ok {
		return *tx, nil
	}
	return ledger.Transaction{}, ledger.ErrNotFound
}

func (repo *ledgerRepository) FilterTransactions(
	_ context.Context,
	filter ledger.QueryFilter,
	_ []core.DBOrdering,
	page core.Page,
) ([]ledger.Transaction, int, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	txs := repo.query()

	if filter.Search != "" {
		var filtered []ledger.Transaction
		search := strings.ToLower(filter.Search)
		for _, tx := range txs {
			if strings.Contains(strings.ToLower(tx.Hash), search) ||
				strings.Contains(strings.ToLower(string(tx.Kind)), search) ||
				repo.matchInitiator(tx.InitiatedBy, search) {
				filtered = append(filtered, tx)
			}
		}
		txs = filtered
	}
	if filter.Status != "" {
		var filtered []ledger.Transaction
		for _, tx := range txs {
			if tx.Status == filter.Status {
				filtered = append(filtered, tx)
			}
		}
		txs = filtered
	}
	if filter.Kind != "" {
		var filtered []ledger.Transaction
		for _, tx := range txs {
			if tx.Kind == filter.Kind {
				filtered = append(filtered, tx)
			}
		}
		txs = filtered
	}
	if filter.UserID != 0 {
		var filtered []ledger.Transaction
		for _, tx := range txs {
			if tx.InitiatedBy == filter.UserID {
				filtered = append(filtered, tx)
			}
		}
		txs = filtered
	}
	if since := filter.Since(); !since.IsZero() {
		var filtered []ledger.Transaction
		for _, tx := range txs {
			if !tx.SubmittedAt.Before(since) {
				filtered = append(filtered, tx)
			}
		}
		txs = filtered
	}

	total := len(txs)
	lo := page.Offset()
	if lo > total {
		lo = total
	}
	hi := lo + page.Limit()
	if hi > total {
		hi = total
	}
	return txs[lo:hi], total, nil
}

// matchInitiator mirrors the SQL search over the initiator's name and
// email.
func (repo *ledgerRepository) matchInitiator(userID int, search string) bool {
	repo.users.RLock()
	defer repo.users.RUnlock()

	usr, ok := repo.users.table[userID]
	if !ok {
		return false
	}
	return strings.Contains(strings.ToLower(usr.Name), search) ||
		strings.Contains(strings.ToLower(usr.Email), search)
}

func (repo *ledgerRepository) ConfirmTransaction(_ context.Context, id int, confirmedAt time.Time) (ledger.Transaction, bool, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	tx, ok := repo.db.table[id]
	if !ok {
		return ledger.Transaction{}, false, ledger.ErrNotFound
	}
	if tx.Status == ledger.StatusConfirmed {
		return *tx, false, nil
	}
	tx.Status = ledger.StatusConfirmed
	tx.ConfirmedAt = null.TimeFrom(confirmedAt)
	tx.UpdatedAt = time.Now().UTC()
	return *tx, true, nil
}

func (repo *ledgerRepository) MarkTransactionFailed(_ context.Context, id int) (ledger.Transaction, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	tx, ok := repo.db.table[id]
	if !ok {
		return ledger.Transaction{}, ledger.ErrNotFound
	}
	if tx.Status != ledger.StatusConfirmed {
		tx.Status = ledger.StatusFailed
		tx.UpdatedAt = time.Now().UTC()
	}
	return *tx, nil
}

func (repo *ledgerRepository) QueryNonTerminal(_ context.Context, limit int) ([]ledger.Transaction, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	txs := repo.query()
	sort.Slice(txs, func(i, j int) bool { return txs[i].SubmittedAt.Before(txs[j].SubmittedAt) })

	nonTerminal := make([]ledger.Transaction, 0, limit)
	for _, tx := range txs {
		if tx.Terminal() {
			continue
		}
		nonTerminal = append(nonTerminal, tx)
		if len(nonTerminal) == limit {
			break
		}
	}
	return nonTerminal, nil
}

func (repo *ledgerRepository) DeleteTransactionByID(_ context.Context, id int) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.table[id]; !ok {
		return ledger.ErrNotFound
	}
	delete(repo.db.table, id)
	return nil
}

func (repo *ledgerRepository) TransactionStats(_ context.Context) (ledger.Stats, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var stats ledger.Stats
	var procSum float64
	var procCount int
	for _, tx := range repo.db.table {
		stats.TotalTransactions++
		switch tx.Status {
		case ledger.StatusPending:
			stats.PendingCount++
		case ledger.StatusConfirmed:
			stats.ConfirmedCount++
		case ledger.StatusFailed:
			stats.FailedCount++
		}
		if secs := tx.ProcessingTime(); secs != nil {
			procSum += *secs
			procCount++
		}
	}
	if stats.TotalTransactions > 0 {
		stats.SuccessRate = float64(stats.ConfirmedCount) / float64(stats.TotalTransactions) * 100
	}
	if procCount > 0 {
		stats.AverageProcessingTime = null.Float64From(procSum / float64(procCount))
	}
	return stats, nil
}
