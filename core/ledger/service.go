package ledger

import (
	"context"
	"fmt"
	"net/mail"
	"regexp"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/sajili/core"
	"github.com/trezcool/sajili/core/user"
)

var hashRegex = regexp.MustCompile("^[0-9a-f]{64}$")

// AppendOutcome reports what became of an append attempt.
type AppendOutcome int

const (
	// Appended: a transaction row exists for the event.
	Appended AppendOutcome = iota
	// SkippedNoInitiator: no user could be attributed; no row was created.
	SkippedNoInitiator
	// Failed: storage rejected the write; the event has no row.
	Failed
)

// AppendRequest describes one fingerprinting event to record.
type AppendRequest struct {
	Hash        string
	Kind        Kind
	Actor       Actor
	TeacherUser TeacherUserFunc
}

// AppendResult is what Append hands back to domain callers. Err is
// informational; appends never fail the caller's own write.
type AppendResult struct {
	Outcome     AppendOutcome
	Transaction Transaction
	Err         error
}

type (
	Service struct {
		repo        Repository
		resolver    initiatorResolver
		logger      core.Logger
		mailSvc     core.EmailService
		opsEmail    string
		syncConfirm bool
	}
)

func NewService(
	repo Repository,
	users *user.Service,
	logger core.Logger,
	mailSvc core.EmailService,
	opsEmail string,
	syncConfirm bool,
) *Service {
	return &Service{
		repo:        repo,
		resolver:    initiatorResolver{users: users},
		logger:      logger,
		mailSvc:     mailSvc,
		opsEmail:    opsEmail,
		syncConfirm: syncConfirm,
	}
}

// Append records one fingerprinting event. It is deliberately
// non-fatal: whatever goes wrong here is logged and alerted on, never
// propagated, so the domain write that triggered it always stands.
func (svc *Service) Append(ctx context.Context, req AppendRequest) AppendResult {
	initiator, err := svc.resolver.resolve(ctx, req.Actor, req.TeacherUser)
	if err != nil {
		if errors.Cause(err) == ErrNoInitiator {
			svc.logger.Warn(
				"ledger: no initiator resolved, skipping transaction",
				map[string]interface{}{"type": req.Kind},
			)
			return AppendResult{Outcome: SkippedNoInitiator, Err: ErrNoInitiator}
		}
		svc.alertAppendFailure(req, err)
		return AppendResult{Outcome: Failed, Err: err}
	}

	now := time.Now().UTC()
	tx := Transaction{
		Hash:        req.Hash,
		Kind:        req.Kind,
		InitiatedBy: initiator,
		Status:      StatusPending,
		SubmittedAt: now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if svc.syncConfirm {
		tx.Status = StatusConfirmed
		tx.ConfirmedAt = null.TimeFrom(now)
	}

	tx, err = svc.repo.CreateTransaction(ctx, tx)
	if err != nil {
		svc.alertAppendFailure(req, err)
		return AppendResult{Outcome: Failed, Err: err}
	}
	return AppendResult{Outcome: Appended, Transaction: tx}
}

func (svc *Service) alertAppendFailure(req AppendRequest, err error) {
	svc.logger.Error("ledger: recording transaction failed", err,
		map[string]interface{}{"type": req.Kind, "hash": req.Hash},
	)
	if svc.opsEmail == "" {
		return
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:      []mail.Address{{Address: svc.opsEmail}},
		Subject: "Integrity ledger append failure",
		BodyStr: fmt.Sprintf(
			"A %s transaction could not be recorded.\n\nHash: %s\nError: %v\n",
			req.Kind, req.Hash, err,
		),
	})
}

// Get returns one transaction with its initiator loaded.
func (svc *Service) Get(ctx context.Context, id int) (Transaction, error) {
	tx, err := svc.repo.GetTransactionByID(ctx, id)
	if err != nil {
		return Transaction{}, err
	}
	svc.loadInitiator(ctx, &tx)
	return tx, nil
}

// Query returns one page of transactions matching the filter.
func (svc *Service) Query(
	ctx context.Context,
	filter QueryFilter,
	ordering []core.DBOrdering,
	page core.Page,
) ([]Transaction, core.Pagination, error) {
	filter.Clean()
	txs, total, err := svc.repo.FilterTransactions(ctx, filter, ordering, page)
	if err != nil {
		return nil, core.Pagination{}, err
	}
	for i := range txs {
		svc.loadInitiator(ctx, &txs[i])
	}
	return txs, core.NewPagination(page, total), nil
}

func (svc *Service) loadInitiator(ctx context.Context, tx *Transaction) {
	usr, err := svc.resolver.users.GetByID(ctx, tx.InitiatedBy)
	if err != nil {
		// the transaction stands on its own; surface it without the relation
		if errors.Cause(err) != user.ErrNotFound {
			svc.logger.Warn("ledger: loading initiator failed", err)
		}
		return
	}
	tx.Initiator = &usr
}

// Retry drives a transaction towards a terminal state. Confirmed
// transactions are returned untouched; a transaction whose stored hash
// or kind no longer passes validation is marked failed; anything else
// is confirmed via compare-and-swap, so concurrent retries converge on
// a single confirmation and the losers observe the winner's state.
func (svc *Service) Retry(ctx context.Context, id int) (Transaction, error) {
	tx, err := svc.repo.GetTransactionByID(ctx, id)
	if err != nil {
		return Transaction{}, err
	}
	if tx.Terminal() {
		return tx, nil
	}

	if !hashRegex.MatchString(tx.Hash) || !ValidKind(tx.Kind) {
		return svc.repo.MarkTransactionFailed(ctx, tx.ID)
	}

	tx, won, err := svc.repo.ConfirmTransaction(ctx, tx.ID, time.Now().UTC())
	if err != nil {
		return Transaction{}, err
	}
	if !won {
		svc.logger.Debug("ledger: retry lost confirmation race", map[string]interface{}{"id": id})
	}
	return tx, nil
}

// RetrySweep retries up to limit non-terminal transactions and returns
// how many ended up confirmed.
func (svc *Service) RetrySweep(ctx context.Context, limit int) (int, error) {
	txs, err := svc.repo.QueryNonTerminal(ctx, limit)
	if err != nil {
		return 0, err
	}
	var confirmed int
	for _, tx := range txs {
		res, err := svc.Retry(ctx, tx.ID)
		if err != nil {
			svc.logger.Warn("ledger: sweep retry failed", err, map[string]interface{}{"id": tx.ID})
			continue
		}
		if res.Status == StatusConfirmed {
			confirmed++
		}
	}
	return confirmed, nil
}

func (svc *Service) Delete(ctx context.Context, id int) error {
	return svc.repo.DeleteTransactionByID(ctx, id)
}

func (svc *Service) Stats(ctx context.Context) (Stats, error) {
	return svc.repo.TransactionStats(ctx)
}
