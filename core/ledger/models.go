package ledger

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/sajili/core"
	"github.com/trezcool/sajili/core/user"
)

var (
	// errors
	ErrNotFound    = errors.New("transaction not found")
	ErrNoInitiator = errors.New("no initiator could be resolved")
)

// Transaction lifecycle statuses. Confirmed is terminal: no transition
// ever reverts it to Pending or Failed.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusFailed    Status = "failed"
)

// Transaction kinds, one per fingerprinting event source.
type Kind string

const (
	KindAttendanceCreation  Kind = "attendance_creation"
	KindAttendanceUpdate    Kind = "attendance_update"
	KindGradeCreation       Kind = "grade_creation"
	KindGradeUpdate         Kind = "grade_update"
	KindCertificateCreation Kind = "certificate_creation"
	KindCertificateUpdate   Kind = "certificate_update"
	KindVerification        Kind = "verification"
)

var allKinds = []Kind{
	KindAttendanceCreation, KindAttendanceUpdate,
	KindGradeCreation, KindGradeUpdate,
	KindCertificateCreation, KindCertificateUpdate,
	KindVerification,
}

func ValidKind(k Kind) bool {
	for _, kind := range allKinds {
		if k == kind {
			return true
		}
	}
	return false
}

// Transaction is one fingerprinting event: the digest of a record's
// canonical snapshot, who caused it and its confirmation lifecycle.
// Hash, Kind and InitiatedBy are immutable post-creation; only Status
// and ConfirmedAt may change, through the retry/confirm transition.
type Transaction struct {
	ID          int       `json:"id" db:"id"`
	Hash        string    `json:"transaction_hash" db:"transaction_hash"`
	Kind        Kind      `json:"transaction_type" db:"transaction_type"`
	InitiatedBy int       `json:"initiated_by" db:"initiated_by"`
	Status      Status    `json:"status" db:"status"`
	SubmittedAt time.Time `json:"submitted_at" db:"submitted_at"`
	ConfirmedAt null.Time `json:"confirmed_at" db:"confirmed_at"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`

	// relations (loaded on demand)
	Initiator *user.User `json:"initiator,omitempty" db:"-"`
}

func (tx Transaction) Terminal() bool { return tx.Status == StatusConfirmed }

// ProcessingTime is the submitted→confirmed delta in seconds, nil while
// unconfirmed.
func (tx Transaction) ProcessingTime() *float64 {
	if !tx.ConfirmedAt.Valid {
		return nil
	}
	secs := tx.ConfirmedAt.Time.Sub(tx.SubmittedAt).Seconds()
	return &secs
}

type QueryFilter struct {
	Search string `query:"search"`
	Status Status `query:"status"`
	Kind   Kind   `query:"type"`
	UserID int    `query:"user_id"`
	Recent bool   `query:"recent"`
	Days   int    `query:"days"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	if qf.Recent && qf.Days <= 0 {
		qf.Days = 7
	}
}

// Since returns the lower submitted_at bound of the filter, zero when the
// recent flag is off.
func (qf QueryFilter) Since() time.Time {
	if !qf.Recent {
		return time.Time{}
	}
	return time.Now().UTC().AddDate(0, 0, -qf.Days)
}

// Stats aggregates the transaction side of /blockchain/stats.
type Stats struct {
	TotalTransactions     int          `json:"total_transactions"`
	PendingCount          int          `json:"pending_count"`
	ConfirmedCount        int          `json:"confirmed_count"`
	FailedCount           int          `json:"failed_count"`
	SuccessRate           float64      `json:"success_rate"`
	AverageProcessingTime null.Float64 `json:"average_processing_time"`
}

type Repository interface {
	CreateTransaction(ctx context.Context, tx Transaction) (Transaction, error)
	GetTransactionByID(ctx context.Context, id int) (Transaction, error)
	// FilterTransactions applies AND on available QueryFilter fields and
	// returns one page plus the unpaged total count.
	// QueryFilter.Search matches hash, kind or initiator name/email.
	FilterTransactions(ctx context.Context, filter QueryFilter, ordering []core.DBOrdering, page core.Page) ([]Transaction, int, error)
	// ConfirmTransaction transitions a non-confirmed transaction to
	// confirmed via compare-and-swap on status. The returned bool reports
	// whether this caller won the swap; either way the current row is
	// returned, so a losing caller observes the winner's state.
	ConfirmTransaction(ctx context.Context, id int, confirmedAt time.Time) (Transaction, bool, error)
	// MarkTransactionFailed moves a pending transaction to failed; it never
	// touches a confirmed one.
	MarkTransactionFailed(ctx context.Context, id int) (Transaction, error)
	QueryNonTerminal(ctx context.Context, limit int) ([]Transaction, error)
	DeleteTransactionByID(ctx context.Context, id int) error
	TransactionStats(ctx context.Context) (Stats, error)
}
