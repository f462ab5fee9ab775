package ledger_test

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/sajili/core"
	"github.com/trezcool/sajili/core/ledger"
	"github.com/trezcool/sajili/core/user"
	dummydb "github.com/trezcool/sajili/storage/database/dummy"
)

type testLogger struct{}

func (testLogger) Debug(string, ...interface{}) {}
func (testLogger) Info(string, ...interface{})  {}
func (testLogger) Warn(string, ...interface{})  {}
func (testLogger) Error(string, ...interface{}) {}
func (testLogger) Fatal(string, ...interface{}) {}

type mailRecorder struct {
	mu       sync.Mutex
	messages []*core.EmailMessage
}

func (m *mailRecorder) SendMessages(messages ...*core.EmailMessage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, messages...)
}

// failingLedgerRepo rejects every transaction write.
type failingLedgerRepo struct {
	ledger.Repository
}

func (failingLedgerRepo) CreateTransaction(context.Context, ledger.Transaction) (ledger.Transaction, error) {
	return ledger.Transaction{}, errors.New("storage offline")
}

// confirmCountingRepo counts how many confirmation swaps actually won.
type confirmCountingRepo struct {
	ledger.Repository
	wins int64
}

func (r *confirmCountingRepo) ConfirmTransaction(ctx context.Context, id int, confirmedAt time.Time) (ledger.Transaction, bool, error) {
	tx, won, err := r.Repository.ConfirmTransaction(ctx, id, confirmedAt)
	if won {
		atomic.AddInt64(&r.wins, 1)
	}
	return tx, won, err
}

const testHash = "a3f18e6c9d4b2a7e5f0c8d1b6a9e4f2c7d0b3a8e5f1c9d6b2a7e4f0c8d1b6a9e"

func setup(t *testing.T, syncConfirm bool) (*ledger.Service, ledger.Repository, user.Repository, *mailRecorder) {
	t.Helper()
	db, err := dummydb.Open()
	if err != nil {
		t.Fatalf("setup() failed: %v", err)
	}
	repo := dummydb.NewLedgerRepository(db)
	usrRepo := dummydb.NewUserRepository(db)
	mails := &mailRecorder{}
	svc := ledger.NewService(repo, user.NewService(usrRepo), testLogger{}, mails, "ops@test.cd", syncConfirm)
	return svc, repo, usrRepo, mails
}

func createUser(t *testing.T, repo user.Repository, name, uname string, roles []string, createdAt time.Time) user.User {
	t.Helper()
	usr := user.User{
		Name:      name,
		Username:  uname,
		Email:     uname + "@test.cd",
		IsActive:  true,
		Roles:     roles,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("createUser() failed: %v", err)
	}
	return usr
}

func teacherUserFunc(id int, err error) ledger.TeacherUserFunc {
	return func(context.Context) (int, error) { return id, err }
}

func TestService_Append_initiatorResolution(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name        string
		actor       ledger.Actor
		teacherUser ledger.TeacherUserFunc
		seedAdmin   bool
		wantOutcome ledger.AppendOutcome
		wantBy      string // actor | teacher | admin
	}{
		{
			name:        "actor wins over everything",
			actor:       ledger.Actor{UserID: 77},
			teacherUser: teacherUserFunc(55, nil),
			seedAdmin:   true,
			wantOutcome: ledger.Appended,
			wantBy:      "actor",
		},
		{
			name:        "teacher user when no actor",
			teacherUser: teacherUserFunc(55, nil),
			seedAdmin:   true,
			wantOutcome: ledger.Appended,
			wantBy:      "teacher",
		},
		{
			name:        "first admin when teacher has no user",
			teacherUser: teacherUserFunc(0, nil),
			seedAdmin:   true,
			wantOutcome: ledger.Appended,
			wantBy:      "admin",
		},
		{
			name:        "first admin when teacher lookup yields not found",
			teacherUser: teacherUserFunc(0, user.ErrNotFound),
			seedAdmin:   true,
			wantOutcome: ledger.Appended,
			wantBy:      "admin",
		},
		{
			name:        "skipped when the chain is exhausted",
			teacherUser: teacherUserFunc(0, nil),
			wantOutcome: ledger.SkippedNoInitiator,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, repo, usrRepo, _ := setup(t, true)

			// the oldest admin must win the fallback, not the newest
			var admin user.User
			if tt.seedAdmin {
				admin = createUser(t, usrRepo, "Old Admin", "old.admin", user.AdminRoles, time.Now().UTC().AddDate(-1, 0, 0))
				createUser(t, usrRepo, "New Admin", "new.admin", user.AdminRoles, time.Now().UTC())
			}
			createUser(t, usrRepo, "Student", "student", user.StudentRoles, time.Now().UTC().AddDate(-2, 0, 0))

			res := svc.Append(ctx, ledger.AppendRequest{
				Hash:        testHash,
				Kind:        ledger.KindAttendanceCreation,
				Actor:       tt.actor,
				TeacherUser: tt.teacherUser,
			})

			if res.Outcome != tt.wantOutcome {
				t.Fatalf("Append() outcome = %v; want %v", res.Outcome, tt.wantOutcome)
			}
			if tt.wantOutcome == ledger.SkippedNoInitiator {
				if errors.Cause(res.Err) != ledger.ErrNoInitiator {
					t.Errorf("Append() err = %v; want ErrNoInitiator", res.Err)
				}
				if txs, _ := repo.QueryNonTerminal(ctx, 10); len(txs) != 0 {
					t.Errorf("a skipped append persisted %d transaction(s)", len(txs))
				}
				if _, err := repo.GetTransactionByID(ctx, 1); errors.Cause(err) != ledger.ErrNotFound {
					t.Errorf("a skipped append persisted a transaction")
				}
				return
			}

			var wantID int
			switch tt.wantBy {
			case "actor":
				wantID = tt.actor.UserID
			case "teacher":
				wantID = 55
			case "admin":
				wantID = admin.ID
			}
			if res.Transaction.InitiatedBy != wantID {
				t.Errorf("InitiatedBy = %d; want %d (%s)", res.Transaction.InitiatedBy, wantID, tt.wantBy)
			}
		})
	}
}

func TestService_Append_statuses(t *testing.T) {
	ctx := context.Background()

	t.Run("sync confirm records terminal transactions", func(t *testing.T) {
		svc, _, _, _ := setup(t, true)
		res := svc.Append(ctx, ledger.AppendRequest{
			Hash:  testHash,
			Kind:  ledger.KindGradeCreation,
			Actor: ledger.Actor{UserID: 1},
		})
		if res.Outcome != ledger.Appended {
			t.Fatalf("Append() outcome = %v; want Appended", res.Outcome)
		}
		if res.Transaction.Status != ledger.StatusConfirmed {
			t.Errorf("Status = %s; want confirmed", res.Transaction.Status)
		}
		if !res.Transaction.ConfirmedAt.Valid {
			t.Error("ConfirmedAt not set on a confirmed transaction")
		}
	})

	t.Run("async mode records pending transactions", func(t *testing.T) {
		svc, _, _, _ := setup(t, false)
		res := svc.Append(ctx, ledger.AppendRequest{
			Hash:  testHash,
			Kind:  ledger.KindGradeCreation,
			Actor: ledger.Actor{UserID: 1},
		})
		if res.Transaction.Status != ledger.StatusPending {
			t.Errorf("Status = %s; want pending", res.Transaction.Status)
		}
		if res.Transaction.ConfirmedAt.Valid {
			t.Error("ConfirmedAt set on a pending transaction")
		}
	})
}

func TestService_Append_storageFailureIsNonFatal(t *testing.T) {
	db, err := dummydb.Open()
	if err != nil {
		t.Fatalf("dummydb.Open() failed: %v", err)
	}
	mails := &mailRecorder{}
	svc := ledger.NewService(
		failingLedgerRepo{dummydb.NewLedgerRepository(db)},
		user.NewService(dummydb.NewUserRepository(db)),
		testLogger{}, mails, "ops@test.cd", true,
	)

	res := svc.Append(context.Background(), ledger.AppendRequest{
		Hash:  testHash,
		Kind:  ledger.KindCertificateCreation,
		Actor: ledger.Actor{UserID: 1},
	})

	if res.Outcome != ledger.Failed {
		t.Fatalf("Append() outcome = %v; want Failed", res.Outcome)
	}
	if res.Err == nil {
		t.Fatal("Append() returned no informational error")
	}
	if len(mails.messages) != 1 {
		t.Fatalf("ops alerts sent = %d; want 1", len(mails.messages))
	}
	if msg := mails.messages[0]; !strings.Contains(msg.BodyStr, testHash) {
		t.Errorf("ops alert does not mention the hash: %q", msg.BodyStr)
	}
}

func TestService_Retry(t *testing.T) {
	ctx := context.Background()

	t.Run("pending transaction is confirmed", func(t *testing.T) {
		svc, _, _, _ := setup(t, false)
		res := svc.Append(ctx, ledger.AppendRequest{Hash: testHash, Kind: ledger.KindAttendanceUpdate, Actor: ledger.Actor{UserID: 1}})

		tx, err := svc.Retry(ctx, res.Transaction.ID)
		if err != nil {
			t.Fatalf("Retry() failed: %v", err)
		}
		if tx.Status != ledger.StatusConfirmed {
			t.Errorf("Status = %s; want confirmed", tx.Status)
		}
		if !tx.ConfirmedAt.Valid {
			t.Error("ConfirmedAt not set")
		}
	})

	t.Run("confirmed transaction is untouched", func(t *testing.T) {
		svc, _, _, _ := setup(t, true)
		res := svc.Append(ctx, ledger.AppendRequest{Hash: testHash, Kind: ledger.KindAttendanceUpdate, Actor: ledger.Actor{UserID: 1}})

		tx, err := svc.Retry(ctx, res.Transaction.ID)
		if err != nil {
			t.Fatalf("Retry() failed: %v", err)
		}
		if !tx.ConfirmedAt.Time.Equal(res.Transaction.ConfirmedAt.Time) {
			t.Errorf("ConfirmedAt changed on retry: %v != %v", tx.ConfirmedAt.Time, res.Transaction.ConfirmedAt.Time)
		}

		// a second retry converges on the same state
		again, err := svc.Retry(ctx, res.Transaction.ID)
		if err != nil {
			t.Fatalf("Retry() failed: %v", err)
		}
		if again.Status != ledger.StatusConfirmed || !again.ConfirmedAt.Time.Equal(tx.ConfirmedAt.Time) {
			t.Error("retry is not idempotent on a confirmed transaction")
		}
	})

	t.Run("invalid stored hash is marked failed", func(t *testing.T) {
		svc, repo, _, _ := setup(t, false)
		now := time.Now().UTC()
		tx, err := repo.CreateTransaction(ctx, ledger.Transaction{
			Hash:        "NOT-A-HASH",
			Kind:        ledger.KindVerification,
			InitiatedBy: 1,
			Status:      ledger.StatusPending,
			SubmittedAt: now,
			CreatedAt:   now,
			UpdatedAt:   now,
		})
		if err != nil {
			t.Fatalf("CreateTransaction() failed: %v", err)
		}

		got, err := svc.Retry(ctx, tx.ID)
		if err != nil {
			t.Fatalf("Retry() failed: %v", err)
		}
		if got.Status != ledger.StatusFailed {
			t.Errorf("Status = %s; want failed", got.Status)
		}
	})

	t.Run("unknown transaction", func(t *testing.T) {
		svc, _, _, _ := setup(t, false)
		if _, err := svc.Retry(ctx, 404); errors.Cause(err) != ledger.ErrNotFound {
			t.Errorf("Retry() err = %v; want ErrNotFound", err)
		}
	})
}

func TestService_Retry_concurrent(t *testing.T) {
	ctx := context.Background()
	db, err := dummydb.Open()
	if err != nil {
		t.Fatalf("dummydb.Open() failed: %v", err)
	}
	repo := &confirmCountingRepo{Repository: dummydb.NewLedgerRepository(db)}
	svc := ledger.NewService(
		repo, user.NewService(dummydb.NewUserRepository(db)),
		testLogger{}, &mailRecorder{}, "", false,
	)

	res := svc.Append(ctx, ledger.AppendRequest{Hash: testHash, Kind: ledger.KindGradeUpdate, Actor: ledger.Actor{UserID: 1}})
	if res.Outcome != ledger.Appended {
		t.Fatalf("Append() outcome = %v; want Appended", res.Outcome)
	}

	const callers = 16
	results := make([]ledger.Transaction, callers)
	errs := make([]error, callers)

	var wg sync.WaitGroup
	wg.Add(callers)
	for i := 0; i < callers; i++ {
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = svc.Retry(ctx, res.Transaction.ID)
		}(i)
	}
	wg.Wait()

	// exactly one caller wins the swap; everyone converges on its state
	if wins := atomic.LoadInt64(&repo.wins); wins != 1 {
		t.Errorf("confirmation swaps won = %d; want 1", wins)
	}
	stored, err := svc.Get(ctx, res.Transaction.ID)
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	for i := 0; i < callers; i++ {
		if errs[i] != nil {
			t.Fatalf("Retry() #%d failed: %v", i, errs[i])
		}
		if results[i].Status != ledger.StatusConfirmed {
			t.Errorf("Retry() #%d status = %s; want confirmed", i, results[i].Status)
		}
		if !results[i].ConfirmedAt.Time.Equal(stored.ConfirmedAt.Time) {
			t.Errorf("Retry() #%d ConfirmedAt = %v; want %v", i, results[i].ConfirmedAt.Time, stored.ConfirmedAt.Time)
		}
	}
}

func TestService_Query_searchMatchesInitiator(t *testing.T) {
	ctx := context.Background()
	svc, _, usrRepo, _ := setup(t, true)

	usr := createUser(t, usrRepo, "Capt Mbuyi", "mbuyi", user.TeacherRoles, time.Now().UTC())
	svc.Append(ctx, ledger.AppendRequest{Hash: testHash, Kind: ledger.KindGradeCreation, Actor: ledger.Actor{UserID: usr.ID}})

	tests := []struct {
		name   string
		search string
		want   int
	}{
		{name: "initiator name", search: "mbuyi", want: 1},
		{name: "initiator email", search: "mbuyi@test.cd", want: 1},
		{name: "hash prefix", search: testHash[:12], want: 1},
		{name: "no match", search: "nosuchperson", want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			txs, _, err := svc.Query(ctx, ledger.QueryFilter{Search: tt.search}, nil, core.Page{})
			if err != nil {
				t.Fatalf("Query() failed: %v", err)
			}
			if len(txs) != tt.want {
				t.Errorf("Query(%q) = %d transactions; want %d", tt.search, len(txs), tt.want)
			}
		})
	}
}

func TestService_RetrySweep(t *testing.T) {
	ctx := context.Background()
	svc, repo, _, _ := setup(t, false)

	for i := 0; i < 3; i++ {
		svc.Append(ctx, ledger.AppendRequest{Hash: testHash, Kind: ledger.KindGradeUpdate, Actor: ledger.Actor{UserID: 1}})
	}
	now := time.Now().UTC()
	if _, err := repo.CreateTransaction(ctx, ledger.Transaction{
		Hash: "bogus", Kind: ledger.KindGradeUpdate, InitiatedBy: 1,
		Status: ledger.StatusPending, SubmittedAt: now, CreatedAt: now, UpdatedAt: now,
	}); err != nil {
		t.Fatalf("CreateTransaction() failed: %v", err)
	}

	confirmed, err := svc.RetrySweep(ctx, 10)
	if err != nil {
		t.Fatalf("RetrySweep() failed: %v", err)
	}
	if confirmed != 3 {
		t.Errorf("RetrySweep() confirmed = %d; want 3", confirmed)
	}

	stats, err := svc.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats() failed: %v", err)
	}
	if stats.ConfirmedCount != 3 || stats.FailedCount != 1 || stats.PendingCount != 0 {
		t.Errorf("Stats() = %+v; want 3 confirmed, 1 failed, 0 pending", stats)
	}
}
