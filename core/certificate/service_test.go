package certificate_test

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/sajili/core"
	"github.com/trezcool/sajili/core/certificate"
	"github.com/trezcool/sajili/core/ledger"
	"github.com/trezcool/sajili/core/school"
	"github.com/trezcool/sajili/core/user"
	dummydb "github.com/trezcool/sajili/storage/database/dummy"
)

type testLogger struct{}

func (testLogger) Debug(string, ...interface{}) {}
func (testLogger) Info(string, ...interface{})  {}
func (testLogger) Warn(string, ...interface{})  {}
func (testLogger) Error(string, ...interface{}) {}
func (testLogger) Fatal(string, ...interface{}) {}

type noopMail struct{}

func (noopMail) SendMessages(...*core.EmailMessage) {}

type env struct {
	svc        *certificate.Service
	repo       certificate.Repository
	ledgerRepo ledger.Repository
	issuer     school.Teacher
}

func setup(t *testing.T) *env {
	t.Helper()
	db, err := dummydb.Open()
	if err != nil {
		t.Fatalf("setup() failed: %v", err)
	}

	usrRepo := dummydb.NewUserRepository(db)
	schoolRepo := dummydb.NewSchoolRepository(db)
	ledgerRepo := dummydb.NewLedgerRepository(db)
	repo := dummydb.NewCertificateRepository(db)

	issuerUsr, err := usrRepo.CreateUser(context.Background(), user.User{
		Name: "Capt Mbuyi", Username: "mbuyi", Email: "mbuyi@test.cd",
		IsActive: true, Roles: user.TeacherRoles,
		CreatedAt: time.Now().UTC(), UpdatedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("setup() failed: %v", err)
	}

	issuer := schoolRepo.AddTeacher(school.Teacher{ID: 1, UserID: null.IntFrom(issuerUsr.ID), FirstName: "Leo", LastName: "Mbuyi"})
	schoolRepo.AddStudent(school.Student{ID: 1, StudentNumber: "2026-0001", FirstName: "Jane", LastName: "Moyo"})

	ledgerSvc := ledger.NewService(ledgerRepo, user.NewService(usrRepo), testLogger{}, noopMail{}, "", true)
	svc := certificate.NewService(repo, schoolRepo, ledgerSvc, validator.New())

	return &env{svc: svc, repo: repo, ledgerRepo: ledgerRepo, issuer: issuer}
}

func newCert() certificate.NewCertificate {
	return certificate.NewCertificate{
		StudentID:       1,
		IssuedBy:        1,
		CertificateType: certificate.TypeMaritime,
		Title:           "Basic Safety Training",
		DateIssued:      "2026-06-15",
	}
}

func TestNewCertificateNumber(t *testing.T) {
	re := regexp.MustCompile(`^CERT-[0-9A-F]{12}$`)
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		num := certificate.NewCertificateNumber()
		if !re.MatchString(num) {
			t.Fatalf("NewCertificateNumber() = %q; want CERT- + 12 upper hex chars", num)
		}
		if seen[num] {
			t.Fatalf("NewCertificateNumber() repeated %q", num)
		}
		seen[num] = true
	}
}

func TestService_Create_registersOnLedger(t *testing.T) {
	ctx := context.Background()
	te := setup(t)

	cert, res, err := te.svc.Create(ctx, newCert(), ledger.Actor{})
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}

	if !cert.Registered() {
		t.Fatal("created certificate carries no blockchain stamp")
	}
	if !cert.BlockchainTimestamp.Valid {
		t.Error("BlockchainTimestamp not set")
	}
	if res.Outcome != ledger.Appended || res.Transaction.Kind != ledger.KindCertificateCreation {
		t.Errorf("append = %v/%s; want Appended/certificate_creation", res.Outcome, res.Transaction.Kind)
	}
	// no acting user: attribution falls to the issuing teacher's user
	if res.Transaction.InitiatedBy != te.issuer.UserID.Int {
		t.Errorf("InitiatedBy = %d; want issuer user %d", res.Transaction.InitiatedBy, te.issuer.UserID.Int)
	}
	if res.Transaction.Hash != cert.BlockchainHash.String {
		t.Errorf("transaction hash = %s; want stamp %s", res.Transaction.Hash, cert.BlockchainHash.String)
	}

	// the stamp must cover the content, not itself
	current, err := cert.Fingerprint()
	if err != nil {
		t.Fatalf("Fingerprint() failed: %v", err)
	}
	if current != cert.BlockchainHash.String {
		t.Error("stamp does not match the certificate's current fingerprint")
	}
}

func TestService_Verify(t *testing.T) {
	ctx := context.Background()

	t.Run("intact certificate matches", func(t *testing.T) {
		te := setup(t)
		cert, _, err := te.svc.Create(ctx, newCert(), ledger.Actor{})
		if err != nil {
			t.Fatalf("Create() failed: %v", err)
		}

		res, err := te.svc.Verify(ctx, certificate.VerifyCertificate{
			CertificateNumber: cert.CertificateNumber,
			VerifiedByName:    "Port Authority",
		}, ledger.Actor{})
		if err != nil {
			t.Fatalf("Verify() failed: %v", err)
		}

		if !res.Matched {
			t.Error("Matched = false for an untouched certificate")
		}
		if res.Verification.ID == 0 {
			t.Error("verification record not persisted")
		}
		if res.Verification.VerifiedByName != "Port Authority" {
			t.Errorf("VerifiedByName = %q", res.Verification.VerifiedByName)
		}

		// the lookup itself lands on the ledger
		txs, _, err := te.ledgerRepo.FilterTransactions(ctx, ledger.QueryFilter{Kind: ledger.KindVerification}, nil, core.Page{})
		if err != nil {
			t.Fatalf("FilterTransactions() failed: %v", err)
		}
		if len(txs) != 1 {
			t.Errorf("verification transactions = %d; want 1", len(txs))
		}
	})

	t.Run("tampered certificate mismatches but the lookup is still recorded", func(t *testing.T) {
		te := setup(t)
		cert, _, err := te.svc.Create(ctx, newCert(), ledger.Actor{})
		if err != nil {
			t.Fatalf("Create() failed: %v", err)
		}

		// tamper behind the ledger's back, keeping the old stamp
		tampered := cert
		tampered.Title = "Advanced Safety Training"
		tampered.Student, tampered.Issuer = nil, nil
		if _, err := te.repo.UpdateCertificate(ctx, tampered); err != nil {
			t.Fatalf("UpdateCertificate() failed: %v", err)
		}

		res, err := te.svc.Verify(ctx, certificate.VerifyCertificate{
			CertificateNumber: cert.CertificateNumber,
			VerifiedByName:    "Port Authority",
		}, ledger.Actor{})
		if err != nil {
			t.Fatalf("Verify() failed: %v", err)
		}

		if res.Matched {
			t.Error("Matched = true for a tampered certificate")
		}
		if res.Verification.ID == 0 {
			t.Error("mismatched lookup was not persisted")
		}
	})

	t.Run("unregistered certificate never matches", func(t *testing.T) {
		te := setup(t)
		cert, _, err := te.svc.Create(ctx, newCert(), ledger.Actor{})
		if err != nil {
			t.Fatalf("Create() failed: %v", err)
		}

		// strip the stamp
		bare := cert
		bare.BlockchainHash, bare.BlockchainTimestamp = null.String{}, null.Time{}
		bare.Student, bare.Issuer = nil, nil
		if _, err := te.repo.UpdateCertificate(ctx, bare); err != nil {
			t.Fatalf("UpdateCertificate() failed: %v", err)
		}

		res, err := te.svc.Verify(ctx, certificate.VerifyCertificate{CertificateNumber: cert.CertificateNumber}, ledger.Actor{})
		if err != nil {
			t.Fatalf("Verify() failed: %v", err)
		}
		if res.Matched {
			t.Error("Matched = true for an unregistered certificate")
		}
	})

	t.Run("unknown number persists nothing", func(t *testing.T) {
		te := setup(t)
		_, err := te.svc.Verify(ctx, certificate.VerifyCertificate{CertificateNumber: "CERT-DEADBEEF0000"}, ledger.Actor{})
		if errors.Cause(err) != certificate.ErrNotFound {
			t.Fatalf("Verify() err = %v; want ErrNotFound", err)
		}

		vers, total, err := te.svc.Verifications(ctx, certificate.VerificationFilter{}, nil, core.Page{})
		if err != nil {
			t.Fatalf("Verifications() failed: %v", err)
		}
		if total.Total != 0 || len(vers) != 0 {
			t.Errorf("verifications persisted for an unknown number: %d", total.Total)
		}
	})
}

func TestService_Update_restamps(t *testing.T) {
	ctx := context.Background()
	te := setup(t)

	cert, _, err := te.svc.Create(ctx, newCert(), ledger.Actor{UserID: 3})
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	oldStamp := cert.BlockchainHash.String

	updated, res, err := te.svc.Update(ctx, cert.ID, certificate.UpdateCertificate{Title: "Tanker Familiarization"}, ledger.Actor{UserID: 3})
	if err != nil {
		t.Fatalf("Update() failed: %v", err)
	}

	if updated.BlockchainHash.String == oldStamp {
		t.Error("update kept the stale stamp")
	}
	if res.Transaction.Kind != ledger.KindCertificateUpdate {
		t.Errorf("transaction kind = %s; want certificate_update", res.Transaction.Kind)
	}

	// the new stamp verifies
	vres, err := te.svc.Verify(ctx, certificate.VerifyCertificate{CertificateNumber: cert.CertificateNumber}, ledger.Actor{})
	if err != nil {
		t.Fatalf("Verify() failed: %v", err)
	}
	if !vres.Matched {
		t.Error("updated certificate does not verify against its new stamp")
	}
}

func TestService_GetByHash(t *testing.T) {
	ctx := context.Background()
	te := setup(t)

	cert, _, err := te.svc.Create(ctx, newCert(), ledger.Actor{})
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}

	got, err := te.svc.GetByHash(ctx, cert.BlockchainHash.String)
	if err != nil {
		t.Fatalf("GetByHash() failed: %v", err)
	}
	if got.ID != cert.ID {
		t.Errorf("GetByHash() id = %d; want %d", got.ID, cert.ID)
	}

	if _, err := te.svc.GetByHash(ctx, "0000"); errors.Cause(err) != certificate.ErrNotFound {
		t.Errorf("GetByHash() err = %v; want ErrNotFound", err)
	}
}

func TestService_Stats(t *testing.T) {
	ctx := context.Background()
	te := setup(t)

	cert, _, err := te.svc.Create(ctx, newCert(), ledger.Actor{})
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	// one unstamped certificate
	bare := cert
	bare.ID = 0
	bare.CertificateNumber = certificate.NewCertificateNumber()
	bare.BlockchainHash, bare.BlockchainTimestamp = null.String{}, null.Time{}
	bare.Student, bare.Issuer = nil, nil
	if _, err := te.repo.CreateCertificate(ctx, bare); err != nil {
		t.Fatalf("CreateCertificate() failed: %v", err)
	}

	stats, err := te.svc.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats() failed: %v", err)
	}
	want := certificate.Stats{TotalCertificates: 2, VerifiedCertificates: 1, PendingCertificates: 1}
	if stats != want {
		t.Errorf("Stats() = %+v; want %+v", stats, want)
	}
}
