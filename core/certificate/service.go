package certificate

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/sajili/core"
	"github.com/trezcool/sajili/core/ledger"
	"github.com/trezcool/sajili/core/school"
)

type Service struct {
	repo       Repository
	schoolRepo school.Repository
	ledgerSvc  *ledger.Service
	validate   Validator
}

func NewService(repo Repository, schoolRepo school.Repository, ledgerSvc *ledger.Service, validate Validator) *Service {
	return &Service{
		repo:       repo,
		schoolRepo: schoolRepo,
		ledgerSvc:  ledgerSvc,
		validate:   validate,
	}
}

// NewCertificateNumber generates a unique external certificate number.
func NewCertificateNumber() string {
	raw := strings.ReplaceAll(uuid.New().String(), "-", "")
	return "CERT-" + strings.ToUpper(raw[:12])
}

// Create issues a new certificate and registers it on the ledger.
func (svc *Service) Create(ctx context.Context, nc NewCertificate, actor ledger.Actor) (Certificate, ledger.AppendResult, error) {
	if err := nc.Validate(svc.validate); err != nil {
		return Certificate{}, ledger.AppendResult{}, err
	}
	dateIssued, err := time.Parse("2006-01-02", nc.DateIssued)
	if err != nil {
		return Certificate{}, ledger.AppendResult{}, errors.Wrap(err, "parsing issue date")
	}

	now := time.Now().UTC()
	cert := Certificate{
		CertificateNumber: NewCertificateNumber(),
		StudentID:         nc.StudentID,
		IssuedBy:          nc.IssuedBy,
		CertificateType:   nc.CertificateType,
		Title:             nc.Title,
		DateIssued:        dateIssued,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	cert, err = svc.repo.CreateCertificate(ctx, cert)
	if err != nil {
		return Certificate{}, ledger.AppendResult{}, errors.Wrap(err, "creating certificate")
	}

	cert, res := svc.register(ctx, cert, ledger.KindCertificateCreation, actor)
	return cert, res, nil
}

// Update applies changes to a certificate and re-registers it, replacing
// the blockchain stamp with the digest of the new content.
func (svc *Service) Update(ctx context.Context, id int, uc UpdateCertificate, actor ledger.Actor) (Certificate, ledger.AppendResult, error) {
	if err := uc.Validate(svc.validate); err != nil {
		return Certificate{}, ledger.AppendResult{}, err
	}

	cert, err := svc.repo.GetCertificateByID(ctx, id)
	if err != nil {
		return Certificate{}, ledger.AppendResult{}, err
	}
	if uc.StudentID != 0 {
		cert.StudentID = uc.StudentID
		cert.Student = nil
	}
	if uc.IssuedBy != 0 {
		cert.IssuedBy = uc.IssuedBy
		cert.Issuer = nil
	}
	if uc.CertificateType != "" {
		cert.CertificateType = uc.CertificateType
	}
	if uc.Title != "" {
		cert.Title = uc.Title
	}
	if uc.DateIssued != "" {
		dateIssued, err := time.Parse("2006-01-02", uc.DateIssued)
		if err != nil {
			return Certificate{}, ledger.AppendResult{}, errors.Wrap(err, "parsing issue date")
		}
		cert.DateIssued = dateIssued
	}
	cert.UpdatedAt = time.Now().UTC()

	cert, err = svc.repo.UpdateCertificate(ctx, cert)
	if err != nil {
		return Certificate{}, ledger.AppendResult{}, errors.Wrap(err, "updating certificate")
	}

	cert, res := svc.register(ctx, cert, ledger.KindCertificateUpdate, actor)
	return cert, res, nil
}

// Register stamps the certificate with its current fingerprint and
// records the event on the ledger. Re-registering an already stamped
// certificate is recorded as an update.
func (svc *Service) Register(ctx context.Context, id int, actor ledger.Actor) (Certificate, ledger.AppendResult, error) {
	cert, err := svc.repo.GetCertificateByID(ctx, id)
	if err != nil {
		return Certificate{}, ledger.AppendResult{}, err
	}
	kind := ledger.KindCertificateCreation
	if cert.Registered() {
		kind = ledger.KindCertificateUpdate
	}
	cert, res := svc.register(ctx, cert, kind, actor)
	return cert, res, nil
}

// register computes the fingerprint, stamps the certificate and appends
// the transaction. The stamp write deliberately leaves UpdatedAt alone:
// the digest covers UpdatedAt, so bumping it here would break later
// re-verification. A failed stamp or append is reported in the result
// without failing the caller.
func (svc *Service) register(ctx context.Context, cert Certificate, kind ledger.Kind, actor ledger.Actor) (Certificate, ledger.AppendResult) {
	svc.loadRelations(ctx, &cert)
	hash, err := cert.Fingerprint()
	if err != nil {
		return cert, ledger.AppendResult{Outcome: ledger.Failed, Err: err}
	}

	cert.BlockchainHash = null.StringFrom(hash)
	cert.BlockchainTimestamp = null.TimeFrom(time.Now().UTC())
	stamped, err := svc.repo.UpdateCertificate(ctx, cert)
	if err != nil {
		return cert, ledger.AppendResult{Outcome: ledger.Failed, Err: errors.Wrap(err, "stamping certificate")}
	}
	stamped.Student, stamped.Issuer = cert.Student, cert.Issuer

	res := svc.ledgerSvc.Append(ctx, ledger.AppendRequest{
		Hash:        hash,
		Kind:        kind,
		Actor:       actor,
		TeacherUser: svc.issuerUserFunc(stamped),
	})
	return stamped, res
}

// GetByHash finds the certificate stamped with the given hash; used to
// attach certificate context to ledger transactions.
func (svc *Service) GetByHash(ctx context.Context, hash string) (Certificate, error) {
	cert, err := svc.repo.GetCertificateByHash(ctx, hash)
	if err != nil {
		return Certificate{}, err
	}
	svc.loadRelations(ctx, &cert)
	return cert, nil
}

func (svc *Service) Get(ctx context.Context, id int) (Certificate, error) {
	cert, err := svc.repo.GetCertificateByID(ctx, id)
	if err != nil {
		return Certificate{}, err
	}
	svc.loadRelations(ctx, &cert)
	return cert, nil
}

// Query returns one page of certificates matching the filter.
func (svc *Service) Query(
	ctx context.Context,
	filter QueryFilter,
	ordering []core.DBOrdering,
	page core.Page,
) ([]Certificate, core.Pagination, error) {
	filter.Clean()
	certs, total, err := svc.repo.FilterCertificates(ctx, filter, ordering, page)
	if err != nil {
		return nil, core.Pagination{}, err
	}
	for i := range certs {
		svc.loadRelations(ctx, &certs[i])
	}
	return certs, core.NewPagination(page, total), nil
}

func (svc *Service) Delete(ctx context.Context, id int) error {
	return svc.repo.DeleteCertificateByID(ctx, id)
}

// Verify looks a certificate up by its external number, compares its
// current fingerprint against the stored stamp in constant time and
// always persists the lookup, matched or not. An unknown number returns
// ErrNotFound and persists nothing.
func (svc *Service) Verify(ctx context.Context, vc VerifyCertificate, actor ledger.Actor) (VerifyResult, error) {
	if err := vc.Validate(svc.validate); err != nil {
		return VerifyResult{}, err
	}

	cert, err := svc.repo.GetCertificateByNumber(ctx, vc.CertificateNumber)
	if err != nil {
		return VerifyResult{}, err
	}
	svc.loadRelations(ctx, &cert)

	current, err := cert.Fingerprint()
	if err != nil {
		return VerifyResult{}, err
	}
	matched := cert.Registered() && ledger.MatchHash(current, cert.BlockchainHash.String)

	now := time.Now().UTC()
	ver := Verification{
		CertificateID:  cert.ID,
		VerifiedByName: vc.VerifiedByName,
		VerifiedAt:     now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	ver, err = svc.repo.CreateVerification(ctx, ver)
	if err != nil {
		return VerifyResult{}, errors.Wrap(err, "recording verification")
	}

	svc.ledgerSvc.Append(ctx, ledger.AppendRequest{
		Hash:        current,
		Kind:        ledger.KindVerification,
		Actor:       actor,
		TeacherUser: svc.issuerUserFunc(cert),
	})

	ver.Certificate = &cert
	return VerifyResult{Certificate: cert, Verification: ver, Matched: matched}, nil
}

// Verifications returns one page of the verification history.
func (svc *Service) Verifications(
	ctx context.Context,
	filter VerificationFilter,
	ordering []core.DBOrdering,
	page core.Page,
) ([]Verification, core.Pagination, error) {
	filter.Clean()
	vers, total, err := svc.repo.FilterVerifications(ctx, filter, ordering, page)
	if err != nil {
		return nil, core.Pagination{}, err
	}
	for i := range vers {
		if vers[i].Certificate == nil {
			if cert, err := svc.repo.GetCertificateByID(ctx, vers[i].CertificateID); err == nil {
				svc.loadRelations(ctx, &cert)
				vers[i].Certificate = &cert
			}
		}
	}
	return vers, core.NewPagination(page, total), nil
}

func (svc *Service) DeleteVerification(ctx context.Context, id int) error {
	return svc.repo.DeleteVerificationByID(ctx, id)
}

func (svc *Service) Stats(ctx context.Context) (Stats, error) {
	return svc.repo.CertificateStats(ctx)
}

// loadRelations caches the snapshot collaborators on the certificate; a
// missing relation is left nil and hashes as null.
func (svc *Service) loadRelations(ctx context.Context, cert *Certificate) {
	if cert.Student == nil {
		if student, err := svc.schoolRepo.GetStudentByID(ctx, cert.StudentID); err == nil {
			cert.Student = &student
		}
	}
	if cert.Issuer == nil {
		if teacher, err := svc.schoolRepo.GetTeacherByID(ctx, cert.IssuedBy); err == nil {
			cert.Issuer = &teacher
		}
	}
}

// issuerUserFunc resolves the user linked to the issuing teacher;
// (0, nil) when the link is missing.
func (svc *Service) issuerUserFunc(cert Certificate) ledger.TeacherUserFunc {
	return func(ctx context.Context) (int, error) {
		issuer := cert.Issuer
		if issuer == nil {
			teacher, err := svc.schoolRepo.GetTeacherByID(ctx, cert.IssuedBy)
			switch errors.Cause(err) {
			case nil:
				issuer = &teacher
			case school.ErrNotFound:
				return 0, nil
			default:
				return 0, err
			}
		}
		if !issuer.UserID.Valid {
			return 0, nil
		}
		return issuer.UserID.Int, nil
	}
}
