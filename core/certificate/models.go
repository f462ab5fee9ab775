package certificate

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/sajili/core"
	"github.com/trezcool/sajili/core/ledger"
	"github.com/trezcool/sajili/core/school"
)

var (
	// errors
	ErrNotFound             = errors.New("certificate not found")
	ErrVerificationNotFound = errors.New("verification record not found")
)

// Certificate types
const (
	TypeCompletion  = "Completion"
	TypeAchievement = "Achievement"
	TypeMaritime    = "Maritime Certificate"
)

type Certificate struct {
	ID                  int         `json:"id" db:"id"`
	CertificateNumber   string      `json:"certificate_number" db:"certificate_number"`
	StudentID           int         `json:"student_id" db:"student_id"`
	IssuedBy            int         `json:"issued_by" db:"issued_by"` // teacher
	CertificateType     string      `json:"certificate_type" db:"certificate_type"`
	Title               string      `json:"title" db:"title"`
	DateIssued          time.Time   `json:"date_issued" db:"date_issued"`
	BlockchainHash      null.String `json:"blockchain_hash" db:"blockchain_hash"`
	BlockchainTimestamp null.Time   `json:"blockchain_timestamp" db:"blockchain_timestamp"`
	CreatedAt           time.Time   `json:"created_at" db:"created_at"` // UTC
	UpdatedAt           time.Time   `json:"updated_at" db:"updated_at"` // UTC

	// relations (loaded on demand)
	Student *school.Student `json:"student,omitempty" db:"-"`
	Issuer  *school.Teacher `json:"issuer,omitempty" db:"-"`
}

func (c Certificate) Registered() bool { return c.BlockchainHash.Valid }

// Snapshot flattens the certificate and its related names into the
// canonical hashing input. The blockchain stamp columns are excluded so
// stamping does not invalidate the digest. Relations must be loaded
// beforehand; a missing relation serializes its fields as null.
func (c Certificate) Snapshot() ledger.Snapshot {
	var studentName, issuerName string
	if c.Student != nil {
		studentName = c.Student.FullName()
	}
	if c.Issuer != nil {
		issuerName = c.Issuer.FullName()
	}

	s := make(ledger.Snapshot, 12)
	s.SetInt("certificate_id", c.ID)
	s.SetString("certificate_number", c.CertificateNumber)
	s.SetInt("student_id", c.StudentID)
	s.SetString("student_name", studentName)
	s.SetInt("issued_by", c.IssuedBy)
	s.SetString("issuer_name", issuerName)
	s.SetString("certificate_type", c.CertificateType)
	s.SetString("title", c.Title)
	s.SetDate("date_issued", c.DateIssued)
	s.SetTime("created_at", c.CreatedAt)
	s.SetTime("updated_at", c.UpdatedAt)
	// capture time is pinned to the last write so the digest is reproducible
	s.Set("timestamp", c.UpdatedAt.UTC().Unix())
	return s
}

func (c Certificate) Fingerprint() (string, error) {
	return c.Snapshot().Fingerprint()
}

// Verification is one lookup of a certificate by an external party.
// Immutable post-creation.
type Verification struct {
	ID             int       `json:"id" db:"id"`
	CertificateID  int       `json:"certificate_id" db:"certificate_id"`
	VerifiedByName string    `json:"verified_by_name" db:"verified_by_name"`
	VerifiedAt     time.Time `json:"verified_at" db:"verified_at"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"` // UTC
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"` // UTC

	// relations (loaded on demand)
	Certificate *Certificate `json:"certificate,omitempty" db:"-"`
}

// NewCertificate contains information needed to issue a new Certificate.
type NewCertificate struct {
	StudentID       int    `json:"student_id" validate:"required"`
	IssuedBy        int    `json:"issued_by" validate:"required"`
	CertificateType string `json:"certificate_type" validate:"required,oneof='Completion' 'Achievement' 'Maritime Certificate'"`
	Title           string `json:"title" validate:"required"`
	DateIssued      string `json:"date_issued" validate:"required,datetime=2006-01-02"`
}

func (nc *NewCertificate) Validate(validate Validator) error {
	nc.CertificateType = core.CleanString(nc.CertificateType)
	nc.Title = core.CleanString(nc.Title)
	nc.DateIssued = core.CleanString(nc.DateIssued)
	return validate.Struct(nc)
}

// UpdateCertificate contains updatable Certificate fields; empty fields
// are left untouched.
type UpdateCertificate struct {
	StudentID       int    `json:"student_id" validate:"omitempty"`
	IssuedBy        int    `json:"issued_by" validate:"omitempty"`
	CertificateType string `json:"certificate_type" validate:"omitempty,oneof='Completion' 'Achievement' 'Maritime Certificate'"`
	Title           string `json:"title" validate:"omitempty"`
	DateIssued      string `json:"date_issued" validate:"omitempty,datetime=2006-01-02"`
}

func (uc *UpdateCertificate) Validate(validate Validator) error {
	uc.CertificateType = core.CleanString(uc.CertificateType)
	uc.Title = core.CleanString(uc.Title)
	uc.DateIssued = core.CleanString(uc.DateIssued)
	return validate.Struct(uc)
}

// VerifyCertificate is the public verification request.
type VerifyCertificate struct {
	CertificateNumber string `json:"certificate_number" validate:"required"`
	VerifiedByName    string `json:"verified_by_name"`
}

func (vc *VerifyCertificate) Validate(validate Validator) error {
	vc.CertificateNumber = core.CleanString(vc.CertificateNumber)
	vc.VerifiedByName = core.CleanString(vc.VerifiedByName)
	return validate.Struct(vc)
}

// VerifyResult is the outcome of a public verification: the certificate,
// the persisted lookup record and whether the stored fingerprint still
// matches the record.
type VerifyResult struct {
	Certificate  Certificate  `json:"certificate"`
	Verification Verification `json:"verification_record"`
	Matched      bool         `json:"matched"`
}

type QueryFilter struct {
	Search    string    `query:"search"`
	Type      string    `query:"type"`
	StudentID int       `query:"student_id"`
	StartDate time.Time `query:"start_date"`
	EndDate   time.Time `query:"end_date"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.Type = core.CleanString(qf.Type)
}

type VerificationFilter struct {
	Search         string    `query:"search"`
	CertificateID  int       `query:"certificate_id"`
	VerifiedByName string    `query:"verified_by_name"`
	StartDate      time.Time `query:"start_date"`
	EndDate        time.Time `query:"end_date"`
}

func (vf *VerificationFilter) Clean() {
	vf.Search = core.CleanString(vf.Search)
	vf.VerifiedByName = core.CleanString(vf.VerifiedByName)
}

// Stats aggregates the certificate side of /blockchain/stats.
type Stats struct {
	TotalCertificates    int `json:"total_certificates"`
	VerifiedCertificates int `json:"verified_certificates"`
	PendingCertificates  int `json:"pending_certificates"`
}

// Validator is the subset of validator.Validate this package needs.
type Validator interface {
	Struct(s interface{}) error
}

type Repository interface {
	CreateCertificate(ctx context.Context, cert Certificate) (Certificate, error)
	GetCertificateByID(ctx context.Context, id int) (Certificate, error)
	GetCertificateByNumber(ctx context.Context, number string) (Certificate, error)
	// GetCertificateByHash finds the certificate stamped with the given
	// blockchain hash, if any.
	GetCertificateByHash(ctx context.Context, hash string) (Certificate, error)
	// FilterCertificates applies AND on available QueryFilter fields and
	// returns one page plus the unpaged total count.
	// QueryFilter.Search matches number, title or student name.
	FilterCertificates(ctx context.Context, filter QueryFilter, ordering []core.DBOrdering, page core.Page) ([]Certificate, int, error)
	UpdateCertificate(ctx context.Context, cert Certificate) (Certificate, error)
	DeleteCertificateByID(ctx context.Context, id int) error
	// CertificateStats counts all certificates and those carrying a
	// blockchain stamp.
	CertificateStats(ctx context.Context) (Stats, error)

	CreateVerification(ctx context.Context, ver Verification) (Verification, error)
	FilterVerifications(ctx context.Context, filter VerificationFilter, ordering []core.DBOrdering, page core.Page) ([]Verification, int, error)
	DeleteVerificationByID(ctx context.Context, id int) error
}
