package sqlxrepos

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/sajili/core"
	"github.com/trezcool/sajili/core/certificate"
)

type certificateRepository struct {
	db *sqlx.DB
}

var _ certificate.Repository = (*certificateRepository)(nil) // interface compliance check

func NewCertificateRepository(db *sqlx.DB) *certificateRepository {
	return &certificateRepository{db: db}
}

const certColumns = `c.id, c.certificate_number, c.student_id, c.issued_by, c.certificate_type,
	c.title, c.date_issued, c.blockchain_hash, c.blockchain_timestamp, c.created_at, c.updated_at`

// trapNoRowsErr maps psql "no rows" err to the given sentinel
func trapNoRowsErr(err, sentinel error, msg string) error {
	if err == sql.ErrNoRows {
		return sentinel
	}
	return errors.Wrap(err, msg)
}

func (repo certificateRepository) CreateCertificate(ctx context.Context, cert certificate.Certificate) (certificate.Certificate, error) {
	q := `
		INSERT INTO certificates
			(certificate_number, student_id, issued_by, certificate_type, title, date_issued,
			 blockchain_hash, blockchain_timestamp, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id`
	err := repo.db.QueryRowContext(
		ctx, q,
		cert.CertificateNumber, cert.StudentID, cert.IssuedBy, cert.CertificateType,
		cert.Title, cert.DateIssued, cert.BlockchainHash, cert.BlockchainTimestamp,
		cert.CreatedAt, cert.UpdatedAt,
	).Scan(&cert.ID)
	if err != nil {
		return certificate.Certificate{}, errors.Wrap(err, "inserting certificate")
	}
	return cert, nil
}

func (repo certificateRepository) GetCertificateByID(ctx context.Context, id int) (certificate.Certificate, error) {
	var cert certificate.Certificate
	q := `SELECT ` + certColumns + ` FROM certificates c WHERE c.id = $1`
	if err := repo.db.GetContext(ctx, &cert, q, id); err != nil {
		return certificate.Certificate{}, trapNoRowsErr(err, certificate.ErrNotFound, "finding certificate")
	}
	return cert, nil
}

func (repo certificateRepository) GetCertificateByNumber(ctx context.Context, number string) (certificate.Certificate, error) {
	var cert certificate.Certificate
	q := `SELECT ` + certColumns + ` FROM certificates c WHERE c.certificate_number = $1`
	if err := repo.db.GetContext(ctx, &cert, q, number); err != nil {
		return certificate.Certificate{}, trapNoRowsErr(err, certificate.ErrNotFound, "finding certificate by number")
	}
	return cert, nil
}

func (repo certificateRepository) GetCertificateByHash(ctx context.Context, hash string) (certificate.Certificate, error) {
	var cert certificate.Certificate
	q := `SELECT ` + certColumns + ` FROM certificates c WHERE c.blockchain_hash = $1`
	if err := repo.db.GetContext(ctx, &cert, q, hash); err != nil {
		return certificate.Certificate{}, trapNoRowsErr(err, certificate.ErrNotFound, "finding certificate by hash")
	}
	return cert, nil
}

func (repo certificateRepository) FilterCertificates(
	ctx context.Context,
	filter certificate.QueryFilter,
	ordering []core.DBOrdering,
	page core.Page,
) ([]certificate.Certificate, int, error) {
	var conds []string
	var args []interface{}

	arg := func(val interface{}) string {
		args = append(args, val)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.Search != "" {
		p := arg("%" + filter.Search + "%")
		conds = append(conds, fmt.Sprintf(
			"(c.certificate_number ILIKE %[1]s OR c.title ILIKE %[1]s OR s.first_name ILIKE %[1]s OR s.last_name ILIKE %[1]s)", p))
	}
	if filter.Type != "" {
		conds = append(conds, "c.certificate_type = "+arg(filter.Type))
	}
	if filter.StudentID != 0 {
		conds = append(conds, "c.student_id = "+arg(filter.StudentID))
	}
	if !filter.StartDate.IsZero() {
		conds = append(conds, "c.date_issued >= "+arg(filter.StartDate))
	}
	if !filter.EndDate.IsZero() {
		conds = append(conds, "c.date_issued <= "+arg(filter.EndDate))
	}

	from := ` FROM certificates c LEFT JOIN students s ON s.id = c.student_id`
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := repo.db.GetContext(ctx, &total, "SELECT COUNT(*)"+from+where, args...); err != nil {
		return nil, 0, errors.Wrap(err, "counting certificates")
	}

	orderBy := " ORDER BY c.date_issued DESC, c.id DESC"
	if len(ordering) > 0 {
		orderList := make([]string, 0, len(ordering))
		for _, ord := range ordering {
			orderList = append(orderList, "c."+ord.String())
		}
		orderBy = " ORDER BY " + strings.Join(orderList, ", ")
	}

	q := "SELECT " + certColumns + from + where + orderBy +
		fmt.Sprintf(" LIMIT %d OFFSET %d", page.Limit(), page.Offset())

	certs := make([]certificate.Certificate, 0, page.Limit())
	if err := repo.db.SelectContext(ctx, &certs, q, args...); err != nil {
		return nil, 0, errors.Wrap(err, "querying certificates")
	}
	return certs, total, nil
}

func (repo certificateRepository) UpdateCertificate(ctx context.Context, cert certificate.Certificate) (certificate.Certificate, error) {
	q := `
		UPDATE certificates
		SET student_id = $2, issued_by = $3, certificate_type = $4, title = $5, date_issued = $6,
		    blockchain_hash = $7, blockchain_timestamp = $8, updated_at = $9
		WHERE id = $1`
	res, err := repo.db.ExecContext(
		ctx, q,
		cert.ID, cert.StudentID, cert.IssuedBy, cert.CertificateType, cert.Title, cert.DateIssued,
		cert.BlockchainHash, cert.BlockchainTimestamp, cert.UpdatedAt,
	)
	if err != nil {
		return certificate.Certificate{}, errors.Wrap(err, "updating certificate")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return certificate.Certificate{}, certificate.ErrNotFound
	}
	return cert, nil
}

func (repo certificateRepository) DeleteCertificateByID(ctx context.Context, id int) error {
	res, err := repo.db.ExecContext(ctx, `DELETE FROM certificates WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "deleting certificate")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return certificate.ErrNotFound
	}
	return nil
}

func (repo certificateRepository) CertificateStats(ctx context.Context) (certificate.Stats, error) {
	var row struct {
		Total    int `db:"total"`
		Verified int `db:"verified"`
	}
	q := `
		SELECT COUNT(*) AS total,
			COUNT(*) FILTER (WHERE blockchain_hash IS NOT NULL) AS verified
		FROM certificates`
	if err := repo.db.GetContext(ctx, &row, q); err != nil {
		return certificate.Stats{}, errors.Wrap(err, "aggregating certificate stats")
	}
	return certificate.Stats{
		TotalCertificates:    row.Total,
		VerifiedCertificates: row.Verified,
		PendingCertificates:  row.Total - row.Verified,
	}, nil
}

func (repo certificateRepository) CreateVerification(ctx context.Context, ver certificate.Verification) (certificate.Verification, error) {
	q := `
		INSERT INTO certificate_verifications (certificate_id, verified_by_name, verified_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`
	err := repo.db.QueryRowContext(
		ctx, q,
		ver.CertificateID, ver.VerifiedByName, ver.VerifiedAt, ver.CreatedAt, ver.UpdatedAt,
	).Scan(&ver.ID)
	if err != nil {
		return certificate.Verification{}, errors.Wrap(err, "inserting verification")
	}
	return ver, nil
}

func (repo certificateRepository) FilterVerifications(
	ctx context.Context,
	filter certificate.VerificationFilter,
	ordering []core.DBOrdering,
	page core.Page,
) ([]certificate.Verification, int, error) {
	var conds []string
	var args []interface{}

	arg := func(val interface{}) string {
		args = append(args, val)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.Search != "" {
		p := arg("%" + filter.Search + "%")
		conds = append(conds, fmt.Sprintf(
			"(v.verified_by_name ILIKE %[1]s OR c.certificate_number ILIKE %[1]s OR c.title ILIKE %[1]s)", p))
	}
	if filter.CertificateID != 0 {
		conds = append(conds, "v.certificate_id = "+arg(filter.CertificateID))
	}
	if filter.VerifiedByName != "" {
		conds = append(conds, "v.verified_by_name ILIKE "+arg("%"+filter.VerifiedByName+"%"))
	}
	if !filter.StartDate.IsZero() {
		conds = append(conds, "v.verified_at >= "+arg(filter.StartDate))
	}
	if !filter.EndDate.IsZero() {
		conds = append(conds, "v.verified_at <= "+arg(filter.EndDate))
	}

	from := ` FROM certificate_verifications v LEFT JOIN certificates c ON c.id = v.certificate_id`
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := repo.db.GetContext(ctx, &total, "SELECT COUNT(*)"+from+where, args...); err != nil {
		return nil, 0, errors.Wrap(err, "counting verifications")
	}

	orderBy := " ORDER BY v.verified_at DESC"
	if len(ordering) > 0 {
		orderList := make([]string, 0, len(ordering))
		for _, ord := range ordering {
			orderList = append(orderList, "v."+ord.String())
		}
		orderBy = " ORDER BY " + strings.Join(orderList, ", ")
	}

	q := `SELECT v.id, v.certificate_id, v.verified_by_name, v.verified_at, v.created_at, v.updated_at` +
		from + where + orderBy +
		fmt.Sprintf(" LIMIT %d OFFSET %d", page.Limit(), page.Offset())

	vers := make([]certificate.Verification, 0, page.Limit())
	if err := repo.db.SelectContext(ctx, &vers, q, args...); err != nil {
		return nil, 0, errors.Wrap(err, "querying verifications")
	}
	return vers, total, nil
}

func (repo certificateRepository) DeleteVerificationByID(ctx context.Context, id int) error {
	res, err := repo.db.ExecContext(ctx, `DELETE FROM certificate_verifications WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "deleting verification")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return certificate.ErrVerificationNotFound
	}
	return nil
}
