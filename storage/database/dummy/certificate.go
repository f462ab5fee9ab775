package dummydb

import (
	"context"
	"sort"
	"strings"

	"github.com/trezcool/sajili/core"
	"github.com/trezcool/sajili/core/certificate"
)

type certificateRepository struct {
	db *certificateTable
}

var _ certificate.Repository = (*certificateRepository)(nil) // interface compliance check

func NewCertificateRepository(db *DB) *certificateRepository {
	return &certificateRepository{db: db.certificate}
}

func stripRelations(cert certificate.Certificate) certificate.Certificate {
	cert.Student, cert.Issuer = nil, nil
	return cert
}

func (repo *certificateRepository) query() []certificate.Certificate {
	certs := make([]certificate.Certificate, 0, len(repo.db.table))
	for _, cert := range repo.db.table {
		certs = append(certs, *cert)
	}
	sort.Slice(certs, func(i, j int) bool { return certs[i].ID > certs[j].ID })
	return certs
}

func (repo *certificateRepository) CreateCertificate(_ context.Context, cert certificate.Certificate) (certificate.Certificate, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	repo.db.seq++
	cert.ID = repo.db.seq
	stored := stripRelations(cert)
	repo.db.table[cert.ID] = &stored
	return cert, nil
}

func (repo *certificateRepository) GetCertificateByID(_ context.Context, id int) (certificate.Certificate, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if cert, ok := repo.db.table[id]; ok {
		return *cert, nil
	}
	return certificate.Certificate{}, certificate.ErrNotFound
}

func (repo *certificateRepository) GetCertificateByNumber(_ context.Context, number string) (certificate.Certificate, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, cert := range repo.db.table {
		if cert.CertificateNumber == number {
			return *cert, nil
		}
	}
	return certificate.Certificate{}, certificate.ErrNotFound
}

func (repo *certificateRepository) GetCertificateByHash(_ context.Context, hash string) (certificate.Certificate, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, cert := range repo.db.table {
		if cert.BlockchainHash.Valid && cert.BlockchainHash.String == hash {
			return *cert, nil
		}
	}
	return certificate.Certificate{}, certificate.ErrNotFound
}

func (repo *certificateRepository) FilterCertificates(
	_ context.Context,
	filter certificate.QueryFilter,
	_ []core.DBOrdering,
	page core.Page,
) ([]certificate.Certificate, int, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	certs := repo.query()

	if filter.Search != "" {
		var filtered []certificate.Certificate
		search := strings.ToLower(filter.Search)
		for _, cert := range certs {
			if strings.Contains(strings.ToLower(cert.CertificateNumber), search) ||
				strings.Contains(strings.ToLower(cert.Title), search) {
				filtered = append(filtered, cert)
			}
		}
		certs = filtered
	}
	if filter.Type != "" {
		var filtered []certificate.Certificate
		for _, cert := range certs {
			if cert.CertificateType == filter.Type {
				filtered = append(filtered, cert)
			}
		}
		certs = filtered
	}
	if filter.StudentID != 0 {
		var filtered []certificate.Certificate
		for _, cert := range certs {
			if cert.StudentID == filter.StudentID {
				filtered = append(filtered, cert)
			}
		}
		certs = filtered
	}
	if !filter.StartDate.IsZero() {
		var filtered []certificate.Certificate
		for _, cert := range certs {
			if !cert.DateIssued.Before(filter.StartDate) {
				filtered = append(filtered, cert)
			}
		}
		certs = filtered
	}
	if !filter.EndDate.IsZero() {
		var filtered []certificate.Certificate
		for _, cert := range certs {
			if !cert.DateIssued.After(filter.EndDate) {
				filtered = append(filtered, cert)
			}
		}
		certs = filtered
	}

	total := len(certs)
	lo := page.Offset()
	if lo > total {
		lo = total
	}
	hi := lo + page.Limit()
	if hi > total {
		hi = total
	}
	return certs[lo:hi], total, nil
}

func (repo *certificateRepository) UpdateCertificate(_ context.Context, cert certificate.Certificate) (certificate.Certificate, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.table[cert.ID]; !ok {
		return certificate.Certificate{}, certificate.ErrNotFound
	}
	stored := stripRelations(cert)
	repo.db.table[cert.ID] = &stored
	return cert, nil
}

func (repo *certificateRepository) DeleteCertificateByID(_ context.Context, id int) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.table[id]; !ok {
		return certificate.ErrNotFound
	}
	delete(repo.db.table, id)
	return nil
}

func (repo *certificateRepository) CertificateStats(_ context.Context) (certificate.Stats, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var stats certificate.Stats
	for _, cert := range repo.db.table {
		stats.TotalCertificates++
		if cert.Registered() {
			stats.VerifiedCertificates++
		}
	}
	stats.PendingCertificates = stats.TotalCertificates - stats.VerifiedCertificates
	return stats, nil
}

func (repo *certificateRepository) CreateVerification(_ context.Context, ver certificate.Verification) (certificate.Verification, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	repo.db.verSeq++
	ver.ID = repo.db.verSeq
	stored := ver
	stored.Certificate = nil
	repo.db.vers[ver.ID] = &stored
	return ver, nil
}

func (repo *certificateRepository) FilterVerifications(
	_ context.Context,
	filter certificate.VerificationFilter,
	_ []core.DBOrdering,
	page core.Page,
) ([]certificate.Verification, int, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	vers := make([]certificate.Verification, 0, len(repo.db.vers))
	for _, ver := range repo.db.vers {
		vers = append(vers, *ver)
	}
	sort.Slice(vers, func(i, j int) bool { return vers[i].VerifiedAt.After(vers[j].VerifiedAt) })

	if filter.Search != "" {
		var filtered []certificate.Verification
		search := strings.ToLower(filter.Search)
		for _, ver := range vers {
			if strings.Contains(strings.ToLower(ver.VerifiedByName), search) {
				filtered = append(filtered, ver)
			}
		}
		vers = filtered
	}
	if filter.CertificateID != 0 {
		var filtered []certificate.Verification
		for _, ver := range vers {
			if ver.CertificateID == filter.CertificateID {
				filtered = append(filtered, ver)
			}
		}
		vers = filtered
	}
	if filter.VerifiedByName != "" {
		var filtered []certificate.Verification
		name := strings.ToLower(filter.VerifiedByName)
		for _, ver := range vers {
			if strings.Contains(strings.ToLower(ver.VerifiedByName), name) {
				filtered = append(filtered, ver)
			}
		}
		vers = filtered
	}
	if !filter.StartDate.IsZero() {
		var filtered []certificate.Verification
		for _, ver := range vers {
			if !ver.VerifiedAt.Before(filter.StartDate) {
				filtered = append(filtered, ver)
			}
		}
		vers = filtered
	}
	if !filter.EndDate.IsZero() {
		var filtered []certificate.Verification
		for _, ver := range vers {
			if !ver.VerifiedAt.After(filter.EndDate) {
				filtered = append(filtered, ver)
			}
		}
		vers = filtered
	}

	total := len(vers)
	lo := page.Offset()
	if lo > total {
		lo = total
	}
	hi := lo + page.Limit()
	if hi > total {
		hi = total
	}
	return vers[lo:hi], total, nil
}

func (repo *certificateRepository) DeleteVerificationByID(_ context.Context, id int) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.vers[id]; !ok {
		return certificate.ErrVerificationNotFound
	}
	delete(repo.db.vers, id)
	return nil
}
