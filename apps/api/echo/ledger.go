package echoapi

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/sajili/core/certificate"
	"github.com/trezcool/sajili/core/ledger"
)

type blockchainAPI struct {
	ledgerSvc *ledger.Service
	certSvc   *certificate.Service
}

func registerBlockchainAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	ledgerSvc *ledger.Service,
	certSvc *certificate.Service,
) {
	api := blockchainAPI{ledgerSvc: ledgerSvc, certSvc: certSvc}

	bg := g.Group("/blockchain")

	// public verification portal
	bg.POST("/verify", api.verifyCertificate)

	ag := bg.Group("", jwt, adminMiddleware)
	ag.GET("/stats", api.stats)

	ag.GET("/transactions", api.transactionList)
	ag.GET("/transactions/:id", api.transactionDetail)
	ag.POST("/transactions/:id/retry", api.transactionRetry)
	ag.DELETE("/transactions/:id", api.transactionDelete)

	ag.GET("/certificates", api.certificateList)
	ag.POST("/certificates", api.certificateCreate)
	ag.GET("/certificates/:id", api.certificateDetail)
	ag.PUT("/certificates/:id", api.certificateUpdate)
	ag.DELETE("/certificates/:id", api.certificateDelete)
	ag.POST("/certificates/:id/register", api.certificateRegister)

	ag.GET("/verifications", api.verificationList)
	ag.DELETE("/verifications/:id", api.verificationDelete)
}

func pathID(ctx echo.Context) (int, error) {
	id, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

// transactionPayload decorates a transaction with its derived processing
// time and, when requested, the certificate stamped with its hash.
type transactionPayload struct {
	ledger.Transaction
	ProcessingTimeSeconds *float64                 `json:"processing_time_seconds"`
	Certificate           *certificate.Certificate `json:"certificate,omitempty"`
}

func newTransactionPayload(tx ledger.Transaction) transactionPayload {
	return transactionPayload{Transaction: tx, ProcessingTimeSeconds: tx.ProcessingTime()}
}

// combinedStats is the /blockchain/stats body: the transaction and
// certificate aggregates side by side.
type combinedStats struct {
	ledger.Stats
	TotalCertificates    int `json:"total_certificates"`
	VerifiedCertificates int `json:"verified_certificates"`
	PendingCertificates  int `json:"pending_certificates"`
}

func (api *blockchainAPI) stats(ctx echo.Context) error {
	txStats, err := api.ledgerSvc.Stats(ctx.Request().Context())
	if err != nil {
		return err
	}
	certStats, err := api.certSvc.Stats(ctx.Request().Context())
	if err != nil {
		return err
	}
	return respond(ctx, http.StatusOK, combinedStats{
		Stats:                txStats,
		TotalCertificates:    certStats.TotalCertificates,
		VerifiedCertificates: certStats.VerifiedCertificates,
		PendingCertificates:  certStats.PendingCertificates,
	})
}

var transactionSortColumns = map[string]string{
	"submitted_at":     "submitted_at",
	"confirmed_at":     "confirmed_at",
	"status":           "status",
	"transaction_type": "transaction_type",
	"created_at":       "created_at",
}

func (api *blockchainAPI) transactionList(ctx echo.Context) error {
	var params ListParams
	if err := params.Bind(ctx); err != nil {
		return err
	}
	var filter ledger.QueryFilter
	if err := ctx.Bind(&filter); err != nil {
		return err
	}

	txs, pagination, err := api.ledgerSvc.Query(
		ctx.Request().Context(), filter, params.Ordering(transactionSortColumns), params.PageRequest())
	if err != nil {
		return err
	}

	payload := make([]transactionPayload, 0, len(txs))
	for _, tx := range txs {
		payload = append(payload, newTransactionPayload(tx))
	}
	return respondPage(ctx, http.StatusOK, payload, pagination)
}

func (api *blockchainAPI) transactionDetail(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	tx, err := api.ledgerSvc.Get(ctx.Request().Context(), id)
	if err != nil {
		return err
	}

	payload := newTransactionPayload(tx)
	cert, err := api.certSvc.GetByHash(ctx.Request().Context(), tx.Hash)
	switch errors.Cause(err) {
	case nil:
		payload.Certificate = &cert
	case certificate.ErrNotFound: // not a certificate transaction
	default:
		return err
	}
	return respond(ctx, http.StatusOK, payload)
}

func (api *blockchainAPI) transactionRetry(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	tx, err := api.ledgerSvc.Retry(ctx.Request().Context(), id)
	if err != nil {
		return err
	}
	return respondMsg(ctx, http.StatusOK, newTransactionPayload(tx), "transaction retried")
}

func (api *blockchainAPI) transactionDelete(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	if err := api.ledgerSvc.Delete(ctx.Request().Context(), id); err != nil {
		return err
	}
	return respondMsg(ctx, http.StatusOK, nil, "transaction deleted")
}
