package echoapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/sajili/core/certificate"
)

var certificateSortColumns = map[string]string{
	"certificate_number": "certificate_number",
	"certificate_type":   "certificate_type",
	"title":              "title",
	"date_issued":        "date_issued",
	"created_at":         "created_at",
}

var verificationSortColumns = map[string]string{
	"verified_at":      "verified_at",
	"verified_by_name": "verified_by_name",
	"created_at":       "created_at",
}

// queryDate parses an optional Y-m-d query param; a malformed value is
// treated as absent.
func queryDate(ctx echo.Context, name string) time.Time {
	t, _ := time.Parse("2006-01-02", ctx.QueryParam(name))
	return t
}

func queryInt(ctx echo.Context, name string) int {
	n, _ := strconv.Atoi(ctx.QueryParam(name))
	return n
}

func (api *blockchainAPI) certificateList(ctx echo.Context) error {
	var params ListParams
	if err := params.Bind(ctx); err != nil {
		return err
	}
	filter := certificate.QueryFilter{
		Search:    ctx.QueryParam("search"),
		Type:      ctx.QueryParam("type"),
		StudentID: queryInt(ctx, "student_id"),
		StartDate: queryDate(ctx, "start_date"),
		EndDate:   queryDate(ctx, "end_date"),
	}

	certs, pagination, err := api.certSvc.Query(
		ctx.Request().Context(), filter, params.Ordering(certificateSortColumns), params.PageRequest())
	if err != nil {
		return err
	}
	return respondPage(ctx, http.StatusOK, certs, pagination)
}

func (api *blockchainAPI) certificateCreate(ctx echo.Context) error {
	var nc certificate.NewCertificate
	if err := ctx.Bind(&nc); err != nil {
		return err
	}
	cert, _, err := api.certSvc.Create(ctx.Request().Context(), nc, actorFromContext(ctx))
	if err != nil {
		return err
	}
	return respondMsg(ctx, http.StatusCreated, cert, "certificate created")
}

func (api *blockchainAPI) certificateDetail(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	cert, err := api.certSvc.Get(ctx.Request().Context(), id)
	if err != nil {
		return err
	}
	return respond(ctx, http.StatusOK, cert)
}

func (api *blockchainAPI) certificateUpdate(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	var uc certificate.UpdateCertificate
	if err := ctx.Bind(&uc); err != nil {
		return err
	}
	cert, _, err := api.certSvc.Update(ctx.Request().Context(), id, uc, actorFromContext(ctx))
	if err != nil {
		return err
	}
	return respondMsg(ctx, http.StatusOK, cert, "certificate updated")
}

func (api *blockchainAPI) certificateDelete(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	if err := api.certSvc.Delete(ctx.Request().Context(), id); err != nil {
		return err
	}
	return respondMsg(ctx, http.StatusOK, nil, "certificate deleted")
}

func (api *blockchainAPI) certificateRegister(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	cert, res, err := api.certSvc.Register(ctx.Request().Context(), id, actorFromContext(ctx))
	if err != nil {
		return err
	}
	if res.Err != nil {
		return res.Err
	}
	return respondMsg(ctx, http.StatusOK, cert, "certificate registered on blockchain")
}

func (api *blockchainAPI) verifyCertificate(ctx echo.Context) error {
	var vc certificate.VerifyCertificate
	if err := ctx.Bind(&vc); err != nil {
		return err
	}
	res, err := api.certSvc.Verify(ctx.Request().Context(), vc, actorFromContext(ctx))
	if err != nil {
		return err
	}
	msg := "certificate verification failed"
	if res.Matched {
		msg = "certificate verified successfully"
	}
	return respondMsg(ctx, http.StatusOK, res, msg)
}

func (api *blockchainAPI) verificationList(ctx echo.Context) error {
	var params ListParams
	if err := params.Bind(ctx); err != nil {
		return err
	}
	filter := certificate.VerificationFilter{
		Search:         ctx.QueryParam("search"),
		CertificateID:  queryInt(ctx, "certificate_id"),
		VerifiedByName: ctx.QueryParam("verified_by_name"),
		StartDate:      queryDate(ctx, "start_date"),
		EndDate:        queryDate(ctx, "end_date"),
	}

	vers, pagination, err := api.certSvc.Verifications(
		ctx.Request().Context(), filter, params.Ordering(verificationSortColumns), params.PageRequest())
	if err != nil {
		return err
	}
	return respondPage(ctx, http.StatusOK, vers, pagination)
}

func (api *blockchainAPI) verificationDelete(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	if err := api.certSvc.DeleteVerification(ctx.Request().Context(), id); err != nil {
		return err
	}
	return respondMsg(ctx, http.StatusOK, nil, "verification record deleted")
}
