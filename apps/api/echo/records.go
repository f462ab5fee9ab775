package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/trezcool/sajili/core/attendance"
	"github.com/trezcool/sajili/core/grade"
)

// recordsAPI exposes the school-record writes whose every save lands a
// fingerprint on the ledger, plus per-record hash verification.
type recordsAPI struct {
	attSvc   *attendance.Service
	gradeSvc *grade.Service
	validate *validator.Validate
}

func registerRecordsAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	attSvc *attendance.Service,
	gradeSvc *grade.Service,
	validate *validator.Validate,
) {
	api := recordsAPI{attSvc: attSvc, gradeSvc: gradeSvc, validate: validate}

	ag := g.Group("/attendance", jwt, adminMiddleware)
	ag.POST("", api.attendanceCreate)
	ag.GET("/:id", api.attendanceDetail)
	ag.PUT("/:id", api.attendanceUpdate)
	ag.POST("/:id/verify", api.attendanceVerify)

	gg := g.Group("/grades", jwt, adminMiddleware)
	gg.POST("", api.gradeCreate)
	gg.GET("/:id", api.gradeDetail)
	gg.PUT("/:id", api.gradeUpdate)
	gg.POST("/:id/verify", api.gradeVerify)
}

// VerifyRecordRequest carries the hash a caller claims a record still
// matches.
type VerifyRecordRequest struct {
	Hash string `json:"hash" validate:"required,hexhash"`
}

func (vr *VerifyRecordRequest) Validate(validate *validator.Validate) error {
	return validate.Struct(vr)
}

func (api *recordsAPI) bindVerify(ctx echo.Context) (VerifyRecordRequest, error) {
	var req VerifyRecordRequest
	if err := ctx.Bind(&req); err != nil {
		return req, err
	}
	if err := req.Validate(api.validate); err != nil {
		return req, err
	}
	return req, nil
}

func verifyResponse(ctx echo.Context, verified bool) error {
	msg := "record does not match the claimed hash"
	if verified {
		msg = "record verified successfully"
	}
	return respondMsg(ctx, http.StatusOK, echo.Map{"verified": verified}, msg)
}

func (api *recordsAPI) attendanceCreate(ctx echo.Context) error {
	var na attendance.NewAttendance
	if err := ctx.Bind(&na); err != nil {
		return err
	}
	att, _, err := api.attSvc.Create(ctx.Request().Context(), na, actorFromContext(ctx))
	if err != nil {
		return err
	}
	return respondMsg(ctx, http.StatusCreated, att, "attendance recorded")
}

func (api *recordsAPI) attendanceDetail(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	att, err := api.attSvc.Get(ctx.Request().Context(), id)
	if err != nil {
		return err
	}
	return respond(ctx, http.StatusOK, att)
}

func (api *recordsAPI) attendanceUpdate(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	var ua attendance.UpdateAttendance
	if err := ctx.Bind(&ua); err != nil {
		return err
	}
	att, _, err := api.attSvc.Update(ctx.Request().Context(), id, ua, actorFromContext(ctx))
	if err != nil {
		return err
	}
	return respondMsg(ctx, http.StatusOK, att, "attendance updated")
}

func (api *recordsAPI) attendanceVerify(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	req, err := api.bindVerify(ctx)
	if err != nil {
		return err
	}
	ok, err := api.attSvc.Verify(ctx.Request().Context(), id, req.Hash)
	if err != nil {
		return err
	}
	return verifyResponse(ctx, ok)
}

func (api *recordsAPI) gradeCreate(ctx echo.Context) error {
	var ng grade.NewGrade
	if err := ctx.Bind(&ng); err != nil {
		return err
	}
	grd, _, err := api.gradeSvc.Create(ctx.Request().Context(), ng, actorFromContext(ctx))
	if err != nil {
		return err
	}
	return respondMsg(ctx, http.StatusCreated, grd, "grade recorded")
}

func (api *recordsAPI) gradeDetail(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	grd, err := api.gradeSvc.Get(ctx.Request().Context(), id)
	if err != nil {
		return err
	}
	return respond(ctx, http.StatusOK, grd)
}

func (api *recordsAPI) gradeUpdate(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	var ug grade.UpdateGrade
	if err := ctx.Bind(&ug); err != nil {
		return err
	}
	grd, _, err := api.gradeSvc.Update(ctx.Request().Context(), id, ug, actorFromContext(ctx))
	if err != nil {
		return err
	}
	return respondMsg(ctx, http.StatusOK, grd, "grade updated")
}

func (api *recordsAPI) gradeVerify(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	req, err := api.bindVerify(ctx)
	if err != nil {
		return err
	}
	ok, err := api.gradeSvc.Verify(ctx.Request().Context(), id, req.Hash)
	if err != nil {
		return err
	}
	return verifyResponse(ctx, ok)
}
