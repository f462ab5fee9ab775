package echoapi

import (
	"github.com/labstack/echo/v4"

	"github.com/trezcool/sajili/core"
)

// successResponse is the uniform API envelope.
type successResponse struct {
	Success    bool             `json:"success"`
	Data       interface{}      `json:"data"`
	Message    string           `json:"message,omitempty"`
	Pagination *core.Pagination `json:"pagination,omitempty"`
}

func respond(ctx echo.Context, code int, data interface{}) error {
	return ctx.JSON(code, successResponse{Success: true, Data: data})
}

func respondMsg(ctx echo.Context, code int, data interface{}, msg string) error {
	return ctx.JSON(code, successResponse{Success: true, Data: data, Message: msg})
}

func respondPage(ctx echo.Context, code int, data interface{}, pagination core.Pagination) error {
	return ctx.JSON(code, successResponse{Success: true, Data: data, Pagination: &pagination})
}

// ListParams binds the shared list query params: page, per_page, sort_by
// and sort_order.
type ListParams struct {
	Page      int    `query:"page"`
	PerPage   int    `query:"per_page"`
	SortBy    string `query:"sort_by"`
	SortOrder string `query:"sort_order"`
}

func (lp *ListParams) Bind(ctx echo.Context) error {
	if err := ctx.Bind(lp); err != nil {
		return err
	}
	return nil
}

func (lp ListParams) PageRequest() core.Page {
	return core.Page{Number: lp.Page, Size: lp.PerPage}
}

// Ordering maps sort_by onto the allowed columns; unknown columns are
// ignored so callers cannot order by arbitrary SQL.
func (lp ListParams) Ordering(allowed map[string]string) []core.DBOrdering {
	column, ok := allowed[lp.SortBy]
	if !ok {
		return nil
	}
	return []core.DBOrdering{{Field: column, Ascending: lp.SortOrder == "asc"}}
}
