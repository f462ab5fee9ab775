package core

import (
	"context"
	"database/sql"
)

type (
	DBExecutor interface {
		Exec(query string, args ...interface{}) (sql.Result, error)
		ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
		Query(query string, args ...interface{}) (*sql.Rows, error)
		QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
		QueryRow(query string, args ...interface{}) *sql.Row
		QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	}

	DB interface {
		DBExecutor

		Begin() (*sql.Tx, error)
		BeginTx(context.Context, *sql.TxOptions) (*sql.Tx, error)
	}
)

type DBOrdering struct {
	Field     string
	Ascending bool
}

func (ord DBOrdering) String() string {
	direction := "DESC"
	if ord.Ascending {
		direction = "ASC"
	}
	return ord.Field + " " + direction
}

// Page is a LIMIT/OFFSET pagination request. A zero Page means "no paging".
type Page struct {
	Number int
	Size   int
}

func (p Page) IsZero() bool { return p.Number == 0 && p.Size == 0 }

func (p Page) Limit() int {
	if p.Size <= 0 {
		return 15
	}
	return p.Size
}

func (p Page) Offset() int {
	n := p.Number
	if n <= 0 {
		n = 1
	}
	return (n - 1) * p.Limit()
}

// Pagination describes a page of results in API responses.
type Pagination struct {
	CurrentPage int `json:"current_page"`
	LastPage    int `json:"last_page"`
	PerPage     int `json:"per_page"`
	Total       int `json:"total"`
}

func NewPagination(page Page, total int) Pagination {
	per := page.Limit()
	last := total / per
	if total%per > 0 || last == 0 {
		last++
	}
	curr := page.Number
	if curr <= 0 {
		curr = 1
	}
	return Pagination{
		CurrentPage: curr,
		LastPage:    last,
		PerPage:     per,
		Total:       total,
	}
}
