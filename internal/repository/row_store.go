package repository

import (
	"context"
	"fmt"
)

// Row is one record as the backing store sees it: column name to value.
type Row map[string]any

// Clone returns a shallow copy of the row.
func (r Row) Clone() Row {
	if r == nil {
		return nil
	}
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// String returns the value of column as a string when it holds one.
func (r Row) String(column string) (string, bool) {
	v, ok := r[column].(string)
	return v, ok
}

// SelectQuery narrows a Select call.
type SelectQuery struct {
	Eq         map[string]any
	OrderBy    string
	Descending bool
	Offset     int
	Limit      int
	WithCount  bool
}

// RowStore is the backing-store boundary: row CRUD on named tables.
type RowStore interface {
	Select(ctx context.Context, table string, q SelectQuery) ([]Row, int, error)
	Insert(ctx context.Context, table string, row Row) (Row, error)
	Update(ctx context.Context, table, id string, patch Row) (Row, error)
	Delete(ctx context.Context, table, id string) error
	Ping(ctx context.Context) error
}

// StoreError is a failure reported by the store itself, as opposed to the
// transport in front of it.
type StoreError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
	Hint    string `json:"hint,omitempty"`
}

func (e *StoreError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return e.Message
}

// PostgREST and PostgreSQL codes the store layer produces.
const (
	CodeUnknownColumn = "PGRST204"
	CodeUnknownTable  = "PGRST205"
	CodeNoRows        = "PGRST116"
)

func unknownColumnError(table, column string) *StoreError {
	return &StoreError{
		Status:  400,
		Code:    CodeUnknownColumn,
		Message: fmt.Sprintf("Could not find the '%s' column of '%s' in the schema cache", column, table),
	}
}

func unknownTableError(table string) *StoreError {
	return &StoreError{
		Status:  404,
		Code:    CodeUnknownTable,
		Message: fmt.Sprintf("Could not find the table 'public.%s' in the schema cache", table),
	}
}
