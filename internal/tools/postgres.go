package tools

import (
	"context"
	"log/slog"
)

// JSONQuerier runs a read-only SELECT and returns the rows as JSON.
// Implemented by *db.DB.
type JSONQuerier interface {
	QueryJSON(ctx context.Context, query string) ([]byte, error)
}

type SQLReader struct {
	db JSONQuerier
}

func NewSQLReader(db JSONQuerier) *SQLReader {
	return &SQLReader{db: db}
}

type fetchAllParams struct {
	Query string `json:"query" jsonschema_description:"SQL query to execute. It should be a SELECT statement."`
}

func (r *SQLReader) Definition() Definition {
	return Func(
		"Fetch data from a PostgreSQL database using a SELECT query and return it as JSON.",
		func(ctx context.Context, args fetchAllParams, _ CallContext) (string, error) {
			return r.FetchAll(ctx, args.Query), nil
		},
	)
}

// FetchAll returns {"data": [...]} or the database error text, which the
// model can use to correct its query.
func (r *SQLReader) FetchAll(ctx context.Context, query string) string {
	out, err := r.db.QueryJSON(ctx, query)
	if err != nil {
		slog.ErrorContext(ctx, "error executing query", "query", query, "error", err)
		return err.Error()
	}
	if len(out) == 0 {
		return `{"data": null}`
	}
	return string(out)
}
