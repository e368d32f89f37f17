package errors

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// constraintResources names the cinema rows guarded by each unique constraint.
var constraintResources = map[string]string{
	"ux_payments_external_payment_id": "payment",
	"ux_carts_user_id":                "cart",
	"ux_cart_items_cart_movie":        "cart_item",
	"purchased_movies_pkey":           "purchased_movie",
}

// ErrorDump flattens an error chain plus any Postgres diagnostics for structured logs.
type ErrorDump struct {
	TopMessage string   `json:"top_message"`
	Code       Code     `json:"code,omitempty"`
	Retryable  bool     `json:"retryable"`
	Chain      []string `json:"chain,omitempty"`

	PGCode       string `json:"pg_code,omitempty"`
	PGConstraint string `json:"pg_constraint,omitempty"`
	PGTable      string `json:"pg_table,omitempty"`
	PGColumn     string `json:"pg_column,omitempty"`
	PGDetail     string `json:"pg_detail,omitempty"`
	PGMessage    string `json:"pg_message,omitempty"`
	// Resource is set when PGConstraint is one of the known uniqueness guards.
	Resource string `json:"resource,omitempty"`
}

func Dump(err error) ErrorDump {
	if err == nil {
		return ErrorDump{}
	}

	d := ErrorDump{TopMessage: err.Error(), Retryable: Retryable(err)}
	if te := As(err); te != nil {
		d.Code = te.Code()
	}
	for e := err; e != nil; e = errors.Unwrap(e) {
		d.Chain = append(d.Chain, fmt.Sprintf("%T: %v", e, e))
	}

	var pgxErr *pgconn.PgError
	var pqErr *pq.Error
	switch {
	case errors.As(err, &pgxErr):
		d.PGCode, d.PGConstraint, d.PGTable = pgxErr.Code, pgxErr.ConstraintName, pgxErr.TableName
		d.PGColumn, d.PGDetail, d.PGMessage = pgxErr.ColumnName, pgxErr.Detail, pgxErr.Message
	case errors.As(err, &pqErr):
		d.PGCode, d.PGConstraint, d.PGTable = string(pqErr.Code), pqErr.Constraint, pqErr.Table
		d.PGColumn, d.PGDetail, d.PGMessage = pqErr.Column, pqErr.Detail, pqErr.Message
	}
	d.Resource = constraintResources[d.PGConstraint]
	return d
}
