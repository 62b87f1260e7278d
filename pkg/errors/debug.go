package errors

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// ErrorDump is the log-side view of an error: its chain plus any postgres
// diagnostics found along it.
type ErrorDump struct {
	TopMessage string   `json:"top_message"`
	Code       Code     `json:"code,omitempty"`
	Chain      []string `json:"chain,omitempty"`
	Postgres   PGFields `json:"postgres,omitzero"`
}

// PGFields is filled from either driver; pgx wins when both appear.
type PGFields struct {
	Code       string `json:"code,omitempty"`
	Constraint string `json:"constraint,omitempty"`
	Table      string `json:"table,omitempty"`
	Column     string `json:"column,omitempty"`
	Detail     string `json:"detail,omitempty"`
	Message    string `json:"message,omitempty"`
}

func (p PGFields) each(fn func(key, value string)) {
	for _, kv := range [...][2]string{
		{"pg_code", p.Code},
		{"pg_constraint", p.Constraint},
		{"pg_table", p.Table},
		{"pg_column", p.Column},
		{"pg_detail", p.Detail},
		{"pg_message", p.Message},
	} {
		if kv[1] != "" {
			fn(kv[0], kv[1])
		}
	}
}

// Fields flattens the dump for the logger; empty postgres values are left out.
func (d ErrorDump) Fields() map[string]any {
	fields := map[string]any{"error": d.TopMessage, "error_chain": d.Chain}
	if d.Code != "" {
		fields["error_code"] = d.Code
	}
	d.Postgres.each(func(k, v string) { fields[k] = v })
	return fields
}

func Dump(err error) ErrorDump {
	if err == nil {
		return ErrorDump{}
	}
	d := ErrorDump{TopMessage: err.Error(), Postgres: postgresFields(err)}
	if typed := As(err); typed != nil {
		d.Code = typed.code
	}
	for e := err; e != nil; e = errors.Unwrap(e) {
		d.Chain = append(d.Chain, fmt.Sprintf("%T: %v", e, e))
	}
	return d
}

func postgresFields(err error) PGFields {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return PGFields{
			Code:       pgErr.Code,
			Constraint: pgErr.ConstraintName,
			Table:      pgErr.TableName,
			Column:     pgErr.ColumnName,
			Detail:     pgErr.Detail,
			Message:    pgErr.Message,
		}
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return PGFields{
			Code:       string(pqErr.Code),
			Constraint: pqErr.Constraint,
			Table:      pqErr.Table,
			Column:     pqErr.Column,
			Detail:     pqErr.Detail,
			Message:    pqErr.Message,
		}
	}
	return PGFields{}
}
