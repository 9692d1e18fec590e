package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// Códigos de error de Postgres que este esquema puede producir.
// https://www.postgresql.org/docs/current/errcodes-appendix.html
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
	codeCheckViolation      = "23514"
)

// pgErrCode extrae el SQLSTATE del error, o "" si no viene de Postgres.
func pgErrCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// isUniqueViolation: choque con un constraint UNIQUE (fila ya existe).
func isUniqueViolation(err error) bool {
	return pgErrCode(err) == codeUniqueViolation
}

// isForeignKeyViolation: la fila referenciada no existe (factura o tenant borrados).
func isForeignKeyViolation(err error) bool {
	return pgErrCode(err) == codeForeignKeyViolation
}

// isCheckViolation: valor fuera del dominio del CHECK (ej: estado desconocido).
func isCheckViolation(err error) bool {
	return pgErrCode(err) == codeCheckViolation
}
