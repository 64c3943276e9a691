package postgres

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jhoicas/retail-ops/internal/domain"
)

const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
	codeCheckViolation      = "23514"
	codeSerializationFail   = "40001"
	codeDeadlockDetected    = "40P01"
	codeLockNotAvailable    = "55P03"
)

// constraintNonNegativeStock CHECK de schema.sql que impide saldos negativos.
const constraintNonNegativeStock = "stock_balances_non_negative"

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// isUniqueViolation verifica si un error es una violación de constraint único (23505).
func isUniqueViolation(err error) bool {
	return pgCode(err) == codeUniqueViolation
}

// mapError traduce los errores de PostgreSQL con significado de negocio a errores de dominio.
// El resto se envuelve con la operación.
func mapError(op string, err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return fmt.Errorf("%s: %w", op, err)
	}
	switch pgErr.Code {
	case codeCheckViolation:
		if pgErr.ConstraintName == constraintNonNegativeStock {
			return fmt.Errorf("%s: %w", op, domain.ErrInsufficientStock)
		}
		return fmt.Errorf("%s: %w: viola %s", op, domain.ErrValidation, pgErr.ConstraintName)
	case codeSerializationFail, codeDeadlockDetected, codeLockNotAvailable:
		return fmt.Errorf("%s: %w", op, domain.ErrConcurrentModification)
	case codeUniqueViolation:
		return fmt.Errorf("%s: %w: registro duplicado", op, domain.ErrValidation)
	case codeForeignKeyViolation:
		return fmt.Errorf("%s: %w: referencia inexistente", op, domain.ErrPreconditionFailed)
	}
	return fmt.Errorf("%s: %w", op, err)
}
