package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jhoicas/retail-ops/internal/domain"
	"github.com/jhoicas/retail-ops/internal/domain/entity"
	"github.com/jhoicas/retail-ops/internal/domain/repository"
)

var _ repository.IdempotencyRepository = (*IdempotencyRepo)(nil)

// IdempotencyRepo claves de idempotencia con lease sobre PostgreSQL.
type IdempotencyRepo struct {
	q Querier
}

// NewIdempotencyRepository construye el adaptador. Pasar pool o tx (Querier).
func NewIdempotencyRepository(q Querier) *IdempotencyRepo {
	return &IdempotencyRepo{q: q}
}

const idempotencyColumns = `scope, key, fingerprint, locked_until, recovery_point, result, created_at, completed_at`

// Acquire inserta la clave con lease, o retoma una existente cuyo lease venció sin completarse y
// con la misma huella. Si no se adquiere devuelve el registro almacenado.
func (r *IdempotencyRepo) Acquire(ctx context.Context, rec *entity.IdempotencyRecord, lease time.Duration) (*entity.IdempotencyRecord, bool, error) {
	stored, err := scanIdempotency(r.q.QueryRow(ctx, `
		INSERT INTO idempotency_keys (scope, key, fingerprint, locked_until, created_at)
		VALUES ($1, $2, $3, now() + $4 * interval '1 millisecond', now())
		ON CONFLICT (scope, key) DO UPDATE SET locked_until = EXCLUDED.locked_until
		WHERE idempotency_keys.completed_at IS NULL
		  AND (idempotency_keys.locked_until IS NULL OR idempotency_keys.locked_until < now())
		  AND idempotency_keys.fingerprint = EXCLUDED.fingerprint
		RETURNING `+idempotencyColumns,
		rec.Scope, rec.Key, rec.Fingerprint, lease.Milliseconds()))
	if err == nil {
		return stored, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, mapError("acquire idempotency key", err)
	}
	stored, err = scanIdempotency(r.q.QueryRow(ctx,
		`SELECT `+idempotencyColumns+` FROM idempotency_keys WHERE scope = $1 AND key = $2`, rec.Scope, rec.Key))
	if err != nil {
		return nil, false, fmt.Errorf("get idempotency key: %w", err)
	}
	return stored, false, nil
}

// Checkpoint registra el punto de recuperación.
func (r *IdempotencyRepo) Checkpoint(ctx context.Context, scope, key, recoveryPoint string) error {
	return r.exec(ctx, "checkpoint idempotency key",
		`UPDATE idempotency_keys SET recovery_point = $3 WHERE scope = $1 AND key = $2`, scope, key, recoveryPoint)
}

// Complete guarda el resultado. Se llama con el Querier de la tx de negocio.
func (r *IdempotencyRepo) Complete(ctx context.Context, scope, key string, result json.RawMessage) error {
	return r.exec(ctx, "complete idempotency key", `
		UPDATE idempotency_keys SET result = $3, completed_at = now(), locked_until = NULL
		WHERE scope = $1 AND key = $2`, scope, key, string(result))
}

// Release suelta el lease conservando el punto de recuperación.
func (r *IdempotencyRepo) Release(ctx context.Context, scope, key string) error {
	return r.exec(ctx, "release idempotency key", `
		UPDATE idempotency_keys SET locked_until = NULL
		WHERE scope = $1 AND key = $2 AND completed_at IS NULL`, scope, key)
}

func (r *IdempotencyRepo) exec(ctx context.Context, op, query string, args ...any) error {
	tag, err := r.q.Exec(ctx, query, args...)
	if err != nil {
		return mapError(op, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, domain.ErrNotFound)
	}
	return nil
}

func scanIdempotency(row pgx.Row) (*entity.IdempotencyRecord, error) {
	var (
		rec         entity.IdempotencyRecord
		lockedUntil *time.Time
		result      []byte
	)
	err := row.Scan(&rec.Scope, &rec.Key, &rec.Fingerprint, &lockedUntil, &rec.RecoveryPoint,
		&result, &rec.CreatedAt, &rec.CompletedAt)
	if err != nil {
		return nil, err
	}
	if lockedUntil != nil {
		rec.LockedUntil = *lockedUntil
	}
	if len(result) > 0 {
		rec.Result = result
	}
	return &rec, nil
}
