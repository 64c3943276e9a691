package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jhoicas/retail-ops/internal/domain/entity"
)

// IdempotencyRepository almacena claves de idempotencia con lease y resultado.
type IdempotencyRepository interface {
	// Acquire crea el registro o toma el lease si el anterior expiró sin completarse.
	// acquired=false indica que el registro devuelto pertenece a otro comando (completado o en curso).
	Acquire(ctx context.Context, rec *entity.IdempotencyRecord, lease time.Duration) (stored *entity.IdempotencyRecord, acquired bool, err error)
	Checkpoint(ctx context.Context, scope, key, recoveryPoint string) error
	Complete(ctx context.Context, scope, key string, result json.RawMessage) error
	Release(ctx context.Context, scope, key string) error
}
