package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jhoicas/retail-ops/internal/domain"
	"github.com/jhoicas/retail-ops/internal/domain/entity"
	"github.com/jhoicas/retail-ops/internal/domain/repository"
)

// MaxKeyLength longitud máxima aceptada para una clave.
const MaxKeyLength = 255

// Guard coordina las claves de idempotencia de los comandos: toma el lease antes de ejecutar,
// devuelve el resultado guardado en reintentos y registra puntos de recuperación.
type Guard struct {
	repo  repository.IdempotencyRepository
	lease time.Duration
	now   func() time.Time
}

// NewGuard construye el guard. lease es el tiempo que un comando en curso bloquea su clave.
func NewGuard(repo repository.IdempotencyRepository, lease time.Duration) *Guard {
	return &Guard{repo: repo, lease: lease, now: time.Now}
}

// Ticket clave adquirida por el comando en curso. Un Ticket nil (sin clave) es válido:
// todos sus métodos son no-op.
type Ticket struct {
	scope         string
	key           string
	recoveryPoint string
	guard         *Guard
}

// Begin adquiere la clave para scope. Si key es vacía no hay idempotencia y devuelve (nil, nil, nil).
// Si la clave ya se completó con la misma petición, devuelve el resultado guardado (replay).
// Un comando en curso con la misma clave da ErrConcurrentModification; una petición distinta
// con la misma clave da ErrValidation.
func (g *Guard) Begin(ctx context.Context, scope, key string, request any) (*Ticket, json.RawMessage, error) {
	if g == nil || key == "" {
		return nil, nil, nil
	}
	if len(key) > MaxKeyLength {
		return nil, nil, fmt.Errorf("%w: clave de idempotencia demasiado larga", domain.ErrValidation)
	}
	fp, err := Fingerprint(request)
	if err != nil {
		return nil, nil, err
	}
	now := g.now()
	rec := &entity.IdempotencyRecord{
		Scope:       scope,
		Key:         key,
		Fingerprint: fp,
		LockedUntil: now.Add(g.lease),
		CreatedAt:   now,
	}
	stored, acquired, err := g.repo.Acquire(ctx, rec, g.lease)
	if err != nil {
		return nil, nil, fmt.Errorf("acquire idempotency key: %w", err)
	}
	if stored.Fingerprint != fp {
		return nil, nil, fmt.Errorf("%w: la clave de idempotencia se usó con otra petición", domain.ErrValidation)
	}
	if !acquired {
		if stored.IsCompleted() {
			return nil, stored.Result, nil
		}
		return nil, nil, fmt.Errorf("%w: comando con la misma clave en curso", domain.ErrConcurrentModification)
	}
	return &Ticket{scope: scope, key: key, recoveryPoint: stored.RecoveryPoint, guard: g}, nil, nil
}

// RecoveryPoint último checkpoint registrado por un intento anterior con la misma clave.
func (t *Ticket) RecoveryPoint() string {
	if t == nil {
		return ""
	}
	return t.recoveryPoint
}

// Checkpoint persiste una fase completada fuera de la transacción de negocio
// (ej. email despachado) para no repetirla si el proceso cae antes de terminar.
func (t *Ticket) Checkpoint(ctx context.Context, phase string) error {
	if t == nil {
		return nil
	}
	if err := t.guard.repo.Checkpoint(ctx, t.scope, t.key, phase); err != nil {
		return fmt.Errorf("checkpoint %s: %w", phase, err)
	}
	t.recoveryPoint = phase
	return nil
}

// CompleteInTx marca la clave como completada con el resultado, usando el repositorio de la
// transacción de negocio para que resultado y efectos se confirmen juntos.
func (t *Ticket) CompleteInTx(ctx context.Context, repo repository.IdempotencyRepository, result any) error {
	if t == nil {
		return nil
	}
	raw, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal idempotent result: %w", err)
	}
	return repo.Complete(ctx, t.scope, t.key, raw)
}

// Release libera el lease tras un fallo para que un reintento pueda ejecutar de inmediato.
// Conserva el punto de recuperación.
func (t *Ticket) Release(ctx context.Context) error {
	if t == nil {
		return nil
	}
	return t.guard.repo.Release(ctx, t.scope, t.key)
}

// Fingerprint SHA-256 del JSON canónico de la petición.
func Fingerprint(request any) (string, error) {
	raw, err := json.Marshal(request)
	if err != nil {
		return "", fmt.Errorf("fingerprint request: %w", err)
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}
