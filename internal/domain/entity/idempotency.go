package entity

import (
	"encoding/json"
	"time"
)

// Puntos de recuperación de comandos en varias fases.
const (
	RecoveryPointEmailDispatched = "email_dispatched"
)

// IdempotencyRecord clave de idempotencia de un comando. Mientras LockedUntil esté en el futuro
// y CompletedAt sea nil, el comando se considera en curso.
type IdempotencyRecord struct {
	Scope         string
	Key           string
	Fingerprint   string
	LockedUntil   time.Time
	RecoveryPoint string
	Result        json.RawMessage
	CreatedAt     time.Time
	CompletedAt   *time.Time
}

// IsCompleted true si el comando terminó y Result es reutilizable.
func (r *IdempotencyRecord) IsCompleted() bool {
	return r.CompletedAt != nil
}

// IsLocked true si otro proceso mantiene el lease vigente.
func (r *IdempotencyRecord) IsLocked(now time.Time) bool {
	return r.CompletedAt == nil && r.LockedUntil.After(now)
}
