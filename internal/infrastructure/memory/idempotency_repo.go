package memory

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jhoicas/retail-ops/internal/domain"
	"github.com/jhoicas/retail-ops/internal/domain/entity"
	"github.com/jhoicas/retail-ops/internal/domain/repository"
)

var _ repository.IdempotencyRepository = (*IdempotencyRepo)(nil)

// IdempotencyRepo claves de idempotencia con lease.
type IdempotencyRepo struct{ db access }

func idemKey(scope, key string) string { return scope + "\x00" + key }

func (r *IdempotencyRepo) Acquire(_ context.Context, rec *entity.IdempotencyRecord, lease time.Duration) (*entity.IdempotencyRecord, bool, error) {
	var (
		out      entity.IdempotencyRecord
		acquired bool
	)
	err := r.db.with(func(st *state) error {
		k := idemKey(rec.Scope, rec.Key)
		now := r.db.now()
		cur, ok := st.idempotency[k]
		switch {
		case !ok:
			cur = *rec
			cur.LockedUntil = now.Add(lease)
			acquired = true
		case cur.IsCompleted(), cur.IsLocked(now), cur.Fingerprint != rec.Fingerprint:
			// se devuelve tal cual; el guard decide
		default:
			cur.LockedUntil = now.Add(lease)
			acquired = true
		}
		st.idempotency[k] = cur
		out = cur
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return &out, acquired, nil
}

func (r *IdempotencyRepo) Checkpoint(_ context.Context, scope, key, recoveryPoint string) error {
	return r.update(scope, key, func(rec *entity.IdempotencyRecord, _ time.Time) {
		rec.RecoveryPoint = recoveryPoint
	})
}

func (r *IdempotencyRepo) Complete(_ context.Context, scope, key string, result json.RawMessage) error {
	return r.update(scope, key, func(rec *entity.IdempotencyRecord, now time.Time) {
		rec.Result = result
		rec.CompletedAt = &now
		rec.LockedUntil = time.Time{}
	})
}

func (r *IdempotencyRepo) Release(_ context.Context, scope, key string) error {
	return r.update(scope, key, func(rec *entity.IdempotencyRecord, _ time.Time) {
		rec.LockedUntil = time.Time{}
	})
}

func (r *IdempotencyRepo) update(scope, key string, fn func(rec *entity.IdempotencyRecord, now time.Time)) error {
	return r.db.with(func(st *state) error {
		k := idemKey(scope, key)
		rec, ok := st.idempotency[k]
		if !ok {
			return domain.ErrNotFound
		}
		fn(&rec, r.db.now())
		st.idempotency[k] = rec
		return nil
	})
}
