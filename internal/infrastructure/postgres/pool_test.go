package postgres

import (
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/retail-ops/internal/domain"
	"github.com/jhoicas/retail-ops/pkg/config"
)

func TestPoolConfigFor(t *testing.T) {
	cfg := config.DBConfig{
		Host: "db", Port: 5432, User: "app", Password: "secreto", DBName: "retail_ops", SSLMode: "disable",
		MaxConns: 10, LockTimeout: 2 * time.Second,
	}

	pc, err := poolConfigFor(cfg)
	require.NoError(t, err)
	assert.Equal(t, int32(10), pc.MaxConns)
	assert.Equal(t, "db", pc.ConnConfig.Host)
	assert.Equal(t, "retail_ops", pc.ConnConfig.Database)
	assert.Equal(t, "2000", pc.ConnConfig.RuntimeParams["lock_timeout"])
	assert.Equal(t, applicationName, pc.ConnConfig.RuntimeParams["application_name"])
	assert.NotNil(t, pc.AfterConnect)
}

func TestPoolConfigFor_SinLockTimeout(t *testing.T) {
	pc, err := poolConfigFor(config.DBConfig{DatabaseURL: "postgres://app@localhost:5432/retail_ops"})
	require.NoError(t, err)
	assert.Equal(t, int32(25), pc.MaxConns)
	_, ok := pc.ConnConfig.RuntimeParams["lock_timeout"]
	assert.False(t, ok)
}

func TestMapError(t *testing.T) {
	cases := map[string]struct {
		err  *pgconn.PgError
		want error
	}{
		"saldo negativo": {&pgconn.PgError{Code: codeCheckViolation, ConstraintName: constraintNonNegativeStock}, domain.ErrInsufficientStock},
		"otro check":     {&pgconn.PgError{Code: codeCheckViolation, ConstraintName: "stock_movements_quantity_sign"}, domain.ErrValidation},
		"serializable":   {&pgconn.PgError{Code: codeSerializationFail}, domain.ErrConcurrentModification},
		"deadlock":       {&pgconn.PgError{Code: codeDeadlockDetected}, domain.ErrConcurrentModification},
		"lock timeout":   {&pgconn.PgError{Code: codeLockNotAvailable}, domain.ErrConcurrentModification},
		"unique":         {&pgconn.PgError{Code: codeUniqueViolation}, domain.ErrValidation},
		"foreign key":    {&pgconn.PgError{Code: codeForeignKeyViolation}, domain.ErrPreconditionFailed},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			err := mapError("op", tc.err)
			assert.ErrorIs(t, err, tc.want)
		})
	}

	err := mapError("op", &pgconn.PgError{Code: codeCheckViolation, ConstraintName: "purchase_order_items_quantity_ordered_check"})
	assert.NotErrorIs(t, err, domain.ErrInsufficientStock)

	plain := errors.New("conexión cerrada")
	assert.ErrorIs(t, mapError("op", plain), plain)
}
