package postgres

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/iho/gotransfer/internal/domain"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name          string
		err           error
		wantTransient bool
	}{
		{name: "deadlock", err: &pgconn.PgError{Code: pgErrDeadlock}, wantTransient: true},
		{name: "serialization failure", err: &pgconn.PgError{Code: pgErrSerializationFailure}, wantTransient: true},
		{name: "server shutting down", err: &pgconn.PgError{Code: pgErrAdminShutdown}, wantTransient: true},
		{name: "check violation", err: &pgconn.PgError{Code: pgErrCheckViolation}, wantTransient: false},
		{name: "plain error", err: errors.New("boom"), wantTransient: false},
		{name: "cancelled", err: context.Canceled, wantTransient: false},
		{name: "wrapped deadlock", err: fmt.Errorf("exec: %w", &pgconn.PgError{Code: pgErrDeadlock}), wantTransient: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classify("op", tt.err)
			assert.ErrorIs(t, err, tt.err)
			assert.Equal(t, tt.wantTransient, errors.Is(err, domain.ErrStoreUnavailable))
		})
	}

	assert.NoError(t, classify("op", nil))
}

func TestClassify_OutcomeUnknown(t *testing.T) {
	assert.ErrorIs(t, classify("op", errors.New("unexpected EOF")), domain.ErrOutcomeUnknown)
	assert.ErrorIs(t, classify("op", context.DeadlineExceeded), domain.ErrOutcomeUnknown)
	assert.NotErrorIs(t, classify("op", &pgconn.PgError{Code: pgErrCheckViolation}), domain.ErrOutcomeUnknown)
	assert.NotErrorIs(t, classify("op", &pgconn.PgError{Code: pgErrDeadlock}), domain.ErrOutcomeUnknown)
}
