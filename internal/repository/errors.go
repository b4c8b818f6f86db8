package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrBalanceConflict means a balance update would have left the profile negative.
	ErrBalanceConflict = errors.New("balance would become negative")
	// ErrAlreadyPaid means the job was paid by a concurrent transaction.
	ErrAlreadyPaid = errors.New("job already paid")
)

// SQLSTATE codes that are safe to retry.
var transientCodes = map[string]struct{}{
	"40001": {}, // serialization_failure
	"40P01": {}, // deadlock_detected
	"55P03": {}, // lock_not_available
	"57014": {}, // query_canceled
	"08000": {}, // connection_exception
	"08003": {}, // connection_does_not_exist
	"08006": {}, // connection_failure
}

// IsConstraintViolation reports whether the store rejected a write because of
// its data: SQLSTATE class 22 (data exception, e.g. numeric overflow) or
// class 23 (integrity constraint violation). Retrying the same write fails
// the same way.
func IsConstraintViolation(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return strings.HasPrefix(pgErr.Code, "22") || strings.HasPrefix(pgErr.Code, "23")
}

// IsTransient reports whether err is a store failure the caller may retry.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, ErrBalanceConflict) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		_, ok := transientCodes[pgErr.Code]
		return ok
	}
	return false
}
