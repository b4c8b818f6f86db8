package service

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrPermissionDenied = errors.New("permission denied")
	ErrInvalidInput     = errors.New("invalid input")
	// ErrTransient wraps store failures; nothing was committed and the
	// request may be retried.
	ErrTransient = errors.New("transaction failed")
	// ErrInternal wraps store failures that a retry cannot fix, such as a
	// rejected constraint. Nothing was committed.
	ErrInternal = errors.New("internal failure")

	ErrInsufficientFunds    = fmt.Errorf("%w: insufficient funds", ErrInvalidInput)
	ErrDepositLimitExceeded = fmt.Errorf("%w: deposit exceeds limit", ErrInvalidInput)
)
