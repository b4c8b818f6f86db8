package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/nurpe/jobpay/internal/config"
	"github.com/nurpe/jobpay/internal/metrics"
	"github.com/nurpe/jobpay/internal/model"
	"github.com/nurpe/jobpay/internal/repository"
)

// PaymentStore opens the transactions payments and deposits run in.
type PaymentStore interface {
	InTx(ctx context.Context, fn func(tx repository.PaymentTx) error) error
}

type PaymentService struct {
	store           PaymentStore
	limitRatio      decimal.Decimal
	depositSelfOnly bool
	now             func() time.Time
}

type PayJobInput struct {
	JobID     uuid.UUID
	Principal model.Principal
}

type DepositInput struct {
	TargetID  uuid.UUID
	Amount    decimal.Decimal
	Principal model.Principal
}

func NewPaymentService(store PaymentStore, cfg *config.Config) *PaymentService {
	return &PaymentService{
		store:           store,
		limitRatio:      cfg.Payments.DepositLimitRatio,
		depositSelfOnly: cfg.Payments.DepositSelfOnly,
		now:             func() time.Time { return time.Now().UTC() },
	}
}

// PayJob moves the job price from the contract's client to its contractor
// and marks the job paid, all in one transaction. Only the client of an
// in-progress contract can pay, and a job is paid at most once.
func (s *PaymentService) PayJob(ctx context.Context, input PayJobInput) (*model.Payment, error) {
	if input.JobID == uuid.Nil {
		return nil, fmt.Errorf("%w: job_id is required", ErrInvalidInput)
	}

	started := time.Now()
	callerID := input.Principal.ID()
	var payment model.Payment

	err := s.store.InTx(ctx, func(tx repository.PaymentTx) error {
		job, err := tx.LockPayableJob(ctx, input.JobID, callerID)
		if err != nil {
			return err
		}
		contract := model.Contract{ID: job.ContractID, ClientID: job.ClientID, ContractorID: job.ContractorID}
		if !AuthorizeClient(input.Principal.Profile, contract) {
			return ErrNotFound
		}

		profiles, err := lockProfiles(ctx, tx, job.ClientID, job.ContractorID)
		if err != nil {
			return err
		}
		client := profiles[job.ClientID]
		if client.Balance.LessThan(job.Price) {
			return ErrInsufficientFunds
		}

		clientBalance, err := tx.AdjustBalance(ctx, job.ClientID, job.Price.Neg())
		if err != nil {
			return err
		}
		contractorBalance, err := tx.AdjustBalance(ctx, job.ContractorID, job.Price)
		if err != nil {
			return err
		}

		paidAt := s.now()
		if err := tx.MarkJobPaid(ctx, job.ID, paidAt); err != nil {
			return err
		}

		payment = model.Payment{
			JobID:             job.ID,
			Amount:            job.Price,
			PaidAt:            paidAt,
			ClientBalance:     clientBalance,
			ContractorBalance: contractorBalance,
		}
		return nil
	})

	err = classify(err)
	metrics.RecordPayment(outcome(err), time.Since(started))
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// Deposit credits amount to the target client's balance. The amount is capped
// at a fraction of the client's unpaid in-progress debt; with no debt every
// deposit is rejected.
func (s *PaymentService) Deposit(ctx context.Context, input DepositInput) (*model.DepositResult, error) {
	if input.TargetID == uuid.Nil {
		return nil, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	if !input.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: deposit must be positive", ErrInvalidInput)
	}
	// Balances are stored with two decimal places.
	if !input.Amount.Equal(input.Amount.Round(2)) {
		return nil, fmt.Errorf("%w: deposit must not have fractions of a cent", ErrInvalidInput)
	}
	amount := input.Amount.Round(2)
	if s.depositSelfOnly && input.Principal.ID() != input.TargetID {
		metrics.RecordDeposit(metrics.OutcomeForbidden, 0)
		return nil, ErrPermissionDenied
	}

	started := time.Now()
	var result model.DepositResult

	err := s.store.InTx(ctx, func(tx repository.PaymentTx) error {
		target, err := tx.LockProfile(ctx, input.TargetID)
		if err != nil {
			return err
		}
		if !target.IsClient() {
			return fmt.Errorf("%w: deposits are accepted for client profiles only", ErrInvalidInput)
		}

		debt, err := tx.OutstandingDebt(ctx, target.ID)
		if err != nil {
			return err
		}
		limit := DepositLimit(debt, s.limitRatio)
		if amount.GreaterThan(limit) {
			return fmt.Errorf("%w: maximum deposit is %s", ErrDepositLimitExceeded, limit.StringFixed(2))
		}

		balance, err := tx.AdjustBalance(ctx, target.ID, amount)
		if err != nil {
			return err
		}

		result = model.DepositResult{
			ProfileID: target.ID,
			Amount:    amount,
			Limit:     limit,
			Balance:   balance,
		}
		return nil
	})

	err = classify(err)
	metrics.RecordDeposit(outcome(err), time.Since(started))
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// DepositLimit is the largest single deposit allowed against debt.
func DepositLimit(debt, ratio decimal.Decimal) decimal.Decimal {
	return debt.Mul(ratio)
}

// lockProfiles locks the given profiles in ascending id order so that two
// transactions touching the same pair never wait on each other in a cycle.
func lockProfiles(ctx context.Context, tx repository.PaymentTx, ids ...uuid.UUID) (map[uuid.UUID]model.Profile, error) {
	ordered := make([]uuid.UUID, 0, len(ids))
	seen := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ordered = append(ordered, id)
	}
	sort.Slice(ordered, func(i, j int) bool {
		return bytes.Compare(ordered[i][:], ordered[j][:]) < 0
	})

	profiles := make(map[uuid.UUID]model.Profile, len(ordered))
	for _, id := range ordered {
		profile, err := tx.LockProfile(ctx, id)
		if err != nil {
			return nil, err
		}
		profiles[id] = *profile
	}
	return profiles, nil
}

// classify folds store errors into the service taxonomy so callers only ever
// see ErrNotFound, ErrInvalidInput (and its refinements), ErrPermissionDenied,
// ErrInternal or ErrTransient.
func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrNotFound),
		errors.Is(err, ErrInvalidInput),
		errors.Is(err, ErrPermissionDenied),
		errors.Is(err, ErrTransient),
		errors.Is(err, ErrInternal):
		return err
	case errors.Is(err, gorm.ErrRecordNotFound), errors.Is(err, repository.ErrAlreadyPaid):
		return ErrNotFound
	case repository.IsConstraintViolation(err):
		return fmt.Errorf("%w: %w", ErrInternal, err)
	default:
		return fmt.Errorf("%w: %w", ErrTransient, err)
	}
}

func outcome(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeSuccess
	case errors.Is(err, ErrNotFound):
		return metrics.OutcomeNotFound
	case errors.Is(err, ErrInvalidInput):
		return metrics.OutcomeRejected
	case errors.Is(err, ErrPermissionDenied):
		return metrics.OutcomeForbidden
	case repository.IsTransient(err):
		return metrics.OutcomeConflict
	default:
		return metrics.OutcomeError
	}
}
