package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/nurpe/jobpay/internal/model"
)

// PaymentTx is the set of reads and writes available inside one payment
// transaction. Every method runs on the same connection and nothing is
// visible to other transactions until the surrounding InTx commits.
type PaymentTx interface {
	// LockPayableJob locks an unpaid job of an in-progress contract whose
	// client is clientID. It returns gorm.ErrRecordNotFound otherwise.
	LockPayableJob(ctx context.Context, jobID, clientID uuid.UUID) (*model.PayableJob, error)
	LockProfile(ctx context.Context, id uuid.UUID) (*model.Profile, error)
	// AdjustBalance adds delta to the balance and returns the new value.
	// It fails with ErrBalanceConflict instead of going below zero.
	AdjustBalance(ctx context.Context, id uuid.UUID, delta decimal.Decimal) (decimal.Decimal, error)
	// MarkJobPaid fails with ErrAlreadyPaid when the job is no longer unpaid.
	MarkJobPaid(ctx context.Context, jobID uuid.UUID, paidAt time.Time) error
	// OutstandingDebt sums unpaid job prices on the client's in-progress contracts.
	OutstandingDebt(ctx context.Context, clientID uuid.UUID) (decimal.Decimal, error)
}

type PaymentRepository struct {
	db          *gorm.DB
	lockTimeout time.Duration
}

func NewPaymentRepository(db *gorm.DB, lockTimeout time.Duration) *PaymentRepository {
	return &PaymentRepository{db: db, lockTimeout: lockTimeout}
}

// InTx runs fn inside a single database transaction. The transaction commits
// when fn returns nil and rolls back on any error or panic.
func (r *PaymentRepository) InTx(ctx context.Context, fn func(tx PaymentTx) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if r.lockTimeout > 0 {
			stmt := fmt.Sprintf("SET LOCAL lock_timeout = %d", lockTimeoutMillis(r.lockTimeout))
			if err := tx.Exec(stmt).Error; err != nil {
				return err
			}
		}
		return fn(&paymentTx{db: tx})
	})
}

// lockTimeoutMillis rounds up so a positive timeout never becomes 0, which
// postgres reads as no timeout at all.
func lockTimeoutMillis(d time.Duration) int64 {
	return int64((d + time.Millisecond - 1) / time.Millisecond)
}

type paymentTx struct {
	db *gorm.DB
}

func (t *paymentTx) LockPayableJob(ctx context.Context, jobID, clientID uuid.UUID) (*model.PayableJob, error) {
	var job model.PayableJob
	err := t.db.WithContext(ctx).Raw(`
		SELECT `+jobColumns+`, c.client_id, c.contractor_id
		FROM jobs j
		JOIN contracts c ON c.id = j.contract_id
		WHERE j.id = ?
			AND j.paid IS NULL
			AND c.status = ?
			AND c.client_id = ?
		FOR UPDATE OF j
	`, jobID, model.ContractStatusInProgress, clientID).Scan(&job).Error
	if err != nil {
		return nil, err
	}
	if job.ID == uuid.Nil {
		return nil, gorm.ErrRecordNotFound
	}
	return &job, nil
}

func (t *paymentTx) LockProfile(ctx context.Context, id uuid.UUID) (*model.Profile, error) {
	var profile model.Profile
	err := t.db.WithContext(ctx).Raw(`
		SELECT id, first_name, last_name, profession, balance, role, created_at, updated_at
		FROM profiles
		WHERE id = ?
		FOR UPDATE
	`, id).Scan(&profile).Error
	if err != nil {
		return nil, err
	}
	if profile.ID == uuid.Nil {
		return nil, gorm.ErrRecordNotFound
	}
	return &profile, nil
}

func (t *paymentTx) AdjustBalance(ctx context.Context, id uuid.UUID, delta decimal.Decimal) (decimal.Decimal, error) {
	var row struct {
		Balance decimal.Decimal
	}
	result := t.db.WithContext(ctx).Raw(`
		UPDATE profiles
		SET balance = balance + ?, updated_at = NOW()
		WHERE id = ?
			AND balance + ? >= 0
		RETURNING balance
	`, delta, id, delta).Scan(&row)
	if result.Error != nil {
		return decimal.Zero, result.Error
	}
	if result.RowsAffected == 0 {
		return decimal.Zero, ErrBalanceConflict
	}
	return row.Balance, nil
}

func (t *paymentTx) MarkJobPaid(ctx context.Context, jobID uuid.UUID, paidAt time.Time) error {
	result := t.db.WithContext(ctx).Exec(`
		UPDATE jobs
		SET paid = TRUE, payment_date = ?, updated_at = ?
		WHERE id = ?
			AND paid IS NULL
	`, paidAt, paidAt, jobID)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrAlreadyPaid
	}
	return nil
}

func (t *paymentTx) OutstandingDebt(ctx context.Context, clientID uuid.UUID) (decimal.Decimal, error) {
	var row struct {
		Total decimal.Decimal
	}
	err := t.db.WithContext(ctx).Raw(`
		SELECT COALESCE(SUM(j.price), 0) AS total
		FROM jobs j
		JOIN contracts c ON c.id = j.contract_id
		WHERE c.client_id = ?
			AND c.status = ?
			AND j.paid IS NULL
	`, clientID, model.ContractStatusInProgress).Scan(&row).Error
	if err != nil {
		return decimal.Zero, err
	}
	return row.Total, nil
}
