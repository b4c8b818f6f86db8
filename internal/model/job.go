package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Job is billable work under a contract. Paid is nil until the job is paid
// and never goes back to nil; PaymentDate is set in the same write.
type Job struct {
	ID          uuid.UUID       `json:"id"`
	ContractID  uuid.UUID       `json:"contract_id"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Paid        *bool           `json:"paid"`
	PaymentDate *time.Time      `json:"payment_date"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

func (j Job) IsPaid() bool {
	return j.Paid != nil && *j.Paid
}

// PayableJob is a job joined with the parties of its contract.
type PayableJob struct {
	Job
	ClientID     uuid.UUID
	ContractorID uuid.UUID
}

type JobReceipt struct {
	Job        Job
	Contract   Contract
	Client     Profile
	Contractor Profile
}

type Payment struct {
	JobID             uuid.UUID       `json:"job_id"`
	Amount            decimal.Decimal `json:"amount"`
	PaidAt            time.Time       `json:"paid_at"`
	ClientBalance     decimal.Decimal `json:"client_balance"`
	ContractorBalance decimal.Decimal `json:"contractor_balance"`
}

type DepositResult struct {
	ProfileID uuid.UUID       `json:"profile_id"`
	Amount    decimal.Decimal `json:"amount"`
	Limit     decimal.Decimal `json:"limit"`
	Balance   decimal.Decimal `json:"balance"`
}
