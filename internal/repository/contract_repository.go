package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/nurpe/jobpay/internal/model"
)

type ContractRepository struct {
	db *gorm.DB
}

func NewContractRepository(db *gorm.DB) *ContractRepository {
	return &ContractRepository{db: db}
}

const contractColumns = `c.id, c.terms, c.status, c.client_id, c.contractor_id, c.created_at, c.updated_at`

const jobColumns = `j.id, j.contract_id, j.description, j.price, j.paid, j.payment_date, j.created_at, j.updated_at`

// GetContractForParty returns the contract only when profileID is one of its
// parties. An unknown id and a foreign contract look the same to the caller.
func (r *ContractRepository) GetContractForParty(ctx context.Context, id, profileID uuid.UUID) (*model.Contract, error) {
	var contract model.Contract
	err := r.db.WithContext(ctx).Raw(`
		SELECT `+contractColumns+`
		FROM contracts c
		WHERE c.id = ?
			AND (c.client_id = ? OR c.contractor_id = ?)
		LIMIT 1
	`, id, profileID, profileID).Scan(&contract).Error
	if err != nil {
		return nil, err
	}
	if contract.ID == uuid.Nil {
		return nil, gorm.ErrRecordNotFound
	}
	return &contract, nil
}

func (r *ContractRepository) ListContractsForParty(
	ctx context.Context,
	profileID uuid.UUID,
	statuses []model.ContractStatus,
) ([]model.Contract, error) {
	baseQuery := `
		SELECT ` + contractColumns + `
		FROM contracts c
		WHERE (c.client_id = ? OR c.contractor_id = ?)
	`
	args := []interface{}{profileID, profileID}
	baseQuery, args = appendStatusFilter(baseQuery, args, statuses)
	baseQuery += " ORDER BY c.created_at ASC, c.id ASC"

	contracts := []model.Contract{}
	if err := r.db.WithContext(ctx).Raw(baseQuery, args...).Scan(&contracts).Error; err != nil {
		return nil, err
	}
	return contracts, nil
}

func (r *ContractRepository) ListUnpaidJobsInProgress(ctx context.Context, profileID uuid.UUID) ([]model.Job, error) {
	jobs := []model.Job{}
	err := r.db.WithContext(ctx).Raw(`
		SELECT `+jobColumns+`
		FROM jobs j
		JOIN contracts c ON c.id = j.contract_id
		WHERE j.paid IS NULL
			AND c.status = ?
			AND (c.client_id = ? OR c.contractor_id = ?)
		ORDER BY j.created_at ASC, j.id ASC
	`, model.ContractStatusInProgress, profileID, profileID).Scan(&jobs).Error
	if err != nil {
		return nil, err
	}
	return jobs, nil
}

// GetPaidJobReceipt loads a paid job with its contract and both parties,
// restricted to jobs where profileID is a party.
func (r *ContractRepository) GetPaidJobReceipt(ctx context.Context, jobID, profileID uuid.UUID) (*model.JobReceipt, error) {
	var row struct {
		JobID                uuid.UUID
		JobDescription       string
		JobPrice             decimal.Decimal
		JobPaymentDate       *time.Time
		JobCreatedAt         time.Time
		ContractID           uuid.UUID
		ContractTerms        string
		ContractStatus       model.ContractStatus
		ClientID             uuid.UUID
		ClientFirstName      string
		ClientLastName       string
		ContractorID         uuid.UUID
		ContractorFirstName  string
		ContractorLastName   string
		ContractorProfession string
	}

	err := r.db.WithContext(ctx).Raw(`
		SELECT
			j.id AS job_id,
			j.description AS job_description,
			j.price AS job_price,
			j.payment_date AS job_payment_date,
			j.created_at AS job_created_at,
			c.id AS contract_id,
			c.terms AS contract_terms,
			c.status AS contract_status,
			client.id AS client_id,
			client.first_name AS client_first_name,
			client.last_name AS client_last_name,
			contractor.id AS contractor_id,
			contractor.first_name AS contractor_first_name,
			contractor.last_name AS contractor_last_name,
			contractor.profession AS contractor_profession
		FROM jobs j
		JOIN contracts c ON c.id = j.contract_id
		JOIN profiles client ON client.id = c.client_id
		JOIN profiles contractor ON contractor.id = c.contractor_id
		WHERE j.id = ?
			AND j.paid
			AND (c.client_id = ? OR c.contractor_id = ?)
		LIMIT 1
	`, jobID, profileID, profileID).Scan(&row).Error
	if err != nil {
		return nil, err
	}
	if row.JobID == uuid.Nil {
		return nil, gorm.ErrRecordNotFound
	}

	paid := true
	return &model.JobReceipt{
		Job: model.Job{
			ID:          row.JobID,
			ContractID:  row.ContractID,
			Description: row.JobDescription,
			Price:       row.JobPrice,
			Paid:        &paid,
			PaymentDate: row.JobPaymentDate,
			CreatedAt:   row.JobCreatedAt,
		},
		Contract: model.Contract{
			ID:           row.ContractID,
			Terms:        row.ContractTerms,
			Status:       row.ContractStatus,
			ClientID:     row.ClientID,
			ContractorID: row.ContractorID,
		},
		Client: model.Profile{
			ID:        row.ClientID,
			FirstName: row.ClientFirstName,
			LastName:  row.ClientLastName,
			Role:      model.ProfileRoleClient,
		},
		Contractor: model.Profile{
			ID:         row.ContractorID,
			FirstName:  row.ContractorFirstName,
			LastName:   row.ContractorLastName,
			Profession: row.ContractorProfession,
			Role:       model.ProfileRoleContractor,
		},
	}, nil
}

func appendStatusFilter(baseQuery string, args []interface{}, statuses []model.ContractStatus) (string, []interface{}) {
	if len(statuses) == 0 {
		return baseQuery, args
	}

	placeholders := make([]string, len(statuses))
	for i := range statuses {
		placeholders[i] = "?"
	}
	baseQuery += fmt.Sprintf(" AND c.status IN (%s)", strings.Join(placeholders, ","))
	for _, status := range statuses {
		args = append(args, status)
	}
	return baseQuery, args
}
