package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nurpe/jobpay/internal/model"
)

type ContractStore interface {
	GetContractForParty(ctx context.Context, id, profileID uuid.UUID) (*model.Contract, error)
	ListContractsForParty(ctx context.Context, profileID uuid.UUID, statuses []model.ContractStatus) ([]model.Contract, error)
	ListUnpaidJobsInProgress(ctx context.Context, profileID uuid.UUID) ([]model.Job, error)
	GetPaidJobReceipt(ctx context.Context, jobID, profileID uuid.UUID) (*model.JobReceipt, error)
}

type ReceiptGenerator interface {
	Generate(receipt model.JobReceipt) ([]byte, error)
}

type ContractService struct {
	repo     ContractStore
	receipts ReceiptGenerator
}

type GenerateReceiptResult struct {
	FileName string
	Content  []byte
}

func NewContractService(repo ContractStore, receipts ReceiptGenerator) *ContractService {
	return &ContractService{repo: repo, receipts: receipts}
}

func (s *ContractService) GetContract(ctx context.Context, principal model.Principal, id uuid.UUID) (*model.Contract, error) {
	if id == uuid.Nil {
		return nil, fmt.Errorf("%w: contract id is required", ErrInvalidInput)
	}

	contract, err := s.repo.GetContractForParty(ctx, id, principal.ID())
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, classify(err)
	}
	if !AuthorizeParty(principal.Profile, *contract) {
		return nil, ErrNotFound
	}
	return contract, nil
}

func (s *ContractService) ListContracts(ctx context.Context, principal model.Principal, statuses []model.ContractStatus) ([]model.Contract, error) {
	for _, status := range statuses {
		if !status.Valid() {
			return nil, fmt.Errorf("%w: unknown contract status %q", ErrInvalidInput, status)
		}
	}

	contracts, err := s.repo.ListContractsForParty(ctx, principal.ID(), statuses)
	if err != nil {
		return nil, classify(err)
	}

	result := make([]model.Contract, 0, len(contracts))
	for _, contract := range contracts {
		if AuthorizeParty(principal.Profile, contract) {
			result = append(result, contract)
		}
	}
	return result, nil
}

func (s *ContractService) ListUnpaidJobs(ctx context.Context, principal model.Principal) ([]model.Job, error) {
	jobs, err := s.repo.ListUnpaidJobsInProgress(ctx, principal.ID())
	if err != nil {
		return nil, classify(err)
	}
	if jobs == nil {
		jobs = []model.Job{}
	}
	return jobs, nil
}

// GenerateReceipt renders a PDF receipt for a paid job the caller is a party to.
func (s *ContractService) GenerateReceipt(ctx context.Context, principal model.Principal, jobID uuid.UUID) (*GenerateReceiptResult, error) {
	if jobID == uuid.Nil {
		return nil, fmt.Errorf("%w: job id is required", ErrInvalidInput)
	}

	receipt, err := s.repo.GetPaidJobReceipt(ctx, jobID, principal.ID())
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, classify(err)
	}
	if !AuthorizeParty(principal.Profile, receipt.Contract) {
		return nil, ErrNotFound
	}

	content, err := s.receipts.Generate(*receipt)
	if err != nil {
		return nil, err
	}
	return &GenerateReceiptResult{
		FileName: fmt.Sprintf("receipt-%s.pdf", receipt.Job.ID.String()),
		Content:  content,
	}, nil
}
