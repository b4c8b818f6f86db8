package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/nurpe/jobpay/internal/model"
	"github.com/nurpe/jobpay/internal/repository"
)

// fakeLedger is an in-memory PaymentStore. Transactions are serialized by a
// mutex and work on copies that are only published on commit.
type fakeLedger struct {
	mu        sync.Mutex
	profiles  map[uuid.UUID]model.Profile
	contracts map[uuid.UUID]model.Contract
	jobs      map[uuid.UUID]model.Job

	lockOrder    []uuid.UUID
	failMarkPaid error
	commits      int
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		profiles:  make(map[uuid.UUID]model.Profile),
		contracts: make(map[uuid.UUID]model.Contract),
		jobs:      make(map[uuid.UUID]model.Job),
	}
}

func (f *fakeLedger) addProfile(id uuid.UUID, role model.ProfileRole, balance string) model.Profile {
	f.mu.Lock()
	defer f.mu.Unlock()
	if id == uuid.Nil {
		id = uuid.New()
	}
	profile := model.Profile{
		ID:        id,
		FirstName: "First",
		LastName:  "Last",
		Role:      role,
		Balance:   decimal.RequireFromString(balance),
	}
	if role == model.ProfileRoleContractor {
		profile.Profession = "Programmer"
	}
	f.profiles[id] = profile
	return profile
}

func (f *fakeLedger) addContract(client, contractor uuid.UUID, status model.ContractStatus) model.Contract {
	f.mu.Lock()
	defer f.mu.Unlock()
	contract := model.Contract{
		ID:           uuid.New(),
		Status:       status,
		ClientID:     client,
		ContractorID: contractor,
	}
	f.contracts[contract.ID] = contract
	return contract
}

func (f *fakeLedger) addJob(contractID uuid.UUID, price string) model.Job {
	f.mu.Lock()
	defer f.mu.Unlock()
	job := model.Job{
		ID:         uuid.New(),
		ContractID: contractID,
		Price:      decimal.RequireFromString(price),
	}
	f.jobs[job.ID] = job
	return job
}

func (f *fakeLedger) balance(id uuid.UUID) decimal.Decimal {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.profiles[id].Balance
}

func (f *fakeLedger) job(id uuid.UUID) model.Job {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.jobs[id]
}

func (f *fakeLedger) InTx(ctx context.Context, fn func(tx repository.PaymentTx) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	tx := &fakeTx{
		ledger:   f,
		profiles: make(map[uuid.UUID]model.Profile, len(f.profiles)),
		jobs:     make(map[uuid.UUID]model.Job, len(f.jobs)),
	}
	for id, p := range f.profiles {
		tx.profiles[id] = p
	}
	for id, j := range f.jobs {
		tx.jobs[id] = j
	}

	if err := fn(tx); err != nil {
		return err
	}
	f.profiles = tx.profiles
	f.jobs = tx.jobs
	f.commits++
	return nil
}

type fakeTx struct {
	ledger   *fakeLedger
	profiles map[uuid.UUID]model.Profile
	jobs     map[uuid.UUID]model.Job
}

func (t *fakeTx) LockPayableJob(_ context.Context, jobID, clientID uuid.UUID) (*model.PayableJob, error) {
	job, ok := t.jobs[jobID]
	if !ok || job.Paid != nil {
		return nil, gorm.ErrRecordNotFound
	}
	contract, ok := t.ledger.contracts[job.ContractID]
	if !ok || contract.Status != model.ContractStatusInProgress || contract.ClientID != clientID {
		return nil, gorm.ErrRecordNotFound
	}
	return &model.PayableJob{Job: job, ClientID: contract.ClientID, ContractorID: contract.ContractorID}, nil
}

func (t *fakeTx) LockProfile(_ context.Context, id uuid.UUID) (*model.Profile, error) {
	profile, ok := t.profiles[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	t.ledger.lockOrder = append(t.ledger.lockOrder, id)
	return &profile, nil
}

func (t *fakeTx) AdjustBalance(_ context.Context, id uuid.UUID, delta decimal.Decimal) (decimal.Decimal, error) {
	profile, ok := t.profiles[id]
	if !ok {
		return decimal.Zero, gorm.ErrRecordNotFound
	}
	next := profile.Balance.Add(delta)
	if next.IsNegative() {
		return decimal.Zero, repository.ErrBalanceConflict
	}
	profile.Balance = next
	t.profiles[id] = profile
	return next, nil
}

func (t *fakeTx) MarkJobPaid(_ context.Context, jobID uuid.UUID, paidAt time.Time) error {
	if t.ledger.failMarkPaid != nil {
		return t.ledger.failMarkPaid
	}
	job, ok := t.jobs[jobID]
	if !ok || job.Paid != nil {
		return repository.ErrAlreadyPaid
	}
	paid := true
	job.Paid = &paid
	job.PaymentDate = &paidAt
	t.jobs[jobID] = job
	return nil
}

func (t *fakeTx) OutstandingDebt(_ context.Context, clientID uuid.UUID) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, job := range t.jobs {
		if job.Paid != nil {
			continue
		}
		contract := t.ledger.contracts[job.ContractID]
		if contract.ClientID == clientID && contract.Status == model.ContractStatusInProgress {
			total = total.Add(job.Price)
		}
	}
	return total, nil
}
