package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nurpe/jobpay/internal/config"
	"github.com/nurpe/jobpay/internal/metrics"
	"github.com/nurpe/jobpay/internal/model"
)

func testConfig() *config.Config {
	return &config.Config{
		Payments: config.PaymentsConfig{
			DepositLimitRatio: decimal.RequireFromString("0.25"),
		},
		Reports: config.ReportsConfig{
			DefaultClientLimit: 2,
		},
	}
}

func dec(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func principalOf(p model.Profile) model.Principal {
	return model.Principal{Profile: p}
}

func TestPayJobMovesPriceFromClientToContractor(t *testing.T) {
	ledger := newFakeLedger()
	client := ledger.addProfile(uuid.Nil, model.ProfileRoleClient, "100")
	contractor := ledger.addProfile(uuid.Nil, model.ProfileRoleContractor, "0")
	contract := ledger.addContract(client.ID, contractor.ID, model.ContractStatusInProgress)
	job := ledger.addJob(contract.ID, "30")

	svc := NewPaymentService(ledger, testConfig())
	fixed := time.Date(2020, 8, 15, 19, 11, 26, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	payment, err := svc.PayJob(context.Background(), PayJobInput{JobID: job.ID, Principal: principalOf(client)})
	require.NoError(t, err)

	assert.True(t, dec("70").Equal(payment.ClientBalance))
	assert.True(t, dec("30").Equal(payment.ContractorBalance))
	assert.True(t, dec("70").Equal(ledger.balance(client.ID)))
	assert.True(t, dec("30").Equal(ledger.balance(contractor.ID)))

	stored := ledger.job(job.ID)
	require.True(t, stored.IsPaid())
	require.NotNil(t, stored.PaymentDate)
	assert.Equal(t, fixed, *stored.PaymentDate)

	_, err = svc.PayJob(context.Background(), PayJobInput{JobID: job.ID, Principal: principalOf(client)})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.True(t, dec("70").Equal(ledger.balance(client.ID)))
	assert.True(t, dec("30").Equal(ledger.balance(contractor.ID)))
}

func TestPayJobConservesMoney(t *testing.T) {
	cases := []struct {
		name    string
		balance string
		price   string
		wantErr error
	}{
		{"exact balance", "30", "30", nil},
		{"fractional", "100.10", "99.99", nil},
		{"insufficient", "29.99", "30", ErrInsufficientFunds},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ledger := newFakeLedger()
			client := ledger.addProfile(uuid.Nil, model.ProfileRoleClient, tc.balance)
			contractor := ledger.addProfile(uuid.Nil, model.ProfileRoleContractor, "12.50")
			contract := ledger.addContract(client.ID, contractor.ID, model.ContractStatusInProgress)
			job := ledger.addJob(contract.ID, tc.price)
			before := ledger.balance(client.ID).Add(ledger.balance(contractor.ID))

			_, err := NewPaymentService(ledger, testConfig()).PayJob(context.Background(),
				PayJobInput{JobID: job.ID, Principal: principalOf(client)})
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				assert.False(t, ledger.job(job.ID).IsPaid())
			} else {
				require.NoError(t, err)
			}

			after := ledger.balance(client.ID).Add(ledger.balance(contractor.ID))
			assert.True(t, before.Equal(after), "money must be conserved: before %s after %s", before, after)
			assert.False(t, ledger.balance(client.ID).IsNegative())
		})
	}
}

func TestPayJobInsufficientFundsIsValidationFailure(t *testing.T) {
	ledger := newFakeLedger()
	client := ledger.addProfile(uuid.Nil, model.ProfileRoleClient, "10")
	contractor := ledger.addProfile(uuid.Nil, model.ProfileRoleContractor, "0")
	contract := ledger.addContract(client.ID, contractor.ID, model.ContractStatusInProgress)
	job := ledger.addJob(contract.ID, "30")

	_, err := NewPaymentService(ledger, testConfig()).PayJob(context.Background(),
		PayJobInput{JobID: job.ID, Principal: principalOf(client)})
	assert.ErrorIs(t, err, ErrInsufficientFunds)
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.NotErrorIs(t, err, ErrTransient)
	assert.Equal(t, 0, ledger.commits)
}

func TestPayJobPreconditionsCollapseToNotFound(t *testing.T) {
	ledger := newFakeLedger()
	client := ledger.addProfile(uuid.Nil, model.ProfileRoleClient, "100")
	contractor := ledger.addProfile(uuid.Nil, model.ProfileRoleContractor, "0")
	stranger := ledger.addProfile(uuid.Nil, model.ProfileRoleClient, "100")

	active := ledger.addContract(client.ID, contractor.ID, model.ContractStatusInProgress)
	fresh := ledger.addContract(client.ID, contractor.ID, model.ContractStatusNew)
	terminated := ledger.addContract(client.ID, contractor.ID, model.ContractStatusTerminated)

	activeJob := ledger.addJob(active.ID, "10")
	newJob := ledger.addJob(fresh.ID, "10")
	terminatedJob := ledger.addJob(terminated.ID, "10")

	svc := NewPaymentService(ledger, testConfig())
	cases := []struct {
		name   string
		caller model.Profile
		jobID  uuid.UUID
	}{
		{"contractor cannot pay", contractor, activeJob.ID},
		{"stranger cannot pay", stranger, activeJob.ID},
		{"contract not started", client, newJob.ID},
		{"contract terminated", client, terminatedJob.ID},
		{"unknown job", client, uuid.New()},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.PayJob(context.Background(), PayJobInput{JobID: tc.jobID, Principal: principalOf(tc.caller)})
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
	assert.True(t, dec("100").Equal(ledger.balance(client.ID)))
	assert.True(t, dec("0").Equal(ledger.balance(contractor.ID)))
}

func TestPayJobConcurrentCallsPayExactlyOnce(t *testing.T) {
	ledger := newFakeLedger()
	client := ledger.addProfile(uuid.Nil, model.ProfileRoleClient, "1000")
	contractor := ledger.addProfile(uuid.Nil, model.ProfileRoleContractor, "0")
	contract := ledger.addContract(client.ID, contractor.ID, model.ContractStatusInProgress)
	job := ledger.addJob(contract.ID, "200")
	svc := NewPaymentService(ledger, testConfig())

	const callers = 20
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		notFound  int
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.PayJob(context.Background(), PayJobInput{JobID: job.ID, Principal: principalOf(client)})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, ErrNotFound):
				notFound++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, callers-1, notFound)
	assert.True(t, dec("800").Equal(ledger.balance(client.ID)))
	assert.True(t, dec("200").Equal(ledger.balance(contractor.ID)))
}

func TestPayJobRollsBackOnStoreFailure(t *testing.T) {
	ledger := newFakeLedger()
	client := ledger.addProfile(uuid.Nil, model.ProfileRoleClient, "100")
	contractor := ledger.addProfile(uuid.Nil, model.ProfileRoleContractor, "0")
	contract := ledger.addContract(client.ID, contractor.ID, model.ContractStatusInProgress)
	job := ledger.addJob(contract.ID, "30")
	ledger.failMarkPaid = errors.New("connection reset by peer")

	_, err := NewPaymentService(ledger, testConfig()).PayJob(context.Background(),
		PayJobInput{JobID: job.ID, Principal: principalOf(client)})
	assert.ErrorIs(t, err, ErrTransient)
	assert.NotErrorIs(t, err, ErrNotFound)

	assert.True(t, dec("100").Equal(ledger.balance(client.ID)))
	assert.True(t, dec("0").Equal(ledger.balance(contractor.ID)))
	assert.False(t, ledger.job(job.ID).IsPaid())
}

func TestPayJobLocksProfilesInAscendingOrder(t *testing.T) {
	ledger := newFakeLedger()
	client := ledger.addProfile(uuid.MustParse("ffffffff-0000-0000-0000-000000000000"), model.ProfileRoleClient, "100")
	contractor := ledger.addProfile(uuid.MustParse("00000000-0000-0000-0000-000000000001"), model.ProfileRoleContractor, "0")
	contract := ledger.addContract(client.ID, contractor.ID, model.ContractStatusInProgress)
	job := ledger.addJob(contract.ID, "30")

	_, err := NewPaymentService(ledger, testConfig()).PayJob(context.Background(),
		PayJobInput{JobID: job.ID, Principal: principalOf(client)})
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{contractor.ID, client.ID}, ledger.lockOrder)
}

func TestDepositRespectsQuarterOfDebt(t *testing.T) {
	ledger := newFakeLedger()
	client := ledger.addProfile(uuid.Nil, model.ProfileRoleClient, "0")
	contractor := ledger.addProfile(uuid.Nil, model.ProfileRoleContractor, "0")
	contract := ledger.addContract(client.ID, contractor.ID, model.ContractStatusInProgress)
	ledger.addJob(contract.ID, "50")
	ledger.addJob(contract.ID, "50")
	svc := NewPaymentService(ledger, testConfig())

	_, err := svc.Deposit(context.Background(), DepositInput{TargetID: client.ID, Amount: dec("60"), Principal: principalOf(client)})
	assert.ErrorIs(t, err, ErrDepositLimitExceeded)
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.True(t, dec("0").Equal(ledger.balance(client.ID)))

	_, err = svc.Deposit(context.Background(), DepositInput{TargetID: client.ID, Amount: dec("25.01"), Principal: principalOf(client)})
	assert.ErrorIs(t, err, ErrDepositLimitExceeded)

	result, err := svc.Deposit(context.Background(), DepositInput{TargetID: client.ID, Amount: dec("25"), Principal: principalOf(client)})
	require.NoError(t, err)
	assert.True(t, dec("25").Equal(result.Limit))
	assert.True(t, dec("25").Equal(result.Balance))
	assert.True(t, dec("25").Equal(ledger.balance(client.ID)))
}

func TestDepositIgnoresPaidAndInactiveJobs(t *testing.T) {
	ledger := newFakeLedger()
	client := ledger.addProfile(uuid.Nil, model.ProfileRoleClient, "1000")
	contractor := ledger.addProfile(uuid.Nil, model.ProfileRoleContractor, "0")
	active := ledger.addContract(client.ID, contractor.ID, model.ContractStatusInProgress)
	terminated := ledger.addContract(client.ID, contractor.ID, model.ContractStatusTerminated)
	paidJob := ledger.addJob(active.ID, "400")
	ledger.addJob(active.ID, "40")
	ledger.addJob(terminated.ID, "400")
	svc := NewPaymentService(ledger, testConfig())

	_, err := svc.PayJob(context.Background(), PayJobInput{JobID: paidJob.ID, Principal: principalOf(client)})
	require.NoError(t, err)

	_, err = svc.Deposit(context.Background(), DepositInput{TargetID: client.ID, Amount: dec("10.01"), Principal: principalOf(client)})
	assert.ErrorIs(t, err, ErrDepositLimitExceeded)

	result, err := svc.Deposit(context.Background(), DepositInput{TargetID: client.ID, Amount: dec("10"), Principal: principalOf(client)})
	require.NoError(t, err)
	assert.True(t, dec("610").Equal(result.Balance))
}

func TestDepositWithoutDebtIsRejected(t *testing.T) {
	ledger := newFakeLedger()
	client := ledger.addProfile(uuid.Nil, model.ProfileRoleClient, "5")

	_, err := NewPaymentService(ledger, testConfig()).Deposit(context.Background(),
		DepositInput{TargetID: client.ID, Amount: dec("0.01"), Principal: principalOf(client)})
	assert.ErrorIs(t, err, ErrDepositLimitExceeded)
	assert.True(t, dec("5").Equal(ledger.balance(client.ID)))
}

func TestDepositValidation(t *testing.T) {
	ledger := newFakeLedger()
	client := ledger.addProfile(uuid.Nil, model.ProfileRoleClient, "0")
	contractor := ledger.addProfile(uuid.Nil, model.ProfileRoleContractor, "0")
	contract := ledger.addContract(client.ID, contractor.ID, model.ContractStatusInProgress)
	ledger.addJob(contract.ID, "400")
	svc := NewPaymentService(ledger, testConfig())

	_, err := svc.Deposit(context.Background(), DepositInput{TargetID: client.ID, Amount: dec("0"), Principal: principalOf(client)})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.Deposit(context.Background(), DepositInput{TargetID: client.ID, Amount: dec("-5"), Principal: principalOf(client)})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.Deposit(context.Background(), DepositInput{TargetID: contractor.ID, Amount: dec("5"), Principal: principalOf(contractor)})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.Deposit(context.Background(), DepositInput{TargetID: uuid.New(), Amount: dec("5"), Principal: principalOf(client)})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDepositRejectsFractionsOfCent(t *testing.T) {
	ledger := newFakeLedger()
	client := ledger.addProfile(uuid.Nil, model.ProfileRoleClient, "0")
	contractor := ledger.addProfile(uuid.Nil, model.ProfileRoleContractor, "0")
	contract := ledger.addContract(client.ID, contractor.ID, model.ContractStatusInProgress)
	ledger.addJob(contract.ID, "0.10")
	svc := NewPaymentService(ledger, testConfig())

	_, err := svc.Deposit(context.Background(), DepositInput{TargetID: client.ID, Amount: dec("0.025"), Principal: principalOf(client)})
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.NotErrorIs(t, err, ErrDepositLimitExceeded)
	assert.True(t, dec("0").Equal(ledger.balance(client.ID)))
	assert.Zero(t, ledger.commits)

	_, err = svc.Deposit(context.Background(), DepositInput{TargetID: client.ID, Amount: dec("0.03"), Principal: principalOf(client)})
	assert.ErrorIs(t, err, ErrDepositLimitExceeded)

	result, err := svc.Deposit(context.Background(), DepositInput{TargetID: client.ID, Amount: dec("0.020"), Principal: principalOf(client)})
	require.NoError(t, err)
	assert.Equal(t, "0.02", result.Amount.String())
	assert.True(t, dec("0.02").Equal(ledger.balance(client.ID)))
}

func TestDepositForAnotherProfile(t *testing.T) {
	ledger := newFakeLedger()
	client := ledger.addProfile(uuid.Nil, model.ProfileRoleClient, "0")
	other := ledger.addProfile(uuid.Nil, model.ProfileRoleClient, "0")
	contractor := ledger.addProfile(uuid.Nil, model.ProfileRoleContractor, "0")
	contract := ledger.addContract(client.ID, contractor.ID, model.ContractStatusInProgress)
	ledger.addJob(contract.ID, "400")

	open := NewPaymentService(ledger, testConfig())
	_, err := open.Deposit(context.Background(), DepositInput{TargetID: client.ID, Amount: dec("5"), Principal: principalOf(other)})
	require.NoError(t, err)

	cfg := testConfig()
	cfg.Payments.DepositSelfOnly = true
	strict := NewPaymentService(ledger, cfg)
	_, err = strict.Deposit(context.Background(), DepositInput{TargetID: client.ID, Amount: dec("5"), Principal: principalOf(other)})
	assert.ErrorIs(t, err, ErrPermissionDenied)
	assert.True(t, dec("5").Equal(ledger.balance(client.ID)))
}

func TestDepositLimit(t *testing.T) {
	assert.True(t, dec("25").Equal(DepositLimit(dec("100"), dec("0.25"))))
	assert.True(t, dec("0").Equal(DepositLimit(decimal.Zero, dec("0.25"))))
	assert.True(t, dec("100.5").Equal(DepositLimit(dec("402"), dec("0.25"))))
}

func TestClassify(t *testing.T) {
	assert.NoError(t, classify(nil))
	assert.ErrorIs(t, classify(ErrInsufficientFunds), ErrInsufficientFunds)

	wrapped := classify(errors.New("driver: bad connection"))
	assert.ErrorIs(t, wrapped, ErrTransient)

	for _, code := range []string{"23514", "22003"} {
		rejected := classify(&pgconn.PgError{Code: code})
		assert.ErrorIs(t, rejected, ErrInternal, code)
		assert.NotErrorIs(t, rejected, ErrTransient, code)
		assert.Equal(t, metrics.OutcomeError, outcome(rejected), code)
	}
}

func TestPayJobConstraintFailureIsNotRetryable(t *testing.T) {
	ledger := newFakeLedger()
	client := ledger.addProfile(uuid.Nil, model.ProfileRoleClient, "100")
	contractor := ledger.addProfile(uuid.Nil, model.ProfileRoleContractor, "0")
	contract := ledger.addContract(client.ID, contractor.ID, model.ContractStatusInProgress)
	job := ledger.addJob(contract.ID, "30")
	ledger.failMarkPaid = &pgconn.PgError{Code: "22003", Message: "numeric field overflow"}

	_, err := NewPaymentService(ledger, testConfig()).PayJob(context.Background(),
		PayJobInput{JobID: job.ID, Principal: principalOf(client)})
	assert.ErrorIs(t, err, ErrInternal)
	assert.NotErrorIs(t, err, ErrTransient)

	assert.True(t, dec("100").Equal(ledger.balance(client.ID)))
	assert.True(t, dec("0").Equal(ledger.balance(contractor.ID)))
	assert.False(t, ledger.job(job.ID).IsPaid())
}
