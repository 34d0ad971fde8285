package payment

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suiflow/suiflow_service/internal/domain/entities"
	domainerrors "github.com/suiflow/suiflow_service/internal/domain/errors"
	"github.com/suiflow/suiflow_service/internal/domain/services/signing"
	"github.com/suiflow/suiflow_service/internal/infrastructure/adapters/sui"
	"github.com/suiflow/suiflow_service/pkg/logger"
)

func testConfig() Config {
	return Config{
		PackageID:         "0xpkg",
		ProcessorObjectID: "0xproc",
		ProductPrice:      40,
		AdminFee:          10,
		GasBudget:         1_000,
	}
}

func newTestOrchestrator(t *testing.T, ledger *fakeLedger, admin signing.Identity) *Orchestrator {
	t.Helper()
	o, err := NewOrchestrator(ledger, testConfig(), admin, logger.NewNop())
	require.NoError(t, err)
	return o
}

func paymentRequest() entities.PaymentRequest {
	return entities.PaymentRequest{
		MerchantAddress: "0xmerchant",
		MerchantID:      "shop-1",
		ProductID:       "widget",
	}
}

func TestConfigValidate(t *testing.T) {
	cfg := testConfig()
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, uint64(50), cfg.RequiredAmount())

	missing := cfg
	missing.PackageID = ""
	assert.ErrorIs(t, missing.Validate(), domainerrors.ErrInvalidInput)

	overflow := cfg
	overflow.ProductPrice = ^uint64(0)
	assert.ErrorIs(t, overflow.Validate(), domainerrors.ErrInvalidInput)

	_, err := NewOrchestrator(newFakeLedger(), missing, nil, logger.NewNop())
	assert.Error(t, err)
}

func TestProcessPayment(t *testing.T) {
	ctx := context.Background()

	t.Run("selects first fit and submits", func(t *testing.T) {
		ledger := newFakeLedger()
		ledger.coins = []sui.Coin{coin("0xsmall", 20), coin("0xa", 80), coin("0xb", 150)}
		customer := testIdentity(t, 3)

		receipt, err := newTestOrchestrator(t, ledger, nil).ProcessPayment(ctx, paymentRequest(), customer)

		require.NoError(t, err)
		assert.Equal(t, "0xa", receipt.FundingUnit.ID)
		assert.Equal(t, uint64(50), receipt.RequiredAmount)
		assert.NotEmpty(t, receipt.TransactionDigest)

		require.Len(t, ledger.moveCalls, 1)
		args := ledger.moveCalls[0].Arguments
		assert.Equal(t, "0xproc", args[0])
		assert.Equal(t, "0xmerchant", args[1])
		assert.Equal(t, ByteVector("shop-1"), args[2])
		assert.Equal(t, ByteVector("widget"), args[3])
		assert.Equal(t, "0xa", args[4])
		assert.Equal(t, customer.Address(), ledger.moveCalls[0].Signer)
	})

	t.Run("insufficient funds submits nothing", func(t *testing.T) {
		ledger := newFakeLedger()
		ledger.coins = []sui.Coin{coin("0xa", 40)}

		_, err := newTestOrchestrator(t, ledger, nil).ProcessPayment(ctx, paymentRequest(), testIdentity(t, 3))

		assert.ErrorIs(t, err, domainerrors.ErrInsufficientFunds)
		assert.Equal(t, 0, ledger.count(sui.MethodMoveCall))
		assert.Equal(t, 0, ledger.count(sui.MethodExecuteTxBlock))
		assert.Equal(t, domainerrors.OutcomeFundsNotMoved, domainerrors.ClassifyOutcome(err))
	})

	t.Run("pre-supplied unit is used when still valid", func(t *testing.T) {
		ledger := newFakeLedger()
		ledger.coins = []sui.Coin{coin("0xa", 80), coin("0xb", 150)}
		req := paymentRequest()
		req.FundingUnitID = "0xb"

		receipt, err := newTestOrchestrator(t, ledger, nil).ProcessPayment(ctx, req, testIdentity(t, 3))

		require.NoError(t, err)
		assert.Equal(t, "0xb", receipt.FundingUnit.ID)
	})

	t.Run("pre-supplied unit no longer held", func(t *testing.T) {
		ledger := newFakeLedger()
		ledger.coins = []sui.Coin{coin("0xa", 80)}
		req := paymentRequest()
		req.FundingUnitID = "0xgone"

		_, err := newTestOrchestrator(t, ledger, nil).ProcessPayment(ctx, req, testIdentity(t, 3))

		assert.ErrorIs(t, err, domainerrors.ErrStaleFundingReference)
		assert.Equal(t, 0, ledger.count(sui.MethodMoveCall))
	})

	t.Run("pre-supplied unit below required", func(t *testing.T) {
		ledger := newFakeLedger()
		ledger.coins = []sui.Coin{coin("0xa", 49)}
		req := paymentRequest()
		req.FundingUnitID = "0xa"

		_, err := newTestOrchestrator(t, ledger, nil).ProcessPayment(ctx, req, testIdentity(t, 3))

		assert.ErrorIs(t, err, domainerrors.ErrStaleFundingReference)
		assert.Equal(t, 0, ledger.count(sui.MethodMoveCall))
	})

	t.Run("missing customer or merchant", func(t *testing.T) {
		ledger := newFakeLedger()
		o := newTestOrchestrator(t, ledger, nil)

		_, err := o.ProcessPayment(ctx, paymentRequest(), nil)
		assert.ErrorIs(t, err, domainerrors.ErrInvalidArgument)

		_, err = o.ProcessPayment(ctx, entities.PaymentRequest{MerchantID: "m"}, testIdentity(t, 3))
		assert.ErrorIs(t, err, domainerrors.ErrInvalidArgument)
		assert.Equal(t, 0, ledger.total())
	})
}

func TestProcessPaymentConcurrentRace(t *testing.T) {
	ledger := newFakeLedger()
	ledger.coins = []sui.Coin{coin("0xa", 100)}
	o := newTestOrchestrator(t, ledger, nil)
	customer := testIdentity(t, 9)

	const workers = 2
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = o.ProcessPayment(context.Background(), paymentRequest(), customer)
		}(i)
	}
	wg.Wait()

	succeeded, consumed := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case domainerrors.IsUnitAlreadyConsumed(err):
			consumed++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, consumed)
	assert.Equal(t, 2, ledger.count(sui.MethodExecuteTxBlock))
}

func TestWithdrawAdminFees(t *testing.T) {
	ctx := context.Background()

	t.Run("refused without admin identity and no network calls", func(t *testing.T) {
		ledger := newFakeLedger()
		o := newTestOrchestrator(t, ledger, nil)

		_, err := o.WithdrawAdminFees(ctx)

		assert.ErrorIs(t, err, domainerrors.ErrUnauthorizedOperation)
		assert.Equal(t, 0, ledger.total())
		assert.False(t, o.HasAdmin())
	})

	t.Run("submits with admin identity", func(t *testing.T) {
		ledger := newFakeLedger()
		admin := testIdentity(t, 1)

		result, err := newTestOrchestrator(t, ledger, admin).WithdrawAdminFees(ctx)

		require.NoError(t, err)
		assert.NotEmpty(t, result.TransactionDigest)
		require.Len(t, ledger.moveCalls, 1)
		assert.Equal(t, "withdraw_admin_fees", ledger.moveCalls[0].Function)
		assert.Equal(t, admin.Address(), ledger.moveCalls[0].Signer)
		assert.Equal(t, []interface{}{"0xproc"}, ledger.moveCalls[0].Arguments)
	})
}

func TestOrchestratorReadPaths(t *testing.T) {
	ctx := context.Background()
	ledger := newFakeLedger()
	ledger.coins = []sui.Coin{coin("0xa", 5)}
	ledger.events[paymentType] = paymentEvents(4)
	ledger.object = processorObject(`{"fields":{"admin_address":"0xadmin","total_fees_collected":"40","total_payments_processed":"4"}}`)
	o := newTestOrchestrator(t, ledger, nil)

	stats, err := o.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(4), stats.TotalPaymentsProcessed)

	payments, err := o.PaymentEvents(ctx, 3)
	require.NoError(t, err)
	assert.Len(t, payments, 3)

	fees, err := o.AdminFeeEvents(ctx, 3)
	require.NoError(t, err)
	assert.Empty(t, fees)

	coins, err := o.Coins(ctx, "0xowner")
	require.NoError(t, err)
	require.Len(t, coins, 1)
	assert.Equal(t, uint64(5), coins[0].Balance)

	_, err = o.Coins(ctx, "")
	assert.ErrorIs(t, err, domainerrors.ErrInvalidArgument)
}
