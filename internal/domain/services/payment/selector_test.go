package payment

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainerrors "github.com/suiflow/suiflow_service/internal/domain/errors"
	"github.com/suiflow/suiflow_service/internal/infrastructure/adapters/sui"
)

func TestSelectorSelect(t *testing.T) {
	ctx := context.Background()

	t.Run("first fit in holdings order", func(t *testing.T) {
		ledger := newFakeLedger()
		ledger.coins = []sui.Coin{coin("0xa", 80), coin("0xb", 150), coin("0xc", 60)}

		// 0xc is the smallest qualifying unit, but holdings order wins.
		unit, err := NewSelector(ledger, "").Select(ctx, "0xowner", 50)

		require.NoError(t, err)
		assert.Equal(t, "0xa", unit.ID)
		assert.Equal(t, uint64(80), unit.Balance)
		assert.Equal(t, "d-0xa", unit.Digest)
	})

	t.Run("skips units below required", func(t *testing.T) {
		ledger := newFakeLedger()
		ledger.coins = []sui.Coin{coin("0xa", 80), coin("0xb", 150), coin("0xc", 60)}

		unit, err := NewSelector(ledger, "").Select(ctx, "0xowner", 100)

		require.NoError(t, err)
		assert.Equal(t, "0xb", unit.ID)
	})

	t.Run("exact balance qualifies", func(t *testing.T) {
		ledger := newFakeLedger()
		ledger.coins = []sui.Coin{coin("0xa", 60)}

		unit, err := NewSelector(ledger, "").Select(ctx, "0xowner", 60)

		require.NoError(t, err)
		assert.Equal(t, "0xa", unit.ID)
	})

	t.Run("walks pages and stops at first fit", func(t *testing.T) {
		ledger := newFakeLedger()
		ledger.coinPageSize = 2
		ledger.coins = []sui.Coin{coin("0xa", 1), coin("0xb", 2), coin("0xc", 90), coin("0xd", 3), coin("0xe", 4)}

		unit, err := NewSelector(ledger, "").Select(ctx, "0xowner", 50)

		require.NoError(t, err)
		assert.Equal(t, "0xc", unit.ID)
		assert.Equal(t, 2, ledger.count(sui.MethodGetCoins))
	})

	t.Run("insufficient funds", func(t *testing.T) {
		ledger := newFakeLedger()
		ledger.coins = []sui.Coin{coin("0xa", 40)}

		_, err := NewSelector(ledger, "").Select(ctx, "0xowner", 50)

		assert.ErrorIs(t, err, domainerrors.ErrInsufficientFunds)
		assert.Equal(t, "INSUFFICIENT_FUNDS", domainerrors.GetErrorCode(err))
	})

	t.Run("empty holdings", func(t *testing.T) {
		_, err := NewSelector(newFakeLedger(), "").Select(ctx, "0xowner", 1)
		assert.True(t, domainerrors.IsInsufficientFunds(err))
	})

	t.Run("holdings query failure", func(t *testing.T) {
		ledger := newFakeLedger()
		ledger.coinsErr = &sui.Error{Method: sui.MethodGetCoins, Cause: sui.CauseTransport}

		_, err := NewSelector(ledger, "").Select(ctx, "0xowner", 1)

		assert.ErrorIs(t, err, domainerrors.ErrQueryFailed)
	})

	t.Run("malformed balance", func(t *testing.T) {
		ledger := newFakeLedger()
		ledger.coins = []sui.Coin{{CoinObjectID: "0xa", Balance: "lots"}}

		_, err := NewSelector(ledger, "").Select(ctx, "0xowner", 1)

		assert.ErrorIs(t, err, domainerrors.ErrQueryFailed)
	})
}

func TestSelectorFindAndHoldings(t *testing.T) {
	ctx := context.Background()
	ledger := newFakeLedger()
	ledger.coinPageSize = 1
	ledger.coins = []sui.Coin{coin("0xa", 10), coin("0xb", 20)}
	selector := NewSelector(ledger, "")

	unit, err := selector.Find(ctx, "0xowner", "0xb")
	require.NoError(t, err)
	require.NotNil(t, unit)
	assert.Equal(t, uint64(20), unit.Balance)

	missing, err := selector.Find(ctx, "0xowner", "0xz")
	require.NoError(t, err)
	assert.Nil(t, missing)

	units, err := selector.Holdings(ctx, "0xowner")
	require.NoError(t, err)
	require.Len(t, units, 2)
	assert.Equal(t, "0x2::sui::SUI", units[0].CoinType)
}
