package payment

import (
	"context"

	"github.com/suiflow/suiflow_service/internal/domain/entities"
	domainerrors "github.com/suiflow/suiflow_service/internal/domain/errors"
	"github.com/suiflow/suiflow_service/internal/infrastructure/adapters/sui"
)

// DefaultHoldingsPageSize is the page size used when scanning an owner's coins.
const DefaultHoldingsPageSize = 50

// Selector picks the funding unit for a payment. It never mutates state.
type Selector struct {
	ledger   sui.LedgerClient
	coinType string
	pageSize int
}

// NewSelector creates a selector over coins of coinType.
func NewSelector(ledger sui.LedgerClient, coinType string) *Selector {
	if coinType == "" {
		coinType = entities.DefaultCoinType
	}
	return &Selector{
		ledger:   ledger,
		coinType: coinType,
		pageSize: DefaultHoldingsPageSize,
	}
}

// Select returns the first unit, in the order the ledger lists holdings,
// whose balance covers required. Scanning stops at the first fit.
func (s *Selector) Select(ctx context.Context, owner string, required uint64) (entities.FundingUnit, error) {
	var found *entities.FundingUnit
	err := s.scan(ctx, owner, func(u entities.FundingUnit) bool {
		if u.Balance >= required {
			found = &u
			return false
		}
		return true
	})
	if err != nil {
		return entities.FundingUnit{}, err
	}
	if found == nil {
		return entities.FundingUnit{}, domainerrors.InsufficientFundsError(owner, required)
	}
	return *found, nil
}

// Find looks up a specific unit among the owner's current holdings.
// It returns nil when the owner no longer holds the unit.
func (s *Selector) Find(ctx context.Context, owner, unitID string) (*entities.FundingUnit, error) {
	var found *entities.FundingUnit
	err := s.scan(ctx, owner, func(u entities.FundingUnit) bool {
		if u.ID == unitID {
			found = &u
			return false
		}
		return true
	})
	return found, err
}

// Holdings lists every unit the owner holds.
func (s *Selector) Holdings(ctx context.Context, owner string) ([]entities.FundingUnit, error) {
	units := []entities.FundingUnit{}
	err := s.scan(ctx, owner, func(u entities.FundingUnit) bool {
		units = append(units, u)
		return true
	})
	if err != nil {
		return nil, err
	}
	return units, nil
}

// scan walks holdings page by page until visit returns false or pages run out.
func (s *Selector) scan(ctx context.Context, owner string, visit func(entities.FundingUnit) bool) error {
	var cursor *string
	for {
		page, err := s.ledger.GetCoins(ctx, owner, s.coinType, cursor, s.pageSize)
		if err != nil {
			return domainerrors.QueryFailedError("holdings", err)
		}

		for _, coin := range page.Data {
			unit, err := toFundingUnit(coin, s.coinType)
			if err != nil {
				return domainerrors.QueryFailedError("holdings", err)
			}
			if !visit(unit) {
				return nil
			}
		}

		if !page.HasNextPage || page.NextCursor == nil {
			return nil
		}
		cursor = page.NextCursor
	}
}

func toFundingUnit(coin sui.Coin, coinType string) (entities.FundingUnit, error) {
	balance, err := coin.BalanceValue()
	if err != nil {
		return entities.FundingUnit{}, err
	}
	if coin.CoinType != "" {
		coinType = coin.CoinType
	}
	return entities.FundingUnit{
		ID:       coin.CoinObjectID,
		Balance:  balance,
		Version:  coin.Version,
		Digest:   coin.Digest,
		CoinType: coinType,
	}, nil
}
