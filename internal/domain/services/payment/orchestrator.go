// Package payment implements the payment flow against the on-ledger
// processor contract: coin selection, call encoding, submission, and the
// read paths for contract statistics and events.
package payment

import (
	"context"
	"fmt"
	"math"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/suiflow/suiflow_service/internal/domain/entities"
	domainerrors "github.com/suiflow/suiflow_service/internal/domain/errors"
	"github.com/suiflow/suiflow_service/internal/domain/services/signing"
	"github.com/suiflow/suiflow_service/internal/infrastructure/adapters/sui"
	"github.com/suiflow/suiflow_service/pkg/logger"
)

// Config is fixed for the lifetime of an Orchestrator.
type Config struct {
	PackageID         string
	ProcessorObjectID string
	CoinType          string
	ProductPrice      uint64 // MIST
	AdminFee          uint64 // MIST
	GasBudget         uint64 // MIST
}

// RequiredAmount is the balance a funding unit must hold for one payment.
func (c Config) RequiredAmount() uint64 {
	return c.ProductPrice + c.AdminFee
}

// Validate checks the configuration
func (c Config) Validate() error {
	if c.PackageID == "" {
		return domainerrors.ValidationError("package_id", "package id is required")
	}
	if c.ProcessorObjectID == "" {
		return domainerrors.ValidationError("processor_object_id", "processor object id is required")
	}
	if c.AdminFee > math.MaxUint64-c.ProductPrice {
		return domainerrors.ValidationError("admin_fee", "product price plus admin fee overflows u64")
	}
	if c.GasBudget == 0 {
		return domainerrors.ValidationError("gas_budget", "gas budget must be positive")
	}
	return nil
}

// Orchestrator runs payments and fee withdrawals. It holds no mutable state
// and is safe for concurrent use; concurrent payments racing for the same
// coin are settled by the ledger, and the loser gets UnitAlreadyConsumed.
type Orchestrator struct {
	config    Config
	selector  *Selector
	encoder   *Encoder
	submitter *Submitter
	stats     *StatsReader
	events    *EventReader
	admin     signing.Identity
	logger    *logger.Logger
}

// NewOrchestrator wires the payment components over one ledger client.
// admin may be nil, in which case WithdrawAdminFees is refused.
func NewOrchestrator(ledger sui.LedgerClient, config Config, admin signing.Identity, log *logger.Logger) (*Orchestrator, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if config.CoinType == "" {
		config.CoinType = entities.DefaultCoinType
	}

	return &Orchestrator{
		config:    config,
		selector:  NewSelector(ledger, config.CoinType),
		encoder:   NewEncoder(config.PackageID),
		submitter: NewSubmitter(ledger, config.GasBudget, log),
		stats:     NewStatsReader(ledger, config.ProcessorObjectID),
		events:    NewEventReader(ledger, config.PackageID, log),
		admin:     admin,
		logger:    log,
	}, nil
}

// Config returns the orchestrator configuration.
func (o *Orchestrator) Config() Config {
	return o.config
}

// HasAdmin reports whether an administrator identity is configured.
func (o *Orchestrator) HasAdmin() bool {
	return o.admin != nil
}

// ProcessPayment pays for one product from the customer's holdings. A funding
// unit named in the request is re-checked against current holdings first.
func (o *Orchestrator) ProcessPayment(ctx context.Context, req entities.PaymentRequest, customer signing.Identity) (*entities.PaymentReceipt, error) {
	ctx, span := otel.Tracer("payment.orchestrator").Start(ctx, "ProcessPayment")
	defer span.End()

	if customer == nil {
		return nil, domainerrors.InvalidArgumentError("customer", "customer identity is required")
	}
	if req.MerchantAddress == "" {
		return nil, domainerrors.InvalidArgumentError("merchant_address", "merchant address is required")
	}

	owner := customer.Address()
	required := o.config.RequiredAmount()
	span.SetAttributes(
		attribute.String("customer", owner),
		attribute.String("merchant_id", req.MerchantID),
		attribute.String("product_id", req.ProductID),
		attribute.Int64("required_mist", int64(required)),
	)

	var (
		unit entities.FundingUnit
		err  error
	)
	if req.FundingUnitID != "" {
		unit, err = o.revalidate(ctx, owner, req.FundingUnitID, required)
	} else {
		unit, err = o.selector.Select(ctx, owner, required)
	}
	if err != nil {
		o.logger.Warn("Funding unit unavailable",
			"customer", owner,
			"funding_unit_id", req.FundingUnitID,
			"required", required,
			"error", err)
		return nil, err
	}
	span.SetAttributes(attribute.String("funding_unit", unit.ID))

	call := o.encoder.EncodePayment(o.config.ProcessorObjectID, req.MerchantAddress, req.MerchantID, req.ProductID, unit.ID)
	result, err := o.submitter.Submit(ctx, call, customer)
	if err != nil {
		return nil, err
	}

	o.logger.Info("Payment processed",
		"digest", result.TransactionDigest,
		"merchant_id", req.MerchantID,
		"product_id", req.ProductID,
		"funding_unit", unit.ID,
		"amount", required)

	return &entities.PaymentReceipt{
		SubmissionResult: *result,
		FundingUnit:      unit,
		RequiredAmount:   required,
	}, nil
}

func (o *Orchestrator) revalidate(ctx context.Context, owner, unitID string, required uint64) (entities.FundingUnit, error) {
	unit, err := o.selector.Find(ctx, owner, unitID)
	if err != nil {
		return entities.FundingUnit{}, err
	}
	if unit == nil {
		return entities.FundingUnit{}, domainerrors.StaleFundingReferenceError(unitID, "not held by "+owner)
	}
	if unit.Balance < required {
		return entities.FundingUnit{}, domainerrors.StaleFundingReferenceError(unitID,
			fmt.Sprintf("balance %d below required %d", unit.Balance, required))
	}
	return *unit, nil
}

// WithdrawAdminFees moves accumulated fees to the administrator. Without a
// configured administrator identity it fails before touching the network.
func (o *Orchestrator) WithdrawAdminFees(ctx context.Context) (*entities.SubmissionResult, error) {
	if o.admin == nil {
		return nil, domainerrors.UnauthorizedOperationError(FunctionWithdrawAdminFees)
	}

	ctx, span := otel.Tracer("payment.orchestrator").Start(ctx, "WithdrawAdminFees")
	defer span.End()
	span.SetAttributes(attribute.String("admin", o.admin.Address()))

	result, err := o.submitter.Submit(ctx, o.encoder.EncodeWithdraw(o.config.ProcessorObjectID), o.admin)
	if err != nil {
		return nil, err
	}

	o.logger.Info("Admin fees withdrawn", "digest", result.TransactionDigest, "admin", o.admin.Address())
	return result, nil
}

// Stats returns a fresh contract statistics snapshot.
func (o *Orchestrator) Stats(ctx context.Context) (*entities.ContractStats, error) {
	return o.stats.Stats(ctx)
}

// PaymentEvents returns the latest payment events, newest first.
func (o *Orchestrator) PaymentEvents(ctx context.Context, limit int) ([]entities.LedgerEvent, error) {
	return o.events.QueryEvents(ctx, entities.EventPaymentCompleted, limit)
}

// AdminFeeEvents returns the latest fee withdrawal events, newest first.
func (o *Orchestrator) AdminFeeEvents(ctx context.Context, limit int) ([]entities.LedgerEvent, error) {
	return o.events.QueryEvents(ctx, entities.EventAdminFeeWithdrawn, limit)
}

// Coins lists the owner's holdings of the configured coin type.
func (o *Orchestrator) Coins(ctx context.Context, owner string) ([]entities.FundingUnit, error) {
	if owner == "" {
		return nil, domainerrors.InvalidArgumentError("owner", "owner address is required")
	}
	return o.selector.Holdings(ctx, owner)
}
