package payment

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/suiflow/suiflow_service/internal/domain/entities"
	domainerrors "github.com/suiflow/suiflow_service/internal/domain/errors"
	"github.com/suiflow/suiflow_service/internal/domain/services/signing"
	"github.com/suiflow/suiflow_service/internal/infrastructure/adapters/sui"
	"github.com/suiflow/suiflow_service/pkg/logger"
	"github.com/suiflow/suiflow_service/pkg/metrics"
)

// Submitter builds, signs and executes a MoveCall. It performs no retries:
// resubmitting a value-moving call after an unknown outcome could move funds twice.
type Submitter struct {
	ledger    sui.LedgerClient
	gasBudget uint64
	logger    *logger.Logger
}

func NewSubmitter(ledger sui.LedgerClient, gasBudget uint64, log *logger.Logger) *Submitter {
	return &Submitter{
		ledger:    ledger,
		gasBudget: gasBudget,
		logger:    log,
	}
}

// Submit blocks until the node reports execution of the call signed by identity.
// Every failure is a *SubmissionError.
func (s *Submitter) Submit(ctx context.Context, call MoveCall, identity signing.Identity) (*entities.SubmissionResult, error) {
	ctx, span := otel.Tracer("payment.submitter").Start(ctx, "Submit")
	defer span.End()

	span.SetAttributes(
		attribute.String("move_call.target", call.Target()),
		attribute.String("signer", identity.Address()),
	)

	start := time.Now()
	result, err := s.submit(ctx, call, identity)

	outcome := "success"
	if err != nil {
		outcome = submissionKindOf(err).String()
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
		s.logger.Warn("Transaction submission failed",
			"target", call.Target(),
			"signer", identity.Address(),
			"outcome", outcome,
			"error", err)
	} else {
		span.SetAttributes(attribute.String("tx.digest", result.TransactionDigest))
		s.logger.Info("Transaction executed",
			"target", call.Target(),
			"digest", result.TransactionDigest,
			"duration_ms", time.Since(start).Milliseconds())
	}
	metrics.RecordSubmission(call.Function, outcome, time.Since(start))

	return result, err
}

func (s *Submitter) submit(ctx context.Context, call MoveCall, identity signing.Identity) (*entities.SubmissionResult, error) {
	tx, err := s.ledger.MoveCall(ctx, sui.MoveCallRequest{
		Signer:    identity.Address(),
		PackageID: call.PackageID,
		Module:    call.Module,
		Function:  call.Function,
		Arguments: call.Arguments,
		GasBudget: s.gasBudget,
	})
	if err != nil {
		return nil, classifySubmission(fmt.Errorf("build transaction: %w", err))
	}

	txBytes, err := base64.StdEncoding.DecodeString(tx.TxBytes)
	if err != nil {
		return nil, domainerrors.NewSubmissionError(domainerrors.NetworkFailure,
			fmt.Errorf("decode transaction bytes: %w", err))
	}

	signature, err := identity.Sign(ctx, signing.IntentDigest(txBytes))
	if err != nil {
		return nil, domainerrors.NewSubmissionError(domainerrors.NetworkFailure,
			fmt.Errorf("sign transaction: %w", err))
	}

	resp, err := s.ledger.ExecuteTransactionBlock(ctx,
		tx.TxBytes,
		[]string{base64.StdEncoding.EncodeToString(signature)},
		sui.TransactionBlockResponseOptions{ShowEffects: true, ShowEvents: true},
		sui.WaitForLocalExecution,
	)
	if err != nil {
		return nil, classifySubmission(fmt.Errorf("execute transaction: %w", err))
	}

	effects, err := resp.Effects()
	if err != nil {
		subErr := domainerrors.NewSubmissionError(domainerrors.NetworkFailure,
			fmt.Errorf("decode effects: %w", err))
		subErr.Digest = resp.Digest
		return nil, subErr
	}
	if effects == nil {
		return nil, unconfirmed(resp.Digest, errors.New("response carried no effects"))
	}
	switch effects.Status.Status {
	case sui.StatusSuccess:
	case sui.StatusFailure:
		subErr := domainerrors.NewSubmissionError(domainerrors.OnChainAbort,
			fmt.Errorf("execution failed: %s", effects.Status.Error))
		subErr.Digest = resp.Digest
		return nil, subErr
	default:
		return nil, unconfirmed(resp.Digest, fmt.Errorf("unexpected execution status %q", effects.Status.Status))
	}
	if resp.ConfirmedLocalExecution != nil && !*resp.ConfirmedLocalExecution {
		return nil, unconfirmed(resp.Digest, errors.New("local execution not confirmed"))
	}

	events := make([]entities.LedgerEvent, 0, len(resp.Events))
	for _, ev := range resp.Events {
		events = append(events, toLedgerEvent(kindFromType(ev.Type), ev))
	}

	return &entities.SubmissionResult{
		TransactionDigest: resp.Digest,
		RawEffects:        resp.RawEffects,
		Events:            events,
	}, nil
}

// unconfirmed reports a submitted transaction whose execution the node did
// not confirm.
func unconfirmed(digest string, err error) *domainerrors.SubmissionError {
	subErr := domainerrors.NewSubmissionError(domainerrors.NetworkFailure, err)
	subErr.Digest = digest
	return subErr
}

// classifySubmission maps an RPC failure to a submission kind. Only an
// explicit consumed-object cause means the call never applied; anything
// else, including cancellation, leaves the outcome unknown.
func classifySubmission(err error) *domainerrors.SubmissionError {
	kind := domainerrors.NetworkFailure
	if sui.CauseOf(err) == sui.CauseObjectConsumed {
		kind = domainerrors.UnitAlreadyConsumed
	}
	return domainerrors.NewSubmissionError(kind, err)
}

func submissionKindOf(err error) domainerrors.SubmissionKind {
	if subErr, ok := err.(*domainerrors.SubmissionError); ok {
		return subErr.Kind
	}
	return domainerrors.NetworkFailure
}
