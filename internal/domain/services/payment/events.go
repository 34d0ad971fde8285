package payment

import (
	"context"
	"strings"

	"github.com/suiflow/suiflow_service/internal/domain/entities"
	domainerrors "github.com/suiflow/suiflow_service/internal/domain/errors"
	"github.com/suiflow/suiflow_service/internal/infrastructure/adapters/sui"
	"github.com/suiflow/suiflow_service/pkg/logger"
	"github.com/suiflow/suiflow_service/pkg/metrics"
)

// MaxEventPageSize caps a single suix_queryEvents page.
const MaxEventPageSize = 50

// EventReader queries processor events newest first.
type EventReader struct {
	ledger    sui.LedgerClient
	packageID string
	logger    *logger.Logger
}

func NewEventReader(ledger sui.LedgerClient, packageID string, log *logger.Logger) *EventReader {
	return &EventReader{
		ledger:    ledger,
		packageID: packageID,
		logger:    log,
	}
}

// EventType returns the fully qualified Move type for a kind.
func (r *EventReader) EventType(kind entities.EventKind) string {
	return r.packageID + "::" + ModuleName + "::" + string(kind)
}

// QueryEvents returns up to limit events of kind, newest first. A topic that
// has never been emitted is reported by the node as invalid params; that is
// an empty history, not an error.
func (r *EventReader) QueryEvents(ctx context.Context, kind entities.EventKind, limit int) ([]entities.LedgerEvent, error) {
	if limit <= 0 {
		return nil, domainerrors.InvalidArgumentError("limit", "limit must be positive")
	}
	if !kind.IsValid() {
		return nil, domainerrors.InvalidArgumentError("kind", "unknown event kind "+string(kind))
	}

	filter := sui.EventFilter{MoveEventType: r.EventType(kind)}
	events := make([]entities.LedgerEvent, 0, min(limit, MaxEventPageSize))

	var cursor *sui.EventCursor
	for len(events) < limit {
		pageSize := min(limit-len(events), MaxEventPageSize)

		page, err := r.ledger.QueryEvents(ctx, filter, cursor, pageSize, true)
		if err != nil {
			if sui.CauseOf(err) == sui.CauseUnknownEventType {
				r.logger.Info("No events emitted yet for topic", "event_type", filter.MoveEventType)
				metrics.RecordEventQuery(string(kind), "unknown_type")
				return events, nil
			}
			metrics.RecordEventQuery(string(kind), "error")
			return nil, domainerrors.QueryFailedError(string(kind)+" events", err)
		}

		for _, ev := range page.Data {
			events = append(events, toLedgerEvent(kind, ev))
		}

		if !page.HasNextPage || page.NextCursor == nil || len(page.Data) == 0 {
			break
		}
		cursor = page.NextCursor
	}

	if len(events) > limit {
		events = events[:limit]
	}
	metrics.RecordEventQuery(string(kind), "ok")
	return events, nil
}

func toLedgerEvent(kind entities.EventKind, ev sui.Event) entities.LedgerEvent {
	return entities.LedgerEvent{
		ID: entities.EventID{
			TxDigest: ev.ID.TxDigest,
			EventSeq: ev.ID.EventSeq,
		},
		Kind:              kind,
		TimestampMs:       ev.Timestamp(),
		TransactionDigest: ev.ID.TxDigest,
		Data:              ev.ParsedJSON,
	}
}

// kindFromType extracts the event name from pkg::module::Name.
func kindFromType(eventType string) entities.EventKind {
	if i := strings.LastIndex(eventType, "::"); i >= 0 {
		return entities.EventKind(eventType[i+2:])
	}
	return entities.EventKind(eventType)
}
