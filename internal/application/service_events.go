package application

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/trustvibe/escrow-service/internal/contracts"
	"github.com/trustvibe/escrow-service/internal/domain"
	"github.com/trustvibe/escrow-service/internal/ports"
)

// enqueueEvent stores an integration event in the transactional outbox. The
// outbox worker owns delivery; an enqueue failure is logged but does not fail
// the operation, since the ledger row already carries the durable record.
func (s *Service) enqueueEvent(ctx context.Context, actor Actor, eventType, partitionKey string, payload any) {
	if s.outbox == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	now := s.nowFn()
	envelope := contracts.EventEnvelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		OccurredAt:    now,
		PartitionKey:  partitionKey,
		SourceService: s.cfg.ServiceName,
		TraceID:       actor.RequestID,
		SchemaVersion: "1.0",
		Data:          data,
	}
	body, err := json.Marshal(envelope)
	if err != nil {
		return
	}
	err = s.outbox.Enqueue(ctx, ports.OutboxEvent{
		EventID:      uuid.MustParse(envelope.EventID),
		EventType:    eventType,
		PartitionKey: partitionKey,
		Payload:      body,
		OccurredAt:   now,
	})
	if err != nil {
		slog.Default().WarnContext(ctx, "outbox enqueue failed",
			"service", s.cfg.ServiceName,
			"module", "application",
			"layer", "application",
			"operation", "enqueue_event",
			"outcome", "failure",
			"event_type", eventType,
			"partition_key", partitionKey,
			"error", err.Error(),
		)
	}
}

func (s *Service) publishProjectState(ctx context.Context, actor Actor, eventType string, project domain.Project) {
	s.enqueueEvent(ctx, actor, eventType, project.ProjectID, contracts.ProjectStatePayload{
		ProjectID:       project.ProjectID,
		State:           string(project.State),
		HeldAmountCents: project.HeldAmountCents,
		OccurredAt:      s.nowFn().Format(time.RFC3339),
	})
}
