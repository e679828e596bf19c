package commands

import (
	"context"
	"encoding/json"
	"time"

	"consortium/contexts/governance/governance-engine/ports"
	contractsv1 "consortium/contracts/gen/events/v1"
)

const (
	eventTransactionSubmitted   = "governance.transaction.submitted"
	eventTransactionConfirmed   = "governance.transaction.confirmed"
	eventTransactionRevokeVote  = "governance.transaction.revoked_vote"
	eventTransactionExecuted    = "governance.transaction.executed"
	eventTransactionRejected    = "governance.transaction.rejected"
	eventTransactionTimedOut    = "governance.transaction.timed_out"
	eventMemberAdded            = "governance.member.added"
	eventMemberRemoved          = "governance.member.removed"
	eventInvitationCreated      = "governance.invitation.created"
	eventInvitationCancelled    = "governance.invitation.cancelled"
	eventApplicationSubmitted   = "governance.application.submitted"
	eventApplicationConfirmed   = "governance.application.confirmed"
	eventApplicationRevoked     = "governance.application.revoked"
	eventActionAllowed          = "governance.action.allowed"
	eventActionUpdated          = "governance.action.updated"
	eventActionDisallowed       = "governance.action.disallowed"
	eventValueDeposited         = "governance.value.deposited"
	eventValueSent              = "governance.value.sent"
	eventImplementationUpgraded = "governance.implementation.upgraded"
)

// eventSink appends envelopes to the outbox inside the caller's unit of
// work, so events roll back together with the state change they describe.
type eventSink struct {
	Outbox ports.OutboxWriter
	IDGen  ports.IDGenerator
	Clock  ports.Clock
}

func (s eventSink) emit(
	ctx context.Context,
	eventType string,
	partitionKeyPath string,
	partitionKey string,
	data map[string]any,
) error {
	if s.Outbox == nil {
		return nil
	}
	eventID, err := s.IDGen.NewID(ctx)
	if err != nil {
		return err
	}
	envelope, err := newGovernanceEnvelope(eventID, eventType, partitionKeyPath, partitionKey, s.now(), data)
	if err != nil {
		return err
	}
	return s.Outbox.AppendOutbox(ctx, envelope)
}

func (s eventSink) now() time.Time {
	if s.Clock == nil {
		return time.Now().UTC()
	}
	return s.Clock.Now().UTC()
}

func newGovernanceEnvelope(
	eventID string,
	eventType string,
	partitionKeyPath string,
	partitionKey string,
	occurredAt time.Time,
	data map[string]any,
) (ports.EventEnvelope, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return ports.EventEnvelope{}, err
	}
	envelope := ports.EventEnvelope{
		EventID:          eventID,
		EventType:        eventType,
		OccurredAt:       occurredAt.UTC(),
		SourceService:    "governance-engine",
		TraceID:          eventID,
		SchemaVersion:    contractsv1.SchemaVersion,
		PartitionKeyPath: partitionKeyPath,
		PartitionKey:     partitionKey,
		Data:             payload,
	}
	if err := envelope.Validate(); err != nil {
		return ports.EventEnvelope{}, err
	}
	return envelope, nil
}
