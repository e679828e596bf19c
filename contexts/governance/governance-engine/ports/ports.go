package ports

import (
	"context"
	"math/big"
	"time"

	"consortium/contexts/governance/governance-engine/domain/entities"
	contractsv1 "consortium/contracts/gen/events/v1"
)

// IdentitySetRepository persists the address sets named by entities.SetRef.
// Add and Remove keep the swap-with-last contract of entities.IdentitySet and
// return its sentinel errors.
type IdentitySetRepository interface {
	SetAdd(ctx context.Context, set entities.SetRef, addr entities.Address) error
	SetRemove(ctx context.Context, set entities.SetRef, addr entities.Address) error
	SetContains(ctx context.Context, set entities.SetRef, addr entities.Address) (bool, error)
	SetMembers(ctx context.Context, set entities.SetRef) ([]entities.Address, error)
	SetLen(ctx context.Context, set entities.SetRef) (int, error)
}

type ActionRepository interface {
	GetAction(ctx context.Context, key entities.ActionKey) (entities.Action, bool, error)
	SaveAction(ctx context.Context, action entities.Action) error
	ListActions(ctx context.Context) ([]entities.Action, error)
}

// TransactionRepository is the append-only ledger. Ids are assigned by the
// repository starting from 0.
type TransactionRepository interface {
	AppendTransaction(ctx context.Context, tx entities.Transaction) (uint64, error)
	GetTransaction(ctx context.Context, id uint64) (entities.Transaction, error)
	UpdateTransactionStatus(ctx context.Context, id uint64, status entities.TransactionStatus) error
	CountTransactions(ctx context.Context) (uint64, error)
	ListTransactions(ctx context.Context, from uint64, to uint64) ([]entities.Transaction, error)
	// ListPendingTransactions pages through Submitted transactions with id >= after, oldest first.
	ListPendingTransactions(ctx context.Context, after uint64, limit int) ([]entities.Transaction, error)
}

// GovernanceStateRepository holds the singleton engine state.
type GovernanceStateRepository interface {
	IsInitialized(ctx context.Context) (bool, error)
	MarkInitialized(ctx context.Context) error
	Balance(ctx context.Context) (*big.Int, error)
	AdjustBalance(ctx context.Context, delta *big.Int) (*big.Int, error)
}

// UnitOfWork runs fn atomically. If fn returns an error every write made
// through ctx is discarded. Nested calls with a ctx derived from an outer
// unit behave as savepoints.
type UnitOfWork interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type Repository interface {
	IdentitySetRepository
	ActionRepository
	TransactionRepository
	GovernanceStateRepository
	UnitOfWork
}

// Call is a typed outbound invocation. Payload holds the ABI-encoded
// arguments without the selector.
type Call struct {
	Destination entities.Address
	Value       *big.Int
	Selector    entities.Selector
	Payload     []byte
}

// Calldata is the selector followed by the payload.
func (c Call) Calldata() []byte {
	out := make([]byte, 0, len(c.Selector)+len(c.Payload))
	out = append(out, c.Selector[:]...)
	return append(out, c.Payload...)
}

// Dispatcher delivers calls to managed subsystems. Caller is the engine's own
// address. Implementations must reject selectors that the destination does
// not declare.
type Dispatcher interface {
	Dispatch(ctx context.Context, caller entities.Address, call Call) ([]byte, error)
}

// Proxy is the upgradeable proxy in front of the engine.
type Proxy interface {
	UpgradeTo(ctx context.Context, caller entities.Address, implementation entities.Address) error
	UpgradeToAndCall(ctx context.Context, caller entities.Address, implementation entities.Address, data []byte) ([]byte, error)
}

type Metrics interface {
	ObserveOutcome(status entities.TransactionStatus)
	ObserveDispatchFailure(reason string)
	ObserveVote(kind string)
}

type IdempotencyRecord struct {
	Key           string
	RequestHash   string
	TransactionID uint64
	ExpiresAt     time.Time
}

type IdempotencyStore interface {
	GetIdempotency(ctx context.Context, key string, now time.Time) (IdempotencyRecord, bool, error)
	PutIdempotency(ctx context.Context, record IdempotencyRecord) error
}

type Clock interface {
	Now() time.Time
}

type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}

// EventEnvelope is the versioned wire contract shared with consumers.
type EventEnvelope = contractsv1.Envelope

type OutboxMessage struct {
	OutboxID     string
	EventID      string
	EventType    string
	PartitionKey string
	Payload      []byte
	CreatedAt    time.Time
}

type OutboxWriter interface {
	AppendOutbox(ctx context.Context, envelope EventEnvelope) error
}

type OutboxRepository interface {
	ListPendingOutbox(ctx context.Context, limit int) ([]OutboxMessage, error)
	MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error
}

type EventPublisher interface {
	Publish(ctx context.Context, topic string, event EventEnvelope) error
}
