package memory

import (
	"context"
	"encoding/json"
	"math/big"
	"sort"
	"strings"
	"sync"
	"time"

	"consortium/contexts/governance/governance-engine/domain/entities"
	domainerrors "consortium/contexts/governance/governance-engine/domain/errors"
	"consortium/contexts/governance/governance-engine/ports"

	"github.com/google/uuid"
)

type outboxRecord struct {
	seq       uint64
	message   ports.OutboxMessage
	published bool
}

type state struct {
	initialized  bool
	balance      *big.Int
	sets         map[string]*entities.IdentitySet
	actions      map[entities.ActionKey]entities.Action
	transactions []entities.Transaction
	outbox       map[string]outboxRecord
	outboxSeq    uint64
	idempotency  map[string]ports.IdempotencyRecord
}

func newState() state {
	return state{
		balance:     new(big.Int),
		sets:        make(map[string]*entities.IdentitySet),
		actions:     make(map[entities.ActionKey]entities.Action),
		outbox:      make(map[string]outboxRecord),
		idempotency: make(map[string]ports.IdempotencyRecord),
	}
}

func (s state) clone() state {
	out := state{
		initialized:  s.initialized,
		outboxSeq:    s.outboxSeq,
		balance:      new(big.Int).Set(s.balance),
		sets:         make(map[string]*entities.IdentitySet, len(s.sets)),
		actions:      make(map[entities.ActionKey]entities.Action, len(s.actions)),
		transactions: make([]entities.Transaction, 0, len(s.transactions)),
		outbox:       make(map[string]outboxRecord, len(s.outbox)),
		idempotency:  make(map[string]ports.IdempotencyRecord, len(s.idempotency)),
	}
	for key, set := range s.sets {
		out.sets[key] = set.Clone()
	}
	for key, action := range s.actions {
		out.actions[key] = action
	}
	for _, tx := range s.transactions {
		out.transactions = append(out.transactions, tx.Clone())
	}
	for key, record := range s.outbox {
		out.outbox[key] = record
	}
	for key, record := range s.idempotency {
		out.idempotency[key] = record
	}
	return out
}

// Store is the in-memory implementation of every governance port.
//
// A unit of work stages its writes in a private copy of the state carried in
// ctx and swaps it in on commit, so readers outside the unit only ever see
// committed state. Units of work, and writes made outside one, are
// serialized by txMu. Nested units behave as savepoints.
type Store struct {
	txMu  sync.Mutex
	mu    sync.RWMutex
	state state
}

type txKey struct {
	store *Store
}

func NewStore() *Store {
	return &Store{state: newState()}
}

func (s *Store) working(ctx context.Context) (*state, bool) {
	st, ok := ctx.Value(txKey{store: s}).(*state)
	return st, ok
}

func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if st, ok := s.working(ctx); ok {
		savepoint := st.clone()
		if err := fn(ctx); err != nil {
			*st = savepoint
			return err
		}
		return nil
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	staged := s.state.clone()
	s.mu.RUnlock()

	if err := fn(context.WithValue(ctx, txKey{store: s}, &staged)); err != nil {
		return err
	}

	s.mu.Lock()
	s.state = staged
	s.mu.Unlock()
	return nil
}

// read runs fn against the unit of work's staged state, or against the
// committed state when ctx carries no unit of work.
func (s *Store) read(ctx context.Context, fn func(st *state)) {
	if st, ok := s.working(ctx); ok {
		fn(st)
		return
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(&s.state)
}

// write runs fn against the staged state, or as its own single-step unit of
// work against the committed state.
func (s *Store) write(ctx context.Context, fn func(st *state) error) error {
	if st, ok := s.working(ctx); ok {
		return fn(st)
	}
	s.txMu.Lock()
	defer s.txMu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(&s.state)
}

func (s *Store) SetAdd(ctx context.Context, ref entities.SetRef, addr entities.Address) error {
	return s.write(ctx, func(st *state) error {
		set, ok := st.sets[ref.String()]
		if !ok {
			set = &entities.IdentitySet{}
			st.sets[ref.String()] = set
		}
		return set.Add(addr)
	})
}

func (s *Store) SetRemove(ctx context.Context, ref entities.SetRef, addr entities.Address) error {
	return s.write(ctx, func(st *state) error {
		set, ok := st.sets[ref.String()]
		if !ok {
			return domainerrors.ErrNotPresent
		}
		return set.Remove(addr)
	})
}

func (s *Store) SetContains(ctx context.Context, ref entities.SetRef, addr entities.Address) (bool, error) {
	var found bool
	s.read(ctx, func(st *state) {
		found = st.sets[ref.String()].Contains(addr)
	})
	return found, nil
}

func (s *Store) SetMembers(ctx context.Context, ref entities.SetRef) ([]entities.Address, error) {
	var members []entities.Address
	s.read(ctx, func(st *state) {
		members = st.sets[ref.String()].All()
	})
	return members, nil
}

func (s *Store) SetLen(ctx context.Context, ref entities.SetRef) (int, error) {
	var n int
	s.read(ctx, func(st *state) {
		n = st.sets[ref.String()].Len()
	})
	return n, nil
}

func (s *Store) GetAction(ctx context.Context, key entities.ActionKey) (entities.Action, bool, error) {
	var (
		action entities.Action
		ok     bool
	)
	s.read(ctx, func(st *state) {
		action, ok = st.actions[key]
	})
	return action, ok, nil
}

func (s *Store) SaveAction(ctx context.Context, action entities.Action) error {
	return s.write(ctx, func(st *state) error {
		st.actions[action.Key] = action
		return nil
	})
}

func (s *Store) ListActions(ctx context.Context) ([]entities.Action, error) {
	var items []entities.Action
	s.read(ctx, func(st *state) {
		items = make([]entities.Action, 0, len(st.actions))
		for _, action := range st.actions {
			items = append(items, action)
		}
	})
	sort.Slice(items, func(i, j int) bool {
		return items[i].Key.Hex() < items[j].Key.Hex()
	})
	return items, nil
}

func (s *Store) AppendTransaction(ctx context.Context, tx entities.Transaction) (uint64, error) {
	tx = tx.Clone()
	err := s.write(ctx, func(st *state) error {
		tx.ID = uint64(len(st.transactions))
		st.transactions = append(st.transactions, tx)
		return nil
	})
	return tx.ID, err
}

func (s *Store) GetTransaction(ctx context.Context, id uint64) (entities.Transaction, error) {
	var (
		tx    entities.Transaction
		found bool
	)
	s.read(ctx, func(st *state) {
		if id < uint64(len(st.transactions)) {
			tx, found = st.transactions[id].Clone(), true
		}
	})
	if !found {
		return entities.Transaction{}, domainerrors.ErrTransactionNotFound
	}
	return tx, nil
}

func (s *Store) UpdateTransactionStatus(ctx context.Context, id uint64, status entities.TransactionStatus) error {
	return s.write(ctx, func(st *state) error {
		if id >= uint64(len(st.transactions)) {
			return domainerrors.ErrTransactionNotFound
		}
		st.transactions[id].Status = status
		return nil
	})
}

func (s *Store) CountTransactions(ctx context.Context) (uint64, error) {
	var n uint64
	s.read(ctx, func(st *state) {
		n = uint64(len(st.transactions))
	})
	return n, nil
}

func (s *Store) ListTransactions(ctx context.Context, from uint64, to uint64) ([]entities.Transaction, error) {
	var (
		items []entities.Transaction
		err   error
	)
	s.read(ctx, func(st *state) {
		if to < from || to > uint64(len(st.transactions)) {
			err = domainerrors.ErrInvalidRange
			return
		}
		items = make([]entities.Transaction, 0, to-from)
		for _, tx := range st.transactions[from:to] {
			items = append(items, tx.Clone())
		}
	})
	return items, err
}

// ListPendingTransactions returns Submitted transactions with an id greater
// than or equal to after, oldest first.
func (s *Store) ListPendingTransactions(ctx context.Context, after uint64, limit int) ([]entities.Transaction, error) {
	if limit <= 0 {
		limit = 100
	}
	items := make([]entities.Transaction, 0)
	s.read(ctx, func(st *state) {
		for id := after; id < uint64(len(st.transactions)); id++ {
			tx := st.transactions[id]
			if tx.Status != entities.StatusSubmitted {
				continue
			}
			items = append(items, tx.Clone())
			if len(items) == limit {
				return
			}
		}
	})
	return items, nil
}

func (s *Store) IsInitialized(ctx context.Context) (bool, error) {
	var initialized bool
	s.read(ctx, func(st *state) {
		initialized = st.initialized
	})
	return initialized, nil
}

func (s *Store) MarkInitialized(ctx context.Context) error {
	return s.write(ctx, func(st *state) error {
		if st.initialized {
			return domainerrors.ErrAlreadyInitialized
		}
		st.initialized = true
		return nil
	})
}

func (s *Store) Balance(ctx context.Context) (*big.Int, error) {
	balance := new(big.Int)
	s.read(ctx, func(st *state) {
		balance.Set(st.balance)
	})
	return balance, nil
}

func (s *Store) AdjustBalance(ctx context.Context, delta *big.Int) (*big.Int, error) {
	var next *big.Int
	err := s.write(ctx, func(st *state) error {
		next = new(big.Int).Add(st.balance, delta)
		if next.Sign() < 0 {
			return domainerrors.ErrInsufficientFunds
		}
		st.balance = next
		return nil
	})
	if err != nil {
		return nil, err
	}
	return new(big.Int).Set(next), nil
}

func (s *Store) GetIdempotency(ctx context.Context, key string, now time.Time) (ports.IdempotencyRecord, bool, error) {
	var (
		record ports.IdempotencyRecord
		ok     bool
	)
	s.read(ctx, func(st *state) {
		record, ok = st.idempotency[strings.TrimSpace(key)]
	})
	if !ok || (!record.ExpiresAt.IsZero() && !now.Before(record.ExpiresAt)) {
		return ports.IdempotencyRecord{}, false, nil
	}
	return record, true, nil
}

// PutIdempotency replaces any record under the key.
func (s *Store) PutIdempotency(ctx context.Context, record ports.IdempotencyRecord) error {
	record.Key = strings.TrimSpace(record.Key)
	return s.write(ctx, func(st *state) error {
		st.idempotency[record.Key] = record
		return nil
	})
}

func (s *Store) AppendOutbox(ctx context.Context, envelope ports.EventEnvelope) error {
	payload, err := json.Marshal(envelope)
	if err != nil {
		return err
	}
	outboxID := uuid.NewString()
	return s.write(ctx, func(st *state) error {
		st.outboxSeq++
		st.outbox[outboxID] = outboxRecord{
			seq: st.outboxSeq,
			message: ports.OutboxMessage{
				OutboxID:     outboxID,
				EventID:      envelope.EventID,
				EventType:    envelope.EventType,
				PartitionKey: envelope.PartitionKey,
				Payload:      payload,
				CreatedAt:    envelope.OccurredAt,
			},
		}
		return nil
	})
}

func (s *Store) ListPendingOutbox(ctx context.Context, limit int) ([]ports.OutboxMessage, error) {
	if limit <= 0 {
		limit = 100
	}
	var records []outboxRecord
	s.read(ctx, func(st *state) {
		for _, record := range st.outbox {
			if !record.published {
				records = append(records, record)
			}
		}
	})
	sort.Slice(records, func(i, j int) bool {
		return records[i].seq < records[j].seq
	})
	if len(records) > limit {
		records = records[:limit]
	}
	items := make([]ports.OutboxMessage, 0, len(records))
	for _, record := range records {
		items = append(items, record.message)
	}
	return items, nil
}

func (s *Store) MarkOutboxPublished(ctx context.Context, outboxID string, _ time.Time) error {
	return s.write(ctx, func(st *state) error {
		record, ok := st.outbox[outboxID]
		if !ok {
			return nil
		}
		record.published = true
		st.outbox[outboxID] = record
		return nil
	})
}

// PendingOutboxCount is a test helper. It counts committed rows only.
func (s *Store) PendingOutboxCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, record := range s.state.outbox {
		if !record.published {
			count++
		}
	}
	return count
}

func (s *Store) Now() time.Time {
	return time.Now().UTC()
}

func (s *Store) NewID(_ context.Context) (string, error) {
	return uuid.NewString(), nil
}

var (
	_ ports.Repository       = (*Store)(nil)
	_ ports.OutboxWriter     = (*Store)(nil)
	_ ports.OutboxRepository = (*Store)(nil)
	_ ports.IdempotencyStore = (*Store)(nil)
	_ ports.Clock            = (*Store)(nil)
	_ ports.IDGenerator      = (*Store)(nil)
)
