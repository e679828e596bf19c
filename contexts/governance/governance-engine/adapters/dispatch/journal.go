package dispatch

import (
	"context"
	"math/big"
	"sync"
	"time"

	"consortium/contexts/governance/governance-engine/domain/entities"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

type JournalEntry struct {
	Method   string
	Caller   entities.Address
	Value    *big.Int
	Args     []any
	Received time.Time
}

// Journal is a stand-in subsystem that accepts every declared signature and
// records what it was asked to do. The API process mounts one per managed
// subsystem when no real endpoint is configured.
type Journal struct {
	*ABISubsystem

	mu      sync.Mutex
	entries []JournalEntry
	balance *big.Int
}

func NewJournal(signatures []string) (*Journal, error) {
	j := &Journal{balance: new(big.Int)}
	methods := make([]abi.Method, 0, len(signatures))
	handlers := make(map[string]HandlerFunc, len(signatures))
	for _, signature := range signatures {
		method, err := ParseSignature(signature)
		if err != nil {
			return nil, err
		}
		methods = append(methods, method)
		handlers[method.Name] = j.record(method.Name)
	}
	j.ABISubsystem = newABISubsystem(methods, handlers)
	return j, nil
}

func (j *Journal) record(name string) HandlerFunc {
	return func(_ context.Context, call InboundCall, args []any) ([]byte, error) {
		j.mu.Lock()
		defer j.mu.Unlock()
		j.entries = append(j.entries, JournalEntry{
			Method:   name,
			Caller:   call.Caller,
			Value:    new(big.Int).Set(call.Value),
			Args:     args,
			Received: time.Now().UTC(),
		})
		j.balance.Add(j.balance, call.Value)
		return nil, nil
	}
}

func (j *Journal) Receive(_ context.Context, _ entities.Address, value *big.Int) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.balance.Add(j.balance, value)
	return nil
}

func (j *Journal) Entries() []JournalEntry {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]JournalEntry(nil), j.entries...)
}

func (j *Journal) Balance() *big.Int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return new(big.Int).Set(j.balance)
}
