package entities

import (
	"math/big"
	"time"
)

type TransactionStatus string

const (
	StatusSubmitted TransactionStatus = "submitted"
	StatusExecuted  TransactionStatus = "executed"
	StatusRevoked   TransactionStatus = "revoked"
	StatusTimedOut  TransactionStatus = "timed_out"
)

func (s TransactionStatus) IsTerminal() bool {
	switch s {
	case StatusExecuted, StatusRevoked, StatusTimedOut:
		return true
	default:
		return false
	}
}

func (s TransactionStatus) Valid() bool {
	return s == StatusSubmitted || s.IsTerminal()
}

// TransactionItem is one action invocation inside a batch. AuditData is kept
// verbatim for readers and never dispatched.
type TransactionItem struct {
	ActionKey ActionKey
	Value     *big.Int
	Payload   []byte
	AuditData []byte
}

func (i TransactionItem) Clone() TransactionItem {
	out := TransactionItem{
		ActionKey: i.ActionKey,
		Value:     new(big.Int),
		Payload:   append([]byte(nil), i.Payload...),
		AuditData: append([]byte(nil), i.AuditData...),
	}
	if i.Value != nil {
		out.Value.Set(i.Value)
	}
	return out
}

// Transaction is one voted batch. Vote sets live in the identity set store
// under ConfirmationsOf(ID) and RevocationsOf(ID).
type Transaction struct {
	ID          uint64
	Items       []TransactionItem
	Status      TransactionStatus
	SubmittedAt time.Time
}

func (t Transaction) Clone() Transaction {
	out := t
	out.Items = make([]TransactionItem, 0, len(t.Items))
	for _, item := range t.Items {
		out.Items = append(out.Items, item.Clone())
	}
	return out
}

// ActionKeys lists the distinct action keys referenced by the batch in item
// order.
func (t Transaction) ActionKeys() []ActionKey {
	seen := make(map[ActionKey]struct{}, len(t.Items))
	keys := make([]ActionKey, 0, len(t.Items))
	for _, item := range t.Items {
		if _, ok := seen[item.ActionKey]; ok {
			continue
		}
		seen[item.ActionKey] = struct{}{}
		keys = append(keys, item.ActionKey)
	}
	return keys
}
