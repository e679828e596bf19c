package postgresadapter

import (
	"fmt"
	"math/big"
	"time"

	"consortium/contexts/governance/governance-engine/domain/entities"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/fxamacker/cbor/v2"
)

const stateRowID = 1

type stateModel struct {
	ID                int       `gorm:"column:id;primaryKey"`
	Initialized       bool      `gorm:"column:initialized"`
	Balance           string    `gorm:"column:balance;type:numeric(78,0)"`
	NextTransactionID int64     `gorm:"column:next_transaction_id"`
	UpdatedAt         time.Time `gorm:"column:updated_at"`
}

func (stateModel) TableName() string {
	return "governance_state"
}

func (m stateModel) balance() (*big.Int, error) {
	if m.Balance == "" {
		return new(big.Int), nil
	}
	value, ok := new(big.Int).SetString(m.Balance, 10)
	if !ok {
		return nil, fmt.Errorf("governance_state.balance %q is not an integer", m.Balance)
	}
	return value, nil
}

// setEntryModel stores one address of an identity set. Positions are dense
// per set so removal can move the last entry into the vacated slot.
type setEntryModel struct {
	SetKey   string `gorm:"column:set_key;primaryKey;uniqueIndex:idx_governance_set_position,priority:1"`
	Address  string `gorm:"column:address;primaryKey"`
	Position int    `gorm:"column:position;uniqueIndex:idx_governance_set_position,priority:2"`
}

func (setEntryModel) TableName() string {
	return "governance_set_entries"
}

type actionModel struct {
	ActionKey          string    `gorm:"column:action_key;primaryKey"`
	Destination        string    `gorm:"column:destination"`
	RequiredPercentage uint8     `gorm:"column:required_percentage"`
	TimeoutSeconds     int64     `gorm:"column:timeout_seconds"`
	SuccessFunction    string    `gorm:"column:success_function"`
	RevokeFunction     string    `gorm:"column:revoke_function"`
	TimeoutFunction    string    `gorm:"column:timeout_function"`
	Allowed            bool      `gorm:"column:allowed"`
	UpdatedAt          time.Time `gorm:"column:updated_at"`
}

func (actionModel) TableName() string {
	return "governance_actions"
}

func actionModelFromEntity(action entities.Action, now time.Time) actionModel {
	return actionModel{
		ActionKey:          action.Key.Hex(),
		Destination:        action.Destination.Hex(),
		RequiredPercentage: action.RequiredPercentage,
		TimeoutSeconds:     int64(action.TimeOut / time.Second),
		SuccessFunction:    action.SuccessFunction.String(),
		RevokeFunction:     action.RevokeFunction.String(),
		TimeoutFunction:    action.TimeOutFunction.String(),
		Allowed:            action.Allowed,
		UpdatedAt:          now.UTC(),
	}
}

func (m actionModel) toEntity() (entities.Action, error) {
	selectors := make([]entities.Selector, 0, 3)
	for _, raw := range []string{m.SuccessFunction, m.RevokeFunction, m.TimeoutFunction} {
		decoded, err := hexutil.Decode(raw)
		if err != nil {
			return entities.Action{}, fmt.Errorf("action %s selector %q: %w", m.ActionKey, raw, err)
		}
		sel, ok := entities.SelectorFromBytes(decoded)
		if !ok {
			return entities.Action{}, fmt.Errorf("action %s selector %q has wrong length", m.ActionKey, raw)
		}
		selectors = append(selectors, sel)
	}
	return entities.Action{
		Key:                common.HexToHash(m.ActionKey),
		Destination:        common.HexToAddress(m.Destination),
		RequiredPercentage: m.RequiredPercentage,
		TimeOut:            time.Duration(m.TimeoutSeconds) * time.Second,
		SuccessFunction:    selectors[0],
		RevokeFunction:     selectors[1],
		TimeOutFunction:    selectors[2],
		Allowed:            m.Allowed,
	}, nil
}

type transactionModel struct {
	ID          int64     `gorm:"column:id;primaryKey;autoIncrement:false"`
	Status      string    `gorm:"column:status;index"`
	SubmittedAt time.Time `gorm:"column:submitted_at"`
	Items       []byte    `gorm:"column:items"`
}

func (transactionModel) TableName() string {
	return "governance_transactions"
}

// itemRecord is the CBOR form of a transaction item. Integer keys keep the
// encoding compact and stable across field renames.
type itemRecord struct {
	ActionKey []byte `cbor:"1,keyasint"`
	Value     []byte `cbor:"2,keyasint,omitempty"`
	Payload   []byte `cbor:"3,keyasint,omitempty"`
	AuditData []byte `cbor:"4,keyasint,omitempty"`
}

var itemEncMode = mustEncMode()

func mustEncMode() cbor.EncMode {
	mode, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	return mode
}

func encodeItems(items []entities.TransactionItem) ([]byte, error) {
	records := make([]itemRecord, 0, len(items))
	for _, item := range items {
		record := itemRecord{
			ActionKey: item.ActionKey.Bytes(),
			Payload:   item.Payload,
			AuditData: item.AuditData,
		}
		if item.Value != nil && item.Value.Sign() > 0 {
			record.Value = item.Value.Bytes()
		}
		records = append(records, record)
	}
	return itemEncMode.Marshal(records)
}

func decodeItems(raw []byte) ([]entities.TransactionItem, error) {
	var records []itemRecord
	if err := cbor.Unmarshal(raw, &records); err != nil {
		return nil, err
	}
	items := make([]entities.TransactionItem, 0, len(records))
	for _, record := range records {
		items = append(items, entities.TransactionItem{
			ActionKey: common.BytesToHash(record.ActionKey),
			Value:     new(big.Int).SetBytes(record.Value),
			Payload:   append([]byte(nil), record.Payload...),
			AuditData: append([]byte(nil), record.AuditData...),
		})
	}
	return items, nil
}

func transactionModelFromEntity(tx entities.Transaction) (transactionModel, error) {
	items, err := encodeItems(tx.Items)
	if err != nil {
		return transactionModel{}, err
	}
	return transactionModel{
		ID:          int64(tx.ID),
		Status:      string(tx.Status),
		SubmittedAt: tx.SubmittedAt.UTC(),
		Items:       items,
	}, nil
}

func (m transactionModel) toEntity() (entities.Transaction, error) {
	items, err := decodeItems(m.Items)
	if err != nil {
		return entities.Transaction{}, fmt.Errorf("transaction %d items: %w", m.ID, err)
	}
	return entities.Transaction{
		ID:          uint64(m.ID),
		Items:       items,
		Status:      entities.TransactionStatus(m.Status),
		SubmittedAt: m.SubmittedAt.UTC(),
	}, nil
}

type idempotencyModel struct {
	Key           string    `gorm:"column:key;primaryKey"`
	RequestHash   string    `gorm:"column:request_hash"`
	TransactionID int64     `gorm:"column:transaction_id"`
	ExpiresAt     time.Time `gorm:"column:expires_at"`
}

func (idempotencyModel) TableName() string {
	return "governance_idempotency"
}

type outboxModel struct {
	OutboxID     string     `gorm:"column:outbox_id;primaryKey"`
	Sequence     int64      `gorm:"column:sequence;autoIncrement;uniqueIndex"`
	EventID      string     `gorm:"column:event_id"`
	EventType    string     `gorm:"column:event_type"`
	PartitionKey string     `gorm:"column:partition_key"`
	Payload      []byte     `gorm:"column:payload"`
	Status       string     `gorm:"column:status;index"`
	CreatedAt    time.Time  `gorm:"column:created_at"`
	PublishedAt  *time.Time `gorm:"column:published_at"`
}

func (outboxModel) TableName() string {
	return "governance_outbox"
}
