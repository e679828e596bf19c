package postgresadapter

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"consortium/contexts/governance/governance-engine/domain/entities"
	domainerrors "consortium/contexts/governance/governance-engine/domain/errors"
	"consortium/contexts/governance/governance-engine/ports"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	outboxStatusPending   = "pending"
	outboxStatusPublished = "published"
)

type txKey struct{}

// Repository implements every governance persistence port on Postgres. The
// unit of work travels in the context: writes made with a ctx returned by
// WithinTx join that database transaction, and nested WithinTx calls become
// savepoints.
type Repository struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewRepository(db *gorm.DB, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// AutoMigrate creates or updates the governance tables.
func (r *Repository) AutoMigrate(ctx context.Context) error {
	if err := r.db.WithContext(ctx).AutoMigrate(
		&stateModel{},
		&setEntryModel{},
		&actionModel{},
		&transactionModel{},
		&idempotencyModel{},
		&outboxModel{},
	); err != nil {
		return r.logError("governance_repo_migrate_failed", err)
	}
	return nil
}

// governanceLockKey is the advisory lock that serializes outermost units of
// work across processes sharing the database.
const governanceLockKey int64 = 0x676f76

func (r *Repository) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	_, nested := ctx.Value(txKey{}).(*gorm.DB)
	return r.conn(ctx).Transaction(func(tx *gorm.DB) error {
		if !nested {
			if err := tx.Exec("SELECT pg_advisory_xact_lock(?)", governanceLockKey).Error; err != nil {
				return r.logError("governance_repo_lock_failed", err)
			}
		}
		return fn(context.WithValue(ctx, txKey{}, tx))
	})
}

func (r *Repository) conn(ctx context.Context) *gorm.DB {
	if tx, ok := ctx.Value(txKey{}).(*gorm.DB); ok && tx != nil {
		return tx.WithContext(ctx)
	}
	return r.db.WithContext(ctx)
}

func (r *Repository) SetAdd(ctx context.Context, set entities.SetRef, addr entities.Address) error {
	key := set.String()
	return r.conn(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&setEntryModel{}).Where("set_key = ?", key).Count(&count).Error; err != nil {
			return r.logError("governance_repo_set_count_failed", err, "set", key)
		}
		row := setEntryModel{SetKey: key, Address: addr.Hex(), Position: int(count)}
		if err := tx.Create(&row).Error; err != nil {
			if isUniqueViolation(err) {
				return domainerrors.ErrAlreadyPresent
			}
			return r.logError("governance_repo_set_add_failed", err, "set", key, "address", addr.Hex())
		}
		return nil
	})
}

// SetRemove deletes addr and moves the entry at the last position into its
// slot.
func (r *Repository) SetRemove(ctx context.Context, set entities.SetRef, addr entities.Address) error {
	key := set.String()
	return r.conn(ctx).Transaction(func(tx *gorm.DB) error {
		var removed setEntryModel
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("set_key = ? AND address = ?", key, addr.Hex()).
			First(&removed).
			Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domainerrors.ErrNotPresent
			}
			return r.logError("governance_repo_set_lookup_failed", err, "set", key, "address", addr.Hex())
		}

		var last setEntryModel
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("set_key = ?", key).
			Order("position DESC").
			First(&last).Error; err != nil {
			return r.logError("governance_repo_set_last_failed", err, "set", key)
		}

		if err := tx.Where("set_key = ? AND address = ?", key, removed.Address).
			Delete(&setEntryModel{}).Error; err != nil {
			return r.logError("governance_repo_set_remove_failed", err, "set", key, "address", addr.Hex())
		}
		if last.Address == removed.Address {
			return nil
		}
		if err := tx.Model(&setEntryModel{}).
			Where("set_key = ? AND address = ?", key, last.Address).
			Update("position", removed.Position).Error; err != nil {
			return r.logError("governance_repo_set_compact_failed", err, "set", key, "address", last.Address)
		}
		return nil
	})
}

func (r *Repository) SetContains(ctx context.Context, set entities.SetRef, addr entities.Address) (bool, error) {
	var count int64
	if err := r.conn(ctx).Model(&setEntryModel{}).
		Where("set_key = ? AND address = ?", set.String(), addr.Hex()).
		Count(&count).Error; err != nil {
		return false, r.logError("governance_repo_set_contains_failed", err, "set", set.String())
	}
	return count > 0, nil
}

func (r *Repository) SetMembers(ctx context.Context, set entities.SetRef) ([]entities.Address, error) {
	var rows []setEntryModel
	if err := r.conn(ctx).
		Where("set_key = ?", set.String()).
		Order("position ASC").
		Find(&rows).Error; err != nil {
		return nil, r.logError("governance_repo_set_members_failed", err, "set", set.String())
	}
	items := make([]entities.Address, 0, len(rows))
	for _, row := range rows {
		items = append(items, common.HexToAddress(row.Address))
	}
	return items, nil
}

func (r *Repository) SetLen(ctx context.Context, set entities.SetRef) (int, error) {
	var count int64
	if err := r.conn(ctx).Model(&setEntryModel{}).
		Where("set_key = ?", set.String()).
		Count(&count).Error; err != nil {
		return 0, r.logError("governance_repo_set_len_failed", err, "set", set.String())
	}
	return int(count), nil
}

func (r *Repository) GetAction(ctx context.Context, key entities.ActionKey) (entities.Action, bool, error) {
	var row actionModel
	err := r.conn(ctx).Where("action_key = ?", key.Hex()).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Action{}, false, nil
		}
		return entities.Action{}, false, r.logError("governance_repo_get_action_failed", err, "action_key", key.Hex())
	}
	action, err := row.toEntity()
	if err != nil {
		return entities.Action{}, false, r.logError("governance_repo_decode_action_failed", err, "action_key", key.Hex())
	}
	return action, true, nil
}

func (r *Repository) SaveAction(ctx context.Context, action entities.Action) error {
	row := actionModelFromEntity(action, time.Now())
	err := r.conn(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "action_key"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"destination",
			"required_percentage",
			"timeout_seconds",
			"success_function",
			"revoke_function",
			"timeout_function",
			"allowed",
			"updated_at",
		}),
	}).Create(&row).Error
	if err != nil {
		return r.logError("governance_repo_save_action_failed", err, "action_key", row.ActionKey)
	}
	return nil
}

func (r *Repository) ListActions(ctx context.Context) ([]entities.Action, error) {
	var rows []actionModel
	if err := r.conn(ctx).Order("action_key ASC").Find(&rows).Error; err != nil {
		return nil, r.logError("governance_repo_list_actions_failed", err)
	}
	items := make([]entities.Action, 0, len(rows))
	for _, row := range rows {
		action, err := row.toEntity()
		if err != nil {
			return nil, r.logError("governance_repo_decode_action_failed", err, "action_key", row.ActionKey)
		}
		items = append(items, action)
	}
	return items, nil
}

// AppendTransaction takes the next id from the locked state row, so ids stay
// dense even with several API processes.
func (r *Repository) AppendTransaction(ctx context.Context, tx entities.Transaction) (uint64, error) {
	var id uint64
	err := r.conn(ctx).Transaction(func(db *gorm.DB) error {
		state, err := r.lockState(db)
		if err != nil {
			return err
		}
		tx.ID = uint64(state.NextTransactionID)
		row, err := transactionModelFromEntity(tx)
		if err != nil {
			return r.logError("governance_repo_encode_transaction_failed", err)
		}
		if err := db.Create(&row).Error; err != nil {
			return r.logError("governance_repo_append_transaction_failed", err, "transaction_id", tx.ID)
		}
		if err := db.Model(&stateModel{}).
			Where("id = ?", stateRowID).
			Updates(map[string]any{
				"next_transaction_id": state.NextTransactionID + 1,
				"updated_at":          time.Now().UTC(),
			}).Error; err != nil {
			return r.logError("governance_repo_advance_transaction_id_failed", err)
		}
		id = tx.ID
		return nil
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (r *Repository) GetTransaction(ctx context.Context, id uint64) (entities.Transaction, error) {
	var row transactionModel
	err := r.conn(ctx).Where("id = ?", int64(id)).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Transaction{}, domainerrors.ErrTransactionNotFound
		}
		return entities.Transaction{}, r.logError("governance_repo_get_transaction_failed", err, "transaction_id", id)
	}
	tx, err := row.toEntity()
	if err != nil {
		return entities.Transaction{}, r.logError("governance_repo_decode_transaction_failed", err, "transaction_id", id)
	}
	return tx, nil
}

func (r *Repository) UpdateTransactionStatus(ctx context.Context, id uint64, status entities.TransactionStatus) error {
	result := r.conn(ctx).Model(&transactionModel{}).
		Where("id = ?", int64(id)).
		Update("status", string(status))
	if result.Error != nil {
		return r.logError("governance_repo_update_transaction_status_failed", result.Error,
			"transaction_id", id,
			"status", string(status),
		)
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrTransactionNotFound
	}
	return nil
}

func (r *Repository) CountTransactions(ctx context.Context) (uint64, error) {
	var count int64
	if err := r.conn(ctx).Model(&transactionModel{}).Count(&count).Error; err != nil {
		return 0, r.logError("governance_repo_count_transactions_failed", err)
	}
	return uint64(count), nil
}

func (r *Repository) ListTransactions(ctx context.Context, from uint64, to uint64) ([]entities.Transaction, error) {
	count, err := r.CountTransactions(ctx)
	if err != nil {
		return nil, err
	}
	if to < from || to > count {
		return nil, domainerrors.ErrInvalidRange
	}
	var rows []transactionModel
	if err := r.conn(ctx).
		Where("id >= ? AND id < ?", int64(from), int64(to)).
		Order("id ASC").
		Find(&rows).Error; err != nil {
		return nil, r.logError("governance_repo_list_transactions_failed", err, "from", from, "to", to)
	}
	return r.toTransactions(rows)
}

func (r *Repository) ListPendingTransactions(ctx context.Context, after uint64, limit int) ([]entities.Transaction, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []transactionModel
	if err := r.conn(ctx).
		Where("status = ? AND id >= ?", string(entities.StatusSubmitted), after).
		Order("id ASC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, r.logError("governance_repo_list_pending_transactions_failed", err, "after", after, "limit", limit)
	}
	return r.toTransactions(rows)
}

func (r *Repository) IsInitialized(ctx context.Context) (bool, error) {
	var row stateModel
	err := r.conn(ctx).Where("id = ?", stateRowID).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, r.logError("governance_repo_load_state_failed", err)
	}
	return row.Initialized, nil
}

func (r *Repository) MarkInitialized(ctx context.Context) error {
	return r.conn(ctx).Transaction(func(db *gorm.DB) error {
		state, err := r.lockState(db)
		if err != nil {
			return err
		}
		if state.Initialized {
			return domainerrors.ErrAlreadyInitialized
		}
		if err := db.Model(&stateModel{}).
			Where("id = ?", stateRowID).
			Updates(map[string]any{
				"initialized": true,
				"updated_at":  time.Now().UTC(),
			}).Error; err != nil {
			return r.logError("governance_repo_mark_initialized_failed", err)
		}
		return nil
	})
}

func (r *Repository) Balance(ctx context.Context) (*big.Int, error) {
	var row stateModel
	err := r.conn(ctx).Where("id = ?", stateRowID).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return new(big.Int), nil
		}
		return nil, r.logError("governance_repo_load_state_failed", err)
	}
	balance, err := row.balance()
	if err != nil {
		return nil, r.logError("governance_repo_decode_balance_failed", err)
	}
	return balance, nil
}

func (r *Repository) AdjustBalance(ctx context.Context, delta *big.Int) (*big.Int, error) {
	var next *big.Int
	err := r.conn(ctx).Transaction(func(db *gorm.DB) error {
		state, err := r.lockState(db)
		if err != nil {
			return err
		}
		current, err := state.balance()
		if err != nil {
			return r.logError("governance_repo_decode_balance_failed", err)
		}
		next = new(big.Int).Add(current, delta)
		if next.Sign() < 0 {
			return domainerrors.ErrInsufficientFunds
		}
		if err := db.Model(&stateModel{}).
			Where("id = ?", stateRowID).
			Updates(map[string]any{
				"balance":    next.String(),
				"updated_at": time.Now().UTC(),
			}).Error; err != nil {
			return r.logError("governance_repo_adjust_balance_failed", err, "delta", delta.String())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return next, nil
}

// lockState returns the singleton state row locked for update, creating it
// on first use.
func (r *Repository) lockState(db *gorm.DB) (stateModel, error) {
	seed := stateModel{ID: stateRowID, Balance: "0", UpdatedAt: time.Now().UTC()}
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&seed).Error; err != nil {
		return stateModel{}, r.logError("governance_repo_seed_state_failed", err)
	}
	var row stateModel
	if err := db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", stateRowID).
		First(&row).Error; err != nil {
		return stateModel{}, r.logError("governance_repo_lock_state_failed", err)
	}
	return row, nil
}

func (r *Repository) GetIdempotency(ctx context.Context, key string, now time.Time) (ports.IdempotencyRecord, bool, error) {
	var row idempotencyModel
	err := r.conn(ctx).
		Where("key = ?", strings.TrimSpace(key)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.IdempotencyRecord{}, false, nil
		}
		return ports.IdempotencyRecord{}, false, r.logError("governance_repo_idempotency_get_failed", err,
			"idempotency_key", strings.TrimSpace(key),
		)
	}
	if !row.ExpiresAt.IsZero() && !now.UTC().Before(row.ExpiresAt.UTC()) {
		return ports.IdempotencyRecord{}, false, nil
	}
	return ports.IdempotencyRecord{
		Key:           row.Key,
		RequestHash:   row.RequestHash,
		TransactionID: uint64(row.TransactionID),
		ExpiresAt:     row.ExpiresAt.UTC(),
	}, true, nil
}

// PutIdempotency replaces any record under the key. The engine only writes
// after GetIdempotency reported the key free or expired.
func (r *Repository) PutIdempotency(ctx context.Context, record ports.IdempotencyRecord) error {
	row := idempotencyModel{
		Key:           strings.TrimSpace(record.Key),
		RequestHash:   strings.TrimSpace(record.RequestHash),
		TransactionID: int64(record.TransactionID),
		ExpiresAt:     record.ExpiresAt.UTC(),
	}
	err := r.conn(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"request_hash", "transaction_id", "expires_at"}),
	}).Create(&row).Error
	if err != nil {
		return r.logError("governance_repo_idempotency_put_failed", err, "idempotency_key", row.Key)
	}
	return nil
}

func (r *Repository) AppendOutbox(ctx context.Context, envelope ports.EventEnvelope) error {
	payload, err := json.Marshal(envelope)
	if err != nil {
		return r.logError("governance_repo_append_outbox_marshal_failed", err,
			"event_id", strings.TrimSpace(envelope.EventID),
			"event_type", strings.TrimSpace(envelope.EventType),
		)
	}
	row := outboxModel{
		OutboxID:     uuid.NewString(),
		EventID:      strings.TrimSpace(envelope.EventID),
		EventType:    strings.TrimSpace(envelope.EventType),
		PartitionKey: strings.TrimSpace(envelope.PartitionKey),
		Payload:      payload,
		Status:       outboxStatusPending,
		CreatedAt:    envelope.OccurredAt.UTC(),
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	if err := r.conn(ctx).Create(&row).Error; err != nil {
		return r.logError("governance_repo_append_outbox_insert_failed", err,
			"outbox_id", row.OutboxID,
			"event_type", row.EventType,
		)
	}
	return nil
}

func (r *Repository) ListPendingOutbox(ctx context.Context, limit int) ([]ports.OutboxMessage, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []outboxModel
	if err := r.conn(ctx).
		Where("status = ?", outboxStatusPending).
		Order("sequence ASC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, r.logError("governance_repo_list_pending_outbox_failed", err, "limit", limit)
	}
	items := make([]ports.OutboxMessage, 0, len(rows))
	for _, row := range rows {
		items = append(items, ports.OutboxMessage{
			OutboxID:     row.OutboxID,
			EventID:      row.EventID,
			EventType:    row.EventType,
			PartitionKey: row.PartitionKey,
			Payload:      append([]byte(nil), row.Payload...),
			CreatedAt:    row.CreatedAt.UTC(),
		})
	}
	return items, nil
}

func (r *Repository) MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error {
	result := r.conn(ctx).
		Model(&outboxModel{}).
		Where("outbox_id = ?", strings.TrimSpace(outboxID)).
		Updates(map[string]any{
			"status":       outboxStatusPublished,
			"published_at": publishedAt.UTC(),
		})
	if result.Error != nil {
		return r.logError("governance_repo_mark_outbox_published_failed", result.Error,
			"outbox_id", strings.TrimSpace(outboxID),
		)
	}
	return nil
}

func (r *Repository) toTransactions(rows []transactionModel) ([]entities.Transaction, error) {
	items := make([]entities.Transaction, 0, len(rows))
	for _, row := range rows {
		tx, err := row.toEntity()
		if err != nil {
			return nil, r.logError("governance_repo_decode_transaction_failed", err, "transaction_id", row.ID)
		}
		items = append(items, tx)
	}
	return items, nil
}

func (r *Repository) logError(event string, err error, attrs ...any) error {
	fields := make([]any, 0, len(attrs)+8)
	fields = append(fields,
		"event", event,
		"module", "governance/governance-engine",
		"layer", "adapter",
		"error", err.Error(),
	)
	fields = append(fields, attrs...)
	r.logger.Error("governance repository operation failed", fields...)
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

var _ ports.Repository = (*Repository)(nil)
var _ ports.IdempotencyStore = (*Repository)(nil)
var _ ports.OutboxWriter = (*Repository)(nil)
var _ ports.OutboxRepository = (*Repository)(nil)
