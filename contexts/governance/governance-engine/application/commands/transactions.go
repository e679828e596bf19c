package commands

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"math/big"
	"strconv"
	"strings"
	"time"

	application "consortium/contexts/governance/governance-engine/application"
	"consortium/contexts/governance/governance-engine/domain/entities"
	domainerrors "consortium/contexts/governance/governance-engine/domain/errors"
	"consortium/contexts/governance/governance-engine/ports"
)

// SubmitTransactionCommand carries a batch as parallel arrays. Values may be
// nil, in which case every item carries zero value.
type SubmitTransactionCommand struct {
	Actions        []entities.ActionKey
	Values         []*big.Int
	Payloads       [][]byte
	AuditData      [][]byte
	Confirm        bool
	IdempotencyKey string
}

type SubmitTransactionResult struct {
	TransactionID uint64
	Evaluation    Evaluation
	Replayed      bool
}

// Evaluation is the result of evaluating a transaction. ReturnData is the
// raw result of the last dispatched call, if any.
type Evaluation struct {
	TransactionID uint64
	Status        entities.TransactionStatus
	Resolved      bool
	Dispatched    int
	ReturnData    []byte
}

// SubmitTransaction appends a batch and casts the submitter's first vote.
func (g *Governance) SubmitTransaction(ctx context.Context, p Principal, cmd SubmitTransactionCommand) (SubmitTransactionResult, error) {
	logger := application.ResolveLogger(g.Logger)
	var result SubmitTransactionResult
	err := g.run(ctx, func(ctx context.Context) error {
		if err := g.requireMember(ctx, p); err != nil {
			return err
		}
		items, err := batchItems(cmd)
		if err != nil {
			return err
		}

		key := strings.TrimSpace(cmd.IdempotencyKey)
		requestHash := hashSubmitCommand(p.Address(), cmd)
		if key != "" && g.Idempotency != nil {
			record, found, err := g.Idempotency.GetIdempotency(ctx, key, g.now())
			if err != nil {
				return err
			}
			if found {
				if record.RequestHash != requestHash {
					return domainerrors.ErrIdempotencyConflict
				}
				tx, err := g.Repo.GetTransaction(ctx, record.TransactionID)
				if err != nil {
					return err
				}
				result = SubmitTransactionResult{
					TransactionID: tx.ID,
					Evaluation:    Evaluation{TransactionID: tx.ID, Status: tx.Status},
					Replayed:      true,
				}
				return nil
			}
		}

		now := g.now()
		id, err := g.Repo.AppendTransaction(ctx, entities.Transaction{
			Items:       items,
			Status:      entities.StatusSubmitted,
			SubmittedAt: now,
		})
		if err != nil {
			return err
		}
		if err := g.events.emit(ctx, eventTransactionSubmitted, "transaction_id", formatID(id), map[string]any{
			"transaction_id": id,
			"submitter":      p.Address().Hex(),
			"items":          len(items),
			"action_keys":    actionKeyStrings(items),
		}); err != nil {
			return err
		}
		logCommitted(ctx, logger, "transaction submitted",
			"event", "governance_transaction_submitted",
			"module", "governance/governance-engine",
			"layer", "application",
			"transaction_id", id,
			"submitter", p.Address().Hex(),
			"items", len(items),
			"confirm", cmd.Confirm,
		)

		evaluation, err := g.vote(ctx, p, id, cmd.Confirm)
		if err != nil {
			return err
		}
		if key != "" && g.Idempotency != nil {
			if err := g.Idempotency.PutIdempotency(ctx, ports.IdempotencyRecord{
				Key:           key,
				RequestHash:   requestHash,
				TransactionID: id,
				ExpiresAt:     now.Add(g.idempotencyTTL()),
			}); err != nil {
				return err
			}
		}
		result = SubmitTransactionResult{TransactionID: id, Evaluation: evaluation}
		return nil
	})
	if err != nil {
		g.logRejected("submit_transaction", p, nil, err)
		return SubmitTransactionResult{}, err
	}
	g.observe(result.Evaluation)
	return result, nil
}

func (g *Governance) ConfirmTransaction(ctx context.Context, p Principal, id uint64) (Evaluation, error) {
	return g.voteEntry(ctx, p, id, true)
}

func (g *Governance) RevokeTransaction(ctx context.Context, p Principal, id uint64) (Evaluation, error) {
	return g.voteEntry(ctx, p, id, false)
}

// EvaluateOutcome may be called by anyone. It is a no-op for transactions
// that already reached a terminal status.
func (g *Governance) EvaluateOutcome(ctx context.Context, id uint64) (Evaluation, error) {
	var evaluation Evaluation
	err := g.run(ctx, func(ctx context.Context) error {
		var err error
		evaluation, err = g.evaluate(ctx, id)
		return err
	})
	if err != nil {
		application.ResolveLogger(g.Logger).Warn("transaction evaluation failed",
			"event", "governance_transaction_evaluation_failed",
			"module", "governance/governance-engine",
			"layer", "application",
			"transaction_id", id,
			"error", err.Error(),
		)
		return Evaluation{}, err
	}
	g.observe(evaluation)
	return evaluation, nil
}

func (g *Governance) voteEntry(ctx context.Context, p Principal, id uint64, confirm bool) (Evaluation, error) {
	var evaluation Evaluation
	err := g.run(ctx, func(ctx context.Context) error {
		if err := g.requireMember(ctx, p); err != nil {
			return err
		}
		var err error
		evaluation, err = g.vote(ctx, p, id, confirm)
		return err
	})
	if err != nil {
		operation := "revoke_transaction"
		if confirm {
			operation = "confirm_transaction"
		}
		g.logRejected(operation, p, &id, err)
		return Evaluation{}, err
	}
	g.observe(evaluation)
	return evaluation, nil
}

// vote records p's vote, moving it out of the opposite set first, then
// evaluates. Membership is checked by the caller.
func (g *Governance) vote(ctx context.Context, p Principal, id uint64, confirm bool) (Evaluation, error) {
	tx, err := g.Repo.GetTransaction(ctx, id)
	if err != nil {
		return Evaluation{}, err
	}
	if tx.Status != entities.StatusSubmitted {
		return Evaluation{}, domainerrors.ErrTransactionNotPending
	}

	own, opposite := entities.ConfirmationsOf(id), entities.RevocationsOf(id)
	eventType, kind := eventTransactionConfirmed, "confirm"
	if !confirm {
		own, opposite = opposite, own
		eventType, kind = eventTransactionRevokeVote, "revoke"
	}

	voter := p.Address()
	already, err := g.Repo.SetContains(ctx, own, voter)
	if err != nil {
		return Evaluation{}, err
	}
	if already {
		return Evaluation{}, domainerrors.ErrAlreadyVoted
	}
	switched, err := g.Repo.SetContains(ctx, opposite, voter)
	if err != nil {
		return Evaluation{}, err
	}
	if switched {
		if err := g.Repo.SetRemove(ctx, opposite, voter); err != nil {
			return Evaluation{}, err
		}
	}
	if err := g.Repo.SetAdd(ctx, own, voter); err != nil {
		return Evaluation{}, err
	}
	if err := g.events.emit(ctx, eventType, "transaction_id", formatID(id), map[string]any{
		"transaction_id": id,
		"member":         voter.Hex(),
		"switched":       switched,
	}); err != nil {
		return Evaluation{}, err
	}
	if g.Metrics != nil {
		g.Metrics.ObserveVote(kind)
	}
	logCommitted(ctx, g.Logger, "transaction vote recorded",
		"event", "governance_transaction_vote_recorded",
		"module", "governance/governance-engine",
		"layer", "application",
		"transaction_id", id,
		"member", voter.Hex(),
		"vote", kind,
		"switched", switched,
	)
	return g.evaluate(ctx, id)
}

// evaluate resolves the batch policy, applies the outcome rules and
// dispatches the outcome selectors. The terminal status is written before
// the first dispatch so a re-entrant evaluation of the same id sees it.
func (g *Governance) evaluate(ctx context.Context, id uint64) (Evaluation, error) {
	tx, err := g.Repo.GetTransaction(ctx, id)
	if err != nil {
		return Evaluation{}, err
	}
	actions := make(map[entities.ActionKey]entities.Action, len(tx.Items))
	for _, key := range tx.ActionKeys() {
		action, found, err := g.Repo.GetAction(ctx, key)
		if err != nil {
			return Evaluation{}, err
		}
		if found {
			actions[key] = action
		}
	}
	policy, err := entities.ResolvePolicy(tx.Items, actions)
	if err != nil {
		return Evaluation{}, err
	}

	evaluation := Evaluation{TransactionID: id, Status: tx.Status}
	if tx.Status.IsTerminal() {
		return evaluation, nil
	}

	tally, err := g.tally(ctx, id)
	if err != nil {
		return Evaluation{}, err
	}
	status := entities.Decide(policy, tally, tx.SubmittedAt, g.now())
	if status == entities.StatusSubmitted {
		return evaluation, nil
	}

	if err := g.Repo.UpdateTransactionStatus(ctx, id, status); err != nil {
		return Evaluation{}, err
	}
	if err := g.events.emit(ctx, outcomeEventType(status), "transaction_id", formatID(id), map[string]any{
		"transaction_id": id,
		"status":         string(status),
		"members":        tally.Members,
		"confirmations":  tally.Confirmations,
		"revocations":    tally.Revocations,
		"max_percentage": policy.MaxPercentage,
		"min_timeout_s":  int64(policy.MinTimeout / time.Second),
	}); err != nil {
		return Evaluation{}, err
	}
	evaluation.Status = status
	evaluation.Resolved = true

	for _, item := range tx.Items {
		action := actions[item.ActionKey]
		selector := action.OutcomeSelector(status)
		if selector.IsZero() {
			continue
		}
		out, err := g.dispatch(ctx, ports.Call{
			Destination: action.Destination,
			Value:       item.Value,
			Selector:    selector,
			Payload:     item.Payload,
		})
		if err != nil {
			if g.Metrics != nil {
				g.Metrics.ObserveDispatchFailure(string(status))
			}
			return Evaluation{}, err
		}
		evaluation.Dispatched++
		evaluation.ReturnData = out
	}

	logCommitted(ctx, g.Logger, "transaction resolved",
		"event", "governance_transaction_resolved",
		"module", "governance/governance-engine",
		"layer", "application",
		"transaction_id", id,
		"status", string(status),
		"dispatched", evaluation.Dispatched,
		"confirmations", tally.Confirmations,
		"revocations", tally.Revocations,
		"members", tally.Members,
	)
	return evaluation, nil
}

func (g *Governance) tally(ctx context.Context, id uint64) (entities.Tally, error) {
	members, err := g.Repo.SetLen(ctx, entities.MembersSet())
	if err != nil {
		return entities.Tally{}, err
	}
	confirmations, err := g.Repo.SetLen(ctx, entities.ConfirmationsOf(id))
	if err != nil {
		return entities.Tally{}, err
	}
	revocations, err := g.Repo.SetLen(ctx, entities.RevocationsOf(id))
	if err != nil {
		return entities.Tally{}, err
	}
	return entities.Tally{Members: members, Confirmations: confirmations, Revocations: revocations}, nil
}

func (g *Governance) observe(evaluation Evaluation) {
	if g.Metrics != nil && evaluation.Resolved {
		g.Metrics.ObserveOutcome(evaluation.Status)
	}
}

func (g *Governance) logRejected(operation string, p Principal, id *uint64, err error) {
	attrs := []any{
		"event", "governance_command_rejected",
		"module", "governance/governance-engine",
		"layer", "application",
		"operation", operation,
		"caller", p.Address().Hex(),
		"error", err.Error(),
	}
	if id != nil {
		attrs = append(attrs, "transaction_id", *id)
	}
	application.ResolveLogger(g.Logger).Warn("governance command rejected", attrs...)
}

func (g *Governance) idempotencyTTL() time.Duration {
	if g.IdempotencyTTL <= 0 {
		return 24 * time.Hour
	}
	return g.IdempotencyTTL
}

func batchItems(cmd SubmitTransactionCommand) ([]entities.TransactionItem, error) {
	n := len(cmd.Actions)
	if len(cmd.Payloads) != n || len(cmd.AuditData) != n || (cmd.Values != nil && len(cmd.Values) != n) {
		return nil, domainerrors.ErrMismatchedBatch
	}
	if n == 0 {
		return nil, domainerrors.ErrEmptyBatch
	}
	items := make([]entities.TransactionItem, 0, n)
	for i, key := range cmd.Actions {
		value := new(big.Int)
		if cmd.Values != nil && cmd.Values[i] != nil {
			if cmd.Values[i].Sign() < 0 {
				return nil, domainerrors.ErrInvalidInput
			}
			value.Set(cmd.Values[i])
		}
		items = append(items, entities.TransactionItem{
			ActionKey: key,
			Value:     value,
			Payload:   append([]byte(nil), cmd.Payloads[i]...),
			AuditData: append([]byte(nil), cmd.AuditData[i]...),
		})
	}
	return items, nil
}

func hashSubmitCommand(caller entities.Address, cmd SubmitTransactionCommand) string {
	values := make([]string, 0, len(cmd.Values))
	for _, value := range cmd.Values {
		if value == nil {
			values = append(values, "0")
			continue
		}
		values = append(values, value.String())
	}
	payload, _ := json.Marshal(struct {
		Caller    string   `json:"caller"`
		Actions   []string `json:"actions"`
		Values    []string `json:"values"`
		Payloads  [][]byte `json:"payloads"`
		AuditData [][]byte `json:"audit_data"`
		Confirm   bool     `json:"confirm"`
	}{
		Caller:    caller.Hex(),
		Actions:   keyStrings(cmd.Actions),
		Values:    values,
		Payloads:  cmd.Payloads,
		AuditData: cmd.AuditData,
		Confirm:   cmd.Confirm,
	})
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

func outcomeEventType(status entities.TransactionStatus) string {
	switch status {
	case entities.StatusExecuted:
		return eventTransactionExecuted
	case entities.StatusRevoked:
		return eventTransactionRejected
	default:
		return eventTransactionTimedOut
	}
}

func actionKeyStrings(items []entities.TransactionItem) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, item.ActionKey.Hex())
	}
	return out
}

func keyStrings(keys []entities.ActionKey) []string {
	out := make([]string, 0, len(keys))
	for _, key := range keys {
		out = append(out, key.Hex())
	}
	return out
}

func formatID(id uint64) string {
	return strconv.FormatUint(id, 10)
}
