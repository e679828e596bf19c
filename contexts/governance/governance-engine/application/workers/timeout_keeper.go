package workers

import (
	"context"
	"errors"
	"log/slog"
	"time"

	application "consortium/contexts/governance/governance-engine/application"
	"consortium/contexts/governance/governance-engine/application/commands"
	"consortium/contexts/governance/governance-engine/domain/entities"
	domainerrors "consortium/contexts/governance/governance-engine/domain/errors"
	"consortium/contexts/governance/governance-engine/ports"

	"github.com/hashicorp/go-multierror"
)

// OutcomeEvaluator is the engine entry point the keeper pokes.
type OutcomeEvaluator interface {
	EvaluateOutcome(ctx context.Context, id uint64) (commands.Evaluation, error)
}

// TimeoutKeeper is an ordinary external caller: the engine only notices an
// elapsed timeout when someone evaluates the transaction, and the keeper is
// that someone for transactions nobody votes on anymore.
type TimeoutKeeper struct {
	Transactions ports.TransactionRepository
	Actions      ports.ActionRepository
	Engine       OutcomeEvaluator
	Clock        ports.Clock
	BatchSize    int
	Logger       *slog.Logger
}

// RunOnce pages through every pending transaction, evaluates those whose
// effective timeout has elapsed and returns how many it resolved. Failures on
// one transaction do not stop the others.
func (k TimeoutKeeper) RunOnce(ctx context.Context) (int, error) {
	logger := application.ResolveLogger(k.Logger)
	limit := k.BatchSize
	if limit <= 0 {
		limit = 100
	}

	now := k.now()
	scanned := 0
	resolved := 0
	var result *multierror.Error
	for cursor := uint64(0); ; {
		if err := ctx.Err(); err != nil {
			return resolved, err
		}
		page, err := k.Transactions.ListPendingTransactions(ctx, cursor, limit)
		if err != nil {
			logger.Error("governance pending transaction list failed",
				"event", "governance_timeout_keeper_list_failed",
				"module", "governance/governance-engine",
				"layer", "worker",
				"cursor", cursor,
				"error", err.Error(),
			)
			return resolved, multierror.Append(result, err).ErrorOrNil()
		}
		scanned += len(page)

		for _, tx := range page {
			ok, err := k.evaluate(ctx, logger, tx, now)
			if err != nil {
				result = multierror.Append(result, err)
				continue
			}
			if ok {
				resolved++
			}
		}

		if len(page) < limit {
			break
		}
		cursor = page[len(page)-1].ID + 1
	}

	if resolved > 0 {
		logger.Info("governance timeout keeper resolved transactions",
			"event", "governance_timeout_keeper_completed",
			"module", "governance/governance-engine",
			"layer", "worker",
			"pending", scanned,
			"resolved", resolved,
		)
	}
	return resolved, result.ErrorOrNil()
}

// evaluate pokes tx when it is due and reports whether it was resolved.
func (k TimeoutKeeper) evaluate(ctx context.Context, logger *slog.Logger, tx entities.Transaction, now time.Time) (bool, error) {
	due, err := k.due(ctx, tx, now)
	if err != nil {
		if errors.Is(err, domainerrors.ErrActionDisallowed) {
			// Stuck until the action is allowed again; nothing to poke.
			return false, nil
		}
		return false, err
	}
	if !due {
		return false, nil
	}
	evaluation, err := k.Engine.EvaluateOutcome(ctx, tx.ID)
	if err != nil {
		logger.Warn("governance timeout evaluation failed",
			"event", "governance_timeout_keeper_evaluation_failed",
			"module", "governance/governance-engine",
			"layer", "worker",
			"transaction_id", tx.ID,
			"error", err.Error(),
		)
		return false, err
	}
	return evaluation.Resolved, nil
}

func (k TimeoutKeeper) due(ctx context.Context, tx entities.Transaction, now time.Time) (bool, error) {
	actions := make(map[entities.ActionKey]entities.Action, len(tx.Items))
	for _, key := range tx.ActionKeys() {
		action, found, err := k.Actions.GetAction(ctx, key)
		if err != nil {
			return false, err
		}
		if found {
			actions[key] = action
		}
	}
	policy, err := entities.ResolvePolicy(tx.Items, actions)
	if err != nil {
		return false, err
	}
	return policy.MinTimeout > 0 && now.After(tx.SubmittedAt.Add(policy.MinTimeout)), nil
}

func (k TimeoutKeeper) now() time.Time {
	if k.Clock == nil {
		return time.Now().UTC()
	}
	return k.Clock.Now().UTC()
}
