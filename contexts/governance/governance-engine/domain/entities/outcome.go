package entities

import (
	"time"

	domainerrors "consortium/contexts/governance/governance-engine/domain/errors"
)

// Policy is the effective policy of a batch: the strictest threshold and the
// earliest timeout among its actions.
type Policy struct {
	MinTimeout    time.Duration
	MaxPercentage uint8
}

// ResolvePolicy folds the current policies of the batch's actions. A missing
// or disabled action fails with ErrActionDisallowed.
func ResolvePolicy(items []TransactionItem, actions map[ActionKey]Action) (Policy, error) {
	var policy Policy
	for i, item := range items {
		action, ok := actions[item.ActionKey]
		if !ok || !action.Allowed {
			return Policy{}, domainerrors.ErrActionDisallowed
		}
		if i == 0 || action.TimeOut < policy.MinTimeout {
			policy.MinTimeout = action.TimeOut
		}
		if action.RequiredPercentage > policy.MaxPercentage {
			policy.MaxPercentage = action.RequiredPercentage
		}
	}
	return policy, nil
}

// Tally is the vote state of one transaction at evaluation time.
type Tally struct {
	Members       int
	Confirmations int
	Revocations   int
}

// Decide applies the timeout, approval and rejection rules in that order and
// returns the resulting status. Integer arithmetic only: a threshold of 66
// with 3 members needs 2 confirmations (200 >= 198).
func Decide(policy Policy, tally Tally, submittedAt time.Time, now time.Time) TransactionStatus {
	if policy.MinTimeout > 0 && now.After(submittedAt.Add(policy.MinTimeout)) {
		return StatusTimedOut
	}
	pct := int(policy.MaxPercentage)
	if tally.Confirmations > 0 && tally.Confirmations*100 >= tally.Members*pct {
		return StatusExecuted
	}
	if tally.Revocations > 0 && tally.Revocations*100 >= tally.Members*(100-pct) {
		return StatusRevoked
	}
	return StatusSubmitted
}
