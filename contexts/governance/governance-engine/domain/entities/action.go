package entities

import (
	"time"

	domainerrors "consortium/contexts/governance/governance-engine/domain/errors"
)

// Names of the registry mutators. Only these three keys are protected from
// being disallowed; the upgrade relays are deliberately absent.
const (
	ActionAllowAction    = "allowAction"
	ActionDisallowAction = "disallowAction"
	ActionUpdateAction   = "updateAction"
)

var protectedActions = map[ActionKey]struct{}{
	ActionKeyOf(ActionAllowAction):    {},
	ActionKeyOf(ActionDisallowAction): {},
	ActionKeyOf(ActionUpdateAction):   {},
}

// IsProtected reports whether key can never be disallowed.
func IsProtected(key ActionKey) bool {
	_, ok := protectedActions[key]
	return ok
}

// Action is the policy record for one kind of governed operation.
type Action struct {
	Key                ActionKey
	RequiredPercentage uint8
	TimeOut            time.Duration
	Destination        Address
	SuccessFunction    Selector
	RevokeFunction     Selector
	TimeOutFunction    Selector
	Allowed            bool
}

func (a Action) Validate() error {
	if a.RequiredPercentage > 100 {
		return domainerrors.ErrInvalidPercentage
	}
	if a.TimeOut < 0 {
		return domainerrors.ErrInvalidInput
	}
	return nil
}

// OutcomeSelector returns the selector dispatched when a transaction
// reaches status. Non-terminal statuses have none.
func (a Action) OutcomeSelector(status TransactionStatus) Selector {
	switch status {
	case StatusExecuted:
		return a.SuccessFunction
	case StatusRevoked:
		return a.RevokeFunction
	case StatusTimedOut:
		return a.TimeOutFunction
	default:
		return Selector{}
	}
}

// Disabled returns the zeroed record stored by disallowAction.
func Disabled(key ActionKey) Action {
	return Action{Key: key}
}
