package commands

import (
	"context"
	"log/slog"

	"consortium/contexts/governance/governance-engine/domain/entities"
	domainerrors "consortium/contexts/governance/governance-engine/domain/errors"
	"consortium/contexts/governance/governance-engine/ports"
)

// ActionRegistry owns the action-key -> policy table. Every mutator requires
// the self principal.
type ActionRegistry struct {
	Actions ports.ActionRepository
	Events  eventSink
	Logger  *slog.Logger
}

func (r ActionRegistry) AllowAction(ctx context.Context, p Principal, action entities.Action) error {
	if err := requireSelf(p); err != nil {
		return err
	}
	current, found, err := r.Actions.GetAction(ctx, action.Key)
	if err != nil {
		return err
	}
	if found && current.Allowed {
		return domainerrors.ErrActionAlreadyAllowed
	}
	if err := action.Validate(); err != nil {
		return err
	}
	action.Allowed = true
	if err := r.Actions.SaveAction(ctx, action); err != nil {
		return err
	}
	r.logChange(ctx, "action allowed", "governance_action_allowed", action)
	return r.Events.emit(ctx, eventActionAllowed, "action_key", action.Key.Hex(), actionEventData(action))
}

// UpdateAction replaces the whole record of an allowed action.
func (r ActionRegistry) UpdateAction(ctx context.Context, p Principal, action entities.Action) error {
	if err := requireSelf(p); err != nil {
		return err
	}
	current, found, err := r.Actions.GetAction(ctx, action.Key)
	if err != nil {
		return err
	}
	if !found || !current.Allowed {
		return domainerrors.ErrActionNotAllowed
	}
	if err := action.Validate(); err != nil {
		return err
	}
	action.Allowed = true
	if err := r.Actions.SaveAction(ctx, action); err != nil {
		return err
	}
	r.logChange(ctx, "action updated", "governance_action_updated", action)
	return r.Events.emit(ctx, eventActionUpdated, "action_key", action.Key.Hex(), actionEventData(action))
}

func (r ActionRegistry) DisallowAction(ctx context.Context, p Principal, key entities.ActionKey) error {
	if err := requireSelf(p); err != nil {
		return err
	}
	current, found, err := r.Actions.GetAction(ctx, key)
	if err != nil {
		return err
	}
	if !found || !current.Allowed {
		return domainerrors.ErrActionNotAllowed
	}
	if entities.IsProtected(key) {
		return domainerrors.ErrProtectedAction
	}
	disabled := entities.Disabled(key)
	if err := r.Actions.SaveAction(ctx, disabled); err != nil {
		return err
	}
	r.logChange(ctx, "action disallowed", "governance_action_disallowed", disabled)
	return r.Events.emit(ctx, eventActionDisallowed, "action_key", key.Hex(), map[string]any{
		"action_key": key.Hex(),
	})
}

func (r ActionRegistry) logChange(ctx context.Context, msg string, event string, action entities.Action) {
	logCommitted(ctx, r.Logger, msg,
		"event", event,
		"module", "governance/governance-engine",
		"layer", "application",
		"action_key", action.Key.Hex(),
		"destination", action.Destination.Hex(),
		"required_percentage", action.RequiredPercentage,
		"timeout", action.TimeOut.String(),
	)
}

func actionEventData(action entities.Action) map[string]any {
	return map[string]any{
		"action_key":          action.Key.Hex(),
		"destination":         action.Destination.Hex(),
		"required_percentage": action.RequiredPercentage,
		"timeout_seconds":     int64(action.TimeOut.Seconds()),
		"success_function":    action.SuccessFunction.String(),
		"revoke_function":     action.RevokeFunction.String(),
		"timeout_function":    action.TimeOutFunction.String(),
	}
}
