// Package governanceengine implements the multisig governance engine of the
// governance context.
//
// Consortium members submit batches of registered actions, vote on them and
// the engine dispatches the configured outcome call to the managed subsystem
// once a batch is approved, rejected or timed out. Membership itself changes
// only through the same voting path, via the engine's self-interface. State
// changes are atomic per call and emit outbox events for the worker relay.
package governanceengine
