package commands

import (
	"context"
	"log/slog"

	application "consortium/contexts/governance/governance-engine/application"
)

type frameKey struct{}

type frame struct {
	owner *Governance
	// committed holds work that must only happen once the outermost unit
	// of work has committed.
	committed []func()
}

// run executes fn as one atomic entry-point call. Top-level calls are
// serialized by the governance mutex. A call made from inside a dispatch
// carries the outer frame in ctx and joins it as a nested unit of work
// instead of waiting on the mutex it already holds.
func (g *Governance) run(ctx context.Context, fn func(ctx context.Context) error) error {
	if f, ok := ctx.Value(frameKey{}).(*frame); ok && f.owner == g {
		mark := len(f.committed)
		if err := g.Repo.WithinTx(ctx, fn); err != nil {
			f.committed = f.committed[:mark]
			return err
		}
		return nil
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	f := &frame{owner: g}
	if err := g.Repo.WithinTx(context.WithValue(ctx, frameKey{}, f), fn); err != nil {
		return err
	}
	for _, after := range f.committed {
		after()
	}
	return nil
}

// afterCommit runs fn once the unit of work carried by ctx commits and drops
// it if that unit rolls back. Without a unit of work fn runs immediately.
func afterCommit(ctx context.Context, fn func()) {
	if f, ok := ctx.Value(frameKey{}).(*frame); ok {
		f.committed = append(f.committed, fn)
		return
	}
	fn()
}

// logCommitted emits an Info record once the change it describes is durable.
func logCommitted(ctx context.Context, logger *slog.Logger, msg string, args ...any) {
	afterCommit(ctx, func() {
		application.ResolveLogger(logger).Info(msg, args...)
	})
}
