package governanceengine

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"consortium/contexts/governance/governance-engine/adapters/dispatch"
	"consortium/contexts/governance/governance-engine/adapters/genesis"
	httpadapter "consortium/contexts/governance/governance-engine/adapters/http"
	"consortium/contexts/governance/governance-engine/adapters/memory"
	"consortium/contexts/governance/governance-engine/adapters/proxy"
	"consortium/contexts/governance/governance-engine/application/commands"
	"consortium/contexts/governance/governance-engine/application/queries"
	"consortium/contexts/governance/governance-engine/application/workers"
	"consortium/contexts/governance/governance-engine/domain/entities"
	domainerrors "consortium/contexts/governance/governance-engine/domain/errors"
	"consortium/contexts/governance/governance-engine/ports"
)

type Module struct {
	Handler    httpadapter.Handler
	Governance *commands.Governance
	Ledger     queries.LedgerUseCase
	Router     *dispatch.Router
	Proxy      *proxy.Proxy
	Journals   map[string]*dispatch.Journal
	Store      *memory.Store
}

type Dependencies struct {
	Repository      ports.Repository
	Outbox          ports.OutboxWriter
	Idempotency     ports.IdempotencyStore
	Metrics         ports.Metrics
	Clock           ports.Clock
	IDGen           ports.IDGenerator
	Self            entities.Address
	Implementations []entities.Address
	IdempotencyTTL  time.Duration
	Logger          *slog.Logger
}

// NewModule wires the engine to an in-process router and proxy. Subsystems
// are registered on Router by the caller, or by Seed.
func NewModule(deps Dependencies) Module {
	router := dispatch.NewRouter(deps.Logger)
	upgrades := proxy.New(deps.Self, router, deps.Logger)
	for _, impl := range deps.Implementations {
		upgrades.MarkValid(impl)
	}
	governance := commands.NewGovernance(commands.GovernanceDependencies{
		Repository:     deps.Repository,
		Dispatcher:     router,
		Proxy:          upgrades,
		Outbox:         deps.Outbox,
		Idempotency:    deps.Idempotency,
		Metrics:        deps.Metrics,
		Clock:          deps.Clock,
		IDGen:          deps.IDGen,
		Self:           deps.Self,
		IdempotencyTTL: deps.IdempotencyTTL,
		Logger:         deps.Logger,
	})
	ledger := queries.LedgerUseCase{Repo: deps.Repository}
	return Module{
		Handler: httpadapter.Handler{
			Governance: governance,
			Ledger:     ledger,
			Logger:     deps.Logger,
		},
		Governance: governance,
		Ledger:     ledger,
		Router:     router,
		Proxy:      upgrades,
		Journals:   map[string]*dispatch.Journal{},
	}
}

// Seed mounts a journal for every genesis subsystem and initializes the
// engine. A store that was already initialized is left untouched.
func (m *Module) Seed(ctx context.Context, g genesis.Genesis) error {
	journals, err := g.MountJournals(m.Router)
	if err != nil {
		return err
	}
	for name, journal := range journals {
		m.Journals[name] = journal
	}
	err = m.Governance.Initialize(ctx, g.InitializeCommand())
	if errors.Is(err, domainerrors.ErrAlreadyInitialized) {
		return nil
	}
	return err
}

// TimeoutKeeper returns a keeper poking this module's engine.
func (m Module) TimeoutKeeper(clock ports.Clock, batchSize int, logger *slog.Logger) workers.TimeoutKeeper {
	return workers.TimeoutKeeper{
		Transactions: m.Governance.Repo,
		Actions:      m.Governance.Repo,
		Engine:       m.Governance,
		Clock:        clock,
		BatchSize:    batchSize,
		Logger:       logger,
	}
}

func NewInMemoryModule(self entities.Address, logger *slog.Logger) Module {
	store := memory.NewStore()
	module := NewModule(Dependencies{
		Repository:     store,
		Outbox:         store,
		Idempotency:    store,
		Clock:          store,
		IDGen:          store,
		Self:           self,
		IdempotencyTTL: 24 * time.Hour,
		Logger:         logger,
	})
	module.Store = store
	return module
}
