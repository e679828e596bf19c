package queries

import (
	"context"
	"math/big"
	"time"

	"consortium/contexts/governance/governance-engine/domain/entities"
	domainerrors "consortium/contexts/governance/governance-engine/domain/errors"
	"consortium/contexts/governance/governance-engine/ports"
)

// LedgerUseCase serves the read-only accessors. Ranges are half-open
// [from, to) over transaction ids.
type LedgerUseCase struct {
	Repo ports.Repository
}

func (uc LedgerUseCase) Members(ctx context.Context) ([]entities.Address, error) {
	return uc.Repo.SetMembers(ctx, entities.MembersSet())
}

func (uc LedgerUseCase) Invitees(ctx context.Context) ([]entities.Address, error) {
	return uc.Repo.SetMembers(ctx, entities.InviteesSet())
}

func (uc LedgerUseCase) Applicants(ctx context.Context) ([]entities.Address, error) {
	return uc.Repo.SetMembers(ctx, entities.ApplicantsSet())
}

func (uc LedgerUseCase) IsMember(ctx context.Context, addr entities.Address) (bool, error) {
	return uc.Repo.SetContains(ctx, entities.MembersSet(), addr)
}

func (uc LedgerUseCase) IsInvitee(ctx context.Context, addr entities.Address) (bool, error) {
	return uc.Repo.SetContains(ctx, entities.InviteesSet(), addr)
}

func (uc LedgerUseCase) IsApplicant(ctx context.Context, addr entities.Address) (bool, error) {
	return uc.Repo.SetContains(ctx, entities.ApplicantsSet(), addr)
}

// Action returns the stored record, including disabled ones.
func (uc LedgerUseCase) Action(ctx context.Context, key entities.ActionKey) (entities.Action, error) {
	action, found, err := uc.Repo.GetAction(ctx, key)
	if err != nil {
		return entities.Action{}, err
	}
	if !found {
		return entities.Action{}, domainerrors.ErrActionNotFound
	}
	return action, nil
}

func (uc LedgerUseCase) Actions(ctx context.Context) ([]entities.Action, error) {
	return uc.Repo.ListActions(ctx)
}

func (uc LedgerUseCase) Balance(ctx context.Context) (*big.Int, error) {
	return uc.Repo.Balance(ctx)
}

func (uc LedgerUseCase) TransactionCount(ctx context.Context) (uint64, error) {
	return uc.Repo.CountTransactions(ctx)
}

func (uc LedgerUseCase) Transaction(ctx context.Context, id uint64) (TransactionView, error) {
	tx, err := uc.Repo.GetTransaction(ctx, id)
	if err != nil {
		return TransactionView{}, err
	}
	return uc.view(ctx, tx)
}

// TransactionView is a transaction with its current vote sets.
type TransactionView struct {
	Transaction   entities.Transaction
	Confirmations []entities.Address
	Revocations   []entities.Address
}

func (uc LedgerUseCase) Transactions(ctx context.Context, from uint64, to uint64) ([]TransactionView, error) {
	txs, err := uc.slice(ctx, from, to)
	if err != nil {
		return nil, err
	}
	views := make([]TransactionView, 0, len(txs))
	for _, tx := range txs {
		view, err := uc.view(ctx, tx)
		if err != nil {
			return nil, err
		}
		views = append(views, view)
	}
	return views, nil
}

func (uc LedgerUseCase) Confirmations(ctx context.Context, from uint64, to uint64) ([][]entities.Address, error) {
	return uc.voteRange(ctx, from, to, entities.ConfirmationsOf)
}

func (uc LedgerUseCase) Revocations(ctx context.Context, from uint64, to uint64) ([][]entities.Address, error) {
	return uc.voteRange(ctx, from, to, entities.RevocationsOf)
}

func (uc LedgerUseCase) Statuses(ctx context.Context, from uint64, to uint64) ([]entities.TransactionStatus, error) {
	txs, err := uc.slice(ctx, from, to)
	if err != nil {
		return nil, err
	}
	out := make([]entities.TransactionStatus, 0, len(txs))
	for _, tx := range txs {
		out = append(out, tx.Status)
	}
	return out, nil
}

func (uc LedgerUseCase) Timestamps(ctx context.Context, from uint64, to uint64) ([]time.Time, error) {
	txs, err := uc.slice(ctx, from, to)
	if err != nil {
		return nil, err
	}
	out := make([]time.Time, 0, len(txs))
	for _, tx := range txs {
		out = append(out, tx.SubmittedAt)
	}
	return out, nil
}

func (uc LedgerUseCase) voteRange(
	ctx context.Context,
	from uint64,
	to uint64,
	ref func(uint64) entities.SetRef,
) ([][]entities.Address, error) {
	if err := uc.checkRange(ctx, from, to); err != nil {
		return nil, err
	}
	out := make([][]entities.Address, 0, to-from)
	for id := from; id < to; id++ {
		voters, err := uc.Repo.SetMembers(ctx, ref(id))
		if err != nil {
			return nil, err
		}
		out = append(out, voters)
	}
	return out, nil
}

func (uc LedgerUseCase) slice(ctx context.Context, from uint64, to uint64) ([]entities.Transaction, error) {
	if err := uc.checkRange(ctx, from, to); err != nil {
		return nil, err
	}
	return uc.Repo.ListTransactions(ctx, from, to)
}

func (uc LedgerUseCase) checkRange(ctx context.Context, from uint64, to uint64) error {
	count, err := uc.Repo.CountTransactions(ctx)
	if err != nil {
		return err
	}
	if to < from || to > count {
		return domainerrors.ErrInvalidRange
	}
	return nil
}

func (uc LedgerUseCase) view(ctx context.Context, tx entities.Transaction) (TransactionView, error) {
	confirmations, err := uc.Repo.SetMembers(ctx, entities.ConfirmationsOf(tx.ID))
	if err != nil {
		return TransactionView{}, err
	}
	revocations, err := uc.Repo.SetMembers(ctx, entities.RevocationsOf(tx.ID))
	if err != nil {
		return TransactionView{}, err
	}
	return TransactionView{
		Transaction:   tx,
		Confirmations: confirmations,
		Revocations:   revocations,
	}, nil
}
