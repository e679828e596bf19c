package httpadapter

import (
	"context"
	"log/slog"
	"math/big"
	"strings"

	application "consortium/contexts/governance/governance-engine/application"
	"consortium/contexts/governance/governance-engine/application/commands"
	"consortium/contexts/governance/governance-engine/application/queries"
	"consortium/contexts/governance/governance-engine/domain/entities"
	domainerrors "consortium/contexts/governance/governance-engine/domain/errors"
	httptransport "consortium/contexts/governance/governance-engine/transport/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Handler adapts the governance entry points to transport DTOs. Callers are
// always external principals; self-authorized operations are reachable only
// through voting.
type Handler struct {
	Governance *commands.Governance
	Ledger     queries.LedgerUseCase
	Logger     *slog.Logger
}

// SubmitTransactionHandler godoc
// @Summary Submit a governance transaction
// @Description Appends a batch of registered actions and casts the caller's first vote.
// @Tags governance
// @Accept json
// @Produce json
// @Param X-Caller-Address header string true "Member address"
// @Param Idempotency-Key header string false "Replay-safe submission key"
// @Param request body httptransport.SubmitTransactionRequest true "Batch"
// @Success 201 {object} httptransport.SubmitTransactionResponse
// @Failure 401 {object} httptransport.ErrorResponse
// @Failure 403 {object} httptransport.ErrorResponse
// @Failure 409 {object} httptransport.ErrorResponse
// @Failure 422 {object} httptransport.ErrorResponse
// @Failure 502 {object} httptransport.ErrorResponse
// @Router /v1/governance/transactions [post]
func (h Handler) SubmitTransactionHandler(
	ctx context.Context,
	caller entities.Address,
	idempotencyKey string,
	req httptransport.SubmitTransactionRequest,
) (httptransport.SubmitTransactionResponse, error) {
	keys := make([]entities.ActionKey, 0, len(req.Actions))
	for _, raw := range req.Actions {
		key, err := ParseActionKey(raw)
		if err != nil {
			return httptransport.SubmitTransactionResponse{}, err
		}
		keys = append(keys, key)
	}
	var values []*big.Int
	if req.Values != nil {
		values = make([]*big.Int, 0, len(req.Values))
		for _, value := range req.Values {
			values = append(values, value.ToInt())
		}
	}
	result, err := h.Governance.SubmitTransaction(ctx, commands.External(caller), commands.SubmitTransactionCommand{
		Actions:        keys,
		Values:         values,
		Payloads:       toByteSlices(req.Payloads),
		AuditData:      toByteSlices(req.AuditData),
		Confirm:        req.Confirm,
		IdempotencyKey: strings.TrimSpace(idempotencyKey),
	})
	if err != nil {
		return httptransport.SubmitTransactionResponse{}, err
	}
	resp := httptransport.SubmitTransactionResponse{
		EvaluationResponse: mapEvaluation(result.Evaluation),
		Replayed:           result.Replayed,
	}
	resp.TransactionID = result.TransactionID
	return resp, nil
}

// ConfirmTransactionHandler godoc
// @Summary Confirm a transaction
// @Tags governance
// @Produce json
// @Param X-Caller-Address header string true "Member address"
// @Param id path int true "Transaction id"
// @Success 200 {object} httptransport.EvaluationResponse
// @Failure 403 {object} httptransport.ErrorResponse
// @Failure 404 {object} httptransport.ErrorResponse
// @Failure 409 {object} httptransport.ErrorResponse
// @Failure 502 {object} httptransport.ErrorResponse
// @Router /v1/governance/transactions/{id}/confirm [post]
func (h Handler) ConfirmTransactionHandler(ctx context.Context, caller entities.Address, id uint64) (httptransport.EvaluationResponse, error) {
	evaluation, err := h.Governance.ConfirmTransaction(ctx, commands.External(caller), id)
	if err != nil {
		return httptransport.EvaluationResponse{}, err
	}
	return mapEvaluation(evaluation), nil
}

// RevokeTransactionHandler godoc
// @Summary Revoke a transaction
// @Tags governance
// @Produce json
// @Param X-Caller-Address header string true "Member address"
// @Param id path int true "Transaction id"
// @Success 200 {object} httptransport.EvaluationResponse
// @Router /v1/governance/transactions/{id}/revoke [post]
func (h Handler) RevokeTransactionHandler(ctx context.Context, caller entities.Address, id uint64) (httptransport.EvaluationResponse, error) {
	evaluation, err := h.Governance.RevokeTransaction(ctx, commands.External(caller), id)
	if err != nil {
		return httptransport.EvaluationResponse{}, err
	}
	return mapEvaluation(evaluation), nil
}

// EvaluateOutcomeHandler godoc
// @Summary Evaluate a transaction outcome
// @Description Anyone may evaluate; terminal transactions are returned unchanged.
// @Tags governance
// @Produce json
// @Param id path int true "Transaction id"
// @Success 200 {object} httptransport.EvaluationResponse
// @Router /v1/governance/transactions/{id}/evaluate [post]
func (h Handler) EvaluateOutcomeHandler(ctx context.Context, id uint64) (httptransport.EvaluationResponse, error) {
	evaluation, err := h.Governance.EvaluateOutcome(ctx, id)
	if err != nil {
		return httptransport.EvaluationResponse{}, err
	}
	return mapEvaluation(evaluation), nil
}

func (h Handler) LeaveHandler(ctx context.Context, caller entities.Address) error {
	return h.Governance.Leave(ctx, commands.External(caller))
}

func (h Handler) SubmitApplicationHandler(ctx context.Context, caller entities.Address) error {
	return h.Governance.SubmitApplication(ctx, commands.External(caller))
}

func (h Handler) DepositHandler(
	ctx context.Context,
	caller entities.Address,
	req httptransport.DepositRequest,
) (httptransport.BalanceResponse, error) {
	if req.Value == nil {
		return httptransport.BalanceResponse{}, domainerrors.ErrInvalidInput
	}
	balance, err := h.Governance.Deposit(ctx, caller, req.Value.ToInt())
	if err != nil {
		return httptransport.BalanceResponse{}, err
	}
	application.ResolveLogger(h.Logger).Debug("deposit accepted",
		"event", "governance_http_deposit_accepted",
		"module", "governance/governance-engine",
		"layer", "adapter",
		"from", caller.Hex(),
	)
	return httptransport.BalanceResponse{Balance: (*hexutil.Big)(balance)}, nil
}

func (h Handler) BalanceHandler(ctx context.Context) (httptransport.BalanceResponse, error) {
	balance, err := h.Ledger.Balance(ctx)
	if err != nil {
		return httptransport.BalanceResponse{}, err
	}
	return httptransport.BalanceResponse{Balance: (*hexutil.Big)(balance)}, nil
}

// MembersHandler godoc
// @Summary List members
// @Tags governance
// @Produce json
// @Success 200 {object} httptransport.AddressListResponse
// @Router /v1/governance/members [get]
func (h Handler) MembersHandler(ctx context.Context) (httptransport.AddressListResponse, error) {
	return addressList(h.Ledger.Members(ctx))
}

func (h Handler) InviteesHandler(ctx context.Context) (httptransport.AddressListResponse, error) {
	return addressList(h.Ledger.Invitees(ctx))
}

func (h Handler) ApplicantsHandler(ctx context.Context) (httptransport.AddressListResponse, error) {
	return addressList(h.Ledger.Applicants(ctx))
}

func (h Handler) MembershipHandler(ctx context.Context, addr entities.Address) (httptransport.MembershipResponse, error) {
	resp := httptransport.MembershipResponse{Address: addr}
	var err error
	if resp.Member, err = h.Ledger.IsMember(ctx, addr); err != nil {
		return httptransport.MembershipResponse{}, err
	}
	if resp.Invitee, err = h.Ledger.IsInvitee(ctx, addr); err != nil {
		return httptransport.MembershipResponse{}, err
	}
	if resp.Applicant, err = h.Ledger.IsApplicant(ctx, addr); err != nil {
		return httptransport.MembershipResponse{}, err
	}
	return resp, nil
}

func (h Handler) ActionHandler(ctx context.Context, rawKey string) (httptransport.ActionResponse, error) {
	key, err := ParseActionKey(rawKey)
	if err != nil {
		return httptransport.ActionResponse{}, err
	}
	action, err := h.Ledger.Action(ctx, key)
	if err != nil {
		return httptransport.ActionResponse{}, err
	}
	return mapAction(action), nil
}

func (h Handler) ActionsHandler(ctx context.Context) (httptransport.ActionListResponse, error) {
	actions, err := h.Ledger.Actions(ctx)
	if err != nil {
		return httptransport.ActionListResponse{}, err
	}
	items := make([]httptransport.ActionResponse, 0, len(actions))
	for _, action := range actions {
		items = append(items, mapAction(action))
	}
	return httptransport.ActionListResponse{Items: items}, nil
}

func (h Handler) TransactionCountHandler(ctx context.Context) (httptransport.TransactionCountResponse, error) {
	count, err := h.Ledger.TransactionCount(ctx)
	if err != nil {
		return httptransport.TransactionCountResponse{}, err
	}
	return httptransport.TransactionCountResponse{Count: count}, nil
}

func (h Handler) TransactionHandler(ctx context.Context, id uint64) (httptransport.TransactionResponse, error) {
	view, err := h.Ledger.Transaction(ctx, id)
	if err != nil {
		return httptransport.TransactionResponse{}, err
	}
	return mapTransaction(view), nil
}

// TransactionsHandler godoc
// @Summary List transactions in [from, to)
// @Tags governance
// @Produce json
// @Param from query int true "First id"
// @Param to query int true "Id after the last"
// @Success 200 {object} httptransport.TransactionListResponse
// @Failure 422 {object} httptransport.ErrorResponse
// @Router /v1/governance/transactions [get]
func (h Handler) TransactionsHandler(ctx context.Context, from uint64, to uint64) (httptransport.TransactionListResponse, error) {
	views, err := h.Ledger.Transactions(ctx, from, to)
	if err != nil {
		return httptransport.TransactionListResponse{}, err
	}
	items := make([]httptransport.TransactionResponse, 0, len(views))
	for _, view := range views {
		items = append(items, mapTransaction(view))
	}
	return httptransport.TransactionListResponse{From: from, To: to, Items: items}, nil
}

func (h Handler) ConfirmationsHandler(ctx context.Context, from uint64, to uint64) (httptransport.VoteRangeResponse, error) {
	items, err := h.Ledger.Confirmations(ctx, from, to)
	if err != nil {
		return httptransport.VoteRangeResponse{}, err
	}
	return httptransport.VoteRangeResponse{From: from, To: to, Items: nonNilVotes(items)}, nil
}

func (h Handler) RevocationsHandler(ctx context.Context, from uint64, to uint64) (httptransport.VoteRangeResponse, error) {
	items, err := h.Ledger.Revocations(ctx, from, to)
	if err != nil {
		return httptransport.VoteRangeResponse{}, err
	}
	return httptransport.VoteRangeResponse{From: from, To: to, Items: nonNilVotes(items)}, nil
}

func (h Handler) StatusesHandler(ctx context.Context, from uint64, to uint64) (httptransport.StatusRangeResponse, error) {
	statuses, err := h.Ledger.Statuses(ctx, from, to)
	if err != nil {
		return httptransport.StatusRangeResponse{}, err
	}
	items := make([]string, 0, len(statuses))
	for _, status := range statuses {
		items = append(items, string(status))
	}
	return httptransport.StatusRangeResponse{From: from, To: to, Items: items}, nil
}

func (h Handler) TimestampsHandler(ctx context.Context, from uint64, to uint64) (httptransport.TimestampRangeResponse, error) {
	items, err := h.Ledger.Timestamps(ctx, from, to)
	if err != nil {
		return httptransport.TimestampRangeResponse{}, err
	}
	return httptransport.TimestampRangeResponse{From: from, To: to, Items: items}, nil
}

// ParseActionKey accepts a 0x-prefixed 32-byte key or an action name.
func ParseActionKey(raw string) (entities.ActionKey, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return entities.ActionKey{}, domainerrors.ErrInvalidInput
	}
	if strings.HasPrefix(raw, "0x") || strings.HasPrefix(raw, "0X") {
		decoded, err := hexutil.Decode(raw)
		if err != nil || len(decoded) != common.HashLength {
			return entities.ActionKey{}, domainerrors.ErrInvalidInput
		}
		return common.BytesToHash(decoded), nil
	}
	return entities.ActionKeyOf(raw), nil
}

func mapEvaluation(evaluation commands.Evaluation) httptransport.EvaluationResponse {
	return httptransport.EvaluationResponse{
		TransactionID: evaluation.TransactionID,
		Status:        string(evaluation.Status),
		Resolved:      evaluation.Resolved,
		Dispatched:    evaluation.Dispatched,
		ReturnData:    evaluation.ReturnData,
	}
}

func mapAction(action entities.Action) httptransport.ActionResponse {
	return httptransport.ActionResponse{
		Key:                action.Key,
		Destination:        action.Destination,
		RequiredPercentage: action.RequiredPercentage,
		TimeoutSeconds:     uint64(action.TimeOut.Seconds()),
		SuccessFunction:    action.SuccessFunction[:],
		RevokeFunction:     action.RevokeFunction[:],
		TimeOutFunction:    action.TimeOutFunction[:],
		Allowed:            action.Allowed,
	}
}

func mapTransaction(view queries.TransactionView) httptransport.TransactionResponse {
	items := make([]httptransport.TransactionItemResponse, 0, len(view.Transaction.Items))
	for _, item := range view.Transaction.Items {
		value := new(big.Int)
		if item.Value != nil {
			value.Set(item.Value)
		}
		items = append(items, httptransport.TransactionItemResponse{
			ActionKey: item.ActionKey,
			Value:     (*hexutil.Big)(value),
			Payload:   item.Payload,
			AuditData: item.AuditData,
		})
	}
	return httptransport.TransactionResponse{
		ID:            view.Transaction.ID,
		Status:        string(view.Transaction.Status),
		SubmittedAt:   view.Transaction.SubmittedAt,
		Items:         items,
		Confirmations: nonNil(view.Confirmations),
		Revocations:   nonNil(view.Revocations),
	}
}

func addressList(addrs []entities.Address, err error) (httptransport.AddressListResponse, error) {
	if err != nil {
		return httptransport.AddressListResponse{}, err
	}
	return httptransport.AddressListResponse{Items: nonNil(addrs)}, nil
}

func nonNil(addrs []entities.Address) []common.Address {
	if addrs == nil {
		return []common.Address{}
	}
	return addrs
}

func nonNilVotes(items [][]entities.Address) [][]common.Address {
	out := make([][]common.Address, 0, len(items))
	for _, voters := range items {
		out = append(out, nonNil(voters))
	}
	return out
}

func toByteSlices(in []hexutil.Bytes) [][]byte {
	if in == nil {
		return nil
	}
	out := make([][]byte, 0, len(in))
	for _, b := range in {
		out = append(out, []byte(b))
	}
	return out
}
