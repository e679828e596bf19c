package http

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

type ErrorResponse struct {
	Code       string        `json:"code"`
	Message    string        `json:"message"`
	ReturnData hexutil.Bytes `json:"return_data,omitempty"`
}

// SubmitTransactionRequest carries a batch as parallel arrays. Each action is
// either a registered action name or its 0x-prefixed 32-byte key.
type SubmitTransactionRequest struct {
	Actions   []string        `json:"actions"`
	Values    []*hexutil.Big  `json:"values,omitempty"`
	Payloads  []hexutil.Bytes `json:"payloads"`
	AuditData []hexutil.Bytes `json:"audit_data"`
	Confirm   bool            `json:"confirm"`
}

type EvaluationResponse struct {
	TransactionID uint64        `json:"transaction_id"`
	Status        string        `json:"status"`
	Resolved      bool          `json:"resolved"`
	Dispatched    int           `json:"dispatched"`
	ReturnData    hexutil.Bytes `json:"return_data,omitempty"`
}

type SubmitTransactionResponse struct {
	EvaluationResponse
	Replayed bool `json:"replayed"`
}

type DepositRequest struct {
	Value *hexutil.Big `json:"value"`
}

type BalanceResponse struct {
	Balance *hexutil.Big `json:"balance"`
}

type AddressListResponse struct {
	Items []common.Address `json:"items"`
}

type MembershipResponse struct {
	Address   common.Address `json:"address"`
	Member    bool           `json:"member"`
	Invitee   bool           `json:"invitee"`
	Applicant bool           `json:"applicant"`
}

type ActionResponse struct {
	Key                common.Hash    `json:"key"`
	Destination        common.Address `json:"destination"`
	RequiredPercentage uint8          `json:"required_percentage"`
	TimeoutSeconds     uint64         `json:"timeout_seconds"`
	SuccessFunction    hexutil.Bytes  `json:"success_function"`
	RevokeFunction     hexutil.Bytes  `json:"revoke_function"`
	TimeOutFunction    hexutil.Bytes  `json:"timeout_function"`
	Allowed            bool           `json:"allowed"`
}

type ActionListResponse struct {
	Items []ActionResponse `json:"items"`
}

type TransactionItemResponse struct {
	ActionKey common.Hash   `json:"action_key"`
	Value     *hexutil.Big  `json:"value"`
	Payload   hexutil.Bytes `json:"payload"`
	AuditData hexutil.Bytes `json:"audit_data"`
}

type TransactionResponse struct {
	ID            uint64                    `json:"id"`
	Status        string                    `json:"status"`
	SubmittedAt   time.Time                 `json:"submitted_at"`
	Items         []TransactionItemResponse `json:"items"`
	Confirmations []common.Address          `json:"confirmations"`
	Revocations   []common.Address          `json:"revocations"`
}

type TransactionListResponse struct {
	From  uint64                `json:"from"`
	To    uint64                `json:"to"`
	Items []TransactionResponse `json:"items"`
}

type TransactionCountResponse struct {
	Count uint64 `json:"count"`
}

type VoteRangeResponse struct {
	From  uint64             `json:"from"`
	To    uint64             `json:"to"`
	Items [][]common.Address `json:"items"`
}

type StatusRangeResponse struct {
	From  uint64   `json:"from"`
	To    uint64   `json:"to"`
	Items []string `json:"items"`
}

type TimestampRangeResponse struct {
	From  uint64      `json:"from"`
	To    uint64      `json:"to"`
	Items []time.Time `json:"items"`
}
