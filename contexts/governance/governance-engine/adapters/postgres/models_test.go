package postgresadapter

import (
	"math/big"
	"testing"
	"time"

	"consortium/contexts/governance/governance-engine/domain/entities"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransactionItemsSurviveEncoding(t *testing.T) {
	tx := entities.Transaction{
		ID:     12,
		Status: entities.StatusSubmitted,
		Items: []entities.TransactionItem{
			{
				ActionKey: entities.ActionKeyOf("addValidator"),
				Value:     big.NewInt(0),
				Payload:   common.LeftPadBytes([]byte{0xd4}, 32),
				AuditData: []byte(`{"ticket":"OPS-7"}`),
			},
			{
				ActionKey: entities.ActionKeyOf("sendEther"),
				Value:     new(big.Int).Lsh(big.NewInt(1), 100),
			},
		},
		SubmittedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}

	row, err := transactionModelFromEntity(tx)
	require.NoError(t, err)
	assert.Equal(t, int64(12), row.ID)

	decoded, err := row.toEntity()
	require.NoError(t, err)
	assert.Equal(t, tx.ID, decoded.ID)
	assert.Equal(t, tx.SubmittedAt, decoded.SubmittedAt)
	require.Len(t, decoded.Items, 2)
	assert.Equal(t, tx.Items[0].ActionKey, decoded.Items[0].ActionKey)
	assert.Equal(t, tx.Items[0].Payload, decoded.Items[0].Payload)
	assert.Equal(t, tx.Items[0].AuditData, decoded.Items[0].AuditData)
	assert.Zero(t, decoded.Items[0].Value.Sign())
	assert.Zero(t, tx.Items[1].Value.Cmp(decoded.Items[1].Value))
	assert.Empty(t, decoded.Items[1].Payload)
}

func TestItemEncodingIsDeterministic(t *testing.T) {
	items := []entities.TransactionItem{{ActionKey: entities.ActionKeyOf("a"), Value: big.NewInt(3)}}
	first, err := encodeItems(items)
	require.NoError(t, err)
	second, err := encodeItems(items)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	_, err = decodeItems([]byte{0xff})
	require.Error(t, err)
}

func TestActionModelRoundTrip(t *testing.T) {
	action := entities.Action{
		Key:                entities.ActionKeyOf("setMinGasPrice"),
		Destination:        common.HexToAddress("0x0000000000000000000000000000000000002000"),
		RequiredPercentage: 66,
		TimeOut:            36 * time.Hour,
		SuccessFunction:    entities.SelectorOf("setMinGasPrice(uint256)"),
		Allowed:            true,
	}
	row := actionModelFromEntity(action, time.Now())
	assert.Equal(t, int64(36*3600), row.TimeoutSeconds)
	assert.Equal(t, "0x00000000", row.RevokeFunction)

	decoded, err := row.toEntity()
	require.NoError(t, err)
	assert.Equal(t, action, decoded)

	row.SuccessFunction = "0x1234"
	_, err = row.toEntity()
	require.Error(t, err)
}

func TestStateBalanceParsing(t *testing.T) {
	balance, err := stateModel{}.balance()
	require.NoError(t, err)
	assert.Zero(t, balance.Sign())

	balance, err = stateModel{Balance: "1000000000000000000000"}.balance()
	require.NoError(t, err)
	assert.Equal(t, "1000000000000000000000", balance.String())

	_, err = stateModel{Balance: "1.5"}.balance()
	require.Error(t, err)
}
