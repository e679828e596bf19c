package v1

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validEnvelope() Envelope {
	return Envelope{
		EventID:          "evt-1",
		EventType:        "governance.member.added",
		OccurredAt:       time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		SourceService:    "governance-engine",
		SchemaVersion:    SchemaVersion,
		PartitionKeyPath: "member",
		PartitionKey:     "0x00000000000000000000000000000000000000a1",
		Data:             json.RawMessage(`{"member":"0x00000000000000000000000000000000000000a1"}`),
	}
}

func TestEnvelopeValidate(t *testing.T) {
	require.NoError(t, validEnvelope().Validate())

	cases := map[string]func(*Envelope){
		"event_id":       func(e *Envelope) { e.EventID = " " },
		"event_type":     func(e *Envelope) { e.EventType = "member_added" },
		"occurred_at":    func(e *Envelope) { e.OccurredAt = time.Time{} },
		"schema_version": func(e *Envelope) { e.SchemaVersion = SchemaVersion + 1 },
		"partition_key":  func(e *Envelope) { e.PartitionKey = "" },
		"data":           func(e *Envelope) { e.Data = json.RawMessage(`{`) },
	}
	for field, mutate := range cases {
		t.Run(field, func(t *testing.T) {
			e := validEnvelope()
			mutate(&e)
			assert.ErrorContains(t, e.Validate(), field)
		})
	}
}
