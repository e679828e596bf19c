package v1

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// SchemaVersion of the envelope and of every governance payload carried in
// Data. Consumers drop events with a newer version than they understand.
const SchemaVersion = 1

// Envelope is the versioned event contract shared by the governance engine,
// the outbox relay and bus consumers. Fields are append-only.
type Envelope struct {
	EventID          string          `json:"event_id"`
	EventType        string          `json:"event_type"`
	OccurredAt       time.Time       `json:"occurred_at"`
	SourceService    string          `json:"source_service"`
	TraceID          string          `json:"trace_id"`
	SchemaVersion    int             `json:"schema_version"`
	PartitionKeyPath string          `json:"partition_key_path"`
	PartitionKey     string          `json:"partition_key"`
	Data             json.RawMessage `json:"data"`
}

// Validate reports the first missing field. Event types are dotted
// lower-case names such as "governance.transaction.executed".
func (e Envelope) Validate() error {
	switch {
	case strings.TrimSpace(e.EventID) == "":
		return errors.New("envelope: event_id is required")
	case strings.Count(e.EventType, ".") < 2:
		return fmt.Errorf("envelope: malformed event_type %q", e.EventType)
	case e.OccurredAt.IsZero():
		return errors.New("envelope: occurred_at is required")
	case e.SchemaVersion < 1 || e.SchemaVersion > SchemaVersion:
		return fmt.Errorf("envelope: unsupported schema_version %d", e.SchemaVersion)
	case e.PartitionKey == "":
		return errors.New("envelope: partition_key is required")
	case len(e.Data) > 0 && !json.Valid(e.Data):
		return errors.New("envelope: data is not valid json")
	}
	return nil
}
