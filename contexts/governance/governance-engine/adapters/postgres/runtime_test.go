package postgresadapter

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSystemClockKeepsMicroseconds(t *testing.T) {
	now := SystemClock{}.Now()
	assert.Zero(t, now.Nanosecond()%1000)
	assert.Equal(t, "UTC", now.Location().String())
}

func TestUUIDGeneratorIssuesV7(t *testing.T) {
	raw, err := UUIDGenerator{}.NewID(context.Background())
	require.NoError(t, err)
	id, err := uuid.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), id.Version())
}
