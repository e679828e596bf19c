package bootstrap

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeAddr(t *testing.T) {
	assert.Equal(t, ":8080", normalizeAddr(""))
	assert.Equal(t, ":9000", normalizeAddr("9000"))
	assert.Equal(t, ":9000", normalizeAddr(" :9000 "))
}

func TestBuildAPIWithoutDatabase(t *testing.T) {
	t.Setenv("POSTGRES_DSN", "")
	t.Setenv("HTTP_PORT", "0")

	app, err := BuildAPI()
	require.NoError(t, err)
	assert.Nil(t, app.postgres)
	assert.NoError(t, app.Close())
}

func TestBuildAPIRejectsMissingGenesis(t *testing.T) {
	t.Setenv("POSTGRES_DSN", "")
	t.Setenv("GENESIS_PATH", t.TempDir()+"/missing.yaml")

	_, err := BuildAPI()
	require.ErrorContains(t, err, "open genesis")
}

func TestWorkerStopsOnCancel(t *testing.T) {
	t.Setenv("POSTGRES_DSN", "")
	t.Setenv("WORKER_POLL_INTERVAL", "10ms")

	app, err := BuildWorker()
	require.NoError(t, err)
	defer app.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop")
	}
}
