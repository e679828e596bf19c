package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"consortium/contexts/governance/governance-engine/domain/entities"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGovernanceCounters(t *testing.T) {
	m := NewGovernance()
	m.ObserveOutcome(entities.StatusExecuted)
	m.ObserveOutcome(entities.StatusExecuted)
	m.ObserveOutcome(entities.StatusTimedOut)
	m.ObserveVote("confirm")
	m.ObserveDispatchFailure("unknown_selector")
	m.ObserveOutboxPublished(3)
	m.ObserveOutboxPublished(0)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.outcomes.WithLabelValues("executed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.outcomes.WithLabelValues("timed_out")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.votes.WithLabelValues("confirm")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.dispatchFailures.WithLabelValues("unknown_selector")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.outboxPublished))
}

func TestHandlerExposesRegistry(t *testing.T) {
	m := NewGovernance()
	m.ObserveVote("revoke")

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `consortium_governance_votes_total{kind="revoke"} 1`)
}
