package monitor

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMonitor_Counters(t *testing.T) {
	m := NewMonitor("spy")
	m.IncMessagesReceived("submit_vote")
	m.IncMessagesReceived("submit_vote")
	m.IncMessagesReceived("ping")
	m.IncGamesEnded("spy")
	m.SetActiveRooms(3)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.metrics.MessagesReceived.WithLabelValues("submit_vote")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.metrics.GamesEnded.WithLabelValues("spy")))
	assert.Equal(t, float64(3), testutil.ToFloat64(m.metrics.ActiveRooms))
	assert.Equal(t, int64(3), m.RequestCount())
}

func TestMonitor_IndependentRegistries(t *testing.T) {
	a := NewMonitor("spy")
	b := NewMonitor("spy")
	a.IncGamesStarted()

	assert.Equal(t, float64(1), testutil.ToFloat64(a.metrics.GamesStarted))
	assert.Equal(t, float64(0), testutil.ToFloat64(b.metrics.GamesStarted))
}

func TestMonitor_Handler(t *testing.T) {
	m := NewMonitor("spy")
	m.IncReconnects()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "spy_reconnects_total 1"))
}
