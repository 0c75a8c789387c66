package store_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/metrics-agent/internal/store"
)

func openStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "alerts.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func triggeredEvent(alertID, rule string, at time.Time) store.Event {
	notified := at
	return store.Event{
		AlertID:           alertID,
		RuleName:          rule,
		State:             store.StateTriggered,
		Severity:          "warning",
		MetricName:        "cpu_usage_percent",
		MetricValue:       85,
		Threshold:         80,
		Labels:            map[string]string{"core": "cpu0"},
		TriggeredAt:       at,
		LastNotifiedAt:    &notified,
		NotificationCount: 1,
	}
}

func TestAppendAndQueryRoundTrip(t *testing.T) {
	s := openStore(t)
	at := time.Now().Truncate(time.Second)
	require.NoError(t, s.Append(triggeredEvent("high_cpu", "high_cpu", at)))

	events, err := s.Query(store.Filter{})
	require.NoError(t, err)
	require.Len(t, events, 1)

	got := events[0]
	assert.Equal(t, "high_cpu", got.AlertID)
	assert.Equal(t, store.StateTriggered, got.State)
	assert.Equal(t, 85.0, got.MetricValue)
	assert.Equal(t, map[string]string{"core": "cpu0"}, got.Labels)
	require.NotNil(t, got.LastNotifiedAt)
	assert.Nil(t, got.ResolvedAt)
	assert.Equal(t, 1, got.NotificationCount)
}

func TestQueryFiltersAndOrdering(t *testing.T) {
	s := openStore(t)
	base := time.Now().Add(-time.Hour).Truncate(time.Second)
	require.NoError(t, s.Append(triggeredEvent("a", "rule_a", base)))
	require.NoError(t, s.Append(triggeredEvent("b", "rule_b", base.Add(time.Minute))))

	resolved := triggeredEvent("a", "rule_a", base.Add(2*time.Minute))
	resolvedAt := base.Add(10 * time.Minute)
	resolved.State = store.StateResolved
	resolved.ResolvedAt = &resolvedAt
	require.NoError(t, s.Append(resolved))

	// 最近触发在前
	all, err := s.Query(store.Filter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, store.StateResolved, all[0].State)

	byRule, err := s.Query(store.Filter{RuleName: "rule_b"})
	require.NoError(t, err)
	require.Len(t, byRule, 1)
	assert.Equal(t, "b", byRule[0].AlertID)

	byState, err := s.Query(store.Filter{State: store.StateResolved})
	require.NoError(t, err)
	require.Len(t, byState, 1)
	require.NotNil(t, byState[0].ResolvedAt)

	limited, err := s.Query(store.Filter{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, limited, 2)

	since, err := s.Query(store.Filter{Since: base.Add(90 * time.Second)})
	require.NoError(t, err)
	assert.Len(t, since, 1)
}

// 清理只删保留期外的已解决记录，未解决的不动
func TestCleanupRemovesOnlyExpiredResolved(t *testing.T) {
	s := openStore(t)
	old := time.Now().AddDate(0, 0, -60)

	expired := triggeredEvent("old_resolved", "rule_a", old)
	expired.State = store.StateResolved
	require.NoError(t, s.Append(expired))

	stillTriggered := triggeredEvent("old_triggered", "rule_b", old)
	require.NoError(t, s.Append(stillTriggered))

	recent := triggeredEvent("recent", "rule_c", time.Now())
	recent.State = store.StateResolved
	require.NoError(t, s.Append(recent))

	deleted, err := s.Cleanup(30)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	remaining, err := s.Query(store.Filter{})
	require.NoError(t, err)
	require.Len(t, remaining, 2)
	for _, e := range remaining {
		assert.NotEqual(t, "old_resolved", e.AlertID)
	}
}
