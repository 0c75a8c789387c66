package notify_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/metrics-agent/config"
	"github.com/metrics-agent/internal/notify"
)

func TestWebhookSendsJSONPayload(t *testing.T) {
	var (
		gotBody        []byte
		gotMethod      string
		gotContentType string
		gotHeader      string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		gotMethod = r.Method
		gotContentType = r.Header.Get("Content-Type")
		gotHeader = r.Header.Get("X-Token")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ch := notify.NewWebhookChannel(config.WebhookChannelConfig{
		Enable:  true,
		URL:     srv.URL,
		Method:  "POST",
		Headers: map[string]string{"X-Token": "secret"},
		Timeout: 5 * time.Second,
	})

	event := notify.Event{
		Alert:  notify.AlertInfo{Name: "high_cpu_usage", Severity: "warning", Status: notify.StatusFiring, Timestamp: time.Now()},
		Metric: notify.MetricInfo{Name: "cpu_usage_percent", Value: 85, Threshold: 80, Operator: ">"},
		Labels: map[string]string{"core": "cpu0"},
		Annotations: notify.AnnotationInfo{
			Summary:     "High CPU usage",
			Description: "CPU usage is 85% (threshold: 80%)",
		},
		Channels: []string{"webhook"},
	}
	require.NoError(t, ch.Send(event))

	assert.Equal(t, "POST", gotMethod)
	assert.Equal(t, "application/json", gotContentType)
	assert.Equal(t, "secret", gotHeader)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(gotBody, &payload))
	alert := payload["alert"].(map[string]any)
	metric := payload["metric"].(map[string]any)
	assert.Equal(t, "high_cpu_usage", alert["name"])
	assert.Equal(t, "firing", alert["status"])
	assert.Equal(t, 85.0, metric["value"])
	// 路由字段不进载荷
	assert.NotContains(t, payload, "channels")
}

func TestWebhookNon2xxIsDeliveryError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	ch := notify.NewWebhookChannel(config.WebhookChannelConfig{URL: srv.URL, Method: "POST", Timeout: time.Second})
	err := ch.Send(firingEvent("high_cpu", "webhook"))
	require.Error(t, err)

	var dErr *notify.DeliveryError
	require.ErrorAs(t, err, &dErr)
	assert.Equal(t, "webhook", dErr.Channel)
}

func TestWebhookUnreachableTarget(t *testing.T) {
	ch := notify.NewWebhookChannel(config.WebhookChannelConfig{
		URL:     "http://127.0.0.1:1/unreachable",
		Method:  "POST",
		Timeout: 200 * time.Millisecond,
	})
	require.Error(t, ch.Send(firingEvent("high_cpu", "webhook")))
}
