package notify

import (
	"errors"
	"net/smtp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/metrics-agent/config"
)

func emailConfig() config.EmailChannelConfig {
	return config.EmailChannelConfig{
		Enable:      true,
		SMTPHost:    "smtp.example.com",
		SMTPPort:    587,
		Username:    "agent",
		Password:    "secret",
		FromAddress: "agent@example.com",
		ToAddresses: []string{"ops@example.com", "oncall@example.com"},
	}
}

func TestEmailSendBuildsMessage(t *testing.T) {
	var (
		gotAddr string
		gotFrom string
		gotTo   []string
		gotMsg  string
	)
	ch := NewEmailChannel(emailConfig())
	ch.sendMail = func(addr string, auth smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr = addr
		gotFrom = from
		gotTo = to
		gotMsg = string(msg)
		assert.NotNil(t, auth)
		return nil
	}

	event := Event{
		Alert:  AlertInfo{Name: "high_cpu_usage", Severity: "warning", Status: StatusFiring, Timestamp: time.Now()},
		Metric: MetricInfo{Name: "cpu_usage_percent", Value: 85, Threshold: 80, Operator: ">"},
		Annotations: AnnotationInfo{
			Summary:     "High CPU usage",
			Description: "CPU usage is 85% (threshold: 80%)",
		},
	}
	require.NoError(t, ch.Send(event))

	assert.Equal(t, "smtp.example.com:587", gotAddr)
	assert.Equal(t, "agent@example.com", gotFrom)
	assert.Equal(t, []string{"ops@example.com", "oncall@example.com"}, gotTo)
	assert.Contains(t, gotMsg, "Subject: [WARNING] High CPU usage")
	assert.Contains(t, gotMsg, "CPU usage is 85% (threshold: 80%)")
	assert.Contains(t, gotMsg, "cpu_usage_percent = 85")
}

func TestEmailResolvedSubject(t *testing.T) {
	var gotMsg string
	ch := NewEmailChannel(emailConfig())
	ch.sendMail = func(addr string, auth smtp.Auth, from string, to []string, msg []byte) error {
		gotMsg = string(msg)
		return nil
	}

	event := Event{
		Alert:       AlertInfo{Name: "high_cpu_usage", Severity: "warning", Status: StatusResolved},
		Annotations: AnnotationInfo{Summary: "High CPU usage"},
	}
	require.NoError(t, ch.Send(event))
	assert.Contains(t, gotMsg, "Subject: [RESOLVED] High CPU usage")
}

func TestEmailSMTPFailureIsDeliveryError(t *testing.T) {
	ch := NewEmailChannel(emailConfig())
	ch.sendMail = func(addr string, auth smtp.Auth, from string, to []string, msg []byte) error {
		return errors.New("connection refused")
	}

	err := ch.Send(Event{Alert: AlertInfo{Name: "x"}})
	require.Error(t, err)

	var dErr *DeliveryError
	require.ErrorAs(t, err, &dErr)
	assert.Equal(t, "email", dErr.Channel)
}

// 未配置用户名时不做SMTP认证
func TestEmailNoAuthWithoutUsername(t *testing.T) {
	cfg := emailConfig()
	cfg.Username = ""
	ch := NewEmailChannel(cfg)
	ch.sendMail = func(addr string, auth smtp.Auth, from string, to []string, msg []byte) error {
		assert.Nil(t, auth)
		return nil
	}
	require.NoError(t, ch.Send(Event{Alert: AlertInfo{Name: "x"}}))
}
