package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/metrics-agent/config"
)

// SlackChannel Slack Incoming Webhook渠道
type SlackChannel struct {
	cfg    config.SlackChannelConfig
	client *http.Client
}

type slackAttachment struct {
	Color     string       `json:"color"`
	Title     string       `json:"title"`
	Text      string       `json:"text"`
	Fields    []slackField `json:"fields,omitempty"`
	Timestamp int64        `json:"ts"`
}

type slackField struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

type slackMessage struct {
	Channel     string            `json:"channel,omitempty"`
	Username    string            `json:"username,omitempty"`
	IconEmoji   string            `json:"icon_emoji,omitempty"`
	Attachments []slackAttachment `json:"attachments"`
}

// NewSlackChannel 创建Slack渠道
func NewSlackChannel(cfg config.SlackChannelConfig) *SlackChannel {
	return &SlackChannel{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *SlackChannel) Name() string {
	return "slack"
}

// Send 投递一次通知
func (c *SlackChannel) Send(event Event) error {
	title := fmt.Sprintf("[%s] %s", event.Alert.Severity, event.Annotations.Summary)
	if event.Alert.Status == StatusResolved {
		title = "[resolved] " + event.Annotations.Summary
	}

	fields := []slackField{
		{Title: "Metric", Value: event.Metric.Name, Short: true},
		{Title: "Value", Value: fmt.Sprintf("%g %s %g", event.Metric.Value, event.Metric.Operator, event.Metric.Threshold), Short: true},
	}
	for key, value := range event.Labels {
		fields = append(fields, slackField{Title: key, Value: value, Short: true})
	}

	message := slackMessage{
		Channel:   c.cfg.Channel,
		Username:  c.cfg.Username,
		IconEmoji: c.cfg.IconEmoji,
		Attachments: []slackAttachment{{
			Color:     severityColor(event),
			Title:     title,
			Text:      event.Annotations.Description,
			Fields:    fields,
			Timestamp: event.Alert.Timestamp.Unix(),
		}},
	}

	body, err := json.Marshal(message)
	if err != nil {
		return &DeliveryError{Channel: c.Name(), Err: fmt.Errorf("marshal payload: %w", err)}
	}

	resp, err := c.client.Post(c.cfg.WebhookURL, "application/json", bytes.NewReader(body))
	if err != nil {
		return &DeliveryError{Channel: c.Name(), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &DeliveryError{Channel: c.Name(), Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}
	return nil
}

func severityColor(event Event) string {
	if event.Alert.Status == StatusResolved {
		return "good"
	}
	switch event.Alert.Severity {
	case "critical":
		return "danger"
	case "warning":
		return "warning"
	default:
		return "#439FE0"
	}
}
