package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/metrics-agent/config"
)

// WebhookChannel 通用HTTP Webhook渠道：事件序列化为JSON直接POST/PUT到目标地址
type WebhookChannel struct {
	cfg    config.WebhookChannelConfig
	client *http.Client
}

// NewWebhookChannel 创建Webhook渠道
func NewWebhookChannel(cfg config.WebhookChannelConfig) *WebhookChannel {
	return &WebhookChannel{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

func (c *WebhookChannel) Name() string {
	return "webhook"
}

// Send 投递一次通知
func (c *WebhookChannel) Send(event Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return &DeliveryError{Channel: c.Name(), Err: fmt.Errorf("marshal payload: %w", err)}
	}

	req, err := http.NewRequest(strings.ToUpper(c.cfg.Method), c.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return &DeliveryError{Channel: c.Name(), Err: fmt.Errorf("build request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	for key, value := range c.cfg.Headers {
		req.Header.Set(key, value)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return &DeliveryError{Channel: c.Name(), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &DeliveryError{Channel: c.Name(), Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}
	return nil
}
