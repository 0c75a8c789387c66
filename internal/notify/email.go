package notify

import (
	"fmt"
	"net/smtp"
	"strings"

	"github.com/metrics-agent/config"
)

// EmailChannel SMTP邮件渠道
type EmailChannel struct {
	cfg config.EmailChannelConfig

	// sendMail 可注入（单测替换，避免真实SMTP连接）
	sendMail func(addr string, auth smtp.Auth, from string, to []string, msg []byte) error
}

// NewEmailChannel 创建邮件渠道
func NewEmailChannel(cfg config.EmailChannelConfig) *EmailChannel {
	return &EmailChannel{
		cfg:      cfg,
		sendMail: smtp.SendMail,
	}
}

func (c *EmailChannel) Name() string {
	return "email"
}

// Send 投递一次通知
func (c *EmailChannel) Send(event Event) error {
	subject := fmt.Sprintf("[%s] %s", strings.ToUpper(event.Alert.Severity), event.Annotations.Summary)
	if event.Alert.Status == StatusResolved {
		subject = "[RESOLVED] " + event.Annotations.Summary
	}

	var body strings.Builder
	body.WriteString(fmt.Sprintf("Subject: %s\r\n", subject))
	body.WriteString(fmt.Sprintf("From: %s\r\n", c.cfg.FromAddress))
	body.WriteString(fmt.Sprintf("To: %s\r\n", strings.Join(c.cfg.ToAddresses, ", ")))
	body.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	body.WriteString("\r\n")
	body.WriteString(event.Annotations.Description + "\r\n\r\n")
	body.WriteString(fmt.Sprintf("Alert:     %s\r\n", event.Alert.Name))
	body.WriteString(fmt.Sprintf("Status:    %s\r\n", event.Alert.Status))
	body.WriteString(fmt.Sprintf("Severity:  %s\r\n", event.Alert.Severity))
	body.WriteString(fmt.Sprintf("Metric:    %s = %g (threshold: %s %g)\r\n",
		event.Metric.Name, event.Metric.Value, event.Metric.Operator, event.Metric.Threshold))
	body.WriteString(fmt.Sprintf("Time:      %s\r\n", event.Alert.Timestamp.Format("2006-01-02 15:04:05 -07:00")))
	for key, value := range event.Labels {
		body.WriteString(fmt.Sprintf("Label:     %s=%s\r\n", key, value))
	}

	addr := fmt.Sprintf("%s:%d", c.cfg.SMTPHost, c.cfg.SMTPPort)
	var auth smtp.Auth
	if c.cfg.Username != "" {
		auth = smtp.PlainAuth("", c.cfg.Username, c.cfg.Password, c.cfg.SMTPHost)
	}

	if err := c.sendMail(addr, auth, c.cfg.FromAddress, c.cfg.ToAddresses, []byte(body.String())); err != nil {
		return &DeliveryError{Channel: c.Name(), Err: err}
	}
	return nil
}
