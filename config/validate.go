package config

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"time"
)

// knownCollectors 采集器名称全集（cost_ranking 与 env 覆盖共用）
var knownCollectors = map[string]bool{
	"cpu":     true,
	"memory":  true,
	"disk":    true,
	"network": true,
	"process": true,
}

// Validate HTTP服务配置校验
func (h *ServerConfig) Validate() error {
	if err := valid.Struct(h); err != nil {
		return err
	}
	// 	校验Addr格式(必须是 ":port" 或 "ip:port")
	if h.Addr == "" {
		return errors.New("server.addr cannot be empty")
	}
	// 	用net包解析地址，验证格式合法性
	if _, err := net.ResolveTCPAddr("tcp", h.Addr); err != nil {
		return fmt.Errorf("server.addr format invalid (expected: :port or ip:port), got %s: %w", h.Addr, err)
	}
	return nil
}

// Validate 采集器配置校验：至少启用一个采集器，周期在合理区间
func (c *CollectorsConfig) Validate() error {
	if err := valid.Struct(c); err != nil {
		return err
	}
	if !c.CPU.Enable && !c.Memory.Enable && !c.Disk.Enable && !c.Network.Enable && !c.Process.Enable {
		return fmt.Errorf("at least one collector must be enabled (cpu/memory/disk/network/process)")
	}

	intervals := map[string]time.Duration{
		"cpu":     c.CPU.Interval,
		"memory":  c.Memory.Interval,
		"disk":    c.Disk.Interval,
		"network": c.Network.Interval,
		"process": c.Process.Interval,
	}
	for name, interval := range intervals {
		if interval < time.Second || interval > 3600*time.Second {
			return fmt.Errorf("collectors.%s.interval must be between 1s and 3600s, got %s", name, interval)
		}
	}

	if c.Process.TopN <= 0 {
		return fmt.Errorf("collectors.process.top_n must be > 0, got %d", c.Process.TopN)
	}

	// 忽略列表不能包含空字符串或重复项
	if err := validateExcludeList("collectors.disk.exclude_filesystems", c.Disk.ExcludeFilesystems); err != nil {
		return err
	}
	if err := validateExcludeList("collectors.disk.exclude_mount_points", c.Disk.ExcludeMountPoints); err != nil {
		return err
	}
	if err := validateExcludeList("collectors.network.exclude_interfaces", c.Network.ExcludeInterfaces); err != nil {
		return err
	}
	return nil
}

func validateExcludeList(field string, entries []string) error {
	seen := map[string]bool{}
	for _, e := range entries {
		if strings.TrimSpace(e) == "" {
			return fmt.Errorf("%s cannot contain empty string", field)
		}
		if strings.ContainsAny(e, "\t\r\n") {
			return fmt.Errorf("%s: entry %q contains whitespace", field, e)
		}
		if seen[e] {
			return fmt.Errorf("%s contains duplicate entry: %q", field, e)
		}
		seen[e] = true
	}
	return nil
}

// Validate 资源限制校验：动作取值、成本排序必须引用已知采集器且不重复
func (r *ResourceLimitConfig) Validate(collectors *CollectorsConfig) error {
	if err := valid.Struct(r); err != nil {
		return err
	}

	switch r.ActionOnExceed {
	case "log", "disable_collectors", "stop":
	default:
		return fmt.Errorf("resource_limits.action_on_exceed must be one of log/disable_collectors/stop, got %q", r.ActionOnExceed)
	}

	// disable_collectors 需要确定性的禁用顺序
	if r.ActionOnExceed == "disable_collectors" && len(r.CostRanking) == 0 {
		return fmt.Errorf("resource_limits.cost_ranking must be set when action_on_exceed=disable_collectors")
	}

	seen := map[string]bool{}
	for _, name := range r.CostRanking {
		if !knownCollectors[name] {
			return fmt.Errorf("resource_limits.cost_ranking references unknown collector: %q", name)
		}
		if seen[name] {
			return fmt.Errorf("resource_limits.cost_ranking contains duplicate entry: %q", name)
		}
		seen[name] = true
	}
	return nil
}

// Validate 告警配置校验（启用时规则文件与存储路径必填）
func (a *AlertingConfig) Validate() error {
	if err := valid.Struct(a); err != nil {
		return err
	}
	if !a.Enable {
		return nil
	}
	if a.RulesFile == "" {
		return fmt.Errorf("alerting.rules_file must be set when alerting is enabled")
	}
	if a.EvaluationInterval < time.Second {
		return fmt.Errorf("alerting.evaluation_interval must be >= 1s, got %s", a.EvaluationInterval)
	}
	if a.Storage.Path == "" {
		return fmt.Errorf("alerting.storage.path cannot be empty")
	}
	if err := a.Channels.Validate(); err != nil {
		return err
	}
	return nil
}

// Validate 通知渠道校验（仅校验启用的渠道）
func (c *ChannelsConfig) Validate() error {
	if c.Email.Enable {
		if c.Email.SMTPHost == "" {
			return fmt.Errorf("channels.email.smtp_host cannot be empty when email channel is enabled")
		}
		if c.Email.FromAddress == "" {
			return fmt.Errorf("channels.email.from_address cannot be empty when email channel is enabled")
		}
		if len(c.Email.ToAddresses) == 0 {
			return fmt.Errorf("channels.email.to_addresses cannot be empty when email channel is enabled")
		}
	}
	if c.Slack.Enable && c.Slack.WebhookURL == "" {
		return fmt.Errorf("channels.slack.webhook_url cannot be empty when slack channel is enabled")
	}
	if c.Webhook.Enable {
		if c.Webhook.URL == "" {
			return fmt.Errorf("channels.webhook.url cannot be empty when webhook channel is enabled")
		}
		switch strings.ToUpper(c.Webhook.Method) {
		case "POST", "PUT":
		default:
			return fmt.Errorf("channels.webhook.method must be POST or PUT, got %q", c.Webhook.Method)
		}
	}
	return nil
}
