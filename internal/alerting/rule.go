package alerting

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/metrics-agent/pkg/logger"
)

// Severity 告警级别
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// 默认值（规则文件未写时兜底，仅限非必填字段）
const defaultCooldownMinutes = 15

// Annotations 告警描述模板（支持 {{value}} / {{threshold}} / {{labels.<key>}} 占位符）
type Annotations struct {
	Summary     string `yaml:"summary"`
	Description string `yaml:"description"`
}

// Condition 规则比较条件
type Condition struct {
	Operator  string  `yaml:"operator"`
	Threshold float64 `yaml:"threshold"`
}

// AlertRule 告警规则（加载后不可变，整体替换式重载）
type AlertRule struct {
	Name               string            `yaml:"name"`
	MetricName         string            `yaml:"metric_name"`
	Condition          Condition         `yaml:"condition"`
	ForDurationMinutes int               `yaml:"for_duration_minutes"`
	Severity           Severity          `yaml:"severity"`
	Channels           []string          `yaml:"channels"`
	CooldownMinutes    int               `yaml:"cooldown_minutes"`
	LabelSelector      map[string]string `yaml:"label_selector"`
	Annotations        Annotations       `yaml:"annotations"`
	Enabled            bool              `yaml:"enabled"`
}

// rulesFile 规则文件顶层结构
type rulesFile struct {
	AlertRules []rawRule `yaml:"alert_rules"`
}

// rawRule 带指针的中间结构，区分"未写"与"写了零值"：
// 必填字段缺失在加载期报错，可选字段（cooldown/enabled）填默认
type rawRule struct {
	Name               string            `yaml:"name"`
	MetricName         string            `yaml:"metric_name"`
	Condition          *rawCondition     `yaml:"condition"`
	ForDurationMinutes *int              `yaml:"for_duration_minutes"`
	Severity           *Severity         `yaml:"severity"`
	Channels           []string          `yaml:"channels"`
	CooldownMinutes    *int              `yaml:"cooldown_minutes"`
	LabelSelector      map[string]string `yaml:"label_selector"`
	Annotations        Annotations       `yaml:"annotations"`
	Enabled            *bool             `yaml:"enabled"`
}

type rawCondition struct {
	Operator  string   `yaml:"operator"`
	Threshold *float64 `yaml:"threshold"`
}

// ForDuration 条件持续时长（PENDING→ACTIVE门槛）
func (r *AlertRule) ForDuration() time.Duration {
	return time.Duration(r.ForDurationMinutes) * time.Minute
}

// Cooldown 两次通知的最小间隔
func (r *AlertRule) Cooldown() time.Duration {
	return time.Duration(r.CooldownMinutes) * time.Minute
}

// Holds 比较条件是否成立
// ==/!= 用精确浮点相等，epsilon处理是调用方责任
func (r *AlertRule) Holds(value float64) bool {
	switch r.Condition.Operator {
	case ">":
		return value > r.Condition.Threshold
	case "<":
		return value < r.Condition.Threshold
	case ">=":
		return value >= r.Condition.Threshold
	case "<=":
		return value <= r.Condition.Threshold
	case "==":
		return value == r.Condition.Threshold
	case "!=":
		return value != r.Condition.Threshold
	default:
		// 校验阶段已拦截，此处只兜底
		return false
	}
}

// Validate 规则校验（缺必填字段属加载期错误，绝不带病启动）
func (r *AlertRule) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("rule name is required")
	}
	if r.MetricName == "" {
		return fmt.Errorf("rule %q: metric_name is required", r.Name)
	}
	switch r.Condition.Operator {
	case ">", "<", ">=", "<=", "==", "!=":
	default:
		return fmt.Errorf("rule %q: invalid operator %q (must be one of > < >= <= == !=)", r.Name, r.Condition.Operator)
	}
	switch r.Severity {
	case SeverityInfo, SeverityWarning, SeverityCritical:
	default:
		return fmt.Errorf("rule %q: invalid severity %q (must be info/warning/critical)", r.Name, r.Severity)
	}
	if r.ForDurationMinutes < 0 {
		return fmt.Errorf("rule %q: for_duration_minutes must be >= 0, got %d", r.Name, r.ForDurationMinutes)
	}
	if r.CooldownMinutes < 0 {
		return fmt.Errorf("rule %q: cooldown_minutes must be >= 0, got %d", r.Name, r.CooldownMinutes)
	}
	if len(r.Channels) == 0 {
		return fmt.Errorf("rule %q: at least one channel is required", r.Name)
	}
	return nil
}

// LoadRules 从YAML文件加载规则集（任一规则非法即整体失败；重载即整体替换）
func LoadRules(path string) ([]AlertRule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read alert rules file %s: %w", path, err)
	}

	var file rulesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse alert rules file %s: %w", path, err)
	}

	rules := make([]AlertRule, 0, len(file.AlertRules))
	seen := map[string]bool{}
	for _, raw := range file.AlertRules {
		rule, err := raw.materialize()
		if err != nil {
			return nil, fmt.Errorf("alert rules file %s: %w", path, err)
		}
		if err := rule.Validate(); err != nil {
			return nil, fmt.Errorf("alert rules file %s: %w", path, err)
		}
		if seen[rule.Name] {
			return nil, fmt.Errorf("alert rules file %s: duplicate rule name %q", path, rule.Name)
		}
		seen[rule.Name] = true
		rules = append(rules, rule)
		logger.Debug("loaded alert rule", zap.String("rule", rule.Name), zap.Bool("enabled", rule.Enabled))
	}

	logger.Info("alert rules loaded", zap.Int("count", len(rules)), zap.String("file", path))
	return rules, nil
}

// materialize 检查必填字段并填可选字段默认值
func (raw rawRule) materialize() (AlertRule, error) {
	if raw.Condition == nil {
		return AlertRule{}, fmt.Errorf("rule %q: condition is required", raw.Name)
	}
	if raw.Condition.Threshold == nil {
		return AlertRule{}, fmt.Errorf("rule %q: condition.threshold is required", raw.Name)
	}
	if raw.Severity == nil {
		return AlertRule{}, fmt.Errorf("rule %q: severity is required", raw.Name)
	}
	if raw.ForDurationMinutes == nil {
		return AlertRule{}, fmt.Errorf("rule %q: for_duration_minutes is required", raw.Name)
	}

	rule := AlertRule{
		Name:       raw.Name,
		MetricName: raw.MetricName,
		Condition: Condition{
			Operator:  raw.Condition.Operator,
			Threshold: *raw.Condition.Threshold,
		},
		ForDurationMinutes: *raw.ForDurationMinutes,
		Severity:           *raw.Severity,
		Channels:           raw.Channels,
		CooldownMinutes:    defaultCooldownMinutes,
		LabelSelector:      raw.LabelSelector,
		Annotations:        raw.Annotations,
		Enabled:            true,
	}
	if raw.CooldownMinutes != nil {
		rule.CooldownMinutes = *raw.CooldownMinutes
	}
	if raw.Enabled != nil {
		rule.Enabled = *raw.Enabled
	}
	return rule, nil
}

// LabelSignature 标签集的规范字符串形式（键排序），用作告警状态键的一部分
func LabelSignature(labels map[string]string) string {
	if len(labels) == 0 {
		return ""
	}
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+labels[k])
	}
	return strings.Join(parts, ",")
}

// AlertID 规则名 + 标签签名（同一规则跨标签集的告警相互独立）
func (r *AlertRule) AlertID(labels map[string]string) string {
	sig := LabelSignature(labels)
	if sig == "" {
		return r.Name
	}
	return r.Name + "{" + sig + "}"
}
