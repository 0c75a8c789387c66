package store

import (
	"time"
)

// 告警生命周期状态（持久化schema取值）
const (
	StateTriggered = "triggered"
	StateActive    = "active"
	StateResolved  = "resolved"
)

// Event 告警生命周期记录（持久化schema）
type Event struct {
	AlertID           string
	RuleName          string
	State             string
	Severity          string
	MetricName        string
	MetricValue       float64
	Threshold         float64
	Labels            map[string]string
	TriggeredAt       time.Time
	ResolvedAt        *time.Time
	LastNotifiedAt    *time.Time
	NotificationCount int
}

// Filter 历史查询条件（零值字段不过滤）
type Filter struct {
	Severity string
	State    string
	RuleName string
	Since    time.Time
	Until    time.Time
	Limit    int
}

// Store 告警历史存储接口
// 持久化是辅助手段而非在途评估的事实来源：写失败只记录，绝不回滚内存状态转换
type Store interface {
	Append(event Event) error
	Query(filter Filter) ([]Event, error) // 最近在前
	Cleanup(retentionDays int) (int64, error)
	Close() error
}
