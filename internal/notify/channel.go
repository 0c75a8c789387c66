package notify

import (
	"fmt"
	"time"
)

// Status 通知事件对应的告警状态
type Status string

const (
	StatusFiring   Status = "firing"
	StatusResolved Status = "resolved"
)

// AlertInfo 通知载荷中的告警部分
type AlertInfo struct {
	Name      string    `json:"name"`
	Severity  string    `json:"severity"`
	Status    Status    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// MetricInfo 通知载荷中的指标部分
type MetricInfo struct {
	Name      string  `json:"name"`
	Value     float64 `json:"value"`
	Threshold float64 `json:"threshold"`
	Operator  string  `json:"operator"`
}

// AnnotationInfo 渲染后的摘要与描述
type AnnotationInfo struct {
	Summary     string `json:"summary"`
	Description string `json:"description"`
}

// Event 一次通知事件（每次派发临时构造）
// 结构即各渠道必须接受的消息契约
type Event struct {
	Alert       AlertInfo         `json:"alert"`
	Metric      MetricInfo        `json:"metric"`
	Labels      map[string]string `json:"labels"`
	Annotations AnnotationInfo    `json:"annotations"`

	// Channels 规则配置的目标渠道id列表（派发路由用，不进载荷）
	Channels []string `json:"-"`
}

// Channel 通知渠道能力接口，新渠道只需实现本接口，无需改动派发器
type Channel interface {
	Name() string
	Send(event Event) error
}

// DeliveryError 单渠道投递失败（渠道间相互隔离，永不影响告警状态机）
type DeliveryError struct {
	Channel string
	Err     error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("channel %s delivery failed: %v", e.Channel, e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}
