package notify

import (
	"sync"

	"go.uber.org/zap"

	"github.com/metrics-agent/pkg/logger"
)

// Dispatcher 通知派发器：把告警状态机产生的事件异步扇出到各配置渠道。
// 有界队列缓冲，满时丢最旧并告警日志，绝不阻塞评估周期；
// 单渠道失败被捕获记录，不影响其余渠道，也不影响触发它的状态转换。
type Dispatcher struct {
	channels map[string]Channel
	queue    chan Event
	done     chan struct{}

	// 关闭后可能仍有被放弃的评估goroutine调用Dispatch，须防止写已关闭channel
	mu     sync.RWMutex
	closed bool
}

// NewDispatcher 创建派发器
func NewDispatcher(channels []Channel, queueSize int) *Dispatcher {
	byName := make(map[string]Channel, len(channels))
	for _, ch := range channels {
		byName[ch.Name()] = ch
	}
	return &Dispatcher{
		channels: byName,
		queue:    make(chan Event, queueSize),
		done:     make(chan struct{}),
	}
}

// Start 启动派发worker
func (d *Dispatcher) Start() {
	go func() {
		defer close(d.done)
		for event := range d.queue {
			d.fanout(event)
		}
	}()
	logger.Info("notification dispatcher started",
		zap.Int("channels", len(d.channels)),
		zap.Int("queue_size", cap(d.queue)))
}

// Dispatch 入队一个通知事件（非阻塞；队列满时丢弃最旧并记录警告；关闭后丢弃）
func (d *Dispatcher) Dispatch(event Event) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		logger.Warn("dispatcher closed, dropping notification",
			zap.String("alert", event.Alert.Name),
			zap.String("status", string(event.Alert.Status)))
		return
	}

	select {
	case d.queue <- event:
		return
	default:
	}

	// 队列已满：丢最旧腾位置
	select {
	case dropped := <-d.queue:
		logger.Warn("dispatch queue full, dropping oldest notification",
			zap.String("dropped_alert", dropped.Alert.Name),
			zap.String("dropped_status", string(dropped.Alert.Status)))
	default:
	}

	select {
	case d.queue <- event:
	default:
		// 竞争下仍满：丢当前事件，同样必须留痕
		logger.Warn("dispatch queue full, dropping notification",
			zap.String("alert", event.Alert.Name),
			zap.String("status", string(event.Alert.Status)))
	}
}

// fanout 同步扇出到事件指定的各渠道，逐渠道隔离失败
func (d *Dispatcher) fanout(event Event) {
	for _, name := range event.Channels {
		channel, ok := d.channels[name]
		if !ok {
			logger.Warn("notification channel not configured",
				zap.String("channel", name),
				zap.String("alert", event.Alert.Name))
			continue
		}

		if err := channel.Send(event); err != nil {
			logger.Error("notification delivery failed",
				zap.String("channel", name),
				zap.String("alert", event.Alert.Name),
				zap.String("status", string(event.Alert.Status)),
				zap.Error(err))
			continue
		}
		logger.Info("notification sent",
			zap.String("channel", name),
			zap.String("alert", event.Alert.Name),
			zap.String("status", string(event.Alert.Status)))
	}
}

// Close 关闭队列并等待worker清空剩余事件（幂等）
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	<-d.done
	logger.Info("notification dispatcher stopped")
}
