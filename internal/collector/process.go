package collector

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shirou/gopsutil/v3/process"

	"github.com/metrics-agent/config"
	"github.com/metrics-agent/internal/metrics"
)

// ProcessCollector 进程采集能力：按CPU/内存取TopN进程
type ProcessCollector struct {
	cfg config.ProcessCollectorConfig

	cpuPercent  *prometheus.GaugeVec
	memoryBytes *prometheus.GaugeVec
	runtimeSecs *prometheus.GaugeVec
}

type processInfo struct {
	pid        int32
	name       string
	user       string
	cpuPercent float64
	memBytes   uint64
	createTime int64
}

// NewProcessCollector 创建进程采集能力（注册指标）
func NewProcessCollector(cfg config.ProcessCollectorConfig, factory *metrics.MetricFactory) *ProcessCollector {
	return &ProcessCollector{
		cfg:         cfg,
		cpuPercent:  factory.NewGaugeVec("process_cpu_percent", "Process CPU usage percentage", "pid", "name", "user"),
		memoryBytes: factory.NewGaugeVec("process_memory_bytes", "Process memory usage in bytes (RSS)", "pid", "name", "user"),
		runtimeSecs: factory.NewGaugeVec("process_runtime_seconds", "Process runtime in seconds", "pid", "name", "user"),
	}
}

// Collect 采集一次进程指标
// 单个进程在扫描中途消失或无权限只跳过，不算采集失败
func (c *ProcessCollector) Collect(ctx context.Context) error {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return fmt.Errorf("list processes: %w", err)
	}

	infos := make([]processInfo, 0, len(procs))
	for _, p := range procs {
		info, ok := c.inspect(ctx, p)
		if !ok {
			continue
		}
		infos = append(infos, info)
	}

	// CPU Top N 与内存 Top N 合并去重
	byCPU := make([]processInfo, len(infos))
	copy(byCPU, infos)
	sort.Slice(byCPU, func(i, j int) bool { return byCPU[i].cpuPercent > byCPU[j].cpuPercent })

	byMem := make([]processInfo, len(infos))
	copy(byMem, infos)
	sort.Slice(byMem, func(i, j int) bool { return byMem[i].memBytes > byMem[j].memBytes })

	top := make(map[int32]processInfo)
	for i := 0; i < c.cfg.TopN && i < len(byCPU); i++ {
		top[byCPU[i].pid] = byCPU[i]
	}
	for i := 0; i < c.cfg.TopN && i < len(byMem); i++ {
		if _, exists := top[byMem[i].pid]; !exists {
			top[byMem[i].pid] = byMem[i]
		}
	}

	now := time.Now()
	for _, info := range top {
		pid := strconv.Itoa(int(info.pid))
		c.cpuPercent.WithLabelValues(pid, info.name, info.user).Set(info.cpuPercent)
		c.memoryBytes.WithLabelValues(pid, info.name, info.user).Set(float64(info.memBytes))
		runtime := now.Sub(time.UnixMilli(info.createTime)).Seconds()
		c.runtimeSecs.WithLabelValues(pid, info.name, info.user).Set(runtime)
	}

	return nil
}

// inspect 读取单个进程属性，任何单进程级错误都静默跳过（进程消失/无权限属正常竞态）
func (c *ProcessCollector) inspect(ctx context.Context, p *process.Process) (processInfo, bool) {
	name, err := p.NameWithContext(ctx)
	if err != nil {
		return processInfo{}, false
	}
	user, err := p.UsernameWithContext(ctx)
	if err != nil {
		user = "unknown"
	}
	cpuPercent, err := p.CPUPercentWithContext(ctx)
	if err != nil {
		return processInfo{}, false
	}
	memInfo, err := p.MemoryInfoWithContext(ctx)
	if err != nil {
		return processInfo{}, false
	}
	createTime, err := p.CreateTimeWithContext(ctx)
	if err != nil {
		return processInfo{}, false
	}

	if len(name) > 50 {
		name = name[:50]
	}
	if len(user) > 30 {
		user = user[:30]
	}

	return processInfo{
		pid:        p.Pid,
		name:       name,
		user:       user,
		cpuPercent: cpuPercent,
		memBytes:   memInfo.RSS,
		createTime: createTime,
	}, true
}
