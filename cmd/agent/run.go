package agent

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/metrics-agent/config"
	"github.com/metrics-agent/internal/alerting"
	"github.com/metrics-agent/internal/collector"
	"github.com/metrics-agent/internal/metrics"
	"github.com/metrics-agent/internal/notify"
	"github.com/metrics-agent/internal/scheduler"
	"github.com/metrics-agent/internal/server"
	"github.com/metrics-agent/internal/store"
	"github.com/metrics-agent/pkg/logger"
	"github.com/metrics-agent/pkg/signal"
	"github.com/metrics-agent/pkg/util"
)

const (
	// shutdownTimeout 整体优雅关闭上限
	shutdownTimeout = 30 * time.Second
	// schedulerGracePeriod 调度器等待任务退出的宽限期
	schedulerGracePeriod = 10 * time.Second
)

// runAgent 主启动流程
func runAgent(ctx context.Context, cfg *config.Config) error {
	// 1. 初始化日志
	if err := logger.Init(cfg.Log); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()

	// 2. 打印banner
	util.PrintBanner("metrics-agent", "ColorBlue")

	// 3. 主机名探测（auto=取系统主机名）
	hostname := cfg.Agent.Hostname
	if hostname == "auto" || hostname == "" {
		detected, err := os.Hostname()
		if err != nil {
			return fmt.Errorf("detect hostname: %w", err)
		}
		hostname = detected
	}
	logger.Info("agent starting",
		zap.String("hostname", hostname),
		zap.String("version", cfg.Agent.Version))

	// 4. 初始化指标注册器与工厂
	promRegistry := prometheus.NewRegistry()
	registry := metrics.NewPromRegistry(promRegistry)
	factory := metrics.NewMetricFactory(registry)
	factory.NewAgentInfo().WithLabelValues(cfg.Agent.Version, hostname).Set(1)

	// 5. 注册采集器任务
	sched := scheduler.NewScheduler()
	tasks, err := collector.RegisterCollectors(sched, &cfg.Collectors, factory)
	if err != nil {
		return fmt.Errorf("register collectors: %w", err)
	}
	logger.Info("collectors registered", zap.Int("count", len(tasks)))

	// 6. 告警子系统（按需启用）
	var (
		dispatcher *notify.Dispatcher
		alertStore store.Store
	)
	if cfg.Alerting.Enable {
		rules, err := alerting.LoadRules(cfg.Alerting.RulesFile)
		if err != nil {
			return fmt.Errorf("load alert rules: %w", err)
		}

		sqliteStore, err := store.NewSQLiteStore(cfg.Alerting.Storage.Path)
		if err != nil {
			return fmt.Errorf("open alert store: %w", err)
		}
		alertStore = store.NewAsyncStore(sqliteStore, cfg.Alerting.Storage.QueueSize)

		channels := buildChannels(cfg.Alerting.Channels)
		dispatcher = notify.NewDispatcher(channels, cfg.Alerting.DispatchQueueSize)
		dispatcher.Start()

		manager := alerting.NewManager(dispatcher, alertStore)
		evaluator := alerting.NewEvaluator(
			rules,
			metrics.NewReader(registry),
			manager,
			cfg.Alerting.EvaluationInterval,
			cfg.Alerting.CleanupEveryCycles,
			cfg.Alerting.Storage.RetentionDays,
		)
		if err := sched.Register(evaluator); err != nil {
			return fmt.Errorf("register alert evaluator: %w", err)
		}
		logger.Info("alerting enabled",
			zap.Int("rules", len(rules)),
			zap.Int("channels", len(channels)),
			zap.Duration("evaluation_interval", cfg.Alerting.EvaluationInterval))
	}

	// 7. 自监控任务（stop动作通过取消stopCtx触发全局关闭）
	stopCtx, requestStop := context.WithCancel(ctx)
	defer requestStop()

	selfMonitor := scheduler.NewSelfMonitor(cfg.Limits, sched, requestStop, nil, factory)
	if err := sched.Register(selfMonitor); err != nil {
		return fmt.Errorf("register self monitor: %w", err)
	}

	// 8. 启动调度器与HTTP服务
	if err := sched.Start(context.Background()); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	httpServer := server.NewHTTPServer(cfg.Server, registry)
	httpServer.Start()

	logger.Info("agent started successfully",
		zap.String("listen_addr", cfg.Server.Addr),
		zap.Strings("tasks", sched.TaskNames()))

	// 9. 阻塞等待退出信号（或自监控stop动作），执行有序关闭
	signal.WaitForShutdown(stopCtx, logger.GetLogger(), shutdownTimeout, func() error {
		// 关闭顺序：HTTP服务 → 调度器 → 通知派发 → 告警存储
		var firstErr error
		if err := httpServer.Shutdown(); err != nil {
			firstErr = err
		}
		if err := sched.Stop(schedulerGracePeriod); err != nil && firstErr == nil {
			firstErr = err
		}
		if dispatcher != nil {
			dispatcher.Close()
		}
		if alertStore != nil {
			if err := alertStore.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		return firstErr
	})
	return nil
}

// buildChannels 按配置组装启用的通知渠道
func buildChannels(cfg config.ChannelsConfig) []notify.Channel {
	var channels []notify.Channel
	if cfg.Email.Enable {
		channels = append(channels, notify.NewEmailChannel(cfg.Email))
	}
	if cfg.Slack.Enable {
		channels = append(channels, notify.NewSlackChannel(cfg.Slack))
	}
	if cfg.Webhook.Enable {
		channels = append(channels, notify.NewWebhookChannel(cfg.Webhook))
	}
	return channels
}
