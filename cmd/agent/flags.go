package agent

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/metrics-agent/config"
)

var defaultCfg = config.NewDefaultConfig()

func initServerFlags(root *cobra.Command) {
	f := root.PersistentFlags()

	f.String("server.addr", defaultCfg.Server.Addr, "-> HTTP listening address (HTTP监听地址)")
	f.Duration("server.read-timeout", defaultCfg.Server.ReadTimeout, "-> Read timeout duration (读取超时时间)")
	f.Duration("server.write-timeout", defaultCfg.Server.WriteTimeout, "-> Write timeout duration (写入超时时间)")
	f.Duration("server.idle-timeout", defaultCfg.Server.IdleTimeout, "-> Idle connection timeout duration (空闲连接超时时间)")

	// 绑定到 viper
	err := viper.BindPFlags(f)
	if err != nil {
		return
	}
}

func initCollectorFlags(root *cobra.Command) {
	f := root.PersistentFlags()

	f.Bool("collectors.cpu.enable", defaultCfg.Collectors.CPU.Enable, "启用CPU采集器")
	f.Duration("collectors.cpu.interval", defaultCfg.Collectors.CPU.Interval, "CPU采集间隔")
	f.Bool("collectors.cpu.per-cpu", defaultCfg.Collectors.CPU.PerCPU, "按核心采集CPU使用率")

	f.Bool("collectors.memory.enable", defaultCfg.Collectors.Memory.Enable, "启用内存采集器")
	f.Duration("collectors.memory.interval", defaultCfg.Collectors.Memory.Interval, "内存采集间隔")

	f.Bool("collectors.disk.enable", defaultCfg.Collectors.Disk.Enable, "启用磁盘采集器")
	f.Duration("collectors.disk.interval", defaultCfg.Collectors.Disk.Interval, "磁盘采集间隔")
	f.StringSlice("collectors.disk.exclude-filesystems", defaultCfg.Collectors.Disk.ExcludeFilesystems, "忽略的文件系统类型")
	f.StringSlice("collectors.disk.exclude-mount-points", defaultCfg.Collectors.Disk.ExcludeMountPoints, "忽略的挂载点前缀")

	f.Bool("collectors.network.enable", defaultCfg.Collectors.Network.Enable, "启用网络采集器")
	f.Duration("collectors.network.interval", defaultCfg.Collectors.Network.Interval, "网络采集间隔")
	f.StringSlice("collectors.network.exclude-interfaces", defaultCfg.Collectors.Network.ExcludeInterfaces, "忽略的网络接口")

	f.Bool("collectors.process.enable", defaultCfg.Collectors.Process.Enable, "启用进程采集器")
	f.Duration("collectors.process.interval", defaultCfg.Collectors.Process.Interval, "进程采集间隔")
	f.Int("collectors.process.top-n", defaultCfg.Collectors.Process.TopN, "采集Top N进程")

	err := viper.BindPFlags(f)
	if err != nil {
		return
	}
}

func initLimitFlags(root *cobra.Command) {
	f := root.PersistentFlags()

	f.Float64("resource-limits.max-cpu-percent", defaultCfg.Limits.MaxCPUPercent, "Agent自身CPU上限（百分比）")
	f.Float64("resource-limits.max-memory-mb", defaultCfg.Limits.MaxMemoryMB, "Agent自身内存上限（MB）")
	f.Duration("resource-limits.check-interval", defaultCfg.Limits.CheckInterval, "自监控采样间隔")
	f.Int("resource-limits.window-size", defaultCfg.Limits.WindowSize, "持续越限判定窗口")
	f.String("resource-limits.action-on-exceed", defaultCfg.Limits.ActionOnExceed, "越限动作 [log,disable_collectors,stop]")

	err := viper.BindPFlags(f)
	if err != nil {
		return
	}
}

func initAlertingFlags(root *cobra.Command) {
	f := root.PersistentFlags()

	f.Bool("alerting.enable", defaultCfg.Alerting.Enable, "启用告警评估")
	f.Duration("alerting.evaluation-interval", defaultCfg.Alerting.EvaluationInterval, "规则评估周期")
	f.String("alerting.rules-file", defaultCfg.Alerting.RulesFile, "告警规则文件路径")
	f.String("alerting.storage.path", defaultCfg.Alerting.Storage.Path, "告警历史SQLite路径")
	f.Int("alerting.storage.retention-days", defaultCfg.Alerting.Storage.RetentionDays, "已解决告警保留天数")

	err := viper.BindPFlags(f)
	if err != nil {
		return
	}
}

func initLogFlags(root *cobra.Command) {
	f := root.PersistentFlags()
	logPrefix := "log."

	f.String(
		logPrefix+"level",
		defaultCfg.Log.Level,
		"-> Log level [info,debug] | 日志级别 [info,debug]")
	f.String(
		logPrefix+"format",
		defaultCfg.Log.Format,
		"-> Log format [console,json] | 日志格式 [console,json]")
	f.String(
		logPrefix+"path",
		defaultCfg.Log.Path,
		"-> Log file storage path | 日志路径")
	f.Int(
		logPrefix+"max-size",
		defaultCfg.Log.MaxSize,
		"-> Max size of single log file (MB) | 单文件最大MB")
	f.Int(
		logPrefix+"max-age",
		defaultCfg.Log.MaxAge,
		"-> Maximum retention days of log files | 保存天数")
	f.Bool(
		logPrefix+"compress",
		defaultCfg.Log.Compress,
		"-> Whether to compress expired log files | 是否压缩")

	err := viper.BindPFlags(f)
	if err != nil {
		return
	}
}
