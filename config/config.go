package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var valid = validator.New()

// Config 全局配置结构体（聚合所有核心模块）
type Config struct {
	Agent      AgentConfig         `yaml:"agent" mapstructure:"agent" comment:"Agent基础配置"`
	Server     ServerConfig        `yaml:"server" mapstructure:"server" comment:"HTTP服务配置"`
	Collectors CollectorsConfig    `yaml:"collectors" mapstructure:"collectors" comment:"各采集器配置"`
	Limits     ResourceLimitConfig `yaml:"resource_limits" mapstructure:"resource_limits" comment:"Agent自身资源限制"`
	Alerting   AlertingConfig      `yaml:"alerting" mapstructure:"alerting" comment:"告警配置"`
	Log        ZapLogConfig        `yaml:"log" mapstructure:"log" comment:"日志配置"`
}

// AgentConfig Agent基础配置
type AgentConfig struct {
	Hostname string `yaml:"hostname" mapstructure:"hostname" env:"AGENT_HOSTNAME" validate:"required" comment:"主机名（auto=自动探测）" default:"auto"`
	Version  string `yaml:"version" mapstructure:"version" comment:"上报到agent_info的版本号" default:"1.0.0"`
}

// ServerConfig HTTP服务配置（超时统一为time.Duration，支持"30s"解析）
type ServerConfig struct {
	Addr         string        `yaml:"addr" mapstructure:"addr" env:"HTTP_ADDR" validate:"required,hostname_port" comment:"HTTP监听地址（格式：ip:port）"`
	ReadTimeout  time.Duration `yaml:"read_timeout" mapstructure:"read_timeout" env:"HTTP_READ_TIMEOUT" validate:"required,gt=0" comment:"读取超时时间（如30s）"`
	WriteTimeout time.Duration `yaml:"write_timeout" mapstructure:"write_timeout" env:"HTTP_WRITE_TIMEOUT" validate:"required,gt=0" comment:"写入超时时间（如30s）"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" mapstructure:"idle_timeout" env:"HTTP_IDLE_TIMEOUT" validate:"required,gt=0" comment:"空闲连接超时时间（如60s）"`
}

// CollectorsConfig 各采集器配置（每项可独立启停、独立采集周期）
type CollectorsConfig struct {
	CPU     CPUCollectorConfig     `yaml:"cpu" mapstructure:"cpu" comment:"CPU采集器"`
	Memory  MemoryCollectorConfig  `yaml:"memory" mapstructure:"memory" comment:"内存采集器"`
	Disk    DiskCollectorConfig    `yaml:"disk" mapstructure:"disk" comment:"磁盘采集器"`
	Network NetworkCollectorConfig `yaml:"network" mapstructure:"network" comment:"网络采集器"`
	Process ProcessCollectorConfig `yaml:"process" mapstructure:"process" comment:"进程采集器"`
}

// CPUCollectorConfig CPU采集器配置
type CPUCollectorConfig struct {
	Enable   bool          `yaml:"enable" mapstructure:"enable" comment:"是否启用" default:"true"`
	Interval time.Duration `yaml:"interval" mapstructure:"interval" comment:"采集间隔" default:"5s"`
	PerCPU   bool          `yaml:"per_cpu" mapstructure:"per_cpu" comment:"是否按核心采集" default:"true"`
}

// MemoryCollectorConfig 内存采集器配置
type MemoryCollectorConfig struct {
	Enable   bool          `yaml:"enable" mapstructure:"enable" comment:"是否启用" default:"true"`
	Interval time.Duration `yaml:"interval" mapstructure:"interval" comment:"采集间隔" default:"5s"`
}

// DiskCollectorConfig 磁盘采集器配置
type DiskCollectorConfig struct {
	Enable             bool          `yaml:"enable" mapstructure:"enable" comment:"是否启用" default:"true"`
	Interval           time.Duration `yaml:"interval" mapstructure:"interval" comment:"采集间隔" default:"30s"`
	ExcludeFilesystems []string      `yaml:"exclude_filesystems" mapstructure:"exclude_filesystems" comment:"忽略的文件系统类型"`
	ExcludeMountPoints []string      `yaml:"exclude_mount_points" mapstructure:"exclude_mount_points" comment:"忽略的挂载点前缀"`
}

// NetworkCollectorConfig 网络采集器配置
type NetworkCollectorConfig struct {
	Enable            bool          `yaml:"enable" mapstructure:"enable" comment:"是否启用" default:"true"`
	Interval          time.Duration `yaml:"interval" mapstructure:"interval" comment:"采集间隔" default:"5s"`
	ExcludeInterfaces []string      `yaml:"exclude_interfaces" mapstructure:"exclude_interfaces" comment:"忽略的网络接口（如lo）"`
}

// ProcessCollectorConfig 进程采集器配置
type ProcessCollectorConfig struct {
	Enable   bool          `yaml:"enable" mapstructure:"enable" comment:"是否启用" default:"true"`
	Interval time.Duration `yaml:"interval" mapstructure:"interval" comment:"采集间隔" default:"10s"`
	TopN     int           `yaml:"top_n" mapstructure:"top_n" comment:"按CPU排序采集前N个进程" default:"20"`
}

// ResourceLimitConfig Agent自身资源限制（SelfMonitor消费）
type ResourceLimitConfig struct {
	MaxCPUPercent  float64       `yaml:"max_cpu_percent" mapstructure:"max_cpu_percent" validate:"gt=0" comment:"Agent自身CPU上限（百分比）" default:"2.0"`
	MaxMemoryMB    float64       `yaml:"max_memory_mb" mapstructure:"max_memory_mb" validate:"gt=0" comment:"Agent自身内存上限（MB）" default:"50"`
	CheckInterval  time.Duration `yaml:"check_interval" mapstructure:"check_interval" validate:"required,gt=0" comment:"自监控采样间隔" default:"60s"`
	WindowSize     int           `yaml:"window_size" mapstructure:"window_size" validate:"gt=0" comment:"持续越限判定的滑动窗口大小" default:"3"`
	ActionOnExceed string        `yaml:"action_on_exceed" mapstructure:"action_on_exceed" validate:"required,oneof=log disable_collectors stop" comment:"持续越限时的动作" default:"log"`
	CostRanking    []string      `yaml:"cost_ranking" mapstructure:"cost_ranking" comment:"采集器成本排序（最贵在前，disable_collectors按此顺序逐个禁用）"`
}

// AlertingConfig 告警配置
type AlertingConfig struct {
	Enable              bool           `yaml:"enable" mapstructure:"enable" comment:"是否启用告警" default:"false"`
	EvaluationInterval  time.Duration  `yaml:"evaluation_interval" mapstructure:"evaluation_interval" validate:"required,gt=0" comment:"规则评估周期" default:"30s"`
	RulesFile           string         `yaml:"rules_file" mapstructure:"rules_file" comment:"告警规则文件路径（YAML）"`
	CleanupEveryCycles  int            `yaml:"cleanup_every_cycles" mapstructure:"cleanup_every_cycles" validate:"gt=0" comment:"每N个评估周期触发一次历史清理" default:"100"`
	DispatchQueueSize   int            `yaml:"dispatch_queue_size" mapstructure:"dispatch_queue_size" validate:"gt=0" comment:"通知派发队列容量（满时丢弃最旧）" default:"128"`
	Storage             StorageConfig  `yaml:"storage" mapstructure:"storage" comment:"告警历史存储"`
	Channels            ChannelsConfig `yaml:"channels" mapstructure:"channels" comment:"通知渠道"`
}

// StorageConfig 告警历史存储配置（SQLite）
type StorageConfig struct {
	Path          string `yaml:"path" mapstructure:"path" validate:"required" comment:"SQLite数据库文件路径" default:"./data/alerts.db"`
	RetentionDays int    `yaml:"retention_days" mapstructure:"retention_days" validate:"gt=0" comment:"已解决告警保留天数" default:"30"`
	QueueSize     int    `yaml:"queue_size" mapstructure:"queue_size" validate:"gt=0" comment:"异步落库队列容量" default:"256"`
}

// ChannelsConfig 通知渠道配置
type ChannelsConfig struct {
	Email   EmailChannelConfig   `yaml:"email" mapstructure:"email" comment:"邮件渠道"`
	Slack   SlackChannelConfig   `yaml:"slack" mapstructure:"slack" comment:"Slack渠道"`
	Webhook WebhookChannelConfig `yaml:"webhook" mapstructure:"webhook" comment:"通用Webhook渠道"`
}

// EmailChannelConfig SMTP邮件渠道
type EmailChannelConfig struct {
	Enable      bool     `yaml:"enable" mapstructure:"enable" comment:"是否启用" default:"false"`
	SMTPHost    string   `yaml:"smtp_host" mapstructure:"smtp_host" comment:"SMTP服务器地址"`
	SMTPPort    int      `yaml:"smtp_port" mapstructure:"smtp_port" comment:"SMTP端口" default:"587"`
	Username    string   `yaml:"username" mapstructure:"username" env:"SMTP_USER" comment:"SMTP用户名"`
	Password    string   `yaml:"password" mapstructure:"password" env:"SMTP_PASSWORD" comment:"SMTP密码"`
	FromAddress string   `yaml:"from_address" mapstructure:"from_address" comment:"发件人地址"`
	ToAddresses []string `yaml:"to_addresses" mapstructure:"to_addresses" comment:"收件人列表"`
}

// SlackChannelConfig Slack Incoming Webhook渠道
type SlackChannelConfig struct {
	Enable     bool   `yaml:"enable" mapstructure:"enable" comment:"是否启用" default:"false"`
	WebhookURL string `yaml:"webhook_url" mapstructure:"webhook_url" env:"SLACK_WEBHOOK_URL" comment:"Incoming Webhook地址"`
	Channel    string `yaml:"channel" mapstructure:"channel" comment:"目标频道" default:"#alerts"`
	Username   string `yaml:"username" mapstructure:"username" comment:"显示名" default:"Metrics Agent"`
	IconEmoji  string `yaml:"icon_emoji" mapstructure:"icon_emoji" comment:"图标emoji" default:":rotating_light:"`
}

// WebhookChannelConfig 通用HTTP Webhook渠道
type WebhookChannelConfig struct {
	Enable  bool              `yaml:"enable" mapstructure:"enable" comment:"是否启用" default:"false"`
	URL     string            `yaml:"url" mapstructure:"url" comment:"目标地址"`
	Method  string            `yaml:"method" mapstructure:"method" comment:"HTTP方法（POST/PUT）" default:"POST"`
	Headers map[string]string `yaml:"headers" mapstructure:"headers" comment:"附加请求头"`
	Timeout time.Duration     `yaml:"timeout" mapstructure:"timeout" comment:"请求超时" default:"10s"`
}

// ZapLogConfig 日志配置
type ZapLogConfig struct {
	Level    string `yaml:"level" mapstructure:"level" env:"LOG_LEVEL" validate:"required,oneof=debug info warn error dpanic panic fatal" comment:"日志级别" default:"info"`
	Format   string `yaml:"format" mapstructure:"format" env:"LOG_FORMAT" validate:"required,oneof=json console" comment:"日志格式（json/console）" default:"json"`
	Path     string `yaml:"path" mapstructure:"path" env:"LOG_PATH" validate:"required" comment:"日志存储路径" default:"./logs"`
	MaxSize  int    `yaml:"max_size" mapstructure:"max_size" env:"LOG_MAX_SIZE" validate:"required,gt=0" comment:"单个日志文件最大大小（MB）" default:"100"`
	MaxAge   int    `yaml:"max_age" mapstructure:"max_age" env:"LOG_MAX_AGE" validate:"required,gte=0" comment:"日志文件最大保存天数" default:"7"`
	Compress bool   `yaml:"compress" mapstructure:"compress" env:"LOG_COMPRESS" comment:"是否压缩过期日志" default:"true"`
}

// NewDefaultConfig 创建默认配置（所有字段兜底，避免空指针/非法值）
func NewDefaultConfig() *Config {
	return &Config{
		Agent: AgentConfig{
			Hostname: "auto",
			Version:  "1.0.0",
		},
		Server: ServerConfig{
			Addr:         "0.0.0.0:9100",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Collectors: CollectorsConfig{
			CPU:    CPUCollectorConfig{Enable: true, Interval: 5 * time.Second, PerCPU: true},
			Memory: MemoryCollectorConfig{Enable: true, Interval: 5 * time.Second},
			Disk: DiskCollectorConfig{
				Enable:             true,
				Interval:           30 * time.Second,
				ExcludeFilesystems: []string{"tmpfs", "devtmpfs", "squashfs"},
				ExcludeMountPoints: []string{"/snap"},
			},
			Network: NetworkCollectorConfig{
				Enable:            true,
				Interval:          5 * time.Second,
				ExcludeInterfaces: []string{"lo"},
			},
			Process: ProcessCollectorConfig{Enable: true, Interval: 10 * time.Second, TopN: 20},
		},
		Limits: ResourceLimitConfig{
			MaxCPUPercent:  2.0,
			MaxMemoryMB:    50,
			CheckInterval:  60 * time.Second,
			WindowSize:     3,
			ActionOnExceed: "log",
			CostRanking:    []string{"process", "disk", "network", "cpu", "memory"},
		},
		Alerting: AlertingConfig{
			Enable:             false,
			EvaluationInterval: 30 * time.Second,
			CleanupEveryCycles: 100,
			DispatchQueueSize:  128,
			Storage: StorageConfig{
				Path:          "./data/alerts.db",
				RetentionDays: 30,
				QueueSize:     256,
			},
			Channels: ChannelsConfig{
				Email:   EmailChannelConfig{SMTPPort: 587},
				Slack:   SlackChannelConfig{Channel: "#alerts", Username: "Metrics Agent", IconEmoji: ":rotating_light:"},
				Webhook: WebhookChannelConfig{Method: "POST", Timeout: 10 * time.Second},
			},
		},
		Log: ZapLogConfig{
			Level:    "info",
			Format:   "json",
			Path:     "./logs",
			MaxSize:  100,
			MaxAge:   7,
			Compress: true,
		},
	}
}

// LoadConfigWithCli 支持 time.Duration，(Flags + YAML + ENV)
func LoadConfigWithCli(cmd *cobra.Command) (*Config, error) {
	cfg := NewDefaultConfig()
	v := viper.New()

	// 1. 绑定 Cobra Flags → Viper
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return nil, fmt.Errorf("bind flags: %w", err)
	}

	// 2. 解析配置文件 (--config)
	configFile, _ := cmd.Flags().GetString("config")
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", configFile, err)
		}
	}

	// 3. 绑定环境变量 ENV -> Viper （HTTP_ADDR -> http.addr）
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("_", "."))

	// 4. 解码反序列化到结构体（支持 time.Duration）
	decoderConfig := &mapstructure.DecoderConfig{
		Metadata:         nil,
		Result:           cfg,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	}

	decoder, err := mapstructure.NewDecoder(decoderConfig)
	if err != nil {
		return nil, fmt.Errorf("new decoder: %w", err)
	}

	if err := decoder.Decode(v.AllSettings()); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	// 5. 采集器级环境变量覆盖（COLLECTOR_<NAME>_ENABLED/_INTERVAL，优先级高于文件）
	if err := cfg.Collectors.ApplyEnvOverrides(os.LookupEnv); err != nil {
		return nil, fmt.Errorf("apply collector env overrides: %w", err)
	}

	// 6. 校验配置
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// ApplyEnvOverrides 应用 COLLECTOR_<NAME>_ENABLED / COLLECTOR_<NAME>_INTERVAL 约定
// lookup 可注入（单测传自定义map），环境值优先于文件值
func (c *CollectorsConfig) ApplyEnvOverrides(lookup func(string) (string, bool)) error {
	type target struct {
		name     string
		enable   *bool
		interval *time.Duration
	}
	targets := []target{
		{"CPU", &c.CPU.Enable, &c.CPU.Interval},
		{"MEMORY", &c.Memory.Enable, &c.Memory.Interval},
		{"DISK", &c.Disk.Enable, &c.Disk.Interval},
		{"NETWORK", &c.Network.Enable, &c.Network.Interval},
		{"PROCESS", &c.Process.Enable, &c.Process.Interval},
	}

	for _, t := range targets {
		if raw, ok := lookup("COLLECTOR_" + t.name + "_ENABLED"); ok {
			enabled, err := strconv.ParseBool(raw)
			if err != nil {
				return fmt.Errorf("COLLECTOR_%s_ENABLED=%q: %w", t.name, raw, err)
			}
			*t.enable = enabled
		}
		if raw, ok := lookup("COLLECTOR_" + t.name + "_INTERVAL"); ok {
			interval, err := time.ParseDuration(raw)
			if err != nil {
				// 兼容纯秒数写法（如 "30"）
				secs, sErr := strconv.Atoi(raw)
				if sErr != nil {
					return fmt.Errorf("COLLECTOR_%s_INTERVAL=%q: %w", t.name, raw, err)
				}
				interval = time.Duration(secs) * time.Second
			}
			*t.interval = interval
		}
	}
	return nil
}

// Validate 配置校验
func (c *Config) Validate() error {
	if err := valid.Struct(c); err != nil {
		return err
	}
	// 	1,校验Server服务配置
	if err := c.Server.Validate(); err != nil {
		return err
	}
	// 	2，校验采集配置
	if err := c.Collectors.Validate(); err != nil {
		return err
	}
	// 	3，校验自监控资源限制
	if err := c.Limits.Validate(&c.Collectors); err != nil {
		return err
	}
	// 	4，校验告警配置
	if err := c.Alerting.Validate(); err != nil {
		return err
	}
	return nil
}
