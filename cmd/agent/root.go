package agent

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/metrics-agent/config"
)

var (
	cfgFile   string
	GlobalCfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "metrics-agent",
	Short: "Host monitoring agent: system metrics collection with Prometheus exposition and rule-based alerting",
	RunE: func(cmd *cobra.Command, args []string) error {
		var err error
		GlobalCfg, err = config.LoadConfigWithCli(cmd)
		if err != nil {
			// 统一输出错误到 stderr，不返回给 cobra
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			fmt.Fprintf(os.Stderr, "请检查配置文件路径或使用 -c 参数指定\n")
			os.Exit(1)
		}
		if err := runAgent(cmd.Context(), GlobalCfg); err != nil {
			fmt.Fprintf(os.Stderr, "服务启动失败: %v\n", err)
			os.Exit(1)
		}
		return nil
	},
}

func Execute() {
	cobra.CheckErr(rootCmd.Execute())
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "configs/config.yaml", "配置文件路径")
	// 注册分组 flag
	initServerFlags(rootCmd)
	initCollectorFlags(rootCmd)
	initLimitFlags(rootCmd)
	initAlertingFlags(rootCmd)
	initLogFlags(rootCmd)
}
