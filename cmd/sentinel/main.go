package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "sentinel",
		Short:         "Sentinel 监控告警引擎",
		Long:          "采集指标、按阈值产生告警、定期检查监控目标的健康状态",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "配置文件路径，默认查找 ./sentinel.yaml 与 /etc/sentinel/sentinel.yaml")

	root.AddCommand(
		newRunCmd(&configPath),
		newConfigCmd(&configPath),
		newServiceCmd(&configPath),
		&cobra.Command{
			Use:   "version",
			Short: "显示版本",
			Run: func(cmd *cobra.Command, args []string) {
				cmd.Println(version)
			},
		},
	)
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "错误:", err)
		os.Exit(1)
	}
}
