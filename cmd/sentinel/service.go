package main

import (
	"github.com/dushixiang/sentinel/internal/app"
	agentservice "github.com/dushixiang/sentinel/pkg/agent/service"
	"github.com/spf13/cobra"
)

func newServiceCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "service",
		Short: "以系统服务方式管理 Sentinel",
	}

	manager := func() (*agentservice.ServiceManager, error) {
		return agentservice.NewServiceManager(*configPath, func() (agentservice.Runner, error) {
			return app.New(*configPath)
		})
	}

	action := func(use, short, done string, fn func(m *agentservice.ServiceManager) error) *cobra.Command {
		return &cobra.Command{
			Use:   use,
			Short: short,
			RunE: func(cmd *cobra.Command, args []string) error {
				m, err := manager()
				if err != nil {
					return err
				}
				if err := fn(m); err != nil {
					return err
				}
				if done != "" {
					cmd.Println(done)
				}
				return nil
			},
		}
	}

	cmd.AddCommand(
		action("install", "安装服务", "服务安装成功", (*agentservice.ServiceManager).Install),
		action("uninstall", "卸载服务", "服务已卸载", (*agentservice.ServiceManager).Uninstall),
		action("start", "启动服务", "服务已启动", (*agentservice.ServiceManager).Start),
		action("stop", "停止服务", "服务已停止", (*agentservice.ServiceManager).Stop),
		action("restart", "重启服务", "服务已重启", (*agentservice.ServiceManager).Restart),
		action("run", "由服务管理器调用", "", (*agentservice.ServiceManager).Run),
		&cobra.Command{
			Use:   "status",
			Short: "查看服务状态",
			RunE: func(cmd *cobra.Command, args []string) error {
				m, err := manager()
				if err != nil {
					return err
				}
				status, err := m.Status()
				if err != nil {
					return err
				}
				cmd.Println(status)
				return nil
			},
		},
	)
	return cmd
}
