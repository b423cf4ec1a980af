package service

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/kardianos/service"
)

const (
	ServiceName        = "sentinel"
	ServiceDisplayName = "Sentinel"
	ServiceDescription = "Sentinel 监控告警引擎 - 采集指标、检查目标健康状态并产生告警"
)

// Runner 被托管的程序
type Runner interface {
	Start() error
	Stop() error
}

// program 实现 service.Interface，Runner 在 Start 时才创建
type program struct {
	newRunner func() (Runner, error)
	runner    Runner
}

// Start 服务管理器要求 Start 不阻塞
func (p *program) Start(s service.Service) error {
	runner, err := p.newRunner()
	if err != nil {
		return fmt.Errorf("初始化失败: %w", err)
	}
	p.runner = runner
	return runner.Start()
}

func (p *program) Stop(s service.Service) error {
	if p.runner == nil {
		return nil
	}
	return p.runner.Stop()
}

// ServiceManager 服务管理器
type ServiceManager struct {
	service service.Service
}

// NewServiceManager configPath 会被转换为绝对路径写入服务启动参数
func NewServiceManager(configPath string, newRunner func() (Runner, error)) (*ServiceManager, error) {
	execPath, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("获取可执行文件路径失败: %w", err)
	}

	args := []string{"service", "run"}
	if configPath != "" {
		abs, err := filepath.Abs(configPath)
		if err != nil {
			return nil, fmt.Errorf("解析配置文件路径失败: %w", err)
		}
		args = append(args, "--config", abs)
	}

	svcConfig := &service.Config{
		Name:        ServiceName,
		DisplayName: ServiceDisplayName,
		Description: ServiceDescription,
		Arguments:   args,
		Executable:  execPath,
		Option: service.KeyValue{
			// systemd
			"Restart":            "always",
			"RestartSec":         "10",
			"StartLimitInterval": "0",
			"KillMode":           "process",

			// Windows
			"OnFailure":    "restart",
			"ResetPeriod":  86400,
			"RestartDelay": 10000,

			// upstart/launchd
			"KeepAlive": true,
			"RunAtLoad": true,
		},
	}

	s, err := service.New(&program{newRunner: newRunner}, svcConfig)
	if err != nil {
		return nil, fmt.Errorf("创建服务失败: %w", err)
	}
	return &ServiceManager{service: s}, nil
}

func (m *ServiceManager) Install() error {
	return m.service.Install()
}

// Uninstall 先停止再卸载
func (m *ServiceManager) Uninstall() error {
	_ = m.service.Stop()
	return m.service.Uninstall()
}

func (m *ServiceManager) Start() error {
	return m.service.Start()
}

func (m *ServiceManager) Stop() error {
	return m.service.Stop()
}

func (m *ServiceManager) Restart() error {
	return m.service.Restart()
}

// Status 查看服务状态
func (m *ServiceManager) Status() (string, error) {
	status, err := m.service.Status()
	if err != nil {
		return "", err
	}
	return describeStatus(status), nil
}

// Run 在服务管理器控制下运行，阻塞直到服务停止
func (m *ServiceManager) Run() error {
	return m.service.Run()
}

func describeStatus(status service.Status) string {
	switch status {
	case service.StatusRunning:
		return "运行中 (Running)"
	case service.StatusStopped:
		return "已停止 (Stopped)"
	case service.StatusUnknown:
		return "未知 (Unknown)"
	default:
		return fmt.Sprintf("状态: %d", status)
	}
}
