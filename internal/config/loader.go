package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/dushixiang/sentinel/internal/validation"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// EnvPrefix 环境变量前缀，例如 SENTINEL_HTTP_ADDR
const EnvPrefix = "SENTINEL"

func setDefaults(v *viper.Viper) {
	v.SetDefault("Log.Level", "info")
	v.SetDefault("Log.Format", "console")
	v.SetDefault("Log.MaxSize", 100)
	v.SetDefault("Log.MaxBackups", 5)
	v.SetDefault("Log.MaxAge", 30)

	v.SetDefault("Monitor.SweepInterval", 5*time.Minute)
	v.SetDefault("Monitor.MetricRetention", 24*time.Hour)
	v.SetDefault("Monitor.AlertHistoryLimit", 1000)
	v.SetDefault("Monitor.EscalateAfter", time.Duration(0))
	v.SetDefault("Monitor.DefaultTimeout", 10*time.Second)
	v.SetDefault("Monitor.CollectSystemMetrics", true)

	v.SetDefault("HTTP.Enabled", true)
	v.SetDefault("HTTP.Addr", ":8090")

	v.SetDefault("Storage.Enabled", false)
	v.SetDefault("Storage.Driver", "sqlite")
	v.SetDefault("Storage.DSN", "sentinel.db")
	v.SetDefault("Storage.Retention", 30*24*time.Hour)

	v.SetDefault("Notify.Enabled", false)
	v.SetDefault("Notify.MinLevel", "warning")
	v.SetDefault("Notify.MaxRetries", 3)
}

// Loader 读取配置文件并支持热更新
type Loader struct {
	v      *viper.Viper
	logger *zap.Logger
}

// NewLoader path 为空时按默认位置查找 sentinel.yaml，找不到则只使用默认值与环境变量
func NewLoader(path string, logger *zap.Logger) *Loader {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("sentinel")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/sentinel")
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return &Loader{v: v, logger: logger}
}

// Load 读取并校验配置
func (l *Loader) Load() (*AppConfig, error) {
	if err := l.v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
		l.logger.Info("未找到配置文件，使用默认配置")
	}
	return l.decode()
}

func (l *Loader) decode() (*AppConfig, error) {
	var cfg AppConfig
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := validation.Struct(cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SetLogger 日志配置加载完成后替换启动阶段的 logger
func (l *Loader) SetLogger(logger *zap.Logger) {
	l.logger = logger
}

// ConfigFile 当前使用的配置文件
func (l *Loader) ConfigFile() string {
	return l.v.ConfigFileUsed()
}

// Watch 配置文件变化时重新加载，校验失败的配置会被忽略
func (l *Loader) Watch(onChange func(cfg *AppConfig)) {
	if l.v.ConfigFileUsed() == "" {
		return
	}
	l.v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		cfg, err := l.decode()
		if err != nil {
			l.logger.Error("重新加载配置失败", zap.String("file", e.Name), zap.Error(err))
			return
		}
		l.logger.Info("配置已重新加载", zap.String("file", e.Name))
		onChange(cfg)
	})
	l.v.WatchConfig()
}

// Marshal 输出 YAML 格式的配置
func Marshal(cfg *AppConfig) ([]byte, error) {
	return yaml.Marshal(cfg)
}
