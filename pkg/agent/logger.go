package agent

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogConfig 日志配置
type LogConfig struct {
	Level      string `mapstructure:"Level" yaml:"Level" json:"Level" validate:"omitempty,oneof=debug info warn error"`
	Format     string `mapstructure:"Format" yaml:"Format" json:"Format" validate:"omitempty,oneof=console json"`
	File       string `mapstructure:"File" yaml:"File" json:"File"`
	MaxSize    int    `mapstructure:"MaxSize" yaml:"MaxSize" json:"MaxSize"`          // MB
	MaxBackups int    `mapstructure:"MaxBackups" yaml:"MaxBackups" json:"MaxBackups"` // 保留的旧日志文件数
	MaxAge     int    `mapstructure:"MaxAge" yaml:"MaxAge" json:"MaxAge"`             // 天数
	Compress   bool   `mapstructure:"Compress" yaml:"Compress" json:"Compress"`
}

func parseLevel(level string) zapcore.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// NewLogger 创建 zap 日志，配置了文件时使用 lumberjack 滚动
func NewLogger(cfg LogConfig) *zap.Logger {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05.000")

	var encoder zapcore.Encoder
	if cfg.Format == "json" {
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	} else {
		encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	}

	var writer zapcore.WriteSyncer
	if cfg.File != "" {
		writer = zapcore.AddSync(&lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge,
			Compress:   cfg.Compress,
		})
	} else {
		writer = zapcore.Lock(os.Stdout)
	}

	core := zapcore.NewCore(encoder, writer, zap.NewAtomicLevelAt(parseLevel(cfg.Level)))
	return zap.New(core, zap.AddCaller())
}
