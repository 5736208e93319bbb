package logging

import (
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/time/rate"
	"gopkg.in/natefinch/lumberjack.v2"

	cfgpkg "github.com/taoyao-code/obci-gateway/internal/config"
)

// ParseLevel 解析日志级别，未知值按 info 处理
func ParseLevel(s string) zapcore.Level {
	switch strings.ToLower(s) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func encoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		TimeKey:        "ts",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		MessageKey:     "msg",
		StacktraceKey:  "stack",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     func(t time.Time, enc zapcore.PrimitiveArrayEncoder) { enc.AppendString(t.Format(time.RFC3339Nano)) },
		EncodeDuration: zapcore.MillisDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}
}

// InitLogger 初始化 zap 日志器：stdout + lumberjack 滚动文件；filename 为空时只写 stdout
func InitLogger(cfg cfgpkg.LoggingConfig) (*zap.Logger, error) {
	var encoder zapcore.Encoder
	if strings.ToLower(cfg.Format) == "console" {
		encoder = zapcore.NewConsoleEncoder(encoderConfig())
	} else {
		encoder = zapcore.NewJSONEncoder(encoderConfig())
	}

	syncers := []zapcore.WriteSyncer{zapcore.AddSync(os.Stdout)}
	if cfg.File.Filename != "" {
		syncers = append(syncers, zapcore.AddSync(&lumberjack.Logger{
			Filename:   cfg.File.Filename,
			MaxSize:    cfg.File.MaxSizeMB,
			MaxBackups: cfg.File.MaxBackups,
			MaxAge:     cfg.File.MaxAgeDays,
			Compress:   cfg.File.Compress,
		}))
	}

	core := zapcore.NewCore(encoder, zapcore.NewMultiWriteSyncer(syncers...), ParseLevel(cfg.Level))
	return zap.New(core, zap.AddCaller()), nil
}

// Throttled 限频日志：噪声数据流每包都失败时避免刷屏。
// 被抑制的条数在下一次放行时以 suppressed 字段带出。
type Throttled struct {
	log        *zap.Logger
	gate       rate.Sometimes
	suppressed int
}

// NewThrottled 每 interval 至多放行一条；interval<=0 时不限频
func NewThrottled(log *zap.Logger, interval time.Duration) *Throttled {
	t := &Throttled{log: log}
	if interval > 0 {
		t.gate = rate.Sometimes{First: 1, Interval: interval}
	} else {
		t.gate = rate.Sometimes{Every: 1}
	}
	return t
}

// Warn 限频输出 warn 日志。不可并发使用（每条连接一个实例）。
func (t *Throttled) Warn(msg string, fields ...zap.Field) {
	logged := false
	t.gate.Do(func() {
		logged = true
		if t.suppressed > 0 {
			fields = append(fields, zap.Int("suppressed", t.suppressed))
		}
		t.log.Warn(msg, fields...)
	})
	if logged {
		t.suppressed = 0
	} else {
		t.suppressed++
	}
}
