package pkg

import (
	"context"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// NewLogger 根据日志配置创建 zap.Logger
func NewLogger(logConfig *LogConfig) *zap.Logger {
	lumberJackLogger := &lumberjack.Logger{
		Filename:   logConfig.LogPath,    // 日志文件路径
		MaxSize:    logConfig.MaxSize,    // megabytes
		MaxBackups: logConfig.MaxBackups, // number of backups
		MaxAge:     logConfig.MaxAge,     // days
		Compress:   logConfig.Compress,   // compress old logs
		LocalTime:  true,
	}

	// 创建编码器配置
	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "timestamp",
		LevelKey:       "level",
		NameKey:        "log",
		CallerKey:      "caller",
		MessageKey:     "msg",
		StacktraceKey:  "trace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalColorLevelEncoder, // 带颜色
		EncodeTime:     zapcore.ISO8601TimeEncoder,       // ISO8601时间格式
		EncodeDuration: zapcore.SecondsDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder, // 简短的调用者编码器 (文件名和行号)
	}

	encoder := zapcore.NewJSONEncoder(encoderConfig)

	// 解析日志级别
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(logConfig.Level)); err != nil {
		level = zap.InfoLevel // 默认日志级别为 InfoLevel
	}
	// 创建一个核心，它将所有日志写入 combinedSyncer
	core := zapcore.NewCore(
		encoder,
		zapcore.NewMultiWriteSyncer(zapcore.AddSync(os.Stdout), zapcore.AddSync(lumberJackLogger)),
		level,
	)
	// 创建 Logger 并添加调用者信息和堆栈跟踪
	logger := zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
	return logger
}

// 定义一个不导出的 key 类型，避免 context key 冲突
type loggerKey struct{}

// WithLogger 将 zap.Logger 存入 context 中
func WithLogger(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// WithLoggerAndModule 将带有模块信息的 zap.Logger 存入 context 中
func WithLoggerAndModule(ctx context.Context, logger *zap.Logger, module string) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger.With(zap.String("module", module)))
}

// LoggerFromContext 从 context 中提取 logger，没有则返回 no-op logger
func LoggerFromContext(ctx context.Context) *zap.Logger {
	if logger, ok := ctx.Value(loggerKey{}).(*zap.Logger); ok {
		return logger
	}
	return zap.NewNop()
}
