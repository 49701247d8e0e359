package utils

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger 全局日志器
// InitLogger之前为禁用状态,库代码和测试中调用不会产生输出
var Logger = zerolog.Nop()

const (
	mainLogName  = "webgrab.log"
	errorLogName = "webgrab_error.log"
)

// LogConfig 日志配置
type LogConfig struct {
	Level      string    // 日志级别: trace, debug, info, warn, error, fatal, panic
	LogDir     string    // 日志目录
	MaxSize    int       // 单个日志文件最大大小(MB)
	MaxBackups int       // 保留的旧日志文件数量
	MaxAge     int       // 保留天数
	Compress   bool      // 是否压缩旧日志
	Console    io.Writer // 控制台输出,默认stderr
}

// DefaultLogConfig 默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:      "info",
		LogDir:     "logs",
		MaxSize:    10,
		MaxBackups: 3,
		MaxAge:     28,
		Compress:   true,
	}
}

// logFiles 当前打开的轮转文件,重新初始化时关闭
var logFiles []*lumberjack.Logger

// InitLogger 初始化日志系统
// 控制台写到stderr(stdout留给运行摘要),主日志记录全部级别,错误日志只记录error及以上
// 可重复调用,上一次打开的日志文件会被关闭
func InitLogger(config LogConfig) error {
	if err := os.MkdirAll(config.LogDir, 0755); err != nil {
		return err
	}

	level, err := zerolog.ParseLevel(config.Level)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	for _, f := range logFiles {
		_ = f.Close()
	}
	mainLog := rotatingFile(config, mainLogName)
	errorLog := rotatingFile(config, errorLogName)
	logFiles = []*lumberjack.Logger{mainLog, errorLog}

	console := config.Console
	if console == nil {
		console = os.Stderr
	}

	Logger = zerolog.New(zerolog.MultiLevelWriter(
		zerolog.ConsoleWriter{
			Out:        console,
			TimeFormat: time.RFC3339,
			NoColor:    console != os.Stderr,
		},
		mainLog,
		&FilteredWriter{Writer: errorLog, MinLevel: zerolog.ErrorLevel},
	)).With().Timestamp().Logger()
	log.Logger = Logger

	Logger.Debug().
		Str("level", level.String()).
		Str("log_dir", config.LogDir).
		Msg("日志系统初始化完成")
	return nil
}

func rotatingFile(config LogConfig, name string) *lumberjack.Logger {
	return &lumberjack.Logger{
		Filename:   filepath.Join(config.LogDir, name),
		MaxSize:    config.MaxSize,
		MaxBackups: config.MaxBackups,
		MaxAge:     config.MaxAge,
		Compress:   config.Compress,
	}
}

// FilteredWriter 过滤写入器,仅写入指定级别及以上的日志
type FilteredWriter struct {
	Writer   io.Writer
	MinLevel zerolog.Level
}

// Write 实现io.Writer接口
// 不带级别的写入一律丢弃,级别过滤只通过WriteLevel进行
func (w *FilteredWriter) Write(p []byte) (n int, err error) {
	return len(p), nil
}

// WriteLevel 带级别的写入
func (w *FilteredWriter) WriteLevel(level zerolog.Level, p []byte) (n int, err error) {
	if level >= w.MinLevel {
		return w.Writer.Write(p)
	}
	return len(p), nil
}

func Info(msg string) { Logger.Info().Msg(msg) }

func Infof(format string, args ...any) { Logger.Info().Msgf(format, args...) }

func Warn(msg string) { Logger.Warn().Msg(msg) }

func Warnf(format string, args ...any) { Logger.Warn().Msgf(format, args...) }

// Error 带err字段的错误日志
func Error(err error, msg string) { Logger.Error().Err(err).Msg(msg) }

func Errorf(format string, args ...any) { Logger.Error().Msgf(format, args...) }

func Debug(msg string) { Logger.Debug().Msg(msg) }

func Debugf(format string, args ...any) { Logger.Debug().Msgf(format, args...) }

// ResourceWarn 单个资源失败,附带url字段便于在日志文件中检索
func ResourceWarn(url string, err error, msg string) {
	Logger.Warn().Str("url", url).Err(err).Msg(msg)
}
