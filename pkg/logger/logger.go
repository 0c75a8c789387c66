package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	rotatelogs "github.com/lestrrat-go/file-rotatelogs"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/metrics-agent/config"
)

type Logger = zap.Logger

var (
	baseLogger        *zap.Logger
	loggerInitOnce    sync.Once
	loggerInitialized bool

	fallbackLogger *zap.Logger
	fallbackOnce   sync.Once
)

// Init 初始化全局日志器：控制台彩色输出 + 滚动JSON日志文件（双写）
func Init(cfg config.ZapLogConfig) error {
	var err error
	loggerInitOnce.Do(func() {
		level := zapcore.InfoLevel
		switch strings.ToLower(cfg.Level) {
		case "dbg", "debug":
			level = zapcore.DebugLevel
		case "inf", "info":
			level = zapcore.InfoLevel
		case "war", "warn":
			level = zapcore.WarnLevel
		case "err", "error":
			level = zapcore.ErrorLevel
		case "pan", "panic":
			level = zapcore.PanicLevel
		case "fat", "fatal":
			level = zapcore.FatalLevel
		}

		if err = os.MkdirAll(cfg.Path, 0755); err != nil {
			return
		}

		writer, wErr := rotatelogs.New(
			filepath.Join(cfg.Path, "agent-%Y%m%d.log"),
			rotatelogs.WithMaxAge(time.Duration(cfg.MaxAge)*24*time.Hour),
			rotatelogs.WithRotationTime(24*time.Hour),
			rotatelogs.WithRotationSize(int64(cfg.MaxSize)*1024*1024),
		)
		if wErr != nil {
			err = wErr
			return
		}

		// 控制台彩色时间
		customTimeEncoderConsole := func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
			enc.AppendString(fmt.Sprintf("\033[34m%s\033[0m", t.Format("2006-01-02 15:04:05.000 -07:00")))
		}

		// JSON 日志纯文本时间
		customTimeEncoderJSON := func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
			enc.AppendString(t.Format("2006-01-02 15:04:05.000 -07:00"))
		}

		coloredLevelEncoder := func(level zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
			var levelStr string
			switch level {
			case zapcore.DebugLevel:
				levelStr = "\033[36mDEBUG\033[0m"
			case zapcore.InfoLevel:
				levelStr = "\033[32mINFO \033[0m"
			case zapcore.WarnLevel:
				levelStr = "\033[33mWARN \033[0m"
			case zapcore.ErrorLevel:
				levelStr = "\033[31mERROR\033[0m"
			case zapcore.DPanicLevel:
				levelStr = "\033[35mDPANIC\033[0m"
			case zapcore.PanicLevel:
				levelStr = "\033[35mPANIC\033[0m"
			case zapcore.FatalLevel:
				levelStr = "\033[35mFATAL\033[0m"
			default:
				levelStr = "UNK  "
			}
			enc.AppendString(levelStr)
		}

		consoleEncoderCfg := zap.NewDevelopmentEncoderConfig()
		consoleEncoderCfg.ConsoleSeparator = " "
		consoleEncoderCfg.EncodeLevel = coloredLevelEncoder
		consoleEncoderCfg.EncodeTime = customTimeEncoderConsole

		// Caller 两级路径
		consoleEncoderCfg.EncodeCaller = func(c zapcore.EntryCaller, enc zapcore.PrimitiveArrayEncoder) {
			rel := filepath.Join(filepath.Base(filepath.Dir(c.File)), filepath.Base(c.File))
			enc.AppendString(fmt.Sprintf("%s:%d", rel, c.Line))
		}

		consoleEncoder := zapcore.NewConsoleEncoder(consoleEncoderCfg)

		jsonCfg := zap.NewProductionEncoderConfig()
		jsonCfg.TimeKey = "timestamp"
		jsonCfg.EncodeTime = customTimeEncoderJSON
		jsonCfg.EncodeLevel = zapcore.LowercaseLevelEncoder
		jsonEncoder := zapcore.NewJSONEncoder(jsonCfg)

		core := zapcore.NewTee(
			zapcore.NewCore(consoleEncoder, zapcore.AddSync(os.Stdout), level),
			zapcore.NewCore(jsonEncoder, zapcore.AddSync(writer), level),
		)

		baseLogger = zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1), zap.AddStacktrace(zapcore.ErrorLevel))
		loggerInitialized = true
	})
	return err
}

// fallback 未显式Init时的兜底日志器（仅控制台，测试与启动早期错误可用）
func fallback() *zap.Logger {
	fallbackOnce.Do(func() {
		fallbackLogger, _ = zap.NewDevelopment(zap.AddCallerSkip(1))
	})
	return fallbackLogger
}

func log(level zapcore.Level, msg string, fields ...zapcore.Field) {
	if !loggerInitialized {
		fallback().Check(level, msg).Write(fields...)
		return
	}

	switch level {
	case zap.DebugLevel:
		baseLogger.Debug(msg, fields...)
	case zap.InfoLevel:
		baseLogger.Info(msg, fields...)
	case zap.WarnLevel:
		baseLogger.Warn(msg, fields...)
	case zap.ErrorLevel:
		baseLogger.Error(msg, fields...)
	case zap.PanicLevel:
		baseLogger.Panic(msg, fields...)
	case zap.FatalLevel:
		baseLogger.Fatal(msg, fields...)
	}
}

func Debug(msg string, fields ...zapcore.Field) {
	log(zap.DebugLevel, msg, fields...)
}
func Info(msg string, fields ...zapcore.Field) {
	log(zap.InfoLevel, msg, fields...)
}
func Warn(msg string, fields ...zapcore.Field) {
	log(zap.WarnLevel, msg, fields...)
}
func Error(msg string, fields ...zapcore.Field) {
	log(zap.ErrorLevel, msg, fields...)
}
func Panic(msg string, fields ...zapcore.Field) {
	log(zap.PanicLevel, msg, fields...)
}
func Fatal(msg string, fields ...zapcore.Field) {
	log(zap.FatalLevel, msg, fields...)
}

func Sync() error {
	if !loggerInitialized {
		return nil
	}
	return baseLogger.Sync()
}

func GetLogger() *zap.Logger {
	if !loggerInitialized {
		return fallback()
	}
	return baseLogger
}
