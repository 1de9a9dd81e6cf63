package broadcast

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// BroadcastLoggerAdapter 是一个自定义的zapcore.Core实现，用于将日志广播到WebSocket
type BroadcastLoggerAdapter struct {
	zapcore.LevelEnabler
	step    string
	service *BroadcastService
	encoder zapcore.Encoder
}

// NewBroadcastLoggerAdapter 创建一个新的广播日志适配器，通常与原 core 组合:
//
//	zapcore.NewTee(logger.Core(), NewBroadcastLoggerAdapter(...))
func NewBroadcastLoggerAdapter(step string, service *BroadcastService, level zapcore.LevelEnabler) *BroadcastLoggerAdapter {
	return &BroadcastLoggerAdapter{
		LevelEnabler: level,
		step:         step,
		service:      service,
		encoder:      zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()),
	}
}

// With 添加字段并返回新的Core
func (b *BroadcastLoggerAdapter) With(fields []zapcore.Field) zapcore.Core {
	enc := b.encoder.Clone()
	for _, f := range fields {
		f.AddTo(enc)
	}
	return &BroadcastLoggerAdapter{
		LevelEnabler: b.LevelEnabler,
		step:         b.step,
		service:      b.service,
		encoder:      enc,
	}
}

// Check 检查日志级别是否启用
func (b *BroadcastLoggerAdapter) Check(entry zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if b.Enabled(entry.Level) {
		return ce.AddCore(entry, b)
	}
	return ce
}

// Write 将日志条目广播到WebSocket
func (b *BroadcastLoggerAdapter) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	buffer, err := b.encoder.EncodeEntry(entry, fields)
	if err != nil {
		return err
	}
	message := strings.TrimSpace(buffer.String())
	buffer.Free()

	logType := TypeLog
	if entry.Level >= zapcore.WarnLevel {
		logType = TypeError
	}

	b.service.Publish(Event{
		Step:      b.step,
		Type:      logType,
		Message:   message,
		Timestamp: entry.Time.Format("2006-01-02 15:04:05"),
	})
	return nil
}

// Sync 无需刷新
func (b *BroadcastLoggerAdapter) Sync() error {
	return nil
}

// Tee 返回同时写原日志和广播的 logger
func Tee(logger *zap.Logger, step string, service *BroadcastService) *zap.Logger {
	adapter := NewBroadcastLoggerAdapter(step, service, zapcore.InfoLevel)
	return logger.WithOptions(zap.WrapCore(func(core zapcore.Core) zapcore.Core {
		return zapcore.NewTee(core, adapter)
	}))
}
