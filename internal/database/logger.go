package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const slowQueryThreshold = 200 * time.Millisecond

// zapLogger sends gorm's log output to zap.
type zapLogger struct {
	log   *zap.Logger
	level gormlogger.LogLevel
	slow  time.Duration
}

var _ gormlogger.Interface = (*zapLogger)(nil)

func newZapLogger(log *zap.Logger, level gormlogger.LogLevel) *zapLogger {
	return &zapLogger{log: log.Named("gorm"), level: level, slow: slowQueryThreshold}
}

func (l *zapLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	clone := *l
	clone.level = level
	return &clone
}

func (l *zapLogger) Info(_ context.Context, msg string, args ...interface{}) {
	if l.level >= gormlogger.Info {
		l.log.Info(fmt.Sprintf(msg, args...))
	}
}

func (l *zapLogger) Warn(_ context.Context, msg string, args ...interface{}) {
	if l.level >= gormlogger.Warn {
		l.log.Warn(fmt.Sprintf(msg, args...))
	}
}

func (l *zapLogger) Error(_ context.Context, msg string, args ...interface{}) {
	if l.level >= gormlogger.Error {
		l.log.Error(fmt.Sprintf(msg, args...))
	}
}

// Trace logs failed and slow statements. A missing record is not a failure.
func (l *zapLogger) Trace(_ context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level <= gormlogger.Silent {
		return
	}
	elapsed := time.Since(begin)

	switch {
	case err != nil && l.level >= gormlogger.Error && !errors.Is(err, gorm.ErrRecordNotFound):
		sql, rows := fc()
		l.log.Error("Query failed", zap.Error(err), zap.String("sql", sql), zap.Int64("rows", rows), zap.Duration("took", elapsed))
	case elapsed > l.slow && l.level >= gormlogger.Warn:
		sql, rows := fc()
		l.log.Warn("Slow query", zap.String("sql", sql), zap.Int64("rows", rows), zap.Duration("took", elapsed))
	case l.level >= gormlogger.Info:
		sql, rows := fc()
		l.log.Debug("Query", zap.String("sql", sql), zap.Int64("rows", rows), zap.Duration("took", elapsed))
	}
}
