package database

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm/logger"
)

// sqliteHealthLogger counts busy and locked errors before handing every
// call to the wrapped gorm logger.
type sqliteHealthLogger struct {
	inner logger.Interface
	log   logrus.FieldLogger
}

func (l sqliteHealthLogger) LogMode(level logger.LogLevel) logger.Interface {
	return sqliteHealthLogger{inner: l.inner.LogMode(level), log: l.log}
}

func (l sqliteHealthLogger) Info(ctx context.Context, s string, args ...interface{}) {
	l.inner.Info(ctx, s, args...)
}

func (l sqliteHealthLogger) Warn(ctx context.Context, s string, args ...interface{}) {
	l.inner.Warn(ctx, s, args...)
}

func (l sqliteHealthLogger) Error(ctx context.Context, s string, args ...interface{}) {
	l.inner.Error(ctx, s, args...)
}

func (l sqliteHealthLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if busy, locked := recordSQLiteError(err); busy || locked {
		l.log.WithError(err).WithField("locked", locked).Warn("sqlite contention")
	}
	l.inner.Trace(ctx, begin, fc, err)
}
