package database

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"gorm.io/gorm"
)

var sqliteBusyErrors uint64
var sqliteLockedErrors uint64

// SQLiteHealth is reported by the health endpoint.
type SQLiteHealth struct {
	Up           bool   `json:"up"`
	BusyErrors   uint64 `json:"busy_errors"`
	LockedErrors uint64 `json:"locked_errors"`
}

func classifySQLiteError(err error) (busy bool, locked bool) {
	if err == nil {
		return false, false
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false, false
	}

	msg := strings.ToLower(err.Error())

	if strings.Contains(msg, "sqlite_busy") || strings.Contains(msg, "database is locked") || strings.Contains(msg, "busy timeout") {
		busy = true
	}
	if strings.Contains(msg, "sqlite_locked") || strings.Contains(msg, "database table is locked") {
		locked = true
	}

	return busy, locked
}

func recordSQLiteError(err error) (busy bool, locked bool) {
	busy, locked = classifySQLiteError(err)
	if busy {
		atomic.AddUint64(&sqliteBusyErrors, 1)
	}
	if locked {
		atomic.AddUint64(&sqliteLockedErrors, 1)
	}
	return busy, locked
}

// Health pings db and returns it together with the contention counters.
// A nil db is reported as down.
func Health(ctx context.Context, db *gorm.DB) SQLiteHealth {
	return SQLiteHealth{
		Up:           ping(ctx, db),
		BusyErrors:   atomic.LoadUint64(&sqliteBusyErrors),
		LockedErrors: atomic.LoadUint64(&sqliteLockedErrors),
	}
}

func ping(ctx context.Context, db *gorm.DB) bool {
	if db == nil {
		return false
	}

	sqlDB, err := db.DB()
	if err != nil {
		return false
	}

	if deadline, ok := ctx.Deadline(); !ok || time.Until(deadline) <= 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 200*time.Millisecond)
		defer cancel()
	}

	return sqlDB.PingContext(ctx) == nil
}
