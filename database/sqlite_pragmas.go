package database

import (
	"errorshield/config"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// pragma is one SQLite PRAGMA. Values are validated before they get here,
// so they are safe to splice into a statement.
type pragma struct {
	name  string
	value string
}

func (p pragma) dsnParam() string {
	return p.name + "(" + p.value + ")"
}

func (p pragma) statement() string {
	return "PRAGMA " + p.name + " = " + p.value
}

var (
	journalModes = []string{"WAL", "DELETE", "TRUNCATE", "PERSIST", "MEMORY", "OFF"}
	syncModes    = []string{"OFF", "NORMAL", "FULL", "EXTRA"}
)

// settingsPragmas returns the PRAGMAs the settings store runs with. Unknown
// journal or synchronous modes are skipped so SQLite keeps its own default.
func settingsPragmas(settings *config.Config) []pragma {
	if !settings.SQLitePragmasEnabled {
		return nil
	}

	var out []pragma
	if settings.SQLiteBusyTimeoutMS > 0 {
		out = append(out, pragma{"busy_timeout", strconv.Itoa(settings.SQLiteBusyTimeoutMS)})
	}
	if mode, ok := pickMode(settings.SQLiteJournalMode, journalModes); ok {
		out = append(out, pragma{"journal_mode", mode})
	}
	if mode, ok := pickMode(settings.SQLiteSynchronous, syncModes); ok {
		out = append(out, pragma{"synchronous", mode})
	}
	fk := "0"
	if settings.SQLiteForeignKeys {
		fk = "1"
	}
	return append(out, pragma{"foreign_keys", fk})
}

func pickMode(value string, allowed []string) (string, bool) {
	value = strings.ToUpper(strings.TrimSpace(value))
	for _, mode := range allowed {
		if value == mode {
			return mode, true
		}
	}
	return "", false
}

// sqliteDSN appends the pragmas as _pragma parameters, keeping whatever query
// the configured path already carries.
func sqliteDSN(path string, pragmas []pragma) string {
	base, rawQuery, _ := strings.Cut(path, "?")
	query, _ := url.ParseQuery(rawQuery)
	for _, p := range pragmas {
		query.Add("_pragma", p.dsnParam())
	}
	if len(query) == 0 {
		return base
	}
	return base + "?" + query.Encode()
}

// poolLimits are the database/sql pool settings, clamped to values
// database/sql accepts. SQLite wants a single writer, so at least one open
// connection and never more idle than open.
type poolLimits struct {
	maxOpen     int
	maxIdle     int
	idleTime    time.Duration
	maxLifetime time.Duration
}

func settingsPoolLimits(settings *config.Config) poolLimits {
	limits := poolLimits{
		maxOpen:     max(settings.SQLiteMaxOpenConns, 1),
		maxIdle:     max(settings.SQLiteMaxIdleConns, 0),
		idleTime:    time.Duration(max(settings.SQLiteConnMaxIdleSec, 0)) * time.Second,
		maxLifetime: time.Duration(max(settings.SQLiteConnMaxLifeSec, 0)) * time.Second,
	}
	limits.maxIdle = min(limits.maxIdle, limits.maxOpen)
	return limits
}
