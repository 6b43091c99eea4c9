package config

import (
	"errorshield/version"
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds errorshield runtime configuration.
type Config struct {
	LogLevel             string
	LogFilePath          string
	Port                 int
	DatabaseURL          string
	SQLitePragmasEnabled bool
	SQLiteBusyTimeoutMS  int
	SQLiteJournalMode    string
	SQLiteSynchronous    string
	SQLiteForeignKeys    bool
	SQLiteMaxOpenConns   int
	SQLiteMaxIdleConns   int
	SQLiteConnMaxIdleSec int
	SQLiteConnMaxLifeSec int
	CLIMode              bool
	CLIServer            string // Server URL for CLI mode

	// Shield
	ContentRoot       string // Parent of the default log directory
	HomeURL           string // Redirect target for suppressed front-end failures
	AdminPathPrefix   string // Requests under this prefix are administrative
	AdminPasswordHash string // bcrypt hash for the admin API; empty disables auth
	HtaccessPath      string // Web server config inspected by the hardening check
	AdminAllowCIDRs   string // Comma separated; empty admits every address
	AdminDenyCIDRs    string

	// Front-end site
	UpstreamURL string // Reverse proxy target; empty serves SiteDir
	SiteDir     string
	DemoRoutes  bool
}

// Settings is the global configuration instance populated from environment variables and flags.
var Settings *Config

// init loads an optional .env file and initializes Settings from the environment.
func init() {
	// .env is optional; real environment variables take precedence
	_ = godotenv.Load()

	Settings = &Config{
		LogLevel:             getEnv("LOG_LEVEL", "INFO"),
		LogFilePath:          getEnv("LOG_FILE", "./errorshield.log"),
		Port:                 getEnvInt("PORT", 8080),
		DatabaseURL:          getEnv("DATABASE_URL", "errorshield.db"),
		SQLitePragmasEnabled: getEnvBool("SQLITE_PRAGMAS_ENABLED", true),
		SQLiteBusyTimeoutMS:  getEnvInt("SQLITE_BUSY_TIMEOUT_MS", 5000),
		SQLiteJournalMode:    getEnv("SQLITE_JOURNAL_MODE", "WAL"),
		SQLiteSynchronous:    getEnv("SQLITE_SYNCHRONOUS", "NORMAL"),
		SQLiteForeignKeys:    getEnvBool("SQLITE_FOREIGN_KEYS", true),
		SQLiteMaxOpenConns:   getEnvInt("SQLITE_MAX_OPEN_CONNS", 1),
		SQLiteMaxIdleConns:   getEnvInt("SQLITE_MAX_IDLE_CONNS", 1),
		SQLiteConnMaxIdleSec: getEnvInt("SQLITE_CONN_MAX_IDLE_SECONDS", 300),
		SQLiteConnMaxLifeSec: getEnvInt("SQLITE_CONN_MAX_LIFETIME_SECONDS", 0),
		CLIMode:              getEnvBool("CLI_MODE", false),

		ContentRoot:       getEnv("CONTENT_ROOT", "./content"),
		HomeURL:           getEnv("HOME_URL", "/"),
		AdminPathPrefix:   getEnv("ADMIN_PATH_PREFIX", "/admin"),
		AdminPasswordHash: getEnv("ADMIN_PASSWORD_HASH", ""),
		HtaccessPath:      getEnv("HTACCESS_PATH", "./.htaccess"),
		AdminAllowCIDRs:   getEnv("ADMIN_ALLOW_CIDRS", ""),
		AdminDenyCIDRs:    getEnv("ADMIN_DENY_CIDRS", ""),

		UpstreamURL: getEnv("UPSTREAM_URL", ""),
		SiteDir:     getEnv("SITE_DIR", "./public"),
		DemoRoutes:  getEnvBool("DEMO_ROUTES", false),
	}
}

// ParseFlags parses command-line flags and applies overrides to Settings.
// It handles --help (prints usage and exits) and --version (prints build info and exits).
func ParseFlags() {
	flag.Usage = func() {
		out := flag.CommandLine.Output()
		fmt.Fprintf(out, "Error Shield - keeps runtime errors away from site visitors\n\n")
		fmt.Fprintf(out, "Usage: %s [options]\n\n", os.Args[0])
		fmt.Fprintln(out, "Options:")
		flag.PrintDefaults()
		fmt.Fprintln(out, "\nEnvironment variables (also read from .env):")
		fmt.Fprintln(out, "  LOG_LEVEL                         Log level (DEBUG, INFO, WARN, ERROR)")
		fmt.Fprintln(out, "  LOG_FILE                          Operational log file (default ./errorshield.log)")
		fmt.Fprintln(out, "  PORT                              HTTP server port (default 8080)")
		fmt.Fprintln(out, "  DATABASE_URL                      SQLite database path (default errorshield.db)")
		fmt.Fprintln(out, "  SQLITE_PRAGMAS_ENABLED            Enable SQLite PRAGMAs (true/false, default true)")
		fmt.Fprintln(out, "  SQLITE_BUSY_TIMEOUT_MS            SQLite busy_timeout in milliseconds (default 5000)")
		fmt.Fprintln(out, "  SQLITE_JOURNAL_MODE               SQLite journal_mode (default WAL)")
		fmt.Fprintln(out, "  SQLITE_SYNCHRONOUS                SQLite synchronous (default NORMAL)")
		fmt.Fprintln(out, "  SQLITE_FOREIGN_KEYS               Enable SQLite foreign_keys (true/false, default true)")
		fmt.Fprintln(out, "  SQLITE_MAX_OPEN_CONNS             SQLite MaxOpenConns (default 1)")
		fmt.Fprintln(out, "  SQLITE_MAX_IDLE_CONNS             SQLite MaxIdleConns (default 1)")
		fmt.Fprintln(out, "  SQLITE_CONN_MAX_IDLE_SECONDS      SQLite ConnMaxIdleTime in seconds (default 300)")
		fmt.Fprintln(out, "  SQLITE_CONN_MAX_LIFETIME_SECONDS  SQLite ConnMaxLifetime in seconds (default 0)")
		fmt.Fprintln(out, "  CONTENT_ROOT                      Parent of the default error-shield-logs directory (default ./content)")
		fmt.Fprintln(out, "  HOME_URL                          Redirect target for suppressed front-end failures (default /)")
		fmt.Fprintln(out, "  ADMIN_PATH_PREFIX                 Path prefix of administrative requests (default /admin)")
		fmt.Fprintln(out, "  ADMIN_PASSWORD_HASH               bcrypt hash protecting the admin API (empty disables auth)")
		fmt.Fprintln(out, "  ADMIN_ALLOW_CIDRS                 Comma separated CIDRs/IPs allowed to reach the admin API")
		fmt.Fprintln(out, "  ADMIN_DENY_CIDRS                  Comma separated CIDRs/IPs denied from the admin API")
		fmt.Fprintln(out, "  HTACCESS_PATH                     File inspected by the hardening check (default ./.htaccess)")
		fmt.Fprintln(out, "  UPSTREAM_URL                      Reverse proxy target for the front-end (empty serves SITE_DIR)")
		fmt.Fprintln(out, "  SITE_DIR                          Static site directory (default ./public)")
		fmt.Fprintln(out, "  DEMO_ROUTES                       Mount /demo/* routes that raise each condition kind (default false)")
	}

	port := flag.Int("port", Settings.Port, "HTTP server port (overrides PORT)")
	db := flag.String("db", Settings.DatabaseURL, "SQLite database path (overrides DATABASE_URL)")
	sqlitePragmasEnabled := flag.Bool("sqlite-pragmas", Settings.SQLitePragmasEnabled, "Enable SQLite PRAGMAs (overrides SQLITE_PRAGMAS_ENABLED)")
	sqliteBusyTimeoutMS := flag.Int("sqlite-busy-timeout-ms", Settings.SQLiteBusyTimeoutMS, "SQLite busy_timeout in milliseconds (overrides SQLITE_BUSY_TIMEOUT_MS)")
	sqliteJournalMode := flag.String("sqlite-journal-mode", Settings.SQLiteJournalMode, "SQLite journal_mode (overrides SQLITE_JOURNAL_MODE)")
	sqliteSynchronous := flag.String("sqlite-synchronous", Settings.SQLiteSynchronous, "SQLite synchronous (overrides SQLITE_SYNCHRONOUS)")
	sqliteForeignKeys := flag.Bool("sqlite-foreign-keys", Settings.SQLiteForeignKeys, "Enable SQLite foreign_keys PRAGMA (overrides SQLITE_FOREIGN_KEYS)")
	sqliteMaxOpenConns := flag.Int("sqlite-max-open-conns", Settings.SQLiteMaxOpenConns, "SQLite MaxOpenConns (overrides SQLITE_MAX_OPEN_CONNS)")
	sqliteMaxIdleConns := flag.Int("sqlite-max-idle-conns", Settings.SQLiteMaxIdleConns, "SQLite MaxIdleConns (overrides SQLITE_MAX_IDLE_CONNS)")
	sqliteConnMaxIdleSec := flag.Int("sqlite-conn-max-idle-seconds", Settings.SQLiteConnMaxIdleSec, "SQLite ConnMaxIdleTime in seconds (overrides SQLITE_CONN_MAX_IDLE_SECONDS)")
	sqliteConnMaxLifeSec := flag.Int("sqlite-conn-max-lifetime-seconds", Settings.SQLiteConnMaxLifeSec, "SQLite ConnMaxLifetime in seconds (overrides SQLITE_CONN_MAX_LIFETIME_SECONDS)")
	logLevel := flag.String("log-level", Settings.LogLevel, "Log level: DEBUG, INFO, WARN, ERROR (overrides LOG_LEVEL)")
	logFile := flag.String("log-file", Settings.LogFilePath, "Operational log file path (overrides LOG_FILE)")
	contentRoot := flag.String("content-root", Settings.ContentRoot, "Parent of the default log directory (overrides CONTENT_ROOT)")
	homeURL := flag.String("home-url", Settings.HomeURL, "Redirect target for suppressed front-end failures (overrides HOME_URL)")
	adminPrefix := flag.String("admin-prefix", Settings.AdminPathPrefix, "Path prefix of administrative requests (overrides ADMIN_PATH_PREFIX)")
	adminAllow := flag.String("admin-allow", Settings.AdminAllowCIDRs, "CIDRs allowed to reach the admin API (overrides ADMIN_ALLOW_CIDRS)")
	adminDeny := flag.String("admin-deny", Settings.AdminDenyCIDRs, "CIDRs denied from the admin API (overrides ADMIN_DENY_CIDRS)")
	htaccess := flag.String("htaccess", Settings.HtaccessPath, "File inspected by the hardening check (overrides HTACCESS_PATH)")
	upstream := flag.String("upstream", Settings.UpstreamURL, "Reverse proxy target for the front-end (overrides UPSTREAM_URL)")
	siteDir := flag.String("site-dir", Settings.SiteDir, "Static site directory (overrides SITE_DIR)")
	demoRoutes := flag.Bool("demo-routes", Settings.DemoRoutes, "Mount /demo/* routes (overrides DEMO_ROUTES)")
	cliMode := flag.Bool("cli", Settings.CLIMode, "Run in CLI mode (admin HTTP client only, no database)")
	cliServer := flag.String("server", "", "Server URL or profile name for CLI mode")

	showHelp := flag.Bool("help", false, "Show help and exit")
	showVersion := flag.Bool("version", false, "Show version and exit")

	flag.Parse()

	if *showVersion {
		fmt.Println(version.GetBuildInfo())
		os.Exit(0)
	}

	if *showHelp {
		flag.Usage()
		os.Exit(0)
	}

	Settings.Port = *port
	Settings.DatabaseURL = *db
	Settings.SQLitePragmasEnabled = *sqlitePragmasEnabled
	Settings.SQLiteBusyTimeoutMS = *sqliteBusyTimeoutMS
	Settings.SQLiteJournalMode = *sqliteJournalMode
	Settings.SQLiteSynchronous = *sqliteSynchronous
	Settings.SQLiteForeignKeys = *sqliteForeignKeys
	Settings.SQLiteMaxOpenConns = *sqliteMaxOpenConns
	Settings.SQLiteMaxIdleConns = *sqliteMaxIdleConns
	Settings.SQLiteConnMaxIdleSec = *sqliteConnMaxIdleSec
	Settings.SQLiteConnMaxLifeSec = *sqliteConnMaxLifeSec
	Settings.LogLevel = *logLevel
	Settings.LogFilePath = *logFile
	Settings.ContentRoot = *contentRoot
	Settings.HomeURL = *homeURL
	Settings.AdminPathPrefix = *adminPrefix
	Settings.HtaccessPath = *htaccess
	Settings.AdminAllowCIDRs = *adminAllow
	Settings.AdminDenyCIDRs = *adminDeny
	Settings.UpstreamURL = *upstream
	Settings.SiteDir = *siteDir
	Settings.DemoRoutes = *demoRoutes
	Settings.CLIMode = *cliMode
	Settings.CLIServer = *cliServer
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
