package cli

import (
	"errorshield/models"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/chzyer/readline"
	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
)

// CLIHttp is the interactive admin client
type CLIHttp struct {
	rl      *readline.Instance
	running bool
	client  *Client
}

// NewCLIHttp connects to the server described by the profile.
func NewCLIHttp(server *ServerConfig) (*CLIHttp, error) {
	client := NewClient(server.URL).
		WithAdminPrefix(server.AdminPrefix).
		WithCredentials(server.User, server.Password)

	// Test connectivity
	if _, err := client.HealthCheck(); err != nil {
		return nil, fmt.Errorf("cannot connect to server: %w", err)
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		AutoComplete: readline.NewPrefixCompleter(
			readline.PcItem("help"),
			readline.PcItem("logs"),
			readline.PcItem("show"),
			readline.PcItem("search"),
			readline.PcItem("settings"),
			readline.PcItem("set",
				readline.PcItem("logging", readline.PcItem("on"), readline.PcItem("off")),
				readline.PcItem("location"),
			),
			readline.PcItem("reset"),
			readline.PcItem("hardening"),
			readline.PcItem("clear-logs"),
			readline.PcItem("health"),
			readline.PcItem("shutdown"),
			readline.PcItem("clear"),
			readline.PcItem("exit"),
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}

	return &CLIHttp{
		rl:      rl,
		running: true,
		client:  client,
	}, nil
}

// Start runs the CLI loop
func (c *CLIHttp) Start() {
	defer c.rl.Close()
	c.printWelcome()

	for c.running {
		line, err := c.rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				fmt.Println("\n⚠ Ctrl+C detected. Please use 'exit' or 'quit' command to exit gracefully.")
				continue
			}
			// EOF or other error; exit
			break
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}

		c.handleCommand(input)
	}
}

func (c *CLIHttp) printWelcome() {
	PrintBanner("Error Shield - Admin Console")
	fmt.Printf("\nConnected to: %s\n", c.client.BaseURL())
	fmt.Println("Type 'help' for available commands")
}

// handleCommand routes user commands
func (c *CLIHttp) handleCommand(input string) {
	parts := strings.Fields(input)
	if len(parts) == 0 {
		return
	}

	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	switch cmd {
	case "help", "h", "?":
		c.showHelp()
	case "logs", "ls":
		c.listLogs(args)
	case "show", "cat":
		c.showLog(args)
	case "search", "grep":
		c.searchLogs(args)
	case "settings":
		c.showSettings()
	case "set":
		c.handleSetCommand(args)
	case "reset":
		c.resetSettings()
	case "hardening":
		c.showHardening()
	case "clear-logs":
		c.clearLogs()
	case "health":
		c.showHealth()
	case "shutdown":
		c.shutdownServer()
	case "clear":
		fmt.Print("\033[H\033[2J")
	case "exit", "quit", "q":
		fmt.Println("\nGoodbye!")
		c.running = false
	default:
		fmt.Printf("Unknown command: %s. Type 'help' for available commands.\n", cmd)
	}
}

func (c *CLIHttp) showHelp() {
	fmt.Println()
	PrintBanner("Available Commands")
	fmt.Println()

	commands := [][]string{
		{"help, h, ?", "Show this help message"},
		{"", ""},
		{"LOG FILES:", ""},
		{"logs [limit]", "List recent daily log files (default 5)"},
		{"show <file|latest> [--tail N]", "Print a daily log file"},
		{"search <keyword> [--kind K] [--file F]", "Search entries (kinds: notice, warning, recoverable, exception, fatal)"},
		{"clear-logs", "Delete every daily log file"},
		{"", ""},
		{"SETTINGS:", ""},
		{"settings", "Show the log configuration"},
		{"set logging <on|off>", "Enable or disable error logging"},
		{"set location <abs path>", "Change the log directory"},
		{"reset", "Restore the default configuration"},
		{"hardening", "Check the web server error display directives"},
		{"", ""},
		{"SYSTEM:", ""},
		{"health", "Show server health"},
		{"shutdown", "Shut the server down (asks for confirmation)"},
		{"clear", "Clear screen"},
		{"exit, quit, q", "Exit the program"},
	}

	for _, cmd := range commands {
		if cmd[0] != "" {
			fmt.Printf("  %-40s %s\n", cmd[0], cmd[1])
		} else {
			fmt.Println()
		}
	}
}

func (c *CLIHttp) listLogs(args []string) {
	limit := 0
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n <= 0 {
			fmt.Printf("Invalid limit: %s\n", args[0])
			return
		}
		limit = n
	}

	files, err := c.client.ListLogs(limit)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}

	if len(files) == 0 {
		fmt.Println("No log files yet.")
		return
	}

	fmt.Println()
	renderLogTable(files, time.Now())
	fmt.Printf("\nUse 'show <file>' to view a file\n")
}

func renderLogTable(files []models.LogFileInfo, now time.Time) {
	table := tablewriter.NewWriter(os.Stdout)
	table.Header("File", "Size", "Modified")
	for _, f := range files {
		table.Append([]string{f.Name, f.SizeHuman, humanize.RelTime(f.ModTime, now, "ago", "from now")})
	}
	_ = table.Render()
}

func (c *CLIHttp) showLog(args []string) {
	name, tail, err := parseShowArgs(args)
	if err != nil {
		fmt.Printf("Usage: show <file|latest> [--tail N] (%v)\n", err)
		return
	}

	if name == "latest" {
		files, err := c.client.ListLogs(1)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			return
		}
		if len(files) == 0 {
			fmt.Println("No log files yet.")
			return
		}
		name = files[len(files)-1].Name
	}

	content, err := c.client.GetLog(name)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}

	entries := splitLogEntries(content)
	if tail > 0 && len(entries) > tail {
		entries = entries[len(entries)-tail:]
	}

	fmt.Println()
	PrintBanner(fmt.Sprintf("%s (%d entries)", name, len(entries)))
	fmt.Println()
	for _, entry := range entries {
		fmt.Println(colorizeEntry(entry))
	}
}

// parseShowArgs parses `show <file> [--tail N]`.
func parseShowArgs(args []string) (name string, tail int, err error) {
	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == "--tail":
			if i+1 >= len(args) {
				return "", 0, fmt.Errorf("missing value for --tail")
			}
			tail, err = strconv.Atoi(args[i+1])
			if err != nil || tail <= 0 {
				return "", 0, fmt.Errorf("invalid --tail: %q", args[i+1])
			}
			i++
		case strings.HasPrefix(args[i], "--tail="):
			tail, err = strconv.Atoi(strings.TrimPrefix(args[i], "--tail="))
			if err != nil || tail <= 0 {
				return "", 0, fmt.Errorf("invalid --tail: %q", args[i])
			}
		case name == "":
			name = args[i]
		default:
			return "", 0, fmt.Errorf("unexpected argument %q", args[i])
		}
	}
	if name == "" {
		return "", 0, fmt.Errorf("missing file name")
	}
	return name, tail, nil
}

func colorizeEntry(entry logEntry) string {
	switch entry.Kind {
	case "Exception", "Fatal error":
		return color.RedString(entry.Text)
	case "Warning", "Recoverable error":
		return color.YellowString(entry.Text)
	default:
		return entry.Text
	}
}

func (c *CLIHttp) searchLogs(args []string) {
	search, err := parseLogSearchArgs(args)
	if err != nil {
		fmt.Printf("Usage: search <keyword> [--kind K] [--file F] (%v)\n", err)
		return
	}

	var names []string
	if search.File != "" {
		names = []string{search.File}
	} else {
		files, err := c.client.ListLogs(0)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			return
		}
		for _, f := range files {
			names = append(names, f.Name)
		}
	}

	found := 0
	for _, name := range names {
		content, err := c.client.GetLog(name)
		if err != nil {
			fmt.Printf("Error reading %s: %v\n", name, err)
			continue
		}
		for _, entry := range filterLogEntries(splitLogEntries(content), search) {
			if found == 0 {
				fmt.Println()
			}
			fmt.Printf("%s  %s\n", color.CyanString(name), colorizeEntry(entry))
			found++
		}
	}

	if found == 0 {
		fmt.Println("No matching entries.")
		return
	}
	fmt.Printf("\n%d matching entr%s\n", found, pluralY(found))
}

func pluralY(n int) string {
	if n == 1 {
		return "y"
	}
	return "ies"
}

func (c *CLIHttp) showSettings() {
	cfg, err := c.client.GetSettings()
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	printSettings(cfg)
}

func printSettings(cfg *models.LogConfig) {
	state := color.RedString("disabled")
	if cfg.LogErrors {
		state = color.GreenString("enabled")
	}
	fmt.Printf("Error logging: %s\n", state)
	fmt.Printf("Log location:  %s\n", cfg.LogLocation)
}

func (c *CLIHttp) handleSetCommand(args []string) {
	update, err := parseSetArgs(args)
	if err != nil {
		fmt.Printf("Usage: set logging <on|off> | set location <abs path> (%v)\n", err)
		return
	}

	cfg, err := c.client.UpdateSettings(update)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	fmt.Println("✓ Settings saved")
	printSettings(cfg)
}

// parseSetArgs turns `set` arguments into a settings update.
func parseSetArgs(args []string) (models.LogSettingsUpdate, error) {
	var update models.LogSettingsUpdate
	if len(args) < 2 {
		return update, fmt.Errorf("missing value")
	}

	switch strings.ToLower(args[0]) {
	case "logging", "log_errors":
		enabled, err := parseOnOff(args[1])
		if err != nil {
			return update, err
		}
		update.LogErrors = &enabled
	case "location", "log_location":
		update.LogLocation = strings.Join(args[1:], " ")
	default:
		return update, fmt.Errorf("unknown setting %q", args[0])
	}
	return update, nil
}

func parseOnOff(value string) (bool, error) {
	switch strings.ToLower(value) {
	case "on", "true", "yes", "1", "enable", "enabled":
		return true, nil
	case "off", "false", "no", "0", "disable", "disabled":
		return false, nil
	default:
		return false, fmt.Errorf("expected on or off, got %q", value)
	}
}

func (c *CLIHttp) resetSettings() {
	if !c.confirm("Restore the default log configuration?") {
		fmt.Println("Cancelled.")
		return
	}
	cfg, err := c.client.ResetSettings()
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	fmt.Println("✓ Defaults restored")
	printSettings(cfg)
}

func (c *CLIHttp) showHardening() {
	report, err := c.client.Hardening()
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}

	fmt.Printf("File: %s\n", report.Path)
	switch {
	case !report.Readable:
		fmt.Println(color.YellowString("⚠ File not readable, directives could not be checked"))
	case report.DirectivesPresent:
		fmt.Println(color.GreenString("✓ Error display is disabled"))
	default:
		fmt.Println(color.RedString("✗ Error display directives are missing"))
	}

	if !report.DirectivesPresent {
		fmt.Println("\nAdd these lines to the file:")
		for _, line := range report.Recommended {
			fmt.Printf("  %s\n", line)
		}
	}
}

func (c *CLIHttp) clearLogs() {
	if !c.confirm("Delete every daily log file?") {
		fmt.Println("Cancelled.")
		return
	}
	removed, err := c.client.ClearLogs()
	if err != nil {
		fmt.Printf("Error clearing logs: %v\n", err)
		return
	}
	fmt.Printf("✓ %d log file(s) deleted\n", removed)
}

func (c *CLIHttp) showHealth() {
	health, err := c.client.HealthCheck()
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	fmt.Printf("Status:   %s\n", health.Status)
	fmt.Printf("Version:  %s\n", health.Version)
	fmt.Printf("SQLite:   up=%v busy=%d locked=%d\n", health.SQLite.Up, health.SQLite.BusyErrors, health.SQLite.LockedErrors)
	fmt.Printf("Checked:  %s\n", humanize.Time(time.Unix(health.Timestamp, 0)))
}

func (c *CLIHttp) shutdownServer() {
	code, expiresAt, err := c.client.GenerateShutdownCode()
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}

	fmt.Printf("Confirmation code: %s (expires %s)\n", code, humanize.Time(expiresAt))
	if c.readInput("Type the code to shut the server down", "") != code {
		fmt.Println("Cancelled.")
		return
	}

	if err := c.client.VerifyShutdown(code); err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	fmt.Println("✓ Shutdown initiated")
	c.running = false
}

func (c *CLIHttp) confirm(question string) bool {
	answer := strings.ToLower(c.readInput(question+" (yes/no)", "no"))
	return answer == "yes" || answer == "y"
}

func (c *CLIHttp) readInput(prompt, defaultValue string) string {
	if defaultValue != "" {
		c.rl.SetPrompt(fmt.Sprintf("%s [%s]: ", prompt, defaultValue))
	} else {
		c.rl.SetPrompt(fmt.Sprintf("%s: ", prompt))
	}

	line, err := c.rl.Readline()
	c.rl.SetPrompt("> ") // Restore default prompt

	if err != nil {
		return defaultValue
	}

	input := strings.TrimSpace(line)
	if input == "" && defaultValue != "" {
		return defaultValue
	}
	return input
}
