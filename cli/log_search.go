package cli

import (
	"fmt"
	"regexp"
	"strings"
)

// logSearch is a parsed `search` command.
type logSearch struct {
	Keyword string
	Kind    string
	File    string
}

var kindAliases = map[string]string{
	"notice":      "Notice",
	"warning":     "Warning",
	"recoverable": "Recoverable error",
	"exception":   "Exception",
	"fatal":       "Fatal error",
}

// parseLogSearchArgs parses `search` arguments.
//
// Supported flags:
// - --kind <notice|warning|recoverable|exception|fatal> / --kind=<kind>
// - --file <error_shield_YYYY-MM-DD.log> / --file=<name>
//
// Remaining arguments form the keyword.
func parseLogSearchArgs(args []string) (logSearch, error) {
	var search logSearch
	if len(args) == 0 {
		return search, fmt.Errorf("missing args")
	}

	var keywordParts []string
	for i := 0; i < len(args); i++ {
		token := args[i]

		// --flag=value
		if strings.HasPrefix(token, "--") && strings.Contains(token, "=") {
			parts := strings.SplitN(token, "=", 2)
			if err := applyLogSearchFlag(&search, parts[0], strings.TrimSpace(parts[1])); err != nil {
				return logSearch{}, err
			}
			continue
		}

		// --flag value
		if strings.HasPrefix(token, "--") {
			if i+1 >= len(args) {
				return logSearch{}, fmt.Errorf("missing value for %s", token)
			}
			if err := applyLogSearchFlag(&search, token, strings.TrimSpace(args[i+1])); err != nil {
				return logSearch{}, err
			}
			i++
			continue
		}

		keywordParts = append(keywordParts, token)
	}

	search.Keyword = strings.TrimSpace(strings.Join(keywordParts, " "))
	if search.Keyword == "" && search.Kind == "" {
		return logSearch{}, fmt.Errorf("missing search keyword or --kind")
	}
	return search, nil
}

func applyLogSearchFlag(search *logSearch, name, value string) error {
	switch name {
	case "--kind":
		label, ok := kindAliases[strings.ToLower(value)]
		if !ok {
			return fmt.Errorf("invalid --kind: %q", value)
		}
		search.Kind = label
		return nil
	case "--file":
		if value == "" {
			return fmt.Errorf("invalid --file: empty")
		}
		search.File = value
		return nil
	default:
		return fmt.Errorf("unknown flag: %s", name)
	}
}

var entryHeader = regexp.MustCompile(`^\[(\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2})\] (Notice|Warning|Recoverable error|Exception|Fatal error): `)

// logEntry is one logical entry of a daily file, trace lines included.
type logEntry struct {
	Timestamp string
	Kind      string
	Text      string
}

// splitLogEntries groups the lines of a daily file into entries. Lines that
// do not start an entry belong to the previous one.
func splitLogEntries(content string) []logEntry {
	var entries []logEntry
	for _, line := range strings.Split(strings.TrimRight(content, "\n"), "\n") {
		if line == "" {
			continue
		}
		if m := entryHeader.FindStringSubmatch(line); m != nil {
			entries = append(entries, logEntry{Timestamp: m[1], Kind: m[2], Text: line})
			continue
		}
		if len(entries) == 0 {
			entries = append(entries, logEntry{Text: line})
			continue
		}
		entries[len(entries)-1].Text += "\n" + line
	}
	return entries
}

// matches reports whether an entry satisfies the search. The keyword match
// is case-insensitive.
func (s logSearch) matches(entry logEntry) bool {
	if s.Kind != "" && entry.Kind != s.Kind {
		return false
	}
	if s.Keyword != "" && !strings.Contains(strings.ToLower(entry.Text), strings.ToLower(s.Keyword)) {
		return false
	}
	return true
}

func filterLogEntries(entries []logEntry, search logSearch) []logEntry {
	var out []logEntry
	for _, entry := range entries {
		if search.matches(entry) {
			out = append(out, entry)
		}
	}
	return out
}
