package core

import (
	"errorshield/models"
	"strings"

	"github.com/spf13/afero"
)

// RecommendedDirectives are shown to administrators as the web server
// configuration that turns native error display off.
var RecommendedDirectives = []string{
	"php_flag display_errors off",
	"php_flag display_startup_errors off",
	"php_value error_reporting 0",
}

var displayOffDirectives = []string{
	"php_flag display_errors off",
	"php_value display_errors 0",
	"php_value display_errors off",
}

// CheckHardeningDirectives reports whether content already disables error
// display. Plain substring search; the result is advisory only.
func CheckHardeningDirectives(content string) bool {
	for _, directive := range displayOffDirectives {
		if strings.Contains(content, directive) {
			return true
		}
	}
	return false
}

// InspectHardening reads the web server configuration at path and reports
// whether the directives are present.
func InspectHardening(fs afero.Fs, path string) models.HardeningReport {
	report := models.HardeningReport{
		Path:        path,
		Recommended: append([]string(nil), RecommendedDirectives...),
	}

	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return report
	}

	report.Readable = true
	report.DirectivesPresent = CheckHardeningDirectives(string(data))
	return report
}
