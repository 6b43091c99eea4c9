package core

import "regexp"

// scrubRule removes one family of leaked error markup from a response body.
type scrubRule struct {
	name        string
	pattern     *regexp.Regexp
	replacement string
}

// defaultScrubRules are applied in order. The HTML rules match the markup the
// runtime prints when display is on; the plain-text rules match whole lines.
var defaultScrubRules = []scrubRule{
	{name: "html-error-block", pattern: regexp.MustCompile(`(?is)<br />\n<b>.*?</b>.*?<b>.*?</b>.*?<br />`)},
	{name: "html-warning", pattern: regexp.MustCompile(`(?is)<b>.*?Warning.*?</b>.*?<br />`)},
	{name: "html-notice", pattern: regexp.MustCompile(`(?is)<b>.*?Notice.*?</b>.*?<br />`)},
	{name: "html-fatal", pattern: regexp.MustCompile(`(?is)<b>.*?Fatal error.*?</b>.*?<br />`)},
	{name: "html-parse", pattern: regexp.MustCompile(`(?is)<b>.*?Parse error.*?</b>.*?<br />`)},
	{name: "text-warning", pattern: regexp.MustCompile(`(?im)^Warning:.*(?:\n|$)`)},
	{name: "text-notice", pattern: regexp.MustCompile(`(?im)^Notice:.*(?:\n|$)`)},
	{name: "text-fatal", pattern: regexp.MustCompile(`(?im)^Fatal error:.*(?:\n|$)`)},
	{name: "text-parse", pattern: regexp.MustCompile(`(?im)^Parse error:.*(?:\n|$)`)},
}

// Scrubber strips error, warning, notice, fatal and parse error text from a
// rendered response body.
type Scrubber struct {
	rules []scrubRule
}

// NewScrubber returns a scrubber with the default rule set.
func NewScrubber() *Scrubber {
	return &Scrubber{rules: defaultScrubRules}
}

// Scrub applies every rule in order and returns the cleaned buffer.
// When cleaning would leave nothing of a non-empty buffer the original is
// returned instead, so a response body never disappears entirely.
func (s *Scrubber) Scrub(buffer string) string {
	if buffer == "" {
		return buffer
	}

	cleaned := buffer
	for _, rule := range s.rules {
		cleaned = rule.pattern.ReplaceAllString(cleaned, rule.replacement)
	}

	if cleaned == "" {
		return buffer
	}
	return cleaned
}
