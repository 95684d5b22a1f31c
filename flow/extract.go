package flow

import (
	"regexp"
	"strings"
)

// DefaultTaskRegex extracts <task>...</task> blocks from a delegator's raw
// output. Dot matches across line breaks; this is a compatibility contract
// coupled to how delegator agents are prompted.
var DefaultTaskRegex = regexp.MustCompile(`(?s)<task>(.*?)</task>`)

// DefaultSharedContextRegex extracts a single <shared_context>...</shared_context>
// block from a delegator's raw output.
var DefaultSharedContextRegex = regexp.MustCompile(`(?s)<shared_context>(.*?)</shared_context>`)

// extractTasks returns the trimmed, non-empty first-group captures of re in
// text, in match order. When re has no capture group the full match is used.
func extractTasks(re *regexp.Regexp, text string) []string {
	var tasks []string
	for _, m := range re.FindAllStringSubmatch(text, -1) {
		s := m[0]
		if len(m) > 1 {
			s = m[1]
		}
		if s = strings.TrimSpace(s); s != "" {
			tasks = append(tasks, s)
		}
	}
	return tasks
}

// extractSharedContext returns the trimmed first-group capture of the first
// match of re in text, or "" when text does not match.
func extractSharedContext(re *regexp.Regexp, text string) string {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	s := m[0]
	if len(m) > 1 {
		s = m[1]
	}
	return strings.TrimSpace(s)
}
