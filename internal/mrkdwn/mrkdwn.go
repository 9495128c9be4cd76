// Package mrkdwn converts the markdown subset emitted by the model into
// Slack's mrkdwn dialect. Translation is applied exactly once, to the final
// assembled reply, so intermediate drafts are never double-translated.
package mrkdwn

import (
	"regexp"
	"strings"
)

var inlineLinkPattern = regexp.MustCompile(`\[([^\]]*)\]\(([^)\s]+)\)`)

// Translate rewrites inline links [label](url) to <url|label> and bold
// markers ** to *.
func Translate(s string) string {
	s = inlineLinkPattern.ReplaceAllString(s, "<$2|$1>")
	return strings.ReplaceAll(s, "**", "*")
}
