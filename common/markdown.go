package common

import (
	"regexp"
	"strings"
)

var (
	mdLink       = regexp.MustCompile(`\[([^\]]+)\]\(([^)]+)\)`)
	mdShortcut   = regexp.MustCompile(`\[([^\]]+)\][^(]*?`)
	mdUnderscore = regexp.MustCompile(`_([^_]+)_`)
	mdBold       = regexp.MustCompile(`\*\*([^*]+)\*\*`)
	mdItalic     = regexp.MustCompile(`\*([^*]+)\*`)
)

// reviewSuffix is appended by the review queues to canned comments.
const reviewSuffix = " - From Review"

// StripMarkdown reduces a comment written in comment markdown to the plain text
// the platform renders, so a canned comment can be compared with existing ones.
func StripMarkdown(text string) string {
	out := mdLink.ReplaceAllString(text, "$1")
	out = mdShortcut.ReplaceAllString(out, "$1")
	out = mdUnderscore.ReplaceAllString(out, "$1")
	out = mdBold.ReplaceAllString(out, "$1")
	out = mdItalic.ReplaceAllString(out, "$1")
	return strings.Replace(out, reviewSuffix, "", 1)
}
