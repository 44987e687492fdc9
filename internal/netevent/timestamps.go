package netevent

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"golang.org/x/net/html"
)

const timestampLayout = "2006-01-02 15:04:05Z"

var (
	originSelector   = mustSelector(".post-signature.owner .user-action-time span[title]")
	responseSelector = mustSelector(".user-info .user-action-time span[title]")
)

// ReviewTimes extracts the question (origin) and answer (response) timestamps
// from a review item's HTML. Missing timestamps come back as zero values.
func ReviewTimes(content string) (origin, response time.Time, err error) {
	doc, err := html.Parse(strings.NewReader(content))
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: review html: %w", ErrMalformed, err)
	}

	originNodes := originSelector.all(doc)
	if len(originNodes) > 0 {
		origin = parseTimestamp(attr(originNodes[0], "title"))
	}

	for _, n := range responseSelector.all(doc) {
		if slices.Contains(originNodes, n) {
			continue
		}
		response = parseTimestamp(attr(n, "title"))
		break
	}

	return origin, response, nil
}

// titles look like "2024-05-01 12:00:00Z" or "2024-05-01 12:00:00Z, License: CC BY-SA 4.0"
func parseTimestamp(title string) time.Time {
	title, _, _ = strings.Cut(title, ",")
	t, err := time.Parse(timestampLayout, strings.TrimSpace(title))
	if err != nil {
		return time.Time{}
	}
	return t
}

// selector is a descendant chain of compound steps: tag, classes and one
// attribute presence test.
type selector []step

type step struct {
	tag     string
	classes []string
	attr    string
}

func mustSelector(s string) selector {
	var sel selector
	for _, part := range strings.Fields(s) {
		var st step
		if i := strings.IndexByte(part, '['); i >= 0 {
			st.attr = strings.TrimSuffix(part[i+1:], "]")
			part = part[:i]
		}
		pieces := strings.Split(part, ".")
		st.tag = pieces[0]
		for _, c := range pieces[1:] {
			if c != "" {
				st.classes = append(st.classes, c)
			}
		}
		sel = append(sel, st)
	}
	if len(sel) == 0 {
		panic("netevent: empty selector " + s)
	}
	return sel
}

// all returns matches in document order without duplicates.
func (sel selector) all(root *html.Node) []*html.Node {
	matches := descendants(root, sel[0])
	for _, st := range sel[1:] {
		var next []*html.Node
		for _, parent := range matches {
			for _, n := range descendants(parent, st) {
				if !slices.Contains(next, n) {
					next = append(next, n)
				}
			}
		}
		matches = next
	}
	return matches
}

func descendants(root *html.Node, st step) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if st.matches(c) {
				out = append(out, c)
			}
			walk(c)
		}
	}
	walk(root)
	return out
}

func (st step) matches(n *html.Node) bool {
	if n.Type != html.ElementNode {
		return false
	}
	if st.tag != "" && n.Data != st.tag {
		return false
	}
	classes := strings.Fields(attr(n, "class"))
	for _, c := range st.classes {
		if !slices.Contains(classes, c) {
			return false
		}
	}
	if st.attr != "" && !hasAttr(n, st.attr) {
		return false
	}
	return true
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasAttr(n *html.Node, key string) bool {
	for _, a := range n.Attr {
		if a.Key == key {
			return true
		}
	}
	return false
}
