package reconcile

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/minutetrack/internal/minutes"
)

// OccurrenceMarker returns the hidden marker embedded in every posted
// body. It ties a comment to one topic occurrence so retried posts can
// find it.
func OccurrenceMarker(occurrenceID string) string {
	return fmt.Sprintf("<!-- minutetrack:occurrence:%s -->", occurrenceID)
}

// RenderBody renders the comment for a concluded topic. The result is a
// pure function of the topic value: the same topic always renders the
// same body, which is what makes re-posting idempotent.
func RenderBody(t *minutes.Topic) string {
	var b strings.Builder
	b.WriteString(OccurrenceMarker(t.ID))
	b.WriteString("\n")

	subject := "this issue"
	if t.Title != "" {
		subject = escapeCodeSpan(t.Title)
	}
	resolutions := t.Resolutions()
	if len(resolutions) == 0 {
		fmt.Fprintf(&b, "The %s just discussed %s.\n", t.Group, subject)
	} else {
		fmt.Fprintf(&b, "The %s just discussed %s, and agreed to the following:\n\n", t.Group, subject)
		for _, r := range resolutions {
			fmt.Fprintf(&b, "* %s\n", escapeCodeSpan(r))
		}
	}

	if !t.ResolutionsOnly {
		b.WriteString("\n<details><summary>The full log of that discussion</summary>\n")
		for _, l := range t.Lines {
			b.WriteString(escapeHTMLBlock(l.Line.Transcript()))
			b.WriteString("<br>\n")
		}
		b.WriteString("</details>\n")
	}
	return b.String()
}

// escapeCodeSpan wraps text in a markdown code span, using one more
// backtick than the longest backtick run inside the text so the span
// cannot be broken out of.
func escapeCodeSpan(s string) string {
	run, longest := 0, 0
	for _, r := range s {
		if r == '`' {
			run++
			if run > longest {
				longest = run
			}
		} else {
			run = 0
		}
	}
	fence := strings.Repeat("`", longest+1)
	spaceFirst, spaceLast := "", ""
	if strings.HasPrefix(s, "`") {
		spaceFirst = " "
	}
	if strings.HasSuffix(s, "`") {
		spaceLast = " "
	}
	return fence + spaceFirst + s + spaceLast + fence
}

var issueShorthandRe = regexp.MustCompile(`(\s)#([0-9])`)

// escapeHTMLBlock makes a transcript line safe inside the <details>
// block. A zero-width no-break space goes between "#" and a digit so
// GitHub does not linkify "#1" into an issue reference.
func escapeHTMLBlock(s string) string {
	s = issueShorthandRe.ReplaceAllString(s, "${1}#\uFEFF${2}")
	s = strings.ReplaceAll(s, "&", "&amp;")
	return strings.ReplaceAll(s, "<", "&lt;")
}
