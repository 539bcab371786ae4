package minutes

import (
	"strings"

	"github.com/google/uuid"
)

// TopicLine is one retained transcript line together with how the
// classifier read it.
type TopicLine struct {
	Line ChatLine
	Kind DirectiveKind
}

// Topic accumulates one open-to-close span of discussion. It is owned
// exclusively by one Meeting while open; on close, ownership moves to
// the reconciler and the value is never touched again.
type Topic struct {
	// ID identifies this topic occurrence. Re-declaring the same title
	// later is a distinct occurrence with a distinct ID.
	ID    string
	Title string
	// Group names the working group, used in the comment summary line.
	Group string
	// Lines holds every retained line since the topic opened, in
	// arrival order, including the line that opened it.
	Lines []TopicLine
	// Issue is the current association target, nil when none.
	Issue *IssueRef
	// ResolutionsOnly suppresses the full log block in the posted
	// comment, leaving only the resolution bullets.
	ResolutionsOnly bool
	// PostedCommentID is set once a comment exists for this occurrence;
	// it selects update over create on a retried post.
	PostedCommentID int64
	// CreateAttempted is set before the first create call. A retry after
	// a failed create checks the tracker for this occurrence's marker,
	// since the comment may have landed without its id coming back.
	CreateAttempted bool
}

// NewTopic opens a topic occurrence.
func NewTopic(title, group string, resolutionsOnly bool) *Topic {
	return &Topic{
		ID:              uuid.NewString(),
		Title:           title,
		Group:           group,
		ResolutionsOnly: resolutionsOnly,
	}
}

// Append retains a line in the transcript.
func (t *Topic) Append(line ChatLine, kind DirectiveKind) {
	t.Lines = append(t.Lines, TopicLine{Line: line, Kind: kind})
}

// HasContent reports whether any retained line is plain content rather
// than a directive. Topics without content are never posted.
func (t *Topic) HasContent() bool {
	for _, l := range t.Lines {
		if l.Kind == KindContent {
			return true
		}
	}
	return false
}

var resolutionPrefixes = []string{"RESOLVED", "RESOLUTION", "SUMMARY", "ACTION"}

// Resolutions returns the content lines that record a decision, in
// order. Derived from Lines at call time so rendering stays a pure
// function of the topic value.
func (t *Topic) Resolutions() []string {
	var out []string
	for _, l := range t.Lines {
		if l.Kind != KindContent || l.Line.IsAction {
			continue
		}
		for _, p := range resolutionPrefixes {
			if strings.HasPrefix(l.Line.Text, p) {
				out = append(out, l.Line.Text)
				break
			}
		}
	}
	return out
}

// Resolved reports whether the topic reached a RESOLVED/RESOLUTION
// decision, as opposed to only summaries or action items.
func (t *Topic) Resolved() bool {
	for _, l := range t.Lines {
		if l.Kind != KindContent || l.Line.IsAction {
			continue
		}
		if strings.HasPrefix(l.Line.Text, "RESOLVED") || strings.HasPrefix(l.Line.Text, "RESOLUTION") {
			return true
		}
	}
	return false
}
