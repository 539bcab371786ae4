// Package reconcile decides whether a concluded topic gets a new tracker
// comment or an update to an earlier one, and renders the comment body.
package reconcile

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/minutetrack/internal/minutes"
)

// Comment is one existing issue comment, as returned by the tracker.
type Comment struct {
	ID   int64
	Body string
}

// Tracker is the issue-tracker collaborator. The reconciler only ever
// performs one listing plus one create or update per topic; it never
// retries on its own.
type Tracker interface {
	CreateComment(ctx context.Context, repo string, number int, body string) (int64, error)
	UpdateComment(ctx context.Context, repo string, commentID int64, body string) error
	ListRecentComments(ctx context.Context, repo string, number int) ([]Comment, error)
	IssueTitle(ctx context.Context, repo string, number int) (string, error)
}

// OutcomeKind is the result of reconciling one topic occurrence.
type OutcomeKind int

const (
	// Skipped: nothing to post (no association or no content lines).
	Skipped OutcomeKind = iota
	// Posted: a new comment was created.
	Posted
	// Updated: an existing comment for this occurrence was rewritten.
	Updated
	// Failed: the tracker call failed; the attempt is terminal.
	Failed
)

// Outcome reports what the reconciler did with a topic.
type Outcome struct {
	Kind      OutcomeKind
	CommentID int64
	IssueURL  string
	Err       error
}

// Reconciler posts concluded topics. It holds no per-topic state; the
// topic value it consumes is inert after close.
type Reconciler struct {
	tracker Tracker
}

// New returns a reconciler posting through the given tracker.
func New(tracker Tracker) *Reconciler {
	return &Reconciler{tracker: tracker}
}

// Reconcile posts the comment for one concluded topic, or decides not
// to. Unassociated topics, topics with no content lines, and
// resolutions-only topics that reached no resolution are skipped
// without any tracker call. When the topic already carries a comment id
// the existing comment is updated; when an earlier create attempt
// failed, recent comments are checked for this occurrence's marker
// first, so a create whose response was lost never posts twice.
func (r *Reconciler) Reconcile(ctx context.Context, t *minutes.Topic) Outcome {
	if t.Issue == nil || !t.HasContent() {
		return Outcome{Kind: Skipped}
	}
	if t.ResolutionsOnly && len(t.Resolutions()) == 0 {
		// The channel publishes resolutions only; a topic without any
		// would post a comment that says nothing.
		return Outcome{Kind: Skipped}
	}
	issue := *t.Issue
	body := RenderBody(t)

	if t.PostedCommentID != 0 {
		return r.update(ctx, issue, t.PostedCommentID, body)
	}

	if t.CreateAttempted {
		if id, ok := r.findExisting(ctx, t, issue); ok {
			return r.update(ctx, issue, id, body)
		}
	}

	t.CreateAttempted = true
	id, err := r.tracker.CreateComment(ctx, issue.Repo, issue.Number, body)
	if err != nil {
		log.Error().Err(err).Str("issue", issue.URL).Msg("comment create failed")
		return Outcome{Kind: Failed, IssueURL: issue.URL, Err: err}
	}
	t.PostedCommentID = id
	log.Info().Str("issue", issue.URL).Int64("comment_id", id).Msg("posted topic comment")
	return Outcome{Kind: Posted, CommentID: id, IssueURL: issue.URL}
}

func (r *Reconciler) update(ctx context.Context, issue minutes.IssueRef, id int64, body string) Outcome {
	if err := r.tracker.UpdateComment(ctx, issue.Repo, id, body); err != nil {
		log.Error().Err(err).Str("issue", issue.URL).Int64("comment_id", id).Msg("comment update failed")
		return Outcome{Kind: Failed, CommentID: id, IssueURL: issue.URL, Err: err}
	}
	log.Info().Str("issue", issue.URL).Int64("comment_id", id).Msg("updated topic comment")
	return Outcome{Kind: Updated, CommentID: id, IssueURL: issue.URL}
}

// findExisting looks for a comment already carrying this occurrence's
// marker. Listing failures are not fatal: posting proceeds as a create.
func (r *Reconciler) findExisting(ctx context.Context, t *minutes.Topic, issue minutes.IssueRef) (int64, bool) {
	comments, err := r.tracker.ListRecentComments(ctx, issue.Repo, issue.Number)
	if err != nil {
		log.Warn().Err(err).Str("issue", issue.URL).Msg("listing comments failed, posting fresh")
		return 0, false
	}
	marker := OccurrenceMarker(t.ID)
	for _, c := range comments {
		if strings.Contains(c.Body, marker) {
			t.PostedCommentID = c.ID
			return c.ID, true
		}
	}
	return 0, false
}
