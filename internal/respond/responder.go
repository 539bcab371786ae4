// Package respond maps directive and reconciliation outcomes to the
// chat-visible acknowledgment text. It is stateless; every function is a
// pure formatter.
package respond

import (
	"fmt"
	"strings"

	"github.com/minutetrack/internal/minutes"
	"github.com/minutetrack/internal/reconcile"
)

// Note renders the acknowledgment for one state-machine note. An empty
// result means silence.
func Note(n minutes.Note) string {
	switch n.Kind {
	case minutes.NoteAssociationSet:
		return fmt.Sprintf("OK, I'll post this discussion to %s.", n.Issue.URL)
	case minutes.NoteAssociationReplaced:
		return fmt.Sprintf("OK, I'll post this discussion to %s instead of %s like you said before.",
			n.Issue.URL, n.Prev.URL)
	case minutes.NoteAssociationCleared:
		return "OK, cancelled.  I won't post this discussion to GitHub."
	case minutes.NoteAssociationRejected:
		return fmt.Sprintf("I can't comment on that github issue because it's not in a repository I'm allowed to comment on, which are: %s.",
			strings.Join(n.Allowed, " "))
	case minutes.NoteMistimed:
		return "I can't do that because you haven't started a topic."
	case minutes.NoteBareURL:
		return bareURLNudge
	case minutes.NoteBareURLNoTopic:
		return "I can't set a github URL because you haven't started a topic.  Also, " + bareURLNudge
	default:
		return ""
	}
}

const bareURLNudge = "Because I don't want to spam github issues unnecessarily, I won't comment in that github issue unless you write \"Github: <issue-url> | none\" (or \"Github issue: ...\"/\"Github topic: ...\")."

// AssociationAckWithTitle is the richer association acknowledgment sent
// once the issue title has been fetched.
func AssociationAckWithTitle(issue minutes.IssueRef, title string, prev *minutes.IssueRef) string {
	if prev != nil {
		return fmt.Sprintf("OK, I'll post this discussion to %s (%s) instead of %s like you said before.",
			issue.URL, title, prev.URL)
	}
	return fmt.Sprintf("OK, I'll post this discussion to %s (%s).", issue.URL, title)
}

// Outcome renders the reconciliation result. Skipped topics are
// intentionally silent: an empty topic producing no comment is not worth
// channel noise.
func Outcome(o reconcile.Outcome) string {
	switch o.Kind {
	case reconcile.Posted:
		return fmt.Sprintf("Successfully commented on %s", o.IssueURL)
	case reconcile.Updated:
		return fmt.Sprintf("Successfully updated the comment on %s", o.IssueURL)
	case reconcile.Failed:
		return fmt.Sprintf("Error posting comment on %s: %v", o.IssueURL, o.Err)
	default:
		return ""
	}
}

// Help lists the commands the bot understands.
func Help() []string {
	return []string{
		"The commands I understand are:",
		"  help        - Send this message.",
		"  intro       - Send a message describing what I do.",
		"  status      - Send a message with current bot status.",
		"  end topic   - End the current topic without starting a new one.",
		"  end meeting - End the current topic and the meeting.",
		"  cancel      - Forget the github issue set for the current topic.",
		"  take up [URL] - Start a new topic and print a \"Topic:\" line based on the title of the github issue/PR at URL",
		"  topic [URL]   - Start a new topic and print a \"Topic:\" line based on the title of the github issue/PR at URL",
		"  take up subtopic [URL] - Start a new topic and print a \"Subtopic:\" line based on the title of the github issue/PR at URL",
		"  subtopic [URL]         - Start a new topic and print a \"Subtopic:\" line based on the title of the github issue/PR at URL",
	}
}

// NotAnIssue is the reply when a take-up argument is not an issue URL.
func NotAnIssue() string {
	return "I can't comment on that because it doesn't look like a github issue to me."
}

// TakeUpDuplicate is the reply when a take-up names the URL the open
// topic already targets.
func TakeUpDuplicate(url string) string {
	return fmt.Sprintf("ignoring request to take up %s which is already the current github URL", url)
}

// TopicHeader is the channel-visible line a take-up echoes in place of
// the scribe's own "Topic:" line.
func TopicHeader(header, title string) string {
	return fmt.Sprintf("%s: %s", header, title)
}

// Intro describes the bot's job for a channel.
func Intro(allowed []string, source string, owners []string) []string {
	lines := []string{
		"My job is to leave comments in github when the group discusses github issues and takes minutes in chat.",
		"I separate discussions by the \"Topic:\" lines, and I know what github issues to use only by lines of the form \"GitHub: <url> | none\".",
	}
	if len(allowed) > 0 {
		lines = append(lines, fmt.Sprintf(
			"In this channel, I'm only allowed to comment on issues in the repositories: %s.",
			strings.Join(allowed, " ")))
	}
	if source != "" {
		lines = append(lines, fmt.Sprintf("My source code is at %s and I'm run by %s.",
			source, strings.Join(owners, " ")))
	}
	return lines
}

// Unknown is the reply for an addressed command the bot does not know.
func Unknown() string {
	return "Sorry, I don't understand that command.  Try 'help'."
}
