package minutes

import (
	"regexp"
	"strconv"
	"strings"
)

// DirectiveKind identifies the structured interpretation of a chat line.
type DirectiveKind int

const (
	// KindContent is the fallback: the line is plain transcript content.
	KindContent DirectiveKind = iota
	// KindTopicStart opens a new discussion topic.
	KindTopicStart
	// KindIssueAssociate links the open topic to a GitHub issue.
	KindIssueAssociate
	// KindIssueCancel clears the open topic's issue association.
	KindIssueCancel
	// KindEndTopic closes the open topic without starting a new one.
	KindEndTopic
	// KindEndMeeting closes the open topic and resets the meeting.
	KindEndMeeting
	// KindHelp is a command addressed to the bot that only produces a
	// chat reply (help, intro, status, or something unrecognized).
	KindHelp
)

// IssueRef identifies a GitHub issue or pull request.
type IssueRef struct {
	Repo   string // "owner/name"
	Number int
	URL    string // the URL as given by the participant
}

// Directive is the classified form of one chat line.
type Directive struct {
	Kind    DirectiveKind
	Title   string   // KindTopicStart
	Issue   IssueRef // KindIssueAssociate
	Command string   // KindHelp: the addressed command, case preserved
	Text    string   // the line text, verbatim
}

// issueURLRe matches a whole GitHub issue or PR URL, with an optional
// fragment. Repo allow-listing happens later, in the state machine.
var issueURLRe = regexp.MustCompile(
	`^(https://github\.com/([^/ ]+)/([^/ ]+)/(?:issues|pull)/([0-9]+))(?:#[^ ]*)?$`)

// issueURLAnywhereRe finds an issue URL mentioned mid-line, used for the
// "I won't comment unless you say Github:" nudge.
var issueURLAnywhereRe = regexp.MustCompile(
	`https://github\.com/[^/ ]+/[^/ ]+/(?:issues|pull)/[0-9]+`)

// Classifier turns raw chat lines into directives. It is pure and total:
// anything it cannot parse is content.
type Classifier struct {
	// Nick is the bot's own chat nick, for addressed commands.
	Nick string
}

// matcher is one predicate+extractor pair. Matchers run in order and the
// first hit wins; the order is part of the classifier's contract and the
// tests enumerate it.
type matcher func(c Classifier, line ChatLine) (Directive, bool)

var matchers = []matcher{
	matchConventionEnd,
	matchAddressedCommand,
	matchTopicStart,
	matchIssueDirective,
}

// Classify maps one chat line to a directive. Directive lines are still
// retained in the transcript by the state machine; classification never
// consumes the line.
func (c Classifier) Classify(line ChatLine) Directive {
	for _, m := range matchers {
		if d, ok := m(c, line); ok {
			d.Text = line.Text
			return d
		}
	}
	return Directive{Kind: KindContent, Text: line.Text}
}

// matchConventionEnd recognizes the meeting-end conventions of other
// W3C minuting bots, which end the meeting here.
func matchConventionEnd(_ Classifier, line ChatLine) (Directive, bool) {
	if line.IsAction && line.Sender == "trackbot" && line.Text == "is ending a teleconference." {
		return Directive{Kind: KindEndMeeting}, true
	}
	if !line.IsAction && line.Sender == "Zakim" &&
		strings.HasPrefix(line.Text, "As of this point the attendees have been") {
		return Directive{Kind: KindEndMeeting}, true
	}
	return Directive{}, false
}

// matchAddressedCommand recognizes "<nick>, command" and "<nick>: command"
// lines. A trailing question mark is tolerated.
func matchAddressedCommand(c Classifier, line ChatLine) (Directive, bool) {
	if line.IsAction || c.Nick == "" {
		return Directive{}, false
	}
	rest, ok := stripAddressing(c.Nick, line.Text)
	if !ok {
		return Directive{}, false
	}
	cmd := strings.TrimSpace(strings.TrimSuffix(rest, "?"))
	switch strings.ToLower(cmd) {
	case "end topic":
		return Directive{Kind: KindEndTopic}, true
	case "end meeting":
		return Directive{Kind: KindEndMeeting}, true
	case "cancel", "cancel github":
		return Directive{Kind: KindIssueCancel}, true
	default:
		// Everything else addressed to the bot gets a chat reply and
		// stays out of the transcript.
		return Directive{Kind: KindHelp, Command: cmd}, true
	}
}

func matchTopicStart(_ Classifier, line ChatLine) (Directive, bool) {
	if line.IsAction {
		return Directive{}, false
	}
	for _, prefix := range []string{"topic:", "subtopic:"} {
		if rest, ok := stripPrefixFold(line.Text, prefix); ok {
			return Directive{Kind: KindTopicStart, Title: rest}, true
		}
	}
	return Directive{}, false
}

// matchIssueDirective recognizes "github: <url>" association lines, the
// "github: none" cancel spelling, and the alternate "github topic:" and
// "github issue:" prefixes. A github: line whose argument is neither
// "none" nor a well-formed issue URL degrades to content.
func matchIssueDirective(_ Classifier, line ChatLine) (Directive, bool) {
	if line.IsAction {
		return Directive{}, false
	}
	var rest string
	var found bool
	for _, prefix := range []string{"github topic:", "github issue:", "github:"} {
		if r, ok := stripPrefixFold(line.Text, prefix); ok {
			rest, found = r, true
			break
		}
	}
	if !found {
		return Directive{}, false
	}
	if strings.EqualFold(rest, "none") {
		return Directive{Kind: KindIssueCancel}, true
	}
	ref, ok := ParseIssueURL(rest)
	if !ok {
		return Directive{}, false
	}
	return Directive{Kind: KindIssueAssociate, Issue: ref}, true
}

// ParseTakeUp recognizes the "take up [URL]", "take up subtopic [URL]",
// "topic [URL]" and "subtopic [URL]" spellings of an addressed command.
// It returns the argument, the command name for error text, and the
// topic header ("Topic" or "Subtopic") to echo into the channel.
func ParseTakeUp(command string) (arg, name, header string, ok bool) {
	inner, hadTakeUp := stripPrefixFold(command, "take up ")
	if !hadTakeUp {
		inner = command
	}
	if rest, found := stripPrefixFold(inner, "subtopic "); found {
		if hadTakeUp {
			return rest, "take up subtopic", "Subtopic", true
		}
		return rest, "subtopic", "Subtopic", true
	}
	if hadTakeUp {
		return inner, "take up", "Topic", true
	}
	if rest, found := stripPrefixFold(inner, "topic "); found {
		return rest, "topic", "Topic", true
	}
	return "", "", "", false
}

// ParseIssueURL parses a whole-string GitHub issue or PR URL.
func ParseIssueURL(s string) (IssueRef, bool) {
	m := issueURLRe.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return IssueRef{}, false
	}
	number, err := strconv.Atoi(m[4])
	if err != nil {
		return IssueRef{}, false
	}
	return IssueRef{Repo: m[2] + "/" + m[3], Number: number, URL: m[1]}, true
}

// FindIssueURL reports an issue URL mentioned anywhere in the line.
func FindIssueURL(text string) (string, bool) {
	m := issueURLAnywhereRe.FindString(text)
	return m, m != ""
}

// stripAddressing removes a leading "<nick>," or "<nick>:" (any case)
// and returns the remainder.
func stripAddressing(nick, text string) (string, bool) {
	if len(text) <= len(nick) || !strings.EqualFold(text[:len(nick)], nick) {
		return "", false
	}
	sep := text[len(nick)]
	if sep != ',' && sep != ':' {
		return "", false
	}
	return strings.TrimSpace(text[len(nick)+1:]), true
}

// stripPrefixFold removes a case-insensitive prefix and trims the
// remainder's leading whitespace.
func stripPrefixFold(s, prefix string) (string, bool) {
	if len(s) < len(prefix) || !strings.EqualFold(s[:len(prefix)], prefix) {
		return "", false
	}
	return strings.TrimSpace(s[len(prefix):]), true
}
