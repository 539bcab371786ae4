package minutes

import "strings"

// ChannelInfo is the read-only per-channel policy the state machine
// consults. It mirrors the channel's configuration and is safe to share.
type ChannelInfo struct {
	Group           string
	ReposAllowed    []string
	ResolutionsOnly bool
}

// RepoAllowed reports whether the bot may comment on issues in the given
// "owner/name" repository. An entry of "owner/*" allows every repository
// under that owner.
func (c ChannelInfo) RepoAllowed(repo string) bool {
	owner, name, ok := strings.Cut(repo, "/")
	if !ok {
		return false
	}
	for _, allowed := range c.ReposAllowed {
		aOwner, aName, ok := strings.Cut(allowed, "/")
		if !ok {
			continue
		}
		if aOwner == owner && (aName == name || aName == "*") {
			return true
		}
	}
	return false
}

// NoteKind classifies a chat-visible observation from applying a
// directive. The responder owns the wording.
type NoteKind int

const (
	// NoteAssociationSet: the open topic now targets Issue.
	NoteAssociationSet NoteKind = iota
	// NoteAssociationReplaced: the target changed from Prev to Issue.
	NoteAssociationReplaced
	// NoteAssociationCleared: the topic will not be posted anywhere.
	NoteAssociationCleared
	// NoteAssociationRejected: Issue's repo is not on the allow-list.
	NoteAssociationRejected
	// NoteMistimed: an associate/cancel arrived with no open topic.
	NoteMistimed
	// NoteBareURL: a content line mentioned an issue URL without the
	// "Github:" directive; nudge the scribe.
	NoteBareURL
	// NoteBareURLNoTopic: an issue URL was mentioned while no topic was
	// open, so there is nothing it could be attached to either way.
	NoteBareURLNoTopic
)

// Note is one chat-visible observation produced by a transition.
type Note struct {
	Kind    NoteKind
	Issue   IssueRef
	Prev    *IssueRef
	Allowed []string
}

// Effects is what a transition asks the caller to do: hand closed topics
// to the reconciler and voice notes through the responder.
type Effects struct {
	Closed []*Topic
	Notes  []Note
}

// Meeting is the per-channel state machine. At most one topic is open at
// any time, and Current is nil whenever Active is false.
type Meeting struct {
	Channel string
	Info    ChannelInfo
	Active  bool
	Current *Topic
}

// NewMeeting creates the idle state for a channel.
func NewMeeting(channel string, info ChannelInfo) *Meeting {
	return &Meeting{Channel: channel, Info: info}
}

// Apply advances the state machine by one classified line. Lines are
// applied strictly in arrival order; topic boundaries are defined by
// that order.
func (m *Meeting) Apply(d Directive, line ChatLine) Effects {
	switch d.Kind {
	case KindTopicStart:
		return m.startTopic(d.Title, line)
	case KindIssueAssociate:
		return m.associate(d.Issue, line)
	case KindIssueCancel:
		return m.cancel(line)
	case KindEndTopic:
		return m.endTopic(line)
	case KindEndMeeting:
		return m.endMeeting()
	case KindContent:
		return m.content(line)
	default:
		// KindHelp never reaches the state machine.
		return Effects{}
	}
}

// CloseTopic closes the open topic, if any, handing it to the caller.
// Used for inactivity timeouts and shutdown in addition to directives.
func (m *Meeting) CloseTopic() *Topic {
	t := m.Current
	m.Current = nil
	return t
}

func (m *Meeting) startTopic(title string, line ChatLine) Effects {
	var fx Effects
	if closed := m.CloseTopic(); closed != nil {
		fx.Closed = append(fx.Closed, closed)
	}
	m.Active = true
	m.Current = NewTopic(title, m.Info.Group, m.Info.ResolutionsOnly)
	m.Current.Append(line, KindTopicStart)
	return fx
}

func (m *Meeting) associate(issue IssueRef, line ChatLine) Effects {
	if m.Current == nil {
		return Effects{Notes: []Note{{Kind: NoteMistimed, Issue: issue}}}
	}
	m.Current.Append(line, KindIssueAssociate)
	if !m.Info.RepoAllowed(issue.Repo) {
		return Effects{Notes: []Note{{
			Kind:    NoteAssociationRejected,
			Issue:   issue,
			Allowed: m.Info.ReposAllowed,
		}}}
	}
	prev := m.Current.Issue
	if prev != nil && prev.URL == issue.URL {
		// Restating the current target is not worth a reply.
		return Effects{}
	}
	m.Current.Issue = &issue
	note := Note{Kind: NoteAssociationSet, Issue: issue}
	if prev != nil {
		note.Kind = NoteAssociationReplaced
		note.Prev = prev
	}
	return Effects{Notes: []Note{note}}
}

func (m *Meeting) cancel(line ChatLine) Effects {
	if m.Current == nil {
		return Effects{Notes: []Note{{Kind: NoteMistimed}}}
	}
	m.Current.Append(line, KindIssueCancel)
	if m.Current.Issue == nil {
		return Effects{}
	}
	m.Current.Issue = nil
	return Effects{Notes: []Note{{Kind: NoteAssociationCleared}}}
}

func (m *Meeting) endTopic(line ChatLine) Effects {
	if m.Current == nil {
		return Effects{}
	}
	m.Current.Append(line, KindEndTopic)
	return Effects{Closed: []*Topic{m.CloseTopic()}}
}

func (m *Meeting) endMeeting() Effects {
	var fx Effects
	if closed := m.CloseTopic(); closed != nil {
		fx.Closed = append(fx.Closed, closed)
	}
	m.Active = false
	return fx
}

// TakeUp closes any open topic and opens a new one already associated
// with the given issue, titled after it. Used by the take-up commands,
// where the topic is born from the issue rather than the other way
// around.
func (m *Meeting) TakeUp(title string, issue IssueRef) *Topic {
	closed := m.CloseTopic()
	m.Active = true
	m.Current = NewTopic(title, m.Info.Group, m.Info.ResolutionsOnly)
	m.Current.Issue = &issue
	return closed
}

func (m *Meeting) content(line ChatLine) Effects {
	if m.Current == nil {
		// Chatter outside any topic is not retained, but an issue URL
		// mentioned here deserves a reply: there is no topic it could
		// ever be attached to.
		if _, ok := FindIssueURL(line.Text); ok {
			return Effects{Notes: []Note{{Kind: NoteBareURLNoTopic}}}
		}
		return Effects{}
	}
	m.Current.Append(line, KindContent)
	if url, ok := FindIssueURL(line.Text); ok {
		if m.Current.Issue == nil || m.Current.Issue.URL != url {
			return Effects{Notes: []Note{{Kind: NoteBareURL}}}
		}
	}
	return Effects{}
}
