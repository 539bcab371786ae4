package minutes

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testInfo = ChannelInfo{
	Group:        "CSS Working Group",
	ReposAllowed: []string{"w3c/csswg-drafts", "whatwg/*"},
}

func apply(t *testing.T, m *Meeting, texts ...string) Effects {
	t.Helper()
	c := Classifier{Nick: "minutetrack"}
	var fx Effects
	base := time.Date(2024, 3, 7, 16, 0, 0, 0, time.UTC)
	for i, text := range texts {
		line := ChatLine{Channel: m.Channel, Sender: "fantasai", Text: text, Time: base.Add(time.Duration(i) * time.Minute)}
		got := m.Apply(c.Classify(line), line)
		fx.Closed = append(fx.Closed, got.Closed...)
		fx.Notes = append(fx.Notes, got.Notes...)
	}
	return fx
}

func TestRepoAllowed(t *testing.T) {
	assert.True(t, testInfo.RepoAllowed("w3c/csswg-drafts"))
	assert.False(t, testInfo.RepoAllowed("w3c/other"))
	assert.True(t, testInfo.RepoAllowed("whatwg/html"))
	assert.False(t, testInfo.RepoAllowed("evil/csswg-drafts"))
	assert.False(t, testInfo.RepoAllowed("noslash"))
}

func TestTopicStartOpensMeetingAndTopic(t *testing.T) {
	m := NewMeeting("#css", testInfo)
	assert.False(t, m.Active)

	fx := apply(t, m, "Topic: Frobnication")
	assert.Empty(t, fx.Closed)
	assert.True(t, m.Active)
	require.NotNil(t, m.Current)
	assert.Equal(t, "Frobnication", m.Current.Title)
	// The triggering line is part of the new topic's transcript.
	require.Len(t, m.Current.Lines, 1)
	assert.Equal(t, KindTopicStart, m.Current.Lines[0].Kind)
}

func TestTopicRedeclarationClosesAndReopens(t *testing.T) {
	m := NewMeeting("#css", testInfo)

	fx := apply(t, m, "Topic: first", "Topic: second")
	require.Len(t, fx.Closed, 1)
	closed := fx.Closed[0]
	assert.Equal(t, "first", closed.Title)
	// No content beyond the start line: the reconciler must skip it.
	assert.False(t, closed.HasContent())
	require.NotNil(t, m.Current)
	assert.Equal(t, "second", m.Current.Title)
	assert.NotEqual(t, closed.ID, m.Current.ID, "re-declaration is a distinct occurrence")
}

func TestAssociateSetsTarget(t *testing.T) {
	m := NewMeeting("#css", testInfo)

	fx := apply(t, m,
		"Topic: Frobnication",
		"GitHub: https://github.com/w3c/csswg-drafts/issues/42",
	)
	require.Len(t, fx.Notes, 1)
	assert.Equal(t, NoteAssociationSet, fx.Notes[0].Kind)
	require.NotNil(t, m.Current.Issue)
	assert.Equal(t, 42, m.Current.Issue.Number)
	// The directive line is retained in the transcript.
	assert.Equal(t, KindIssueAssociate, m.Current.Lines[1].Kind)
}

func TestAssociateReplacedNoteCarriesPrevious(t *testing.T) {
	m := NewMeeting("#css", testInfo)

	fx := apply(t, m,
		"Topic: Frobnication",
		"GitHub: https://github.com/w3c/csswg-drafts/issues/42",
		"GitHub: https://github.com/w3c/csswg-drafts/issues/43",
	)
	require.Len(t, fx.Notes, 2)
	replaced := fx.Notes[1]
	assert.Equal(t, NoteAssociationReplaced, replaced.Kind)
	require.NotNil(t, replaced.Prev)
	assert.Equal(t, 42, replaced.Prev.Number)
	assert.Equal(t, 43, replaced.Issue.Number)
}

func TestAssociateSameURLIsSilent(t *testing.T) {
	m := NewMeeting("#css", testInfo)

	fx := apply(t, m,
		"Topic: Frobnication",
		"GitHub: https://github.com/w3c/csswg-drafts/issues/42",
		"GitHub: https://github.com/w3c/csswg-drafts/issues/42",
	)
	assert.Len(t, fx.Notes, 1)
}

func TestAssociateDisallowedRepoRejected(t *testing.T) {
	m := NewMeeting("#css", testInfo)

	fx := apply(t, m,
		"Topic: Frobnication",
		"GitHub: https://github.com/evil/repo/issues/1",
	)
	require.Len(t, fx.Notes, 1)
	assert.Equal(t, NoteAssociationRejected, fx.Notes[0].Kind)
	assert.Equal(t, testInfo.ReposAllowed, fx.Notes[0].Allowed)
	assert.Nil(t, m.Current.Issue)
}

func TestMistimedAssociateAndCancelAreSurfaced(t *testing.T) {
	m := NewMeeting("#css", testInfo)

	fx := apply(t, m, "GitHub: https://github.com/w3c/csswg-drafts/issues/42")
	require.Len(t, fx.Notes, 1)
	assert.Equal(t, NoteMistimed, fx.Notes[0].Kind)

	fx = apply(t, m, "github: none")
	require.Len(t, fx.Notes, 1)
	assert.Equal(t, NoteMistimed, fx.Notes[0].Kind)
}

func TestCancelClearsAssociation(t *testing.T) {
	m := NewMeeting("#css", testInfo)

	fx := apply(t, m,
		"Topic: Frobnication",
		"GitHub: https://github.com/w3c/csswg-drafts/issues/42",
		"github: none",
	)
	require.Len(t, fx.Notes, 2)
	assert.Equal(t, NoteAssociationCleared, fx.Notes[1].Kind)
	assert.Nil(t, m.Current.Issue)

	// Cancelling again with nothing set stays silent.
	fx = apply(t, m, "minutetrack, cancel")
	assert.Empty(t, fx.Notes)
}

func TestCancelThenEndTopicLeavesNoTarget(t *testing.T) {
	m := NewMeeting("#css", testInfo)

	fx := apply(t, m,
		"Topic: Frobnication",
		"GitHub: https://github.com/w3c/csswg-drafts/issues/42",
		"some discussion",
		"minutetrack, cancel",
		"minutetrack, end topic",
	)
	require.Len(t, fx.Closed, 1)
	assert.Nil(t, fx.Closed[0].Issue, "earlier association must not survive a cancel")
}

func TestEndTopicClosesWithClosingLine(t *testing.T) {
	m := NewMeeting("#css", testInfo)

	fx := apply(t, m,
		"Topic: Frobnication",
		"some discussion",
		"minutetrack, end topic",
	)
	require.Len(t, fx.Closed, 1)
	closed := fx.Closed[0]
	last := closed.Lines[len(closed.Lines)-1]
	assert.Equal(t, KindEndTopic, last.Kind)
	assert.Nil(t, m.Current)
	assert.True(t, m.Active, "ending a topic does not end the meeting")

	// A second end topic with nothing open is a quiet no-op.
	fx = apply(t, m, "minutetrack, end topic")
	assert.Empty(t, fx.Closed)
	assert.Empty(t, fx.Notes)
}

func TestEndMeetingResetsToIdle(t *testing.T) {
	m := NewMeeting("#css", testInfo)

	fx := apply(t, m,
		"Topic: Frobnication",
		"some discussion",
		"minutetrack, end meeting",
	)
	require.Len(t, fx.Closed, 1)
	assert.False(t, m.Active)
	assert.Nil(t, m.Current)
}

func TestContentOutsideTopicIsDiscarded(t *testing.T) {
	m := NewMeeting("#css", testInfo)

	fx := apply(t, m, "pre-meeting chatter", "Topic: real start")
	require.NotNil(t, m.Current)
	assert.Len(t, m.Current.Lines, 1, "chatter before the topic is not retained")
	assert.Empty(t, fx.Closed)
}

func TestBareURLWithNoTopicGetsReply(t *testing.T) {
	m := NewMeeting("#css", testInfo)

	fx := apply(t, m, "see https://github.com/w3c/csswg-drafts/issues/42")
	require.Len(t, fx.Notes, 1)
	assert.Equal(t, NoteBareURLNoTopic, fx.Notes[0].Kind)

	// Plain chatter with no URL stays silent.
	fx = apply(t, m, "pre-meeting chatter")
	assert.Empty(t, fx.Notes)
}

func TestTakeUpOpensAssociatedTopic(t *testing.T) {
	m := NewMeeting("#css", testInfo)
	issue := IssueRef{Repo: "w3c/csswg-drafts", Number: 42, URL: "https://github.com/w3c/csswg-drafts/issues/42"}

	closed := m.TakeUp("Frobnication spec", issue)
	assert.Nil(t, closed)
	assert.True(t, m.Active)
	require.NotNil(t, m.Current)
	assert.Equal(t, "Frobnication spec", m.Current.Title)
	require.NotNil(t, m.Current.Issue)
	assert.Equal(t, 42, m.Current.Issue.Number)

	// Taking up over an open topic closes it first.
	apply(t, m, "some discussion")
	open := m.Current
	closed = m.TakeUp("Next thing", IssueRef{Repo: "w3c/csswg-drafts", Number: 43, URL: "https://github.com/w3c/csswg-drafts/issues/43"})
	assert.Same(t, open, closed)
	assert.Equal(t, "Next thing", m.Current.Title)
}

func TestContentAppendsInOrder(t *testing.T) {
	m := NewMeeting("#css", testInfo)

	apply(t, m, "Topic: Frobnication", "first", "second", "RESOLVED: ship it")
	require.Len(t, m.Current.Lines, 4)
	assert.Equal(t, "first", m.Current.Lines[1].Line.Text)
	assert.Equal(t, "second", m.Current.Lines[2].Line.Text)
	assert.Equal(t, []string{"RESOLVED: ship it"}, m.Current.Resolutions())
	assert.True(t, m.Current.Resolved())
}

func TestBareURLMentionNudges(t *testing.T) {
	m := NewMeeting("#css", testInfo)

	fx := apply(t, m,
		"Topic: Frobnication",
		"see https://github.com/w3c/csswg-drafts/issues/42 for background",
	)
	require.Len(t, fx.Notes, 1)
	assert.Equal(t, NoteBareURL, fx.Notes[0].Kind)

	// Mentioning the URL that is already the target stays silent.
	m2 := NewMeeting("#css", testInfo)
	fx = apply(t, m2,
		"Topic: Frobnication",
		"GitHub: https://github.com/w3c/csswg-drafts/issues/42",
		"as https://github.com/w3c/csswg-drafts/issues/42 says",
	)
	assert.Len(t, fx.Notes, 1) // only the association ack
}
