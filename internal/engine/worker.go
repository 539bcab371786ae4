package engine

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/minutetrack/internal/minutes"
	"github.com/minutetrack/internal/respond"
)

// worker owns one channel's meeting state. Only its goroutine mutates
// the meeting; the mutex exists so status snapshots can read it.
type worker struct {
	engine  *Engine
	channel string
	lines   chan minutes.ChatLine

	mu      sync.Mutex
	meeting *minutes.Meeting

	idle *time.Timer
}

const lineQueueDepth = 256

func newWorker(e *Engine, channel string, info minutes.ChannelInfo) *worker {
	return &worker{
		engine:  e,
		channel: channel,
		lines:   make(chan minutes.ChatLine, lineQueueDepth),
		meeting: minutes.NewMeeting(channel, info),
	}
}

func (w *worker) run() {
	defer w.engine.workerWG.Done()

	timeout := w.engine.cfg.ActivityTimeout
	w.idle = time.NewTimer(time.Hour)
	if !w.idle.Stop() {
		<-w.idle.C
	}
	defer w.idle.Stop()

	for {
		select {
		case line, ok := <-w.lines:
			if !ok {
				w.shutdown()
				return
			}
			w.handle(line)
			w.resetIdle(timeout)
		case <-w.idle.C:
			w.expireTopic()
		}
	}
}

// resetIdle arms the inactivity timer whenever a topic is open. A zero
// timeout disables auto-ending entirely.
func (w *worker) resetIdle(timeout time.Duration) {
	if timeout <= 0 {
		return
	}
	if !w.idle.Stop() {
		select {
		case <-w.idle.C:
		default:
		}
	}
	w.mu.Lock()
	open := w.meeting.Current != nil
	w.mu.Unlock()
	if open {
		w.idle.Reset(timeout)
	}
}

// expireTopic ends the open topic after channel inactivity, the same as
// an explicit "end topic".
func (w *worker) expireTopic() {
	w.mu.Lock()
	closed := w.meeting.CloseTopic()
	w.mu.Unlock()
	if closed == nil {
		return
	}
	log.Info().Str("channel", w.channel).Str("topic", closed.Title).Msg("topic ended by inactivity")
	w.engine.dispatchReconcile(w.channel, closed)
}

// shutdown ends the meeting so any open topic still gets posted.
func (w *worker) shutdown() {
	w.mu.Lock()
	fx := w.meeting.Apply(minutes.Directive{Kind: minutes.KindEndMeeting}, minutes.ChatLine{})
	w.mu.Unlock()
	for _, t := range fx.Closed {
		w.engine.dispatchReconcile(w.channel, t)
	}
}

func (w *worker) handle(line minutes.ChatLine) {
	if minutes.IsRollCall(line.Text) {
		return
	}
	d := w.engine.classifier.Classify(line)
	if d.Kind == minutes.KindHelp {
		w.command(d.Command)
		return
	}

	w.mu.Lock()
	fx := w.meeting.Apply(d, line)
	w.mu.Unlock()

	for _, n := range fx.Notes {
		switch n.Kind {
		case minutes.NoteAssociationSet, minutes.NoteAssociationReplaced:
			// Acknowledged asynchronously with the issue title.
			w.engine.ackAssociation(w.channel, n.Issue, n.Prev)
		default:
			w.engine.sender.SendAction(w.channel, respond.Note(n))
		}
	}
	for _, t := range fx.Closed {
		w.engine.dispatchReconcile(w.channel, t)
	}
}

func (w *worker) command(cmd string) {
	send := func(text string) { w.engine.sender.Send(w.channel, text) }
	if arg, _, header, ok := minutes.ParseTakeUp(cmd); ok {
		w.takeUpCommand(arg, header)
		return
	}
	switch strings.ToLower(cmd) {
	case "help":
		for _, l := range respond.Help() {
			send(l)
		}
	case "intro":
		w.mu.Lock()
		allowed := w.meeting.Info.ReposAllowed
		w.mu.Unlock()
		for _, l := range respond.Intro(allowed, w.engine.cfg.Source, w.engine.cfg.Owners) {
			send(l)
		}
	case "status":
		for _, s := range w.engine.Status() {
			if s.TopicOpen {
				send(fmt.Sprintf("%s (%d lines buffered on \"%s\")", s.Channel, s.BufferedLines, s.TopicTitle))
				if s.IssueURL != "" {
					send(fmt.Sprintf("  will comment on %s", s.IssueURL))
				} else {
					send("  no GitHub URL to comment on")
				}
			} else {
				send(fmt.Sprintf("%s (no topic data buffered)", s.Channel))
			}
		}
	default:
		send(respond.Unknown())
	}
}

// takeUpCommand validates a take-up argument, closes the open topic,
// and hands off to the engine for the async title fetch.
func (w *worker) takeUpCommand(arg, header string) {
	ref, ok := minutes.ParseIssueURL(arg)
	if !ok {
		w.engine.sender.Send(w.channel, respond.NotAnIssue())
		return
	}

	w.mu.Lock()
	info := w.meeting.Info
	duplicate := w.meeting.Current != nil && w.meeting.Current.Issue != nil &&
		w.meeting.Current.Issue.URL == ref.URL
	w.mu.Unlock()

	if duplicate {
		w.engine.sender.Send(w.channel, respond.TakeUpDuplicate(ref.URL))
		return
	}
	if !info.RepoAllowed(ref.Repo) {
		w.engine.sender.Send(w.channel, respond.Note(minutes.Note{
			Kind:    minutes.NoteAssociationRejected,
			Issue:   ref,
			Allowed: info.ReposAllowed,
		}))
		return
	}

	w.mu.Lock()
	closed := w.meeting.CloseTopic()
	w.mu.Unlock()
	if closed != nil {
		w.engine.dispatchReconcile(w.channel, closed)
	}
	w.engine.takeUpTopic(w, header, ref)
}

// takeUp opens the taken-up topic once its title has resolved. Any
// topic opened in the meantime is closed and returned.
func (w *worker) takeUp(title string, issue minutes.IssueRef) *minutes.Topic {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.meeting.TakeUp(title, issue)
}

func (w *worker) status() ChannelStatus {
	w.mu.Lock()
	defer w.mu.Unlock()
	s := ChannelStatus{
		Channel:       w.channel,
		MeetingActive: w.meeting.Active,
	}
	if t := w.meeting.Current; t != nil {
		s.TopicOpen = true
		s.TopicTitle = t.Title
		s.BufferedLines = len(t.Lines)
		if t.Issue != nil {
			s.IssueURL = t.Issue.URL
		}
	}
	return s
}
