// Package engine drives the per-channel meeting state machines. Lines
// for one channel are applied strictly in arrival order by that
// channel's worker goroutine; channels never share mutable state, and
// tracker calls run on their own goroutines so network latency never
// blocks line processing.
package engine

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/minutetrack/internal/minutes"
	"github.com/minutetrack/internal/reconcile"
	"github.com/minutetrack/internal/respond"
)

// Sender delivers responder output back to the chat transport.
// Acknowledgments go out as action ("/me") lines, the convention of the
// minuting bots this one sits alongside; command replies are plain.
type Sender interface {
	Send(channel, text string)
	SendAction(channel, text string)
}

// Config carries the engine's read-only settings. Channels maps channel
// name to its policy; it is shared across workers without locking.
type Config struct {
	Nick            string
	Source          string
	Owners          []string
	ActivityTimeout time.Duration
	Channels        map[string]minutes.ChannelInfo
}

// ChannelStatus is a point-in-time snapshot of one channel's state,
// served by the status command and the ops API.
type ChannelStatus struct {
	Channel       string `json:"channel"`
	MeetingActive bool   `json:"meeting_active"`
	TopicOpen     bool   `json:"topic_open"`
	TopicTitle    string `json:"topic_title,omitempty"`
	BufferedLines int    `json:"buffered_lines"`
	IssueURL      string `json:"issue_url,omitempty"`
}

// Engine routes incoming chat lines to per-channel workers.
type Engine struct {
	cfg        Config
	classifier minutes.Classifier
	tracker    reconcile.Tracker
	reconciler *reconcile.Reconciler
	sender     Sender

	mu      sync.Mutex
	workers map[string]*worker
	closed  bool

	workerWG sync.WaitGroup
	postWG   sync.WaitGroup
}

// New builds an engine. Lines for channels missing from cfg.Channels are
// ignored: the bot has no allow-list there, so it has no business
// buffering the conversation.
func New(cfg Config, tracker reconcile.Tracker, sender Sender) *Engine {
	return &Engine{
		cfg:        cfg,
		classifier: minutes.Classifier{Nick: cfg.Nick},
		tracker:    tracker,
		reconciler: reconcile.New(tracker),
		sender:     sender,
		workers:    make(map[string]*worker),
	}
}

// HandleLine enqueues one chat line for its channel's worker. Safe for
// concurrent use; per-channel ordering follows enqueue order.
func (e *Engine) HandleLine(line minutes.ChatLine) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	w, ok := e.workers[line.Channel]
	if !ok {
		info, configured := e.cfg.Channels[line.Channel]
		if !configured {
			log.Debug().Str("channel", line.Channel).Msg("ignoring line for unconfigured channel")
			return
		}
		w = newWorker(e, line.Channel, info)
		e.workers[line.Channel] = w
		e.workerWG.Add(1)
		go w.run()
	}
	select {
	case w.lines <- line:
	default:
		// A full queue means the worker is wedged on something local;
		// dropping is better than blocking every other channel.
		log.Warn().Str("channel", line.Channel).Msg("dropping line, worker queue full")
	}
}

// Close ends every meeting (posting any open topics), then waits for all
// in-flight tracker calls to finish.
func (e *Engine) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	for _, w := range e.workers {
		close(w.lines)
	}
	e.mu.Unlock()

	e.workerWG.Wait()
	e.postWG.Wait()
}

// Status snapshots every channel the engine has seen.
func (e *Engine) Status() []ChannelStatus {
	e.mu.Lock()
	workers := make([]*worker, 0, len(e.workers))
	for _, w := range e.workers {
		workers = append(workers, w)
	}
	e.mu.Unlock()

	out := make([]ChannelStatus, 0, len(workers))
	for _, w := range workers {
		out = append(out, w.status())
	}
	return out
}

// dispatchReconcile hands a closed topic to the reconciler on its own
// goroutine and voices the outcome. Skipped topics stay silent.
func (e *Engine) dispatchReconcile(channel string, t *minutes.Topic) {
	e.postWG.Add(1)
	go func() {
		defer e.postWG.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		outcome := e.reconciler.Reconcile(ctx, t)
		if msg := respond.Outcome(outcome); msg != "" {
			e.sender.SendAction(channel, msg)
		}
	}()
}

// ackAssociation fetches the issue title off the worker goroutine and
// acknowledges the association once it resolves.
func (e *Engine) ackAssociation(channel string, issue minutes.IssueRef, prev *minutes.IssueRef) {
	e.postWG.Add(1)
	go func() {
		defer e.postWG.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		title, err := e.tracker.IssueTitle(ctx, issue.Repo, issue.Number)
		if err != nil {
			log.Warn().Err(err).Str("issue", issue.URL).Msg("title fetch failed")
			note := minutes.Note{Kind: minutes.NoteAssociationSet, Issue: issue}
			if prev != nil {
				note.Kind = minutes.NoteAssociationReplaced
				note.Prev = prev
			}
			e.sender.SendAction(channel, respond.Note(note))
			return
		}
		e.sender.SendAction(channel, respond.AssociationAckWithTitle(issue, title, prev))
	}()
}

// takeUpTopic resolves a take-up command: fetch the issue title, echo
// the topic line, and open the new topic already associated. A failed
// title fetch leaves the channel's state untouched.
func (e *Engine) takeUpTopic(w *worker, header string, issue minutes.IssueRef) {
	e.postWG.Add(1)
	go func() {
		defer e.postWG.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		title, err := e.tracker.IssueTitle(ctx, issue.Repo, issue.Number)
		if err != nil {
			log.Warn().Err(err).Str("issue", issue.URL).Msg("take up title fetch failed")
			return
		}
		e.sender.Send(w.channel, respond.TopicHeader(header, title))
		e.sender.SendAction(w.channel, respond.Note(minutes.Note{Kind: minutes.NoteAssociationSet, Issue: issue}))
		if closed := w.takeUp(title, issue); closed != nil {
			e.dispatchReconcile(w.channel, closed)
		}
	}()
}
