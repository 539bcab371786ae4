// Package chat is the IRC transport adapter. It turns PRIVMSGs into
// ChatLine values for the engine and carries responder output back,
// splitting long messages at the protocol's length limit. Nothing above
// this package touches the socket.
package chat

import (
	"bufio"
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/minutetrack/internal/minutes"
)

// Handler receives every channel line addressed to a joined channel.
type Handler func(line minutes.ChatLine)

// Config describes the connection.
type Config struct {
	Server   string // host:port
	UseTLS   bool
	Nick     string
	Realname string
	Channels []string
}

// Client is a minimal IRC client: registration, joins, PING/PONG,
// PRIVMSG in both directions.
type Client struct {
	cfg  Config
	conn net.Conn

	mu sync.Mutex // guards writes
	w  *bufio.Writer
}

// Dial connects and registers.
func Dial(cfg Config) (*Client, error) {
	var conn net.Conn
	var err error
	if cfg.UseTLS {
		conn, err = tls.Dial("tcp", cfg.Server, nil)
	} else {
		conn, err = net.DialTimeout("tcp", cfg.Server, 30*time.Second)
	}
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", cfg.Server, err)
	}

	c := &Client{cfg: cfg, conn: conn, w: bufio.NewWriter(conn)}
	realname := cfg.Realname
	if realname == "" {
		realname = cfg.Nick
	}
	c.raw("NICK %s", cfg.Nick)
	c.raw("USER %s 0 * :%s", cfg.Nick, realname)
	return c, nil
}

// Run reads messages until the connection drops or the context ends.
func (c *Client) Run(ctx context.Context, handler Handler) error {
	go func() {
		<-ctx.Done()
		c.conn.Close()
	}()

	scanner := bufio.NewScanner(c.conn)
	scanner.Buffer(make([]byte, 4096), 4096)
	for scanner.Scan() {
		c.dispatch(parseMessage(scanner.Text()), handler)
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading from server: %w", err)
	}
	return fmt.Errorf("server closed the connection")
}

// Close tears the connection down.
func (c *Client) Close() error {
	c.raw("QUIT :shutting down")
	return c.conn.Close()
}

func (c *Client) dispatch(m message, handler Handler) {
	switch m.command {
	case "PING":
		c.raw("PONG :%s", m.trailing)
	case "001": // registered
		for _, ch := range c.cfg.Channels {
			c.raw("JOIN %s", ch)
		}
	case "INVITE":
		// Rejoin configured channels when re-invited.
		for _, ch := range c.cfg.Channels {
			if strings.EqualFold(ch, m.trailing) {
				c.raw("JOIN %s", ch)
			}
		}
	case "PRIVMSG":
		c.handlePrivmsg(m, handler)
	}
}

func (c *Client) handlePrivmsg(m message, handler Handler) {
	if m.nick == "" || len(m.params) == 0 {
		return
	}
	target := m.params[0]
	if !strings.HasPrefix(target, "#") {
		// Private messages are not meeting content.
		return
	}
	text := m.trailing
	isAction := false
	if strings.HasPrefix(text, "\x01ACTION ") && strings.HasSuffix(text, "\x01") {
		isAction = true
		text = text[8 : len(text)-1]
	}
	handler(minutes.ChatLine{
		Channel:  target,
		Sender:   m.nick,
		Text:     filterHidden(text),
		Time:     time.Now(),
		IsAction: isAction,
	})
}

// filterHidden truncates at "[off]" so off-the-record remarks stay out
// of logs, matching the convention of other W3C minuting bots.
func filterHidden(line string) string {
	if i := strings.Index(line, "[off]"); i >= 0 {
		return line[:i] + "[hidden]"
	}
	return line
}

// Send delivers responder output to a channel. Messages longer than the
// protocol allows are split on UTF-8 boundaries.
func (c *Client) Send(channel, text string) {
	// 512 bytes per IRC message, minus "PRIVMSG ", the target, the
	// separators, and server-added routing overhead.
	maxLen := 463 - 8 - len(channel)
	for _, segment := range splitUTF8(text, maxLen) {
		log.Debug().Str("channel", channel).Str("text", segment).Msg("sending line")
		c.raw("PRIVMSG %s :%s", channel, segment)
	}
}

// SendAction delivers a message as a CTCP ACTION ("/me") line, the way
// minuting bots conventionally voice their acknowledgments.
func (c *Client) SendAction(channel, text string) {
	maxLen := 463 - 8 - len(channel) - len("\x01ACTION \x01")
	for _, segment := range splitUTF8(text, maxLen) {
		log.Debug().Str("channel", channel).Str("text", segment).Msg("sending action")
		c.raw("PRIVMSG %s :\x01ACTION %s\x01", channel, segment)
	}
}

func (c *Client) raw(format string, args ...interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.w, format+"\r\n", args...)
	if err := c.w.Flush(); err != nil {
		log.Warn().Err(err).Msg("write to server failed")
	}
}

// splitUTF8 cuts s into segments of at most maxLen bytes, never inside
// a multi-byte rune. An empty input yields one empty segment.
func splitUTF8(s string, maxLen int) []string {
	if len(s) <= maxLen {
		return []string{s}
	}
	var segments []string
	for len(s) > maxLen {
		cut := maxLen
		for cut > 0 && s[cut]&0b1100_0000 == 0b1000_0000 {
			cut--
		}
		segments = append(segments, s[:cut])
		s = s[cut:]
	}
	return append(segments, s)
}

// message is one parsed IRC protocol line.
type message struct {
	nick     string // sender nick from the prefix, if any
	command  string
	params   []string
	trailing string
}

func parseMessage(raw string) message {
	var m message
	rest := raw

	if strings.HasPrefix(rest, ":") {
		prefix, after, ok := strings.Cut(rest[1:], " ")
		if !ok {
			return m
		}
		if nick, _, found := strings.Cut(prefix, "!"); found {
			m.nick = nick
		} else {
			m.nick = prefix
		}
		rest = after
	}

	if body, trailing, ok := strings.Cut(rest, " :"); ok {
		m.trailing = trailing
		rest = body
	}

	fields := strings.Fields(rest)
	if len(fields) == 0 {
		return m
	}
	m.command = strings.ToUpper(fields[0])
	m.params = fields[1:]
	return m
}
