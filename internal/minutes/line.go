package minutes

import (
	"fmt"
	"strings"
	"time"
)

// ChatLine is one line received from the chat transport. It is never
// mutated after construction.
type ChatLine struct {
	Channel  string
	Sender   string
	Text     string
	Time     time.Time
	IsAction bool // CTCP ACTION ("/me ...") lines
}

// Transcript renders the line the way it appears inside a posted
// comment's log block.
func (l ChatLine) Transcript() string {
	if l.IsAction {
		return fmt.Sprintf("<%s> * %s %s", l.Time.Format("15:04"), l.Sender, l.Text)
	}
	return fmt.Sprintf("<%s> %s: %s", l.Time.Format("15:04"), l.Sender, l.Text)
}

// IsRollCall reports whether the line is a "present+" roll-call entry.
// Roll-call lines are attendance bookkeeping for other minuting bots and
// are kept out of topic transcripts.
func IsRollCall(text string) bool {
	lower := strings.ToLower(text)
	return lower == "present+" || strings.HasPrefix(lower, "present+ ")
}
