package contract

import "slices"

// Conversation is the ordered message history of a session. It only grows,
// except through Compact.
type Conversation struct {
	Messages []Message `json:"messages"`
}

func NewConversation(msgs ...Message) *Conversation {
	return &Conversation{Messages: slices.Clone(msgs)}
}

func (c *Conversation) Append(msgs ...Message) {
	for _, m := range msgs {
		if m.Transient {
			continue
		}
		c.Messages = append(c.Messages, m)
	}
}

func (c *Conversation) Len() int {
	if c == nil {
		return 0
	}
	return len(c.Messages)
}

// LastSeq is the highest ledger sequence number the conversation holds.
func (c *Conversation) LastSeq() int64 {
	if c == nil {
		return 0
	}
	var last int64
	for _, m := range c.Messages {
		last = max(last, m.Seq)
	}
	return last
}

// Snapshot returns a copy that later appends cannot alias.
func (c *Conversation) Snapshot() []Message {
	if c == nil {
		return nil
	}
	return slices.Clone(c.Messages)
}

// Compact replaces every message that belongs to the summarized ledger span
// with the summary, which goes first. Tool traffic older than the last
// replaced message goes too, since it only explains messages that no
// longer exist.
func (c *Conversation) Compact(span SummarySpan, summary Message) {
	if c == nil || span.Empty() {
		return
	}
	cut := -1
	for i, m := range c.Messages {
		if m.Seq >= span.From && m.Seq <= span.To {
			cut = i
		}
	}
	summary.Summary = &span
	if summary.Seq == 0 {
		summary.Seq = span.SummarySeq
	}

	kept := make([]Message, 0, len(c.Messages)-cut)
	kept = append(kept, summary)
	for _, m := range c.Messages[cut+1:] {
		if m.Seq != 0 && m.Seq < span.From {
			continue
		}
		if m.Summary != nil {
			continue
		}
		kept = append(kept, m)
	}
	c.Messages = kept
}
