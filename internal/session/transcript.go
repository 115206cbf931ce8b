package session

import (
	"slices"

	"github.com/npezzotti/go-chatsync/internal/types"
)

// Transcript is the ordered message list of the active conversation, in
// arrival order. Messages are deduplicated by id.
type Transcript struct {
	messages []types.Message
	ids      map[string]struct{}
}

func NewTranscript() *Transcript {
	return &Transcript{ids: make(map[string]struct{})}
}

func (t *Transcript) Reset() {
	t.messages = nil
	t.ids = make(map[string]struct{})
}

// Append adds msg at the end and reports false if a message with the same id
// is already present.
func (t *Transcript) Append(msg types.Message) bool {
	if msg.Id != "" {
		if _, ok := t.ids[msg.Id]; ok {
			return false
		}
		t.ids[msg.Id] = struct{}{}
	}

	t.messages = append(t.messages, msg)
	return true
}

// Replace installs a fetched history page. Messages that arrived live since
// the last Reset and are missing from the page stay at the end.
func (t *Transcript) Replace(history []types.Message) {
	live := t.messages
	t.messages = make([]types.Message, 0, len(history)+len(live))
	t.ids = make(map[string]struct{}, len(history)+len(live))

	for _, msg := range history {
		t.Append(msg)
	}
	for _, msg := range live {
		t.Append(msg)
	}
}

func (t *Transcript) Messages() []types.Message {
	return slices.Clone(t.messages)
}

func (t *Transcript) Len() int {
	return len(t.messages)
}
