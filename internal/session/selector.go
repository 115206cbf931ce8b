package session

import "github.com/npezzotti/go-chatsync/internal/types"

// Selector tracks the single focused conversation. A message is visible
// only if it belongs to the active conversation.
type Selector struct {
	active types.ConversationRef
	set    bool
}

func (s *Selector) Active() (types.ConversationRef, bool) {
	return s.active, s.set
}

func (s *Selector) Set(ref types.ConversationRef) {
	s.active = ref
	s.set = true
}

func (s *Selector) IsVisible(ref types.ConversationRef) bool {
	return s.set && s.active == ref
}
