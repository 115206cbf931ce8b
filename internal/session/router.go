package session

import (
	"github.com/npezzotti/go-chatsync/internal/protocol"
	"github.com/npezzotti/go-chatsync/internal/stats"
	"github.com/npezzotti/go-chatsync/internal/types"
)

// route decodes one inbound frame and applies it. A frame that fails to
// decode or panics a handler is dropped without affecting later frames.
func (s *Session) route(raw []byte) {
	defer func() {
		if err := recover(); err != nil {
			s.stats.Incr(stats.FramesDropped)
			s.log.Printf("panic while routing frame: %v", err)
		}
	}()

	ev, err := protocol.Decode(raw)
	if err != nil {
		s.stats.Incr(stats.FramesDropped)
		s.log.Printf("dropping frame: %v", err)
		return
	}

	switch e := ev.(type) {
	case protocol.NewMessage:
		s.handleNewMessage(e.Message)
	case protocol.ChannelCreated:
		s.handleChannelCreated(e.Channel)
	case protocol.DirectMessageCreated:
		s.handleDirectMessageCreated(e.Thread)
	case protocol.UserStatusChanged:
		s.handleUserStatusChanged(e.User)
	case protocol.Unhandled:
		s.stats.Incr(stats.FramesDropped)
		s.log.Printf("unhandled event type %q", e.Type)
		return
	default:
		s.stats.Incr(stats.FramesDropped)
		s.log.Printf("unexpected event %T", ev)
		return
	}

	s.stats.Incr(stats.FramesRouted)
}

func (s *Session) handleNewMessage(msg types.Message) {
	ref, err := msg.Conversation()
	if err != nil {
		s.stats.Incr(stats.MessagesRejected)
		s.log.Printf("rejecting message %q: %v", msg.Id, err)
		return
	}
	if msg.Id == "" {
		s.stats.Incr(stats.MessagesRejected)
		s.log.Printf("rejecting message in %s: %v", ref, types.ErrMissingId)
		return
	}

	if s.selector.IsVisible(ref) {
		if !s.transcript.Append(msg) {
			s.log.Printf("duplicate message %q in %s", msg.Id, ref)
			return
		}
		s.stats.Incr(stats.MessagesVisible)
		return
	}

	if s.dir.IncrementUnread(ref) {
		s.stats.Incr(stats.MessagesUnread)
	}
}

func (s *Session) handleChannelCreated(c types.Channel) {
	created, err := s.dir.UpsertChannel(c)
	if err != nil {
		s.log.Printf("ignoring channel: %v", err)
		return
	}
	if created {
		s.log.Printf("channel %q (%s) created", c.Name, c.Id)
	}
	s.markActiveRead()
}

func (s *Session) handleDirectMessageCreated(d types.DirectMessageThread) {
	created, err := s.dir.UpsertDirectMessageThread(d)
	if err != nil {
		s.log.Printf("ignoring direct message thread: %v", err)
		return
	}
	if created {
		s.log.Printf("direct message thread %s created", d.Id)
	}
	s.markActiveRead()
}

func (s *Session) handleUserStatusChanged(u types.User) {
	if _, err := s.dir.UpsertUser(u); err != nil {
		s.log.Printf("ignoring user status: %v", err)
		return
	}

	if s.currentUser != nil && s.currentUser.Id == u.Id {
		cu := u
		s.currentUser = &cu
	}
}
