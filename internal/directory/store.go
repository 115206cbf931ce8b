package directory

import (
	"fmt"
	"log"
	"slices"
	"sync"

	"github.com/npezzotti/go-chatsync/internal/types"
)

// Store holds the known channels, direct-message threads and users keyed by
// id. Listings keep first-seen order.
type Store struct {
	log *log.Logger
	mu  sync.RWMutex

	channels     map[string]*types.Channel
	channelOrder []string
	dms          map[string]*types.DirectMessageThread
	dmOrder      []string
	users        map[string]*types.User
	userOrder    []string
}

func NewStore(l *log.Logger) *Store {
	return &Store{
		log:      l,
		channels: make(map[string]*types.Channel),
		dms:      make(map[string]*types.DirectMessageThread),
		users:    make(map[string]*types.User),
	}
}

// UpsertChannel inserts the channel or replaces the stored record with the
// same id. It reports whether a new entry was created.
func (s *Store) UpsertChannel(c types.Channel) (bool, error) {
	if c.Id == "" {
		return false, types.ErrMissingId
	}
	if c.UnreadCount < 0 {
		c.UnreadCount = 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.channels[c.Id]; ok {
		*existing = c
		return false, nil
	}

	s.channels[c.Id] = &c
	s.channelOrder = append(s.channelOrder, c.Id)
	return true, nil
}

func (s *Store) UpsertDirectMessageThread(d types.DirectMessageThread) (bool, error) {
	if d.Id == "" {
		return false, types.ErrMissingId
	}
	participants := distinctParticipants(d.ParticipantIds)
	if len(participants) < 2 {
		return false, fmt.Errorf("thread %q: %w", d.Id, types.ErrInvalidParticipants)
	}
	if d.UnreadCount < 0 {
		d.UnreadCount = 0
	}
	d.ParticipantIds = participants

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.dms[d.Id]; ok {
		*existing = d
		return false, nil
	}

	s.dms[d.Id] = &d
	s.dmOrder = append(s.dmOrder, d.Id)
	return true, nil
}

// distinctParticipants returns ids without blanks or repeats, in order.
func distinctParticipants(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != "" && !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	return out
}

func (s *Store) UpsertUser(u types.User) (bool, error) {
	if u.Id == "" {
		return false, types.ErrMissingId
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.users[u.Id]; ok {
		*existing = u
		return false, nil
	}

	s.users[u.Id] = &u
	s.userOrder = append(s.userOrder, u.Id)
	return true, nil
}

// IncrementUnread bumps the unread counter of the referenced conversation.
// Unknown conversations are logged and left alone since events may arrive
// before the directory is populated.
func (s *Store) IncrementUnread(ref types.ConversationRef) bool {
	return s.setUnread(ref, func(n int) int { return n + 1 })
}

func (s *Store) ResetUnread(ref types.ConversationRef) bool {
	return s.setUnread(ref, func(int) int { return 0 })
}

func (s *Store) setUnread(ref types.ConversationRef, f func(int) int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch ref.Kind {
	case types.KindChannel:
		if c, ok := s.channels[ref.Id]; ok {
			c.UnreadCount = f(c.UnreadCount)
			return true
		}
	case types.KindDirect:
		if d, ok := s.dms[ref.Id]; ok {
			d.UnreadCount = f(d.UnreadCount)
			return true
		}
	}

	s.log.Printf("unread update for unknown conversation %q ignored", ref)
	return false
}

func (s *Store) Unread(ref types.ConversationRef) (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	switch ref.Kind {
	case types.KindChannel:
		if c, ok := s.channels[ref.Id]; ok {
			return c.UnreadCount, true
		}
	case types.KindDirect:
		if d, ok := s.dms[ref.Id]; ok {
			return d.UnreadCount, true
		}
	}
	return 0, false
}

func (s *Store) Channel(id string) (types.Channel, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if c, ok := s.channels[id]; ok {
		return *c, true
	}
	return types.Channel{}, false
}

func (s *Store) DirectMessageThread(id string) (types.DirectMessageThread, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if d, ok := s.dms[id]; ok {
		dm := *d
		dm.ParticipantIds = slices.Clone(d.ParticipantIds)
		return dm, true
	}
	return types.DirectMessageThread{}, false
}

func (s *Store) User(id string) (types.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if u, ok := s.users[id]; ok {
		return *u, true
	}
	return types.User{}, false
}

func (s *Store) Channels() []types.Channel {
	s.mu.RLock()
	defer s.mu.RUnlock()

	channels := make([]types.Channel, 0, len(s.channelOrder))
	for _, id := range s.channelOrder {
		channels = append(channels, *s.channels[id])
	}
	return channels
}

func (s *Store) DirectMessageThreads() []types.DirectMessageThread {
	s.mu.RLock()
	defer s.mu.RUnlock()

	dms := make([]types.DirectMessageThread, 0, len(s.dmOrder))
	for _, id := range s.dmOrder {
		dm := *s.dms[id]
		dm.ParticipantIds = slices.Clone(dm.ParticipantIds)
		dms = append(dms, dm)
	}
	return dms
}

func (s *Store) Users() []types.User {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]types.User, 0, len(s.userOrder))
	for _, id := range s.userOrder {
		users = append(users, *s.users[id])
	}
	return users
}
