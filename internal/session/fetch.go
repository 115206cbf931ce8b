package session

import (
	"context"

	"github.com/npezzotti/go-chatsync/internal/stats"
	"github.com/npezzotti/go-chatsync/internal/types"
)

// fetchResult carries a completed fetch back to Run, which calls apply.
type fetchResult struct {
	name  string
	apply func()
}

// spawnFetch runs fetch in its own goroutine. On success the returned apply
// func is handed to Run; on failure the error is logged and no state
// changes. Results that complete after Shutdown are dropped.
func (s *Session) spawnFetch(name string, fetch func(ctx context.Context) (func(), error)) {
	s.stats.Incr(stats.FetchesStarted)
	s.wg.Add(1)

	go func() {
		defer s.wg.Done()

		ctx, cancel := context.WithTimeout(s.ctx, s.fetchTimeout)
		defer cancel()

		apply, err := fetch(ctx)
		if err != nil {
			s.stats.Incr(stats.FetchErrors)
			s.log.Printf("%s: %v", name, err)
			return
		}

		select {
		case s.fetchDone <- fetchResult{name: name, apply: apply}:
		case <-s.done:
			s.log.Printf("%s completed after shutdown, dropping", name)
		}
	}()
}

// Bootstrap loads the current user and the directory listings. The first
// non-empty channel listing selects its first channel unless a conversation
// is already active.
func (s *Session) Bootstrap() {
	s.LoadCurrentUser()
	s.LoadChannels()
	s.LoadDirectMessageThreads()
	s.LoadUsers()
}

func (s *Session) LoadCurrentUser() {
	s.spawnFetch("current user", func(ctx context.Context) (func(), error) {
		u, err := s.fetcher.CurrentUser(ctx)
		if err != nil {
			return nil, err
		}
		return func() { s.applyCurrentUser(u) }, nil
	})
}

func (s *Session) LoadChannels() {
	s.spawnFetch("channel list", func(ctx context.Context) (func(), error) {
		channels, err := s.fetcher.Channels(ctx)
		if err != nil {
			return nil, err
		}
		return func() { s.applyChannels(channels) }, nil
	})
}

func (s *Session) LoadDirectMessageThreads() {
	s.spawnFetch("direct message list", func(ctx context.Context) (func(), error) {
		dms, err := s.fetcher.DirectMessageThreads(ctx)
		if err != nil {
			return nil, err
		}
		return func() { s.applyDirectMessageThreads(dms) }, nil
	})
}

func (s *Session) LoadUsers() {
	s.spawnFetch("user list", func(ctx context.Context) (func(), error) {
		users, err := s.fetcher.Users(ctx)
		if err != nil {
			return nil, err
		}
		return func() { s.applyUsers(users) }, nil
	})
}

// LoadHistory refetches the message history of ref. The result replaces the
// transcript only if ref is still active and has not been reselected since.
func (s *Session) LoadHistory(ctx context.Context, ref types.ConversationRef) error {
	if !ref.Valid() {
		return ErrInvalidConversation
	}

	return s.do(ctx, func() error {
		s.loadHistory(ref, s.selection)
		return nil
	})
}

// loadHistory fetches the history of ref for selection generation gen.
func (s *Session) loadHistory(ref types.ConversationRef, gen uint64) {
	s.spawnFetch("history of "+ref.String(), func(ctx context.Context) (func(), error) {
		msgs, err := s.fetcher.History(ctx, ref)
		if err != nil {
			return nil, err
		}
		return func() { s.applyHistory(ref, gen, msgs) }, nil
	})
}

func (s *Session) applyCurrentUser(u types.User) {
	if u.Id == "" {
		s.log.Println("current user has no id, ignoring")
		return
	}

	s.currentUser = &u
}

func (s *Session) applyChannels(channels []types.Channel) {
	var first *types.Channel
	for i, c := range channels {
		if _, err := s.dir.UpsertChannel(c); err != nil {
			s.log.Printf("skipping channel: %v", err)
			continue
		}
		if first == nil {
			first = &channels[i]
		}
	}
	s.markActiveRead()

	if !s.autoSelect {
		return
	}
	if _, ok := s.selector.Active(); ok {
		s.autoSelect = false
		return
	}
	if first != nil {
		s.selectConversation(first.Ref())
	}
}

func (s *Session) applyDirectMessageThreads(dms []types.DirectMessageThread) {
	for _, d := range dms {
		if _, err := s.dir.UpsertDirectMessageThread(d); err != nil {
			s.log.Printf("skipping direct message thread: %v", err)
		}
	}
	s.markActiveRead()
}

func (s *Session) applyUsers(users []types.User) {
	for _, u := range users {
		if _, err := s.dir.UpsertUser(u); err != nil {
			s.log.Printf("skipping user: %v", err)
		}
	}
}

func (s *Session) applyHistory(ref types.ConversationRef, gen uint64, msgs []types.Message) {
	if gen != s.selection || !s.selector.IsVisible(ref) {
		s.log.Printf("dropping stale history of %s", ref)
		return
	}

	valid := make([]types.Message, 0, len(msgs))
	for _, m := range msgs {
		if m.Id == "" {
			s.stats.Incr(stats.MessagesRejected)
			s.log.Printf("history of %s: message without id, skipping", ref)
			continue
		}
		if mref, err := m.Conversation(); err != nil || mref != ref {
			s.stats.Incr(stats.MessagesRejected)
			s.log.Printf("history of %s: message %q does not belong to it, skipping", ref, m.Id)
			continue
		}
		valid = append(valid, m)
	}

	s.transcript.Replace(valid)
}
