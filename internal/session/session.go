// Package session keeps a client-side mirror of the chat server's state in
// sync with the realtime event stream and the REST API.
//
// All state is owned by the goroutine running Session.Run. Inbound frames,
// fetch completions and caller requests are applied there one at a time, so
// none of the handlers need locking and each one sees the state left by the
// previous one.
package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/npezzotti/go-chatsync/internal/api"
	"github.com/npezzotti/go-chatsync/internal/directory"
	"github.com/npezzotti/go-chatsync/internal/intent"
	"github.com/npezzotti/go-chatsync/internal/protocol"
	"github.com/npezzotti/go-chatsync/internal/stats"
	"github.com/npezzotti/go-chatsync/internal/types"
	"golang.org/x/time/rate"
)

var (
	ErrClosed               = errors.New("session closed")
	ErrNoActiveConversation = errors.New("no active conversation")
	ErrNoCurrentUser        = errors.New("current user not loaded")
	ErrRateLimited          = errors.New("outbound rate limit exceeded")
	ErrInvalidConversation  = errors.New("invalid conversation reference")
	ErrEmptyArgument        = errors.New("argument cannot be empty")
)

const defaultFetchTimeout = 15 * time.Second

// Transport is the realtime connection a session routes frames from.
type Transport interface {
	Connect(ctx context.Context, endpoint string) error
	Disconnect() error
	Send(msg []byte) error
	Frames() <-chan []byte
}

type Options struct {
	FetchTimeout time.Duration
	SendRate     float64
	SendBurst    int
}

// State is a point-in-time copy of everything the session mirrors.
type State struct {
	CurrentUser          *types.User                 `json:"currentUser,omitempty"`
	Active               *types.ConversationRef      `json:"active,omitempty"`
	Channels             []types.Channel             `json:"channels"`
	DirectMessageThreads []types.DirectMessageThread `json:"directMessages"`
	Users                []types.User                `json:"users"`
	Transcript           []types.Message             `json:"transcript"`
}

type Session struct {
	log          *log.Logger
	dir          *directory.Store
	fetcher      api.Fetcher
	transport    Transport
	stats        stats.StatsProvider
	limiter      *rate.Limiter
	fetchTimeout time.Duration

	// owned by Run
	selector    Selector
	selection   uint64
	transcript  *Transcript
	currentUser *types.User
	autoSelect  bool
	frames      <-chan []byte

	ctx       context.Context
	cancel    context.CancelFunc
	tasks     chan task
	fetchDone chan fetchResult
	updates   chan struct{}
	stop      chan struct{}
	done      chan struct{}
	stopOnce  sync.Once
	wg        sync.WaitGroup
}

type task struct {
	fn   func() error
	errc chan error
}

func NewSession(l *log.Logger, dir *directory.Store, fetcher api.Fetcher, transport Transport, st stats.StatsProvider, opts Options) *Session {
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = defaultFetchTimeout
	}

	limit := rate.Inf
	if opts.SendRate > 0 {
		limit = rate.Limit(opts.SendRate)
	}
	if opts.SendBurst <= 0 {
		opts.SendBurst = 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		log:          l,
		dir:          dir,
		fetcher:      fetcher,
		transport:    transport,
		stats:        st,
		limiter:      rate.NewLimiter(limit, opts.SendBurst),
		fetchTimeout: opts.FetchTimeout,
		transcript:   NewTranscript(),
		autoSelect:   true,
		ctx:          ctx,
		cancel:       cancel,
		tasks:        make(chan task),
		fetchDone:    make(chan fetchResult),
		updates:      make(chan struct{}, 1),
		stop:         make(chan struct{}),
		done:         make(chan struct{}),
	}
}

// RegisterMetrics registers the session counters with the stats provider.
func (s *Session) RegisterMetrics() {
	for _, m := range stats.SessionMetrics {
		s.stats.RegisterMetric(m)
	}
}

// Run applies frames, fetch completions and requests until Shutdown.
func (s *Session) Run() {
	defer close(s.done)

	for {
		select {
		case raw, ok := <-s.frames:
			if !ok {
				s.log.Println("transport closed, no more frames to route")
				s.frames = nil
				continue
			}
			s.route(raw)
		case res := <-s.fetchDone:
			s.log.Printf("applying %s", res.name)
			res.apply()
		case t := <-s.tasks:
			t.errc <- t.fn()
		case <-s.stop:
			s.log.Println("session stopping")
			return
		}

		s.notify()
	}
}

// Shutdown stops Run, cancels fetches still in flight and waits for both.
// Fetch results that complete after Run has returned are discarded.
func (s *Session) Shutdown(ctx context.Context) error {
	s.log.Println("received shutdown signal")
	s.stopOnce.Do(func() {
		close(s.stop)
		s.cancel()
	})

	select {
	case <-s.done:
	case <-ctx.Done():
		return fmt.Errorf("session shutdown: %w", ctx.Err())
	}

	fetched := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(fetched)
	}()

	select {
	case <-fetched:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("session shutdown: waiting for fetches: %w", ctx.Err())
	}
}

// Updates signals after every applied change. Signals are coalesced, so a
// consumer should read a fresh Snapshot on each one.
func (s *Session) Updates() <-chan struct{} {
	return s.updates
}

func (s *Session) notify() {
	select {
	case s.updates <- struct{}{}:
	default:
	}
}

// do runs fn on the state-owner goroutine and returns its error.
func (s *Session) do(ctx context.Context, fn func() error) error {
	errc := make(chan error, 1)

	select {
	case s.tasks <- task{fn: fn, errc: errc}:
	case <-s.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-errc:
		return err
	case <-s.done:
		select {
		case err := <-errc:
			return err
		default:
			return ErrClosed
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Connect opens the transport and starts routing its frames.
func (s *Session) Connect(ctx context.Context, endpoint string) error {
	if err := s.transport.Connect(ctx, endpoint); err != nil {
		return fmt.Errorf("connect: %w", err)
	}

	frames := s.transport.Frames()
	return s.do(ctx, func() error {
		s.frames = frames
		return nil
	})
}

// Disconnect closes the transport. Frames still buffered are not routed.
func (s *Session) Disconnect(ctx context.Context) error {
	return s.do(ctx, func() error {
		s.frames = nil
		if err := s.transport.Disconnect(); err != nil {
			return fmt.Errorf("disconnect: %w", err)
		}
		return nil
	})
}

// Select makes ref the active conversation, clears its unread count and
// loads its history.
func (s *Session) Select(ctx context.Context, ref types.ConversationRef) error {
	if !ref.Valid() {
		return ErrInvalidConversation
	}

	return s.do(ctx, func() error {
		s.selectConversation(ref)
		return nil
	})
}

func (s *Session) selectConversation(ref types.ConversationRef) {
	s.log.Printf("selecting %s", ref)
	s.autoSelect = false
	s.selection++
	s.selector.Set(ref)
	s.transcript.Reset()
	s.markActiveRead()
	s.loadHistory(ref, s.selection)
}

// markActiveRead keeps the active conversation's unread count at zero.
func (s *Session) markActiveRead() {
	ref, ok := s.selector.Active()
	if !ok {
		return
	}

	if n, ok := s.dir.Unread(ref); ok && n > 0 {
		s.dir.ResetUnread(ref)
	}
}

func (s *Session) Snapshot(ctx context.Context) (State, error) {
	var st State
	err := s.do(ctx, func() error {
		st = s.snapshot()
		return nil
	})

	return st, err
}

func (s *Session) snapshot() State {
	st := State{
		Channels:             s.dir.Channels(),
		DirectMessageThreads: s.dir.DirectMessageThreads(),
		Users:                s.dir.Users(),
		Transcript:           s.transcript.Messages(),
	}

	if s.currentUser != nil {
		u := *s.currentUser
		st.CurrentUser = &u
	}
	if ref, ok := s.selector.Active(); ok {
		st.Active = &ref
	}

	return st
}

func (s *Session) SendMessage(ctx context.Context, content string) error {
	return s.do(ctx, func() error {
		return s.sendMessage(content)
	})
}

func (s *Session) sendMessage(content string) error {
	if strings.TrimSpace(content) == "" {
		return fmt.Errorf("message content: %w", ErrEmptyArgument)
	}

	var active *types.ConversationRef
	if ref, ok := s.selector.Active(); ok {
		active = &ref
	}

	out, ok := intent.BuildSendMessage(content, active, s.currentUser)
	if !ok {
		s.stats.Incr(stats.IntentsRejected)
		if active == nil {
			return ErrNoActiveConversation
		}
		return ErrNoCurrentUser
	}

	return s.sendIntent(out)
}

func (s *Session) CreateChannel(ctx context.Context, name string) error {
	return s.do(ctx, func() error {
		return s.createChannel(name)
	})
}

func (s *Session) createChannel(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("channel name: %w", ErrEmptyArgument)
	}
	if s.currentUser == nil {
		s.stats.Incr(stats.IntentsRejected)
		return ErrNoCurrentUser
	}

	return s.sendIntent(intent.BuildCreateChannel(name, s.currentUser.Id))
}

func (s *Session) CreateDirectMessage(ctx context.Context, otherUserId string) error {
	return s.do(ctx, func() error {
		return s.createDirectMessage(otherUserId)
	})
}

func (s *Session) createDirectMessage(otherUserId string) error {
	if otherUserId == "" {
		return fmt.Errorf("user id: %w", ErrEmptyArgument)
	}
	if s.currentUser == nil {
		s.stats.Incr(stats.IntentsRejected)
		return ErrNoCurrentUser
	}

	return s.sendIntent(intent.BuildCreateDirectMessage(s.currentUser.Id, otherUserId))
}

func (s *Session) sendIntent(out *protocol.Outbound) error {
	if !s.limiter.Allow() {
		s.stats.Incr(stats.IntentsRejected)
		return ErrRateLimited
	}

	raw, err := out.Encode()
	if err != nil {
		return fmt.Errorf("encode %s: %w", out.Type, err)
	}

	if err := s.transport.Send(raw); err != nil {
		s.stats.Incr(stats.IntentsRejected)
		return fmt.Errorf("send %s: %w", out.Type, err)
	}

	s.stats.Incr(stats.IntentsSent)
	return nil
}
