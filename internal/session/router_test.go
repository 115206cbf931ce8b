package session

import (
	"testing"

	"github.com/npezzotti/go-chatsync/internal/protocol"
	"github.com/npezzotti/go-chatsync/internal/stats"
	"github.com/npezzotti/go-chatsync/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func encodeFrame(t *testing.T, typ protocol.EventType, payload any) []byte {
	t.Helper()
	raw, err := (&protocol.Outbound{Type: typ, Payload: payload}).Encode()
	if err != nil {
		t.Fatalf("encode frame: %v", err)
	}
	return raw
}

func TestRouteNewMessage(t *testing.T) {
	tcases := []struct {
		name           string
		active         *types.ConversationRef
		msg            types.Message
		expectedTransc []string
		expectedUnread map[types.ConversationRef]int
	}{
		{
			name:           "message for active channel is appended",
			active:         &types.ConversationRef{Kind: types.KindChannel, Id: "A"},
			msg:            channelMsg("m1", "A"),
			expectedTransc: []string{"m1"},
			expectedUnread: map[types.ConversationRef]int{types.ChannelRef("A"): 0, types.ChannelRef("B"): 0},
		},
		{
			name:           "message for other channel bumps unread",
			active:         &types.ConversationRef{Kind: types.KindChannel, Id: "A"},
			msg:            channelMsg("m1", "B"),
			expectedTransc: []string{},
			expectedUnread: map[types.ConversationRef]int{types.ChannelRef("A"): 0, types.ChannelRef("B"): 1},
		},
		{
			name:           "message without active conversation bumps unread",
			msg:            channelMsg("m1", "A"),
			expectedTransc: []string{},
			expectedUnread: map[types.ConversationRef]int{types.ChannelRef("A"): 1},
		},
		{
			name:           "direct message with same id as active channel is not visible",
			active:         &types.ConversationRef{Kind: types.KindChannel, Id: "A"},
			msg:            directMsg("m1", "A"),
			expectedTransc: []string{},
			expectedUnread: map[types.ConversationRef]int{types.ChannelRef("A"): 0, types.DirectRef("A"): 1},
		},
		{
			name:           "direct message for active thread is appended",
			active:         &types.ConversationRef{Kind: types.KindDirect, Id: "A"},
			msg:            directMsg("m1", "A"),
			expectedTransc: []string{"m1"},
			expectedUnread: map[types.ConversationRef]int{types.DirectRef("A"): 0},
		},
		{
			name:           "message for unknown conversation is ignored",
			active:         &types.ConversationRef{Kind: types.KindChannel, Id: "A"},
			msg:            channelMsg("m1", "Z"),
			expectedTransc: []string{},
			expectedUnread: map[types.ConversationRef]int{types.ChannelRef("A"): 0, types.ChannelRef("B"): 0},
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			s := newIdleSession(t, nil, nil)
			s.dir.UpsertChannel(types.Channel{Id: "A", Name: "general"})
			s.dir.UpsertChannel(types.Channel{Id: "B", Name: "random"})
			s.dir.UpsertDirectMessageThread(types.DirectMessageThread{Id: "A", ParticipantIds: []string{"u1", "u2"}})
			if tc.active != nil {
				s.selector.Set(*tc.active)
			}

			s.route(encodeFrame(t, protocol.EventNewMessage, tc.msg))

			assert.Equal(t, tc.expectedTransc, ids(s.transcript.Messages()))
			for ref, expected := range tc.expectedUnread {
				n, ok := s.dir.Unread(ref)
				assert.True(t, ok, "expected %s to be known", ref)
				assert.Equal(t, expected, n, "unexpected unread count for %s", ref)
			}
		})
	}
}

func TestRouteRejectsInvalidMessages(t *testing.T) {
	tcases := []struct {
		name string
		msg  types.Message
	}{
		{name: "no discriminant", msg: types.Message{Id: "m1", Content: "hi"}},
		{name: "both discriminants", msg: types.Message{Id: "m1", ChannelId: "A", DirectMessageId: "D1"}},
		{name: "missing id", msg: types.Message{ChannelId: "A"}},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			st := stats.NewRelaxedMock()
			s := newIdleSession(t, nil, nil)
			s.stats = st
			s.dir.UpsertChannel(types.Channel{Id: "A"})
			s.dir.UpsertDirectMessageThread(types.DirectMessageThread{Id: "D1", ParticipantIds: []string{"u1", "u2"}})
			s.selector.Set(types.ChannelRef("A"))

			s.route(encodeFrame(t, protocol.EventNewMessage, tc.msg))

			assert.Equal(t, 0, s.transcript.Len(), "expected message to be rejected")
			n, _ := s.dir.Unread(types.DirectRef("D1"))
			assert.Equal(t, 0, n, "expected no unread change")
			st.AssertCalled(t, "Incr", stats.MessagesRejected)
		})
	}
}

func TestRouteDuplicateMessage(t *testing.T) {
	s := newIdleSession(t, nil, nil)
	s.dir.UpsertChannel(types.Channel{Id: "A"})
	s.selector.Set(types.ChannelRef("A"))

	raw := encodeFrame(t, protocol.EventNewMessage, channelMsg("m1", "A"))
	s.route(raw)
	s.route(raw)

	assert.Equal(t, []string{"m1"}, ids(s.transcript.Messages()), "expected redelivered message to be appended once")
}

func TestRouteMalformedFrames(t *testing.T) {
	tcases := []struct {
		name string
		raw  []byte
	}{
		{name: "invalid json", raw: []byte(`{"type":`)},
		{name: "missing type", raw: []byte(`{"payload":{}}`)},
		{name: "missing payload", raw: []byte(`{"type":"NEW_MESSAGE"}`)},
		{name: "unknown type", raw: []byte(`{"type":"TYPING","payload":{"userId":"u1"}}`)},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			st := &stats.MockStatsUpdater{}
			st.On("Incr", stats.FramesDropped).Once()
			s := newIdleSession(t, nil, nil)
			s.stats = st
			s.dir.UpsertChannel(types.Channel{Id: "A"})
			s.selector.Set(types.ChannelRef("A"))

			s.route(tc.raw)
			st.AssertExpectations(t)

			// the next frame is still routed
			st.On("Incr", mock.Anything).Maybe()
			s.route(encodeFrame(t, protocol.EventNewMessage, channelMsg("m1", "A")))
			assert.Equal(t, []string{"m1"}, ids(s.transcript.Messages()))
		})
	}
}

func TestRouteRecoversFromPanic(t *testing.T) {
	st := &stats.MockStatsUpdater{}
	st.On("Incr", stats.FramesDropped).Once()
	s := newIdleSession(t, nil, nil)
	s.stats = st
	s.dir = nil

	assert.NotPanics(t, func() {
		s.route(encodeFrame(t, protocol.EventChannelCreated, types.Channel{Id: "C"}))
	}, "expected handler panic to be contained")
	st.AssertExpectations(t)
}

func TestRouteChannelCreated(t *testing.T) {
	s := newIdleSession(t, nil, nil)

	s.route(encodeFrame(t, protocol.EventChannelCreated, types.Channel{Id: "C", Name: "new"}))
	s.route(encodeFrame(t, protocol.EventChannelCreated, types.Channel{Id: "C", Name: "renamed"}))

	channels := s.dir.Channels()
	assert.Len(t, channels, 1, "expected repeated creation to upsert")
	assert.Equal(t, "renamed", channels[0].Name, "expected latest fields to win")

	s.route(encodeFrame(t, protocol.EventChannelCreated, types.Channel{Name: "no id"}))
	assert.Len(t, s.dir.Channels(), 1, "expected channel without id to be ignored")
}

func TestRouteCreationKeepsActiveRead(t *testing.T) {
	s := newIdleSession(t, nil, nil)
	s.dir.UpsertChannel(types.Channel{Id: "A"})
	s.selector.Set(types.ChannelRef("A"))

	s.route(encodeFrame(t, protocol.EventChannelCreated, types.Channel{Id: "A", Name: "general", UnreadCount: 4}))

	n, _ := s.dir.Unread(types.ChannelRef("A"))
	assert.Equal(t, 0, n, "expected active conversation to stay read")
}

func TestRouteDirectMessageCreated(t *testing.T) {
	s := newIdleSession(t, nil, nil)

	s.route(encodeFrame(t, protocol.EventDirectMessageCreated, types.DirectMessageThread{Id: "D1", ParticipantIds: []string{"u1", "u2"}}))
	s.route(encodeFrame(t, protocol.EventDirectMessageCreated, types.DirectMessageThread{Id: "D1", ParticipantIds: []string{"u1", "u2"}}))

	dms := s.dir.DirectMessageThreads()
	assert.Len(t, dms, 1, "expected duplicate creation to upsert")
	assert.Equal(t, []string{"u1", "u2"}, dms[0].ParticipantIds)

	s.route(encodeFrame(t, protocol.EventDirectMessageCreated, types.DirectMessageThread{Id: "D2", ParticipantIds: []string{"u1", "u1"}}))
	_, ok := s.dir.DirectMessageThread("D2")
	assert.False(t, ok, "expected thread without two distinct participants to be ignored")
}

func TestRouteUserStatusChanged(t *testing.T) {
	s := newIdleSession(t, nil, nil)
	s.currentUser = &types.User{Id: "u1", DisplayName: "Ann", Status: "online"}

	s.route(encodeFrame(t, protocol.EventUserStatusChanged, types.User{Id: "u2", DisplayName: "Bob", Status: "away"}))
	s.route(encodeFrame(t, protocol.EventUserStatusChanged, types.User{Id: "u2", DisplayName: "Bob", Status: "offline"}))
	s.route(encodeFrame(t, protocol.EventUserStatusChanged, types.User{Id: "u1", DisplayName: "Ann", Status: "away"}))

	assert.Len(t, s.dir.Users(), 2)
	u, ok := s.dir.User("u2")
	assert.True(t, ok)
	assert.Equal(t, "offline", u.Status, "expected latest status to win")
	assert.Equal(t, "away", s.currentUser.Status, "expected current user to follow its status events")
}
