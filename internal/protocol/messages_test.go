package protocol

import (
	"testing"
	"time"

	"github.com/npezzotti/go-chatsync/internal/types"
	"github.com/stretchr/testify/assert"
)

func TestDecode(t *testing.T) {
	createdAt := time.Date(2025, 3, 2, 10, 0, 0, 0, time.UTC)

	tcases := []struct {
		name     string
		raw      string
		expected Event
		err      bool
	}{
		{
			name: "new message",
			raw:  `{"type":"NEW_MESSAGE","payload":{"id":"m1","content":"hi","senderId":"u1","createdAt":"2025-03-02T10:00:00Z","channelId":"C1"}}`,
			expected: NewMessage{Message: types.Message{
				Id:        "m1",
				Content:   "hi",
				SenderId:  "u1",
				CreatedAt: createdAt,
				ChannelId: "C1",
			}},
		},
		{
			name: "new message with epoch timestamp",
			raw:  `{"type":"NEW_MESSAGE","payload":{"id":"m2","content":"hi","senderId":"u1","createdAt":1740909600000,"directMessageId":"D1"}}`,
			expected: NewMessage{Message: types.Message{
				Id:              "m2",
				Content:         "hi",
				SenderId:        "u1",
				CreatedAt:       createdAt,
				DirectMessageId: "D1",
			}},
		},
		{
			name:     "new message with empty timestamp",
			raw:      `{"type":"NEW_MESSAGE","payload":{"id":"m3","content":"hi","senderId":"u1","createdAt":"","channelId":"C1"}}`,
			expected: NewMessage{Message: types.Message{Id: "m3", Content: "hi", SenderId: "u1", ChannelId: "C1"}},
		},
		{
			name:     "channel created",
			raw:      `{"type":"CHANNEL_CREATED","payload":{"id":"C2","name":"random","unreadCount":0}}`,
			expected: ChannelCreated{Channel: types.Channel{Id: "C2", Name: "random"}},
		},
		{
			name:     "direct message created",
			raw:      `{"type":"DIRECT_MESSAGE_CREATED","payload":{"id":"D1","participantIds":["u1","u2"]}}`,
			expected: DirectMessageCreated{Thread: types.DirectMessageThread{Id: "D1", ParticipantIds: []string{"u1", "u2"}}},
		},
		{
			name:     "user status changed",
			raw:      `{"type":"USER_STATUS_CHANGED","payload":{"id":"u1","displayName":"Ann","status":"away"}}`,
			expected: UserStatusChanged{User: types.User{Id: "u1", DisplayName: "Ann", Status: "away"}},
		},
		{
			name:     "unknown type",
			raw:      `{"type":"TYPING","payload":{"userId":"u1"}}`,
			expected: Unhandled{Type: "TYPING"},
		},
		{
			name: "malformed json",
			raw:  `{"type":`,
			err:  true,
		},
		{
			name: "missing type",
			raw:  `{"payload":{}}`,
			err:  true,
		},
		{
			name: "missing payload",
			raw:  `{"type":"CHANNEL_CREATED"}`,
			err:  true,
		},
		{
			name: "null payload",
			raw:  `{"type":"NEW_MESSAGE","payload":null}`,
			err:  true,
		},
		{
			name: "payload of wrong shape",
			raw:  `{"type":"CHANNEL_CREATED","payload":["C1"]}`,
			err:  true,
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			ev, err := Decode([]byte(tc.raw))
			if tc.err {
				assert.Error(t, err, "expected decode error")
				assert.Nil(t, ev, "expected no event on error")
				return
			}
			assert.NoError(t, err, "expected no decode error")
			assert.Equal(t, tc.expected, ev, "expected decoded event to match")
		})
	}
}

func TestEventType(t *testing.T) {
	assert.Equal(t, EventNewMessage, NewMessage{}.EventType())
	assert.Equal(t, EventChannelCreated, ChannelCreated{}.EventType())
	assert.Equal(t, EventDirectMessageCreated, DirectMessageCreated{}.EventType())
	assert.Equal(t, EventUserStatusChanged, UserStatusChanged{}.EventType())
	assert.Equal(t, EventType("PING"), Unhandled{Type: "PING"}.EventType())
}

func TestOutboundEncode(t *testing.T) {
	out := &Outbound{
		Type: EventSendMessage,
		Payload: SendMessagePayload{
			Content:   "hello",
			SenderId:  "u1",
			ChannelId: "C1",
		},
	}

	bytes, err := out.Encode()
	assert.NoError(t, err, "expected no error encoding outbound event")
	assert.JSONEq(t, `{"type":"SEND_MESSAGE","payload":{"content":"hello","senderId":"u1","channelId":"C1"}}`, string(bytes))
}
