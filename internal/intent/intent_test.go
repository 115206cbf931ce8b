package intent

import (
	"testing"

	"github.com/npezzotti/go-chatsync/internal/types"
	"github.com/stretchr/testify/assert"
)

func TestBuildSendMessage(t *testing.T) {
	user := &types.User{Id: "u1", DisplayName: "Ann"}
	channel := types.ChannelRef("C1")
	direct := types.DirectRef("D1")

	tcases := []struct {
		name     string
		active   *types.ConversationRef
		user     *types.User
		ok       bool
		expected string
	}{
		{
			name:     "channel conversation",
			active:   &channel,
			user:     user,
			ok:       true,
			expected: `{"type":"SEND_MESSAGE","payload":{"content":"hello","senderId":"u1","channelId":"C1"}}`,
		},
		{
			name:     "direct conversation",
			active:   &direct,
			user:     user,
			ok:       true,
			expected: `{"type":"SEND_MESSAGE","payload":{"content":"hello","senderId":"u1","directMessageId":"D1"}}`,
		},
		{
			name:   "no active conversation",
			active: nil,
			user:   user,
			ok:     false,
		},
		{
			name:   "no current user",
			active: &channel,
			user:   nil,
			ok:     false,
		},
		{
			name:   "unknown conversation kind",
			active: &types.ConversationRef{Kind: "group", Id: "G1"},
			user:   user,
			ok:     false,
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			out, ok := BuildSendMessage("hello", tc.active, tc.user)
			assert.Equal(t, tc.ok, ok, "expected ok to match")
			if !tc.ok {
				assert.Nil(t, out, "expected no payload")
				return
			}

			bytes, err := out.Encode()
			assert.NoError(t, err, "expected no encode error")
			assert.JSONEq(t, tc.expected, string(bytes), "expected payload to match")
		})
	}
}

func TestBuildCreateChannel(t *testing.T) {
	bytes, err := BuildCreateChannel("random", "u1").Encode()
	assert.NoError(t, err)
	assert.JSONEq(t, `{"type":"CREATE_CHANNEL","payload":{"name":"random","creatorId":"u1"}}`, string(bytes))
}

func TestBuildCreateDirectMessage(t *testing.T) {
	bytes, err := BuildCreateDirectMessage("u1", "u2").Encode()
	assert.NoError(t, err)
	assert.JSONEq(t, `{"type":"CREATE_DIRECT_MESSAGE","payload":{"participantIds":["u1","u2"]}}`, string(bytes))
}
