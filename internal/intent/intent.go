// Package intent turns user actions into outbound events. Builders have no
// side effects; the caller decides when and how to send the result.
package intent

import (
	"github.com/npezzotti/go-chatsync/internal/protocol"
	"github.com/npezzotti/go-chatsync/internal/types"
)

// BuildSendMessage returns false when there is no active conversation or no
// current user to send as.
func BuildSendMessage(content string, active *types.ConversationRef, currentUser *types.User) (*protocol.Outbound, bool) {
	if active == nil || currentUser == nil {
		return nil, false
	}

	payload := protocol.SendMessagePayload{
		Content:  content,
		SenderId: currentUser.Id,
	}

	switch active.Kind {
	case types.KindChannel:
		payload.ChannelId = active.Id
	case types.KindDirect:
		payload.DirectMessageId = active.Id
	default:
		return nil, false
	}

	return &protocol.Outbound{
		Type:    protocol.EventSendMessage,
		Payload: payload,
	}, true
}

func BuildCreateChannel(name, creatorId string) *protocol.Outbound {
	return &protocol.Outbound{
		Type: protocol.EventCreateChannel,
		Payload: protocol.CreateChannelPayload{
			Name:      name,
			CreatorId: creatorId,
		},
	}
}

func BuildCreateDirectMessage(currentUserId, otherUserId string) *protocol.Outbound {
	return &protocol.Outbound{
		Type: protocol.EventCreateDirectMessage,
		Payload: protocol.CreateDirectMessagePayload{
			ParticipantIds: []string{currentUserId, otherUserId},
		},
	}
}
