package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/npezzotti/go-chatsync/internal/types"
)

type EventType string

const (
	// inbound
	EventNewMessage           EventType = "NEW_MESSAGE"
	EventChannelCreated       EventType = "CHANNEL_CREATED"
	EventDirectMessageCreated EventType = "DIRECT_MESSAGE_CREATED"
	EventUserStatusChanged    EventType = "USER_STATUS_CHANGED"

	// outbound
	EventSendMessage         EventType = "SEND_MESSAGE"
	EventCreateChannel       EventType = "CREATE_CHANNEL"
	EventCreateDirectMessage EventType = "CREATE_DIRECT_MESSAGE"
)

var (
	ErrMissingType    = errors.New("missing event type")
	ErrMissingPayload = errors.New("missing event payload")
)

// Envelope is the frame shape shared by both directions.
type Envelope struct {
	Type    EventType       `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type Outbound struct {
	Type    EventType `json:"type"`
	Payload any       `json:"payload"`
}

func (o *Outbound) Encode() ([]byte, error) {
	return json.Marshal(o)
}

type SendMessagePayload struct {
	Content         string `json:"content"`
	SenderId        string `json:"senderId"`
	ChannelId       string `json:"channelId,omitempty"`
	DirectMessageId string `json:"directMessageId,omitempty"`
}

type CreateChannelPayload struct {
	Name      string `json:"name"`
	CreatorId string `json:"creatorId"`
}

type CreateDirectMessagePayload struct {
	ParticipantIds []string `json:"participantIds"`
}

// Event is one of NewMessage, ChannelCreated, DirectMessageCreated,
// UserStatusChanged or Unhandled.
type Event interface {
	EventType() EventType
}

type NewMessage struct {
	Message types.Message
}

type ChannelCreated struct {
	Channel types.Channel
}

type DirectMessageCreated struct {
	Thread types.DirectMessageThread
}

type UserStatusChanged struct {
	User types.User
}

// Unhandled carries an event type this client does not know about.
type Unhandled struct {
	Type EventType
}

func (NewMessage) EventType() EventType           { return EventNewMessage }
func (ChannelCreated) EventType() EventType       { return EventChannelCreated }
func (DirectMessageCreated) EventType() EventType { return EventDirectMessageCreated }
func (UserStatusChanged) EventType() EventType    { return EventUserStatusChanged }
func (u Unhandled) EventType() EventType          { return u.Type }

// Decode parses a raw inbound frame into a typed event.
func Decode(raw []byte) (Event, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("parse frame: %w", err)
	}

	if env.Type == "" {
		return nil, ErrMissingType
	}

	switch env.Type {
	case EventNewMessage:
		var msg types.Message
		if err := decodePayload(env, &msg); err != nil {
			return nil, err
		}
		return NewMessage{Message: msg}, nil
	case EventChannelCreated:
		var c types.Channel
		if err := decodePayload(env, &c); err != nil {
			return nil, err
		}
		return ChannelCreated{Channel: c}, nil
	case EventDirectMessageCreated:
		var dm types.DirectMessageThread
		if err := decodePayload(env, &dm); err != nil {
			return nil, err
		}
		return DirectMessageCreated{Thread: dm}, nil
	case EventUserStatusChanged:
		var u types.User
		if err := decodePayload(env, &u); err != nil {
			return nil, err
		}
		return UserStatusChanged{User: u}, nil
	default:
		return Unhandled{Type: env.Type}, nil
	}
}

func decodePayload(env Envelope, v any) error {
	if len(env.Payload) == 0 || string(env.Payload) == "null" {
		return fmt.Errorf("%s: %w", env.Type, ErrMissingPayload)
	}

	if err := json.Unmarshal(env.Payload, v); err != nil {
		return fmt.Errorf("%s payload: %w", env.Type, err)
	}

	return nil
}
