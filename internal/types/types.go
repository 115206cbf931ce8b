package types

import (
	"encoding/json"
	"errors"
	"time"
)

var (
	ErrInvalidDiscriminant = errors.New("message must set exactly one of channelId or directMessageId")
	ErrMissingId           = errors.New("missing id")
	ErrInvalidParticipants = errors.New("direct message thread needs two distinct participants")
)

type ConversationKind string

const (
	KindChannel ConversationKind = "channel"
	KindDirect  ConversationKind = "direct"
)

// ConversationRef identifies a channel or a direct-message thread.
type ConversationRef struct {
	Kind ConversationKind `json:"kind"`
	Id   string           `json:"id"`
}

func ChannelRef(id string) ConversationRef {
	return ConversationRef{Kind: KindChannel, Id: id}
}

func DirectRef(id string) ConversationRef {
	return ConversationRef{Kind: KindDirect, Id: id}
}

func (r ConversationRef) String() string {
	return string(r.Kind) + ":" + r.Id
}

func (r ConversationRef) Valid() bool {
	return (r.Kind == KindChannel || r.Kind == KindDirect) && r.Id != ""
}

type User struct {
	Id          string `json:"id"`
	DisplayName string `json:"displayName"`
	Status      string `json:"status"`
}

type Channel struct {
	Id          string `json:"id"`
	Name        string `json:"name"`
	UnreadCount int    `json:"unreadCount"`
}

func (c Channel) Ref() ConversationRef {
	return ChannelRef(c.Id)
}

type DirectMessageThread struct {
	Id             string   `json:"id"`
	ParticipantIds []string `json:"participantIds"`
	UnreadCount    int      `json:"unreadCount"`
}

func (d DirectMessageThread) Ref() ConversationRef {
	return DirectRef(d.Id)
}

type Message struct {
	Id              string    `json:"id"`
	Content         string    `json:"content"`
	SenderId        string    `json:"senderId"`
	CreatedAt       time.Time `json:"createdAt"`
	ChannelId       string    `json:"channelId,omitempty"`
	DirectMessageId string    `json:"directMessageId,omitempty"`
}

// UnmarshalJSON accepts createdAt as an RFC 3339 string or as epoch
// milliseconds. Any other value decodes to the zero time rather than failing
// the message.
func (m *Message) UnmarshalJSON(data []byte) error {
	type plain Message
	var aux struct {
		plain
		CreatedAt json.RawMessage `json:"createdAt"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	*m = Message(aux.plain)
	m.CreatedAt = parseTimestamp(aux.CreatedAt)
	return nil
}

func parseTimestamp(raw json.RawMessage) time.Time {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return time.Time{}
		}
		return t
	}

	var ms float64
	if err := json.Unmarshal(raw, &ms); err == nil {
		return time.UnixMilli(int64(ms)).UTC()
	}

	return time.Time{}
}

// Conversation returns the conversation the message belongs to. Exactly one
// of ChannelId and DirectMessageId must be set.
func (m Message) Conversation() (ConversationRef, error) {
	switch {
	case m.ChannelId != "" && m.DirectMessageId == "":
		return ChannelRef(m.ChannelId), nil
	case m.DirectMessageId != "" && m.ChannelId == "":
		return DirectRef(m.DirectMessageId), nil
	default:
		return ConversationRef{}, ErrInvalidDiscriminant
	}
}
