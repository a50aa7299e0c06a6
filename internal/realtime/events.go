package realtime

import (
	"time"

	"github.com/mmynk/splitroom/internal/models"
)

// Outbound events.
const (
	EventJoinGroup   = "joinGroup"
	EventJoinUser    = "joinUser"
	EventSendMessage = "sendMessage"
)

// Inbound events.
const (
	EventNewMessage      = "newMessage"
	EventExpenseAdded    = "expenseAdded"
	EventMemberAdded     = "memberAdded"
	EventMemberRemoved   = "memberRemoved"
	EventInviteCancelled = "inviteCancelled"
)

// EventDisconnect is raised locally when the connection fails. It carries
// no data.
const EventDisconnect = "disconnect"

// JoinGroup subscribes the connection to a group's room.
type JoinGroup struct {
	GroupID string `json:"groupId"`
}

// JoinUser subscribes the connection to the user's personal room.
type JoinUser struct {
	UserID string `json:"userId"`
}

// SendMessage publishes a chat message to a group.
type SendMessage struct {
	GroupID string    `json:"groupId"`
	Message string    `json:"message"`
	User    string    `json:"user"`
	UserID  string    `json:"userId"`
	Time    time.Time `json:"time"`
}

// MessagePayload is the data of newMessage.
type MessagePayload struct {
	GroupID string `json:"groupId,omitempty"`
	models.ChatMessage
}

// ExpensePayload is the data of expenseAdded: the full expense record.
type ExpensePayload struct {
	GroupID string `json:"groupId,omitempty"`
	models.Expense
}

// MemberEvent is the data of memberAdded and memberRemoved.
type MemberEvent struct {
	GroupID string `json:"groupId,omitempty"`
	UserID  string `json:"userId,omitempty"`
	Name    string `json:"name,omitempty"`
	Email   string `json:"email,omitempty"`
}

// Label returns the member's name, or the email when the name is unknown.
func (e MemberEvent) Label() string {
	if e.Name != "" {
		return e.Name
	}
	return e.Email
}

// InviteCancelled is the data of inviteCancelled.
type InviteCancelled struct {
	GroupID string `json:"groupId,omitempty"`
	Email   string `json:"email"`
}
