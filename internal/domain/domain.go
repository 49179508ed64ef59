package domain

import (
	"github.com/yungbote/chatstream-backend/internal/domain/chat"
	"github.com/yungbote/chatstream-backend/internal/domain/user"
)

const (
	DefaultConversationName = chat.DefaultConversationName

	TurnSourceCache = chat.TurnSourceCache
	TurnSourceModel = chat.TurnSourceModel

	RoleUser      = chat.RoleUser
	RoleAssistant = chat.RoleAssistant

	UserRoleUser  = user.RoleUser
	UserRoleAdmin = user.RoleAdmin
)

type User = user.User

type Conversation = chat.Conversation
type Turn = chat.Turn
type ContextMessage = chat.ContextMessage

var NameFromMessage = chat.NameFromMessage
