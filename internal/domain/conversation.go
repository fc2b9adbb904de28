package domain

import "time"

// Conversation is a two-party direct-messaging thread. UserA and UserB are
// stored in lexical order so the pair has a single canonical row.
type Conversation struct {
	ID            string    `json:"id"`
	UserA         string    `json:"user_a"`
	UserB         string    `json:"user_b"`
	CreatedAt     time.Time `json:"created_at"`
	LastMessageAt time.Time `json:"last_message_at"`
}

// Other returns the participant that is not the given user.
func (c *Conversation) Other(userID string) string {
	if c.UserA == userID {
		return c.UserB
	}
	return c.UserA
}

// Includes reports whether the user participates in the conversation.
func (c *Conversation) Includes(userID string) bool {
	return c.UserA == userID || c.UserB == userID
}

// Message is one entry in a conversation, ordered by creation time.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	SenderID       string    `json:"sender_id"`
	Body           string    `json:"body"`
	System         bool      `json:"system"`
	Read           bool      `json:"read"`
	CreatedAt      time.Time `json:"created_at"`
}

// ConversationSummary pairs a conversation with its unread message count for
// one participant.
type ConversationSummary struct {
	Conversation Conversation `json:"conversation"`
	UnreadCount  int          `json:"unread_count"`
}
