// Package model defines data structures shared by the gateway and the chat client.
package model

import (
	"time"
)

// Conversation is a titled, ordered sequence of messages plus metadata.
//
// The JSON field names match the persisted blob format of earlier BuddyAI
// builds, so an existing data file keeps loading. New optional fields may be
// added, but existing names must not change.
type Conversation struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Messages  []Message `json:"messages"`
	CreatedAt time.Time `json:"createdAt"`
	// IsActive marks the conversation to resume after a restart. At most one
	// conversation in a persisted list has it set.
	IsActive bool `json:"isActive"`
}

// HasUserMessage reports whether any message in the conversation was sent by
// the user. Title auto-derivation fires only while this is false.
func (c *Conversation) HasUserMessage() bool {
	for i := range c.Messages {
		if c.Messages[i].Sender == SenderUser {
			return true
		}
	}
	return false
}
