package model

import "time"

// ConversationTurn is one question/answer exchange in a chat session.
// Turns live only for the lifetime of the session (a bounded, expiring
// window), never in durable storage.
type ConversationTurn struct {
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	ChunkIDs  []string  `json:"chunk_ids,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
