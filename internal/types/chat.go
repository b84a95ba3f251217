package types

// Sender identifies who wrote a chat message.
type Sender string

// Chat senders.
const (
	SenderUser Sender = "user"
	SenderAI   Sender = "ai"
)

// ChatMessage is one entry in an append-only chat log.
type ChatMessage struct {
	Sender Sender `json:"sender"`
	Text   string `json:"text"`
	// HTML is the allow-listed rendering of Text (bold, italic, line breaks).
	HTML string `json:"html,omitempty"`
}
