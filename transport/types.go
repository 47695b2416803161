package transport

import "time"

type Config struct {
	BridgeURL   string
	BridgeToken string
}

// HistoryMessage is one entry of a remote chat history, newest first on the wire.
type HistoryMessage struct {
	ID        int64     `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Outgoing  bool      `json:"outgoing"`
	Text      string    `json:"text,omitempty"`
}

type HistoryResponse struct {
	Messages []HistoryMessage `json:"messages"`
}

// AccountStatus is what the bridge knows about a representative's session.
type AccountStatus struct {
	Authorized  bool   `json:"authorized"`
	Username    string `json:"username,omitempty"`
	ActiveChats int    `json:"active_chats"`
}

// Event is a message observed on a representative's live session.
type Event struct {
	RepresentativeID string    `json:"representative_id"`
	SenderID         int64     `json:"sender_id"`
	ChatID           int64     `json:"chat_id"`
	Outgoing         bool      `json:"outgoing"`
	IsPrivate        bool      `json:"is_private"`
	IsGroup          bool      `json:"is_group"`
	IsChannel        bool      `json:"is_channel"`
	Text             string    `json:"text"`
	Timestamp        time.Time `json:"timestamp"`
}

// OneToOne reports whether the event belongs to a private exchange.
func (e Event) OneToOne() bool {
	return !e.IsGroup && !e.IsChannel
}
