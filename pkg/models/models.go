package models

// Persisted layout, all paths relative to the blob store root:
//
//	users                         -> []DirectoryEntry
//	<formattedEmail>              -> UserRecord
//	<formattedEmail>/conversations -> []ConversationSummary
//	conversation_<firstMessageID> -> Thread
//
// Field names mirror the wire format exactly; every record is decoded with
// Validate so a malformed entry can be skipped without dropping its siblings.

// DirectoryEntry is one row of the flat user registry under "users".
// Email is kept in original (unformatted) form.
type DirectoryEntry struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// UserRecord is the per-user root node keyed by the formatted email.
type UserRecord struct {
	FirstName     string                `json:"first_name"`
	LastName      string                `json:"last_name"`
	Conversations []ConversationSummary `json:"conversations,omitempty"`
}

// LatestMessage is the denormalized preview shown in a conversation list.
// It is overwritten on every append to the conversation.
type LatestMessage struct {
	Date    string `json:"date"`
	Message string `json:"message"`
	IsRead  bool   `json:"is_read"`
}

// ConversationSummary is one user's view of a conversation. The same
// conversation id appears in both participants' indices, each summary
// pointing at the other party.
type ConversationSummary struct {
	ID             string        `json:"id"`
	OtherUserEmail string        `json:"other_user_email"`
	Name           string        `json:"name"`
	LatestMessage  LatestMessage `json:"latest_message"`
}

// MessageRecord is an immutable entry in a conversation thread.
// SenderEmail holds the formatted identity of the sender.
type MessageRecord struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	Content     string `json:"content"`
	Date        string `json:"date"`
	SenderEmail string `json:"sender_email"`
	IsRead      bool   `json:"is_read"`
	Name        string `json:"name"`
}

// Thread is the shared append-only message sequence for one conversation,
// stored under conversation_<firstMessageID>. Neither participant owns it.
type Thread struct {
	Messages []MessageRecord `json:"messages"`
}

// MessageTypeText is the only fully supported message kind.
const MessageTypeText = "text"
