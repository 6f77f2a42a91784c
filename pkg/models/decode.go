package models

import "fmt"

// FieldError reports which required field a record was missing. List
// decoders skip the offending record and keep the rest; the error is
// logged rather than failing the whole list.
type FieldError struct {
	Record string
	Field  string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s record missing required field %q", e.Record, e.Field)
}

// Validate checks the fields a directory entry cannot render without.
func (d DirectoryEntry) Validate() error {
	switch {
	case d.Name == "":
		return &FieldError{Record: "directory", Field: "name"}
	case d.Email == "":
		return &FieldError{Record: "directory", Field: "email"}
	}
	return nil
}

// Validate checks the fields a conversation list cannot render without.
func (c ConversationSummary) Validate() error {
	switch {
	case c.ID == "":
		return &FieldError{Record: "conversation", Field: "id"}
	case c.OtherUserEmail == "":
		return &FieldError{Record: "conversation", Field: "other_user_email"}
	case c.Name == "":
		return &FieldError{Record: "conversation", Field: "name"}
	case c.LatestMessage.Date == "":
		return &FieldError{Record: "conversation", Field: "latest_message.date"}
	}
	return nil
}

// Validate checks the fields a chat view cannot render without.
func (m MessageRecord) Validate() error {
	switch {
	case m.ID == "":
		return &FieldError{Record: "message", Field: "id"}
	case m.Content == "":
		return &FieldError{Record: "message", Field: "content"}
	case m.SenderEmail == "":
		return &FieldError{Record: "message", Field: "sender_email"}
	case m.Date == "":
		return &FieldError{Record: "message", Field: "date"}
	}
	return nil
}
