package storage

import (
	"strings"
	"time"
)

// ChatType discriminates private (two-member, creator-less) chats from named groups
type ChatType string

const (
	ChatPrivate ChatType = "private"
	ChatGroup   ChatType = "group"
)

// Kind discriminates message payloads
type Kind string

const (
	KindText  Kind = "text"
	KindImage Kind = "image"
	KindPDF   Kind = "pdf"
	KindFile  Kind = "file"
)

type User struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email,omitempty"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

type Chat struct {
	ID        int64    `json:"id"`
	Type      ChatType `json:"type"`
	Name      string   `json:"name,omitempty"`
	CreatorID int64    `json:"creator_id,omitempty"`
	Users     []User   `json:"users"`
	// LastMessage is populated only by ChatsByUserID (preview), Messages only by
	// OpenPrivateChat (full ascending history). File bytes are never embedded.
	LastMessage *Message  `json:"last_message,omitempty"`
	Messages    []Message `json:"messages,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type Message struct {
	ID        int64     `json:"id"`
	Chat      int64     `json:"chat_id"`
	Sender    User      `json:"sender"`
	Kind      Kind      `json:"kind"`
	Text      string    `json:"text,omitempty"`
	FileName  string    `json:"file_name,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Attachment is the raw file carried by a non-text message
type Attachment struct {
	Kind Kind
	Name string
	Data []byte
}

// Payload is the body of a new message: exactly one of trimmed text or a named
// file. Constructed only via TextPayload or FilePayload so the text/file
// exclusivity holds by construction.
type Payload struct {
	kind Kind
	text string
	name string
	data []byte
}

// TextPayload builds a text message body, rejecting blank text
func TextPayload(text string) (Payload, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Payload{}, ErrEmptyMessage
	}

	return Payload{kind: KindText, text: text}, nil
}

// FilePayload builds a file message body of provided kind, rejecting empty
// content, a blank filename or the text kind
func FilePayload(kind Kind, name string, data []byte) (Payload, error) {
	if kind != KindImage && kind != KindPDF && kind != KindFile {
		return Payload{}, ErrEmptyMessage
	}
	if strings.TrimSpace(name) == "" || len(data) == 0 {
		return Payload{}, ErrEmptyMessage
	}

	return Payload{kind: kind, name: name, data: data}, nil
}

// Kind reports the payload discriminant
func (p Payload) Kind() Kind { return p.kind }
