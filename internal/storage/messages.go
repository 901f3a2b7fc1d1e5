package storage

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
)

// CreateMessage appends a message to a chat the sender belongs to and bumps the
// chat's activity timestamp within the same transaction. The returned message
// embeds the sender but never the file bytes.
func (s *Store) CreateMessage(ctx context.Context, chat, sender int64, payload Payload) (Message, error) {
	s.logger.Debugf("Creating %s message from user %d in chat %d", payload.kind, sender, chat)

	if payload.kind == "" {
		return Message{}, ErrEmptyMessage
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return Message{}, err
	}
	defer tx.Rollback(context.Background())

	if _, err := chatForUpdate(ctx, tx, chat); err != nil {
		return Message{}, err
	}

	member, err := isMember(ctx, tx, chat, sender)
	if err != nil {
		return Message{}, err
	}
	if !member {
		return Message{}, ErrNotMember
	}

	now := time.Now()

	m := Message{
		Chat:      chat,
		Kind:      payload.kind,
		Text:      payload.text,
		FileName:  payload.name,
		CreatedAt: now,
	}

	var (
		text *string
		data []byte
		name *string
	)
	if payload.kind == KindText {
		text = &payload.text
	} else {
		data = payload.data
		name = &payload.name
	}

	sql := `insert into messages (chat_id, sender_id, kind, text, file_data, file_name, created_at)
			values ($1, $2, $3, $4, $5, $6, $7)
			returning id`
	if err := tx.QueryRow(ctx, sql, chat, sender, payload.kind, text, data, name, now).Scan(&m.ID); err != nil {
		return Message{}, err
	}

	sql = "update chats set updated_at = $2 where id = $1"
	if _, err := tx.Exec(ctx, sql, chat, now); err != nil {
		return Message{}, err
	}

	sql = "select id, trim(username) from users where id = $1"
	if err := tx.QueryRow(ctx, sql, sender).Scan(&m.Sender.ID, &m.Sender.Username); err != nil {
		return Message{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Message{}, err
	}

	s.logger.Debugf("Created message %d in chat %d", m.ID, chat)

	return m, nil
}

// MessagesByChatID returns the chat history for a member, sorted by message
// creation time from earliest to latest, file bytes stripped
func (s *Store) MessagesByChatID(ctx context.Context, chat, user int64) ([]Message, error) {
	s.logger.Debugf("Retrieving messages of chat %d for user %d", chat, user)

	// check if chat exists
	var i int8
	sql := "select 1 from chats where id = $1"
	err := s.db.QueryRow(ctx, sql, chat).Scan(&i)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrChatNotExist
		}
		return nil, err
	}

	member, err := isMember(ctx, s.db, chat, user)
	if err != nil {
		return nil, err
	}
	if !member {
		return nil, ErrNotMember
	}

	messages, err := chatMessages(ctx, s.db, chat)
	if err != nil {
		return nil, err
	}

	s.logger.Debugf("Retrieved %d messages", len(messages))

	return messages, nil
}

// chatMessages reads the ascending message log of a chat without file bytes
func chatMessages(ctx context.Context, q querier, chat int64) ([]Message, error) {
	sql := `select messages.id,
				   messages.chat_id,
				   messages.kind,
				   coalesce(messages.text, ''),
				   coalesce(messages.file_name, ''),
				   messages.created_at,
				   users.id,
				   trim(users.username)
			  from messages
			  join users
				on users.id = messages.sender_id
			 where messages.chat_id = $1
			 order by messages.created_at asc, messages.id asc`

	rows, err := q.Query(ctx, sql, chat)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := []Message{}
	for rows.Next() {
		var m Message
		err = rows.Scan(&m.ID, &m.Chat, &m.Kind, &m.Text, &m.FileName, &m.CreatedAt,
			&m.Sender.ID, &m.Sender.Username)
		if err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}

	return messages, rows.Err()
}

// FileByMessageID returns the raw attachment of a message for a member of the
// owning chat. Text messages yield ErrNoFile.
func (s *Store) FileByMessageID(ctx context.Context, message, user int64) (Attachment, error) {
	s.logger.Debugf("Retrieving file of message %d for user %d", message, user)

	var (
		chat int64
		a    Attachment
		data []byte
		name *string
	)
	sql := "select chat_id, kind, file_data, file_name from messages where id = $1"
	err := s.db.QueryRow(ctx, sql, message).Scan(&chat, &a.Kind, &data, &name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Attachment{}, ErrMessageNotExist
		}
		return Attachment{}, err
	}

	member, err := isMember(ctx, s.db, chat, user)
	if err != nil {
		return Attachment{}, err
	}
	if !member {
		return Attachment{}, ErrNotMember
	}

	if len(data) == 0 {
		return Attachment{}, ErrNoFile
	}

	a.Data = data
	if name != nil {
		a.Name = *name
	}

	return a, nil
}
