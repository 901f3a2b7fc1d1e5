package storage

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgtype"
	"github.com/jackc/pgx/v4"
)

// privatePairKey renders the unordered user pair as the value guarded by the
// partial unique index on chats.private_key, so two concurrent get-or-create
// calls for the same pair cannot both insert
func privatePairKey(a, b int64) string {
	if a > b {
		a, b = b, a
	}
	return strconv.FormatInt(a, 10) + ":" + strconv.FormatInt(b, 10)
}

// ChatsByUserID returns all chats the user belongs to, each with its membership
// list and the most recent message as a preview (file bytes stripped), ordered
// by last activity from latest to oldest
func (s *Store) ChatsByUserID(ctx context.Context, user int64) ([]Chat, error) {
	s.logger.Debugf("Retrieving chats for user (id: %d)", user)

	// check if user exists
	var i int8
	sql := "select 1 from users where id = $1"
	err := s.db.QueryRow(ctx, sql, user).Scan(&i)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotExist
		}
		return nil, err
	}

	sql = ` -- user chats with members and last message, ordered by activity
			with user_chats as (
				select chats.id,
					   chats.type,
					   chats.name,
					   chats.creator_id,
					   chats.created_at,
					   chats.updated_at
				  from chats
				  join chat_users
					on chat_users.chat_id = chats.id
				 where chat_users.user_id = $1
			),

			members_per_chat as (
				select chat_users.chat_id,
					   array_agg(jsonb_build_object('id', users.id, 'username', trim(users.username))) as users
				  from chat_users
				  join users
					on users.id = chat_users.user_id
				 where chat_users.chat_id in (select id from user_chats)
				 group by chat_users.chat_id
			)

			select user_chats.id,
				   user_chats.type,
				   coalesce(trim(user_chats.name), ''),
				   coalesce(user_chats.creator_id, 0),
				   user_chats.created_at,
				   user_chats.updated_at,
				   members_per_chat.users,
				   last_message.id,
				   last_message.sender_id,
				   last_message.kind,
				   last_message.text,
				   last_message.file_name,
				   last_message.created_at
			  from user_chats
			  join members_per_chat
				on members_per_chat.chat_id = user_chats.id
			  left join lateral (
				select id, sender_id, kind, text, file_name, created_at
				  from messages
				 where chat_id = user_chats.id
				 order by created_at desc, id desc
				 limit 1
			  ) last_message on true
			 order by user_chats.updated_at desc`

	rows, err := s.db.Query(ctx, sql, user)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chats []Chat
	for rows.Next() {
		var (
			c         Chat
			users     pgtype.JSONBArray
			msgID     pgtype.Int8
			msgSender pgtype.Int8
			msgKind   pgtype.Text
			msgText   pgtype.Text
			msgFile   pgtype.Text
			msgAt     pgtype.Timestamptz
		)

		err = rows.Scan(&c.ID, &c.Type, &c.Name, &c.CreatorID, &c.CreatedAt, &c.UpdatedAt,
			&users, &msgID, &msgSender, &msgKind, &msgText, &msgFile, &msgAt)
		if err != nil {
			return nil, err
		}

		usersJSON := make([]string, len(users.Elements))
		if err := users.AssignTo(&usersJSON); err != nil {
			return nil, err
		}

		c.Users = make([]User, len(usersJSON))
		for i, v := range usersJSON {
			if err := json.Unmarshal([]byte(v), &c.Users[i]); err != nil {
				return nil, err
			}
		}

		if msgID.Status == pgtype.Present {
			c.LastMessage = &Message{
				ID:        msgID.Int,
				Chat:      c.ID,
				Sender:    User{ID: msgSender.Int},
				Kind:      Kind(msgKind.String),
				Text:      msgText.String,
				FileName:  msgFile.String,
				CreatedAt: msgAt.Time,
			}
		}

		chats = append(chats, c)
	}

	if rows.Err() != nil {
		return nil, rows.Err()
	}

	s.logger.Debugf("Retrieved %d chats", len(chats))

	return chats, nil
}

// OpenPrivateChat finds the private chat between both users, returning it with
// its full ascending message history, or creates an empty one when the pair has
// never talked. A lost insert race falls back to reading the winner's row.
func (s *Store) OpenPrivateChat(ctx context.Context, user, other int64) (Chat, error) {
	s.logger.Debugf("Opening private chat between users %d and %d", user, other)

	if user == other {
		return Chat{}, ErrChatBadUsers
	}

	key := privatePairKey(user, other)

	chat, err := s.privateChatByKey(ctx, key)
	if err == nil {
		return chat, nil
	}
	if !errors.Is(err, ErrChatNotExist) {
		return Chat{}, err
	}

	id, err := s.createPrivateChat(ctx, user, other, key)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation &&
			pgErr.ConstraintName == "chats_private_key_key" {
			// concurrent call created the chat first
			return s.privateChatByKey(ctx, key)
		}
		return Chat{}, err
	}

	s.logger.Debugf("Created private chat (id: %d)", id)

	chat, err = loadChat(ctx, s.db, id)
	if err != nil {
		return Chat{}, err
	}
	chat.Messages = []Message{}

	return chat, nil
}

// privateChatByKey loads an existing private chat by its pair key, history included
func (s *Store) privateChatByKey(ctx context.Context, key string) (Chat, error) {
	var id int64
	sql := "select id from chats where type = 'private' and private_key = $1"
	err := s.db.QueryRow(ctx, sql, key).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Chat{}, ErrChatNotExist
		}
		return Chat{}, err
	}

	chat, err := loadChat(ctx, s.db, id)
	if err != nil {
		return Chat{}, err
	}

	chat.Messages, err = chatMessages(ctx, s.db, id)
	if err != nil {
		return Chat{}, err
	}

	return chat, nil
}

func (s *Store) createPrivateChat(ctx context.Context, user, other int64, key string) (int64, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(context.Background())

	now := time.Now()

	var id int64
	sql := "insert into chats (type, private_key, created_at, updated_at) values ('private', $1, $2, $2) returning id"
	if err := tx.QueryRow(ctx, sql, key, now).Scan(&id); err != nil {
		return 0, err
	}

	sql = "insert into chat_users (chat_id, user_id) values ($1, $2), ($1, $3)"
	if _, err := tx.Exec(ctx, sql, id, user, other); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation {
			return 0, ErrUserNotExist
		}
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}

	return id, nil
}

// CreateGroup performs two-step transaction to create a group chat
// (1. insert chat record; 2. bulk insert on "chat_users" table) and returns it.
// The member list is deduplicated and always includes the creator.
func (s *Store) CreateGroup(ctx context.Context, name string, members []int64, creator int64) (Chat, error) {
	s.logger.Debugf("Creating group (%s) by user %d with members %v", name, creator, members)

	seen := map[int64]bool{creator: true}
	unique := []int64{creator}
	for _, member := range members {
		if !seen[member] {
			seen[member] = true
			unique = append(unique, member)
		}
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return Chat{}, err
	}
	// error handling can be omitted for rollback according docs
	// see https://pkg.go.dev/github.com/jackc/pgx/v4?tab=doc#hdr-Transactions or any source comment on Rollback
	defer tx.Rollback(context.Background())

	now := time.Now()

	var id int64
	sql := "insert into chats (type, name, creator_id, created_at, updated_at) values ('group', $1, $2, $3, $3) returning id"
	err = tx.QueryRow(ctx, sql, name, creator, now).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation {
			return Chat{}, ErrUserNotExist
		}
		return Chat{}, err
	}

	rows := make([]memberRow, 0, len(unique))
	for _, member := range unique {
		rows = append(rows, memberRow{chatID: id, userID: member})
	}

	_, err = tx.CopyFrom(ctx, pgx.Identifier{"chat_users"}, []string{"chat_id", "user_id"}, copyFromMembers(rows))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation {
			return Chat{}, ErrChatBadUsers
		}
		return Chat{}, err
	}

	chat, err := loadChat(ctx, tx, id)
	if err != nil {
		return Chat{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Chat{}, err
	}

	s.logger.Debugf("Created group (%s) with id %d", name, id)

	return chat, nil
}

// AddMember adds target to a group chat on behalf of actor. Any current member
// may invite unless creatorOnly restricts the operation to the group creator.
func (s *Store) AddMember(ctx context.Context, chat, target, actor int64, creatorOnly bool) (Chat, error) {
	s.logger.Debugf("Adding user %d to chat %d on behalf of user %d", target, chat, actor)

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return Chat{}, err
	}
	defer tx.Rollback(context.Background())

	head, err := chatForUpdate(ctx, tx, chat)
	if err != nil {
		return Chat{}, err
	}
	if head.chatType != ChatGroup {
		return Chat{}, ErrNotGroup
	}

	member, err := isMember(ctx, tx, chat, actor)
	if err != nil {
		return Chat{}, err
	}
	if !member {
		return Chat{}, ErrNotMember
	}
	if creatorOnly && !head.isCreator(actor) {
		return Chat{}, ErrNotCreator
	}

	sql := "insert into chat_users (chat_id, user_id) values ($1, $2)"
	if _, err := tx.Exec(ctx, sql, chat, target); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case pgerrcode.UniqueViolation:
				return Chat{}, ErrAlreadyMember
			case pgerrcode.ForeignKeyViolation:
				return Chat{}, ErrUserNotExist
			}
		}
		return Chat{}, err
	}

	updated, err := loadChat(ctx, tx, chat)
	if err != nil {
		return Chat{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Chat{}, err
	}

	return updated, nil
}

// RemoveMember removes target from a group chat. Only the creator may remove
// members and the creator itself can never be removed.
func (s *Store) RemoveMember(ctx context.Context, chat, target, actor int64) (Chat, error) {
	s.logger.Debugf("Removing user %d from chat %d on behalf of user %d", target, chat, actor)

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return Chat{}, err
	}
	defer tx.Rollback(context.Background())

	head, err := chatForUpdate(ctx, tx, chat)
	if err != nil {
		return Chat{}, err
	}
	if head.chatType != ChatGroup {
		return Chat{}, ErrNotGroup
	}
	if !head.isCreator(actor) {
		return Chat{}, ErrNotCreator
	}
	if head.isCreator(target) {
		return Chat{}, ErrCreatorImmune
	}

	// removing an id that is not a member is a no-op, like the membership
	// disconnect it models
	sql := "delete from chat_users where chat_id = $1 and user_id = $2"
	if _, err := tx.Exec(ctx, sql, chat, target); err != nil {
		return Chat{}, err
	}

	updated, err := loadChat(ctx, tx, chat)
	if err != nil {
		return Chat{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Chat{}, err
	}

	return updated, nil
}

// LeaveChat removes actor from a group chat. The creator cannot leave and has
// to delete the group instead, since a group cannot exist creator-less.
func (s *Store) LeaveChat(ctx context.Context, chat, actor int64) (Chat, error) {
	s.logger.Debugf("User %d leaving chat %d", actor, chat)

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return Chat{}, err
	}
	defer tx.Rollback(context.Background())

	head, err := chatForUpdate(ctx, tx, chat)
	if err != nil {
		return Chat{}, err
	}
	if head.chatType != ChatGroup {
		return Chat{}, ErrNotGroup
	}
	if head.isCreator(actor) {
		return Chat{}, ErrCreatorLeave
	}

	sql := "delete from chat_users where chat_id = $1 and user_id = $2"
	tag, err := tx.Exec(ctx, sql, chat, actor)
	if err != nil {
		return Chat{}, err
	}
	if tag.RowsAffected() == 0 {
		return Chat{}, ErrNotMember
	}

	updated, err := loadChat(ctx, tx, chat)
	if err != nil {
		return Chat{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Chat{}, err
	}

	return updated, nil
}

// DeleteGroup deletes a group chat with all its messages in one transaction.
// Only the creator may delete; messages go first so no message row can survive
// referencing a deleted chat.
func (s *Store) DeleteGroup(ctx context.Context, chat, actor int64) error {
	s.logger.Debugf("Deleting chat %d on behalf of user %d", chat, actor)

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(context.Background())

	head, err := chatForUpdate(ctx, tx, chat)
	if err != nil {
		return err
	}
	if head.chatType != ChatGroup {
		return ErrNotGroup
	}
	if !head.isCreator(actor) {
		return ErrNotCreator
	}

	batch := []string{
		"delete from messages where chat_id = $1",
		"delete from chat_users where chat_id = $1",
		"delete from chats where id = $1",
	}
	for _, sql := range batch {
		if _, err := tx.Exec(ctx, sql, chat); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	s.logger.Debugf("Deleted chat %d", chat)

	return nil
}
