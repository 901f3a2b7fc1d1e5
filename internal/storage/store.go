package storage

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"go.uber.org/zap"

	"chat-backend/internal/storage/zapadapter"
)

var (
	ErrUserExists      = errors.New("username already taken")
	ErrEmailExists     = errors.New("email already taken")
	ErrUserNotExist    = errors.New("user does not exist")
	ErrChatNotExist    = errors.New("chat does not exist")
	ErrChatBadUsers    = errors.New("bad users list")
	ErrNotGroup        = errors.New("chat is not a group")
	ErrNotMember       = errors.New("user is not a chat member")
	ErrAlreadyMember   = errors.New("user already in group")
	ErrNotCreator      = errors.New("user is not the group creator")
	ErrCreatorImmune   = errors.New("creator cannot be removed")
	ErrCreatorLeave    = errors.New("creator cannot leave the group")
	ErrMessageNotExist = errors.New("message does not exist")
	ErrNoFile          = errors.New("message carries no file")
	ErrEmptyMessage    = errors.New("empty message payload")
)

// Store defines fields used in db interaction processes
type Store struct {
	logger *zap.SugaredLogger
	db     *pgxpool.Pool
}

// New sets provided zap.Logger via zapadapter to pgxpool.Pool and returns instance of Store struct
func New(ctx context.Context, logger *zap.SugaredLogger, cfg Config, opts ...Option) (*Store, error) {
	config, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, err
	}
	config.ConnConfig.Logger = zapadapter.NewLogger(logger.Desugar())

	for _, opt := range opts {
		opt.apply(config)
	}

	pool, err := pgxpool.ConnectConfig(ctx, config)
	if err != nil {
		return nil, err
	}

	return &Store{
		logger: logger,
		db:     pool,
	}, nil
}

// Close releases the underlying connection pool
func (s *Store) Close() {
	s.db.Close()
}

// querier is satisfied by both *pgxpool.Pool and pgx.Tx, so read helpers can run
// standalone or inside a transaction
type querier interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

// chatHead is the chat row subset needed for access-control decisions
type chatHead struct {
	id        int64
	chatType  ChatType
	creatorID int64
}

func (c chatHead) isCreator(user int64) bool {
	return c.chatType == ChatGroup && c.creatorID == user
}

// chatForUpdate locks the chat row for the rest of the transaction so membership
// mutations and cascades on the same chat serialize
func chatForUpdate(ctx context.Context, tx pgx.Tx, chat int64) (chatHead, error) {
	var head chatHead
	sql := "select id, type, coalesce(creator_id, 0) from chats where id = $1 for update"
	err := tx.QueryRow(ctx, sql, chat).Scan(&head.id, &head.chatType, &head.creatorID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return chatHead{}, ErrChatNotExist
		}
		return chatHead{}, err
	}

	return head, nil
}

// isMember reports whether user currently belongs to chat
func isMember(ctx context.Context, q querier, chat, user int64) (bool, error) {
	var i int8
	sql := "select 1 from chat_users where chat_id = $1 and user_id = $2"
	err := q.QueryRow(ctx, sql, chat, user).Scan(&i)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, err
	}

	return true, nil
}

// chatMembers returns the membership list with usernames, ordered by user id
func chatMembers(ctx context.Context, q querier, chat int64) ([]User, error) {
	sql := `select users.id, trim(users.username)
			  from chat_users
			  join users
				on users.id = chat_users.user_id
			 where chat_users.chat_id = $1
			 order by users.id`

	rows, err := q.Query(ctx, sql, chat)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Username); err != nil {
			return nil, err
		}
		members = append(members, u)
	}

	return members, rows.Err()
}

// loadChat reads a single chat with its membership list
func loadChat(ctx context.Context, q querier, chat int64) (Chat, error) {
	var (
		c    Chat
		name *string
	)
	sql := `select id, type, name, coalesce(creator_id, 0), created_at, updated_at
			  from chats
			 where id = $1`
	err := q.QueryRow(ctx, sql, chat).Scan(&c.ID, &c.Type, &name, &c.CreatorID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Chat{}, ErrChatNotExist
		}
		return Chat{}, err
	}
	if name != nil {
		c.Name = *name
	}

	c.Users, err = chatMembers(ctx, q, chat)
	if err != nil {
		return Chat{}, err
	}

	return c, nil
}
