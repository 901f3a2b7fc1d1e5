package storage

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v4"
)

// mapUserUniqueViolation translates a unique-index violation on the users table
// into the matching sentinel error, or returns err unchanged
func mapUserUniqueViolation(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
		switch pgErr.ConstraintName {
		case "users_username_key":
			return ErrUserExists
		case "users_email_key":
			return ErrEmailExists
		}
	}
	return err
}

// CreateUser creates a user with a pre-hashed credential and returns its id
func (s *Store) CreateUser(ctx context.Context, username, email, passwordHash string) (int64, error) {
	s.logger.Debugf("Creating user (%s)", username)

	var id int64
	sql := "insert into users (username, email, password_hash, created_at) values ($1, $2, $3, $4) returning id"
	err := s.db.QueryRow(ctx, sql, username, email, passwordHash, time.Now()).Scan(&id)
	if err != nil {
		return 0, mapUserUniqueViolation(err)
	}

	s.logger.Debugf("Created user (%s) with id %d", username, id)

	return id, nil
}

// Credentials returns the user and stored credential hash for a login attempt
func (s *Store) Credentials(ctx context.Context, username string) (User, string, error) {
	var (
		u    User
		hash string
	)
	sql := "select id, trim(username), trim(email), password_hash, created_at from users where username = $1"
	err := s.db.QueryRow(ctx, sql, username).Scan(&u.ID, &u.Username, &u.Email, &hash, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, "", ErrUserNotExist
		}
		return User{}, "", err
	}

	return u, hash, nil
}

// UserByID returns the user with provided id
func (s *Store) UserByID(ctx context.Context, id int64) (User, error) {
	var u User
	sql := "select id, trim(username), trim(email), created_at from users where id = $1"
	err := s.db.QueryRow(ctx, sql, id).Scan(&u.ID, &u.Username, &u.Email, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrUserNotExist
		}
		return User{}, err
	}

	return u, nil
}

// UserByUsername resolves a username to a user for contact lookup
func (s *Store) UserByUsername(ctx context.Context, username string) (User, error) {
	var u User
	sql := "select id, trim(username) from users where username = $1"
	err := s.db.QueryRow(ctx, sql, username).Scan(&u.ID, &u.Username)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrUserNotExist
		}
		return User{}, err
	}

	return u, nil
}

// UpdateUser changes username and/or email of a user, re-checking uniqueness.
// Blank arguments leave the corresponding field untouched.
func (s *Store) UpdateUser(ctx context.Context, id int64, username, email string) (User, error) {
	s.logger.Debugf("Updating user (id: %d)", id)

	var u User
	sql := `update users
			   set username = coalesce(nullif($2, ''), username),
				   email = coalesce(nullif($3, ''), email)
			 where id = $1
			 returning id, trim(username), trim(email), created_at`
	err := s.db.QueryRow(ctx, sql, id, username, email).Scan(&u.ID, &u.Username, &u.Email, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrUserNotExist
		}
		return User{}, mapUserUniqueViolation(err)
	}

	return u, nil
}

// DeleteUser removes a user and everything hanging off it in a single
// transaction: messages the user sent, groups the user created (their messages
// and membership rows first), remaining membership rows and finally the user
// row itself. Private chats the user took part in survive with the counterpart
// still attached, mirroring plain membership removal.
func (s *Store) DeleteUser(ctx context.Context, id int64) error {
	s.logger.Debugf("Deleting user (id: %d) with cascade", id)

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(context.Background())

	batch := []string{
		"delete from messages where sender_id = $1",
		"delete from messages where chat_id in (select id from chats where creator_id = $1 and type = 'group')",
		"delete from chat_users where chat_id in (select id from chats where creator_id = $1 and type = 'group')",
		"delete from chats where creator_id = $1 and type = 'group'",
		"delete from chat_users where user_id = $1",
	}
	for _, sql := range batch {
		if _, err := tx.Exec(ctx, sql, id); err != nil {
			return err
		}
	}

	tag, err := tx.Exec(ctx, "delete from users where id = $1", id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotExist
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	s.logger.Debugf("Deleted user (id: %d)", id)

	return nil
}
