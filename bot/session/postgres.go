package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

type postgresStore struct {
	db *sqlx.DB
}

// NewPostgresStore constructs a Store backed by the sessions table, so
// conversations survive restarts.
func NewPostgresStore(db *sqlx.DB) Store {
	return &postgresStore{db: db}
}

func (p *postgresStore) Get(ctx context.Context, key Key) (*Session, error) {
	var raw []byte
	err := p.db.GetContext(ctx, &raw,
		`SELECT data FROM sessions WHERE user_id = $1 AND chat_id = $2`,
		key.UserID, key.ChatID,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return New(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load session %d:%d: %w", key.UserID, key.ChatID, err)
	}

	s := New()
	if err := json.Unmarshal(raw, s); err != nil {
		return nil, fmt.Errorf("decode session %d:%d: %w", key.UserID, key.ChatID, err)
	}
	return s, nil
}

func (p *postgresStore) Put(ctx context.Context, key Key, s *Session) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode session %d:%d: %w", key.UserID, key.ChatID, err)
	}

	_, err = p.db.ExecContext(ctx,
		`INSERT INTO sessions (user_id, chat_id, data, updated_at)
		 VALUES ($1, $2, $3, now())
		 ON CONFLICT (user_id, chat_id)
		 DO UPDATE SET data = EXCLUDED.data, updated_at = now()`,
		key.UserID, key.ChatID, raw,
	)
	if err != nil {
		return fmt.Errorf("store session %d:%d: %w", key.UserID, key.ChatID, err)
	}
	return nil
}

func (p *postgresStore) Delete(ctx context.Context, key Key) error {
	_, err := p.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE user_id = $1 AND chat_id = $2`,
		key.UserID, key.ChatID,
	)
	if err != nil {
		return fmt.Errorf("delete session %d:%d: %w", key.UserID, key.ChatID, err)
	}
	return nil
}
