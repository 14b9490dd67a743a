package transcript

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

const createTableSQL = `
CREATE TABLE IF NOT EXISTS chat_messages (
	id          UUID PRIMARY KEY,
	room_id     TEXT NOT NULL,
	msg_key     TEXT NOT NULL,
	sender_id   TEXT NOT NULL,
	nickname    TEXT NOT NULL,
	body        TEXT NOT NULL,
	icon        TEXT NOT NULL DEFAULT '',
	is_system   BOOLEAN NOT NULL DEFAULT FALSE,
	sent_at     TIMESTAMPTZ NOT NULL,
	received_at TIMESTAMPTZ NOT NULL,
	UNIQUE (room_id, msg_key)
)`

const createIndexSQL = `
CREATE INDEX IF NOT EXISTS chat_messages_room_sent_idx
	ON chat_messages (room_id, sent_at)`

const insertSQL = `
INSERT INTO chat_messages (id, room_id, msg_key, sender_id, nickname, body, icon, is_system, sent_at, received_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
ON CONFLICT (room_id, msg_key) DO NOTHING`

// Execer runs a statement. *pgxpool.Pool satisfies it.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// EnsureSchema creates the chat_messages table and its index if missing.
func EnsureSchema(ctx context.Context, db Execer) error {
	for _, stmt := range []string{createTableSQL, createIndexSQL} {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure transcript schema: %w", err)
		}
	}
	return nil
}
