package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schema is applied at startup; every statement is idempotent.
//
// The widget aggregate is split over four tables behind the repository
// contract. widget_contents.seq preserves insertion order independently of
// created_at; widget_reactions' primary key enforces the one-reaction-per
// (content, sender, type) toggle relation.
const schema = `
CREATE TABLE IF NOT EXISTS users (
	id UUID PRIMARY KEY,
	email TEXT UNIQUE,
	username TEXT NOT NULL,
	password_hash TEXT NOT NULL DEFAULT '',
	code TEXT NOT NULL UNIQUE,
	is_verified BOOLEAN NOT NULL DEFAULT FALSE,
	profile_image TEXT NOT NULL,
	player_id TEXT,
	widget_count INT NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS user_friends (
	user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	friend_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (user_id, friend_id)
);

CREATE TABLE IF NOT EXISTS widgets (
	id UUID PRIMARY KEY,
	name TEXT NOT NULL,
	creator_id UUID NOT NULL,
	is_alone BOOLEAN NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS widget_members (
	widget_id UUID NOT NULL REFERENCES widgets(id) ON DELETE CASCADE,
	user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	joined_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (widget_id, user_id)
);

CREATE TABLE IF NOT EXISTS widget_contents (
	id UUID PRIMARY KEY,
	widget_id UUID NOT NULL REFERENCES widgets(id) ON DELETE CASCADE,
	sender_id UUID NOT NULL,
	type TEXT NOT NULL,
	data TEXT NOT NULL,
	reaction_count INT NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL,
	seq BIGINT GENERATED ALWAYS AS IDENTITY
);

CREATE INDEX IF NOT EXISTS widget_contents_widget_idx ON widget_contents (widget_id, seq);

CREATE TABLE IF NOT EXISTS widget_reactions (
	widget_id UUID NOT NULL REFERENCES widgets(id) ON DELETE CASCADE,
	content_id UUID NOT NULL REFERENCES widget_contents(id) ON DELETE CASCADE,
	sender_id UUID NOT NULL,
	type TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (content_id, sender_id, type)
);

CREATE INDEX IF NOT EXISTS widget_reactions_widget_idx ON widget_reactions (widget_id);
`

func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("applying schema: %w", err)
	}
	return nil
}
