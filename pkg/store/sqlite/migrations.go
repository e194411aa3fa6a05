package sqlite

import "github.com/memscribe/memscribe/pkg/store"

var migrations = []store.Migration{
	{
		Version: 1,
		Name:    "initial_schema",
		Up: `
CREATE TABLE IF NOT EXISTS users (
	id TEXT PRIMARY KEY,
	email TEXT NOT NULL,
	display_name TEXT,
	is_active BOOLEAN NOT NULL DEFAULT 1,
	created_at DATETIME NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_users_email ON users(email);

CREATE TABLE IF NOT EXISTS memories (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	title TEXT NOT NULL,
	content TEXT NOT NULL,
	type TEXT NOT NULL,
	importance REAL NOT NULL DEFAULT 0.5,
	tags TEXT,
	entity_refs TEXT,
	embedding TEXT,
	metadata TEXT,
	is_archived BOOLEAN NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL,
	retention_strength REAL NOT NULL DEFAULT 1.0,
	last_accessed_at DATETIME
);
CREATE INDEX IF NOT EXISTS idx_memories_user ON memories(user_id);
CREATE INDEX IF NOT EXISTS idx_memories_user_created ON memories(user_id, created_at);

CREATE TABLE IF NOT EXISTS entities (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	entity_type TEXT NOT NULL,
	name TEXT NOT NULL,
	person_type TEXT,
	first_name TEXT,
	last_name TEXT,
	company TEXT,
	title TEXT,
	email TEXT,
	phone TEXT,
	address TEXT,
	website TEXT,
	notes TEXT,
	tags TEXT,
	importance REAL NOT NULL DEFAULT 0.5,
	metadata TEXT,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_entities_user ON entities(user_id);

CREATE TABLE IF NOT EXISTS interactions (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	entity_refs TEXT,
	content TEXT NOT NULL,
	direction TEXT NOT NULL,
	occurred_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_interactions_user ON interactions(user_id);

CREATE TABLE IF NOT EXISTS calendar_events (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	title TEXT NOT NULL,
	starts_at DATETIME NOT NULL,
	ends_at DATETIME NOT NULL,
	entity_refs TEXT
);
CREATE INDEX IF NOT EXISTS idx_calendar_user ON calendar_events(user_id);

CREATE TABLE IF NOT EXISTS api_usage_tracking (
	user_id TEXT NOT NULL,
	provider TEXT NOT NULL,
	operation TEXT NOT NULL,
	tokens INTEGER NOT NULL,
	cost REAL NOT NULL,
	timestamp DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_usage_user_time ON api_usage_tracking(user_id, timestamp);

CREATE TABLE IF NOT EXISTS buffered_writes (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	memory_id TEXT,
	kind TEXT NOT NULL,
	payload BLOB,
	attempts INTEGER NOT NULL DEFAULT 0,
	next_attempt_at DATETIME NOT NULL,
	state TEXT NOT NULL,
	enqueued_at DATETIME NOT NULL,
	last_error TEXT
);
CREATE INDEX IF NOT EXISTS idx_buffered_state ON buffered_writes(state, next_attempt_at);
`,
		Down: `
DROP TABLE IF EXISTS buffered_writes;
DROP TABLE IF EXISTS api_usage_tracking;
DROP TABLE IF EXISTS calendar_events;
DROP TABLE IF EXISTS interactions;
DROP TABLE IF EXISTS entities;
DROP TABLE IF EXISTS memories;
DROP TABLE IF EXISTS users;
`,
	},
}
