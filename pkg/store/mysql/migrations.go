package mysql

import "github.com/memscribe/memscribe/pkg/store"

// migrations generalizes the oceanbase backend's single wide vector
// table into the same per-kind relational schema the sqlite and
// postgres backends use — plain MySQL has no native vector column, and
// hybrid search recomputes similarity in pkg/search regardless, so
// there is nothing OceanBase-specific left to keep.
var migrations = []store.Migration{
	{
		Version: 1,
		Name:    "initial_schema",
		Up: `
CREATE TABLE IF NOT EXISTS users (
	id VARCHAR(64) PRIMARY KEY,
	email VARCHAR(320) NOT NULL,
	display_name VARCHAR(255),
	is_active BOOLEAN NOT NULL DEFAULT true,
	created_at DATETIME NOT NULL,
	UNIQUE KEY idx_users_email (email)
) ENGINE=InnoDB;

CREATE TABLE IF NOT EXISTS memories (
	id VARCHAR(64) PRIMARY KEY,
	user_id VARCHAR(64) NOT NULL,
	title VARCHAR(512) NOT NULL,
	content LONGTEXT NOT NULL,
	type VARCHAR(32) NOT NULL,
	importance DOUBLE NOT NULL DEFAULT 0.5,
	tags JSON,
	entity_refs JSON,
	embedding JSON,
	metadata JSON,
	is_archived BOOLEAN NOT NULL DEFAULT false,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL,
	retention_strength DOUBLE NOT NULL DEFAULT 1.0,
	last_accessed_at DATETIME NULL,
	KEY idx_memories_user (user_id)
) ENGINE=InnoDB;

CREATE TABLE IF NOT EXISTS entities (
	id VARCHAR(64) PRIMARY KEY,
	user_id VARCHAR(64) NOT NULL,
	entity_type VARCHAR(32) NOT NULL,
	name VARCHAR(512) NOT NULL,
	person_type VARCHAR(64),
	first_name VARCHAR(255),
	last_name VARCHAR(255),
	company VARCHAR(255),
	title VARCHAR(255),
	email VARCHAR(320),
	phone VARCHAR(64),
	address VARCHAR(512),
	website VARCHAR(512),
	notes LONGTEXT,
	tags JSON,
	importance DOUBLE NOT NULL DEFAULT 0.5,
	metadata JSON,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL,
	KEY idx_entities_user (user_id)
) ENGINE=InnoDB;

CREATE TABLE IF NOT EXISTS interactions (
	id VARCHAR(64) PRIMARY KEY,
	user_id VARCHAR(64) NOT NULL,
	entity_refs JSON,
	content LONGTEXT NOT NULL,
	direction VARCHAR(16) NOT NULL,
	occurred_at DATETIME NOT NULL,
	KEY idx_interactions_user (user_id)
) ENGINE=InnoDB;

CREATE TABLE IF NOT EXISTS calendar_events (
	id VARCHAR(64) PRIMARY KEY,
	user_id VARCHAR(64) NOT NULL,
	title VARCHAR(512) NOT NULL,
	starts_at DATETIME NOT NULL,
	ends_at DATETIME NOT NULL,
	entity_refs JSON,
	KEY idx_calendar_user (user_id)
) ENGINE=InnoDB;

CREATE TABLE IF NOT EXISTS api_usage_tracking (
	user_id VARCHAR(64) NOT NULL,
	provider VARCHAR(128) NOT NULL,
	operation VARCHAR(64) NOT NULL,
	tokens INT NOT NULL,
	cost DOUBLE NOT NULL,
	timestamp DATETIME NOT NULL,
	KEY idx_usage_user_time (user_id, timestamp)
) ENGINE=InnoDB;

CREATE TABLE IF NOT EXISTS buffered_writes (
	id VARCHAR(64) PRIMARY KEY,
	user_id VARCHAR(64) NOT NULL,
	memory_id VARCHAR(64),
	kind VARCHAR(32) NOT NULL,
	payload LONGBLOB,
	attempts INT NOT NULL DEFAULT 0,
	next_attempt_at DATETIME NOT NULL,
	state VARCHAR(16) NOT NULL,
	enqueued_at DATETIME NOT NULL,
	last_error TEXT,
	KEY idx_buffered_state (state, next_attempt_at)
) ENGINE=InnoDB;
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
