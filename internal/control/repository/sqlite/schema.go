package sqlite

import (
	"github.com/openclaw/openclaw/internal/db/dialect"
)

// sqliteSchema is executed as-is on SQLite. Arrays and objects live in
// TEXT columns as JSON; the tasks and events ids are the only
// autoincrement keys, everything else is a UUID string.
const sqliteSchema = `
CREATE TABLE IF NOT EXISTS orgs (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	slug TEXT NOT NULL UNIQUE,
	created_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS teams (
	id TEXT PRIMARY KEY,
	org_id TEXT NOT NULL,
	name TEXT NOT NULL,
	slug TEXT NOT NULL,
	config TEXT DEFAULT '{}',
	created_at TIMESTAMP NOT NULL,
	UNIQUE(org_id, slug)
);

CREATE TABLE IF NOT EXISTS agents (
	id TEXT PRIMARY KEY,
	team_id TEXT NOT NULL,
	name TEXT NOT NULL,
	role TEXT NOT NULL DEFAULT 'engineer',
	model TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL DEFAULT 'idle',
	config TEXT DEFAULT '{}',
	status_changed_at TIMESTAMP NOT NULL,
	created_at TIMESTAMP NOT NULL,
	UNIQUE(team_id, name)
);

CREATE TABLE IF NOT EXISTS repos (
	id TEXT PRIMARY KEY,
	team_id TEXT NOT NULL,
	name TEXT NOT NULL,
	local_path TEXT NOT NULL,
	default_branch TEXT NOT NULL DEFAULT 'main',
	config TEXT DEFAULT '{}',
	created_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS tasks (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	team_id TEXT NOT NULL,
	title TEXT NOT NULL,
	description TEXT DEFAULT '',
	status TEXT NOT NULL DEFAULT 'todo',
	priority TEXT NOT NULL DEFAULT 'medium',
	dri_id TEXT,
	assignee_id TEXT,
	depends_on TEXT DEFAULT '[]',
	repo_ids TEXT DEFAULT '[]',
	tags TEXT DEFAULT '[]',
	branch TEXT DEFAULT '',
	metadata TEXT DEFAULT '{}',
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL,
	completed_at TIMESTAMP
);

CREATE TABLE IF NOT EXISTS messages (
	id TEXT PRIMARY KEY,
	team_id TEXT NOT NULL,
	sender_id TEXT NOT NULL,
	sender_type TEXT NOT NULL DEFAULT 'agent',
	recipient_id TEXT NOT NULL,
	recipient_type TEXT NOT NULL DEFAULT 'agent',
	task_id INTEGER,
	content TEXT NOT NULL,
	delivered_at TIMESTAMP,
	seen_at TIMESTAMP,
	processed_at TIMESTAMP,
	created_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS events (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	stream_id TEXT NOT NULL,
	type TEXT NOT NULL,
	data TEXT DEFAULT '{}',
	metadata TEXT DEFAULT '{}',
	created_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS sessions (
	id TEXT PRIMARY KEY,
	agent_id TEXT NOT NULL,
	task_id INTEGER,
	model TEXT DEFAULT '',
	tokens_in INTEGER NOT NULL DEFAULT 0,
	tokens_out INTEGER NOT NULL DEFAULT 0,
	cache_read INTEGER NOT NULL DEFAULT 0,
	cache_write INTEGER NOT NULL DEFAULT 0,
	cost_usd REAL NOT NULL DEFAULT 0,
	error TEXT,
	started_at TIMESTAMP NOT NULL,
	ended_at TIMESTAMP
);

CREATE TABLE IF NOT EXISTS human_requests (
	id TEXT PRIMARY KEY,
	team_id TEXT NOT NULL,
	agent_id TEXT NOT NULL,
	task_id INTEGER,
	kind TEXT NOT NULL DEFAULT 'question',
	question TEXT NOT NULL,
	options TEXT DEFAULT '[]',
	status TEXT NOT NULL DEFAULT 'pending',
	response TEXT,
	responded_by TEXT,
	timeout_at TIMESTAMP,
	created_at TIMESTAMP NOT NULL,
	resolved_at TIMESTAMP
);

CREATE TABLE IF NOT EXISTS reviews (
	id TEXT PRIMARY KEY,
	task_id INTEGER NOT NULL,
	attempt INTEGER NOT NULL,
	reviewer_id TEXT,
	reviewer_type TEXT NOT NULL DEFAULT 'user',
	verdict TEXT,
	summary TEXT,
	created_at TIMESTAMP NOT NULL,
	resolved_at TIMESTAMP,
	UNIQUE(task_id, attempt)
);

CREATE TABLE IF NOT EXISTS review_comments (
	id TEXT PRIMARY KEY,
	review_id TEXT NOT NULL,
	author_id TEXT NOT NULL,
	author_type TEXT NOT NULL DEFAULT 'user',
	file_path TEXT,
	line_number INTEGER,
	content TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL,
	FOREIGN KEY (review_id) REFERENCES reviews(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS merge_jobs (
	id TEXT PRIMARY KEY,
	task_id INTEGER NOT NULL,
	repo_id TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'queued',
	strategy TEXT NOT NULL DEFAULT 'rebase',
	merge_commit TEXT,
	error TEXT,
	created_at TIMESTAMP NOT NULL,
	started_at TIMESTAMP,
	finished_at TIMESTAMP
);
`

// postgresSchema mirrors sqliteSchema with Postgres column types.
const postgresSchema = `
CREATE TABLE IF NOT EXISTS orgs (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	slug TEXT NOT NULL UNIQUE,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS teams (
	id TEXT PRIMARY KEY,
	org_id TEXT NOT NULL,
	name TEXT NOT NULL,
	slug TEXT NOT NULL,
	config TEXT DEFAULT '{}',
	created_at TIMESTAMPTZ NOT NULL,
	UNIQUE(org_id, slug)
);

CREATE TABLE IF NOT EXISTS agents (
	id TEXT PRIMARY KEY,
	team_id TEXT NOT NULL,
	name TEXT NOT NULL,
	role TEXT NOT NULL DEFAULT 'engineer',
	model TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL DEFAULT 'idle',
	config TEXT DEFAULT '{}',
	status_changed_at TIMESTAMPTZ NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	UNIQUE(team_id, name)
);

CREATE TABLE IF NOT EXISTS repos (
	id TEXT PRIMARY KEY,
	team_id TEXT NOT NULL,
	name TEXT NOT NULL,
	local_path TEXT NOT NULL,
	default_branch TEXT NOT NULL DEFAULT 'main',
	config TEXT DEFAULT '{}',
	created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS tasks (
	id BIGSERIAL PRIMARY KEY,
	team_id TEXT NOT NULL,
	title TEXT NOT NULL,
	description TEXT DEFAULT '',
	status TEXT NOT NULL DEFAULT 'todo',
	priority TEXT NOT NULL DEFAULT 'medium',
	dri_id TEXT,
	assignee_id TEXT,
	depends_on TEXT DEFAULT '[]',
	repo_ids TEXT DEFAULT '[]',
	tags TEXT DEFAULT '[]',
	branch TEXT DEFAULT '',
	metadata TEXT DEFAULT '{}',
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	completed_at TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS messages (
	id TEXT PRIMARY KEY,
	team_id TEXT NOT NULL,
	sender_id TEXT NOT NULL,
	sender_type TEXT NOT NULL DEFAULT 'agent',
	recipient_id TEXT NOT NULL,
	recipient_type TEXT NOT NULL DEFAULT 'agent',
	task_id BIGINT,
	content TEXT NOT NULL,
	delivered_at TIMESTAMPTZ,
	seen_at TIMESTAMPTZ,
	processed_at TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS events (
	id BIGSERIAL PRIMARY KEY,
	stream_id TEXT NOT NULL,
	type TEXT NOT NULL,
	data TEXT DEFAULT '{}',
	metadata TEXT DEFAULT '{}',
	created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS sessions (
	id TEXT PRIMARY KEY,
	agent_id TEXT NOT NULL,
	task_id BIGINT,
	model TEXT DEFAULT '',
	tokens_in BIGINT NOT NULL DEFAULT 0,
	tokens_out BIGINT NOT NULL DEFAULT 0,
	cache_read BIGINT NOT NULL DEFAULT 0,
	cache_write BIGINT NOT NULL DEFAULT 0,
	cost_usd DOUBLE PRECISION NOT NULL DEFAULT 0,
	error TEXT,
	started_at TIMESTAMPTZ NOT NULL,
	ended_at TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS human_requests (
	id TEXT PRIMARY KEY,
	team_id TEXT NOT NULL,
	agent_id TEXT NOT NULL,
	task_id BIGINT,
	kind TEXT NOT NULL DEFAULT 'question',
	question TEXT NOT NULL,
	options TEXT DEFAULT '[]',
	status TEXT NOT NULL DEFAULT 'pending',
	response TEXT,
	responded_by TEXT,
	timeout_at TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL,
	resolved_at TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS reviews (
	id TEXT PRIMARY KEY,
	task_id BIGINT NOT NULL,
	attempt INTEGER NOT NULL,
	reviewer_id TEXT,
	reviewer_type TEXT NOT NULL DEFAULT 'user',
	verdict TEXT,
	summary TEXT,
	created_at TIMESTAMPTZ NOT NULL,
	resolved_at TIMESTAMPTZ,
	UNIQUE(task_id, attempt)
);

CREATE TABLE IF NOT EXISTS review_comments (
	id TEXT PRIMARY KEY,
	review_id TEXT NOT NULL,
	author_id TEXT NOT NULL,
	author_type TEXT NOT NULL DEFAULT 'user',
	file_path TEXT,
	line_number INTEGER,
	content TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	FOREIGN KEY (review_id) REFERENCES reviews(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS merge_jobs (
	id TEXT PRIMARY KEY,
	task_id BIGINT NOT NULL,
	repo_id TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'queued',
	strategy TEXT NOT NULL DEFAULT 'rebase',
	merge_commit TEXT,
	error TEXT,
	created_at TIMESTAMPTZ NOT NULL,
	started_at TIMESTAMPTZ,
	finished_at TIMESTAMPTZ
);
`

var schemaIndexes = []string{
	`CREATE INDEX IF NOT EXISTS idx_events_stream ON events(stream_id, id)`,
	`CREATE INDEX IF NOT EXISTS idx_messages_recipient ON messages(recipient_id, processed_at)`,
	`CREATE INDEX IF NOT EXISTS idx_messages_team ON messages(team_id)`,
	`CREATE INDEX IF NOT EXISTS idx_tasks_team_status ON tasks(team_id, status)`,
	`CREATE INDEX IF NOT EXISTS idx_tasks_assignee ON tasks(assignee_id, status)`,
	`CREATE INDEX IF NOT EXISTS idx_sessions_agent ON sessions(agent_id, started_at)`,
	`CREATE INDEX IF NOT EXISTS idx_sessions_task ON sessions(task_id)`,
	`CREATE INDEX IF NOT EXISTS idx_human_requests_team ON human_requests(team_id, status)`,
	`CREATE INDEX IF NOT EXISTS idx_reviews_task ON reviews(task_id, attempt)`,
	`CREATE INDEX IF NOT EXISTS idx_merge_jobs_status ON merge_jobs(status, created_at)`,
}

// initSchema creates the tables and indexes if they don't exist.
func (r *Repository) initSchema() error {
	schema := sqliteSchema
	if dialect.IsPostgres(r.pool.Writer().DriverName()) {
		schema = postgresSchema
	}
	if _, err := r.pool.Writer().Exec(schema); err != nil {
		return err
	}
	for _, idx := range schemaIndexes {
		if _, err := r.pool.Writer().Exec(idx); err != nil {
			return err
		}
	}
	return nil
}
