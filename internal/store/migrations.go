package store

// migration holds a single schema migration with its target version and SQL.
type migration struct {
	version int
	sql     string
}

// migrations is the ordered list of schema migrations per dialect.
// Each migration's version must be sequential starting from 1, and both
// dialects must carry the same versions.
var migrations = map[string][]migration{
	dialectSQLite: {
		{
			version: 1,
			sql: `
CREATE TABLE IF NOT EXISTS checklists (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id    TEXT NOT NULL,
	name       TEXT NOT NULL DEFAULT '',
	role       TEXT NOT NULL DEFAULT '',
	position   INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS checklist_folders (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	checklist_id INTEGER NOT NULL REFERENCES checklists(id) ON DELETE CASCADE,
	name         TEXT NOT NULL DEFAULT '',
	sort_order   INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS checklist_items (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	checklist_id INTEGER NOT NULL REFERENCES checklists(id) ON DELETE CASCADE,
	folder_id    INTEGER REFERENCES checklist_folders(id) ON DELETE SET NULL,
	text         TEXT NOT NULL DEFAULT '',
	url          TEXT,
	sort_order   INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS checklist_completions (
	user_id         TEXT NOT NULL,
	checklist_id    INTEGER NOT NULL,
	item_id         INTEGER NOT NULL,
	completion_date TEXT NOT NULL,
	completed_at    DATETIME NOT NULL,
	UNIQUE(checklist_id, item_id, completion_date)
);

CREATE TABLE IF NOT EXISTS checklist_backups (
	id              TEXT PRIMARY KEY,
	user_id         TEXT NOT NULL,
	created_at      DATETIME NOT NULL,
	checklist_count INTEGER NOT NULL DEFAULT 0,
	item_count      INTEGER NOT NULL DEFAULT 0,
	snapshot        TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_checklists_user ON checklists(user_id, position);
CREATE INDEX IF NOT EXISTS idx_folders_checklist ON checklist_folders(checklist_id);
CREATE INDEX IF NOT EXISTS idx_items_checklist ON checklist_items(checklist_id);
CREATE INDEX IF NOT EXISTS idx_completions_user_date ON checklist_completions(user_id, completion_date);
CREATE INDEX IF NOT EXISTS idx_checklist_backups_user ON checklist_backups(user_id, created_at);

INSERT INTO schema_version (version) VALUES (1);
`,
		},
		{
			version: 2,
			sql: `
CREATE TABLE IF NOT EXISTS documents (
	type       TEXT NOT NULL,
	user_id    TEXT NOT NULL,
	data       TEXT NOT NULL,
	updated_at DATETIME NOT NULL,
	PRIMARY KEY (type, user_id)
);

CREATE TABLE IF NOT EXISTS document_backups (
	id         TEXT PRIMARY KEY,
	type       TEXT NOT NULL,
	user_id    TEXT NOT NULL,
	data       TEXT NOT NULL,
	created_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS lab_entries (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id      TEXT NOT NULL,
	patient      TEXT NOT NULL DEFAULT '',
	test         TEXT NOT NULL,
	value        TEXT NOT NULL DEFAULT '',
	unit         TEXT NOT NULL DEFAULT '',
	collected_on TEXT NOT NULL DEFAULT '',
	notes        TEXT NOT NULL DEFAULT '',
	sort_order   INTEGER NOT NULL DEFAULT 0,
	created_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_document_backups_owner ON document_backups(type, user_id, created_at);
CREATE INDEX IF NOT EXISTS idx_lab_entries_user ON lab_entries(user_id, sort_order);

INSERT INTO schema_version (version) VALUES (2);
`,
		},
	},
	dialectPostgres: {
		{
			version: 1,
			sql: `
CREATE TABLE IF NOT EXISTS checklists (
	id         BIGSERIAL PRIMARY KEY,
	user_id    TEXT NOT NULL,
	name       TEXT NOT NULL DEFAULT '',
	role       TEXT NOT NULL DEFAULT '',
	position   INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS checklist_folders (
	id           BIGSERIAL PRIMARY KEY,
	checklist_id BIGINT NOT NULL REFERENCES checklists(id) ON DELETE CASCADE,
	name         TEXT NOT NULL DEFAULT '',
	sort_order   INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS checklist_items (
	id           BIGSERIAL PRIMARY KEY,
	checklist_id BIGINT NOT NULL REFERENCES checklists(id) ON DELETE CASCADE,
	folder_id    BIGINT REFERENCES checklist_folders(id) ON DELETE SET NULL,
	text         TEXT NOT NULL DEFAULT '',
	url          TEXT,
	sort_order   INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS checklist_completions (
	user_id         TEXT NOT NULL,
	checklist_id    BIGINT NOT NULL,
	item_id         BIGINT NOT NULL,
	completion_date TEXT NOT NULL,
	completed_at    TIMESTAMPTZ NOT NULL,
	UNIQUE(checklist_id, item_id, completion_date)
);

CREATE TABLE IF NOT EXISTS checklist_backups (
	id              TEXT PRIMARY KEY,
	user_id         TEXT NOT NULL,
	created_at      TIMESTAMPTZ NOT NULL,
	checklist_count INTEGER NOT NULL DEFAULT 0,
	item_count      INTEGER NOT NULL DEFAULT 0,
	snapshot        TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_checklists_user ON checklists(user_id, position);
CREATE INDEX IF NOT EXISTS idx_folders_checklist ON checklist_folders(checklist_id);
CREATE INDEX IF NOT EXISTS idx_items_checklist ON checklist_items(checklist_id);
CREATE INDEX IF NOT EXISTS idx_completions_user_date ON checklist_completions(user_id, completion_date);
CREATE INDEX IF NOT EXISTS idx_checklist_backups_user ON checklist_backups(user_id, created_at);

INSERT INTO schema_version (version) VALUES (1);
`,
		},
		{
			version: 2,
			sql: `
CREATE TABLE IF NOT EXISTS documents (
	type       TEXT NOT NULL,
	user_id    TEXT NOT NULL,
	data       TEXT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (type, user_id)
);

CREATE TABLE IF NOT EXISTS document_backups (
	id         TEXT PRIMARY KEY,
	type       TEXT NOT NULL,
	user_id    TEXT NOT NULL,
	data       TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS lab_entries (
	id           BIGSERIAL PRIMARY KEY,
	user_id      TEXT NOT NULL,
	patient      TEXT NOT NULL DEFAULT '',
	test         TEXT NOT NULL,
	value        TEXT NOT NULL DEFAULT '',
	unit         TEXT NOT NULL DEFAULT '',
	collected_on TEXT NOT NULL DEFAULT '',
	notes        TEXT NOT NULL DEFAULT '',
	sort_order   INTEGER NOT NULL DEFAULT 0,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_document_backups_owner ON document_backups(type, user_id, created_at);
CREATE INDEX IF NOT EXISTS idx_lab_entries_user ON lab_entries(user_id, sort_order);

INSERT INTO schema_version (version) VALUES (2);
`,
		},
	},
}
