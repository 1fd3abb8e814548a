package store

const schema = `
CREATE TABLE IF NOT EXISTS releases (
	id          TEXT PRIMARY KEY,
	agent_type  TEXT NOT NULL,
	version     TEXT NOT NULL,
	labels      TEXT NOT NULL,
	url         TEXT NOT NULL,
	exe         TEXT NOT NULL,
	created_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_releases_type_version ON releases(agent_type, version);

CREATE TABLE IF NOT EXISTS installs (
	id             TEXT PRIMARY KEY,
	tenant_id      TEXT NOT NULL,
	release_id     TEXT NOT NULL,
	selector       TEXT NOT NULL,
	selector_size  INTEGER NOT NULL,
	method         TEXT NOT NULL,
	created_at     INTEGER NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_installs_selector ON installs(tenant_id, release_id, selector);
CREATE INDEX IF NOT EXISTS idx_installs_release ON installs(release_id);
CREATE INDEX IF NOT EXISTS idx_installs_universal ON installs(tenant_id, selector_size);

CREATE TABLE IF NOT EXISTS install_labels (
	install_id   TEXT NOT NULL,
	tenant_id    TEXT NOT NULL,
	label_key    TEXT NOT NULL,
	label_value  TEXT NOT NULL,
	PRIMARY KEY (install_id, label_key)
);
CREATE INDEX IF NOT EXISTS idx_install_labels_pair ON install_labels(tenant_id, label_key, label_value);

CREATE TABLE IF NOT EXISTS bindings (
	id           TEXT PRIMARY KEY,
	tenant_id    TEXT NOT NULL,
	resource_id  TEXT NOT NULL,
	agent_type   TEXT NOT NULL,
	install_id   TEXT NOT NULL,
	created_at   INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_bindings_key ON bindings(tenant_id, resource_id, agent_type);
CREATE INDEX IF NOT EXISTS idx_bindings_install ON bindings(install_id);

CREATE TABLE IF NOT EXISTS outbox (
	seq           INTEGER PRIMARY KEY AUTOINCREMENT,
	tenant_id     TEXT NOT NULL,
	resource_id   TEXT NOT NULL,
	agent_type    TEXT NOT NULL,
	op            TEXT NOT NULL,
	install_id    TEXT NOT NULL DEFAULT '',
	created_at    INTEGER NOT NULL,
	delivered_at  INTEGER,
	attempts      INTEGER NOT NULL DEFAULT 0,
	last_error    TEXT
);
CREATE INDEX IF NOT EXISTS idx_outbox_pending ON outbox(delivered_at, seq);
`
