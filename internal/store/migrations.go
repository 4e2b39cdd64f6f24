package store

// migration holds a single schema migration with its target version and SQL.
type migration struct {
	version int
	sql     string
}

// migrations is the ordered list of schema migrations.
// Each migration's version must be sequential starting from 1.
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS providers (
	id        TEXT PRIMARY KEY,
	name      TEXT NOT NULL,
	type      TEXT NOT NULL CHECK(type IN ('transit', 'backbone', 'transport', 'peering', 'facility', 'multi')),
	email_esc TEXT NOT NULL DEFAULT '',
	UNIQUE(name, type)
);

CREATE TABLE IF NOT EXISTS circuits (
	id           TEXT PRIMARY KEY,
	provider_cid TEXT NOT NULL UNIQUE,
	a_side       TEXT NOT NULL DEFAULT '',
	z_side       TEXT NOT NULL DEFAULT '',
	provider_id  TEXT NOT NULL REFERENCES providers(id)
);

CREATE TABLE IF NOT EXISTS maintenances (
	id                      TEXT PRIMARY KEY,
	provider_id             TEXT NOT NULL REFERENCES providers(id),
	provider_maintenance_id TEXT NOT NULL,
	start_time              TEXT NOT NULL,
	end_time                TEXT NOT NULL,
	timezone                TEXT NOT NULL DEFAULT 'UTC',
	location                TEXT NOT NULL DEFAULT '',
	reason                  TEXT NOT NULL DEFAULT '',
	received_dt             DATETIME NOT NULL,
	started                 INTEGER NOT NULL DEFAULT 0 CHECK(started IN (0, 1)),
	ended                   INTEGER NOT NULL DEFAULT 0 CHECK(ended IN (0, 1)),
	cancelled               INTEGER NOT NULL DEFAULT 0 CHECK(cancelled IN (0, 1)),
	rescheduled             INTEGER NOT NULL DEFAULT 0 CHECK(rescheduled IN (0, 1)),
	rescheduled_id          TEXT REFERENCES maintenances(id)
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_maintenances_active_ticket
	ON maintenances(provider_id, provider_maintenance_id) WHERE rescheduled = 0;
CREATE INDEX IF NOT EXISTS idx_maintenances_ticket ON maintenances(provider_maintenance_id);
CREATE INDEX IF NOT EXISTS idx_maintenances_received ON maintenances(received_dt);

CREATE TABLE IF NOT EXISTS maint_circuits (
	id         TEXT PRIMARY KEY,
	maint_id   TEXT NOT NULL REFERENCES maintenances(id) ON DELETE CASCADE,
	circuit_id TEXT NOT NULL REFERENCES circuits(id) ON DELETE CASCADE,
	impact     TEXT NOT NULL DEFAULT '',
	date       TEXT NOT NULL,
	UNIQUE(maint_id, circuit_id, date)
);

CREATE INDEX IF NOT EXISTS idx_maint_circuits_date ON maint_circuits(date);
CREATE INDEX IF NOT EXISTS idx_maint_circuits_circuit ON maint_circuits(circuit_id);

CREATE TABLE IF NOT EXISTS maint_updates (
	id             TEXT PRIMARY KEY,
	maintenance_id TEXT NOT NULL REFERENCES maintenances(id) ON DELETE CASCADE,
	comment        TEXT NOT NULL,
	updated        DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_maint_updates_maintenance ON maint_updates(maintenance_id, updated);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
}
