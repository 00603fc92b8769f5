package sqlite

import "database/sql"

// schema sets up the ledger tables. Rows are only ever inserted; the single
// permitted update is a pending subscription event's status transition.
// distribution_sources.source_event_id is the primary key, so an event can
// belong to at most one distribution.
const schema = `
CREATE TABLE IF NOT EXISTS subscription_events (
    id TEXT PRIMARY KEY,
    payment_reference TEXT NOT NULL UNIQUE,
    subscriber_id TEXT NOT NULL,
    amount_minor INTEGER NOT NULL CHECK (amount_minor > 0 AND amount_minor <= 1000000000000000),
    currency TEXT NOT NULL,
    status TEXT NOT NULL CHECK (status IN ('pending', 'settled', 'failed')),
    created_at INTEGER NOT NULL,
    resolved_at INTEGER
);

CREATE TABLE IF NOT EXISTS distribution_events (
    id TEXT PRIMARY KEY,
    total_minor INTEGER NOT NULL,
    currency TEXT NOT NULL,
    created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS distribution_sources (
    source_event_id TEXT PRIMARY KEY,
    distribution_id TEXT NOT NULL,
    FOREIGN KEY (source_event_id) REFERENCES subscription_events(id),
    FOREIGN KEY (distribution_id) REFERENCES distribution_events(id)
);

CREATE TABLE IF NOT EXISTS distribution_allocations (
    distribution_id TEXT NOT NULL,
    account TEXT NOT NULL,
    amount_minor INTEGER NOT NULL CHECK (amount_minor >= 0),
    PRIMARY KEY (distribution_id, account),
    FOREIGN KEY (distribution_id) REFERENCES distribution_events(id)
);

CREATE INDEX IF NOT EXISTS idx_subscription_events_status ON subscription_events(status, resolved_at);
CREATE INDEX IF NOT EXISTS idx_distribution_sources_distribution_id ON distribution_sources(distribution_id);
CREATE INDEX IF NOT EXISTS idx_distribution_allocations_account ON distribution_allocations(account);
CREATE INDEX IF NOT EXISTS idx_distribution_events_created_at ON distribution_events(created_at);
`

// runMigrations executes the schema setup.
func runMigrations(db *sql.DB) error {
	_, err := db.Exec(schema)
	return err
}
