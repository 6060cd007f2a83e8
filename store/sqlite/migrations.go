package sqlite

// migration is one versioned schema change.
type migration struct {
	Name    string
	Version string
	Up      string
}

// Migrations lists the journal schema in the order it is applied.
var Migrations = []migration{
	{
		Name:    "create_tariffmarket_transactions",
		Version: "20260301000001",
		Up: `
CREATE TABLE IF NOT EXISTS tariffmarket_transactions (
    seq            INTEGER PRIMARY KEY AUTOINCREMENT,
    id             TEXT NOT NULL UNIQUE,
    kind           TEXT NOT NULL,
    broker_id      TEXT NOT NULL,
    tariff_id      TEXT NOT NULL DEFAULT '',
    customer_id    TEXT NOT NULL DEFAULT '',
    customer_count INTEGER NOT NULL DEFAULT 0,
    kwh            REAL NOT NULL DEFAULT 0,
    charge         TEXT NOT NULL DEFAULT '0',
    regulation     INTEGER NOT NULL DEFAULT 0,
    timeslot       INTEGER NOT NULL DEFAULT 0,
    posted_at      TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_tariffmarket_tx_broker ON tariffmarket_transactions (broker_id, posted_at);
CREATE INDEX IF NOT EXISTS idx_tariffmarket_tx_tariff ON tariffmarket_transactions (tariff_id);
`,
	},
	{
		Name:    "create_tariffmarket_balancing_controls",
		Version: "20260301000002",
		Up: `
CREATE TABLE IF NOT EXISTS tariffmarket_balancing_controls (
    seq        INTEGER PRIMARY KEY AUTOINCREMENT,
    id         TEXT NOT NULL UNIQUE,
    broker_id  TEXT NOT NULL,
    tariff_id  TEXT NOT NULL,
    kwh        REAL NOT NULL DEFAULT 0,
    payment    REAL NOT NULL DEFAULT 0,
    timeslot   INTEGER NOT NULL DEFAULT 0,
    posted_at  TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_tariffmarket_ctl_broker ON tariffmarket_balancing_controls (broker_id, posted_at);
`,
	},
}
