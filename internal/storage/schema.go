package storage

const schemaSQL = `
CREATE TABLE IF NOT EXISTS tenants (
    id TEXT PRIMARY KEY,
    runtime_status TEXT NOT NULL DEFAULT 'stopped',
    created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_tenants_status ON tenants(runtime_status);

CREATE TABLE IF NOT EXISTS directives (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    tenant_id TEXT NOT NULL REFERENCES tenants(id),
    amount REAL NOT NULL DEFAULT 0,
    buys_per_day INTEGER NOT NULL DEFAULT 0,
    risk_mix TEXT NOT NULL DEFAULT '',
    focus_areas TEXT NOT NULL DEFAULT '[]',
    paper_mode INTEGER NOT NULL DEFAULT 1,
    created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_directives_tenant ON directives(tenant_id, created_at);

CREATE TABLE IF NOT EXISTS runtime_state (
    tenant_id TEXT PRIMARY KEY REFERENCES tenants(id),
    day_bucket TEXT NOT NULL,
    runs_today INTEGER NOT NULL DEFAULT 0,
    trades_today INTEGER NOT NULL DEFAULT 0,
    last_run_at TEXT,
    last_scan_at TEXT,
    last_error TEXT NOT NULL DEFAULT '',
    last_error_at TEXT
);

CREATE TABLE IF NOT EXISTS trades (
    id TEXT PRIMARY KEY,
    tenant_id TEXT NOT NULL REFERENCES tenants(id),
    market_id TEXT NOT NULL,
    question TEXT NOT NULL DEFAULT '',
    side TEXT NOT NULL,
    shares INTEGER NOT NULL,
    price REAL NOT NULL,
    total_cost REAL NOT NULL,
    status TEXT NOT NULL,
    realized_pnl REAL,
    paper_trade INTEGER NOT NULL,
    rationale TEXT NOT NULL DEFAULT '',
    created_at TEXT NOT NULL,
    closed_at TEXT
);
CREATE INDEX IF NOT EXISTS idx_trades_tenant_created ON trades(tenant_id, created_at);
`
