package db

import "context"

// Schema is the full DDL for a fresh database, used by the `init-schema`
// CLI command. It is intentionally one static string rather than a
// migration chain — this service manages a single, append-only schema
// version and expects operators to run init-schema once against an empty
// database.
const Schema = `
CREATE TABLE IF NOT EXISTS entities (
	id               TEXT PRIMARY KEY,
	entity_type      TEXT NOT NULL,
	name             TEXT NOT NULL,
	parent_id        TEXT REFERENCES entities(id),
	active           BOOLEAN NOT NULL DEFAULT true,
	raw              JSONB,
	updated_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_entities_type ON entities(entity_type);
CREATE INDEX IF NOT EXISTS idx_entities_parent ON entities(parent_id);

CREATE TABLE IF NOT EXISTS export_groups (
	id               TEXT PRIMARY KEY,
	root_entity_id   TEXT NOT NULL REFERENCES entities(id),
	name             TEXT NOT NULL,
	kind             TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS finance_mirror (
	resource         TEXT NOT NULL,
	id               TEXT NOT NULL,
	raw              JSONB NOT NULL,
	updated_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (resource, id)
);

CREATE TABLE IF NOT EXISTS stock_balances (
	product_id       TEXT NOT NULL,
	store_id         TEXT NOT NULL,
	quantity         NUMERIC(18,4) NOT NULL,
	as_of            TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (product_id, store_id)
);

CREATE TABLE IF NOT EXISTS min_stock_levels (
	product_id       TEXT NOT NULL,
	store_id         TEXT NOT NULL,
	minimum_quantity NUMERIC(18,4) NOT NULL,
	PRIMARY KEY (product_id, store_id)
);

CREATE TABLE IF NOT EXISTS sync_log (
	id               BIGSERIAL PRIMARY KEY,
	entity_type      TEXT NOT NULL,
	started_at       TIMESTAMPTZ NOT NULL,
	finished_at      TIMESTAMPTZ,
	upserted         INTEGER NOT NULL DEFAULT 0,
	deleted          INTEGER NOT NULL DEFAULT 0,
	sanity_skipped   BOOLEAN NOT NULL DEFAULT false,
	error            TEXT
);
CREATE INDEX IF NOT EXISTS idx_sync_log_entity ON sync_log(entity_type, started_at DESC);

CREATE TABLE IF NOT EXISTS pending_writeoffs (
	id               TEXT PRIMARY KEY,
	document_uuid    TEXT NOT NULL,
	store_id         TEXT NOT NULL,
	account_id       TEXT NOT NULL,
	created_by       TEXT NOT NULL,
	reason           TEXT NOT NULL,
	status           TEXT NOT NULL,
	is_locked        BOOLEAN NOT NULL DEFAULT false,
	locked_by        TEXT,
	items            JSONB NOT NULL,
	total_amount     NUMERIC(18,4) NOT NULL,
	admin_message_ids JSONB,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);

-- writeoff_id names the pending_writeoffs row a history entry was recorded
-- against, but is not a foreign key: that row is deleted once the
-- write-off resolves (Writeoff.Approve/Reject), while writeoff_history is
-- a standing per-author audit log that must outlive it.
CREATE TABLE IF NOT EXISTS writeoff_history (
	id               TEXT PRIMARY KEY,
	writeoff_id      TEXT NOT NULL,
	actor            TEXT NOT NULL,
	action           TEXT NOT NULL,
	detail           JSONB,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_writeoff_history_actor ON writeoff_history(actor, created_at DESC);

CREATE TABLE IF NOT EXISTS invoice_templates (
	id               TEXT PRIMARY KEY,
	name             TEXT NOT NULL,
	supplier_id      TEXT NOT NULL,
	store_id         TEXT NOT NULL,
	items            JSONB NOT NULL,
	created_by       TEXT NOT NULL,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS product_requests (
	id               TEXT PRIMARY KEY,
	requested_by     TEXT NOT NULL,
	store_id         TEXT NOT NULL,
	product_name     TEXT NOT NULL,
	quantity         NUMERIC(18,4) NOT NULL,
	status           TEXT NOT NULL,
	resolved_by      TEXT,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	resolved_at      TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS ocr_documents (
	id               TEXT PRIMARY KEY,
	uploaded_by      TEXT NOT NULL,
	store_id         TEXT NOT NULL,
	raw_payload      JSONB NOT NULL,
	declared_total   NUMERIC(18,4),
	computed_total   NUMERIC(18,4),
	rate_unknown     BOOLEAN NOT NULL DEFAULT false,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS ocr_items (
	id               TEXT PRIMARY KEY,
	document_id      TEXT NOT NULL REFERENCES ocr_documents(id),
	product_name     TEXT NOT NULL,
	quantity         NUMERIC(18,4) NOT NULL,
	unit_price       NUMERIC(18,4) NOT NULL,
	vat_rate         NUMERIC(5,2),
	rate_unknown     BOOLEAN NOT NULL DEFAULT false
);

CREATE TABLE IF NOT EXISTS active_stoplist (
	product_id       TEXT NOT NULL,
	store_id         TEXT NOT NULL,
	reason           TEXT,
	since            TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (product_id, store_id)
);

CREATE TABLE IF NOT EXISTS stoplist_history (
	id               BIGSERIAL PRIMARY KEY,
	product_id       TEXT NOT NULL,
	store_id         TEXT NOT NULL,
	event            TEXT NOT NULL,
	occurred_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS stoplist_messages (
	id               TEXT PRIMARY KEY,
	store_id         TEXT NOT NULL,
	chat_id          BIGINT NOT NULL,
	message_id       BIGINT NOT NULL,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS stock_alert_messages (
	id               TEXT PRIMARY KEY,
	store_id         TEXT NOT NULL,
	chat_id          BIGINT NOT NULL,
	message_id       BIGINT NOT NULL,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS bot_admins (
	chat_id          BIGINT PRIMARY KEY,
	display_name     TEXT
);

CREATE TABLE IF NOT EXISTS request_receivers (
	chat_id          BIGINT PRIMARY KEY,
	display_name     TEXT
);

CREATE TABLE IF NOT EXISTS webhook_events (
	id               BIGSERIAL PRIMARY KEY,
	received_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	event_type       TEXT NOT NULL,
	payload          JSONB NOT NULL,
	processed_at     TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_webhook_events_type ON webhook_events(event_type, received_at DESC);

CREATE TABLE IF NOT EXISTS cloud_tokens (
	id               TEXT PRIMARY KEY,
	token            TEXT NOT NULL,
	expires_at       TIMESTAMPTZ,
	written_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS scheduler_runs (
	job_name         TEXT PRIMARY KEY,
	fired_at         TIMESTAMPTZ NOT NULL
);
`

// InitSchema applies Schema to the connected database. Safe to run
// repeatedly — every statement is IF NOT EXISTS.
func InitSchema(ctx context.Context, pg *PostgresDB) error {
	return pg.Exec(ctx, Schema)
}
