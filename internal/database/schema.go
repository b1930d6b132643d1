package database

import (
	"context"
	"database/sql"
	"fmt"
)

// schema mirrors the constraints the services rely on: uniqueness of
// (company_id, code) and (transaction_id, line_number), restrict on account
// references, set-null on partner and user references, cascade from a
// transaction to its lines.
const schema = `
CREATE TABLE IF NOT EXISTS companies (
	id          UUID PRIMARY KEY,
	name        VARCHAR(200) NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL,
	updated_at  TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS users (
	id             VARCHAR(450) PRIMARY KEY,
	company_id     UUID NOT NULL REFERENCES companies (id) ON DELETE RESTRICT,
	email          VARCHAR(256) NOT NULL,
	password_hash  TEXT NOT NULL,
	created_at     TIMESTAMPTZ NOT NULL,
	updated_at     TIMESTAMPTZ NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS ix_users_email ON users (email);
CREATE INDEX IF NOT EXISTS ix_users_company_id ON users (company_id);

CREATE TABLE IF NOT EXISTS accounts (
	id                 UUID PRIMARY KEY,
	company_id         UUID NOT NULL REFERENCES companies (id) ON DELETE RESTRICT,
	code               VARCHAR(50) NOT NULL,
	name               VARCHAR(200) NOT NULL,
	parent_account_id  UUID REFERENCES accounts (id) ON DELETE RESTRICT,
	created_at         TIMESTAMPTZ NOT NULL,
	updated_at         TIMESTAMPTZ NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS ix_accounts_company_id_code ON accounts (company_id, code);
CREATE INDEX IF NOT EXISTS ix_accounts_parent_account_id ON accounts (parent_account_id);

CREATE TABLE IF NOT EXISTS partners (
	id            UUID PRIMARY KEY,
	company_id    UUID NOT NULL REFERENCES companies (id) ON DELETE RESTRICT,
	partner_type  SMALLINT NOT NULL CONSTRAINT ck_partners_partner_type CHECK (partner_type IN (1, 2)),
	name          VARCHAR(200) NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL,
	updated_at    TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS ix_partners_company_id_name ON partners (company_id, name);

CREATE TABLE IF NOT EXISTS transactions (
	id                  BIGSERIAL PRIMARY KEY,
	company_id          UUID NOT NULL REFERENCES companies (id) ON DELETE RESTRICT,
	transaction_date    DATE NOT NULL,
	description         VARCHAR(500),
	created_by_user_id  VARCHAR(450) REFERENCES users (id) ON DELETE SET NULL,
	created_at          TIMESTAMPTZ NOT NULL,
	updated_at          TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS ix_transactions_company_id_transaction_date ON transactions (company_id, transaction_date, id);

CREATE TABLE IF NOT EXISTS entry_lines (
	id              UUID PRIMARY KEY,
	transaction_id  BIGINT NOT NULL REFERENCES transactions (id) ON DELETE CASCADE,
	line_number     INTEGER NOT NULL CONSTRAINT ck_entry_lines_line_number_positive CHECK (line_number > 0),
	account_id      UUID NOT NULL REFERENCES accounts (id) ON DELETE RESTRICT,
	partner_id      UUID REFERENCES partners (id) ON DELETE SET NULL,
	side            SMALLINT NOT NULL CONSTRAINT ck_entry_lines_side CHECK (side IN (1, 2)),
	amount          NUMERIC(18, 2) NOT NULL CONSTRAINT ck_entry_lines_amount_positive CHECK (amount > 0),
	memo            VARCHAR(1000),
	created_at      TIMESTAMPTZ NOT NULL,
	updated_at      TIMESTAMPTZ NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS ix_entry_lines_transaction_id_line_number ON entry_lines (transaction_id, line_number);
CREATE INDEX IF NOT EXISTS ix_entry_lines_account_id ON entry_lines (account_id);
CREATE INDEX IF NOT EXISTS ix_entry_lines_partner_id ON entry_lines (partner_id);
`

// EnsureSchema creates the ledger tables when they are missing.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("error applying schema: %w", err)
	}
	return nil
}
