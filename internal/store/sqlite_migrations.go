package store

import "database/sql"

// sqliteSchema mirrors the Supabase tables the service reads and writes.
// Timestamps are stored as unix nanoseconds so ordering is exact.
const sqliteSchema = `
CREATE TABLE IF NOT EXISTS profiles (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL UNIQUE,
    email TEXT NOT NULL,
    full_name TEXT NOT NULL,
    phone TEXT,
    date_of_birth TEXT,
    address TEXT,
    kyc_status TEXT DEFAULT 'not_started',
    kyc_completed_at INTEGER,
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS loans (
    id TEXT PRIMARY KEY,
    borrower_id TEXT NOT NULL,
    lender_id TEXT,
    amount REAL NOT NULL,
    interest_rate REAL NOT NULL,
    duration_months INTEGER NOT NULL,
    purpose TEXT NOT NULL,
    status TEXT DEFAULT 'pending',
    amount_repaid REAL,
    repayment_amount REAL,
    smart_contract_hash TEXT,
    created_at INTEGER NOT NULL,
    funded_at INTEGER,
    completed_at INTEGER
);

CREATE TABLE IF NOT EXISTS transactions (
    id TEXT PRIMARY KEY,
    loan_id TEXT NOT NULL,
    from_user_id TEXT NOT NULL,
    to_user_id TEXT NOT NULL,
    amount REAL NOT NULL,
    transaction_type TEXT NOT NULL,
    blockchain_hash TEXT NOT NULL,
    block_number INTEGER NOT NULL,
    gas_fee REAL,
    status TEXT,
    created_at INTEGER NOT NULL,
    FOREIGN KEY (loan_id) REFERENCES loans(id)
);

CREATE TABLE IF NOT EXISTS credit_scores (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL,
    score INTEGER NOT NULL CHECK (score BETWEEN 0 AND 1000),
    explanation TEXT,
    factors TEXT NOT NULL DEFAULT '[]',
    created_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_loans_borrower_id ON loans(borrower_id);
CREATE INDEX IF NOT EXISTS idx_transactions_from_user_id ON transactions(from_user_id);
CREATE INDEX IF NOT EXISTS idx_transactions_to_user_id ON transactions(to_user_id);
CREATE INDEX IF NOT EXISTS idx_credit_scores_user_created ON credit_scores(user_id, created_at);
`

func runSQLiteMigrations(db *sql.DB) error {
	_, err := db.Exec(sqliteSchema)
	return err
}
