package repository

// Schema definitions for the Kite audit database.
// Compatible with both SQLite and PostgreSQL.

const schemaComplaints = `
CREATE TABLE IF NOT EXISTS complaints (
    complaint_id TEXT PRIMARY KEY,
    order_id TEXT NOT NULL,
    customer_id TEXT NOT NULL,
    timestamp TIMESTAMP NOT NULL,
    decision TEXT NOT NULL,
    confidence REAL NOT NULL,
    source TEXT NOT NULL,
    rule_id TEXT,
    severity TEXT NOT NULL,
    categories TEXT NOT NULL,
    root_cause TEXT,
    sentiment TEXT,
    fraud_risk TEXT,
    fraud_score INTEGER NOT NULL DEFAULT 0,
    order_status TEXT,
    order_value REAL,
    email_sent INTEGER NOT NULL DEFAULT 0,
    response_json TEXT NOT NULL,
    case_json TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_complaints_customer ON complaints(customer_id);
CREATE INDEX IF NOT EXISTS idx_complaints_timestamp ON complaints(timestamp);
CREATE INDEX IF NOT EXISTS idx_complaints_decision ON complaints(decision);
CREATE INDEX IF NOT EXISTS idx_complaints_severity ON complaints(severity);
`

const schemaCustomers = `
CREATE TABLE IF NOT EXISTS customers (
    customer_id TEXT PRIMARY KEY,
    first_seen TIMESTAMP NOT NULL,
    last_seen TIMESTAMP NOT NULL,
    total_complaints INTEGER NOT NULL DEFAULT 0,
    total_refunds INTEGER NOT NULL DEFAULT 0,
    risk_tier TEXT NOT NULL DEFAULT 'normal'
);

CREATE INDEX IF NOT EXISTS idx_customers_last_seen ON customers(last_seen);
`

const schemaFeedback = `
CREATE TABLE IF NOT EXISTS feedback (
    id TEXT PRIMARY KEY,
    complaint_id TEXT NOT NULL,
    original_decision TEXT NOT NULL,
    corrected_decision TEXT NOT NULL,
    reason TEXT,
    submitted_by TEXT,
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_feedback_complaint ON feedback(complaint_id);
`

const schemaRules = `
CREATE TABLE IF NOT EXISTS rules (
    id TEXT PRIMARY KEY,
    position INTEGER NOT NULL DEFAULT 0,
    type TEXT,
    conditions TEXT,
    expression TEXT,
    decision TEXT NOT NULL,
    confidence REAL NOT NULL DEFAULT 0,
    reason TEXT,
    category TEXT,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_rules_position ON rules(position);
`

// AllSchemas returns all schema statements in order.
func AllSchemas() []string {
	return []string{
		schemaComplaints,
		schemaCustomers,
		schemaFeedback,
		schemaRules,
	}
}
