// Package repository provides data persistence implementations.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/opensource-delivery/kite/internal/domain"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrInvalidInput = errors.New("invalid input")
)

// SQLRepository implements domain.Repository using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLRepository struct {
	db     *sql.DB
	driver string
}

// New creates a new repository based on configuration.
func New(cfg domain.RepositoryConfig) (domain.Repository, error) {
	var db *sql.DB
	var err error

	switch cfg.Driver {
	case "sqlite":
		db, err = openSQLite(cfg)
	case "postgres":
		db, err = openPostgres(cfg)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	repo := &SQLRepository{
		db:     db,
		driver: cfg.Driver,
	}

	// Run migrations
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repo, nil
}

func (r *SQLRepository) migrate() error {
	for _, schema := range AllSchemas() {
		if _, err := r.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

// LogComplaint stores a classified complaint and updates the customer
// counters in a single transaction.
func (r *SQLRepository) LogComplaint(ctx context.Context, resp *domain.Response, c *domain.Case) error {
	if resp == nil || c == nil {
		return fmt.Errorf("%w: response and case are required", ErrInvalidInput)
	}
	if resp.ComplaintID == "" {
		return fmt.Errorf("%w: complaint id is required", ErrInvalidInput)
	}

	responseJSON, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("failed to encode response: %w", err)
	}
	caseJSON, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to encode case: %w", err)
	}
	categories, _ := json.Marshal(resp.Categories)

	emailSent := 0
	if resp.EmailSent {
		emailSent = 1
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `
		INSERT INTO complaints (
			complaint_id, order_id, customer_id, timestamp,
			decision, confidence, source, rule_id,
			severity, categories, root_cause, sentiment,
			fraud_risk, fraud_score, order_status, order_value,
			email_sent, response_json, case_json
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = tx.ExecContext(ctx, r.rebind(query),
		resp.ComplaintID, resp.OrderID, c.CustomerID, resp.Timestamp,
		resp.Decision, resp.Confidence, resp.Source, resp.RuleID,
		resp.Severity, string(categories), resp.RootCause, resp.Sentiment,
		resp.FraudRisk, resp.FraudScore, c.OrderStatus, c.OrderValue,
		emailSent, string(responseJSON), string(caseJSON),
	)
	if err != nil {
		return err
	}

	// Anonymous submissions carry no durable identity to track.
	if c.CustomerID != "" && c.CustomerID != domain.AnonymousCustomerID {
		refundDelta := 0
		if resp.Decision == domain.DecisionRefund {
			refundDelta = 1
		}
		tier := resp.CustomerHistory.RiskTier
		if tier == "" {
			tier = domain.TierNormal
		}

		upsert := `
			INSERT INTO customers (customer_id, first_seen, last_seen, total_complaints, total_refunds, risk_tier)
			VALUES (?, ?, ?, 1, ?, ?)
			ON CONFLICT (customer_id) DO UPDATE SET
				last_seen = excluded.last_seen,
				total_complaints = customers.total_complaints + 1,
				total_refunds = customers.total_refunds + excluded.total_refunds,
				risk_tier = excluded.risk_tier
		`
		if _, err := tx.ExecContext(ctx, r.rebind(upsert),
			c.CustomerID, resp.Timestamp, resp.Timestamp, refundDelta, tier,
		); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// GetComplaint retrieves a stored classification by complaint ID.
func (r *SQLRepository) GetComplaint(ctx context.Context, complaintID string) (*domain.Response, error) {
	if complaintID == "" {
		return nil, fmt.Errorf("%w: complaint id is required", ErrInvalidInput)
	}

	query := `SELECT response_json FROM complaints WHERE complaint_id = ?`

	var raw string
	err := r.db.QueryRowContext(ctx, r.rebind(query), complaintID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var resp domain.Response
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		return nil, fmt.Errorf("failed to parse stored response: %w", err)
	}
	return &resp, nil
}

// ListComplaints returns a filtered page of the audit log, newest first,
// along with the total match count.
func (r *SQLRepository) ListComplaints(ctx context.Context, filter domain.ComplaintFilter) ([]*domain.ComplaintRecord, int, error) {
	where := " WHERE 1=1"
	var args []interface{}

	if filter.CustomerID != "" {
		where += " AND customer_id = ?"
		args = append(args, filter.CustomerID)
	}
	if filter.Decision != "" {
		where += " AND decision = ?"
		args = append(args, filter.Decision)
	}
	if filter.Severity != "" {
		where += " AND severity = ?"
		args = append(args, filter.Severity)
	}
	if !filter.Since.IsZero() {
		where += " AND timestamp >= ?"
		args = append(args, filter.Since)
	}

	var total int
	countQuery := "SELECT COUNT(*) FROM complaints" + where
	if err := r.db.QueryRowContext(ctx, r.rebind(countQuery), args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	if limit > 500 {
		limit = 500
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := "SELECT response_json, case_json FROM complaints" + where +
		" ORDER BY timestamp DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, r.rebind(query), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var records []*domain.ComplaintRecord
	for rows.Next() {
		var responseJSON, caseJSON string
		if err := rows.Scan(&responseJSON, &caseJSON); err != nil {
			return nil, 0, err
		}

		record := &domain.ComplaintRecord{
			Response: &domain.Response{},
			Case:     &domain.Case{},
		}
		if err := json.Unmarshal([]byte(responseJSON), record.Response); err != nil {
			return nil, 0, fmt.Errorf("failed to parse stored response: %w", err)
		}
		if err := json.Unmarshal([]byte(caseJSON), record.Case); err != nil {
			return nil, 0, fmt.Errorf("failed to parse stored case: %w", err)
		}
		records = append(records, record)
	}

	return records, total, rows.Err()
}

// HistorySnapshot reads the abuse-scoring inputs for a customer.
func (r *SQLRepository) HistorySnapshot(ctx context.Context, customerID string) (*domain.HistorySnapshot, error) {
	if customerID == "" {
		return nil, fmt.Errorf("%w: customer id is required", ErrInvalidInput)
	}

	now := time.Now().UTC()
	query := `
		SELECT COUNT(*),
			   COALESCE(SUM(CASE WHEN decision = 'refund' THEN 1 ELSE 0 END), 0),
			   COALESCE(SUM(CASE WHEN timestamp >= ? THEN 1 ELSE 0 END), 0),
			   COALESCE(SUM(CASE WHEN timestamp >= ? THEN 1 ELSE 0 END), 0)
		FROM complaints
		WHERE customer_id = ?
	`

	var snapshot domain.HistorySnapshot
	err := r.db.QueryRowContext(ctx, r.rebind(query),
		now.AddDate(0, 0, -30), now.Add(-24*time.Hour), customerID,
	).Scan(
		&snapshot.TotalComplaints, &snapshot.TotalRefunds,
		&snapshot.Complaints30d, &snapshot.Complaints24h,
	)
	if err != nil {
		return nil, err
	}

	if snapshot.TotalComplaints > 0 {
		snapshot.RefundRate = float64(snapshot.TotalRefunds) / float64(snapshot.TotalComplaints)
	}

	var firstSeen sql.NullTime
	err = r.db.QueryRowContext(ctx, r.rebind(`SELECT first_seen FROM customers WHERE customer_id = ?`), customerID).Scan(&firstSeen)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if firstSeen.Valid {
		snapshot.FirstSeen = firstSeen.Time.UTC().Format(time.RFC3339)
		snapshot.AccountAgeDays = int(now.Sub(firstSeen.Time) / (24 * time.Hour))
	}

	return &snapshot, nil
}

// CustomerSummary reads the raw customer counters. Derived fields such as
// lifetime value and risk tier are computed by the history profiler.
func (r *SQLRepository) CustomerSummary(ctx context.Context, customerID string) (*domain.CustomerSummary, error) {
	if customerID == "" {
		return nil, fmt.Errorf("%w: customer id is required", ErrInvalidInput)
	}

	query := `
		SELECT COUNT(*),
			   COALESCE(SUM(CASE WHEN timestamp >= ? THEN 1 ELSE 0 END), 0),
			   COALESCE(SUM(CASE WHEN decision = 'refund' THEN 1 ELSE 0 END), 0)
		FROM complaints
		WHERE customer_id = ?
	`

	summary := domain.CustomerSummary{CustomerID: customerID}
	var refunds int
	err := r.db.QueryRowContext(ctx, r.rebind(query),
		time.Now().UTC().AddDate(0, 0, -30), customerID,
	).Scan(&summary.TotalComplaints, &summary.RecentComplaints, &refunds)
	if err != nil {
		return nil, err
	}

	if summary.TotalComplaints > 0 {
		summary.RefundRate = float64(refunds) / float64(summary.TotalComplaints)
	}
	return &summary, nil
}

// TopComplainers lists the customers with the most complaints in the window.
func (r *SQLRepository) TopComplainers(ctx context.Context, days int, limit int) ([]*domain.TopComplainer, error) {
	if days <= 0 {
		days = 30
	}
	if limit <= 0 {
		limit = 10
	}

	query := `
		SELECT customer_id,
			   COUNT(*) AS complaints,
			   SUM(CASE WHEN decision = 'refund' THEN 1 ELSE 0 END) AS refunds,
			   SUM(CASE WHEN fraud_risk IN ('suspicious', 'high_risk') THEN 1 ELSE 0 END) AS fraud_flags
		FROM complaints
		WHERE timestamp >= ? AND customer_id != '' AND customer_id != ?
		GROUP BY customer_id
		ORDER BY complaints DESC
		LIMIT ?
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query),
		time.Now().UTC().AddDate(0, 0, -days), domain.AnonymousCustomerID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var top []*domain.TopComplainer
	for rows.Next() {
		var t domain.TopComplainer
		if err := rows.Scan(&t.CustomerID, &t.Complaints, &t.Refunds, &t.FraudFlags); err != nil {
			return nil, err
		}
		if t.Complaints > 0 {
			t.RefundRate = float64(t.Refunds) / float64(t.Complaints)
		}
		top = append(top, &t)
	}

	return top, rows.Err()
}

// SaveFeedback stores an agent correction.
func (r *SQLRepository) SaveFeedback(ctx context.Context, fb *domain.Feedback) error {
	if fb == nil || fb.ComplaintID == "" {
		return fmt.Errorf("%w: complaint id is required", ErrInvalidInput)
	}
	if fb.CorrectedDecision == "" {
		return fmt.Errorf("%w: corrected decision is required", ErrInvalidInput)
	}

	if fb.ID == "" {
		fb.ID = uuid.NewString()
	}
	if fb.CreatedAt.IsZero() {
		fb.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO feedback (id, complaint_id, original_decision, corrected_decision, reason, submitted_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		fb.ID, fb.ComplaintID, fb.OriginalDecision, fb.CorrectedDecision,
		fb.Reason, fb.SubmittedBy, fb.CreatedAt,
	)
	return err
}

// ListFeedback returns the most recent corrections.
func (r *SQLRepository) ListFeedback(ctx context.Context, limit int) ([]*domain.Feedback, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, complaint_id, original_decision, corrected_decision, reason, submitted_by, created_at
		FROM feedback
		ORDER BY created_at DESC
		LIMIT ?
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var feedback []*domain.Feedback
	for rows.Next() {
		var fb domain.Feedback
		if err := rows.Scan(
			&fb.ID, &fb.ComplaintID, &fb.OriginalDecision, &fb.CorrectedDecision,
			&fb.Reason, &fb.SubmittedBy, &fb.CreatedAt,
		); err != nil {
			return nil, err
		}
		feedback = append(feedback, &fb)
	}

	return feedback, rows.Err()
}

// SaveRule upserts a policy rule. New rules are appended to the end of the
// evaluation order; updates keep their position.
func (r *SQLRepository) SaveRule(ctx context.Context, rule *domain.PolicyRule) error {
	if rule == nil || rule.ID == "" {
		return fmt.Errorf("%w: rule id is required", ErrInvalidInput)
	}
	if rule.Decision == "" {
		return fmt.Errorf("%w: rule decision is required", ErrInvalidInput)
	}

	conditions, _ := json.Marshal(rule.Conditions)
	now := time.Now().UTC()

	query := `
		INSERT INTO rules (id, position, type, conditions, expression, decision, confidence, reason, category, created_at, updated_at)
		VALUES (?, (SELECT COALESCE(MAX(position), 0) + 1 FROM rules), ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			type = excluded.type,
			conditions = excluded.conditions,
			expression = excluded.expression,
			decision = excluded.decision,
			confidence = excluded.confidence,
			reason = excluded.reason,
			category = excluded.category,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		rule.ID, rule.Type, string(conditions), rule.Expression,
		rule.Decision, rule.Confidence, rule.Reason, rule.Category,
		now, now,
	)
	return err
}

// ListRules returns all persisted rules in evaluation order.
func (r *SQLRepository) ListRules(ctx context.Context) ([]*domain.PolicyRule, error) {
	query := `
		SELECT id, type, conditions, expression, decision, confidence, reason, category
		FROM rules
		ORDER BY position
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []*domain.PolicyRule
	for rows.Next() {
		var rule domain.PolicyRule
		var conditions string

		if err := rows.Scan(
			&rule.ID, &rule.Type, &conditions, &rule.Expression,
			&rule.Decision, &rule.Confidence, &rule.Reason, &rule.Category,
		); err != nil {
			return nil, err
		}

		if conditions != "" && conditions != "null" {
			if err := json.Unmarshal([]byte(conditions), &rule.Conditions); err != nil {
				return nil, fmt.Errorf("failed to parse conditions for rule %s: %w", rule.ID, err)
			}
		}
		rules = append(rules, &rule)
	}

	return rules, rows.Err()
}

// OverviewStats aggregates the dashboard metrics for the trailing window.
func (r *SQLRepository) OverviewStats(ctx context.Context, days int) (*domain.OverviewStats, error) {
	if days <= 0 {
		days = 30
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -days)

	stats := &domain.OverviewStats{
		ByDecision: make(map[string]int),
		BySeverity: make(map[string]int),
		BySource:   make(map[string]int),
		DailyTrend: []domain.DailyTrendPoint{},
	}

	totalsQuery := `
		SELECT COUNT(*),
			   COALESCE(AVG(confidence), 0),
			   COALESCE(SUM(CASE WHEN fraud_risk IN ('suspicious', 'high_risk') THEN 1 ELSE 0 END), 0)
		FROM complaints
		WHERE timestamp >= ?
	`
	if err := r.db.QueryRowContext(ctx, r.rebind(totalsQuery), cutoff).Scan(
		&stats.TotalComplaints, &stats.AvgConfidence, &stats.FraudFlagged,
	); err != nil {
		return nil, err
	}

	groupBys := []struct {
		column string
		target map[string]int
	}{
		{"decision", stats.ByDecision},
		{"severity", stats.BySeverity},
		{"source", stats.BySource},
	}
	for _, g := range groupBys {
		query := fmt.Sprintf(
			"SELECT %s, COUNT(*) FROM complaints WHERE timestamp >= ? GROUP BY %s",
			g.column, g.column,
		)
		if err := r.scanCounts(ctx, query, cutoff, g.target); err != nil {
			return nil, err
		}
	}

	// substr over the text form of the timestamp yields the YYYY-MM-DD day
	// on both SQLite and PostgreSQL.
	trendQuery := `
		SELECT substr(CAST(timestamp AS TEXT), 1, 10) AS day, COUNT(*)
		FROM complaints
		WHERE timestamp >= ?
		GROUP BY day
		ORDER BY day
	`
	rows, err := r.db.QueryContext(ctx, r.rebind(trendQuery), cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var point domain.DailyTrendPoint
		if err := rows.Scan(&point.Day, &point.Count); err != nil {
			return nil, err
		}
		stats.DailyTrend = append(stats.DailyTrend, point)
	}

	return stats, rows.Err()
}

func (r *SQLRepository) scanCounts(ctx context.Context, query string, cutoff time.Time, target map[string]int) error {
	rows, err := r.db.QueryContext(ctx, r.rebind(query), cutoff)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		var count int
		if err := rows.Scan(&key, &count); err != nil {
			return err
		}
		target[key] = count
	}
	return rows.Err()
}

// RootCauseStats aggregates decisions per detected root cause.
func (r *SQLRepository) RootCauseStats(ctx context.Context, days int) ([]*domain.RootCauseStat, error) {
	if days <= 0 {
		days = 30
	}

	query := `
		SELECT COALESCE(root_cause, 'unknown'),
			   COUNT(*),
			   SUM(CASE WHEN decision = 'refund' THEN 1 ELSE 0 END),
			   COALESCE(AVG(fraud_score), 0)
		FROM complaints
		WHERE timestamp >= ?
		GROUP BY root_cause
		ORDER BY COUNT(*) DESC
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), time.Now().UTC().AddDate(0, 0, -days))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stats []*domain.RootCauseStat
	for rows.Next() {
		var s domain.RootCauseStat
		if err := rows.Scan(&s.RootCause, &s.Count, &s.Refunds, &s.AvgScore); err != nil {
			return nil, err
		}
		stats = append(stats, &s)
	}

	return stats, rows.Err()
}

// Ping checks database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL.
func (r *SQLRepository) rebind(query string) string {
	if r.driver != "postgres" {
		return query
	}

	// Convert ? to $1, $2, etc.
	var result []byte
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			result = append(result, '$')
			result = append(result, fmt.Sprintf("%d", n)...)
			n++
		} else {
			result = append(result, query[i])
		}
	}
	return string(result)
}
