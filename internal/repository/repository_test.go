package repository

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/opensource-delivery/kite/internal/domain"
)

func newTestRepo(t *testing.T) domain.Repository {
	t.Helper()

	tmpFile, err := os.CreateTemp("", "kite-test-*.db")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	tmpPath := tmpFile.Name()
	tmpFile.Close()
	t.Cleanup(func() { os.Remove(tmpPath) })

	repo, err := New(domain.RepositoryConfig{
		Driver:     "sqlite",
		SQLitePath: tmpPath,
	})
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	return repo
}

func sampleResponse(complaintID, customerID, decision string) (*domain.Response, *domain.Case) {
	now := time.Now().UTC()
	resp := &domain.Response{
		ComplaintID: complaintID,
		OrderID:     "ORD-" + complaintID,
		Timestamp:   now,
		Decision:    decision,
		Confidence:  0.9,
		Source:      domain.SourcePolicy,
		RuleID:      "rule-1",
		Severity:    domain.SeverityMedium,
		SLADeadline: now.Add(8 * time.Hour),
		SLAMinutes:  480,
		Categories:  []string{"late_delivery"},
		RootCause:   "logistics_delay",
		Sentiment:   domain.SentimentNegative,
		Explanation: "Order arrived late.",
		FraudRisk:   domain.FraudLabelNormal,
		FraudScore:  10,
		FraudFlags:  []domain.FraudFlag{},
	}
	c := &domain.Case{
		OrderID:       resp.OrderID,
		CustomerID:    customerID,
		ComplaintText: "my order was an hour late",
		OrderStatus:   "late_delivery",
		CourierRating: 4.5,
		OrderValue:    25,
	}
	return resp, c
}

func TestSQLiteRepository(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	t.Run("Ping", func(t *testing.T) {
		if err := repo.Ping(ctx); err != nil {
			t.Errorf("Ping failed: %v", err)
		}
	})

	t.Run("LogAndGetComplaint", func(t *testing.T) {
		resp, c := sampleResponse("CMP-001", "cust-1", domain.DecisionRefund)

		if err := repo.LogComplaint(ctx, resp, c); err != nil {
			t.Fatalf("LogComplaint failed: %v", err)
		}

		retrieved, err := repo.GetComplaint(ctx, "CMP-001")
		if err != nil {
			t.Fatalf("GetComplaint failed: %v", err)
		}

		if retrieved.ComplaintID != resp.ComplaintID {
			t.Errorf("expected ID %s, got %s", resp.ComplaintID, retrieved.ComplaintID)
		}
		if retrieved.Decision != domain.DecisionRefund {
			t.Errorf("expected refund, got %s", retrieved.Decision)
		}
		if retrieved.Explanation != resp.Explanation {
			t.Errorf("expected explanation preserved, got %q", retrieved.Explanation)
		}
	})

	t.Run("GetComplaintNotFound", func(t *testing.T) {
		_, err := repo.GetComplaint(ctx, "no-such-id")
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("InvalidInput", func(t *testing.T) {
		if err := repo.LogComplaint(ctx, nil, nil); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
		if _, err := repo.GetComplaint(ctx, ""); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("ListComplaintsFiltered", func(t *testing.T) {
		resp, c := sampleResponse("CMP-002", "cust-2", domain.DecisionDeny)
		if err := repo.LogComplaint(ctx, resp, c); err != nil {
			t.Fatalf("LogComplaint failed: %v", err)
		}

		records, total, err := repo.ListComplaints(ctx, domain.ComplaintFilter{Decision: domain.DecisionDeny})
		if err != nil {
			t.Fatalf("ListComplaints failed: %v", err)
		}
		if total != 1 || len(records) != 1 {
			t.Fatalf("expected 1 deny record, got total=%d len=%d", total, len(records))
		}
		if records[0].Case.CustomerID != "cust-2" {
			t.Errorf("expected case snapshot preserved, got %+v", records[0].Case)
		}

		_, total, err = repo.ListComplaints(ctx, domain.ComplaintFilter{})
		if err != nil {
			t.Fatalf("ListComplaints failed: %v", err)
		}
		if total < 2 {
			t.Errorf("expected at least 2 records unfiltered, got %d", total)
		}
	})

	t.Run("HistorySnapshot", func(t *testing.T) {
		for i, decision := range []string{domain.DecisionRefund, domain.DecisionRefund, domain.DecisionDeny} {
			resp, c := sampleResponse("CMP-H"+string(rune('0'+i)), "cust-hist", decision)
			if err := repo.LogComplaint(ctx, resp, c); err != nil {
				t.Fatalf("LogComplaint failed: %v", err)
			}
		}

		snapshot, err := repo.HistorySnapshot(ctx, "cust-hist")
		if err != nil {
			t.Fatalf("HistorySnapshot failed: %v", err)
		}

		if snapshot.TotalComplaints != 3 {
			t.Errorf("expected 3 complaints, got %d", snapshot.TotalComplaints)
		}
		if snapshot.TotalRefunds != 2 {
			t.Errorf("expected 2 refunds, got %d", snapshot.TotalRefunds)
		}
		if snapshot.Complaints30d != 3 || snapshot.Complaints24h != 3 {
			t.Errorf("expected all complaints in recent windows, got %+v", snapshot)
		}
		if snapshot.RefundRate < 0.66 || snapshot.RefundRate > 0.67 {
			t.Errorf("expected refund rate ~0.667, got %v", snapshot.RefundRate)
		}
		if snapshot.FirstSeen == "" {
			t.Error("expected first seen from customer record")
		}
		if snapshot.AccountAgeDays != 0 {
			t.Errorf("brand-new account should be 0 days old, got %d", snapshot.AccountAgeDays)
		}
	})

	t.Run("HistorySnapshotUnknownCustomer", func(t *testing.T) {
		snapshot, err := repo.HistorySnapshot(ctx, "never-seen")
		if err != nil {
			t.Fatalf("HistorySnapshot failed: %v", err)
		}
		if snapshot.TotalComplaints != 0 || snapshot.FirstSeen != "" {
			t.Errorf("expected zero snapshot, got %+v", snapshot)
		}
	})

	t.Run("CustomerSummary", func(t *testing.T) {
		summary, err := repo.CustomerSummary(ctx, "cust-hist")
		if err != nil {
			t.Fatalf("CustomerSummary failed: %v", err)
		}
		if summary.TotalComplaints != 3 || summary.RecentComplaints != 3 {
			t.Errorf("unexpected counts: %+v", summary)
		}
		if summary.RefundRate < 0.66 || summary.RefundRate > 0.67 {
			t.Errorf("expected raw refund rate ~0.667, got %v", summary.RefundRate)
		}
	})

	t.Run("AnonymousNotTracked", func(t *testing.T) {
		resp, c := sampleResponse("CMP-ANON", domain.AnonymousCustomerID, domain.DecisionEscalate)
		if err := repo.LogComplaint(ctx, resp, c); err != nil {
			t.Fatalf("LogComplaint failed: %v", err)
		}

		top, err := repo.TopComplainers(ctx, 30, 10)
		if err != nil {
			t.Fatalf("TopComplainers failed: %v", err)
		}
		for _, tc := range top {
			if tc.CustomerID == domain.AnonymousCustomerID {
				t.Error("anonymous must not appear on the leaderboard")
			}
		}
	})

	t.Run("TopComplainers", func(t *testing.T) {
		top, err := repo.TopComplainers(ctx, 30, 10)
		if err != nil {
			t.Fatalf("TopComplainers failed: %v", err)
		}
		if len(top) == 0 {
			t.Fatal("expected at least one complainer")
		}
		if top[0].CustomerID != "cust-hist" {
			t.Errorf("expected cust-hist on top, got %s", top[0].CustomerID)
		}
		if top[0].Complaints != 3 || top[0].Refunds != 2 {
			t.Errorf("unexpected counts: %+v", top[0])
		}
	})

	t.Run("Feedback", func(t *testing.T) {
		fb := &domain.Feedback{
			ComplaintID:       "CMP-001",
			OriginalDecision:  domain.DecisionRefund,
			CorrectedDecision: domain.DecisionDeny,
			Reason:            "photo shows successful handoff",
			SubmittedBy:       "agent-7",
		}
		if err := repo.SaveFeedback(ctx, fb); err != nil {
			t.Fatalf("SaveFeedback failed: %v", err)
		}
		if fb.ID == "" {
			t.Error("expected generated feedback id")
		}

		list, err := repo.ListFeedback(ctx, 10)
		if err != nil {
			t.Fatalf("ListFeedback failed: %v", err)
		}
		if len(list) != 1 || list[0].CorrectedDecision != domain.DecisionDeny {
			t.Errorf("unexpected feedback list: %+v", list)
		}
	})

	t.Run("FeedbackValidation", func(t *testing.T) {
		err := repo.SaveFeedback(ctx, &domain.Feedback{ComplaintID: "CMP-001"})
		if !errors.Is(err, ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput without corrected decision, got %v", err)
		}
	})

	t.Run("RulesRoundTrip", func(t *testing.T) {
		rules := []*domain.PolicyRule{
			{
				ID:         "missing-with-photo",
				Conditions: map[string]interface{}{"order_status": "missing_delivery"},
				Decision:   domain.DecisionRefund,
				Confidence: 0.95,
			},
			{
				ID:         "serial-refunder",
				Conditions: map[string]interface{}{"refund_history_30d": map[string]interface{}{"op": "gte", "value": 3.0}},
				Decision:   domain.DecisionDeny,
			},
		}
		for _, rule := range rules {
			if err := repo.SaveRule(ctx, rule); err != nil {
				t.Fatalf("SaveRule failed: %v", err)
			}
		}

		stored, err := repo.ListRules(ctx)
		if err != nil {
			t.Fatalf("ListRules failed: %v", err)
		}
		if len(stored) != 2 {
			t.Fatalf("expected 2 rules, got %d", len(stored))
		}
		if stored[0].ID != "missing-with-photo" || stored[1].ID != "serial-refunder" {
			t.Errorf("rules must keep insertion order, got %s then %s", stored[0].ID, stored[1].ID)
		}
		if stored[0].Conditions["order_status"] != "missing_delivery" {
			t.Errorf("conditions lost in round trip: %+v", stored[0].Conditions)
		}

		// Update keeps position
		rules[0].Decision = domain.DecisionEscalate
		if err := repo.SaveRule(ctx, rules[0]); err != nil {
			t.Fatalf("SaveRule update failed: %v", err)
		}
		stored, err = repo.ListRules(ctx)
		if err != nil {
			t.Fatalf("ListRules failed: %v", err)
		}
		if len(stored) != 2 || stored[0].ID != "missing-with-photo" {
			t.Errorf("update must not move or duplicate the rule: %+v", stored)
		}
		if stored[0].Decision != domain.DecisionEscalate {
			t.Errorf("update lost, decision is %s", stored[0].Decision)
		}
	})

	t.Run("OverviewStats", func(t *testing.T) {
		stats, err := repo.OverviewStats(ctx, 30)
		if err != nil {
			t.Fatalf("OverviewStats failed: %v", err)
		}
		if stats.TotalComplaints < 5 {
			t.Errorf("expected at least 5 complaints, got %d", stats.TotalComplaints)
		}
		if stats.ByDecision[domain.DecisionRefund] < 3 {
			t.Errorf("expected refund count >= 3, got %v", stats.ByDecision)
		}
		if stats.AvgConfidence <= 0 {
			t.Errorf("expected positive avg confidence, got %v", stats.AvgConfidence)
		}
		if len(stats.DailyTrend) == 0 {
			t.Error("expected a daily trend point")
		}
	})

	t.Run("RootCauseStats", func(t *testing.T) {
		stats, err := repo.RootCauseStats(ctx, 30)
		if err != nil {
			t.Fatalf("RootCauseStats failed: %v", err)
		}
		if len(stats) == 0 {
			t.Fatal("expected root cause rows")
		}
		if stats[0].RootCause != "logistics_delay" {
			t.Errorf("expected logistics_delay on top, got %s", stats[0].RootCause)
		}
		if stats[0].Refunds == 0 {
			t.Error("expected refund count per root cause")
		}
	})
}

func TestUnsupportedDriver(t *testing.T) {
	_, err := New(domain.RepositoryConfig{Driver: "oracle"})
	if err == nil {
		t.Fatal("expected error for unsupported driver")
	}
}

func TestRebind(t *testing.T) {
	r := &SQLRepository{driver: "postgres"}
	got := r.rebind("SELECT * FROM complaints WHERE customer_id = ? AND decision = ?")
	want := "SELECT * FROM complaints WHERE customer_id = $1 AND decision = $2"
	if got != want {
		t.Errorf("rebind = %q, want %q", got, want)
	}

	r.driver = "sqlite"
	query := "SELECT ?"
	if got := r.rebind(query); got != query {
		t.Errorf("sqlite rebind must be a no-op, got %q", got)
	}
}
