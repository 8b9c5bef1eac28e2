// Package fraud provides defensive abuse scoring over customer complaint
// history. Five independent additive rules produce a clamped [0,100]
// score; a missing or failing history read degrades to zeros rather than
// an error.
package fraud

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/opensource-delivery/kite/internal/domain"
)

// HistoryReader supplies the point-in-time customer history snapshot.
type HistoryReader interface {
	HistorySnapshot(ctx context.Context, customerID string) (*domain.HistorySnapshot, error)
}

// Scorer assesses fraud risk for a complaint.
type Scorer struct {
	history HistoryReader
	cfg     domain.FraudConfig
}

// NewScorer creates a fraud scorer. A zero config falls back to the
// default thresholds and weights.
func NewScorer(history HistoryReader, cfg domain.FraudConfig) *Scorer {
	if cfg == (domain.FraudConfig{}) {
		cfg = domain.DefaultFraudConfig()
	}
	return &Scorer{history: history, cfg: cfg}
}

// Assess scores the customer for abuse risk. An absent or anonymous
// customer yields a clean zero result. Never returns an error: history
// read failures degrade to a zero-valued snapshot.
func (s *Scorer) Assess(ctx context.Context, customerID string, orderValue float64) *domain.FraudAssessment {
	if customerID == "" || customerID == domain.AnonymousCustomerID {
		return &domain.FraudAssessment{
			Score:   0,
			Label:   domain.FraudLabelNormal,
			Flags:   []domain.FraudFlag{},
			History: &domain.HistorySnapshot{},
		}
	}

	snapshot := s.readHistory(ctx, customerID)
	flags := []domain.FraudFlag{}
	score := 0

	if snapshot.Complaints30d >= s.cfg.Complaints30dThreshold {
		flags = append(flags, domain.FraudFlag{
			Type:        domain.FlagExcessiveComplaints,
			Description: fmt.Sprintf("%d complaints in last 30 days", snapshot.Complaints30d),
			Severity:    "high",
		})
		score += s.cfg.WeightExcessiveComplaints
	}

	if snapshot.Complaints24h >= s.cfg.Complaints24hThreshold {
		flags = append(flags, domain.FraudFlag{
			Type:        domain.FlagBurstActivity,
			Description: fmt.Sprintf("%d complaints in last 24 hours", snapshot.Complaints24h),
			Severity:    "high",
		})
		score += s.cfg.WeightBurstActivity
	}

	if snapshot.TotalComplaints >= 3 && snapshot.RefundRate >= s.cfg.RefundRateThreshold {
		flags = append(flags, domain.FraudFlag{
			Type:        domain.FlagHighRefundRate,
			Description: fmt.Sprintf("Refund rate %.1f%% over %d complaints", snapshot.RefundRate*100, snapshot.TotalComplaints),
			Severity:    "high",
		})
		score += s.cfg.WeightHighRefundRate
	}

	if snapshot.AccountAgeDays < s.cfg.MinAccountAgeDays && snapshot.TotalComplaints > 0 {
		flags = append(flags, domain.FraudFlag{
			Type:        domain.FlagVeryNewAccount,
			Description: fmt.Sprintf("Account age %d days with %d complaints", snapshot.AccountAgeDays, snapshot.TotalComplaints),
			Severity:    "medium",
		})
		score += s.cfg.WeightVeryNewAccount
	}

	if orderValue >= s.cfg.HighValueThreshold {
		flags = append(flags, domain.FraudFlag{
			Type:        domain.FlagHighValueOrder,
			Description: fmt.Sprintf("High-value complaint ($%.2f)", orderValue),
			Severity:    "medium",
		})
		score += s.cfg.WeightHighValuePattern
	}

	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	return &domain.FraudAssessment{
		Score:   score,
		Label:   classifyLabel(score),
		Flags:   flags,
		History: snapshot,
	}
}

func (s *Scorer) readHistory(ctx context.Context, customerID string) *domain.HistorySnapshot {
	if s.history == nil {
		return &domain.HistorySnapshot{}
	}
	snapshot, err := s.history.HistorySnapshot(ctx, customerID)
	if err != nil || snapshot == nil {
		if err != nil {
			slog.Error("history read failed, scoring with zeros", "customer_id", customerID, "error", err)
		}
		return &domain.HistorySnapshot{}
	}
	return snapshot
}

func classifyLabel(score int) string {
	switch {
	case score >= 70:
		return domain.FraudLabelHighRisk
	case score >= 40:
		return domain.FraudLabelSuspicious
	case score >= 20:
		return domain.FraudLabelWatch
	default:
		return domain.FraudLabelNormal
	}
}
