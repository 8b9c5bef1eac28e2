// Package history profiles customers from their complaint record: summary
// counts, refund rate, lifetime value, and a risk tier.
package history

import (
	"context"
	"encoding/json"
	"log/slog"
	"math"
	"time"

	"github.com/opensource-delivery/kite/internal/domain"
)

// SummaryReader supplies raw complaint aggregates for one customer.
type SummaryReader interface {
	CustomerSummary(ctx context.Context, customerID string) (*domain.CustomerSummary, error)
}

// Profiler derives customer risk context for classification. Summaries
// can optionally be served through a short-TTL cache.
type Profiler struct {
	repo  SummaryReader
	cache domain.Cache
	ttl   time.Duration
}

// NewProfiler creates a profiler. cache may be nil to disable caching.
func NewProfiler(repo SummaryReader, cache domain.Cache, ttl time.Duration) *Profiler {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &Profiler{repo: repo, cache: cache, ttl: ttl}
}

// LifetimeValuePerComplaint is the placeholder LTV multiplier.
const LifetimeValuePerComplaint = 25.0

// Summary returns the customer's decision context. Anonymous customers
// get a zeroed summary with tier "unknown"; a failing read degrades to a
// zeroed summary with tier "normal". Never returns an error.
func (p *Profiler) Summary(ctx context.Context, customerID string) *domain.CustomerSummary {
	if customerID == "" || customerID == domain.AnonymousCustomerID {
		return &domain.CustomerSummary{RiskTier: domain.TierUnknown}
	}

	if cached := p.cacheGet(ctx, customerID); cached != nil {
		return cached
	}

	raw, err := p.repo.CustomerSummary(ctx, customerID)
	if err != nil || raw == nil {
		if err != nil {
			slog.Error("customer summary read failed", "customer_id", customerID, "error", err)
		}
		return &domain.CustomerSummary{RiskTier: domain.TierNormal}
	}

	summary := &domain.CustomerSummary{
		CustomerID:       customerID,
		TotalComplaints:  raw.TotalComplaints,
		RecentComplaints: raw.RecentComplaints,
		RefundRate:       math.Round(raw.RefundRate*1000) / 1000,
		LifetimeValue:    float64(raw.TotalComplaints) * LifetimeValuePerComplaint,
		RiskTier:         RiskTier(raw.TotalComplaints, raw.RefundRate),
	}

	p.cacheSet(ctx, customerID, summary)
	return summary
}

// RiskTier buckets a customer by complaint volume and refund rate.
// Checks run in order; the first match wins.
func RiskTier(totalComplaints int, refundRate float64) string {
	if totalComplaints == 0 {
		return domain.TierNormal
	}
	switch {
	case refundRate > 0.5 && totalComplaints >= 5:
		return domain.TierFlagged
	case refundRate > 0.3:
		return domain.TierWatch
	case refundRate < 0.1 && totalComplaints >= 10:
		return domain.TierTrusted
	case refundRate < 0.05 && totalComplaints >= 20:
		return domain.TierVIP
	default:
		return domain.TierNormal
	}
}

func cacheKey(customerID string) string {
	return "customer:summary:" + customerID
}

func (p *Profiler) cacheGet(ctx context.Context, customerID string) *domain.CustomerSummary {
	if p.cache == nil {
		return nil
	}
	data, err := p.cache.Get(ctx, cacheKey(customerID))
	if err != nil || data == nil {
		return nil
	}
	var summary domain.CustomerSummary
	if err := json.Unmarshal(data, &summary); err != nil {
		return nil
	}
	return &summary
}

func (p *Profiler) cacheSet(ctx context.Context, customerID string, summary *domain.CustomerSummary) {
	if p.cache == nil {
		return
	}
	data, err := json.Marshal(summary)
	if err != nil {
		return
	}
	if err := p.cache.Set(ctx, cacheKey(customerID), data, p.ttl); err != nil {
		slog.Debug("summary cache write failed", "customer_id", customerID, "error", err)
	}
}
