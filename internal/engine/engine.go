// Package engine orchestrates complaint classification: the policy/ML/
// default decision cascade plus concurrent enrichment (text intelligence,
// fraud scoring, customer history) merged into one immutable response.
package engine

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/opensource-delivery/kite/internal/domain"
	"github.com/opensource-delivery/kite/internal/fraud"
	"github.com/opensource-delivery/kite/internal/history"
	"github.com/opensource-delivery/kite/internal/intel"
	"github.com/opensource-delivery/kite/internal/ml"
	"github.com/opensource-delivery/kite/internal/policy"
)

var tracer = otel.Tracer("kite-engine")

// Orchestrator wires the decision cascade and enrichment stages.
type Orchestrator struct {
	policy   *policy.Engine
	ml       *ml.Adapter
	analyzer *intel.Analyzer
	fraud    *fraud.Scorer
	history  *history.Profiler
}

// New creates the orchestrator from its collaborators.
func New(policyEngine *policy.Engine, adapter *ml.Adapter, analyzer *intel.Analyzer, scorer *fraud.Scorer, profiler *history.Profiler) *Orchestrator {
	return &Orchestrator{
		policy:   policyEngine,
		ml:       adapter,
		analyzer: analyzer,
		fraud:    scorer,
		history:  profiler,
	}
}

// Classify runs the full pipeline over a case. It never fails: the worst
// outcome is an escalation at confidence 0.5. The enrichment stages run
// concurrently and write to disjoint variables.
func (o *Orchestrator) Classify(ctx context.Context, c *domain.Case) *domain.Response {
	ctx, span := tracer.Start(ctx, "engine.Classify")
	defer span.End()

	if c.OrderStatus == "" {
		c.OrderStatus = o.analyzer.DetectIssueType(c.ComplaintText)
	}

	// Decision cascade: policy, then ML, then default escalation.
	decision := o.policy.Evaluate(c)
	if decision == nil {
		decision = o.ml.Predict(c)
	}
	if decision == nil {
		decision = defaultDecision(c)
	}

	span.SetAttributes(
		attribute.String("order_id", c.OrderID),
		attribute.String("decision", decision.Decision),
		attribute.String("source", decision.Source),
	)

	var (
		intelResult *domain.IntelligenceResult
		assessment  *domain.FraudAssessment
		summary     *domain.CustomerSummary
	)

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		intelResult = o.analyzer.Analyze(c.ComplaintText, c)
	}()
	go func() {
		defer wg.Done()
		assessment = o.fraud.Assess(ctx, c.CustomerID, c.OrderValue)
	}()
	go func() {
		defer wg.Done()
		summary = o.history.Summary(ctx, c.CustomerID)
	}()
	wg.Wait()

	now := time.Now().UTC()
	slaMinutes := domain.SLAMinutes(intelResult.Severity)

	explanation := intelResult.Explanation
	if explanation == "" {
		explanation = decision.Reason
	}

	return &domain.Response{
		ComplaintID: newComplaintID(),
		OrderID:     c.OrderID,
		Timestamp:   now,

		Decision:   decision.Decision,
		Confidence: decision.Confidence,
		Source:     decision.Source,
		RuleID:     decision.RuleID,

		Severity:         intelResult.Severity,
		SLADeadline:      now.Add(time.Duration(slaMinutes) * time.Minute),
		SLAMinutes:       slaMinutes,
		Categories:       intelResult.Categories,
		RootCause:        intelResult.RootCause,
		Sentiment:        intelResult.Sentiment,
		Explanation:      explanation,
		SuggestedActions: intelResult.SuggestedActions,

		FraudRisk:  assessment.Label,
		FraudScore: assessment.Score,
		FraudFlags: assessment.Flags,

		CustomerHistory: *summary,

		AgentSummary:         buildAgentSummary(c, decision, intelResult, assessment),
		ResponseTemplates:    responseTemplates(decision.Decision),
		AlternativeDecisions: alternativeDecisions(decision.Decision),
	}
}

func defaultDecision(c *domain.Case) *domain.DecisionResult {
	category := c.OrderStatus
	if category == "" {
		category = "unknown"
	}
	return &domain.DecisionResult{
		Decision:   domain.DecisionEscalate,
		Confidence: 0.5,
		Source:     domain.SourceSystem,
		Reason:     domain.DefaultEscalateReason,
		Category:   category,
	}
}

func newComplaintID() string {
	return strings.ToUpper(uuid.NewString()[:12])
}
