// Package worker provides async complaint processing from the EventBus.
package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/opensource-delivery/kite/internal/domain"
	"github.com/opensource-delivery/kite/internal/engine"
)

// Worker consumes queued complaints, classifies them, and publishes the
// results back to the bus. Used when complaints arrive from upstream
// systems rather than the HTTP API.
type Worker struct {
	bus    domain.EventBus
	repo   domain.Repository
	engine *engine.Orchestrator

	subscriptions []domain.Subscription
	ctx           context.Context
	cancel        context.CancelFunc
}

// NewWorker creates a new async worker.
func NewWorker(bus domain.EventBus, repo domain.Repository, orchestrator *engine.Orchestrator) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:    bus,
		repo:   repo,
		engine: orchestrator,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start subscribes to the complaint intake topic.
func (w *Worker) Start() error {
	sub, err := w.bus.Subscribe(w.ctx, domain.TopicComplaintReceived, w.handleMessage)
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	slog.Info("worker started", "topic", domain.TopicComplaintReceived)
	return nil
}

func (w *Worker) handleMessage(ctx context.Context, msg *domain.Message) error {
	return w.processComplaint(ctx, msg)
}

// processComplaint runs a queued complaint through the pipeline.
func (w *Worker) processComplaint(ctx context.Context, msg *domain.Message) error {
	start := time.Now()

	var req domain.ComplaintRequest
	if err := json.Unmarshal(msg.Payload, &req); err != nil {
		slog.Error("failed to parse complaint message",
			"message_id", msg.ID,
			"error", err,
		)
		return err
	}

	c := req.ToCase()

	slog.Debug("processing complaint",
		"order_id", c.OrderID,
		"customer_id", c.CustomerID,
		"message_id", msg.ID,
	)

	resp := w.engine.Classify(ctx, c)

	if w.repo != nil {
		if err := w.repo.LogComplaint(ctx, resp, c); err != nil {
			slog.Error("failed to log complaint",
				"complaint_id", resp.ComplaintID,
				"error", err,
			)
		}
	}

	resultPayload, _ := json.Marshal(resp)
	if err := w.bus.Publish(ctx, domain.TopicComplaintDecision, resultPayload); err != nil {
		slog.Error("failed to publish decision",
			"complaint_id", resp.ComplaintID,
			"error", err,
		)
	}

	if ShouldAlert(resp) {
		if err := w.bus.Publish(ctx, domain.TopicComplaintAlert, resultPayload); err != nil {
			slog.Error("failed to publish alert",
				"complaint_id", resp.ComplaintID,
				"error", err,
			)
		}
	}

	slog.Info("complaint processed",
		"complaint_id", resp.ComplaintID,
		"order_id", resp.OrderID,
		"decision", resp.Decision,
		"severity", resp.Severity,
		"fraud_risk", resp.FraudRisk,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return nil
}

// ShouldAlert reports whether a result warrants an operator alert:
// critical-severity cases and high-risk fraud assessments.
func ShouldAlert(resp *domain.Response) bool {
	if resp == nil {
		return false
	}
	return resp.Severity == domain.SeverityCritical || resp.FraudRisk == domain.FraudLabelHighRisk
}

// Stop gracefully stops the worker.
func (w *Worker) Stop() error {
	w.cancel()

	// Unsubscribe all
	for _, sub := range w.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			slog.Error("failed to unsubscribe",
				"topic", sub.Topic(),
				"error", err,
			)
		}
	}
	w.subscriptions = nil

	slog.Info("worker stopped")
	return nil
}

// Stats returns worker statistics.
type Stats struct {
	SubscriptionCount int      `json:"subscriptionCount"`
	Topics            []string `json:"topics"`
}

// GetStats returns current worker statistics.
func (w *Worker) GetStats() Stats {
	topics := make([]string, len(w.subscriptions))
	for i, sub := range w.subscriptions {
		topics[i] = sub.Topic()
	}
	return Stats{
		SubscriptionCount: len(w.subscriptions),
		Topics:            topics,
	}
}
