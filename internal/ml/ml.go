// Package ml provides the machine-learning fallback for cases no policy
// rule covers. The classifier itself is a pluggable capability; running
// without one is a normal deployment state, not an error.
package ml

import (
	"fmt"
	"log/slog"

	"github.com/opensource-delivery/kite/internal/domain"
)

// Features is the fixed feature vector handed to the classifier.
type Features struct {
	OrderStatus      string
	RefundHistory30d int
	HandoffPhoto     bool
	CourierRating    float64
}

// Classifier predicts a decision label with a confidence in [0, 1].
type Classifier interface {
	PredictLabel(f Features) (label string, confidence float64, err error)
}

// Adapter turns classifier predictions into decision results.
type Adapter struct {
	clf Classifier
}

// NewAdapter wraps a classifier. A nil classifier is allowed and makes
// Predict always return nil.
func NewAdapter(clf Classifier) *Adapter {
	return &Adapter{clf: clf}
}

// Ready reports whether a classifier is loaded.
func (a *Adapter) Ready() bool {
	return a != nil && a.clf != nil
}

// Predict runs the classifier over the case features. Returns nil when no
// classifier is loaded or prediction fails; the caller falls through to
// its default decision.
func (a *Adapter) Predict(c *domain.Case) *domain.DecisionResult {
	if !a.Ready() {
		return nil
	}

	f := Features{
		OrderStatus:      c.OrderStatus,
		RefundHistory30d: c.RefundHistory30d,
		HandoffPhoto:     c.HandoffPhoto,
		CourierRating:    c.CourierRating,
	}
	if f.OrderStatus == "" {
		f.OrderStatus = "unknown"
	}
	if f.CourierRating == 0 {
		f.CourierRating = domain.DefaultCourierRating
	}

	label, confidence, err := a.clf.PredictLabel(f)
	if err != nil {
		slog.Error("ML prediction error", "error", err)
		return nil
	}

	// Classifier implementations are pluggable; the [0,1] confidence
	// range is this adapter's contract, not theirs.
	if confidence < 0 {
		confidence = 0
	} else if confidence > 1 {
		confidence = 1
	}

	slog.Info("ML prediction", "label", label, "confidence", confidence)

	category := c.OrderStatus
	if category == "" {
		category = "unknown"
	}

	return &domain.DecisionResult{
		Decision:   label,
		Confidence: confidence,
		Source:     domain.SourceML,
		Reason:     fmt.Sprintf("ML classification (%.0f%% confidence)", confidence*100),
		Category:   category,
	}
}
