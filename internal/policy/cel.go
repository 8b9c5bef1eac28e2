package policy

import (
	"log/slog"

	"github.com/google/cel-go/common/types"
)

// celMatches evaluates a compiled CEL rule against the case fields.
// Evaluation errors fail the match, never the engine.
func (e *Engine) celMatches(lr *loadedRule, fields map[string]interface{}) bool {
	activation := map[string]any{
		"complaint":          fields,
		"order_status":       fields["order_status"],
		"complaint_text":     fields["complaint_text"],
		"customer_id":        fields["customer_id"],
		"refund_history_30d": int64(fields["refund_history_30d"].(int)),
		"evidence_count":     int64(fields["evidence_count"].(int)),
		"handoff_photo":      fields["handoff_photo"],
		"courier_rating":     fields["courier_rating"],
		"order_value":        fields["order_value"],
	}

	out, _, err := lr.program.Eval(activation)
	if err != nil {
		slog.Warn("CEL rule evaluation failed", "rule_id", lr.rule.ID, "error", err)
		return false
	}

	b, ok := out.(types.Bool)
	return ok && bool(b)
}
