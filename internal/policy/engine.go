// Package policy provides the declarative first-match rule engine.
//
// Rules are evaluated in declared order; the first rule whose conditions
// all hold decides the case. Evaluation is total: a malformed condition
// fails that rule's match, never the engine.
package policy

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/cel-go/cel"

	"github.com/opensource-delivery/kite/internal/domain"
)

// Engine evaluates an ordered policy rule table against cases.
type Engine struct {
	mu    sync.RWMutex
	rules []*loadedRule
	env   *cel.Env
}

// loadedRule pairs a rule with its compiled CEL program, if any.
type loadedRule struct {
	rule    *domain.PolicyRule
	program cel.Program
}

// NewEngine creates a policy engine with an empty rule table.
func NewEngine() (*Engine, error) {
	env, err := cel.NewEnv(
		cel.Variable("complaint", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("order_status", cel.StringType),
		cel.Variable("complaint_text", cel.StringType),
		cel.Variable("customer_id", cel.StringType),
		cel.Variable("refund_history_30d", cel.IntType),
		cel.Variable("evidence_count", cel.IntType),
		cel.Variable("handoff_photo", cel.BoolType),
		cel.Variable("courier_rating", cel.DoubleType),
		cel.Variable("order_value", cel.DoubleType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &Engine{env: env}, nil
}

// LoadRules appends rules to the table in the given order. CEL rules that
// fail to compile are skipped with a warning; declarative rules load as-is
// and are validated at match time.
func (e *Engine) LoadRules(rules []*domain.PolicyRule) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, rule := range rules {
		loaded, err := e.loadRule(rule)
		if err != nil {
			slog.Warn("skipping unloadable rule", "rule_id", rule.ID, "error", err)
			continue
		}
		e.rules = append(e.rules, loaded)
	}
}

// ReloadRules replaces the whole table (hot reload from the repository).
func (e *Engine) ReloadRules(rules []*domain.PolicyRule) {
	e.mu.Lock()
	e.rules = nil
	e.mu.Unlock()
	e.LoadRules(rules)
}

func (e *Engine) loadRule(rule *domain.PolicyRule) (*loadedRule, error) {
	if rule.Type != domain.RuleTypeCEL {
		return &loadedRule{rule: rule}, nil
	}

	ast, issues := e.env.Compile(rule.Expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile rule %s: %w", rule.ID, issues.Err())
	}
	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("rule %s: expression must return bool, got %s", rule.ID, ast.OutputType())
	}
	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("program for rule %s: %w", rule.ID, err)
	}
	return &loadedRule{rule: rule, program: program}, nil
}

// RulesCount returns the number of loaded rules.
func (e *Engine) RulesCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.rules)
}

// Rules returns the currently loaded rules in evaluation order.
func (e *Engine) Rules() []*domain.PolicyRule {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]*domain.PolicyRule, 0, len(e.rules))
	for _, lr := range e.rules {
		out = append(out, lr.rule)
	}
	return out
}

// Evaluate checks the case against the rule table in order and returns
// the first match as a decision, or nil when nothing matches.
func (e *Engine) Evaluate(c *domain.Case) *domain.DecisionResult {
	e.mu.RLock()
	defer e.mu.RUnlock()

	fields := c.Fields()

	for _, lr := range e.rules {
		if !e.ruleMatches(lr, fields) {
			continue
		}

		rule := lr.rule
		slog.Info("policy rule matched", "rule_id", rule.ID)

		result := &domain.DecisionResult{
			Decision:   rule.Decision,
			Confidence: rule.Confidence,
			Source:     domain.SourcePolicy,
			Reason:     rule.Reason,
			RuleID:     rule.ID,
			Category:   rule.Category,
		}
		if result.Decision == "" {
			result.Decision = domain.DecisionEscalate
		}
		if result.Confidence == 0 {
			result.Confidence = domain.DefaultRuleConfidence
		}
		if result.Reason == "" {
			result.Reason = domain.DefaultRuleReason
		}
		if result.Category == "" {
			result.Category = c.OrderStatus
		}
		return result
	}
	return nil
}

func (e *Engine) ruleMatches(lr *loadedRule, fields map[string]interface{}) bool {
	if lr.program != nil {
		return e.celMatches(lr, fields)
	}

	for field, expected := range lr.rule.Conditions {
		actual, ok := fields[field]
		if !ok {
			actual = nil
		}
		if cond, isOp := expected.(map[string]interface{}); isOp {
			if !matchOperator(cond, actual) {
				return false
			}
		} else if !valuesEqual(actual, expected) {
			return false
		}
	}
	return true
}

// matchOperator applies an {op, value} condition. Unknown operators and
// type mismatches conservatively fail the match.
func matchOperator(cond map[string]interface{}, actual interface{}) bool {
	op, _ := cond["op"].(string)
	if op == "" {
		op = domain.OpEq
	}
	val := cond["value"]

	switch op {
	case domain.OpEq:
		return valuesEqual(actual, val)
	case domain.OpNe:
		return !valuesEqual(actual, val)
	case domain.OpGt, domain.OpGte, domain.OpLt, domain.OpLte:
		a, aok := toFloat(actual)
		v, vok := toFloat(val)
		if !aok || !vok {
			// Numeric comparison against a missing or non-numeric
			// field is not a match
			return false
		}
		switch op {
		case domain.OpGt:
			return a > v
		case domain.OpGte:
			return a >= v
		case domain.OpLt:
			return a < v
		default:
			return a <= v
		}
	case domain.OpIn:
		list, ok := val.([]interface{})
		if !ok {
			return false
		}
		for _, item := range list {
			if valuesEqual(actual, item) {
				return true
			}
		}
		return false
	case domain.OpContains:
		needle, ok := val.(string)
		if !ok || actual == nil {
			return false
		}
		return strings.Contains(fmt.Sprint(actual), needle)
	default:
		return false
	}
}

// valuesEqual compares after numeric normalization, so a JSON 3 matches
// an int case field holding 3.
func valuesEqual(a, b interface{}) bool {
	if af, aok := toFloat(a); aok {
		bf, bok := toFloat(b)
		return bok && af == bf
	}
	return a == b
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	default:
		return 0, false
	}
}
