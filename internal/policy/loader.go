package policy

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/opensource-delivery/kite/internal/domain"
)

// LoadRulesFile reads policy rules from a JSON document. A missing file
// yields an empty table, matching a fresh deployment. The document is
// either a bare rule array or an object with a top-level "rules" key.
func LoadRulesFile(path string) ([]*domain.PolicyRule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			slog.Warn("rules file not found, starting with empty table", "path", path)
			return nil, nil
		}
		return nil, fmt.Errorf("read rules file: %w", err)
	}

	rules, err := ParseRules(data)
	if err != nil {
		return nil, err
	}
	slog.Info("loaded policy rules", "path", path, "count", len(rules))
	return rules, nil
}

// ParseRules decodes a rules document. Rules using the legacy if/then
// schema are rejected outright: the two conventions are ambiguous about
// operator encoding, so only the conditions form is accepted.
func ParseRules(data []byte) ([]*domain.PolicyRule, error) {
	var raw []json.RawMessage
	var doc struct {
		Rules []json.RawMessage `json:"rules"`
	}
	if err := json.Unmarshal(data, &doc); err == nil && doc.Rules != nil {
		raw = doc.Rules
	} else if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse rules document: %w", err)
	}

	rules := make([]*domain.PolicyRule, 0, len(raw))
	for i, rr := range raw {
		var probe map[string]json.RawMessage
		if err := json.Unmarshal(rr, &probe); err != nil {
			return nil, fmt.Errorf("rule %d: %w", i, err)
		}
		if _, ok := probe["if"]; ok {
			return nil, fmt.Errorf("rule %d uses the unsupported if/then schema; use conditions", i)
		}
		if _, ok := probe["then"]; ok {
			return nil, fmt.Errorf("rule %d uses the unsupported if/then schema; use conditions", i)
		}

		var rule domain.PolicyRule
		if err := json.Unmarshal(rr, &rule); err != nil {
			return nil, fmt.Errorf("rule %d: %w", i, err)
		}
		if rule.Type == domain.RuleTypeCEL && rule.Expression == "" {
			return nil, fmt.Errorf("rule %s: cel rule requires an expression", rule.ID)
		}
		rules = append(rules, &rule)
	}
	return rules, nil
}
