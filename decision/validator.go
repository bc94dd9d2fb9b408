package decision

import (
	"fmt"
	"sync"
)

// Rule is a named validation function: it inspects a Decision and reports
// pass/fail plus an optional human-readable message.
type Rule struct {
	Name string
	Fn   func(*Decision) (bool, string)
}

// Validator runs a registry of named Rules against a Decision and combines
// their verdicts.
type Validator struct {
	mu    sync.RWMutex
	rules []Rule
	byName map[string]bool
}

func NewValidator() *Validator {
	return &Validator{byName: make(map[string]bool)}
}

// Register adds a rule. Rule names must be unique; registering a duplicate
// name returns RULE_EXISTS.
func (v *Validator) Register(rule Rule) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.byName[rule.Name] {
		return NewError(ErrRuleExists, fmt.Sprintf("rule %q already registered", rule.Name), nil)
	}
	v.byName[rule.Name] = true
	v.rules = append(v.rules, rule)
	return nil
}

// Unregister removes a previously registered rule by name.
func (v *Validator) Unregister(name string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.byName[name] {
		return NewError(ErrUnknownRule, fmt.Sprintf("rule %q is not registered", name), nil)
	}
	delete(v.byName, name)
	filtered := v.rules[:0:0]
	for _, r := range v.rules {
		if r.Name != name {
			filtered = append(filtered, r)
		}
	}
	v.rules = filtered
	return nil
}

// Validate runs every registered rule against d and returns the combined
// verdict plus every failure message, in registration order.
func (v *Validator) Validate(d *Decision) (bool, []string) {
	v.mu.RLock()
	rules := make([]Rule, len(v.rules))
	copy(rules, v.rules)
	v.mu.RUnlock()

	valid := true
	var messages []string
	for _, rule := range rules {
		ok, msg := rule.Fn(d)
		if !ok {
			valid = false
			if msg == "" {
				msg = rule.Name + ": failed"
			} else {
				msg = rule.Name + ": " + msg
			}
			messages = append(messages, msg)
		}
	}
	return valid, messages
}

// Built-in rule constructors.

func MinimumConfidence(min float64) Rule {
	return Rule{
		Name: "minimum_confidence",
		Fn: func(d *Decision) (bool, string) {
			if d.Confidence < min {
				return false, fmt.Sprintf("Confidence too low (%.2f < %.2f)", d.Confidence, min)
			}
			return true, ""
		},
	}
}

func RequiredReasoning(minLength int) Rule {
	return Rule{
		Name: "required_reasoning",
		Fn: func(d *Decision) (bool, string) {
			if len(d.Reasoning) < minLength {
				return false, fmt.Sprintf("Reasoning too short (%d < %d chars)", len(d.Reasoning), minLength)
			}
			return true, ""
		},
	}
}

func AllowedDecisionTypes(allowed ...Type) Rule {
	set := make(map[Type]bool, len(allowed))
	for _, t := range allowed {
		set[t] = true
	}
	return Rule{
		Name: "allowed_decision_types",
		Fn: func(d *Decision) (bool, string) {
			if !set[d.Type] {
				return false, fmt.Sprintf("Decision type %q not allowed", d.Type)
			}
			return true, ""
		},
	}
}

func BatteryEfficiencyRequired(required bool) Rule {
	return Rule{
		Name: "battery_efficiency",
		Fn: func(d *Decision) (bool, string) {
			if required && !d.BatteryEfficient {
				return false, "Decision is not battery efficient"
			}
			return true, ""
		},
	}
}

func NetworkEfficiencyRequired(required bool) Rule {
	return Rule{
		Name: "network_efficiency",
		Fn: func(d *Decision) (bool, string) {
			if required && !d.NetworkEfficient {
				return false, "Decision is not network efficient"
			}
			return true, ""
		},
	}
}
