// Package compliance scores extracted nutrition data against the SSIS
// threshold rules.
package compliance

import (
	"github.com/sirupsen/logrus"

	"ssis-checker/internal/nutrition"
)

// RuleResult is the outcome of a single rule.
type RuleResult struct {
	RuleName    string `json:"ruleName"`
	Passed      bool   `json:"passed"`
	Actual      string `json:"actualValueDescription"`
	Requirement string `json:"requirementDescription"`
	Explanation string `json:"explanation"`
}

// Verdict aggregates the results of every rule. Each rule appears in
// exactly one of Passed or Failed, and in Results under its name.
type Verdict struct {
	IsCompliant bool                  `json:"isCompliant"`
	Passed      []RuleResult          `json:"passed"`
	Failed      []RuleResult          `json:"failed"`
	Results     map[string]RuleResult `json:"allResultsByName"`
}

// Total returns the number of rules evaluated.
func (v *Verdict) Total() int {
	return len(v.Passed) + len(v.Failed)
}

// FailedNames returns the names of failing rules in evaluation order.
func (v *Verdict) FailedNames() []string {
	names := make([]string, 0, len(v.Failed))
	for _, r := range v.Failed {
		names = append(names, r.RuleName)
	}
	return names
}

// Engine evaluates a fixed rule set. It holds no mutable state and is safe
// for concurrent use.
type Engine struct {
	rules  []Rule
	logger *logrus.Logger
}

// NewEngine returns an Engine with the SSIS rule set. logger may be nil.
func NewEngine(logger *logrus.Logger) *Engine {
	return &Engine{rules: DefaultRules(), logger: logger}
}

// Rules returns the names of the configured rules in evaluation order.
func (e *Engine) Rules() []string {
	names := make([]string, len(e.rules))
	for i, r := range e.rules {
		names[i] = r.Name()
	}
	return names
}

// Evaluate runs every rule against the record. Missing data fails a rule;
// it never skips it.
func (e *Engine) Evaluate(record nutrition.Record) *Verdict {
	v := &Verdict{
		Passed:  make([]RuleResult, 0, len(e.rules)),
		Failed:  make([]RuleResult, 0, len(e.rules)),
		Results: make(map[string]RuleResult, len(e.rules)),
	}

	for _, rule := range e.rules {
		res := rule.Evaluate(record)
		if res.Passed {
			v.Passed = append(v.Passed, res)
		} else {
			v.Failed = append(v.Failed, res)
		}
		v.Results[res.RuleName] = res
	}
	v.IsCompliant = len(v.Failed) == 0

	if e.logger != nil {
		e.logger.WithFields(logrus.Fields{
			"operation":    "evaluate",
			"product":      record.Name(),
			"compliant":    v.IsCompliant,
			"failed_rules": v.FailedNames(),
		}).Info("Compliance evaluated")
	}
	return v
}
