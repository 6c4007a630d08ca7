package compliance

import (
	"fmt"
	"strconv"

	"ssis-checker/internal/nutrition"
)

// Rule names, also the keys of Verdict.Results.
const (
	RuleCalories     = "calories"
	RuleSodium       = "sodium"
	RuleTotalFat     = "totalFat"
	RuleSaturatedFat = "saturatedFat"
	RuleTransFat     = "transFat"
	RuleTotalSugars  = "totalSugars"
)

// Thresholds of the SSIS rule set.
const (
	MaxCalories          = 200.0
	MaxSodiumMg          = 200.0
	MaxFatCaloriePct     = 35.0
	MaxSatFatCaloriePct  = 10.0
	MaxSugarWeightPct    = 35.0
	caloriesPerGramOfFat = 9.0
)

// Rule checks one threshold against a record and always produces a result.
type Rule interface {
	Name() string
	Evaluate(r nutrition.Record) RuleResult
}

// DefaultRules returns the six SSIS rules in evaluation order.
func DefaultRules() []Rule {
	return []Rule{
		limitRule{
			name:        RuleCalories,
			field:       func(r nutrition.Record) *nutrition.Amount { return r.Calories },
			limit:       MaxCalories,
			unit:        " calories",
			requirement: "≤ 200 calories",
			passText:    "Meets calorie requirement",
			missingText: "Calorie information not found",
		},
		limitRule{
			name:        RuleSodium,
			field:       func(r nutrition.Record) *nutrition.Amount { return r.Sodium },
			limit:       MaxSodiumMg,
			unit:        "mg",
			requirement: "≤ 200mg",
			passText:    "Meets sodium requirement",
			missingText: "Sodium information not found",
		},
		shareRule{
			name:        RuleTotalFat,
			part:        func(r nutrition.Record) *nutrition.Amount { return r.TotalFat },
			whole:       func(r nutrition.Record) *nutrition.Amount { return r.Calories },
			factor:      caloriesPerGramOfFat,
			limit:       MaxFatCaloriePct,
			basis:       "of calories",
			wholeName:   "calories",
			requirement: "≤ 35% of calories",
			passText:    "Meets fat requirement",
			missingText: "Fat or calorie information not found",
		},
		shareRule{
			name:        RuleSaturatedFat,
			part:        func(r nutrition.Record) *nutrition.Amount { return r.SaturatedFat },
			whole:       func(r nutrition.Record) *nutrition.Amount { return r.Calories },
			factor:      caloriesPerGramOfFat,
			limit:       MaxSatFatCaloriePct,
			strict:      true,
			basis:       "of calories",
			wholeName:   "calories",
			requirement: "< 10% of calories",
			passText:    "Meets saturated fat requirement",
			missingText: "Saturated fat or calorie information not found",
		},
		zeroRule{
			name:        RuleTransFat,
			field:       func(r nutrition.Record) *nutrition.Amount { return r.TransFat },
			requirement: "0g",
			passText:    "Meets trans fat requirement",
			missingText: "Trans fat information not found",
		},
		shareRule{
			name:        RuleTotalSugars,
			part:        func(r nutrition.Record) *nutrition.Amount { return r.TotalSugars },
			whole:       func(r nutrition.Record) *nutrition.Amount { return r.ServingWeightGrams },
			factor:      1,
			limit:       MaxSugarWeightPct,
			basis:       "by weight",
			wholeName:   "serving weight",
			requirement: "≤ 35% by weight",
			passText:    "Meets sugar requirement",
			missingText: "Sugar or serving weight information not found",
		},
	}
}

type amountFunc func(nutrition.Record) *nutrition.Amount

// limitRule passes when a single amount is at or below a ceiling.
type limitRule struct {
	name        string
	field       amountFunc
	limit       float64
	unit        string
	requirement string
	passText    string
	missingText string
}

func (l limitRule) Name() string { return l.name }

func (l limitRule) Evaluate(r nutrition.Record) RuleResult {
	v := l.field(r)
	if v == nil {
		return missing(l.name, l.requirement, l.missingText)
	}

	passed := v.Float() <= l.limit
	explanation := l.passText
	if !passed {
		explanation = fmt.Sprintf("Exceeds limit by %s%s", formatNumber(v.Float()-l.limit), l.unit)
	}
	return RuleResult{
		RuleName:    l.name,
		Passed:      passed,
		Actual:      v.String() + l.unit,
		Requirement: l.requirement,
		Explanation: explanation,
	}
}

// shareRule passes when part*factor is a small enough percentage of whole.
type shareRule struct {
	name        string
	part        amountFunc
	whole       amountFunc
	factor      float64
	limit       float64
	strict      bool
	basis       string
	wholeName   string
	requirement string
	passText    string
	missingText string
}

func (s shareRule) Name() string { return s.name }

func (s shareRule) Evaluate(r nutrition.Record) RuleResult {
	part, whole := s.part(r), s.whole(r)
	if part == nil || whole == nil {
		return missing(s.name, s.requirement, s.missingText)
	}

	pct, ok := percentOf(part.Float()*s.factor, whole.Float())
	if !ok {
		return RuleResult{
			RuleName:    s.name,
			Passed:      false,
			Actual:      part.String() + "g",
			Requirement: s.requirement,
			Explanation: fmt.Sprintf("Cannot compute percentage: %s is %s", s.wholeName, whole.String()),
		}
	}

	// Compare the unrounded percentage; only the text is rounded.
	passed := pct <= s.limit
	if s.strict {
		passed = pct < s.limit
	}
	explanation := s.passText
	if !passed {
		explanation = fmt.Sprintf("Exceeds limit by %s%%", strconv.FormatFloat(pct-s.limit, 'f', 1, 64))
	}
	return RuleResult{
		RuleName:    s.name,
		Passed:      passed,
		Actual:      fmt.Sprintf("%sg (%s%% %s)", part.String(), strconv.FormatFloat(pct, 'f', 1, 64), s.basis),
		Requirement: s.requirement,
		Explanation: explanation,
	}
}

// zeroRule passes only when the amount is exactly zero.
type zeroRule struct {
	name        string
	field       amountFunc
	requirement string
	passText    string
	missingText string
}

func (z zeroRule) Name() string { return z.name }

func (z zeroRule) Evaluate(r nutrition.Record) RuleResult {
	v := z.field(r)
	if v == nil {
		return missing(z.name, z.requirement, z.missingText)
	}

	passed := v.Float() == 0
	explanation := z.passText
	if !passed {
		explanation = fmt.Sprintf("Contains %sg trans fat (must be 0g)", v.String())
	}
	return RuleResult{
		RuleName:    z.name,
		Passed:      passed,
		Actual:      v.String() + "g",
		Requirement: z.requirement,
		Explanation: explanation,
	}
}

func missing(name, requirement, explanation string) RuleResult {
	return RuleResult{
		RuleName:    name,
		Passed:      false,
		Actual:      "N/A",
		Requirement: requirement,
		Explanation: explanation,
	}
}

// percentOf returns part/whole*100. A non-positive whole has no
// meaningful share, even for a zero part.
func percentOf(part, whole float64) (float64, bool) {
	if whole <= 0 {
		return 0, false
	}
	return part / whole * 100, true
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
