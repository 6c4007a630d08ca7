package compliance

import (
	"fmt"
	"strings"
	"unicode"
)

// Summary is the headline shown for a verdict.
type Summary struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Icon    string `json:"icon"`
}

// Detail is one row of the per-rule breakdown.
type Detail struct {
	Name        string `json:"name"`
	Passed      bool   `json:"passed"`
	Value       string `json:"value"`
	Requirement string `json:"requirement"`
	Explanation string `json:"explanation"`
	Icon        string `json:"icon"`
}

const (
	iconPass = "✅"
	iconFail = "❌"
)

// Summarize returns the overall status line for a verdict.
func Summarize(v *Verdict) Summary {
	if v.IsCompliant {
		return Summary{
			Status:  "compliant",
			Message: "This product meets all SSIS compliance requirements!",
			Icon:    iconPass,
		}
	}
	return Summary{
		Status:  "non-compliant",
		Message: fmt.Sprintf("This product fails %d of %d SSIS requirements.", len(v.Failed), v.Total()),
		Icon:    iconFail,
	}
}

// Details lists passed rules followed by failed rules.
func Details(v *Verdict) []Detail {
	details := make([]Detail, 0, v.Total())
	for _, group := range [][]RuleResult{v.Passed, v.Failed} {
		for _, r := range group {
			icon := iconFail
			if r.Passed {
				icon = iconPass
			}
			details = append(details, Detail{
				Name:        Humanize(r.RuleName),
				Passed:      r.Passed,
				Value:       r.Actual,
				Requirement: r.Requirement,
				Explanation: r.Explanation,
				Icon:        icon,
			})
		}
	}
	return details
}

// Issues returns "Name: explanation" for each failed rule.
func Issues(v *Verdict) []string {
	issues := make([]string, 0, len(v.Failed))
	for _, r := range v.Failed {
		issues = append(issues, Humanize(r.RuleName)+": "+r.Explanation)
	}
	return issues
}

// Humanize turns a camel-case rule name into a title: "totalFat" becomes
// "Total Fat".
func Humanize(name string) string {
	if name == "" {
		return ""
	}
	var b strings.Builder
	for i, r := range name {
		switch {
		case i == 0:
			b.WriteRune(unicode.ToUpper(r))
		case unicode.IsUpper(r):
			b.WriteRune(' ')
			b.WriteRune(r)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Report renders a verdict as plain text.
func Report(productName string, v *Verdict, showDetails bool) string {
	var b strings.Builder
	summary := Summarize(v)

	b.WriteString("SSIS Compliance Results\n")
	b.WriteString(strings.Repeat("=", 50) + "\n")
	if productName != "" {
		fmt.Fprintf(&b, "Product: %s\n", productName)
	}
	fmt.Fprintf(&b, "%s %s\n", summary.Icon, summary.Message)

	if showDetails {
		b.WriteString("\nDetailed Requirements Check:\n")
		for _, d := range Details(v) {
			fmt.Fprintf(&b, "  %s %s\n", d.Icon, d.Name)
			fmt.Fprintf(&b, "     Actual:   %s\n", d.Value)
			fmt.Fprintf(&b, "     Required: %s\n", d.Requirement)
			fmt.Fprintf(&b, "     %s\n", d.Explanation)
		}
	}

	if !v.IsCompliant {
		b.WriteString("\nIssues Found:\n")
		for _, issue := range Issues(v) {
			fmt.Fprintf(&b, "  - %s\n", issue)
		}
	}
	return b.String()
}
