package nutrition

import (
	"fmt"
	"sort"
)

// Sample names accepted by SampleRecord.
const (
	SampleCompliant    = "compliant"
	SampleNonCompliant = "nonCompliant"
)

// Samples returns the demo records used for trying the checker without a
// camera or a model key.
func Samples() map[string]Record {
	return map[string]Record{
		SampleCompliant: {
			ProductName:        Str("Healthy Snack Bar"),
			ServingSize:        Str("1 bar (30g)"),
			ServingWeightGrams: Amt(30),
			Calories:           Amt(150),
			TotalFat:           Amt(5),
			SaturatedFat:       Amt(1),
			TransFat:           Amt(0),
			Sodium:             Amt(100),
			TotalSugars:        Amt(8),
			Protein:            Amt(4),
		},
		SampleNonCompliant: {
			ProductName:        Str("High Sugar Cookie"),
			ServingSize:        Str("2 cookies (40g)"),
			ServingWeightGrams: Amt(40),
			Calories:           Amt(250),
			TotalFat:           Amt(12),
			SaturatedFat:       Amt(6),
			TransFat:           Amt(0.5),
			Sodium:             Amt(220),
			TotalSugars:        Amt(18),
			Protein:            Amt(3),
		},
	}
}

// SampleRecord looks up a demo record by name.
func SampleRecord(name string) (Record, error) {
	samples := Samples()
	if r, ok := samples[name]; ok {
		return r, nil
	}
	names := make([]string, 0, len(samples))
	for n := range samples {
		names = append(names, n)
	}
	sort.Strings(names)
	return Record{}, fmt.Errorf("unknown sample %q (valid: %v)", name, names)
}
