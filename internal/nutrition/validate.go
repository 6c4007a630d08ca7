package nutrition

// Completeness describes how many of the core label fields were extracted.
type Completeness struct {
	IsValid       bool     `json:"isValid"`
	MissingFields []string `json:"missingFields"`
	Percent       float64  `json:"completeness"`
}

// requiredFields are the values every readable label carries.
var requiredFields = []string{"calories", "totalFat", "sodium", "totalCarbohydrates", "protein"}

// Validate reports which of the core fields are missing from the record.
func (r Record) Validate() Completeness {
	present := map[string]bool{
		"calories":           r.Calories != nil,
		"totalFat":           r.TotalFat != nil,
		"sodium":             r.Sodium != nil,
		"totalCarbohydrates": r.TotalCarbohydrates != nil,
		"protein":            r.Protein != nil,
	}

	missing := make([]string, 0, len(requiredFields))
	for _, field := range requiredFields {
		if !present[field] {
			missing = append(missing, field)
		}
	}

	total := float64(len(requiredFields))
	return Completeness{
		IsValid:       len(missing) == 0,
		MissingFields: missing,
		Percent:       (total - float64(len(missing))) / total * 100,
	}
}

// Name returns the product name or a placeholder.
func (r Record) Name() string {
	if r.ProductName == nil || *r.ProductName == "" {
		return "Unknown product"
	}
	return *r.ProductName
}
