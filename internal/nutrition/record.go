package nutrition

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// Amount is a numeric label value. A nil *Amount means the value was not
// found on the label; it is never treated as zero.
type Amount float64

// Float returns the amount as a float64.
func (a Amount) Float() float64 {
	return float64(a)
}

// String formats the amount the shortest way that round-trips.
func (a Amount) String() string {
	return strconv.FormatFloat(float64(a), 'f', -1, 64)
}

// UnmarshalJSON accepts numbers, numeric strings and strings with a unit
// suffix such as "28g" or "140 mg". Anything else leaves the amount unset
// by returning errNotNumeric, which Record.UnmarshalJSON maps to nil.
func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return errNotNumeric
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		v, ok := parseQuantity(s)
		if !ok {
			return errNotNumeric
		}
		*a = Amount(v)
		return nil
	}

	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return errNotNumeric
	}
	*a = Amount(v)
	return nil
}

var errNotNumeric = errors.New("not a numeric amount")

// Amt returns a pointer to an Amount, for building records in code.
func Amt(v float64) *Amount {
	a := Amount(v)
	return &a
}

// Str returns a pointer to s.
func Str(s string) *string {
	return &s
}

// Record holds the fields extracted from a nutrition-facts label.
// Field names match the JSON produced by the extraction prompt.
type Record struct {
	ProductName        *string  `json:"productName"`
	ServingSize        *string  `json:"servingSize"`
	ServingWeightGrams *Amount  `json:"servingWeightGrams"`
	Calories           *Amount  `json:"calories"`
	TotalFat           *Amount  `json:"totalFat"`
	SaturatedFat       *Amount  `json:"saturatedFat"`
	TransFat           *Amount  `json:"transFat"`
	Cholesterol        *Amount  `json:"cholesterol,omitempty"`
	Sodium             *Amount  `json:"sodium"`
	TotalCarbohydrates *Amount  `json:"totalCarbohydrates,omitempty"`
	DietaryFiber       *Amount  `json:"dietaryFiber,omitempty"`
	TotalSugars        *Amount  `json:"totalSugars"`
	AddedSugars        *Amount  `json:"addedSugars,omitempty"`
	Protein            *Amount  `json:"protein"`
	Ingredients        []string `json:"ingredients"`
	Allergens          []string `json:"allergens"`
	AdditionalInfo     *string  `json:"additionalInfo,omitempty"`
}

// Clone returns a deep copy of r.
func (r Record) Clone() Record {
	return Record{
		ProductName:        cloneString(r.ProductName),
		ServingSize:        cloneString(r.ServingSize),
		ServingWeightGrams: cloneAmount(r.ServingWeightGrams),
		Calories:           cloneAmount(r.Calories),
		TotalFat:           cloneAmount(r.TotalFat),
		SaturatedFat:       cloneAmount(r.SaturatedFat),
		TransFat:           cloneAmount(r.TransFat),
		Cholesterol:        cloneAmount(r.Cholesterol),
		Sodium:             cloneAmount(r.Sodium),
		TotalCarbohydrates: cloneAmount(r.TotalCarbohydrates),
		DietaryFiber:       cloneAmount(r.DietaryFiber),
		TotalSugars:        cloneAmount(r.TotalSugars),
		AddedSugars:        cloneAmount(r.AddedSugars),
		Protein:            cloneAmount(r.Protein),
		Ingredients:        slices.Clone(r.Ingredients),
		Allergens:          slices.Clone(r.Allergens),
		AdditionalInfo:     cloneString(r.AdditionalInfo),
	}
}

func cloneAmount(a *Amount) *Amount {
	if a == nil {
		return nil
	}
	return Amt(a.Float())
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	return Str(*s)
}

// UnmarshalJSON decodes a record field by field so that a single
// unreadable amount becomes "unknown" instead of failing the whole record.
func (r *Record) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode nutrition record: %w", err)
	}

	*r = Record{}

	amounts := map[string]**Amount{
		"servingWeightGrams": &r.ServingWeightGrams,
		"calories":           &r.Calories,
		"totalFat":           &r.TotalFat,
		"saturatedFat":       &r.SaturatedFat,
		"transFat":           &r.TransFat,
		"cholesterol":        &r.Cholesterol,
		"sodium":             &r.Sodium,
		"totalCarbohydrates": &r.TotalCarbohydrates,
		"dietaryFiber":       &r.DietaryFiber,
		"totalSugars":        &r.TotalSugars,
		"addedSugars":        &r.AddedSugars,
		"protein":            &r.Protein,
	}
	for key, dst := range amounts {
		msg, ok := raw[key]
		if !ok {
			continue
		}
		var a Amount
		if err := a.UnmarshalJSON(msg); err != nil {
			continue
		}
		*dst = &a
	}

	texts := map[string]**string{
		"productName":    &r.ProductName,
		"servingSize":    &r.ServingSize,
		"additionalInfo": &r.AdditionalInfo,
	}
	for key, dst := range texts {
		msg, ok := raw[key]
		if !ok {
			continue
		}
		var s *string
		if err := json.Unmarshal(msg, &s); err != nil {
			// Models occasionally answer with a number or object here.
			text := strings.TrimSpace(string(msg))
			s = &text
		}
		*dst = s
	}

	r.Ingredients = decodeStrings(raw["ingredients"])
	r.Allergens = decodeStrings(raw["allergens"])
	return nil
}

// decodeStrings reads either a JSON array of strings or a single
// comma-separated string.
func decodeStrings(msg json.RawMessage) []string {
	if len(msg) == 0 {
		return nil
	}
	var list []string
	if err := json.Unmarshal(msg, &list); err == nil {
		return list
	}
	var joined string
	if err := json.Unmarshal(msg, &joined); err != nil || joined == "" {
		return nil
	}
	parts := strings.Split(joined, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// parseQuantity reads a leading decimal number from s, ignoring a trailing
// unit ("28g", "140 mg", "<1g"). It reports false when no number is present.
func parseQuantity(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	s = strings.TrimLeft(s, "<>~≈ ")
	end := 0
	for end < len(s) {
		c := s[end]
		if (c >= '0' && c <= '9') || c == '.' || (end == 0 && c == '-') {
			end++
			continue
		}
		break
	}
	if end == 0 {
		return 0, false
	}
	v, err := strconv.ParseFloat(s[:end], 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
