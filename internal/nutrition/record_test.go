package nutrition

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordUnmarshalTreatsNullAsAbsent(t *testing.T) {
	var r Record
	err := json.Unmarshal([]byte(`{"productName":"Bar","calories":null,"sodium":140,"transFat":0}`), &r)
	require.NoError(t, err)

	assert.Nil(t, r.Calories)
	require.NotNil(t, r.Sodium)
	assert.Equal(t, 140.0, r.Sodium.Float())
	require.NotNil(t, r.TransFat, "zero must be kept as a known value")
	assert.Equal(t, 0.0, r.TransFat.Float())
	assert.Equal(t, "Bar", r.Name())
}

func TestRecordUnmarshalTolerantAmounts(t *testing.T) {
	tests := []struct {
		name string
		json string
		want *Amount
	}{
		{"number", `{"totalFat": 12.5}`, Amt(12.5)},
		{"numeric string", `{"totalFat": "12.5"}`, Amt(12.5)},
		{"unit suffix", `{"totalFat": "12.5g"}`, Amt(12.5)},
		{"spaced unit", `{"totalFat": "140 mg"}`, Amt(140)},
		{"less than", `{"totalFat": "<1g"}`, Amt(1)},
		{"empty string", `{"totalFat": ""}`, nil},
		{"words", `{"totalFat": "not visible"}`, nil},
		{"object", `{"totalFat": {"value": 3}}`, nil},
		{"missing", `{}`, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var r Record
			require.NoError(t, json.Unmarshal([]byte(tt.json), &r))
			assert.Equal(t, tt.want, r.TotalFat)
		})
	}
}

func TestRecordUnmarshalIngredients(t *testing.T) {
	var r Record
	require.NoError(t, json.Unmarshal([]byte(`{"ingredients":["oats","honey"],"allergens":"milk, soy"}`), &r))

	assert.Equal(t, []string{"oats", "honey"}, r.Ingredients)
	assert.Equal(t, []string{"milk", "soy"}, r.Allergens)
}

func TestRecordUnmarshalRejectsNonObject(t *testing.T) {
	var r Record
	assert.Error(t, json.Unmarshal([]byte(`[1,2,3]`), &r))
}

func TestRecordMarshalKeepsFieldNames(t *testing.T) {
	r := Record{Calories: Amt(150), ServingWeightGrams: Amt(30)}
	data, err := json.Marshal(r)
	require.NoError(t, err)

	var back map[string]any
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, 150.0, back["calories"])
	assert.Equal(t, 30.0, back["servingWeightGrams"])
	assert.Contains(t, back, "sodium")
	assert.Nil(t, back["sodium"])
}

func TestValidate(t *testing.T) {
	c := Record{}.Validate()
	assert.False(t, c.IsValid)
	assert.Equal(t, requiredFields, c.MissingFields)
	assert.Equal(t, 0.0, c.Percent)

	r := Record{
		Calories:           Amt(100),
		TotalFat:           Amt(1),
		Sodium:             Amt(5),
		TotalCarbohydrates: Amt(20),
	}
	c = r.Validate()
	assert.False(t, c.IsValid)
	assert.Equal(t, []string{"protein"}, c.MissingFields)
	assert.InDelta(t, 80.0, c.Percent, 1e-9)
}

func TestSampleRecord(t *testing.T) {
	r, err := SampleRecord(SampleCompliant)
	require.NoError(t, err)
	assert.Equal(t, "Healthy Snack Bar", r.Name())

	_, err = SampleRecord("missing")
	assert.ErrorContains(t, err, "unknown sample")
}

func TestRecordClone(t *testing.T) {
	orig, err := SampleRecord(SampleNonCompliant)
	require.NoError(t, err)
	orig.Ingredients = []string{"flour", "sugar"}

	clone := orig.Clone()
	assert.Equal(t, orig, clone)

	*clone.Calories = 1
	*clone.ProductName = "Other"
	clone.Ingredients[0] = "oats"
	assert.Equal(t, 250.0, orig.Calories.Float())
	assert.Equal(t, "High Sugar Cookie", orig.Name())
	assert.Equal(t, "flour", orig.Ingredients[0])

	assert.Equal(t, Record{}, Record{}.Clone())
}
