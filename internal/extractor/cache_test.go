package extractor

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ssis-checker/internal/nutrition"
)

type countingExtractor struct {
	calls int
	err   error
}

func (c *countingExtractor) Extract(ctx context.Context, image []byte, mimeType string) (*Extraction, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return &Extraction{Record: nutrition.Record{Calories: nutrition.Amt(float64(len(image)))}}, nil
}

func TestCachingExtractor(t *testing.T) {
	next := &countingExtractor{}
	ex := WithCache(next, 0, quietLogger())
	ctx := context.Background()

	first, err := ex.Extract(ctx, []byte("abc"), "image/jpeg")
	require.NoError(t, err)
	second, err := ex.Extract(ctx, []byte("abc"), "image/jpeg")
	require.NoError(t, err)
	_, err = ex.Extract(ctx, []byte("abcd"), "image/jpeg")
	require.NoError(t, err)

	assert.Equal(t, 2, next.calls)
	assert.Equal(t, first.Record, second.Record)

	stats := ex.GetCacheStats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(2), stats.Misses)
	assert.Equal(t, 2, stats.Size)
	assert.InDelta(t, 1.0/3.0, stats.HitRate, 1e-9)

	ex.ClearCache()
	assert.Equal(t, CacheStats{}, ex.GetCacheStats())
}

func TestCachingExtractorDoesNotCacheErrors(t *testing.T) {
	boom := errors.New("model down")
	next := &countingExtractor{err: boom}
	ex := WithCache(next, 0, quietLogger())

	for i := 0; i < 2; i++ {
		_, err := ex.Extract(context.Background(), []byte("abc"), "image/jpeg")
		assert.ErrorIs(t, err, boom)
	}
	assert.Equal(t, 2, next.calls)
}

func TestCachingExtractorEvictsLeastRecentlyUsed(t *testing.T) {
	next := &countingExtractor{}
	ex := WithCache(next, 2, quietLogger())
	ctx := context.Background()

	for _, img := range []string{"a", "bb", "a", "ccc"} {
		_, err := ex.Extract(ctx, []byte(img), "image/png")
		require.NoError(t, err)
	}
	stats := ex.GetCacheStats()
	assert.Equal(t, 2, stats.Size)
	assert.Equal(t, int64(1), stats.Evictions)

	// "bb" was least recently used, so it is fetched again; "a" is still cached.
	_, err := ex.Extract(ctx, []byte("bb"), "image/png")
	require.NoError(t, err)
	_, err = ex.Extract(ctx, []byte("ccc"), "image/png")
	require.NoError(t, err)
	assert.Equal(t, 4, next.calls)
}

type listExtractor struct{}

func (listExtractor) Extract(context.Context, []byte, string) (*Extraction, error) {
	return &Extraction{Record: nutrition.Record{
		ProductName: nutrition.Str("Trail Mix"),
		Calories:    nutrition.Amt(180),
		Ingredients: []string{"peanuts", "raisins"},
		Allergens:   []string{"peanuts"},
	}}, nil
}

func TestCachingExtractorReturnsIndependentCopies(t *testing.T) {
	ex := WithCache(listExtractor{}, 0, quietLogger())
	ctx := context.Background()

	first, err := ex.Extract(ctx, []byte("label"), "image/jpeg")
	require.NoError(t, err)
	first.Record.Ingredients[0] = "almonds"
	first.Record.Allergens = append(first.Record.Allergens[:0], "tree nuts")
	*first.Record.Calories = 1
	*first.Record.ProductName = "changed"

	second, err := ex.Extract(ctx, []byte("label"), "image/jpeg")
	require.NoError(t, err)
	assert.Equal(t, []string{"peanuts", "raisins"}, second.Record.Ingredients)
	assert.Equal(t, []string{"peanuts"}, second.Record.Allergens)
	assert.Equal(t, 180.0, second.Record.Calories.Float())
	assert.Equal(t, "Trail Mix", second.Record.Name())

	second.Record.Ingredients[1] = "chocolate"
	third, err := ex.Extract(ctx, []byte("label"), "image/jpeg")
	require.NoError(t, err)
	assert.Equal(t, "raisins", third.Record.Ingredients[1])
	assert.Equal(t, int64(2), ex.GetCacheStats().Hits)
}

func TestNewStatic(t *testing.T) {
	ex, err := New(Config{Type: "static", Sample: nutrition.SampleNonCompliant}, quietLogger())
	require.NoError(t, err)

	got, err := ex.Extract(context.Background(), []byte{1}, "image/png")
	require.NoError(t, err)
	assert.Equal(t, "High Sugar Cookie", got.Record.Name())
	assert.Contains(t, got.RawText, `"transFat":0.5`)

	_, err = New(Config{Type: "static", Sample: "nope"}, quietLogger())
	assert.Error(t, err)

	_, err = New(Config{Type: "openai"}, quietLogger())
	assert.Error(t, err)

	_, err = New(Config{Type: "carrier-pigeon"}, quietLogger())
	assert.ErrorIs(t, err, ErrUnsupportedProvider)
}
