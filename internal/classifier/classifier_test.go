package classifier_test

import (
	"context"
	"testing"

	"resolvex/backend/internal/classifier"
	"resolvex/backend/internal/config"
	"resolvex/backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultClassifier() *classifier.Keyword {
	p := config.DefaultPolicy()
	return classifier.NewKeyword(p.CategoryModels(), p.PriorityKeywords)
}

func TestKeyword_DefaultTable(t *testing.T) {
	k := defaultClassifier()

	tests := []struct {
		text     string
		category string
		priority models.Priority
	}{
		{"leaking pipe in block A", "maintenance", models.PriorityMedium},
		{"Leaking   PIPE near the lift", "maintenance", models.PriorityMedium},
		{"No power in room 12, the socket sparks", "fire & emergency", models.PriorityCritical},
		{"Someone stole my laptop, theft in hostel", "security", models.PriorityHigh},
		{"wifi keeps dropping", "internet", models.PriorityMedium},
		{"garbage not collected", "cleaning", models.PriorityLow},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			res, err := k.Classify(context.Background(), tt.text)
			require.NoError(t, err)
			require.NotNil(t, res.Category)
			assert.Equal(t, tt.category, *res.Category)
			assert.Equal(t, tt.priority, res.Priority)
		})
	}
}

func TestKeyword_WholeWordsOnly(t *testing.T) {
	k := classifier.NewKeyword([]models.Category{
		{Name: "ventilation", Keywords: []string{"ac"}, DefaultPriority: models.PriorityMedium},
	}, nil)

	res, err := k.Classify(context.Background(), "the back door is stuck")

	require.NoError(t, err)
	assert.Nil(t, res.Category, "'ac' must not match inside 'back'")
	assert.Equal(t, models.PriorityMedium, res.Priority)
}

func TestKeyword_FallbackPriority(t *testing.T) {
	k := classifier.NewKeyword(nil, map[models.Priority][]string{
		models.PriorityHigh:   {"safety"},
		models.PriorityMedium: {"repair"},
	})

	res, err := k.Classify(context.Background(), "Safety rail needs repair")
	require.NoError(t, err)
	assert.Nil(t, res.Category)
	assert.Equal(t, models.PriorityHigh, res.Priority, "most urgent fallback level wins")

	res, err = k.Classify(context.Background(), "nothing recognisable here")
	require.NoError(t, err)
	assert.Nil(t, res.Category)
	assert.Equal(t, models.PriorityMedium, res.Priority)
}

func TestKeyword_FirstCategoryWins(t *testing.T) {
	k := classifier.NewKeyword([]models.Category{
		{Name: "first", Keywords: []string{"door"}, DefaultPriority: models.PriorityLow},
		{Name: "second", Keywords: []string{"door"}, DefaultPriority: models.PriorityHigh},
		{Name: "empty", DefaultPriority: models.PriorityHigh},
	}, nil)

	res, err := k.Classify(context.Background(), "door")

	require.NoError(t, err)
	assert.Equal(t, "first", *res.Category)
	assert.Equal(t, models.PriorityLow, res.Priority)
}

func TestKeyword_Deterministic(t *testing.T) {
	k := defaultClassifier()
	first, _ := k.Classify(context.Background(), "water overflow in washroom")
	for i := 0; i < 20; i++ {
		again, _ := k.Classify(context.Background(), "water overflow in washroom")
		assert.Equal(t, first, again)
	}
}
