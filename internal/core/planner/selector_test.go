package planner

import (
	"fmt"
	"math/rand"
	"testing"

	"meal-planner/internal/core/recipe"
	"meal-planner/internal/pkg/common"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lunchSlot(kcal, protein float64) Slot {
	return Slot{
		Date:           weekStart,
		MealType:       common.MealLunch,
		TargetCalories: kcal,
		TargetProtein:  protein,
		Season:         recipe.ContextFor(weekStart, nil),
	}
}

func TestNutritionFit(t *testing.T) {
	assert.Equal(t, 100.0, nutritionFit(500, 500))
	assert.Equal(t, 90.0, nutritionFit(550, 500))
	assert.Equal(t, 90.0, nutritionFit(450, 500))
	assert.Equal(t, 0.0, nutritionFit(1200, 500))
	assert.Equal(t, 100.0, nutritionFit(300, 0))
}

func TestSelector_EmptyPool(t *testing.T) {
	s := NewSelector(nil, NewTracker(), rand.New(rand.NewSource(1)), recipe.MinExplicitSuitable)
	r, ok := s.Select(lunchSlot(700, 40))
	assert.False(t, ok)
	assert.Nil(t, r)
}

func TestSelector_PicksAmongTopCandidates(t *testing.T) {
	var pool []common.Recipe
	for i := 0; i < 20; i++ {
		pool = append(pool, fixtureRecipe("lunch", "lunch", i, 700+float64(i*20), 40))
	}

	for seed := int64(0); seed < 50; seed++ {
		s := NewSelector(pool, NewTracker(), rand.New(rand.NewSource(seed)), recipe.MinExplicitSuitable)
		r, ok := s.Select(lunchSlot(700, 40))
		require.True(t, ok)

		var idx int
		_, err := fmt.Sscanf(r.ID, "lunch-%d", &idx)
		require.NoError(t, err)
		assert.Less(t, idx, TopCandidates, "seed %d picked rank %d", seed, idx)
	}
}

func TestSelector_SeededIsReproducible(t *testing.T) {
	pool := fixturePool()
	pick := func() []string {
		s := NewSelector(pool, NewTracker(), rand.New(rand.NewSource(42)), recipe.MinExplicitSuitable)
		var ids []string
		for i := 0; i < 5; i++ {
			r, ok := s.Select(lunchSlot(700, 40))
			require.True(t, ok)
			ids = append(ids, r.ID)
		}
		return ids
	}
	assert.Equal(t, pick(), pick())
}

func TestSelector_RespectsExclusionsAndWhitelist(t *testing.T) {
	pool := fixturePool()
	s := NewSelector(pool, NewTracker(), rand.New(rand.NewSource(7)), recipe.MinExplicitSuitable)

	slot := lunchSlot(700, 40)
	slot.Whitelist = map[string]bool{"lunch-03": true, "lunch-04": true}
	slot.Excluded = map[string]bool{"lunch-03": true}

	r, ok := s.Select(slot)
	require.True(t, ok)
	assert.Equal(t, "lunch-04", r.ID)

	// 白名單今天都吃過：改選 Overflow，再不行就不限制
	slot.Excluded["lunch-04"] = true
	slot.Overflow = map[string]bool{"lunch-07": true}
	r, ok = s.Select(slot)
	require.True(t, ok)
	assert.Equal(t, "lunch-07", r.ID)

	slot.Overflow = nil
	r, ok = s.Select(slot)
	require.True(t, ok)
	assert.NotContains(t, []string{"lunch-03", "lunch-04"}, r.ID)
	assert.True(t, recipe.IsSuitable(r, common.MealLunch))

	for _, candidate := range pool {
		slot.Excluded[candidate.ID] = true
	}
	_, ok = s.Select(slot)
	assert.False(t, ok)
}

func TestSelector_RecordsUsage(t *testing.T) {
	tracker := NewTracker()
	s := NewSelector(fixturePool(), tracker, rand.New(rand.NewSource(3)), recipe.MinExplicitSuitable)

	r, ok := s.Select(lunchSlot(700, 40))
	require.True(t, ok)
	assert.Equal(t, 1, tracker.Usage(r.ID))
	assert.True(t, tracker.IngredientUsedToday(s.MainIngredient(r)))
}

func TestSelector_OnlySuitableMealTypes(t *testing.T) {
	s := NewSelector(fixturePool(), NewTracker(), rand.New(rand.NewSource(9)), recipe.MinExplicitSuitable)
	for i := 0; i < 10; i++ {
		r, ok := s.Select(lunchSlot(700, 40))
		require.True(t, ok)
		assert.Contains(t, r.MealTypes, "lunch")
	}
}

func TestSelector_ScoreWeights(t *testing.T) {
	tracker := NewTracker()
	s := NewSelector(nil, tracker, rand.New(rand.NewSource(1)), recipe.MinExplicitSuitable)
	r := fixtureRecipe("lunch", "lunch", 0, 700, 40)

	// 完全符合、未使用、季節中性：0.4×100 + 0.4×100 + 0.2×0
	assert.InDelta(t, 80.0, s.Score(&r, lunchSlot(700, 40)), 1e-9)

	tracker.Record(r.ID, "")
	assert.InDelta(t, 80.0-0.4*70, s.Score(&r, lunchSlot(700, 40)), 1e-9)
}
