package planner

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
	_ "time/tzdata"

	"meal-planner/internal/pkg/common"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type serviceFixture struct {
	profiles   *fakeProfiles
	recipes    *fakeRecipes
	runs       *fakeRuns
	store      *fakeStore
	sink       *fakeSink
	candidates *fakeCandidates
	structure  *fakeStructure
	weather    *fakeWeather
	opts       Options
}

func newServiceFixture(t *testing.T) *serviceFixture {
	common.SetLogger(zaptest.NewLogger(t))
	return &serviceFixture{
		profiles: &fakeProfiles{profile: fixtureProfile()},
		recipes:  &fakeRecipes{recipes: fixturePool()},
		runs:     &fakeRuns{},
		store:    newFakeStore(),
		sink:     &fakeSink{},
		opts:     Options{AllowGenericFallback: true},
	}
}

func (f *serviceFixture) service() *Service {
	deps := Dependencies{
		Profiles: f.profiles,
		Recipes:  f.recipes,
		Runs:     f.runs,
		Store:    f.store,
		Sink:     f.sink,
	}
	if f.candidates != nil {
		deps.Candidates = f.candidates
	}
	if f.structure != nil {
		deps.Structure = f.structure
	}
	if f.weather != nil {
		deps.Weather = f.weather
	}
	return NewService(deps, f.opts)
}

func seed(v int64) *int64 { return &v }

func generate(t *testing.T, f *serviceFixture, useAI bool) *GenerateResult {
	t.Helper()
	res, err := f.service().Generate(context.Background(), GenerateRequest{
		UserID:    "user-1",
		WeekStart: weekStart,
		Seed:      seed(11),
		UseAI:     useAI,
	})
	require.NoError(t, err)
	return res
}

func TestGenerate_RestWeekHasThreeMealsPerDay(t *testing.T) {
	f := newServiceFixture(t)
	res := generate(t, f, false)

	assert.Equal(t, StrategyDeterministic, res.Strategy)
	assert.Len(t, res.Items, 21)
	assert.Equal(t, 0, countSnacks(res.Items))
	for _, day := range common.DateRange(weekStart, 7) {
		for _, mt := range common.MainMeals {
			assert.Len(t, itemsOf(res.Items, day, mt), 1, "%s %s", day.Format(common.DateLayout), mt)
		}
	}
	for _, item := range res.Items {
		require.NotNil(t, item.RecipeID)
		assert.NotEmpty(t, item.MainIngredient)
		assert.Greater(t, item.Macros.Calories, 0.0)
	}

	planID, stored, err := f.service().GetPlan(context.Background(), "user-1", weekStart)
	require.NoError(t, err)
	assert.Equal(t, res.PlanID, planID)
	assert.Len(t, stored, 21)
}

func TestGenerate_NoRecipeTwiceInOneDay(t *testing.T) {
	f := newServiceFixture(t)
	res := generate(t, f, false)

	seen := make(map[string]bool)
	for _, item := range res.Items {
		key := item.DateKey() + "/" + *item.RecipeID
		assert.False(t, seen[key], key)
		seen[key] = true
	}
}

func TestGenerate_SameSeedSamePlan(t *testing.T) {
	a := generate(t, newServiceFixture(t), false)
	b := generate(t, newServiceFixture(t), false)

	require.Len(t, b.Items, len(a.Items))
	for i := range a.Items {
		assert.Equal(t, *a.Items[i].RecipeID, *b.Items[i].RecipeID)
	}
}

func TestGenerate_LunchtimeRun(t *testing.T) {
	f := newServiceFixture(t)
	runDay := weekStart.AddDate(0, 0, 2)
	f.runs.runs = []common.RunEvent{{ID: "r1", StartTime: runDay.Add(12*time.Hour + 30*time.Minute), DistanceKm: 8}}

	res := generate(t, f, false)

	lunch := itemsOf(res.Items, runDay, common.MealLunch)
	require.Len(t, lunch, 1)
	assert.True(t, strings.HasPrefix(lunch[0].NutritionalContext, RecoveryMarker))
	assert.Len(t, itemsOf(res.Items, runDay, common.MealPreRunSnack), 1)
	assert.Empty(t, itemsOf(res.Items, runDay, common.MealPostRunSnack))
	assert.Equal(t, 1, countSnacks(res.Items))

	req := res.Requirements[2]
	assert.Equal(t, 420.0, req.RunCalories)
}

func TestGenerate_RunTimesUseProfileTimezone(t *testing.T) {
	f := newServiceFixture(t)
	f.profiles.profile.Timezone = "Asia/Tokyo"
	lunchDay := weekStart.AddDate(0, 0, 1)
	lateDay := weekStart.AddDate(0, 0, 3)
	f.runs.runs = []common.RunEvent{
		// 03:30 UTC = 12:30 東京
		{ID: "r1", StartTime: lunchDay.Add(3*time.Hour + 30*time.Minute), DistanceKm: 8},
		// 20:00 UTC 已是東京隔天 05:00
		{ID: "r2", StartTime: lateDay.Add(20 * time.Hour), DistanceKm: 6},
	}

	res := generate(t, f, false)

	lunch := itemsOf(res.Items, lunchDay, common.MealLunch)
	require.Len(t, lunch, 1)
	assert.True(t, strings.HasPrefix(lunch[0].NutritionalContext, RecoveryMarker))
	assert.Empty(t, itemsOf(res.Items, lunchDay, common.MealPostRunSnack))

	assert.Empty(t, itemsOf(res.Items, lateDay, common.MealPreRunSnack))
	nextDay := lateDay.AddDate(0, 0, 1)
	assert.Len(t, itemsOf(res.Items, nextDay, common.MealPreRunSnack), 1)
	assert.Len(t, itemsOf(res.Items, nextDay, common.MealPostRunSnack), 1)
}

func TestGenerate_MorningLongRun(t *testing.T) {
	f := newServiceFixture(t)
	runDay := weekStart.AddDate(0, 0, 4)
	f.runs.runs = []common.RunEvent{{ID: "r1", StartTime: runDay.Add(10 * time.Hour), DistanceKm: 6}}

	res := generate(t, f, false)

	pre := itemsOf(res.Items, runDay, common.MealPreRunSnack)
	post := itemsOf(res.Items, runDay, common.MealPostRunSnack)
	require.Len(t, pre, 1)
	require.Len(t, post, 1)
	assert.True(t, PreRunBand.Contains(pre[0].Macros.Calories))
	assert.True(t, PostRunBand.Contains(post[0].Macros.Calories))

	lunch := itemsOf(res.Items, runDay, common.MealLunch)
	require.Len(t, lunch, 1)
	assert.False(t, strings.HasPrefix(lunch[0].NutritionalContext, RecoveryMarker))
}

func TestGenerate_RunDayWithoutSnackRecipesUsesFallback(t *testing.T) {
	f := newServiceFixture(t)
	var noSnacks []common.Recipe
	for _, r := range fixturePool() {
		if !strings.HasPrefix(r.ID, "snack") {
			noSnacks = append(noSnacks, r)
		}
	}
	f.recipes.recipes = noSnacks
	runDay := weekStart.AddDate(0, 0, 1)
	f.runs.runs = []common.RunEvent{{ID: "r1", StartTime: runDay.Add(7 * time.Hour), DistanceKm: 12}}

	res := generate(t, f, false)

	pre := itemsOf(res.Items, runDay, common.MealPreRunSnack)
	require.Len(t, pre, 1)
	assert.Nil(t, pre[0].RecipeID)
	assert.NotEmpty(t, pre[0].CustomTitle)
	assert.Len(t, itemsOf(res.Items, runDay, common.MealPostRunSnack), 1)
}

func TestGenerate_HighIntensityBatchCooking(t *testing.T) {
	f := newServiceFixture(t)
	f.profiles.profile.BatchCooking = common.BatchCookingSettings{Enabled: true, Intensity: "high", People: 2}

	res := generate(t, f, false)

	dinners := make(map[string]int)
	for _, item := range res.Items {
		if item.MealType == common.MealDinner {
			dinners[*item.RecipeID]++
		}
	}
	assert.Len(t, dinners, 1)
	for _, n := range dinners {
		assert.Equal(t, 7, n)
	}
}

func TestGenerate_BatchCookingSmallMultiTaggedCatalogFillsEverySlot(t *testing.T) {
	var pool []common.Recipe
	for i := 0; i < 6; i++ {
		r := fixtureRecipe("any", "breakfast", i, 500+float64(i*20), 30)
		r.MealTypes = []string{"breakfast", "lunch", "dinner"}
		pool = append(pool, r)
	}

	for _, intensity := range []string{"low", "medium", "high"} {
		for s := int64(0); s < 40; s++ {
			f := newServiceFixture(t)
			f.recipes.recipes = pool
			f.profiles.profile.BatchCooking = common.BatchCookingSettings{Enabled: true, Intensity: intensity}

			res, err := f.service().Generate(context.Background(), GenerateRequest{
				UserID:    "user-1",
				WeekStart: weekStart,
				Seed:      seed(s),
			})
			require.NoError(t, err)
			require.Len(t, res.Items, 21, "intensity=%s seed=%d", intensity, s)

			for _, day := range common.DateRange(weekStart, 7) {
				seen := make(map[string]bool)
				for _, mt := range common.MainMeals {
					items := itemsOf(res.Items, day, mt)
					require.Len(t, items, 1, "intensity=%s seed=%d %s %s", intensity, s, day.Format(common.DateLayout), mt)
					require.NotNil(t, items[0].RecipeID)
					assert.False(t, seen[*items[0].RecipeID], "recipe repeated within one day")
					seen[*items[0].RecipeID] = true
				}
			}
		}
	}
}

func TestGenerate_AIDuplicateCandidatesCollapse(t *testing.T) {
	f := newServiceFixture(t)
	first := fixtureRecipe("ai", "dinner", 0, 680, 45)
	first.ID, first.Title = "", "Herb chicken"
	second := first
	second.Title = "Chicken with herbs"
	f.candidates = &fakeCandidates{recipes: []common.Recipe{first, second}}

	res := generate(t, f, true)

	assert.Len(t, f.sink.saved, 1)
	assert.True(t, f.sink.saved[0].IsAIGenerated)
	assert.Equal(t, 1, res.DroppedDuplicates)
	assert.Equal(t, StrategyDeterministic, res.Strategy, "no structure generator configured")
}

func TestGenerate_AICandidateMatchingCatalogIsDropped(t *testing.T) {
	f := newServiceFixture(t)
	copyOfCatalog := fixtureRecipe("lunch", "lunch", 3, 730, 43)
	copyOfCatalog.ID, copyOfCatalog.Title = "", "Renamed lunch"
	f.candidates = &fakeCandidates{recipes: []common.Recipe{copyOfCatalog}}

	res := generate(t, f, true)

	assert.Empty(t, f.sink.saved)
	assert.Equal(t, 1, res.DroppedDuplicates)
}

func TestGenerate_AIStructure(t *testing.T) {
	f := newServiceFixture(t)
	inline := fixtureRecipe("fresh", "dinner", 0, 690, 44)
	inline.ID, inline.Title = "", "Fresh dinner"
	duplicate := fixtureRecipe("lunch", "lunch", 3, 730, 43)
	duplicate.ID = ""

	day0, day1 := weekStart, weekStart.AddDate(0, 0, 1)
	f.structure = &fakeStructure{structure: &PlanStructure{Days: []DayStructure{
		{Date: day0, Meals: []MealRef{
			{MealType: common.MealBreakfast, RecipeID: "breakfast-05"},
			{MealType: common.MealLunch, Recipe: &duplicate},
			{MealType: common.MealDinner, Recipe: &inline},
			{MealType: common.MealPreRunSnack, RecipeID: "snack-00"},
		}},
		{Date: day1, Meals: []MealRef{
			{MealType: common.MealBreakfast, RecipeID: "breakfast-05"},
			{MealType: common.MealLunch, RecipeID: "no-such-recipe"},
		}},
	}}}

	res := generate(t, f, true)

	assert.Equal(t, StrategyAI, res.Strategy)
	assert.Len(t, res.Items, 21)
	assert.Equal(t, 0, countSnacks(res.Items), "AI snacks are ignored on rest days")
	assert.Equal(t, 1, res.DroppedDuplicates)

	b0 := itemsOf(res.Items, day0, common.MealBreakfast)
	require.Len(t, b0, 1)
	assert.Equal(t, "breakfast-05", *b0[0].RecipeID)

	// 已用過的引用改用同分類、未用過的替代品
	b1 := itemsOf(res.Items, day1, common.MealBreakfast)
	require.Len(t, b1, 1)
	assert.Equal(t, "breakfast-00", *b1[0].RecipeID)

	d0 := itemsOf(res.Items, day0, common.MealDinner)
	require.Len(t, d0, 1)
	require.Len(t, f.sink.saved, 1)
	assert.Equal(t, f.sink.saved[0].ID, *d0[0].RecipeID)
	assert.True(t, d0[0].IsAIGenerated)

	l1 := itemsOf(res.Items, day1, common.MealLunch)
	require.Len(t, l1, 1)
	assert.True(t, strings.HasPrefix(*l1[0].RecipeID, "lunch-"))
}

func TestGenerate_AIStructureFailureFallsBack(t *testing.T) {
	f := newServiceFixture(t)
	f.structure = &fakeStructure{err: errors.New("timeout")}
	f.candidates = &fakeCandidates{err: errors.New("boom")}

	res := generate(t, f, true)

	assert.Equal(t, StrategyDeterministic, res.Strategy)
	assert.Len(t, res.Items, 21)
}

func TestGenerate_StrategiesEmitSameStructure(t *testing.T) {
	runDay := weekStart.AddDate(0, 0, 3)
	runs := []common.RunEvent{{ID: "r1", StartTime: runDay.Add(9 * time.Hour), DistanceKm: 10}}

	det := newServiceFixture(t)
	det.runs.runs = runs
	detRes := generate(t, det, false)

	ai := newServiceFixture(t)
	ai.runs.runs = runs
	ai.structure = &fakeStructure{structure: &PlanStructure{Days: []DayStructure{
		{Date: weekStart, Meals: []MealRef{{MealType: common.MealDinner, RecipeID: "dinner-07"}}},
	}}}
	aiRes := generate(t, ai, true)

	require.Len(t, aiRes.Items, len(detRes.Items))
	for i := range detRes.Items {
		assert.Equal(t, detRes.Items[i].DateKey(), aiRes.Items[i].DateKey())
		assert.Equal(t, detRes.Items[i].MealType, aiRes.Items[i].MealType)
	}
}

func TestGenerate_WeatherLookup(t *testing.T) {
	f := newServiceFixture(t)
	f.profiles.profile.Latitude = common.Float(25.03)
	f.profiles.profile.Longitude = common.Float(121.56)
	f.weather = &fakeWeather{err: errors.New("unavailable")}

	res := generate(t, f, false)
	assert.Len(t, res.Items, 21)
	assert.Equal(t, 1, f.weather.calls)
}

func TestGenerate_Errors(t *testing.T) {
	t.Run("profile not found", func(t *testing.T) {
		f := newServiceFixture(t)
		f.profiles.err = common.ErrProfileNotFound
		_, err := f.service().Generate(context.Background(), GenerateRequest{UserID: "u", WeekStart: weekStart})
		require.Error(t, err)
		assert.Equal(t, common.KindUserAction, common.KindOf(err))
	})

	t.Run("missing bmr without fallback", func(t *testing.T) {
		f := newServiceFixture(t)
		f.profiles.profile.BMR = nil
		f.opts.AllowGenericFallback = false
		_, err := f.service().Generate(context.Background(), GenerateRequest{UserID: "u", WeekStart: weekStart})
		assert.ErrorIs(t, err, common.ErrMissingProfileData)
		assert.Equal(t, common.KindUserAction, common.KindOf(err))
	})

	t.Run("missing bmr with fallback", func(t *testing.T) {
		f := newServiceFixture(t)
		f.profiles.profile.BMR = nil
		res := generate(t, f, false)
		assert.True(t, res.GenericTargets)
		assert.Equal(t, 2000.0, res.Requirements[0].TargetCalories)
	})

	t.Run("empty catalog", func(t *testing.T) {
		f := newServiceFixture(t)
		f.recipes.recipes = nil
		_, err := f.service().Generate(context.Background(), GenerateRequest{UserID: "u", WeekStart: weekStart})
		assert.ErrorIs(t, err, common.ErrEmptyRecipePool)
		assert.Equal(t, common.KindDataProblem, common.KindOf(err))
	})

	t.Run("persistence failure", func(t *testing.T) {
		f := newServiceFixture(t)
		f.store.replaceErr = errors.New("disk full")
		_, err := f.service().Generate(context.Background(), GenerateRequest{UserID: "u", WeekStart: weekStart})
		assert.ErrorIs(t, err, common.ErrPersistenceFailure)
		assert.Equal(t, common.KindTransient, common.KindOf(err))
	})

	t.Run("missing user id", func(t *testing.T) {
		f := newServiceFixture(t)
		_, err := f.service().Generate(context.Background(), GenerateRequest{WeekStart: weekStart})
		assert.ErrorIs(t, err, common.ErrInvalidRequest)
	})

	t.Run("plan not found", func(t *testing.T) {
		f := newServiceFixture(t)
		_, _, err := f.service().GetPlan(context.Background(), "u", weekStart)
		assert.ErrorIs(t, err, common.ErrPlanNotFound)
	})
}
