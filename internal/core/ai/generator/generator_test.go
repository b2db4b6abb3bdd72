package generator

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"meal-planner/internal/core/ai/cache"
	"meal-planner/internal/core/ai/provider"
	"meal-planner/internal/core/nutrition"
	"meal-planner/internal/core/planner"
	"meal-planner/internal/core/recipe"
	"meal-planner/internal/infrastructure/config"
	"meal-planner/internal/pkg/common"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakeProvider struct {
	content string
	err     error
	calls   int
	last    *provider.Request
}

func (f *fakeProvider) Generate(_ context.Context, req *provider.Request) (*provider.Response, error) {
	f.calls++
	f.last = req
	if f.err != nil {
		return nil, f.err
	}
	return &provider.Response{Content: f.content, Model: "test/model"}, nil
}

func (f *fakeProvider) GetModel() string          { return "test/model" }
func (f *fakeProvider) GetTimeout() time.Duration { return time.Second }
func (f *fakeProvider) Close() error              { return nil }

func testProfile() *common.UserProfile {
	return &common.UserProfile{
		UserID:             "u1",
		BMR:                common.Float(1600),
		ActivityLevel:      "moderate",
		FitnessGoal:        "maintain",
		DietaryPreferences: []string{"pescatarian"},
		FoodAllergies:      []string{"peanut"},
	}
}

func candidateRequest() planner.CandidateRequest {
	return planner.CandidateRequest{
		Profile:     testProfile(),
		Targets:     nutrition.GenericTargets(),
		Season:      recipe.Winter,
		MealTypes:   common.MainMeals,
		Count:       3,
		ExcludeText: []string{"peanut"},
	}
}

const candidatesJSON = "```json\n" + `{"recipes":[
 {"title":"Salmon Rice Bowl","meal_types":["Dinner"],"calories":"650 kcal","protein":40,"carbs":70,"fat":18,
  "ingredients":["150 g salmon","1 cup rice"],"instructions":"Cook rice\nSear salmon"},
 {"name":"Oat Porridge","calories":420,"ingredients":[{"name":"oats","amount":80,"unit":"g"},"milk"]},
 {"title":"Missing ingredients"}
]}` + "\n```"

func TestGenerateCandidates_ParsesLooseResponse(t *testing.T) {
	common.SetLogger(zaptest.NewLogger(t))
	fp := &fakeProvider{content: candidatesJSON}
	g := New(fp, nil, Options{Temperature: 0.7, MaxTokens: 1000})

	got, err := g.GenerateCandidates(context.Background(), candidateRequest())
	require.NoError(t, err)
	require.Len(t, got, 2)

	salmon := got[0]
	assert.Equal(t, "Salmon Rice Bowl", salmon.Title)
	assert.Equal(t, []string{"dinner"}, salmon.MealTypes)
	require.NotNil(t, salmon.Calories)
	assert.Equal(t, 650.0, *salmon.Calories)
	assert.Equal(t, []string{"Cook rice", "Sear salmon"}, salmon.Instructions)
	assert.Equal(t, "salmon", salmon.MainIngredient)
	assert.True(t, salmon.IsAIGenerated)
	assert.Empty(t, salmon.ID)

	oats := got[1]
	assert.Equal(t, "Oat Porridge", oats.Title)
	assert.Equal(t, []string{"breakfast", "lunch", "dinner"}, oats.MealTypes, "missing meal types default to the requested ones")
	assert.Equal(t, []string{"80 g oats", "milk"}, oats.Ingredients)
	assert.Nil(t, oats.Protein)

	require.NotNil(t, fp.last)
	assert.True(t, fp.last.JSONMode)
	assert.Equal(t, 1000, fp.last.MaxTokens)
	assert.Contains(t, fp.last.Messages[1].Content, "Never use these ingredients: peanut")
	assert.Contains(t, fp.last.Messages[1].Content, "season: winter")
}

func TestGenerateCandidates_TruncatesToCount(t *testing.T) {
	fp := &fakeProvider{content: `{"recipes":[
		{"title":"A","ingredients":["egg"]},{"title":"B","ingredients":["egg"]},
		{"title":"C","ingredients":["egg"]},{"title":"D","ingredients":["egg"]}]}`}
	g := New(fp, nil, Options{})

	got, err := g.GenerateCandidates(context.Background(), candidateRequest())
	require.NoError(t, err)
	assert.Len(t, got, 3)
}

func TestGenerateCandidates_ZeroCountSkipsCall(t *testing.T) {
	fp := &fakeProvider{content: candidatesJSON}
	req := candidateRequest()
	req.Count = 0

	got, err := New(fp, nil, Options{}).GenerateCandidates(context.Background(), req)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Zero(t, fp.calls)
}

func TestGenerateCandidates_Errors(t *testing.T) {
	common.SetLogger(zaptest.NewLogger(t))

	_, err := New(&fakeProvider{err: errors.New("boom")}, nil, Options{}).
		GenerateCandidates(context.Background(), candidateRequest())
	assert.ErrorIs(t, err, common.ErrExternalUnavailable)
	assert.Equal(t, common.KindTransient, common.KindOf(err))

	_, err = New(&fakeProvider{content: "sorry, I cannot help"}, nil, Options{}).
		GenerateCandidates(context.Background(), candidateRequest())
	assert.ErrorIs(t, err, common.ErrInvalidAIContent)

	_, err = New(&fakeProvider{content: `{"recipes":[{"title":"no ingredients"}]}`}, nil, Options{}).
		GenerateCandidates(context.Background(), candidateRequest())
	assert.ErrorIs(t, err, common.ErrInvalidAIContent)
}

func TestGenerateCandidates_UsesCache(t *testing.T) {
	common.SetLogger(zaptest.NewLogger(t))
	store := cache.NewManager(config.CacheConfig{Enabled: true, MaxSize: 10, TTL: time.Minute})
	defer store.Close()

	fp := &fakeProvider{content: candidatesJSON}
	g := New(fp, store, Options{})

	first, err := g.GenerateCandidates(context.Background(), candidateRequest())
	require.NoError(t, err)
	second, err := g.GenerateCandidates(context.Background(), candidateRequest())
	require.NoError(t, err)

	assert.Equal(t, 1, fp.calls)
	assert.Equal(t, first, second)
}

func TestGenerateCandidates_DoesNotCacheBadResponse(t *testing.T) {
	store := cache.NewManager(config.CacheConfig{Enabled: true, MaxSize: 10, TTL: time.Minute})
	defer store.Close()

	fp := &fakeProvider{content: "not json"}
	g := New(fp, store, Options{})

	_, err := g.GenerateCandidates(context.Background(), candidateRequest())
	require.Error(t, err)

	fp.content = candidatesJSON
	got, err := g.GenerateCandidates(context.Background(), candidateRequest())
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, 2, fp.calls)
}

func structureRequest() planner.StructureRequest {
	start := time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)
	days := common.DateRange(start, 2)
	return planner.StructureRequest{
		Profile: testProfile(),
		Pool: []common.Recipe{
			{ID: "b1", Title: "Oats", MealTypes: []string{"breakfast"}, Calories: common.Float(400), MainIngredient: "oats"},
			{ID: "d1", Title: "Salmon", MealTypes: []string{"dinner"}, Calories: common.Float(700)},
		},
		Days: days,
		Requirements: []common.DailyRequirement{
			{Date: days[0], TargetCalories: 2500, MealCalories: map[common.MealType]float64{common.MealBreakfast: 625}},
			{Date: days[1], TargetCalories: 2200},
		},
		Runs: map[string][]common.RunEvent{
			"2025-03-04": {{StartTime: days[1].Add(7 * time.Hour), DistanceKm: 10}},
		},
	}
}

func TestGeneratePlanStructure(t *testing.T) {
	common.SetLogger(zaptest.NewLogger(t))
	fp := &fakeProvider{content: `{days:[
		{"date":"2025-03-04","meals":[{"meal_type":"Breakfast","recipe_id":"b1"}]},
		{"date":"2025-03-03T00:00:00Z","meals":[
			{"meal_type":"breakfast","recipe_id":"b1"},
			{"meal_type":"breakfast","recipe_id":"ignored-second"},
			{"meal_type":"brunch","recipe_id":"x"},
			{"meal_type":"lunch"},
			{"meal_type":"dinner","recipe":{"title":"Tofu Stir Fry","calories":"600","ingredients":["200 g tofu","broccoli"]}}
		]},
		{"date":"2025-03-10","meals":[{"meal_type":"lunch","recipe_id":"b1"}]}
	]}`}
	g := New(fp, nil, Options{})

	got, err := g.GeneratePlanStructure(context.Background(), structureRequest())
	require.NoError(t, err)
	require.Len(t, got.Days, 2, "days outside the request are dropped")

	first := got.Days[0]
	assert.Equal(t, "2025-03-03", first.Date.Format(common.DateLayout))
	require.Len(t, first.Meals, 2)
	assert.Equal(t, common.MealBreakfast, first.Meals[0].MealType)
	assert.Equal(t, "b1", first.Meals[0].RecipeID)

	dinner := first.Meals[1]
	assert.Equal(t, common.MealDinner, dinner.MealType)
	require.NotNil(t, dinner.Recipe)
	assert.Equal(t, "Tofu Stir Fry", dinner.Recipe.Title)
	assert.Equal(t, []string{"dinner"}, dinner.Recipe.MealTypes)
	assert.Equal(t, "tofu", dinner.Recipe.MainIngredient)
	assert.True(t, dinner.Recipe.IsAIGenerated)

	assert.Equal(t, "2025-03-04", got.Days[1].Date.Format(common.DateLayout))

	prompt := fp.last.Messages[1].Content
	assert.Contains(t, prompt, "2025-03-03: 2500 kcal (breakfast 625")
	assert.Contains(t, prompt, "run day 10.0 km at 07:00")
	assert.Contains(t, prompt, "b1 | breakfast | 400 | 0 | oats | Oats")
	assert.Contains(t, prompt, "allergies: peanut")
}

func TestGeneratePlanStructure_NoUsableDays(t *testing.T) {
	fp := &fakeProvider{content: `{"days":[{"date":"2030-01-01","meals":[]}]}`}
	_, err := New(fp, nil, Options{}).GeneratePlanStructure(context.Background(), structureRequest())
	assert.ErrorIs(t, err, common.ErrInvalidAIContent)
}

func TestGeneratePlanStructure_RequiresDays(t *testing.T) {
	req := structureRequest()
	req.Days = nil
	_, err := New(&fakeProvider{}, nil, Options{}).GeneratePlanStructure(context.Background(), req)
	assert.ErrorIs(t, err, common.ErrInvalidRequest)
}

func TestPoolLines_CapsPerMealType(t *testing.T) {
	var pool []common.Recipe
	for i := 0; i < maxPoolInPrompt+5; i++ {
		pool = append(pool, common.Recipe{ID: "x", Title: "t", MealTypes: []string{"lunch"}})
	}
	pool = append(pool, common.Recipe{ID: "legacy", Title: "Legacy", MealType: "dinner"})

	lines := poolLines(pool)
	assert.Len(t, lines, maxPoolInPrompt+1)
	assert.True(t, strings.HasPrefix(lines[len(lines)-1], "legacy | dinner |"))
}

func TestParseMealType(t *testing.T) {
	tests := map[string]common.MealType{
		"Breakfast":      common.MealBreakfast,
		" pre-run snack": common.MealPreRunSnack,
		"post_run_snack": common.MealPostRunSnack,
	}
	for in, want := range tests {
		got, ok := parseMealType(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}
	_, ok := parseMealType("brunch")
	assert.False(t, ok)
}

func TestCandidatePrompt_UsesScorerVocabulary(t *testing.T) {
	prompt := candidatePrompt(planner.CandidateRequest{
		Profile: &common.UserProfile{UserID: "u1"},
		Season:  recipe.Autumn,
		Count:   2,
	}, common.MainMeals)

	assert.Contains(t, prompt, "temperature_preference is hot, mild or cold")
	assert.Contains(t, prompt, "dish_type is warming or cooling")
	assert.NotContains(t, prompt, "or any")
	assert.NotContains(t, prompt, `"dish_type":"main"`)
}
