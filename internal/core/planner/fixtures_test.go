package planner

import (
	"context"
	"fmt"
	"sync"
	"time"

	"meal-planner/internal/pkg/common"
)

var weekStart = time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)

func fixtureRecipe(prefix, mealType string, i int, kcal, protein float64) common.Recipe {
	return common.Recipe{
		ID:           fmt.Sprintf("%s-%02d", prefix, i),
		Title:        fmt.Sprintf("%s %d", prefix, i),
		MealTypes:    []string{mealType},
		Categories:   []string{mealType},
		Calories:     common.Float(kcal),
		Protein:      common.Float(protein),
		Carbs:        common.Float(50),
		Fat:          common.Float(15),
		Ingredients:  []string{fmt.Sprintf("%d g ingredient-%s-%d", 100+i, prefix, i)},
		Instructions: []string{"prepare"},
	}
}

// fixturePool 每個正餐 12 道、點心 4 道
func fixturePool() []common.Recipe {
	var pool []common.Recipe
	for i := 0; i < 12; i++ {
		pool = append(pool,
			fixtureRecipe("breakfast", "breakfast", i, 450+float64(i*10), 25+float64(i)),
			fixtureRecipe("lunch", "lunch", i, 700+float64(i*10), 40+float64(i)),
			fixtureRecipe("dinner", "dinner", i, 650+float64(i*10), 40+float64(i)),
		)
	}
	for i, kcal := range []float64{150, 170, 240, 270} {
		pool = append(pool, fixtureRecipe("snack", "snack", i, kcal, 8))
	}
	return pool
}

func fixtureProfile() *common.UserProfile {
	return &common.UserProfile{
		UserID:        "user-1",
		WeightKg:      70,
		BMR:           common.Float(1600),
		ActivityLevel: "moderate",
		FitnessGoal:   "maintain",
	}
}

type fakeProfiles struct {
	profile *common.UserProfile
	err     error
}

func (f *fakeProfiles) GetProfile(_ context.Context, _ string) (*common.UserProfile, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.profile, nil
}

type fakeRecipes struct {
	recipes []common.Recipe
}

func (f *fakeRecipes) ListRecipes(_ context.Context) ([]common.Recipe, error) {
	return f.recipes, nil
}

type fakeRuns struct {
	runs []common.RunEvent
}

func (f *fakeRuns) ListRuns(_ context.Context, _ string, from, to time.Time) ([]common.RunEvent, error) {
	var out []common.RunEvent
	for _, r := range f.runs {
		if !r.StartTime.Before(from) && r.StartTime.Before(to) {
			out = append(out, r)
		}
	}
	return out, nil
}

type fakeStore struct {
	mu         sync.Mutex
	plans      map[string]string
	items      map[string][]common.MealPlanItem
	replaceErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{plans: make(map[string]string), items: make(map[string][]common.MealPlanItem)}
}

func (f *fakeStore) CreateOrFetchPlan(_ context.Context, userID string, weekStart, _ time.Time) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := userID + "/" + weekStart.Format(common.DateLayout)
	if id, ok := f.plans[key]; ok {
		return id, nil
	}
	id := fmt.Sprintf("plan-%d", len(f.plans)+1)
	f.plans[key] = id
	return id, nil
}

func (f *fakeStore) ReplaceItems(_ context.Context, planID string, items []common.MealPlanItem) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.replaceErr != nil {
		return f.replaceErr
	}
	f.items[planID] = append([]common.MealPlanItem(nil), items...)
	return nil
}

func (f *fakeStore) ListItems(_ context.Context, userID string, weekStart time.Time) (string, []common.MealPlanItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.plans[userID+"/"+weekStart.Format(common.DateLayout)]
	if !ok {
		return "", nil, common.ErrPlanNotFound
	}
	return id, f.items[id], nil
}

type fakeSink struct {
	mu    sync.Mutex
	saved []common.Recipe
}

func (f *fakeSink) SaveAIRecipes(_ context.Context, recipes []common.Recipe) ([]common.Recipe, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]common.Recipe, len(recipes))
	for i, r := range recipes {
		r.ID = fmt.Sprintf("ai-%d", len(f.saved)+1)
		f.saved = append(f.saved, r)
		out[i] = r
	}
	return out, nil
}

type fakeCandidates struct {
	recipes []common.Recipe
	err     error
}

func (f *fakeCandidates) GenerateCandidates(_ context.Context, _ CandidateRequest) ([]common.Recipe, error) {
	return f.recipes, f.err
}

type fakeStructure struct {
	structure *PlanStructure
	err       error
}

func (f *fakeStructure) GeneratePlanStructure(_ context.Context, _ StructureRequest) (*PlanStructure, error) {
	return f.structure, f.err
}

type fakeWeather struct {
	temps map[string]float64
	err   error
	calls int
}

func (f *fakeWeather) DailyTemperatures(_ context.Context, _, _ float64, _, _ time.Time) (map[string]float64, error) {
	f.calls++
	return f.temps, f.err
}

func itemsOf(items []common.MealPlanItem, date time.Time, mealType common.MealType) []common.MealPlanItem {
	var out []common.MealPlanItem
	for _, it := range items {
		if it.DateKey() == date.Format(common.DateLayout) && it.MealType == mealType {
			out = append(out, it)
		}
	}
	return out
}

func countSnacks(items []common.MealPlanItem) int {
	n := 0
	for _, it := range items {
		if it.MealType.IsSnack() {
			n++
		}
	}
	return n
}
