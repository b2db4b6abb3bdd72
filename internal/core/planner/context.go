package planner

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"meal-planner/internal/core/nutrition"
	"meal-planner/internal/core/recipe"
	"meal-planner/internal/pkg/common"

	"go.uber.org/zap"
)

// GenerationContext 單次產生計畫的可變狀態，呼叫結束即丟棄
type GenerationContext struct {
	Profile      *common.UserProfile
	Targets      nutrition.Targets
	Days         []time.Time
	Requirements []common.DailyRequirement
	Pool         []common.Recipe
	Restriction  recipe.Restriction

	Tracker  *Tracker
	Batch    *BatchState
	Selector *Selector

	DroppedDuplicates int

	rng          *rand.Rand
	minSuitable  int
	byID         map[string]int
	runsByDay    map[string][]common.RunEvent
	temperatures map[string]float64
	fingerprints map[string]bool
	today        map[string]bool
}

// ContextInput 建立 GenerationContext 所需資料
type ContextInput struct {
	Profile      *common.UserProfile
	Targets      nutrition.Targets
	Days         []time.Time
	Pool         []common.Recipe // 已套用飲食限制
	Catalog      []common.Recipe // 完整食譜庫，用於指紋比對
	Runs         []common.RunEvent
	Temperatures map[string]float64
	Seed         int64
	MinSuitable  int
}

// NewGenerationContext 計算每日需求並建立追蹤器、批次狀態與選擇器
func NewGenerationContext(in ContextInput) *GenerationContext {
	profile := in.Profile
	if profile == nil {
		profile = &common.UserProfile{}
	}

	gc := &GenerationContext{
		Profile:      profile,
		Targets:      in.Targets,
		Days:         in.Days,
		Pool:         append([]common.Recipe(nil), in.Pool...),
		Restriction:  recipe.RestrictionFor(profile),
		Tracker:      NewTracker(),
		Batch:        NewBatchState(NewBatchPlan(profile.BatchCooking, len(in.Days))),
		rng:          rand.New(rand.NewSource(in.Seed)),
		minSuitable:  in.MinSuitable,
		runsByDay:    make(map[string][]common.RunEvent),
		temperatures: in.Temperatures,
		fingerprints: make(map[string]bool, len(in.Catalog)),
		today:        make(map[string]bool),
	}

	for _, run := range in.Runs {
		key := run.StartTime.Format(common.DateLayout)
		gc.runsByDay[key] = append(gc.runsByDay[key], run)
	}
	for _, day := range in.Days {
		gc.Requirements = append(gc.Requirements, in.Targets.ForDay(day, gc.RunsFor(day), profile.WeightKg))
	}
	for i := range in.Catalog {
		gc.fingerprints[recipe.Fingerprint(&in.Catalog[i])] = true
	}
	for i := range gc.Pool {
		gc.fingerprints[recipe.Fingerprint(&gc.Pool[i])] = true
	}

	gc.reindex()
	return gc
}

func (gc *GenerationContext) reindex() {
	gc.byID = make(map[string]int, len(gc.Pool))
	for i := range gc.Pool {
		gc.byID[gc.Pool[i].ID] = i
	}
	gc.Selector = NewSelector(gc.Pool, gc.Tracker, gc.rng, gc.minSuitable)
}

// RunsFor 當日跑步
func (gc *GenerationContext) RunsFor(day time.Time) []common.RunEvent {
	return gc.runsByDay[day.Format(common.DateLayout)]
}

// Recipe 依 id 取得食譜
func (gc *GenerationContext) Recipe(id string) (*common.Recipe, bool) {
	idx, ok := gc.byID[id]
	if !ok {
		return nil, false
	}
	return &gc.Pool[idx], true
}

// Season 當日的季節與氣溫情境
func (gc *GenerationContext) Season(day time.Time) recipe.SeasonContext {
	if temp, ok := gc.temperatures[day.Format(common.DateLayout)]; ok {
		return recipe.ContextFor(day, &temp)
	}
	return recipe.ContextFor(day, nil)
}

// Slot 建立當日某餐別的選擇條件
func (gc *GenerationContext) Slot(dayIndex int, mealType common.MealType) Slot {
	day := gc.Days[dayIndex]
	req := gc.Requirements[dayIndex]

	slot := Slot{
		Date:           day,
		MealType:       mealType,
		TargetCalories: req.MealCalories[mealType],
		TargetProtein:  req.ProteinFor(mealType),
		Excluded:       gc.today,
		Whitelist:      gc.Batch.Allowed(mealType, gc.Pool),
		Overflow:       gc.Batch.Overflow(mealType, gc.Pool),
		Season:         gc.Season(day),
	}
	if mealType.IsSnack() {
		band := BandFor(mealType)
		slot.TargetCalories = band.Mid()
		if req.TargetCalories > 0 {
			slot.TargetProtein = req.ProteinGrams * slot.TargetCalories / req.TargetCalories
		}
	}
	return slot
}

// Admit 以內容指紋檢查是否為新食譜；重複時回傳 false
func (gc *GenerationContext) Admit(r *common.Recipe) bool {
	fp := recipe.Fingerprint(r)
	if gc.fingerprints[fp] {
		gc.DroppedDuplicates++
		return false
	}
	gc.fingerprints[fp] = true
	return true
}

// MergeAIRecipes 過濾重複與飲食限制後寫入儲存，再加入可選食譜庫
func (gc *GenerationContext) MergeAIRecipes(ctx context.Context, sink RecipeSink, candidates []common.Recipe) []common.Recipe {
	fresh := make([]common.Recipe, 0, len(candidates))
	for i := range candidates {
		c := candidates[i]
		if !gc.Admit(&c) {
			continue
		}
		if !gc.Restriction.Allows(&c) {
			continue
		}
		c.IsAIGenerated = true
		if c.MainIngredient == "" {
			c.MainIngredient = recipe.ExtractMainIngredient(&c)
		}
		fresh = append(fresh, c)
	}
	if len(fresh) == 0 {
		return nil
	}

	if sink == nil {
		common.LogWarn("no recipe sink configured, skipping AI recipes", zap.Int("count", len(fresh)))
		return nil
	}
	saved, err := sink.SaveAIRecipes(ctx, fresh)
	if err != nil {
		common.LogWarn("failed to persist AI recipes, skipping",
			zap.Int("count", len(fresh)),
			zap.Error(err),
		)
		return nil
	}

	gc.Pool = append(gc.Pool, saved...)
	gc.reindex()
	common.LogDebug("merged AI recipes",
		zap.Int("saved", len(saved)),
		zap.Int("dropped_duplicates", gc.DroppedDuplicates),
	)
	return saved
}

// beginDay 進入新的一天；同日不重複同一道食譜
func (gc *GenerationContext) beginDay() {
	gc.today = make(map[string]bool)
}

func (gc *GenerationContext) commit(mealType common.MealType, r *common.Recipe) {
	gc.today[r.ID] = true
	gc.Batch.Record(mealType, r.ID)
}

func (gc *GenerationContext) describe(dayIndex int, mealType common.MealType, rc RunContext) string {
	req := gc.Requirements[dayIndex]
	kcal := req.MealCalories[mealType]
	if mealType.IsSnack() {
		kcal = BandFor(mealType).Mid()
	}
	text := fmt.Sprintf("%s target %.0f kcal, %.0f g protein", mealType, kcal, req.ProteinFor(mealType))

	switch {
	case mealType == common.MealLunch && rc.LunchRecovery:
		return RecoveryMarker + ": " + text
	case rc.RunDay:
		return fmt.Sprintf("run day %.1f km: %s", rc.TotalKm, text)
	}
	return text
}
