package planner

import (
	"meal-planner/internal/pkg/common"

	"go.uber.org/zap"
)

// Assemble 依日期順序填入每日餐點；找不到候選的正餐留空，跑步點心必定產生
func Assemble(gc *GenerationContext, strategy Strategy) []common.MealPlanItem {
	items := make([]common.MealPlanItem, 0, len(gc.Days)*len(common.MainMeals))

	for dayIndex, day := range gc.Days {
		gc.beginDay()
		rc := AnalyzeRuns(gc.RunsFor(day))

		for _, mealType := range common.MainMeals {
			if item, ok := fillMeal(gc, strategy, dayIndex, mealType, rc); ok {
				items = append(items, item)
			}
			if mealType == common.MealLunch {
				for _, snackType := range rc.SnackTypes() {
					items = append(items, fillSnack(gc, dayIndex, snackType, rc))
				}
			}
		}

		gc.Tracker.Advance()
	}
	return items
}

func fillMeal(gc *GenerationContext, strategy Strategy, dayIndex int, mealType common.MealType, rc RunContext) (common.MealPlanItem, bool) {
	r, ok := strategy.Choose(gc, dayIndex, mealType)
	if !ok {
		common.LogWarn("no candidate for slot, leaving it empty",
			zap.String("date", gc.Days[dayIndex].Format(common.DateLayout)),
			zap.String("meal_type", string(mealType)),
			zap.String("strategy", strategy.Name()),
		)
		return common.MealPlanItem{}, false
	}
	gc.commit(mealType, r)
	return itemFor(gc, dayIndex, mealType, r, rc), true
}

// 點心不受策略與批次影響，兩種策略產出一致
func fillSnack(gc *GenerationContext, dayIndex int, mealType common.MealType, rc RunContext) common.MealPlanItem {
	candidates := SnackCandidates(gc.Pool, BandFor(mealType))
	if r, ok := gc.Selector.SelectFrom(candidates, gc.Slot(dayIndex, mealType)); ok {
		gc.commit(mealType, r)
		return itemFor(gc, dayIndex, mealType, r, rc)
	}

	item := FallbackSnackItem(mealType, dayIndex)
	item.Date = gc.Days[dayIndex]
	item.NutritionalContext = gc.describe(dayIndex, mealType, rc)
	return item
}

func itemFor(gc *GenerationContext, dayIndex int, mealType common.MealType, r *common.Recipe, rc RunContext) common.MealPlanItem {
	return common.MealPlanItem{
		Date:               gc.Days[dayIndex],
		MealType:           mealType,
		RecipeID:           common.StringPtr(r.ID),
		Macros:             r.Macros(),
		NutritionalContext: gc.describe(dayIndex, mealType, rc),
		IsAIGenerated:      r.IsAIGenerated,
		MainIngredient:     gc.Selector.MainIngredient(r),
	}
}
