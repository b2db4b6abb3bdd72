package planner

import (
	"context"
	"sort"
	"time"

	"meal-planner/internal/core/recipe"
	"meal-planner/internal/pkg/common"

	"go.uber.org/zap"
)

const (
	StrategyDeterministic = "deterministic"
	StrategyAI            = "ai"
)

// Strategy 決定每個餐點位置的食譜；兩種實作共用同一個組合流程
type Strategy interface {
	Name() string
	Choose(gc *GenerationContext, dayIndex int, mealType common.MealType) (*common.Recipe, bool)
}

// PlanStructure AI 產生的每日餐點結構
type PlanStructure struct {
	Days []DayStructure `json:"days"`
}

// DayStructure 單日結構
type DayStructure struct {
	Date  time.Time `json:"date"`
	Meals []MealRef `json:"meals"`
}

// MealRef 餐點引用：既有食譜 id 或 AI 新產生的食譜
type MealRef struct {
	MealType common.MealType `json:"meal_type"`
	RecipeID string          `json:"recipe_id,omitempty"`
	Recipe   *common.Recipe  `json:"recipe,omitempty"`
}

type deterministicStrategy struct{}

// NewDeterministicStrategy 只使用選擇器
func NewDeterministicStrategy() Strategy {
	return deterministicStrategy{}
}

func (deterministicStrategy) Name() string { return StrategyDeterministic }

func (deterministicStrategy) Choose(gc *GenerationContext, dayIndex int, mealType common.MealType) (*common.Recipe, bool) {
	return gc.Selector.Select(gc.Slot(dayIndex, mealType))
}

type aiStrategy struct {
	refs     map[string]map[common.MealType]string
	fallback deterministicStrategy
}

// NewAIStrategy 處理 AI 結構中的新食譜（指紋去重後寫入），並建立引用表
func NewAIStrategy(ctx context.Context, gc *GenerationContext, structure *PlanStructure, sink RecipeSink) Strategy {
	s := &aiStrategy{refs: make(map[string]map[common.MealType]string)}
	if structure == nil {
		return s
	}

	type pending struct {
		key      string
		mealType common.MealType
	}
	var inline []common.Recipe
	var owners []pending

	for _, day := range structure.Days {
		key := day.Date.Format(common.DateLayout)
		for _, meal := range day.Meals {
			// 點心一律由跑步日規則產生
			if meal.MealType.IsSnack() {
				continue
			}
			if meal.Recipe != nil {
				inline = append(inline, *meal.Recipe)
				owners = append(owners, pending{key: key, mealType: meal.MealType})
				continue
			}
			if meal.RecipeID != "" {
				s.set(key, meal.MealType, meal.RecipeID)
			}
		}
	}
	if len(inline) == 0 {
		return s
	}

	// 逐一合併以保留與原位置的對應
	for i := range inline {
		saved := gc.MergeAIRecipes(ctx, sink, inline[i:i+1])
		if len(saved) == 1 {
			s.set(owners[i].key, owners[i].mealType, saved[0].ID)
		}
	}
	return s
}

func (s *aiStrategy) set(key string, mealType common.MealType, recipeID string) {
	day, ok := s.refs[key]
	if !ok {
		day = make(map[common.MealType]string)
		s.refs[key] = day
	}
	day[mealType] = recipeID
}

func (s *aiStrategy) Name() string { return StrategyAI }

func (s *aiStrategy) Choose(gc *GenerationContext, dayIndex int, mealType common.MealType) (*common.Recipe, bool) {
	// 批次烹飪的餐別忽略 AI 引用
	if gc.Batch.Active(mealType) {
		return s.fallback.Choose(gc, dayIndex, mealType)
	}

	id, ok := s.refs[gc.Days[dayIndex].Format(common.DateLayout)][mealType]
	if !ok {
		return s.fallback.Choose(gc, dayIndex, mealType)
	}
	ref, ok := gc.Recipe(id)
	if !ok {
		common.LogDebug("AI referenced unknown recipe, using selector",
			zap.String("recipe_id", id),
			zap.String("meal_type", string(mealType)),
		)
		return s.fallback.Choose(gc, dayIndex, mealType)
	}

	if gc.Tracker.Used(ref.ID) || gc.today[ref.ID] {
		sub, ok := substitute(gc, mealType, ref)
		if !ok {
			return s.fallback.Choose(gc, dayIndex, mealType)
		}
		ref = sub
	}

	gc.Tracker.Record(ref.ID, gc.Selector.MainIngredient(ref))
	return ref, true
}

// substitute 找同餐別、同分類且本週未用過的替代品，優先選今天未出現的主食材
func substitute(gc *GenerationContext, mealType common.MealType, ref *common.Recipe) (*common.Recipe, bool) {
	type option struct {
		recipe    *common.Recipe
		freshMain bool
		score     float64
	}

	var options []option
	for i := range gc.Pool {
		r := &gc.Pool[i]
		if r.ID == ref.ID || gc.Tracker.Used(r.ID) || gc.today[r.ID] {
			continue
		}
		if !recipe.IsSuitable(r, mealType) || !sharesCategory(r, ref) {
			continue
		}
		options = append(options, option{
			recipe:    r,
			freshMain: !gc.Tracker.IngredientUsedToday(gc.Selector.MainIngredient(r)),
			score:     recipe.SuitabilityScore(r, mealType),
		})
	}
	if len(options) == 0 {
		return nil, false
	}

	sort.SliceStable(options, func(i, j int) bool {
		a, b := options[i], options[j]
		if a.freshMain != b.freshMain {
			return a.freshMain
		}
		if a.score != b.score {
			return a.score > b.score
		}
		return a.recipe.ID < b.recipe.ID
	})
	return options[0].recipe, true
}

// 原食譜沒有分類時只要求同餐別
func sharesCategory(r, ref *common.Recipe) bool {
	if len(ref.Categories) == 0 {
		return true
	}
	for _, c := range ref.Categories {
		if r.HasCategory(c) {
			return true
		}
	}
	return false
}
