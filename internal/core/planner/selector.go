package planner

import (
	"math"
	"math/rand"
	"sort"
	"time"

	"meal-planner/internal/core/recipe"
	"meal-planner/internal/pkg/common"
)

const (
	nutritionWeight = 0.4
	diversityWeight = 0.4
	seasonalWeight  = 0.2

	// TopCandidates 隨機挑選的前段名額
	TopCandidates = 15
)

// Slot 一個待填的餐點位置
type Slot struct {
	Date           time.Time
	MealType       common.MealType
	TargetCalories float64
	TargetProtein  float64
	Excluded       map[string]bool
	Whitelist      map[string]bool // nil 表示不限制
	Overflow       map[string]bool // 白名單全被排除時改用；nil 表示不限制
	Season         recipe.SeasonContext
}

// Selector 依營養、多樣性與季節分數挑選食譜
type Selector struct {
	pool        []common.Recipe
	tracker     *Tracker
	rng         *rand.Rand
	minSuitable int
	mains       map[string]string
}

type scored struct {
	recipe *common.Recipe
	score  float64
}

// NewSelector 建立選擇器；rng 由呼叫端注入以便重現結果
func NewSelector(pool []common.Recipe, tracker *Tracker, rng *rand.Rand, minSuitable int) *Selector {
	mains := make(map[string]string, len(pool))
	for i := range pool {
		mains[pool[i].ID] = recipe.ExtractMainIngredient(&pool[i])
	}
	return &Selector{
		pool:        pool,
		tracker:     tracker,
		rng:         rng,
		minSuitable: minSuitable,
		mains:       mains,
	}
}

// Select 為 slot 挑選食譜並記錄使用；無候選時回傳 false
func (s *Selector) Select(slot Slot) (*common.Recipe, bool) {
	candidates := recipe.FilterForMealType(s.pool, slot.MealType, s.minSuitable)
	return s.pick(candidates, slot)
}

// SelectFrom 在指定候選集合中挑選（跑步點心使用）
func (s *Selector) SelectFrom(candidates []common.Recipe, slot Slot) (*common.Recipe, bool) {
	return s.pick(candidates, slot)
}

// MainIngredient 取得食譜主食材
func (s *Selector) MainIngredient(r *common.Recipe) string {
	if main, ok := s.mains[r.ID]; ok {
		return main
	}
	return recipe.ExtractMainIngredient(r)
}

func (s *Selector) pick(candidates []common.Recipe, slot Slot) (*common.Recipe, bool) {
	ranked := s.rank(candidates, slot)
	if len(ranked) == 0 && slot.Whitelist != nil {
		// 批次食譜今天都已吃過，這一餐改開新的食譜
		slot.Whitelist = slot.Overflow
		ranked = s.rank(candidates, slot)
		if len(ranked) == 0 && slot.Whitelist != nil {
			slot.Whitelist = nil
			ranked = s.rank(candidates, slot)
		}
	}
	if len(ranked) == 0 {
		return nil, false
	}
	if len(ranked) > TopCandidates {
		ranked = ranked[:TopCandidates]
	}

	chosen := ranked[s.rng.Intn(len(ranked))].recipe
	s.tracker.Record(chosen.ID, s.MainIngredient(chosen))
	return chosen, true
}

func (s *Selector) rank(candidates []common.Recipe, slot Slot) []scored {
	out := make([]scored, 0, len(candidates))
	for i := range candidates {
		r := &candidates[i]
		if slot.Excluded[r.ID] {
			continue
		}
		if slot.Whitelist != nil && !slot.Whitelist[r.ID] {
			continue
		}
		out = append(out, scored{recipe: r, score: s.Score(r, slot)})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].score != out[j].score {
			return out[i].score > out[j].score
		}
		return out[i].recipe.ID < out[j].recipe.ID
	})
	return out
}

// Score 0.4×營養適配 + 0.4×多樣性 + 0.2×季節加權
func (s *Selector) Score(r *common.Recipe, slot Slot) float64 {
	m := r.Macros()
	fit := (nutritionFit(m.Calories, slot.TargetCalories) + nutritionFit(m.Protein, slot.TargetProtein)) / 2
	seasonal := recipe.SeasonalBonus(recipe.SeasonalScore(r, slot.Season))
	return nutritionWeight*fit + diversityWeight*s.tracker.Score(r.ID) + seasonalWeight*seasonal
}

// nutritionFit 與目標的接近程度 0–100；目標非正值時視為完全符合
func nutritionFit(value, target float64) float64 {
	if target <= 0 {
		return 100
	}
	return math.Max(0, 100-math.Abs(value-target)/target*100)
}
