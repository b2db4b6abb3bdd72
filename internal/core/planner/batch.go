package planner

import (
	"strings"

	"meal-planner/internal/pkg/common"
)

// strictRepetitionThreshold 重複上限達此值時改為嚴格模式
const strictRepetitionThreshold = 5

// RepetitionRange 每道批次食譜的重複次數範圍
type RepetitionRange struct {
	Min int
	Max int
}

var repetitionByIntensity = map[string]RepetitionRange{
	"low":    {Min: 2, Max: 2},
	"medium": {Min: 3, Max: 4},
	"high":   {Min: 5, Max: 7},
}

// RepetitionFor 依強度取得重複範圍，未知強度以 medium 計
func RepetitionFor(intensity string) RepetitionRange {
	if r, ok := repetitionByIntensity[strings.ToLower(strings.TrimSpace(intensity))]; ok {
		return r
	}
	return repetitionByIntensity["medium"]
}

// Strict 是否要求每道食譜剛好重複 Max 次
func (r RepetitionRange) Strict() bool {
	return r.Max >= strictRepetitionThreshold
}

// BatchPlan 各餐別可使用的不同食譜數上限
type BatchPlan struct {
	Enabled bool
	Range   RepetitionRange
	Caps    map[common.MealType]int
}

// NewBatchPlan 依設定計算上限；點心永不批次
func NewBatchPlan(settings common.BatchCookingSettings, days int) BatchPlan {
	plan := BatchPlan{
		Enabled: settings.Enabled,
		Range:   RepetitionFor(settings.Intensity),
		Caps:    make(map[common.MealType]int, 3),
	}
	if !plan.Enabled || days <= 0 {
		return plan
	}

	r := plan.Range
	plan.Caps[common.MealDinner] = ceilDiv(days, r.Max)
	plan.Caps[common.MealLunch] = ceilDiv(days, max(r.Min, r.Max-1))
	plan.Caps[common.MealBreakfast] = ceilDiv(days, r.Min)
	return plan
}

// Cap 該餐別的上限，0 表示不限制
func (p BatchPlan) Cap(mealType common.MealType) int {
	if !p.Enabled || mealType.IsSnack() {
		return 0
	}
	return p.Caps[mealType]
}

// BatchState 單次產生計畫內的批次使用狀態
type BatchState struct {
	plan  BatchPlan
	uses  map[common.MealType]map[string]int
	order map[common.MealType][]string
}

// NewBatchState 建立批次狀態
func NewBatchState(plan BatchPlan) *BatchState {
	return &BatchState{
		plan:  plan,
		uses:  make(map[common.MealType]map[string]int),
		order: make(map[common.MealType][]string),
	}
}

// Plan 取得批次上限設定
func (s *BatchState) Plan() BatchPlan {
	return s.plan
}

// Active 該餐別是否受批次限制
func (s *BatchState) Active(mealType common.MealType) bool {
	return s.plan.Cap(mealType) > 0
}

// Allowed 產生本次選擇的白名單；nil 表示不限制
func (s *BatchState) Allowed(mealType common.MealType, pool []common.Recipe) map[string]bool {
	if !s.Active(mealType) {
		return nil
	}

	chosen := s.order[mealType]
	uses := s.uses[mealType]
	capacity := s.plan.Cap(mealType)
	limit := s.plan.Range.Max + 1
	if s.plan.Range.Strict() {
		limit = s.plan.Range.Max
	}

	if s.plan.Range.Strict() {
		// 先把目前這道用滿再開新的
		for _, id := range chosen {
			if uses[id] < limit {
				return map[string]bool{id: true}
			}
		}
		if len(chosen) < capacity {
			return s.unchosen(mealType, pool)
		}
		return s.all(mealType)
	}

	allowed := make(map[string]bool)
	for _, id := range chosen {
		if uses[id] < limit {
			allowed[id] = true
		}
	}
	if len(chosen) < capacity {
		for id := range s.unchosen(mealType, pool) {
			allowed[id] = true
		}
	}
	if len(allowed) == 0 {
		return s.all(mealType)
	}
	return allowed
}

// Overflow 白名單都不能用時可改選的新食譜（允許超出上限）；nil 表示不限制
func (s *BatchState) Overflow(mealType common.MealType, pool []common.Recipe) map[string]bool {
	if !s.Active(mealType) {
		return nil
	}
	out := s.unchosen(mealType, pool)
	if len(out) == 0 {
		return nil
	}
	return out
}

// Record 記錄批次食譜使用一次
func (s *BatchState) Record(mealType common.MealType, recipeID string) {
	if !s.Active(mealType) {
		return
	}
	uses, ok := s.uses[mealType]
	if !ok {
		uses = make(map[string]int)
		s.uses[mealType] = uses
	}
	if uses[recipeID] == 0 {
		s.order[mealType] = append(s.order[mealType], recipeID)
	}
	uses[recipeID]++
}

// Chosen 已選定的批次食譜與使用次數
func (s *BatchState) Chosen(mealType common.MealType) map[string]int {
	out := make(map[string]int, len(s.uses[mealType]))
	for id, n := range s.uses[mealType] {
		out[id] = n
	}
	return out
}

func (s *BatchState) unchosen(mealType common.MealType, pool []common.Recipe) map[string]bool {
	uses := s.uses[mealType]
	out := make(map[string]bool, len(pool))
	for i := range pool {
		if uses[pool[i].ID] == 0 {
			out[pool[i].ID] = true
		}
	}
	return out
}

// 上限已滿且全部用完時，只能在已選食譜之間重複
func (s *BatchState) all(mealType common.MealType) map[string]bool {
	out := make(map[string]bool, len(s.order[mealType]))
	for _, id := range s.order[mealType] {
		out[id] = true
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func ceilDiv(a, b int) int {
	if b <= 0 {
		return a
	}
	return (a + b - 1) / b
}
