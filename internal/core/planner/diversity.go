// Package planner 組合一週餐點計畫：需求、選菜、批次烹飪、跑步日調整與 AI 合併。
package planner

const (
	usagePenalty      = 20.0
	recentPenalty     = 50.0 // 一天內用過
	nearRecentPenalty = 25.0 // 二到三天內用過
	maxDiversityScore = 100.0
)

type usageRecord struct {
	count   int
	lastDay int
}

// Tracker 單次產生計畫內的食譜使用紀錄，不跨呼叫共用
type Tracker struct {
	day         int
	usage       map[string]*usageRecord
	ingredients map[int]map[string]bool
}

// NewTracker 建立追蹤器
func NewTracker() *Tracker {
	t := &Tracker{}
	t.Reset()
	return t
}

// Reset 清空所有紀錄並回到第 0 天
func (t *Tracker) Reset() {
	t.day = 0
	t.usage = make(map[string]*usageRecord)
	t.ingredients = make(map[int]map[string]bool)
}

// Advance 前進一天
func (t *Tracker) Advance() {
	t.day++
}

// Day 目前的日序
func (t *Tracker) Day() int {
	return t.day
}

// Record 記錄當日使用一次食譜與其主食材
func (t *Tracker) Record(recipeID, mainIngredient string) {
	rec, ok := t.usage[recipeID]
	if !ok {
		rec = &usageRecord{}
		t.usage[recipeID] = rec
	}
	rec.count++
	rec.lastDay = t.day

	if mainIngredient == "" {
		return
	}
	today, ok := t.ingredients[t.day]
	if !ok {
		today = make(map[string]bool)
		t.ingredients[t.day] = today
	}
	today[mainIngredient] = true
}

// Usage 本週使用次數
func (t *Tracker) Usage(recipeID string) int {
	if rec, ok := t.usage[recipeID]; ok {
		return rec.count
	}
	return 0
}

// Used 本週是否已使用過
func (t *Tracker) Used(recipeID string) bool {
	return t.Usage(recipeID) > 0
}

// Penalty 20×使用次數，加上距上次使用的近期懲罰
func (t *Tracker) Penalty(recipeID string) float64 {
	rec, ok := t.usage[recipeID]
	if !ok || rec.count == 0 {
		return 0
	}

	penalty := usagePenalty * float64(rec.count)
	switch since := t.day - rec.lastDay; {
	case since <= 1:
		penalty += recentPenalty
	case since <= 3:
		penalty += nearRecentPenalty
	}
	return penalty
}

// Score 多樣性分數，可為負值
func (t *Tracker) Score(recipeID string) float64 {
	return maxDiversityScore - t.Penalty(recipeID)
}

// IngredientUsedToday 主食材今天是否已出現
func (t *Tracker) IngredientUsedToday(mainIngredient string) bool {
	return t.ingredients[t.day][mainIngredient]
}
