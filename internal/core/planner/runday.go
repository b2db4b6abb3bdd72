package planner

import (
	"meal-planner/internal/core/recipe"
	"meal-planner/internal/pkg/common"
)

// RecoveryMarker 午間跑步時寫入午餐的營養說明
const RecoveryMarker = "post_run_recovery"

const (
	lunchRunStartHour = 11
	lunchRunEndHour   = 14
	postRunMinKm      = 5.0
)

// CalorieBand 點心熱量區間（含端點）
type CalorieBand struct {
	Min float64
	Max float64
}

// Contains 熱量是否落在區間內
func (b CalorieBand) Contains(kcal float64) bool {
	return kcal >= b.Min && kcal <= b.Max
}

// Mid 區間中點，作為選擇目標
func (b CalorieBand) Mid() float64 {
	return (b.Min + b.Max) / 2
}

var (
	PreRunBand  = CalorieBand{Min: 100, Max: 200}
	PostRunBand = CalorieBand{Min: 200, Max: 300}
)

type fallbackSnack struct {
	title  string
	main   string
	macros common.Macros
}

// 沒有任何點心食譜時的固定清單，依日序輪替
var fallbackSnacks = map[common.MealType][]fallbackSnack{
	common.MealPreRunSnack: {
		{"Banana with honey", "banana", common.Macros{Calories: 150, Protein: 2, Carbs: 36, Fat: 0.5}},
		{"Toast with jam", "bread", common.Macros{Calories: 180, Protein: 5, Carbs: 34, Fat: 2}},
	},
	common.MealPostRunSnack: {
		{"Greek yogurt with berries", "yogurt", common.Macros{Calories: 220, Protein: 18, Carbs: 26, Fat: 4}},
		{"Chocolate milk", "milk", common.Macros{Calories: 250, Protein: 12, Carbs: 38, Fat: 6}},
	},
}

// RunContext 單日跑步情境
type RunContext struct {
	RunDay        bool
	PreRunSnack   bool
	PostRunSnack  bool
	LunchRecovery bool
	TotalKm       float64
}

// AnalyzeRuns 依當日跑步決定點心與午餐標記
func AnalyzeRuns(runs []common.RunEvent) RunContext {
	rc := RunContext{}
	if len(runs) == 0 {
		return rc
	}
	rc.RunDay = true
	rc.PreRunSnack = true

	longRun := false
	for _, run := range runs {
		rc.TotalKm += run.DistanceKm
		if h := run.StartTime.Hour(); h >= lunchRunStartHour && h <= lunchRunEndHour {
			rc.LunchRecovery = true
		}
		if run.DistanceKm >= postRunMinKm {
			longRun = true
		}
	}
	// 午間跑步由午餐負責恢復
	rc.PostRunSnack = !rc.LunchRecovery && longRun
	return rc
}

// SnackTypes 當日需要的點心餐別
func (rc RunContext) SnackTypes() []common.MealType {
	var out []common.MealType
	if rc.PreRunSnack {
		out = append(out, common.MealPreRunSnack)
	}
	if rc.PostRunSnack {
		out = append(out, common.MealPostRunSnack)
	}
	return out
}

// BandFor 點心餐別對應的熱量區間
func BandFor(mealType common.MealType) CalorieBand {
	if mealType == common.MealPostRunSnack {
		return PostRunBand
	}
	return PreRunBand
}

// SnackCandidates 熱量區間內的點心；區間無結果時放寬為所有點心
func SnackCandidates(pool []common.Recipe, band CalorieBand) []common.Recipe {
	snacks := recipe.SuitableOnly(pool, common.MealSnack)
	inBand := make([]common.Recipe, 0, len(snacks))
	for i := range snacks {
		if band.Contains(snacks[i].Macros().Calories) {
			inBand = append(inBand, snacks[i])
		}
	}
	if len(inBand) > 0 {
		return inBand
	}
	return snacks
}

// FallbackSnackItem 沒有點心食譜時產生自訂項目
func FallbackSnackItem(mealType common.MealType, dayIndex int) common.MealPlanItem {
	table := fallbackSnacks[mealType]
	if len(table) == 0 {
		table = fallbackSnacks[common.MealPreRunSnack]
	}
	snack := table[dayIndex%len(table)]
	return common.MealPlanItem{
		MealType:       mealType,
		CustomTitle:    snack.title,
		Macros:         snack.macros,
		MainIngredient: snack.main,
	}
}
