// Package nutrition 計算每日熱量與三大營養素目標。
package nutrition

import (
	"errors"
	"math"
	"time"

	"meal-planner/internal/pkg/common"
)

// ErrInsufficientData 缺少 BMR，呼叫端應改用 GenericTargets
var ErrInsufficientData = errors.New("insufficient profile data: bmr is required")

const (
	kcalPerGramProtein = 4.0
	kcalPerGramCarbs   = 4.0
	kcalPerGramFat     = 9.0

	// 跑步熱量估算：距離(km) × 體重(kg) × 0.75
	runKcalFactor     = 0.75
	referenceWeightKg = 70.0

	genericDailyCalories = 2000.0
)

var activityMultipliers = map[string]float64{
	"sedentary":   1.2,
	"light":       1.375,
	"moderate":    1.55,
	"active":      1.725,
	"very_active": 1.9,
}

// MacroSplit 三大營養素熱量佔比
type MacroSplit struct {
	Protein float64
	Carbs   float64
	Fat     float64
}

var goalSplits = map[string]MacroSplit{
	"lose":     {Protein: 0.35, Carbs: 0.30, Fat: 0.35},
	"gain":     {Protein: 0.25, Carbs: 0.45, Fat: 0.30},
	"maintain": {Protein: 0.30, Carbs: 0.40, Fat: 0.30},
}

var goalAdjustments = map[string]float64{
	"lose": 0.85,
	"gain": 1.10,
}

type mealShare struct {
	mealType common.MealType
	share    float64
}

// 最後一項吸收四捨五入誤差
var (
	restDaySplit = []mealShare{
		{common.MealBreakfast, 0.25},
		{common.MealLunch, 0.40},
		{common.MealDinner, 0.35},
	}
	runDaySplit = []mealShare{
		{common.MealPreRunSnack, 0.08},
		{common.MealBreakfast, 0.22},
		{common.MealLunch, 0.42},
		{common.MealDinner, 0.28},
	}
)

// Targets 基礎每日目標（未含跑步加成）
type Targets struct {
	DailyCalories float64
	Split         MacroSplit
	Generic       bool
}

// ActivityMultiplier 活動係數，未設定或未知時以 moderate 計
func ActivityMultiplier(level string) float64 {
	if m, ok := activityMultipliers[level]; ok {
		return m
	}
	return activityMultipliers["moderate"]
}

// SplitForGoal 依目標取得營養素比例，未知目標以 maintain 計
func SplitForGoal(goal string) MacroSplit {
	if s, ok := goalSplits[goal]; ok {
		return s
	}
	return goalSplits["maintain"]
}

// Calculate 根據使用者資料計算每日目標
func Calculate(profile *common.UserProfile) (Targets, error) {
	if profile == nil || profile.BMR == nil || *profile.BMR <= 0 {
		return Targets{}, ErrInsufficientData
	}

	maintenance := *profile.BMR * ActivityMultiplier(profile.ActivityLevel)
	if adj, ok := goalAdjustments[profile.FitnessGoal]; ok {
		maintenance *= adj
	}

	return Targets{
		DailyCalories: math.Round(maintenance),
		Split:         SplitForGoal(profile.FitnessGoal),
	}, nil
}

// GenericTargets 資料不足時使用的固定表
func GenericTargets() Targets {
	return Targets{
		DailyCalories: genericDailyCalories,
		Split:         goalSplits["maintain"],
		Generic:       true,
	}
}

// RunCalories 估算當日跑步消耗
func RunCalories(runs []common.RunEvent, weightKg float64) float64 {
	if weightKg <= 0 {
		weightKg = referenceWeightKg
	}
	total := 0.0
	for _, run := range runs {
		if run.DistanceKm > 0 {
			total += run.DistanceKm * weightKg * runKcalFactor
		}
	}
	return math.Round(total)
}

// ForDay 計算單日需求；有跑步時加上消耗並調整分配
func (t Targets) ForDay(date time.Time, runs []common.RunEvent, weightKg float64) common.DailyRequirement {
	req := common.DailyRequirement{
		Date:         common.TruncateDay(date),
		MealCalories: make(map[common.MealType]float64, 4),
	}

	split := restDaySplit
	target := t.DailyCalories
	if len(runs) > 0 {
		req.RunCalories = RunCalories(runs, weightKg)
		target += req.RunCalories
		split = runDaySplit
	}
	req.TargetCalories = target

	req.ProteinGrams = round1(target * t.Split.Protein / kcalPerGramProtein)
	req.CarbsGrams = round1(target * t.Split.Carbs / kcalPerGramCarbs)
	req.FatGrams = round1(target * t.Split.Fat / kcalPerGramFat)

	allocated := 0.0
	for i, ms := range split {
		if i == len(split)-1 {
			req.MealCalories[ms.mealType] = round1(target - allocated)
			break
		}
		kcal := round1(target * ms.share)
		req.MealCalories[ms.mealType] = kcal
		allocated += kcal
	}
	return req
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
