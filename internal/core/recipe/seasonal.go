package recipe

import (
	"strings"
	"time"

	"meal-planner/internal/pkg/common"
)

// Season 季節
type Season string

const (
	Spring Season = "spring"
	Summer Season = "summer"
	Autumn Season = "autumn"
	Winter Season = "winter"
)

// TemperatureCategory 氣溫分類
type TemperatureCategory string

const (
	TempHot  TemperatureCategory = "hot"
	TempMild TemperatureCategory = "mild"
	TempCold TemperatureCategory = "cold"
)

const (
	seasonalBase = 5.0
	seasonalMin  = 0.0
	seasonalMax  = 10.0
	yearRoundTag = "year_round"
)

var seasonalAverages = map[Season]float64{
	Winter: 3,
	Spring: 13,
	Summer: 26,
	Autumn: 12,
}

// SeasonForMonth 依月份判斷季節（北半球）
func SeasonForMonth(m time.Month) Season {
	switch m {
	case time.March, time.April, time.May:
		return Spring
	case time.June, time.July, time.August:
		return Summer
	case time.September, time.October, time.November:
		return Autumn
	default:
		return Winter
	}
}

// CategorizeTemperature ≥25°C hot、≥10°C mild，其餘 cold
func CategorizeTemperature(celsius float64) TemperatureCategory {
	switch {
	case celsius >= 25:
		return TempHot
	case celsius >= 10:
		return TempMild
	default:
		return TempCold
	}
}

// SeasonalAverageCelsius 天氣查詢不可用時的季節平均氣溫
func SeasonalAverageCelsius(s Season) float64 {
	return seasonalAverages[s]
}

// SeasonContext 評分當下的季節與氣溫
type SeasonContext struct {
	Season      Season
	Temperature TemperatureCategory
}

// ContextFor 以日期與氣溫建立評分情境；celsius 為 nil 時使用季節平均
func ContextFor(date time.Time, celsius *float64) SeasonContext {
	season := SeasonForMonth(date.Month())
	temp := SeasonalAverageCelsius(season)
	if celsius != nil {
		temp = *celsius
	}
	return SeasonContext{Season: season, Temperature: CategorizeTemperature(temp)}
}

// SeasonalScore 0–10 的季節適配分數
func SeasonalScore(r *common.Recipe, sc SeasonContext) float64 {
	score := seasonalBase
	score += seasonTagAdjustment(r.SeasonalSuitability, sc.Season)
	score += temperatureAdjustment(r.TemperaturePreference, sc.Temperature)
	score += dishTypeAdjustment(r.DishType, sc.Temperature)

	if score < seasonalMin {
		return seasonalMin
	}
	if score > seasonalMax {
		return seasonalMax
	}
	return score
}

// SeasonalBonus 轉換為選擇器使用的 ±50 區間
func SeasonalBonus(score float64) float64 {
	return (score - seasonalBase) * 10
}

func seasonTagAdjustment(tags []string, current Season) float64 {
	if len(tags) == 0 {
		return 0
	}
	hasCurrent, hasYearRound, hasOther := false, false, false
	for _, t := range tags {
		switch tag := normalizeSeasonTag(t); tag {
		case string(current):
			hasCurrent = true
		case yearRoundTag:
			hasYearRound = true
		case string(Spring), string(Summer), string(Autumn), string(Winter):
			hasOther = true
		}
	}
	switch {
	case hasCurrent:
		return 3
	case hasYearRound:
		return 1
	case hasOther:
		return -2
	}
	return 0
}

// normalizeSeasonTag 統一季節標籤的同義詞
func normalizeSeasonTag(tag string) string {
	switch t := strings.ToLower(strings.TrimSpace(tag)); t {
	case "fall":
		return string(Autumn)
	case "year-round", "all", "any":
		return yearRoundTag
	default:
		return t
	}
}

// temperatureAdjustment 只認得 hot、mild、cold，其他值（含 any）不加減分
func temperatureAdjustment(pref string, current TemperatureCategory) float64 {
	p := TemperatureCategory(strings.ToLower(strings.TrimSpace(pref)))
	switch p {
	case TempHot, TempMild, TempCold:
	default:
		return 0
	}
	if p == current {
		if p == TempMild {
			return 2
		}
		return 3
	}
	if (p == TempHot && current == TempCold) || (p == TempCold && current == TempHot) {
		return -4
	}
	return -2
}

func dishTypeAdjustment(dishType string, current TemperatureCategory) float64 {
	switch strings.ToLower(strings.TrimSpace(dishType)) {
	case "warming":
		switch current {
		case TempCold:
			return 2
		case TempHot:
			return -2
		}
	case "cooling":
		switch current {
		case TempHot:
			return 2
		case TempCold:
			return -2
		}
	}
	return 0
}
