package generator

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"meal-planner/internal/core/recipe"
	"meal-planner/internal/pkg/common"
)

// ---------------- 寬鬆版中繼結構：容忍 AI 回傳的型別雜訊 ----------------

// looseNumber 接受數字、數字字串（"450 kcal"）或 null
type looseNumber struct {
	value *float64
}

func (n *looseNumber) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		return nil
	}

	var f float64
	if err := json.Unmarshal(data, &f); err == nil {
		n.value = &f
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		// 其他型別一律忽略，不阻塞解析
		return nil
	}
	if v, ok := leadingNumber(s); ok {
		n.value = &v
	}
	return nil
}

func leadingNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	end := 0
	for end < len(s) && (s[end] >= '0' && s[end] <= '9' || s[end] == '.') {
		end++
	}
	if end == 0 {
		return 0, false
	}
	v, err := strconv.ParseFloat(s[:end], 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// looseStrings 接受字串、字串陣列或 {name, amount, unit} 物件陣列
type looseStrings []string

func (l *looseStrings) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		return nil
	}

	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		for _, line := range strings.Split(single, "\n") {
			if line = strings.TrimSpace(line); line != "" {
				*l = append(*l, line)
			}
		}
		return nil
	}

	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return nil
	}
	for _, raw := range items {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			if s = strings.TrimSpace(s); s != "" {
				*l = append(*l, s)
			}
			continue
		}
		var obj struct {
			Name        string `json:"name"`
			Amount      any    `json:"amount"`
			Unit        string `json:"unit"`
			Description string `json:"description"`
		}
		if err := json.Unmarshal(raw, &obj); err != nil {
			continue
		}
		text := obj.Name
		if text == "" {
			text = obj.Description
		}
		if text == "" {
			continue
		}
		if obj.Amount != nil {
			text = common.JoinNonEmpty([]string{fmt.Sprint(obj.Amount), obj.Unit, text}, " ")
		}
		*l = append(*l, text)
	}
	return nil
}

type looseRecipe struct {
	Title                 string       `json:"title"`
	Name                  string       `json:"name"`
	Calories              looseNumber  `json:"calories"`
	Protein               looseNumber  `json:"protein"`
	Carbs                 looseNumber  `json:"carbs"`
	Fat                   looseNumber  `json:"fat"`
	Ingredients           looseStrings `json:"ingredients"`
	Instructions          looseStrings `json:"instructions"`
	Categories            looseStrings `json:"categories"`
	MealTypes             looseStrings `json:"meal_types"`
	MealType              string       `json:"meal_type"`
	SeasonalSuitability   looseStrings `json:"seasonal_suitability"`
	TemperaturePreference string       `json:"temperature_preference"`
	DishType              string       `json:"dish_type"`
	MainIngredient        string       `json:"main_ingredient"`
	Cuisine               string       `json:"cuisine"`
}

type candidateEnvelope struct {
	Recipes []looseRecipe `json:"recipes"`
}

type looseMeal struct {
	MealType string       `json:"meal_type"`
	RecipeID string       `json:"recipe_id"`
	Recipe   *looseRecipe `json:"recipe"`
}

type looseDay struct {
	Date  string      `json:"date"`
	Meals []looseMeal `json:"meals"`
}

type structureEnvelope struct {
	Days []looseDay `json:"days"`
}

// ---------------------------------------------------------------

// toRecipe 轉成食譜並補齊預設值；沒有標題或食材時回傳 false
func (lr *looseRecipe) toRecipe(defaultMealTypes []common.MealType) (common.Recipe, bool) {
	title := strings.TrimSpace(lr.Title)
	if title == "" {
		title = strings.TrimSpace(lr.Name)
	}
	if title == "" || len(lr.Ingredients) == 0 {
		return common.Recipe{}, false
	}

	r := common.Recipe{
		Title:                 title,
		Calories:              lr.Calories.value,
		Protein:               lr.Protein.value,
		Carbs:                 lr.Carbs.value,
		Fat:                   lr.Fat.value,
		Ingredients:           []string(lr.Ingredients),
		Instructions:          []string(lr.Instructions),
		Categories:            []string(lr.Categories),
		MealTypes:             normalizeMealTypes(lr.MealTypes),
		MealType:              strings.ToLower(strings.TrimSpace(lr.MealType)),
		SeasonalSuitability:   lowerAll(lr.SeasonalSuitability),
		TemperaturePreference: strings.ToLower(strings.TrimSpace(lr.TemperaturePreference)),
		DishType:              strings.ToLower(strings.TrimSpace(lr.DishType)),
		MainIngredient:        strings.ToLower(strings.TrimSpace(lr.MainIngredient)),
		Cuisine:               strings.TrimSpace(lr.Cuisine),
		IsAIGenerated:         true,
	}

	if len(r.MealTypes) == 0 && r.MealType == "" {
		for _, mt := range defaultMealTypes {
			r.MealTypes = append(r.MealTypes, string(mt))
		}
	}
	if r.MainIngredient == "" {
		r.MainIngredient = recipe.ExtractMainIngredient(&r)
	}
	return r, true
}

// parseMealType 只接受已知餐別，支援 "Pre-Run Snack" 等寫法
func parseMealType(s string) (common.MealType, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.NewReplacer("-", "_", " ", "_").Replace(s)
	switch mt := common.MealType(s); mt {
	case common.MealBreakfast, common.MealLunch, common.MealDinner,
		common.MealSnack, common.MealPreRunSnack, common.MealPostRunSnack:
		return mt, true
	}
	return "", false
}

func normalizeMealTypes(in []string) []string {
	var out []string
	seen := make(map[common.MealType]bool)
	for _, s := range in {
		mt, ok := parseMealType(s)
		if !ok || seen[mt] {
			continue
		}
		seen[mt] = true
		out = append(out, string(mt))
	}
	return out
}

func lowerAll(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, 0, len(in))
	for _, s := range in {
		out = append(out, strings.ToLower(strings.TrimSpace(s)))
	}
	return out
}
