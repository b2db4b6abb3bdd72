// Package recipe 提供食譜分類、季節評分、內容指紋與主食材判斷。
package recipe

import (
	"strings"

	"meal-planner/internal/pkg/common"
)

// MinExplicitSuitable 某餐別適用食譜少於此數時放寬為整個食譜庫
const MinExplicitSuitable = 10

var mealVocabulary = map[common.MealType][]string{
	common.MealBreakfast: {
		"breakfast", "oat", "oatmeal", "porridge", "pancake", "waffle", "egg", "omelet", "omelette",
		"toast", "granola", "yogurt", "yoghurt", "muesli", "smoothie", "cereal", "bagel", "muffin",
		"frittata", "crepe", "scramble", "chia",
	},
	common.MealLunch: {
		"lunch", "salad", "sandwich", "wrap", "soup", "bowl", "quinoa", "pita", "burrito", "poke",
		"panini", "couscous", "noodle",
	},
	common.MealDinner: {
		"dinner", "pasta", "steak", "salmon", "chicken", "curry", "roast", "stew", "risotto",
		"casserole", "stir-fry", "stir fry", "lasagna", "chili", "tagine", "fillet", "pork", "beef",
	},
	common.MealSnack: {
		"snack", "energy bar", "protein bar", "granola bar", "bites", "energy ball", "banana", "nuts", "trail mix", "hummus", "crackers",
		"dates", "rice cake", "smoothie", "fruit",
	},
}

// 出現即排除早餐
var neverBreakfast = []string{
	"steak", "curry", "lasagna", "burger", "pizza", "stew", "roast", "casserole", "chili",
	"risotto", "tagine", "meatball",
}

// Suitability 判斷食譜適用餐別的能力：明確標籤或關鍵字推斷兩種變體
type Suitability interface {
	Suitable(mealType common.MealType) bool
	Explicit() bool
}

type explicitTags struct {
	tags map[common.MealType]bool
}

func (e explicitTags) Suitable(mealType common.MealType) bool {
	return e.tags[mealType.Vocabulary()]
}

func (e explicitTags) Explicit() bool { return true }

type inferredTags struct {
	recipe *common.Recipe
}

func (i inferredTags) Suitable(mealType common.MealType) bool {
	vocab := mealType.Vocabulary()
	if vocab == common.MealBreakfast && matchesAny(headline(i.recipe), neverBreakfast) {
		return false
	}
	return matchesAny(searchText(i.recipe), mealVocabulary[vocab])
}

func (i inferredTags) Explicit() bool { return false }

// Classify 建立食譜的適用性判斷；有明確標籤（列表或舊版單值）時以標籤為準
func Classify(r *common.Recipe) Suitability {
	tags := make(map[common.MealType]bool)
	for _, t := range r.MealTypes {
		if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
			tags[common.MealType(t).Vocabulary()] = true
		}
	}
	if legacy := strings.ToLower(strings.TrimSpace(r.MealType)); legacy != "" {
		tags[common.MealType(legacy).Vocabulary()] = true
	}
	if len(tags) > 0 {
		return explicitTags{tags: tags}
	}
	return inferredTags{recipe: r}
}

// IsSuitable 食譜是否適合該餐別
func IsSuitable(r *common.Recipe, mealType common.MealType) bool {
	return Classify(r).Suitable(mealType)
}

// FilterForMealType 過濾適用食譜；少於 minSuitable 時回傳整個食譜庫
func FilterForMealType(pool []common.Recipe, mealType common.MealType, minSuitable int) []common.Recipe {
	suitable := SuitableOnly(pool, mealType)
	if len(suitable) < minSuitable {
		return pool
	}
	return suitable
}

// SuitableOnly 只回傳適用的食譜，不放寬
func SuitableOnly(pool []common.Recipe, mealType common.MealType) []common.Recipe {
	out := make([]common.Recipe, 0, len(pool))
	for i := range pool {
		if IsSuitable(&pool[i], mealType) {
			out = append(out, pool[i])
		}
	}
	return out
}

// SuitabilityScore 數值化適用程度，用於同餐別替代品排序
func SuitabilityScore(r *common.Recipe, mealType common.MealType) float64 {
	vocab := mealType.Vocabulary()
	score := 0.0

	if Classify(r).Explicit() && IsSuitable(r, mealType) {
		score += 10
	}

	title := strings.ToLower(r.Title)
	for _, kw := range mealVocabulary[vocab] {
		if strings.Contains(title, kw) {
			score += 3
		}
		for _, c := range r.Categories {
			if strings.Contains(strings.ToLower(c), kw) {
				score += 4
			}
		}
		for _, ing := range r.Ingredients {
			if strings.Contains(strings.ToLower(ing), kw) {
				score++
			}
		}
	}
	if vocab == common.MealBreakfast && matchesAny(headline(r), neverBreakfast) {
		score -= 10
	}

	kcal := r.Macros().Calories
	switch {
	case kcal > 0 && kcal < 400 && (vocab == common.MealBreakfast || vocab == common.MealSnack):
		score += 2
	case kcal > 600 && vocab == common.MealDinner:
		score += 2
	}
	return score
}

func headline(r *common.Recipe) string {
	return strings.ToLower(r.Title + " " + strings.Join(r.Categories, " "))
}

func searchText(r *common.Recipe) string {
	return strings.ToLower(r.Title + " " + strings.Join(r.Categories, " ") + " " + strings.Join(r.Ingredients, " "))
}

func matchesAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}
