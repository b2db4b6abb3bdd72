package recipe

import (
	"strings"

	"meal-planner/internal/pkg/common"
)

var (
	meatTerms   = []string{"chicken", "beef", "pork", "lamb", "turkey", "bacon", "ham", "sausage", "duck", "veal", "prosciutto", "chorizo"}
	seafood     = []string{"salmon", "tuna", "cod", "shrimp", "prawn", "fish", "anchovy", "anchovies", "sardine", "crab", "mussel"}
	animalTerms = []string{"egg", "milk", "cheese", "yogurt", "yoghurt", "butter", "cream", "honey", "whey", "gelatin"}
)

// Restriction 飲食限制
type Restriction struct {
	Excluded []string // 過敏原與不吃的食物，比對食材與標題
	Blocked  []string // 由飲食偏好推導的禁用詞
}

// RestrictionFor 由使用者資料建立飲食限制
func RestrictionFor(profile *common.UserProfile) Restriction {
	r := Restriction{}
	for _, term := range append(append([]string{}, profile.FoodAllergies...), profile.FoodsToAvoid...) {
		if t := strings.ToLower(strings.TrimSpace(term)); t != "" {
			r.Excluded = append(r.Excluded, t)
		}
	}
	for _, pref := range profile.DietaryPreferences {
		switch strings.ToLower(strings.TrimSpace(pref)) {
		case "vegetarian":
			r.Blocked = append(r.Blocked, meatTerms...)
			r.Blocked = append(r.Blocked, seafood...)
		case "pescatarian":
			r.Blocked = append(r.Blocked, meatTerms...)
		case "vegan":
			r.Blocked = append(r.Blocked, meatTerms...)
			r.Blocked = append(r.Blocked, seafood...)
			r.Blocked = append(r.Blocked, animalTerms...)
		}
	}
	return r
}

// Allows 食譜是否符合限制
func (r Restriction) Allows(rec *common.Recipe) bool {
	text := strings.ToLower(rec.Title + " " + strings.Join(rec.Ingredients, " "))
	for _, term := range r.Excluded {
		if strings.Contains(text, term) {
			return false
		}
	}
	ingredients := strings.ToLower(strings.Join(rec.Ingredients, " "))
	for _, term := range r.Blocked {
		if containsWord(ingredients, term) {
			return false
		}
	}
	return true
}

// Apply 過濾食譜庫
func (r Restriction) Apply(pool []common.Recipe) []common.Recipe {
	if len(r.Excluded) == 0 && len(r.Blocked) == 0 {
		return pool
	}
	out := make([]common.Recipe, 0, len(pool))
	for i := range pool {
		if r.Allows(&pool[i]) {
			out = append(out, pool[i])
		}
	}
	return out
}
