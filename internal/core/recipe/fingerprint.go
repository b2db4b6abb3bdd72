package recipe

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strconv"
	"strings"

	"meal-planner/internal/pkg/common"
)

// UnknownIngredient 無法判斷主食材時的固定值，永不回傳空字串
const UnknownIngredient = "unknown"

// 依序比對：蛋白質 > 穀物 > 蔬菜 > 豆類
var ingredientFamilies = [][]string{
	{"chicken", "turkey", "beef", "pork", "lamb", "salmon", "tuna", "cod", "shrimp", "prawn", "tofu", "tempeh", "egg", "fish", "duck", "seitan"},
	{"rice", "quinoa", "oat", "pasta", "noodle", "bread", "couscous", "barley", "bulgur", "millet", "tortilla", "buckwheat", "polenta"},
	{"broccoli", "spinach", "kale", "potato", "sweet potato", "carrot", "zucchini", "cauliflower", "pepper", "tomato", "mushroom", "eggplant", "pumpkin", "squash", "cabbage"},
	{"lentil", "chickpea", "bean", "pea", "edamame"},
}

var (
	leadingQuantity = regexp.MustCompile(`^[\d\s/.,½¼¾⅓⅔\-–]+`)
	leadingTokens   = map[string]bool{
		"g": true, "kg": true, "mg": true, "ml": true, "l": true, "oz": true, "lb": true, "lbs": true,
		"cup": true, "cups": true, "tbsp": true, "tsp": true, "tablespoon": true, "tablespoons": true,
		"teaspoon": true, "teaspoons": true, "pinch": true, "handful": true, "slice": true, "slices": true,
		"can": true, "cans": true, "clove": true, "cloves": true, "piece": true, "pieces": true, "of": true,
		"large": true, "small": true, "medium": true, "fresh": true, "chopped": true, "diced": true,
		"sliced": true, "minced": true, "grated": true, "cooked": true, "raw": true, "frozen": true,
		"a": true, "an": true,
	}
)

// Fingerprint 內容指紋：相同內容（含主食材）必得相同結果，與 id/標題無關
func Fingerprint(r *common.Recipe) string {
	ingredients := make([]string, len(r.Ingredients))
	for i, ing := range r.Ingredients {
		ingredients[i] = strings.ToLower(strings.TrimSpace(ing))
	}

	parts := []string{
		strings.Join(ingredients, "\n"),
		strings.Join(r.Instructions, "\n"),
		strings.Join(r.Categories, "\n"),
		formatMacro(r.Calories),
		formatMacro(r.Protein),
		formatMacro(r.Carbs),
		formatMacro(r.Fat),
		r.MainIngredient,
	}

	hash := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(hash[:])
}

func formatMacro(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

// ExtractMainIngredient 判斷主食材：明確欄位 > 前三行食材關鍵字 > 第一行食材去除數量
func ExtractMainIngredient(r *common.Recipe) string {
	if explicit := strings.TrimSpace(r.MainIngredient); explicit != "" {
		return r.MainIngredient
	}
	if len(r.Ingredients) == 0 {
		return UnknownIngredient
	}

	head := r.Ingredients
	if len(head) > 3 {
		head = head[:3]
	}
	for _, family := range ingredientFamilies {
		for _, line := range head {
			lower := strings.ToLower(line)
			if kw := longestMatch(lower, family); kw != "" {
				return kw
			}
		}
	}

	if name := stripQuantity(r.Ingredients[0]); name != "" {
		return name
	}
	return UnknownIngredient
}

// 取最長的命中關鍵字，避免 "sweet potato" 被 "potato" 蓋過
func longestMatch(text string, keywords []string) string {
	best := ""
	for _, kw := range keywords {
		if containsWord(text, kw) && len(kw) > len(best) {
			best = kw
		}
	}
	return best
}

// containsWord 以單字邊界比對，允許複數字尾（eggplant 不算 egg，tomatoes 算 tomato）
func containsWord(text, kw string) bool {
	for offset := 0; offset < len(text); {
		idx := strings.Index(text[offset:], kw)
		if idx < 0 {
			return false
		}
		start := offset + idx
		if start == 0 || !isLetter(text[start-1]) {
			rest := text[start+len(kw):]
			if atBoundary(rest) || strings.HasPrefix(rest, "s") && atBoundary(rest[1:]) || strings.HasPrefix(rest, "es") && atBoundary(rest[2:]) {
				return true
			}
		}
		offset = start + 1
	}
	return false
}

func atBoundary(rest string) bool {
	return len(rest) == 0 || !isLetter(rest[0])
}

func isLetter(b byte) bool {
	return b >= 'a' && b <= 'z'
}

func stripQuantity(line string) string {
	s := strings.ToLower(strings.TrimSpace(line))
	if idx := strings.Index(s, ","); idx >= 0 {
		s = s[:idx]
	}
	s = leadingQuantity.ReplaceAllString(s, "")

	words := strings.Fields(s)
	for len(words) > 0 && leadingTokens[strings.Trim(words[0], "().")] {
		words = words[1:]
	}
	return strings.TrimSpace(strings.Join(words, " "))
}
