// Package generator 透過 AI 產生候選食譜與一週餐點結構。
//
// 回應一律以寬鬆方式解析：去除 markdown、補上鍵的引號、容忍數字以字串表示，
// 解析後補齊餐別、主食材與 AI 標記。成功解析的原始回應會寫入快取。
package generator

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"meal-planner/internal/core/ai/cache"
	"meal-planner/internal/core/ai/provider"
	"meal-planner/internal/core/planner"
	"meal-planner/internal/pkg/common"

	"go.uber.org/zap"
)

const (
	candidateNamespace = "ai_candidates"
	structureNamespace = "ai_structure"

	// maxPoolInPrompt 每種餐別放入 prompt 的食譜上限
	maxPoolInPrompt = 40
)

const systemPrompt = "You are a sports nutritionist planning meals for endurance runners. " +
	"Always answer with a single compact JSON object and nothing else."

// Options 生成參數
type Options struct {
	Temperature float64
	MaxTokens   int
}

// Generator 實作 planner.CandidateGenerator 與 planner.PlanStructureGenerator
type Generator struct {
	provider provider.Provider
	cache    cache.Store
	opts     Options
}

// New 建立生成器；store 可為 nil
func New(p provider.Provider, store cache.Store, opts Options) *Generator {
	return &Generator{provider: p, cache: store, opts: opts}
}

var (
	_ planner.CandidateGenerator     = (*Generator)(nil)
	_ planner.PlanStructureGenerator = (*Generator)(nil)
)

// GenerateCandidates 產生候選食譜（沒有 id，尚未儲存）
func (g *Generator) GenerateCandidates(ctx context.Context, req planner.CandidateRequest) ([]common.Recipe, error) {
	if req.Count <= 0 || req.Profile == nil {
		return nil, nil
	}
	mealTypes := req.MealTypes
	if len(mealTypes) == 0 {
		mealTypes = common.MainMeals
	}

	prompt := candidatePrompt(req, mealTypes)
	common.LogDebug("GenerateCandidates 組裝的 prompt", zap.Int("prompt_length", len(prompt)))

	var env candidateEnvelope
	if err := g.complete(ctx, candidateNamespace, prompt, &env); err != nil {
		return nil, err
	}

	out := make([]common.Recipe, 0, len(env.Recipes))
	for i := range env.Recipes {
		r, ok := env.Recipes[i].toRecipe(mealTypes)
		if !ok {
			common.LogDebug("skipping incomplete AI recipe", zap.Int("index", i))
			continue
		}
		out = append(out, r)
	}
	if len(out) == 0 {
		return nil, common.ErrInvalidAIContent.Wrap(errors.New("no usable recipes in AI response"))
	}
	if len(out) > req.Count {
		out = out[:req.Count]
	}

	common.LogInfo("AI candidates generated",
		zap.Int("requested", req.Count),
		zap.Int("received", len(out)),
	)
	return out, nil
}

// GeneratePlanStructure 產生每日餐點結構：引用既有食譜 id，或附上新食譜
func (g *Generator) GeneratePlanStructure(ctx context.Context, req planner.StructureRequest) (*planner.PlanStructure, error) {
	if req.Profile == nil || len(req.Days) == 0 {
		return nil, common.ErrInvalidRequest.Wrap(errors.New("profile and days are required"))
	}

	prompt := structurePrompt(req)
	common.LogDebug("GeneratePlanStructure 組裝的 prompt", zap.Int("prompt_length", len(prompt)))

	var env structureEnvelope
	if err := g.complete(ctx, structureNamespace, prompt, &env); err != nil {
		return nil, err
	}

	structure := toStructure(env, req.Days)
	if len(structure.Days) == 0 {
		return nil, common.ErrInvalidAIContent.Wrap(errors.New("no usable days in AI response"))
	}
	return structure, nil
}

// complete 先查快取，未命中時呼叫 AI；只有成功解析的回應會寫入快取
func (g *Generator) complete(ctx context.Context, namespace, prompt string, v interface{}) error {
	key := cache.Key(g.provider.GetModel(), prompt)

	if g.cache != nil {
		cached, err := g.cache.Get(ctx, namespace, key)
		if err == nil {
			if perr := common.ParseAIJSON(cached, v); perr == nil {
				return nil
			}
			common.LogWarn("ignoring unparseable cached AI response", zap.String("namespace", namespace))
		} else if !errors.Is(err, common.ErrCacheMiss) && !errors.Is(err, common.ErrCacheDisabled) {
			common.LogWarn("cache lookup failed", zap.String("namespace", namespace), zap.Error(err))
		}
	}

	began := time.Now()
	resp, err := g.provider.Generate(ctx, &provider.Request{
		Messages:    []provider.Message{provider.System(systemPrompt), provider.User(prompt)},
		MaxTokens:   g.opts.MaxTokens,
		Temperature: g.opts.Temperature,
		JSONMode:    true,
	})
	common.LogExternalCall("openrouter:"+namespace, time.Since(began), err)
	if err != nil {
		return common.ErrExternalUnavailable.Wrap(fmt.Errorf("AI service error: %w", err))
	}
	if resp == nil || strings.TrimSpace(resp.Content) == "" {
		return common.ErrInvalidAIContent.Wrap(errors.New("empty AI response"))
	}

	if err := common.ParseAIJSON(resp.Content, v); err != nil {
		common.LogError("AI 回應解析失敗(loose)",
			zap.String("namespace", namespace),
			zap.Error(err),
			zap.Int("ai_response_length", len(resp.Content)),
		)
		return common.ErrInvalidAIContent.Wrap(err)
	}

	if g.cache != nil {
		if err := g.cache.Set(ctx, namespace, key, resp.Content); err != nil {
			common.LogWarn("failed to cache AI response", zap.String("namespace", namespace), zap.Error(err))
		}
	}
	return nil
}

// toStructure 只保留請求範圍內的日期與已知餐別；同日同餐別以第一筆為準
func toStructure(env structureEnvelope, days []time.Time) *planner.PlanStructure {
	wanted := make(map[string]time.Time, len(days))
	for _, d := range days {
		wanted[d.Format(common.DateLayout)] = d
	}

	structure := &planner.PlanStructure{}
	seenDay := make(map[string]bool)
	for _, ld := range env.Days {
		key := strings.TrimSpace(ld.Date)
		if len(key) > len(common.DateLayout) {
			key = key[:len(common.DateLayout)]
		}
		date, ok := wanted[key]
		if !ok || seenDay[key] {
			continue
		}
		seenDay[key] = true

		day := planner.DayStructure{Date: date}
		seenMeal := make(map[common.MealType]bool)
		for _, lm := range ld.Meals {
			mt, ok := parseMealType(lm.MealType)
			if !ok || seenMeal[mt] {
				continue
			}
			ref := planner.MealRef{MealType: mt, RecipeID: strings.TrimSpace(lm.RecipeID)}
			if lm.Recipe != nil {
				if r, ok := lm.Recipe.toRecipe([]common.MealType{mt}); ok {
					ref.Recipe = &r
				}
			}
			if ref.RecipeID == "" && ref.Recipe == nil {
				continue
			}
			seenMeal[mt] = true
			day.Meals = append(day.Meals, ref)
		}
		structure.Days = append(structure.Days, day)
	}

	sort.Slice(structure.Days, func(i, j int) bool {
		return structure.Days[i].Date.Before(structure.Days[j].Date)
	})
	return structure
}

func candidatePrompt(req planner.CandidateRequest, mealTypes []common.MealType) string {
	p := req.Profile
	names := make([]string, 0, len(mealTypes))
	for _, mt := range mealTypes {
		names = append(names, string(mt))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Suggest %d new recipes for an endurance runner.\n\n", req.Count)
	fmt.Fprintf(&b, "Athlete:\n- goal: %s\n- activity level: %s\n- daily calories: %.0f kcal\n",
		orUnknown(p.FitnessGoal), orUnknown(p.ActivityLevel), req.Targets.DailyCalories)
	fmt.Fprintf(&b, "- macro split: protein %.0f%%, carbs %.0f%%, fat %.0f%%\n",
		req.Targets.Split.Protein*100, req.Targets.Split.Carbs*100, req.Targets.Split.Fat*100)
	writeList(&b, "dietary preferences", p.DietaryPreferences)
	writeList(&b, "preferred cuisines", p.PreferredCuisines)
	if p.MealComplexity != "" {
		fmt.Fprintf(&b, "- meal complexity: %s\n", p.MealComplexity)
	}
	fmt.Fprintf(&b, "- season: %s\n", req.Season)

	b.WriteString("\nRequirements:\n")
	fmt.Fprintf(&b, "1. Spread the recipes across these meal types: %s\n", strings.Join(names, ", "))
	if len(req.ExcludeText) > 0 {
		fmt.Fprintf(&b, "2. Never use these ingredients: %s\n", strings.Join(req.ExcludeText, ", "))
	} else {
		b.WriteString("2. No ingredient restrictions\n")
	}
	b.WriteString("3. calories, protein, carbs and fat are numbers per serving (grams for macros)\n")
	b.WriteString("4. ingredients are plain strings such as \"150 g chicken breast\"\n")
	b.WriteString("5. seasonal_suitability uses spring, summer, autumn, winter or year_round\n")
	b.WriteString("6. temperature_preference is hot, mild or cold; leave it empty when the dish suits any weather\n")
	b.WriteString("7. dish_type is warming or cooling; leave it empty otherwise\n")

	b.WriteString(`
Answer with this JSON shape (example only, do not copy the content):
{"recipes":[{"title":"Recipe name","meal_types":["dinner"],"calories":650,"protein":40,"carbs":70,"fat":18,` +
		`"ingredients":["150 g salmon","1 cup rice"],"instructions":["Step one"],"categories":["high protein"],` +
		`"seasonal_suitability":["year_round"],"temperature_preference":"hot","dish_type":"warming","main_ingredient":"salmon","cuisine":"japanese"}]}`)
	return b.String()
}

func structurePrompt(req planner.StructureRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Plan breakfast, lunch and dinner for %d days for an endurance runner.\n\n", len(req.Days))
	fmt.Fprintf(&b, "Athlete goal: %s, activity level: %s\n",
		orUnknown(req.Profile.FitnessGoal), orUnknown(req.Profile.ActivityLevel))
	writeList(&b, "dietary preferences", req.Profile.DietaryPreferences)
	writeList(&b, "allergies", req.Profile.FoodAllergies)
	writeList(&b, "foods to avoid", req.Profile.FoodsToAvoid)

	b.WriteString("\nDays:\n")
	for i, day := range req.Days {
		key := day.Format(common.DateLayout)
		fmt.Fprintf(&b, "- %s", key)
		if i < len(req.Requirements) {
			rq := req.Requirements[i]
			fmt.Fprintf(&b, ": %.0f kcal (breakfast %.0f, lunch %.0f, dinner %.0f)",
				rq.TargetCalories,
				rq.MealCalories[common.MealBreakfast],
				rq.MealCalories[common.MealLunch],
				rq.MealCalories[common.MealDinner])
		}
		if runs := req.Runs[key]; len(runs) > 0 {
			km := 0.0
			for _, r := range runs {
				km += r.DistanceKm
			}
			fmt.Fprintf(&b, ", run day %.1f km at %s", km, runs[0].StartTime.Format("15:04"))
		}
		b.WriteString("\n")
	}

	b.WriteString("\nAvailable recipes (id | meal types | kcal | protein g | main ingredient | title):\n")
	for _, line := range poolLines(req.Pool) {
		b.WriteString(line)
		b.WriteString("\n")
	}

	b.WriteString(`
Requirements:
1. Prefer recipe_id references from the list above
2. A meal may instead contain a complete new "recipe" object when nothing fits
3. Avoid repeating a recipe on consecutive days and never twice on the same day
4. Do not plan snacks

Answer with this JSON shape (example only):
{"days":[{"date":"2025-01-06","meals":[{"meal_type":"breakfast","recipe_id":"abc"},` +
		`{"meal_type":"dinner","recipe":{"title":"Name","calories":600,"protein":35,"carbs":70,"fat":15,"ingredients":["..."],"instructions":["..."]}}]}]}`)
	return b.String()
}

// poolLines 依餐別分組並各自截斷，讓 prompt 大小固定
func poolLines(pool []common.Recipe) []string {
	perMeal := make(map[string]int)
	lines := make([]string, 0, len(pool))
	for i := range pool {
		r := &pool[i]
		types := r.MealTypes
		if len(types) == 0 && r.MealType != "" {
			types = []string{r.MealType}
		}
		bucket := "any"
		if len(types) > 0 {
			bucket = types[0]
		}
		if perMeal[bucket] >= maxPoolInPrompt {
			continue
		}
		perMeal[bucket]++

		m := r.Macros()
		lines = append(lines, fmt.Sprintf("%s | %s | %.0f | %.0f | %s | %s",
			r.ID, orUnknown(strings.Join(types, ",")), math.Round(m.Calories), math.Round(m.Protein),
			orUnknown(r.MainIngredient), r.Title))
	}
	return lines
}

func writeList(b *strings.Builder, label string, items []string) {
	if joined := common.JoinNonEmpty(items, ", "); joined != "" {
		fmt.Fprintf(b, "- %s: %s\n", label, joined)
	}
}

func orUnknown(s string) string {
	if strings.TrimSpace(s) == "" {
		return "unknown"
	}
	return s
}
