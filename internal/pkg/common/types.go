package common

import (
	"strings"
	"time"
)

// DateLayout 日期字串格式
const DateLayout = "2006-01-02"

// MealType 餐別
type MealType string

const (
	MealBreakfast    MealType = "breakfast"
	MealLunch        MealType = "lunch"
	MealDinner       MealType = "dinner"
	MealSnack        MealType = "snack"
	MealPreRunSnack  MealType = "pre_run_snack"
	MealPostRunSnack MealType = "post_run_snack"
)

// MainMeals 每日三餐，依填寫順序
var MainMeals = []MealType{MealBreakfast, MealLunch, MealDinner}

// IsSnack 是否為跑步點心
func (m MealType) IsSnack() bool {
	return m == MealSnack || m == MealPreRunSnack || m == MealPostRunSnack
}

// Vocabulary 分類時使用的餐別詞彙（點心類共用 snack）
func (m MealType) Vocabulary() MealType {
	if m.IsSnack() {
		return MealSnack
	}
	return m
}

// BatchCookingSettings 批次烹飪設定
type BatchCookingSettings struct {
	Enabled   bool   `json:"enabled"`
	Intensity string `json:"intensity"` // low, medium, high
	People    int    `json:"people"`
}

// UserProfile 使用者生理資料與飲食偏好（唯讀）
type UserProfile struct {
	UserID             string               `json:"user_id"`
	WeightKg           float64              `json:"weight_kg"`
	HeightCm           float64              `json:"height_cm"`
	Age                int                  `json:"age"`
	Gender             string               `json:"gender"`
	BMR                *float64             `json:"bmr,omitempty"`
	ActivityLevel      string               `json:"activity_level"`
	FitnessGoal        string               `json:"fitness_goal"`
	DietaryPreferences []string             `json:"dietary_preferences"`
	FoodAllergies      []string             `json:"food_allergies"`
	FoodsToAvoid       []string             `json:"foods_to_avoid"`
	PreferredCuisines  []string             `json:"preferred_cuisines"`
	MealComplexity     string               `json:"meal_complexity"`
	BatchCooking       BatchCookingSettings `json:"batch_cooking"`
	Latitude           *float64             `json:"latitude,omitempty"`
	Longitude          *float64             `json:"longitude,omitempty"`
	Timezone           string               `json:"timezone,omitempty"` // IANA 名稱，例如 Asia/Taipei
}

// HasLocation 是否可查詢天氣
func (p *UserProfile) HasLocation() bool {
	return p.Latitude != nil && p.Longitude != nil
}

// Location 使用者時區；未設定時為 UTC，名稱無效時 ok 為 false
func (p *UserProfile) Location() (loc *time.Location, ok bool) {
	if p.Timezone == "" {
		return time.UTC, true
	}
	loc, err := time.LoadLocation(p.Timezone)
	if err != nil {
		return time.UTC, false
	}
	return loc, true
}

// Macros 營養素快照，缺值一律為 0
type Macros struct {
	Calories float64 `json:"calories"`
	Protein  float64 `json:"protein"`
	Carbs    float64 `json:"carbs"`
	Fat      float64 `json:"fat"`
}

// Recipe 食譜
type Recipe struct {
	ID                    string   `json:"id"`
	Title                 string   `json:"title"`
	Calories              *float64 `json:"calories,omitempty"`
	Protein               *float64 `json:"protein,omitempty"`
	Carbs                 *float64 `json:"carbs,omitempty"`
	Fat                   *float64 `json:"fat,omitempty"`
	Ingredients           []string `json:"ingredients"`
	Instructions          []string `json:"instructions"`
	Categories            []string `json:"categories"`
	MealTypes             []string `json:"meal_types,omitempty"`
	MealType              string   `json:"meal_type,omitempty"` // 舊版單一餐別
	SeasonalSuitability   []string `json:"seasonal_suitability,omitempty"`
	TemperaturePreference string   `json:"temperature_preference,omitempty"`
	DishType              string   `json:"dish_type,omitempty"`
	MainIngredient        string   `json:"main_ingredient,omitempty"`
	Cuisine               string   `json:"cuisine,omitempty"`
	IsAIGenerated         bool     `json:"is_ai_generated"`
}

// Macros 取得營養素，缺值視為 0
func (r *Recipe) Macros() Macros {
	return Macros{
		Calories: valueOrZero(r.Calories),
		Protein:  valueOrZero(r.Protein),
		Carbs:    valueOrZero(r.Carbs),
		Fat:      valueOrZero(r.Fat),
	}
}

// HasCategory 是否包含指定分類（不分大小寫）
func (r *Recipe) HasCategory(category string) bool {
	for _, c := range r.Categories {
		if strings.EqualFold(strings.TrimSpace(c), category) {
			return true
		}
	}
	return false
}

func valueOrZero(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

// Float 取得 float64 指標
func Float(v float64) *float64 {
	return &v
}

// RunEvent 跑步行程（唯讀）
type RunEvent struct {
	ID          string    `json:"id"`
	StartTime   time.Time `json:"start_time"`
	DistanceKm  float64   `json:"distance_km"`
	DurationMin float64   `json:"duration_min"`
	Imported    bool      `json:"imported"`
	IsPlanned   bool      `json:"is_planned"`
}

// DailyRequirement 單日營養需求
type DailyRequirement struct {
	Date           time.Time            `json:"date"`
	TargetCalories float64              `json:"target_calories"`
	ProteinGrams   float64              `json:"protein_grams"`
	CarbsGrams     float64              `json:"carbs_grams"`
	FatGrams       float64              `json:"fat_grams"`
	MealCalories   map[MealType]float64 `json:"meal_calories"`
	RunCalories    float64              `json:"run_calories,omitempty"`
}

// ProteinFor 依該餐熱量比例換算蛋白質目標
func (d DailyRequirement) ProteinFor(mealType MealType) float64 {
	if d.TargetCalories <= 0 {
		return 0
	}
	return d.ProteinGrams * d.MealCalories[mealType] / d.TargetCalories
}

// MealPlanItem 產出的單筆餐點
type MealPlanItem struct {
	Date               time.Time `json:"date"`
	MealType           MealType  `json:"meal_type"`
	RecipeID           *string   `json:"recipe_id"`
	CustomTitle        string    `json:"custom_title,omitempty"`
	Macros             Macros    `json:"macros"`
	NutritionalContext string    `json:"nutritional_context,omitempty"`
	IsAIGenerated      bool      `json:"is_ai_generated"`
	MainIngredient     string    `json:"main_ingredient"`
}

// DateKey 以日期字串表示
func (i MealPlanItem) DateKey() string {
	return i.Date.Format(DateLayout)
}
