// Package persistence 以 gorm 實作使用者資料、食譜、跑步行程與餐點計畫的儲存。
package persistence

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"meal-planner/internal/pkg/common"
)

// StringSlice 以 JSON 字串儲存的字串陣列
type StringSlice []string

// Scan implements the sql.Scanner interface
func (s *StringSlice) Scan(value interface{}) error {
	if value == nil {
		*s = StringSlice{}
		return nil
	}

	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, s)
	case string:
		return json.Unmarshal([]byte(v), s)
	default:
		return fmt.Errorf("cannot scan %T into StringSlice", value)
	}
}

// Value implements the driver.Valuer interface
func (s StringSlice) Value() (driver.Value, error) {
	if len(s) == 0 {
		return "[]", nil
	}
	data, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// ProfileModel 使用者資料
type ProfileModel struct {
	UserID             string      `gorm:"type:varchar(64);primaryKey"`
	WeightKg           float64     `gorm:"default:0"`
	HeightCm           float64     `gorm:"default:0"`
	Age                int         `gorm:"default:0"`
	Gender             string      `gorm:"type:varchar(16)"`
	BMR                *float64    `gorm:"column:bmr"`
	ActivityLevel      string      `gorm:"type:varchar(32)"`
	FitnessGoal        string      `gorm:"type:varchar(32)"`
	DietaryPreferences StringSlice `gorm:"type:json"`
	FoodAllergies      StringSlice `gorm:"type:json"`
	FoodsToAvoid       StringSlice `gorm:"type:json"`
	PreferredCuisines  StringSlice `gorm:"type:json"`
	MealComplexity     string      `gorm:"type:varchar(32)"`
	BatchEnabled       bool        `gorm:"default:false"`
	BatchIntensity     string      `gorm:"type:varchar(16)"`
	BatchPeople        int         `gorm:"default:1"`
	Latitude           *float64
	Longitude          *float64
	Timezone           string `gorm:"type:varchar(64)"`
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// TableName 資料表名稱
func (ProfileModel) TableName() string { return "profiles" }

// RecipeModel 食譜
type RecipeModel struct {
	ID                    string      `gorm:"type:char(36);primaryKey"`
	Title                 string      `gorm:"type:varchar(255);not null;index"`
	Calories              *float64
	Protein               *float64
	Carbs                 *float64
	Fat                   *float64
	Ingredients           StringSlice `gorm:"type:json"`
	Instructions          StringSlice `gorm:"type:json"`
	Categories            StringSlice `gorm:"type:json"`
	MealTypes             StringSlice `gorm:"type:json"`
	MealType              string      `gorm:"type:varchar(32)"`
	SeasonalSuitability   StringSlice `gorm:"type:json"`
	TemperaturePreference string      `gorm:"type:varchar(16)"`
	DishType              string      `gorm:"type:varchar(32)"`
	MainIngredient        string      `gorm:"type:varchar(64);index"`
	Cuisine               string      `gorm:"type:varchar(64)"`
	IsAIGenerated         bool        `gorm:"default:false;index"`
	CreatedAt             time.Time
}

// TableName 資料表名稱
func (RecipeModel) TableName() string { return "recipes" }

// RunModel 跑步行程
type RunModel struct {
	ID          string    `gorm:"type:char(36);primaryKey"`
	UserID      string    `gorm:"type:varchar(64);not null;index:idx_runs_user_start"`
	StartTime   time.Time `gorm:"not null;index:idx_runs_user_start"`
	DistanceKm  float64
	DurationMin float64
	Imported    bool `gorm:"default:false"`
	IsPlanned   bool `gorm:"default:false"`
}

// TableName 資料表名稱
func (RunModel) TableName() string { return "runs" }

// MealPlanModel 每位使用者每週一份計畫
type MealPlanModel struct {
	ID        string `gorm:"type:char(36);primaryKey"`
	UserID    string `gorm:"type:varchar(64);not null;uniqueIndex:idx_plans_user_week"`
	WeekStart string `gorm:"type:char(10);not null;uniqueIndex:idx_plans_user_week"`
	WeekEnd   string `gorm:"type:char(10);not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName 資料表名稱
func (MealPlanModel) TableName() string { return "meal_plans" }

// MealPlanItemModel 計畫中的單筆餐點
type MealPlanItemModel struct {
	ID                 string  `gorm:"type:char(36);primaryKey"`
	PlanID             string  `gorm:"type:char(36);not null;index"`
	Position           int     `gorm:"not null"`
	Date               string  `gorm:"type:char(10);not null"`
	MealType           string  `gorm:"type:varchar(32);not null"`
	RecipeID           *string `gorm:"type:char(36)"`
	CustomTitle        string  `gorm:"type:varchar(255)"`
	Calories           float64
	Protein            float64
	Carbs              float64
	Fat                float64
	NutritionalContext string `gorm:"type:text"`
	IsAIGenerated      bool   `gorm:"default:false"`
	MainIngredient     string `gorm:"type:varchar(64)"`
}

// TableName 資料表名稱
func (MealPlanItemModel) TableName() string { return "meal_plan_items" }

// Models 需要遷移的資料表
func Models() []interface{} {
	return []interface{}{
		&ProfileModel{},
		&RecipeModel{},
		&RunModel{},
		&MealPlanModel{},
		&MealPlanItemModel{},
	}
}

func profileFromModel(m *ProfileModel) *common.UserProfile {
	return &common.UserProfile{
		UserID:             m.UserID,
		WeightKg:           m.WeightKg,
		HeightCm:           m.HeightCm,
		Age:                m.Age,
		Gender:             m.Gender,
		BMR:                m.BMR,
		ActivityLevel:      m.ActivityLevel,
		FitnessGoal:        m.FitnessGoal,
		DietaryPreferences: []string(m.DietaryPreferences),
		FoodAllergies:      []string(m.FoodAllergies),
		FoodsToAvoid:       []string(m.FoodsToAvoid),
		PreferredCuisines:  []string(m.PreferredCuisines),
		MealComplexity:     m.MealComplexity,
		BatchCooking: common.BatchCookingSettings{
			Enabled:   m.BatchEnabled,
			Intensity: m.BatchIntensity,
			People:    m.BatchPeople,
		},
		Latitude:  m.Latitude,
		Longitude: m.Longitude,
		Timezone:  m.Timezone,
	}
}

func profileToModel(p *common.UserProfile) *ProfileModel {
	return &ProfileModel{
		UserID:             p.UserID,
		WeightKg:           p.WeightKg,
		HeightCm:           p.HeightCm,
		Age:                p.Age,
		Gender:             p.Gender,
		BMR:                p.BMR,
		ActivityLevel:      p.ActivityLevel,
		FitnessGoal:        p.FitnessGoal,
		DietaryPreferences: StringSlice(p.DietaryPreferences),
		FoodAllergies:      StringSlice(p.FoodAllergies),
		FoodsToAvoid:       StringSlice(p.FoodsToAvoid),
		PreferredCuisines:  StringSlice(p.PreferredCuisines),
		MealComplexity:     p.MealComplexity,
		BatchEnabled:       p.BatchCooking.Enabled,
		BatchIntensity:     p.BatchCooking.Intensity,
		BatchPeople:        p.BatchCooking.People,
		Latitude:           p.Latitude,
		Longitude:          p.Longitude,
		Timezone:           p.Timezone,
	}
}

func recipeFromModel(m *RecipeModel) common.Recipe {
	return common.Recipe{
		ID:                    m.ID,
		Title:                 m.Title,
		Calories:              m.Calories,
		Protein:               m.Protein,
		Carbs:                 m.Carbs,
		Fat:                   m.Fat,
		Ingredients:           []string(m.Ingredients),
		Instructions:          []string(m.Instructions),
		Categories:            []string(m.Categories),
		MealTypes:             []string(m.MealTypes),
		MealType:              m.MealType,
		SeasonalSuitability:   []string(m.SeasonalSuitability),
		TemperaturePreference: m.TemperaturePreference,
		DishType:              m.DishType,
		MainIngredient:        m.MainIngredient,
		Cuisine:               m.Cuisine,
		IsAIGenerated:         m.IsAIGenerated,
	}
}

func recipeToModel(r *common.Recipe) *RecipeModel {
	return &RecipeModel{
		ID:                    r.ID,
		Title:                 r.Title,
		Calories:              r.Calories,
		Protein:               r.Protein,
		Carbs:                 r.Carbs,
		Fat:                   r.Fat,
		Ingredients:           StringSlice(r.Ingredients),
		Instructions:          StringSlice(r.Instructions),
		Categories:            StringSlice(r.Categories),
		MealTypes:             StringSlice(r.MealTypes),
		MealType:              r.MealType,
		SeasonalSuitability:   StringSlice(r.SeasonalSuitability),
		TemperaturePreference: r.TemperaturePreference,
		DishType:              r.DishType,
		MainIngredient:        r.MainIngredient,
		Cuisine:               r.Cuisine,
		IsAIGenerated:         r.IsAIGenerated,
	}
}

func runFromModel(m *RunModel) common.RunEvent {
	return common.RunEvent{
		ID:          m.ID,
		StartTime:   m.StartTime.UTC(),
		DistanceKm:  m.DistanceKm,
		DurationMin: m.DurationMin,
		Imported:    m.Imported,
		IsPlanned:   m.IsPlanned,
	}
}

func itemToModel(planID string, position int, item *common.MealPlanItem) *MealPlanItemModel {
	return &MealPlanItemModel{
		ID:                 common.GenerateUUID(),
		PlanID:             planID,
		Position:           position,
		Date:               item.DateKey(),
		MealType:           string(item.MealType),
		RecipeID:           item.RecipeID,
		CustomTitle:        item.CustomTitle,
		Calories:           item.Macros.Calories,
		Protein:            item.Macros.Protein,
		Carbs:              item.Macros.Carbs,
		Fat:                item.Macros.Fat,
		NutritionalContext: item.NutritionalContext,
		IsAIGenerated:      item.IsAIGenerated,
		MainIngredient:     item.MainIngredient,
	}
}

func itemFromModel(m *MealPlanItemModel) (common.MealPlanItem, error) {
	date, err := common.ParseDate(m.Date)
	if err != nil {
		return common.MealPlanItem{}, fmt.Errorf("invalid item date %q: %w", m.Date, err)
	}
	return common.MealPlanItem{
		Date:               date,
		MealType:           common.MealType(m.MealType),
		RecipeID:           m.RecipeID,
		CustomTitle:        m.CustomTitle,
		Macros:             common.Macros{Calories: m.Calories, Protein: m.Protein, Carbs: m.Carbs, Fat: m.Fat},
		NutritionalContext: m.NutritionalContext,
		IsAIGenerated:      m.IsAIGenerated,
		MainIngredient:     m.MainIngredient,
	}, nil
}
