package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"meal-planner/internal/core/planner"
	"meal-planner/internal/pkg/common"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ProfileRepository 使用者資料
type ProfileRepository struct {
	db *gorm.DB
}

// NewProfileRepository creates a new profile repository
func NewProfileRepository(db *gorm.DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

var _ planner.ProfileReader = (*ProfileRepository)(nil)

// GetProfile 找不到時回傳 common.ErrProfileNotFound
func (r *ProfileRepository) GetProfile(ctx context.Context, userID string) (*common.UserProfile, error) {
	var model ProfileModel
	if err := r.db.WithContext(ctx).First(&model, "user_id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.ErrProfileNotFound
		}
		return nil, err
	}
	return profileFromModel(&model), nil
}

// SaveProfile 新增或覆寫使用者資料
func (r *ProfileRepository) SaveProfile(ctx context.Context, profile *common.UserProfile) error {
	if profile.UserID == "" {
		return errors.New("user id is required")
	}
	return r.db.WithContext(ctx).Save(profileToModel(profile)).Error
}

// RecipeRepository 食譜庫，同時負責寫入 AI 食譜
type RecipeRepository struct {
	db *gorm.DB
}

// NewRecipeRepository creates a new recipe repository
func NewRecipeRepository(db *gorm.DB) *RecipeRepository {
	return &RecipeRepository{db: db}
}

var (
	_ planner.RecipeReader = (*RecipeRepository)(nil)
	_ planner.RecipeSink   = (*RecipeRepository)(nil)
)

// ListRecipes 依建立時間與 id 排序，讓同一份資料得到同樣的順序
func (r *RecipeRepository) ListRecipes(ctx context.Context) ([]common.Recipe, error) {
	var models []RecipeModel
	if err := r.db.WithContext(ctx).Order("created_at ASC, id ASC").Find(&models).Error; err != nil {
		return nil, err
	}

	out := make([]common.Recipe, 0, len(models))
	for i := range models {
		out = append(out, recipeFromModel(&models[i]))
	}
	return out, nil
}

// CreateRecipes 寫入食譜；沒有 id 的會自動指派
func (r *RecipeRepository) CreateRecipes(ctx context.Context, recipes []common.Recipe) ([]common.Recipe, error) {
	if len(recipes) == 0 {
		return nil, nil
	}

	saved := make([]common.Recipe, len(recipes))
	models := make([]*RecipeModel, len(recipes))
	for i := range recipes {
		saved[i] = recipes[i]
		if saved[i].ID == "" {
			saved[i].ID = common.GenerateUUID()
		}
		models[i] = recipeToModel(&saved[i])
	}

	if err := r.db.WithContext(ctx).Create(models).Error; err != nil {
		return nil, fmt.Errorf("failed to create recipes: %w", err)
	}
	return saved, nil
}

// SaveAIRecipes 寫入通過去重的 AI 食譜，回傳順序與輸入一致
func (r *RecipeRepository) SaveAIRecipes(ctx context.Context, recipes []common.Recipe) ([]common.Recipe, error) {
	in := make([]common.Recipe, len(recipes))
	for i := range recipes {
		in[i] = recipes[i]
		in[i].ID = ""
		in[i].IsAIGenerated = true
	}

	saved, err := r.CreateRecipes(ctx, in)
	if err != nil {
		return nil, err
	}
	common.LogInfo("AI recipes saved", zap.Int("count", len(saved)))
	return saved, nil
}

// RunRepository 跑步行程
type RunRepository struct {
	db *gorm.DB
}

// NewRunRepository creates a new run repository
func NewRunRepository(db *gorm.DB) *RunRepository {
	return &RunRepository{db: db}
}

var _ planner.RunReader = (*RunRepository)(nil)

// ListRuns 取得 [from, to) 區間內的行程
func (r *RunRepository) ListRuns(ctx context.Context, userID string, from, to time.Time) ([]common.RunEvent, error) {
	var models []RunModel
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND start_time >= ? AND start_time < ?", userID, from.UTC(), to.UTC()).
		Order("start_time ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	out := make([]common.RunEvent, 0, len(models))
	for i := range models {
		out = append(out, runFromModel(&models[i]))
	}
	return out, nil
}

// SaveRun 新增行程；沒有 id 時自動指派
func (r *RunRepository) SaveRun(ctx context.Context, userID string, run common.RunEvent) (common.RunEvent, error) {
	if run.ID == "" {
		run.ID = common.GenerateUUID()
	}
	run.StartTime = run.StartTime.UTC()

	model := &RunModel{
		ID:          run.ID,
		UserID:      userID,
		StartTime:   run.StartTime,
		DistanceKm:  run.DistanceKm,
		DurationMin: run.DurationMin,
		Imported:    run.Imported,
		IsPlanned:   run.IsPlanned,
	}
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return common.RunEvent{}, err
	}
	return run, nil
}

// PlanRepository 餐點計畫
type PlanRepository struct {
	db *gorm.DB
}

// NewPlanRepository creates a new plan repository
func NewPlanRepository(db *gorm.DB) *PlanRepository {
	return &PlanRepository{db: db}
}

var _ planner.PlanStore = (*PlanRepository)(nil)

// CreateOrFetchPlan 以 (user, week_start) 找出計畫，不存在時建立
func (r *PlanRepository) CreateOrFetchPlan(ctx context.Context, userID string, weekStart, weekEnd time.Time) (string, error) {
	var model MealPlanModel
	err := r.db.WithContext(ctx).
		Where(MealPlanModel{UserID: userID, WeekStart: weekStart.Format(common.DateLayout)}).
		Attrs(MealPlanModel{ID: common.GenerateUUID()}).
		Assign(MealPlanModel{WeekEnd: weekEnd.Format(common.DateLayout)}).
		FirstOrCreate(&model).Error
	if err != nil {
		return "", err
	}
	return model.ID, nil
}

// ReplaceItems 在單一交易中刪除舊項目並寫入新項目；失敗時舊項目保持不變
func (r *PlanRepository) ReplaceItems(ctx context.Context, planID string, items []common.MealPlanItem) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var plan MealPlanModel
		if err := tx.First(&plan, "id = ?", planID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return common.ErrPlanNotFound
			}
			return err
		}

		if err := tx.Where("plan_id = ?", planID).Delete(&MealPlanItemModel{}).Error; err != nil {
			return fmt.Errorf("failed to delete plan items: %w", err)
		}

		if len(items) > 0 {
			models := make([]*MealPlanItemModel, len(items))
			for i := range items {
				models[i] = itemToModel(planID, i, &items[i])
			}
			if err := tx.CreateInBatches(models, 100).Error; err != nil {
				return fmt.Errorf("failed to insert plan items: %w", err)
			}
		}

		return tx.Model(&plan).Update("updated_at", time.Now().UTC()).Error
	})
}

// ListItems 取得使用者某週的計畫；不存在時回傳 common.ErrPlanNotFound
func (r *PlanRepository) ListItems(ctx context.Context, userID string, weekStart time.Time) (string, []common.MealPlanItem, error) {
	var plan MealPlanModel
	err := r.db.WithContext(ctx).
		First(&plan, "user_id = ? AND week_start = ?", userID, weekStart.Format(common.DateLayout)).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil, common.ErrPlanNotFound
		}
		return "", nil, err
	}

	var models []MealPlanItemModel
	if err := r.db.WithContext(ctx).Where("plan_id = ?", plan.ID).Order("position ASC").Find(&models).Error; err != nil {
		return "", nil, err
	}

	items := make([]common.MealPlanItem, 0, len(models))
	for i := range models {
		item, err := itemFromModel(&models[i])
		if err != nil {
			return "", nil, err
		}
		items = append(items, item)
	}
	return plan.ID, items, nil
}
