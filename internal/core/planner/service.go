package planner

import (
	"context"
	"errors"
	"time"

	"meal-planner/internal/core/nutrition"
	"meal-planner/internal/core/recipe"
	"meal-planner/internal/pkg/common"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultDays 一週
const DefaultDays = 7

// ProfileReader 讀取使用者資料；找不到時回傳 common.ErrProfileNotFound
type ProfileReader interface {
	GetProfile(ctx context.Context, userID string) (*common.UserProfile, error)
}

// RecipeReader 讀取完整食譜庫
type RecipeReader interface {
	ListRecipes(ctx context.Context) ([]common.Recipe, error)
}

// RunReader 讀取日期區間內的跑步行程（含 from，不含 to）
type RunReader interface {
	ListRuns(ctx context.Context, userID string, from, to time.Time) ([]common.RunEvent, error)
}

// CandidateRequest AI 候選食譜請求
type CandidateRequest struct {
	Profile     *common.UserProfile
	Targets     nutrition.Targets
	Season      recipe.Season
	MealTypes   []common.MealType
	Count       int
	ExcludeText []string
}

// CandidateGenerator 產生未儲存、沒有 id 的候選食譜
type CandidateGenerator interface {
	GenerateCandidates(ctx context.Context, req CandidateRequest) ([]common.Recipe, error)
}

// StructureRequest AI 計畫結構請求
type StructureRequest struct {
	Profile      *common.UserProfile
	Pool         []common.Recipe
	Days         []time.Time
	Requirements []common.DailyRequirement
	Runs         map[string][]common.RunEvent
}

// PlanStructureGenerator 產生每日餐點結構
type PlanStructureGenerator interface {
	GeneratePlanStructure(ctx context.Context, req StructureRequest) (*PlanStructure, error)
}

// WeatherLookup 查詢每日平均氣溫，key 為 YYYY-MM-DD
type WeatherLookup interface {
	DailyTemperatures(ctx context.Context, latitude, longitude float64, from, to time.Time) (map[string]float64, error)
}

// PlanStore 計畫儲存；ReplaceItems 必須是單一交易
type PlanStore interface {
	CreateOrFetchPlan(ctx context.Context, userID string, weekStart, weekEnd time.Time) (string, error)
	ReplaceItems(ctx context.Context, planID string, items []common.MealPlanItem) error
	ListItems(ctx context.Context, userID string, weekStart time.Time) (string, []common.MealPlanItem, error)
}

// RecipeSink 儲存通過去重的 AI 食譜並指派 id，回傳順序與輸入一致
type RecipeSink interface {
	SaveAIRecipes(ctx context.Context, recipes []common.Recipe) ([]common.Recipe, error)
}

// Dependencies 服務依賴；AI 與天氣可為 nil
type Dependencies struct {
	Profiles   ProfileReader
	Recipes    RecipeReader
	Runs       RunReader
	Store      PlanStore
	Sink       RecipeSink
	Candidates CandidateGenerator
	Structure  PlanStructureGenerator
	Weather    WeatherLookup
}

// Options 服務參數
type Options struct {
	AllowGenericFallback bool
	DefaultDays          int
	MinSuitable          int
	CandidateCount       int
	AITimeout            time.Duration
	WeatherTimeout       time.Duration
}

// GenerateRequest 產生計畫請求
type GenerateRequest struct {
	UserID    string
	WeekStart time.Time
	Days      int
	Seed      *int64
	UseAI     bool
}

// GenerateResult 產生結果
type GenerateResult struct {
	PlanID            string                    `json:"plan_id"`
	Items             []common.MealPlanItem     `json:"items"`
	Strategy          string                    `json:"strategy"`
	Requirements      []common.DailyRequirement `json:"requirements"`
	DroppedDuplicates int                       `json:"dropped_duplicates"`
	GenericTargets    bool                      `json:"generic_targets"`
}

// Service 計畫產生服務；每次呼叫的狀態互不影響
type Service struct {
	deps Dependencies
	opts Options
}

// NewService 創建計畫服務
func NewService(deps Dependencies, opts Options) *Service {
	if opts.DefaultDays <= 0 {
		opts.DefaultDays = DefaultDays
	}
	if opts.MinSuitable <= 0 {
		opts.MinSuitable = recipe.MinExplicitSuitable
	}
	if opts.CandidateCount <= 0 {
		opts.CandidateCount = 6
	}
	if opts.AITimeout <= 0 {
		opts.AITimeout = 30 * time.Second
	}
	if opts.WeatherTimeout <= 0 {
		opts.WeatherTimeout = 5 * time.Second
	}
	return &Service{deps: deps, opts: opts}
}

// Generate 產生並儲存一週計畫
func (s *Service) Generate(ctx context.Context, req GenerateRequest) (*GenerateResult, error) {
	if req.UserID == "" {
		return nil, common.ErrInvalidRequest.Wrap(errors.New("user_id is required"))
	}
	days := req.Days
	if days <= 0 {
		days = s.opts.DefaultDays
	}
	start := common.TruncateDay(req.WeekStart)
	dates := common.DateRange(start, days)
	end := start.AddDate(0, 0, days)

	profile, err := s.deps.Profiles.GetProfile(ctx, req.UserID)
	if err != nil {
		if errors.Is(err, common.ErrProfileNotFound) {
			return nil, err
		}
		return nil, common.ErrPersistenceFailure.Wrap(err)
	}
	if profile == nil {
		return nil, common.ErrProfileNotFound
	}

	targets, err := nutrition.Calculate(profile)
	if err != nil {
		if !s.opts.AllowGenericFallback {
			return nil, common.ErrMissingProfileData.Wrap(err)
		}
		common.LogWarn("profile lacks bmr, using generic targets", zap.String("user_id", req.UserID))
		targets = nutrition.GenericTargets()
	}

	catalog, err := s.deps.Recipes.ListRecipes(ctx)
	if err != nil {
		return nil, common.ErrPersistenceFailure.Wrap(err)
	}
	if len(catalog) == 0 {
		return nil, common.ErrEmptyRecipePool
	}
	restriction := recipe.RestrictionFor(profile)
	pool := restriction.Apply(catalog)
	if len(pool) == 0 {
		return nil, common.ErrEmptyRecipePool.Wrap(errors.New("no recipe satisfies dietary restrictions"))
	}

	loc, ok := profile.Location()
	if !ok {
		common.LogWarn("unknown profile timezone, using UTC",
			zap.String("user_id", req.UserID),
			zap.String("timezone", profile.Timezone),
		)
	}

	var runs []common.RunEvent
	if s.deps.Runs != nil {
		// 前後各多取一天，換算成當地時間後再依日期分組
		runs, err = s.deps.Runs.ListRuns(ctx, req.UserID, start.AddDate(0, 0, -1), end.AddDate(0, 0, 1))
		if err != nil {
			return nil, common.ErrPersistenceFailure.Wrap(err)
		}
		runs = localizeRuns(runs, loc)
	}

	temperatures, candidates := s.fetchExternal(ctx, req, profile, targets, start, end, restriction)

	seed := time.Now().UnixNano()
	if req.Seed != nil {
		seed = *req.Seed
	}
	gc := NewGenerationContext(ContextInput{
		Profile:      profile,
		Targets:      targets,
		Days:         dates,
		Pool:         pool,
		Catalog:      catalog,
		Runs:         runs,
		Temperatures: temperatures,
		Seed:         seed,
		MinSuitable:  s.opts.MinSuitable,
	})
	if len(candidates) > 0 {
		gc.MergeAIRecipes(ctx, s.deps.Sink, candidates)
	}

	strategy := s.chooseStrategy(ctx, req, gc)
	items := Assemble(gc, strategy)

	planID, err := s.deps.Store.CreateOrFetchPlan(ctx, req.UserID, start, end.AddDate(0, 0, -1))
	if err != nil {
		return nil, common.ErrPersistenceFailure.Wrap(err)
	}
	if err := s.deps.Store.ReplaceItems(ctx, planID, items); err != nil {
		return nil, common.ErrPersistenceFailure.Wrap(err)
	}

	common.LogInfo("meal plan generated",
		zap.String("user_id", req.UserID),
		zap.String("plan_id", planID),
		zap.String("strategy", strategy.Name()),
		zap.Int("items", len(items)),
		zap.Int("dropped_duplicates", gc.DroppedDuplicates),
	)

	return &GenerateResult{
		PlanID:            planID,
		Items:             items,
		Strategy:          strategy.Name(),
		Requirements:      gc.Requirements,
		DroppedDuplicates: gc.DroppedDuplicates,
		GenericTargets:    targets.Generic,
	}, nil
}

// GetPlan 讀取已儲存的計畫
func (s *Service) GetPlan(ctx context.Context, userID string, weekStart time.Time) (string, []common.MealPlanItem, error) {
	planID, items, err := s.deps.Store.ListItems(ctx, userID, common.TruncateDay(weekStart))
	if err != nil {
		if errors.Is(err, common.ErrPlanNotFound) {
			return "", nil, err
		}
		return "", nil, common.ErrPersistenceFailure.Wrap(err)
	}
	return planID, items, nil
}

// fetchExternal 同時查詢天氣與 AI 候選食譜；任一失敗都以預設值繼續
func (s *Service) fetchExternal(
	ctx context.Context,
	req GenerateRequest,
	profile *common.UserProfile,
	targets nutrition.Targets,
	start, end time.Time,
	restriction recipe.Restriction,
) (map[string]float64, []common.Recipe) {
	var (
		temperatures map[string]float64
		candidates   []common.Recipe
	)

	g, gctx := errgroup.WithContext(ctx)

	if s.deps.Weather != nil && profile.HasLocation() {
		g.Go(func() error {
			wctx, cancel := context.WithTimeout(gctx, s.opts.WeatherTimeout)
			defer cancel()

			began := time.Now()
			temps, err := s.deps.Weather.DailyTemperatures(wctx, *profile.Latitude, *profile.Longitude, start, end.AddDate(0, 0, -1))
			common.LogExternalCall("weather", time.Since(began), err)
			if err != nil {
				common.LogWarn("weather unavailable, using seasonal averages", zap.Error(err))
				return nil
			}
			temperatures = temps
			return nil
		})
	}

	if req.UseAI && s.deps.Candidates != nil {
		g.Go(func() error {
			actx, cancel := context.WithTimeout(gctx, s.opts.AITimeout)
			defer cancel()

			began := time.Now()
			out, err := s.deps.Candidates.GenerateCandidates(actx, CandidateRequest{
				Profile:     profile,
				Targets:     targets,
				Season:      recipe.SeasonForMonth(start.Month()),
				MealTypes:   common.MainMeals,
				Count:       s.opts.CandidateCount,
				ExcludeText: restriction.Excluded,
			})
			common.LogExternalCall("ai_candidates", time.Since(began), err)
			if err != nil {
				common.LogWarn("AI candidates unavailable", zap.Error(err))
				return nil
			}
			candidates = out
			return nil
		})
	}

	_ = g.Wait()
	return temperatures, candidates
}

// chooseStrategy AI 結構可用時使用 AI 策略，否則回到選擇器
func (s *Service) chooseStrategy(ctx context.Context, req GenerateRequest, gc *GenerationContext) Strategy {
	if !req.UseAI || s.deps.Structure == nil {
		return NewDeterministicStrategy()
	}

	actx, cancel := context.WithTimeout(ctx, s.opts.AITimeout)
	defer cancel()

	runs := make(map[string][]common.RunEvent)
	for _, day := range gc.Days {
		if r := gc.RunsFor(day); len(r) > 0 {
			runs[day.Format(common.DateLayout)] = r
		}
	}

	began := time.Now()
	structure, err := s.deps.Structure.GeneratePlanStructure(actx, StructureRequest{
		Profile:      gc.Profile,
		Pool:         gc.Pool,
		Days:         gc.Days,
		Requirements: gc.Requirements,
		Runs:         runs,
	})
	common.LogExternalCall("ai_plan_structure", time.Since(began), err)
	if err != nil || structure == nil {
		common.LogWarn("AI plan structure unavailable, using deterministic strategy", zap.Error(err))
		return NewDeterministicStrategy()
	}
	return NewAIStrategy(ctx, gc, structure, s.deps.Sink)
}

// localizeRuns 將開始時間換成使用者當地時間（午餐時段與日期分組都依當地時間）
func localizeRuns(runs []common.RunEvent, loc *time.Location) []common.RunEvent {
	out := make([]common.RunEvent, len(runs))
	for i, run := range runs {
		run.StartTime = run.StartTime.In(loc)
		out[i] = run
	}
	return out
}
