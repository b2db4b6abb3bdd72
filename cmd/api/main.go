package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata" // 容器內可能沒有系統時區資料

	"meal-planner/internal/api"
	"meal-planner/internal/api/handlers/health"
	"meal-planner/internal/core/ai/cache"
	"meal-planner/internal/core/ai/generator"
	"meal-planner/internal/core/ai/openrouter"
	"meal-planner/internal/core/ai/provider"
	"meal-planner/internal/core/ai/queue"
	"meal-planner/internal/core/planner"
	"meal-planner/internal/core/weather"
	"meal-planner/internal/infrastructure/config"
	"meal-planner/internal/infrastructure/database"
	"meal-planner/internal/infrastructure/persistence"
	"meal-planner/internal/pkg/common"

	"go.uber.org/zap"
)

func main() {
	// 載入設定（含 .env）
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 初始化 logger（需在載入 config 後）
	if err := common.InitLogger(cfg.LogLevel, cfg.LogDir); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer common.Sync()

	common.LogInfo("載入設定",
		zap.String("openrouter_api_key", config.MaskAPIKey(cfg.OpenRouter.APIKey)),
		zap.String("openrouter_model", cfg.OpenRouter.Model),
		zap.Bool("ai_enabled", cfg.AI.Enabled && cfg.OpenRouter.Enabled),
		zap.Bool("weather_enabled", cfg.Weather.Enabled),
	)

	// 資料庫
	db, err := database.Open(cfg.Database)
	if err != nil {
		common.LogFatal("Failed to open database", zap.Error(err))
	}
	defer db.Close()
	if cfg.Database.AutoMigrate {
		if err := db.AutoMigrate(persistence.Models()...); err != nil {
			common.LogFatal("Failed to migrate database", zap.Error(err))
		}
	}

	profiles := persistence.NewProfileRepository(db.DB())
	recipes := persistence.NewRecipeRepository(db.DB())
	runs := persistence.NewRunRepository(db.DB())
	plans := persistence.NewPlanRepository(db.DB())

	// 快取：Redis 無法連線時退回記憶體
	store := cache.New(context.Background(), cfg.Cache)
	defer store.Close()

	stats := map[string]health.StatsFunc{}
	if m, ok := store.(*cache.CacheManager); ok {
		stats["cache"] = func() interface{} { return m.GetStats() }
	}

	deps := planner.Dependencies{
		Profiles: profiles,
		Recipes:  recipes,
		Runs:     runs,
		Store:    plans,
		Sink:     recipes,
	}

	if cfg.AI.Enabled && cfg.OpenRouter.Enabled {
		client := openrouter.NewClient(provider.Config{
			APIKey:     cfg.OpenRouter.APIKey,
			Model:      cfg.OpenRouter.Model,
			Timeout:    cfg.OpenRouter.Timeout,
			MaxRetries: cfg.OpenRouter.MaxRetries,
			MaxTokens:  cfg.OpenRouter.MaxTokens,
			BaseURL:    cfg.OpenRouter.BaseURL,
		})
		// 限制同時送出的 AI 請求數
		aiQueue := queue.NewManager(client, cfg.AI.Workers, cfg.AI.QueueSize)
		defer aiQueue.Close()
		stats["ai_queue"] = func() interface{} { return aiQueue.GetQueueStatus() }

		var aiCache cache.Store
		if cfg.AI.EnableCache {
			aiCache = store
		}
		gen := generator.New(aiQueue, aiCache, generator.Options{
			Temperature: cfg.AI.Temperature,
			MaxTokens:   cfg.OpenRouter.MaxTokens,
		})
		deps.Candidates = gen
		deps.Structure = gen
	}

	if cfg.Weather.Enabled {
		weatherClient := weather.NewClient(cfg.Weather, store)
		defer weatherClient.Close()
		deps.Weather = weatherClient
	}

	svc := planner.NewService(deps, planner.Options{
		AllowGenericFallback: cfg.Planner.AllowGenericFallback,
		DefaultDays:          cfg.Planner.DefaultDays,
		MinSuitable:          cfg.Planner.MinSuitable,
		CandidateCount:       cfg.AI.CandidateCount,
		AITimeout:            cfg.AI.Timeout,
		WeatherTimeout:       cfg.Weather.Timeout,
	})

	// 設置路由
	router := api.SetupRouter(cfg, api.Dependencies{Planner: svc, DB: db, Stats: stats})

	// 設置 HTTP 服務器
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// 啟動服務器
	go func() {
		common.LogInfo("啟動應用",
			zap.String("version", cfg.App.Version),
			zap.String("env", cfg.App.Env),
			zap.Bool("debug", cfg.App.Debug),
			zap.Int("port", cfg.Server.Port),
		)

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			common.LogFatal("Failed to start server", zap.Error(err))
		}
	}()

	// 等待中斷信號
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	common.LogInfo("Shutting down server...")

	// 設置關閉超時
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		common.LogError("Server forced to shutdown", zap.Error(err))
	}

	common.LogInfo("Server exited")
}
