// Package weather 查詢 Open-Meteo 每日平均氣溫，供季節評分使用。
package weather

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"meal-planner/internal/core/ai/cache"
	"meal-planner/internal/core/planner"
	"meal-planner/internal/infrastructure/config"
	"meal-planner/internal/pkg/common"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

const (
	defaultBaseURL = "https://api.open-meteo.com/v1"
	cacheNamespace = "weather"
)

// Client Open-Meteo 客戶端
type Client struct {
	client *resty.Client
	cache  cache.Store
}

var _ planner.WeatherLookup = (*Client)(nil)

type forecastResponse struct {
	Daily struct {
		Time []string   `json:"time"`
		Mean []*float64 `json:"temperature_2m_mean"`
	} `json:"daily"`
	Error  bool   `json:"error"`
	Reason string `json:"reason"`
}

// NewClient 建立天氣客戶端；store 可為 nil
func NewClient(cfg config.WeatherConfig, store cache.Store) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")

	return &Client{client: client, cache: store}
}

// DailyTemperatures 查詢 from 到 to（含）的每日平均氣溫，key 為 YYYY-MM-DD；缺值的日期不出現在結果中
func (c *Client) DailyTemperatures(ctx context.Context, latitude, longitude float64, from, to time.Time) (map[string]float64, error) {
	start := from.Format(common.DateLayout)
	end := to.Format(common.DateLayout)
	key := cache.Key(fmt.Sprintf("%.2f", latitude), fmt.Sprintf("%.2f", longitude), start, end)

	if c.cache != nil {
		if cached, err := c.cache.Get(ctx, cacheNamespace, key); err == nil {
			var temps map[string]float64
			if err := common.ParseJSON(cached, &temps); err == nil {
				return temps, nil
			}
		}
	}

	var result forecastResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"latitude":   fmt.Sprintf("%.4f", latitude),
			"longitude":  fmt.Sprintf("%.4f", longitude),
			"daily":      "temperature_2m_mean",
			"start_date": start,
			"end_date":   end,
			"timezone":   "UTC",
		}).
		SetResult(&result).
		SetError(&result).
		Get("/forecast")
	if err != nil {
		return nil, common.ErrExternalUnavailable.Wrap(fmt.Errorf("weather request failed: %w", err))
	}
	if resp.StatusCode() != http.StatusOK || result.Error {
		reason := result.Reason
		if reason == "" {
			reason = http.StatusText(resp.StatusCode())
		}
		return nil, common.ErrExternalUnavailable.Wrap(fmt.Errorf("weather API returned status %d: %s", resp.StatusCode(), reason))
	}

	temps := make(map[string]float64, len(result.Daily.Time))
	for i, day := range result.Daily.Time {
		if i >= len(result.Daily.Mean) || result.Daily.Mean[i] == nil {
			continue
		}
		temps[day] = *result.Daily.Mean[i]
	}
	if len(temps) == 0 {
		return nil, common.ErrExternalUnavailable.Wrap(errors.New("weather API returned no temperatures"))
	}

	common.LogDebug("weather fetched",
		zap.String("start_date", start),
		zap.String("end_date", end),
		zap.Int("days", len(temps)),
	)

	if c.cache != nil {
		if data, err := common.ToJSON(temps); err == nil {
			if err := c.cache.Set(ctx, cacheNamespace, key, data); err != nil {
				common.LogWarn("failed to cache weather", zap.Error(err))
			}
		}
	}
	return temps, nil
}

// Close 關閉閒置連線
func (c *Client) Close() error {
	c.client.GetClient().CloseIdleConnections()
	return nil
}
