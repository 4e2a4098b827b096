// Package nws 对接美国国家气象局（NWS）的逐小时预报接口
package nws

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"

	"github.com/MuditaSai/weather/internal/domain"
	"github.com/MuditaSai/weather/pkg/ratelimit"
)

// ErrUnavailable 气象接口不可用或目标日期没有任何逐小时数据
// 调用方应跳过本轮，不做任何交易动作
var ErrUnavailable = errors.New("nws: forecast unavailable")

const defaultBaseURL = "https://api.weather.gov"

// Client NWS REST 客户端
type Client struct {
	http   *resty.Client
	limits *ratelimit.Manager
}

// NewClient 创建客户端；NWS 要求带可识别的 User-Agent
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	http := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(30 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(2 * time.Second).
		SetHeader("User-Agent", "weather-hedge-bot (contact: ops@example.com)").
		SetHeader("Accept", "application/geo+json")
	return &Client{http: http, limits: ratelimit.NewManager()}
}

type hourlyResponse struct {
	Properties struct {
		Periods []struct {
			StartTime   string  `json:"startTime"`
			Temperature float64 `json:"temperature"`
		} `json:"periods"`
	} `json:"properties"`
}

// Hourly 拉取某格点的逐小时温度，按起始时间返回
func (c *Client) Hourly(ctx context.Context, office, gridpoint string) (map[time.Time]float64, error) {
	if err := c.limits.Wait(ctx, ratelimit.NWSRead); err != nil {
		return nil, err
	}
	path := fmt.Sprintf("/gridpoints/%s/%s/forecast/hourly", office, gridpoint)
	var out hourlyResponse
	resp, err := c.http.R().SetContext(ctx).SetResult(&out).Get(path)
	if err != nil {
		return nil, errors.Wrap(ErrUnavailable, err.Error())
	}
	if !resp.IsSuccess() {
		return nil, errors.Wrapf(ErrUnavailable, "http %d", resp.StatusCode())
	}
	temps := make(map[time.Time]float64, len(out.Properties.Periods))
	for _, p := range out.Properties.Periods {
		ts, perr := time.Parse(time.RFC3339, p.StartTime)
		if perr != nil {
			continue
		}
		temps[ts] = p.Temperature
	}
	return temps, nil
}

// Forecast 取目标日期的预报温度：高温市场取当日逐小时最大值，
// 低温市场取最小值。tempType 为 "high" 或 "low"
func (c *Client) Forecast(ctx context.Context, city, tempType, office, gridpoint string, targetDate time.Time) (*domain.Forecast, error) {
	temps, err := c.Hourly(ctx, office, gridpoint)
	if err != nil {
		return nil, err
	}
	return buildForecast(city, tempType, targetDate, temps)
}

// buildForecast 从逐小时温度中挑出目标日期的预报值
func buildForecast(city, tempType string, targetDate time.Time, temps map[time.Time]float64) (*domain.Forecast, error) {
	dateKey := targetDate.Format("2006-01-02")
	type sample struct {
		ts   time.Time
		temp float64
	}
	var samples []sample
	for ts, temp := range temps {
		if ts.In(targetDate.Location()).Format("2006-01-02") == dateKey {
			samples = append(samples, sample{ts, temp})
		}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i].ts.Before(samples[j].ts) })
	hourly := make([]float64, 0, len(samples))
	for _, s := range samples {
		hourly = append(hourly, s.temp)
	}
	if len(hourly) == 0 {
		return nil, errors.Wrapf(ErrUnavailable, "no hourly data for %s", dateKey)
	}
	min, max := hourly[0], hourly[0]
	for _, t := range hourly[1:] {
		if t < min {
			min = t
		}
		if t > max {
			max = t
		}
	}
	f := &domain.Forecast{
		City:       city,
		Type:       tempType,
		TargetDate: dateKey,
		MinTemp:    min,
		MaxTemp:    max,
		Hourly:     hourly,
		Source:     "nws",
		ObservedAt: time.Now(),
	}
	if strings.EqualFold(tempType, "low") {
		f.Temp = min
	} else {
		f.Temp = max
	}
	return f, nil
}
