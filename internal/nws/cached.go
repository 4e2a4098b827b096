package nws

import (
	"context"
	"time"

	"github.com/MuditaSai/weather/internal/domain"
	"github.com/MuditaSai/weather/pkg/cache"
)

// Source 预报数据源，便于测试替换
type Source interface {
	Forecast(ctx context.Context, city, tempType, office, gridpoint string, targetDate time.Time) (*domain.Forecast, error)
}

// CachedSource 带缓存的预报源：同一系列同一目标日期在 TTL 内只打一次 NWS
// 缓存对象显式注入，引擎层可随时 Clear 强制刷新
type CachedSource struct {
	source Source
	cache  *cache.ForecastCache[*domain.Forecast]
}

func NewCachedSource(source Source, c *cache.ForecastCache[*domain.Forecast]) *CachedSource {
	return &CachedSource{source: source, cache: c}
}

// ForecastFor 查缓存，未命中再打真实接口并回填
// series 只作为缓存键的一部分，不参与预报计算
func (c *CachedSource) ForecastFor(ctx context.Context, series, city, tempType, office, gridpoint string, targetDate time.Time) (*domain.Forecast, error) {
	dateKey := targetDate.Format("2006-01-02")
	if f, ok := c.cache.Get(series, dateKey); ok {
		return f, nil
	}
	f, err := c.source.Forecast(ctx, city, tempType, office, gridpoint, targetDate)
	if err != nil {
		return nil, err
	}
	c.cache.Set(series, dateKey, f)
	return f, nil
}

// Refresh 清空缓存，下一次查询必然回源
func (c *CachedSource) Refresh() {
	c.cache.Clear()
}
