package nws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pkg/errors"

	"github.com/MuditaSai/weather/internal/domain"
	"github.com/MuditaSai/weather/pkg/cache"
)

func hourlyPayload(day string, temps []float64) hourlyResponse {
	var out hourlyResponse
	for i, temp := range temps {
		out.Properties.Periods = append(out.Properties.Periods, struct {
			StartTime   string  `json:"startTime"`
			Temperature float64 `json:"temperature"`
		}{
			StartTime:   day + "T" + time.Date(2000, 1, 1, i, 0, 0, 0, time.UTC).Format("15:04:05") + "Z",
			Temperature: temp,
		})
	}
	return out
}

func TestForecastHighTakesDailyMax(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/gridpoints/OKX/33,35/forecast/hourly" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(hourlyPayload("2026-09-01", []float64{45, 48, 49.0, 47}))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	target := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	f, err := c.Forecast(context.Background(), "New York", "high", "OKX", "33,35", target)
	if err != nil {
		t.Fatalf("Forecast: %v", err)
	}
	if f.Temp != 49.0 {
		t.Fatalf("temp = %v, want daily max 49", f.Temp)
	}
	if f.MinTemp != 45 || f.MaxTemp != 49 {
		t.Fatalf("min/max = %v/%v", f.MinTemp, f.MaxTemp)
	}
	if f.TargetDate != "2026-09-01" || f.Source != "nws" {
		t.Fatalf("forecast = %+v", f)
	}
}

func TestForecastLowTakesDailyMin(t *testing.T) {
	target := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	temps := map[time.Time]float64{
		time.Date(2026, 9, 1, 4, 0, 0, 0, time.UTC):  38,
		time.Date(2026, 9, 1, 14, 0, 0, 0, time.UTC): 52,
		time.Date(2026, 9, 2, 4, 0, 0, 0, time.UTC):  30, // 次日数据不参与
	}
	f, err := buildForecast("Chicago", "low", target, temps)
	if err != nil {
		t.Fatalf("buildForecast: %v", err)
	}
	if f.Temp != 38 {
		t.Fatalf("temp = %v, want daily min 38", f.Temp)
	}
	if len(f.Hourly) != 2 {
		t.Fatalf("hourly = %v", f.Hourly)
	}
}

func TestForecastUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	c.http.SetRetryCount(0)
	_, err := c.Forecast(context.Background(), "New York", "high", "OKX", "33,35", time.Now())
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("got %v, want ErrUnavailable", err)
	}
}

func TestForecastNoDataForDate(t *testing.T) {
	_, err := buildForecast("New York", "high", time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC), nil)
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("got %v, want ErrUnavailable", err)
	}
}

type countingSource struct {
	calls int
	out   *domain.Forecast
	err   error
}

func (s *countingSource) Forecast(context.Context, string, string, string, string, time.Time) (*domain.Forecast, error) {
	s.calls++
	return s.out, s.err
}

func TestCachedSource(t *testing.T) {
	src := &countingSource{out: &domain.Forecast{City: "New York", Temp: 49.7}}
	cached := NewCachedSource(src, cache.NewForecastCache[*domain.Forecast](time.Minute))
	ctx := context.Background()
	target := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		f, err := cached.ForecastFor(ctx, "KXHIGHNY", "New York", "high", "OKX", "33,35", target)
		if err != nil {
			t.Fatalf("ForecastFor: %v", err)
		}
		if f.Temp != 49.7 {
			t.Fatalf("temp = %v", f.Temp)
		}
	}
	if src.calls != 1 {
		t.Fatalf("source calls = %d, want 1", src.calls)
	}

	// 失败不缓存
	src.err = ErrUnavailable
	cached.Refresh()
	if _, err := cached.ForecastFor(ctx, "KXHIGHNY", "New York", "high", "OKX", "33,35", target); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("got %v, want ErrUnavailable", err)
	}
	if src.calls != 2 {
		t.Fatalf("source calls = %d, want 2", src.calls)
	}
}
