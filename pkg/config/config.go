package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Market 温度市场元数据（city + 高/低温类型 + NWS 网格点）
type Market struct {
	Series       string `yaml:"series"`        // Kalshi 系列代码，例如 KXHIGHTDC
	City         string `yaml:"city"`          // 城市名
	Type         string `yaml:"type"`          // "high" 或 "low"
	NWSOffice    string `yaml:"nws_office"`    // NWS 办公室代码，例如 LWX
	NWSGridpoint string `yaml:"nws_gridpoint"` // 网格坐标，例如 "97,71"
}

// KalshiConfig Kalshi API 配置
type KalshiConfig struct {
	BaseURL        string `yaml:"base_url"`         // API 地址
	APIKey         string `yaml:"api_key"`          // API Key（可用环境变量 KALSHI_API_KEY 覆盖）
	PrivateKeyPath string `yaml:"private_key_path"` // RSA 私钥 PEM 文件路径（可用 KALSHI_PRIVATE_KEY_PATH 覆盖）
}

// StrategyConfig 对冲策略参数
type StrategyConfig struct {
	MaxBucketPrice   int `yaml:"max_bucket_price"`  // 单桶价格上限（分），默认 50
	MaxTotalCost     int `yaml:"max_total_cost"`    // 两腿总成本上限（分），默认 100
	MinBucketPrice   int `yaml:"min_bucket_price"`  // 最低价格过滤（分），低于此概率的桶不值得买，默认 15
	RepriceIncrement int `yaml:"reprice_increment"` // 改价增量（分），默认 1
	ContractCount    int `yaml:"contract_count"`    // 每腿合约数量，默认 1
	DaysAhead        int `yaml:"days_ahead"`        // 目标日期偏移：0=今天，1=明天，默认 1
	PollInterval     int `yaml:"poll_interval"`     // 轮询间隔（秒），默认 300
}

// StorageConfig 存储路径配置
type StorageConfig struct {
	PositionsDir string `yaml:"positions_dir"` // badger 持仓库目录
	LedgerPath   string `yaml:"ledger_path"`   // sqlite 交易台账文件
	ExportDir    string `yaml:"export_dir"`    // 回测导出目录
}

// ServerConfig 控制面 HTTP 服务配置
type ServerConfig struct {
	Listen string `yaml:"listen"` // 监听地址，例如 ":8090"，为空则不启动
}

// Config 应用配置
type Config struct {
	Kalshi   KalshiConfig   `yaml:"kalshi"`
	Strategy StrategyConfig `yaml:"strategy"`
	Storage  StorageConfig  `yaml:"storage"`
	Server   ServerConfig   `yaml:"server"`
	Markets  []Market       `yaml:"markets"`

	LogLevel string `yaml:"log_level"` // 日志级别
	LogFile  string `yaml:"log_file"`  // 日志文件路径（可选）
}

// PollDuration 返回轮询间隔
func (c *Config) PollDuration() time.Duration {
	return time.Duration(c.Strategy.PollInterval) * time.Second
}

// MarketBySeries 按系列代码查找市场元数据
func (c *Config) MarketBySeries(series string) (Market, bool) {
	for _, m := range c.Markets {
		if m.Series == series {
			return m, true
		}
	}
	return Market{}, false
}

// LoadFromFile 从 YAML 文件加载配置（环境变量优先于文件，文件优先于默认值）
func LoadFromFile(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("读取配置文件失败 %s: %w", path, err)
		}
		if err := yaml.Unmarshal(b, cfg); err != nil {
			return nil, fmt.Errorf("解析配置文件失败 %s: %w", path, err)
		}
	}

	// 凭证优先从环境变量读取（不建议写进配置文件）
	if v := os.Getenv("KALSHI_API_KEY"); v != "" {
		cfg.Kalshi.APIKey = v
	}
	if v := os.Getenv("KALSHI_PRIVATE_KEY_PATH"); v != "" {
		cfg.Kalshi.PrivateKeyPath = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("POLL_INTERVAL"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Strategy.PollInterval = n
		}
	}

	applyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// defaults 返回带默认值的配置
func defaults() *Config {
	return &Config{
		Kalshi: KalshiConfig{
			BaseURL: "https://api.elections.kalshi.com",
		},
		Strategy: StrategyConfig{
			MaxBucketPrice:   50,
			MaxTotalCost:     100,
			MinBucketPrice:   15,
			RepriceIncrement: 1,
			ContractCount:    1,
			DaysAhead:        1,
			PollInterval:     300,
		},
		Storage: StorageConfig{
			PositionsDir: filepath.Join("data", "positions"),
			LedgerPath:   filepath.Join("data", "ledger.db"),
			ExportDir:    filepath.Join("data", "export"),
		},
		LogLevel: "info",
		LogFile:  filepath.Join("logs", "weather.log"),
	}
}

// applyDefaults 补齐配置文件中缺失的字段
func applyDefaults(cfg *Config) {
	d := defaults()
	if cfg.Kalshi.BaseURL == "" {
		cfg.Kalshi.BaseURL = d.Kalshi.BaseURL
	}
	if cfg.Strategy.MaxBucketPrice == 0 {
		cfg.Strategy.MaxBucketPrice = d.Strategy.MaxBucketPrice
	}
	if cfg.Strategy.MaxTotalCost == 0 {
		cfg.Strategy.MaxTotalCost = d.Strategy.MaxTotalCost
	}
	if cfg.Strategy.MinBucketPrice == 0 {
		cfg.Strategy.MinBucketPrice = d.Strategy.MinBucketPrice
	}
	if cfg.Strategy.RepriceIncrement == 0 {
		cfg.Strategy.RepriceIncrement = d.Strategy.RepriceIncrement
	}
	if cfg.Strategy.ContractCount == 0 {
		cfg.Strategy.ContractCount = d.Strategy.ContractCount
	}
	if cfg.Strategy.PollInterval == 0 {
		cfg.Strategy.PollInterval = d.Strategy.PollInterval
	}
	if cfg.Storage.PositionsDir == "" {
		cfg.Storage.PositionsDir = d.Storage.PositionsDir
	}
	if cfg.Storage.LedgerPath == "" {
		cfg.Storage.LedgerPath = d.Storage.LedgerPath
	}
	if cfg.Storage.ExportDir == "" {
		cfg.Storage.ExportDir = d.Storage.ExportDir
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = d.LogLevel
	}
	if len(cfg.Markets) == 0 {
		cfg.Markets = DefaultMarkets()
	}
}

// Validate 校验配置
func (c *Config) Validate() error {
	if c.Strategy.MaxBucketPrice < 1 || c.Strategy.MaxBucketPrice > 99 {
		return fmt.Errorf("max_bucket_price 必须在 [1,99]：%d", c.Strategy.MaxBucketPrice)
	}
	if c.Strategy.MaxTotalCost < 2 || c.Strategy.MaxTotalCost > 198 {
		return fmt.Errorf("max_total_cost 必须在 [2,198]：%d", c.Strategy.MaxTotalCost)
	}
	if c.Strategy.MinBucketPrice < 1 || c.Strategy.MinBucketPrice > c.Strategy.MaxBucketPrice {
		return fmt.Errorf("min_bucket_price 必须在 [1,max_bucket_price]：%d", c.Strategy.MinBucketPrice)
	}
	if c.Strategy.DaysAhead < 0 || c.Strategy.DaysAhead > 1 {
		return fmt.Errorf("days_ahead 只支持 0（今天）或 1（明天）：%d", c.Strategy.DaysAhead)
	}
	seen := make(map[string]bool, len(c.Markets))
	for _, m := range c.Markets {
		if m.Series == "" || m.City == "" {
			return fmt.Errorf("市场配置缺少 series/city: %+v", m)
		}
		if m.Type != "high" && m.Type != "low" {
			return fmt.Errorf("市场 %s 的 type 必须是 high 或 low：%s", m.Series, m.Type)
		}
		if seen[m.Series] {
			return fmt.Errorf("市场 %s 重复定义", m.Series)
		}
		seen[m.Series] = true
	}
	return nil
}
