package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config 是 clusterec 的顶层配置结构（YAML）。
// 所有时间类字段以秒为单位，便于和运维配置对齐。
type Config struct {
	Paths struct {
		ModelDir string `yaml:"model_dir"` // 快照（canonical + 备份）目录
		DataFile string `yaml:"data_file"` // Syncer 维护的本地交易 CSV
	} `yaml:"paths"`

	Retrain struct {
		IntervalSeconds      int `yaml:"interval_seconds"`       // 距上次成功训练超过该值则触发
		RowGrowthThreshold   int `yaml:"row_growth_threshold"`   // 新增行数超过该值则触发
		CheckIntervalSeconds int `yaml:"check_interval_seconds"` // 调度器检查触发条件的周期
		SyncIntervalSeconds  int `yaml:"sync_interval_seconds"`  // 数据同步周期
		CycleTimeoutSeconds  int `yaml:"cycle_timeout_seconds"`  // 单次训练周期的超时上限
	} `yaml:"retrain"`

	Model struct {
		TopNDefault         int `yaml:"top_n"`                 // 调用方未指定 top_n 时的默认值
		KeepBackups         int `yaml:"keep_backups"`          // 保留的带时间戳备份对数量
		PollIntervalSeconds int `yaml:"poll_interval_seconds"` // Registry 检查快照变更的周期
	} `yaml:"model"`

	Cache struct {
		RedisAddr  string `yaml:"redis_addr"` // 为空则不启用 Redis 缓存
		RedisDB    int    `yaml:"redis_db"`
		TTLSeconds int    `yaml:"ttl_seconds"` // 推荐结果缓存 TTL
	} `yaml:"cache"`

	// Rules 是对最终推荐商品生效的 CEL 排除表达式，
	// 例如 `product.category == "restricted"`。命中任一条即被剔除。
	Rules []string `yaml:"rules"`
}

// Default 返回与原系统默认行为一致的配置。
func Default() *Config {
	cfg := &Config{}
	cfg.Paths.ModelDir = "models"
	cfg.Paths.DataFile = "data/transactions.csv"
	cfg.Retrain.IntervalSeconds = 3600
	cfg.Retrain.RowGrowthThreshold = 100
	cfg.Retrain.CheckIntervalSeconds = 120
	cfg.Retrain.SyncIntervalSeconds = 120
	cfg.Retrain.CycleTimeoutSeconds = 600
	cfg.Model.TopNDefault = 5
	cfg.Model.KeepBackups = 1
	cfg.Model.PollIntervalSeconds = 600
	cfg.Cache.TTLSeconds = 300
	return cfg
}

// LoadFromYAML 从 YAML 文件加载配置，未出现的字段保持默认值。
func LoadFromYAML(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate 校验配置的基本合法性。
func (c *Config) Validate() error {
	if c.Paths.ModelDir == "" {
		return fmt.Errorf("paths.model_dir is required")
	}
	if c.Retrain.IntervalSeconds <= 0 {
		return fmt.Errorf("retrain.interval_seconds must be positive")
	}
	if c.Retrain.RowGrowthThreshold < 0 {
		return fmt.Errorf("retrain.row_growth_threshold must not be negative")
	}
	if c.Model.TopNDefault <= 0 {
		return fmt.Errorf("model.top_n must be positive")
	}
	if c.Model.KeepBackups < 0 {
		return fmt.Errorf("model.keep_backups must not be negative")
	}
	return nil
}

// RetrainInterval 返回触发阈值对应的 time.Duration。
func (c *Config) RetrainInterval() time.Duration {
	return time.Duration(c.Retrain.IntervalSeconds) * time.Second
}

// PollInterval 返回 Registry 轮询周期。
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Model.PollIntervalSeconds) * time.Second
}

// CycleTimeout 返回单次训练周期的超时上限。
func (c *Config) CycleTimeout() time.Duration {
	return time.Duration(c.Retrain.CycleTimeoutSeconds) * time.Second
}
