package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

// 网络缓冲上限默认值（字节）
const (
	DefaultMaxTotalBufferSize    = 100 * 1024 * 1024
	DefaultMaxResourceBufferSize = 10 * 1024 * 1024
)

// Config 配置文件结构体
type Config struct {
	Version string `yaml:"version"`

	Sqlite struct {
		Dsn    string `yaml:"dsn"`
		Prefix string `yaml:"prefix"`
	} `yaml:"sqlite"`

	Log struct {
		Level  string   `yaml:"level"`
		Writer []string `yaml:"writer"`
		File   string   `yaml:"file"`
	} `yaml:"log"`

	Capture struct {
		// Categories 默认保留的资源分类
		Categories []string `yaml:"categories"`
		// MaxTotalBufferSize 网络缓冲总上限（字节）
		MaxTotalBufferSize int `yaml:"maxTotalBufferSize"`
		// MaxResourceBufferSize 单资源缓冲上限（字节）
		MaxResourceBufferSize int `yaml:"maxResourceBufferSize"`
		// BodySizeThreshold 持久化时响应体裁剪阈值（字节），0 表示不裁剪
		BodySizeThreshold int64 `yaml:"bodySizeThreshold"`
	} `yaml:"capture"`
}

// NewConfig 创建默认配置
func NewConfig() *Config {
	cfg := &Config{Version: "1.0.0"}
	cfg.Sqlite.Dsn = "captures.sqlite3"
	cfg.Sqlite.Prefix = "cdphar_"
	cfg.Log.Level = "info"
	cfg.Log.Writer = []string{"console"}
	cfg.Capture.Categories = []string{"xhr", "fetch", "websocket", "document"}
	cfg.Capture.MaxTotalBufferSize = DefaultMaxTotalBufferSize
	cfg.Capture.MaxResourceBufferSize = DefaultMaxResourceBufferSize
	cfg.Capture.BodySizeThreshold = 1 * 1024 * 1024
	return cfg
}

// Load 从文件加载配置，文件不存在时返回默认配置
func Load(path string) (*Config, error) {
	cfg := NewConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
