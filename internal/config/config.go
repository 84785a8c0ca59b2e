// 包 config 负责加载与校验应用配置（settings.yaml），
// 对外提供结构体 Config 及默认值/合法性校验。
package config

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config 对应 settings.yaml；键名沿用大写风格。
type Config struct {
	SiteURL     string      `yaml:"SITE_URL"`
	OutputDir   string      `yaml:"OUTPUT_DIR"`
	Overwrite   bool        `yaml:"OVERWRITE"`
	Save        *bool       `yaml:"SAVE"`
	PostSegment string      `yaml:"POST_SEGMENT"`
	FeedEnrich  *bool       `yaml:"FEED_ENRICH"`
	Theme       string      `yaml:"THEME"`
	Timeout     string      `yaml:"TIMEOUT"` // 例如 20s、1m
	Concurrency Concurrency `yaml:"CONCURRENCY"`
	Proxy       Proxy       `yaml:"PROXY"`
	Database    Database    `yaml:"DATABASE"`
	Export      Export      `yaml:"EXPORT"`
	LogLevel    string      `yaml:"LOG_LEVEL"`
	LogFormat   string      `yaml:"LOG_FORMAT"` // text|json|pretty
	LogLocale   string      `yaml:"LOG_LOCALE"` // en|zh-CN
	LogColor    string      `yaml:"LOG_COLOR"`  // auto|always|never
}

type Concurrency struct {
	Fetch int     `yaml:"fetch"`
	Retry int     `yaml:"retry"`
	Rate  float64 `yaml:"rate"` // 每秒请求数，0 表示不限速
	Burst int     `yaml:"burst"`
}

type Proxy struct {
	HTTP  string `yaml:"http"`
	HTTPS string `yaml:"https"`
}

// Database 为运行索引；DSN 为空时不启用。
type Database struct {
	DSN string `yaml:"dsn"`
}

type Export struct {
	JSON    string `yaml:"json"`
	Summary string `yaml:"summary"`
}

// Default 返回填充好默认值的配置（SITE_URL 仍需调用方提供）。
func Default() *Config {
	c := &Config{}
	_ = c.fill()
	return c
}

// Load 从文件读取 YAML 并反序列化为 Config，同时进行基础校验与默认值填充。
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config %s: %w", path, err)
	}
	defer f.Close()
	b, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("unmarshal config %s: %w", path, err)
	}
	if err := c.fill(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &c, nil
}

// Validate 在命令行覆盖之后调用：填充默认值并要求 SITE_URL 合法。
func (c *Config) Validate() error {
	if err := c.fill(); err != nil {
		return err
	}
	if strings.TrimSpace(c.SiteURL) == "" {
		return errors.New("SITE_URL is required")
	}
	u, err := url.Parse(c.SiteURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("invalid SITE_URL: %q", c.SiteURL)
	}
	return nil
}

// fill 只做默认值与数值范围检查，不要求 SITE_URL。
func (c *Config) fill() error {
	c.SiteURL = strings.TrimRight(strings.TrimSpace(c.SiteURL), "/")
	if c.OutputDir == "" {
		c.OutputDir = "./posts"
	}
	if c.Save == nil {
		c.Save = boolPtr(true)
	}
	if c.FeedEnrich == nil {
		c.FeedEnrich = boolPtr(true)
	}
	if c.PostSegment == "" {
		c.PostSegment = "/p/"
	}
	if c.Timeout == "" {
		c.Timeout = "20s"
	}
	if d, err := time.ParseDuration(c.Timeout); err != nil || d <= 0 {
		return fmt.Errorf("invalid TIMEOUT: %q", c.Timeout)
	}
	if c.Concurrency.Fetch <= 0 {
		c.Concurrency.Fetch = 4
	}
	if c.Concurrency.Retry < 0 {
		return errors.New("CONCURRENCY.retry must be >= 0")
	}
	if c.Concurrency.Rate < 0 {
		return errors.New("CONCURRENCY.rate must be >= 0")
	}
	if c.Concurrency.Burst <= 0 {
		c.Concurrency.Burst = 1
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogFormat == "" {
		c.LogFormat = "pretty"
	}
	if c.LogLocale == "" {
		c.LogLocale = "en"
	}
	if c.LogColor == "" {
		c.LogColor = "auto"
	}
	return nil
}

// TimeoutDuration 返回解析后的单次请求超时。
func (c *Config) TimeoutDuration() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil || d <= 0 {
		return 20 * time.Second
	}
	return d
}

func (c *Config) SaveEnabled() bool       { return c.Save == nil || *c.Save }
func (c *Config) FeedEnrichEnabled() bool { return c.FeedEnrich == nil || *c.FeedEnrich }

func boolPtr(b bool) *bool { return &b }
