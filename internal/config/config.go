package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"
)

// Application environment names
const (
	Development = "development"
	Test        = "test"
	Staging     = "staging"
	Production  = "production"
)

const envPrefix = "TESTDASH"

type Config struct {
	AppEnv string `mapstructure:"app_env"`
	Log    struct {
		Level string
	}
	Server struct {
		Address string
		WebRoot string `mapstructure:"web_root"`
	}
	Feeds struct {
		Timeout      time.Duration
		CacheMaxAge  time.Duration `mapstructure:"cache_max_age"`
		WarmSchedule string        `mapstructure:"warm_schedule"`
		Functional   struct {
			Script  string
			Global  string
			Preload string
		}
		Performance struct {
			URL   string
			Token string
			S3    struct {
				Bucket string
				Key    string
				Region string
			}
		}
	}
	Dashboard struct {
		SessionIdleTTL time.Duration `mapstructure:"session_idle_ttl"`
	}
}

// ReadConfigOption selects which configuration to read.
type ReadConfigOption struct {
	// AppEnv overrides APP_ENV. It picks config.<env>.yml, or config.yml for
	// development.
	AppEnv string
	// ConfigDir is searched for the environment's file. Defaults to "config".
	ConfigDir string
	// ConfigFile reads exactly this file and makes it an error for it to be missing.
	ConfigFile string
}

// Load reads defaults, then the environment's YAML file if present, then
// TESTDASH_* environment variables (TESTDASH_FEEDS_PERFORMANCE_URL sets
// feeds.performance.url).
func Load(option ReadConfigOption) (*Config, error) {
	env := appEnv(option)

	v := viper.New()
	setDefaults(v, env)
	v.SetConfigType("yml")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if option.ConfigFile != "" {
		v.SetConfigFile(option.ConfigFile)
	} else {
		dir := option.ConfigDir
		if dir == "" {
			dir = "config"
		}
		v.AddConfigPath(dir)
		v.SetConfigName(configName(env))
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if option.ConfigFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &c, nil
}

func appEnv(option ReadConfigOption) string {
	if option.AppEnv != "" {
		return option.AppEnv
	}
	if e := os.Getenv(envPrefix + "_APP_ENV"); e != "" {
		return e
	}
	if e := os.Getenv("APP_ENV"); e != "" {
		return e
	}
	return Development
}

func configName(env string) string {
	if env == Development {
		return "config"
	}
	return "config." + env
}

func setDefaults(v *viper.Viper, env string) {
	v.SetDefault("app_env", env)
	v.SetDefault("log.level", "info")
	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.web_root", "web")
	v.SetDefault("feeds.timeout", 10*time.Second)
	v.SetDefault("feeds.cache_max_age", 15*time.Second)
	v.SetDefault("feeds.warm_schedule", "@every 5m")
	v.SetDefault("feeds.functional.script", "test-results/results.js")
	v.SetDefault("feeds.functional.global", "testResults")
	v.SetDefault("feeds.functional.preload", "")
	v.SetDefault("feeds.performance.url", "")
	v.SetDefault("feeds.performance.token", "")
	v.SetDefault("feeds.performance.s3.bucket", "")
	v.SetDefault("feeds.performance.s3.key", "k6/summary.json")
	v.SetDefault("feeds.performance.s3.region", "")
	v.SetDefault("dashboard.session_idle_ttl", 2*time.Minute)
}

// Validate reports every problem at once.
func (c *Config) Validate() error {
	var problems []string

	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		problems = append(problems, fmt.Sprintf("log.level %q is not a log level", c.Log.Level))
	}
	if strings.TrimSpace(c.Server.Address) == "" {
		problems = append(problems, "server.address is required")
	}
	if c.Feeds.Timeout <= 0 {
		problems = append(problems, "feeds.timeout must be positive")
	}
	if c.Feeds.CacheMaxAge < 0 {
		problems = append(problems, "feeds.cache_max_age must not be negative")
	}
	if strings.TrimSpace(c.Feeds.Functional.Script) == "" {
		problems = append(problems, "feeds.functional.script is required")
	}
	if strings.TrimSpace(c.Feeds.Functional.Global) == "" {
		problems = append(problems, "feeds.functional.global is required")
	}
	if u := c.Feeds.Performance.URL; u != "" {
		parsed, err := url.Parse(u)
		if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
			problems = append(problems, fmt.Sprintf("feeds.performance.url %q must be an http(s) URL", u))
		}
	}
	if c.Feeds.Performance.S3.Bucket != "" && c.Feeds.Performance.S3.Key == "" {
		problems = append(problems, "feeds.performance.s3.key is required with a bucket")
	}
	if c.Dashboard.SessionIdleTTL <= 0 {
		problems = append(problems, "dashboard.session_idle_ttl must be positive")
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// UsesS3 reports whether the performance feed is read from S3 instead of HTTP.
func (c *Config) UsesS3() bool {
	return c.Feeds.Performance.S3.Bucket != ""
}
