// Package configs 管理应用程序配置，包括数据库、对象存储、KV、消息队列与模块声明.
// configs 包支持多种配置格式（YAML、JSON、TOML、dotenv）并启用热重载.
//
// Example:
//
//	err := configs.InitConfig("./")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	config := configs.GetConfig()
//	fmt.Println(config.Server.Port)
//
// Example accessing module declarations:
//
//	for _, m := range configs.GetConfig().Modules {
//		fmt.Println(m.Name, len(m.Bones))
//	}
package configs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/yeisme/skelvault/pkg/rule"
)

// EnvPrefix 环境变量前缀.
const EnvPrefix = "SKELVAULT"

type (
	// AppConfig 全局应用程序配置.
	AppConfig struct {
		Server         ServerConfig         `mapstructure:"server"`              // 监听地址、调试开关、传输安全
		Log            LogConfig            `mapstructure:"log"`                 // 日志相关配置
		DB             DBConfig             `mapstructure:"db"`                  // 数据库配置
		S3             S3Config             `mapstructure:"s3"`                  // 对象存储配置
		Blob           BlobConfig           `mapstructure:"blob"`                // blob 服务配置
		KV             KVConfig             `mapstructure:"kv"`                  // 键值存储配置
		MQ             MQConfig             `mapstructure:"mq"`                  // 消息队列配置
		Auth           AuthConfig           `mapstructure:"auth"`                // 身份识别配置
		Security       SecurityConfig       `mapstructure:"security"`            // skey 配置
		GC             GCConfig             `mapstructure:"gc"`                  // blob 垃圾回收配置
		Modules        []ModuleConfig       `mapstructure:"modules" rule:"dive"` // 列表模块声明
		Metrics        MetricsConfig        `mapstructure:"metrics"`             // 指标
		Tracing        TracingConfig        `mapstructure:"tracing"`             // 链路追踪
		RateLimit      RateLimitConfig      `mapstructure:"rate_limit"`          // 限流
		CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker"`     // 熔断
		Events         EventsConfig         `mapstructure:"events"`              // 事件发布开关
	}
)

var (
	// globalConfig 全局配置实例.
	globalConfig AppConfig
	// appViper 全局 Viper 实例.
	appViper *viper.Viper

	mu sync.RWMutex
)

// InitConfig 加载应用程序配置，支持多种格式(yaml、json、toml、dotenv)并启用热重载.
// 找不到配置文件时使用默认值与环境变量.
func InitConfig(path string) error {
	v := viper.New()
	setAllDefaults(v)

	if info, err := os.Stat(path); err == nil && !info.IsDir() {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(path)
		v.AddConfigPath(filepath.Join(path, "configs"))

		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".skelvault"))
		}

		for _, ext := range []string{"yaml", "yml", "json", "toml", "env", "dotenv"} {
			cfg := filepath.Join(path, "config."+ext)
			if _, err := os.Stat(cfg); err == nil {
				v.SetConfigFile(cfg)

				break
			}
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	mu.Lock()
	globalConfig = cfg
	appViper = v
	mu.Unlock()

	reloadConfigs(v, cfg.Server.ReloadConfig)

	return nil
}

// Validate 对配置做结构校验.
func (c *AppConfig) Validate() error {
	if err := rule.ValidateStruct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	seen := make(map[string]struct{}, len(c.Modules))
	for _, m := range c.Modules {
		if _, dup := seen[m.Name]; dup {
			return fmt.Errorf("invalid config: module %q declared twice", m.Name)
		}

		if slices.Contains(ReservedModuleNames, m.Name) {
			return fmt.Errorf("invalid config: module name %q is reserved", m.Name)
		}

		seen[m.Name] = struct{}{}
	}

	return nil
}

// setAllDefaults 设置所有配置的默认值.
func setAllDefaults(v *viper.Viper) {
	var c AppConfig

	c.Server.setDefaults(v)
	c.Log.setDefaults(v)
	c.DB.setDefaults(v)
	c.S3.setDefaults(v)
	c.Blob.setDefaults(v)
	c.KV.setDefaults(v)
	c.MQ.setDefaults(v)
	c.Auth.setDefaults(v)
	c.Security.setDefaults(v)
	c.GC.setDefaults(v)
	setModuleDefaults(v)
	c.Metrics.setDefaults(v)
	c.Tracing.setDefaults(v)
	c.RateLimit.setDefaults(v)
	c.CircuitBreaker.setDefaults(v)
	c.Events.setDefaults(v)
}

func reloadConfigs(v *viper.Viper, isHotReload bool) {
	if !isHotReload || v.ConfigFileUsed() == "" {
		return
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		fmt.Println("Config file changed:", e.Name)

		var cfg AppConfig
		if err := v.Unmarshal(&cfg); err != nil {
			fmt.Printf("Error reloading config: %v\n", err)

			return
		}

		if err := cfg.Validate(); err != nil {
			fmt.Printf("Error reloading config: %v\n", err)

			return
		}

		// 模块声明决定权限表，运行期不可变.
		mu.Lock()
		cfg.Modules = globalConfig.Modules
		globalConfig = cfg
		mu.Unlock()
	})
	v.WatchConfig()
}

// GetConfig 返回全局配置实例.
func GetConfig() *AppConfig {
	mu.RLock()
	defer mu.RUnlock()

	return &globalConfig
}

// GetViper 返回加载配置用的 viper 实例，未初始化时为 nil.
func GetViper() *viper.Viper {
	mu.RLock()
	defer mu.RUnlock()

	return appViper
}

// SetConfig 直接替换全局配置，测试与嵌入场景使用.
func SetConfig(cfg AppConfig) {
	mu.Lock()
	globalConfig = cfg
	mu.Unlock()
}

// Defaults 返回仅由默认值构成的配置.
func Defaults() AppConfig {
	v := viper.New()
	setAllDefaults(v)

	var cfg AppConfig
	_ = v.Unmarshal(&cfg)

	return cfg
}
