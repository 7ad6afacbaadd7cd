package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config 聚合整个服务的配置项。
type Config struct {
	Server  ServerConfig
	Demo    DemoConfig
	Storage StorageConfig
	Assets  AssetsConfig
	Log     LogConfig
}

// Load 从环境变量加载配置。
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	demo, err := loadDemoConfig()
	if err != nil {
		return nil, err
	}

	storage, err := loadStorageConfig()
	if err != nil {
		return nil, err
	}

	logCfg, err := loadLogConfig()
	if err != nil {
		return nil, err
	}

	return &Config{
		Server:  server,
		Demo:    demo,
		Storage: storage,
		Assets:  AssetsConfig{Dir: strings.TrimSpace(os.Getenv("ASSETS_DIR"))},
		Log:     logCfg,
	}, nil
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Addr          string
	PublicBaseURL string
}

// loadServerConfig 解析服务器监听地址。
func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	var addr string
	switch {
	case strings.Contains(port, ":"):
		// 允许用户直接传入 ":8080" 或 "127.0.0.1:8080"。
		addr = port
	case strings.Contains(port, " "):
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	default:
		addr = ":" + port
	}

	return ServerConfig{
		Addr:          addr,
		PublicBaseURL: strings.TrimRight(getEnvOrDefault("PUBLIC_BASE_URL", "http://localhost:5173"), "/"),
	}, nil
}

// DemoConfig 描述模拟延迟与随机种子。
type DemoConfig struct {
	SignToTextDelay      time.Duration
	SignToTextShortDelay time.Duration
	TextToSignDelay      time.Duration
	VoiceDelay           time.Duration
	WidgetInterval       time.Duration
	PageInterval         time.Duration
	// IdleTimeout 控制清扫无人访问的流程与通话
	IdleTimeout time.Duration
	// Seed 为 0 时使用随机种子
	Seed uint64
}

func loadDemoConfig() (DemoConfig, error) {
	var cfg DemoConfig
	var err error

	fields := []struct {
		key      string
		fallback time.Duration
		dst      *time.Duration
	}{
		{"DEMO_SIGN_TO_TEXT_DELAY", 3000 * time.Millisecond, &cfg.SignToTextDelay},
		{"DEMO_SIGN_TO_TEXT_SHORT_DELAY", 1500 * time.Millisecond, &cfg.SignToTextShortDelay},
		{"DEMO_TEXT_TO_SIGN_DELAY", 1500 * time.Millisecond, &cfg.TextToSignDelay},
		{"DEMO_VOICE_DELAY", 2000 * time.Millisecond, &cfg.VoiceDelay},
		{"DEMO_WIDGET_INTERVAL", 5000 * time.Millisecond, &cfg.WidgetInterval},
		{"DEMO_PAGE_INTERVAL", 7000 * time.Millisecond, &cfg.PageInterval},
		{"DEMO_IDLE_TIMEOUT", 30 * time.Minute, &cfg.IdleTimeout},
	}
	for _, f := range fields {
		if *f.dst, err = parseDurationEnv(f.key, f.fallback); err != nil {
			return DemoConfig{}, err
		}
	}

	seed, err := parseOptionalIntEnv("DEMO_SEED")
	if err != nil {
		return DemoConfig{}, err
	}
	if seed != nil {
		if *seed < 0 {
			return DemoConfig{}, fmt.Errorf("invalid DEMO_SEED value %d: must not be negative", *seed)
		}
		cfg.Seed = uint64(*seed)
	}
	return cfg, nil
}

// StorageConfig 描述通话记录的持久化方式。
type StorageConfig struct {
	Backend string
	Path    string
}

func loadStorageConfig() (StorageConfig, error) {
	backend := strings.ToLower(getEnvOrDefault("STORAGE_BACKEND", "memory"))
	path := strings.TrimSpace(os.Getenv("STORAGE_PATH"))

	switch backend {
	case "memory":
	case "file":
		if path == "" {
			path = "data/signwave.json"
		}
	case "sqlite":
		if path == "" {
			path = "data/signwave.db"
		}
	default:
		return StorageConfig{}, fmt.Errorf("invalid STORAGE_BACKEND value %q", backend)
	}
	return StorageConfig{Backend: backend, Path: path}, nil
}

// AssetsConfig 指向手语动画资源目录，为空时不校验资源是否存在。
type AssetsConfig struct {
	Dir string
}

// LogConfig 描述日志输出。
type LogConfig struct {
	Level  string
	Pretty bool
}

func loadLogConfig() (LogConfig, error) {
	pretty, err := parseBoolEnv("LOG_PRETTY", false)
	if err != nil {
		return LogConfig{}, err
	}
	return LogConfig{
		Level:  strings.ToLower(getEnvOrDefault("LOG_LEVEL", "info")),
		Pretty: pretty,
	}, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseBoolEnv(key string, defaultValue bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

// parseDurationEnv 接受 Go 时长字符串（"1500ms"）或纯数字毫秒（"1500"）。
func parseDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue, nil
	}

	if ms, err := strconv.Atoi(value); err == nil {
		if ms <= 0 {
			return 0, fmt.Errorf("invalid %s value %q: must be positive", key, value)
		}
		return time.Duration(ms) * time.Millisecond, nil
	}

	val, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	if val <= 0 {
		return 0, fmt.Errorf("invalid %s value %q: must be positive", key, value)
	}
	return val, nil
}
