package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config stores the application configuration.
type Config struct {
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	// Redis配置
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	// 缓存配置
	CacheBackend       string        // memory, redis, db
	CacheKeyPrefix     string        // redis 键前缀
	CacheMaxTTL        time.Duration // 写入 TTL 缓存的上限
	CacheSweepInterval time.Duration // 内存缓存清理周期，0 表示不清理
	CacheShards        int
	NegativeCacheTTL   time.Duration // 0 表示关闭负缓存
	NegativeCacheSize  int

	// 音源配置
	AdapterTimeout time.Duration
	SourcePriority string // 逗号分隔，如 "netease,tencent,kugou"
	NeteaseAPIURL  string
	NeteaseCookie  string // 登录 cookie，无损及以上音质需要
	NeteaseDetail  bool   // 获取地址时顺带记录歌曲元数据
	GDStudioAPIURL string
	GDStudioURLTTL time.Duration // GD音乐台不返回有效期，按此值估算

	// 日志配置
	LogLevel string
	LogFile  string

	HTTPAddr string
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// getEnvInt gets an environment variable as int or returns a default value.
func getEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return fallback
}

// getEnvBool gets an environment variable as bool or returns a default value.
func getEnvBool(key string, fallback bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

// getEnvDuration accepts Go duration strings ("90s") or plain seconds ("90").
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	value = strings.TrimSpace(value)
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	log.Printf("Invalid duration for %s: %q, using default %s", key, value, fallback)
	return fallback
}

// Load loads configuration from environment variables (via .env file) or defaults.
func Load() *Config {
	// godotenv.Load() will not override existing env vars.
	err := godotenv.Load()
	if err != nil {
		log.Println("No .env file found or error loading .env, relying on existing environment variables and defaults.")
	}

	return &Config{
		DBHost:     getEnv("DB_HOST", "127.0.0.1"),
		DBPort:     getEnv("DB_PORT", "3306"),
		DBUser:     getEnv("DB_USER", "root"),
		DBPassword: os.Getenv("DB_PASSWORD"), // For password, better not to have a hardcoded default
		DBName:     getEnv("DB_NAME", "fm"),

		RedisHost:     getEnv("REDIS_HOST", "127.0.0.1"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		CacheBackend:       strings.ToLower(getEnv("CACHE_BACKEND", "memory")),
		CacheKeyPrefix:     getEnv("CACHE_KEY_PREFIX", "qfm:"),
		CacheMaxTTL:        getEnvDuration("CACHE_MAX_TTL", 30*time.Minute),
		CacheSweepInterval: getEnvDuration("CACHE_SWEEP_INTERVAL", time.Minute),
		CacheShards:        getEnvInt("CACHE_SHARDS", 16),
		NegativeCacheTTL:   getEnvDuration("NEGATIVE_CACHE_TTL", 3*time.Second),
		NegativeCacheSize:  getEnvInt("NEGATIVE_CACHE_SIZE", 4096),

		AdapterTimeout: getEnvDuration("ADAPTER_TIMEOUT", 5*time.Second),
		SourcePriority: getEnv("SOURCE_PRIORITY", "netease,tencent,kugou,kuwo,migu,bilibili,gdstudio"),
		NeteaseAPIURL:  getEnv("NETEASE_API_URL", "http://localhost:3000"),
		NeteaseCookie:  getEnv("NETEASE_COOKIE", ""),
		NeteaseDetail:  getEnvBool("NETEASE_FETCH_DETAIL", true),
		GDStudioAPIURL: getEnv("GDSTUDIO_API_URL", "https://music-api.gdstudio.xyz/api.php"),
		GDStudioURLTTL: getEnvDuration("GDSTUDIO_URL_TTL", 20*time.Minute),

		LogLevel: getEnv("LOG_LEVEL", "info"),
		LogFile:  getEnv("LOG_FILE", ""),

		HTTPAddr: getEnv("HTTP_ADDR", ":8080"),
	}
}
